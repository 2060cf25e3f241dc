package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jvaldes/scout-tui/internal/cache"
	"github.com/jvaldes/scout-tui/internal/store"
)

// MigrationServiceImpl lifts pre-sign-in local data into the user
// document. It runs on first authenticated sign-in and is idempotent: a
// document that already has shortlist entries or templates is left alone.
type MigrationServiceImpl struct {
	gateway  store.Gateway
	fallback *cache.Store
	logger   *log.Logger

	now func() time.Time
}

// NewMigrationService creates a new migration service
func NewMigrationService(gateway store.Gateway, fallback *cache.Store) *MigrationServiceImpl {
	return &MigrationServiceImpl{
		gateway:  gateway,
		fallback: fallback,
		now:      time.Now,
	}
}

// SetLogger sets the logger for debug output
func (s *MigrationServiceImpl) SetLogger(logger *log.Logger) {
	s.logger = logger
}

// MigrateLocalData copies myContacts, emailTemplates and userProfile from
// the local fallback into an empty user document. The local data is left
// in place for safety. Returns true when anything was migrated.
func (s *MigrationServiceImpl) MigrateLocalData(ctx context.Context, userID string) (bool, error) {
	if userID == "" {
		return false, fmt.Errorf("userID cannot be empty: %w", ErrValidation)
	}

	doc, found, err := s.gateway.GetDoc(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("load user document: %w", err)
	}
	if !found {
		doc = store.NewUserDocument(s.now())
	}
	if len(doc.Contacts.Shortlist) > 0 || len(doc.Templates) > 0 {
		// Already populated; nothing to lift.
		return false, nil
	}

	migrated := false

	if uc, ok, err := s.fallback.LoadContacts(ctx, userID); err == nil && ok {
		doc.Contacts = *uc
		migrated = true
	}
	if templates, ok, err := s.fallback.LoadTemplates(ctx, userID); err == nil && ok && len(templates) > 0 {
		doc.Templates = templates
		migrated = true
	}
	if profile, ok, err := s.fallback.LoadProfile(ctx, userID); err == nil && ok {
		doc.Profile = *profile
		migrated = true
	}

	if !migrated {
		return false, nil
	}

	doc.Touch(s.now())
	if err := s.gateway.SetDoc(ctx, userID, doc, true); err != nil {
		return false, fmt.Errorf("write migrated document: %w", err)
	}
	s.logf("migrated local data for user=%s (shortlist=%d templates=%d)",
		userID, len(doc.Contacts.Shortlist), len(doc.Templates))
	return true, nil
}

func (s *MigrationServiceImpl) logf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}
