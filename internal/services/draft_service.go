package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/jvaldes/scout-tui/internal/cache"
	"github.com/jvaldes/scout-tui/internal/store"
)

// DraftServiceImpl implements DraftService
type DraftServiceImpl struct {
	gateway  store.Gateway
	fallback *cache.Store
	logger   *log.Logger

	mu  sync.Mutex
	now func() time.Time
}

// NewDraftService creates a new draft service
func NewDraftService(gateway store.Gateway, fallback *cache.Store) *DraftServiceImpl {
	return &DraftServiceImpl{
		gateway:  gateway,
		fallback: fallback,
		now:      time.Now,
	}
}

// SetLogger sets the logger for debug output
func (s *DraftServiceImpl) SetLogger(logger *log.Logger) {
	s.logger = logger
}

// SaveDraft merges a single draft into the document's draft map. The
// returned draft is the post-write read, which is the canonical value.
func (s *DraftServiceImpl) SaveDraft(ctx context.Context, userID, emailKey, subject, body string) (*store.EmailDraft, error) {
	key := store.NormalizeEmailKey(emailKey)
	if key == "" {
		return nil, ErrMissingEmailKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.loadDoc(ctx, userID)
	if err != nil {
		return nil, err
	}
	doc.EmailDrafts[key] = store.EmailDraft{
		Subject:   subject,
		Body:      body,
		UpdatedAt: s.now().UTC().Format(time.RFC3339),
	}
	if err := s.persistDrafts(ctx, userID, doc); err != nil {
		return nil, err
	}

	// Canonical value is what the store holds after the write.
	fresh, found, err := s.gateway.GetDoc(ctx, userID)
	if err != nil || !found {
		saved := doc.EmailDrafts[key]
		return &saved, nil
	}
	saved := fresh.EmailDrafts[key]
	return &saved, nil
}

// GetDrafts returns the whole draft map.
func (s *DraftServiceImpl) GetDrafts(ctx context.Context, userID string) (map[string]store.EmailDraft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.loadDoc(ctx, userID)
	if err != nil {
		if drafts, found, ferr := s.fallback.LoadDrafts(ctx, userID); ferr == nil && found {
			s.logf("remote read failed for user=%s, serving local drafts: %v", userID, err)
			return drafts, nil
		}
		return nil, err
	}
	return doc.EmailDrafts, nil
}

// DeleteDraft removes one entry from the draft map.
func (s *DraftServiceImpl) DeleteDraft(ctx context.Context, userID, emailKey string) error {
	key := store.NormalizeEmailKey(emailKey)
	if key == "" {
		return ErrMissingEmailKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.loadDoc(ctx, userID)
	if err != nil {
		return err
	}
	if _, ok := doc.EmailDrafts[key]; !ok {
		return nil
	}
	delete(doc.EmailDrafts, key)
	return s.persistDrafts(ctx, userID, doc)
}

func (s *DraftServiceImpl) loadDoc(ctx context.Context, userID string) (*store.UserDocument, error) {
	doc, found, err := s.gateway.GetDoc(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user document: %w", err)
	}
	if !found {
		doc = store.NewUserDocument(s.now())
		if err := s.gateway.SetDoc(ctx, userID, doc, false); err != nil {
			return nil, fmt.Errorf("initialize user document: %w", err)
		}
	}
	if doc.EmailDrafts == nil {
		doc.EmailDrafts = map[string]store.EmailDraft{}
	}
	return doc, nil
}

// persistDrafts writes the whole draft map. Draft keys are email
// addresses and contain dots, so dotted-path updates per entry would be
// misread as nesting; the map is written as one field.
func (s *DraftServiceImpl) persistDrafts(ctx context.Context, userID string, doc *store.UserDocument) error {
	doc.Touch(s.now())
	err := s.gateway.UpdateDoc(ctx, userID, map[string]any{
		"emailDrafts": doc.EmailDrafts,
		"updatedAt":   doc.UpdatedAt,
	})
	if errors.Is(err, store.ErrDocMissing) {
		err = s.gateway.SetDoc(ctx, userID, doc, false)
	}
	if err != nil {
		if ferr := s.fallback.SaveDrafts(ctx, userID, doc.EmailDrafts); ferr != nil {
			s.logf("fallback draft write failed for user=%s: %v", userID, ferr)
		}
		return fmt.Errorf("persist drafts: %w", err)
	}
	return nil
}

func (s *DraftServiceImpl) logf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}
