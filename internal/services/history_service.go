package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jvaldes/scout-tui/internal/store"
)

// maxHistoryEntries bounds the search history log.
const maxHistoryEntries = 50

// HistoryServiceImpl implements HistoryService
type HistoryServiceImpl struct {
	gateway store.Gateway
	logger  *log.Logger

	mu  sync.Mutex
	now func() time.Time
}

// NewHistoryService creates a new search history service
func NewHistoryService(gateway store.Gateway) *HistoryServiceImpl {
	return &HistoryServiceImpl{
		gateway: gateway,
		now:     time.Now,
	}
}

// SetLogger sets the logger for debug output
func (s *HistoryServiceImpl) SetLogger(logger *log.Logger) {
	s.logger = logger
}

// SaveSearchHistory prepends an entry and truncates the log to the 50
// most recent. Best-effort: failures are logged and never propagated.
func (s *HistoryServiceImpl) SaveSearchHistory(ctx context.Context, userID, query string, contacts []store.Contact) error {
	if userID == "" || query == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.loadDoc(ctx, userID)
	if err != nil {
		s.logf("save search history skipped for user=%s: %v", userID, err)
		return nil
	}

	ts := s.now().UTC().Format(time.RFC3339)
	entry := store.SearchHistoryEntry{
		ID:          uuid.New().String(),
		Query:       query,
		Contacts:    contacts,
		ResultCount: len(contacts),
		Timestamp:   ts,
		CreatedAt:   ts,
	}
	history := append([]store.SearchHistoryEntry{entry}, doc.SearchHistory...)
	if len(history) > maxHistoryEntries {
		history = history[:maxHistoryEntries]
	}
	doc.SearchHistory = history

	if err := s.persistHistory(ctx, userID, doc); err != nil {
		s.logf("save search history failed for user=%s: %v", userID, err)
	}
	return nil
}

// GetSearchHistory returns the log newest-first.
func (s *HistoryServiceImpl) GetSearchHistory(ctx context.Context, userID string) ([]store.SearchHistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.loadDoc(ctx, userID)
	if err != nil {
		return nil, err
	}
	return doc.SearchHistory, nil
}

// DeleteSearchHistoryEntry removes one entry by id.
func (s *HistoryServiceImpl) DeleteSearchHistoryEntry(ctx context.Context, userID, entryID string) error {
	if entryID == "" {
		return fmt.Errorf("entryID cannot be empty: %w", ErrValidation)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.loadDoc(ctx, userID)
	if err != nil {
		return err
	}
	out := doc.SearchHistory[:0]
	removed := false
	for _, entry := range doc.SearchHistory {
		if entry.ID == entryID {
			removed = true
			continue
		}
		out = append(out, entry)
	}
	if !removed {
		return nil
	}
	doc.SearchHistory = out
	return s.persistHistory(ctx, userID, doc)
}

func (s *HistoryServiceImpl) loadDoc(ctx context.Context, userID string) (*store.UserDocument, error) {
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
	return doc, nil
}

func (s *HistoryServiceImpl) persistHistory(ctx context.Context, userID string, doc *store.UserDocument) error {
	doc.Touch(s.now())
	err := s.gateway.UpdateDoc(ctx, userID, map[string]any{
		"searchHistory": doc.SearchHistory,
		"updatedAt":     doc.UpdatedAt,
	})
	if errors.Is(err, store.ErrDocMissing) {
		err = s.gateway.SetDoc(ctx, userID, doc, false)
	}
	if err != nil {
		return fmt.Errorf("persist search history: %w", err)
	}
	return nil
}

func (s *HistoryServiceImpl) logf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}
