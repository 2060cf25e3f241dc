package services

import (
	"context"
	"fmt"
	"log"
	"sync"
)

// UndoServiceImpl keeps the single most recent reversal. Recording a new
// one replaces whatever was there; undoing consumes it.
type UndoServiceImpl struct {
	contacts ContactService
	logger   *log.Logger

	mu   sync.Mutex
	last *Reversal
}

// NewUndoService creates a new undo service
func NewUndoService(contacts ContactService) *UndoServiceImpl {
	return &UndoServiceImpl{contacts: contacts}
}

// SetLogger sets the logger for debug output
func (s *UndoServiceImpl) SetLogger(logger *log.Logger) {
	s.logger = logger
}

// RecordReversal remembers r as the next undo target. Nil or empty
// reversals are ignored so no-op operations never clobber a real one.
func (s *UndoServiceImpl) RecordReversal(r *Reversal) error {
	if r.Empty() {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = r
	s.logf("recorded reversal id=%s desc=%q", r.ID, r.Description)
	return nil
}

// UndoLast reapplies the stored reversal through the contact service and
// clears it. The reversal is consumed even when the apply fails, matching
// single-level undo: a failed undo is not retryable from stale state.
func (s *UndoServiceImpl) UndoLast(ctx context.Context, userID string) (*UndoResult, error) {
	s.mu.Lock()
	r := s.last
	s.last = nil
	s.mu.Unlock()

	if r == nil {
		return &UndoResult{Success: false, Description: "nothing to undo"}, nil
	}

	if err := s.contacts.ApplyReversal(ctx, userID, r); err != nil {
		s.logf("undo failed id=%s: %v", r.ID, err)
		return &UndoResult{
			Success:     false,
			Description: r.Description,
			Errors:      []string{fmt.Sprintf("undo %s: %v", r.Description, err)},
		}, err
	}
	s.logf("undid %q", r.Description)
	return &UndoResult{Success: true, Description: r.Description}, nil
}

// HasUndoableAction returns true when a reversal is stored.
func (s *UndoServiceImpl) HasUndoableAction() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last != nil
}

// GetUndoDescription returns the stored reversal's description, or "".
func (s *UndoServiceImpl) GetUndoDescription() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return ""
	}
	return s.last.Description
}

// ClearUndoHistory drops the stored reversal.
func (s *UndoServiceImpl) ClearUndoHistory() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = nil
	return nil
}

func (s *UndoServiceImpl) logf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}
