package services

import (
	"context"
	"time"

	"github.com/jvaldes/scout-tui/internal/store"
)

// ContactService owns the three triage sequences. Every mutation persists
// through the document gateway and publishes contacts-updated; bulk
// operations publish once. Destructive operations return a Reversal so
// the caller can schedule an undo.
type ContactService interface {
	GetUserContacts(ctx context.Context, userID string) (*store.UserContacts, error)
	AddToShortlist(ctx context.Context, userID string, c store.Contact) (bool, error)
	RemoveFromShortlist(ctx context.Context, userID, emailKey string) (*Reversal, error)
	MoveToTrash(ctx context.Context, userID string, c store.Contact) (*Reversal, error)
	MoveToSent(ctx context.Context, userID string, c store.Contact) (*Reversal, error)
	RestoreFromTrash(ctx context.Context, userID string, c store.Contact) (*Reversal, error)
	BulkTrash(ctx context.Context, userID string, emailKeys []string) (*Reversal, error)
	BulkSend(ctx context.Context, userID string, emailKeys []string) (*Reversal, error)
	BulkRestore(ctx context.Context, userID string, emailKeys []string) (*Reversal, error)
	BulkDeletePermanent(ctx context.Context, userID string, emailKeys []string) (*Reversal, error)
	ChangeTemplate(ctx context.Context, userID string, c store.Contact, templateName string) error
	ApplyReversal(ctx context.Context, userID string, r *Reversal) error
}

// DraftService owns the per-contact email draft map.
type DraftService interface {
	SaveDraft(ctx context.Context, userID, emailKey, subject, body string) (*store.EmailDraft, error)
	GetDrafts(ctx context.Context, userID string) (map[string]store.EmailDraft, error)
	DeleteDraft(ctx context.Context, userID, emailKey string) error
}

// HistoryService keeps the bounded search history log. Appends are
// best-effort: failures are logged, never propagated.
type HistoryService interface {
	SaveSearchHistory(ctx context.Context, userID, query string, contacts []store.Contact) error
	GetSearchHistory(ctx context.Context, userID string) ([]store.SearchHistoryEntry, error)
	DeleteSearchHistoryEntry(ctx context.Context, userID, entryID string) error
}

// TemplateService manages outreach templates and renders them against a
// contact using the strict {{placeholder}} syntax.
type TemplateService interface {
	ListTemplates(ctx context.Context, userID string) ([]store.EmailTemplate, error)
	SaveTemplate(ctx context.Context, userID string, t store.EmailTemplate) error
	DeleteTemplate(ctx context.Context, userID, name string) error
	Render(t store.EmailTemplate, c store.Contact) (subject, body string)
}

// MigrationService lifts pre-sign-in local data into the user document
// exactly once.
type MigrationService interface {
	MigrateLocalData(ctx context.Context, userID string) (bool, error)
}

// UndoService remembers the most recent reversal (single-level undo).
type UndoService interface {
	RecordReversal(r *Reversal) error
	UndoLast(ctx context.Context, userID string) (*UndoResult, error)
	HasUndoableAction() bool
	GetUndoDescription() string
	ClearUndoHistory() error
}

// Data structures

// Reversal captures the prior membership of every contact a destructive
// operation touched, keyed by the sequence it came from. Applying a
// reversal reinserts that state without duplicating entries.
type Reversal struct {
	ID          string
	Description string
	Timestamp   time.Time
	Members     map[string][]store.Contact
}

func (r *Reversal) add(seq string, c store.Contact) {
	if r.Members == nil {
		r.Members = map[string][]store.Contact{}
	}
	r.Members[seq] = append(r.Members[seq], c)
}

// Empty reports whether the reversal captured no prior state.
func (r *Reversal) Empty() bool {
	if r == nil {
		return true
	}
	for _, members := range r.Members {
		if len(members) > 0 {
			return false
		}
	}
	return true
}

// UndoResult reports the outcome of undoing the last action.
type UndoResult struct {
	Success     bool
	Description string
	Errors      []string
}
