package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jvaldes/scout-tui/internal/bus"
	"github.com/jvaldes/scout-tui/internal/cache"
	"github.com/jvaldes/scout-tui/internal/store"
)

// ContactServiceImpl implements ContactService
type ContactServiceImpl struct {
	gateway  store.Gateway
	fallback *cache.Store
	bus      *bus.Bus
	logger   *log.Logger // Optional - for debug logging

	// Mutations are funneled through one mutex; each re-reads the
	// document immediately before writing. Callers must not cache a
	// UserContacts value across calls. Last-writer-wins is accepted.
	mu  sync.Mutex
	now func() time.Time
}

// NewContactService creates a new contact service
func NewContactService(gateway store.Gateway, fallback *cache.Store, eventBus *bus.Bus) *ContactServiceImpl {
	return &ContactServiceImpl{
		gateway:  gateway,
		fallback: fallback,
		bus:      eventBus,
		now:      time.Now,
	}
}

// SetLogger sets the logger for debug output
func (s *ContactServiceImpl) SetLogger(logger *log.Logger) {
	s.logger = logger
}

// GetUserContacts returns the user's triage sequences, creating the
// skeleton document on first access. The local fallback is consulted only
// when the remote read itself failed; it is never read opportunistically.
func (s *ContactServiceImpl) GetUserContacts(ctx context.Context, userID string) (*store.UserContacts, error) {
	if userID == "" {
		return nil, fmt.Errorf("userID cannot be empty: %w", ErrValidation)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.loadDoc(ctx, userID)
	if err != nil {
		if uc, found, ferr := s.fallback.LoadContacts(ctx, userID); ferr == nil && found {
			s.logf("remote read failed for user=%s, serving local fallback: %v", userID, err)
			return uc, nil
		}
		return nil, err
	}
	uc := doc.Contacts
	return &uc, nil
}

// AddToShortlist appends the contact to the shortlist. Returns false when
// the key is already present in any sequence.
func (s *ContactServiceImpl) AddToShortlist(ctx context.Context, userID string, c store.Contact) (bool, error) {
	key := c.Key()
	if key == "" {
		return false, ErrMissingEmailKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.loadDoc(ctx, userID)
	if err != nil {
		return false, err
	}
	if doc.Contacts.FindKey(key) != "" {
		return false, nil
	}
	doc.Contacts.Append(store.SeqShortlist, c)
	if err := s.persist(ctx, userID, doc); err != nil {
		return false, err
	}
	s.notify(userID)
	return true, nil
}

// RemoveFromShortlist filters the key out of the shortlist.
func (s *ContactServiceImpl) RemoveFromShortlist(ctx context.Context, userID, emailKey string) (*Reversal, error) {
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
	removed, ok := doc.Contacts.RemoveFrom(store.SeqShortlist, key)
	if !ok {
		return nil, nil
	}
	r := s.newReversal("Removed from shortlist")
	r.add(store.SeqShortlist, removed)
	if err := s.persist(ctx, userID, doc); err != nil {
		return nil, err
	}
	s.notify(userID)
	return r, nil
}

// MoveToTrash removes the contact from shortlist and sent and appends it
// to trash.
func (s *ContactServiceImpl) MoveToTrash(ctx context.Context, userID string, c store.Contact) (*Reversal, error) {
	key := c.Key()
	if key == "" {
		return nil, ErrMissingEmailKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.loadDoc(ctx, userID)
	if err != nil {
		return nil, err
	}
	r := s.newReversal(fmt.Sprintf("Moved %s to trash", c.DisplayName()))
	mutated := trashKey(doc, key, c, r)
	if !mutated {
		return nil, nil
	}
	if err := s.persist(ctx, userID, doc); err != nil {
		return nil, err
	}
	s.notify(userID)
	return r, nil
}

// MoveToSent moves the contact out of the shortlist into sent.
func (s *ContactServiceImpl) MoveToSent(ctx context.Context, userID string, c store.Contact) (*Reversal, error) {
	key := c.Key()
	if key == "" {
		return nil, ErrMissingEmailKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.loadDoc(ctx, userID)
	if err != nil {
		return nil, err
	}
	r := s.newReversal(fmt.Sprintf("Marked %s as sent", c.DisplayName()))
	mutated := sendKey(doc, key, c, r)
	if !mutated {
		return nil, nil
	}
	if err := s.persist(ctx, userID, doc); err != nil {
		return nil, err
	}
	s.notify(userID)
	return r, nil
}

// RestoreFromTrash moves the contact out of trash back to the shortlist.
func (s *ContactServiceImpl) RestoreFromTrash(ctx context.Context, userID string, c store.Contact) (*Reversal, error) {
	key := c.Key()
	if key == "" {
		return nil, ErrMissingEmailKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.loadDoc(ctx, userID)
	if err != nil {
		return nil, err
	}
	r := s.newReversal(fmt.Sprintf("Restored %s from trash", c.DisplayName()))
	mutated := restoreKey(doc, key, c, r)
	if !mutated {
		return nil, nil
	}
	if err := s.persist(ctx, userID, doc); err != nil {
		return nil, err
	}
	s.notify(userID)
	return r, nil
}

// BulkTrash trashes every key, emitting a single notification.
func (s *ContactServiceImpl) BulkTrash(ctx context.Context, userID string, emailKeys []string) (*Reversal, error) {
	return s.bulk(ctx, userID, emailKeys, fmt.Sprintf("Trashed %d contacts", len(emailKeys)), trashKey)
}

// BulkSend moves every key from shortlist to sent. Keys already in sent
// are left alone; keys in trash are pulled out.
func (s *ContactServiceImpl) BulkSend(ctx context.Context, userID string, emailKeys []string) (*Reversal, error) {
	return s.bulk(ctx, userID, emailKeys, fmt.Sprintf("Marked %d contacts as sent", len(emailKeys)), sendKey)
}

// BulkRestore moves every key from trash back to the shortlist.
func (s *ContactServiceImpl) BulkRestore(ctx context.Context, userID string, emailKeys []string) (*Reversal, error) {
	return s.bulk(ctx, userID, emailKeys, fmt.Sprintf("Restored %d contacts", len(emailKeys)), restoreKey)
}

// BulkDeletePermanent removes keys from trash only. Keys not in trash are
// ignored.
func (s *ContactServiceImpl) BulkDeletePermanent(ctx context.Context, userID string, emailKeys []string) (*Reversal, error) {
	return s.bulk(ctx, userID, emailKeys, fmt.Sprintf("Deleted %d contacts", len(emailKeys)), deleteKey)
}

// mutator applies one key mutation to the document, recording prior
// membership into the reversal. Returns true when the document changed.
type mutator func(doc *store.UserDocument, key string, c store.Contact, r *Reversal) bool

func (s *ContactServiceImpl) bulk(ctx context.Context, userID string, emailKeys []string, description string, apply mutator) (*Reversal, error) {
	if len(emailKeys) == 0 {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.loadDoc(ctx, userID)
	if err != nil {
		return nil, err
	}
	r := s.newReversal(description)
	mutated := false
	for _, emailKey := range emailKeys {
		key := store.NormalizeEmailKey(emailKey)
		if key == "" {
			continue
		}
		if apply(doc, key, store.Contact{Email: key}, r) {
			mutated = true
		}
	}
	if !mutated {
		return nil, nil
	}
	if err := s.persist(ctx, userID, doc); err != nil {
		return nil, err
	}
	s.notify(userID)
	return r, nil
}

// trashKey removes the key from shortlist and sent and appends it to
// trash when absent.
func trashKey(doc *store.UserDocument, key string, c store.Contact, r *Reversal) bool {
	mutated := false
	for _, seq := range []string{store.SeqShortlist, store.SeqSent} {
		if removed, ok := doc.Contacts.RemoveFrom(seq, key); ok {
			r.add(seq, removed)
			c = removed
			mutated = true
		}
	}
	if doc.Contacts.FindKey(key) == "" {
		doc.Contacts.Append(store.SeqTrash, withKey(c, key))
		mutated = true
	}
	return mutated
}

// sendKey moves the key into sent from wherever it was. Disjointness wins
// over the narrow reading: a key sitting in trash is pulled out rather
// than duplicated.
func sendKey(doc *store.UserDocument, key string, c store.Contact, r *Reversal) bool {
	if doc.Contacts.FindKey(key) == store.SeqSent {
		return false
	}
	for _, seq := range []string{store.SeqShortlist, store.SeqTrash} {
		if removed, ok := doc.Contacts.RemoveFrom(seq, key); ok {
			r.add(seq, removed)
			c = removed
		}
	}
	doc.Contacts.Append(store.SeqSent, withKey(c, key))
	return true
}

// restoreKey moves the key from trash to shortlist when absent there.
func restoreKey(doc *store.UserDocument, key string, c store.Contact, r *Reversal) bool {
	removed, ok := doc.Contacts.RemoveFrom(store.SeqTrash, key)
	if ok {
		r.add(store.SeqTrash, removed)
		c = removed
	}
	appended := doc.Contacts.Append(store.SeqShortlist, withKey(c, key))
	return ok || appended
}

// deleteKey removes the key from trash only.
func deleteKey(doc *store.UserDocument, key string, _ store.Contact, r *Reversal) bool {
	removed, ok := doc.Contacts.RemoveFrom(store.SeqTrash, key)
	if ok {
		r.add(store.SeqTrash, removed)
	}
	return ok
}

func withKey(c store.Contact, key string) store.Contact {
	if c.Key() == "" {
		c.Email = key
	}
	return c
}

// ChangeTemplate updates the template tag on the shortlist entry only.
func (s *ContactServiceImpl) ChangeTemplate(ctx context.Context, userID string, c store.Contact, templateName string) error {
	key := c.Key()
	if key == "" {
		return ErrMissingEmailKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.loadDoc(ctx, userID)
	if err != nil {
		return err
	}
	mutated := false
	for i := range doc.Contacts.Shortlist {
		if doc.Contacts.Shortlist[i].Key() == key {
			doc.Contacts.Shortlist[i].Template = templateName
			mutated = true
		}
	}
	if !mutated {
		return nil
	}
	if err := s.persist(ctx, userID, doc); err != nil {
		return err
	}
	s.notify(userID)
	return nil
}

// ApplyReversal reinserts the prior membership a reversal captured
// without duplicating entries.
func (s *ContactServiceImpl) ApplyReversal(ctx context.Context, userID string, r *Reversal) error {
	if r.Empty() {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.loadDoc(ctx, userID)
	if err != nil {
		return err
	}
	for _, seq := range []string{store.SeqShortlist, store.SeqSent, store.SeqTrash} {
		for _, c := range r.Members[seq] {
			doc.Contacts.RemoveKey(c.Key())
			doc.Contacts.Append(seq, c)
		}
	}
	if err := s.persist(ctx, userID, doc); err != nil {
		return err
	}
	s.notify(userID)
	return nil
}

// loadDoc reads the document, creating the skeleton when it is missing.
func (s *ContactServiceImpl) loadDoc(ctx context.Context, userID string) (*store.UserDocument, error) {
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

// persist writes the mutated sequences through the gateway. On failure
// the in-memory state stands and a fallback write is attempted so the
// mutation survives locally.
func (s *ContactServiceImpl) persist(ctx context.Context, userID string, doc *store.UserDocument) error {
	doc.Touch(s.now())
	err := s.gateway.UpdateDoc(ctx, userID, map[string]any{
		"contacts":  doc.Contacts,
		"updatedAt": doc.UpdatedAt,
	})
	if errors.Is(err, store.ErrDocMissing) {
		err = s.gateway.SetDoc(ctx, userID, doc, false)
	}
	if err != nil {
		if ferr := s.fallback.SaveContacts(ctx, userID, &doc.Contacts); ferr != nil {
			s.logf("fallback write failed for user=%s: %v", userID, ferr)
		}
		return fmt.Errorf("persist contacts: %w", err)
	}
	return nil
}

func (s *ContactServiceImpl) newReversal(description string) *Reversal {
	return &Reversal{
		ID:          uuid.New().String(),
		Description: description,
		Timestamp:   s.now(),
		Members:     map[string][]store.Contact{},
	}
}

func (s *ContactServiceImpl) notify(userID string) {
	if s.bus != nil {
		s.bus.PublishContactsUpdated(bus.ContactsUpdated{UserID: userID})
	}
}

func (s *ContactServiceImpl) logf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}
