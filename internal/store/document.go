// Package store defines the per-user document model and the gateway
// contract used to persist it. The document is the single source of truth
// for a user's outreach state: triage sequences, templates, profile,
// email drafts, search history and behavior signals.
package store

import (
	"encoding/json"
	"strings"
	"time"
)

// Sequence names inside UserContacts.
const (
	SeqShortlist = "shortlist"
	SeqSent      = "sent"
	SeqTrash     = "trash"
)

// Contact is the canonical contact record. Inbound contacts arrive with
// several alias field names (value/email, company/organization, ...);
// UnmarshalJSON folds them into the canonical form so only this shape is
// carried internally.
type Contact struct {
	Email     string `json:"email,omitempty" firestore:"email,omitempty"`
	FirstName string `json:"first_name,omitempty" firestore:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty" firestore:"last_name,omitempty"`
	Name      string `json:"name,omitempty" firestore:"name,omitempty"`
	Company   string `json:"company,omitempty" firestore:"company,omitempty"`
	Position  string `json:"position,omitempty" firestore:"position,omitempty"`
	Industry  string `json:"industry,omitempty" firestore:"industry,omitempty"`
	LinkedIn  string `json:"linkedin,omitempty" firestore:"linkedin,omitempty"`
	Summary   string `json:"summary,omitempty" firestore:"summary,omitempty"`
	Template  string `json:"template,omitempty" firestore:"template,omitempty"`
}

type contactAliases struct {
	Email        string `json:"email"`
	Value        string `json:"value"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Name         string `json:"name"`
	Company      string `json:"company"`
	Organization string `json:"organization"`
	Position     string `json:"position"`
	Industry     string `json:"industry"`
	Department   string `json:"department"`
	LinkedIn     string `json:"linkedin"`
	Summary      string `json:"summary"`
	AISummary    string `json:"ai_summary"`
	Template     string `json:"template"`
}

// UnmarshalJSON normalizes alias field names at the boundary.
func (c *Contact) UnmarshalJSON(b []byte) error {
	var a contactAliases
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	*c = Contact{
		Email:     firstNonEmpty(a.Value, a.Email),
		FirstName: a.FirstName,
		LastName:  a.LastName,
		Name:      a.Name,
		Company:   firstNonEmpty(a.Company, a.Organization),
		Position:  a.Position,
		Industry:  firstNonEmpty(a.Industry, a.Department),
		LinkedIn:  a.LinkedIn,
		Summary:   firstNonEmpty(a.AISummary, a.Summary),
		Template:  a.Template,
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// NormalizeEmailKey produces the canonical identity key for an email
// address. Contacts without a usable key are unidentifiable.
func NormalizeEmailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Key returns the contact's identity key, or "" when unidentifiable.
func (c Contact) Key() string {
	return NormalizeEmailKey(c.Email)
}

// DisplayName returns a human-friendly label for the contact.
func (c Contact) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	full := strings.TrimSpace(c.FirstName + " " + c.LastName)
	if full != "" {
		return full
	}
	return c.Email
}

// UserContacts holds the three disjoint triage sequences. For any email
// key, at most one sequence contains it; ordering is insertion order.
type UserContacts struct {
	Shortlist []Contact `json:"shortlist" firestore:"shortlist"`
	Sent      []Contact `json:"sent" firestore:"sent"`
	Trash     []Contact `json:"trash" firestore:"trash"`
}

// Sequence returns a pointer to the named sequence, or nil.
func (uc *UserContacts) Sequence(name string) *[]Contact {
	switch name {
	case SeqShortlist:
		return &uc.Shortlist
	case SeqSent:
		return &uc.Sent
	case SeqTrash:
		return &uc.Trash
	}
	return nil
}

// FindKey reports which sequence holds the key, or "".
func (uc *UserContacts) FindKey(key string) string {
	for _, name := range []string{SeqShortlist, SeqSent, SeqTrash} {
		for _, c := range *uc.Sequence(name) {
			if c.Key() == key {
				return name
			}
		}
	}
	return ""
}

// RemoveKey deletes the key from every sequence and returns the removed
// contact (zero value when absent).
func (uc *UserContacts) RemoveKey(key string) (Contact, bool) {
	var removed Contact
	found := false
	for _, name := range []string{SeqShortlist, SeqSent, SeqTrash} {
		seq := uc.Sequence(name)
		out := (*seq)[:0]
		for _, c := range *seq {
			if c.Key() == key {
				removed = c
				found = true
				continue
			}
			out = append(out, c)
		}
		*seq = out
	}
	return removed, found
}

// RemoveFrom deletes the key from one sequence only.
func (uc *UserContacts) RemoveFrom(name, key string) (Contact, bool) {
	seq := uc.Sequence(name)
	if seq == nil {
		return Contact{}, false
	}
	var removed Contact
	found := false
	out := (*seq)[:0]
	for _, c := range *seq {
		if c.Key() == key {
			removed = c
			found = true
			continue
		}
		out = append(out, c)
	}
	*seq = out
	return removed, found
}

// Append adds the contact to the named sequence unless its key already
// appears in any sequence. Returns false on the no-op.
func (uc *UserContacts) Append(name string, c Contact) bool {
	key := c.Key()
	if key == "" {
		return false
	}
	if uc.FindKey(key) != "" {
		return false
	}
	seq := uc.Sequence(name)
	if seq == nil {
		return false
	}
	*seq = append(*seq, c)
	return true
}

// EmailDraft is a per-contact draft, keyed by contact email.
type EmailDraft struct {
	Subject   string `json:"subject" firestore:"subject"`
	Body      string `json:"body" firestore:"body"`
	UpdatedAt string `json:"updatedAt" firestore:"updatedAt"`
}

// EmailTemplate is a reusable outreach template with placeholders.
type EmailTemplate struct {
	Name    string `json:"name" firestore:"name"`
	Subject string `json:"subject" firestore:"subject"`
	Body    string `json:"body" firestore:"body"`
}

// Profile is the user's own profile data used for personalization.
type Profile struct {
	Name       string   `json:"name,omitempty" firestore:"name,omitempty"`
	Email      string   `json:"email,omitempty" firestore:"email,omitempty"`
	School     string   `json:"school,omitempty" firestore:"school,omitempty"`
	Industries []string `json:"industries,omitempty" firestore:"industries,omitempty"`
	Bio        string   `json:"bio,omitempty" firestore:"bio,omitempty"`
	ResumeName string   `json:"resumeName,omitempty" firestore:"resumeName,omitempty"`
	ResumeData string   `json:"resumeData,omitempty" firestore:"resumeData,omitempty"`
}

// SearchHistoryEntry is one logged search query with a result snapshot.
type SearchHistoryEntry struct {
	ID          string    `json:"id" firestore:"id"`
	Query       string    `json:"query" firestore:"query"`
	Contacts    []Contact `json:"contacts" firestore:"contacts"`
	ResultCount int       `json:"resultCount" firestore:"resultCount"`
	Timestamp   string    `json:"timestamp" firestore:"timestamp"`
	CreatedAt   string    `json:"createdAt" firestore:"createdAt"`
}

// Behavior accumulates lightweight usage signals.
type Behavior struct {
	SearchHistory    []string `json:"searchHistory" firestore:"searchHistory"`
	AcceptedContacts []string `json:"acceptedContacts" firestore:"acceptedContacts"`
	RejectedContacts []string `json:"rejectedContacts" firestore:"rejectedContacts"`
	LastActivity     string   `json:"lastActivity,omitempty" firestore:"lastActivity,omitempty"`
}

// UserDocument is the single per-user record in the remote store.
type UserDocument struct {
	Email         string                `json:"email,omitempty" firestore:"email,omitempty"`
	DisplayName   string                `json:"displayName,omitempty" firestore:"displayName,omitempty"`
	PhotoURL      string                `json:"photoURL,omitempty" firestore:"photoURL,omitempty"`
	EmailVerified bool                  `json:"emailVerified" firestore:"emailVerified"`
	Contacts      UserContacts          `json:"contacts" firestore:"contacts"`
	Templates     []EmailTemplate       `json:"templates" firestore:"templates"`
	Profile       Profile               `json:"profile" firestore:"profile"`
	EmailDrafts   map[string]EmailDraft `json:"emailDrafts" firestore:"emailDrafts"`
	SearchHistory []SearchHistoryEntry  `json:"searchHistory" firestore:"searchHistory"`
	Behavior      Behavior              `json:"behavior" firestore:"behavior"`
	GmailConnected bool                 `json:"gmailConnected" firestore:"gmailConnected"`
	GmailEmail     string               `json:"gmailEmail,omitempty" firestore:"gmailEmail,omitempty"`
	CreatedAt      string               `json:"createdAt" firestore:"createdAt"`
	UpdatedAt      string               `json:"updatedAt" firestore:"updatedAt"`
}

// NewUserDocument returns the skeleton created on first sign-in.
func NewUserDocument(now time.Time) *UserDocument {
	ts := now.UTC().Format(time.RFC3339)
	return &UserDocument{
		Contacts: UserContacts{
			Shortlist: []Contact{},
			Sent:      []Contact{},
			Trash:     []Contact{},
		},
		Templates:   []EmailTemplate{},
		Profile:     Profile{},
		EmailDrafts: map[string]EmailDraft{},
		SearchHistory: []SearchHistoryEntry{},
		Behavior: Behavior{
			SearchHistory:    []string{},
			AcceptedContacts: []string{},
			RejectedContacts: []string{},
		},
		CreatedAt: ts,
		UpdatedAt: ts,
	}
}

// Touch refreshes the document's updatedAt stamp.
func (d *UserDocument) Touch(now time.Time) {
	d.UpdatedAt = now.UTC().Format(time.RFC3339)
}
