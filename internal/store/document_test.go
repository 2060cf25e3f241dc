package store

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContact_UnmarshalAliases(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected Contact
	}{
		{
			name:     "canonical_fields",
			input:    `{"email":"a@b.com","company":"Acme","industry":"Tech"}`,
			expected: Contact{Email: "a@b.com", Company: "Acme", Industry: "Tech"},
		},
		{
			name:     "value_alias_for_email",
			input:    `{"value":"a@b.com"}`,
			expected: Contact{Email: "a@b.com"},
		},
		{
			name:     "value_wins_over_email",
			input:    `{"value":"v@b.com","email":"e@b.com"}`,
			expected: Contact{Email: "v@b.com"},
		},
		{
			name:     "organization_alias_for_company",
			input:    `{"email":"a@b.com","organization":"Acme"}`,
			expected: Contact{Email: "a@b.com", Company: "Acme"},
		},
		{
			name:     "department_alias_for_industry",
			input:    `{"email":"a@b.com","department":"Engineering"}`,
			expected: Contact{Email: "a@b.com", Industry: "Engineering"},
		},
		{
			name:     "ai_summary_alias",
			input:    `{"email":"a@b.com","ai_summary":"works on infra"}`,
			expected: Contact{Email: "a@b.com", Summary: "works on infra"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c Contact
			require.NoError(t, json.Unmarshal([]byte(tt.input), &c))
			assert.Equal(t, tt.expected, c)
		})
	}
}

func TestNormalizeEmailKey(t *testing.T) {
	assert.Equal(t, "a@b.com", NormalizeEmailKey("  A@B.COM "))
	assert.Equal(t, "", NormalizeEmailKey("   "))
}

func TestContact_DisplayName(t *testing.T) {
	assert.Equal(t, "Ada", Contact{Name: "Ada", Email: "a@b.com"}.DisplayName())
	assert.Equal(t, "Ada Lovelace", Contact{FirstName: "Ada", LastName: "Lovelace"}.DisplayName())
	assert.Equal(t, "a@b.com", Contact{Email: "a@b.com"}.DisplayName())
}

func TestUserContacts_AppendRejectsDuplicateAcrossSequences(t *testing.T) {
	uc := &UserContacts{}
	c := Contact{Email: "a@b.com"}

	assert.True(t, uc.Append(SeqShortlist, c))
	assert.False(t, uc.Append(SeqSent, c), "key already lives in shortlist")
	assert.False(t, uc.Append(SeqShortlist, c))

	assert.Len(t, uc.Shortlist, 1)
	assert.Empty(t, uc.Sent)
}

func TestUserContacts_AppendRejectsMissingKey(t *testing.T) {
	uc := &UserContacts{}
	assert.False(t, uc.Append(SeqShortlist, Contact{Name: "no email"}))
}

func TestUserContacts_RemoveKeyFromAnySequence(t *testing.T) {
	uc := &UserContacts{
		Shortlist: []Contact{{Email: "a@b.com"}},
		Sent:      []Contact{{Email: "b@b.com"}},
	}

	removed, found := uc.RemoveKey("b@b.com")
	assert.True(t, found)
	assert.Equal(t, "b@b.com", removed.Email)
	assert.Empty(t, uc.Sent)
	assert.Len(t, uc.Shortlist, 1)

	_, found = uc.RemoveKey("missing@b.com")
	assert.False(t, found)
}

func TestUserContacts_FindKey(t *testing.T) {
	uc := &UserContacts{
		Shortlist: []Contact{{Email: "a@b.com"}},
		Trash:     []Contact{{Email: "t@b.com"}},
	}

	assert.Equal(t, SeqShortlist, uc.FindKey("a@b.com"))
	assert.Equal(t, SeqTrash, uc.FindKey("t@b.com"))
	assert.Equal(t, "", uc.FindKey("x@b.com"))
}

func TestNewUserDocument_Skeleton(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	doc := NewUserDocument(now)

	assert.NotNil(t, doc.Contacts.Shortlist)
	assert.NotNil(t, doc.Contacts.Sent)
	assert.NotNil(t, doc.Contacts.Trash)
	assert.NotNil(t, doc.EmailDrafts)
	assert.NotNil(t, doc.Templates)
	assert.NotNil(t, doc.SearchHistory)
	assert.Equal(t, "2025-06-01T12:00:00Z", doc.CreatedAt)
	assert.Equal(t, doc.CreatedAt, doc.UpdatedAt)

	doc.Touch(now.Add(time.Hour))
	assert.Equal(t, "2025-06-01T13:00:00Z", doc.UpdatedAt)
}
