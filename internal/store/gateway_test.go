package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyFieldPaths_DottedPathPreservesSiblings(t *testing.T) {
	m := map[string]any{
		"contacts": map[string]any{
			"shortlist": []any{"keep"},
			"sent":      []any{"keep too"},
		},
	}

	ApplyFieldPaths(m, map[string]any{"contacts.trash": []any{"new"}})

	contacts := m["contacts"].(map[string]any)
	assert.Equal(t, []any{"keep"}, contacts["shortlist"])
	assert.Equal(t, []any{"keep too"}, contacts["sent"])
	assert.Equal(t, []any{"new"}, contacts["trash"])
}

func TestApplyFieldPaths_CreatesIntermediateMaps(t *testing.T) {
	m := map[string]any{}

	ApplyFieldPaths(m, map[string]any{"a.b.c": "leaf"})

	a := m["a"].(map[string]any)
	b := a["b"].(map[string]any)
	assert.Equal(t, "leaf", b["c"])
}

func TestApplyFieldPaths_NormalizesStructValues(t *testing.T) {
	m := map[string]any{}

	ApplyFieldPaths(m, map[string]any{
		"contacts": UserContacts{Shortlist: []Contact{{Email: "a@b.com"}}},
	})

	contacts, ok := m["contacts"].(map[string]any)
	require.True(t, ok, "struct value should become a map")
	shortlist := contacts["shortlist"].([]any)
	require.Len(t, shortlist, 1)
	assert.Equal(t, "a@b.com", shortlist[0].(map[string]any)["email"])
}

func TestDocMapRoundTrip(t *testing.T) {
	doc := NewUserDocument(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	doc.Contacts.Shortlist = []Contact{{Email: "a@b.com", Name: "Ada", Company: "Acme"}}
	doc.EmailDrafts["a@b.com"] = EmailDraft{Subject: "Hi", Body: "Hello", UpdatedAt: doc.CreatedAt}
	doc.Templates = []EmailTemplate{{Name: "intro", Subject: "s", Body: "b"}}

	m, err := DocToMap(doc)
	require.NoError(t, err)
	back, err := DocFromMap(m)
	require.NoError(t, err)

	assert.Equal(t, doc.Contacts.Shortlist, back.Contacts.Shortlist)
	assert.Equal(t, doc.EmailDrafts, back.EmailDrafts)
	assert.Equal(t, doc.Templates, back.Templates)
	assert.Equal(t, doc.UpdatedAt, back.UpdatedAt)
}
