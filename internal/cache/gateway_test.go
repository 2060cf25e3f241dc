package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jvaldes/scout-tui/internal/store"
)

func TestGateway_GetDocMissing(t *testing.T) {
	s := openTestStore(t)

	doc, found, err := s.GetDoc(context.Background(), "nobody")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, doc)
}

func TestGateway_SetAndGetDoc(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	doc := store.NewUserDocument(time.Now())
	doc.Contacts.Shortlist = []store.Contact{{Email: "a@b.com", Name: "Ada"}}
	require.NoError(t, s.SetDoc(ctx, "u1", doc, false))

	loaded, found, err := s.GetDoc(ctx, "u1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, doc.Contacts.Shortlist, loaded.Contacts.Shortlist)
}

func TestGateway_SetDocMergePreservesSiblings(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	doc := store.NewUserDocument(time.Now())
	doc.Contacts.Shortlist = []store.Contact{{Email: "a@b.com"}}
	doc.Profile = store.Profile{Name: "Ada"}
	require.NoError(t, s.SetDoc(ctx, "u1", doc, false))

	overlay := store.NewUserDocument(time.Now())
	overlay.Profile = store.Profile{Name: "Ada Lovelace", School: "Somerville"}
	require.NoError(t, s.SetDoc(ctx, "u1", overlay, true))

	loaded, _, err := s.GetDoc(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", loaded.Profile.Name)
	assert.Equal(t, "Somerville", loaded.Profile.School)
}

func TestGateway_UpdateDocDottedPaths(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	doc := store.NewUserDocument(time.Now())
	doc.Contacts.Shortlist = []store.Contact{{Email: "a@b.com"}}
	doc.Contacts.Sent = []store.Contact{{Email: "s@b.com"}}
	require.NoError(t, s.SetDoc(ctx, "u1", doc, false))

	err := s.UpdateDoc(ctx, "u1", map[string]any{
		"contacts.trash": []store.Contact{{Email: "t@b.com"}},
		"updatedAt":      "2025-07-01T00:00:00Z",
	})
	require.NoError(t, err)

	loaded, _, err := s.GetDoc(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, loaded.Contacts.Shortlist, 1)
	assert.Len(t, loaded.Contacts.Sent, 1)
	require.Len(t, loaded.Contacts.Trash, 1)
	assert.Equal(t, "t@b.com", loaded.Contacts.Trash[0].Email)
	assert.Equal(t, "2025-07-01T00:00:00Z", loaded.UpdatedAt)
}

func TestGateway_UpdateDocMissingDocument(t *testing.T) {
	s := openTestStore(t)

	err := s.UpdateDoc(context.Background(), "nobody", map[string]any{"updatedAt": "now"})
	assert.True(t, errors.Is(err, store.ErrDocMissing))
}
