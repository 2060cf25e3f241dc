package services

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jvaldes/scout-tui/internal/bus"
	"github.com/jvaldes/scout-tui/internal/cache"
	"github.com/jvaldes/scout-tui/internal/store"
)

func newUndoFixture(t *testing.T) (*UndoServiceImpl, *ContactServiceImpl, *fakeGateway) {
	t.Helper()
	gw := newFakeGateway()
	fallback, err := cache.Open(context.Background(), filepath.Join(t.TempDir(), "scout.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = fallback.Close() })
	contacts := NewContactService(gw, fallback, bus.New())
	return NewUndoService(contacts), contacts, gw
}

func TestUndoLast_RestoresTrashedContact(t *testing.T) {
	undo, contacts, gw := newUndoFixture(t)
	ctx := context.Background()

	c := store.Contact{Email: "a@b.com", Name: "Ada"}
	_, err := contacts.AddToShortlist(ctx, "u1", c)
	require.NoError(t, err)

	r, err := contacts.MoveToTrash(ctx, "u1", c)
	require.NoError(t, err)
	require.NoError(t, undo.RecordReversal(r))

	assert.True(t, undo.HasUndoableAction())
	assert.Equal(t, r.Description, undo.GetUndoDescription())

	result, err := undo.UndoLast(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, r.Description, result.Description)

	doc := gw.stored("u1")
	assert.Empty(t, doc.Contacts.Trash)
	require.Len(t, doc.Contacts.Shortlist, 1)
}

func TestUndoLast_SingleLevel(t *testing.T) {
	undo, contacts, _ := newUndoFixture(t)
	ctx := context.Background()

	_, err := contacts.AddToShortlist(ctx, "u1", store.Contact{Email: "a@b.com"})
	require.NoError(t, err)
	r, err := contacts.MoveToTrash(ctx, "u1", store.Contact{Email: "a@b.com"})
	require.NoError(t, err)
	require.NoError(t, undo.RecordReversal(r))

	result, err := undo.UndoLast(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, result.Success)

	// The reversal is consumed; a second undo has nothing.
	result, err = undo.UndoLast(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.False(t, undo.HasUndoableAction())
}

func TestRecordReversal_IgnoresEmpty(t *testing.T) {
	undo, _, _ := newUndoFixture(t)

	require.NoError(t, undo.RecordReversal(nil))
	assert.False(t, undo.HasUndoableAction())

	require.NoError(t, undo.RecordReversal(&Reversal{Description: "nothing captured"}))
	assert.False(t, undo.HasUndoableAction())
	assert.Equal(t, "", undo.GetUndoDescription())
}

func TestRecordReversal_NewerReplacesOlder(t *testing.T) {
	undo, contacts, _ := newUndoFixture(t)
	ctx := context.Background()

	_, err := contacts.AddToShortlist(ctx, "u1", store.Contact{Email: "a@b.com"})
	require.NoError(t, err)
	_, err = contacts.AddToShortlist(ctx, "u1", store.Contact{Email: "b@b.com"})
	require.NoError(t, err)

	r1, err := contacts.MoveToTrash(ctx, "u1", store.Contact{Email: "a@b.com"})
	require.NoError(t, err)
	r2, err := contacts.MoveToSent(ctx, "u1", store.Contact{Email: "b@b.com"})
	require.NoError(t, err)

	require.NoError(t, undo.RecordReversal(r1))
	require.NoError(t, undo.RecordReversal(r2))

	assert.Equal(t, r2.Description, undo.GetUndoDescription())
}

func TestClearUndoHistory(t *testing.T) {
	undo, contacts, _ := newUndoFixture(t)
	ctx := context.Background()

	_, err := contacts.AddToShortlist(ctx, "u1", store.Contact{Email: "a@b.com"})
	require.NoError(t, err)
	r, err := contacts.MoveToTrash(ctx, "u1", store.Contact{Email: "a@b.com"})
	require.NoError(t, err)
	require.NoError(t, undo.RecordReversal(r))

	require.NoError(t, undo.ClearUndoHistory())
	assert.False(t, undo.HasUndoableAction())
}
