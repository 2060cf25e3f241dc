package services

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jvaldes/scout-tui/internal/bus"
	"github.com/jvaldes/scout-tui/internal/cache"
	"github.com/jvaldes/scout-tui/internal/store"
)

func newContactFixture(t *testing.T) (*ContactServiceImpl, *fakeGateway, *cache.Store) {
	t.Helper()
	gw := newFakeGateway()
	fallback, err := cache.Open(context.Background(), filepath.Join(t.TempDir(), "scout.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = fallback.Close() })
	svc := NewContactService(gw, fallback, bus.New())
	return svc, gw, fallback
}

func TestAddToShortlist_EmptyDocument(t *testing.T) {
	svc, gw, _ := newContactFixture(t)
	ctx := context.Background()

	added, err := svc.AddToShortlist(ctx, "u1", store.Contact{Email: "a@b.com", Name: "A"})
	require.NoError(t, err)
	assert.True(t, added)

	doc := gw.stored("u1")
	require.NotNil(t, doc)
	require.Len(t, doc.Contacts.Shortlist, 1)
	assert.Equal(t, "a@b.com", doc.Contacts.Shortlist[0].Email)
	assert.Equal(t, "A", doc.Contacts.Shortlist[0].Name)
	assert.NotEmpty(t, doc.UpdatedAt)
}

func TestAddToShortlist_RefreshesUpdatedAt(t *testing.T) {
	svc, gw, _ := newContactFixture(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }
	_, err := svc.AddToShortlist(ctx, "u1", store.Contact{Email: "a@b.com"})
	require.NoError(t, err)
	first := gw.stored("u1").UpdatedAt

	svc.now = func() time.Time { return base.Add(time.Hour) }
	_, err = svc.AddToShortlist(ctx, "u1", store.Contact{Email: "b@b.com"})
	require.NoError(t, err)

	assert.NotEqual(t, first, gw.stored("u1").UpdatedAt)
}

func TestAddToShortlist_DuplicateAnywhereIsNoOp(t *testing.T) {
	svc, _, _ := newContactFixture(t)
	ctx := context.Background()

	c := store.Contact{Email: "a@b.com"}
	added, err := svc.AddToShortlist(ctx, "u1", c)
	require.NoError(t, err)
	require.True(t, added)

	added, err = svc.AddToShortlist(ctx, "u1", c)
	require.NoError(t, err)
	assert.False(t, added)

	// Also a no-op when the key lives in another sequence.
	_, err = svc.MoveToTrash(ctx, "u1", c)
	require.NoError(t, err)
	added, err = svc.AddToShortlist(ctx, "u1", c)
	require.NoError(t, err)
	assert.False(t, added)
}

func TestAddToShortlist_KeyNormalization(t *testing.T) {
	svc, _, _ := newContactFixture(t)
	ctx := context.Background()

	added, err := svc.AddToShortlist(ctx, "u1", store.Contact{Email: "A@B.com"})
	require.NoError(t, err)
	require.True(t, added)

	added, err = svc.AddToShortlist(ctx, "u1", store.Contact{Email: "  a@b.com "})
	require.NoError(t, err)
	assert.False(t, added, "same key after normalization")
}

func TestAddToShortlist_MissingKey(t *testing.T) {
	svc, _, _ := newContactFixture(t)

	_, err := svc.AddToShortlist(context.Background(), "u1", store.Contact{Name: "no email"})
	assert.ErrorIs(t, err, ErrMissingEmailKey)
}

func TestMoveToTrash_FromShortlist(t *testing.T) {
	svc, gw, _ := newContactFixture(t)
	ctx := context.Background()

	c := store.Contact{Email: "x@y"}
	_, err := svc.AddToShortlist(ctx, "u1", c)
	require.NoError(t, err)

	r, err := svc.MoveToTrash(ctx, "u1", c)
	require.NoError(t, err)
	require.NotNil(t, r)

	doc := gw.stored("u1")
	assert.Empty(t, doc.Contacts.Shortlist)
	require.Len(t, doc.Contacts.Trash, 1)
	assert.Equal(t, "x@y", doc.Contacts.Trash[0].Email)
}

func TestMoveToTrash_UnknownKeyStillLands(t *testing.T) {
	svc, gw, _ := newContactFixture(t)

	r, err := svc.MoveToTrash(context.Background(), "u1", store.Contact{Email: "new@b.com"})
	require.NoError(t, err)
	require.NotNil(t, r)

	doc := gw.stored("u1")
	require.Len(t, doc.Contacts.Trash, 1)
}

func TestMoveToSent_PullsFromTrash(t *testing.T) {
	svc, gw, _ := newContactFixture(t)
	ctx := context.Background()

	c := store.Contact{Email: "a@b.com"}
	_, err := svc.MoveToTrash(ctx, "u1", c)
	require.NoError(t, err)

	r, err := svc.MoveToSent(ctx, "u1", c)
	require.NoError(t, err)
	require.NotNil(t, r)

	doc := gw.stored("u1")
	assert.Empty(t, doc.Contacts.Trash)
	require.Len(t, doc.Contacts.Sent, 1)
}

func TestMoveToSent_AlreadySentIsNoOp(t *testing.T) {
	svc, _, _ := newContactFixture(t)
	ctx := context.Background()

	c := store.Contact{Email: "a@b.com"}
	_, err := svc.MoveToSent(ctx, "u1", c)
	require.NoError(t, err)

	r, err := svc.MoveToSent(ctx, "u1", c)
	require.NoError(t, err)
	assert.Nil(t, r)
}

func TestRestoreFromTrash(t *testing.T) {
	svc, gw, _ := newContactFixture(t)
	ctx := context.Background()

	c := store.Contact{Email: "a@b.com", Name: "Ada"}
	_, err := svc.MoveToTrash(ctx, "u1", c)
	require.NoError(t, err)

	r, err := svc.RestoreFromTrash(ctx, "u1", c)
	require.NoError(t, err)
	require.NotNil(t, r)

	doc := gw.stored("u1")
	assert.Empty(t, doc.Contacts.Trash)
	require.Len(t, doc.Contacts.Shortlist, 1)
	assert.Equal(t, "Ada", doc.Contacts.Shortlist[0].Name)
}

func TestBulkTrash_SingleNotification(t *testing.T) {
	gw := newFakeGateway()
	eventBus := bus.New()
	svc := NewContactService(gw, nil, eventBus)
	ctx := context.Background()

	_, err := svc.AddToShortlist(ctx, "u1", store.Contact{Email: "a@b.com"})
	require.NoError(t, err)
	_, err = svc.AddToShortlist(ctx, "u1", store.Contact{Email: "b@b.com"})
	require.NoError(t, err)

	updates, stop := eventBus.SubscribeContacts()
	defer stop()

	r, err := svc.BulkTrash(ctx, "u1", []string{"a@b.com", "b@b.com"})
	require.NoError(t, err)
	require.NotNil(t, r)

	doc := gw.stored("u1")
	assert.Empty(t, doc.Contacts.Shortlist)
	assert.Len(t, doc.Contacts.Trash, 2)

	assert.Len(t, updates, 1, "bulk operation publishes exactly once")
}

func TestBulkDeletePermanent_OnlyTouchesTrash(t *testing.T) {
	svc, gw, _ := newContactFixture(t)
	ctx := context.Background()

	_, err := svc.AddToShortlist(ctx, "u1", store.Contact{Email: "keep@b.com"})
	require.NoError(t, err)
	_, err = svc.MoveToTrash(ctx, "u1", store.Contact{Email: "gone@b.com"})
	require.NoError(t, err)

	r, err := svc.BulkDeletePermanent(ctx, "u1", []string{"gone@b.com", "keep@b.com"})
	require.NoError(t, err)
	require.NotNil(t, r)

	doc := gw.stored("u1")
	assert.Empty(t, doc.Contacts.Trash)
	assert.Len(t, doc.Contacts.Shortlist, 1, "shortlist entry not deletable")
}

func TestBulk_NoOpReturnsNilReversal(t *testing.T) {
	svc, _, _ := newContactFixture(t)

	r, err := svc.BulkRestore(context.Background(), "u1", []string{"missing@b.com"})
	require.NoError(t, err)
	assert.Nil(t, r)

	r, err = svc.BulkTrash(context.Background(), "u1", nil)
	require.NoError(t, err)
	assert.Nil(t, r)
}

func TestApplyReversal_UndoRoundTrip(t *testing.T) {
	svc, gw, _ := newContactFixture(t)
	ctx := context.Background()

	c := store.Contact{Email: "a@b.com", Name: "Ada", Company: "Acme"}
	_, err := svc.AddToShortlist(ctx, "u1", c)
	require.NoError(t, err)

	r, err := svc.MoveToTrash(ctx, "u1", c)
	require.NoError(t, err)
	require.NotNil(t, r)

	require.NoError(t, svc.ApplyReversal(ctx, "u1", r))

	doc := gw.stored("u1")
	assert.Empty(t, doc.Contacts.Trash)
	require.Len(t, doc.Contacts.Shortlist, 1)
	assert.Equal(t, "Acme", doc.Contacts.Shortlist[0].Company, "prior state restored in full")
}

func TestChangeTemplate_ShortlistOnly(t *testing.T) {
	svc, gw, _ := newContactFixture(t)
	ctx := context.Background()

	c := store.Contact{Email: "a@b.com"}
	_, err := svc.AddToShortlist(ctx, "u1", c)
	require.NoError(t, err)

	require.NoError(t, svc.ChangeTemplate(ctx, "u1", c, "intro"))
	assert.Equal(t, "intro", gw.stored("u1").Contacts.Shortlist[0].Template)

	// Sent entries are not retagged.
	_, err = svc.MoveToSent(ctx, "u1", c)
	require.NoError(t, err)
	require.NoError(t, svc.ChangeTemplate(ctx, "u1", c, "followup"))
	assert.Equal(t, "intro", gw.stored("u1").Contacts.Sent[0].Template)
}

func TestGetUserContacts_CreatesSkeleton(t *testing.T) {
	svc, gw, _ := newContactFixture(t)

	uc, err := svc.GetUserContacts(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, uc.Shortlist)

	doc := gw.stored("u1")
	require.NotNil(t, doc, "skeleton written on first access")
	assert.NotEmpty(t, doc.CreatedAt)
}

func TestGetUserContacts_FallbackOnRemoteFailure(t *testing.T) {
	svc, gw, fallback := newContactFixture(t)
	ctx := context.Background()

	saved := &store.UserContacts{Shortlist: []store.Contact{{Email: "local@b.com"}}}
	require.NoError(t, fallback.SaveContacts(ctx, "u1", saved))

	gw.failReads = true

	uc, err := svc.GetUserContacts(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, uc.Shortlist, 1)
	assert.Equal(t, "local@b.com", uc.Shortlist[0].Email)
}

func TestPersist_WriteFailureFallsBackLocally(t *testing.T) {
	svc, gw, fallback := newContactFixture(t)
	ctx := context.Background()

	_, err := svc.AddToShortlist(ctx, "u1", store.Contact{Email: "a@b.com"})
	require.NoError(t, err)

	gw.failWrites = true
	_, err = svc.MoveToTrash(ctx, "u1", store.Contact{Email: "a@b.com"})
	require.Error(t, err)

	uc, found, ferr := fallback.LoadContacts(ctx, "u1")
	require.NoError(t, ferr)
	require.True(t, found, "mutation preserved locally")
	assert.Len(t, uc.Trash, 1)
}
