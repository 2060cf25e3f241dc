package services

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jvaldes/scout-tui/internal/cache"
)

func newDraftFixture(t *testing.T) (*DraftServiceImpl, *fakeGateway, *cache.Store) {
	t.Helper()
	gw := newFakeGateway()
	fallback, err := cache.Open(context.Background(), filepath.Join(t.TempDir(), "scout.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = fallback.Close() })
	return NewDraftService(gw, fallback), gw, fallback
}

func TestSaveDraft_RoundTrip(t *testing.T) {
	svc, _, _ := newDraftFixture(t)
	ctx := context.Background()

	saved, err := svc.SaveDraft(ctx, "u1", "A@B.com", "Hello", "Body text")
	require.NoError(t, err)
	assert.Equal(t, "Hello", saved.Subject)
	assert.NotEmpty(t, saved.UpdatedAt)

	drafts, err := svc.GetDrafts(ctx, "u1")
	require.NoError(t, err)
	draft, ok := drafts["a@b.com"]
	require.True(t, ok, "key normalized to lowercase")
	assert.Equal(t, "Body text", draft.Body)
}

func TestSaveDraft_OverwritesExisting(t *testing.T) {
	svc, _, _ := newDraftFixture(t)
	ctx := context.Background()

	_, err := svc.SaveDraft(ctx, "u1", "a@b.com", "v1", "old")
	require.NoError(t, err)
	saved, err := svc.SaveDraft(ctx, "u1", "a@b.com", "v2", "new")
	require.NoError(t, err)
	assert.Equal(t, "v2", saved.Subject)

	drafts, err := svc.GetDrafts(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, "new", drafts["a@b.com"].Body)
}

func TestSaveDraft_PreservesOtherEntries(t *testing.T) {
	svc, _, _ := newDraftFixture(t)
	ctx := context.Background()

	_, err := svc.SaveDraft(ctx, "u1", "one@b.com", "s1", "b1")
	require.NoError(t, err)
	_, err = svc.SaveDraft(ctx, "u1", "two@b.com", "s2", "b2")
	require.NoError(t, err)

	drafts, err := svc.GetDrafts(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, drafts, 2)
}

func TestSaveDraft_MissingKey(t *testing.T) {
	svc, _, _ := newDraftFixture(t)

	_, err := svc.SaveDraft(context.Background(), "u1", "  ", "s", "b")
	assert.ErrorIs(t, err, ErrMissingEmailKey)
}

func TestDeleteDraft(t *testing.T) {
	svc, _, _ := newDraftFixture(t)
	ctx := context.Background()

	_, err := svc.SaveDraft(ctx, "u1", "a@b.com", "s", "b")
	require.NoError(t, err)
	require.NoError(t, svc.DeleteDraft(ctx, "u1", "a@b.com"))

	drafts, err := svc.GetDrafts(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, drafts)

	// Deleting an absent draft is a no-op.
	require.NoError(t, svc.DeleteDraft(ctx, "u1", "a@b.com"))
}

func TestGetDrafts_FallbackOnRemoteFailure(t *testing.T) {
	svc, gw, fallback := newDraftFixture(t)
	ctx := context.Background()

	_, err := svc.SaveDraft(ctx, "u1", "a@b.com", "s", "b")
	require.NoError(t, err)

	// Force a failed remote write so the drafts land in the fallback.
	gw.failWrites = true
	_, err = svc.SaveDraft(ctx, "u1", "c@d.com", "s2", "b2")
	require.Error(t, err)

	gw.failReads = true
	drafts, err := svc.GetDrafts(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, drafts, 2, "local fallback served after remote failure")

	_, found, err := fallback.LoadDrafts(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, found)
}
