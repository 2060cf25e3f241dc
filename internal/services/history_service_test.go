package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jvaldes/scout-tui/internal/store"
)

func TestSaveSearchHistory_PrependsNewestFirst(t *testing.T) {
	svc := NewHistoryService(newFakeGateway())
	ctx := context.Background()

	require.NoError(t, svc.SaveSearchHistory(ctx, "u1", "first query", nil))
	require.NoError(t, svc.SaveSearchHistory(ctx, "u1", "second query", []store.Contact{{Email: "a@b.com"}}))

	history, err := svc.GetSearchHistory(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "second query", history[0].Query)
	assert.Equal(t, 1, history[0].ResultCount)
	assert.Equal(t, "first query", history[1].Query)
	assert.NotEmpty(t, history[0].ID)
	assert.NotEmpty(t, history[0].Timestamp)
}

func TestSaveSearchHistory_BoundedAtFifty(t *testing.T) {
	svc := NewHistoryService(newFakeGateway())
	ctx := context.Background()

	for i := 0; i < 51; i++ {
		require.NoError(t, svc.SaveSearchHistory(ctx, "u1", fmt.Sprintf("query %d", i), nil))
	}

	history, err := svc.GetSearchHistory(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, history, 50)
	assert.Equal(t, "query 50", history[0].Query)
	for _, entry := range history {
		assert.NotEqual(t, "query 0", entry.Query, "oldest query evicted")
	}
}

func TestSaveSearchHistory_BestEffortOnFailure(t *testing.T) {
	gw := newFakeGateway()
	gw.failReads = true
	svc := NewHistoryService(gw)

	err := svc.SaveSearchHistory(context.Background(), "u1", "query", nil)
	assert.NoError(t, err, "append failures never propagate")
}

func TestSaveSearchHistory_SkipsBlankInputs(t *testing.T) {
	gw := newFakeGateway()
	svc := NewHistoryService(gw)
	ctx := context.Background()

	require.NoError(t, svc.SaveSearchHistory(ctx, "", "query", nil))
	require.NoError(t, svc.SaveSearchHistory(ctx, "u1", "", nil))
	assert.Nil(t, gw.stored("u1"))
}

func TestDeleteSearchHistoryEntry(t *testing.T) {
	svc := NewHistoryService(newFakeGateway())
	ctx := context.Background()

	require.NoError(t, svc.SaveSearchHistory(ctx, "u1", "keep", nil))
	require.NoError(t, svc.SaveSearchHistory(ctx, "u1", "drop", nil))

	history, err := svc.GetSearchHistory(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, history, 2)

	require.NoError(t, svc.DeleteSearchHistoryEntry(ctx, "u1", history[0].ID))

	history, err = svc.GetSearchHistory(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "keep", history[0].Query)

	// Unknown id is a no-op.
	require.NoError(t, svc.DeleteSearchHistoryEntry(ctx, "u1", "missing"))

	err = svc.DeleteSearchHistoryEntry(ctx, "u1", "")
	assert.ErrorIs(t, err, ErrValidation)
}
