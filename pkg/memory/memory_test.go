package memory

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaultpilot/vaultpilot/pkg/llms"
)

func openTestDB(t *testing.T) *HistoryStore {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := NewHistoryStore(db)
	require.NoError(t, err)
	return store
}

func TestHistoryAppendAndPriorTurns(t *testing.T) {
	store := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "s1", llms.Message{Role: llms.RoleUser, Content: "first"}))
	require.NoError(t, store.Append(ctx, "s1", llms.Message{Role: llms.RoleAssistant, Content: "second"}))
	require.NoError(t, store.Append(ctx, "other", llms.Message{Role: llms.RoleUser, Content: "elsewhere"}))

	turns, err := store.PriorTurns(ctx, "s1", 0)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "first", turns[0].Content)
	assert.Equal(t, "second", turns[1].Content)
}

func TestHistoryLimitKeepsNewest(t *testing.T) {
	store := openTestDB(t)
	ctx := context.Background()

	for _, content := range []string{"a", "b", "c", "d"} {
		require.NoError(t, store.Append(ctx, "s1", llms.Message{Role: llms.RoleUser, Content: content}))
	}

	turns, err := store.PriorTurns(ctx, "s1", 2)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "c", turns[0].Content)
	assert.Equal(t, "d", turns[1].Content)
}

func TestHistoryClear(t *testing.T) {
	store := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "s1", llms.Message{Role: llms.RoleUser, Content: "x"}))
	require.NoError(t, store.Clear(ctx, "s1"))

	turns, err := store.PriorTurns(ctx, "s1", 0)
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestLongTermStore(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "facts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := NewLongTermStore(db)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, "timezone", "Europe/Berlin"))
	require.NoError(t, store.Upsert(ctx, "timezone", "UTC"))
	require.NoError(t, store.Upsert(ctx, "name", "Sam"))

	facts, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, facts, 2)

	byKey := map[string]string{}
	for _, fact := range facts {
		byKey[fact.Key] = fact.Value
	}
	assert.Equal(t, "UTC", byKey["timezone"])

	require.NoError(t, store.Delete(ctx, "timezone"))
	facts, err = store.List(ctx)
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, "name", facts[0].Key)
}
