package sqlite

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rpggio/livesync/internal/repository"
	"github.com/stretchr/testify/require"
)

func TestSessionStateRepository_MergeNotReplace(t *testing.T) {
	db := NewTestDB(t)
	seedWorkspace(t, db, "ws1")
	repo := NewSessionStateRepository(db)
	ctx := context.Background()

	_, err := repo.Get(ctx, "ws1", "s1")
	require.Equal(t, repository.ErrNotFound, err)

	first, err := repo.Merge(ctx, "ws1", "s1", map[string]any{"a": 1, "b": "x"}, time.Now().UTC())
	require.NoError(t, err)
	require.Equal(t, int64(1), first.Version)

	second, err := repo.Merge(ctx, "ws1", "s1", map[string]any{"b": "y", "c": true}, time.Now().UTC())
	require.NoError(t, err)
	require.Equal(t, int64(2), second.Version)
	require.Equal(t, map[string]any{"a": 1.0, "b": "y", "c": true}, second.State)

	stored, err := repo.Get(ctx, "ws1", "s1")
	require.NoError(t, err)
	require.Equal(t, second.State, stored.State)
	require.Equal(t, int64(2), stored.Version)
}

func TestSessionStateRepository_VersionsArePerKey(t *testing.T) {
	db := NewTestDB(t)
	seedWorkspace(t, db, "ws1")
	repo := NewSessionStateRepository(db)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := repo.Merge(ctx, "ws1", "s1", map[string]any{"i": i}, time.Now().UTC())
		require.NoError(t, err)
	}
	other, err := repo.Merge(ctx, "ws1", "s2", map[string]any{"i": 0}, time.Now().UTC())
	require.NoError(t, err)
	require.Equal(t, int64(1), other.Version)

	s1, err := repo.Get(ctx, "ws1", "s1")
	require.NoError(t, err)
	require.Equal(t, int64(3), s1.Version)
}

func TestSessionStateRepository_ConcurrentMergesKeepEveryIncrement(t *testing.T) {
	db := NewTestDB(t)
	seedWorkspace(t, db, "ws1")
	repo := NewSessionStateRepository(db)
	ctx := context.Background()

	const writers = 20
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := repo.Merge(ctx, "ws1", "s1", map[string]any{fmt.Sprintf("k%d", i): i}, time.Now().UTC())
			require.NoError(t, err)
		}(i)
	}
	wg.Wait()

	state, err := repo.Get(ctx, "ws1", "s1")
	require.NoError(t, err)
	require.Equal(t, int64(writers), state.Version)
	require.Len(t, state.State, writers)
}

func TestSessionStateRepository_UnknownWorkspace(t *testing.T) {
	db := NewTestDB(t)
	repo := NewSessionStateRepository(db)

	_, err := repo.Merge(context.Background(), "missing", "s1", map[string]any{"a": 1}, time.Now().UTC())
	require.ErrorIs(t, err, repository.ErrForeignKeyViolation)
}
