package bookmark_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/book-expert/read-aloud/internal/bookmark"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *bookmark.Store {
	t.Helper()

	store, err := bookmark.Open(filepath.Join(t.TempDir(), "state", "positions.db"))
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = store.Close()
	})

	return store
}

func TestStore_SaveAndLoad(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openStore(t)

	require.NoError(t, store.Save(ctx, "book.txt", "abc", 7))

	position, err := store.Load(ctx, "book.txt", "abc")
	require.NoError(t, err)
	assert.Equal(t, 7, position.Unit)
	assert.Equal(t, "abc", position.Fingerprint)
	assert.True(t, filepath.IsAbs(position.Path))
	assert.False(t, position.UpdatedAt.IsZero())

	require.NoError(t, store.Save(ctx, "./book.txt", "abc", 9))

	position, err = store.Load(ctx, "book.txt", "abc")
	require.NoError(t, err)
	assert.Equal(t, 9, position.Unit, "relative spellings of one path share a bookmark")
}

func TestStore_StaleAndMissing(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openStore(t)

	_, err := store.Load(ctx, "never-read.txt", "abc")
	require.ErrorIs(t, err, bookmark.ErrNoBookmark)

	require.NoError(t, store.Save(ctx, "book.txt", "old", 3))

	position, err := store.Load(ctx, "book.txt", "new")
	require.ErrorIs(t, err, bookmark.ErrStaleBookmark)
	assert.Equal(t, 3, position.Unit)
}

func TestStore_Forget(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openStore(t)

	require.NoError(t, store.Save(ctx, "book.txt", "abc", 2))
	require.NoError(t, store.Forget(ctx, "book.txt"))
	require.NoError(t, store.Forget(ctx, "book.txt"))

	_, err := store.Load(ctx, "book.txt", "abc")
	require.ErrorIs(t, err, bookmark.ErrNoBookmark)
}

func TestStore_PersistsAcrossOpens(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "positions.db")

	store, err := bookmark.Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, "book.txt", "abc", 42))
	require.NoError(t, store.Close())

	reopened, err := bookmark.Open(path)
	require.NoError(t, err)

	defer reopened.Close()

	position, err := reopened.Load(ctx, "book.txt", "abc")
	require.NoError(t, err)
	assert.Equal(t, 42, position.Unit)
}

func TestStore_InMemory(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	store, err := bookmark.Open(":memory:")
	require.NoError(t, err)

	defer store.Close()

	require.NoError(t, store.Save(ctx, "a.txt", "f", 1))

	position, err := store.Load(ctx, "a.txt", "f")
	require.NoError(t, err)
	assert.Equal(t, 1, position.Unit)
}
