package statestore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStore(t *testing.T) *SQLiteStore {
	t.Helper()
	db, err := Open(context.Background(), filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewSQLiteStore(db)
}

func TestStore_SetGetRoundTrip(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, KeySyncQueue, []byte(`[{"entryId":"app-1"}]`)))

	got, err := s.Get(ctx, KeySyncQueue)
	require.NoError(t, err)
	assert.Equal(t, []byte(`[{"entryId":"app-1"}]`), got)
}

func TestStore_SetOverwrites(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, KeyActiveProvider, []byte("sandbox")))
	require.NoError(t, s.Set(ctx, KeyActiveProvider, []byte("folder")))

	got, err := s.Get(ctx, KeyActiveProvider)
	require.NoError(t, err)
	assert.Equal(t, []byte("folder"), got)
}

func TestStore_GetMissingReturnsNil(t *testing.T) {
	s := setupStore(t)

	got, err := s.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStore_DeleteAndClear(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "a", []byte("1")))
	require.NoError(t, s.Set(ctx, "b", []byte("2")))

	require.NoError(t, s.Delete(ctx, "a"))
	require.NoError(t, s.Delete(ctx, "a"), "deleting an absent key is not an error")

	got, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, s.Clear(ctx))
	got, err = s.Get(ctx, "b")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestOpen_MigrationsAreIdempotent(t *testing.T) {
	dir := t.TempDir()
	dsn := filepath.Join(dir, "state.db")

	db, err := Open(context.Background(), dsn)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = Open(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM state`).Scan(&n))
	assert.Equal(t, 0, n)
}
