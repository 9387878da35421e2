package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/harborperks/membersdk/internal/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "membersdk.db")
	s, err := NewStore(dsn)
	require.NoError(t, err)
	require.NoError(t, s.ApplyMigrations())
	t.Cleanup(func() { _ = s.Close() })

	return s
}

func TestStoreRoundTrip(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Get(ctx, store.KeyToken)
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.Set(ctx, store.KeyToken, "tok"))
	v, err := s.Get(ctx, store.KeyToken)
	require.NoError(t, err)
	require.Equal(t, "tok", v)

	// Upsert replaces
	require.NoError(t, s.Set(ctx, store.KeyToken, "tok2"))
	v, err = s.Get(ctx, store.KeyToken)
	require.NoError(t, err)
	require.Equal(t, "tok2", v)

	require.NoError(t, s.Delete(ctx, store.KeyToken))
	_, err = s.Get(ctx, store.KeyToken)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestStoreDeleteAll(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, store.KeyToken, "tok"))
	require.NoError(t, s.Set(ctx, store.KeyUser, `{"id":1}`))

	require.NoError(t, s.DeleteAll(ctx))

	for _, k := range []string{store.KeyToken, store.KeyUser} {
		_, err := s.Get(ctx, k)
		require.ErrorIs(t, err, store.ErrNotFound)
	}
}

func TestStorePersistsAcrossReopen(t *testing.T) {
	t.Parallel()

	dsn := filepath.Join(t.TempDir(), "membersdk.db")
	ctx := context.Background()

	s, err := NewStore(dsn)
	require.NoError(t, err)
	require.NoError(t, s.ApplyMigrations())
	require.NoError(t, s.Set(ctx, store.KeyDeviceID, "01ARZ3NDEKTSV4RRFFQ69G5FAV"))
	require.NoError(t, s.Close())

	again, err := NewStore(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = again.Close() })
	require.NoError(t, again.ApplyMigrations())

	v, err := again.Get(ctx, store.KeyDeviceID)
	require.NoError(t, err)
	require.Equal(t, "01ARZ3NDEKTSV4RRFFQ69G5FAV", v)
}
