package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, s.Close())
	})
	return s
}

func TestOverrides_EmptyStore(t *testing.T) {
	s := newStore(t)

	overrides, err := s.Overrides(context.Background())

	require.NoError(t, err)
	assert.Empty(t, overrides)
}

func TestSetRead_UpsertsExistingRow(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.SetRead(ctx, "m1", true))
	require.NoError(t, s.SetStarred(ctx, "m1", true))
	require.NoError(t, s.SetRead(ctx, "m1", false))

	overrides, err := s.Overrides(ctx)
	require.NoError(t, err)
	require.Contains(t, overrides, "m1")
	assert.False(t, overrides["m1"].Read)
	// The starred flag set earlier survives the read update.
	assert.True(t, overrides["m1"].Starred)
}

func TestSetStarred_IndependentOfRead(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.SetStarred(ctx, "m1", true))

	overrides, err := s.Overrides(ctx)
	require.NoError(t, err)
	assert.True(t, overrides["m1"].Starred)
	assert.False(t, overrides["m1"].Read)
}

func TestPrune_DropsVanishedMessages(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.SetRead(ctx, "m1", true))
	require.NoError(t, s.SetRead(ctx, "m2", true))
	require.NoError(t, s.SetRead(ctx, "m3", true))

	require.NoError(t, s.Prune(ctx, []string{"m2"}))

	overrides, err := s.Overrides(ctx)
	require.NoError(t, err)
	assert.NotContains(t, overrides, "m1")
	assert.Contains(t, overrides, "m2")
	assert.NotContains(t, overrides, "m3")
}

func TestPrune_EmptyKeepClearsEverything(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.SetStarred(ctx, "m1", true))
	require.NoError(t, s.Prune(ctx, nil))

	overrides, err := s.Overrides(ctx)
	require.NoError(t, err)
	assert.Empty(t, overrides)
}

func TestMigrations_SecondOpenIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/flags.db"

	s1, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s1.SetRead(context.Background(), "m1", true))
	require.NoError(t, s1.Close())

	s2, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer s2.Close()

	overrides, err := s2.Overrides(context.Background())
	require.NoError(t, err)
	assert.Contains(t, overrides, "m1")
}
