package bolt

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/pulsepoint/kvsync/pkg/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "store.db")
	store, err := Open(&Options{Path: path})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSetGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Set(ctx, "k", value.String("hello")))
	v, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	str, _ := v.AsString()
	assert.Equal(t, "hello", str)
}

func TestGetMissingKey(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	_, ok, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.Set(ctx, "k", value.Number(1)))
	require.NoError(t, s.Delete(ctx, "k"))
	_, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestKeys(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.Set(ctx, "a", value.Number(1)))
	require.NoError(t, s.Set(ctx, "b", value.Number(2)))

	keys, err := s.Keys(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, keys)
}

func TestMetadataTracksCreatedAndUpdated(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Set(ctx, "k", value.String("v1")))
	meta1, ok, err := s.GetMetadata(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "k", meta1.Key)
	assert.NotZero(t, meta1.CreatedAt)
	assert.Equal(t, meta1.CreatedAt, meta1.UpdatedAt)

	require.NoError(t, s.Set(ctx, "k", value.String("v2")))
	meta2, ok, err := s.GetMetadata(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, meta1.CreatedAt, meta2.CreatedAt, "CreatedAt must not change on update")
	assert.GreaterOrEqual(t, meta2.UpdatedAt, meta1.UpdatedAt)
}

func TestMetadataTracksSize(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.Set(ctx, "k", value.String("hello")))

	meta, ok, err := s.GetMetadata(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Greater(t, meta.Size, int64(0))
}

func TestGetMetadataMissingKey(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	_, ok, err := s.GetMetadata(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "reopen.db")

	s1, err := Open(&Options{Path: path})
	require.NoError(t, err)
	require.NoError(t, s1.Set(ctx, "k", value.Number(42)))
	require.NoError(t, s1.Close())

	s2, err := Open(&Options{Path: path})
	require.NoError(t, err)
	defer s2.Close()

	v, ok, err := s2.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	n, _ := v.AsNumber()
	assert.Equal(t, float64(42), n)
}
