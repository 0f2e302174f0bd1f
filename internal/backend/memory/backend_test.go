package memory

import (
	"context"
	"testing"

	"github.com/pulsepoint/kvsync/internal/core/interfaces"
	"github.com/pulsepoint/kvsync/pkg/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	b := New()

	require.NoError(t, b.Put(ctx, "k", value.String("v")))
	v, ok, err := b.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	s, _ := v.AsString()
	assert.Equal(t, "v", s)
}

func TestGetMissingKey(t *testing.T) {
	ctx := context.Background()
	b := New()
	_, ok, err := b.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	b := New()
	require.NoError(t, b.Put(ctx, "k", value.Number(1)))
	require.NoError(t, b.Delete(ctx, "k"))
	_, ok, err := b.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDeleteMissingKeyIsNotError(t *testing.T) {
	b := New()
	assert.NoError(t, b.Delete(context.Background(), "nope"))
}

func TestPutPreservesCreatedAtAcrossUpdates(t *testing.T) {
	ctx := context.Background()
	b := New()
	require.NoError(t, b.Put(ctx, "k", value.Number(1)))

	items, err := b.ListChangedSince(ctx, 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	firstCreated := items[0].Metadata.CreatedAt

	require.NoError(t, b.Put(ctx, "k", value.Number(2)))
	items, err = b.ListChangedSince(ctx, 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, firstCreated, items[0].Metadata.CreatedAt)
}

func TestListChangedSinceFiltersOlderItems(t *testing.T) {
	ctx := context.Background()
	b := New()
	require.NoError(t, b.Put(ctx, "k", value.Number(1)))

	items, err := b.ListChangedSince(ctx, 0)
	require.NoError(t, err)
	require.Len(t, items, 1)

	future := items[0].Metadata.UpdatedAt + 1
	items, err = b.ListChangedSince(ctx, future)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestSubscribeReceivesPushedChanges(t *testing.T) {
	ctx := context.Background()
	b := New()

	received := make(chan interfaces.StorageItem, 1)
	unsub, err := b.Subscribe(ctx, func(item interfaces.StorageItem) {
		received <- item
	})
	require.NoError(t, err)

	b.PushChange("k", value.String("pushed"))

	select {
	case item := <-received:
		assert.Equal(t, "k", item.Key)
	default:
		t.Fatal("expected subscriber to receive pushed change synchronously")
	}

	require.NoError(t, unsub())

	// After unsubscribing, further pushes must not reach the handler.
	b.PushChange("k2", value.String("pushed-again"))
	select {
	case <-received:
		t.Fatal("handler should not fire after unsubscribe")
	default:
	}
}

func TestPushChangeUpdatesBackendState(t *testing.T) {
	ctx := context.Background()
	b := New()
	b.PushChange("k", value.String("v"))

	v, ok, err := b.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	s, _ := v.AsString()
	assert.Equal(t, "v", s)
}
