package engine

import (
	"context"
	"testing"

	"github.com/pulsepoint/kvsync/internal/backend/memory"
	"github.com/pulsepoint/kvsync/internal/core/resolver"
	"github.com/pulsepoint/kvsync/internal/storage/bolt"
	"github.com/pulsepoint/kvsync/pkg/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type alwaysOnline struct{}

func (alwaysOnline) IsOnline(ctx context.Context) bool { return true }

type alwaysOffline struct{}

func (alwaysOffline) IsOnline(ctx context.Context) bool { return false }

func newTestEngine(t *testing.T, cfg Config) (*Engine, *bolt.Store, *memory.Backend) {
	t.Helper()
	local, err := bolt.Open(&bolt.Options{Path: t.TempDir() + "/engine.db"})
	require.NoError(t, err)
	t.Cleanup(func() { local.Close() })

	remote := memory.New()
	if cfg.Resolver == nil {
		cfg.Resolver = resolver.New(resolver.DefaultConfig())
	}
	e, err := New(local, remote, alwaysOnline{}, cfg)
	require.NoError(t, err)
	require.NoError(t, e.Initialize(context.Background()))
	return e, local, remote
}

func TestNewRejectsNilStores(t *testing.T) {
	_, err := New(nil, memory.New(), alwaysOnline{}, Config{})
	assert.Error(t, err)

	local, err := bolt.Open(&bolt.Options{Path: t.TempDir() + "/x.db"})
	require.NoError(t, err)
	defer local.Close()
	_, err = New(local, nil, alwaysOnline{}, Config{})
	assert.Error(t, err)
}

func TestOperationsRequireInitialize(t *testing.T) {
	local, err := bolt.Open(&bolt.Options{Path: t.TempDir() + "/y.db"})
	require.NoError(t, err)
	defer local.Close()
	e, err := New(local, memory.New(), alwaysOnline{}, Config{})
	require.NoError(t, err)

	_, err = e.Sync(context.Background())
	assert.Error(t, err)
	err = e.Push(context.Background(), "k", value.Null())
	assert.Error(t, err)
	_, _, err = e.Pull(context.Background(), "k")
	assert.Error(t, err)
}

func TestSyncUploadsLocalOnlyKey(t *testing.T) {
	ctx := context.Background()
	e, local, remote := newTestEngine(t, Config{OfflineQueueEnabled: true})

	require.NoError(t, local.Set(ctx, "k", value.String("local-only")))

	result, err := e.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Uploaded)

	v, ok, err := remote.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	s, _ := v.AsString()
	assert.Equal(t, "local-only", s)
}

func TestSyncDownloadsRemoteOnlyKey(t *testing.T) {
	ctx := context.Background()
	e, local, remote := newTestEngine(t, Config{})

	require.NoError(t, remote.Put(ctx, "k", value.String("remote-only")))

	result, err := e.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Downloaded)

	v, ok, err := local.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	s, _ := v.AsString()
	assert.Equal(t, "remote-only", s)
}

func TestSyncSkipsReentrantCall(t *testing.T) {
	ctx := context.Background()
	e, _, _ := newTestEngine(t, Config{})

	e.mu.Lock()
	e.state.IsSyncing = true
	e.mu.Unlock()

	_, err := e.Sync(ctx)
	require.Error(t, err)
}

func TestSyncDisconnectedReturnsError(t *testing.T) {
	ctx := context.Background()
	local, err := bolt.Open(&bolt.Options{Path: t.TempDir() + "/offline.db"})
	require.NoError(t, err)
	defer local.Close()

	e, err := New(local, memory.New(), alwaysOffline{}, Config{Resolver: resolver.New(resolver.DefaultConfig())})
	require.NoError(t, err)
	require.NoError(t, e.Initialize(ctx))

	_, err = e.Sync(ctx)
	assert.Error(t, err)
}

func TestPushWhenOfflineEnqueues(t *testing.T) {
	ctx := context.Background()
	local, err := bolt.Open(&bolt.Options{Path: t.TempDir() + "/push-offline.db"})
	require.NoError(t, err)
	defer local.Close()

	e, err := New(local, memory.New(), alwaysOffline{}, Config{
		OfflineQueueEnabled: true,
		Resolver:            resolver.New(resolver.DefaultConfig()),
	})
	require.NoError(t, err)
	require.NoError(t, e.Initialize(ctx))

	require.NoError(t, e.Push(ctx, "k", value.String("v")))
	assert.Equal(t, 1, e.Status().QueueLength)
}

func TestPushWhenOfflineAndQueueDisabledErrors(t *testing.T) {
	ctx := context.Background()
	local, err := bolt.Open(&bolt.Options{Path: t.TempDir() + "/push-offline2.db"})
	require.NoError(t, err)
	defer local.Close()

	e, err := New(local, memory.New(), alwaysOffline{}, Config{
		OfflineQueueEnabled: false,
		Resolver:            resolver.New(resolver.DefaultConfig()),
	})
	require.NoError(t, err)
	require.NoError(t, e.Initialize(ctx))

	err = e.Push(ctx, "k", value.String("v"))
	assert.Error(t, err)
}

func TestDeleteRemotePropagatesImmediatelyWhenConnected(t *testing.T) {
	ctx := context.Background()
	e, _, remote := newTestEngine(t, Config{})
	require.NoError(t, remote.Put(ctx, "k", value.String("v")))

	require.NoError(t, e.DeleteRemote(ctx, "k"))
	_, ok, err := remote.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReconciliationMergesConflictingObjects(t *testing.T) {
	ctx := context.Background()
	cfg := Config{Resolver: resolver.New(&resolver.Config{
		DefaultStrategy:     resolver.StrategyArrayUnion,
		EnableThreeWayMerge: true,
	})}
	e, local, remote := newTestEngine(t, cfg)

	localVal := value.Object(map[string]value.Value{"a": value.Number(1), "local_field": value.Bool(true)})
	remoteVal := value.Object(map[string]value.Value{"a": value.Number(1), "remote_field": value.Bool(true)})

	require.NoError(t, local.Set(ctx, "k", localVal))
	require.NoError(t, remote.Put(ctx, "k", remoteVal))

	result, err := e.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.ConflictsResolved)

	merged, ok, err := local.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	fields := merged.AsObject()
	assert.Len(t, fields, 3)
}

func TestSyncPersistsStateAcrossPasses(t *testing.T) {
	ctx := context.Background()
	e, local, _ := newTestEngine(t, Config{})

	result, err := e.Sync(ctx)
	require.NoError(t, err)
	assert.True(t, result.Success)

	_, ok, err := local.GetMetadata(ctx, StateReservedKey)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStatusReflectsQueueLength(t *testing.T) {
	ctx := context.Background()
	local, err := bolt.Open(&bolt.Options{Path: t.TempDir() + "/status.db"})
	require.NoError(t, err)
	defer local.Close()

	e, err := New(local, memory.New(), alwaysOffline{}, Config{
		OfflineQueueEnabled: true,
		Resolver:            resolver.New(resolver.DefaultConfig()),
	})
	require.NoError(t, err)
	require.NoError(t, e.Initialize(ctx))

	require.NoError(t, e.Push(ctx, "a", value.Null()))
	require.NoError(t, e.Push(ctx, "b", value.Null()))

	status := e.Status()
	assert.Equal(t, 2, status.QueueLength)
	assert.False(t, status.State.IsConnected)
}
