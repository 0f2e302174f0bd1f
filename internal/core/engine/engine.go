// Package engine implements the bidirectional sync engine: the
// reconciliation loop that pairs local and remote changes, routes
// conflicts through the resolver, and applies the resulting actions.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pulsepoint/kvsync/internal/core/interfaces"
	"github.com/pulsepoint/kvsync/internal/core/queue"
	"github.com/pulsepoint/kvsync/internal/core/realtime"
	"github.com/pulsepoint/kvsync/internal/core/resolver"
	"github.com/pulsepoint/kvsync/internal/core/retry"
	pperrors "github.com/pulsepoint/kvsync/pkg/errors"
	"github.com/pulsepoint/kvsync/pkg/value"
	"go.uber.org/zap"
)

// Engine is the bidirectional sync engine. A zero Engine is not usable;
// construct one with New and call Initialize before any other method.
type Engine struct {
	local    interfaces.LocalStore
	remote   interfaces.RemoteBackend
	probe    interfaces.Connectivity
	resolver *resolver.Resolver
	queue    *queue.Queue
	cfg      Config
	logger   *zap.Logger

	mu          sync.Mutex
	state       State
	initialized bool

	stopCh   chan struct{}
	wg       sync.WaitGroup
	sub      *realtime.Subscription
	classify retry.Classifier
}

// New constructs an Engine over local/remote/probe. local and remote are
// required; probe may be nil, in which case the engine treats itself as
// always connected.
func New(local interfaces.LocalStore, remote interfaces.RemoteBackend, probe interfaces.Connectivity, cfg Config) (*Engine, error) {
	if local == nil {
		return nil, pperrors.NewValidationError("engine: local store is required")
	}
	if remote == nil {
		return nil, pperrors.NewValidationError("engine: remote backend is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	if cfg.Strategy == "" {
		cfg.Strategy = StrategyIncremental
	} else if cfg.Strategy != StrategyIncremental {
		logger.Warn("unsupported sync strategy requested, falling back to incremental",
			zap.String("requested", string(cfg.Strategy)))
		cfg.Strategy = StrategyIncremental
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 1000
	}
	res := cfg.Resolver
	if res == nil {
		res = resolver.New(resolver.DefaultConfig())
	}

	e := &Engine{
		local:    local,
		remote:   remote,
		probe:    probe,
		resolver: res,
		cfg:      cfg,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
	e.queue = queue.New(local, queue.Config{MaxSize: cfg.MaxQueueSize, Logger: logger})
	e.classify = retry.DefaultClassifier(cfg.Retry)
	return e, nil
}

// Initialize restores persisted state and the offline queue, checks
// connectivity once, and — if configured — starts the periodic loop and
// the real-time subscription. Call exactly once before any other method.
func (e *Engine) Initialize(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.initialized {
		return nil
	}

	state, err := loadState(ctx, e.local)
	if err != nil {
		return pperrors.NewSerializationError("engine: loading persisted state", err)
	}
	state.IsSyncing = false
	e.state = state

	if err := e.queue.Load(ctx); err != nil {
		return pperrors.NewSerializationError("engine: loading offline queue", err)
	}

	e.state.IsConnected = e.checkConnected(ctx)

	if e.cfg.SyncInterval > 0 {
		e.wg.Add(1)
		go e.periodicLoop()
	}

	if e.cfg.Realtime {
		sub, err := realtime.Start(ctx, e.remote, e.local, e.logger, func(key, direction string) {
			if e.cfg.Callbacks.OnItemSynced != nil {
				e.cfg.Callbacks.OnItemSynced(key, direction)
			}
		})
		if err != nil {
			e.logger.Warn("realtime subscription unavailable", zap.Error(err))
		} else {
			e.sub = sub
		}
	}

	e.initialized = true
	return nil
}

// Close stops the periodic loop and real-time subscription.
func (e *Engine) Close() error {
	e.mu.Lock()
	initialized := e.initialized
	e.mu.Unlock()
	if !initialized {
		return nil
	}
	close(e.stopCh)
	e.wg.Wait()
	if e.sub != nil {
		return e.sub.Close()
	}
	return nil
}

func (e *Engine) checkConnected(ctx context.Context) bool {
	if e.probe == nil {
		return true
	}
	return e.probe.IsOnline(ctx)
}

func (e *Engine) periodicLoop() {
	defer e.wg.Done()
	ticker := time.NewTicker(e.cfg.SyncInterval)
	defer ticker.Stop()
	for {
		select {
		case <-e.stopCh:
			return
		case <-ticker.C:
			e.mu.Lock()
			connected := e.checkConnected(context.Background())
			if connected != e.state.IsConnected {
				e.state.IsConnected = connected
				if e.cfg.Callbacks.OnConnectionChange != nil {
					e.cfg.Callbacks.OnConnectionChange(connected)
				}
			}
			busy := e.state.IsSyncing
			e.mu.Unlock()

			if busy || !connected {
				continue
			}
			if _, err := e.Sync(context.Background()); err != nil {
				e.logger.Warn("periodic sync pass failed", zap.Error(err))
			}
		}
	}
}

// SyncOptions narrows a sync pass to a subset of keys. A nil/empty Keys
// scans every local key.
type SyncOptions struct {
	Keys []string
}

// Sync runs one full reconciliation pass: drain the offline queue if
// connected, pull local changes since the last pass, pull remote changes
// since the last pass, pair them by key, route every pair through the
// resolver, and apply the resulting actions. Returns
// errors.NewSyncInProgress if a pass is already running.
func (e *Engine) Sync(ctx context.Context, opts ...*SyncOptions) (*Result, error) {
	if !e.initialized {
		return nil, pperrors.NewNotInitialized("Sync")
	}

	e.mu.Lock()
	if e.state.IsSyncing {
		e.mu.Unlock()
		return nil, pperrors.NewSyncInProgress()
	}
	e.state.IsSyncing = true
	e.mu.Unlock()

	if e.cfg.Callbacks.OnSyncStart != nil {
		e.cfg.Callbacks.OnSyncStart()
	}

	result := &Result{StartedAt: time.Now().UnixMilli()}
	err := e.runPass(ctx, opts, result)
	result.CompletedAt = time.Now().UnixMilli()
	result.DurationMillis = result.CompletedAt - result.StartedAt
	result.Success = err == nil && len(result.Errors) == 0

	e.mu.Lock()
	e.state.IsSyncing = false
	if err == nil {
		e.state.LastSync = result.CompletedAt
	}
	e.state.PendingChanges = e.queue.Len()
	saveErr := saveState(ctx, e.local, e.state)
	e.mu.Unlock()
	if saveErr != nil {
		e.logger.Warn("failed to persist sync state", zap.Error(saveErr))
	}

	if err != nil {
		if e.cfg.Callbacks.OnSyncError != nil {
			e.cfg.Callbacks.OnSyncError(err)
		}
		return result, err
	}
	if e.cfg.Callbacks.OnSyncComplete != nil {
		e.cfg.Callbacks.OnSyncComplete(*result)
	}
	return result, nil
}

func (e *Engine) runPass(ctx context.Context, opts []*SyncOptions, result *Result) error {
	var keys []string
	if len(opts) > 0 && opts[0] != nil {
		keys = opts[0].Keys
	}

	e.mu.Lock()
	connected := e.checkConnected(ctx)
	e.state.IsConnected = connected
	lastSync := e.state.LastSync
	e.mu.Unlock()

	if connected && e.cfg.OfflineQueueEnabled && e.queue.Len() > 0 {
		e.drainQueue(ctx, result)
	}

	if !connected {
		return pperrors.NewDisconnected("Sync")
	}

	localItems, err := e.fetchLocalChanges(ctx, lastSync, keys)
	if err != nil {
		return pperrors.NewBackendError("engine: reading local changes", err, 0)
	}

	remoteItems, err := retryListChanged(ctx, e.remote, e.classify, e.cfg.Retry, lastSync)
	if err != nil {
		return pperrors.NewTransport("engine: listing remote changes", err)
	}
	remoteByKey := make(map[string]interfaces.StorageItem, len(remoteItems))
	for _, item := range remoteItems {
		remoteByKey[item.Key] = item
	}

	total := len(localItems) + len(remoteItems)
	completed := 0
	reportProgress := func() {
		completed++
		if e.cfg.Callbacks.OnProgress != nil {
			e.cfg.Callbacks.OnProgress(completed, total)
		}
	}

	for _, local := range localItems {
		remote, hasRemote := remoteByKey[local.Key]
		if hasRemote {
			e.reconcileOne(ctx, local, &remote, result)
			delete(remoteByKey, local.Key)
		} else {
			e.applyUpload(ctx, local.Key, local.Value, result)
		}
		reportProgress()
	}

	for key, remote := range remoteByKey {
		e.applyDownload(ctx, key, remote.Value, result)
		reportProgress()
	}

	return nil
}

func (e *Engine) drainQueue(ctx context.Context, result *Result) {
	drained, err := e.queue.Drain(ctx, func(ctx context.Context, item queue.Item) error {
		switch item.Kind {
		case queue.ItemSet:
			return retry.Do(ctx, e.cfg.Retry, e.classify, func(ctx context.Context) error {
				return e.remote.Put(ctx, item.Key, item.Value)
			})
		case queue.ItemDelete:
			return retry.Do(ctx, e.cfg.Retry, e.classify, func(ctx context.Context) error {
				return e.remote.Delete(ctx, item.Key)
			})
		default:
			return fmt.Errorf("engine: unknown queue item kind %q", item.Kind)
		}
	})
	if err != nil {
		e.logger.Warn("failed to persist offline queue after drain", zap.Error(err))
	}
	result.Uploaded += drained
}

func (e *Engine) fetchLocalChanges(ctx context.Context, since int64, keys []string) ([]interfaces.StorageItem, error) {
	if len(keys) == 0 {
		var err error
		keys, err = e.local.Keys(ctx)
		if err != nil {
			return nil, err
		}
	}

	var items []interfaces.StorageItem
	for _, key := range keys {
		if key == queue.ReservedKey || key == StateReservedKey {
			continue
		}
		meta, ok, err := e.local.GetMetadata(ctx, key)
		if err != nil {
			return nil, err
		}
		if !ok || meta.UpdatedAt <= since {
			continue
		}
		v, ok, err := e.local.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		items = append(items, interfaces.StorageItem{Key: key, Value: v, Metadata: meta})
	}
	return items, nil
}

func retryListChanged(ctx context.Context, remote interfaces.RemoteBackend, classify retry.Classifier, cfg retry.Config, since int64) ([]interfaces.StorageItem, error) {
	var items []interfaces.StorageItem
	err := retry.Do(ctx, cfg, classify, func(ctx context.Context) error {
		var err error
		items, err = remote.ListChangedSince(ctx, since)
		return err
	})
	return items, err
}

func (e *Engine) reconcileOne(ctx context.Context, local interfaces.StorageItem, remote *interfaces.StorageItem, result *Result) {
	localVal := local.Value
	remoteVal := remote.Value

	conflict := &resolver.Conflict{
		Key:             local.Key,
		LocalValue:      &localVal,
		RemoteValue:     &remoteVal,
		LocalTimestamp:  local.Metadata.UpdatedAt,
		RemoteTimestamp: remote.Metadata.UpdatedAt,
	}

	resolution, err := e.resolver.Resolve(conflict)
	if err != nil {
		result.Errors = append(result.Errors, ItemError{Key: local.Key, Message: err.Error(), Timestamp: time.Now().UnixMilli()})
		return
	}

	switch resolution.Action {
	case resolver.ActionUpload:
		e.applyUpload(ctx, local.Key, *resolution.Value, result)
	case resolver.ActionDownload:
		e.applyDownload(ctx, local.Key, *resolution.Value, result)
	case resolver.ActionDelete:
		e.applyDelete(ctx, local.Key, resolution.Direction, result)
	case resolver.ActionMerge:
		e.applyMerge(ctx, local.Key, *resolution.Value, result)
	case resolver.ActionSkip:
		result.Skipped++
	}
}

func (e *Engine) applyUpload(ctx context.Context, key string, v value.Value, result *Result) {
	err := retry.Do(ctx, e.cfg.Retry, e.classify, func(ctx context.Context) error {
		return e.remote.Put(ctx, key, v)
	})
	if err != nil {
		result.Errors = append(result.Errors, itemErr(key, err))
		return
	}
	result.Uploaded++
	e.notifyItemSynced(key, "upload")
}

func (e *Engine) applyDownload(ctx context.Context, key string, v value.Value, result *Result) {
	if err := e.local.Set(ctx, key, v); err != nil {
		result.Errors = append(result.Errors, itemErr(key, err))
		return
	}
	result.Downloaded++
	e.notifyItemSynced(key, "download")
}

func (e *Engine) applyDelete(ctx context.Context, key string, direction resolver.Direction, result *Result) {
	var err error
	switch direction {
	case resolver.DirectionLocal:
		err = e.local.Delete(ctx, key)
	case resolver.DirectionRemote:
		err = retry.Do(ctx, e.cfg.Retry, e.classify, func(ctx context.Context) error {
			return e.remote.Delete(ctx, key)
		})
	}
	if err != nil {
		result.Errors = append(result.Errors, itemErr(key, err))
		return
	}
	result.Deleted++
	e.notifyItemSynced(key, "delete-"+string(direction))
}

// applyMerge writes the merged value to both sides. Bumping both
// ConflictsResolved and Uploaded for a merge is an implementation choice
// (merge path counter bump is open per design notes): every merge also
// counts as one upload since it is pushed to the remote.
func (e *Engine) applyMerge(ctx context.Context, key string, v value.Value, result *Result) {
	if err := e.local.Set(ctx, key, v); err != nil {
		result.Errors = append(result.Errors, itemErr(key, err))
		return
	}
	err := retry.Do(ctx, e.cfg.Retry, e.classify, func(ctx context.Context) error {
		return e.remote.Put(ctx, key, v)
	})
	if err != nil {
		result.Errors = append(result.Errors, itemErr(key, err))
		return
	}
	result.ConflictsResolved++
	result.Uploaded++
	e.notifyItemSynced(key, "merge")
}

func (e *Engine) notifyItemSynced(key, direction string) {
	if e.cfg.Callbacks.OnItemSynced != nil {
		e.cfg.Callbacks.OnItemSynced(key, direction)
	}
}

func itemErr(key string, err error) ItemError {
	retryable := false
	if se, ok := err.(*pperrors.SyncError); ok {
		retryable = se.Retryable
	}
	return ItemError{Key: key, Message: err.Error(), Retryable: retryable, Timestamp: time.Now().UnixMilli()}
}

// Push propagates a local write to the remote backend: uploaded
// immediately when connected, enqueued for later when not (and the
// offline queue is enabled).
func (e *Engine) Push(ctx context.Context, key string, v value.Value) error {
	if !e.initialized {
		return pperrors.NewNotInitialized("Push")
	}
	e.mu.Lock()
	connected := e.checkConnected(ctx)
	e.state.IsConnected = connected
	e.mu.Unlock()

	if !connected {
		if !e.cfg.OfflineQueueEnabled {
			return pperrors.NewDisconnected("Push")
		}
		_, err := e.queue.Enqueue(ctx, queue.ItemSet, key, v, time.Now().UnixMilli())
		return err
	}
	return retry.Do(ctx, e.cfg.Retry, e.classify, func(ctx context.Context) error {
		return e.remote.Put(ctx, key, v)
	})
}

// Pull fetches a key directly from the remote backend. Requires
// connectivity.
func (e *Engine) Pull(ctx context.Context, key string) (value.Value, bool, error) {
	if !e.initialized {
		return value.Value{}, false, pperrors.NewNotInitialized("Pull")
	}
	if !e.checkConnected(ctx) {
		return value.Value{}, false, pperrors.NewDisconnected("Pull")
	}
	var v value.Value
	var ok bool
	err := retry.Do(ctx, e.cfg.Retry, e.classify, func(ctx context.Context) error {
		var err error
		v, ok, err = e.remote.Get(ctx, key)
		return err
	})
	return v, ok, err
}

// DeleteRemote propagates a delete to the remote backend, following the
// same offline policy as Push.
func (e *Engine) DeleteRemote(ctx context.Context, key string) error {
	if !e.initialized {
		return pperrors.NewNotInitialized("DeleteRemote")
	}
	e.mu.Lock()
	connected := e.checkConnected(ctx)
	e.state.IsConnected = connected
	e.mu.Unlock()

	if !connected {
		if !e.cfg.OfflineQueueEnabled {
			return pperrors.NewDisconnected("DeleteRemote")
		}
		_, err := e.queue.Enqueue(ctx, queue.ItemDelete, key, value.Null(), time.Now().UnixMilli())
		return err
	}
	return retry.Do(ctx, e.cfg.Retry, e.classify, func(ctx context.Context) error {
		return e.remote.Delete(ctx, key)
	})
}

// Status is a snapshot of the engine's current state.
type Status struct {
	State       State
	QueueLength int
}

// Status returns the engine's current state and queue depth.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Status{State: e.state, QueueLength: e.queue.Len()}
}
