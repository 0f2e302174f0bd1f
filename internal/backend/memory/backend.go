// Package memory implements an in-memory RemoteBackend, the mock provider
// analogue used in tests and local demos (--backend=memory).
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/pulsepoint/kvsync/internal/core/interfaces"
	"github.com/pulsepoint/kvsync/pkg/value"
)

// Backend is a RemoteBackend and interfaces.Subscribable backed by a
// plain map. Safe for concurrent use.
type Backend struct {
	mu    sync.RWMutex
	items map[string]interfaces.StorageItem

	subMu sync.Mutex
	subs  map[int]interfaces.ChangeHandler
	nextID int
}

// New constructs an empty Backend.
func New() *Backend {
	return &Backend{
		items: make(map[string]interfaces.StorageItem),
		subs:  make(map[int]interfaces.ChangeHandler),
	}
}

func (b *Backend) Get(ctx context.Context, key string) (value.Value, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	item, ok := b.items[key]
	if !ok {
		return value.Value{}, false, nil
	}
	return item.Value, true, nil
}

func (b *Backend) Put(ctx context.Context, key string, v value.Value) error {
	now := time.Now().UnixMilli()
	b.mu.Lock()
	existing, hadExisting := b.items[key]
	meta := interfaces.Metadata{Key: key, UpdatedAt: now}
	if hadExisting {
		meta.CreatedAt = existing.Metadata.CreatedAt
	} else {
		meta.CreatedAt = now
	}
	b.items[key] = interfaces.StorageItem{Key: key, Value: v, Metadata: meta}
	b.mu.Unlock()
	return nil
}

func (b *Backend) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	delete(b.items, key)
	b.mu.Unlock()
	return nil
}

func (b *Backend) ListChangedSince(ctx context.Context, since int64) ([]interfaces.StorageItem, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []interfaces.StorageItem
	for _, item := range b.items {
		if item.Metadata.UpdatedAt > since {
			out = append(out, item)
		}
	}
	return out, nil
}

// Subscribe registers handler to be invoked on every subsequent PushChange
// call, simulating a backend push feed in tests/demos.
func (b *Backend) Subscribe(ctx context.Context, handler interfaces.ChangeHandler) (interfaces.Unsubscribe, error) {
	b.subMu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = handler
	b.subMu.Unlock()

	return func() error {
		b.subMu.Lock()
		delete(b.subs, id)
		b.subMu.Unlock()
		return nil
	}, nil
}

// PushChange simulates a remote-originated change arriving out of band of
// the reconciliation loop: it updates the backend's own state and fans
// the item out to every active subscriber.
func (b *Backend) PushChange(key string, v value.Value) {
	now := time.Now().UnixMilli()
	b.mu.Lock()
	existing, hadExisting := b.items[key]
	meta := interfaces.Metadata{Key: key, UpdatedAt: now}
	if hadExisting {
		meta.CreatedAt = existing.Metadata.CreatedAt
	} else {
		meta.CreatedAt = now
	}
	item := interfaces.StorageItem{Key: key, Value: v, Metadata: meta}
	b.items[key] = item
	b.mu.Unlock()

	b.subMu.Lock()
	handlers := make([]interfaces.ChangeHandler, 0, len(b.subs))
	for _, h := range b.subs {
		handlers = append(handlers, h)
	}
	b.subMu.Unlock()
	for _, h := range handlers {
		h(item)
	}
}
