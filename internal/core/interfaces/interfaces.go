// Package interfaces defines the capability boundaries the sync engine
// consumes but never implements itself: local persistence, the remote
// backend, and a connectivity probe. Concrete providers (Firebase,
// Supabase, a REST/GraphQL API, iCloud, Google Drive, ...) and the local
// storage engine live outside this package and satisfy these contracts.
package interfaces

import (
	"context"

	"github.com/pulsepoint/kvsync/pkg/value"
)

// Metadata describes one stored item, independent of its Value payload.
type Metadata struct {
	Key       string   `json:"key"`
	Size      int64    `json:"size"`
	CreatedAt int64    `json:"createdAt"`
	UpdatedAt int64    `json:"updatedAt"`
	Tags      []string `json:"tags,omitempty"`
	Deleted   bool     `json:"deleted,omitempty"`
}

// StorageItem pairs a key's Value with its Metadata, the unit the engine
// reconciles between LocalStore and RemoteBackend.
type StorageItem struct {
	Key      string        `json:"key"`
	Value    value.Value   `json:"value"`
	Metadata Metadata      `json:"metadata"`
}

// LocalStore is the on-device persistence capability the engine reads
// from and writes to. Implementations own metadata bookkeeping: Set must
// stamp Metadata.UpdatedAt (and CreatedAt, the first time a key is seen)
// themselves: the engine never passes metadata in.
type LocalStore interface {
	// Get returns the current value for key, or ok=false if absent.
	Get(ctx context.Context, key string) (v value.Value, ok bool, err error)
	// Set writes value for key, creating it if absent.
	Set(ctx context.Context, key string, v value.Value) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	// Keys lists every key currently stored, including the reserved
	// bookkeeping keys the engine itself writes.
	Keys(ctx context.Context) ([]string, error)
	// GetMetadata returns the Metadata for key without loading its Value.
	GetMetadata(ctx context.Context, key string) (Metadata, bool, error)
}

// ChangeHandler receives a single pushed remote change. Implementations of
// RemoteBackend that support Subscribe invoke it from their own goroutine;
// callers must not block for long inside it.
type ChangeHandler func(item StorageItem)

// Unsubscribe stops a previously established Subscribe call.
type Unsubscribe func() error

// RemoteBackend is the capability the engine uses to reach the remote
// store. Concrete backends (Firebase/Supabase/REST/GraphQL/iCloud/Google
// Drive) live outside this package.
type RemoteBackend interface {
	// Get fetches the current remote value for key.
	Get(ctx context.Context, key string) (value.Value, bool, error)
	// Put uploads value for key.
	Put(ctx context.Context, key string, v value.Value) error
	// Delete removes key remotely.
	Delete(ctx context.Context, key string) error
	// ListChangedSince returns every item whose remote UpdatedAt is
	// strictly greater than since (a Unix millisecond timestamp), or
	// every item when since is zero.
	ListChangedSince(ctx context.Context, since int64) ([]StorageItem, error)
}

// Subscribable is an optional capability a RemoteBackend may additionally
// implement to support the real-time subscription (§4.6): push events
// bypass the reconciliation loop entirely and are written straight to
// LocalStore.
type Subscribable interface {
	Subscribe(ctx context.Context, handler ChangeHandler) (Unsubscribe, error)
}

// Connectivity reports whether the remote is currently reachable. An
// opaque (non-transport-error) HTTP response counts as online even if its
// status code is an error status.
type Connectivity interface {
	IsOnline(ctx context.Context) bool
}
