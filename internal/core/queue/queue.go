// Package queue implements the bounded offline mutation queue: local
// writes made while disconnected are recorded here and drained once
// connectivity returns.
package queue

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/pulsepoint/kvsync/internal/core/interfaces"
	"github.com/pulsepoint/kvsync/pkg/value"
	"go.uber.org/zap"
)

// ReservedKey is the LocalStore key the queue persists itself under.
const ReservedKey = "__cloud_sync_queue__"

// ItemKind distinguishes a queued set from a queued delete.
type ItemKind string

const (
	ItemSet    ItemKind = "set"
	ItemDelete ItemKind = "delete"
)

// Item is one pending offline mutation.
type Item struct {
	ID         string      `json:"id"`
	Kind       ItemKind    `json:"kind"`
	Key        string      `json:"key"`
	Value      value.Value `json:"value,omitempty"`
	Timestamp  int64       `json:"timestamp"`
	RetryCount int         `json:"retryCount"`
}

// Config configures a Queue.
type Config struct {
	// MaxSize bounds the queue; Enqueue past this size evicts the oldest
	// entry (head drop) rather than rejecting the new one.
	MaxSize int
	// MaxAttempts bounds how many times in total Drain attempts an item
	// before it is dropped permanently.
	MaxAttempts int
	Logger      *zap.Logger
}

// Queue is a bounded FIFO of offline mutations, durable via LocalStore.
type Queue struct {
	store  interfaces.LocalStore
	cfg    Config
	logger *zap.Logger

	mu    sync.Mutex
	items []Item
}

// New constructs a Queue backed by store. Call Load to restore any
// previously persisted items.
func New(store interfaces.LocalStore, cfg Config) *Queue {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = 1000
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{store: store, cfg: cfg, logger: logger}
}

// Load restores the queue's persisted state from LocalStore.
func (q *Queue) Load(ctx context.Context) error {
	v, ok, err := q.store.Get(ctx, ReservedKey)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	raw, err := v.MarshalJSON()
	if err != nil {
		return err
	}
	var items []Item
	if err := json.Unmarshal(raw, &items); err != nil {
		return err
	}
	q.mu.Lock()
	q.items = items
	q.mu.Unlock()
	return nil
}

func (q *Queue) persistLocked(ctx context.Context) error {
	raw, err := json.Marshal(q.items)
	if err != nil {
		return err
	}
	var v value.Value
	if err := v.UnmarshalJSON(raw); err != nil {
		return err
	}
	return q.store.Set(ctx, ReservedKey, v)
}

// Enqueue appends a mutation, generating an ID and timestamp. If the
// queue is already at MaxSize, the oldest entry is evicted first (head
// drop) and logged.
func (q *Queue) Enqueue(ctx context.Context, kind ItemKind, key string, v value.Value, timestamp int64) (Item, error) {
	q.mu.Lock()
	if len(q.items) >= q.cfg.MaxSize {
		dropped := q.items[0]
		q.items = q.items[1:]
		q.logger.Warn("offline queue full, evicting oldest entry",
			zap.String("dropped_key", dropped.Key), zap.String("dropped_id", dropped.ID))
	}
	item := Item{ID: uuid.NewString(), Kind: kind, Key: key, Value: v, Timestamp: timestamp}
	q.items = append(q.items, item)
	err := q.persistLocked(ctx)
	q.mu.Unlock()
	return item, err
}

// Len returns the number of pending items.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Snapshot returns a copy of the pending items in FIFO order.
func (q *Queue) Snapshot() []Item {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Item, len(q.items))
	copy(out, q.items)
	return out
}

// Process applies fn to item, typically uploading a set or propagating a
// delete to the remote backend.
type Process func(ctx context.Context, item Item) error

// Drain applies process to every pending item in FIFO order. An item that
// fails is attempted at most Config.MaxAttempts times in total across
// successive Drain calls (RetryCount persists between calls); once its
// RetryCount reaches MaxAttempts it is dropped
// and logged. Drain does not abort on a single item's failure: it
// continues through the rest of the batch, leaving failed (but not yet
// exhausted) items in the queue for the next call.
func (q *Queue) Drain(ctx context.Context, process Process) (drained int, err error) {
	q.mu.Lock()
	items := make([]Item, len(q.items))
	copy(items, q.items)
	q.mu.Unlock()

	var remaining []Item
	for _, item := range items {
		if perr := process(ctx, item); perr != nil {
			item.RetryCount++
			if item.RetryCount >= q.cfg.MaxAttempts {
				q.logger.Error("offline queue item exhausted retries, dropping",
					zap.String("key", item.Key), zap.Int("retry_count", item.RetryCount), zap.Error(perr))
				continue
			}
			remaining = append(remaining, item)
			continue
		}
		drained++
	}

	q.mu.Lock()
	q.items = remaining
	err = q.persistLocked(ctx)
	q.mu.Unlock()
	return drained, err
}
