// Package realtime implements the real-time subscription: backend push
// events are written straight to LocalStore, bypassing the reconciliation
// loop entirely and never advancing the engine's lastSync.
package realtime

import (
	"context"
	"fmt"

	"github.com/pulsepoint/kvsync/internal/core/interfaces"
	"go.uber.org/zap"
)

// Subscription is a live real-time feed from a RemoteBackend into a
// LocalStore.
type Subscription struct {
	unsub  interfaces.Unsubscribe
	logger *zap.Logger
}

// Start subscribes to remote's push feed, if it supports one, and applies
// every pushed item directly to local. onItemSynced, if non-nil, is
// invoked with direction "push" for each applied item. Returns an error
// if remote does not implement interfaces.Subscribable.
func Start(ctx context.Context, remote interfaces.RemoteBackend, local interfaces.LocalStore, logger *zap.Logger, onItemSynced func(key, direction string)) (*Subscription, error) {
	subscribable, ok := remote.(interfaces.Subscribable)
	if !ok {
		return nil, fmt.Errorf("realtime: backend does not support subscriptions")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	unsub, err := subscribable.Subscribe(ctx, func(item interfaces.StorageItem) {
		if err := local.Set(ctx, item.Key, item.Value); err != nil {
			logger.Warn("realtime: failed to apply pushed item", zap.String("key", item.Key), zap.Error(err))
			return
		}
		if onItemSynced != nil {
			onItemSynced(item.Key, "push")
		}
	})
	if err != nil {
		return nil, err
	}
	return &Subscription{unsub: unsub, logger: logger}, nil
}

// Close stops the subscription.
func (s *Subscription) Close() error {
	if s == nil || s.unsub == nil {
		return nil
	}
	return s.unsub()
}
