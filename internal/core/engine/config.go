package engine

import (
	"time"

	"github.com/pulsepoint/kvsync/internal/core/resolver"
	"github.com/pulsepoint/kvsync/internal/core/retry"
	"go.uber.org/zap"
)

// Strategy selects how the engine decides what changed since the last
// pass. Only StrategyIncremental is implemented; any other configured
// value falls back to it with a logged warning (Open Question: SyncStrategy).
type Strategy string

const (
	StrategyIncremental Strategy = "incremental"
	StrategyFull        Strategy = "full"
	StrategyDelta        Strategy = "delta"
	StrategySelective    Strategy = "selective"
)

// Callbacks are optional hooks the engine invokes around a sync pass.
// None may block for long: they run on the engine's own goroutine.
type Callbacks struct {
	OnSyncStart        func()
	OnSyncComplete     func(result Result)
	OnSyncError        func(err error)
	OnProgress         func(completed, total int)
	OnItemSynced       func(key, direction string)
	OnConnectionChange func(isConnected bool)
}

// Config configures an Engine.
type Config struct {
	Strategy             Strategy
	SyncInterval         time.Duration
	Realtime             bool
	BatchSize            int
	Retry                retry.Config
	OfflineQueueEnabled  bool
	MaxQueueSize         int
	Resolver             *resolver.Resolver
	Callbacks            Callbacks
	Logger               *zap.Logger
}

// DefaultConfig returns the engine defaults: incremental strategy, a
// 60-second periodic pass, a 1000-item offline queue, and the retry
// scheduler's own defaults.
func DefaultConfig() Config {
	return Config{
		Strategy:            StrategyIncremental,
		SyncInterval:        60 * time.Second,
		BatchSize:           100,
		Retry:               retry.DefaultConfig(),
		OfflineQueueEnabled: true,
		MaxQueueSize:        1000,
	}
}
