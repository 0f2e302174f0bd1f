package resolver

import (
	"fmt"
	"sync"

	"github.com/pulsepoint/kvsync/pkg/value"
	"go.uber.org/zap"
)

// UnresolvableHandler is invoked when routing or the merge path fails (an
// unknown conflict type, or a panic escaping a merge, e.g. from a custom
// resolver) and gives the caller one last chance to produce a Resolution
// instead of Resolve returning the error. A field strategy that returns an
// error does not reach it: the merge falls back to the structural merge.
type UnresolvableHandler func(conflict *Conflict, mergeErr error) (*Resolution, error)

// Config configures a Resolver.
type Config struct {
	DefaultStrategy           Strategy
	FieldStrategies           []FieldMergeStrategy
	PreferLocalOnTypeConflict bool
	EnableThreeWayMerge       bool
	TrackHistory              bool
	MaxHistoryEntries         int
	OnUnresolvableConflict    UnresolvableHandler
	Logger                    *zap.Logger
}

// DefaultConfig returns sensible defaults: last-write-wins at the
// conflict-routing level, three-way merge enabled, up to 500 history
// entries retained.
func DefaultConfig() *Config {
	return &Config{
		DefaultStrategy:     StrategyLastWriteWins,
		EnableThreeWayMerge: true,
		TrackHistory:        true,
		MaxHistoryEntries:   500,
	}
}

// Resolver classifies conflicts and resolves them: skip, pick a side, or
// merge. Resolve and the history methods may be called concurrently;
// RegisterFieldResolver and UnregisterFieldResolver are not synchronized
// and must not run concurrently with any other method.
type Resolver struct {
	config          *Config
	logger          *zap.Logger
	customResolvers map[string]CustomResolverFn

	historyMu sync.Mutex
	history   []HistoryEntry
}

// New constructs a Resolver. A nil config falls back to DefaultConfig.
func New(config *Config) *Resolver {
	if config == nil {
		config = DefaultConfig()
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		config:          config,
		logger:          logger,
		customResolvers: make(map[string]CustomResolverFn),
	}
}

// RegisterFieldResolver registers a CUSTOM-strategy resolver for field,
// used when a FieldMergeStrategy for that path has Strategy ==
// StrategyCustom and no inline CustomResolver of its own.
func (r *Resolver) RegisterFieldResolver(field string, fn CustomResolverFn) {
	r.customResolvers[field] = fn
}

// UnregisterFieldResolver removes a previously registered resolver.
func (r *Resolver) UnregisterFieldResolver(field string) {
	delete(r.customResolvers, field)
}

// Resolve classifies conflict (if not already classified) and returns the
// resolution to apply.
func (r *Resolver) Resolve(conflict *Conflict) (*Resolution, error) {
	if conflict.Type == "" {
		conflict.Type = Classify(conflict)
	}

	resolution, err := r.route(conflict)
	if err != nil {
		if r.config.OnUnresolvableConflict != nil {
			resolution, err = r.config.OnUnresolvableConflict(conflict, err)
		}
		if err != nil {
			return nil, err
		}
	}

	if r.config.TrackHistory {
		r.appendHistory(HistoryEntry{
			Timestamp:  nowMillis(),
			Key:        conflict.Key,
			Type:       conflict.Type,
			Resolution: *resolution,
			Automatic:  true,
		})
	}

	return resolution, nil
}

// ResolveAll resolves a batch of conflicts in order, returning one
// Resolution per input conflict. A single conflict's failure does not
// abort the batch: it is collected as a resolver error via result[i]==nil
// and the accompanying error in the returned slice's matching index.
func (r *Resolver) ResolveAll(conflicts []*Conflict) ([]*Resolution, []error) {
	resolutions := make([]*Resolution, len(conflicts))
	errs := make([]error, len(conflicts))
	for i, c := range conflicts {
		res, err := r.Resolve(c)
		resolutions[i] = res
		errs[i] = err
	}
	return resolutions, errs
}

func (r *Resolver) route(c *Conflict) (*Resolution, error) {
	switch c.Type {
	case TypeDeleteDelete:
		return &Resolution{Action: ActionSkip, Reason: "deleted on both sides"}, nil

	case TypeModifyDelete:
		if r.config.PreferLocalOnTypeConflict {
			return &Resolution{Action: ActionUpload, Value: c.LocalValue, Reason: "local modification wins over remote delete"}, nil
		}
		return &Resolution{Action: ActionDelete, Direction: DirectionLocal, Reason: "remote delete wins over local modification"}, nil

	case TypeDeleteModify:
		if r.config.PreferLocalOnTypeConflict {
			return &Resolution{Action: ActionDelete, Direction: DirectionRemote, Reason: "local delete wins over remote modification"}, nil
		}
		return &Resolution{Action: ActionDownload, Value: c.RemoteValue, Reason: "remote modification wins over local delete"}, nil

	case TypeTypeChange:
		if r.config.PreferLocalOnTypeConflict {
			return &Resolution{Action: ActionUpload, Value: c.LocalValue, Reason: "local value wins on type change"}, nil
		}
		return &Resolution{Action: ActionDownload, Value: c.RemoteValue, Reason: "remote value wins on type change"}, nil

	case TypeAddAdd, TypeModifyModify, TypeArrayReorder:
		return r.mergePath(c)

	default:
		return nil, fmt.Errorf("resolver: unknown conflict type %q", c.Type)
	}
}

func (r *Resolver) mergePath(c *Conflict) (res *Resolution, err error) {
	defer func() {
		if p := recover(); p != nil {
			res, err = nil, fmt.Errorf("resolver: merge panicked: %v", p)
		}
	}()

	var merged value.Value
	if c.BaseValue != nil && r.config.EnableThreeWayMerge {
		merged, err = r.ThreeWayMerge(*c.LocalValue, *c.RemoteValue, *c.BaseValue)
	} else {
		switch r.config.DefaultStrategy {
		case StrategyLocalWins:
			return &Resolution{Action: ActionUpload, Value: c.LocalValue, Reason: "local wins"}, nil
		case StrategyRemoteWins:
			return &Resolution{Action: ActionDownload, Value: c.RemoteValue, Reason: "remote wins"}, nil
		case StrategyLastWriteWins:
			if c.LocalTimestamp >= c.RemoteTimestamp {
				return &Resolution{Action: ActionUpload, Value: c.LocalValue, Reason: "local write is newer"}, nil
			}
			return &Resolution{Action: ActionDownload, Value: c.RemoteValue, Reason: "remote write is newer"}, nil
		default:
			merged, err = r.TwoWayMerge(*c.LocalValue, *c.RemoteValue)
		}
	}
	if err != nil {
		return nil, err
	}
	return &Resolution{Action: ActionMerge, Value: &merged, Reason: "structural merge"}, nil
}

// GetHistory returns up to limit of the most recent resolutions, most
// recent last. limit<=0 returns the entire retained history.
func (r *Resolver) GetHistory(limit int) []HistoryEntry {
	r.historyMu.Lock()
	defer r.historyMu.Unlock()
	if limit <= 0 || limit >= len(r.history) {
		out := make([]HistoryEntry, len(r.history))
		copy(out, r.history)
		return out
	}
	start := len(r.history) - limit
	out := make([]HistoryEntry, limit)
	copy(out, r.history[start:])
	return out
}

// ClearHistory discards all retained history entries.
func (r *Resolver) ClearHistory() {
	r.historyMu.Lock()
	defer r.historyMu.Unlock()
	r.history = nil
}

func (r *Resolver) appendHistory(entry HistoryEntry) {
	r.historyMu.Lock()
	defer r.historyMu.Unlock()
	r.history = append(r.history, entry)
	max := r.config.MaxHistoryEntries
	if max > 0 && len(r.history) > max {
		r.history = r.history[len(r.history)-max:]
	}
}
