package engine

import (
	"context"
	"encoding/json"

	"github.com/pulsepoint/kvsync/internal/core/interfaces"
	"github.com/pulsepoint/kvsync/pkg/value"
)

// StateReservedKey is the LocalStore key the engine persists its
// SyncState under.
const StateReservedKey = "__cloud_sync_state__"

// State is the engine's process-wide reconciliation state.
type State struct {
	LastSync       int64            `json:"lastSync"`
	IsSyncing      bool             `json:"isSyncing"`
	IsConnected    bool             `json:"isConnected"`
	PendingChanges int              `json:"pendingChanges"`
	// VersionVector is reserved for a future multi-device ordering
	// scheme; the engine writes it through unchanged and never reads it.
	VersionVector map[string]int64 `json:"versionVector,omitempty"`
}

func loadState(ctx context.Context, store interfaces.LocalStore) (State, error) {
	v, ok, err := store.Get(ctx, StateReservedKey)
	if err != nil {
		return State{}, err
	}
	if !ok {
		return State{}, nil
	}
	raw, err := v.MarshalJSON()
	if err != nil {
		return State{}, err
	}
	var s State
	if err := json.Unmarshal(raw, &s); err != nil {
		return State{}, err
	}
	return s, nil
}

func saveState(ctx context.Context, store interfaces.LocalStore, s State) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	var v value.Value
	if err := v.UnmarshalJSON(raw); err != nil {
		return err
	}
	return store.Set(ctx, StateReservedKey, v)
}
