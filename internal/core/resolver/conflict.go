// Package resolver implements the conflict classification and structural
// merge logic the sync engine routes every paired local/remote change
// through before applying a resolution.
package resolver

import (
	"time"

	"github.com/pulsepoint/kvsync/pkg/value"
)

// Type identifies the shape of a detected conflict.
type Type string

const (
	TypeDeleteDelete Type = "delete_delete"
	TypeModifyDelete Type = "modify_delete"
	TypeDeleteModify Type = "delete_modify"
	TypeAddAdd       Type = "add_add"
	TypeModifyModify Type = "modify_modify"
	TypeTypeChange   Type = "type_change"
	TypeArrayReorder Type = "array_reorder"
)

// Action is what the engine should do once a conflict is resolved.
type Action string

const (
	ActionUpload   Action = "upload"
	ActionDownload Action = "download"
	ActionMerge    Action = "merge"
	ActionSkip     Action = "skip"
	ActionDelete   Action = "delete"
)

// Direction qualifies an ActionDelete resolution: which side must be
// deleted to converge.
type Direction string

const (
	DirectionLocal  Direction = "local"
	DirectionRemote Direction = "remote"
)

// Conflict describes one key whose local and remote sides disagree.
// LocalValue/RemoteValue/BaseValue are nil when that side has no value
// (deleted, or no common ancestor is known).
type Conflict struct {
	Key             string
	LocalValue      *value.Value
	RemoteValue     *value.Value
	BaseValue       *value.Value
	LocalTimestamp  int64
	RemoteTimestamp int64
	BaseTimestamp   int64
	Type            Type
}

// Resolution is what the resolver decided to do about a Conflict.
type Resolution struct {
	Action    Action
	Value     *value.Value
	Direction Direction
	Reason    string
}

// HistoryEntry is one ring-buffer entry recording a past resolution.
type HistoryEntry struct {
	Timestamp  int64
	Key        string
	Type       Type
	Resolution Resolution
	Automatic  bool
}

func exists(v *value.Value) bool { return v != nil && !v.IsNull() }

// Classify determines a Conflict's Type from the existence and, when all
// three sides exist, the shape of its local/remote/base values. The
// refinement order is fixed: a type change is detected before an array
// reorder, which is detected before falling back to a plain modify/modify.
func Classify(c *Conflict) Type {
	l := exists(c.LocalValue)
	r := exists(c.RemoteValue)
	b := exists(c.BaseValue)

	switch {
	case !l && !r:
		return TypeDeleteDelete
	case l && !r:
		return TypeModifyDelete
	case !l && r:
		return TypeDeleteModify
	case l && r && !b:
		return TypeAddAdd
	default: // l && r && b
		if c.LocalValue.Kind() != c.RemoteValue.Kind() {
			return TypeTypeChange
		}
		if isArrayReorder(*c.LocalValue, *c.RemoteValue) {
			return TypeArrayReorder
		}
		return TypeModifyModify
	}
}

// isArrayReorder reports whether local and remote are arrays holding the
// same multiset of elements (by structural hash) in a different order.
func isArrayReorder(local, remote value.Value) bool {
	if local.Kind() != value.KindArray || remote.Kind() != value.KindArray {
		return false
	}
	la, ra := local.AsArray(), remote.AsArray()
	if len(la) != len(ra) {
		return false
	}
	if value.Equal(local, remote) {
		return false // identical order is not a reorder
	}
	counts := map[string]int{}
	for _, item := range la {
		counts[value.Hash(item)]++
	}
	for _, item := range ra {
		counts[value.Hash(item)]--
	}
	for _, n := range counts {
		if n != 0 {
			return false
		}
	}
	return true
}

func nowMillis() int64 { return time.Now().UnixMilli() }
