package resolver

import (
	"fmt"
	"strings"

	"github.com/pulsepoint/kvsync/pkg/value"
)

// Strategy names a merge policy. The same enum is used both as the
// resolver's DefaultStrategy and per-field in FieldMergeStrategy; which
// values are meaningful depends on context (see applyDefaultValue and
// applyFieldStrategy).
type Strategy string

const (
	StrategyLocalWins        Strategy = "local_wins"
	StrategyRemoteWins       Strategy = "remote_wins"
	StrategyLastWriteWins    Strategy = "last_write_wins"
	StrategyDeepMerge        Strategy = "deep_merge"
	StrategyArrayUnion       Strategy = "array_union"
	StrategyArrayConcat      Strategy = "array_concat"
	StrategyKeepBoth         Strategy = "keep_both"
	StrategyMaxValue         Strategy = "max_value"
	StrategyMinValue         Strategy = "min_value"
	StrategyCounterIncrement Strategy = "counter_increment"
	StrategyCustom           Strategy = "custom"
)

// CustomResolverFn is a caller-supplied merge function for StrategyCustom.
// local/remote/base are nil when that side has no value at this field.
type CustomResolverFn func(local, remote, base *value.Value) (value.Value, error)

// FieldMergeStrategy binds a Strategy to a field path. Path is either an
// exact dotted path ("user.name") or a prefix wildcard ("user.*"), which
// matches any path starting with "user.".
type FieldMergeStrategy struct {
	Path           string
	Strategy       Strategy
	CustomResolver CustomResolverFn
}

func matchesPath(pattern, path string) bool {
	if pattern == path {
		return true
	}
	if strings.HasSuffix(pattern, ".*") {
		prefix := strings.TrimSuffix(pattern, "*")
		return strings.HasPrefix(path, prefix)
	}
	return false
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

// matchFieldStrategy finds the first configured FieldMergeStrategy whose
// Path matches path, exact matches taking priority over wildcard matches.
func (r *Resolver) matchFieldStrategy(path string) (FieldMergeStrategy, bool) {
	var wildcard *FieldMergeStrategy
	for i := range r.config.FieldStrategies {
		fs := r.config.FieldStrategies[i]
		if fs.Path == path {
			return fs, true
		}
		if wildcard == nil && matchesPath(fs.Path, path) {
			w := fs
			wildcard = &w
		}
	}
	if wildcard != nil {
		return *wildcard, true
	}
	return FieldMergeStrategy{}, false
}

func numberOrZero(v *value.Value) float64 {
	if v == nil {
		return 0
	}
	n, ok := v.AsNumber()
	if !ok {
		return 0
	}
	return n
}

// applyFieldStrategy executes fs against one field's local/remote/base
// values, any of which may be nil when that side has no value there.
func (r *Resolver) applyFieldStrategy(fs FieldMergeStrategy, local, remote, base *value.Value) (value.Value, error) {
	switch fs.Strategy {
	case StrategyLocalWins:
		if local != nil {
			return *local, nil
		}
		if remote != nil {
			return *remote, nil
		}
		return value.Null(), nil
	case StrategyRemoteWins:
		if remote != nil {
			return *remote, nil
		}
		if local != nil {
			return *local, nil
		}
		return value.Null(), nil
	case StrategyMaxValue:
		l, rr := numberOrZero(local), numberOrZero(remote)
		if l >= rr {
			return value.Number(l), nil
		}
		return value.Number(rr), nil
	case StrategyMinValue:
		l, rr := numberOrZero(local), numberOrZero(remote)
		if l <= rr {
			return value.Number(l), nil
		}
		return value.Number(rr), nil
	case StrategyCounterIncrement:
		b := numberOrZero(base)
		l := numberOrZero(local)
		rr := numberOrZero(remote)
		return value.Number(l + rr - b), nil
	case StrategyArrayUnion:
		return value.Array(arrayUnion(arrayOrEmpty(local), arrayOrEmpty(remote))...), nil
	case StrategyArrayConcat:
		return value.Array(append(append([]value.Value{}, arrayOrEmpty(local)...), arrayOrEmpty(remote)...)...), nil
	case StrategyKeepBoth:
		l := value.Null()
		if local != nil {
			l = *local
		}
		rr := value.Null()
		if remote != nil {
			rr = *remote
		}
		return value.Array(l, rr), nil
	case StrategyDeepMerge:
		if local != nil && remote != nil && local.Kind() == value.KindObject && remote.Kind() == value.KindObject {
			return value.Object(r.mergeObjectsTwoWay("", local.AsObject(), remote.AsObject())), nil
		}
		if local != nil {
			return *local, nil
		}
		if remote != nil {
			return *remote, nil
		}
		return value.Null(), nil
	case StrategyCustom:
		if fs.CustomResolver != nil {
			return fs.CustomResolver(local, remote, base)
		}
		if fn, ok := r.customResolvers[fs.Path]; ok {
			return fn(local, remote, base)
		}
		return value.Value{}, fmt.Errorf("resolver: no custom resolver registered for field %q", fs.Path)
	default:
		return value.Value{}, fmt.Errorf("resolver: unknown field strategy %q", fs.Strategy)
	}
}

func arrayOrEmpty(v *value.Value) []value.Value {
	if v == nil || v.Kind() != value.KindArray {
		return nil
	}
	return v.AsArray()
}

// arrayUnion concatenates local then remote, dropping later duplicates by
// structural hash while preserving first-seen order.
func arrayUnion(local, remote []value.Value) []value.Value {
	seen := make(map[string]bool, len(local)+len(remote))
	result := make([]value.Value, 0, len(local)+len(remote))
	for _, item := range local {
		h := value.Hash(item)
		if !seen[h] {
			seen[h] = true
			result = append(result, item)
		}
	}
	for _, item := range remote {
		h := value.Hash(item)
		if !seen[h] {
			seen[h] = true
			result = append(result, item)
		}
	}
	return result
}
