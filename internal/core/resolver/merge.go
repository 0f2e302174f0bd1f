package resolver

import "github.com/pulsepoint/kvsync/pkg/value"

// TwoWayMerge merges local and remote with no common ancestor available.
// Field strategies are consulted with a nil base at every path.
func (r *Resolver) TwoWayMerge(local, remote value.Value) (value.Value, error) {
	return r.twoWayValue("", local, remote), nil
}

func (r *Resolver) twoWayValue(path string, local, remote value.Value) value.Value {
	if fs, ok := r.matchFieldStrategy(path); ok {
		if merged, err := r.applyFieldStrategy(fs, &local, &remote, nil); err == nil {
			return merged
		}
	}
	if local.Kind() != remote.Kind() {
		if r.config.PreferLocalOnTypeConflict {
			return local
		}
		return remote
	}
	switch local.Kind() {
	case value.KindObject:
		return value.Object(r.mergeObjectsTwoWay(path, local.AsObject(), remote.AsObject()))
	case value.KindArray:
		return value.Array(r.mergeArraysTwoWay(local.AsArray(), remote.AsArray())...)
	default:
		return r.applyDefaultPrimitiveTwoWay(local, remote)
	}
}

// applyDefaultPrimitiveTwoWay applies DefaultStrategy to a primitive pair
// with no ancestor: only LOCAL_WINS/REMOTE_WINS are meaningful here, any
// other configured strategy falls back to LOCAL_WINS.
func (r *Resolver) applyDefaultPrimitiveTwoWay(local, remote value.Value) value.Value {
	if r.config.DefaultStrategy == StrategyRemoteWins {
		return remote
	}
	return local
}

func (r *Resolver) mergeObjectsTwoWay(path string, local, remote map[string]value.Value) map[string]value.Value {
	result := make(map[string]value.Value, len(local)+len(remote))
	for key, lv := range local {
		if rv, ok := remote[key]; ok {
			result[key] = r.twoWayValue(joinPath(path, key), lv, rv)
		} else {
			result[key] = lv
		}
	}
	for key, rv := range remote {
		if _, ok := local[key]; !ok {
			result[key] = rv
		}
	}
	return result
}

func (r *Resolver) mergeArraysTwoWay(local, remote []value.Value) []value.Value {
	switch r.config.DefaultStrategy {
	case StrategyLocalWins:
		return local
	case StrategyRemoteWins:
		return remote
	case StrategyArrayConcat:
		return append(append([]value.Value{}, local...), remote...)
	case StrategyKeepBoth:
		return []value.Value{value.Array(local...), value.Array(remote...)}
	default:
		return arrayUnion(local, remote)
	}
}

// ThreeWayMerge merges local and remote given their common ancestor base.
func (r *Resolver) ThreeWayMerge(local, remote, base value.Value) (value.Value, error) {
	return r.threeWayValue("", local, remote, base), nil
}

func (r *Resolver) threeWayValue(path string, local, remote, base value.Value) value.Value {
	localChanged := !value.Equal(local, base)
	remoteChanged := !value.Equal(remote, base)

	switch {
	case !localChanged && !remoteChanged:
		return base
	case localChanged && !remoteChanged:
		return local
	case !localChanged && remoteChanged:
		return remote
	}

	// Both sides changed relative to base.
	if fs, ok := r.matchFieldStrategy(path); ok {
		if merged, err := r.applyFieldStrategy(fs, &local, &remote, &base); err == nil {
			return merged
		}
	}
	if local.Kind() == value.KindObject && remote.Kind() == value.KindObject && base.Kind() == value.KindObject {
		return value.Object(r.threeWayObjectMerge(path, local.AsObject(), remote.AsObject(), base.AsObject()))
	}
	if local.Kind() == value.KindArray && remote.Kind() == value.KindArray && base.Kind() == value.KindArray {
		return value.Array(threeWayArrayMerge(local.AsArray(), remote.AsArray(), base.AsArray())...)
	}
	return r.applyDefaultValue(local, remote)
}

// applyDefaultValue resolves a both-sides-changed conflict that recursion
// could not structurally merge, using DefaultStrategy generically (no
// timestamps are available at this level, so LAST_WRITE_WINS is not
// meaningful here and behaves like LOCAL_WINS).
func (r *Resolver) applyDefaultValue(local, remote value.Value) value.Value {
	switch r.config.DefaultStrategy {
	case StrategyRemoteWins:
		return remote
	case StrategyArrayConcat:
		if local.Kind() == value.KindArray && remote.Kind() == value.KindArray {
			return value.Array(append(append([]value.Value{}, local.AsArray()...), remote.AsArray()...)...)
		}
		return local
	case StrategyKeepBoth:
		if local.Kind() == value.KindArray && remote.Kind() == value.KindArray {
			return value.Array(value.Array(local.AsArray()...), value.Array(remote.AsArray()...))
		}
		return local
	case StrategyArrayUnion, StrategyDeepMerge:
		if local.Kind() == value.KindArray && remote.Kind() == value.KindArray {
			return value.Array(arrayUnion(local.AsArray(), remote.AsArray())...)
		}
		if local.Kind() == value.KindObject && remote.Kind() == value.KindObject {
			return value.Object(r.mergeObjectsTwoWay("", local.AsObject(), remote.AsObject()))
		}
		return local
	default:
		return local
	}
}

// slot represents one side's (value, presence) pair for a map key during
// a three-way object merge, distinguishing "absent" from "explicit null".
type slot struct {
	v  value.Value
	ok bool
}

func getSlot(m map[string]value.Value, key string) slot {
	v, ok := m[key]
	return slot{v: v, ok: ok}
}

func slotEqual(a, b slot) bool {
	if a.ok != b.ok {
		return false
	}
	if !a.ok {
		return true
	}
	return value.Equal(a.v, b.v)
}

func (r *Resolver) threeWayObjectMerge(path string, local, remote, base map[string]value.Value) map[string]value.Value {
	keys := make(map[string]struct{}, len(local)+len(remote)+len(base))
	for k := range local {
		keys[k] = struct{}{}
	}
	for k := range remote {
		keys[k] = struct{}{}
	}
	for k := range base {
		keys[k] = struct{}{}
	}

	result := make(map[string]value.Value, len(keys))
	for key := range keys {
		l := getSlot(local, key)
		rr := getSlot(remote, key)
		b := getSlot(base, key)
		merged, keep := r.threeWaySlot(joinPath(path, key), l, rr, b)
		if keep {
			result[key] = merged
		}
	}
	return result
}

func (r *Resolver) threeWaySlot(path string, l, rr, b slot) (value.Value, bool) {
	localEqualsBase := slotEqual(l, b)
	remoteEqualsBase := slotEqual(rr, b)

	switch {
	case localEqualsBase && remoteEqualsBase:
		return b.v, b.ok
	case localEqualsBase && !remoteEqualsBase:
		return rr.v, rr.ok
	case !localEqualsBase && remoteEqualsBase:
		return l.v, l.ok
	}

	// Both sides changed this key relative to base.
	if fs, ok := r.matchFieldStrategy(path); ok {
		var lp, rp, bp *value.Value
		if l.ok {
			lp = &l.v
		}
		if rr.ok {
			rp = &rr.v
		}
		if b.ok {
			bp = &b.v
		}
		if merged, err := r.applyFieldStrategy(fs, lp, rp, bp); err == nil {
			return merged, true
		}
	}
	if l.ok && rr.ok && b.ok && l.v.Kind() == value.KindObject && rr.v.Kind() == value.KindObject && b.v.Kind() == value.KindObject {
		return value.Object(r.threeWayObjectMerge(path, l.v.AsObject(), rr.v.AsObject(), b.v.AsObject())), true
	}
	if l.ok && rr.ok && b.ok && l.v.Kind() == value.KindArray && rr.v.Kind() == value.KindArray && b.v.Kind() == value.KindArray {
		return value.Array(threeWayArrayMerge(l.v.AsArray(), rr.v.AsArray(), b.v.AsArray())...), true
	}
	lv, rv := value.Null(), value.Null()
	if l.ok {
		lv = l.v
	}
	if rr.ok {
		rv = rr.v
	}
	return r.applyDefaultValue(lv, rv), true
}

// threeWayArrayMerge implements the array-hash merge: the ordered
// concatenation of (items present in local that also appear in base or
// remote, deduplicated by hash) followed by (items in remote that are
// neither in base nor local, deduplicated by hash).
func threeWayArrayMerge(local, remote, base []value.Value) []value.Value {
	baseHashes := hashSet(base)
	localHashes := hashSet(local)
	remoteHashes := hashSet(remote)

	seen := map[string]bool{}
	var result []value.Value

	for _, item := range local {
		h := value.Hash(item)
		if baseHashes[h] || remoteHashes[h] {
			if !seen[h] {
				seen[h] = true
				result = append(result, item)
			}
		}
	}
	for _, item := range remote {
		h := value.Hash(item)
		if !baseHashes[h] && !localHashes[h] && !seen[h] {
			seen[h] = true
			result = append(result, item)
		}
	}
	return result
}

func hashSet(items []value.Value) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[value.Hash(item)] = true
	}
	return set
}
