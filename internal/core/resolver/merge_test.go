package resolver

import (
	"testing"

	"github.com/pulsepoint/kvsync/pkg/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTwoWayMergeObjectsUnion(t *testing.T) {
	r := New(&Config{DefaultStrategy: StrategyArrayUnion})
	local := value.Object(map[string]value.Value{"a": value.Number(1), "shared": value.String("local")})
	remote := value.Object(map[string]value.Value{"b": value.Number(2), "shared": value.String("local")})

	merged, err := r.TwoWayMerge(local, remote)
	require.NoError(t, err)

	fields := merged.AsObject()
	assert.Equal(t, 3, len(fields))
	n, _ := fields["a"].AsNumber()
	assert.Equal(t, float64(1), n)
	n, _ = fields["b"].AsNumber()
	assert.Equal(t, float64(2), n)
}

func TestTwoWayMergePrimitiveDefaultsToLocal(t *testing.T) {
	r := New(&Config{DefaultStrategy: StrategyLastWriteWins})
	merged, err := r.TwoWayMerge(value.String("local"), value.String("remote"))
	require.NoError(t, err)
	s, _ := merged.AsString()
	assert.Equal(t, "local", s)
}

func TestTwoWayMergePrimitiveRemoteWins(t *testing.T) {
	r := New(&Config{DefaultStrategy: StrategyRemoteWins})
	merged, err := r.TwoWayMerge(value.String("local"), value.String("remote"))
	require.NoError(t, err)
	s, _ := merged.AsString()
	assert.Equal(t, "remote", s)
}

func TestTwoWayMergeArrayConcat(t *testing.T) {
	r := New(&Config{DefaultStrategy: StrategyArrayConcat})
	merged, err := r.TwoWayMerge(value.Array(value.Number(1)), value.Array(value.Number(2)))
	require.NoError(t, err)
	assert.Equal(t, 2, len(merged.AsArray()))
}

func TestTwoWayMergeArrayUnionDropsDuplicates(t *testing.T) {
	r := New(&Config{DefaultStrategy: StrategyArrayUnion})
	merged, err := r.TwoWayMerge(
		value.Array(value.Number(1), value.Number(2)),
		value.Array(value.Number(2), value.Number(3)),
	)
	require.NoError(t, err)
	assert.Equal(t, 3, len(merged.AsArray()))
}

func TestThreeWayMergeOnlyLocalChanged(t *testing.T) {
	r := New(DefaultConfig())
	base := value.String("base")
	local := value.String("local-changed")
	remote := value.String("base")

	merged, err := r.ThreeWayMerge(local, remote, base)
	require.NoError(t, err)
	s, _ := merged.AsString()
	assert.Equal(t, "local-changed", s)
}

func TestThreeWayMergeOnlyRemoteChanged(t *testing.T) {
	r := New(DefaultConfig())
	base := value.String("base")
	local := value.String("base")
	remote := value.String("remote-changed")

	merged, err := r.ThreeWayMerge(local, remote, base)
	require.NoError(t, err)
	s, _ := merged.AsString()
	assert.Equal(t, "remote-changed", s)
}

func TestThreeWayMergeNeitherChanged(t *testing.T) {
	r := New(DefaultConfig())
	base := value.String("same")
	merged, err := r.ThreeWayMerge(base, base, base)
	require.NoError(t, err)
	s, _ := merged.AsString()
	assert.Equal(t, "same", s)
}

func TestThreeWayMergeObjectFieldAddedByEachSide(t *testing.T) {
	r := New(DefaultConfig())
	base := value.Object(map[string]value.Value{"shared": value.Number(1)})
	local := value.Object(map[string]value.Value{"shared": value.Number(1), "local_only": value.String("l")})
	remote := value.Object(map[string]value.Value{"shared": value.Number(1), "remote_only": value.String("r")})

	merged, err := r.ThreeWayMerge(local, remote, base)
	require.NoError(t, err)

	fields := merged.AsObject()
	assert.Equal(t, 3, len(fields))
	_, hasLocal := fields["local_only"]
	_, hasRemote := fields["remote_only"]
	assert.True(t, hasLocal)
	assert.True(t, hasRemote)
}

func TestThreeWayMergeObjectFieldDeletedOneSide(t *testing.T) {
	r := New(DefaultConfig())
	base := value.Object(map[string]value.Value{"keep": value.Number(1), "drop": value.Number(2)})
	local := value.Object(map[string]value.Value{"keep": value.Number(1)}) // dropped "drop"
	remote := value.Object(map[string]value.Value{"keep": value.Number(1), "drop": value.Number(2)})

	merged, err := r.ThreeWayMerge(local, remote, base)
	require.NoError(t, err)

	_, ok := merged.AsObject()["drop"]
	assert.False(t, ok, "a field deleted on one side and untouched on the other should stay deleted")
}

func TestThreeWayMergeBothSidesChangedSameField(t *testing.T) {
	r := New(&Config{DefaultStrategy: StrategyLocalWins})
	base := value.Object(map[string]value.Value{"count": value.Number(1)})
	local := value.Object(map[string]value.Value{"count": value.Number(2)})
	remote := value.Object(map[string]value.Value{"count": value.Number(3)})

	merged, err := r.ThreeWayMerge(local, remote, base)
	require.NoError(t, err)

	n, _ := merged.AsObject()["count"].AsNumber()
	assert.Equal(t, float64(2), n, "both sides changed the same field with no field strategy: falls back to DefaultStrategy")
}

func TestThreeWayMergeArrayHashBased(t *testing.T) {
	r := New(DefaultConfig())
	base := value.Array(value.Number(1), value.Number(2))
	local := value.Array(value.Number(1), value.Number(2), value.Number(3))  // local added 3
	remote := value.Array(value.Number(1), value.Number(2), value.Number(4)) // remote added 4

	merged, err := r.ThreeWayMerge(local, remote, base)
	require.NoError(t, err)

	arr := merged.AsArray()
	assert.Equal(t, 3, len(arr), "shared items in local order plus the remote-only addition 4; the local-only addition 3 is not kept")
}

func TestFieldStrategyMaxValue(t *testing.T) {
	r := New(&Config{
		DefaultStrategy: StrategyLastWriteWins,
		FieldStrategies: []FieldMergeStrategy{{Path: "score", Strategy: StrategyMaxValue}},
	})
	base := value.Object(map[string]value.Value{"score": value.Number(5)})
	local := value.Object(map[string]value.Value{"score": value.Number(10)})
	remote := value.Object(map[string]value.Value{"score": value.Number(7)})

	merged, err := r.ThreeWayMerge(local, remote, base)
	require.NoError(t, err)

	n, _ := merged.AsObject()["score"].AsNumber()
	assert.Equal(t, float64(10), n)
}

func TestFieldStrategyCounterIncrement(t *testing.T) {
	r := New(&Config{
		FieldStrategies: []FieldMergeStrategy{{Path: "visits", Strategy: StrategyCounterIncrement}},
	})
	base := value.Object(map[string]value.Value{"visits": value.Number(10)})
	local := value.Object(map[string]value.Value{"visits": value.Number(13)})  // +3
	remote := value.Object(map[string]value.Value{"visits": value.Number(15)}) // +5

	merged, err := r.ThreeWayMerge(local, remote, base)
	require.NoError(t, err)

	n, _ := merged.AsObject()["visits"].AsNumber()
	assert.Equal(t, float64(18), n, "counter merge should sum both deltas over base")
}

func TestFieldStrategyWildcardMatch(t *testing.T) {
	r := New(&Config{
		FieldStrategies: []FieldMergeStrategy{{Path: "user.*", Strategy: StrategyRemoteWins}},
	})
	base := value.Object(map[string]value.Value{
		"user": value.Object(map[string]value.Value{"name": value.String("base")}),
	})
	local := value.Object(map[string]value.Value{
		"user": value.Object(map[string]value.Value{"name": value.String("local")}),
	})
	remote := value.Object(map[string]value.Value{
		"user": value.Object(map[string]value.Value{"name": value.String("remote")}),
	})

	merged, err := r.ThreeWayMerge(local, remote, base)
	require.NoError(t, err)

	s, _ := merged.AsObject()["user"].AsObject()["name"].AsString()
	assert.Equal(t, "remote", s)
}

func TestFieldStrategyCustomResolver(t *testing.T) {
	r := New(&Config{
		FieldStrategies: []FieldMergeStrategy{{Path: "tag", Strategy: StrategyCustom}},
	})
	r.RegisterFieldResolver("tag", func(local, remote, base *value.Value) (value.Value, error) {
		return value.String("custom-merged"), nil
	})

	base := value.Object(map[string]value.Value{"tag": value.String("base")})
	local := value.Object(map[string]value.Value{"tag": value.String("local")})
	remote := value.Object(map[string]value.Value{"tag": value.String("remote")})

	merged, err := r.ThreeWayMerge(local, remote, base)
	require.NoError(t, err)

	s, _ := merged.AsObject()["tag"].AsString()
	assert.Equal(t, "custom-merged", s)
}

func TestFieldStrategyKeepBoth(t *testing.T) {
	r := New(&Config{
		FieldStrategies: []FieldMergeStrategy{{Path: "note", Strategy: StrategyKeepBoth}},
	})
	base := value.Object(map[string]value.Value{"note": value.String("base")})
	local := value.Object(map[string]value.Value{"note": value.String("local")})
	remote := value.Object(map[string]value.Value{"note": value.String("remote")})

	merged, err := r.ThreeWayMerge(local, remote, base)
	require.NoError(t, err)

	arr := merged.AsObject()["note"].AsArray()
	require.Len(t, arr, 2)
}
