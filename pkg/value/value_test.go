package value

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
		want bool
	}{
		{"null equals null", Null(), Null(), true},
		{"bool equal", Bool(true), Bool(true), true},
		{"bool not equal", Bool(true), Bool(false), false},
		{"number equal", Number(3.5), Number(3.5), true},
		{"string not equal", String("a"), String("b"), false},
		{"different kinds", Number(1), String("1"), false},
		{
			"objects equal regardless of key order",
			Object(map[string]Value{"a": Number(1), "b": String("x")}),
			Object(map[string]Value{"b": String("x"), "a": Number(1)}),
			true,
		},
		{
			"arrays equal only with matching order",
			Array(Number(1), Number(2)),
			Array(Number(2), Number(1)),
			false,
		},
		{
			"arrays equal with matching order",
			Array(Number(1), Number(2)),
			Array(Number(1), Number(2)),
			true,
		},
		{
			"objects differ by value",
			Object(map[string]Value{"a": Number(1)}),
			Object(map[string]Value{"a": Number(2)}),
			false,
		},
		{
			"objects differ by key set",
			Object(map[string]Value{"a": Number(1)}),
			Object(map[string]Value{"b": Number(1)}),
			false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Equal(tt.a, tt.b))
		})
	}
}

func TestHashStableAcrossKeyOrder(t *testing.T) {
	a := Object(map[string]Value{"x": Number(1), "y": String("z")})
	b := Object(map[string]Value{"y": String("z"), "x": Number(1)})
	assert.Equal(t, Hash(a), Hash(b))
}

func TestHashDiffersForDifferentValues(t *testing.T) {
	a := Array(Number(1), Number(2))
	b := Array(Number(2), Number(1))
	assert.NotEqual(t, Hash(a), Hash(b), "array order changes the hash")
}

func TestHashNestedStructures(t *testing.T) {
	a := Object(map[string]Value{
		"items": Array(Number(1), Object(map[string]Value{"nested": Bool(true)})),
	})
	b := Object(map[string]Value{
		"items": Array(Number(1), Object(map[string]Value{"nested": Bool(true)})),
	})
	assert.Equal(t, Hash(a), Hash(b))
}

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	original := Object(map[string]Value{
		"name":    String("widget"),
		"count":   Number(42),
		"active":  Bool(true),
		"missing": Null(),
		"tags":    Array(String("a"), String("b")),
		"nested": Object(map[string]Value{
			"deep": Number(3.14),
		}),
	})

	raw, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded Value
	require.NoError(t, json.Unmarshal(raw, &decoded))

	assert.True(t, Equal(original, decoded))
}

func TestUnmarshalPrimitives(t *testing.T) {
	tests := []struct {
		name string
		json string
		kind Kind
	}{
		{"null", "null", KindNull},
		{"bool", "true", KindBool},
		{"number", "1.5", KindNumber},
		{"string", `"hi"`, KindString},
		{"array", "[1,2]", KindArray},
		{"object", `{"a":1}`, KindObject},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var v Value
			require.NoError(t, json.Unmarshal([]byte(tt.json), &v))
			assert.Equal(t, tt.kind, v.Kind())
		})
	}
}

func TestArrayAndObjectCopyDefensively(t *testing.T) {
	items := []Value{String("a")}
	arr := Array(items...)
	items[0] = String("mutated")
	got := arr.AsArray()
	s, _ := got[0].AsString()
	assert.Equal(t, "a", s)

	fields := map[string]Value{"k": String("a")}
	obj := Object(fields)
	fields["k"] = String("mutated")
	v, ok := obj.AsObject()["k"]
	require.True(t, ok)
	s, _ = v.AsString()
	assert.Equal(t, "a", s)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "null", KindNull.String())
	assert.Equal(t, "object", KindObject.String())
}
