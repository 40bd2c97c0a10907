package scope

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScalarString(t *testing.T) {
	tests := []struct {
		name     string
		raw      any
		expected string
	}{
		{name: "string", raw: "example.com", expected: "example.com"},
		{name: "integer", raw: int64(42), expected: "42"},
		{name: "float", raw: 99.99, expected: "99.99"},
		{name: "boolean", raw: true, expected: "true"},
		{name: "date", raw: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), expected: "2024-03-01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NewScalar(tt.raw).String())
		})
	}
}

func TestFromTOMLScalar(t *testing.T) {
	v, err := FromTOML("abc123")
	require.NoError(t, err)
	assert.Equal(t, KindScalar, v.Kind())
	assert.Equal(t, "abc123", v.Scalar().String())
}

func TestFromTOMLListOfTables(t *testing.T) {
	v, err := FromTOML([]any{
		map[string]any{"name": "First tool", "value": int64(123)},
		map[string]any{"name": "Second tool", "value": int64(345)},
	})
	require.NoError(t, err)
	require.Equal(t, KindList, v.Kind())

	items := v.List()
	require.Len(t, items, 2)
	assert.Equal(t, "First tool", items[0].Name)
	assert.Equal(t, "123", items[0].Value.String())
	assert.Equal(t, "Second tool", items[1].Name)
	assert.Equal(t, "345", items[1].Value.String())
}

func TestFromTOMLListOfScalars(t *testing.T) {
	v, err := FromTOML([]any{"a", "b", "c"})
	require.NoError(t, err)
	require.Equal(t, KindList, v.Kind())

	items := v.List()
	require.Len(t, items, 3)
	assert.Equal(t, "a", items[0].Name)
	assert.Equal(t, "a", items[0].Value.String())
}

func TestListRoundTripsThroughToTOML(t *testing.T) {
	original := ListValue([]ListItem{
		{Name: "First tool", Value: NewScalar(int64(123))},
		{Name: "Second tool", Value: NewScalar(int64(345))},
	})

	restored, err := FromTOML(original.ToTOML())
	require.NoError(t, err)
	require.Equal(t, KindList, restored.Kind())

	items := restored.List()
	require.Len(t, items, 2)
	assert.Equal(t, "First tool", items[0].Name)
	assert.Equal(t, "123", items[0].Value.String())
}

func TestFromTOMLRejectsTables(t *testing.T) {
	_, err := FromTOML(map[string]any{"nested": "table"})
	assert.Error(t, err)
}

func TestLookupPrecedence(t *testing.T) {
	sc := New(
		Layer{Name: "captures", Vars: map[string]Value{"base_url": ScalarValue("http://cap")}},
		Layer{Name: "target", Vars: map[string]Value{"base_url": ScalarValue("http://tgt"), "token": ScalarValue("abc")}},
	)

	v, from, ok := sc.Lookup("base_url")
	require.True(t, ok)
	assert.Equal(t, "http://cap", v.Scalar().String())
	assert.Equal(t, "captures", from)

	v, from, ok = sc.Lookup("token")
	require.True(t, ok)
	assert.Equal(t, "abc", v.Scalar().String())
	assert.Equal(t, "target", from)

	_, _, ok = sc.Lookup("missing")
	assert.False(t, ok)
}

func TestPushTakesPrecedence(t *testing.T) {
	sc := New(Layer{Name: "base", Vars: map[string]Value{"k": ScalarValue("low")}})
	sc = sc.Push(Layer{Name: "override", Vars: map[string]Value{"k": ScalarValue("high")}})

	v, from, ok := sc.Lookup("k")
	require.True(t, ok)
	assert.Equal(t, "high", v.Scalar().String())
	assert.Equal(t, "override", from)
}

func TestLayerFromTOMLSkipsDirectivesAndTables(t *testing.T) {
	layer, err := LayerFromTOML("request", map[string]any{
		"url":      "example.com",
		"_extract": map[string]any{"token": "$.token"},
		"section":  map[string]any{"inner": "x"},
	})
	require.NoError(t, err)
	assert.Len(t, layer.Vars, 1)
	assert.Contains(t, layer.Vars, "url")
}
