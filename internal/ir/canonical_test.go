package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonicalBasic(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"string", "hello", `"hello"`},
		{"empty string", "", `""`},
		{"int", 42, "42"},
		{"negative int64", int64(-100), "-100"},
		{"bool true", true, "true"},
		{"bool false", false, "false"},
		{"empty array", []any{}, "[]"},
		{"empty object", map[string]any{}, "{}"},
		{"array", []any{1, "a", false}, `[1,"a",false]`},
		{"no html escaping", "a<b>&c", `"a<b>&c"`},
		{"control chars", "a\nb\x01", `"a\nb\u0001"`},
		{"quote and backslash", `a"b\c`, `"a\"b\\c"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalCanonicalSortedKeys(t *testing.T) {
	obj := map[string]any{
		"zebra": 1,
		"alpha": 2,
		"beta":  map[string]any{"y": 1, "x": 2},
	}

	result, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":2,"beta":{"x":2,"y":1},"zebra":1}`, string(result))
}

func TestMarshalCanonicalUTF16KeyOrder(t *testing.T) {
	// U+1F600 encodes as surrogate 0xD83D, which sorts before U+FF61 in UTF-16
	// but after it in UTF-8.
	obj := map[string]any{"｡": 1, "\U0001F600": 2}

	result, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, "{\"\U0001F600\":2,\"｡\":1}", string(result))
}

func TestMarshalCanonicalNFC(t *testing.T) {
	decomposed := "e\u0301"
	result, err := MarshalCanonical(decomposed)
	require.NoError(t, err)
	assert.Equal(t, "\"\u00e9\"", string(result))
}

func TestMarshalCanonicalRejects(t *testing.T) {
	_, err := MarshalCanonical(nil)
	assert.ErrorContains(t, err, "null")

	_, err = MarshalCanonical(map[string]any{"f": 1.5})
	assert.ErrorContains(t, err, "floats are forbidden")

	_, err = MarshalCanonical(struct{}{})
	assert.ErrorContains(t, err, "unsupported type")
}
