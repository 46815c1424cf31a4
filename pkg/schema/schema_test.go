package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToExecutionSchema_NilSchema(t *testing.T) {
	wire := ToExecutionSchema(nil)

	assert.Equal(t, "object", wire["type"])
	assert.Empty(t, wire["properties"])
	assert.Empty(t, wire["required"])
}

func TestToExecutionSchema_NoParams(t *testing.T) {
	wire := ToExecutionSchema(NoParams())

	assert.Equal(t, "object", wire["type"])
	assert.Equal(t, map[string]any{}, wire["properties"])
	assert.Equal(t, []string{}, wire["required"])
}

func TestToExecutionSchema_Fields(t *testing.T) {
	s := &ObjectSchema{
		Properties: map[string]*FieldSchema{
			"query": String("search query").WithLength(1, 500),
			"limit": Integer("max results").WithBounds(1, 100).Opt(),
			"mode":  Enum("search mode", "exact", "fuzzy").Opt(),
			"tags":  Array("tag filter", String("")).Opt(),
		},
	}

	wire := ToExecutionSchema(s)
	properties := wire["properties"].(map[string]any)

	query := properties["query"].(map[string]any)
	assert.Equal(t, "string", query["type"])
	assert.Equal(t, 1, query["minLength"])
	assert.Equal(t, 500, query["maxLength"])

	limit := properties["limit"].(map[string]any)
	assert.Equal(t, "integer", limit["type"])
	assert.Equal(t, float64(1), limit["minimum"])
	assert.Equal(t, float64(100), limit["maximum"])

	mode := properties["mode"].(map[string]any)
	assert.Equal(t, []string{"exact", "fuzzy"}, mode["enum"])

	tags := properties["tags"].(map[string]any)
	assert.Equal(t, "array", tags["type"])

	assert.Equal(t, []string{"query"}, wire["required"])
}

func TestValidate_NilSchemaAcceptsAnything(t *testing.T) {
	result := Validate(nil, map[string]any{"whatever": 42})
	assert.True(t, result.OK)
}

func TestValidate_RequiredFields(t *testing.T) {
	s := &ObjectSchema{
		Properties: map[string]*FieldSchema{
			"query": String("search query"),
			"limit": Integer("max results").Opt(),
		},
	}

	tests := []struct {
		name string
		args map[string]any
		ok   bool
	}{
		{"all present", map[string]any{"query": "hiking gear", "limit": float64(5)}, true},
		{"optional missing", map[string]any{"query": "hiking gear"}, true},
		{"required missing", map[string]any{"limit": float64(5)}, false},
		{"required nil", map[string]any{"query": nil}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Validate(s, tt.args)
			assert.Equal(t, tt.ok, result.OK)
			if !tt.ok {
				assert.NotEmpty(t, result.Message)
			}
		})
	}
}

func TestValidate_TypeMismatches(t *testing.T) {
	s := &ObjectSchema{
		Properties: map[string]*FieldSchema{
			"query":   String(""),
			"limit":   Integer(""),
			"enabled": Boolean(""),
			"tags":    Array("", String("")),
		},
	}

	tests := []struct {
		name string
		args map[string]any
	}{
		{"string as number", map[string]any{"query": 1, "limit": float64(1), "enabled": true, "tags": []any{}}},
		{"fractional integer", map[string]any{"query": "q", "limit": 1.5, "enabled": true, "tags": []any{}}},
		{"bool as string", map[string]any{"query": "q", "limit": float64(1), "enabled": "yes", "tags": []any{}}},
		{"array element type", map[string]any{"query": "q", "limit": float64(1), "enabled": true, "tags": []any{1}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Validate(s, tt.args)
			assert.False(t, result.OK)
			assert.NotEmpty(t, result.Message)
		})
	}
}

func TestValidate_Constraints(t *testing.T) {
	s := &ObjectSchema{
		Properties: map[string]*FieldSchema{
			"name":  String("").WithLength(2, 5),
			"score": Number("").WithBounds(0, 1),
			"mode":  Enum("", "a", "b"),
		},
	}

	valid := Validate(s, map[string]any{"name": "abc", "score": 0.5, "mode": "a"})
	require.True(t, valid.OK, valid.Message)

	tooShort := Validate(s, map[string]any{"name": "a", "score": 0.5, "mode": "a"})
	assert.False(t, tooShort.OK)
	assert.Contains(t, tooShort.Message, "at least 2")

	outOfRange := Validate(s, map[string]any{"name": "abc", "score": 1.5, "mode": "a"})
	assert.False(t, outOfRange.OK)

	badEnum := Validate(s, map[string]any{"name": "abc", "score": 0.5, "mode": "z"})
	assert.False(t, badEnum.OK)
	assert.Contains(t, badEnum.Message, "one of")
}

func TestValidate_UnionAndLiteral(t *testing.T) {
	s := &ObjectSchema{
		Properties: map[string]*FieldSchema{
			"target": Union("", String(""), Integer("")),
			"kind":   Literal("local_search"),
		},
	}

	assert.True(t, Validate(s, map[string]any{"target": "notes", "kind": "local_search"}).OK)
	assert.True(t, Validate(s, map[string]any{"target": float64(3), "kind": "local_search"}).OK)
	assert.False(t, Validate(s, map[string]any{"target": true, "kind": "local_search"}).OK)
	assert.False(t, Validate(s, map[string]any{"target": "notes", "kind": "other"}).OK)
}

func TestValidate_NestedObjectAndRecord(t *testing.T) {
	s := &ObjectSchema{
		Properties: map[string]*FieldSchema{
			"filter": Object("", map[string]*FieldSchema{
				"path": String(""),
				"deep": Boolean("").Opt(),
			}),
			"vars": Record("", String("")).Opt(),
		},
	}

	valid := Validate(s, map[string]any{
		"filter": map[string]any{"path": "notes/"},
		"vars":   map[string]any{"a": "1", "b": "2"},
	})
	require.True(t, valid.OK, valid.Message)

	missingKey := Validate(s, map[string]any{"filter": map[string]any{"deep": true}})
	assert.False(t, missingKey.OK)
	assert.Contains(t, missingKey.Message, "path")

	badRecord := Validate(s, map[string]any{
		"filter": map[string]any{"path": "notes/"},
		"vars":   map[string]any{"a": 1},
	})
	assert.False(t, badRecord.OK)
}
