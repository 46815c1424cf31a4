// Package schema describes tool parameter schemas and validates tool-call
// arguments against them.
//
// A schema is a small tagged variant interpreted by a recursive
// serializer/validator pair: ToExecutionSchema renders the wire-format
// description advertised to the model, Validate checks untyped arguments
// before a tool handler runs.
package schema

// Kind discriminates field schema variants.
type Kind string

const (
	KindString  Kind = "string"
	KindNumber  Kind = "number"
	KindInteger Kind = "integer"
	KindBoolean Kind = "boolean"
	KindNull    Kind = "null"
	KindArray   Kind = "array"
	KindObject  Kind = "object"
	KindEnum    Kind = "enum"
	KindUnion   Kind = "union"
	KindLiteral Kind = "literal"
	KindRecord  Kind = "record"
)

// FieldSchema describes one parameter value.
type FieldSchema struct {
	Kind        Kind
	Description string
	Optional    bool

	// String constraints.
	MinLength *int
	MaxLength *int
	Pattern   string

	// Numeric constraints.
	Min *float64
	Max *float64

	// Array element schema.
	Items *FieldSchema

	// Object properties.
	Properties map[string]*FieldSchema

	// Enum values.
	Values []string

	// Union variants.
	Variants []*FieldSchema

	// Literal value.
	Literal any

	// Record value schema (string-keyed map with uniform values).
	ValueSchema *FieldSchema
}

// ObjectSchema is the root schema of a tool's input: named parameters.
// A nil ObjectSchema accepts anything and serializes to an empty-object
// wire schema.
type ObjectSchema struct {
	Description string
	Properties  map[string]*FieldSchema
}

// NoParams is the schema of a tool that takes no parameters.
func NoParams() *ObjectSchema {
	return &ObjectSchema{Properties: map[string]*FieldSchema{}}
}

// Builders keep tool definitions terse.

func String(desc string) *FieldSchema {
	return &FieldSchema{Kind: KindString, Description: desc}
}

func Number(desc string) *FieldSchema {
	return &FieldSchema{Kind: KindNumber, Description: desc}
}

func Integer(desc string) *FieldSchema {
	return &FieldSchema{Kind: KindInteger, Description: desc}
}

func Boolean(desc string) *FieldSchema {
	return &FieldSchema{Kind: KindBoolean, Description: desc}
}

func Null() *FieldSchema {
	return &FieldSchema{Kind: KindNull}
}

func Enum(desc string, values ...string) *FieldSchema {
	return &FieldSchema{Kind: KindEnum, Description: desc, Values: values}
}

func Array(desc string, items *FieldSchema) *FieldSchema {
	return &FieldSchema{Kind: KindArray, Description: desc, Items: items}
}

func Object(desc string, props map[string]*FieldSchema) *FieldSchema {
	return &FieldSchema{Kind: KindObject, Description: desc, Properties: props}
}

func Union(desc string, variants ...*FieldSchema) *FieldSchema {
	return &FieldSchema{Kind: KindUnion, Description: desc, Variants: variants}
}

func Literal(value any) *FieldSchema {
	return &FieldSchema{Kind: KindLiteral, Literal: value}
}

func Record(desc string, value *FieldSchema) *FieldSchema {
	return &FieldSchema{Kind: KindRecord, Description: desc, ValueSchema: value}
}

// Opt marks a field optional.
func (f *FieldSchema) Opt() *FieldSchema {
	c := *f
	c.Optional = true
	return &c
}

// WithBounds sets numeric bounds.
func (f *FieldSchema) WithBounds(min, max float64) *FieldSchema {
	c := *f
	c.Min = &min
	c.Max = &max
	return &c
}

// WithLength sets string length bounds.
func (f *FieldSchema) WithLength(min, max int) *FieldSchema {
	c := *f
	c.MinLength = &min
	c.MaxLength = &max
	return &c
}

// WithPattern sets a regexp the string value must match.
func (f *FieldSchema) WithPattern(pattern string) *FieldSchema {
	c := *f
	c.Pattern = pattern
	return &c
}
