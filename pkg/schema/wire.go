package schema

import "sort"

// ToExecutionSchema converts a parameter schema into the wire-format
// JSON-schema-shaped map handed to the model's tool-binding capability.
//
// A nil or empty schema serializes to {type: object, properties: {}, required: []}.
func ToExecutionSchema(s *ObjectSchema) map[string]any {
	wire := map[string]any{
		"type":       "object",
		"properties": map[string]any{},
		"required":   []string{},
	}

	if s == nil || len(s.Properties) == 0 {
		return wire
	}

	if s.Description != "" {
		wire["description"] = s.Description
	}

	properties := make(map[string]any, len(s.Properties))
	required := make([]string, 0, len(s.Properties))

	for name, field := range s.Properties {
		properties[name] = fieldToWire(field)
		if !field.Optional {
			required = append(required, name)
		}
	}
	sort.Strings(required)

	wire["properties"] = properties
	wire["required"] = required
	return wire
}

func fieldToWire(f *FieldSchema) map[string]any {
	wire := map[string]any{}
	if f.Description != "" {
		wire["description"] = f.Description
	}

	switch f.Kind {
	case KindString:
		wire["type"] = "string"
		if f.MinLength != nil {
			wire["minLength"] = *f.MinLength
		}
		if f.MaxLength != nil {
			wire["maxLength"] = *f.MaxLength
		}
		if f.Pattern != "" {
			wire["pattern"] = f.Pattern
		}

	case KindNumber, KindInteger:
		wire["type"] = string(f.Kind)
		if f.Min != nil {
			wire["minimum"] = *f.Min
		}
		if f.Max != nil {
			wire["maximum"] = *f.Max
		}

	case KindBoolean:
		wire["type"] = "boolean"

	case KindNull:
		wire["type"] = "null"

	case KindArray:
		wire["type"] = "array"
		if f.Items != nil {
			wire["items"] = fieldToWire(f.Items)
		}

	case KindObject:
		wire["type"] = "object"
		properties := make(map[string]any, len(f.Properties))
		required := make([]string, 0, len(f.Properties))
		for name, sub := range f.Properties {
			properties[name] = fieldToWire(sub)
			if !sub.Optional {
				required = append(required, name)
			}
		}
		sort.Strings(required)
		wire["properties"] = properties
		wire["required"] = required

	case KindEnum:
		wire["type"] = "string"
		wire["enum"] = f.Values

	case KindUnion:
		variants := make([]map[string]any, 0, len(f.Variants))
		for _, v := range f.Variants {
			variants = append(variants, fieldToWire(v))
		}
		wire["anyOf"] = variants

	case KindLiteral:
		wire["const"] = f.Literal

	case KindRecord:
		wire["type"] = "object"
		if f.ValueSchema != nil {
			wire["additionalProperties"] = fieldToWire(f.ValueSchema)
		}
	}

	return wire
}
