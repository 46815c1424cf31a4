package schema

import (
	"fmt"
	"math"
	"reflect"
	"regexp"
)

// Result reports the outcome of a validation. Validation never panics;
// every failure is reported as a structured Result with a human-readable
// message naming the violated constraint.
type Result struct {
	OK      bool
	Message string
}

func ok() Result {
	return Result{OK: true}
}

func fail(format string, args ...any) Result {
	return Result{OK: false, Message: fmt.Sprintf(format, args...)}
}

// Validate checks untyped tool-call arguments against a parameter schema.
// A nil schema validates anything.
func Validate(s *ObjectSchema, args map[string]any) Result {
	if s == nil {
		return ok()
	}

	for name, field := range s.Properties {
		value, present := args[name]
		if !present || value == nil {
			if field.Optional || field.Kind == KindNull {
				continue
			}
			return fail("missing required parameter %q", name)
		}

		if msg := validateValue(name, field, value); msg != "" {
			return Result{OK: false, Message: msg}
		}
	}

	return ok()
}

// validateValue returns an empty string when the value conforms, otherwise
// a message naming the parameter path and the violated constraint.
func validateValue(path string, f *FieldSchema, value any) string {
	switch f.Kind {
	case KindString:
		str, isString := value.(string)
		if !isString {
			return fmt.Sprintf("parameter %q must be a string", path)
		}
		if f.MinLength != nil && len(str) < *f.MinLength {
			return fmt.Sprintf("parameter %q must be at least %d characters", path, *f.MinLength)
		}
		if f.MaxLength != nil && len(str) > *f.MaxLength {
			return fmt.Sprintf("parameter %q must be at most %d characters", path, *f.MaxLength)
		}
		if f.Pattern != "" {
			re, err := regexp.Compile(f.Pattern)
			if err != nil {
				return fmt.Sprintf("parameter %q has an invalid pattern constraint", path)
			}
			if !re.MatchString(str) {
				return fmt.Sprintf("parameter %q must match pattern %s", path, f.Pattern)
			}
		}

	case KindNumber, KindInteger:
		num, isNum := toFloat(value)
		if !isNum {
			return fmt.Sprintf("parameter %q must be a number", path)
		}
		if f.Kind == KindInteger && num != math.Trunc(num) {
			return fmt.Sprintf("parameter %q must be an integer", path)
		}
		if f.Min != nil && num < *f.Min {
			return fmt.Sprintf("parameter %q must be >= %v", path, *f.Min)
		}
		if f.Max != nil && num > *f.Max {
			return fmt.Sprintf("parameter %q must be <= %v", path, *f.Max)
		}

	case KindBoolean:
		if _, isBool := value.(bool); !isBool {
			return fmt.Sprintf("parameter %q must be a boolean", path)
		}

	case KindNull:
		if value != nil {
			return fmt.Sprintf("parameter %q must be null", path)
		}

	case KindArray:
		items, isSlice := value.([]any)
		if !isSlice {
			return fmt.Sprintf("parameter %q must be an array", path)
		}
		if f.Items != nil {
			for i, item := range items {
				if msg := validateValue(fmt.Sprintf("%s[%d]", path, i), f.Items, item); msg != "" {
					return msg
				}
			}
		}

	case KindObject:
		obj, isMap := value.(map[string]any)
		if !isMap {
			return fmt.Sprintf("parameter %q must be an object", path)
		}
		for name, sub := range f.Properties {
			subValue, present := obj[name]
			if !present || subValue == nil {
				if sub.Optional || sub.Kind == KindNull {
					continue
				}
				return fmt.Sprintf("parameter %q is missing required key %q", path, name)
			}
			if msg := validateValue(path+"."+name, sub, subValue); msg != "" {
				return msg
			}
		}

	case KindEnum:
		str, isString := value.(string)
		if !isString {
			return fmt.Sprintf("parameter %q must be a string", path)
		}
		for _, allowed := range f.Values {
			if str == allowed {
				return ""
			}
		}
		return fmt.Sprintf("parameter %q must be one of %v", path, f.Values)

	case KindUnion:
		for _, variant := range f.Variants {
			if validateValue(path, variant, value) == "" {
				return ""
			}
		}
		return fmt.Sprintf("parameter %q matches no allowed variant", path)

	case KindLiteral:
		if !literalEqual(value, f.Literal) {
			return fmt.Sprintf("parameter %q must equal %v", path, f.Literal)
		}

	case KindRecord:
		obj, isMap := value.(map[string]any)
		if !isMap {
			return fmt.Sprintf("parameter %q must be an object", path)
		}
		if f.ValueSchema != nil {
			for key, v := range obj {
				if msg := validateValue(path+"."+key, f.ValueSchema, v); msg != "" {
					return msg
				}
			}
		}
	}

	return ""
}

// toFloat accepts the numeric representations a JSON decoder or a Go caller
// may hand us.
func toFloat(value any) (float64, bool) {
	switch n := value.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func literalEqual(value, literal any) bool {
	if vf, okV := toFloat(value); okV {
		if lf, okL := toFloat(literal); okL {
			return vf == lf
		}
	}
	return reflect.DeepEqual(value, literal)
}
