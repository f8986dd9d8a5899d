package schema

import (
	"fmt"
	"math"
)

// Validate checks value against the schema and returns a ValidationError
// describing the first violation found.
func (s *Schema) Validate(value any) error {
	return s.validate(value, "")
}

func (s *Schema) validate(value any, path string) error {
	if s == nil || s.Kind == KindUnknown {
		return nil
	}

	if value == nil {
		if s.Nullable {
			return nil
		}
		return &ValidationError{Path: path, Message: "value must not be null"}
	}

	switch s.Kind {
	case KindString:
		return s.validateString(value, path)
	case KindNumber:
		if _, ok := asFloat(value); !ok {
			return typeError(path, "number", value)
		}
		return nil
	case KindInteger:
		f, ok := asFloat(value)
		if !ok {
			return typeError(path, "integer", value)
		}
		if f != math.Trunc(f) {
			return &ValidationError{Path: path, Message: fmt.Sprintf("expected integer, got %v", value)}
		}
		return nil
	case KindBoolean:
		if _, ok := value.(bool); !ok {
			return typeError(path, "boolean", value)
		}
		return nil
	case KindArray:
		return s.validateArray(value, path)
	case KindObject:
		return s.validateObject(value, path)
	case KindUnion:
		for _, variant := range s.Variants {
			if variant.validate(value, path) == nil {
				return nil
			}
		}
		return &ValidationError{Path: path, Message: "value matches no variant of the union"}
	default:
		return nil
	}
}

func (s *Schema) validateString(value any, path string) error {
	str, ok := value.(string)
	if !ok {
		return typeError(path, "string", value)
	}

	if s.MinLength != nil && len(str) < *s.MinLength {
		return &ValidationError{Path: path, Message: fmt.Sprintf("string shorter than minLength %d", *s.MinLength)}
	}
	if s.MaxLength != nil && len(str) > *s.MaxLength {
		return &ValidationError{Path: path, Message: fmt.Sprintf("string longer than maxLength %d", *s.MaxLength)}
	}
	if s.Pattern != nil && !s.Pattern.MatchString(str) {
		return &ValidationError{Path: path, Message: fmt.Sprintf("string does not match pattern %s", s.Pattern.String())}
	}
	if len(s.Enum) > 0 {
		for _, allowed := range s.Enum {
			if str == allowed {
				return nil
			}
		}
		return &ValidationError{Path: path, Message: fmt.Sprintf("value %q not in enum %v", str, s.Enum)}
	}
	return nil
}

func (s *Schema) validateArray(value any, path string) error {
	items, ok := value.([]any)
	if !ok {
		return typeError(path, "array", value)
	}
	for i, item := range items {
		if err := s.Items.validate(item, fmt.Sprintf("%s[%d]", path, i)); err != nil {
			return err
		}
	}
	return nil
}

func (s *Schema) validateObject(value any, path string) error {
	obj, ok := value.(map[string]any)
	if !ok {
		return typeError(path, "object", value)
	}

	for _, name := range s.Required {
		if _, present := obj[name]; !present {
			return &ValidationError{Path: joinPath(path, name), Message: "required parameter missing"}
		}
	}
	for name, propValue := range obj {
		prop, known := s.Properties[name]
		if !known {
			continue
		}
		if err := prop.validate(propValue, joinPath(path, name)); err != nil {
			return err
		}
	}
	return nil
}

func typeError(path, want string, got any) error {
	return &ValidationError{Path: path, Message: fmt.Sprintf("expected %s, got %T", want, got)}
}

func joinPath(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
