// Package schema converts the JSON-Schema subset used by tool servers into
// a typed parameter schema that can validate call arguments. Supported
// shapes: primitive types, arrays, objects, string enums, $ref into $defs,
// and a pragmatic subset of anyOf. Everything else degrades to an
// accept-anything schema rather than failing the conversion.
package schema

import (
	"fmt"
	"regexp"
)

type Kind string

const (
	KindString  Kind = "string"
	KindNumber  Kind = "number"
	KindInteger Kind = "integer"
	KindBoolean Kind = "boolean"
	KindArray   Kind = "array"
	KindObject  Kind = "object"
	KindUnion   Kind = "union"
	// KindUnknown accepts any value. Produced for unresolvable $refs,
	// oneOf/allOf, and shapes outside the supported subset.
	KindUnknown Kind = "unknown"
)

// Schema is a converted, validatable parameter schema.
type Schema struct {
	Kind        Kind
	Description string
	Nullable    bool

	// String constraints.
	MinLength *int
	MaxLength *int
	Pattern   *regexp.Regexp
	Enum      []string

	// Array item schema.
	Items *Schema

	// Object shape.
	Properties map[string]*Schema
	// PropertyOrder preserves the declaration order of Properties where the
	// source schema provided one.
	PropertyOrder []string
	Required      []string

	// Union variants (two or more distinct types under anyOf).
	Variants []*Schema
}

// ValidationError reports a value that does not conform to the schema,
// with the path of the offending field.
type ValidationError struct {
	Path    string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("parameter '%s': %s", e.Path, e.Message)
	}
	return e.Message
}

// RemoveProperty returns a copy of an object schema without the named
// property (used to hide injected parameters from callers). Non-object
// schemas are returned unchanged.
func (s *Schema) RemoveProperty(name string) *Schema {
	if s == nil || s.Kind != KindObject {
		return s
	}
	if _, ok := s.Properties[name]; !ok {
		return s
	}

	out := *s
	out.Properties = make(map[string]*Schema, len(s.Properties))
	for k, v := range s.Properties {
		if k != name {
			out.Properties[k] = v
		}
	}
	out.PropertyOrder = nil
	for _, k := range s.PropertyOrder {
		if k != name {
			out.PropertyOrder = append(out.PropertyOrder, k)
		}
	}
	out.Required = nil
	for _, k := range s.Required {
		if k != name {
			out.Required = append(out.Required, k)
		}
	}
	return &out
}
