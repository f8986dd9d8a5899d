package schema

import (
	"regexp"
	"strings"
)

const defsRefPrefix = "#/$defs/"

// Convert converts a JSON-Schema subset into a Schema. inheritedDefs carries
// $defs from an enclosing schema; a local $defs map is merged over it with
// the inner definitions winning.
func Convert(raw map[string]any, inheritedDefs map[string]any) *Schema {
	if raw == nil {
		return &Schema{Kind: KindUnknown}
	}

	defs := inheritedDefs
	if local, ok := raw["$defs"].(map[string]any); ok {
		merged := make(map[string]any, len(inheritedDefs)+len(local))
		for k, v := range inheritedDefs {
			merged[k] = v
		}
		for k, v := range local {
			merged[k] = v
		}
		defs = merged
	}

	return convert(raw, defs)
}

func convert(raw map[string]any, defs map[string]any) *Schema {
	desc, _ := raw["description"].(string)

	if ref, ok := raw["$ref"].(string); ok {
		return resolveRef(ref, desc, defs)
	}

	if branches, ok := raw["anyOf"].([]any); ok {
		return convertAnyOf(branches, desc, defs)
	}

	// oneOf / allOf are outside the supported subset.
	if _, ok := raw["oneOf"]; ok {
		return &Schema{Kind: KindUnknown, Description: desc}
	}
	if _, ok := raw["allOf"]; ok {
		return &Schema{Kind: KindUnknown, Description: desc}
	}

	// A bare string enum implies a string type.
	if enum := stringEnum(raw); enum != nil {
		if t, _ := raw["type"].(string); t == "" || t == "string" {
			return &Schema{Kind: KindString, Description: desc, Enum: enum}
		}
	}

	typ, _ := raw["type"].(string)
	switch typ {
	case "string":
		return convertString(raw, desc)
	case "number":
		return &Schema{Kind: KindNumber, Description: desc}
	case "integer":
		return &Schema{Kind: KindInteger, Description: desc}
	case "boolean":
		return &Schema{Kind: KindBoolean, Description: desc}
	case "array":
		s := &Schema{Kind: KindArray, Description: desc}
		if items, ok := raw["items"].(map[string]any); ok {
			s.Items = convert(items, defs)
		} else {
			s.Items = &Schema{Kind: KindUnknown}
		}
		return s
	case "object":
		return convertObject(raw, desc, defs)
	default:
		return &Schema{Kind: KindUnknown, Description: desc}
	}
}

func convertString(raw map[string]any, desc string) *Schema {
	s := &Schema{Kind: KindString, Description: desc}
	if v, ok := asInt(raw["minLength"]); ok {
		s.MinLength = &v
	}
	if v, ok := asInt(raw["maxLength"]); ok {
		s.MaxLength = &v
	}
	if pattern, ok := raw["pattern"].(string); ok && pattern != "" {
		if re, err := regexp.Compile(pattern); err == nil {
			s.Pattern = re
		}
	}
	s.Enum = stringEnum(raw)
	return s
}

func convertObject(raw map[string]any, desc string, defs map[string]any) *Schema {
	s := &Schema{Kind: KindObject, Description: desc, Properties: map[string]*Schema{}}

	if props, ok := raw["properties"].(map[string]any); ok {
		for name, propRaw := range props {
			propMap, _ := propRaw.(map[string]any)
			s.Properties[name] = convert(propMap, defs)
			s.PropertyOrder = append(s.PropertyOrder, name)
		}
	}
	if required, ok := raw["required"].([]any); ok {
		for _, r := range required {
			if name, ok := r.(string); ok {
				s.Required = append(s.Required, name)
			}
		}
	}
	return s
}

// resolveRef resolves #/$defs/Name references. Unresolvable refs degrade to
// unknown, preserving the referring property's description.
func resolveRef(ref, desc string, defs map[string]any) *Schema {
	if !strings.HasPrefix(ref, defsRefPrefix) {
		return &Schema{Kind: KindUnknown, Description: desc}
	}
	name := strings.TrimPrefix(ref, defsRefPrefix)
	target, ok := defs[name].(map[string]any)
	if !ok {
		return &Schema{Kind: KindUnknown, Description: desc}
	}

	resolved := convert(target, defs)
	if desc != "" {
		// The referring property's description wins over the definition's.
		out := *resolved
		out.Description = desc
		return &out
	}
	return resolved
}

func convertAnyOf(branches []any, desc string, defs map[string]any) *Schema {
	if len(branches) == 0 {
		return &Schema{Kind: KindUnknown, Description: desc}
	}

	var maps []map[string]any
	for _, b := range branches {
		if m, ok := b.(map[string]any); ok {
			maps = append(maps, m)
		}
	}
	if len(maps) == 0 {
		return &Schema{Kind: KindUnknown, Description: desc}
	}

	// [T, {type: null}] in either order collapses to a nullable T.
	if len(maps) == 2 {
		if other, ok := nullablePair(maps); ok {
			s := convert(other, defs)
			out := *s
			out.Nullable = true
			if desc != "" {
				out.Description = desc
			}
			return &out
		}
	}

	// All branches string (regardless of format/enum) collapse to string.
	allString := true
	for _, m := range maps {
		if t, _ := m["type"].(string); t != "string" {
			allString = false
			break
		}
	}
	if allString {
		return &Schema{Kind: KindString, Description: desc}
	}

	if len(maps) == 1 {
		s := convert(maps[0], defs)
		if desc != "" {
			out := *s
			out.Description = desc
			return &out
		}
		return s
	}

	// Two or more distinct types form a tagged union.
	union := &Schema{Kind: KindUnion, Description: desc}
	for _, m := range maps {
		union.Variants = append(union.Variants, convert(m, defs))
	}
	return union
}

// nullablePair reports whether exactly one of two anyOf branches is
// {type: null} and returns the other branch.
func nullablePair(maps []map[string]any) (map[string]any, bool) {
	isNull := func(m map[string]any) bool {
		t, ok := m["type"]
		if !ok {
			return false
		}
		if s, ok := t.(string); ok {
			return s == "null"
		}
		return t == nil
	}

	switch {
	case isNull(maps[0]) && !isNull(maps[1]):
		return maps[1], true
	case isNull(maps[1]) && !isNull(maps[0]):
		return maps[0], true
	default:
		return nil, false
	}
}

func stringEnum(raw map[string]any) []string {
	values, ok := raw["enum"].([]any)
	if !ok {
		return nil
	}
	var enum []string
	for _, v := range values {
		if s, ok := v.(string); ok {
			enum = append(enum, s)
		}
	}
	return enum
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
