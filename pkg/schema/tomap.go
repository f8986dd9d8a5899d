package schema

// ToMap renders the schema back into a plain JSON-Schema map, suitable for
// handing to a model as a tool parameter definition. Unknown schemas render
// as an empty map (accept anything).
func (s *Schema) ToMap() map[string]any {
	if s == nil || s.Kind == KindUnknown {
		out := map[string]any{}
		if s != nil && s.Description != "" {
			out["description"] = s.Description
		}
		return out
	}

	out := map[string]any{}
	if s.Description != "" {
		out["description"] = s.Description
	}

	switch s.Kind {
	case KindString:
		out["type"] = "string"
		if s.MinLength != nil {
			out["minLength"] = *s.MinLength
		}
		if s.MaxLength != nil {
			out["maxLength"] = *s.MaxLength
		}
		if s.Pattern != nil {
			out["pattern"] = s.Pattern.String()
		}
		if len(s.Enum) > 0 {
			enum := make([]any, len(s.Enum))
			for i, v := range s.Enum {
				enum[i] = v
			}
			out["enum"] = enum
		}
	case KindNumber:
		out["type"] = "number"
	case KindInteger:
		out["type"] = "integer"
	case KindBoolean:
		out["type"] = "boolean"
	case KindArray:
		out["type"] = "array"
		out["items"] = s.Items.ToMap()
	case KindObject:
		out["type"] = "object"
		props := map[string]any{}
		for name, prop := range s.Properties {
			props[name] = prop.ToMap()
		}
		out["properties"] = props
		if len(s.Required) > 0 {
			required := make([]any, len(s.Required))
			for i, r := range s.Required {
				required[i] = r
			}
			out["required"] = required
		}
	case KindUnion:
		variants := make([]any, len(s.Variants))
		for i, v := range s.Variants {
			variants[i] = v.ToMap()
		}
		out["anyOf"] = variants
	}

	if s.Nullable {
		out = map[string]any{
			"anyOf": []any{out, map[string]any{"type": "null"}},
		}
		if s.Description != "" {
			out["description"] = s.Description
		}
	}

	return out
}
