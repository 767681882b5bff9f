package schema

// JSONSchema renders the schema in the JSON-schema shape consumed by the
// protocol boundary: {"type": "object", "properties": {...}, "required": [...]}.
// Keys are emitted in sorted order so the catalog is deterministic.
func JSONSchema(s Schema) map[string]any {
	properties := map[string]any{}
	required := []string{}

	for _, name := range sortedKeys(s) {
		field := s[name]
		prop := typeSchema(field.Type)
		if field.Description != "" {
			prop["description"] = field.Description
		}
		properties[name] = prop
		if field.Required {
			required = append(required, name)
		}
	}

	out := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		out["required"] = required
	}
	return out
}

func typeSchema(t Type) map[string]any {
	switch v := t.(type) {
	case *IntType:
		out := map[string]any{"type": "integer"}
		if v.min != nil {
			out["minimum"] = *v.min
		}
		if v.max != nil {
			out["maximum"] = *v.max
		}
		return out
	case *NumberType:
		return map[string]any{"type": "number"}
	case *BoolType:
		return map[string]any{"type": "boolean"}
	case *SliceType:
		return map[string]any{
			"type":  "array",
			"items": typeSchema(v.elemType),
		}
	case *EnumType:
		vals := make([]any, len(v.allowed))
		for i, a := range v.allowed {
			vals[i] = a
		}
		return map[string]any{"type": "string", "enum": vals}
	default:
		return map[string]any{"type": "string"}
	}
}
