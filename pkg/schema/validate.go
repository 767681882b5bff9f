package schema

import "sort"

// Field describes one input parameter of a tool.
type Field struct {
	Type        Type
	Required    bool
	Description string
}

// Schema is a map of parameter names to their field definitions.
// Example: {"year": {Type: IntRange(2000, 2030), Required: true}}
type Schema map[string]Field

// Validate checks if args conforms to the schema.
// Required fields must be present; optional fields are validated only when
// supplied and non-nil. Unknown keys are rejected so that typos surface as
// errors instead of silently dropped parameters.
// Returns an error with all validation failures found, in field order.
func Validate(s Schema, args map[string]any) error {
	var errs []*ValidationError

	for _, name := range sortedKeys(s) {
		field := s[name]
		value, exists := args[name]
		if !exists || value == nil {
			if field.Required {
				errs = append(errs, &ValidationError{
					Key:    name,
					Reason: "required",
					Value:  nil,
				})
			}
			continue
		}
		if err := field.Type.Validate(value); err != nil {
			errs = append(errs, &ValidationError{
				Key:    name,
				Reason: err.Error(),
				Value:  value,
			})
		}
	}

	for _, name := range sortedMapKeys(args) {
		if _, known := s[name]; !known {
			errs = append(errs, &ValidationError{
				Key:    name,
				Reason: "unknown parameter",
				Value:  args[name],
			})
		}
	}

	if len(errs) > 0 {
		return &AggregateError{Errors: errs}
	}
	return nil
}

func sortedKeys(s Schema) []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedMapKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
