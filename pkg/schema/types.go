package schema

import (
	"fmt"
	"reflect"
	"strings"
)

// Type defines the contract for field validation.
// Implementations determine how values are validated against a type.
type Type interface {
	// Name returns the human-readable name of the type (e.g., "string", "integer").
	Name() string
	// Validate checks if a value conforms to this type.
	Validate(value any) error
}

// --- Built-in Type Implementations ---

// StringType validates string values.
type StringType struct{}

func (t *StringType) Name() string { return "string" }

func (t *StringType) Validate(value any) error {
	_, ok := value.(string)
	if !ok {
		return fmt.Errorf("expected string, got %T", value)
	}
	return nil
}

// IntType validates integer values, optionally bounded.
type IntType struct {
	min, max *int
}

func (t *IntType) Name() string { return "integer" }

func (t *IntType) Validate(value any) error {
	n, err := asInt(value)
	if err != nil {
		return err
	}
	if t.min != nil && n < *t.min {
		return fmt.Errorf("must be >= %d, got %d", *t.min, n)
	}
	if t.max != nil && n > *t.max {
		return fmt.Errorf("must be <= %d, got %d", *t.max, n)
	}
	return nil
}

func asInt(value any) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int8:
		return int(v), nil
	case int16:
		return int(v), nil
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	case float64:
		// Accept floats that are whole numbers (from JSON unmarshaling)
		if v == float64(int64(v)) {
			return int(v), nil
		}
		return 0, fmt.Errorf("expected integer, got float (not a whole number)")
	default:
		return 0, fmt.Errorf("expected integer, got %T", value)
	}
}

// NumberType validates floating-point values.
type NumberType struct{}

func (t *NumberType) Name() string { return "number" }

func (t *NumberType) Validate(value any) error {
	switch value.(type) {
	case float32, float64, int, int8, int16, int32, int64:
		return nil
	default:
		return fmt.Errorf("expected number, got %T", value)
	}
}

// BoolType validates boolean values.
type BoolType struct{}

func (t *BoolType) Name() string { return "boolean" }

func (t *BoolType) Validate(value any) error {
	_, ok := value.(bool)
	if !ok {
		return fmt.Errorf("expected boolean, got %T", value)
	}
	return nil
}

// SliceType validates slices of a specific element type.
type SliceType struct {
	elemType Type
}

func (t *SliceType) Name() string {
	return fmt.Sprintf("array of %s", t.elemType.Name())
}

func (t *SliceType) Validate(value any) error {
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return fmt.Errorf("expected array, got %T", value)
	}
	for i := 0; i < rv.Len(); i++ {
		elem := rv.Index(i).Interface()
		if err := t.elemType.Validate(elem); err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
	}
	return nil
}

// EnumType validates string values against a fixed set.
type EnumType struct {
	allowed []string
}

func (t *EnumType) Name() string { return "string" }

func (t *EnumType) Validate(value any) error {
	s, ok := value.(string)
	if !ok {
		return fmt.Errorf("expected string, got %T", value)
	}
	for _, a := range t.allowed {
		if s == a {
			return nil
		}
	}
	return fmt.Errorf("must be one of [%s], got %q", strings.Join(t.allowed, ", "), s)
}

// --- Factory Functions ---

// String creates a string type validator.
func String() Type { return &StringType{} }

// Int creates an integer type validator.
func Int() Type { return &IntType{} }

// IntRange creates an integer type validator bounded to [min, max].
func IntRange(min, max int) Type { return &IntType{min: &min, max: &max} }

// IntMin creates an integer type validator with a lower bound only.
func IntMin(min int) Type { return &IntType{min: &min} }

// Number creates a number type validator.
func Number() Type { return &NumberType{} }

// Bool creates a boolean type validator.
func Bool() Type { return &BoolType{} }

// Slice creates an array type validator for elements of the given type.
func Slice(elemType Type) Type {
	return &SliceType{elemType: elemType}
}

// Enum creates a string type validator restricted to the given values.
func Enum(allowed ...string) Type {
	return &EnumType{allowed: allowed}
}
