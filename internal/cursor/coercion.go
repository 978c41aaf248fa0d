package cursor

import "reflect"

// CoercionPolicy adjusts what GetValue returns for an ordinal whose
// consumer declared the Go type it expects. When handled is false GetValue
// falls back to the column's own representation.
type CoercionPolicy func(r *Reader, ordinal int, expected reflect.Type) (value any, handled bool, err error)

// BooleanCoercion returns true booleans for consumers that expect bool or a
// nullable bool, whatever the engine's encoding of the column. A NULL value
// for any nullable expected type is returned as nil.
func BooleanCoercion(r *Reader, ordinal int, expected reflect.Type) (any, bool, error) {
	if expected == nil {
		return nil, false, nil
	}
	if underlying := nullableUnderlying(expected); underlying != nil {
		null, err := r.IsDBNull(ordinal)
		if err != nil {
			return nil, true, err
		}
		if null {
			return nil, true, nil
		}
		if underlying == typeBool {
			b, err := r.GetBoolean(ordinal)
			return b, true, err
		}
	}
	if expected == typeBool {
		b, err := r.GetBoolean(ordinal)
		return b, true, err
	}
	return nil, false, nil
}

// nullableUnderlying returns T for *T and for sql.Null-style structs
// (a Valid bool next to a single value field), nil otherwise.
func nullableUnderlying(t reflect.Type) reflect.Type {
	switch t.Kind() {
	case reflect.Pointer:
		return t.Elem()
	case reflect.Struct:
		if t.NumField() != 2 {
			return nil
		}
		valid, ok := t.FieldByName("Valid")
		if !ok || valid.Type.Kind() != reflect.Bool {
			return nil
		}
		for i := range t.NumField() {
			if f := t.Field(i); f.Name != "Valid" {
				return f.Type
			}
		}
	}
	return nil
}
