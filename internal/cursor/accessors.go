package cursor

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func (r *Reader) value(i int) (Value, error) {
	if err := r.checkState(); err != nil {
		return Value{}, err
	}
	if err := r.checkPosition(); err != nil {
		return Value{}, err
	}
	if err := r.checkIndex(i); err != nil {
		return Value{}, err
	}
	return r.row[i], nil
}

// checkedGetValue validates the cursor position and ordinal, then extracts
// through get. Faults raised by get are returned as *ProviderError.
func checkedGetValue[T any](r *Reader, op string, i int, get func(Value) (T, error)) (T, error) {
	var zero T
	v, err := r.value(i)
	if err != nil {
		return zero, err
	}
	out, err := get(v)
	if err != nil {
		return zero, &ProviderError{Op: op, Ordinal: i, Cause: err}
	}
	return out, nil
}

// GetBoolean returns column i of the current row as a bool.
func (r *Reader) GetBoolean(i int) (bool, error) {
	return checkedGetValue(r, "GetBoolean", i, Value.Boolean)
}

// GetByte returns column i of the current row as a uint8.
func (r *Reader) GetByte(i int) (uint8, error) {
	return checkedGetValue(r, "GetByte", i, Value.Byte)
}

// GetInt16 returns column i of the current row as an int16.
func (r *Reader) GetInt16(i int) (int16, error) {
	return checkedGetValue(r, "GetInt16", i, Value.Int16)
}

// GetInt32 returns column i of the current row as an int32.
func (r *Reader) GetInt32(i int) (int32, error) {
	return checkedGetValue(r, "GetInt32", i, Value.Int32)
}

// GetInt64 returns column i of the current row as an int64.
func (r *Reader) GetInt64(i int) (int64, error) {
	return checkedGetValue(r, "GetInt64", i, Value.Int64)
}

// GetFloat returns column i of the current row as a float32.
func (r *Reader) GetFloat(i int) (float32, error) {
	return checkedGetValue(r, "GetFloat", i, Value.Float)
}

// GetDouble returns column i of the current row as a float64.
func (r *Reader) GetDouble(i int) (float64, error) {
	return checkedGetValue(r, "GetDouble", i, Value.Double)
}

// GetDecimal returns column i of the current row as a decimal.
func (r *Reader) GetDecimal(i int) (decimal.Decimal, error) {
	return checkedGetValue(r, "GetDecimal", i, Value.Decimal)
}

// GetString returns column i of the current row as text.
func (r *Reader) GetString(i int) (string, error) {
	return checkedGetValue(r, "GetString", i, Value.Text)
}

// GetChar returns the first rune of column i of the current row.
func (r *Reader) GetChar(i int) (rune, error) {
	return checkedGetValue(r, "GetChar", i, Value.Char)
}

// GetDateTime returns column i of the current row as a time.
func (r *Reader) GetDateTime(i int) (time.Time, error) {
	return checkedGetValue(r, "GetDateTime", i, Value.DateTime)
}

// GetGuid returns column i of the current row as a UUID.
func (r *Reader) GetGuid(i int) (uuid.UUID, error) {
	return checkedGetValue(r, "GetGuid", i, Value.Guid)
}

// GetBytes copies up to length bytes of the value, starting at dataIndex,
// into buffer at bufferIndex and returns how many were copied. With a nil
// buffer it returns the total length of the value, 0 for NULL.
func (r *Reader) GetBytes(i int, dataIndex int64, buffer []byte, bufferIndex, length int) (int64, error) {
	v, err := r.value(i)
	if err != nil {
		return 0, err
	}
	if buffer == nil && v.IsNull() {
		return 0, nil
	}
	data, err := checkedGetValue(r, "GetBytes", i, Value.Binary)
	if err != nil {
		return 0, err
	}
	if buffer == nil {
		return int64(len(data)), nil
	}
	return copyPartial(data, dataIndex, buffer, bufferIndex, length)
}

// GetChars is GetBytes for characters of a textual value.
func (r *Reader) GetChars(i int, dataIndex int64, buffer []rune, bufferIndex, length int) (int64, error) {
	v, err := r.value(i)
	if err != nil {
		return 0, err
	}
	if buffer == nil && v.IsNull() {
		return 0, nil
	}
	s, err := checkedGetValue(r, "GetChars", i, Value.Text)
	if err != nil {
		return 0, err
	}
	chars := []rune(s)
	if buffer == nil {
		return int64(len(chars)), nil
	}
	return copyPartial(chars, dataIndex, buffer, bufferIndex, length)
}

func copyPartial[T byte | rune](src []T, dataIndex int64, dst []T, dstIndex, length int) (int64, error) {
	if dataIndex < 0 || dataIndex > int64(len(src)) || dstIndex < 0 || length < 0 {
		return 0, fmt.Errorf("%w: dataIndex=%d bufferIndex=%d length=%d", ErrBufferRange, dataIndex, dstIndex, length)
	}
	start := int(dataIndex)
	n := min(length, len(src)-start)
	if dstIndex+n > len(dst) {
		return 0, fmt.Errorf("%w: need %d slots at %d, buffer has %d", ErrBufferRange, n, dstIndex, len(dst))
	}
	copy(dst[dstIndex:dstIndex+n], src[start:start+n])
	return int64(n), nil
}

// GetValue returns the value of column i in its Go representation, nil for
// NULL. When the command declared an expected type for i, the reader's
// coercion policy gets the first say.
func (r *Reader) GetValue(i int) (any, error) {
	if err := r.checkState(); err != nil {
		return nil, err
	}
	if r.coerce != nil {
		if expected := r.expectedType(i); expected != nil {
			v, handled, err := r.coerce(r, i, expected)
			if handled {
				return v, err
			}
		}
	}
	return checkedGetValue(r, "GetValue", i, Value.Value)
}

func (r *Reader) expectedType(i int) reflect.Type {
	types := r.command.ExpectedColumnTypes()
	if i < 0 || i >= len(types) {
		return nil
	}
	return types[i]
}

// GetValues fills values with the current row and returns how many were
// written: the smaller of len(values) and FieldCount.
func (r *Reader) GetValues(values []any) (int, error) {
	if err := r.checkState(); err != nil {
		return 0, err
	}
	if err := r.checkPosition(); err != nil {
		return 0, err
	}
	n := min(len(values), len(r.fields))
	for i := range n {
		v, err := r.GetValue(i)
		if err != nil {
			return i, err
		}
		values[i] = v
	}
	return n, nil
}

// IsDBNull reports whether column i of the current row is NULL.
func (r *Reader) IsDBNull(i int) (bool, error) {
	return r.isDBNull(syncStrategy(), i)
}

// IsDBNullContext is the context-aware form of IsDBNull.
func (r *Reader) IsDBNullContext(ctx context.Context, i int) (bool, error) {
	return r.isDBNull(asyncStrategy(ctx), i)
}

func (r *Reader) isDBNull(s strategy, i int) (bool, error) {
	v, err := r.value(i)
	if err != nil {
		return false, err
	}
	if err := s.canceled("IsDBNull"); err != nil {
		return false, err
	}
	return v.IsNull(), nil
}

// GetFieldValue returns column i as T. Numeric values convert between
// numeric types; NULL is only accepted when T is a pointer or interface.
func GetFieldValue[T any](r *Reader, i int) (T, error) {
	var zero T
	v, err := r.GetValue(i)
	if err != nil {
		return zero, err
	}
	target := reflect.TypeOf((*T)(nil)).Elem()
	if v == nil {
		switch target.Kind() {
		case reflect.Pointer, reflect.Interface:
			return zero, nil
		}
		return zero, &ProviderError{Op: "GetFieldValue", Ordinal: i, Cause: ErrNullValue}
	}
	if out, ok := v.(T); ok {
		return out, nil
	}
	rv := reflect.ValueOf(v)
	if target.Kind() == reflect.Pointer && rv.Type().AssignableTo(target.Elem()) {
		ptr := reflect.New(target.Elem())
		ptr.Elem().Set(rv)
		return ptr.Interface().(T), nil
	}
	if rv.Type().ConvertibleTo(target) && (rv.Kind() == target.Kind() || isNumericKind(rv.Kind()) && isNumericKind(target.Kind())) {
		return rv.Convert(target).Interface().(T), nil
	}
	return zero, &ProviderError{
		Op:      "GetFieldValue",
		Ordinal: i,
		Cause:   fmt.Errorf("cannot convert %T to %s", v, target),
	}
}

func isNumericKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
