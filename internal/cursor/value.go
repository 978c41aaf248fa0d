package cursor

import (
	"errors"
	"fmt"
	"reflect"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
)

// ErrNullValue is the cause of an EngineError raised when a typed getter is
// called on a NULL value.
var ErrNullValue = errors.New("value is null")

// Value is one decoded cell of a fetched row.
type Value struct {
	raw   any
	scale int
	typ   DbType
}

// NewValue wraps a decoded engine value for the given column.
func NewValue(column ColumnDescriptor, raw any) Value {
	return Value{raw: raw, scale: column.Scale, typ: column.Type}
}

// Row is the decoded values of one fetched row, one per column.
type Row []Value

// NewRow builds a row from decoded values. The number of values must match
// the descriptor table.
func NewRow(fields Descriptors, raws []any) (Row, error) {
	if len(raws) != len(fields) {
		return nil, fmt.Errorf("%w: got %d values for %d columns", ErrRowShape, len(raws), len(fields))
	}
	row := make(Row, len(raws))
	for i, raw := range raws {
		row[i] = NewValue(fields[i], raw)
	}
	return row, nil
}

// IsNull reports whether the value is SQL NULL.
func (v Value) IsNull() bool {
	return v.raw == nil
}

// Raw returns the value exactly as the engine decoded it.
func (v Value) Raw() any {
	return v.raw
}

// Value returns the value in its column's Go representation. Scaled
// integers are returned as decimals.
func (v Value) Value() (any, error) {
	if v.raw == nil {
		return nil, nil
	}
	if v.typ.isInteger() && v.scale < 0 {
		return v.Decimal()
	}
	return v.raw, nil
}

func (v Value) convertErr(target string, err error) error {
	return &EngineError{
		Code:    "conversion",
		Message: fmt.Sprintf("cannot convert %T to %s", v.raw, target),
		Cause:   err,
	}
}

func (v Value) nullErr(target string) error {
	return &EngineError{
		Code:    "null",
		Message: "cannot read " + target,
		Cause:   ErrNullValue,
	}
}

// Boolean returns the value as a bool. Engines without a native boolean
// encode it as 0/1 or as text, both of which are accepted.
func (v Value) Boolean() (bool, error) {
	if v.raw == nil {
		return false, v.nullErr("bool")
	}
	b, err := cast.ToBoolE(v.raw)
	if err != nil {
		return false, v.convertErr("bool", err)
	}
	return b, nil
}

func (v Value) Byte() (uint8, error) {
	if v.raw == nil {
		return 0, v.nullErr("uint8")
	}
	b, err := cast.ToUint8E(v.raw)
	if err != nil {
		return 0, v.convertErr("uint8", err)
	}
	return b, nil
}

func (v Value) Int16() (int16, error) {
	if v.raw == nil {
		return 0, v.nullErr("int16")
	}
	n, err := cast.ToInt16E(v.raw)
	if err != nil {
		return 0, v.convertErr("int16", err)
	}
	return n, nil
}

func (v Value) Int32() (int32, error) {
	if v.raw == nil {
		return 0, v.nullErr("int32")
	}
	n, err := cast.ToInt32E(v.raw)
	if err != nil {
		return 0, v.convertErr("int32", err)
	}
	return n, nil
}

func (v Value) Int64() (int64, error) {
	if v.raw == nil {
		return 0, v.nullErr("int64")
	}
	n, err := cast.ToInt64E(v.raw)
	if err != nil {
		return 0, v.convertErr("int64", err)
	}
	return n, nil
}

func (v Value) Float() (float32, error) {
	if v.raw == nil {
		return 0, v.nullErr("float32")
	}
	if d, ok := v.raw.(decimal.Decimal); ok {
		f, _ := d.Float64()
		return float32(f), nil
	}
	f, err := cast.ToFloat32E(v.raw)
	if err != nil {
		return 0, v.convertErr("float32", err)
	}
	return f, nil
}

func (v Value) Double() (float64, error) {
	if v.raw == nil {
		return 0, v.nullErr("float64")
	}
	if d, ok := v.raw.(decimal.Decimal); ok {
		f, _ := d.Float64()
		return f, nil
	}
	f, err := cast.ToFloat64E(v.raw)
	if err != nil {
		return 0, v.convertErr("float64", err)
	}
	return f, nil
}

// Decimal returns the value as a fixed-point number. Integers stored with a
// negative scale are rescaled.
func (v Value) Decimal() (decimal.Decimal, error) {
	if v.raw == nil {
		return decimal.Zero, v.nullErr("decimal")
	}
	switch raw := v.raw.(type) {
	case decimal.Decimal:
		return raw, nil
	case *decimal.Decimal:
		return *raw, nil
	case float32:
		return decimal.NewFromFloat32(raw), nil
	case float64:
		return decimal.NewFromFloat(raw), nil
	case string:
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return decimal.Zero, v.convertErr("decimal", err)
		}
		return d, nil
	case []byte:
		d, err := decimal.NewFromString(string(raw))
		if err != nil {
			return decimal.Zero, v.convertErr("decimal", err)
		}
		return d, nil
	}
	n, err := cast.ToInt64E(v.raw)
	if err != nil {
		return decimal.Zero, v.convertErr("decimal", err)
	}
	if v.typ.isInteger() && v.scale < 0 {
		return decimal.New(n, int32(v.scale)), nil
	}
	return decimal.NewFromInt(n), nil
}

func (v Value) Text() (string, error) {
	if v.raw == nil {
		return "", v.nullErr("string")
	}
	switch raw := v.raw.(type) {
	case string:
		return raw, nil
	case []byte:
		return string(raw), nil
	}
	s, err := cast.ToStringE(v.raw)
	if err != nil {
		return "", v.convertErr("string", err)
	}
	return s, nil
}

// Char returns the first character of a textual value.
func (v Value) Char() (rune, error) {
	s, err := v.Text()
	if err != nil {
		return 0, err
	}
	if s == "" {
		return 0, v.convertErr("rune", errors.New("empty string"))
	}
	r, _ := utf8.DecodeRuneInString(s)
	return r, nil
}

func (v Value) DateTime() (time.Time, error) {
	if v.raw == nil {
		return time.Time{}, v.nullErr("time.Time")
	}
	if t, ok := v.raw.(time.Time); ok {
		return t, nil
	}
	t, err := cast.ToTimeE(v.raw)
	if err != nil {
		return time.Time{}, v.convertErr("time.Time", err)
	}
	return t, nil
}

func (v Value) Guid() (uuid.UUID, error) {
	if v.raw == nil {
		return uuid.Nil, v.nullErr("uuid.UUID")
	}
	switch raw := v.raw.(type) {
	case uuid.UUID:
		return raw, nil
	case [16]byte:
		return uuid.UUID(raw), nil
	case []byte:
		if len(raw) == 16 {
			id, err := uuid.FromBytes(raw)
			if err != nil {
				return uuid.Nil, v.convertErr("uuid.UUID", err)
			}
			return id, nil
		}
		id, err := uuid.ParseBytes(raw)
		if err != nil {
			return uuid.Nil, v.convertErr("uuid.UUID", err)
		}
		return id, nil
	case string:
		id, err := uuid.Parse(raw)
		if err != nil {
			return uuid.Nil, v.convertErr("uuid.UUID", err)
		}
		return id, nil
	}
	return uuid.Nil, v.convertErr("uuid.UUID", fmt.Errorf("unsupported type %s", reflect.TypeOf(v.raw)))
}

// Binary returns the value as bytes. Text is returned as its UTF-8 bytes.
func (v Value) Binary() ([]byte, error) {
	if v.raw == nil {
		return nil, v.nullErr("[]byte")
	}
	switch raw := v.raw.(type) {
	case []byte:
		return raw, nil
	case string:
		return []byte(raw), nil
	case uuid.UUID:
		return raw[:], nil
	}
	return nil, v.convertErr("[]byte", fmt.Errorf("unsupported type %s", reflect.TypeOf(v.raw)))
}
