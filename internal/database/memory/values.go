package memory

import (
	"fmt"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cast"

	"github.com/joacominatel/minadb/internal/cursor"
)

// convertValue converts v to the storage representation of col.
func convertValue(col ColumnDef, v any) (any, error) {
	if v == nil {
		if !col.Nullable {
			return nil, fmt.Errorf("null value in column %q violates not-null constraint", col.Name)
		}
		return nil, nil
	}

	var (
		out any
		err error
	)
	switch col.Type {
	case cursor.TypeBoolean:
		out, err = cast.ToBoolE(v)
	case cursor.TypeTinyInt, cursor.TypeSmallInt, cursor.TypeInteger, cursor.TypeBigInt:
		out, err = convertInteger(col, v)
	case cursor.TypeFloat:
		out, err = cast.ToFloat32E(v)
	case cursor.TypeDouble:
		out, err = cast.ToFloat64E(v)
	case cursor.TypeNumeric, cursor.TypeDecimal:
		var d decimal.Decimal
		if d, err = toDecimal(v); err == nil && col.Scale < 0 {
			d = d.Round(int32(-col.Scale))
		}
		out = d
	case cursor.TypeChar, cursor.TypeVarChar, cursor.TypeText:
		var s string
		if s, err = cast.ToStringE(v); err == nil && col.Type != cursor.TypeText && col.Size > 0 && utf8.RuneCountInString(s) > col.Size {
			return nil, fmt.Errorf("value too long for %s(%d) column %q", col.Type, col.Size, col.Name)
		}
		out = s
	case cursor.TypeBinary:
		switch b := v.(type) {
		case []byte:
			out = b
		case string:
			out = []byte(b)
		default:
			err = fmt.Errorf("unable to cast %#v of type %T to []byte", v, v)
		}
	case cursor.TypeDate, cursor.TypeTime, cursor.TypeTimestamp:
		out, err = cast.ToTimeE(v)
	case cursor.TypeGuid:
		switch g := v.(type) {
		case uuid.UUID:
			out = g
		default:
			var s string
			if s, err = cast.ToStringE(v); err == nil {
				out, err = uuid.Parse(s)
			}
		}
	default:
		out = v
	}
	if err != nil {
		return nil, fmt.Errorf("invalid input for %s column %q: %w", col.Type, col.Name, err)
	}
	return out, nil
}

// convertInteger stores integers at the column width. Scaled integer
// columns keep the value multiplied by 10^-scale.
func convertInteger(col ColumnDef, v any) (any, error) {
	if col.Scale < 0 {
		d, err := toDecimal(v)
		if err != nil {
			return nil, err
		}
		v = d.Shift(int32(-col.Scale)).Round(0).IntPart()
	} else if d, ok := v.(decimal.Decimal); ok {
		if !d.IsInteger() {
			return nil, fmt.Errorf("%s is not an integer", d)
		}
		v = d.IntPart()
	}

	switch col.Type {
	case cursor.TypeTinyInt:
		return cast.ToUint8E(v)
	case cursor.TypeSmallInt:
		return cast.ToInt16E(v)
	case cursor.TypeInteger:
		return cast.ToInt32E(v)
	default:
		return cast.ToInt64E(v)
	}
}

func toDecimal(v any) (decimal.Decimal, error) {
	switch n := v.(type) {
	case decimal.Decimal:
		return n, nil
	case float32:
		return decimal.NewFromFloat32(n), nil
	case float64:
		return decimal.NewFromFloat(n), nil
	case string:
		return decimal.NewFromString(n)
	}
	i, err := cast.ToInt64E(v)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromInt(i), nil
}

func isNumber(v any) bool {
	switch v.(type) {
	case decimal.Decimal, float32, float64, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	}
	return false
}

// equalValues compares two stored values the way an SQL equality does:
// NULL equals nothing and numbers compare by value.
func equalValues(a, b any) bool {
	if a == nil || b == nil {
		return false
	}
	if isNumber(a) && isNumber(b) {
		da, errA := toDecimal(a)
		db, errB := toDecimal(b)
		return errA == nil && errB == nil && da.Equal(db)
	}
	if ga, ok := a.(uuid.UUID); ok {
		gb, err := uuid.Parse(cast.ToString(b))
		return err == nil && ga == gb
	}
	sa, errA := cast.ToStringE(a)
	sb, errB := cast.ToStringE(b)
	return errA == nil && errB == nil && sa == sb
}

// literalColumn describes an expression column producing v.
func literalColumn(name string, v any) cursor.ColumnDescriptor {
	desc := cursor.ColumnDescriptor{Name: name, Nullable: true}
	switch v := v.(type) {
	case bool:
		desc.Type = cursor.TypeBoolean
	case int, int32, int64:
		desc.Type = cursor.TypeBigInt
		desc.Size = 8
	case float32, float64:
		desc.Type = cursor.TypeDouble
		desc.Size = 8
	case decimal.Decimal:
		desc.Type = cursor.TypeNumeric
		if v.Exponent() < 0 {
			desc.Scale = int(v.Exponent())
		}
	case string:
		desc.Type = cursor.TypeVarChar
		desc.Size = utf8.RuneCountInString(v)
	case []byte:
		desc.Type = cursor.TypeBinary
	case uuid.UUID:
		desc.Type = cursor.TypeGuid
	}
	return desc
}

// literalValue widens a literal to the type literalColumn declared.
func literalValue(v any) any {
	switch v := v.(type) {
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case float32:
		return float64(v)
	}
	return v
}
