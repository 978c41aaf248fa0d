package postgres

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/joacominatel/minadb/internal/cursor"
)

var oidTypes = map[uint32]cursor.DbType{
	pgtype.BoolOID:        cursor.TypeBoolean,
	pgtype.Int2OID:        cursor.TypeSmallInt,
	pgtype.Int4OID:        cursor.TypeInteger,
	pgtype.OIDOID:         cursor.TypeBigInt,
	pgtype.Int8OID:        cursor.TypeBigInt,
	pgtype.Float4OID:      cursor.TypeFloat,
	pgtype.Float8OID:      cursor.TypeDouble,
	pgtype.NumericOID:     cursor.TypeNumeric,
	pgtype.BPCharOID:      cursor.TypeChar,
	pgtype.VarcharOID:     cursor.TypeVarChar,
	pgtype.NameOID:        cursor.TypeVarChar,
	pgtype.TextOID:        cursor.TypeText,
	pgtype.ByteaOID:       cursor.TypeBinary,
	pgtype.DateOID:        cursor.TypeDate,
	pgtype.TimeOID:        cursor.TypeTime,
	pgtype.TimestampOID:   cursor.TypeTimestamp,
	pgtype.TimestamptzOID: cursor.TypeTimestamp,
	pgtype.UUIDOID:        cursor.TypeGuid,
}

// descriptorFor maps a result field to a column descriptor. Relation and
// base column name are resolved separately.
func descriptorFor(fd pgconn.FieldDescription) cursor.ColumnDescriptor {
	desc := cursor.ColumnDescriptor{
		Name:     fd.Name,
		Type:     oidTypes[fd.DataTypeOID],
		Nullable: true,
	}

	switch desc.Type {
	case cursor.TypeNumeric:
		if precision, scale, ok := numericTypmod(fd.TypeModifier); ok {
			desc.Size = precision
			desc.Scale = -scale
		}
	case cursor.TypeChar, cursor.TypeVarChar:
		if fd.TypeModifier > 4 {
			desc.Size = int(fd.TypeModifier - 4)
		}
	default:
		if fd.DataTypeSize > 0 {
			desc.Size = int(fd.DataTypeSize)
		}
	}
	desc.Long = desc.Type == cursor.TypeText || desc.Type == cursor.TypeBinary
	return desc
}

// numericTypmod decodes the precision and scale packed into a numeric
// type modifier. Unconstrained numerics carry no modifier.
func numericTypmod(typmod int32) (precision, scale int, ok bool) {
	if typmod < 4 {
		return 0, 0, false
	}
	t := typmod - 4
	return int((t >> 16) & 0xffff), int(t & 0xffff), true
}

// normalizeValue converts pgx's decoded values into the representations
// the cursor's typed getters understand.
func normalizeValue(v any) any {
	switch v := v.(type) {
	case pgtype.Numeric:
		return numericValue(v)
	case [16]byte:
		return uuid.UUID(v)
	case pgtype.Time:
		if !v.Valid {
			return nil
		}
		return time.Time{}.Add(time.Duration(v.Microseconds) * time.Microsecond)
	}
	return v
}

func numericValue(n pgtype.Numeric) any {
	switch {
	case !n.Valid:
		return nil
	case n.NaN:
		return "NaN"
	case n.InfinityModifier == pgtype.Infinity:
		return "Infinity"
	case n.InfinityModifier == pgtype.NegativeInfinity:
		return "-Infinity"
	case n.Int == nil:
		return decimal.Zero
	}
	return decimal.NewFromBigInt(n.Int, n.Exp)
}
