package cursor

import (
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DbType is the logical type tag an engine assigns to a column.
type DbType int

const (
	TypeUnknown DbType = iota
	TypeBoolean
	TypeTinyInt
	TypeSmallInt
	TypeInteger
	TypeBigInt
	TypeFloat
	TypeDouble
	TypeNumeric
	TypeDecimal
	TypeChar
	TypeVarChar
	TypeText
	TypeBinary
	TypeDate
	TypeTime
	TypeTimestamp
	TypeGuid
)

var dbTypeNames = map[DbType]string{
	TypeUnknown:   "UNKNOWN",
	TypeBoolean:   "BOOLEAN",
	TypeTinyInt:   "TINYINT",
	TypeSmallInt:  "SMALLINT",
	TypeInteger:   "INTEGER",
	TypeBigInt:    "BIGINT",
	TypeFloat:     "FLOAT",
	TypeDouble:    "DOUBLE PRECISION",
	TypeNumeric:   "NUMERIC",
	TypeDecimal:   "DECIMAL",
	TypeChar:      "CHAR",
	TypeVarChar:   "VARCHAR",
	TypeText:      "TEXT",
	TypeBinary:    "BINARY",
	TypeDate:      "DATE",
	TypeTime:      "TIME",
	TypeTimestamp: "TIMESTAMP",
	TypeGuid:      "GUID",
}

// String returns the SQL type name.
func (t DbType) String() string {
	if name, ok := dbTypeNames[t]; ok {
		return name
	}
	return dbTypeNames[TypeUnknown]
}

func (t DbType) isInteger() bool {
	switch t {
	case TypeTinyInt, TypeSmallInt, TypeInteger, TypeBigInt:
		return true
	}
	return false
}

var (
	typeBool    = reflect.TypeOf(false)
	typeUint8   = reflect.TypeOf(uint8(0))
	typeInt16   = reflect.TypeOf(int16(0))
	typeInt32   = reflect.TypeOf(int32(0))
	typeInt64   = reflect.TypeOf(int64(0))
	typeFloat32 = reflect.TypeOf(float32(0))
	typeFloat64 = reflect.TypeOf(float64(0))
	typeDecimal = reflect.TypeOf(decimal.Decimal{})
	typeString  = reflect.TypeOf("")
	typeBytes   = reflect.TypeOf([]byte(nil))
	typeTime    = reflect.TypeOf(time.Time{})
	typeUUID    = reflect.TypeOf(uuid.UUID{})
	typeAny     = reflect.TypeOf((*any)(nil)).Elem()
)

// ColumnDescriptor is the static metadata of one result column. Engines
// produce it when the reader is opened; the reader never mutates it.
type ColumnDescriptor struct {
	// Name is the base column name in the owning relation.
	Name string
	// Alias is the name the query gave the column. Empty means no alias.
	Alias string
	// Relation is the owning table. Empty for expressions.
	Relation string
	Type     DbType
	// Size is the declared size in bytes or characters.
	Size int
	// Scale follows the engine convention of negative scales: -2 means two
	// digits after the decimal point.
	Scale    int
	Nullable bool
	// Long marks values that engines stream rather than inline (text and
	// binary blobs).
	Long bool
}

// DisplayName is the name consumers see: the alias when there is one.
func (c ColumnDescriptor) DisplayName() string {
	if c.Alias != "" {
		return c.Alias
	}
	return c.Name
}

// IsAliased reports whether the query renamed the column.
func (c ColumnDescriptor) IsAliased() bool {
	return c.Alias != "" && c.Alias != c.Name
}

// IsDecimal reports whether values are fixed-point numbers. Integer columns
// with a negative scale are stored scaled and count as decimals.
func (c ColumnDescriptor) IsDecimal() bool {
	switch {
	case c.Type == TypeNumeric, c.Type == TypeDecimal:
		return true
	case c.Type.isInteger() && c.Scale < 0:
		return true
	}
	return false
}

// IsLong reports whether values are streamed blobs.
func (c ColumnDescriptor) IsLong() bool {
	return c.Long || c.Type == TypeText || c.Type == TypeBinary
}

// SystemType is the Go type values of this column are returned as.
func (c ColumnDescriptor) SystemType() reflect.Type {
	if c.IsDecimal() {
		return typeDecimal
	}
	switch c.Type {
	case TypeBoolean:
		return typeBool
	case TypeTinyInt:
		return typeUint8
	case TypeSmallInt:
		return typeInt16
	case TypeInteger:
		return typeInt32
	case TypeBigInt:
		return typeInt64
	case TypeFloat:
		return typeFloat32
	case TypeDouble:
		return typeFloat64
	case TypeChar, TypeVarChar, TypeText:
		return typeString
	case TypeBinary:
		return typeBytes
	case TypeDate, TypeTime, TypeTimestamp:
		return typeTime
	case TypeGuid:
		return typeUUID
	default:
		return typeAny
	}
}

// Descriptors is the ordered column descriptor table of a result.
type Descriptors []ColumnDescriptor

// Count returns the number of columns.
func (d Descriptors) Count() int {
	return len(d)
}
