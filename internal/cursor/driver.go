package cursor

import (
	"context"
	"database/sql/driver"
	"io"
	"math"
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	_ driver.Rows                           = (*driverRows)(nil)
	_ driver.RowsColumnTypeDatabaseTypeName = (*driverRows)(nil)
	_ driver.RowsColumnTypeLength           = (*driverRows)(nil)
	_ driver.RowsColumnTypeNullable         = (*driverRows)(nil)
	_ driver.RowsColumnTypePrecisionScale   = (*driverRows)(nil)
	_ driver.RowsColumnTypeScanType         = (*driverRows)(nil)
)

// DriverRows exposes the reader as database/sql/driver.Rows. Reads and the
// final Close run under ctx.
func (r *Reader) DriverRows(ctx context.Context) driver.Rows {
	return &driverRows{reader: r, ctx: ctx}
}

type driverRows struct {
	reader *Reader
	ctx    context.Context
}

func (d *driverRows) Columns() []string {
	names := make([]string, len(d.reader.fields))
	for i, f := range d.reader.fields {
		names[i] = f.DisplayName()
	}
	return names
}

func (d *driverRows) Close() error {
	return d.reader.CloseContext(d.ctx)
}

func (d *driverRows) Next(dest []driver.Value) error {
	ok, err := d.reader.ReadContext(d.ctx)
	if err != nil {
		return err
	}
	if !ok {
		return io.EOF
	}
	for i := range min(len(dest), len(d.reader.fields)) {
		v, err := d.reader.GetValue(i)
		if err != nil {
			return err
		}
		dest[i] = toDriverValue(v)
	}
	return nil
}

func (d *driverRows) column(i int) (ColumnDescriptor, bool) {
	if i < 0 || i >= len(d.reader.fields) {
		return ColumnDescriptor{}, false
	}
	return d.reader.fields[i], true
}

func (d *driverRows) ColumnTypeDatabaseTypeName(i int) string {
	f, ok := d.column(i)
	if !ok {
		return ""
	}
	return f.Type.String()
}

func (d *driverRows) ColumnTypeLength(i int) (int64, bool) {
	f, ok := d.column(i)
	if !ok {
		return 0, false
	}
	switch f.Type {
	case TypeText, TypeBinary:
		if f.Size <= 0 {
			return math.MaxInt64, true
		}
		return int64(f.Size), true
	case TypeChar, TypeVarChar:
		return int64(f.Size), true
	}
	return 0, false
}

func (d *driverRows) ColumnTypeNullable(i int) (bool, bool) {
	f, ok := d.column(i)
	if !ok {
		return false, false
	}
	return f.Nullable, true
}

func (d *driverRows) ColumnTypePrecisionScale(i int) (int64, int64, bool) {
	f, ok := d.column(i)
	if !ok || !f.IsDecimal() {
		return 0, 0, false
	}
	return int64(f.Size), int64(-f.Scale), true
}

func (d *driverRows) ColumnTypeScanType(i int) reflect.Type {
	f, ok := d.column(i)
	if !ok {
		return typeAny
	}
	return driverScanType(f.SystemType())
}

// driverScanType maps a column's system type to the type toDriverValue
// hands to Next.
func driverScanType(t reflect.Type) reflect.Type {
	switch t {
	case typeUint8, typeInt16, typeInt32:
		return typeInt64
	case typeFloat32:
		return typeFloat64
	case typeDecimal, typeUUID:
		return typeString
	}
	return t
}

// toDriverValue narrows a reader value to the types driver.Value allows.
func toDriverValue(v any) driver.Value {
	switch v := v.(type) {
	case nil, int64, float64, bool, []byte, string, time.Time:
		return v
	case uint8:
		return int64(v)
	case int16:
		return int64(v)
	case int32:
		return int64(v)
	case int:
		return int64(v)
	case float32:
		return float64(v)
	case decimal.Decimal:
		return v.String()
	case uuid.UUID:
		return v.String()
	}
	return v
}
