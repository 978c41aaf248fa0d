package cursor

import (
	"context"
	"database/sql/driver"
	"io"
	"math"
	"reflect"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestDriverRows(t *testing.T) {
	require := require.New(t)

	fields := Descriptors{
		{Name: "ID", Type: TypeSmallInt},
		{Name: "NAME", Alias: "label", Type: TypeVarChar, Size: 30, Nullable: true},
		{Name: "PRICE", Type: TypeNumeric, Size: 12, Scale: -2},
		{Name: "BODY", Type: TypeText, Nullable: true},
	}
	cmd := newFakeCommand(fields,
		[]any{int16(1), "first", decimal.RequireFromString("9.99"), nil},
		[]any{int16(2), nil, decimal.RequireFromString("0.50"), "text"},
	)
	cmd.implicitTx = true
	r := NewReader(cmd, nil, BehaviorDefault)

	rows := r.DriverRows(context.Background())
	require.Equal([]string{"ID", "label", "PRICE", "BODY"}, rows.Columns())

	typed := rows.(interface {
		driver.RowsColumnTypeDatabaseTypeName
		driver.RowsColumnTypeLength
		driver.RowsColumnTypeNullable
		driver.RowsColumnTypePrecisionScale
		driver.RowsColumnTypeScanType
	})
	require.Equal("NUMERIC", typed.ColumnTypeDatabaseTypeName(2))

	length, ok := typed.ColumnTypeLength(1)
	require.True(ok)
	require.EqualValues(30, length)
	length, ok = typed.ColumnTypeLength(3)
	require.True(ok)
	require.EqualValues(math.MaxInt64, length)
	_, ok = typed.ColumnTypeLength(0)
	require.False(ok)

	nullable, ok := typed.ColumnTypeNullable(1)
	require.True(ok)
	require.True(nullable)

	precision, scale, ok := typed.ColumnTypePrecisionScale(2)
	require.True(ok)
	require.EqualValues(12, precision)
	require.EqualValues(2, scale)
	_, _, ok = typed.ColumnTypePrecisionScale(0)
	require.False(ok)

	require.Equal(typeInt64, typed.ColumnTypeScanType(0))
	require.Equal(typeString, typed.ColumnTypeScanType(2))
	require.Equal(typeAny, typed.ColumnTypeScanType(99))

	dest := make([]driver.Value, 4)
	require.NoError(rows.Next(dest))
	require.Equal([]driver.Value{int64(1), "first", "9.99", nil}, dest)

	require.NoError(rows.Next(dest))
	require.Equal([]driver.Value{int64(2), nil, "0.5", "text"}, dest)

	require.ErrorIs(rows.Next(dest), io.EOF)

	require.NoError(rows.Close())
	require.Equal([]string{"commit", "detach"}, cmd.calls)
	require.True(r.IsClosed())
}

func TestDriverScanTypeMatchesValues(t *testing.T) {
	id := uuid.NewSHA1(uuid.NameSpaceURL, []byte("row"))
	tests := []struct {
		name   string
		column ColumnDescriptor
		raw    any
	}{
		{name: "boolean", column: ColumnDescriptor{Type: TypeBoolean}, raw: true},
		{name: "tinyint", column: ColumnDescriptor{Type: TypeTinyInt}, raw: uint8(7)},
		{name: "smallint", column: ColumnDescriptor{Type: TypeSmallInt}, raw: int16(7)},
		{name: "integer", column: ColumnDescriptor{Type: TypeInteger}, raw: int32(7)},
		{name: "bigint", column: ColumnDescriptor{Type: TypeBigInt}, raw: int64(7)},
		{name: "float", column: ColumnDescriptor{Type: TypeFloat}, raw: float32(1.5)},
		{name: "double", column: ColumnDescriptor{Type: TypeDouble}, raw: 1.5},
		{name: "decimal", column: ColumnDescriptor{Type: TypeDecimal, Size: 12, Scale: -2}, raw: decimal.RequireFromString("1.25")},
		{name: "varchar", column: ColumnDescriptor{Type: TypeVarChar, Size: 8}, raw: "text"},
		{name: "binary", column: ColumnDescriptor{Type: TypeBinary}, raw: []byte{1, 2}},
		{name: "guid", column: ColumnDescriptor{Type: TypeGuid}, raw: id},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require := require.New(t)

			tt.column.Name = "C"
			fields := Descriptors{tt.column}
			r := NewReader(newFakeCommand(fields, []any{tt.raw}), nil, BehaviorDefault)
			rows := r.DriverRows(context.Background())

			dest := make([]driver.Value, 1)
			require.NoError(rows.Next(dest))
			scanType := rows.(driver.RowsColumnTypeScanType).ColumnTypeScanType(0)
			require.Equal(reflect.TypeOf(dest[0]), scanType)
			require.NoError(rows.Close())
		})
	}
}
