package postgres

import (
	"math/big"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/joacominatel/minadb/internal/cursor"
)

func TestDescriptorFor(t *testing.T) {
	tests := []struct {
		name string
		fd   pgconn.FieldDescription
		want cursor.ColumnDescriptor
	}{
		{
			name: "integer",
			fd:   pgconn.FieldDescription{Name: "id", DataTypeOID: pgtype.Int4OID, DataTypeSize: 4, TypeModifier: -1},
			want: cursor.ColumnDescriptor{Name: "id", Type: cursor.TypeInteger, Size: 4, Nullable: true},
		},
		{
			name: "numeric(10,2)",
			fd:   pgconn.FieldDescription{Name: "price", DataTypeOID: pgtype.NumericOID, DataTypeSize: -1, TypeModifier: (10<<16 | 2) + 4},
			want: cursor.ColumnDescriptor{Name: "price", Type: cursor.TypeNumeric, Size: 10, Scale: -2, Nullable: true},
		},
		{
			name: "unconstrained numeric",
			fd:   pgconn.FieldDescription{Name: "n", DataTypeOID: pgtype.NumericOID, DataTypeSize: -1, TypeModifier: -1},
			want: cursor.ColumnDescriptor{Name: "n", Type: cursor.TypeNumeric, Nullable: true},
		},
		{
			name: "varchar(40)",
			fd:   pgconn.FieldDescription{Name: "email", DataTypeOID: pgtype.VarcharOID, DataTypeSize: -1, TypeModifier: 44},
			want: cursor.ColumnDescriptor{Name: "email", Type: cursor.TypeVarChar, Size: 40, Nullable: true},
		},
		{
			name: "text",
			fd:   pgconn.FieldDescription{Name: "body", DataTypeOID: pgtype.TextOID, DataTypeSize: -1, TypeModifier: -1},
			want: cursor.ColumnDescriptor{Name: "body", Type: cursor.TypeText, Nullable: true, Long: true},
		},
		{
			name: "unknown type",
			fd:   pgconn.FieldDescription{Name: "j", DataTypeOID: pgtype.JSONBOID, DataTypeSize: -1, TypeModifier: -1},
			want: cursor.ColumnDescriptor{Name: "j", Type: cursor.TypeUnknown, Nullable: true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, descriptorFor(tt.fd))
		})
	}
}

func TestNormalizeValue(t *testing.T) {
	require := require.New(t)

	id := uuid.New()
	require.Equal(id, normalizeValue([16]byte(id)))

	d := normalizeValue(pgtype.Numeric{Int: big.NewInt(12345), Exp: -2, Valid: true})
	require.True(decimal.RequireFromString("123.45").Equal(d.(decimal.Decimal)))

	require.Nil(normalizeValue(pgtype.Numeric{}))
	require.Equal("NaN", normalizeValue(pgtype.Numeric{NaN: true, Valid: true}))
	require.Equal("Infinity", normalizeValue(pgtype.Numeric{InfinityModifier: pgtype.Infinity, Valid: true}))

	tm := normalizeValue(pgtype.Time{Microseconds: int64(90 * time.Minute / time.Microsecond), Valid: true})
	require.Equal(1, tm.(time.Time).Hour())
	require.Equal(30, tm.(time.Time).Minute())

	require.Equal("plain", normalizeValue("plain"))
	require.Nil(normalizeValue(nil))
}

func TestQueries(t *testing.T) {
	require := require.New(t)

	facts, err := columnFactsQuery()
	require.NoError(err)
	require.Contains(facts, "c.table_name = $1 AND c.column_name = $2")
	require.Contains(facts, "constraint_type = 'PRIMARY KEY'")
	require.Contains(facts, "constraint_type = 'UNIQUE'")
	require.Contains(facts, "LIMIT 1")

	attrs, args, err := attributesQuery([]uint32{16384, 16390})
	require.NoError(err)
	require.Contains(attrs, "a.attrelid IN ($1,$2)")
	require.Equal([]any{uint32(16384), uint32(16390)}, args)

	require.Equal(`SELECT * FROM "public"."orders"`, selectAllQuery("public", "orders"))
}
