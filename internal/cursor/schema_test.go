package cursor

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestSchemaTableSingleRelation(t *testing.T) {
	require := require.New(t)

	fields := Descriptors{
		{Name: "ID", Relation: "ORDERS", Type: TypeInteger},
		{Name: "CODE", Alias: "order_code", Relation: "ORDERS", Type: TypeVarChar, Size: 12, Nullable: true},
		{Name: "TOTAL", Relation: "ORDERS", Type: TypeNumeric, Size: 18, Scale: -2},
		{Name: "TAX", Relation: "ORDERS", Type: TypeBigInt, Size: 8, Scale: -4},
		{Name: "NOTES", Relation: "ORDERS", Type: TypeText, Nullable: true},
	}
	cmd := newFakeCommand(fields)
	cmd.catalog = map[string][]any{
		"ORDERS.ID":    facts(false, 1, 0, nil),
		"ORDERS.CODE":  facts(false, 0, 1, nil),
		"ORDERS.TOTAL": facts(true, 0, 0, int16(10)),
		"ORDERS.TAX":   facts(false, 0, 0, nil),
	}

	before := testutil.ToFloat64(catalogQueriesTotal)
	r := NewReader(cmd, nil, BehaviorSchemaOnly)
	table, err := r.GetSchemaTable()
	require.NoError(err)
	require.Len(table.Rows, len(fields))
	require.Equal(1, cmd.prepared)
	require.Equal(1, cmd.catalogShut)
	require.Equal(len(fields), cmd.catalogRuns)
	require.InDelta(before+float64(len(fields)), testutil.ToFloat64(catalogQueriesTotal), 0)

	id := table.Rows[0]
	require.Equal("ID", id.ColumnName)
	require.Equal(0, id.ColumnOrdinal)
	require.True(id.IsKey)
	require.False(id.IsUnique)
	require.False(id.IsExpression)
	require.False(id.NumericPrecision.Valid)
	require.Equal(typeInt32, id.DataType)
	require.Equal("ORDERS", id.BaseTableName)

	code := table.Rows[1]
	require.Equal("order_code", code.ColumnName)
	require.Equal("CODE", code.BaseColumnName)
	require.True(code.IsAliased)
	require.True(code.IsUnique)
	require.True(code.AllowDBNull)

	total := table.Rows[2]
	require.True(total.IsExpression)
	require.True(total.IsReadOnly)
	require.Equal(sql.NullInt32{Int32: 10, Valid: true}, total.NumericPrecision)
	require.Equal(sql.NullInt32{Int32: 2, Valid: true}, total.NumericScale)

	tax := table.Rows[3]
	require.Equal(sql.NullInt32{Int32: 8, Valid: true}, tax.NumericPrecision, "size is used when the catalog has no precision")
	require.Equal(sql.NullInt32{Int32: 4, Valid: true}, tax.NumericScale)
	require.Equal(typeDecimal, tax.DataType)

	notes := table.Rows[4]
	require.True(notes.IsLong)
	require.False(notes.IsKey)

	require.Len(notes.Values(), len(SchemaColumns))
}

func TestSchemaTableIsCached(t *testing.T) {
	require := require.New(t)

	cmd := newFakeCommand(Descriptors{{Name: "ID", Relation: "T", Type: TypeInteger}})
	r := NewReader(cmd, nil, BehaviorDefault)

	first, err := r.GetSchemaTable()
	require.NoError(err)
	second, err := r.GetSchemaTableContext(context.Background())
	require.NoError(err)
	require.Same(first, second)
	require.Equal(1, cmd.prepared)
	require.Equal(1, cmd.catalogRuns)
}

func TestSchemaTableMultipleRelations(t *testing.T) {
	require := require.New(t)

	fields := Descriptors{
		{Name: "ID", Relation: "ORDERS", Type: TypeInteger},
		{Name: "ID", Alias: "CUSTOMER_ID", Relation: "CUSTOMERS", Type: TypeInteger},
		{Name: "EMAIL", Relation: "CUSTOMERS", Type: TypeVarChar},
	}
	cmd := newFakeCommand(fields)
	cmd.catalog = map[string][]any{
		"ORDERS.ID":       facts(false, 1, 1, nil),
		"CUSTOMERS.ID":    facts(false, 1, 0, nil),
		"CUSTOMERS.EMAIL": facts(false, 0, 1, nil),
	}

	r := NewReader(cmd, nil, BehaviorDefault)
	table, err := r.GetSchemaTable()
	require.NoError(err)
	for _, row := range table.Rows {
		require.False(row.IsKey, row.ColumnName)
		require.False(row.IsUnique, row.ColumnName)
	}
}

func TestSchemaTableExpressionColumnsDoNotSplitRelation(t *testing.T) {
	require := require.New(t)

	fields := Descriptors{
		{Name: "ID", Relation: "ORDERS", Type: TypeInteger},
		{Name: "COUNT", Type: TypeBigInt},
	}
	cmd := newFakeCommand(fields)
	cmd.catalog = map[string][]any{
		"ORDERS.ID": facts(false, 1, 0, nil),
	}

	r := NewReader(cmd, nil, BehaviorDefault)
	table, err := r.GetSchemaTable()
	require.NoError(err)
	require.True(table.Rows[0].IsKey)
}

func TestSchemaTableFailureIsNotCached(t *testing.T) {
	require := require.New(t)

	cmd := newFakeCommand(Descriptors{{Name: "ID", Relation: "T", Type: TypeInteger}})
	cmd.catalogErr = errors.New("catalog unavailable")
	r := NewReader(cmd, nil, BehaviorDefault)

	_, err := r.GetSchemaTable()
	var pe *ProviderError
	require.ErrorAs(err, &pe)
	require.ErrorIs(err, cmd.catalogErr)

	cmd.catalogErr = nil
	table, err := r.GetSchemaTable()
	require.NoError(err)
	require.Len(table.Rows, 1)
}

func TestSchemaTableCancelled(t *testing.T) {
	require := require.New(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cmd := newFakeCommand(Descriptors{{Name: "ID", Relation: "T", Type: TypeInteger}})
	r := NewReader(cmd, nil, BehaviorDefault)

	_, err := r.GetSchemaTableContext(ctx)
	require.True(IsCanceled(err))
	require.Zero(cmd.prepared)

	table, err := r.GetSchemaTable()
	require.NoError(err)
	require.Len(table.Rows, 1)
}

func TestSchemaTableReleasedOnClose(t *testing.T) {
	require := require.New(t)

	cmd := newFakeCommand(Descriptors{{Name: "ID", Relation: "T", Type: TypeInteger}})
	r := NewReader(cmd, nil, BehaviorDefault)
	_, err := r.GetSchemaTable()
	require.NoError(err)

	require.NoError(r.Close())
	_, err = r.GetSchemaTable()
	require.ErrorIs(err, ErrClosed)
	require.False(r.schema.built)
	require.False(r.names.built)
}
