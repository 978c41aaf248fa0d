package cursor

import (
	"context"
	"database/sql"
	"reflect"
	"time"

	"go.uber.org/multierr"

	log "github.com/joacominatel/minadb/internal/logging"
)

// SchemaColumns lists the fields of a SchemaRow in presentation order.
var SchemaColumns = []string{
	"ColumnName",
	"ColumnOrdinal",
	"ColumnSize",
	"NumericPrecision",
	"NumericScale",
	"DataType",
	"ProviderType",
	"IsLong",
	"AllowDBNull",
	"IsReadOnly",
	"IsRowVersion",
	"IsUnique",
	"IsKey",
	"IsAutoIncrement",
	"IsAliased",
	"IsExpression",
	"BaseSchemaName",
	"BaseCatalogName",
	"BaseTableName",
	"BaseColumnName",
}

// SchemaRow describes one result column, enriched with catalog facts.
type SchemaRow struct {
	ColumnName       string
	ColumnOrdinal    int
	ColumnSize       int
	NumericPrecision sql.NullInt32
	NumericScale     sql.NullInt32
	DataType         reflect.Type
	ProviderType     DbType
	IsLong           bool
	AllowDBNull      bool
	IsReadOnly       bool
	IsRowVersion     bool
	IsUnique         bool
	IsKey            bool
	IsAutoIncrement  bool
	IsAliased        bool
	IsExpression     bool
	BaseSchemaName   string
	BaseCatalogName  string
	BaseTableName    string
	BaseColumnName   string
}

// Values returns the row's fields in SchemaColumns order. NULL numeric
// facts are returned as nil.
func (s SchemaRow) Values() []any {
	return []any{
		s.ColumnName,
		s.ColumnOrdinal,
		s.ColumnSize,
		nullInt32(s.NumericPrecision),
		nullInt32(s.NumericScale),
		s.DataType,
		s.ProviderType,
		s.IsLong,
		s.AllowDBNull,
		s.IsReadOnly,
		s.IsRowVersion,
		s.IsUnique,
		s.IsKey,
		s.IsAutoIncrement,
		s.IsAliased,
		s.IsExpression,
		s.BaseSchemaName,
		s.BaseCatalogName,
		s.BaseTableName,
		s.BaseColumnName,
	}
}

func nullInt32(n sql.NullInt32) any {
	if !n.Valid {
		return nil
	}
	return n.Int32
}

// SchemaTable is the synthesized description of a reader's columns, one row
// per column in ordinal order.
type SchemaTable struct {
	Name string
	Rows []SchemaRow
}

// GetSchemaTable describes the result columns. The first call queries the
// engine catalog once per column; later calls return the same table.
func (r *Reader) GetSchemaTable() (*SchemaTable, error) {
	return r.getSchemaTable(syncStrategy())
}

// GetSchemaTableContext is the context-aware form of GetSchemaTable.
func (r *Reader) GetSchemaTableContext(ctx context.Context) (*SchemaTable, error) {
	return r.getSchemaTable(asyncStrategy(ctx))
}

func (r *Reader) getSchemaTable(s strategy) (*SchemaTable, error) {
	if err := r.checkState(); err != nil {
		return nil, err
	}
	return r.schema.get(func() (*SchemaTable, error) {
		return r.synthesizeSchema(s)
	})
}

// columnFacts is what the catalog knows about one base column.
type columnFacts struct {
	isExpression bool
	isKey        bool
	isUnique     bool
	precision    int
}

func (r *Reader) synthesizeSchema(s strategy) (*SchemaTable, error) {
	start := time.Now()
	defer func() {
		schemaSynthesisDuration.Observe(time.Since(start).Seconds())
	}()

	if err := s.canceled("GetSchemaTable"); err != nil {
		return nil, err
	}
	stmt, err := r.command.PrepareCatalog(s.ctx)
	if err != nil {
		if cerr := s.canceled("GetSchemaTable"); cerr != nil {
			return nil, cerr
		}
		return nil, &ProviderError{Op: "GetSchemaTable", Ordinal: -1, Cause: err}
	}

	table, err := r.describeColumns(s, stmt)
	if cerr := stmt.Close(); cerr != nil {
		err = multierr.Append(err, cerr)
	}
	if err != nil {
		return nil, err
	}

	log.Ctx(s.ctx).Debug().Int("columns", len(table.Rows)).Msg("schema table synthesized")
	return table, nil
}

func (r *Reader) describeColumns(s strategy, stmt CatalogStatement) (*SchemaTable, error) {
	table := &SchemaTable{Name: "SchemaTable", Rows: make([]SchemaRow, 0, len(r.fields))}
	relations := make(map[string]struct{})

	for i, f := range r.fields {
		facts, err := queryColumnFacts(s, stmt, f)
		if err != nil {
			return nil, err
		}

		row := SchemaRow{
			ColumnName:     f.DisplayName(),
			ColumnOrdinal:  i,
			ColumnSize:     f.Size,
			DataType:       f.SystemType(),
			ProviderType:   f.Type,
			IsLong:         f.IsLong(),
			AllowDBNull:    f.Nullable,
			IsReadOnly:     facts.isExpression,
			IsUnique:       facts.isUnique,
			IsKey:          facts.isKey,
			IsAliased:      f.IsAliased(),
			IsExpression:   facts.isExpression,
			BaseTableName:  f.Relation,
			BaseColumnName: f.Name,
		}
		if f.IsDecimal() {
			precision := f.Size
			if facts.precision > 0 {
				precision = facts.precision
			}
			row.NumericPrecision = sql.NullInt32{Int32: int32(precision), Valid: true}
			row.NumericScale = sql.NullInt32{Int32: int32(-f.Scale), Valid: true}
		}
		table.Rows = append(table.Rows, row)

		if f.Relation != "" {
			relations[f.Relation] = struct{}{}
		}
	}

	// Key facts are per relation; they do not survive a join.
	if len(relations) > 1 {
		for i := range table.Rows {
			table.Rows[i].IsKey = false
			table.Rows[i].IsUnique = false
		}
	}
	return table, nil
}

// queryColumnFacts runs the catalog statement for one column and reads its
// single result row: computed definitions at 0 and 1, primary key count at
// 2, unique count at 3, numeric precision at 4.
func queryColumnFacts(s strategy, stmt CatalogStatement, f ColumnDescriptor) (facts columnFacts, err error) {
	catalogQueriesTotal.Inc()

	command, err := stmt.Execute(s.ctx, f.Relation, f.Name)
	if err != nil {
		if cerr := s.canceled("GetSchemaTable"); cerr != nil {
			return facts, cerr
		}
		return facts, &ProviderError{Op: "GetSchemaTable", Ordinal: -1, Cause: err}
	}

	aux := NewReader(command, nil, BehaviorDefault, WithCoercionPolicy(nil))
	defer func() {
		err = multierr.Append(err, aux.Close())
	}()

	ok, err := aux.read(s)
	if err != nil || !ok {
		return facts, err
	}

	blrNull, err := aux.IsDBNull(0)
	if err != nil {
		return facts, err
	}
	sourceNull, err := aux.IsDBNull(1)
	if err != nil {
		return facts, err
	}
	facts.isExpression = !blrNull || !sourceNull

	keys, err := aux.GetInt32(2)
	if err != nil {
		return facts, err
	}
	uniques, err := aux.GetInt32(3)
	if err != nil {
		return facts, err
	}
	facts.isKey = keys > 0
	facts.isUnique = uniques > 0

	precisionNull, err := aux.IsDBNull(4)
	if err != nil {
		return facts, err
	}
	if precisionNull {
		facts.precision = -1
	} else {
		p, err := aux.GetInt32(4)
		if err != nil {
			return facts, err
		}
		facts.precision = int(p)
	}
	return facts, nil
}
