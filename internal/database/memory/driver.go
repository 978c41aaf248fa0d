package memory

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/hashicorp/go-memdb"

	"github.com/joacominatel/minadb/internal/cursor"
	"github.com/joacominatel/minadb/internal/database"
)

// Scheme is the DSN scheme of the memory engine: memory://name.
const Scheme = "memory"

var _ database.Driver = (*Driver)(nil)

// Connect opens the database. The DSN host, when present, renames it.
func (d *Driver) Connect(ctx context.Context, dsn string) error {
	u, err := url.Parse(dsn)
	if err != nil {
		return fmt.Errorf("parse dsn: %w", err)
	}
	if u.Scheme != Scheme {
		return fmt.Errorf("parse dsn: unsupported scheme %q", u.Scheme)
	}
	if u.Host != "" {
		d.name = u.Host
	}
	d.connected.Store(true)
	return nil
}

// Close closes the database. Its contents are kept.
func (d *Driver) Close() error {
	d.connected.Store(false)
	return nil
}

// Ping checks if the database is open.
func (d *Driver) Ping(ctx context.Context) error {
	if !d.connected.Load() {
		return fmt.Errorf("not connected")
	}
	return nil
}

// ExecuteReader runs query and returns a reader over its result. SELECT
// results are read from a snapshot taken at execution. INSERT and DELETE
// write in a transaction committed when the reader is closed; writes are
// serialized until then.
func (d *Driver) ExecuteReader(ctx context.Context, query string, behavior cursor.Behavior, args ...any) (*cursor.Reader, error) {
	if !d.connected.Load() {
		return nil, fmt.Errorf("not connected")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	inputs, outputs, expected := database.SplitArgs(args)

	stmt, err := parse(query)
	if err != nil {
		return nil, err
	}

	var cmd *command
	schemaOnly := behavior.Has(cursor.BehaviorSchemaOnly)
	switch stmt := stmt.(type) {
	case *selectStmt:
		cmd, err = d.execSelect(stmt, inputs, schemaOnly)
	case *insertStmt:
		cmd, err = d.execInsert(stmt, inputs, schemaOnly)
	case *deleteStmt:
		cmd, err = d.execDelete(stmt, inputs, schemaOnly)
	case *callStmt:
		cmd, err = d.execCall(stmt, inputs, schemaOnly)
	}
	if err != nil {
		return nil, err
	}
	cmd.commandType = database.CommandTypeOf(query)
	cmd.expected = expected
	cmd.outputs = outputs

	d.sessions.Add(1)
	var conn cursor.Connection
	if behavior.Has(cursor.BehaviorCloseConnection) {
		conn = &session{driver: d}
	} else {
		cmd.session = true
	}
	return cursor.NewReader(cmd, conn, behavior), nil
}

// source is one column a query can reference.
type source struct {
	table    int
	column   int
	relation *relationEntry
	ref      tableRef
}

func (s source) def() ColumnDef { return s.relation.Columns[s.column] }

func (s source) matches(qualifier, name string) bool {
	if !strings.EqualFold(s.def().Name, name) {
		return false
	}
	return qualifier == "" || s.qualifiedBy(qualifier)
}

func (s source) qualifiedBy(qualifier string) bool {
	if s.ref.alias != "" {
		return strings.EqualFold(s.ref.alias, qualifier)
	}
	return strings.EqualFold(s.relation.Name, qualifier)
}

func (s source) descriptor(alias string) cursor.ColumnDescriptor {
	def := s.def()
	desc := cursor.ColumnDescriptor{
		Name:     def.Name,
		Relation: s.relation.Name,
		Type:     def.Type,
		Size:     def.Size,
		Scale:    def.Scale,
		Nullable: def.Nullable,
	}
	if alias != def.Name {
		desc.Alias = alias
	}
	desc.Long = desc.Type == cursor.TypeText || desc.Type == cursor.TypeBinary
	return desc
}

func resolve(sources []source, qualifier, name string) (source, error) {
	var found []source
	for _, s := range sources {
		if s.matches(qualifier, name) {
			found = append(found, s)
		}
	}
	switch len(found) {
	case 0:
		if qualifier != "" {
			return source{}, fmt.Errorf("column %s.%s does not exist", qualifier, name)
		}
		return source{}, fmt.Errorf("column %q does not exist", name)
	case 1:
		return found[0], nil
	default:
		return source{}, fmt.Errorf("column reference %q is ambiguous", name)
	}
}

// projection maps one output column to a source column or a constant.
type projection struct {
	source   *source
	constant any
}

func (d *Driver) execSelect(stmt *selectStmt, args []any, schemaOnly bool) (*command, error) {
	txn := d.db.Txn(false)
	defer txn.Abort()

	var sources []source
	relations := make([]*relationEntry, len(stmt.from))
	for ti, ref := range stmt.from {
		rel, err := lookupRelation(txn, ref.name)
		if err != nil {
			return nil, err
		}
		relations[ti] = rel
		for ci := range rel.Columns {
			sources = append(sources, source{table: ti, column: ci, relation: rel, ref: ref})
		}
	}

	var (
		fields      cursor.Descriptors
		projections []projection
	)
	for _, item := range stmt.items {
		switch {
		case item.star:
			matched := false
			for i := range sources {
				if item.table != "" && !sources[i].qualifiedBy(item.table) {
					continue
				}
				matched = true
				fields = append(fields, sources[i].descriptor(""))
				projections = append(projections, projection{source: &sources[i]})
			}
			if !matched {
				return nil, fmt.Errorf("missing FROM-clause entry for table %q", item.table)
			}
		case item.literal != nil:
			v, err := item.literal.resolve(args)
			if err != nil {
				return nil, err
			}
			v = literalValue(v)
			name := item.alias
			if name == "" {
				name = "?column?"
			}
			fields = append(fields, literalColumn(name, v))
			projections = append(projections, projection{constant: v})
		default:
			src, err := resolve(sources, item.table, item.column)
			if err != nil {
				return nil, err
			}
			fields = append(fields, src.descriptor(item.alias))
			projections = append(projections, projection{source: &src})
		}
	}

	type filter struct {
		source source
		value  any
	}
	filters := make([]filter, 0, len(stmt.where))
	for _, cond := range stmt.where {
		src, err := resolve(sources, cond.table, cond.column)
		if err != nil {
			return nil, err
		}
		v, err := cond.value.resolve(args)
		if err != nil {
			return nil, err
		}
		filters = append(filters, filter{source: src, value: v})
	}

	cmd := newCommand(d, fields)
	if schemaOnly {
		return cmd, nil
	}

	tables := make([][]*rowEntry, len(relations))
	for ti, rel := range relations {
		rows, err := scanRelation(txn, rel)
		if err != nil {
			return nil, err
		}
		tables[ti] = rows
	}

	for _, combo := range crossProduct(tables) {
		keep := true
		for _, f := range filters {
			if !equalValues(combo[f.source.table].Values[f.source.column], f.value) {
				keep = false
				break
			}
		}
		if !keep {
			continue
		}
		out := make([]any, len(projections))
		for i, p := range projections {
			if p.source == nil {
				out[i] = p.constant
				continue
			}
			out[i] = combo[p.source.table].Values[p.source.column]
		}
		cmd.rows = append(cmd.rows, out)
	}
	return cmd, nil
}

// crossProduct combines one row of every table, leftmost table outermost.
func crossProduct(tables [][]*rowEntry) [][]*rowEntry {
	combos := [][]*rowEntry{{}}
	for _, rows := range tables {
		next := make([][]*rowEntry, 0, len(combos)*len(rows))
		for _, combo := range combos {
			for _, row := range rows {
				c := make([]*rowEntry, len(combo), len(combo)+1)
				copy(c, combo)
				next = append(next, append(c, row))
			}
		}
		combos = next
	}
	return combos
}

func (d *Driver) execInsert(stmt *insertStmt, args []any, schemaOnly bool) (*command, error) {
	cmd := newCommand(d, nil)
	if schemaOnly {
		return cmd, nil
	}

	txn := d.db.Txn(true)
	rel, err := lookupRelation(txn, stmt.table)
	if err != nil {
		txn.Abort()
		return nil, err
	}

	targets, err := insertTargets(rel, stmt.columns)
	if err != nil {
		txn.Abort()
		return nil, err
	}
	for _, ops := range stmt.rows {
		if len(ops) != len(targets) {
			txn.Abort()
			return nil, fmt.Errorf("INSERT has %d target columns but %d expressions", len(targets), len(ops))
		}
		values := make([]any, len(rel.Columns))
		for i, op := range ops {
			v, err := op.resolve(args)
			if err != nil {
				txn.Abort()
				return nil, err
			}
			values[targets[i]] = v
		}
		if err := d.insertRow(txn, rel, values); err != nil {
			txn.Abort()
			return nil, err
		}
	}

	cmd.txn = txn
	cmd.affected = int64(len(stmt.rows))
	return cmd, nil
}

// insertTargets returns the column ordinals an INSERT assigns, all
// assignable columns when none are named.
func insertTargets(rel *relationEntry, columns []string) ([]int, error) {
	var targets []int
	if len(columns) == 0 {
		for i, col := range rel.Columns {
			if !col.generated() {
				targets = append(targets, i)
			}
		}
		return targets, nil
	}
	for _, name := range columns {
		i, ok := rel.column(name)
		if !ok {
			return nil, fmt.Errorf("column %q of relation %q does not exist", name, rel.Name)
		}
		if rel.Columns[i].generated() {
			return nil, fmt.Errorf("cannot insert into generated column %q", rel.Columns[i].Name)
		}
		targets = append(targets, i)
	}
	return targets, nil
}

func (d *Driver) execDelete(stmt *deleteStmt, args []any, schemaOnly bool) (*command, error) {
	cmd := newCommand(d, nil)
	if schemaOnly {
		return cmd, nil
	}

	txn := d.db.Txn(true)
	deleted, err := deleteRows(txn, stmt, args)
	if err != nil {
		txn.Abort()
		return nil, err
	}
	cmd.txn = txn
	cmd.affected = deleted
	return cmd, nil
}

func deleteRows(txn *memdb.Txn, stmt *deleteStmt, args []any) (int64, error) {
	rel, err := lookupRelation(txn, stmt.table)
	if err != nil {
		return 0, err
	}

	type filter struct {
		column int
		value  any
	}
	filters := make([]filter, 0, len(stmt.where))
	for _, cond := range stmt.where {
		if cond.table != "" && !strings.EqualFold(cond.table, rel.Name) {
			return 0, fmt.Errorf("missing FROM-clause entry for table %q", cond.table)
		}
		i, ok := rel.column(cond.column)
		if !ok {
			return 0, fmt.Errorf("column %q does not exist", cond.column)
		}
		v, err := cond.value.resolve(args)
		if err != nil {
			return 0, err
		}
		filters = append(filters, filter{column: i, value: v})
	}

	rows, err := scanRelation(txn, rel)
	if err != nil {
		return 0, err
	}
	var deleted int64
	for _, row := range rows {
		match := true
		for _, f := range filters {
			if !equalValues(row.Values[f.column], f.value) {
				match = false
				break
			}
		}
		if !match {
			continue
		}
		if err := txn.Delete(tableRow, row); err != nil {
			return 0, fmt.Errorf(errUnableToWriteRows, err)
		}
		deleted++
	}
	return deleted, nil
}

func (d *Driver) execCall(stmt *callStmt, args []any, schemaOnly bool) (*command, error) {
	proc, ok := d.procedure(stmt.name)
	if !ok {
		return nil, fmt.Errorf("procedure %q does not exist", stmt.name)
	}

	fields := make(cursor.Descriptors, len(proc.Columns))
	for i, col := range proc.Columns {
		fields[i] = cursor.ColumnDescriptor{
			Name:     col.Name,
			Type:     col.Type,
			Size:     col.Size,
			Scale:    col.Scale,
			Nullable: col.Nullable,
			Long:     col.Type == cursor.TypeText || col.Type == cursor.TypeBinary,
		}
	}
	cmd := newCommand(d, fields)
	if schemaOnly {
		return cmd, nil
	}

	values := make([]any, len(stmt.args))
	for i, op := range stmt.args {
		v, err := op.resolve(args)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	out, err := proc.Run(values)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", stmt.name, err)
	}
	if len(out) != len(proc.Columns) {
		return nil, fmt.Errorf("call %s: returned %d values for %d columns", stmt.name, len(out), len(proc.Columns))
	}
	row := make([]any, len(out))
	for i, col := range proc.Columns {
		if row[i], err = convertValue(col, out[i]); err != nil {
			return nil, fmt.Errorf("call %s: %w", stmt.name, err)
		}
	}
	cmd.rows = [][]any{row}
	return cmd, nil
}

// ListSchemas returns the single schema the engine exposes.
func (d *Driver) ListSchemas(ctx context.Context) ([]string, error) {
	if !d.connected.Load() {
		return nil, fmt.Errorf("not connected")
	}
	return []string{DefaultSchema}, nil
}

// ListTables returns all table names, sorted.
func (d *Driver) ListTables(ctx context.Context, schema string) ([]string, error) {
	if !d.connected.Load() {
		return nil, fmt.Errorf("not connected")
	}
	if schema != DefaultSchema {
		return nil, nil
	}

	txn := d.db.Txn(false)
	defer txn.Abort()

	it, err := txn.Get(tableRelation, indexID)
	if err != nil {
		return nil, fmt.Errorf(errUnableToQueryRows, err)
	}
	var tables []string
	for raw := it.Next(); raw != nil; raw = it.Next() {
		tables = append(tables, raw.(*relationEntry).Name)
	}
	sort.Strings(tables)
	return tables, nil
}

// QualifiedTable returns a query selecting every column of schema.table.
func (d *Driver) QualifiedTable(schema, table string) string {
	query, _, _ := sq.Select("*").From(quoteIdent(schema) + "." + quoteIdent(table)).ToSql()
	return query
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// DatabaseName returns the database name.
func (d *Driver) DatabaseName() string {
	return d.name
}
