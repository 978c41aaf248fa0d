// Package memory is an in-process database engine backed by go-memdb. It
// implements the same reader contract as the PostgreSQL engine and is used
// for demos and as the integration double in tests.
package memory

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-memdb"

	"github.com/joacominatel/minadb/internal/cursor"
)

const (
	errUnableToInstantiate = "unable to instantiate memory database: %w"
	errUnableToWriteRows   = "unable to write rows: %w"
	errUnableToQueryRows   = "unable to query rows: %w"
)

const (
	tableRelation   = "relation"
	tableConstraint = "constraint"
	tableRow        = "row"

	indexID       = "id"
	indexColumn   = "column"
	indexRelation = "relation"

	constraintPrimaryKey = "PRIMARY KEY"
	constraintUnique     = "UNIQUE"

	// DefaultSchema is the only schema the engine exposes.
	DefaultSchema = "main"
)

// ColumnDef declares one table column.
type ColumnDef struct {
	Name string
	Type cursor.DbType
	// Size is the declared size; for CHAR and VARCHAR it limits the length.
	Size int
	// Scale uses the negative convention: -2 stores two decimals. Integer
	// columns with a negative scale hold scaled values.
	Scale    int
	Nullable bool
	// Computed is the definition of a generated column, reported by the
	// catalog. Generated columns cannot be assigned.
	Computed string
	// Generate derives a generated column's value from the other values of
	// the row, in declaration order.
	Generate func(row []any) any
	// Precision is the numeric precision the catalog reports. Zero means
	// the catalog has none.
	Precision int
}

func (c ColumnDef) generated() bool {
	return c.Computed != "" || c.Generate != nil
}

// TableDef declares a table with its constraints.
type TableDef struct {
	Name       string
	Columns    []ColumnDef
	PrimaryKey []string
	// Unique lists single-column unique constraints.
	Unique []string
}

// Procedure is a stored procedure callable with CALL. It returns a single
// row shaped by Columns; output parameters are read from that row.
type Procedure struct {
	Columns []ColumnDef
	Run     func(args []any) ([]any, error)
}

type relationEntry struct {
	Name       string
	Columns    []ColumnDef
	PrimaryKey []string
}

func (r *relationEntry) column(name string) (int, bool) {
	for i, c := range r.Columns {
		if strings.EqualFold(c.Name, name) {
			return i, true
		}
	}
	return -1, false
}

type constraintEntry struct {
	Relation string
	Column   string
	Kind     string
}

type rowEntry struct {
	ID       uint64
	Relation string
	Values   []any
}

var schema = &memdb.DBSchema{
	Tables: map[string]*memdb.TableSchema{
		tableRelation: {
			Name: tableRelation,
			Indexes: map[string]*memdb.IndexSchema{
				indexID: {
					Name:    indexID,
					Unique:  true,
					Indexer: &memdb.StringFieldIndex{Field: "Name", Lowercase: true},
				},
			},
		},
		tableConstraint: {
			Name: tableConstraint,
			Indexes: map[string]*memdb.IndexSchema{
				indexID: {
					Name:   indexID,
					Unique: true,
					Indexer: &memdb.CompoundIndex{
						Indexes: []memdb.Indexer{
							&memdb.StringFieldIndex{Field: "Relation", Lowercase: true},
							&memdb.StringFieldIndex{Field: "Column", Lowercase: true},
							&memdb.StringFieldIndex{Field: "Kind"},
						},
					},
				},
				indexColumn: {
					Name:   indexColumn,
					Unique: false,
					Indexer: &memdb.CompoundIndex{
						Indexes: []memdb.Indexer{
							&memdb.StringFieldIndex{Field: "Relation", Lowercase: true},
							&memdb.StringFieldIndex{Field: "Column", Lowercase: true},
						},
					},
				},
				indexRelation: {
					Name:    indexRelation,
					Unique:  false,
					Indexer: &memdb.StringFieldIndex{Field: "Relation", Lowercase: true},
				},
			},
		},
		tableRow: {
			Name: tableRow,
			Indexes: map[string]*memdb.IndexSchema{
				indexID: {
					Name:    indexID,
					Unique:  true,
					Indexer: &memdb.UintFieldIndex{Field: "ID"},
				},
				indexRelation: {
					Name:    indexRelation,
					Unique:  false,
					Indexer: &memdb.StringFieldIndex{Field: "Relation", Lowercase: true},
				},
			},
		},
	},
}

// Driver is an in-memory database. It implements database.Driver.
type Driver struct {
	name string
	db   *memdb.MemDB

	nextRowID  atomic.Uint64
	connected  atomic.Bool
	sessions   atomic.Int64
	fetchDelay time.Duration

	mu         sync.RWMutex
	procedures map[string]Procedure
}

// Option configures a Driver.
type Option func(*Driver)

// WithFetchDelay makes every row fetch take d, or less when the statement
// is cancelled. It simulates a slow server.
func WithFetchDelay(d time.Duration) Option {
	return func(drv *Driver) {
		drv.fetchDelay = d
	}
}

// New creates an empty database.
func New(name string, opts ...Option) (*Driver, error) {
	db, err := memdb.NewMemDB(schema)
	if err != nil {
		return nil, fmt.Errorf(errUnableToInstantiate, err)
	}
	d := &Driver{
		name:       name,
		db:         db,
		procedures: make(map[string]Procedure),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// CreateTable adds a table and its constraints.
func (d *Driver) CreateTable(def TableDef) error {
	if def.Name == "" || len(def.Columns) == 0 {
		return fmt.Errorf("table needs a name and at least one column")
	}
	rel := &relationEntry{Name: def.Name, Columns: slices.Clone(def.Columns), PrimaryKey: def.PrimaryKey}

	txn := d.db.Txn(true)
	defer txn.Abort()

	existing, err := txn.First(tableRelation, indexID, def.Name)
	if err != nil {
		return fmt.Errorf(errUnableToWriteRows, err)
	}
	if existing != nil {
		return fmt.Errorf("relation %q already exists", def.Name)
	}
	if err := txn.Insert(tableRelation, rel); err != nil {
		return fmt.Errorf(errUnableToWriteRows, err)
	}

	constraints := map[string][]string{
		constraintPrimaryKey: def.PrimaryKey,
		constraintUnique:     def.Unique,
	}
	for kind, columns := range constraints {
		for _, col := range columns {
			i, ok := rel.column(col)
			if !ok {
				return fmt.Errorf("column %q of %s constraint does not exist", col, kind)
			}
			entry := &constraintEntry{Relation: rel.Name, Column: rel.Columns[i].Name, Kind: kind}
			if err := txn.Insert(tableConstraint, entry); err != nil {
				return fmt.Errorf(errUnableToWriteRows, err)
			}
		}
	}

	txn.Commit()
	return nil
}

// Insert appends rows to a table. Each row lists a value for every column
// in declaration order; values of generated columns are ignored.
func (d *Driver) Insert(table string, rows ...[]any) error {
	txn := d.db.Txn(true)
	defer txn.Abort()

	rel, err := lookupRelation(txn, table)
	if err != nil {
		return err
	}
	for _, values := range rows {
		if len(values) != len(rel.Columns) {
			return fmt.Errorf("%s has %d columns, got %d values", rel.Name, len(rel.Columns), len(values))
		}
		if err := d.insertRow(txn, rel, values); err != nil {
			return err
		}
	}
	txn.Commit()
	return nil
}

// RegisterProcedure makes a procedure callable with CALL name(...).
func (d *Driver) RegisterProcedure(name string, proc Procedure) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.procedures[strings.ToLower(name)] = proc
}

func (d *Driver) procedure(name string) (Procedure, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	proc, ok := d.procedures[strings.ToLower(name)]
	return proc, ok
}

// OpenSessions returns the number of statements whose reader is still open.
func (d *Driver) OpenSessions() int64 {
	return d.sessions.Load()
}

func lookupRelation(txn *memdb.Txn, name string) (*relationEntry, error) {
	raw, err := txn.First(tableRelation, indexID, name)
	if err != nil {
		return nil, fmt.Errorf(errUnableToQueryRows, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("relation %q does not exist", name)
	}
	return raw.(*relationEntry), nil
}

// scanRelation returns the rows of a relation in insertion order.
func scanRelation(txn *memdb.Txn, rel *relationEntry) ([]*rowEntry, error) {
	it, err := txn.Get(tableRow, indexRelation, rel.Name)
	if err != nil {
		return nil, fmt.Errorf(errUnableToQueryRows, err)
	}
	var rows []*rowEntry
	for raw := it.Next(); raw != nil; raw = it.Next() {
		rows = append(rows, raw.(*rowEntry))
	}
	slices.SortFunc(rows, func(a, b *rowEntry) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return rows, nil
}

// insertRow stores one row, converting values to the column types and
// enforcing nullability and key constraints.
func (d *Driver) insertRow(txn *memdb.Txn, rel *relationEntry, values []any) error {
	row := make([]any, len(rel.Columns))
	for i, col := range rel.Columns {
		if col.generated() {
			continue
		}
		v, err := convertValue(col, values[i])
		if err != nil {
			return err
		}
		row[i] = v
	}
	for i, col := range rel.Columns {
		if col.Generate != nil {
			row[i] = col.Generate(row)
		}
	}

	if err := checkKeys(txn, rel, row); err != nil {
		return err
	}

	entry := &rowEntry{ID: d.nextRowID.Add(1), Relation: rel.Name, Values: row}
	if err := txn.Insert(tableRow, entry); err != nil {
		return fmt.Errorf(errUnableToWriteRows, err)
	}
	return nil
}

// checkKeys rejects a row that duplicates the primary key or a unique
// column of an existing row.
func checkKeys(txn *memdb.Txn, rel *relationEntry, row []any) error {
	it, err := txn.Get(tableConstraint, indexRelation, rel.Name)
	if err != nil {
		return fmt.Errorf(errUnableToQueryRows, err)
	}
	var pk, unique []int
	for raw := it.Next(); raw != nil; raw = it.Next() {
		c := raw.(*constraintEntry)
		i, _ := rel.column(c.Column)
		if c.Kind == constraintPrimaryKey {
			pk = append(pk, i)
		} else {
			unique = append(unique, i)
		}
	}
	if len(pk) == 0 && len(unique) == 0 {
		return nil
	}

	existing, err := scanRelation(txn, rel)
	if err != nil {
		return err
	}
	for _, other := range existing {
		if len(pk) > 0 && sameKey(pk, row, other.Values) {
			return fmt.Errorf("duplicate key value violates primary key of %s", rel.Name)
		}
		for _, i := range unique {
			if sameKey([]int{i}, row, other.Values) {
				return fmt.Errorf("duplicate key value violates unique constraint on %s.%s", rel.Name, rel.Columns[i].Name)
			}
		}
	}
	return nil
}

func sameKey(columns []int, a, b []any) bool {
	for _, i := range columns {
		if !equalValues(a[i], b[i]) {
			return false
		}
	}
	return true
}
