package app

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.uber.org/multierr"

	"github.com/joacominatel/minadb/internal/cursor"
	"github.com/joacominatel/minadb/internal/database"
	log "github.com/joacominatel/minadb/internal/logging"
)

// DefaultMaxRows caps how many rows ExecuteQuery drains when the caller
// sets no limit.
const DefaultMaxRows = 1000

// SchemaTree represents the loaded schema hierarchy for the explorer.
type SchemaTree struct {
	Database string
	Schemas  []SchemaNode
}

// SchemaNode holds a schema name and its tables.
type SchemaNode struct {
	Name   string
	Tables []string
}

// QueryOptions controls how a query result is drained.
type QueryOptions struct {
	// MaxRows stops reading after this many rows. Zero means DefaultMaxRows;
	// a negative value reads everything.
	MaxRows int
	// SingleRow opens the reader with cursor.BehaviorSingleRow.
	SingleRow bool
	// SynthesizeSchema attaches the reader's schema table to the result.
	SynthesizeSchema bool
}

func (o QueryOptions) limit() int {
	switch {
	case o.MaxRows == 0:
		return DefaultMaxRows
	case o.MaxRows < 0:
		return -1
	}
	return o.MaxRows
}

// Opener picks the driver serving a DSN.
type Opener func(dsn string) (database.Driver, error)

// Service coordinates application-level operations between the TUI and database.
type Service struct {
	open   Opener
	driver database.Driver
}

// NewService creates a service bound to one driver.
func NewService(driver database.Driver) *Service {
	return &Service{driver: driver}
}

// NewServiceWithOpener creates a service that chooses its driver on Connect.
func NewServiceWithOpener(open Opener) *Service {
	return &Service{open: open}
}

// Connect establishes a database connection, replacing any previous one.
func (s *Service) Connect(ctx context.Context, dsn string) error {
	driver := s.driver
	if s.open != nil {
		d, err := s.open(dsn)
		if err != nil {
			return &ErrConnection{Target: redact(dsn), Cause: err}
		}
		driver = d
	}
	if driver == nil {
		return &ErrConnection{Target: redact(dsn), Cause: errors.New("no driver")}
	}
	if err := driver.Connect(ctx, dsn); err != nil {
		return &ErrConnection{Target: redact(dsn), Cause: err}
	}
	if s.driver != nil && s.driver != driver {
		if err := s.driver.Close(); err != nil {
			log.Ctx(ctx).Warn().Err(err).Msg("failed to close previous connection")
		}
	}
	s.driver = driver
	return nil
}

// Disconnect closes the database connection.
func (s *Service) Disconnect() error {
	if s.driver == nil {
		return nil
	}
	return s.driver.Close()
}

// LoadSchemaTree fetches schemas and their tables for the connected database.
func (s *Service) LoadSchemaTree(ctx context.Context) (*SchemaTree, error) {
	schemas, err := s.driver.ListSchemas(ctx)
	if err != nil {
		return nil, &ErrCatalog{Object: "schemas", Cause: err}
	}

	tree := &SchemaTree{
		Database: s.driver.DatabaseName(),
	}

	for _, schema := range schemas {
		tables, err := s.driver.ListTables(ctx, schema)
		if err != nil {
			return nil, &ErrCatalog{Object: "tables of " + schema, Cause: err}
		}
		tree.Schemas = append(tree.Schemas, SchemaNode{
			Name:   schema,
			Tables: tables,
		})
	}

	return tree, nil
}

// AllTableNames returns every table name in the tree, sorted and without
// duplicates.
func (s *Service) AllTableNames(tree *SchemaTree) []string {
	if tree == nil {
		return nil
	}
	seen := make(map[string]struct{})
	var names []string
	for _, schema := range tree.Schemas {
		for _, table := range schema.Tables {
			if _, ok := seen[table]; ok {
				continue
			}
			seen[table] = struct{}{}
			names = append(names, table)
		}
	}
	sort.Strings(names)
	return names
}

// ExecuteQuery runs a SQL query and drains its reader into a result.
// Cancelling ctx aborts the fetch in progress.
func (s *Service) ExecuteQuery(ctx context.Context, query string, opts QueryOptions, args ...any) (result *database.QueryResult, err error) {
	start := time.Now()

	behavior := cursor.BehaviorSingleResult
	if opts.SingleRow {
		behavior |= cursor.BehaviorSingleRow
	}
	r, err := s.driver.ExecuteReader(ctx, query, behavior, args...)
	if err != nil {
		return nil, &ErrQuery{Query: query, Cause: err}
	}
	defer func() {
		if cerr := r.CloseContext(context.WithoutCancel(ctx)); cerr != nil {
			err = multierr.Append(err, &ErrQuery{Query: query, Cause: cerr})
		}
		if result != nil {
			result.RecordsAffected = r.RowsAffected()
			result.Duration = time.Since(start)
		}
	}()

	result, err = drain(ctx, r, opts)
	if err != nil {
		return nil, &ErrQuery{Query: query, Cause: err}
	}
	log.Ctx(ctx).Debug().
		Int("rows", result.RowCount).
		Bool("truncated", result.Truncated).
		Msg("query executed")
	return result, nil
}

func drain(ctx context.Context, r *cursor.Reader, opts QueryOptions) (*database.QueryResult, error) {
	n, err := r.FieldCount()
	if err != nil {
		return nil, err
	}
	result := &database.QueryResult{Columns: make([]string, n)}
	for i := range n {
		if result.Columns[i], err = r.GetName(i); err != nil {
			return nil, err
		}
	}

	if opts.SynthesizeSchema && n > 0 {
		if result.Schema, err = r.GetSchemaTableContext(ctx); err != nil {
			return nil, err
		}
	}

	limit := opts.limit()
	for {
		if limit >= 0 && result.RowCount >= limit {
			more, err := r.ReadContext(ctx)
			if err != nil {
				return nil, err
			}
			result.Truncated = more
			return result, nil
		}
		ok, err := r.ReadContext(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return result, nil
		}
		values := make([]any, n)
		if _, err := r.GetValues(values); err != nil {
			return nil, err
		}
		formatted := make([]string, n)
		for i, v := range values {
			formatted[i] = FormatValue(v)
		}
		result.Values = append(result.Values, values)
		result.Rows = append(result.Rows, formatted)
		result.RowCount++
	}
}

// DescribeQuery returns the schema table of query without fetching rows.
func (s *Service) DescribeQuery(ctx context.Context, query string, args ...any) (_ *cursor.SchemaTable, err error) {
	r, err := s.driver.ExecuteReader(ctx, query, cursor.BehaviorSchemaOnly|cursor.BehaviorKeyInfo, args...)
	if err != nil {
		return nil, &ErrQuery{Query: query, Cause: err}
	}
	defer func() {
		err = multierr.Append(err, r.CloseContext(context.WithoutCancel(ctx)))
	}()

	table, err := r.GetSchemaTableContext(ctx)
	if err != nil {
		return nil, &ErrQuery{Query: query, Cause: err}
	}
	return table, nil
}

// TableQuery returns a query selecting every row of schema.table.
func (s *Service) TableQuery(schema, table string) string {
	return s.driver.QualifiedTable(schema, table)
}

// DescribeTable returns the schema table of every column of schema.table.
func (s *Service) DescribeTable(ctx context.Context, schema, table string) (*cursor.SchemaTable, error) {
	return s.DescribeQuery(ctx, s.TableQuery(schema, table))
}

// DatabaseName returns the current database name.
func (s *Service) DatabaseName() string {
	return s.driver.DatabaseName()
}

// IsCanceled reports whether err came from a query the caller cancelled.
func IsCanceled(err error) bool {
	return cursor.IsCanceled(err) || errors.Is(err, context.Canceled)
}
