package database

import (
	"context"

	"github.com/joacominatel/minadb/internal/cursor"
)

// Driver defines the interface for database engines.
// All implementations must be safe for concurrent use.
type Driver interface {
	// Connect establishes a connection to the database.
	Connect(ctx context.Context, dsn string) error

	// Close closes the database connection.
	Close() error

	// Ping checks if the connection is alive.
	Ping(ctx context.Context) error

	// ExecuteReader executes query and opens a forward-only reader over its
	// result. Statements without a result set report their affected row
	// count through the reader. *OutParam arguments receive stored
	// procedure outputs when the reader is closed.
	ExecuteReader(ctx context.Context, query string, behavior cursor.Behavior, args ...any) (*cursor.Reader, error)

	// ListSchemas returns all user schemas for the current database.
	ListSchemas(ctx context.Context) ([]string, error)

	// ListTables returns all table names in a schema.
	ListTables(ctx context.Context, schema string) ([]string, error)

	// QualifiedTable returns the SELECT that projects every column of
	// schema.table, used to describe a table through the reader.
	QualifiedTable(schema, table string) string

	// DatabaseName returns the name of the connected database.
	DatabaseName() string
}
