package cursor

import (
	"context"
	"reflect"
)

// CommandType describes how the command text was interpreted.
type CommandType int

const (
	CommandText CommandType = iota
	CommandStoredProcedure
	CommandTableDirect
)

// Command is the collaborator that executed the statement and owns the
// result stream. A Reader consumes its rows and forwards lifecycle signals
// to it; it never executes SQL itself.
type Command interface {
	// Fetch returns the next decoded row, or a nil row at end of stream.
	// Fetch must return promptly once Cancel has been called.
	Fetch(ctx context.Context) (Row, error)

	// Fields returns the column descriptor table. It must not change for the
	// lifetime of the reader.
	Fields() Descriptors

	// RecordsAffected returns the affected row count, -1 when unknown.
	RecordsAffected() int64

	// HasFields reports whether the statement produces a result set.
	HasFields() bool

	// Cancel asks the engine to abort the pending fetch.
	Cancel() error

	CommandType() CommandType

	// SetOutputParameters materializes stored procedure output parameters.
	SetOutputParameters(ctx context.Context) error

	// HasImplicitTransaction reports whether the command opened a
	// transaction on the caller's behalf.
	HasImplicitTransaction() bool

	// CommitImplicitTransaction commits the transaction opened on the
	// caller's behalf.
	CommitImplicitTransaction(ctx context.Context) error

	// IsDisposed reports whether the command was already torn down.
	IsDisposed() bool

	// DetachReader tells the command its reader is gone.
	DetachReader()

	// ExpectedColumnTypes returns the Go types a consumer expects per
	// ordinal, or nil when it declared none.
	ExpectedColumnTypes() []reflect.Type

	// PrepareCatalog prepares the auxiliary per-column catalog query used to
	// synthesize schema information.
	PrepareCatalog(ctx context.Context) (CatalogStatement, error)
}

// CatalogStatement is a prepared catalog query parameterized by relation and
// column name. Its result has five columns: two computed-definition columns
// (non-NULL when the column is an expression), the primary key count, the
// unique constraint count, and the numeric precision (nullable).
type CatalogStatement interface {
	Execute(ctx context.Context, relation, column string) (Command, error)
	Close() error
}

// Connection is the connection owning a command. Readers opened with
// BehaviorCloseConnection close it.
type Connection interface {
	Close(ctx context.Context) error
}
