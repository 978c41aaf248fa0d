package postgres

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/joacominatel/minadb/internal/cursor"
	"github.com/joacominatel/minadb/internal/database"
	log "github.com/joacominatel/minadb/internal/logging"
)

const cancelRequestTimeout = 5 * time.Second

// command is one executed statement holding its pooled connection, the
// implicit transaction it runs in and the open result rows.
type command struct {
	driver      *Driver
	conn        *pgxpool.Conn
	tx          pgx.Tx
	rows        pgx.Rows
	fields      cursor.Descriptors
	commandType cursor.CommandType
	affected    int64
	expected    database.ExpectedTypes

	outputs []*database.OutParam
	last    []any

	// ownsConn is false when a pooledConnection releases conn on close.
	ownsConn bool
	failed   bool
	disposed bool

	cancelMu sync.Mutex
	canceled bool
}

func (c *command) Fetch(ctx context.Context) (cursor.Row, error) {
	if c.rows == nil {
		return nil, nil
	}
	if !c.rows.Next() {
		err := c.rows.Err()
		c.rows.Close()
		if err != nil {
			c.failed = true
			return nil, err
		}
		return nil, nil
	}
	values, err := c.rows.Values()
	if err != nil {
		c.failed = true
		return nil, err
	}
	for i, v := range values {
		values[i] = normalizeValue(v)
	}
	c.last = values
	return cursor.NewRow(c.fields, values)
}

func (c *command) Fields() cursor.Descriptors { return c.fields }

func (c *command) RecordsAffected() int64 { return c.affected }

func (c *command) HasFields() bool { return len(c.fields) > 0 }

// Cancel asks the server to abort the statement running on the command's
// connection. The blocked Fetch then fails with a cancellation error.
func (c *command) Cancel() error {
	c.cancelMu.Lock()
	c.canceled = true
	c.cancelMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), cancelRequestTimeout)
	defer cancel()
	return c.conn.Conn().PgConn().CancelRequest(ctx)
}

func (c *command) wasCanceled() bool {
	c.cancelMu.Lock()
	defer c.cancelMu.Unlock()
	return c.canceled
}

func (c *command) CommandType() cursor.CommandType { return c.commandType }

// SetOutputParameters copies the procedure's result row into the caller's
// output parameters. The row is fetched when the caller never read it.
func (c *command) SetOutputParameters(ctx context.Context) error {
	if len(c.outputs) == 0 {
		return nil
	}
	if c.last == nil && c.rows != nil && !c.failed {
		if _, err := c.Fetch(ctx); err != nil {
			return err
		}
	}
	names := make([]string, len(c.fields))
	for i, f := range c.fields {
		names[i] = f.DisplayName()
	}
	database.AssignOutParams(c.outputs, names, c.last)
	return nil
}

func (c *command) HasImplicitTransaction() bool { return c.tx != nil }

// CommitImplicitTransaction finishes the transaction the statement ran in.
// A statement that failed or was cancelled is rolled back instead; its
// error already reached the caller through Read.
func (c *command) CommitImplicitTransaction(ctx context.Context) error {
	if c.tx == nil {
		return nil
	}
	if c.rows != nil {
		c.rows.Close()
		if c.rows.Err() != nil {
			c.failed = true
		}
	}
	tx := c.tx
	c.tx = nil
	if c.failed || c.wasCanceled() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			log.Ctx(ctx).Debug().Err(err).Msg("rollback after failed statement")
		}
		return nil
	}
	return tx.Commit(ctx)
}

func (c *command) IsDisposed() bool { return c.disposed }

func (c *command) DetachReader() {
	if c.rows != nil {
		c.rows.Close()
	}
	if c.tx != nil {
		ctx, cancel := context.WithTimeout(context.Background(), cancelRequestTimeout)
		defer cancel()
		_ = c.tx.Rollback(ctx)
		c.tx = nil
	}
	if c.ownsConn {
		c.conn.Release()
	}
	c.disposed = true
}

func (c *command) ExpectedColumnTypes() []reflect.Type { return c.expected }

func (c *command) PrepareCatalog(ctx context.Context) (cursor.CatalogStatement, error) {
	return c.driver.prepareCatalog(ctx)
}

// pooledConnection closes the physical connection behind a reader opened
// with cursor.BehaviorCloseConnection.
type pooledConnection struct {
	conn *pgxpool.Conn
}

func (p *pooledConnection) Close(ctx context.Context) error {
	err := p.conn.Conn().Close(ctx)
	p.conn.Release()
	return err
}
