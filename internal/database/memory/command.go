package memory

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"time"

	"github.com/hashicorp/go-memdb"

	"github.com/joacominatel/minadb/internal/cursor"
	"github.com/joacominatel/minadb/internal/database"
)

// ErrCanceled is returned by a fetch interrupted by a cancel request.
var ErrCanceled = errors.New("canceling statement due to user request")

// command is one executed statement with its materialized result. Writes
// stay in a pending transaction until the reader commits it.
type command struct {
	driver      *Driver
	fields      cursor.Descriptors
	rows        [][]any
	next        int
	affected    int64
	commandType cursor.CommandType
	expected    database.ExpectedTypes
	outputs     []*database.OutParam
	delay       time.Duration

	txn      *memdb.Txn
	session  bool
	disposed bool

	cancelOnce sync.Once
	canceled   chan struct{}
}

func newCommand(d *Driver, fields cursor.Descriptors) *command {
	return &command{
		driver:   d,
		fields:   fields,
		affected: -1,
		delay:    d.fetchDelay,
		canceled: make(chan struct{}),
	}
}

func (c *command) Fetch(ctx context.Context) (cursor.Row, error) {
	if c.delay > 0 && c.next < len(c.rows) {
		t := time.NewTimer(c.delay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-c.canceled:
			return nil, ErrCanceled
		}
	}
	select {
	case <-c.canceled:
		return nil, ErrCanceled
	default:
	}

	if c.next >= len(c.rows) {
		return nil, nil
	}
	values := c.rows[c.next]
	c.next++
	return cursor.NewRow(c.fields, values)
}

func (c *command) Fields() cursor.Descriptors { return c.fields }

func (c *command) RecordsAffected() int64 { return c.affected }

func (c *command) HasFields() bool { return len(c.fields) > 0 }

func (c *command) Cancel() error {
	c.cancelOnce.Do(func() { close(c.canceled) })
	return nil
}

func (c *command) wasCanceled() bool {
	select {
	case <-c.canceled:
		return true
	default:
		return false
	}
}

func (c *command) CommandType() cursor.CommandType { return c.commandType }

func (c *command) SetOutputParameters(ctx context.Context) error {
	if len(c.outputs) == 0 || len(c.rows) == 0 {
		return nil
	}
	names := make([]string, len(c.fields))
	for i, f := range c.fields {
		names[i] = f.DisplayName()
	}
	database.AssignOutParams(c.outputs, names, c.rows[0])
	return nil
}

func (c *command) HasImplicitTransaction() bool { return c.txn != nil }

// CommitImplicitTransaction publishes the statement's writes. A cancelled
// statement is rolled back.
func (c *command) CommitImplicitTransaction(ctx context.Context) error {
	if c.txn == nil {
		return nil
	}
	txn := c.txn
	c.txn = nil
	if c.wasCanceled() {
		txn.Abort()
		return nil
	}
	txn.Commit()
	return nil
}

func (c *command) IsDisposed() bool { return c.disposed }

func (c *command) DetachReader() {
	if c.txn != nil {
		c.txn.Abort()
		c.txn = nil
	}
	if c.session {
		c.driver.sessions.Add(-1)
		c.session = false
	}
	c.rows = nil
	c.disposed = true
}

func (c *command) ExpectedColumnTypes() []reflect.Type { return c.expected }

func (c *command) PrepareCatalog(ctx context.Context) (cursor.CatalogStatement, error) {
	return c.driver.prepareCatalog(), nil
}

// session is the connection behind a reader opened with
// cursor.BehaviorCloseConnection.
type session struct {
	driver *Driver
	once   sync.Once
}

func (s *session) Close(ctx context.Context) error {
	s.once.Do(func() { s.driver.sessions.Add(-1) })
	return nil
}
