package cursor

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"sync/atomic"
	"time"
)

// fakeCommand is an in-memory Command that records the lifecycle calls the
// reader makes on it.
type fakeCommand struct {
	fields      Descriptors
	rows        [][]any
	next        int
	affected    int64
	commandType CommandType
	implicitTx  bool
	disposed    bool
	expected    []reflect.Type

	fetchErr  error
	commitErr error
	outputErr error

	// block makes every Fetch wait until Cancel is called.
	block      bool
	started    chan struct{}
	cancelOnce sync.Once
	canceledCh chan struct{}
	cancels    atomic.Int32

	// untilDone makes Fetch return once its context is done and Cancel has
	// started, without waiting for Cancel to finish.
	untilDone     bool
	enterOnce     sync.Once
	cancelEntered chan struct{}

	// cancelDelay makes Cancel slow. cancelling is set while it runs and
	// overlapped records a commit that ran alongside it.
	cancelDelay time.Duration
	cancelling  atomic.Bool
	cancelsDone atomic.Int32
	overlapped  atomic.Bool

	// onFetch runs inside Fetch before the row is returned.
	onFetch func()

	catalog     map[string][]any
	catalogErr  error
	prepared    int
	catalogRuns int
	catalogShut int

	fetches int
	calls   []string
}

func newFakeCommand(fields Descriptors, rows ...[]any) *fakeCommand {
	return &fakeCommand{
		fields:     fields,
		rows:       rows,
		affected:   -1,
		started:    make(chan struct{}),
		canceledCh: make(chan struct{}),

		cancelEntered: make(chan struct{}),
	}
}

func (f *fakeCommand) Fetch(ctx context.Context) (Row, error) {
	f.fetches++
	if f.block {
		close(f.started)
		<-f.canceledCh
		return nil, errors.New("operation was cancelled")
	}
	if f.untilDone {
		<-ctx.Done()
		<-f.cancelEntered
		return nil, ctx.Err()
	}
	if f.onFetch != nil {
		f.onFetch()
	}
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	if f.next >= len(f.rows) {
		return nil, nil
	}
	raws := f.rows[f.next]
	f.next++
	return NewRow(f.fields, raws)
}

func (f *fakeCommand) Fields() Descriptors { return f.fields }

func (f *fakeCommand) RecordsAffected() int64 { return f.affected }

func (f *fakeCommand) HasFields() bool { return len(f.fields) > 0 }

func (f *fakeCommand) Cancel() error {
	f.cancels.Add(1)
	f.cancelling.Store(true)
	defer f.cancelling.Store(false)
	f.enterOnce.Do(func() { close(f.cancelEntered) })
	time.Sleep(f.cancelDelay)
	f.cancelOnce.Do(func() { close(f.canceledCh) })
	f.cancelsDone.Add(1)
	return nil
}

func (f *fakeCommand) CommandType() CommandType { return f.commandType }

func (f *fakeCommand) SetOutputParameters(context.Context) error {
	f.calls = append(f.calls, "output")
	return f.outputErr
}

func (f *fakeCommand) HasImplicitTransaction() bool { return f.implicitTx }

func (f *fakeCommand) CommitImplicitTransaction(context.Context) error {
	if f.cancelling.Load() {
		f.overlapped.Store(true)
	}
	f.calls = append(f.calls, "commit")
	return f.commitErr
}

func (f *fakeCommand) IsDisposed() bool { return f.disposed }

func (f *fakeCommand) DetachReader() {
	f.calls = append(f.calls, "detach")
}

func (f *fakeCommand) ExpectedColumnTypes() []reflect.Type { return f.expected }

func (f *fakeCommand) PrepareCatalog(context.Context) (CatalogStatement, error) {
	if f.catalogErr != nil {
		return nil, f.catalogErr
	}
	f.prepared++
	return &fakeCatalog{owner: f}, nil
}

// catalogFields is the shape of the catalog statement result.
var catalogFields = Descriptors{
	{Name: "COMPUTED_BLR", Type: TypeBinary, Nullable: true},
	{Name: "COMPUTED_SOURCE", Type: TypeText, Nullable: true},
	{Name: "PRIMARY_KEY_COUNT", Type: TypeInteger},
	{Name: "UNIQUE_KEY_COUNT", Type: TypeInteger},
	{Name: "FIELD_PRECISION", Type: TypeSmallInt, Nullable: true},
}

// facts builds a catalog result row.
func facts(computed bool, keys, uniques int32, precision any) []any {
	var source any
	if computed {
		source = "a + b"
	}
	return []any{nil, source, keys, uniques, precision}
}

type fakeCatalog struct {
	owner *fakeCommand
}

func (c *fakeCatalog) Execute(_ context.Context, relation, column string) (Command, error) {
	c.owner.catalogRuns++
	row, ok := c.owner.catalog[relation+"."+column]
	if !ok {
		return newFakeCommand(catalogFields), nil
	}
	return newFakeCommand(catalogFields, row), nil
}

func (c *fakeCatalog) Close() error {
	c.owner.catalogShut++
	return nil
}

type fakeConnection struct {
	owner  *fakeCommand
	closed int
	err    error
}

func (c *fakeConnection) Close(context.Context) error {
	c.closed++
	if c.owner != nil {
		c.owner.calls = append(c.owner.calls, "connection")
	}
	return c.err
}

func textColumn(name string) ColumnDescriptor {
	return ColumnDescriptor{Name: name, Type: TypeVarChar, Size: 32, Nullable: true}
}
