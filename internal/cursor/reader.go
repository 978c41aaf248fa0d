package cursor

import (
	"context"
	"fmt"
	"iter"
	"reflect"

	"go.uber.org/multierr"

	log "github.com/joacominatel/minadb/internal/logging"
)

// Reader is a forward-only cursor over the rows of one executed command.
// It starts before the first row; Read advances it.
//
// A Reader is not safe for concurrent use. Calls must not overlap.
type Reader struct {
	command    Command
	connection Connection
	behavior   Behavior
	fields     Descriptors

	state    State
	position int64
	row      Row
	affected RowCount

	names  lazy[*nameIndex]
	schema lazy[*SchemaTable]
	coerce CoercionPolicy
}

// Option configures a Reader.
type Option func(*Reader)

// WithCoercionPolicy replaces the policy GetValue applies to ordinals with a
// declared expected type. A nil policy disables coercion.
func WithCoercionPolicy(policy CoercionPolicy) Option {
	return func(r *Reader) {
		r.coerce = policy
	}
}

// NewReader opens a reader over command, positioned before the first row.
// connection may be nil when the caller keeps ownership of it.
func NewReader(command Command, connection Connection, behavior Behavior, opts ...Option) *Reader {
	r := &Reader{
		command:    command,
		connection: connection,
		behavior:   behavior,
		fields:     command.Fields(),
		state:      StateNotStarted,
		position:   startPosition,
		affected:   UnknownRowCount(),
		coerce:     BooleanCoercion,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.updateRecordsAffected()
	return r
}

func (r *Reader) updateRecordsAffected() {
	if r.command != nil && !r.command.IsDisposed() {
		r.affected = r.affected.Add(RowCountFrom(r.command.RecordsAffected()))
	}
}

// State returns the reader's lifecycle state.
func (r *Reader) State() State {
	return r.state
}

// IsClosed reports whether Close was called.
func (r *Reader) IsClosed() bool {
	return r.state == StateClosed
}

// Behavior returns the flags the reader was opened with.
func (r *Reader) Behavior() Behavior {
	return r.behavior
}

// HasRows reports whether the command produces a result set.
func (r *Reader) HasRows() bool {
	if r.command == nil {
		return false
	}
	return r.command.HasFields()
}

// RecordsAffected returns the number of rows changed by the statement, or -1
// when the statement reported none (SELECT).
func (r *Reader) RecordsAffected() int64 {
	return r.affected.Value()
}

// RowsAffected returns the affected count keeping unknown apart from zero.
func (r *Reader) RowsAffected() RowCount {
	return r.affected
}

// Read advances to the next row. It returns false at end of stream.
func (r *Reader) Read() (bool, error) {
	return r.read(syncStrategy())
}

// ReadContext advances to the next row. Cancelling ctx aborts the pending
// fetch and leaves the reader exhausted.
func (r *Reader) ReadContext(ctx context.Context) (bool, error) {
	return r.read(asyncStrategy(ctx))
}

func (r *Reader) read(s strategy) (bool, error) {
	if err := r.checkState(); err != nil {
		return false, err
	}
	if r.behavior.Has(BehaviorSingleRow) && r.position != startPosition {
		return false, nil
	}
	if r.behavior.Has(BehaviorSchemaOnly) {
		return false, nil
	}
	if r.state == StateExhausted {
		return false, nil
	}
	if err := s.canceled("read"); err != nil {
		r.markExhausted()
		fetchCanceledTotal.Inc()
		return false, err
	}

	command := r.command
	exit := s.enterExplicitCancel(func() {
		if err := command.Cancel(); err != nil {
			log.Warn().Err(err).Msg("failed to cancel pending fetch")
		}
	})
	row, err := command.Fetch(s.ctx)
	exit()

	if cerr := s.canceled("read"); cerr != nil {
		r.markExhausted()
		fetchCanceledTotal.Inc()
		log.Ctx(s.ctx).Debug().Int64("position", r.position).Msg("fetch canceled")
		return false, cerr
	}
	if err != nil {
		r.markExhausted()
		return false, &ProviderError{Op: "Read", Ordinal: -1, Cause: err}
	}
	if row == nil {
		r.markExhausted()
		return false, nil
	}
	if len(row) != len(r.fields) {
		r.markExhausted()
		return false, fmt.Errorf("%w: got %d values for %d columns", ErrRowShape, len(row), len(r.fields))
	}

	r.row = row
	r.position++
	r.state = StatePositioned
	rowsFetchedTotal.Inc()
	return true, nil
}

func (r *Reader) markExhausted() {
	r.row = nil
	r.state = StateExhausted
}

// NextResult always reports false: a reader covers exactly one result set.
func (r *Reader) NextResult() (bool, error) {
	return r.nextResult(syncStrategy())
}

// NextResultContext is the context-aware form of NextResult.
func (r *Reader) NextResultContext(ctx context.Context) (bool, error) {
	return r.nextResult(asyncStrategy(ctx))
}

func (r *Reader) nextResult(s strategy) (bool, error) {
	if err := r.checkState(); err != nil {
		return false, err
	}
	if err := s.canceled("NextResult"); err != nil {
		return false, err
	}
	return false, nil
}

// Close releases the reader. The first call materializes stored procedure
// output parameters, commits the implicit transaction, detaches from the
// command and, with BehaviorCloseConnection, closes the connection, in that
// order. Later calls do nothing.
func (r *Reader) Close() error {
	return r.close(syncStrategy())
}

// CloseContext is the context-aware form of Close.
func (r *Reader) CloseContext(ctx context.Context) error {
	return r.close(asyncStrategy(ctx))
}

func (r *Reader) close(s strategy) error {
	if r.state == StateClosed {
		return nil
	}
	r.state = StateClosed

	var err error
	if r.command != nil && !r.command.IsDisposed() {
		if r.command.CommandType() == CommandStoredProcedure {
			err = multierr.Append(err, r.command.SetOutputParameters(s.ctx))
		}
		if r.command.HasImplicitTransaction() {
			err = multierr.Append(err, r.command.CommitImplicitTransaction(s.ctx))
		}
		r.command.DetachReader()
	}
	if r.connection != nil && r.behavior.Has(BehaviorCloseConnection) {
		err = multierr.Append(err, r.connection.Close(s.ctx))
	}

	log.Ctx(s.ctx).Debug().
		Int64("position", r.position).
		Stringer("behavior", r.behavior).
		Err(err).
		Msg("reader closed")

	r.position = startPosition
	r.command = nil
	r.connection = nil
	r.row = nil
	r.fields = nil
	r.names.reset()
	r.schema.reset()
	return err
}

// Records iterates the remaining rows, yielding each row's values. With
// BehaviorCloseConnection the reader is closed once iteration ends.
func (r *Reader) Records(ctx context.Context) iter.Seq2[[]any, error] {
	return func(yield func([]any, error) bool) {
		if r.behavior.Has(BehaviorCloseConnection) {
			defer r.CloseContext(ctx) //nolint:errcheck
		}
		for {
			ok, err := r.ReadContext(ctx)
			if err != nil {
				yield(nil, err)
				return
			}
			if !ok {
				return
			}
			values := make([]any, len(r.fields))
			if _, err := r.GetValues(values); err != nil {
				yield(nil, err)
				return
			}
			if !yield(values, nil) {
				return
			}
		}
	}
}

// Depth is the nesting depth of the current row, always 0.
func (r *Reader) Depth() (int, error) {
	if err := r.checkState(); err != nil {
		return 0, err
	}
	return 0, nil
}

// FieldCount returns the number of columns.
func (r *Reader) FieldCount() (int, error) {
	if err := r.checkState(); err != nil {
		return 0, err
	}
	return len(r.fields), nil
}

// GetName returns the column's alias, or its name when it has none.
func (r *Reader) GetName(i int) (string, error) {
	if err := r.checkColumn(i); err != nil {
		return "", err
	}
	return r.fields[i].DisplayName(), nil
}

// GetOrdinal returns the ordinal of the named column. Exact matches win over
// case-insensitive ones; the first of duplicate names wins.
func (r *Reader) GetOrdinal(name string) (int, error) {
	if err := r.checkState(); err != nil {
		return -1, err
	}
	idx, err := r.names.get(func() (*nameIndex, error) {
		return buildNameIndex(r.fields), nil
	})
	if err != nil {
		return -1, err
	}
	return idx.ordinal(name)
}

// GetDataTypeName returns the SQL type name of the column.
func (r *Reader) GetDataTypeName(i int) (string, error) {
	if err := r.checkColumn(i); err != nil {
		return "", err
	}
	return r.fields[i].Type.String(), nil
}

// GetFieldType returns the Go type GetValue returns for the column.
func (r *Reader) GetFieldType(i int) (reflect.Type, error) {
	if err := r.checkColumn(i); err != nil {
		return nil, err
	}
	return r.fields[i].SystemType(), nil
}

// GetProviderType returns the engine's type tag for the column.
func (r *Reader) GetProviderType(i int) (DbType, error) {
	if err := r.checkColumn(i); err != nil {
		return TypeUnknown, err
	}
	return r.fields[i].Type, nil
}

func (r *Reader) checkState() error {
	if r.state == StateClosed {
		return ErrClosed
	}
	return nil
}

func (r *Reader) checkPosition() error {
	if r.state != StatePositioned {
		return ErrNoData
	}
	return nil
}

func (r *Reader) checkIndex(i int) error {
	if i < 0 || i >= len(r.fields) {
		return fmt.Errorf("%w: %d", ErrOrdinalOutOfRange, i)
	}
	return nil
}

func (r *Reader) checkColumn(i int) error {
	if err := r.checkState(); err != nil {
		return err
	}
	return r.checkIndex(i)
}
