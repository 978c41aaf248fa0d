package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/multierr"

	"github.com/joacominatel/minadb/internal/cursor"
	"github.com/joacominatel/minadb/internal/database"
	log "github.com/joacominatel/minadb/internal/logging"
)

const connectRetries = 3

// Driver implements the database.Driver interface for PostgreSQL.
type Driver struct {
	pool   *pgxpool.Pool
	dbName string
}

var _ database.Driver = (*Driver)(nil)

// New creates a new PostgreSQL driver.
func New() *Driver {
	return &Driver{}
}

// Connect establishes a connection pool to PostgreSQL. The first ping is
// retried with exponential backoff; server errors are not retried.
func (d *Driver) Connect(ctx context.Context, dsn string) error {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return fmt.Errorf("parse dsn: %w", err)
	}

	cfg.MaxConns = 5
	cfg.MinConns = 1
	configureLogger(cfg.ConnConfig)

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	ping := func() error {
		err := pool.Ping(ctx)
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			return backoff.Permanent(err)
		}
		return err
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), connectRetries), ctx)
	notify := func(err error, next time.Duration) {
		log.Ctx(ctx).Warn().Err(err).Dur("retry_in", next).Msg("ping failed")
	}
	if err := backoff.RetryNotify(ping, policy, notify); err != nil {
		pool.Close()
		return fmt.Errorf("ping: %w", err)
	}

	d.pool = pool
	d.dbName = cfg.ConnConfig.Database
	return nil
}

// Close closes the connection pool.
func (d *Driver) Close() error {
	if d.pool != nil {
		d.pool.Close()
	}
	return nil
}

// Ping checks if the connection is alive.
func (d *Driver) Ping(ctx context.Context) error {
	if d.pool == nil {
		return fmt.Errorf("not connected")
	}
	return d.pool.Ping(ctx)
}

// ExecuteReader runs query in an implicit transaction on a dedicated pooled
// connection and returns a reader over its result. The transaction commits
// when the reader is closed.
//
// ctx governs execution only. Once the reader is open, cancellation goes
// through the reader's own context-aware methods.
func (d *Driver) ExecuteReader(ctx context.Context, query string, behavior cursor.Behavior, args ...any) (*cursor.Reader, error) {
	if d.pool == nil {
		return nil, fmt.Errorf("not connected")
	}
	inputs, outputs, expected := database.SplitArgs(args)

	conn, err := d.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire: %w", err)
	}

	cmd := &command{
		driver:      d,
		conn:        conn,
		commandType: database.CommandTypeOf(query),
		affected:    -1,
		expected:    expected,
		outputs:     outputs,
		ownsConn:    !behavior.Has(cursor.BehaviorCloseConnection),
	}
	fds, err := d.execute(ctx, cmd, query, behavior, inputs)
	if err != nil {
		cmd.DetachReader()
		if !cmd.ownsConn {
			conn.Release()
		}
		return nil, err
	}

	if cmd.fields, err = d.describe(ctx, fds); err != nil {
		cmd.DetachReader()
		if !cmd.ownsConn {
			conn.Release()
		}
		return nil, err
	}

	var owner cursor.Connection
	if !cmd.ownsConn {
		owner = &pooledConnection{conn: conn}
	}
	return cursor.NewReader(cmd, owner, behavior), nil
}

// execute starts the statement and returns its result fields. Statements
// without a result set are drained so their affected row count is known.
func (d *Driver) execute(ctx context.Context, cmd *command, query string, behavior cursor.Behavior, inputs []any) ([]pgconn.FieldDescription, error) {
	if behavior.Has(cursor.BehaviorSchemaOnly) {
		sd, err := cmd.conn.Conn().Prepare(ctx, "", query)
		if err != nil {
			return nil, fmt.Errorf("describe: %w", err)
		}
		return sd.Fields, nil
	}

	tx, err := cmd.conn.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	cmd.tx = tx

	// The rows outlive ctx. A cancel request aborts the statement instead of
	// pgx tearing down the connection.
	stop := context.AfterFunc(ctx, func() { _ = cmd.Cancel() })
	defer stop()

	rows, err := tx.Query(context.WithoutCancel(ctx), query, inputs...)
	if err != nil {
		return nil, fmt.Errorf("execute: %w", err)
	}

	fds := rows.FieldDescriptions()
	if len(fds) > 0 {
		cmd.rows = rows
		return fds, nil
	}

	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("execute: %w", err)
	}
	cmd.affected = rows.CommandTag().RowsAffected()
	return nil, nil
}

type attrKey struct {
	relation uint32
	number   uint16
}

type attribute struct {
	relation string
	name     string
	notNull  bool
}

// describe builds the column descriptors of a result, resolving the base
// relation and column behind every field that has one.
func (d *Driver) describe(ctx context.Context, fds []pgconn.FieldDescription) (cursor.Descriptors, error) {
	fields := make(cursor.Descriptors, len(fds))
	var relations []uint32
	for i, fd := range fds {
		fields[i] = descriptorFor(fd)
		if fd.TableOID != 0 {
			relations = append(relations, fd.TableOID)
		}
	}
	if len(relations) == 0 {
		return fields, nil
	}

	attrs, err := d.attributes(ctx, relations)
	if err != nil {
		return nil, err
	}
	for i, fd := range fds {
		attr, ok := attrs[attrKey{relation: fd.TableOID, number: fd.TableAttributeNumber}]
		if !ok {
			continue
		}
		fields[i].Relation = attr.relation
		fields[i].Name = attr.name
		if fd.Name != attr.name {
			fields[i].Alias = fd.Name
		}
		fields[i].Nullable = !attr.notNull
	}
	return fields, nil
}

func (d *Driver) attributes(ctx context.Context, relations []uint32) (map[attrKey]attribute, error) {
	query, args, err := attributesQuery(relations)
	if err != nil {
		return nil, fmt.Errorf("build attributes query: %w", err)
	}
	rows, err := d.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("resolve columns: %w", err)
	}
	defer rows.Close()

	attrs := make(map[attrKey]attribute)
	for rows.Next() {
		var (
			key  attrKey
			attr attribute
		)
		if err := rows.Scan(&key.relation, &attr.relation, &key.number, &attr.name, &attr.notNull); err != nil {
			return nil, fmt.Errorf("scan attribute: %w", err)
		}
		attrs[key] = attr
	}
	return attrs, rows.Err()
}

// ListSchemas returns all user-created schemas.
func (d *Driver) ListSchemas(ctx context.Context) ([]string, error) {
	schemas, err := d.readStrings(ctx, queryListSchemas)
	if err != nil {
		return nil, fmt.Errorf("list schemas: %w", err)
	}
	return schemas, nil
}

// ListTables returns all table and view names in a schema.
func (d *Driver) ListTables(ctx context.Context, schema string) ([]string, error) {
	tables, err := d.readStrings(ctx, queryListTables, schema)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	return tables, nil
}

// readStrings collects the first column of every row of query.
func (d *Driver) readStrings(ctx context.Context, query string, args ...any) (out []string, err error) {
	r, err := d.ExecuteReader(ctx, query, cursor.BehaviorSingleResult, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		err = multierr.Append(err, r.CloseContext(ctx))
	}()

	for {
		ok, err := r.ReadContext(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		name, err := r.GetString(0)
		if err != nil {
			return nil, err
		}
		out = append(out, name)
	}
}

// QualifiedTable returns a query selecting every column of schema.table.
func (d *Driver) QualifiedTable(schema, table string) string {
	return selectAllQuery(schema, table)
}

// DatabaseName returns the name of the connected database.
func (d *Driver) DatabaseName() string {
	return d.dbName
}
