package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/joacominatel/minadb/internal/cursor"
)

// catalogStatement holds a pooled connection with the column facts query
// prepared on it. Statements run one at a time: each reader it opens must be
// closed before the next Execute.
type catalogStatement struct {
	driver *Driver
	conn   *pgxpool.Conn
}

func (d *Driver) prepareCatalog(ctx context.Context) (cursor.CatalogStatement, error) {
	query, err := columnFactsQuery()
	if err != nil {
		return nil, fmt.Errorf("build catalog query: %w", err)
	}
	conn, err := d.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire: %w", err)
	}
	if _, err := conn.Conn().Prepare(ctx, columnFactsStatement, query); err != nil {
		conn.Release()
		return nil, fmt.Errorf("prepare catalog query: %w", err)
	}
	return &catalogStatement{driver: d, conn: conn}, nil
}

func (s *catalogStatement) Execute(ctx context.Context, relation, column string) (cursor.Command, error) {
	rows, err := s.conn.Conn().Query(ctx, columnFactsStatement, relation, column)
	if err != nil {
		return nil, fmt.Errorf("column facts %s.%s: %w", relation, column, err)
	}
	fds := rows.FieldDescriptions()
	fields := make(cursor.Descriptors, len(fds))
	for i, fd := range fds {
		fields[i] = descriptorFor(fd)
	}
	return &command{
		driver:   s.driver,
		conn:     s.conn,
		rows:     rows,
		fields:   fields,
		affected: -1,
	}, nil
}

func (s *catalogStatement) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), cancelRequestTimeout)
	defer cancel()
	err := s.conn.Conn().Deallocate(ctx, columnFactsStatement)
	s.conn.Release()
	return err
}
