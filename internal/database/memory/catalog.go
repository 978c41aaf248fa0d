package memory

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-memdb"

	"github.com/joacominatel/minadb/internal/cursor"
)

// catalogFields is the shape of a column facts result.
var catalogFields = cursor.Descriptors{
	{Name: "COMPUTED_BLR", Type: cursor.TypeText, Nullable: true},
	{Name: "COMPUTED_SOURCE", Type: cursor.TypeText, Nullable: true},
	{Name: "PRIMARY_KEY_COUNT", Type: cursor.TypeInteger, Size: 4},
	{Name: "UNIQUE_KEY_COUNT", Type: cursor.TypeInteger, Size: 4},
	{Name: "FIELD_PRECISION", Type: cursor.TypeInteger, Size: 4, Nullable: true},
}

// catalogStatement answers column facts from one read snapshot.
type catalogStatement struct {
	driver *Driver
	txn    *memdb.Txn
}

func (d *Driver) prepareCatalog() *catalogStatement {
	return &catalogStatement{driver: d, txn: d.db.Txn(false)}
}

func (s *catalogStatement) Execute(ctx context.Context, relation, column string) (cursor.Command, error) {
	if s.txn == nil {
		return nil, fmt.Errorf("catalog statement is closed")
	}
	cmd := newCommand(s.driver, catalogFields)
	cmd.delay = 0
	if relation == "" {
		return cmd, nil
	}

	raw, err := s.txn.First(tableRelation, indexID, relation)
	if err != nil {
		return nil, fmt.Errorf(errUnableToQueryRows, err)
	}
	if raw == nil {
		return cmd, nil
	}
	rel := raw.(*relationEntry)
	i, ok := rel.column(column)
	if !ok {
		return cmd, nil
	}
	col := rel.Columns[i]

	it, err := s.txn.Get(tableConstraint, indexColumn, rel.Name, col.Name)
	if err != nil {
		return nil, fmt.Errorf(errUnableToQueryRows, err)
	}
	var keys, uniques int32
	for raw := it.Next(); raw != nil; raw = it.Next() {
		switch raw.(*constraintEntry).Kind {
		case constraintPrimaryKey:
			keys++
		case constraintUnique:
			uniques++
		}
	}

	row := []any{nil, nil, keys, uniques, nil}
	if col.generated() {
		row[0] = col.Computed
	}
	if col.Precision > 0 {
		row[4] = int32(col.Precision)
	}
	cmd.rows = [][]any{row}
	return cmd, nil
}

func (s *catalogStatement) Close() error {
	if s.txn != nil {
		s.txn.Abort()
		s.txn = nil
	}
	return nil
}
