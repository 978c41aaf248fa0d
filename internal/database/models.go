package database

import (
	"reflect"
	"strings"
	"time"

	"github.com/joacominatel/minadb/internal/cursor"
)

// QueryResult holds the drained result of a SQL query execution.
type QueryResult struct {
	Columns []string
	Rows    [][]string
	// Values holds the unformatted row values, parallel to Rows.
	Values   [][]any
	RowCount int
	// RecordsAffected is unknown for statements that report no count.
	RecordsAffected cursor.RowCount
	// Schema is nil unless schema synthesis was requested.
	Schema *cursor.SchemaTable
	// Truncated is set when more rows were available than were read.
	Truncated bool
	Duration  time.Duration
}

// BaseTable returns the single base table behind the result, if every
// column with an owning table agrees on it.
func (r *QueryResult) BaseTable() (string, bool) {
	if r == nil || r.Schema == nil {
		return "", false
	}
	table := ""
	for _, row := range r.Schema.Rows {
		switch {
		case row.BaseTableName == "":
		case table == "":
			table = row.BaseTableName
		case table != row.BaseTableName:
			return "", false
		}
	}
	return table, table != ""
}

// OutParam receives a stored procedure output parameter. Pass a pointer as
// a query argument; Value is set when the reader is closed.
type OutParam struct {
	Name  string
	Value any
}

// ExpectedTypes, passed as a query argument, declares the Go type the
// caller expects for each result ordinal. Readers coerce values to match.
type ExpectedTypes []reflect.Type

// SplitArgs separates query arguments into statement inputs, stored
// procedure output parameters and declared expected types.
func SplitArgs(args []any) (inputs []any, outputs []*OutParam, expected ExpectedTypes) {
	for _, arg := range args {
		switch arg := arg.(type) {
		case *OutParam:
			outputs = append(outputs, arg)
		case ExpectedTypes:
			expected = arg
		default:
			inputs = append(inputs, arg)
		}
	}
	return inputs, outputs, expected
}

// AssignOutParams copies values of the named columns into the matching
// output parameters. Names compare case-insensitively.
func AssignOutParams(outputs []*OutParam, columns []string, values []any) {
	for _, out := range outputs {
		for i, col := range columns {
			if i < len(values) && strings.EqualFold(col, out.Name) {
				out.Value = values[i]
				break
			}
		}
	}
}
