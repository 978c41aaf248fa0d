package database

import (
	"strings"

	"github.com/joacominatel/minadb/internal/cursor"
)

// CommandTypeOf classifies a statement by its leading keyword. CALL
// statements run stored procedures; everything else is plain text.
func CommandTypeOf(query string) cursor.CommandType {
	fields := strings.Fields(query)
	if len(fields) > 0 && strings.EqualFold(fields[0], "CALL") {
		return cursor.CommandStoredProcedure
	}
	return cursor.CommandText
}
