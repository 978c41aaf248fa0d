package results

import (
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/joacominatel/minadb/internal/cursor"
	"github.com/joacominatel/minadb/internal/database"
)

func sampleResult() *database.QueryResult {
	return &database.QueryResult{
		Columns: []string{"ID", "name", "TOTAL_X2"},
		Rows: [][]string{
			{"1", "O'Brien", "4"},
			{"2", "NULL", "6"},
		},
		Values: [][]any{
			{int32(1), "O'Brien", int64(4)},
			{int32(2), nil, int64(6)},
		},
		RowCount:        2,
		RecordsAffected: cursor.UnknownRowCount(),
		Schema: &cursor.SchemaTable{
			Name: "SchemaTable",
			Rows: []cursor.SchemaRow{
				{ColumnName: "ID", ColumnOrdinal: 0, ProviderType: cursor.TypeInteger, IsKey: true, IsUnique: true, BaseTableName: "PEOPLE", BaseColumnName: "ID"},
				{ColumnName: "name", ColumnOrdinal: 1, ProviderType: cursor.TypeVarChar, AllowDBNull: true, IsAliased: true, BaseTableName: "PEOPLE", BaseColumnName: "FULL_NAME"},
				{ColumnName: "TOTAL_X2", ColumnOrdinal: 2, ProviderType: cursor.TypeBigInt, IsExpression: true, BaseTableName: "PEOPLE", BaseColumnName: "TOTAL_X2"},
			},
		},
	}
}

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestFilterQuery(t *testing.T) {
	tests := []struct {
		name    string
		row     int
		col     int
		want    string
		wantErr string
	}{
		{name: "escapes quotes", row: 0, col: 1, want: `SELECT * FROM "PEOPLE" WHERE "FULL_NAME" = 'O''Brien'`},
		{name: "null", row: 1, col: 1, want: `SELECT * FROM "PEOPLE" WHERE "FULL_NAME" IS NULL`},
		{name: "number", row: 1, col: 0, want: `SELECT * FROM "PEOPLE" WHERE "ID" = '2'`},
		{name: "out of range", row: 0, col: 7, wantErr: "not a table column"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require := require.New(t)
			got, err := filterQuery(sampleResult(), tt.row, tt.col)
			if tt.wantErr != "" {
				require.ErrorContains(err, tt.wantErr)
				return
			}
			require.NoError(err)
			require.Equal(tt.want, got)
		})
	}
}

func TestFilterQueryWithoutBaseTable(t *testing.T) {
	r := sampleResult()
	r.Schema = nil
	_, err := filterQuery(r, 0, 0)
	require.ErrorContains(t, err, "no single base table")
}

func TestDeleteQuery(t *testing.T) {
	require := require.New(t)

	got, err := deleteQuery(sampleResult(), 1)
	require.NoError(err)
	require.Equal(`DELETE FROM "PEOPLE" WHERE "ID" = '2'`, got)

	keyless := sampleResult()
	keyless.Schema.Rows[0].IsKey = false
	got, err = deleteQuery(keyless, 1)
	require.NoError(err)
	require.Contains(got, `DELETE FROM "PEOPLE" WHERE `)
	require.Contains(got, `"ID" = '2'`)
	require.Contains(got, `"FULL_NAME" IS NULL`)
	require.NotContains(got, "TOTAL_X2")
}

func TestRowJSON(t *testing.T) {
	require := require.New(t)

	data, err := rowJSON([]string{"b", "a", "c"}, []any{int32(1), nil, "x"})
	require.NoError(err)
	require.Equal(`{"b":1,"a":null,"c":"x"}`, string(data))
}

func TestNavigationAndSchemaToggle(t *testing.T) {
	require := require.New(t)

	m := New()
	m.SetSize(120, 20)
	m.SetFocused(true)
	m.SetResult(sampleResult())

	m, _ = m.Update(key("j"))
	m, _ = m.Update(key("j"))
	require.Equal(1, m.cursorY)
	m, _ = m.Update(key("l"))
	require.Equal(1, m.cursorX)

	cell, ok := m.selectedCell()
	require.True(ok)
	require.Equal("NULL", cell)

	m, _ = m.Update(key("v"))
	require.True(m.showSchema)
	require.Equal(cursor.SchemaColumns, m.view.columns)
	require.Len(m.view.rows, 3)
	require.Zero(m.cursorY)
	require.Contains(m.View(), "schema")

	m, _ = m.Update(key("v"))
	require.False(m.showSchema)
	require.Equal([]string{"ID", "name", "TOTAL_X2"}, m.view.columns)
}

func TestCopyCell(t *testing.T) {
	require := require.New(t)

	var copied string
	orig := writeClipboard
	t.Cleanup(func() { writeClipboard = orig })
	writeClipboard = func(s string) error {
		copied = s
		return nil
	}

	m := New()
	m.SetFocused(true)
	m.SetResult(sampleResult())
	m, _ = m.Update(key("l"))
	m, _ = m.Update(key("y"))
	require.Equal("O'Brien", copied)
	require.Contains(m.statusMessage, "Copied")

	m, _ = m.Update(key("Y"))
	require.Equal(`{"ID":1,"name":"O'Brien","TOTAL_X2":4}`, copied)

	writeClipboard = func(string) error { return errors.New("no display") }
	m, _ = m.Update(key("y"))
	require.Equal("Copy failed: no display", m.statusMessage)
}

func TestFilterEmitsEditorQuery(t *testing.T) {
	require := require.New(t)

	m := New()
	m.SetFocused(true)
	m.SetResult(sampleResult())
	_, cmd := m.Update(key("f"))
	require.NotNil(cmd)
	require.Equal(SetEditorQueryMsg{Query: `SELECT * FROM "PEOPLE" WHERE "ID" = '1'`}, cmd())
}

func TestViewStates(t *testing.T) {
	require := require.New(t)

	m := New()
	m.SetSize(80, 10)
	require.Contains(m.View(), "Execute a query")

	m.SetLoading(true)
	require.True(m.Loading())
	require.Contains(m.View(), "Esc to cancel")

	m.SetError(&cursor.CanceledError{Op: "read", Cause: errors.New("context canceled")})
	require.False(m.Loading())
	require.Contains(m.View(), "Query canceled")

	affected := &database.QueryResult{RecordsAffected: cursor.KnownRowCount(3)}
	m.SetResult(affected)
	require.Contains(m.View(), "3 affected")
	require.Contains(m.View(), "Query executed successfully")

	m.SetSchema(sampleResult().Schema)
	require.Contains(m.View(), "3 column(s)")
}
