package results

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	jsoniter "github.com/json-iterator/go"

	"github.com/joacominatel/minadb/internal/app"
	"github.com/joacominatel/minadb/internal/cursor"
	"github.com/joacominatel/minadb/internal/database"
)

var jsonStd = jsoniter.ConfigCompatibleWithStandardLibrary

// writeClipboard is replaced in tests.
var writeClipboard = clipboard.WriteAll

// SetEditorQueryMsg carries a drafted filter or DELETE statement to the
// editor pane. It is never executed on its own.
type SetEditorQueryMsg struct {
	Query string
}

// StatusNotifyMsg reports the outcome of a background export.
type StatusNotifyMsg struct {
	Message string
}

func (m Model) selectedCell() (string, bool) {
	if m.cursorY < 0 || m.cursorY >= len(m.view.rows) {
		return "", false
	}
	row := m.view.rows[m.cursorY]
	if m.cursorX < 0 || m.cursorX >= len(row) {
		return "", false
	}
	return row[m.cursorX], true
}

func (m *Model) copy(text, what string) {
	if err := writeClipboard(text); err != nil {
		m.statusMessage = "Copy failed: " + err.Error()
		return
	}
	m.statusMessage = "Copied " + what
}

// --- Copy ---

func (m *Model) doCopyCell() {
	val, ok := m.selectedCell()
	if !ok {
		m.statusMessage = "Nothing to copy"
		return
	}
	m.copy(val, truncateStatus(val, 40))
}

func (m *Model) doCopyRowJSON() {
	if !m.showingRows() || m.cursorY >= len(m.result.Values) {
		m.statusMessage = "No row to copy"
		return
	}
	data, err := rowJSON(m.result.Columns, m.result.Values[m.cursorY])
	if err != nil {
		m.statusMessage = "Copy failed: " + err.Error()
		return
	}
	m.copy(string(data), "row as JSON")
}

func (m *Model) doCopyRowCSV() {
	if m.cursorY < 0 || m.cursorY >= len(m.view.rows) {
		m.statusMessage = "No row to copy"
		return
	}
	var b strings.Builder
	w := csv.NewWriter(&b)
	_ = w.Write(m.view.columns)
	_ = w.Write(m.view.rows[m.cursorY])
	w.Flush()
	m.copy(b.String(), "row as CSV")
}

// --- Filter and delete ---

func (m *Model) doFilterByValue() tea.Cmd {
	if !m.showingRows() || m.cursorY >= len(m.result.Values) {
		m.statusMessage = "Cannot filter: no cell selected"
		return nil
	}
	query, err := filterQuery(m.result, m.cursorY, m.cursorX)
	if err != nil {
		m.statusMessage = "Cannot filter: " + err.Error()
		return nil
	}
	return setEditorQuery(query)
}

func (m *Model) doGenerateDelete() tea.Cmd {
	if !m.showingRows() || m.cursorY >= len(m.result.Values) {
		return nil
	}
	query, err := deleteQuery(m.result, m.cursorY)
	if err != nil {
		m.statusMessage = "Cannot build DELETE: " + err.Error()
		return nil
	}
	// Deletes go to the editor for review and are never run from here.
	m.statusMessage = "Review the DELETE before executing it"
	return setEditorQuery(query)
}

func setEditorQuery(query string) tea.Cmd {
	return func() tea.Msg { return SetEditorQueryMsg{Query: query} }
}

// filterQuery selects the rows of the result's base table whose column
// matches the value at (row, col).
func filterQuery(r *database.QueryResult, row, col int) (string, error) {
	table, ok := r.BaseTable()
	if !ok {
		return "", fmt.Errorf("result has no single base table")
	}
	if col < 0 || col >= len(r.Schema.Rows) || r.Schema.Rows[col].BaseColumnName == "" {
		return "", fmt.Errorf("column is not a table column")
	}
	column := r.Schema.Rows[col].BaseColumnName

	where := sq.Eq{quoteIdent(column): sqlLiteral(r.Values[row][col])}
	return sq.DebugSqlizer(sq.Select("*").From(quoteIdent(table)).Where(where)), nil
}

// deleteQuery deletes the row at index row by its key columns, or by every
// base column when the table has no key in the result.
func deleteQuery(r *database.QueryResult, row int) (string, error) {
	table, ok := r.BaseTable()
	if !ok {
		return "", fmt.Errorf("result has no single base table")
	}

	keys := columnsWhere(r.Schema, func(c cursor.SchemaRow) bool { return c.IsKey })
	if len(keys) == 0 {
		keys = columnsWhere(r.Schema, func(c cursor.SchemaRow) bool { return !c.IsExpression })
	}
	if len(keys) == 0 {
		return "", fmt.Errorf("no columns identify the row")
	}

	where := sq.Eq{}
	for _, i := range keys {
		where[quoteIdent(r.Schema.Rows[i].BaseColumnName)] = sqlLiteral(r.Values[row][i])
	}
	return sq.DebugSqlizer(sq.Delete(quoteIdent(table)).Where(where)), nil
}

func columnsWhere(schema *cursor.SchemaTable, pred func(cursor.SchemaRow) bool) []int {
	var out []int
	for i, c := range schema.Rows {
		if c.BaseColumnName != "" && pred(c) {
			out = append(out, i)
		}
	}
	return out
}

// sqlLiteral prepares a value for inlining between single quotes. NULL is
// kept as nil so the condition renders as IS NULL.
func sqlLiteral(v any) any {
	if v == nil {
		return nil
	}
	return strings.ReplaceAll(app.FormatValue(v), "'", "''")
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// --- Export ---

func exportName(ext string) string {
	return fmt.Sprintf("minadb_export_%s.%s", time.Now().Format("20060102_150405"), ext)
}

func (m Model) exportJSONCmd() tea.Cmd {
	result := m.result
	if result == nil {
		return nil
	}
	return func() tea.Msg {
		filename := exportName("json")
		f, err := os.Create(filename)
		if err != nil {
			return StatusNotifyMsg{Message: "Export failed: " + err.Error()}
		}
		defer f.Close()

		if err := writeJSON(f, result); err != nil {
			return StatusNotifyMsg{Message: "Export failed: " + err.Error()}
		}
		return StatusNotifyMsg{Message: fmt.Sprintf("Exported %d rows to %s", len(result.Rows), filename)}
	}
}

func (m Model) exportCSVCmd() tea.Cmd {
	result := m.result
	if result == nil {
		return nil
	}
	return func() tea.Msg {
		filename := exportName("csv")
		f, err := os.Create(filename)
		if err != nil {
			return StatusNotifyMsg{Message: "Export failed: " + err.Error()}
		}
		defer f.Close()

		w := csv.NewWriter(f)
		_ = w.Write(result.Columns)
		_ = w.WriteAll(result.Rows)
		if err := w.Error(); err != nil {
			return StatusNotifyMsg{Message: "Export failed: " + err.Error()}
		}
		return StatusNotifyMsg{Message: fmt.Sprintf("Exported %d rows to %s", len(result.Rows), filename)}
	}
}

// --- JSON ---

// rowJSON encodes a row as an object keeping column order.
func rowJSON(columns []string, values []any) ([]byte, error) {
	stream := jsonStd.BorrowStream(nil)
	defer jsonStd.ReturnStream(stream)

	writeObject(stream, columns, values)
	if stream.Error != nil {
		return nil, stream.Error
	}
	return append([]byte(nil), stream.Buffer()...), nil
}

func writeJSON(f *os.File, r *database.QueryResult) error {
	stream := jsonStd.BorrowStream(f)
	defer jsonStd.ReturnStream(stream)

	stream.WriteArrayStart()
	for i, values := range r.Values {
		if i > 0 {
			stream.WriteMore()
		}
		writeObject(stream, r.Columns, values)
	}
	stream.WriteArrayEnd()
	stream.WriteRaw("\n")
	return stream.Flush()
}

func writeObject(stream *jsoniter.Stream, columns []string, values []any) {
	stream.WriteObjectStart()
	for i, col := range columns {
		if i > 0 {
			stream.WriteMore()
		}
		stream.WriteObjectField(col)
		if i < len(values) {
			stream.WriteVal(values[i])
		} else {
			stream.WriteNil()
		}
	}
	stream.WriteObjectEnd()
}

func truncateStatus(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}
