package results

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/joacominatel/minadb/internal/app"
	"github.com/joacominatel/minadb/internal/cursor"
	"github.com/joacominatel/minadb/internal/database"
	"github.com/joacominatel/minadb/internal/tui/theme"
)

const maxColumnWidth = 40

// grid is what the pane draws: either result rows or a schema table.
type grid struct {
	columns []string
	rows    [][]string
	widths  []int
}

func newGrid(columns []string, rows [][]string) grid {
	g := grid{columns: columns, rows: rows, widths: make([]int, len(columns))}
	for i, col := range columns {
		g.widths[i] = lipgloss.Width(col)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(g.widths) {
				g.widths[i] = max(g.widths[i], lipgloss.Width(cell))
			}
		}
	}
	for i := range g.widths {
		g.widths[i] = min(max(g.widths[i], 1), maxColumnWidth)
	}
	return g
}

func schemaGrid(table *cursor.SchemaTable) grid {
	rows := make([][]string, len(table.Rows))
	for i, row := range table.Rows {
		values := row.Values()
		cells := make([]string, len(values))
		for j, v := range values {
			cells[j] = app.FormatValue(v)
		}
		rows[i] = cells
	}
	return newGrid(cursor.SchemaColumns, rows)
}

// Model is the query results component.
type Model struct {
	result *database.QueryResult
	// described is set when the pane shows a table description.
	described *cursor.SchemaTable
	err       error

	view       grid
	showSchema bool

	width   int
	height  int
	focused bool
	loading bool
	started time.Time

	cursorY int
	cursorX int
	offsetX int

	statusMessage string
}

// New creates a new results model.
func New() Model {
	return Model{}
}

// SetSize updates the component dimensions.
func (m *Model) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// SetFocused sets the focus state.
func (m *Model) SetFocused(f bool) {
	m.focused = f
}

// SetLoading marks a query as running.
func (m *Model) SetLoading(l bool) {
	m.loading = l
	if l {
		m.started = time.Now()
		m.statusMessage = ""
	}
}

// Loading reports whether a query is running.
func (m Model) Loading() bool {
	return m.loading
}

// SetResult shows a query result.
func (m *Model) SetResult(r *database.QueryResult) {
	m.reset()
	m.result = r
	m.view = newGrid(r.Columns, r.Rows)
}

// SetSchema shows a table description.
func (m *Model) SetSchema(table *cursor.SchemaTable) {
	m.reset()
	m.described = table
	m.view = schemaGrid(table)
}

// SetError sets an error to display.
func (m *Model) SetError(err error) {
	m.reset()
	m.err = err
}

func (m *Model) reset() {
	*m = Model{width: m.width, height: m.height, focused: m.focused}
}

// Result returns the displayed query result, if any.
func (m Model) Result() *database.QueryResult {
	return m.result
}

// Update handles messages for the results pane.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !m.focused || !ok {
		return m, nil
	}

	rows := len(m.view.rows)
	page := max(1, m.visibleRows())

	switch key.String() {
	case "up", "k":
		m.cursorY = max(0, m.cursorY-1)
	case "down", "j":
		m.cursorY = min(max(0, rows-1), m.cursorY+1)
	case "pgup":
		m.cursorY = max(0, m.cursorY-page)
	case "pgdown":
		m.cursorY = min(max(0, rows-1), m.cursorY+page)
	case "home", "g":
		m.cursorY = 0
	case "end", "G":
		m.cursorY = max(0, rows-1)
	case "left", "h":
		m.cursorX = max(0, m.cursorX-1)
	case "right", "l":
		m.cursorX = min(max(0, len(m.view.columns)-1), m.cursorX+1)
	case "v":
		m.toggleSchema()
	case "y":
		m.doCopyCell()
	case "Y":
		m.doCopyRowJSON()
	case "c":
		m.doCopyRowCSV()
	case "f":
		return m, m.doFilterByValue()
	case "D":
		return m, m.doGenerateDelete()
	case "e":
		return m, m.exportCSVCmd()
	case "E":
		return m, m.exportJSONCmd()
	}
	m.scrollToCursor()
	return m, nil
}

func (m *Model) toggleSchema() {
	if m.result == nil {
		return
	}
	if m.result.Schema == nil {
		m.statusMessage = "No schema for this result"
		return
	}
	m.showSchema = !m.showSchema
	if m.showSchema {
		m.view = schemaGrid(m.result.Schema)
	} else {
		m.view = newGrid(m.result.Columns, m.result.Rows)
	}
	m.cursorY, m.cursorX, m.offsetX = 0, 0, 0
}

// showingRows reports whether the cursor points into result rows, as
// opposed to a schema listing.
func (m Model) showingRows() bool {
	return m.result != nil && !m.showSchema
}

func (m Model) visibleRows() int {
	return m.height - 4
}

// scrollToCursor keeps the selected column on screen.
func (m *Model) scrollToCursor() {
	if m.cursorX < m.offsetX {
		m.offsetX = m.cursorX
		return
	}
	for m.offsetX < m.cursorX && m.spanWidth(m.offsetX, m.cursorX) > m.width-2 {
		m.offsetX++
	}
}

func (m Model) spanWidth(from, to int) int {
	w := 0
	for i := from; i <= to && i < len(m.view.widths); i++ {
		w += m.view.widths[i] + 3
	}
	return w
}

// View renders the results pane.
func (m Model) View() string {
	title := theme.StyleTitle.Padding(0, 1).Render("Results")

	switch {
	case m.loading:
		elapsed := time.Since(m.started).Round(time.Millisecond)
		return title + "\n" + theme.StyleMuted.Render(fmt.Sprintf("  Executing query... (%s, Esc to cancel)", elapsed))
	case m.err != nil:
		msg := "  Error: " + m.err.Error()
		if app.IsCanceled(m.err) {
			msg = "  Query canceled"
		}
		return title + "\n" + theme.StyleError.Render(msg)
	case m.result == nil && m.described == nil:
		return title + "\n" + theme.StyleMuted.Render("  Execute a query to see results")
	}

	header := title + "  " + theme.StyleMuted.Render(m.stats())
	if m.result != nil && len(m.result.Columns) == 0 {
		return header + "\n" + theme.StyleSuccess.Render("  Query executed successfully")
	}

	lines := []string{header, m.renderRow(m.view.columns, -1), m.renderSeparator()}
	visible := max(1, m.visibleRows())
	top := 0
	if m.cursorY >= visible {
		top = m.cursorY - visible + 1
	}
	for i := top; i < len(m.view.rows) && i < top+visible; i++ {
		lines = append(lines, m.renderRow(m.view.rows[i], i))
	}
	if m.statusMessage != "" {
		lines = append(lines, theme.StyleMuted.Render("  "+m.statusMessage))
	}
	return strings.Join(lines, "\n")
}

func (m Model) stats() string {
	if m.described != nil {
		return fmt.Sprintf("%s | %d column(s)", m.described.Name, len(m.described.Rows))
	}
	parts := []string{fmt.Sprintf("%d row(s)", m.result.RowCount)}
	if m.result.Truncated {
		parts[0] += " (truncated)"
	}
	if m.result.RecordsAffected.Known() {
		parts = append(parts, fmt.Sprintf("%d affected", m.result.RecordsAffected.Value()))
	}
	parts = append(parts, m.result.Duration.Round(time.Microsecond).String())
	if m.showSchema {
		parts = append(parts, "schema")
	}
	return strings.Join(parts, " | ")
}

// renderRow draws the columns from offsetX that fit. row is -1 for the header.
func (m Model) renderRow(cells []string, row int) string {
	var parts []string
	used := 2
	for i := m.offsetX; i < len(cells) && i < len(m.view.widths); i++ {
		width := m.view.widths[i]
		if len(parts) > 0 && used+width > m.width && m.width > 0 {
			break
		}
		used += width + 3

		display := fit(cells[i], width)
		switch {
		case row < 0:
			display = theme.StyleTitle.Render(display)
		case row == m.cursorY && i == m.cursorX && m.focused:
			display = theme.StyleSelected.Render(display)
		case row == m.cursorY:
			display = theme.StyleCursorRow.Render(display)
		case m.isNull(row, i):
			display = theme.StyleNull.Render(display)
		}
		parts = append(parts, display)
	}
	return "  " + strings.Join(parts, " │ ")
}

func (m Model) isNull(row, col int) bool {
	if !m.showingRows() || row >= len(m.result.Values) || col >= len(m.result.Values[row]) {
		return false
	}
	return m.result.Values[row][col] == nil
}

// fit truncates s with an ellipsis or pads it to width display cells.
func fit(s string, width int) string {
	if lipgloss.Width(s) > width {
		runes := []rune(s)
		for len(runes) > 0 && lipgloss.Width(string(runes)) >= width {
			runes = runes[:len(runes)-1]
		}
		s = string(runes) + "…"
	}
	if pad := width - lipgloss.Width(s); pad > 0 {
		s += strings.Repeat(" ", pad)
	}
	return s
}

func (m Model) renderSeparator() string {
	var parts []string
	for i := m.offsetX; i < len(m.view.widths); i++ {
		parts = append(parts, strings.Repeat("─", m.view.widths[i]))
	}
	return "  " + lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(strings.Join(parts, "─┼─"))
}
