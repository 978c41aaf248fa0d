package explorer

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/joacominatel/minadb/internal/app"
	"github.com/joacominatel/minadb/internal/cursor"
	"github.com/joacominatel/minadb/internal/tui/theme"
)

// NodeKind identifies the type of a tree node.
type NodeKind int

const (
	NodeDatabase NodeKind = iota
	NodeSchema
	NodeTable
	NodeColumn
)

// TreeNode represents a single node in the schema tree.
type TreeNode struct {
	Kind     NodeKind
	Name     string
	Children []*TreeNode
	Expanded bool
	Loaded   bool // whether children have been fetched

	Schema string
	Table  string
	// Column is set for NodeColumn.
	Column *cursor.SchemaRow
}

type flatItem struct {
	node  *TreeNode
	depth int
}

// Model is the explorer (schema tree) component.
type Model struct {
	tree    *TreeNode
	items   []flatItem
	cursor  int
	width   int
	height  int
	focused bool
	loading bool
}

// New creates a new explorer model.
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

// SetLoading sets the loading state.
func (m *Model) SetLoading(l bool) {
	m.loading = l
}

// RequestColumnsMsg is sent when a table is expanded for the first time.
type RequestColumnsMsg struct {
	Schema string
	Table  string
}

// PreviewTableMsg asks for the first rows of a table.
type PreviewTableMsg struct {
	Schema string
	Table  string
}

// DescribeTableMsg asks for the schema table of a table.
type DescribeTableMsg struct {
	Schema string
	Table  string
}

// SetTree populates the explorer from a schema tree.
func (m *Model) SetTree(tree *app.SchemaTree) {
	root := &TreeNode{
		Kind:     NodeDatabase,
		Name:     tree.Database,
		Expanded: true,
		Loaded:   true,
	}

	for _, s := range tree.Schemas {
		schemaNode := &TreeNode{
			Kind:     NodeSchema,
			Name:     s.Name,
			Expanded: len(tree.Schemas) == 1,
			Loaded:   true,
		}
		for _, t := range s.Tables {
			schemaNode.Children = append(schemaNode.Children, &TreeNode{
				Kind:   NodeTable,
				Name:   t,
				Schema: s.Name,
			})
		}
		root.Children = append(root.Children, schemaNode)
	}

	m.tree = root
	m.flatten()
	m.loading = false
}

// SetColumns adds the described columns under a table node.
func (m *Model) SetColumns(schema, table string, columns *cursor.SchemaTable) {
	node := m.findTable(schema, table)
	if node == nil || columns == nil {
		return
	}
	node.Children = nil
	for i := range columns.Rows {
		row := columns.Rows[i]
		node.Children = append(node.Children, &TreeNode{
			Kind:   NodeColumn,
			Name:   row.ColumnName,
			Schema: schema,
			Table:  table,
			Column: &row,
		})
	}
	node.Loaded = true
	m.flatten()
}

func (m *Model) findTable(schema, table string) *TreeNode {
	if m.tree == nil {
		return nil
	}
	for _, s := range m.tree.Children {
		if s.Name != schema {
			continue
		}
		for _, t := range s.Children {
			if t.Name == table {
				return t
			}
		}
	}
	return nil
}

// SelectedTable returns the schema and table under the cursor, if any.
func (m Model) SelectedTable() (schema, table string, ok bool) {
	if m.cursor < 0 || m.cursor >= len(m.items) {
		return "", "", false
	}
	node := m.items[m.cursor].node
	switch node.Kind {
	case NodeTable:
		return node.Schema, node.Name, true
	case NodeColumn:
		return node.Schema, node.Table, true
	}
	return "", "", false
}

func (m *Model) flatten() {
	m.items = m.items[:0]
	if m.tree != nil {
		m.flattenNode(m.tree, 0)
	}
	if m.cursor >= len(m.items) {
		m.cursor = max(0, len(m.items)-1)
	}
}

func (m *Model) flattenNode(node *TreeNode, depth int) {
	m.items = append(m.items, flatItem{node: node, depth: depth})
	if !node.Expanded {
		return
	}
	for _, child := range node.Children {
		m.flattenNode(child, depth+1)
	}
}

// Init returns the initial command (none).
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the explorer.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !m.focused || !ok {
		return m, nil
	}

	switch key.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.items)-1 {
			m.cursor++
		}
	case "enter", "right", "l":
		return m, m.expand()
	case "left", "h":
		m.collapse()
	case "s":
		if schema, table, ok := m.SelectedTable(); ok {
			return m, emit(PreviewTableMsg{Schema: schema, Table: table})
		}
	case "d":
		if schema, table, ok := m.SelectedTable(); ok {
			return m, emit(DescribeTableMsg{Schema: schema, Table: table})
		}
	}

	return m, nil
}

func emit(msg tea.Msg) tea.Cmd {
	return func() tea.Msg { return msg }
}

func (m *Model) expand() tea.Cmd {
	if m.cursor < 0 || m.cursor >= len(m.items) {
		return nil
	}
	node := m.items[m.cursor].node
	if node.Kind == NodeColumn {
		return nil
	}

	node.Expanded = !node.Expanded
	m.flatten()

	if node.Expanded && node.Kind == NodeTable && !node.Loaded {
		return emit(RequestColumnsMsg{Schema: node.Schema, Table: node.Name})
	}
	return nil
}

func (m *Model) collapse() {
	if m.cursor < 0 || m.cursor >= len(m.items) {
		return
	}
	node := m.items[m.cursor].node
	if !node.Expanded && m.items[m.cursor].depth > 0 {
		// Jump to the parent.
		depth := m.items[m.cursor].depth
		for i := m.cursor - 1; i >= 0; i-- {
			if m.items[i].depth < depth {
				m.cursor = i
				node = m.items[i].node
				break
			}
		}
	}
	node.Expanded = false
	m.flatten()
}

// View renders the explorer.
func (m Model) View() string {
	title := theme.StyleTitle.Padding(0, 1).Render("Schema Explorer")

	switch {
	case m.loading:
		return title + "\n" + theme.StyleMuted.Render("  Loading...")
	case m.tree == nil:
		return title + "\n" + theme.StyleMuted.Render("  No connection")
	}

	visible := max(1, m.height-2)
	offset := 0
	if m.cursor >= visible {
		offset = m.cursor - visible + 1
	}

	lines := []string{title}
	for i := offset; i < len(m.items) && i < offset+visible; i++ {
		lines = append(lines, m.renderNode(m.items[i], i == m.cursor))
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderNode(item flatItem, selected bool) string {
	node := item.node

	icon := "  "
	if node.Kind != NodeColumn {
		icon = "▶ "
		if node.Expanded {
			icon = "▼ "
		}
	}

	name := node.Name
	if room := m.width - 2*item.depth - 4; room > 3 && lipgloss.Width(name) > room {
		name = string([]rune(name)[:room-2]) + ".."
	}

	line := strings.Repeat("  ", item.depth) + icon + name
	if selected {
		line = lipgloss.NewStyle().Foreground(theme.ColorHighlight).Bold(true).Render(line)
	}
	if node.Column != nil {
		line += " " + theme.StyleMuted.Render(columnType(node.Column)) + columnMarkers(node.Column)
	}
	return line
}

func columnType(col *cursor.SchemaRow) string {
	switch {
	case col.NumericPrecision.Valid && col.NumericScale.Valid && col.NumericScale.Int32 != 0:
		return fmt.Sprintf("%s(%d,%d)", col.ProviderType, col.NumericPrecision.Int32, col.NumericScale.Int32)
	case col.NumericPrecision.Valid:
		return fmt.Sprintf("%s(%d)", col.ProviderType, col.NumericPrecision.Int32)
	case col.ProviderType == cursor.TypeVarChar || col.ProviderType == cursor.TypeChar:
		return fmt.Sprintf("%s(%d)", col.ProviderType, col.ColumnSize)
	}
	return col.ProviderType.String()
}

func columnMarkers(col *cursor.SchemaRow) string {
	var marks []string
	if col.IsKey {
		marks = append(marks, theme.StyleKey.Render("PK"))
	}
	if col.IsUnique {
		marks = append(marks, theme.StyleKey.Render("UQ"))
	}
	if col.IsExpression {
		marks = append(marks, theme.StyleMuted.Render("computed"))
	}
	if !col.AllowDBNull {
		marks = append(marks, theme.StyleMuted.Render("not null"))
	}
	if len(marks) == 0 {
		return ""
	}
	return " " + strings.Join(marks, " ")
}
