package editor

import (
	"slices"
	"strings"
	"unicode"

	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/joacominatel/minadb/internal/tui/theme"
)

const maxHistory = 50

// ExecuteQueryMsg is sent when the user triggers query execution.
type ExecuteQueryMsg struct {
	Query string
}

// keywords are uppercased by Ctrl+L. Only words the engines understand are
// listed.
var keywords = map[string]bool{
	"select": true, "from": true, "where": true, "and": true, "as": true,
	"insert": true, "into": true, "values": true, "delete": true,
	"call": true, "null": true, "true": true, "false": true,
	"join": true, "on": true, "or": true, "not": true, "is": true,
	"order": true, "by": true, "limit": true, "update": true, "set": true,
}

// tableContext lists the keywords after which a table name is expected.
var tableContext = []string{"FROM", "INTO", "JOIN", "UPDATE", "DELETE", ","}

// Model is the SQL query editor component.
type Model struct {
	textarea textarea.Model
	width    int
	height   int
	focused  bool

	tableNames  []string
	columnNames []string

	completions []string
	compIndex   int

	history []string
	histPos int
}

// New creates a new editor model.
func New() Model {
	ta := textarea.New()
	ta.Placeholder = "Enter SQL query..."
	ta.ShowLineNumbers = false
	ta.CharLimit = 0
	ta.Prompt = "│ "
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.FocusedStyle.Base = lipgloss.NewStyle()
	ta.BlurredStyle.Base = lipgloss.NewStyle()
	ta.FocusedStyle.Placeholder = theme.StyleMuted
	ta.BlurredStyle.Placeholder = theme.StyleMuted
	ta.FocusedStyle.Prompt = lipgloss.NewStyle().Foreground(theme.ColorPrimary)
	ta.BlurredStyle.Prompt = lipgloss.NewStyle().Foreground(theme.ColorBorder)

	return Model{textarea: ta}
}

// SetSize updates the component dimensions.
func (m *Model) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.textarea.SetWidth(max(1, w-2))
	m.textarea.SetHeight(max(1, h-2))
}

// SetFocused sets the focus state.
func (m *Model) SetFocused(f bool) {
	m.focused = f
	if f {
		m.textarea.Focus()
	} else {
		m.textarea.Blur()
	}
}

// Value returns the current editor content.
func (m Model) Value() string {
	return m.textarea.Value()
}

// SetQuery replaces the editor content.
func (m *Model) SetQuery(query string) {
	m.textarea.SetValue(query)
	m.cancelCompletion()
}

// SetTableNames sets the table names offered by completion.
func (m *Model) SetTableNames(names []string) {
	m.tableNames = names
}

// AddColumnNames adds column names offered by completion.
func (m *Model) AddColumnNames(names ...string) {
	for _, name := range names {
		if !slices.Contains(m.columnNames, name) {
			m.columnNames = append(m.columnNames, name)
		}
	}
	slices.Sort(m.columnNames)
}

// CompletionActive reports whether Tab currently cycles completions.
func (m Model) CompletionActive() bool {
	return len(m.completions) > 0
}

// Clear empties the editor.
func (m *Model) Clear() {
	m.textarea.Reset()
	m.cancelCompletion()
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return textarea.Blink
}

// Update handles messages for the editor.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if !m.focused {
		return m, nil
	}

	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "ctrl+e", "f5":
			query := strings.TrimSpace(m.textarea.Value())
			if query == "" {
				return m, nil
			}
			m.cancelCompletion()
			m.remember(query)
			return m, func() tea.Msg { return ExecuteQueryMsg{Query: query} }
		case "ctrl+k":
			m.Clear()
			return m, nil
		case "ctrl+l":
			m.textarea.SetValue(FormatKeywords(m.textarea.Value()))
			return m, nil
		case "ctrl+p":
			m.recall(-1)
			return m, nil
		case "ctrl+n":
			m.recall(1)
			return m, nil
		case "tab", "ctrl+@":
			if m.Complete() {
				return m, nil
			}
		case "esc":
			if m.CompletionActive() {
				m.cancelCompletion()
				return m, nil
			}
		default:
			m.cancelCompletion()
		}
	}

	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	return m, cmd
}

func (m *Model) remember(query string) {
	if n := len(m.history); n == 0 || m.history[n-1] != query {
		m.history = append(m.history, query)
	}
	if len(m.history) > maxHistory {
		m.history = m.history[len(m.history)-maxHistory:]
	}
	m.histPos = len(m.history)
}

// recall moves through the history. Stepping past the newest entry clears
// the editor.
func (m *Model) recall(step int) {
	if len(m.history) == 0 {
		return
	}
	m.histPos = min(max(0, m.histPos+step), len(m.history))
	if m.histPos == len(m.history) {
		m.textarea.Reset()
		return
	}
	m.textarea.SetValue(m.history[m.histPos])
}

// FormatKeywords uppercases SQL keywords outside quoted text.
func FormatKeywords(sql string) string {
	var (
		out   strings.Builder
		word  strings.Builder
		quote rune
	)
	flush := func() {
		w := word.String()
		if keywords[strings.ToLower(w)] {
			w = strings.ToUpper(w)
		}
		out.WriteString(w)
		word.Reset()
	}

	for _, ch := range sql {
		switch {
		case quote != 0:
			if ch == quote {
				quote = 0
			}
			out.WriteRune(ch)
		case ch == '\'' || ch == '"':
			flush()
			quote = ch
			out.WriteRune(ch)
		case unicode.IsLetter(ch) || unicode.IsDigit(ch) || ch == '_':
			word.WriteRune(ch)
		default:
			flush()
			out.WriteRune(ch)
		}
	}
	flush()
	return out.String()
}

// Complete cycles through candidates for the word before the cursor and
// reports whether one was applied. Tables are offered after FROM, INTO or
// JOIN and columns elsewhere.
func (m *Model) Complete() bool {
	val := m.textarea.Value()
	if m.CompletionActive() {
		m.compIndex = (m.compIndex + 1) % len(m.completions)
		m.textarea.SetValue(strings.TrimSuffix(val, lastWord(val)) + m.completions[m.compIndex])
		return true
	}

	partial := lastWord(val)
	if partial == "" {
		return false
	}
	matches := Candidates(m.candidatesFor(val, partial), partial)
	if len(matches) == 0 {
		return false
	}

	m.completions = matches
	m.compIndex = 0
	m.textarea.SetValue(strings.TrimSuffix(val, partial) + matches[0])
	return true
}

func (m *Model) candidatesFor(val, partial string) []string {
	before := strings.Fields(strings.ToUpper(strings.TrimSuffix(val, partial)))
	if len(before) > 0 && slices.Contains(tableContext, before[len(before)-1]) {
		return m.tableNames
	}
	return m.columnNames
}

// Candidates returns the names starting with partial, ignoring case.
func Candidates(names []string, partial string) []string {
	lower := strings.ToLower(partial)
	var out []string
	for _, name := range names {
		if strings.HasPrefix(strings.ToLower(name), lower) && !strings.EqualFold(name, partial) {
			out = append(out, name)
		}
	}
	return out
}

func (m *Model) cancelCompletion() {
	m.completions = nil
	m.compIndex = 0
}

// lastWord returns the identifier ending the text.
func lastWord(s string) string {
	i := strings.LastIndexFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '.'
	})
	return s[i+1:]
}

// View renders the editor.
func (m Model) View() string {
	title := theme.StyleTitle.Padding(0, 1).Render("Query Editor")
	view := title + "\n" + m.textarea.View()

	if len(m.completions) > 1 {
		hints := make([]string, len(m.completions))
		for i, c := range m.completions {
			if i == m.compIndex {
				hints[i] = lipgloss.NewStyle().Foreground(theme.ColorHighlight).Bold(true).Render(c)
			} else {
				hints[i] = theme.StyleMuted.Render(c)
			}
		}
		view += "\n " + theme.StyleMuted.Render("Tab: ") + strings.Join(hints, " │ ")
	}
	return view
}
