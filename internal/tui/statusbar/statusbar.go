package statusbar

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/joacominatel/minadb/internal/tui/theme"
)

// paneHints are the key hints shown while a pane has focus.
var paneHints = map[string]string{
	"explorer": "Enter: Expand │ s: Preview │ d: Describe",
	"editor":   "Ctrl+E: Run │ Tab: Complete │ Ctrl+P/N: History",
	"results":  "v: Schema │ y: Copy │ f: Filter │ e: Export",
}

const globalHints = "Tab: Switch pane │ ?: Help │ q: Quit"

// Model is the status bar component. A message replaces the hints until
// it is cleared.
type Model struct {
	width      int
	connected  bool
	connName   string
	activePane string
	message    string
	running    bool
}

// New creates a new status bar model.
func New() Model {
	return Model{activePane: "explorer"}
}

func (m *Model) SetWidth(w int) {
	m.width = w
}

// SetConnected updates the connection indicator.
func (m *Model) SetConnected(connected bool, name string) {
	m.connected = connected
	m.connName = name
}

func (m *Model) SetActivePane(pane string) {
	m.activePane = pane
}

// SetMessage shows msg until it is replaced. An empty msg restores the
// hints.
func (m *Model) SetMessage(msg string) {
	m.message = msg
}

// SetRunning marks whether a query is in flight.
func (m *Model) SetRunning(running bool) {
	m.running = running
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(_ tea.Msg) (Model, tea.Cmd) {
	return m, nil
}

func (m Model) connection() string {
	if !m.connected {
		return lipgloss.NewStyle().Foreground(theme.ColorError).Render("●") + " disconnected"
	}
	left := lipgloss.NewStyle().Foreground(theme.ColorSuccess).Render("●") + " " + m.connName
	if m.activePane != "" {
		left += theme.StyleMuted.Render(" [" + m.activePane + "]")
	}
	return left
}

func (m Model) hints() string {
	switch {
	case m.message != "":
		return m.message
	case m.running:
		return theme.StyleRunning.Render("Running") + " │ Esc: Cancel"
	}
	if hints, ok := paneHints[m.activePane]; ok && m.connected {
		return hints + " │ " + globalHints
	}
	return globalHints
}

// View renders the status bar.
func (m Model) View() string {
	left, right := m.connection(), m.hints()
	padding := max(1, m.width-lipgloss.Width(left)-lipgloss.Width(right)-4)
	return theme.StyleStatusBar.Width(m.width).Render(left + strings.Repeat(" ", padding) + right)
}
