// Package theme holds the colors and styles shared by the TUI panes.
package theme

import "github.com/charmbracelet/lipgloss"

// Color palette.
var (
	ColorPrimary   = lipgloss.Color("63")  // purple
	ColorSuccess   = lipgloss.Color("42")  // green
	ColorError     = lipgloss.Color("196") // red
	ColorWarning   = lipgloss.Color("214") // orange
	ColorBorder    = lipgloss.Color("238")
	ColorMuted     = lipgloss.Color("245")
	ColorHighlight = lipgloss.Color("229") // yellow
)

var (
	StyleTitle   = lipgloss.NewStyle().Foreground(ColorPrimary).Bold(true)
	StyleMuted   = lipgloss.NewStyle().Foreground(ColorMuted)
	StyleError   = lipgloss.NewStyle().Foreground(ColorError)
	StyleSuccess = lipgloss.NewStyle().Foreground(ColorSuccess)

	// StyleKey marks key and unique columns.
	StyleKey = lipgloss.NewStyle().Foreground(ColorWarning).Bold(true)

	// StyleNull renders NULL cells apart from the text "NULL".
	StyleNull = lipgloss.NewStyle().Foreground(ColorMuted).Italic(true)

	// StyleCursorRow highlights the row under the results cursor and
	// StyleSelected the cell.
	StyleCursorRow = lipgloss.NewStyle().Foreground(ColorHighlight)
	StyleSelected  = lipgloss.NewStyle().Foreground(ColorHighlight).Reverse(true)

	// StyleRunning marks an in-flight query in the status bar.
	StyleRunning = lipgloss.NewStyle().Foreground(ColorWarning).Bold(true)

	StyleStatusBar = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("252")).
			Padding(0, 1)
)

// PaneBorder returns the border style of a pane.
func PaneBorder(active bool) lipgloss.Style {
	color := ColorBorder
	if active {
		color = ColorPrimary
	}
	return lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(color)
}
