package editor

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"
)

func TestFormatKeywords(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"select id from orders where id = 1", "SELECT id FROM orders WHERE id = 1"},
		{"select 'from where' as label from t", "SELECT 'from where' AS label FROM t"},
		{`select "select" from t`, `SELECT "select" FROM t`},
		{"insert into t (a) values (null)", "INSERT INTO t (a) VALUES (NULL)"},
		{"selection from_date", "selection from_date"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			require.Equal(t, tt.want, FormatKeywords(tt.in))
		})
	}
}

func TestCandidates(t *testing.T) {
	require := require.New(t)
	names := []string{"ORDERS", "order_lines", "CUSTOMERS"}

	require.Equal([]string{"ORDERS", "order_lines"}, Candidates(names, "ord"))
	require.Empty(Candidates(names, "orders"))
	require.Empty(Candidates(names, "x"))
}

func TestLastWord(t *testing.T) {
	require := require.New(t)
	require.Equal("ord", lastWord("SELECT * FROM ord"))
	require.Equal("main.ord", lastWord("SELECT * FROM main.ord"))
	require.Equal("", lastWord("SELECT * FROM "))
	require.Equal("abc", lastWord("abc"))
}

func TestCompletion(t *testing.T) {
	require := require.New(t)

	m := New()
	m.SetFocused(true)
	m.SetTableNames([]string{"ORDERS", "ORDER_LINES"})
	m.AddColumnNames("TOTAL", "ID", "TAX")
	m.AddColumnNames("ID")
	require.Equal([]string{"ID", "TAX", "TOTAL"}, m.columnNames)

	tab := tea.KeyMsg{Type: tea.KeyTab}

	m.SetQuery("SELECT * FROM ord")
	m, _ = m.Update(tab)
	require.Equal("SELECT * FROM ORDERS", m.Value())
	require.True(m.CompletionActive())
	m, _ = m.Update(tab)
	require.Equal("SELECT * FROM ORDER_LINES", m.Value())

	m.SetQuery("SELECT t")
	m, _ = m.Update(tab)
	require.Equal("SELECT TAX", m.Value())

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.False(m.CompletionActive())
}

func TestExecuteAndHistory(t *testing.T) {
	require := require.New(t)

	m := New()
	m.SetFocused(true)

	run := func(q string) {
		m.SetQuery(q)
		var cmd tea.Cmd
		m, cmd = m.Update(tea.KeyMsg{Type: tea.KeyCtrlE})
		require.NotNil(cmd)
		require.Equal(ExecuteQueryMsg{Query: q}, cmd())
	}
	run("SELECT 1")
	run("SELECT 2")
	run("SELECT 2")
	require.Equal([]string{"SELECT 1", "SELECT 2"}, m.history)

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlP})
	require.Equal("SELECT 2", m.Value())
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlP})
	require.Equal("SELECT 1", m.Value())
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlP})
	require.Equal("SELECT 1", m.Value())
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlN})
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlN})
	require.Empty(m.Value())

	m.SetQuery("   ")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlE})
	require.Nil(cmd)
}
