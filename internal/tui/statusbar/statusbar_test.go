package statusbar

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestView(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(m *Model)
		want    []string
		notWant []string
	}{
		{
			name:    "disconnected",
			setup:   func(m *Model) {},
			want:    []string{"disconnected", "q: Quit"},
			notWant: []string{"Describe"},
		},
		{
			name:  "pane hints",
			setup: func(m *Model) { m.SetConnected(true, "shop"); m.SetActivePane("explorer") },
			want:  []string{"shop", "[explorer]", "d: Describe"},
		},
		{
			name:  "running",
			setup: func(m *Model) { m.SetConnected(true, "shop"); m.SetRunning(true) },
			want:  []string{"Running", "Esc: Cancel"},
		},
		{
			name: "message wins",
			setup: func(m *Model) {
				m.SetConnected(true, "shop")
				m.SetRunning(true)
				m.SetMessage("Canceling query...")
			},
			want:    []string{"Canceling query..."},
			notWant: []string{"Esc: Cancel"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New()
			m.SetWidth(160)
			tt.setup(&m)
			view := m.View()
			for _, s := range tt.want {
				require.Contains(t, view, s)
			}
			for _, s := range tt.notWant {
				require.NotContains(t, view, s)
			}
		})
	}
}
