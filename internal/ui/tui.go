// ABOUTME: TUI initialization and control
// ABOUTME: Wraps the bubbletea program and feeds it session snapshots
package ui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/harperreed/radiowatch/internal/session"
)

// Controls are the playback commands the dashboard can issue
type Controls interface {
	TogglePlay(ctx context.Context, id string) error
	SetVolume(id string, volume float64) error
	ToggleFocus(ctx context.Context, id string) error
	PlayAll(ctx context.Context) error
	PauseAll(ctx context.Context) error
	StopAll(ctx context.Context) error
	ToggleVolumeAll()
}

// SessionSource snapshots a session for the dashboard
func SessionSource(s *session.Session) func() Snapshot {
	return func() Snapshot {
		states := s.Registry.States()
		rows := make([]Row, 0, len(states))
		for _, st := range states {
			rows = append(rows, Row{
				ID:       st.Station.ID,
				Name:     st.Station.Name,
				State:    st.State,
				Sampling: s.Sampler.Stats(st.Station.ID),
			})
		}
		return Snapshot{Rows: rows, Summary: s.Registry.Summary()}
	}
}

// Run creates the TUI program; the caller starts it with p.Run()
func Run(ctrl Controls, source func() Snapshot, title string) *tea.Program {
	return tea.NewProgram(NewModel(ctrl, source, title), tea.WithAltScreen())
}
