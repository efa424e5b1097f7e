// ABOUTME: Bubbletea model for the station dashboard
// ABOUTME: Renders every station's status, volume and sampling counters and maps keys to commands
package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/harperreed/radiowatch/internal/sampling"
	"github.com/harperreed/radiowatch/internal/session"
	"github.com/harperreed/radiowatch/internal/station"
)

const (
	volumeStep      = 0.05
	refreshInterval = time.Second
	commandTimeout  = 30 * time.Second
)

// Row is one station line
type Row struct {
	ID       string
	Name     string
	State    station.AudioState
	Sampling sampling.Stats
}

// Snapshot is everything the dashboard shows
type Snapshot struct {
	Rows    []Row
	Summary session.Summary
}

// RefreshMsg asks the model to re-read its source
type RefreshMsg struct{}

type tickMsg time.Time

// commandDoneMsg reports a finished command
type commandDoneMsg struct {
	action string
	err    error
}

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	selectedStyle = lipgloss.NewStyle().Bold(true)
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	focusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	boxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)

	statusStyles = map[station.Status]lipgloss.Style{
		station.StatusPlaying: lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		station.StatusLoading: lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		station.StatusPaused:  mutedStyle,
		station.StatusError:   errorStyle,
	}
)

// Model represents the TUI state
type Model struct {
	ctrl   Controls
	source func() Snapshot
	title  string

	snap     Snapshot
	selected int
	pending  string
	message  string
	isError  bool

	width  int
	height int
}

// NewModel creates a new TUI model
func NewModel(ctrl Controls, source func() Snapshot, title string) Model {
	m := Model{ctrl: ctrl, source: source, title: title}
	if source != nil {
		m.snap = source()
	}
	return m
}

// Init starts the refresh ticker
func (m Model) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case RefreshMsg:
		m.refresh()
	case tickMsg:
		m.refresh()
		return m, tick()
	case commandDoneMsg:
		m.pending = ""
		if msg.err != nil {
			m.message = fmt.Sprintf("%s failed: %v", msg.action, msg.err)
			m.isError = true
		} else {
			m.message = msg.action
			m.isError = false
		}
		m.refresh()
	}

	return m, nil
}

func (m *Model) refresh() {
	if m.source == nil {
		return
	}
	m.snap = m.source()
	if m.selected >= len(m.snap.Rows) {
		m.selected = len(m.snap.Rows) - 1
	}
	if m.selected < 0 {
		m.selected = 0
	}
}

// current returns the selected row
func (m Model) current() (Row, bool) {
	if m.selected < 0 || m.selected >= len(m.snap.Rows) {
		return Row{}, false
	}
	return m.snap.Rows[m.selected], true
}

// run executes a command off the UI goroutine
func (m Model) run(action string, fn func(ctx context.Context) error) (Model, tea.Cmd) {
	m.pending = action
	return m, func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		return commandDoneMsg{action: action, err: fn(ctx)}
	}
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "up", "k":
		if m.selected > 0 {
			m.selected--
		}
		return m, nil
	case "down", "j":
		if m.selected < len(m.snap.Rows)-1 {
			m.selected++
		}
		return m, nil
	}

	if m.ctrl == nil {
		return m, nil
	}

	row, ok := m.current()

	switch msg.String() {
	case " ":
		if ok {
			return m.run("toggle "+row.ID, func(ctx context.Context) error {
				return m.ctrl.TogglePlay(ctx, row.ID)
			})
		}
	case "f":
		if ok {
			return m.run("focus "+row.ID, func(ctx context.Context) error {
				return m.ctrl.ToggleFocus(ctx, row.ID)
			})
		}
	case "+", "=":
		if ok {
			m.setVolume(row, row.State.Volume+volumeStep)
		}
	case "-", "_":
		if ok {
			m.setVolume(row, row.State.Volume-volumeStep)
		}
	case "a":
		if m.snap.Summary.AllPlaying {
			return m.run("pause all", m.ctrl.PauseAll)
		}
		return m.run("play all", m.ctrl.PlayAll)
	case "s":
		return m.run("stop all", m.ctrl.StopAll)
	case "m":
		m.ctrl.ToggleVolumeAll()
		m.refresh()
	}

	return m, nil
}

func (m *Model) setVolume(row Row, volume float64) {
	volume = clamp(volume)
	if err := m.ctrl.SetVolume(row.ID, volume); err != nil {
		m.message = fmt.Sprintf("volume failed: %v", err)
		m.isError = true
		return
	}
	m.refresh()
}

// View renders the TUI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderStations())
	b.WriteString("\n")
	b.WriteString(m.renderFooter())

	return boxStyle.Width(max(m.width-2, 40)).Render(b.String())
}

// renderHeader renders the title and derived counts
func (m Model) renderHeader() string {
	s := m.snap.Summary
	counts := fmt.Sprintf("%d/%d playing", s.Active, s.Total)
	if s.Loading > 0 {
		counts += fmt.Sprintf(" · %d loading", s.Loading)
	}
	if s.Errors > 0 {
		counts += " · " + errorStyle.Render(fmt.Sprintf("%d error", s.Errors))
	}
	if s.AllMuted {
		counts += " · muted"
	}
	return titleStyle.Render(m.title) + "  " + counts + "\n"
}

// renderStations renders one line per station
func (m Model) renderStations() string {
	if len(m.snap.Rows) == 0 {
		return mutedStyle.Render("No stations") + "\n"
	}

	nameWidth := 12
	for _, r := range m.snap.Rows {
		if n := len(displayName(r)); n > nameWidth {
			nameWidth = min(n, 28)
		}
	}

	var b strings.Builder
	for i, r := range m.snap.Rows {
		cursor := "  "
		if i == m.selected {
			cursor = "> "
		}

		focus := " "
		if r.State.IsFocused {
			focus = focusStyle.Render("◉")
		}

		status := fmt.Sprintf("%-8s", r.State.Status)
		if style, ok := statusStyles[r.State.Status]; ok {
			status = style.Render(status)
		}

		volume := fmt.Sprintf("[%s] %3d%%", renderBar(int(r.State.Volume*100), 100, 10), int(r.State.Volume*100+0.5))
		if r.State.Silent() {
			volume = mutedStyle.Render(volume)
		}

		line := fmt.Sprintf("%s%s %-*s %s %s  %s",
			cursor, focus, nameWidth, truncate(displayName(r), nameWidth), status, volume, renderSampling(r.Sampling))
		if i == m.selected {
			line = selectedStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")

		if r.State.Status == station.StatusError && r.State.LastError != "" {
			b.WriteString("      " + errorStyle.Render(truncate(r.State.LastError, max(m.width-10, 30))) + "\n")
		}
	}
	return b.String()
}

// renderSampling summarizes a station's capture counters
func renderSampling(s sampling.Stats) string {
	if s.Captured == 0 && !s.Active {
		return mutedStyle.Render("not sampling")
	}

	text := fmt.Sprintf("%d sent", s.Uploaded)
	if s.Failed > 0 {
		text += fmt.Sprintf(", %d failed", s.Failed)
	}
	if s.Dropped > 0 {
		text += fmt.Sprintf(", %d lost", s.Dropped)
	}
	if s.Bytes > 0 {
		text += " · " + humanize.Bytes(uint64(s.Bytes))
	}
	if !s.LastCapturedAt.IsZero() {
		text += " · " + humanize.Time(s.LastCapturedAt)
	}
	if !s.Active {
		text = mutedStyle.Render(text)
	}
	return text
}

// renderFooter renders the status line and keyboard shortcuts
func (m Model) renderFooter() string {
	status := ""
	switch {
	case m.pending != "":
		status = mutedStyle.Render(m.pending + "...")
	case m.isError:
		status = errorStyle.Render(m.message)
	case m.message != "":
		status = mutedStyle.Render(m.message)
	}

	allAction := "play all"
	if m.snap.Summary.AllPlaying {
		allAction = "pause all"
	}
	help := fmt.Sprintf("↑/↓:Select  space:Play/Pause  f:Focus  +/-:Volume  a:%s  s:Stop all  m:Mute  q:Quit", allAction)

	return status + "\n" + mutedStyle.Render(help)
}

func displayName(r Row) string {
	if r.Name != "" {
		return r.Name
	}
	return r.ID
}

// Utility functions
func renderBar(value, max, width int) string {
	if value < 0 {
		value = 0
	}
	if value > max {
		value = max
	}
	filled := (value * width) / max
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	if length <= 3 {
		return s[:length]
	}
	return s[:length-3] + "..."
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
