package ui

import (
	"context"
	"time"

	"github.com/bnema/omapdss/internal/driver"
	tea "github.com/charmbracelet/bubbletea"
)

// FetchFunc returns the current driver status
type FetchFunc func(ctx context.Context) (driver.Status, error)

type statusMsg struct {
	status driver.Status
	err    error
}

type tickMsg time.Time

// WatchModel is a live view of the overlay pool
type WatchModel struct {
	fetch    FetchFunc
	interval time.Duration
	bar      *StatusBar
	status   *driver.Status
	err      error
	quitting bool
}

// NewWatchModel polls fetch every interval
func NewWatchModel(fetch FetchFunc, interval time.Duration) *WatchModel {
	if interval <= 0 {
		interval = time.Second
	}
	return &WatchModel{
		fetch:    fetch,
		interval: interval,
		bar:      NewStatusBar("omapdss watch"),
	}
}

func (m *WatchModel) poll() tea.Msg {
	ctx, cancel := context.WithTimeout(context.Background(), m.interval)
	defer cancel()
	st, err := m.fetch(ctx)
	return statusMsg{status: st, err: err}
}

func (m *WatchModel) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Init implements tea.Model
func (m *WatchModel) Init() tea.Cmd {
	return tea.Batch(m.bar.Init(), m.poll)
}

// Update implements tea.Model
func (m *WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "r":
			return m, m.poll
		}

	case statusMsg:
		m.bar.Updated = time.Now()
		m.err = msg.err
		m.bar.Reachable = msg.err == nil
		if msg.err == nil {
			st := msg.status
			m.status = &st
			m.bar.Mode = st.Screen.Mode
			m.bar.Pending = st.Dirty
		}
		return m, m.tick()

	case tickMsg:
		return m, m.poll
	}

	var cmd tea.Cmd
	m.bar, cmd = m.bar.Update(msg)
	return m, cmd
}

// View implements tea.Model
func (m *WatchModel) View() string {
	if m.quitting {
		return ""
	}

	view := m.bar.View() + "\n\n"
	switch {
	case m.err != nil:
		view += FormatResult(false, m.err.Error()) + "\n"
	case m.status != nil:
		view += OverlayTable(m.status.Overlays) + "\n" + DisplayTable(m.status.Displays) + "\n"
	}
	view += "\n" + FormatControl("r", "refresh") + "  " + FormatControl("q", "quit")
	return view
}

// Status returns the last fetched status, nil before the first poll
func (m *WatchModel) Status() *driver.Status {
	return m.status
}

// Err returns the last fetch error
func (m *WatchModel) Err() error {
	return m.err
}

// Watch runs the live view until the user quits
func Watch(fetch FetchFunc, interval time.Duration) error {
	p := tea.NewProgram(NewWatchModel(fetch, interval), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
