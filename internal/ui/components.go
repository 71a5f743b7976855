package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// StatusBar is the header line of the watch view: a title on the left and the
// driver state on the right.
type StatusBar struct {
	Width int
	Title string
	// Mode is the current screen mode, shown once the driver answered
	Mode      string
	Reachable bool
	// Pending is set while the pool has staged changes
	Pending bool
	Updated time.Time

	spinner spinner.Model
}

func NewStatusBar(title string) *StatusBar {
	s := spinner.New()
	s.Spinner = spinner.Spinner{
		Frames: SpinnerDot,
		FPS:    time.Second / 10,
	}
	s.Style = SpinnerStyle

	return &StatusBar{Title: title, spinner: s}
}

// Init implements tea.Model
func (s *StatusBar) Init() tea.Cmd {
	return s.spinner.Tick
}

func (s *StatusBar) Update(msg tea.Msg) (*StatusBar, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		var cmd tea.Cmd
		s.spinner, cmd = s.spinner.Update(msg)
		return s, cmd
	case tea.WindowSizeMsg:
		s.Width = msg.Width
	}
	return s, nil
}

// State renders the right-hand side of the bar
func (s *StatusBar) State() string {
	switch {
	case s.Updated.IsZero():
		return s.spinner.View() + " " + SubtleStyle.Render("waiting for driver")
	case !s.Reachable:
		return UnboundIndicator + " " + ErrorStyle.Render("unreachable")
	case s.Pending:
		return StagedIndicator + " " + WarningStyle.Render(s.Mode+" (pending)")
	default:
		return BoundIndicator + " " + SuccessStyle.Render(s.Mode)
	}
}

func (s *StatusBar) View() string {
	title := TitleStyle.Render(s.Title)
	state := s.State()
	if !s.Updated.IsZero() {
		state += SubtleStyle.Render(fmt.Sprintf("  %s", s.Updated.Format("15:04:05")))
	}

	gap := s.Width - lipgloss.Width(title) - lipgloss.Width(state) - 4
	if gap < 1 {
		gap = 1
	}
	line := title + strings.Repeat(" ", gap) + state

	if s.Width <= 0 {
		return BoxStyle.Render(line)
	}
	return BoxStyle.Width(s.Width).Render(line)
}
