// Package ui provides consistent styling and terminal views for the omapdss CLI
package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Color palette
var (
	ColorPrimary   = lipgloss.Color("39")  // Bright blue
	ColorSecondary = lipgloss.Color("205") // Pink/magenta
	ColorSuccess   = lipgloss.Color("82")  // Green
	ColorWarning   = lipgloss.Color("214") // Orange
	ColorError     = lipgloss.Color("196") // Red
	ColorInfo      = lipgloss.Color("86")  // Cyan

	ColorText   = lipgloss.Color("252") // Light gray
	ColorSubtle = lipgloss.Color("241") // Medium gray
	ColorMuted  = lipgloss.Color("238") // Dark gray
)

var (
	TextStyle = lipgloss.NewStyle().
			Foreground(ColorText)

	SubtleStyle = lipgloss.NewStyle().
			Foreground(ColorSubtle)

	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary).
			MarginBottom(1)

	SubheaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorText)

	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary).
			Background(ColorMuted).
			Padding(0, 1)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(ColorSuccess)

	WarningStyle = lipgloss.NewStyle().
			Foreground(ColorWarning)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorError)

	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorSubtle).
			Padding(0, 1)

	SpinnerStyle = lipgloss.NewStyle().
			Foreground(ColorPrimary)

	ControlKeyStyle = lipgloss.NewStyle().
			Foreground(ColorSecondary).
			Bold(true)
)

// Overlay state indicators
var (
	BoundIndicator   = lipgloss.NewStyle().Foreground(ColorSuccess).Render("●")
	StagedIndicator  = lipgloss.NewStyle().Foreground(ColorWarning).Render("◐")
	UnboundIndicator = lipgloss.NewStyle().Foreground(ColorSubtle).Render("○")
)

// SpinnerDot frames for the watch view
var SpinnerDot = []string{"⣾", "⣽", "⣻", "⢿", "⡿", "⣟", "⣯", "⣷"}

const (
	IconSuccess = "✓"
	IconError   = "✗"
	IconWarning = "!"
	IconArrow   = "→"
)

// FormatControl formats a key binding for help lines
func FormatControl(key, desc string) string {
	return ControlKeyStyle.Render(key) + SubtleStyle.Render(" - "+desc)
}

// StateIndicator maps an overlay state name to its indicator
func StateIndicator(state string) string {
	switch state {
	case "bound":
		return BoundIndicator
	case "pending-bind", "pending-unbind":
		return StagedIndicator
	default:
		return UnboundIndicator
	}
}

// FormatResult renders a one-line success or failure message
func FormatResult(ok bool, msg string) string {
	if ok {
		return SuccessStyle.Render(IconSuccess + " " + msg)
	}
	return ErrorStyle.Render(IconError + " " + msg)
}

// FormatWarning renders a warning line
func FormatWarning(msg string) string {
	return WarningStyle.Render(IconWarning + " " + msg)
}

// FormatKeyValue renders an aligned "key: value" line
func FormatKeyValue(key string, value interface{}) string {
	return SubtleStyle.Render(fmt.Sprintf("%-12s", key+":")) + " " + TextStyle.Render(fmt.Sprint(value))
}

// CreateSeparator returns a horizontal rule of the given width
func CreateSeparator(width int) string {
	if width <= 0 {
		width = 40
	}
	return SubtleStyle.Render(strings.Repeat("─", width))
}
