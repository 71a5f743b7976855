package ui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bnema/omapdss/internal/driver"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

func newTable(headers []string, rows [][]string, cell func(row, col int) lipgloss.Style) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(ColorSubtle)).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return lipgloss.NewStyle().
					Foreground(ColorPrimary).
					Bold(true).
					Padding(0, 1)
			case col == 0:
				return lipgloss.NewStyle().
					Foreground(ColorInfo).
					Bold(true).
					Padding(0, 1)
			}
			if cell != nil {
				return cell(row, col).Padding(0, 1)
			}
			return lipgloss.NewStyle().
				Foreground(ColorText).
				Padding(0, 1)
		}).
		Headers(headers...).
		Rows(rows...)
}

func fbString(fb int) string {
	if fb < 0 {
		return "-"
	}
	return "fb" + strconv.Itoa(fb)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// OverlayTable renders the overlay pool
func OverlayTable(overlays []driver.OverlayStatus) string {
	rows := make([][]string, 0, len(overlays))
	for _, ov := range overlays {
		staged := "-"
		if ov.StagedManager != "" {
			staged = fbString(ov.StagedFramebuffer) + " " + IconArrow + " " + ov.StagedManager
		}
		rows = append(rows, []string{
			strconv.Itoa(ov.Index),
			StateIndicator(ov.State) + " " + ov.State,
			fbString(ov.Framebuffer),
			orDash(ov.Manager),
			staged,
		})
	}

	return newTable([]string{"OVERLAY", "STATE", "FB", "MANAGER", "STAGED"}, rows, func(row, col int) lipgloss.Style {
		if col == 4 && rows[row][4] != "-" {
			return lipgloss.NewStyle().Foreground(ColorWarning)
		}
		return lipgloss.NewStyle().Foreground(ColorText)
	}).String()
}

// ManagerTable renders the overlay managers and the display each drives
func ManagerTable(managers []driver.ManagerStatus) string {
	rows := make([][]string, 0, len(managers))
	for _, m := range managers {
		rows = append(rows, []string{strconv.Itoa(m.Index), m.Name, orDash(m.Display)})
	}
	return newTable([]string{"MANAGER", "NAME", "DISPLAY"}, rows, nil).String()
}

// DisplayTable renders the display outputs
func DisplayTable(displays []driver.DisplayStatus) string {
	rows := make([][]string, 0, len(displays))
	for _, d := range displays {
		connected := "no"
		if d.Connected {
			connected = "yes"
		}
		mode := orDash(d.NativeMode)
		if d.Refresh > 0 {
			mode = fmt.Sprintf("%s@%.1f", d.NativeMode, d.Refresh)
		}
		rows = append(rows, []string{strconv.Itoa(d.Index), d.Name, connected, d.Power, mode})
	}

	return newTable([]string{"DISPLAY", "NAME", "CONNECTED", "POWER", "MODE"}, rows, func(row, col int) lipgloss.Style {
		switch {
		case col == 2 && rows[row][2] == "yes":
			return lipgloss.NewStyle().Foreground(ColorSuccess).Bold(true)
		case col == 3 && rows[row][3] != "on":
			return lipgloss.NewStyle().Foreground(ColorSubtle)
		}
		return lipgloss.NewStyle().Foreground(ColorText)
	}).String()
}

// ScreenSummary renders the framebuffer geometry
func ScreenSummary(s driver.Status) string {
	lines := []string{
		FormatKeyValue("device", s.FBID),
		FormatKeyValue("controller", s.Controller),
		FormatKeyValue("mode", s.Screen.Mode),
		FormatKeyValue("virtual", fmt.Sprintf("%dx%d", s.Screen.VirtualWidth, s.Screen.VirtualHeight)),
		FormatKeyValue("depth", fmt.Sprintf("%d bpp", s.Screen.BitsPerPixel)),
		FormatKeyValue("stride", fmt.Sprintf("%d px (%d bytes)", s.Screen.Stride, s.Screen.LineLength)),
	}
	if s.Simulated {
		lines = append(lines, FormatWarning("simulated device"))
	}
	return strings.Join(lines, "\n")
}

// RenderStatus renders a full status snapshot
func RenderStatus(s driver.Status) string {
	var b strings.Builder

	b.WriteString(HeaderStyle.Render("omapdss"))
	b.WriteString("\n")
	b.WriteString(ScreenSummary(s))
	b.WriteString("\n\n")

	b.WriteString(SubheaderStyle.Render(fmt.Sprintf("Overlays (%d framebuffers)", s.Framebuffers)))
	b.WriteString("\n")
	b.WriteString(OverlayTable(s.Overlays))
	b.WriteString("\n\n")

	b.WriteString(SubheaderStyle.Render("Managers"))
	b.WriteString("\n")
	b.WriteString(ManagerTable(s.Managers))
	b.WriteString("\n\n")

	b.WriteString(SubheaderStyle.Render("Displays"))
	b.WriteString("\n")
	b.WriteString(DisplayTable(s.Displays))

	if s.Dirty {
		b.WriteString("\n\n")
		b.WriteString(FormatWarning("pending changes, run 'omapdss apply'"))
	}
	return b.String()
}

// RenderReport renders the outcome of an apply
func RenderReport(r *driver.Report) string {
	if r == nil || len(r.Results) == 0 {
		return SubtleStyle.Render("Nothing to apply")
	}

	var lines []string
	for _, res := range r.Results {
		verb := "released"
		if res.Bound {
			verb = "bound"
		}
		lines = append(lines, FormatResult(len(res.Errors) == 0, fmt.Sprintf("overlay%d %s", res.Overlay, verb)))
		for _, e := range res.Errors {
			lines = append(lines, "  "+ErrorStyle.Render(e))
		}
		for _, w := range res.Warnings {
			lines = append(lines, "  "+FormatWarning(w))
		}
	}
	lines = append(lines, SubtleStyle.Render(fmt.Sprintf("%d sysfs writes", r.Operations)))
	return strings.Join(lines, "\n")
}

// RenderPlan renders the pending operations of a plan
func RenderPlan(ops []string) string {
	if len(ops) == 0 {
		return SubtleStyle.Render("Nothing to apply")
	}
	lines := make([]string, 0, len(ops))
	for i, op := range ops {
		lines = append(lines, SubtleStyle.Render(fmt.Sprintf("%3d ", i+1))+TextStyle.Render(op))
	}
	return strings.Join(lines, "\n")
}
