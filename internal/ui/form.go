package ui

import (
	"fmt"

	"github.com/bnema/omapdss/internal/driver"
	"github.com/charmbracelet/huh"
)

// ConnectChoice is the outcome of the connect form
type ConnectChoice struct {
	Framebuffer int
	Overlay     int // -1 picks the first free overlay
	Display     string
	Apply       bool
}

// FramebufferOptions lists fb0..fbN-1
func FramebufferOptions(st driver.Status) []huh.Option[int] {
	opts := make([]huh.Option[int], 0, st.Framebuffers)
	for i := 0; i < st.Framebuffers; i++ {
		opts = append(opts, huh.NewOption(fbString(i), i))
	}
	return opts
}

// OverlayOptions lists the overlays, auto first
func OverlayOptions(st driver.Status) []huh.Option[int] {
	opts := []huh.Option[int]{huh.NewOption("first free", -1)}
	for _, ov := range st.Overlays {
		label := fmt.Sprintf("overlay%d (%s)", ov.Index, ov.State)
		opts = append(opts, huh.NewOption(label, ov.Index))
	}
	return opts
}

// DisplayOptions lists the displays reachable through a manager
func DisplayOptions(st driver.Status) []huh.Option[string] {
	var opts []huh.Option[string]
	for _, m := range st.Managers {
		if m.Display == "" {
			continue
		}
		label := m.Display + " via " + m.Name
		opts = append(opts, huh.NewOption(label, m.Display))
	}
	return opts
}

// NewConnectForm builds the interactive connect form writing into choice
func NewConnectForm(st driver.Status, choice *ConnectChoice) (*huh.Form, error) {
	displays := DisplayOptions(st)
	if len(displays) == 0 {
		return nil, fmt.Errorf("no display is attached to a manager")
	}
	if st.Framebuffers == 0 {
		return nil, fmt.Errorf("no framebuffers")
	}

	choice.Overlay = -1
	choice.Apply = true

	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Display").
				Description("Choose the display to show the framebuffer on").
				Options(displays...).
				Value(&choice.Display),
			huh.NewSelect[int]().
				Title("Framebuffer").
				Options(FramebufferOptions(st)...).
				Value(&choice.Framebuffer),
			huh.NewSelect[int]().
				Title("Overlay").
				Options(OverlayOptions(st)...).
				Value(&choice.Overlay),
			huh.NewConfirm().
				Title("Apply now?").
				Value(&choice.Apply),
		),
	), nil
}

// SelectConnect runs the connect form
func SelectConnect(st driver.Status) (ConnectChoice, error) {
	var choice ConnectChoice
	form, err := NewConnectForm(st, &choice)
	if err != nil {
		return choice, err
	}
	if err := form.Run(); err != nil {
		return choice, fmt.Errorf("connect cancelled: %w", err)
	}
	return choice, nil
}
