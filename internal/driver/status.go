package driver

import (
	"github.com/bnema/omapdss/internal/output"
	"github.com/bnema/omapdss/internal/pool"
)

// Status is a snapshot of the driver state
type Status struct {
	FBID         string          `json:"fb_id"`
	Controller   string          `json:"controller"`
	Simulated    bool            `json:"simulated"`
	Framebuffers int             `json:"framebuffers"`
	Dirty        bool            `json:"dirty"`
	Overlays     []OverlayStatus `json:"overlays"`
	Managers     []ManagerStatus `json:"managers"`
	Displays     []DisplayStatus `json:"displays"`
	Screen       ScreenStatus    `json:"screen"`
}

// OverlayStatus describes one overlay. Framebuffers are -1 and managers empty
// when unset.
type OverlayStatus struct {
	Index             int    `json:"index"`
	State             string `json:"state"`
	Framebuffer       int    `json:"framebuffer"`
	Manager           string `json:"manager"`
	StagedFramebuffer int    `json:"staged_framebuffer"`
	StagedManager     string `json:"staged_manager"`
}

type ManagerStatus struct {
	Index   int    `json:"index"`
	Name    string `json:"name"`
	Display string `json:"display"`
}

type DisplayStatus struct {
	Index      int     `json:"index"`
	Name       string  `json:"name"`
	Detected   bool    `json:"detected"`
	Connected  bool    `json:"connected"`
	Power      string  `json:"power"`
	Timings    string  `json:"timings"`
	NativeMode string  `json:"native_mode"`
	Refresh    float64 `json:"refresh"`
}

type ScreenStatus struct {
	Width         int    `json:"width"`
	Height        int    `json:"height"`
	VirtualWidth  int    `json:"virtual_width"`
	VirtualHeight int    `json:"virtual_height"`
	BitsPerPixel  int    `json:"bits_per_pixel"`
	LineLength    int    `json:"line_length"`
	Stride        int    `json:"stride"`
	Mode          string `json:"mode"`
}

// Report is an apply report in a transportable form
type Report struct {
	Operations int            `json:"operations"`
	Results    []ResultReport `json:"results"`
}

type ResultReport struct {
	Overlay  int      `json:"overlay"`
	Bound    bool     `json:"bound"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// OK reports whether every overlay applied cleanly
func (r *Report) OK() bool {
	for _, res := range r.Results {
		if len(res.Errors) > 0 {
			return false
		}
	}
	return true
}

// ReportOf converts a pool report, nil giving nil
func ReportOf(r *pool.ApplyReport) *Report {
	if r == nil {
		return nil
	}
	out := &Report{Operations: r.Operations}
	for _, res := range r.Results {
		rr := ResultReport{
			Overlay: res.Overlay,
			Bound:   res.Binding != nil && res.OK(),
		}
		for _, err := range res.Errors {
			rr.Errors = append(rr.Errors, err.Error())
		}
		for _, err := range res.Warnings {
			rr.Warnings = append(rr.Warnings, err.Error())
		}
		out.Results = append(out.Results, rr)
	}
	return out
}

func (d *Driver) status() Status {
	st := Status{
		FBID:         d.fbID,
		Controller:   d.controller,
		Simulated:    d.opts.Simulate,
		Framebuffers: d.pool.Framebuffers(),
		Dirty:        d.pool.Dirty(),
	}

	managers := d.pool.Managers()
	managerName := func(b *pool.Binding) string {
		if b == nil || b.Manager < 0 || b.Manager >= len(managers) {
			return ""
		}
		return managers[b.Manager].Name
	}
	framebuffer := func(b *pool.Binding) int {
		if b == nil {
			return -1
		}
		return b.Framebuffer
	}

	for _, ov := range d.pool.Snapshot() {
		st.Overlays = append(st.Overlays, OverlayStatus{
			Index:             ov.Index,
			State:             ov.State.String(),
			Framebuffer:       framebuffer(ov.Committed),
			Manager:           managerName(ov.Committed),
			StagedFramebuffer: framebuffer(ov.Staged),
			StagedManager:     managerName(ov.Staged),
		})
	}

	for _, m := range managers {
		st.Managers = append(st.Managers, ManagerStatus{Index: m.Index, Name: m.Name, Display: m.Display})
	}

	for _, o := range d.outputs {
		ds := DisplayStatus{
			Index:     o.Index(),
			Name:      o.Name(),
			Detected:  o.Detect() == output.Connected,
			Connected: o.Connected(),
			Power:     o.Power().String(),
			Timings:   o.Timings(),
		}
		if modes := o.Modes(); len(modes) > 0 {
			ds.NativeMode = modes[0].Name()
			ds.Refresh = modes[0].RefreshRate()
		}
		st.Displays = append(st.Displays, ds)
	}

	g := d.screen.Geometry()
	st.Screen = ScreenStatus{
		Width:         g.Width,
		Height:        g.Height,
		VirtualWidth:  g.VirtualWidth,
		VirtualHeight: g.VirtualHeight,
		BitsPerPixel:  g.BitsPerPixel,
		LineLength:    g.LineLength,
		Stride:        g.Stride,
		Mode:          d.screen.Mode().String(),
	}
	return st
}
