package sysfs

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
)

// ManagerSpec describes one manager object of a Layout
type ManagerSpec struct {
	Name    string
	Display string
}

// DisplaySpec describes one display object of a Layout
type DisplaySpec struct {
	Name    string
	Timings string
	Enabled bool
}

// Layout describes a DSS device tree. It is used to build in-memory trees for
// tests and for the simulated device.
type Layout struct {
	Framebuffers int
	Overlays     int
	Managers     []ManagerSpec
	Displays     []DisplaySpec
	Controller   string
}

// OMAP4Layout mirrors a Blaze/4430SDP board: three framebuffers, four
// overlays and the lcd, 2lcd and tv managers driving lcd, 2lcd and hdmi.
func OMAP4Layout() Layout {
	return Layout{
		Framebuffers: 3,
		Overlays:     4,
		Managers: []ManagerSpec{
			{Name: "lcd", Display: "lcd"},
			{Name: "2lcd", Display: "2lcd"},
			{Name: "tv", Display: "hdmi"},
		},
		Displays: []DisplaySpec{
			{Name: "lcd", Timings: "153600,864/16/32/20,480/5/3/3", Enabled: true},
			{Name: "2lcd", Timings: "153600,864/16/32/20,480/5/3/3"},
			{Name: "hdmi", Timings: "74250,1280/110/220/40,720/5/20/5"},
		},
		Controller: "internal",
	}
}

// Populate writes the layout under the given roots
func (l Layout) Populate(fs afero.Fs, dssRoot, fbRoot string) error {
	if dssRoot == "" {
		dssRoot = DefaultDSSRoot
	}
	if fbRoot == "" {
		fbRoot = DefaultFBRoot
	}

	for i := 0; i < l.Framebuffers; i++ {
		dir := filepath.Join(fbRoot, fmt.Sprintf("fb%d", i))
		if err := writeAttrs(fs, dir, map[string]string{
			EntryOverlays: "",
			"size":        "0",
		}); err != nil {
			return err
		}
	}

	for i := 0; i < l.Overlays; i++ {
		dir := filepath.Join(dssRoot, fmt.Sprintf("overlay%d", i))
		name := "gfx"
		if i > 0 {
			name = fmt.Sprintf("vid%d", i)
		}
		if err := writeAttrs(fs, dir, map[string]string{
			EntryName:    name,
			EntryEnabled: "0",
			EntryManager: "",
		}); err != nil {
			return err
		}
	}

	for i, m := range l.Managers {
		dir := filepath.Join(dssRoot, fmt.Sprintf("manager%d", i))
		if err := writeAttrs(fs, dir, map[string]string{
			EntryName:    m.Name,
			EntryDisplay: m.Display,
		}); err != nil {
			return err
		}
	}

	for i, d := range l.Displays {
		dir := filepath.Join(dssRoot, fmt.Sprintf("display%d", i))
		enabled := "0"
		if d.Enabled {
			enabled = "1"
		}
		if err := writeAttrs(fs, dir, map[string]string{
			EntryName:    d.Name,
			EntryTimings: d.Timings,
			EntryEnabled: enabled,
		}); err != nil {
			return err
		}
	}

	if l.Controller != "" {
		dir := filepath.Join(filepath.Dir(fbRoot), "ctrl")
		if err := writeAttrs(fs, dir, map[string]string{EntryName: l.Controller}); err != nil {
			return err
		}
	}

	return nil
}

// NewMemory builds an in-memory tree from the layout and returns an accessor
// on it.
func NewMemory(l Layout) (*FS, error) {
	fs := afero.NewMemMapFs()
	if err := l.Populate(fs, DefaultDSSRoot, DefaultFBRoot); err != nil {
		return nil, err
	}
	return New(fs, DefaultDSSRoot, DefaultFBRoot), nil
}

func writeAttrs(fs afero.Fs, dir string, attrs map[string]string) error {
	if err := fs.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	for entry, value := range attrs {
		path := filepath.Join(dir, entry)
		if err := afero.WriteFile(fs, path, []byte(value+"\n"), 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
	}
	return nil
}
