// Package output drives one DSS display. Mode and power changes are staged on
// the overlay pool and made real by applying it.
package output

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bnema/omapdss/internal/pool"
	"github.com/bnema/omapdss/internal/sysfs"
	"github.com/bnema/omapdss/internal/timing"
	"github.com/charmbracelet/log"
)

// ErrNoDisplay is returned by Probe when display<N> does not exist
var ErrNoDisplay = errors.New("no such display")

// OverlayPool is the part of the pool an output uses
type OverlayPool interface {
	FreeOverlay() (int, error)
	Connect(fb, overlay int, display string) error
	Disconnect(display string) error
	IsDisplayConnected(display string) bool
	OverlayForDisplay(display string) (int, bool)
	Restore(display string) error
	Apply() (*pool.ApplyReport, error)
}

// Status is the result of Detect
type Status int

const (
	Disconnected Status = iota
	Connected
)

func (s Status) String() string {
	if s == Connected {
		return "connected"
	}
	return "disconnected"
}

// Power is a DPMS level
type Power int

const (
	PowerOn Power = iota
	PowerStandby
	PowerSuspend
	PowerOff
)

func (p Power) String() string {
	switch p {
	case PowerOn:
		return "on"
	case PowerStandby:
		return "standby"
	case PowerSuspend:
		return "suspend"
	case PowerOff:
		return "off"
	}
	return fmt.Sprintf("power(%d)", int(p))
}

// ParsePower parses on, off, standby or suspend
func ParsePower(s string) (Power, error) {
	switch strings.ToLower(s) {
	case "on":
		return PowerOn, nil
	case "standby":
		return PowerStandby, nil
	case "suspend":
		return PowerSuspend, nil
	case "off":
		return PowerOff, nil
	}
	return PowerOff, fmt.Errorf("unknown power level %q", s)
}

// Output is one display<N> object
type Output struct {
	index   int
	name    string
	timings string
	power   Power

	attrs sysfs.Accessor
	pool  OverlayPool
	log   *log.Logger
}

// Probe reads display<index>. The initial timings are cached; a display
// without readable timings is reported as disconnected.
func Probe(attrs sysfs.Accessor, p OverlayPool, index int, logger *log.Logger) (*Output, error) {
	name, err := attrs.Read(sysfs.KindDisplay, index, sysfs.EntryName)
	if err != nil || name == "" {
		return nil, fmt.Errorf("%w: display%d", ErrNoDisplay, index)
	}

	o := &Output{
		index: index,
		name:  name,
		power: PowerOff,
		attrs: attrs,
		pool:  p,
		log:   logger.With("display", name),
	}

	timings, err := attrs.Read(sysfs.KindDisplay, index, sysfs.EntryTimings)
	if err != nil {
		o.log.Warn("Failed to read initial timings", "err", err)
	}
	o.timings = timings

	if enabled, err := attrs.Read(sysfs.KindDisplay, index, sysfs.EntryEnabled); err == nil && enabled == "1" {
		o.power = PowerOn
	}

	return o, nil
}

// ProbeAll probes display0 up to max-1, skipping missing indices
func ProbeAll(attrs sysfs.Accessor, p OverlayPool, max int, logger *log.Logger) []*Output {
	var outputs []*Output
	for i := 0; i < max; i++ {
		o, err := Probe(attrs, p, i, logger)
		if err != nil {
			continue
		}
		logger.Debug("Found display", "index", i, "name", o.name, "timings", o.timings)
		outputs = append(outputs, o)
	}
	return outputs
}

func (o *Output) Index() int { return o.index }
func (o *Output) Name() string { return o.name }
func (o *Output) Timings() string { return o.timings }
func (o *Output) Power() Power { return o.power }

// Detect reports a display as connected when it has timings
func (o *Output) Detect() Status {
	if o.timings == "" {
		return Disconnected
	}
	return Connected
}

// Connected reports whether the display has an applied overlay binding
func (o *Output) Connected() bool {
	return o.pool.IsDisplayConnected(o.name)
}

// Modes returns the native mode, the only one a DSS display advertises
func (o *Output) Modes() []timing.Mode {
	if o.timings == "" {
		return nil
	}
	m, err := timing.ParseTimings(o.timings)
	if err != nil {
		o.log.Warn("Unparsable timings", "timings", o.timings, "err", err)
		return nil
	}
	m.Preferred = true
	return []timing.Mode{m}
}

// ValidateMode accepts any well-formed mode
func (o *Output) ValidateMode(m timing.Mode) error {
	return m.Validate()
}

// PrepareChangeMode stages the release of the display's overlay
func (o *Output) PrepareChangeMode() error {
	err := o.pool.Disconnect(o.name)
	if errors.Is(err, pool.ErrNoOverlayForDisplay) {
		return nil
	}
	return err
}

// SetMode stages a fresh overlay for the display on framebuffer 0 and writes
// the new timings.
func (o *Output) SetMode(m timing.Mode) error {
	if err := o.ValidateMode(m); err != nil {
		return err
	}

	overlay, err := o.pool.FreeOverlay()
	if err != nil {
		return err
	}
	if err := o.pool.Connect(0, overlay, o.name); err != nil {
		return err
	}

	timings := m.Timings()
	if err := o.attrs.Write(sysfs.KindDisplay, o.index, sysfs.EntryTimings, timings); err != nil {
		return fmt.Errorf("failed to write timings: %w", err)
	}
	o.timings = timings

	o.log.Info("Mode set", "mode", m.Name(), "overlay", overlay)
	return nil
}

// AbortChangeMode drops what PrepareChangeMode and SetMode staged, leaving
// the display on its applied binding.
func (o *Output) AbortChangeMode() error {
	return o.pool.Restore(o.name)
}

// CommitChangeMode powers the display on, applying the pool
func (o *Output) CommitChangeMode() (*pool.ApplyReport, error) {
	return o.DPMS(PowerOn)
}

// DPMS changes the display power. Standby and suspend act as off.
func (o *Output) DPMS(level Power) (*pool.ApplyReport, error) {
	if level == PowerOn {
		return o.powerOn()
	}
	return o.powerOff(level)
}

// powerOn takes an overlay before touching the display, so a display that
// cannot get one stays off.
func (o *Output) powerOn() (*pool.ApplyReport, error) {
	_, staged := o.pool.OverlayForDisplay(o.name)
	if !staged {
		overlay, err := o.pool.FreeOverlay()
		if err != nil {
			return nil, err
		}
		if err := o.pool.Connect(0, overlay, o.name); err != nil {
			return nil, err
		}
	}

	if err := o.attrs.Write(sysfs.KindDisplay, o.index, sysfs.EntryEnabled, "1"); err != nil {
		if !staged {
			if rerr := o.pool.Restore(o.name); rerr != nil {
				o.log.Warn("Failed to drop staged overlay", "err", rerr)
			}
		}
		return nil, fmt.Errorf("failed to enable display: %w", err)
	}
	o.power = PowerOn

	report, err := o.pool.Apply()
	if err != nil && !o.pool.IsDisplayConnected(o.name) {
		// The overlay never came up; leave the display dark
		if derr := o.attrs.Write(sysfs.KindDisplay, o.index, sysfs.EntryEnabled, "0"); derr != nil {
			o.log.Warn("Failed to disable display", "err", derr)
		} else {
			o.power = PowerOff
		}
	}
	return report, err
}

func (o *Output) powerOff(level Power) (*pool.ApplyReport, error) {
	if err := o.attrs.Write(sysfs.KindDisplay, o.index, sysfs.EntryEnabled, "0"); err != nil {
		return nil, fmt.Errorf("failed to disable display: %w", err)
	}
	o.power = level

	if _, staged := o.pool.OverlayForDisplay(o.name); staged {
		if err := o.pool.Disconnect(o.name); err != nil {
			return nil, err
		}
	}

	return o.pool.Apply()
}
