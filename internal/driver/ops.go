package driver

import (
	"context"
	"fmt"

	"github.com/bnema/omapdss/internal/modeset"
	"github.com/bnema/omapdss/internal/output"
	"github.com/bnema/omapdss/internal/pool"
	"github.com/bnema/omapdss/internal/timing"
)

// Status returns a snapshot of the pool, displays and screen
func (d *Driver) Status(ctx context.Context) (Status, error) {
	var st Status
	err := d.Do(ctx, func() error {
		st = d.status()
		return nil
	})
	return st, err
}

// FreeOverlay returns the first overlay with nothing staged
func (d *Driver) FreeOverlay(ctx context.Context) (int, error) {
	overlay := -1
	err := d.Do(ctx, func() error {
		var err error
		overlay, err = d.pool.FreeOverlay()
		return err
	})
	return overlay, err
}

// Connect stages a connection and, with apply set, applies the pool. A
// negative overlay selects the first free one.
func (d *Driver) Connect(ctx context.Context, fb, overlay int, display string, apply bool) (int, *Report, error) {
	var report *Report
	err := d.Do(ctx, func() error {
		if overlay < 0 {
			free, err := d.pool.FreeOverlay()
			if err != nil {
				return err
			}
			overlay = free
		}
		if err := d.pool.Connect(fb, overlay, display); err != nil {
			return err
		}
		if !apply {
			return nil
		}
		r, err := d.pool.Apply()
		report = ReportOf(r)
		return err
	})
	return overlay, report, err
}

// Disconnect stages the release of a display's overlay and, with apply set,
// applies the pool
func (d *Driver) Disconnect(ctx context.Context, display string, apply bool) (*Report, error) {
	var report *Report
	err := d.Do(ctx, func() error {
		if err := d.pool.Disconnect(display); err != nil {
			return err
		}
		if !apply {
			return nil
		}
		r, err := d.pool.Apply()
		report = ReportOf(r)
		return err
	})
	return report, err
}

// Apply writes every staged change to the device
func (d *Driver) Apply(ctx context.Context) (*Report, error) {
	var report *Report
	err := d.Do(ctx, func() error {
		r, err := d.pool.Apply()
		report = ReportOf(r)
		return err
	})
	return report, err
}

// Plan returns the writes the next Apply would perform
func (d *Driver) Plan(ctx context.Context) ([]string, error) {
	var ops []string
	err := d.Do(ctx, func() error {
		for _, op := range d.pool.Plan().Operations {
			ops = append(ops, fmt.Sprintf("%s %s", op.Phase, op))
		}
		return nil
	})
	return ops, err
}

// SetMode sets a mode on one display. A nil mode selects the display's native
// mode.
func (d *Driver) SetMode(ctx context.Context, display string, mode *timing.Mode) (modeset.Geometry, error) {
	var g modeset.Geometry
	err := d.Do(ctx, func() error {
		o, err := d.output(display)
		if err != nil {
			return err
		}

		m, err := pickMode(o, mode)
		if err != nil {
			return err
		}

		g, err = d.screen.SetMode(m, o)
		return err
	})
	return g, err
}

func pickMode(o *output.Output, mode *timing.Mode) (timing.Mode, error) {
	if mode != nil {
		return *mode, nil
	}
	modes := o.Modes()
	if len(modes) == 0 {
		return timing.Mode{}, fmt.Errorf("display %s has no native mode", o.Name())
	}
	return modes[0], nil
}

// DPMS changes the power level of one display
func (d *Driver) DPMS(ctx context.Context, display string, level output.Power) (*Report, error) {
	var report *Report
	err := d.Do(ctx, func() error {
		o, err := d.output(display)
		if err != nil {
			return err
		}
		r, err := o.DPMS(level)
		report = ReportOf(r)
		return err
	})
	return report, err
}

// Resize sets the virtual screen size used by the next mode set
func (d *Driver) Resize(ctx context.Context, width, height int) error {
	return d.Do(ctx, func() error {
		return d.screen.Resize(width, height)
	})
}

// Pool gives direct access to the pool. Only use it from inside Do or before
// Run starts.
func (d *Driver) Pool() *pool.Pool {
	return d.pool
}
