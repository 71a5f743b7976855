package pool

import (
	"github.com/bnema/omapdss/internal/sysfs"
	"go.uber.org/multierr"
)

// Result is the outcome of applying one dirty overlay
type Result struct {
	Overlay int
	// Binding is the binding that was set up, nil for a pure teardown
	Binding *Binding
	Errors  []error
	// Warnings are best-effort failures that did not affect the outcome
	Warnings []error
}

// OK reports whether every counted operation of the overlay succeeded
func (r Result) OK() bool {
	return len(r.Errors) == 0
}

// Err combines the overlay's errors
func (r Result) Err() error {
	return multierr.Combine(r.Errors...)
}

// ApplyReport collects the per-overlay results of an Apply
type ApplyReport struct {
	Results    []Result
	Operations int // operations attempted
}

// OK reports whether every overlay applied cleanly
func (r *ApplyReport) OK() bool {
	for _, res := range r.Results {
		if !res.OK() {
			return false
		}
	}
	return true
}

// Failed returns the results with errors
func (r *ApplyReport) Failed() []Result {
	var out []Result
	for _, res := range r.Results {
		if !res.OK() {
			out = append(out, res)
		}
	}
	return out
}

// Err combines every error of the apply, nil on full success
func (r *ApplyReport) Err() error {
	var err error
	for _, res := range r.Results {
		err = multierr.Append(err, res.Err())
	}
	return err
}

// Apply writes the staged table to the device. Device failures do not stop
// the pass; they are collected in the report and the combined error is
// returned. Dirty flags are cleared whatever the outcome, and an overlay
// whose setup failed is left unbound.
func (p *Pool) Apply() (*ApplyReport, error) {
	plan := p.Plan()
	report := &ApplyReport{}

	results := make(map[int]*Result)
	var order []int
	resultFor := func(overlay int) *Result {
		if r, ok := results[overlay]; ok {
			return r
		}
		r := &Result{Overlay: overlay, Binding: copyBinding(p.slots[overlay].staged)}
		results[overlay] = r
		order = append(order, overlay)
		return r
	}

	for i, s := range p.slots {
		if s.dirty {
			resultFor(i)
		}
	}

	setupFailed := make(map[int]bool)
	for _, op := range plan.Operations {
		res := resultFor(op.Overlay)

		if op.Phase == PhaseSetup && setupFailed[op.Overlay] {
			continue
		}
		// An earlier setup may have failed since the plan was computed
		if op.Phase == PhaseSetup && op.Framebuffer() {
			op.Value = sysfs.FormatOverlayList(p.stagedOverlays(op.Index, setupFailed))
		}

		if op.Phase == PhaseTeardown && op.Entry == sysfs.EntryEnabled {
			p.log.Debug("Disconnecting overlay", "overlay", op.Overlay)
		}
		if op.Phase == PhaseSetup && op.Entry == sysfs.EntryManager {
			b := p.slots[op.Overlay].staged
			p.log.Debug("Connecting overlay", "fb", b.Framebuffer, "overlay", op.Overlay, "manager", op.Value)
		}

		report.Operations++
		err := op.apply(p.attrs)
		if err == nil {
			continue
		}

		opErr := &OpError{Op: op, Err: err}
		if op.BestEffort {
			p.log.Debug("Best-effort write failed", "op", op.String(), "err", err)
			res.Warnings = append(res.Warnings, opErr)
			continue
		}

		p.log.Error("Overlay write failed", "overlay", op.Overlay, "phase", op.Phase, "op", op.String(), "err", err)
		res.Errors = append(res.Errors, opErr)
		if op.Phase == PhaseSetup {
			setupFailed[op.Overlay] = true
			report.Operations += p.rollbackSetup(op.Overlay, res, setupFailed)
		}
	}

	for _, i := range order {
		s := &p.slots[i]
		if s.staged != nil && !setupFailed[i] {
			s.committed = copyBinding(s.staged)
		} else {
			s.committed = nil
			s.staged = nil
		}
		s.dirty = false
		report.Results = append(report.Results, *results[i])
	}

	err := report.Err()
	if err != nil {
		p.log.Warn("Apply finished with errors", "failed", len(report.Failed()), "overlays", len(report.Results))
	}
	return report, err
}

// rollbackSetup returns an overlay whose setup failed to the unbound state:
// disabled, no manager, and off its framebuffer's list. Every write is best
// effort. It returns the number of operations attempted.
func (p *Pool) rollbackSetup(overlay int, res *Result, failed map[int]bool) int {
	fb := p.slots[overlay].staged.Framebuffer
	ops := []Operation{
		{
			Phase: PhaseSetup, Overlay: overlay,
			Kind: sysfs.KindOverlay, Index: overlay,
			Entry: sysfs.EntryEnabled, Value: "0",
			BestEffort: true,
		},
		{
			Phase: PhaseSetup, Overlay: overlay,
			Kind: sysfs.KindOverlay, Index: overlay,
			Entry: sysfs.EntryManager, Value: "",
			BestEffort: true,
		},
		{
			Phase: PhaseSetup, Overlay: overlay,
			Index: fb, Entry: sysfs.EntryOverlays,
			Value:      sysfs.FormatOverlayList(p.stagedOverlays(fb, failed)),
			BestEffort: true,
		},
	}

	p.log.Debug("Rolling back overlay setup", "overlay", overlay, "fb", fb)
	for _, op := range ops {
		if err := op.apply(p.attrs); err != nil {
			p.log.Debug("Best-effort write failed", "op", op.String(), "err", err)
			res.Warnings = append(res.Warnings, &OpError{Op: op, Err: err})
		}
	}
	return len(ops)
}
