package pool

import (
	"fmt"

	"github.com/bnema/omapdss/internal/sysfs"
)

// Phase of an apply
type Phase int

const (
	PhaseTeardown Phase = iota
	PhaseSetup
)

func (p Phase) String() string {
	if p == PhaseSetup {
		return "setup"
	}
	return "teardown"
}

// Operation is a single attribute write of an apply
type Operation struct {
	Phase   Phase
	Overlay int // overlay the operation belongs to

	// Target attribute. Framebuffer operations leave Kind empty.
	Kind  sysfs.Kind
	Index int
	Entry string
	Value string

	// BestEffort failures are logged but do not count as apply failures
	BestEffort bool
}

// Framebuffer reports whether the operation targets a framebuffer object
func (o Operation) Framebuffer() bool {
	return o.Kind == ""
}

// Target renders the addressed attribute
func (o Operation) Target() string {
	if o.Framebuffer() {
		return fmt.Sprintf("fb%d/%s", o.Index, o.Entry)
	}
	return fmt.Sprintf("%s%d/%s", o.Kind, o.Index, o.Entry)
}

func (o Operation) String() string {
	return fmt.Sprintf("%s=%q", o.Target(), o.Value)
}

func (o Operation) apply(attrs sysfs.Accessor) error {
	if o.Framebuffer() {
		return attrs.WriteFramebuffer(o.Index, o.Entry, o.Value)
	}
	return attrs.Write(o.Kind, o.Index, o.Entry, o.Value)
}

// Plan is the ordered list of operations the next Apply performs. Every
// teardown operation comes before the first setup operation.
type Plan struct {
	Operations []Operation
}

// Empty reports whether applying the plan would touch the device
func (pl *Plan) Empty() bool {
	return len(pl.Operations) == 0
}

// Phase returns the operations of one phase, in order
func (pl *Plan) Phase(phase Phase) []Operation {
	var out []Operation
	for _, op := range pl.Operations {
		if op.Phase == phase {
			out = append(out, op)
		}
	}
	return out
}

func (pl *Plan) add(op Operation) {
	pl.Operations = append(pl.Operations, op)
}

// Plan computes the operations needed to realize the staged table
func (p *Pool) Plan() *Plan {
	plan := &Plan{}

	for i, s := range p.slots {
		if !s.dirty {
			continue
		}
		p.planTeardown(plan, i)
	}

	for i, s := range p.slots {
		if !s.dirty || s.staged == nil {
			continue
		}
		p.planSetup(plan, i)
	}

	return plan
}

func (p *Pool) planTeardown(plan *Plan, overlay int) {
	s := p.slots[overlay]

	plan.add(Operation{
		Phase: PhaseTeardown, Overlay: overlay,
		Kind: sysfs.KindOverlay, Index: overlay,
		Entry: sysfs.EntryEnabled, Value: "0",
	})

	// The hardware has no unbind primitive; clearing the manager is a hint
	plan.add(Operation{
		Phase: PhaseTeardown, Overlay: overlay,
		Kind: sysfs.KindOverlay, Index: overlay,
		Entry: sysfs.EntryManager, Value: "",
		BestEffort: true,
	})

	if s.committed == nil {
		return
	}

	fb := s.committed.Framebuffer
	plan.add(Operation{
		Phase: PhaseTeardown, Overlay: overlay,
		Index: fb, Entry: sysfs.EntryOverlays,
		Value: sysfs.FormatOverlayList(p.liveOverlays(fb)),
	})
}

func (p *Pool) planSetup(plan *Plan, overlay int) {
	b := p.slots[overlay].staged

	plan.add(Operation{
		Phase: PhaseSetup, Overlay: overlay,
		Kind: sysfs.KindOverlay, Index: overlay,
		Entry: sysfs.EntryManager, Value: p.managers[b.Manager].Name,
	})
	plan.add(Operation{
		Phase: PhaseSetup, Overlay: overlay,
		Index: b.Framebuffer, Entry: sysfs.EntryOverlays,
		Value: sysfs.FormatOverlayList(p.stagedOverlays(b.Framebuffer, nil)),
	})
	plan.add(Operation{
		Phase: PhaseSetup, Overlay: overlay,
		Kind: sysfs.KindOverlay, Index: overlay,
		Entry: sysfs.EntryEnabled, Value: "1",
	})
}

// liveOverlays lists the overlays that stay on fb through the teardown pass:
// committed to it and not being changed.
func (p *Pool) liveOverlays(fb int) []int {
	var out []int
	for i, s := range p.slots {
		if !s.dirty && s.committed != nil && s.committed.Framebuffer == fb {
			out = append(out, i)
		}
	}
	return out
}

// stagedOverlays lists every overlay whose staged binding reads from fb,
// leaving out the overlays in skip
func (p *Pool) stagedOverlays(fb int, skip map[int]bool) []int {
	var out []int
	for i, s := range p.slots {
		if s.staged != nil && s.staged.Framebuffer == fb && !skip[i] {
			out = append(out, i)
		}
	}
	return out
}
