// Package pool tracks the OMAP DSS overlays and their bindings to framebuffers
// and managers.
//
// Changes are staged with Connect and Disconnect and only reach the device
// when Apply runs. Apply tears down every changed binding before it sets up
// any new one, so a framebuffer overlay list or a manager is never claimed by
// two overlays at once.
//
// A Pool has no internal locking. All calls must come from one goroutine, or
// be serialized by the caller for the whole stage+apply cycle.
package pool

import (
	"fmt"
	"strings"

	"github.com/bnema/omapdss/internal/logger"
	"github.com/bnema/omapdss/internal/sysfs"
	"github.com/charmbracelet/log"
)

// Limits on the probing loops
const (
	DefaultMaxFramebuffers = 5
	DefaultMaxOverlays     = 10
	DefaultMaxManagers     = 10
)

// NameMatch selects how display names are compared against managers
type NameMatch string

const (
	// MatchExact requires the manager's display name to equal the request
	MatchExact NameMatch = "exact"
	// MatchPrefix accepts any manager whose display name starts with the
	// request, so "lcd" also matches "lcd2"
	MatchPrefix NameMatch = "prefix"
)

// ParseNameMatch validates a name match mode from configuration
func ParseNameMatch(s string) (NameMatch, error) {
	switch NameMatch(strings.ToLower(s)) {
	case "", MatchExact:
		return MatchExact, nil
	case MatchPrefix:
		return MatchPrefix, nil
	default:
		return "", fmt.Errorf("unknown name match mode %q (want exact or prefix)", s)
	}
}

// Options configure discovery
type Options struct {
	MaxFramebuffers int
	MaxOverlays     int
	MaxManagers     int

	// Minimum counts discovery must find
	ExpectFramebuffers int
	ExpectOverlays     int
	ExpectManagers     int

	NameMatch NameMatch
	Logger    *log.Logger
}

func (o *Options) setDefaults() {
	if o.MaxFramebuffers <= 0 {
		o.MaxFramebuffers = DefaultMaxFramebuffers
	}
	if o.MaxOverlays <= 0 {
		o.MaxOverlays = DefaultMaxOverlays
	}
	if o.MaxManagers <= 0 {
		o.MaxManagers = DefaultMaxManagers
	}
	if o.NameMatch == "" {
		o.NameMatch = MatchExact
	}
	if o.Logger == nil {
		o.Logger = logger.With("component", "pool")
	}
}

// Binding connects an overlay to a framebuffer and a manager
type Binding struct {
	Framebuffer int
	Manager     int
}

// Manager is a compositing manager discovered at startup
type Manager struct {
	Index   int
	Name    string // device name written into overlay<N>/manager
	Display string // name of the display the manager drives
}

// State is the lifecycle state of an overlay slot
type State int

const (
	Unbound State = iota
	PendingBind
	Bound
	PendingUnbind
)

func (s State) String() string {
	switch s {
	case Unbound:
		return "unbound"
	case PendingBind:
		return "pending-bind"
	case Bound:
		return "bound"
	case PendingUnbind:
		return "pending-unbind"
	default:
		return "unknown"
	}
}

// slot is the assignment record of one overlay. staged is what callers asked
// for, committed is what the device was last told.
type slot struct {
	staged    *Binding
	committed *Binding
	dirty     bool
}

func (s *slot) state() State {
	switch {
	case !s.dirty && s.committed != nil:
		return Bound
	case !s.dirty:
		return Unbound
	case s.staged != nil:
		return PendingBind
	default:
		return PendingUnbind
	}
}

// Overlay is a read-only view of an overlay slot
type Overlay struct {
	Index     int
	State     State
	Staged    *Binding
	Committed *Binding
	Dirty     bool
}

// Pool owns the overlay, framebuffer and manager tables
type Pool struct {
	attrs        sysfs.Accessor
	log          *log.Logger
	match        NameMatch
	framebuffers int
	slots        []slot
	managers     []Manager
}

// New probes the device tree and returns a pool with every overlay disabled
// and unbound.
func New(attrs sysfs.Accessor, opts Options) (*Pool, error) {
	opts.setDefaults()

	p := &Pool{
		attrs: attrs,
		log:   opts.Logger,
		match: opts.NameMatch,
	}

	p.probeFramebuffers(opts.MaxFramebuffers)
	p.probeOverlays(opts.MaxOverlays)
	p.probeManagers(opts.MaxManagers)

	p.log.Info("Discovered DSS objects",
		"framebuffers", p.framebuffers,
		"overlays", len(p.slots),
		"managers", len(p.managers))

	if err := p.checkDiscovery(opts); err != nil {
		return nil, err
	}

	return p, nil
}

func (p *Pool) probeFramebuffers(max int) {
	for i := 0; i < max; i++ {
		if !p.attrs.FramebufferExists(i) {
			break
		}
		p.framebuffers++

		if err := p.attrs.WriteFramebuffer(i, sysfs.EntryOverlays, ""); err != nil {
			p.log.Warn("Failed to reset framebuffer overlays", "fb", i, "err", err)
		}
	}
}

func (p *Pool) probeOverlays(max int) {
	for i := 0; i < max; i++ {
		if !p.attrs.Exists(sysfs.KindOverlay, i) {
			break
		}
		p.slots = append(p.slots, slot{})

		// Disabled overlays accept any configuration change
		if err := p.attrs.Write(sysfs.KindOverlay, i, sysfs.EntryEnabled, "0"); err != nil {
			p.log.Warn("Failed to disable overlay", "overlay", i, "err", err)
		}
		if err := p.attrs.Write(sysfs.KindOverlay, i, sysfs.EntryManager, ""); err != nil {
			p.log.Debug("Failed to clear overlay manager", "overlay", i, "err", err)
		}
	}
}

func (p *Pool) probeManagers(max int) {
	for i := 0; i < max; i++ {
		if !p.attrs.Exists(sysfs.KindManager, i) {
			break
		}

		m := Manager{Index: i}
		name, err := p.attrs.Read(sysfs.KindManager, i, sysfs.EntryName)
		if err != nil {
			p.log.Warn("Failed to read manager name", "manager", i, "err", err)
		}
		m.Name = name

		display, err := p.attrs.Read(sysfs.KindManager, i, sysfs.EntryDisplay)
		if err != nil {
			p.log.Debug("Manager has no display", "manager", i, "err", err)
		}
		m.Display = display

		p.managers = append(p.managers, m)
	}
}

func (p *Pool) checkDiscovery(opts Options) error {
	checks := []struct {
		what   string
		found  int
		expect int
	}{
		{"framebuffers", p.framebuffers, opts.ExpectFramebuffers},
		{"overlays", len(p.slots), opts.ExpectOverlays},
		{"managers", len(p.managers), opts.ExpectManagers},
	}

	for _, c := range checks {
		if c.found == 0 {
			return fmt.Errorf("%w: no %s found", ErrDiscoveryIncomplete, c.what)
		}
		if c.found < c.expect {
			return fmt.Errorf("%w: found %d %s, expected %d", ErrDiscoveryIncomplete, c.found, c.what, c.expect)
		}
	}
	return nil
}

// Framebuffers returns the number of discovered framebuffers
func (p *Pool) Framebuffers() int {
	return p.framebuffers
}

// Overlays returns the number of discovered overlays
func (p *Pool) Overlays() int {
	return len(p.slots)
}

// Managers returns the discovered managers
func (p *Pool) Managers() []Manager {
	out := make([]Manager, len(p.managers))
	copy(out, p.managers)
	return out
}

// Overlay returns a snapshot of one overlay slot
func (p *Pool) Overlay(index int) (Overlay, error) {
	if index < 0 || index >= len(p.slots) {
		return Overlay{}, fmt.Errorf("%w: %d", ErrInvalidOverlay, index)
	}
	s := p.slots[index]
	return Overlay{
		Index:     index,
		State:     s.state(),
		Staged:    copyBinding(s.staged),
		Committed: copyBinding(s.committed),
		Dirty:     s.dirty,
	}, nil
}

// Snapshot returns every overlay slot in index order
func (p *Pool) Snapshot() []Overlay {
	out := make([]Overlay, len(p.slots))
	for i := range p.slots {
		out[i], _ = p.Overlay(i)
	}
	return out
}

// Dirty reports whether any overlay has unapplied changes
func (p *Pool) Dirty() bool {
	for _, s := range p.slots {
		if s.dirty {
			return true
		}
	}
	return false
}

func copyBinding(b *Binding) *Binding {
	if b == nil {
		return nil
	}
	c := *b
	return &c
}
