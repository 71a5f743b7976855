package pool

import (
	"fmt"
	"strings"
)

// managerForDisplay returns the index of the manager driving display, or -1
func (p *Pool) managerForDisplay(display string) int {
	if display == "" {
		return -1
	}
	for _, m := range p.managers {
		if m.Display == "" {
			continue
		}
		switch p.match {
		case MatchPrefix:
			if strings.HasPrefix(m.Display, display) {
				return m.Index
			}
		default:
			if m.Display == display {
				return m.Index
			}
		}
	}
	return -1
}

// overlayForManager does a reverse lookup on the staged table. If several
// overlays point at the manager the highest index wins.
func (p *Pool) overlayForManager(manager int) int {
	overlay := -1
	for i, s := range p.slots {
		if s.staged != nil && s.staged.Manager == manager {
			overlay = i
		}
	}
	return overlay
}

// ManagerForDisplay resolves the manager bound to a display name
func (p *Pool) ManagerForDisplay(display string) (Manager, error) {
	idx := p.managerForDisplay(display)
	if idx < 0 {
		return Manager{}, fmt.Errorf("%w %q", ErrNoSuchManager, display)
	}
	return p.managers[idx], nil
}

// FreeOverlay returns the lowest overlay with no manager staged. It does not
// reserve the overlay.
func (p *Pool) FreeOverlay() (int, error) {
	for i, s := range p.slots {
		if s.staged == nil {
			return i, nil
		}
	}
	p.log.Warn("No free overlays", "overlays", len(p.slots))
	return -1, ErrNoOverlaysFree
}

// Connect stages the framebuffer -> overlay -> display connection. Nothing is
// written to the device until Apply.
func (p *Pool) Connect(fb, overlay int, display string) error {
	manager := p.managerForDisplay(display)
	if manager < 0 {
		return fmt.Errorf("%w %q", ErrNoSuchManager, display)
	}
	if overlay < 0 || overlay >= len(p.slots) {
		return fmt.Errorf("%w: %d (have %d)", ErrInvalidOverlay, overlay, len(p.slots))
	}
	if fb < 0 || fb >= p.framebuffers {
		return fmt.Errorf("%w: %d (have %d)", ErrInvalidFramebuffer, fb, p.framebuffers)
	}

	if other := p.overlayForManager(manager); other >= 0 && other != overlay {
		p.log.Warn("Manager already has an overlay staged", "manager", manager, "overlay", other, "new", overlay)
	}

	s := &p.slots[overlay]
	s.staged = &Binding{Framebuffer: fb, Manager: manager}
	s.dirty = true

	p.log.Debug("Staged connection", "fb", fb, "overlay", overlay, "manager", manager, "display", display)
	return nil
}

// Disconnect stages the release of the overlay assigned to display
func (p *Pool) Disconnect(display string) error {
	manager := p.managerForDisplay(display)
	if manager < 0 {
		return fmt.Errorf("%w %q", ErrNoSuchManager, display)
	}

	overlay := p.overlayForManager(manager)
	if overlay < 0 {
		return fmt.Errorf("%w %q", ErrNoOverlayForDisplay, display)
	}

	s := &p.slots[overlay]
	if s.committed != nil && s.committed.Manager != manager {
		// Re-targeted from a display that still owns it on the device
		s.staged = copyBinding(s.committed)
		s.dirty = false
		p.log.Debug("Dropped staged re-target", "overlay", overlay, "manager", manager, "display", display)
		return nil
	}

	s.staged = nil
	// An overlay that never reached the device has nothing to tear down
	s.dirty = s.committed != nil

	p.log.Debug("Staged disconnection", "overlay", overlay, "manager", manager, "display", display)
	return nil
}

// Restore discards the staged changes touching display's manager, putting
// each affected overlay back to its committed binding.
func (p *Pool) Restore(display string) error {
	manager := p.managerForDisplay(display)
	if manager < 0 {
		return fmt.Errorf("%w %q", ErrNoSuchManager, display)
	}

	for i := range p.slots {
		s := &p.slots[i]
		if !s.dirty {
			continue
		}
		staged := s.staged != nil && s.staged.Manager == manager
		committed := s.committed != nil && s.committed.Manager == manager
		if !staged && !committed {
			continue
		}
		s.staged = copyBinding(s.committed)
		s.dirty = false
		p.log.Debug("Restored overlay", "overlay", i, "manager", manager, "display", display)
	}
	return nil
}

// IsDisplayConnected reports whether display has an applied binding with both
// a framebuffer and a manager.
func (p *Pool) IsDisplayConnected(display string) bool {
	manager := p.managerForDisplay(display)
	if manager < 0 {
		return false
	}

	overlay := -1
	for i, s := range p.slots {
		if s.committed != nil && s.committed.Manager == manager {
			overlay = i
		}
	}
	if overlay < 0 {
		return false
	}

	// Pending teardowns are still live on the device until Apply
	b := p.slots[overlay].committed
	return b.Framebuffer >= 0 && b.Manager >= 0
}

// OverlayForDisplay returns the overlay staged for display, if any
func (p *Pool) OverlayForDisplay(display string) (int, bool) {
	manager := p.managerForDisplay(display)
	if manager < 0 {
		return -1, false
	}
	overlay := p.overlayForManager(manager)
	return overlay, overlay >= 0
}
