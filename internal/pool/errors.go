package pool

import (
	"errors"
	"fmt"
)

var (
	// ErrNoSuchManager indicates no manager drives the named display
	ErrNoSuchManager = errors.New("no manager for display")

	// ErrNoOverlaysFree indicates every discovered overlay has a manager
	ErrNoOverlaysFree = errors.New("no free overlays")

	// ErrNoOverlayForDisplay indicates the display has no overlay assigned
	ErrNoOverlayForDisplay = errors.New("no overlay assigned to display")

	// ErrInvalidOverlay indicates an overlay index outside the discovered range
	ErrInvalidOverlay = errors.New("invalid overlay")

	// ErrInvalidFramebuffer indicates a framebuffer index outside the discovered range
	ErrInvalidFramebuffer = errors.New("invalid framebuffer")

	// ErrDiscoveryIncomplete indicates fewer objects were found than required
	ErrDiscoveryIncomplete = errors.New("discovery incomplete")
)

// OpError is a failed device operation during apply
type OpError struct {
	Op  Operation
	Err error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("overlay %d: %s: %v", e.Op.Overlay, e.Op, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}
