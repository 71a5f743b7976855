// Package modeset owns the framebuffer screen: its virtual size and the mode
// pushed to the device once the outputs are configured.
package modeset

import (
	"errors"
	"fmt"

	"github.com/bnema/omapdss/internal/fbdev"
	"github.com/bnema/omapdss/internal/pool"
	"github.com/bnema/omapdss/internal/timing"
	"github.com/charmbracelet/log"
	"go.uber.org/multierr"
)

const (
	DefaultMinSize = 8
	DefaultMaxSize = 2048
)

// ErrSizeOutOfRange is returned by Resize
var ErrSizeOutOfRange = errors.New("screen size out of range")

// Output is a display taking part in a mode set
type Output interface {
	Name() string
	PrepareChangeMode() error
	SetMode(m timing.Mode) error
	AbortChangeMode() error
	CommitChangeMode() (*pool.ApplyReport, error)
}

// Options configure a Screen
type Options struct {
	MinWidth, MinHeight int
	MaxWidth, MaxHeight int
	Logger              *log.Logger
}

func (o *Options) setDefaults() {
	if o.MinWidth <= 0 {
		o.MinWidth = DefaultMinSize
	}
	if o.MinHeight <= 0 {
		o.MinHeight = DefaultMinSize
	}
	if o.MaxWidth <= 0 {
		o.MaxWidth = DefaultMaxSize
	}
	if o.MaxHeight <= 0 {
		o.MaxHeight = DefaultMaxSize
	}
	if o.Logger == nil {
		o.Logger = log.Default()
	}
}

// Geometry is the negotiated framebuffer layout
type Geometry struct {
	Width, Height               int
	VirtualWidth, VirtualHeight int
	BitsPerPixel                int
	LineLength                  int // bytes
	Stride                      int // pixels
}

// Screen is the single framebuffer surface shared by every output
type Screen struct {
	dev  fbdev.Device
	opts Options
	log  *log.Logger

	// requested virtual size, zero until Resize
	width, height int

	geometry Geometry
	mode     timing.Mode
}

// New reads the current device state
func New(dev fbdev.Device, opts Options) (*Screen, error) {
	opts.setDefaults()
	s := &Screen{
		dev:  dev,
		opts: opts,
		log:  opts.Logger,
	}
	if err := s.refresh(); err != nil {
		return nil, err
	}
	return s, nil
}

// Limits returns the accepted size range
func (s *Screen) Limits() (minW, minH, maxW, maxH int) {
	return s.opts.MinWidth, s.opts.MinHeight, s.opts.MaxWidth, s.opts.MaxHeight
}

// Resize records the virtual size for the next mode set
func (s *Screen) Resize(width, height int) error {
	if width < s.opts.MinWidth || width > s.opts.MaxWidth ||
		height < s.opts.MinHeight || height > s.opts.MaxHeight {
		return fmt.Errorf("%w: %dx%d not within %dx%d..%dx%d", ErrSizeOutOfRange,
			width, height, s.opts.MinWidth, s.opts.MinHeight, s.opts.MaxWidth, s.opts.MaxHeight)
	}
	s.width, s.height = width, height
	s.log.Debug("Screen resized", "width", width, "height", height)
	return nil
}

// Geometry returns the geometry the device last settled on
func (s *Screen) Geometry() Geometry {
	return s.geometry
}

// Mode returns the current mode of the framebuffer
func (s *Screen) Mode() timing.Mode {
	return s.mode
}

// SetMode configures every output for m, then programs the framebuffer with
// the mode timing and the virtual size in one call. An output whose prepare
// or set step fails is rolled back and not committed. Output failures are
// collected; the framebuffer is left alone when outputs were given and none
// of them took the mode.
func (s *Screen) SetMode(m timing.Mode, outputs ...Output) (Geometry, error) {
	if err := m.Validate(); err != nil {
		return s.geometry, err
	}

	var errs error
	failed := make([]bool, len(outputs))
	for i, o := range outputs {
		if err := o.PrepareChangeMode(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: prepare: %w", o.Name(), err))
			failed[i] = true
		}
	}
	for i, o := range outputs {
		if failed[i] {
			continue
		}
		if err := o.SetMode(m); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: set mode: %w", o.Name(), err))
			failed[i] = true
		}
	}
	// Roll back before any commit applies the shared pool
	for i, o := range outputs {
		if !failed[i] {
			continue
		}
		if err := o.AbortChangeMode(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: abort: %w", o.Name(), err))
		}
	}

	configured := 0
	for i, o := range outputs {
		if failed[i] {
			continue
		}
		if _, err := o.CommitChangeMode(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: commit: %w", o.Name(), err))
			continue
		}
		configured++
	}

	if len(outputs) > 0 && configured == 0 {
		s.log.Error("No output took the mode", "mode", m.Name(), "outputs", len(outputs))
		return s.geometry, errs
	}

	v, err := s.dev.VarScreenInfo()
	if err != nil {
		return s.geometry, multierr.Append(errs, err)
	}
	v.SetMode(m)
	v.XResVirtual, v.YResVirtual = s.virtualSize(m)
	v.XOffset, v.YOffset = 0, 0

	if err := s.dev.PutVarScreenInfo(&v); err != nil {
		s.log.Error("Mode set failed", "mode", m.Name(), "err", err)
		return s.geometry, multierr.Append(errs, err)
	}

	// The device may have padded lines or grown the virtual size
	if err := s.refresh(); err != nil {
		return s.geometry, multierr.Append(errs, err)
	}

	s.log.Info("Mode set",
		"mode", m.Name(),
		"virtual", fmt.Sprintf("%dx%d", s.geometry.VirtualWidth, s.geometry.VirtualHeight),
		"stride", s.geometry.Stride)
	return s.geometry, errs
}

func (s *Screen) virtualSize(m timing.Mode) (uint32, uint32) {
	w, h := s.width, s.height
	if w < m.HDisplay {
		w = m.HDisplay
	}
	if h < m.VDisplay {
		h = m.VDisplay
	}
	return uint32(w), uint32(h)
}

func (s *Screen) refresh() error {
	fix, err := s.dev.FixScreenInfo()
	if err != nil {
		return err
	}
	v, err := s.dev.VarScreenInfo()
	if err != nil {
		return err
	}

	g := Geometry{
		Width:         int(v.XRes),
		Height:        int(v.YRes),
		VirtualWidth:  int(v.XResVirtual),
		VirtualHeight: int(v.YResVirtual),
		BitsPerPixel:  int(v.BitsPerPixel),
		LineLength:    int(fix.LineLength),
	}
	if bpp := v.BytesPerPixel(); bpp > 0 {
		g.Stride = g.LineLength / bpp
	}

	s.geometry = g
	s.mode = fbdev.ModeOf(v)
	return nil
}
