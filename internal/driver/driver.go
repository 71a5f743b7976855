// Package driver brings up the OMAP framebuffer and its DSS objects and
// serializes every configuration request on a single goroutine.
package driver

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bnema/omapdss/internal/config"
	"github.com/bnema/omapdss/internal/fbdev"
	"github.com/bnema/omapdss/internal/modeset"
	"github.com/bnema/omapdss/internal/output"
	"github.com/bnema/omapdss/internal/pool"
	"github.com/bnema/omapdss/internal/sysfs"
	"github.com/charmbracelet/log"
	"github.com/spf13/afero"
)

// DefaultController is used when the LCD controller name cannot be read
const DefaultController = "internal"

var (
	// ErrNotOMAP is returned when the framebuffer is not driven by omapfb
	ErrNotOMAP = errors.New("framebuffer is not an OMAP framebuffer")
	// ErrNoDSS is returned when the DSS sysfs tree is missing
	ErrNoDSS = errors.New("DSS sysfs interface not found")
)

// Options select where the driver finds its devices
type Options struct {
	// Simulate runs against an in-memory OMAP4 board
	Simulate bool
	// Trace logs every attribute write
	Trace bool
	// DryRun records attribute writes without performing them
	DryRun bool

	// Fs and Device replace the sysfs filesystem and framebuffer device
	Fs     afero.Fs
	Device fbdev.Device

	Logger *log.Logger
}

// Driver owns the framebuffer, the overlay pool, the outputs and the screen
type Driver struct {
	cfg  *config.Config
	opts Options
	log  *log.Logger

	fs       afero.Fs
	attrs    sysfs.Accessor
	recorder *sysfs.Recorder
	dev      fbdev.Device

	fbID       string
	controller string

	pool    *pool.Pool
	outputs []*output.Output
	screen  *modeset.Screen

	reqs chan request
	done chan struct{}
}

// Open brings the hardware to a known state: the framebuffer is checked and
// unblanked, every overlay is disabled and the displays are probed.
func Open(cfg *config.Config, opts Options) (*Driver, error) {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	d := &Driver{
		cfg:  cfg,
		opts: opts,
		log:  opts.Logger.With("component", "driver"),
		reqs: make(chan request),
		done: make(chan struct{}),
	}

	if err := d.initDevice(); err != nil {
		return nil, err
	}
	if err := d.initDSS(); err != nil {
		d.dev.Close()
		return nil, err
	}
	if err := d.initScreen(); err != nil {
		d.dev.Close()
		return nil, err
	}

	d.log.Info("Driver ready",
		"fb", d.fbID,
		"controller", d.controller,
		"overlays", d.pool.Overlays(),
		"displays", len(d.outputs),
		"simulated", opts.Simulate)
	return d, nil
}

// initDevice opens the framebuffer and checks it is driven by omapfb
func (d *Driver) initDevice() error {
	dev := d.opts.Device
	switch {
	case dev != nil:
	case d.opts.Simulate:
		dev = fbdev.NewMemory("omapfb", 864, 480, 32, 8<<20)
	default:
		f, err := fbdev.Open(d.cfg.Device.FB)
		if err != nil {
			return fmt.Errorf("failed to open framebuffer: %w", err)
		}
		dev = f
	}
	d.dev = dev

	fix, err := dev.FixScreenInfo()
	if err != nil {
		dev.Close()
		return err
	}
	d.fbID = fix.IDString()

	allowed := d.cfg.Device.AllowedIDs
	if len(allowed) == 0 {
		allowed = config.DefaultConfig.Device.AllowedIDs
	}
	if !fbdev.IsAllowed(d.fbID, allowed) {
		dev.Close()
		return fmt.Errorf("%w: %q", ErrNotOMAP, d.fbID)
	}

	if err := dev.Blank(fbdev.BlankUnblank); err != nil {
		d.log.Warn("Failed to unblank screen", "err", err)
	}
	return nil
}

// initDSS opens the sysfs trees, reads the controller name and builds the
// pool and outputs
func (d *Driver) initDSS() error {
	dev := d.cfg.Device
	if dev.DSSRoot == "" {
		dev.DSSRoot = sysfs.DefaultDSSRoot
	}
	if dev.FBRoot == "" {
		dev.FBRoot = sysfs.DefaultFBRoot
	}

	fs := d.opts.Fs
	switch {
	case fs != nil:
	case d.opts.Simulate:
		fs = afero.NewMemMapFs()
		if err := sysfs.OMAP4Layout().Populate(fs, dev.DSSRoot, dev.FBRoot); err != nil {
			return err
		}
	default:
		fs = afero.NewOsFs()
	}
	d.fs = fs

	if ok, _ := afero.DirExists(fs, dev.DSSRoot); !ok {
		return fmt.Errorf("%w at %s", ErrNoDSS, dev.DSSRoot)
	}

	d.controller = readController(fs, dev.CtrlNamePath)

	var attrs sysfs.Accessor = sysfs.New(fs, dev.DSSRoot, dev.FBRoot)
	switch {
	case d.opts.DryRun:
		d.recorder = sysfs.NewDryRun(attrs)
	case d.opts.Trace:
		d.recorder = sysfs.NewRecorder(attrs)
	}
	if d.recorder != nil {
		if d.opts.Trace {
			d.recorder.SetLogger(d.opts.Logger.With("component", "sysfs"))
		}
		attrs = d.recorder
	}
	d.attrs = attrs

	match, err := pool.ParseNameMatch(d.cfg.Pool.NameMatch)
	if err != nil {
		return err
	}

	p, err := pool.New(attrs, pool.Options{
		MaxFramebuffers:    d.cfg.Pool.MaxFramebuffers,
		MaxOverlays:        d.cfg.Pool.MaxOverlays,
		MaxManagers:        d.cfg.Pool.MaxManagers,
		ExpectFramebuffers: d.cfg.Pool.ExpectFramebuffers,
		ExpectOverlays:     d.cfg.Pool.ExpectOverlays,
		ExpectManagers:     d.cfg.Pool.ExpectManagers,
		NameMatch:          match,
		Logger:             d.opts.Logger.With("component", "pool"),
	})
	if err != nil {
		return err
	}
	d.pool = p

	maxDisplays := d.cfg.Pool.MaxDisplays
	if maxDisplays <= 0 {
		maxDisplays = config.DefaultConfig.Pool.MaxDisplays
	}
	d.outputs = output.ProbeAll(attrs, p, maxDisplays, d.opts.Logger.With("component", "output"))
	if len(d.outputs) == 0 {
		d.log.Warn("No displays found")
	}
	return nil
}

func (d *Driver) initScreen() error {
	s, err := modeset.New(d.dev, modeset.Options{
		MinWidth:  d.cfg.Screen.MinWidth,
		MinHeight: d.cfg.Screen.MinHeight,
		MaxWidth:  d.cfg.Screen.MaxWidth,
		MaxHeight: d.cfg.Screen.MaxHeight,
		Logger:    d.opts.Logger.With("component", "screen"),
	})
	if err != nil {
		return fmt.Errorf("failed to read screen info: %w", err)
	}
	d.screen = s
	return nil
}

func readController(fs afero.Fs, path string) string {
	if path == "" {
		return DefaultController
	}
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return DefaultController
	}
	name := strings.TrimRight(string(data), "\n\x00 ")
	if name == "" {
		return DefaultController
	}
	return name
}

// Close releases the framebuffer. It must not be called while Run is active.
func (d *Driver) Close() error {
	if d.dev == nil {
		return nil
	}
	return d.dev.Close()
}

// Recorder returns the write recorder in trace and dry-run modes, nil
// otherwise
func (d *Driver) Recorder() *sysfs.Recorder {
	return d.recorder
}

func (d *Driver) output(display string) (*output.Output, error) {
	for _, o := range d.outputs {
		if o.Name() == display {
			return o, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", output.ErrNoDisplay, display)
}
