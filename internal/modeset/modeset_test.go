package modeset

import (
	"errors"
	"testing"

	"github.com/bnema/omapdss/internal/fbdev"
	"github.com/bnema/omapdss/internal/logger"
	"github.com/bnema/omapdss/internal/output"
	"github.com/bnema/omapdss/internal/pool"
	"github.com/bnema/omapdss/internal/sysfs"
	"github.com/bnema/omapdss/internal/timing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeOutput records the calls it receives
type fakeOutput struct {
	name  string
	calls []string
	fail  string
}

func (f *fakeOutput) Name() string { return f.name }

func (f *fakeOutput) step(call string) error {
	f.calls = append(f.calls, call)
	if call == f.fail {
		return errors.New(call + " failed")
	}
	return nil
}

func (f *fakeOutput) PrepareChangeMode() error { return f.step("prepare") }
func (f *fakeOutput) SetMode(m timing.Mode) error { return f.step("set") }
func (f *fakeOutput) AbortChangeMode() error { return f.step("abort") }
func (f *fakeOutput) CommitChangeMode() (*pool.ApplyReport, error) {
	return &pool.ApplyReport{}, f.step("commit")
}

func mustMode(t *testing.T, s string) timing.Mode {
	t.Helper()
	m, err := timing.ParseTimings(s)
	require.NoError(t, err)
	return m
}

func newScreen(t *testing.T, dev fbdev.Device) *Screen {
	t.Helper()
	s, err := New(dev, Options{Logger: logger.Discard()})
	require.NoError(t, err)
	return s
}

func TestResize(t *testing.T) {
	s := newScreen(t, fbdev.NewMemory("omapfb", 864, 480, 32, 8<<20))

	tests := []struct {
		name string
		w, h int
		ok   bool
	}{
		{"minimum", 8, 8, true},
		{"maximum", 2048, 2048, true},
		{"too small", 7, 480, false},
		{"too tall", 864, 2049, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.Resize(tt.w, tt.h)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, ErrSizeOutOfRange))
		})
	}
}

func TestSetModeCorrectsGeometry(t *testing.T) {
	dev := fbdev.NewMemory("omapfb", 864, 480, 16, 8<<20)
	s := newScreen(t, dev)

	require.NoError(t, s.Resize(1000, 800))
	m := mustMode(t, "74250,1280/110/220/40,720/5/20/5")

	g, err := s.SetMode(m)
	require.NoError(t, err)
	assert.Equal(t, 1, dev.Puts(), "a single FBIOPUT_VSCREENINFO")

	// virtual width grows to the mode, lines are padded to 32 bytes
	assert.Equal(t, 1280, g.Width)
	assert.Equal(t, 720, g.Height)
	assert.Equal(t, 1280, g.VirtualWidth)
	assert.Equal(t, 800, g.VirtualHeight)
	assert.Equal(t, 2560, g.LineLength)
	assert.Equal(t, 1280, g.Stride)
	assert.Equal(t, "1280x720", s.Mode().Name())
}

func TestSetModeStrideFromLineLength(t *testing.T) {
	dev := fbdev.NewMemory("omapfb", 864, 480, 32, 8<<20)
	dev.SetLineAlign(256)
	s := newScreen(t, dev)

	g, err := s.SetMode(mustMode(t, "153600,864/16/32/20,480/5/3/3"))
	require.NoError(t, err)

	// 864*4 = 3456 padded to 3584
	assert.Equal(t, 3584, g.LineLength)
	assert.Equal(t, 896, g.Stride)
	assert.Equal(t, g, s.Geometry())
}

func TestSetModeDrivesOutputsInPhases(t *testing.T) {
	tests := []struct {
		name    string
		fail    string
		wantErr string
		want    []string
	}{
		{"all succeed", "", "", []string{"prepare", "set", "commit"}},
		{"prepare fails", "prepare", "hdmi: prepare", []string{"prepare", "abort"}},
		{"set fails", "set", "hdmi: set mode", []string{"prepare", "set", "abort"}},
		{"commit fails", "commit", "hdmi: commit", []string{"prepare", "set", "commit"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newScreen(t, fbdev.NewMemory("omapfb", 864, 480, 32, 8<<20))
			a := &fakeOutput{name: "lcd"}
			b := &fakeOutput{name: "hdmi", fail: tt.fail}

			g, err := s.SetMode(mustMode(t, "74250,1280/110/220/40,720/5/20/5"), a, b)
			if tt.wantErr == "" {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}

			assert.Equal(t, []string{"prepare", "set", "commit"}, a.calls)
			assert.Equal(t, tt.want, b.calls)
			// lcd took the mode, so the framebuffer follows it
			assert.Equal(t, 1280, g.Width)
		})
	}
}

func TestSetModeNoOutputTookMode(t *testing.T) {
	s := newScreen(t, fbdev.NewMemory("omapfb", 864, 480, 32, 8<<20))
	before := s.Geometry()
	a := &fakeOutput{name: "lcd", fail: "set"}
	b := &fakeOutput{name: "hdmi", fail: "commit"}

	g, err := s.SetMode(mustMode(t, "74250,1280/110/220/40,720/5/20/5"), a, b)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lcd: set mode")
	assert.Contains(t, err.Error(), "hdmi: commit")

	assert.Equal(t, before, g)
	assert.Equal(t, before, s.Geometry())
}

func TestSetModeDeviceRejects(t *testing.T) {
	dev := fbdev.NewMemory("omapfb", 640, 480, 32, 640*480*4)
	s := newScreen(t, dev)
	before := s.Geometry()

	_, err := s.SetMode(mustMode(t, "74250,1280/110/220/40,720/5/20/5"))
	assert.Error(t, err)
	assert.Equal(t, before, s.Geometry())
}

func TestSetModeWithOutputs(t *testing.T) {
	acc, err := sysfs.NewMemory(sysfs.OMAP4Layout())
	require.NoError(t, err)
	p, err := pool.New(acc, pool.Options{Logger: logger.Discard()})
	require.NoError(t, err)

	outputs := output.ProbeAll(acc, p, 10, logger.Discard())
	require.Len(t, outputs, 3)

	s := newScreen(t, fbdev.NewMemory("omapfb", 864, 480, 32, 8<<20))
	m := mustMode(t, "153600,864/16/32/20,480/5/3/3")

	_, err = s.SetMode(m, outputs[0], outputs[2])
	require.NoError(t, err)

	assert.True(t, p.IsDisplayConnected("lcd"))
	assert.True(t, p.IsDisplayConnected("hdmi"))
	assert.False(t, p.IsDisplayConnected("2lcd"))

	fbList, err := acc.ReadFramebuffer(0, sysfs.EntryOverlays)
	require.NoError(t, err)
	assert.Equal(t, "0,1", fbList)
}

func TestSetModeOutputWithoutOverlay(t *testing.T) {
	layout := sysfs.OMAP4Layout()
	layout.Overlays = 1
	acc, err := sysfs.NewMemory(layout)
	require.NoError(t, err)
	p, err := pool.New(acc, pool.Options{Logger: logger.Discard()})
	require.NoError(t, err)

	outputs := output.ProbeAll(acc, p, 10, logger.Discard())
	require.Len(t, outputs, 3)
	lcd, hdmi := outputs[0], outputs[2]

	// lcd holds the only overlay
	_, err = lcd.DPMS(output.PowerOn)
	require.NoError(t, err)

	s := newScreen(t, fbdev.NewMemory("omapfb", 864, 480, 32, 8<<20))
	before := s.Geometry()

	_, err = s.SetMode(mustMode(t, "74250,1280/110/220/40,720/5/20/5"), hdmi)
	require.Error(t, err)
	assert.True(t, errors.Is(err, pool.ErrNoOverlaysFree))
	assert.Contains(t, err.Error(), "hdmi: set mode")
	assert.NotContains(t, err.Error(), "commit")

	assert.Equal(t, before, s.Geometry())
	enabled, err := acc.Read(sysfs.KindDisplay, hdmi.Index(), sysfs.EntryEnabled)
	require.NoError(t, err)
	assert.Equal(t, "0", enabled)

	assert.True(t, p.IsDisplayConnected("lcd"))
	assert.False(t, p.IsDisplayConnected("hdmi"))
	assert.False(t, p.Dirty())
}
