package fbdev

import (
	"errors"
	"os"
	"testing"

	"github.com/bnema/omapdss/internal/timing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestIDString(t *testing.T) {
	var f FixScreenInfo
	f.SetID("omapfb")
	assert.Equal(t, "omapfb", f.IDString())

	f.SetID("a-very-long-driver-name")
	assert.Equal(t, "a-very-long-dri", f.IDString())
}

func TestIsOMAP(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"omapfb", true},
		{"omap24xxfb", true},
		{"efifb", false},
		{"omapfb2", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			assert.Equal(t, tt.want, IsOMAP(tt.id))
		})
	}
}

func TestModeConversion(t *testing.T) {
	m, err := timing.ParseTimings("74250,1280/110/220/40,720/5/20/5")
	require.NoError(t, err)

	var v VarScreenInfo
	v.SetMode(m)

	assert.Equal(t, uint32(1280), v.XRes)
	assert.Equal(t, uint32(720), v.YRes)
	assert.Equal(t, uint32(13468), v.PixelClock)
	assert.Equal(t, uint32(110), v.RightMargin)
	assert.Equal(t, uint32(40), v.HSyncLen)
	assert.Equal(t, uint32(220), v.LeftMargin)
	assert.Equal(t, uint32(5), v.LowerMargin)
	assert.Equal(t, uint32(5), v.VSyncLen)
	assert.Equal(t, uint32(20), v.UpperMargin)

	back := ModeOf(v)
	assert.Equal(t, m.HTotal, back.HTotal)
	assert.Equal(t, m.VSyncEnd, back.VSyncEnd)
	assert.Equal(t, m.Name(), back.Name())
	// picoseconds lose a little precision
	assert.InDelta(t, m.Clock, back.Clock, 10)
}

func TestMemoryNegotiatesLineLength(t *testing.T) {
	dev := NewMemory("omapfb", 800, 480, 16, 4<<20)

	fix, err := dev.FixScreenInfo()
	require.NoError(t, err)
	assert.Equal(t, uint32(1600), fix.LineLength)

	v, err := dev.VarScreenInfo()
	require.NoError(t, err)
	v.XRes, v.YRes = 854, 480
	v.XResVirtual, v.YResVirtual = 0, 0
	require.NoError(t, dev.PutVarScreenInfo(&v))

	// virtual raised to visible, 854*2 = 1708 rounded up to 1728
	assert.Equal(t, uint32(854), v.XResVirtual)
	assert.Equal(t, uint32(480), v.YResVirtual)

	fix, err = dev.FixScreenInfo()
	require.NoError(t, err)
	assert.Equal(t, uint32(1728), fix.LineLength)
	assert.Equal(t, 1, dev.Puts())
}

func TestMemoryRejects(t *testing.T) {
	dev := NewMemory("omapfb", 640, 480, 32, 640*480*4)

	v, err := dev.VarScreenInfo()
	require.NoError(t, err)

	bad := v
	bad.BitsPerPixel = 12
	assert.True(t, errors.Is(dev.PutVarScreenInfo(&bad), unix.EINVAL))

	big := v
	big.XResVirtual, big.YResVirtual = 1280, 960
	assert.True(t, errors.Is(dev.PutVarScreenInfo(&big), unix.ENOMEM))

	assert.Equal(t, 0, dev.Puts())
	after, err := dev.VarScreenInfo()
	require.NoError(t, err)
	assert.Equal(t, v, after)
}

func TestMemoryBlankAndClose(t *testing.T) {
	dev := NewMemory("omapfb", 640, 480, 32, 640*480*4)
	assert.Equal(t, BlankPowerdown, dev.BlankLevel())

	require.NoError(t, dev.Blank(BlankUnblank))
	assert.Equal(t, BlankUnblank, dev.BlankLevel())
	assert.Equal(t, "unblank", BlankUnblank.String())

	require.NoError(t, dev.Close())
	_, err := dev.VarScreenInfo()
	assert.True(t, errors.Is(err, os.ErrClosed))
}
