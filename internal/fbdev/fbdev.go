// Package fbdev talks to a Linux framebuffer device through the fbdev ioctls.
package fbdev

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/bnema/omapdss/internal/timing"
)

// <linux/fb.h> ioctls, 0x46 is 'F'
const (
	FBIOGET_VSCREENINFO = 0x4600
	FBIOPUT_VSCREENINFO = 0x4601
	FBIOGET_FSCREENINFO = 0x4602
	FBIOBLANK           = 0x4611
)

// ErrUnsupported is returned when framebuffer devices are not available on
// this platform
var ErrUnsupported = errors.New("framebuffer devices are not supported on this platform")

// BlankLevel is an FB_BLANK_* value
type BlankLevel int

const (
	BlankUnblank BlankLevel = iota
	BlankNormal
	BlankVSyncSuspend
	BlankHSyncSuspend
	BlankPowerdown
)

func (b BlankLevel) String() string {
	switch b {
	case BlankUnblank:
		return "unblank"
	case BlankNormal:
		return "normal"
	case BlankVSyncSuspend:
		return "vsync-suspend"
	case BlankHSyncSuspend:
		return "hsync-suspend"
	case BlankPowerdown:
		return "powerdown"
	}
	return fmt.Sprintf("blank(%d)", int(b))
}

// Device is an open framebuffer
type Device interface {
	FixScreenInfo() (FixScreenInfo, error)
	VarScreenInfo() (VarScreenInfo, error)
	// PutVarScreenInfo sets the variable info. The device may adjust the
	// request; the values it settled on are written back into v.
	PutVarScreenInfo(v *VarScreenInfo) error
	Blank(level BlankLevel) error
	Close() error
}

// OMAP framebuffer driver ids
var omapIDs = []string{"omapfb", "omap24xxfb"}

// IsOMAP reports whether id names an OMAP framebuffer driver
func IsOMAP(id string) bool {
	return IsAllowed(id, omapIDs)
}

// IsAllowed reports whether id matches one of the allowed driver ids
func IsAllowed(id string, allowed []string) bool {
	for _, a := range allowed {
		if id == a {
			return true
		}
	}
	return false
}

// <linux/fb.h> struct fb_fix_screeninfo
type FixScreenInfo struct {
	// Screen ID, e.g. "omapfb"
	ID [16]byte

	// Frame buffer mem (physical address)
	SMemStart uintptr
	SMemLen   uint32

	Type    uint32
	TypeAux uint32
	Visual  uint32

	XPanStep  uint16
	YPanStep  uint16
	YWrapStep uint16

	// Length of a line in bytes
	LineLength uint32

	MmioStart uintptr
	MmioLen   uint32

	Accel        uint32
	Capabilities uint16

	_ [2]uint16
}

// IDString returns the screen id without NUL padding
func (f *FixScreenInfo) IDString() string {
	if i := bytes.IndexByte(f.ID[:], 0); i >= 0 {
		return string(f.ID[:i])
	}
	return string(f.ID[:])
}

// SetID stores id, truncated to the field size
func (f *FixScreenInfo) SetID(id string) {
	f.ID = [16]byte{}
	copy(f.ID[:len(f.ID)-1], id)
}

// <linux/fb.h> struct fb_bitfield
type BitField struct {
	Offset   uint32
	Length   uint32
	MsbRight uint32
}

// <linux/fb.h> struct fb_var_screeninfo
type VarScreenInfo struct {
	// Visible resolution
	XRes, YRes uint32

	// Virtual resolution
	XResVirtual, YResVirtual uint32

	// Offset from virtual to visible resolution
	XOffset, YOffset uint32

	BitsPerPixel uint32
	Grayscale    uint32

	Red, Green, Blue, Alpha BitField

	NonStd   uint32
	Activate uint32

	// Dimensions of picture in mm
	Height, Width uint32

	_ uint32

	// Pixel clock in pico seconds
	PixelClock uint32

	// Time from sync to picture
	LeftMargin uint32
	// Time from picture to sync
	RightMargin uint32
	UpperMargin uint32
	LowerMargin uint32
	HSyncLen    uint32
	VSyncLen    uint32

	Sync       uint32
	VMode      uint32
	Rotate     uint32
	ColorSpace uint32

	_ [4]uint32
}

// BytesPerPixel returns the pixel size, 0 for sub-byte formats
func (v *VarScreenInfo) BytesPerPixel() int {
	return int(v.BitsPerPixel / 8)
}

// SetMode copies the timing of m into v. The virtual size is left alone.
func (v *VarScreenInfo) SetMode(m timing.Mode) {
	v.XRes = uint32(m.HDisplay)
	v.YRes = uint32(m.VDisplay)

	v.PixelClock = 0
	if m.Clock > 0 {
		v.PixelClock = uint32(1e9 / m.Clock)
	}

	v.RightMargin = uint32(m.HSyncStart - m.HDisplay)
	v.HSyncLen = uint32(m.HSyncEnd - m.HSyncStart)
	v.LeftMargin = uint32(m.HTotal - m.HSyncEnd)

	v.LowerMargin = uint32(m.VSyncStart - m.VDisplay)
	v.VSyncLen = uint32(m.VSyncEnd - m.VSyncStart)
	v.UpperMargin = uint32(m.VTotal - m.VSyncEnd)
}

// ModeOf returns the mode currently described by v
func ModeOf(v VarScreenInfo) timing.Mode {
	m := timing.Mode{
		HDisplay: int(v.XRes),
		VDisplay: int(v.YRes),
	}
	if v.PixelClock > 0 {
		m.Clock = int(1e9 / v.PixelClock)
	}

	m.HSyncStart = m.HDisplay + int(v.RightMargin)
	m.HSyncEnd = m.HSyncStart + int(v.HSyncLen)
	m.HTotal = m.HSyncEnd + int(v.LeftMargin)

	m.VSyncStart = m.VDisplay + int(v.LowerMargin)
	m.VSyncEnd = m.VSyncStart + int(v.VSyncLen)
	m.VTotal = m.VSyncEnd + int(v.UpperMargin)
	return m
}
