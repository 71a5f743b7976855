package fbdev

import (
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// DefaultLineAlign matches the DMA burst alignment omapfb applies to lines
const DefaultLineAlign = 32

// Memory is an in-memory framebuffer. It negotiates like the OMAP driver:
// the virtual size is raised to the visible size and line lengths are
// rounded up to LineAlign bytes.
type Memory struct {
	mu        sync.Mutex
	fix       FixScreenInfo
	vinfo     VarScreenInfo
	lineAlign uint32
	blank     BlankLevel
	puts      int
	closed    bool
}

// NewMemory returns a device with id, a visible and virtual size of w x h at
// bpp bits per pixel, and memLen bytes of video memory.
func NewMemory(id string, w, h, bpp int, memLen uint32) *Memory {
	m := &Memory{lineAlign: DefaultLineAlign, blank: BlankPowerdown}
	m.fix.SetID(id)
	m.fix.SMemLen = memLen
	m.vinfo = VarScreenInfo{
		XRes: uint32(w), YRes: uint32(h),
		XResVirtual: uint32(w), YResVirtual: uint32(h),
		BitsPerPixel: uint32(bpp),
	}
	m.fix.LineLength = m.lineLength(m.vinfo.XResVirtual, m.vinfo.BitsPerPixel)
	return m
}

// SetLineAlign changes the line alignment, in bytes
func (m *Memory) SetLineAlign(align uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if align == 0 {
		align = 1
	}
	m.lineAlign = align
	m.fix.LineLength = m.lineLength(m.vinfo.XResVirtual, m.vinfo.BitsPerPixel)
}

func (m *Memory) lineLength(xres, bpp uint32) uint32 {
	n := xres * bpp / 8
	return (n + m.lineAlign - 1) / m.lineAlign * m.lineAlign
}

func (m *Memory) FixScreenInfo() (FixScreenInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return FixScreenInfo{}, os.ErrClosed
	}
	return m.fix, nil
}

func (m *Memory) VarScreenInfo() (VarScreenInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return VarScreenInfo{}, os.ErrClosed
	}
	return m.vinfo, nil
}

func (m *Memory) PutVarScreenInfo(v *VarScreenInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return os.ErrClosed
	}

	switch v.BitsPerPixel {
	case 16, 24, 32:
	default:
		return fmt.Errorf("FBIOPUT_VSCREENINFO: %d bpp: %w", v.BitsPerPixel, unix.EINVAL)
	}
	if v.XRes == 0 || v.YRes == 0 {
		return fmt.Errorf("FBIOPUT_VSCREENINFO: empty resolution: %w", unix.EINVAL)
	}

	next := *v
	if next.XResVirtual < next.XRes {
		next.XResVirtual = next.XRes
	}
	if next.YResVirtual < next.YRes {
		next.YResVirtual = next.YRes
	}

	line := m.lineLength(next.XResVirtual, next.BitsPerPixel)
	if uint64(line)*uint64(next.YResVirtual) > uint64(m.fix.SMemLen) {
		return fmt.Errorf("FBIOPUT_VSCREENINFO: %dx%d does not fit in %d bytes: %w",
			next.XResVirtual, next.YResVirtual, m.fix.SMemLen, unix.ENOMEM)
	}

	m.vinfo = next
	m.fix.LineLength = line
	m.puts++
	*v = next
	return nil
}

func (m *Memory) Blank(level BlankLevel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return os.ErrClosed
	}
	m.blank = level
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// BlankLevel returns the last blank level set
func (m *Memory) BlankLevel() BlankLevel {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.blank
}

// Puts returns the number of accepted FBIOPUT_VSCREENINFO calls
func (m *Memory) Puts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.puts
}
