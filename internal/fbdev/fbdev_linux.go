//go:build linux

package fbdev

import (
	"errors"
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// File is a framebuffer device node
type File struct {
	path string
	fd   uintptr
}

// Open opens a framebuffer device node such as /dev/fb0
func Open(path string) (*File, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if int(uintptr(fd)) != fd {
		unix.Close(fd)
		return nil, errors.New("fd overflows")
	}
	return &File{path: path, fd: uintptr(fd)}, nil
}

func (f *File) ioctl(req uintptr, arg uintptr) error {
	_, _, eno := unix.Syscall(unix.SYS_IOCTL, f.fd, req, arg)
	if eno != 0 {
		return eno
	}
	return nil
}

func (f *File) FixScreenInfo() (FixScreenInfo, error) {
	var finfo FixScreenInfo
	if err := f.ioctl(FBIOGET_FSCREENINFO, uintptr(unsafe.Pointer(&finfo))); err != nil {
		return finfo, fmt.Errorf("FBIOGET_FSCREENINFO %s: %w", f.path, err)
	}
	return finfo, nil
}

func (f *File) VarScreenInfo() (VarScreenInfo, error) {
	var vinfo VarScreenInfo
	if err := f.ioctl(FBIOGET_VSCREENINFO, uintptr(unsafe.Pointer(&vinfo))); err != nil {
		return vinfo, fmt.Errorf("FBIOGET_VSCREENINFO %s: %w", f.path, err)
	}
	return vinfo, nil
}

func (f *File) PutVarScreenInfo(v *VarScreenInfo) error {
	if err := f.ioctl(FBIOPUT_VSCREENINFO, uintptr(unsafe.Pointer(v))); err != nil {
		return fmt.Errorf("FBIOPUT_VSCREENINFO %s: %w", f.path, err)
	}
	return nil
}

func (f *File) Blank(level BlankLevel) error {
	if err := f.ioctl(FBIOBLANK, uintptr(level)); err != nil {
		return fmt.Errorf("FBIOBLANK %s: %w", f.path, err)
	}
	return nil
}

func (f *File) Close() error {
	return unix.Close(int(f.fd))
}
