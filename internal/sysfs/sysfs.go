// Package sysfs reads and writes the text attributes the omapdss and omapfb
// kernel drivers expose under /sys.
//
// DSS objects live under one root and are addressed as <kind><index>/<entry>
// (for example overlay0/manager). Framebuffers live under a second root and
// are addressed as fb<index>/<entry>.
package sysfs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/afero"
)

const (
	// DefaultDSSRoot is where the omapdss driver publishes its objects
	DefaultDSSRoot = "/sys/devices/platform/omapdss"
	// DefaultFBRoot is where the omapfb driver publishes its framebuffers
	DefaultFBRoot = "/sys/devices/platform/omapfb/graphics"
)

// Kind names a class of DSS object
type Kind string

const (
	KindDisplay Kind = "display"
	KindOverlay Kind = "overlay"
	KindManager Kind = "manager"
)

// Entry names used by the drivers
const (
	EntryEnabled  = "enabled"
	EntryManager  = "manager"
	EntryName     = "name"
	EntryDisplay  = "display"
	EntryTimings  = "timings"
	EntryOverlays = "overlays"
)

// ErrNotFound is returned when an object or attribute does not exist
var ErrNotFound = errors.New("attribute not found")

// IOError describes a failed attribute read or write
type IOError struct {
	Op    string
	Path  string
	Errno syscall.Errno
	Err   error
}

func (e *IOError) Error() string {
	if e.Errno != 0 {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Errno)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// Accessor is the narrow interface the pool and outputs use to talk to the
// device tree.
type Accessor interface {
	Read(kind Kind, index int, entry string) (string, error)
	Write(kind Kind, index int, entry, value string) error
	ReadFramebuffer(fb int, entry string) (string, error)
	WriteFramebuffer(fb int, entry, value string) error
	Exists(kind Kind, index int) bool
	FramebufferExists(fb int) bool
}

// FS implements Accessor on top of an afero filesystem
type FS struct {
	fs      afero.Fs
	dssRoot string
	fbRoot  string
}

// New creates an accessor rooted at the given directories. Empty roots fall
// back to the kernel defaults.
func New(fs afero.Fs, dssRoot, fbRoot string) *FS {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if dssRoot == "" {
		dssRoot = DefaultDSSRoot
	}
	if fbRoot == "" {
		fbRoot = DefaultFBRoot
	}
	return &FS{fs: fs, dssRoot: dssRoot, fbRoot: fbRoot}
}

// NewOS creates an accessor on the real filesystem
func NewOS(dssRoot, fbRoot string) *FS {
	return New(afero.NewOsFs(), dssRoot, fbRoot)
}

// DSSRoot returns the DSS object root
func (s *FS) DSSRoot() string {
	return s.dssRoot
}

// FBRoot returns the framebuffer object root
func (s *FS) FBRoot() string {
	return s.fbRoot
}

// Fs returns the underlying filesystem
func (s *FS) Fs() afero.Fs {
	return s.fs
}

// ObjectPath returns the directory of a DSS object
func (s *FS) ObjectPath(kind Kind, index int) string {
	return filepath.Join(s.dssRoot, fmt.Sprintf("%s%d", kind, index))
}

// FramebufferPath returns the directory of a framebuffer object
func (s *FS) FramebufferPath(fb int) string {
	return filepath.Join(s.fbRoot, fmt.Sprintf("fb%d", fb))
}

func (s *FS) Read(kind Kind, index int, entry string) (string, error) {
	return s.readFile(filepath.Join(s.ObjectPath(kind, index), entry))
}

func (s *FS) Write(kind Kind, index int, entry, value string) error {
	return s.writeFile(filepath.Join(s.ObjectPath(kind, index), entry), value)
}

func (s *FS) ReadFramebuffer(fb int, entry string) (string, error) {
	return s.readFile(filepath.Join(s.FramebufferPath(fb), entry))
}

func (s *FS) WriteFramebuffer(fb int, entry, value string) error {
	return s.writeFile(filepath.Join(s.FramebufferPath(fb), entry), value)
}

func (s *FS) Exists(kind Kind, index int) bool {
	return s.dirExists(s.ObjectPath(kind, index))
}

func (s *FS) FramebufferExists(fb int) bool {
	return s.dirExists(s.FramebufferPath(fb))
}

func (s *FS) dirExists(path string) bool {
	ok, err := afero.DirExists(s.fs, path)
	return err == nil && ok
}

func (s *FS) readFile(path string) (string, error) {
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		return "", wrapErr("read", path, err)
	}
	return Trim(string(data)), nil
}

func (s *FS) writeFile(path, value string) error {
	// sysfs attributes always exist; never create one
	f, err := s.fs.OpenFile(path, os.O_WRONLY|os.O_TRUNC, 0)
	if err != nil {
		return wrapErr("write", path, err)
	}
	if _, err := f.Write([]byte(value)); err != nil {
		f.Close()
		return wrapErr("write", path, err)
	}
	if err := f.Close(); err != nil {
		return wrapErr("write", path, err)
	}
	return nil
}

func wrapErr(op, path string, err error) error {
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%s %s: %w", op, path, ErrNotFound)
	}
	ioErr := &IOError{Op: op, Path: path, Err: err}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		ioErr.Errno = errno
	}
	return ioErr
}

// Trim strips the trailing newline and NUL bytes the kernel appends
func Trim(value string) string {
	return strings.TrimRight(value, "\n\x00 ")
}

// FormatOverlayList renders a framebuffer overlay list the way the omapfb
// driver expects it: ascending indexes joined by commas.
func FormatOverlayList(overlays []int) string {
	parts := make([]string, len(overlays))
	for i, ov := range overlays {
		parts[i] = fmt.Sprintf("%d", ov)
	}
	return strings.Join(parts, ",")
}
