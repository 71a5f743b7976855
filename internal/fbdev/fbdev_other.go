//go:build !linux

package fbdev

// File is a framebuffer device node
type File struct{}

// Open always fails outside Linux
func Open(path string) (*File, error) {
	return nil, ErrUnsupported
}

func (f *File) FixScreenInfo() (FixScreenInfo, error) { return FixScreenInfo{}, ErrUnsupported }
func (f *File) VarScreenInfo() (VarScreenInfo, error) { return VarScreenInfo{}, ErrUnsupported }
func (f *File) PutVarScreenInfo(v *VarScreenInfo) error { return ErrUnsupported }
func (f *File) Blank(level BlankLevel) error { return ErrUnsupported }
func (f *File) Close() error { return nil }
