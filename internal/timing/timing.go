// Package timing converts between display modes and the DSS timings string
// "clock,width/hfp/hbp/hsw,height/vfp/vbp/vsw".
package timing

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrInvalidTimings is returned for strings that do not carry nine fields
	ErrInvalidTimings = errors.New("invalid timings")
	// ErrInvalidMode is returned by Validate
	ErrInvalidMode = errors.New("invalid mode")
)

// Mode is a display mode in the usual modeline layout. Clock is in kHz.
type Mode struct {
	Clock      int
	HDisplay   int
	HSyncStart int
	HSyncEnd   int
	HTotal     int
	VDisplay   int
	VSyncStart int
	VSyncEnd   int
	VTotal     int

	// Preferred marks the native mode of a display
	Preferred bool
}

// ParseTimings parses a DSS timings attribute. Fields are front porch, back
// porch and sync width per direction; the sync pulse follows the front porch
// and the back porch closes the line.
func ParseTimings(s string) (Mode, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Mode{}, fmt.Errorf("%w: empty", ErrInvalidTimings)
	}

	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return Mode{}, fmt.Errorf("%w: %q", ErrInvalidTimings, s)
	}

	clock, err := parseInt(parts[0])
	if err != nil {
		return Mode{}, fmt.Errorf("%w: clock: %v", ErrInvalidTimings, err)
	}
	h, err := parseAxis(parts[1])
	if err != nil {
		return Mode{}, fmt.Errorf("%w: horizontal: %v", ErrInvalidTimings, err)
	}
	v, err := parseAxis(parts[2])
	if err != nil {
		return Mode{}, fmt.Errorf("%w: vertical: %v", ErrInvalidTimings, err)
	}

	m := Mode{Clock: clock}
	m.HDisplay, m.HSyncStart, m.HSyncEnd, m.HTotal = h.expand()
	m.VDisplay, m.VSyncStart, m.VSyncEnd, m.VTotal = v.expand()
	return m, nil
}

// axis holds one direction of a timings string
type axis struct {
	active, frontPorch, backPorch, syncWidth int
}

func (a axis) expand() (display, syncStart, syncEnd, total int) {
	display = a.active
	syncStart = display + a.frontPorch
	syncEnd = syncStart + a.syncWidth
	total = syncEnd + a.backPorch
	return
}

func parseAxis(s string) (axis, error) {
	fields := strings.Split(s, "/")
	if len(fields) != 4 {
		return axis{}, fmt.Errorf("want 4 fields, got %d", len(fields))
	}
	var vals [4]int
	for i, f := range fields {
		n, err := parseInt(f)
		if err != nil {
			return axis{}, err
		}
		vals[i] = n
	}
	return axis{active: vals[0], frontPorch: vals[1], backPorch: vals[2], syncWidth: vals[3]}, nil
}

func parseInt(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("negative value %d", n)
	}
	return n, nil
}

// Timings renders the mode as a DSS timings attribute
func (m Mode) Timings() string {
	return fmt.Sprintf("%d,%d/%d/%d/%d,%d/%d/%d/%d",
		m.Clock,
		m.HDisplay, m.HSyncStart-m.HDisplay, m.HTotal-m.HSyncEnd, m.HSyncEnd-m.HSyncStart,
		m.VDisplay, m.VSyncStart-m.VDisplay, m.VTotal-m.VSyncEnd, m.VSyncEnd-m.VSyncStart)
}

// Name returns "WxH"
func (m Mode) Name() string {
	return fmt.Sprintf("%dx%d", m.HDisplay, m.VDisplay)
}

// Modeline renders the mode the way xorg.conf expects it
func (m Mode) Modeline() string {
	return fmt.Sprintf("%q %.2f %d %d %d %d %d %d %d %d",
		m.Name(), float64(m.Clock)/1000,
		m.HDisplay, m.HSyncStart, m.HSyncEnd, m.HTotal,
		m.VDisplay, m.VSyncStart, m.VSyncEnd, m.VTotal)
}

// RefreshRate returns the vertical refresh in Hz, 0 for an incomplete mode
func (m Mode) RefreshRate() float64 {
	if m.HTotal == 0 || m.VTotal == 0 {
		return 0
	}
	return float64(m.Clock) * 1000 / float64(m.HTotal*m.VTotal)
}

// Validate checks that the mode is complete and its sync positions ordered
func (m Mode) Validate() error {
	switch {
	case m.Clock <= 0:
		return fmt.Errorf("%w: clock must be positive", ErrInvalidMode)
	case m.HDisplay <= 0 || m.VDisplay <= 0:
		return fmt.Errorf("%w: empty resolution %s", ErrInvalidMode, m.Name())
	case !ordered(m.HDisplay, m.HSyncStart, m.HSyncEnd, m.HTotal):
		return fmt.Errorf("%w: horizontal timings out of order", ErrInvalidMode)
	case !ordered(m.VDisplay, m.VSyncStart, m.VSyncEnd, m.VTotal):
		return fmt.Errorf("%w: vertical timings out of order", ErrInvalidMode)
	}
	return nil
}

func ordered(vals ...int) bool {
	for i := 1; i < len(vals); i++ {
		if vals[i] < vals[i-1] {
			return false
		}
	}
	return true
}

func (m Mode) String() string {
	return fmt.Sprintf("%s@%.1f", m.Name(), m.RefreshRate())
}
