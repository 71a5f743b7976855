package sysfs

import (
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
)

// Record is one attribute write observed by a Recorder
type Record struct {
	Kind  Kind // empty for framebuffer writes
	Index int
	Entry string
	Value string
	Err   error
}

// Framebuffer reports whether the write targeted a framebuffer object
func (w Record) Framebuffer() bool {
	return w.Kind == ""
}

// Target renders the addressed attribute, e.g. "overlay1/manager" or "fb0/overlays"
func (w Record) Target() string {
	if w.Framebuffer() {
		return fmt.Sprintf("fb%d/%s", w.Index, w.Entry)
	}
	return fmt.Sprintf("%s%d/%s", w.Kind, w.Index, w.Entry)
}

func (w Record) String() string {
	return fmt.Sprintf("%s=%q", w.Target(), w.Value)
}

// Recorder wraps an Accessor and keeps the ordered list of writes. In dry-run
// mode the writes are recorded but never reach the wrapped accessor.
type Recorder struct {
	Accessor

	mu     sync.Mutex
	writes []Record
	dryRun bool
	log    *log.Logger
}

// NewRecorder records writes and forwards them to next
func NewRecorder(next Accessor) *Recorder {
	return &Recorder{Accessor: next}
}

// NewDryRun records writes without forwarding them
func NewDryRun(next Accessor) *Recorder {
	return &Recorder{Accessor: next, dryRun: true}
}

// SetLogger makes the recorder trace every write at debug level
func (r *Recorder) SetLogger(l *log.Logger) {
	r.log = l
}

func (r *Recorder) Write(kind Kind, index int, entry, value string) error {
	var err error
	if !r.dryRun {
		err = r.Accessor.Write(kind, index, entry, value)
	}
	r.record(Record{Kind: kind, Index: index, Entry: entry, Value: value, Err: err})
	return err
}

func (r *Recorder) WriteFramebuffer(fb int, entry, value string) error {
	var err error
	if !r.dryRun {
		err = r.Accessor.WriteFramebuffer(fb, entry, value)
	}
	r.record(Record{Index: fb, Entry: entry, Value: value, Err: err})
	return err
}

func (r *Recorder) record(w Record) {
	r.mu.Lock()
	r.writes = append(r.writes, w)
	r.mu.Unlock()

	if r.log != nil {
		if w.Err != nil {
			r.log.Debug("sysfs write", "target", w.Target(), "value", w.Value, "err", w.Err)
		} else {
			r.log.Debug("sysfs write", "target", w.Target(), "value", w.Value)
		}
	}
}

// Writes returns a copy of the recorded writes
func (r *Recorder) Writes() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Record, len(r.writes))
	copy(out, r.writes)
	return out
}

// Reset forgets the recorded writes
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.writes = nil
	r.mu.Unlock()
}

// IndexOf returns the position of the first recorded write matching target
// and value, or -1.
func (r *Recorder) IndexOf(target, value string) int {
	for i, w := range r.Writes() {
		if w.Target() == target && w.Value == value {
			return i
		}
	}
	return -1
}
