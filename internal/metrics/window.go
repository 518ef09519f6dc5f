package metrics

import (
	"time"

	"nmsview/internal/domain"
)

// DefaultRetention is the number of snapshots kept per object when unset
const DefaultRetention = 300

// WindowConfig bounds a Window
type WindowConfig struct {
	// Retention is the maximum number of snapshots kept (<= 0 uses DefaultRetention)
	Retention int
	// MaxAge evicts snapshots older than the newest by more than this (0 disables)
	MaxAge time.Duration
}

// Window is the bounded snapshot history of one managed object.
// It is owned by a single goroutine; readers receive copies from History.
type Window struct {
	buf    []domain.MetricSnapshot
	start  int
	n      int
	maxAge time.Duration
}

// NewWindow creates an empty window
func NewWindow(cfg WindowConfig) *Window {
	retention := cfg.Retention
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Window{
		buf:    make([]domain.MetricSnapshot, retention),
		maxAge: cfg.MaxAge,
	}
}

// Capacity returns the retention cap
func (w *Window) Capacity() int {
	return len(w.buf)
}

// Len returns the number of retained snapshots
func (w *Window) Len() int {
	return w.n
}

// Append adds s as the newest snapshot, evicting the oldest once the cap or
// max age is exceeded.
func (w *Window) Append(s domain.MetricSnapshot) {
	if w.n == len(w.buf) {
		w.buf[w.start] = domain.MetricSnapshot{}
		w.start = (w.start + 1) % len(w.buf)
		w.n--
	}
	w.buf[(w.start+w.n)%len(w.buf)] = s
	w.n++

	if w.maxAge > 0 {
		cutoff := s.Timestamp - w.maxAge.Milliseconds()
		for w.n > 1 && w.buf[w.start].Timestamp < cutoff {
			w.buf[w.start] = domain.MetricSnapshot{}
			w.start = (w.start + 1) % len(w.buf)
			w.n--
		}
	}
}

// Latest returns the newest snapshot
func (w *Window) Latest() (domain.MetricSnapshot, bool) {
	if w.n == 0 {
		return domain.MetricSnapshot{}, false
	}
	return w.buf[(w.start+w.n-1)%len(w.buf)], true
}

// History returns the retained snapshots oldest first. The slice and each
// counter bag are copies, so later appends never show through.
func (w *Window) History() []domain.MetricSnapshot {
	out := make([]domain.MetricSnapshot, w.n)
	for i := 0; i < w.n; i++ {
		s := w.buf[(w.start+i)%len(w.buf)]
		out[i] = domain.MetricSnapshot{
			Timestamp: s.Timestamp,
			Counters:  s.Counters.Clone(),
		}
	}
	return out
}

// Reset drops every snapshot
func (w *Window) Reset() {
	for i := range w.buf {
		w.buf[i] = domain.MetricSnapshot{}
	}
	w.start = 0
	w.n = 0
}
