// Package clock supplies the two time bases used by the pipeline.
//
// Monotonic readings order events inside one process and feed the
// causality window; they are float seconds since an arbitrary origin and
// never go backwards. Wall readings only name files and annotate records.
package clock

import (
	"sync/atomic"
	"time"
)

// Clock is the time source injected into the snapshot store and life loop.
type Clock interface {
	// Monotonic returns seconds since the clock's origin.
	Monotonic() float64
	// MonotonicNanos returns the same reading as integer nanoseconds.
	MonotonicNanos() int64
	// Now returns the wall-clock time.
	Now() time.Time
}

// System is the production Clock. The origin is fixed at construction;
// time.Since uses Go's monotonic reading, so wall-clock jumps do not
// affect Monotonic.
type System struct {
	origin time.Time
}

// NewSystem creates a System clock whose origin is now.
func NewSystem() *System {
	return &System{origin: time.Now()}
}

func (c *System) Monotonic() float64 {
	return time.Since(c.origin).Seconds()
}

func (c *System) MonotonicNanos() int64 {
	return int64(time.Since(c.origin))
}

func (c *System) Now() time.Time {
	return time.Now()
}

// Seq is a monotonic logical counter.
//
// Thread-safety: Seq is safe for concurrent use (atomic operations).
type Seq struct {
	n atomic.Int64
}

// Next returns the next value. The first call returns 1.
func (s *Seq) Next() int64 {
	return s.n.Add(1)
}

// Current returns the current value without incrementing.
func (s *Seq) Current() int64 {
	return s.n.Load()
}
