package testutil

import (
	"sync"
	"time"
)

// Epoch is the wall-clock origin used by test clocks.
var Epoch = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

// StepClock is a deterministic clock.Clock for tests.
//
// Every monotonic reading advances the clock by a fixed step, so a pipeline
// run yields the same timestamps on every execution and the ordering
// pre ≤ start ≤ end ≤ post holds strictly. Now returns Epoch plus the
// current monotonic reading.
//
// Thread-safety: all methods are safe for concurrent use via internal mutex.
type StepClock struct {
	mu   sync.Mutex
	step time.Duration
	cur  time.Duration
}

// NewStepClock creates a clock starting at 0 that advances step per reading.
func NewStepClock(step time.Duration) *StepClock {
	return &StepClock{step: step}
}

func (c *StepClock) advance() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur += c.step
	return c.cur
}

// Monotonic advances and returns seconds since origin.
func (c *StepClock) Monotonic() float64 {
	return c.advance().Seconds()
}

// MonotonicNanos advances and returns nanoseconds since origin.
func (c *StepClock) MonotonicNanos() int64 {
	return int64(c.advance())
}

// Now returns Epoch plus the current reading without advancing.
func (c *StepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Epoch.Add(c.cur)
}

// Reset rewinds the clock to 0.
func (c *StepClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur = 0
}

// ScriptedClock replays a fixed list of monotonic readings, then repeats
// the last one. It exists to drive clock-regression paths that a real
// monotonic clock never produces.
type ScriptedClock struct {
	mu       sync.Mutex
	readings []float64
	idx      int
}

// NewScriptedClock creates a clock returning readings in order.
func NewScriptedClock(readings ...float64) *ScriptedClock {
	return &ScriptedClock{readings: readings}
}

// Monotonic returns the next scripted reading.
func (c *ScriptedClock) Monotonic() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.readings) == 0 {
		return 0
	}
	if c.idx >= len(c.readings) {
		return c.readings[len(c.readings)-1]
	}
	r := c.readings[c.idx]
	c.idx++
	return r
}

// MonotonicNanos returns the next scripted reading in nanoseconds.
func (c *ScriptedClock) MonotonicNanos() int64 {
	return int64(c.Monotonic() * 1e9)
}

// Now always returns Epoch.
func (c *ScriptedClock) Now() time.Time {
	return Epoch
}
