package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStepClock_Advances(t *testing.T) {
	c := NewStepClock(time.Millisecond)

	assert.Equal(t, 0.001, c.Monotonic())
	assert.Equal(t, 0.002, c.Monotonic())
	assert.Equal(t, int64(3*time.Millisecond), c.MonotonicNanos())
	assert.Equal(t, Epoch.Add(3*time.Millisecond), c.Now())
}

func TestStepClock_NowDoesNotAdvance(t *testing.T) {
	c := NewStepClock(time.Second)
	c.Monotonic()

	assert.Equal(t, c.Now(), c.Now())
}

func TestStepClock_Reset(t *testing.T) {
	c := NewStepClock(time.Second)
	c.Monotonic()
	c.Monotonic()
	c.Reset()

	assert.Equal(t, 1.0, c.Monotonic())
}

func TestStepClock_ThreadSafe(t *testing.T) {
	c := NewStepClock(time.Nanosecond)
	const goroutines = 20
	const calls = 50

	var wg sync.WaitGroup
	seen := make(chan int64, goroutines*calls)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < calls; j++ {
				seen <- c.MonotonicNanos()
			}
		}()
	}
	wg.Wait()
	close(seen)

	unique := make(map[int64]bool)
	for n := range seen {
		unique[n] = true
	}
	assert.Len(t, unique, goroutines*calls)
}

func TestScriptedClock_ReplaysThenRepeats(t *testing.T) {
	c := NewScriptedClock(5, 3)

	assert.Equal(t, 5.0, c.Monotonic())
	assert.Equal(t, 3.0, c.Monotonic())
	assert.Equal(t, 3.0, c.Monotonic())
	assert.Equal(t, Epoch, c.Now())
}

func TestScriptedClock_Empty(t *testing.T) {
	c := NewScriptedClock()
	assert.Equal(t, 0.0, c.Monotonic())
}
