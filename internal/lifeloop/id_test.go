package lifeloop

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	emetest "github.com/Architect8989/EME/internal/testutil"
)

// frozenClock never advances.
type frozenClock struct{}

func (frozenClock) Monotonic() float64    { return 1 }
func (frozenClock) MonotonicNanos() int64 { return 1_000_000_000 }
func (frozenClock) Now() time.Time        { return emetest.Epoch }

func TestHashedGenerator_Format(t *testing.T) {
	g := NewHashedGenerator(emetest.NewStepClock(time.Nanosecond))
	for i := 0; i < 100; i++ {
		assert.Regexp(t, idPattern, g.Generate())
	}
}

func TestHashedGenerator_UniqueWithFrozenClock(t *testing.T) {
	g := NewHashedGenerator(frozenClock{})

	const workers, per = 8, 250
	var (
		mu   sync.Mutex
		seen = map[string]bool{}
		wg   sync.WaitGroup
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < per; i++ {
				id := g.Generate()
				mu.Lock()
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, seen, workers*per)
}

func TestHashedGenerator_SaltSeparatesGenerators(t *testing.T) {
	a := NewHashedGenerator(frozenClock{})
	b := NewHashedGenerator(frozenClock{})
	assert.NotEqual(t, a.Generate(), b.Generate())
}

func TestFixedGenerator(t *testing.T) {
	g := NewFixedGenerator("a", "b")
	assert.Equal(t, "a", g.Generate())
	assert.Equal(t, "b", g.Generate())
	assert.Panics(t, func() { g.Generate() })
}
