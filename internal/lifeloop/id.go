package lifeloop

import (
	"encoding/binary"
	"sync"

	"github.com/google/uuid"

	"github.com/Architect8989/EME/internal/clock"
	"github.com/Architect8989/EME/internal/ir"
)

// IDGenerator produces experiment identifiers.
type IDGenerator interface {
	Generate() string
}

// HashedGenerator derives ids from a monotonic nanosecond reading, a
// per-generator counter and a per-generator random salt, hashed with
// domain separation and truncated to ir.ExperimentIDLength hex chars.
//
// The counter makes ids from the same generator distinct even when the
// clock does not advance between calls; the salt separates processes.
//
// Thread-safety: HashedGenerator is safe for concurrent use.
type HashedGenerator struct {
	clock clock.Clock
	seq   clock.Seq
	salt  uuid.UUID
}

// NewHashedGenerator creates a generator reading clk.
func NewHashedGenerator(clk clock.Clock) *HashedGenerator {
	return &HashedGenerator{clock: clk, salt: uuid.New()}
}

// Generate returns a new 16-char lowercase hex id.
func (g *HashedGenerator) Generate() string {
	var buf [16 + 16]byte
	binary.BigEndian.PutUint64(buf[0:8], uint64(g.clock.MonotonicNanos()))
	binary.BigEndian.PutUint64(buf[8:16], uint64(g.seq.Next()))
	copy(buf[16:], g.salt[:])
	return ir.HashWithDomain(ir.DomainExperiment, buf[:])[:ir.ExperimentIDLength]
}

// FixedGenerator returns predetermined ids for testing.
//
// Thread-safety: FixedGenerator is safe for concurrent use via internal mutex.
type FixedGenerator struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewFixedGenerator creates a generator that returns ids in order.
func NewFixedGenerator(ids ...string) *FixedGenerator {
	return &FixedGenerator{ids: ids}
}

// Generate returns the next predetermined id.
//
// Panics if all ids have been consumed, to catch tests that run more
// experiments than they planned for.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.ids) {
		panic("FixedGenerator: all ids exhausted")
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}
