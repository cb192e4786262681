package engine

import (
	"sync"

	"github.com/google/uuid"
)

// PlanIDGenerator generates plan ids.
type PlanIDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-ordered UUIDv7 plan ids, so sorting plan
// ids sorts plans by creation time.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate returns a new hyphenated UUIDv7. It panics if the random source
// fails.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator hands out predetermined plan ids, for tests.
//
// Thread-safety: FixedGenerator is safe for concurrent use.
type FixedGenerator struct {
	mu   sync.Mutex
	next []string
}

// NewFixedGenerator returns a generator yielding ids in order.
func NewFixedGenerator(ids ...string) *FixedGenerator {
	return &FixedGenerator{next: ids}
}

// Generate returns the next id. It panics once the ids run out, which
// flags a test that planned more often than it expected.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.next) == 0 {
		panic("FixedGenerator: all ids exhausted")
	}
	id := g.next[0]
	g.next = g.next[1:]
	return id
}
