package core

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// IdentifierGenerator produces globally unique real identifiers on demand.
// Implementations never fail under normal operation.
type IdentifierGenerator interface {
	NextID() string
}

// ULIDGenerator issues ULIDs from a monotonic entropy source. The timestamp
// component plus monotonic entropy keeps identifiers unique across all
// entities the process ever creates, and lexically sortable by creation time.
type ULIDGenerator struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// NewULIDGenerator constructs a generator backed by crypto/rand entropy.
func NewULIDGenerator() *ULIDGenerator {
	return &ULIDGenerator{
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// NextID returns the next identifier. It panics only if the entropy source
// fails, which is treated as an unrecoverable environment fault.
func (g *ULIDGenerator) NextID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now().UTC()), g.entropy).String()
}
