package store

import (
	"strconv"
	"sync/atomic"

	"github.com/google/uuid"
)

// IDGenerator makes identifiers for new entities
type IDGenerator interface {
	NewID() string
}

// UUIDGenerator makes random UUID v4 identifiers
type UUIDGenerator struct{}

// NewID returns a new random UUID
func (UUIDGenerator) NewID() string { return uuid.NewString() }

// SequenceGenerator makes predictable identifiers like "loc-1", "loc-2"
type SequenceGenerator struct {
	Prefix string
	seq    uint64
}

// NewID returns the next identifier in sequence
func (g *SequenceGenerator) NewID() string {
	return g.Prefix + strconv.FormatUint(atomic.AddUint64(&g.seq, 1), 10)
}
