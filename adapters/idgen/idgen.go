// Package idgen provides identifier generators for clients, content and
// requests.
package idgen

import (
	"strconv"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/artpar/caas/ports"
)

// UUID generates random (v4) UUIDs.
type UUID struct{}

// New returns a new UUID v4.
func (UUID) New() string {
	return uuid.New().String()
}

// TimeOrdered generates v7 UUIDs, which sort by creation time. Used for
// imported content so that ids follow import order.
type TimeOrdered struct{}

// New returns a new UUID v7, falling back to v4 if the clock source fails.
func (TimeOrdered) New() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

// Sequential generates prefixed sequential ids (for tests).
type Sequential struct {
	prefix  string
	counter atomic.Uint64
}

// NewSequential creates a sequential id generator.
func NewSequential(prefix string) *Sequential {
	return &Sequential{prefix: prefix}
}

// New returns the next id.
func (s *Sequential) New() string {
	return s.prefix + strconv.FormatUint(s.counter.Add(1), 10)
}

// Reset restarts the sequence.
func (s *Sequential) Reset() {
	s.counter.Store(0)
}

var (
	_ ports.IDGenerator = UUID{}
	_ ports.IDGenerator = TimeOrdered{}
	_ ports.IDGenerator = (*Sequential)(nil)
)
