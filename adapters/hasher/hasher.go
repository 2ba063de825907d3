// Package hasher hashes client API keys.
package hasher

import (
	"golang.org/x/crypto/bcrypt"

	"github.com/artpar/caas/ports"
)

// Bcrypt hashes keys with bcrypt. Only the hash is ever stored.
type Bcrypt struct {
	cost int
}

// NewBcrypt creates a bcrypt hasher. Out-of-range costs use the default.
func NewBcrypt(cost int) *Bcrypt {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Bcrypt{cost: cost}
}

// Cost returns the work factor used for new hashes.
func (h *Bcrypt) Cost() int {
	return h.cost
}

// Hash hashes a raw key.
func (h *Bcrypt) Hash(raw string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(raw), h.cost)
}

// Compare reports whether raw matches hash.
func (h *Bcrypt) Compare(hash []byte, raw string) bool {
	return bcrypt.CompareHashAndPassword(hash, []byte(raw)) == nil
}

// Fake stores keys in clear text. Tests only.
type Fake struct{}

// Hash returns raw unchanged.
func (Fake) Hash(raw string) ([]byte, error) {
	return []byte(raw), nil
}

// Compare checks equality.
func (Fake) Compare(hash []byte, raw string) bool {
	return string(hash) == raw
}

var (
	_ ports.Hasher = (*Bcrypt)(nil)
	_ ports.Hasher = Fake{}
)
