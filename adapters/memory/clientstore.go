// Package memory provides in-memory implementations for testing.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/artpar/caas/domain/client"
	"github.com/artpar/caas/ports"
)

// ClientStore is an in-memory implementation of ports.ClientStore.
type ClientStore struct {
	mu      sync.RWMutex
	clients map[string]client.Client // by ID
}

// NewClientStore creates a new in-memory client store.
func NewClientStore() *ClientStore {
	return &ClientStore{
		clients: make(map[string]client.Client),
	}
}

// Get retrieves clients matching a prefix.
func (s *ClientStore) Get(ctx context.Context, prefix string) ([]client.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []client.Client
	for _, c := range s.clients {
		if c.Prefix == prefix {
			result = append(result, c)
		}
	}
	return result, nil
}

// GetByID retrieves a client by id.
func (s *ClientStore) GetByID(ctx context.Context, id string) (client.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.clients[id]
	if !ok {
		return client.Client{}, client.ErrNotFound
	}
	return c, nil
}

// Create stores a new client.
func (s *ClientStore) Create(ctx context.Context, c client.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clients[c.ID] = c
	return nil
}

// Revoke marks a client as revoked.
func (s *ClientStore) Revoke(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.clients[id]
	if !ok {
		return client.ErrNotFound
	}
	c.RevokedAt = &at
	s.clients[id] = c
	return nil
}

// List returns all clients ordered by creation time.
func (s *ClientStore) List(ctx context.Context) ([]client.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]client.Client, 0, len(s.clients))
	for _, c := range s.clients {
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// Clear removes all clients (for testing).
func (s *ClientStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients = make(map[string]client.Client)
}

// Ensure interface compliance.
var _ ports.ClientStore = (*ClientStore)(nil)
