package memory

import (
	"context"
	"sync"

	"github.com/artpar/caas/domain/content"
	"github.com/artpar/caas/ports"
)

// ContentStore is an in-memory implementation of ports.ContentStore.
type ContentStore struct {
	mu     sync.RWMutex
	types  []content.Type
	byName map[string]int
	items  map[string]content.Content
	reads  int
}

// NewContentStore creates a new in-memory content store.
func NewContentStore() *ContentStore {
	return &ContentStore{
		byName: make(map[string]int),
		items:  make(map[string]content.Content),
	}
}

// Types returns the content types in insertion order.
func (s *ContentStore) Types(ctx context.Context) ([]content.Type, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reads++
	return append([]content.Type(nil), s.types...), nil
}

// Get returns a content item.
func (s *ContentStore) Get(ctx context.Context, id string) (content.Content, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.items[id]
	if !ok {
		return content.Content{}, content.ErrNotFound
	}
	return c, nil
}

// GetMany returns the existing items among ids, in ids order.
func (s *ContentStore) GetMany(ctx context.Context, ids []string) ([]content.Content, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]content.Content, 0, len(ids))
	for _, id := range ids {
		if c, ok := s.items[id]; ok {
			result = append(result, c)
		}
	}
	return result, nil
}

// PutType creates or replaces a content type.
func (s *ContentStore) PutType(ctx context.Context, t content.Type) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i, ok := s.byName[t.Name]; ok {
		s.types[i] = t
		return nil
	}
	s.byName[t.Name] = len(s.types)
	s.types = append(s.types, t)
	return nil
}

// Put creates or replaces a content item.
func (s *ContentStore) Put(ctx context.Context, c content.Content) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items[c.ID] = c
	return nil
}

// Delete removes a content item.
func (s *ContentStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[id]; !ok {
		return content.ErrNotFound
	}
	delete(s.items, id)
	return nil
}

// TypeReads returns how often the catalog was read (for testing).
func (s *ContentStore) TypeReads() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reads
}

// Ensure interface compliance.
var _ ports.ContentStore = (*ContentStore)(nil)
