package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/artpar/caas/domain/site"
	"github.com/artpar/caas/ports"
)

// SiteStore is an in-memory implementation of ports.SiteStore.
type SiteStore struct {
	mu    sync.RWMutex
	sites map[string]site.Site // by tenant/site
}

// NewSiteStore creates a new in-memory site store.
func NewSiteStore() *SiteStore {
	return &SiteStore{
		sites: make(map[string]site.Site),
	}
}

// Get retrieves a site of a tenant.
func (s *SiteStore) Get(ctx context.Context, tenantID, siteID string) (site.Site, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.sites[tenantID+"/"+siteID]
	if !ok {
		return site.Site{}, site.ErrNotFound
	}
	return st, nil
}

// List returns all sites ordered by key.
func (s *SiteStore) List(ctx context.Context) ([]site.Site, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]site.Site, 0, len(s.sites))
	for _, st := range s.sites {
		result = append(result, st)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Key() < result[j].Key() })
	return result, nil
}

// Create stores a new site.
func (s *SiteStore) Create(ctx context.Context, st site.Site) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sites[st.Key()]; exists {
		return fmt.Errorf("site %s already exists", st.Key())
	}
	s.sites[st.Key()] = st
	return nil
}

// Update modifies an existing site.
func (s *SiteStore) Update(ctx context.Context, st site.Site) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sites[st.Key()]; !exists {
		return site.ErrNotFound
	}
	s.sites[st.Key()] = st
	return nil
}

// Delete removes a site.
func (s *SiteStore) Delete(ctx context.Context, tenantID, siteID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := tenantID + "/" + siteID
	if _, ok := s.sites[key]; !ok {
		return site.ErrNotFound
	}
	delete(s.sites, key)
	return nil
}

// Ensure interface compliance.
var _ ports.SiteStore = (*SiteStore)(nil)
