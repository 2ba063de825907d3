package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/artpar/caas/domain/settings"
	"github.com/artpar/caas/ports"
)

// SettingsStore is an in-memory implementation of ports.SettingsStore.
// Every write bumps the revision of the key's scope.
type SettingsStore struct {
	mu        sync.RWMutex
	data      map[string]settings.Setting
	revisions map[string]int64
}

// NewSettingsStore creates a new in-memory settings store.
func NewSettingsStore() *SettingsStore {
	return &SettingsStore{
		data:      make(map[string]settings.Setting),
		revisions: make(map[string]int64),
	}
}

// Get retrieves a single setting by key.
func (s *SettingsStore) Get(ctx context.Context, key string) (settings.Setting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.data[key]
	if !ok {
		return settings.Setting{}, nil
	}
	return st, nil
}

// GetAll retrieves all settings as a map.
func (s *SettingsStore) GetAll(ctx context.Context) (settings.Settings, error) {
	return s.GetByPrefix(ctx, "")
}

// GetByPrefix retrieves all settings with a given prefix.
func (s *SettingsStore) GetByPrefix(ctx context.Context, prefix string) (settings.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(settings.Settings)
	for k, st := range s.data {
		if strings.HasPrefix(k, prefix) {
			result[k] = st.Value
		}
	}
	return result, nil
}

// Set stores or updates a setting.
func (s *SettingsStore) Set(ctx context.Context, key, value string, encrypted bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = settings.Setting{Key: key, Value: value, Encrypted: encrypted, UpdatedAt: time.Now().UTC()}
	s.revisions[settings.ScopeOf(key)]++
	return nil
}

// SetBatch stores or updates multiple settings.
func (s *SettingsStore) SetBatch(ctx context.Context, batch settings.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	scopes := make(map[string]bool)
	for k, v := range batch {
		s.data[k] = settings.Setting{Key: k, Value: v, Encrypted: settings.IsSensitive(k), UpdatedAt: now}
		scopes[settings.ScopeOf(k)] = true
	}
	for scope := range scopes {
		s.revisions[scope]++
	}
	return nil
}

// Delete removes a setting.
func (s *SettingsStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data[key]; ok {
		delete(s.data, key)
		s.revisions[settings.ScopeOf(key)]++
	}
	return nil
}

// Revision returns the write counter of a scope.
func (s *SettingsStore) Revision(ctx context.Context, scope string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revisions[scope], nil
}

// Ensure interface compliance.
var _ ports.SettingsStore = (*SettingsStore)(nil)
