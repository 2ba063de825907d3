package app

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/artpar/caas/domain/cachecontrol"
	"github.com/artpar/caas/domain/settings"
	"github.com/artpar/caas/ports"
)

// SettingsService provides access to runtime settings and site definition
// documents. Writes bump the revision of the written scope, which is what
// the definition cache observes.
type SettingsService struct {
	store  ports.SettingsStore
	logger zerolog.Logger
	mu     sync.RWMutex
	cache  settings.Settings
}

// NewSettingsService creates a new settings service.
func NewSettingsService(store ports.SettingsStore, logger zerolog.Logger) *SettingsService {
	return &SettingsService{
		store:  store,
		logger: logger.With().Str("service", "settings").Logger(),
		cache:  settings.Defaults(),
	}
}

// Load loads all settings from the store and merges with defaults.
func (s *SettingsService) Load(ctx context.Context) error {
	loaded, err := s.store.GetAll(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.cache = settings.Merge(loaded)
	s.mu.Unlock()

	s.logger.Info().Int("count", len(loaded)).Msg("settings loaded from database")
	return nil
}

// Get returns the current settings (read from cache).
func (s *SettingsService) Get() settings.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Return a copy to prevent mutation
	result := make(settings.Settings, len(s.cache))
	for k, v := range s.cache {
		result[k] = v
	}
	return result
}

// GetValue returns a single setting value.
func (s *SettingsService) GetValue(key string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cache.Get(key)
}

// Set updates a setting in both cache and store.
func (s *SettingsService) Set(ctx context.Context, key, value string) error {
	encrypted := settings.IsSensitive(key)
	if err := s.store.Set(ctx, key, value, encrypted); err != nil {
		return err
	}

	s.mu.Lock()
	s.cache[key] = value
	s.mu.Unlock()

	s.logger.Debug().Str("key", key).Str("scope", settings.ScopeOf(key)).Msg("setting updated")
	return nil
}

// Delete removes a setting from both cache and store.
func (s *SettingsService) Delete(ctx context.Context, key string) error {
	if err := s.store.Delete(ctx, key); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.cache, key)
	s.mu.Unlock()

	s.logger.Debug().Str("key", key).Msg("setting deleted")
	return nil
}

// GetByPrefix returns all cached settings with a given prefix.
func (s *SettingsService) GetByPrefix(prefix string) settings.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(settings.Settings)
	for k, v := range s.cache {
		if strings.HasPrefix(k, prefix) {
			result[k] = v
		}
	}
	return result
}

// PutDefinition stores a site definition document.
func (s *SettingsService) PutDefinition(ctx context.Context, indicator, name, document string) error {
	return s.Set(ctx, settings.DefinitionKey(indicator, name), document)
}

// DeleteDefinition removes a site definition document.
func (s *SettingsService) DeleteDefinition(ctx context.Context, indicator, name string) error {
	return s.Delete(ctx, settings.DefinitionKey(indicator, name))
}

// Revision returns the revision of a site's settings scope.
func (s *SettingsService) Revision(ctx context.Context, indicator string) (int64, error) {
	return s.store.Revision(ctx, settings.SiteScope(indicator))
}

// ApplyPolicy overlays runtime service settings on a configured policy.
func (s *SettingsService) ApplyPolicy(base cachecontrol.Policy) cachecontrol.Policy {
	cur := s.Get()
	if cur.Get(settings.KeyServicePreview) != "" {
		base.Preview = cur.GetBool(settings.KeyServicePreview)
	}
	base.DefaultMaxAge = int64(cur.GetInt(settings.KeyServiceCacheTime, int(base.DefaultMaxAge)))
	base.MinMaxAge = int64(cur.GetInt(settings.KeyServiceMinMaxAge, int(base.MinMaxAge)))
	base.MaxMaxAge = int64(cur.GetInt(settings.KeyServiceMaxMaxAge, int(base.MaxMaxAge)))
	return base
}

// DefaultDefinition returns the runtime anonymous definition, or fallback
// when none is set.
func (s *SettingsService) DefaultDefinition(fallback string) string {
	return s.Get().GetOrDefault(settings.KeyClientsDefaultDefinition, fallback)
}

// AdminToken returns the runtime admin token, or fallback when none is set.
func (s *SettingsService) AdminToken(fallback string) string {
	return s.Get().GetOrDefault(settings.KeyAdminToken, fallback)
}

// Store returns the underlying settings store for direct access.
func (s *SettingsService) Store() ports.SettingsStore {
	return s.store
}
