package definitions

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/artpar/caas/domain/definition"
	"github.com/artpar/caas/domain/settings"
	"github.com/artpar/caas/ports"
)

// SettingsSource reads site definition documents from the settings store.
// Documents live under settings.DefinitionPrefix(indicator).
type SettingsSource struct {
	store  ports.SettingsStore
	logger zerolog.Logger
}

// NewSettingsSource creates a settings-backed definition source.
func NewSettingsSource(store ports.SettingsStore, logger zerolog.Logger) *SettingsSource {
	return &SettingsSource{
		store:  store,
		logger: logger.With().Str("component", "definition_source").Logger(),
	}
}

// Revision returns the revision of the site's settings scope.
func (s *SettingsSource) Revision(ctx context.Context, indicator string) (int64, error) {
	return s.store.Revision(ctx, settings.SiteScope(indicator))
}

// Documents returns the site's documents keyed by name.
// Undecodable documents are returned empty so the build marks them invalid.
func (s *SettingsSource) Documents(ctx context.Context, indicator string) (map[string]definition.Document, error) {
	values, err := s.store.GetByPrefix(ctx, settings.DefinitionPrefix(indicator))
	if err != nil {
		return nil, fmt.Errorf("read site settings: %w", err)
	}

	docs := make(map[string]definition.Document, len(values))
	for key, value := range values {
		_, name, ok := settings.ParseDefinitionKey(key)
		if !ok {
			continue
		}
		doc, err := DecodeSetting(value)
		if err != nil {
			s.logger.Error().Err(err).
				Str("site", indicator).
				Str("definition", name).
				Msg("undecodable definition document")
			docs[name] = definition.Document{Name: name}
			continue
		}
		doc.Name = name
		docs[name] = doc
	}
	return docs, nil
}

var _ ports.DefinitionSource = (*SettingsSource)(nil)
