package app

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/artpar/caas/domain/client"
	"github.com/artpar/caas/domain/delivery"
	"github.com/artpar/caas/domain/site"
	"github.com/artpar/caas/ports"
)

// ClientService identifies API clients and manages their keys.
type ClientService struct {
	clients ports.ClientStore
	hasher  ports.Hasher
	clock   ports.Clock
	logger  zerolog.Logger

	// Static configuration (requires restart)
	keyPrefix string

	// Dynamic configuration (hot-reloadable)
	defaultDefinition atomic.Pointer[string]
}

// NewClientService creates a client service. An empty defaultDefinition
// disables anonymous access.
func NewClientService(clients ports.ClientStore, hasher ports.Hasher, clock ports.Clock, keyPrefix, defaultDefinition string, logger zerolog.Logger) *ClientService {
	if keyPrefix == "" {
		keyPrefix = client.DefaultPrefix
	}
	s := &ClientService{
		clients:   clients,
		hasher:    hasher,
		clock:     clock,
		keyPrefix: keyPrefix,
		logger:    logger.With().Str("service", "clients").Logger(),
	}
	s.SetDefaultDefinition(defaultDefinition)
	return s
}

// SetDefaultDefinition updates the definition used for anonymous requests.
func (s *ClientService) SetDefaultDefinition(name string) {
	s.defaultDefinition.Store(&name)
}

// DefaultDefinition returns the definition used for anonymous requests.
func (s *ClientService) DefaultDefinition() string {
	return *s.defaultDefinition.Load()
}

// Identify resolves the caller of a request to a site.
func (s *ClientService) Identify(ctx context.Context, rawKey string, st site.Site) (client.Identification, error) {
	if rawKey == "" {
		def := s.DefaultDefinition()
		if def == "" {
			return client.Identification{}, delivery.ErrInvalidClient.WithMessage("API key is required")
		}
		return client.Identification{DefinitionName: def, Anonymous: true}, nil
	}

	prefix, valid := client.ValidateFormat(rawKey, s.keyPrefix)
	if !valid {
		return client.Identification{}, &delivery.ErrInvalidClient
	}

	candidates, err := s.clients.Get(ctx, prefix)
	if err != nil {
		return client.Identification{}, fmt.Errorf("lookup client: %w", err)
	}

	var matched *client.Client
	for i := range candidates {
		if s.hasher.Compare(candidates[i].Hash, rawKey) {
			matched = &candidates[i]
			break
		}
	}
	if matched == nil {
		return client.Identification{}, &delivery.ErrInvalidClient
	}

	result := client.Validate(*matched, s.clock.Now())
	if !result.Valid {
		s.logger.Debug().Str("client", matched.ID).Str("reason", result.Reason).Msg("client rejected")
		return client.Identification{}, &delivery.ErrInvalidClient
	}

	if !result.Client.Allows(st.TenantID, st.ID) {
		return client.Identification{}, delivery.ErrAccessDenied.WithMessage(
			fmt.Sprintf("Client is not entitled to site %s", st.Key()))
	}

	id := result.Client.Identify()
	if id.DefinitionName == "" {
		id.DefinitionName = s.DefaultDefinition()
	}
	if id.DefinitionName == "" {
		return client.Identification{}, &delivery.ErrAccessDenied
	}
	return id, nil
}

// CreateParams contains parameters for creating a new client.
type CreateParams struct {
	Name       string
	Definition string
	Sites      []string
	ExpiresAt  *time.Time
}

// Create registers a client and returns its raw key. The raw key is not
// stored and cannot be recovered.
func (s *ClientService) Create(ctx context.Context, p CreateParams) (string, client.Client, error) {
	raw, c := client.Generate(s.keyPrefix)

	hash, err := s.hasher.Hash(raw)
	if err != nil {
		return "", client.Client{}, fmt.Errorf("hash key: %w", err)
	}
	c.Hash = hash
	c.CreatedAt = s.clock.Now()
	c.ExpiresAt = p.ExpiresAt
	c = c.WithName(p.Name).WithDefinition(p.Definition).WithSites(p.Sites)

	if err := s.clients.Create(ctx, c); err != nil {
		return "", client.Client{}, fmt.Errorf("store client: %w", err)
	}

	s.logger.Info().Str("client", c.ID).Str("definition", c.DefinitionName).Msg("client created")
	return raw, c, nil
}

// Revoke revokes a client immediately.
func (s *ClientService) Revoke(ctx context.Context, id string) error {
	if err := s.clients.Revoke(ctx, id, s.clock.Now()); err != nil {
		return err
	}
	s.logger.Info().Str("client", id).Msg("client revoked")
	return nil
}

// List returns all clients.
func (s *ClientService) List(ctx context.Context) ([]client.Client, error) {
	return s.clients.List(ctx)
}
