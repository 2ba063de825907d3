// Package ports defines interfaces (contracts) between layers.
// These interfaces enable dependency injection and testability.
// Implementations live in adapters/.
package ports

import (
	"context"
	"time"

	"github.com/artpar/caas/domain/client"
	"github.com/artpar/caas/domain/content"
	"github.com/artpar/caas/domain/definition"
	"github.com/artpar/caas/domain/execution"
	"github.com/artpar/caas/domain/settings"
	"github.com/artpar/caas/domain/site"
)

// -----------------------------------------------------------------------------
// Infrastructure Ports
// -----------------------------------------------------------------------------

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// IDGenerator generates unique identifiers.
type IDGenerator interface {
	New() string
}

// Hasher provides key hashing.
type Hasher interface {
	// Hash generates a hash from plaintext.
	Hash(plaintext string) ([]byte, error)

	// Compare checks if plaintext matches hash.
	Compare(hash []byte, plaintext string) bool
}

// -----------------------------------------------------------------------------
// Content Repository Ports
// -----------------------------------------------------------------------------

// ContentRepository is the read-only view of the content repository.
// Implementations may be slow; callers must not hold locks across calls.
type ContentRepository interface {
	// Types returns the full content-type catalog.
	Types(ctx context.Context) ([]content.Type, error)

	// Get returns a content item. Missing items yield content.ErrNotFound.
	Get(ctx context.Context, id string) (content.Content, error)

	// GetMany returns the existing items among ids, in ids order.
	GetMany(ctx context.Context, ids []string) ([]content.Content, error)
}

// ContentStore adds write access used by import tooling.
type ContentStore interface {
	ContentRepository

	// PutType creates or replaces a content type.
	PutType(ctx context.Context, t content.Type) error

	// Put creates or replaces a content item.
	Put(ctx context.Context, c content.Content) error

	// Delete removes a content item.
	Delete(ctx context.Context, id string) error
}

// -----------------------------------------------------------------------------
// Data Store Ports
// -----------------------------------------------------------------------------

// SiteStore persists delivery sites.
type SiteStore interface {
	// Get retrieves a site of a tenant. Missing sites yield site.ErrNotFound.
	Get(ctx context.Context, tenantID, siteID string) (site.Site, error)

	// List returns all sites.
	List(ctx context.Context) ([]site.Site, error)

	// Create stores a new site.
	Create(ctx context.Context, s site.Site) error

	// Update modifies an existing site.
	Update(ctx context.Context, s site.Site) error

	// Delete removes a site.
	Delete(ctx context.Context, tenantID, siteID string) error
}

// ClientStore persists API clients.
type ClientStore interface {
	// Get retrieves clients matching a key prefix (for validation).
	Get(ctx context.Context, prefix string) ([]client.Client, error)

	// GetByID retrieves a client by id. Unknown ids yield client.ErrNotFound.
	GetByID(ctx context.Context, id string) (client.Client, error)

	// Create stores a new client.
	Create(ctx context.Context, c client.Client) error

	// Revoke marks a client as revoked.
	Revoke(ctx context.Context, id string, at time.Time) error

	// List returns all clients.
	List(ctx context.Context) ([]client.Client, error)
}

// -----------------------------------------------------------------------------
// Settings Ports
// -----------------------------------------------------------------------------

// SettingsStore persists versioned settings.
type SettingsStore interface {
	// Get retrieves a single setting by key.
	Get(ctx context.Context, key string) (settings.Setting, error)

	// GetAll retrieves all settings as a map.
	GetAll(ctx context.Context) (settings.Settings, error)

	// GetByPrefix retrieves all settings with a given prefix.
	GetByPrefix(ctx context.Context, prefix string) (settings.Settings, error)

	// Set stores or updates a setting.
	Set(ctx context.Context, key, value string, encrypted bool) error

	// SetBatch stores or updates multiple settings.
	SetBatch(ctx context.Context, s settings.Settings) error

	// Delete removes a setting.
	Delete(ctx context.Context, key string) error

	// Revision returns the write counter of a scope (see settings.ScopeOf).
	Revision(ctx context.Context, scope string) (int64, error)
}

// -----------------------------------------------------------------------------
// Definition Ports
// -----------------------------------------------------------------------------

// DefinitionSource supplies the versioned definition documents of a site.
type DefinitionSource interface {
	// Revision changes whenever the site's documents change.
	Revision(ctx context.Context, indicator string) (int64, error)

	// Documents returns the site's definition documents keyed by name.
	Documents(ctx context.Context, indicator string) (map[string]definition.Document, error)
}

// DefinitionLoader loads the statically configured fallback documents.
type DefinitionLoader interface {
	Load(ctx context.Context) ([]definition.Document, error)
}

// -----------------------------------------------------------------------------
// Query Ports
// -----------------------------------------------------------------------------

// ExecuteRequest is one query execution against a processing definition.
type ExecuteRequest struct {
	Context   *execution.Context
	Query     string
	Variables map[string]any
}

// ExecuteResult holds engine output. Errors never discard Data.
type ExecuteResult struct {
	Data   any
	Errors []error
}

// QueryEngine parses, validates and executes query documents.
type QueryEngine interface {
	Execute(ctx context.Context, req ExecuteRequest) ExecuteResult
}

// QueryInterceptor hooks into the query pipeline.
// Pre hooks run in registration order, post hooks in reverse order.
type QueryInterceptor interface {
	// Name identifies the interceptor in logs and metrics.
	Name() string

	// PreQuery returns false to skip the request without error.
	PreQuery(ctx context.Context, inv *execution.Invocation) bool

	// PostQuery returns replacement data, or nil to keep data unchanged.
	PostQuery(ctx context.Context, data any, inv *execution.Invocation) any
}

// -----------------------------------------------------------------------------
// Observability Ports
// -----------------------------------------------------------------------------

// QueryMetrics receives pipeline measurements.
type QueryMetrics interface {
	ObserveQuery(tenant, siteID, pd, query, status string, d time.Duration)
	DefinitionCacheHit()
	DefinitionCacheMiss()
	DefinitionBuild(status string)
	InterceptorSkip(name string)
	EngineErrors(n int)
}
