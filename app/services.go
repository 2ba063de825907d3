package app

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/artpar/caas/domain/content"
	"github.com/artpar/caas/domain/execution"
	"github.com/artpar/caas/ports"
)

// ServiceRegistry exposes collaborators to resolvers during execution.
// It is built once at startup and shared read-only.
type ServiceRegistry struct {
	repo    ports.ContentRepository
	baseURL string
	models  map[string]execution.ModelFactory
}

// NewServiceRegistry creates a service registry. baseURL prefixes
// generated content URIs.
func NewServiceRegistry(repo ports.ContentRepository, baseURL string, factories ...execution.ModelFactory) *ServiceRegistry {
	r := &ServiceRegistry{
		repo:    repo,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		models:  make(map[string]execution.ModelFactory, len(factories)+1),
	}
	r.Register(NewMediaModelFactory(r))
	for _, f := range factories {
		r.Register(f)
	}
	return r
}

// Register adds or replaces a model factory. Not safe after serving starts.
func (r *ServiceRegistry) Register(f execution.ModelFactory) {
	r.models[f.Name()] = f
}

// Content returns a content item.
func (r *ServiceRegistry) Content(ctx context.Context, id string) (content.Content, error) {
	return r.repo.Get(ctx, id)
}

// Contents returns the existing items among ids.
func (r *ServiceRegistry) Contents(ctx context.Context, ids []string) ([]content.Content, error) {
	return r.repo.GetMany(ctx, ids)
}

// Model returns a model factory by name.
func (r *ServiceRegistry) Model(name string) (execution.ModelFactory, bool) {
	f, ok := r.models[name]
	return f, ok
}

// URI returns the delivery URI of a content item within the root's site.
func (r *ServiceRegistry) URI(root execution.RootContext, id string) string {
	return fmt.Sprintf("%s/caas/v1/%s/sites/%s/content/%s",
		r.baseURL,
		url.PathEscape(root.TenantID),
		url.PathEscape(root.Site.ID),
		url.PathEscape(id))
}

var _ execution.Services = (*ServiceRegistry)(nil)

// MediaModelName is the model factory used by media fields.
const MediaModelName = execution.MediaModel

// MediaModelFactory builds media resource models from blob properties.
// A blob property is a map with contentType and size entries.
type MediaModelFactory struct {
	services execution.Services
}

// NewMediaModelFactory creates the media model factory.
func NewMediaModelFactory(services execution.Services) *MediaModelFactory {
	return &MediaModelFactory{services: services}
}

// Name returns MediaModelName.
func (f *MediaModelFactory) Name() string {
	return MediaModelName
}

// CreateModel returns nil when the property holds no blob.
func (f *MediaModelFactory) CreateModel(ctx context.Context, root execution.RootContext, c content.Content, property string) (execution.Model, error) {
	v, ok := c.Property(property)
	if !ok || v == nil {
		return nil, nil
	}
	blob, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("property %s of %s is not a blob", property, c.ID)
	}

	return execution.Model{
		"uri":         f.services.URI(root, c.ID) + "/" + url.PathEscape(property),
		"contentType": str(blob["contentType"]),
		"size":        toInt64(blob["size"]),
		"property":    property,
	}, nil
}

func toInt64(v any) int64 {
	switch val := v.(type) {
	case int:
		return int64(val)
	case int64:
		return val
	case float64:
		return int64(val)
	default:
		return 0
	}
}
