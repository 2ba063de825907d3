// Package execution provides the per-call values of the query pipeline:
// root context, execution context and interceptor invocation.
package execution

import (
	"context"

	"github.com/artpar/caas/domain/client"
	"github.com/artpar/caas/domain/content"
	"github.com/artpar/caas/domain/definition"
	"github.com/artpar/caas/domain/query"
	"github.com/artpar/caas/domain/site"
)

// RootContext is the resolved starting point of a query.
type RootContext struct {
	TenantID string
	Site     site.Site
	Target   any // content.Content or content.List
}

// IsList reports whether the target is a list aggregate.
func (r RootContext) IsList() bool {
	_, ok := r.Target.(content.List)
	return ok
}

// TargetContent returns the target when it is content-backed.
func (r RootContext) TargetContent() (content.Content, bool) {
	c, ok := r.Target.(content.Content)
	return c, ok
}

// MediaModel names the model factory behind media fields.
const MediaModel = "media"

// Model is a value produced by a model factory.
type Model map[string]any

// ModelFactory creates derived models of content properties.
type ModelFactory interface {
	Name() string
	CreateModel(ctx context.Context, root RootContext, c content.Content, property string) (Model, error)
}

// Services gives resolvers access to collaborators during execution.
type Services interface {
	Content(ctx context.Context, id string) (content.Content, error)
	Contents(ctx context.Context, ids []string) ([]content.Content, error)
	Model(name string) (ModelFactory, bool)
	URI(root RootContext, id string) string
}

// Context is created fresh for every query execution and never shared.
type Context struct {
	Definition *definition.ProcessingDefinition
	Services   Services
	Root       RootContext
}

// Invocation carries everything interceptors see about one request.
type Invocation struct {
	TenantID   string
	SiteID     string
	Client     client.Identification
	Root       RootContext
	Definition *definition.ProcessingDefinition
	Query      *query.Definition
	View       string
	Params     map[string]string
	Headers    map[string]string // request context from the transport
}

type contextKey struct{}

// WithContext attaches an execution context to ctx for resolvers.
func WithContext(ctx context.Context, ec *Context) context.Context {
	return context.WithValue(ctx, contextKey{}, ec)
}

// FromContext returns the execution context attached to ctx.
func FromContext(ctx context.Context) (*Context, bool) {
	ec, ok := ctx.Value(contextKey{}).(*Context)
	return ec, ok && ec != nil
}
