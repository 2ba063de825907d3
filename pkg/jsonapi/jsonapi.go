// Package jsonapi writes JSON:API documents (https://jsonapi.org) for the
// admin API and for error responses of the delivery API.
package jsonapi

// ContentType is the JSON:API media type.
const ContentType = "application/vnd.api+json"

// Document is a top-level document. At least one member is set.
type Document struct {
	Data   any     `json:"data,omitempty"`
	Errors []Error `json:"errors,omitempty"`
	Meta   Meta    `json:"meta,omitempty"`
}

// Resource is a resource object.
type Resource struct {
	Type       string         `json:"type"`
	ID         string         `json:"id"`
	Attributes map[string]any `json:"attributes,omitempty"`
	Meta       Meta           `json:"meta,omitempty"`
}

// Meta holds non-standard information.
type Meta map[string]any

// ResourceBuilder assembles a Resource attribute by attribute.
type ResourceBuilder struct {
	r Resource
}

// NewResource starts a resource of the given type and id.
func NewResource(resourceType, id string) *ResourceBuilder {
	return &ResourceBuilder{r: Resource{Type: resourceType, ID: id, Attributes: map[string]any{}}}
}

// Attr sets an attribute.
func (b *ResourceBuilder) Attr(key string, value any) *ResourceBuilder {
	b.r.Attributes[key] = value
	return b
}

// Meta sets a resource-level meta entry.
func (b *ResourceBuilder) Meta(key string, value any) *ResourceBuilder {
	if b.r.Meta == nil {
		b.r.Meta = Meta{}
	}
	b.r.Meta[key] = value
	return b
}

// Build returns the resource.
func (b *ResourceBuilder) Build() Resource {
	return b.r
}
