package schema

import (
	"fmt"

	"github.com/artpar/caas/domain/content"
)

// ResolutionError reports a runtime value without a schema type.
// It is fatal for the query, not for the process.
type ResolutionError struct {
	Kind  Kind
	Value string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("%s type not resolved: %s", e.Kind, e.Value)
}

// Service is the read-only facade over a schema build.
type Service struct {
	registry *Registry
	catalog  *content.Catalog
	bindings map[string]Binding
}

// NewService builds the registry and content-type bindings.
// Any error is a configuration error of the schema.
func NewService(defs []TypeDef, cat *content.Catalog) (*Service, error) {
	reg, err := NewRegistry(defs)
	if err != nil {
		return nil, fmt.Errorf("type registry: %w", err)
	}

	bindings, err := MapContentTypes(reg, cat)
	if err != nil {
		return nil, err
	}

	return &Service{registry: reg, catalog: cat, bindings: bindings}, nil
}

// Types returns the ordered type list for schema assembly.
func (s *Service) Types() []TypeDef {
	return s.registry.Types()
}

// Interface returns an interface type by name.
func (s *Service) Interface(name string) (TypeDef, bool) {
	return s.registry.Interface(name)
}

// Object returns an object type by name.
func (s *Service) Object(name string) (TypeDef, bool) {
	return s.registry.Object(name)
}

// Catalog returns the content-type catalog the schema was built against.
func (s *Service) Catalog() *content.Catalog {
	return s.catalog
}

// Binding returns the binding of a content type.
func (s *Service) Binding(contentType string) (Binding, bool) {
	b, ok := s.bindings[contentType]
	return b, ok
}

// ResolveInterfaceType returns the interface type of a content-backed value.
func (s *Service) ResolveInterfaceType(value any) (TypeDef, error) {
	if c, ok := AsContent(value); ok {
		if b, ok := s.bindings[c.Type]; ok {
			return b.Interface, nil
		}
	}
	return TypeDef{}, &ResolutionError{Kind: KindInterface, Value: describe(value)}
}

// ResolveObjectType returns the object type of a content-backed value.
func (s *Service) ResolveObjectType(value any) (TypeDef, error) {
	if c, ok := AsContent(value); ok {
		if b, ok := s.bindings[c.Type]; ok {
			return b.Object, nil
		}
	}
	return TypeDef{}, &ResolutionError{Kind: KindObject, Value: describe(value)}
}

// IsInstanceOf reports whether value's content type satisfies typeName.
// Values that are not content-backed are never instances.
func (s *Service) IsInstanceOf(value any, typeName string) bool {
	c, ok := AsContent(value)
	if !ok {
		return false
	}
	b, ok := s.bindings[c.Type]
	if !ok {
		return false
	}
	return b.Satisfies(typeName)
}

// AsContent unwraps a content-backed value.
func AsContent(value any) (content.Content, bool) {
	switch v := value.(type) {
	case content.Content:
		return v, true
	case *content.Content:
		if v != nil {
			return *v, true
		}
	}
	return content.Content{}, false
}

func describe(value any) string {
	if c, ok := AsContent(value); ok {
		return fmt.Sprintf("content %s (%s)", c.ID, c.Type)
	}
	return fmt.Sprintf("%T", value)
}
