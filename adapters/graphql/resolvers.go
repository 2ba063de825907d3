package graphql

import (
	"errors"
	"fmt"

	"github.com/graphql-go/graphql"

	"github.com/artpar/caas/domain/content"
	"github.com/artpar/caas/domain/execution"
	"github.com/artpar/caas/domain/schema"
)

var errNoContext = errors.New("resolver called without execution context")

func execContext(p graphql.ResolveParams) (*execution.Context, error) {
	ec, ok := execution.FromContext(p.Context)
	if !ok {
		return nil, errNoContext
	}
	return ec, nil
}

func resolveTarget(p graphql.ResolveParams) (any, error) {
	ec, err := execContext(p)
	if err != nil {
		return nil, err
	}
	c, ok := ec.Root.TargetContent()
	if !ok {
		return nil, fmt.Errorf("target is not a content item")
	}
	return c, nil
}

func resolveTargetURI(p graphql.ResolveParams) (any, error) {
	ec, err := execContext(p)
	if err != nil {
		return nil, err
	}
	c, ok := ec.Root.TargetContent()
	if !ok {
		return nil, nil
	}
	return ec.Services.URI(ec.Root, c.ID), nil
}

func resolveItems(p graphql.ResolveParams) (any, error) {
	ec, err := execContext(p)
	if err != nil {
		return nil, err
	}
	list, ok := ec.Root.Target.(content.List)
	if !ok {
		return nil, fmt.Errorf("target is not a list")
	}
	return []content.Content(list), nil
}

func resolveSize(p graphql.ResolveParams) (any, error) {
	ec, err := execContext(p)
	if err != nil {
		return nil, err
	}
	list, _ := ec.Root.Target.(content.List)
	return len(list), nil
}

func resolveID(p graphql.ResolveParams) (any, error) {
	c, ok := schema.AsContent(p.Source)
	if !ok {
		return nil, nil
	}
	return c.ID, nil
}

func resolveName(p graphql.ResolveParams) (any, error) {
	c, ok := schema.AsContent(p.Source)
	if !ok {
		return nil, nil
	}
	return c.Name, nil
}

// fieldResolver returns the resolver for a declared field.
func fieldResolver(fd schema.FieldDef, ref schema.TypeRef) graphql.FieldResolveFn {
	prop := fd.SourceProperty()
	switch schema.FieldKindOf(fd, ref) {
	case schema.FieldURI:
		return uriResolver(fd)
	case schema.FieldMedia:
		return mediaResolver(prop)
	case schema.FieldLink:
		return linkResolver(prop, fd.InstanceOf, ref.List)
	default:
		return propertyResolver(prop)
	}
}

func propertyResolver(prop string) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (any, error) {
		c, ok := schema.AsContent(p.Source)
		if !ok {
			return nil, nil
		}
		v, _ := c.Property(prop)
		return v, nil
	}
}

// uriResolver yields the URI of the content itself, or of the content
// linked by the field's property when one is declared.
func uriResolver(fd schema.FieldDef) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (any, error) {
		ec, err := execContext(p)
		if err != nil {
			return nil, err
		}
		c, ok := schema.AsContent(p.Source)
		if !ok {
			return nil, nil
		}
		id := c.ID
		if fd.Property != "" {
			ids := linkIDs(c, fd.Property)
			if len(ids) == 0 {
				return nil, nil
			}
			id = ids[0]
		}
		return ec.Services.URI(ec.Root, id), nil
	}
}

func mediaResolver(prop string) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (any, error) {
		ec, err := execContext(p)
		if err != nil {
			return nil, err
		}
		c, ok := schema.AsContent(p.Source)
		if !ok {
			return nil, nil
		}
		factory, ok := ec.Services.Model(execution.MediaModel)
		if !ok {
			return nil, fmt.Errorf("model factory %q not registered", execution.MediaModel)
		}
		model, err := factory.CreateModel(p.Context, ec.Root, c, prop)
		if err != nil || model == nil {
			return nil, err
		}
		return map[string]any(model), nil
	}
}

// linkResolver follows content ids stored in a property. Links to missing
// content are dropped, as are links failing the instanceOf filter.
func linkResolver(prop, instanceOf string, list bool) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (any, error) {
		ec, err := execContext(p)
		if err != nil {
			return nil, err
		}
		c, ok := schema.AsContent(p.Source)
		if !ok {
			return nil, nil
		}
		ids := linkIDs(c, prop)

		accept := func(v content.Content) bool {
			return instanceOf == "" || ec.Definition.Schema.IsInstanceOf(v, instanceOf)
		}

		if !list {
			if len(ids) == 0 {
				return nil, nil
			}
			linked, err := ec.Services.Content(p.Context, ids[0])
			if errors.Is(err, content.ErrNotFound) {
				return nil, nil
			}
			if err != nil {
				return nil, err
			}
			if !accept(linked) {
				return nil, nil
			}
			return linked, nil
		}

		if len(ids) == 0 {
			return []content.Content{}, nil
		}
		linked, err := ec.Services.Contents(p.Context, ids)
		if err != nil {
			return nil, err
		}
		result := make([]content.Content, 0, len(linked))
		for _, v := range linked {
			if accept(v) {
				result = append(result, v)
			}
		}
		return result, nil
	}
}

// linkIDs reads one or more content ids from a property.
func linkIDs(c content.Content, prop string) []string {
	v, ok := c.Property(prop)
	if !ok || v == nil {
		return nil
	}
	switch val := v.(type) {
	case string:
		if val == "" {
			return nil
		}
		return []string{val}
	case []string:
		return val
	case []any:
		ids := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok && s != "" {
				ids = append(ids, s)
			}
		}
		return ids
	}
	return nil
}
