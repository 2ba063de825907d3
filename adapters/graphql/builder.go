package graphql

import (
	"fmt"

	"github.com/graphql-go/graphql"

	"github.com/artpar/caas/domain/definition"
	"github.com/artpar/caas/domain/schema"
)

// Names of the generated root types.
const (
	QueryType      = "Query"
	AnyContentType = "AnyContent"
)

// Built-in fields added to every content type unless the definition
// declares a field of the same name.
const (
	FieldID   = "id"
	FieldName = "name"
)

// builder assembles graphql types for one processing definition.
// A builder is used for a single schema and then discarded.
type builder struct {
	pd         *definition.ProcessingDefinition
	interfaces map[string]*graphql.Interface
	objects    map[string]*graphql.Object
	media      *graphql.Object
}

func newBuilder(pd *definition.ProcessingDefinition) *builder {
	return &builder{
		pd:         pd,
		interfaces: make(map[string]*graphql.Interface),
		objects:    make(map[string]*graphql.Object),
	}
}

// build creates every interface and object type. Field sets are thunks so
// types may reference each other in any order.
func (b *builder) build() error {
	svc := b.pd.Schema
	for _, td := range svc.Types() {
		if td.Name == QueryType || td.Name == AnyContentType {
			return fmt.Errorf("type name %q is reserved", td.Name)
		}
	}

	b.media = graphql.NewObject(graphql.ObjectConfig{
		Name:        schema.MediaResourceType,
		Description: "A media resource derived from a blob property.",
		Fields: graphql.Fields{
			"uri":         &graphql.Field{Type: graphql.String},
			"contentType": &graphql.Field{Type: graphql.String},
			"size":        &graphql.Field{Type: graphql.Int},
			"property":    &graphql.Field{Type: graphql.String},
		},
	})

	for _, td := range svc.Types() {
		if !td.IsInterface() {
			continue
		}
		td := td
		b.interfaces[td.Name] = graphql.NewInterface(graphql.InterfaceConfig{
			Name:        td.Name,
			Description: td.Description,
			Fields:      graphql.FieldsThunk(func() graphql.Fields { return b.fields(td) }),
			ResolveType: b.resolveType,
		})
	}

	for _, td := range svc.Types() {
		if td.IsInterface() {
			continue
		}
		td := td
		ifaces := make([]*graphql.Interface, 0, len(td.Interfaces))
		for _, name := range td.Interfaces {
			iface, ok := b.interfaces[name]
			if !ok {
				return fmt.Errorf("object %q: unknown interface %q", td.Name, name)
			}
			ifaces = append(ifaces, iface)
		}
		b.objects[td.Name] = graphql.NewObject(graphql.ObjectConfig{
			Name:        td.Name,
			Description: td.Description,
			Interfaces:  ifaces,
			Fields:      graphql.FieldsThunk(func() graphql.Fields { return b.fields(td) }),
		})
	}
	return nil
}

// resolveType picks the object type bound to the value's content type.
func (b *builder) resolveType(p graphql.ResolveTypeParams) *graphql.Object {
	td, err := b.pd.Schema.ResolveObjectType(p.Value)
	if err != nil {
		return nil
	}
	return b.objects[td.Name]
}

func (b *builder) fields(td schema.TypeDef) graphql.Fields {
	fields := graphql.Fields{
		FieldID: &graphql.Field{
			Type:    graphql.NewNonNull(graphql.ID),
			Resolve: resolveID,
		},
		FieldName: &graphql.Field{
			Type:    graphql.String,
			Resolve: resolveName,
		},
	}
	for _, fd := range td.Fields {
		ref, err := schema.ParseTypeRef(fd.Type)
		if err != nil {
			// rejected by the registry already
			continue
		}
		fields[fd.Name] = &graphql.Field{
			Type:        b.output(ref),
			Description: fd.Description,
			Resolve:     fieldResolver(fd, ref),
		}
	}
	return fields
}

// output converts a type reference to a graphql output type.
func (b *builder) output(ref schema.TypeRef) graphql.Output {
	var t graphql.Output = b.named(ref.Name)
	if ref.List {
		if ref.ElemNonNull {
			t = graphql.NewNonNull(t)
		}
		t = graphql.NewList(t)
	}
	if ref.NonNull {
		t = graphql.NewNonNull(t)
	}
	return t
}

func (b *builder) named(name string) graphql.Output {
	switch name {
	case "String":
		return graphql.String
	case "Int":
		return graphql.Int
	case "Float":
		return graphql.Float
	case "Boolean":
		return graphql.Boolean
	case "ID":
		return graphql.ID
	case schema.MediaResourceType:
		return b.media
	}
	if iface, ok := b.interfaces[name]; ok {
		return iface
	}
	return b.objects[name]
}

// contentRoot builds the root type for a single content target whose
// interface type is ifaceName.
func (b *builder) contentRoot(ifaceName string) (*graphql.Object, error) {
	iface, ok := b.interfaces[ifaceName]
	if !ok {
		return nil, fmt.Errorf("unknown interface %q", ifaceName)
	}
	return graphql.NewObject(graphql.ObjectConfig{
		Name: QueryType,
		Fields: graphql.Fields{
			"content": &graphql.Field{
				Type:    graphql.NewNonNull(iface),
				Resolve: resolveTarget,
			},
			"uri": &graphql.Field{
				Type:    graphql.String,
				Resolve: resolveTargetURI,
			},
		},
	}), nil
}

// listRoot builds the root type for list targets. Items are exposed
// through a union of all object types.
func (b *builder) listRoot() (*graphql.Object, error) {
	if len(b.objects) == 0 {
		return nil, fmt.Errorf("definition %s has no object types", b.pd.Name)
	}
	types := make([]*graphql.Object, 0, len(b.objects))
	for _, td := range b.pd.Schema.Types() {
		if obj, ok := b.objects[td.Name]; ok {
			types = append(types, obj)
		}
	}
	union := graphql.NewUnion(graphql.UnionConfig{
		Name:        AnyContentType,
		Types:       types,
		ResolveType: b.resolveType,
	})
	return graphql.NewObject(graphql.ObjectConfig{
		Name: QueryType,
		Fields: graphql.Fields{
			"items": &graphql.Field{
				Type:    graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(union))),
				Resolve: resolveItems,
			},
			"size": &graphql.Field{
				Type:    graphql.NewNonNull(graphql.Int),
				Resolve: resolveSize,
			},
		},
	}), nil
}

// schemaFor assembles a schema around a root type. Every built type is
// registered so fragments on types unreachable from the root validate.
func (b *builder) schemaFor(root *graphql.Object) (graphql.Schema, error) {
	types := []graphql.Type{b.media}
	for _, td := range b.pd.Schema.Types() {
		if iface, ok := b.interfaces[td.Name]; ok {
			types = append(types, iface)
		}
		if obj, ok := b.objects[td.Name]; ok {
			types = append(types, obj)
		}
	}
	return graphql.NewSchema(graphql.SchemaConfig{
		Query: root,
		Types: types,
	})
}
