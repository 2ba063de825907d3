package schema

import (
	"fmt"
)

// Registry holds name-keyed lookups for interface and object types.
// It is built once per schema build and read-only afterwards.
type Registry struct {
	types      []TypeDef
	interfaces map[string]TypeDef
	objects    map[string]TypeDef
}

// NewRegistry partitions definitions by kind.
// Duplicate names, unknown kinds, objects implementing undeclared interfaces
// and fields referring to unknown types are rejected.
func NewRegistry(defs []TypeDef) (*Registry, error) {
	r := &Registry{
		types:      append([]TypeDef(nil), defs...),
		interfaces: make(map[string]TypeDef),
		objects:    make(map[string]TypeDef),
	}

	seen := make(map[string]Kind, len(defs))
	for _, d := range defs {
		if d.Name == "" {
			return nil, fmt.Errorf("type definition without name")
		}
		if IsScalar(d.Name) || d.Name == MediaResourceType {
			return nil, fmt.Errorf("type %q: name is reserved", d.Name)
		}
		if prev, dup := seen[d.Name]; dup {
			return nil, fmt.Errorf("type %q defined twice (%s, %s)", d.Name, prev, d.Kind)
		}
		seen[d.Name] = d.Kind

		switch d.Kind {
		case KindInterface:
			if len(d.Interfaces) > 0 {
				return nil, fmt.Errorf("interface %q cannot implement interfaces", d.Name)
			}
			r.interfaces[d.Name] = d
		case KindObject:
			r.objects[d.Name] = d
		default:
			return nil, fmt.Errorf("type %q: unknown kind %q", d.Name, d.Kind)
		}
	}

	for _, o := range r.objects {
		for _, iface := range o.Interfaces {
			if _, ok := r.interfaces[iface]; !ok {
				return nil, fmt.Errorf("object %q implements unknown interface %q", o.Name, iface)
			}
		}
	}

	for _, d := range r.types {
		if err := r.checkFields(d); err != nil {
			return nil, err
		}
	}

	return r, nil
}

func (r *Registry) checkFields(d TypeDef) error {
	names := make(map[string]bool, len(d.Fields))
	for _, f := range d.Fields {
		if f.Name == "" {
			return fmt.Errorf("type %q: field without name", d.Name)
		}
		if names[f.Name] {
			return fmt.Errorf("type %q: field %q defined twice", d.Name, f.Name)
		}
		names[f.Name] = true

		ref, err := ParseTypeRef(f.Type)
		if err != nil {
			return fmt.Errorf("type %q field %q: %w", d.Name, f.Name, err)
		}
		kind := FieldKindOf(f, ref)
		switch kind {
		case FieldProperty:
			if !IsScalar(ref.Name) {
				return fmt.Errorf("type %q field %q: property fields need a scalar type, got %q", d.Name, f.Name, ref.Name)
			}
		case FieldURI:
			if ref.Name != "String" || ref.List {
				return fmt.Errorf("type %q field %q: uri fields are String", d.Name, f.Name)
			}
		case FieldMedia:
			if ref.Name != MediaResourceType {
				return fmt.Errorf("type %q field %q: media fields are %s", d.Name, f.Name, MediaResourceType)
			}
		case FieldLink:
			if !r.Has(ref.Name) {
				return fmt.Errorf("type %q field %q: unknown type %q", d.Name, f.Name, ref.Name)
			}
		default:
			return fmt.Errorf("type %q field %q: unknown kind %q", d.Name, f.Name, f.Kind)
		}
		if f.InstanceOf != "" && !r.Has(f.InstanceOf) {
			return fmt.Errorf("type %q field %q: instanceOf unknown type %q", d.Name, f.Name, f.InstanceOf)
		}
	}
	return nil
}

// FieldKindOf returns the declared kind or infers it from the type reference.
func FieldKindOf(f FieldDef, ref TypeRef) FieldKind {
	if f.Kind != "" {
		return f.Kind
	}
	switch {
	case IsScalar(ref.Name):
		return FieldProperty
	case ref.Name == MediaResourceType:
		return FieldMedia
	default:
		return FieldLink
	}
}

// Interface returns the interface type with the given name.
func (r *Registry) Interface(name string) (TypeDef, bool) {
	t, ok := r.interfaces[name]
	return t, ok
}

// Object returns the object type with the given name.
func (r *Registry) Object(name string) (TypeDef, bool) {
	t, ok := r.objects[name]
	return t, ok
}

// Has reports whether name is a registered interface or object type.
func (r *Registry) Has(name string) bool {
	if _, ok := r.interfaces[name]; ok {
		return true
	}
	_, ok := r.objects[name]
	return ok
}

// Types returns the definitions in their original order.
func (r *Registry) Types() []TypeDef {
	return r.types
}
