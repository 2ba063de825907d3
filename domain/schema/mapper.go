package schema

import (
	"fmt"
	"sort"

	"github.com/artpar/caas/domain/content"
)

// Binding is the resolved schema view of one content type.
type Binding struct {
	ContentType string
	Interface   TypeDef
	Object      TypeDef
	satisfied   map[string]struct{}
}

// Satisfies reports whether instances of the content type match typeName.
func (b Binding) Satisfies(typeName string) bool {
	_, ok := b.satisfied[typeName]
	return ok
}

// SatisfiedNames returns the satisfied type-name set, sorted.
func (b Binding) SatisfiedNames() []string {
	names := make([]string, 0, len(b.satisfied))
	for n := range b.satisfied {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// UnresolvedTypeError reports a content type for which no ancestor-or-self
// has a matching output type. The schema is incomplete relative to the
// content model and must not be served.
type UnresolvedTypeError struct {
	ContentType string
	Kind        Kind
}

func (e *UnresolvedTypeError) Error() string {
	return fmt.Sprintf("content type %q: no %s type found on its inheritance chain", e.ContentType, e.Kind)
}

// MapContentTypes binds every content type of the catalog.
//
// Phase one resolves interface and object types for all content types.
// Phase two computes satisfied type-name sets and only reads phase-one
// bindings, so it must not start before phase one has finished.
func MapContentTypes(reg *Registry, cat *content.Catalog) (map[string]Binding, error) {
	bindings := make(map[string]Binding, cat.Len())

	for _, ct := range cat.Types() {
		chain := cat.Ancestors(ct.Name)

		iface, ok := resolveTarget(chain, "", reg.Interface)
		if !ok {
			return nil, &UnresolvedTypeError{ContentType: ct.Name, Kind: KindInterface}
		}
		obj, ok := resolveTarget(chain, ObjectSuffix, reg.Object)
		if !ok {
			return nil, &UnresolvedTypeError{ContentType: ct.Name, Kind: KindObject}
		}
		bindings[ct.Name] = Binding{ContentType: ct.Name, Interface: iface, Object: obj}
	}

	for _, ct := range cat.Types() {
		b := bindings[ct.Name]
		b.satisfied = make(map[string]struct{})
		for _, ancestor := range cat.Ancestors(ct.Name) {
			obj := bindings[ancestor.Name].Object
			b.satisfied[obj.Name] = struct{}{}
			for _, iface := range obj.Interfaces {
				b.satisfied[iface] = struct{}{}
			}
		}
		bindings[ct.Name] = b
	}

	return bindings, nil
}

// resolveTarget returns the first type named <ancestor><suffix> walking the
// chain root-ward.
func resolveTarget(chain []content.Type, suffix string, lookup func(string) (TypeDef, bool)) (TypeDef, bool) {
	for _, ct := range chain {
		if t, ok := lookup(ct.Name + suffix); ok {
			return t, true
		}
	}
	return TypeDef{}, false
}
