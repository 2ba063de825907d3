// Package content provides value types for the content repository's type
// hierarchy and content items.
// This package has NO dependencies on I/O or external packages.
package content

import (
	"errors"
	"fmt"
	"sort"
)

// ErrNotFound is returned by repositories when a content item or type does not exist.
var ErrNotFound = errors.New("content not found")

// Type is a node in the content-type forest (immutable value type).
type Type struct {
	Name   string
	Parent string // empty for a root type
}

// Content is a content-backed value (immutable value type).
type Content struct {
	ID         string
	Type       string
	Name       string
	Properties map[string]any
}

// Property returns a property value and whether it is set.
func (c Content) Property(name string) (any, bool) {
	v, ok := c.Properties[name]
	return v, ok
}

// List is a homogeneous collection of content used as a query target.
// A List is never content-backed itself.
type List []Content

// Catalog indexes the full content-type list of a repository.
// It is built once and read-only afterwards.
type Catalog struct {
	types map[string]Type
	order []string
}

// NewCatalog builds a catalog and checks the forest invariants:
// unique names, existing parents and no cycles.
func NewCatalog(types []Type) (*Catalog, error) {
	c := &Catalog{
		types: make(map[string]Type, len(types)),
		order: make([]string, 0, len(types)),
	}

	for _, t := range types {
		if t.Name == "" {
			return nil, fmt.Errorf("content type without name")
		}
		if _, dup := c.types[t.Name]; dup {
			return nil, fmt.Errorf("duplicate content type %q", t.Name)
		}
		c.types[t.Name] = t
		c.order = append(c.order, t.Name)
	}

	for _, t := range types {
		if t.Parent != "" {
			if _, ok := c.types[t.Parent]; !ok {
				return nil, fmt.Errorf("content type %q: unknown parent %q", t.Name, t.Parent)
			}
		}
		// Every chain must reach a root within len(types) steps.
		steps := 0
		for cur := t; cur.Parent != ""; cur = c.types[cur.Parent] {
			steps++
			if steps > len(types) {
				return nil, fmt.Errorf("content type %q: inheritance cycle", t.Name)
			}
		}
	}

	return c, nil
}

// Get returns a content type by name.
func (c *Catalog) Get(name string) (Type, bool) {
	t, ok := c.types[name]
	return t, ok
}

// Types returns all content types in catalog order.
func (c *Catalog) Types() []Type {
	result := make([]Type, 0, len(c.order))
	for _, name := range c.order {
		result = append(result, c.types[name])
	}
	return result
}

// Names returns the sorted type names.
func (c *Catalog) Names() []string {
	names := append([]string(nil), c.order...)
	sort.Strings(names)
	return names
}

// Ancestors returns the chain starting at name itself and walking parent
// links root-ward. Unknown names yield nil.
func (c *Catalog) Ancestors(name string) []Type {
	t, ok := c.types[name]
	if !ok {
		return nil
	}
	chain := []Type{t}
	for t.Parent != "" {
		t = c.types[t.Parent]
		chain = append(chain, t)
	}
	return chain
}

// Len returns the number of content types.
func (c *Catalog) Len() int {
	return len(c.order)
}
