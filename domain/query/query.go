// Package query provides named, viewed query definitions and the per-definition
// query registry.
// This package has NO dependencies on I/O or external packages.
package query

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// DefaultView is used when a request names no view.
const DefaultView = "default"

// OptionCacheFor overrides the service default max-age in seconds.
const OptionCacheFor = "cacheFor"

// Definition is a named, viewed query body (immutable value type).
type Definition struct {
	Name        string
	View        string
	Query       string            // generic text, used for list targets and as fallback
	TypeQueries map[string]string // object type name -> specialized text
	Options     map[string]string
}

// QueryFor returns the specialized text for typeName. When no specialization
// exists the generic text is returned.
func (d *Definition) QueryFor(typeName string) string {
	if q, ok := d.TypeQueries[typeName]; ok && q != "" {
		return q
	}
	return d.Query
}

// Option returns a raw option value.
func (d *Definition) Option(key string) (string, bool) {
	v, ok := d.Options[key]
	return v, ok
}

// CacheFor returns the cacheFor override in seconds.
// ok is false when the option is absent; err is set when it is malformed.
func (d *Definition) CacheFor() (seconds int64, ok bool, err error) {
	raw, ok := d.Option(OptionCacheFor)
	if !ok {
		return 0, false, nil
	}
	seconds, err = strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, true, fmt.Errorf("option %s=%q: not an integer", OptionCacheFor, raw)
	}
	if seconds < 0 {
		return 0, true, fmt.Errorf("option %s=%q: negative", OptionCacheFor, raw)
	}
	return seconds, true, nil
}

// Key identifies a definition within a registry.
func Key(name, view string) string {
	if view == "" {
		view = DefaultView
	}
	return name + "#" + view
}

// Registry maps (name, view) to query definitions.
// Definitions are fixed at construction; the parsed-document cache is the
// only mutable part and tolerates racing writers.
type Registry struct {
	defs map[string]*Definition
	docs sync.Map
}

// NewRegistry indexes definitions. An empty view means DefaultView.
func NewRegistry(defs []Definition) (*Registry, error) {
	r := &Registry{defs: make(map[string]*Definition, len(defs))}
	for i := range defs {
		d := defs[i]
		if d.Name == "" {
			return nil, fmt.Errorf("query definition without name")
		}
		if d.View == "" {
			d.View = DefaultView
		}
		if d.Query == "" && len(d.TypeQueries) == 0 {
			return nil, fmt.Errorf("query %s has no query text", Key(d.Name, d.View))
		}
		k := Key(d.Name, d.View)
		if _, dup := r.defs[k]; dup {
			return nil, fmt.Errorf("query %s defined twice", k)
		}
		r.defs[k] = &d
	}
	return r, nil
}

// Definition returns the definition for (name, view).
func (r *Registry) Definition(name, view string) (*Definition, bool) {
	d, ok := r.defs[Key(name, view)]
	return d, ok
}

// Keys returns the sorted name#view keys.
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.defs))
	for k := range r.defs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of definitions.
func (r *Registry) Len() int {
	return len(r.defs)
}

// Document returns a cached parsed document. scope separates documents
// validated against different schemas.
func (r *Registry) Document(scope, text string) (any, bool) {
	return r.docs.Load(docKey{scope, text})
}

// StoreDocument caches a parsed document. Concurrent stores of the same
// text are harmless.
func (r *Registry) StoreDocument(scope, text string, doc any) {
	r.docs.Store(docKey{scope, text}, doc)
}

type docKey struct {
	scope string
	text  string
}
