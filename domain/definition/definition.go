// Package definition provides processing definitions: named, site-scoped
// bundles of a query registry and a schema service.
package definition

import (
	"sync"

	"github.com/artpar/caas/domain/query"
	"github.com/artpar/caas/domain/schema"
)

// ProcessingDefinition bundles queries and schema for one site.
// Queries and Schema are immutable after Build.
type ProcessingDefinition struct {
	Name        string
	Description string
	Queries     *query.Registry
	Schema      *schema.Service

	mu       sync.Mutex
	compiled map[string]*compiledEntry
}

type compiledEntry struct {
	once  sync.Once
	value any
	err   error
}

// Invalid marks a definition whose document failed to build.
// Lookups treat it like a missing definition.
var Invalid = &ProcessingDefinition{Name: "INVALID"}

// IsValid reports whether pd can serve queries.
func (pd *ProcessingDefinition) IsValid() bool {
	return pd != nil && pd != Invalid && pd.Queries != nil && pd.Schema != nil
}

// Compiled memoizes an engine artifact derived from this definition.
// build runs at most once per key; concurrent callers wait for it.
func (pd *ProcessingDefinition) Compiled(key string, build func() (any, error)) (any, error) {
	pd.mu.Lock()
	if pd.compiled == nil {
		pd.compiled = make(map[string]*compiledEntry)
	}
	e, ok := pd.compiled[key]
	if !ok {
		e = &compiledEntry{}
		pd.compiled[key] = e
	}
	pd.mu.Unlock()

	e.once.Do(func() {
		e.value, e.err = build()
	})
	return e.value, e.err
}
