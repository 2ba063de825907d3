package app

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/artpar/caas/domain/content"
	"github.com/artpar/caas/domain/definition"
	"github.com/artpar/caas/ports"
)

// DefinitionSet maps definition names to processing definitions.
// Failed builds map to definition.Invalid.
type DefinitionSet map[string]*definition.ProcessingDefinition

// Names returns the sorted definition names.
func (s DefinitionSet) Names() []string {
	names := make([]string, 0, len(s))
	for n := range s {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

type cacheEntry struct {
	key  string
	defs DefinitionSet
}

// DefinitionCache lazily builds and caches the processing definitions of
// each site. The cache key folds in the source revision of the site, so a
// settings change misses without explicit invalidation.
type DefinitionCache struct {
	source  ports.DefinitionSource
	repo    ports.ContentRepository
	metrics ports.QueryMetrics
	logger  zerolog.Logger

	mu      sync.RWMutex
	entries map[string]cacheEntry // by site indicator
	gens    map[string]uint64     // per-site invalidation count, guarded by mu
	epoch   uint64                // bumped by InvalidateAll, guarded by mu
	group   singleflight.Group

	static atomic.Pointer[DefinitionSet]
	check  func(*definition.ProcessingDefinition) error
}

// NewDefinitionCache creates a definition cache.
func NewDefinitionCache(source ports.DefinitionSource, repo ports.ContentRepository, metrics ports.QueryMetrics, logger zerolog.Logger) *DefinitionCache {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	c := &DefinitionCache{
		source:  source,
		repo:    repo,
		metrics: metrics,
		logger:  logger.With().Str("service", "definitions").Logger(),
		entries: make(map[string]cacheEntry),
		gens:    make(map[string]uint64),
	}
	empty := DefinitionSet{}
	c.static.Store(&empty)
	return c
}

// SetCheck installs an extra check run on every built definition, typically
// compiling its engine schemas. A failing check makes the definition invalid.
// It must be called before the cache is used.
func (c *DefinitionCache) SetCheck(check func(*definition.ProcessingDefinition) error) {
	c.check = check
}

// Validate builds a document against the current content types without
// caching the result.
func (c *DefinitionCache) Validate(ctx context.Context, doc definition.Document) (*definition.ProcessingDefinition, error) {
	cat, err := c.catalog(ctx)
	if err != nil {
		return nil, err
	}
	return c.buildOne(doc, cat)
}

func (c *DefinitionCache) buildOne(doc definition.Document, cat *content.Catalog) (*definition.ProcessingDefinition, error) {
	pd, err := definition.Build(doc, cat)
	if err != nil {
		return nil, err
	}
	if c.check != nil {
		if err := c.check(pd); err != nil {
			return nil, fmt.Errorf("definition %s: %w", doc.Name, err)
		}
	}
	return pd, nil
}

// Get returns the processing definitions of a site.
// No lock is held while the source or the repository is called. Concurrent
// misses share one build, which is detached from the callers' contexts so
// that an aborted request does not fail the others.
func (c *DefinitionCache) Get(ctx context.Context, indicator string) (DefinitionSet, error) {
	rev, err := c.source.Revision(ctx, indicator)
	if err != nil {
		return nil, fmt.Errorf("definition revision for %s: %w", indicator, err)
	}
	key := indicator + "@" + strconv.FormatInt(rev, 10)

	c.mu.RLock()
	e, ok := c.entries[indicator]
	gen, epoch := c.gens[indicator], c.epoch
	c.mu.RUnlock()

	if ok && e.key == key {
		c.metrics.DefinitionCacheHit()
		return e.defs, nil
	}
	c.metrics.DefinitionCacheMiss()

	// a build started before an invalidation is not joined by later callers
	flight := key + "#" + strconv.FormatUint(gen, 10) + "." + strconv.FormatUint(epoch, 10)
	ch := c.group.DoChan(flight, func() (any, error) {
		defs, err := c.build(context.WithoutCancel(ctx), indicator)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		if c.gens[indicator] == gen && c.epoch == epoch {
			c.entries[indicator] = cacheEntry{key: key, defs: defs}
		}
		c.mu.Unlock()

		c.logger.Info().
			Str("site", indicator).
			Str("key", key).
			Strs("definitions", defs.Names()).
			Msg("processing definitions built")
		return defs, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(DefinitionSet), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *DefinitionCache) build(ctx context.Context, indicator string) (DefinitionSet, error) {
	docs, err := c.source.Documents(ctx, indicator)
	if err != nil {
		return nil, fmt.Errorf("load definitions for %s: %w", indicator, err)
	}

	defs := make(DefinitionSet, len(docs))
	if len(docs) == 0 {
		return defs, nil
	}

	cat, err := c.catalog(ctx)
	if err != nil {
		return nil, err
	}

	for name, doc := range docs {
		if doc.Name == "" {
			doc.Name = name
		}
		pd, err := c.buildOne(doc, cat)
		if err != nil {
			c.logger.Error().Err(err).
				Str("site", indicator).
				Str("definition", name).
				Msg("invalid processing definition")
			c.metrics.DefinitionBuild("invalid")
			defs[name] = definition.Invalid
			continue
		}
		c.metrics.DefinitionBuild("ok")
		defs[name] = pd
	}
	return defs, nil
}

func (c *DefinitionCache) catalog(ctx context.Context) (*content.Catalog, error) {
	types, err := c.repo.Types(ctx)
	if err != nil {
		return nil, fmt.Errorf("load content types: %w", err)
	}
	cat, err := content.NewCatalog(types)
	if err != nil {
		return nil, fmt.Errorf("content type catalog: %w", err)
	}
	return cat, nil
}

// Invalidate drops the cached definitions of one site.
func (c *DefinitionCache) Invalidate(indicator string) {
	c.mu.Lock()
	delete(c.entries, indicator)
	c.gens[indicator]++
	c.mu.Unlock()

	c.logger.Info().Str("site", indicator).Msg("processing definitions invalidated")
}

// InvalidateAll drops every cached site.
func (c *DefinitionCache) InvalidateAll() {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.epoch++
	c.mu.Unlock()

	c.logger.Info().Msg("all processing definitions invalidated")
}

// Cached returns the indicators currently cached.
func (c *DefinitionCache) Cached() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]string, 0, len(c.entries))
	for ind := range c.entries {
		result = append(result, ind)
	}
	sort.Strings(result)
	return result
}

// LoadStatic builds the fallback definitions and swaps them in.
// On error the previous static set stays active.
func (c *DefinitionCache) LoadStatic(ctx context.Context, loader ports.DefinitionLoader) error {
	docs, err := loader.Load(ctx)
	if err != nil {
		return fmt.Errorf("load static definitions: %w", err)
	}

	defs := make(DefinitionSet, len(docs))
	if len(docs) > 0 {
		cat, err := c.catalog(ctx)
		if err != nil {
			return err
		}
		for _, doc := range docs {
			if _, dup := defs[doc.Name]; dup {
				return fmt.Errorf("static definition %q defined twice", doc.Name)
			}
			pd, err := c.buildOne(doc, cat)
			if err != nil {
				return fmt.Errorf("static definition: %w", err)
			}
			defs[doc.Name] = pd
		}
	}

	c.SetStatic(defs)
	c.logger.Info().Strs("definitions", defs.Names()).Msg("static definitions loaded")
	return nil
}

// SetStatic replaces the fallback definitions.
func (c *DefinitionCache) SetStatic(defs DefinitionSet) {
	if defs == nil {
		defs = DefinitionSet{}
	}
	c.static.Store(&defs)
}

// Static returns the fallback definitions.
func (c *DefinitionCache) Static() DefinitionSet {
	return *c.static.Load()
}

// Resolve finds a definition for a site: site definitions first, then the
// static fallback. ok is false when the name is unknown or its definition is
// invalid. A failing source or repository is returned as an error.
func (c *DefinitionCache) Resolve(ctx context.Context, indicator, name string) (*definition.ProcessingDefinition, bool, error) {
	defs, err := c.Get(ctx, indicator)
	if err != nil {
		return nil, false, err
	}
	if pd, found := defs[name]; found {
		return pd, pd.IsValid(), nil
	}

	pd, found := c.Static()[name]
	if !found {
		return nil, false, nil
	}
	return pd, pd.IsValid(), nil
}
