package app_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/artpar/caas/adapters/clock"
	"github.com/artpar/caas/adapters/definitions"
	"github.com/artpar/caas/adapters/hasher"
	"github.com/artpar/caas/adapters/memory"
	"github.com/artpar/caas/app"
	"github.com/artpar/caas/domain/content"
	"github.com/artpar/caas/domain/site"
	"github.com/artpar/caas/ports"
)

var now = time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

const webYAML = `
types:
  - name: Document
    kind: interface
    fields:
      - {name: title, type: String}
  - name: DocumentImpl
    kind: object
    interfaces: [Document]
    fields:
      - {name: title, type: String}
queries:
  - name: page
    query: "{ content { id } }"
    types:
      DocumentImpl: "{ content { ... on DocumentImpl { title } } }"
    options:
      cacheFor: 60
  - name: page
    view: short
    query: "{ content { id } }"
  - name: broken
    query: "{ content { id } }"
    options:
      cacheFor: soon
`

type fixture struct {
	repo     *memory.ContentStore
	sites    *memory.SiteStore
	store    *memory.SettingsStore
	clients  *memory.ClientStore
	settings *app.SettingsService
	defs     *app.DefinitionCache
	clientSv *app.ClientService
	clock    *clock.Fake
	metrics  *recordingMetrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	logger := zerolog.Nop()

	f := &fixture{
		repo:    memory.NewContentStore(),
		sites:   memory.NewSiteStore(),
		store:   memory.NewSettingsStore(),
		clients: memory.NewClientStore(),
		clock:   clock.NewFake(now),
		metrics: &recordingMetrics{},
	}

	mustNoErr(t, f.repo.PutType(ctx, content.Type{Name: "Document"}))
	mustNoErr(t, f.repo.PutType(ctx, content.Type{Name: "Article", Parent: "Document"}))
	mustNoErr(t, f.repo.Put(ctx, content.Content{ID: "home", Type: "Article", Name: "home", Properties: map[string]any{"title": "Welcome"}}))
	mustNoErr(t, f.repo.Put(ctx, content.Content{ID: "news", Type: "Document", Name: "news"}))

	mustNoErr(t, f.sites.Create(ctx, site.Site{TenantID: "acme", ID: "web", Indicator: "acme-web", RootID: "home"}))

	f.settings = app.NewSettingsService(f.store, logger)
	mustNoErr(t, f.settings.PutDefinition(ctx, "acme-web", "web", webYAML))

	f.defs = app.NewDefinitionCache(definitions.NewSettingsSource(f.store, logger), f.repo, f.metrics, logger)
	f.clientSv = app.NewClientService(f.clients, hasher.Fake{}, f.clock, "", "web", logger)
	return f
}

func mustNoErr(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// recordingMetrics implements ports.QueryMetrics for testing.
type recordingMetrics struct {
	mu       sync.Mutex
	hits     int
	misses   int
	builds   map[string]int
	skips    []string
	statuses []string
	engine   int
}

func (m *recordingMetrics) ObserveQuery(tenant, siteID, pd, query, status string, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses = append(m.statuses, status)
}

func (m *recordingMetrics) DefinitionCacheHit() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hits++
}

func (m *recordingMetrics) DefinitionCacheMiss() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.misses++
}

func (m *recordingMetrics) DefinitionBuild(status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.builds == nil {
		m.builds = make(map[string]int)
	}
	m.builds[status]++
}

func (m *recordingMetrics) InterceptorSkip(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.skips = append(m.skips, name)
}

func (m *recordingMetrics) EngineErrors(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.engine += n
}

var _ ports.QueryMetrics = (*recordingMetrics)(nil)
