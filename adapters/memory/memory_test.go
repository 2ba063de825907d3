package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/artpar/caas/adapters/memory"
	"github.com/artpar/caas/domain/client"
	"github.com/artpar/caas/domain/content"
	"github.com/artpar/caas/domain/settings"
	"github.com/artpar/caas/domain/site"
)

// ClientStore tests

func TestClientStore_CreateAndGet(t *testing.T) {
	store := memory.NewClientStore()
	ctx := context.Background()

	c := client.Client{ID: "cli-1", Prefix: "caas_abc1234", Name: "web", CreatedAt: time.Now()}
	if err := store.Create(ctx, c); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	clients, err := store.Get(ctx, "caas_abc1234")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(clients) != 1 || clients[0].ID != "cli-1" {
		t.Errorf("Get = %+v, want cli-1", clients)
	}

	clients, _ = store.Get(ctx, "caas_other00")
	if len(clients) != 0 {
		t.Errorf("expected no clients for unknown prefix, got %d", len(clients))
	}

	got, err := store.GetByID(ctx, "cli-1")
	if err != nil || got.Name != "web" {
		t.Errorf("GetByID = %+v, %v", got, err)
	}
	if _, err := store.GetByID(ctx, "missing"); err == nil {
		t.Error("expected error for missing client")
	}
}

func TestClientStore_Revoke(t *testing.T) {
	store := memory.NewClientStore()
	ctx := context.Background()

	store.Create(ctx, client.Client{ID: "cli-1", Prefix: "p"})
	now := time.Now()
	if err := store.Revoke(ctx, "cli-1", now); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}

	got, _ := store.GetByID(ctx, "cli-1")
	if got.RevokedAt == nil || !got.RevokedAt.Equal(now) {
		t.Errorf("RevokedAt = %v, want %v", got.RevokedAt, now)
	}
}

func TestClientStore_List(t *testing.T) {
	store := memory.NewClientStore()
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store.Create(ctx, client.Client{ID: "b", CreatedAt: base.Add(time.Hour)})
	store.Create(ctx, client.Client{ID: "a", CreatedAt: base})

	list, _ := store.List(ctx)
	if len(list) != 2 || list[0].ID != "a" || list[1].ID != "b" {
		t.Errorf("List = %+v", list)
	}

	store.Clear()
	list, _ = store.List(ctx)
	if len(list) != 0 {
		t.Errorf("expected empty store after Clear, got %d", len(list))
	}
}

// SiteStore tests

func TestSiteStore(t *testing.T) {
	store := memory.NewSiteStore()
	ctx := context.Background()

	s := site.Site{TenantID: "acme", ID: "web", Indicator: "acme-web", RootID: "1"}
	if err := store.Create(ctx, s); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := store.Create(ctx, s); err == nil {
		t.Error("expected error for duplicate site")
	}

	got, err := store.Get(ctx, "acme", "web")
	if err != nil || got.Indicator != "acme-web" {
		t.Errorf("Get = %+v, %v", got, err)
	}

	if _, err := store.Get(ctx, "acme", "shop"); !errors.Is(err, site.ErrNotFound) {
		t.Errorf("Get missing = %v, want site.ErrNotFound", err)
	}

	s.MaxAge = 60
	if err := store.Update(ctx, s); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	got, _ = store.Get(ctx, "acme", "web")
	if got.MaxAge != 60 {
		t.Errorf("MaxAge = %d, want 60", got.MaxAge)
	}

	if err := store.Update(ctx, site.Site{TenantID: "x", ID: "y"}); !errors.Is(err, site.ErrNotFound) {
		t.Errorf("Update missing = %v, want site.ErrNotFound", err)
	}

	store.Delete(ctx, "acme", "web")
	list, _ := store.List(ctx)
	if len(list) != 0 {
		t.Errorf("expected empty list, got %d", len(list))
	}
}

// SettingsStore tests

func TestSettingsStore_Revisions(t *testing.T) {
	store := memory.NewSettingsStore()
	ctx := context.Background()

	scope := settings.SiteScope("corporate")
	rev, _ := store.Revision(ctx, scope)
	if rev != 0 {
		t.Errorf("initial revision = %d, want 0", rev)
	}

	store.Set(ctx, settings.DefinitionKey("corporate", "web"), "name: web", false)
	rev, _ = store.Revision(ctx, scope)
	if rev != 1 {
		t.Errorf("revision after Set = %d, want 1", rev)
	}

	// other scopes are unaffected
	store.Set(ctx, settings.KeyServicePreview, "true", false)
	rev, _ = store.Revision(ctx, scope)
	if rev != 1 {
		t.Errorf("revision after global Set = %d, want 1", rev)
	}

	store.SetBatch(ctx, settings.Settings{
		settings.DefinitionKey("corporate", "a"): "x",
		settings.DefinitionKey("corporate", "b"): "y",
	})
	rev, _ = store.Revision(ctx, scope)
	if rev != 2 {
		t.Errorf("revision after SetBatch = %d, want 2", rev)
	}

	store.Delete(ctx, settings.DefinitionKey("corporate", "a"))
	rev, _ = store.Revision(ctx, scope)
	if rev != 3 {
		t.Errorf("revision after Delete = %d, want 3", rev)
	}

	// deleting a missing key is not a change
	store.Delete(ctx, settings.DefinitionKey("corporate", "missing"))
	rev, _ = store.Revision(ctx, scope)
	if rev != 3 {
		t.Errorf("revision after no-op Delete = %d, want 3", rev)
	}
}

func TestSettingsStore_GetByPrefix(t *testing.T) {
	store := memory.NewSettingsStore()
	ctx := context.Background()

	store.Set(ctx, settings.DefinitionKey("corporate", "web"), "a", false)
	store.Set(ctx, settings.DefinitionKey("shop", "web"), "b", false)

	got, _ := store.GetByPrefix(ctx, settings.DefinitionPrefix("corporate"))
	if len(got) != 1 || got[settings.DefinitionKey("corporate", "web")] != "a" {
		t.Errorf("GetByPrefix = %v", got)
	}

	all, _ := store.GetAll(ctx)
	if len(all) != 2 {
		t.Errorf("GetAll = %d settings, want 2", len(all))
	}

	st, _ := store.Get(ctx, settings.DefinitionKey("shop", "web"))
	if st.Value != "b" {
		t.Errorf("Get = %+v", st)
	}
}

// ContentStore tests

func TestContentStore(t *testing.T) {
	store := memory.NewContentStore()
	ctx := context.Background()

	store.PutType(ctx, content.Type{Name: "Document"})
	store.PutType(ctx, content.Type{Name: "Article", Parent: "Document"})
	store.PutType(ctx, content.Type{Name: "Document"})

	types, _ := store.Types(ctx)
	if len(types) != 2 || types[0].Name != "Document" || types[1].Name != "Article" {
		t.Errorf("Types = %+v", types)
	}

	store.Put(ctx, content.Content{ID: "1", Type: "Article"})
	store.Put(ctx, content.Content{ID: "2", Type: "Article"})

	if _, err := store.Get(ctx, "3"); !errors.Is(err, content.ErrNotFound) {
		t.Errorf("Get missing = %v, want content.ErrNotFound", err)
	}

	many, _ := store.GetMany(ctx, []string{"2", "3", "1"})
	if len(many) != 2 || many[0].ID != "2" || many[1].ID != "1" {
		t.Errorf("GetMany = %+v", many)
	}

	store.Delete(ctx, "1")
	if _, err := store.Get(ctx, "1"); !errors.Is(err, content.ErrNotFound) {
		t.Errorf("Get deleted = %v", err)
	}
}
