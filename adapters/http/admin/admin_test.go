package admin_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/artpar/caas/adapters/clock"
	"github.com/artpar/caas/adapters/definitions"
	"github.com/artpar/caas/adapters/graphql"
	"github.com/artpar/caas/adapters/hasher"
	"github.com/artpar/caas/adapters/http/admin"
	"github.com/artpar/caas/adapters/memory"
	"github.com/artpar/caas/app"
	"github.com/artpar/caas/domain/content"
)

const token = "s3cret"

const mobileYAML = `
name: ignored
description: Mobile app
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
`

type testEnv struct {
	handler *admin.Handler
	router  http.Handler
	defs    *app.DefinitionCache
	clients *app.ClientService
	dir     string
}

func setup(t *testing.T) testEnv {
	t.Helper()
	ctx := context.Background()
	logger := zerolog.Nop()

	repo := memory.NewContentStore()
	repo.PutType(ctx, content.Type{Name: "Document"})

	store := memory.NewSettingsStore()
	defs := app.NewDefinitionCache(definitions.NewSettingsSource(store, logger), repo, nil, logger)
	defs.SetCheck(graphql.Check)

	dir := t.TempDir()
	loader := definitions.NewFileLoader([]string{filepath.Join(dir, "**", "*.yaml")}, logger)

	clients := app.NewClientService(memory.NewClientStore(), hasher.Fake{}, clock.NewFake(time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)), "", "", logger)

	h := admin.NewHandler(admin.Deps{
		Definitions: defs,
		Settings:    app.NewSettingsService(store, logger),
		Clients:     clients,
		Loader:      loader,
		Token:       token,
		Logger:      logger,
	})
	return testEnv{handler: h, router: h.Router(), defs: defs, clients: clients, dir: dir}
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

type collection struct {
	Data []struct {
		ID         string         `json:"id"`
		Attributes map[string]any `json:"attributes"`
	} `json:"data"`
}

func listDefinitions(t *testing.T, h http.Handler, indicator string) map[string]map[string]any {
	t.Helper()
	rec := do(t, h, "GET", "/sites/"+indicator+"/definitions", "")
	if rec.Code != 200 {
		t.Fatalf("list status = %d, body: %s", rec.Code, rec.Body.String())
	}
	var c collection
	if err := json.Unmarshal(rec.Body.Bytes(), &c); err != nil {
		t.Fatalf("decode: %v", err)
	}
	out := make(map[string]map[string]any)
	for _, r := range c.Data {
		out[r.ID] = r.Attributes
	}
	return out
}

func TestAuthMiddleware(t *testing.T) {
	env := setup(t)

	tests := []struct {
		name   string
		auth   string
		status int
	}{
		{"missing", "", 401},
		{"wrong token", "Bearer nope", 401},
		{"not bearer", token, 401},
		{"valid", "Bearer " + token, 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/invalidate", nil)
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			rec := httptest.NewRecorder()
			env.router.ServeHTTP(rec, req)
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
		})
	}

	env.handler.SetToken("")
	rec := do(t, env.router, "POST", "/invalidate", "")
	if rec.Code != 403 {
		t.Errorf("disabled status = %d, want 403", rec.Code)
	}
}

func TestSiteDefinitions(t *testing.T) {
	env := setup(t)

	rec := do(t, env.router, "PUT", "/sites/acme-web/definitions/mobile", mobileYAML)
	if rec.Code != 204 {
		t.Fatalf("put status = %d, body: %s", rec.Code, rec.Body.String())
	}

	got := listDefinitions(t, env.router, "acme-web")
	mobile, ok := got["mobile"]
	if !ok {
		t.Fatalf("mobile not listed: %v", got)
	}
	if mobile["source"] != "site" || mobile["valid"] != true {
		t.Errorf("mobile = %v", mobile)
	}
	if mobile["description"] != "Mobile app" {
		t.Errorf("description = %v", mobile["description"])
	}

	// other sites do not see it
	if other := listDefinitions(t, env.router, "acme-shop"); len(other) != 0 {
		t.Errorf("acme-shop definitions = %v, want none", other)
	}

	rec = do(t, env.router, "DELETE", "/sites/acme-web/definitions/mobile", "")
	if rec.Code != 204 {
		t.Fatalf("delete status = %d", rec.Code)
	}
	if got := listDefinitions(t, env.router, "acme-web"); len(got) != 0 {
		t.Errorf("after delete = %v, want none", got)
	}
}

func TestPutDefinition_Rejected(t *testing.T) {
	env := setup(t)

	tests := []struct {
		name   string
		path   string
		body   string
		status int
	}{
		{"undecodable", "/sites/acme-web/definitions/bad", "types: [", 400},
		{"no queries", "/sites/acme-web/definitions/bad", "types: []\n", 422},
		{"unknown interface", "/sites/acme-web/definitions/bad", `
types:
  - {name: DocumentImpl, kind: object, interfaces: [Missing]}
queries:
  - {name: page, query: "{ content { id } }"}
`, 422},
		{"reserved name", "/sites/acme-web/definitions/bad", `
types:
  - {name: Query, kind: interface}
  - {name: QueryImpl, kind: object, interfaces: [Query]}
queries:
  - {name: page, query: "{ content { id } }"}
`, 422},
		{"bad indicator", "/sites/acme.web/definitions/bad", mobileYAML, 422},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, env.router, "PUT", tt.path, tt.body)
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d, body: %s", rec.Code, tt.status, rec.Body.String())
			}
		})
	}

	if got := listDefinitions(t, env.router, "acme-web"); len(got) != 0 {
		t.Errorf("rejected documents were stored: %v", got)
	}
}

func TestReloadStatic(t *testing.T) {
	env := setup(t)

	if err := os.WriteFile(filepath.Join(env.dir, "web.yaml"), []byte(strings.Replace(mobileYAML, "name: ignored", "name: web", 1)), 0o644); err != nil {
		t.Fatal(err)
	}

	rec := do(t, env.router, "POST", "/definitions/reload", "")
	if rec.Code != 200 {
		t.Fatalf("reload status = %d, body: %s", rec.Code, rec.Body.String())
	}
	var doc struct {
		Meta map[string]any `json:"meta"`
	}
	json.Unmarshal(rec.Body.Bytes(), &doc)
	if names, _ := doc.Meta["definitions"].([]any); len(names) != 1 || names[0] != "web" {
		t.Errorf("meta = %v", doc.Meta)
	}

	got := listDefinitions(t, env.router, "acme-web")
	if got["web"]["source"] != "static" {
		t.Errorf("web = %v, want static", got["web"])
	}

	// a broken file keeps the previous static set
	os.WriteFile(filepath.Join(env.dir, "broken.yaml"), []byte("name: broken\n"), 0o644)
	rec = do(t, env.router, "POST", "/definitions/reload", "")
	if rec.Code != 422 {
		t.Errorf("broken reload status = %d, want 422", rec.Code)
	}
	if _, ok := env.defs.Static()["web"]; !ok {
		t.Error("previous static definitions were dropped")
	}
}

func TestReloadStatic_NoLoader(t *testing.T) {
	h := admin.NewHandler(admin.Deps{Token: token, Logger: zerolog.Nop()})
	rec := do(t, h.Router(), "POST", "/definitions/reload", "")
	if rec.Code != 501 {
		t.Errorf("status = %d, want 501", rec.Code)
	}
}

func TestInvalidate(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	if _, err := env.defs.Get(ctx, "acme-web"); err != nil {
		t.Fatal(err)
	}
	if _, err := env.defs.Get(ctx, "acme-shop"); err != nil {
		t.Fatal(err)
	}

	rec := do(t, env.router, "POST", "/sites/acme-web/invalidate", "")
	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := env.defs.Cached(); len(got) != 1 || got[0] != "acme-shop" {
		t.Errorf("cached = %v, want [acme-shop]", got)
	}

	rec = do(t, env.router, "POST", "/invalidate", "")
	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := env.defs.Cached(); len(got) != 0 {
		t.Errorf("cached = %v, want none", got)
	}
}

func TestClients(t *testing.T) {
	env := setup(t)

	rec := do(t, env.router, "POST", "/clients", `{"name":"mobile","definition":"web","sites":["acme/web"]}`)
	if rec.Code != 201 {
		t.Fatalf("create status = %d, body: %s", rec.Code, rec.Body.String())
	}
	var created struct {
		Data struct {
			ID         string         `json:"id"`
			Attributes map[string]any `json:"attributes"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}
	key, _ := created.Data.Attributes["key"].(string)
	if !strings.HasPrefix(key, "caas_") {
		t.Errorf("key = %q, want caas_ prefix", key)
	}
	if rec.Header().Get("Location") != "/admin/clients/"+created.Data.ID {
		t.Errorf("Location = %q", rec.Header().Get("Location"))
	}

	rec = do(t, env.router, "GET", "/clients", "")
	var list collection
	json.Unmarshal(rec.Body.Bytes(), &list)
	if len(list.Data) != 1 {
		t.Fatalf("clients = %d, want 1", len(list.Data))
	}
	if _, leaked := list.Data[0].Attributes["key"]; leaked {
		t.Error("list must not expose keys")
	}
	if list.Data[0].Attributes["definition"] != "web" {
		t.Errorf("definition = %v", list.Data[0].Attributes["definition"])
	}

	rec = do(t, env.router, "DELETE", "/clients/"+created.Data.ID, "")
	if rec.Code != 204 {
		t.Errorf("revoke status = %d", rec.Code)
	}
	rec = do(t, env.router, "DELETE", "/clients/missing", "")
	if rec.Code != 404 {
		t.Errorf("revoke missing status = %d, want 404", rec.Code)
	}

	rec = do(t, env.router, "POST", "/clients", `{"definition":"web"}`)
	if rec.Code != 422 {
		t.Errorf("nameless status = %d, want 422", rec.Code)
	}
	rec = do(t, env.router, "POST", "/clients", `{`)
	if rec.Code != 400 {
		t.Errorf("bad json status = %d, want 400", rec.Code)
	}
}
