package app_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/artpar/caas/app"
	"github.com/artpar/caas/domain/client"
	"github.com/artpar/caas/domain/content"
	"github.com/artpar/caas/domain/execution"
	"github.com/artpar/caas/domain/query"
)

func invocation(name, view string) *execution.Invocation {
	return &execution.Invocation{
		TenantID: "acme",
		SiteID:   "web",
		Client:   client.Identification{ClientID: "cli_1", DefinitionName: "web"},
		Root: execution.RootContext{
			Target: content.Content{ID: "home", Type: "Article", Name: "home"},
		},
		Query:   &query.Definition{Name: name, View: view},
		View:    view,
		Params:  map[string]string{"draft": "true"},
		Headers: map[string]string{"X-Device": "mobile"},
	}
}

func TestNewExpressionInterceptor_Errors(t *testing.T) {
	exprs := app.NewExpressionService()
	tests := []struct {
		name string
		rule app.InterceptorRule
	}{
		{"nameless", app.InterceptorRule{Pre: "true"}},
		{"bad pattern", app.InterceptorRule{Name: "x", Queries: []string{"page#["}, Pre: "true"}},
		{"bad pre", app.InterceptorRule{Name: "x", Pre: "params.("}},
		{"bad post", app.InterceptorRule{Name: "x", Post: "data +"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := app.NewExpressionInterceptor(tt.rule, exprs, zerolog.Nop()); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestExpressionInterceptor_PreQuery(t *testing.T) {
	exprs := app.NewExpressionService()
	ctx := context.Background()

	tests := []struct {
		name string
		rule app.InterceptorRule
		inv  *execution.Invocation
		want bool
	}{
		{"guard false", app.InterceptorRule{Name: "drafts", Pre: `params.draft != "true"`}, invocation("page", "default"), false},
		{"guard true", app.InterceptorRule{Name: "mobile", Pre: `headers["X-Device"] == "mobile"`}, invocation("page", "default"), true},
		{"target fields", app.InterceptorRule{Name: "type", Pre: `target.type == "Article" && !target.list`}, invocation("page", "default"), true},
		{"no match proceeds", app.InterceptorRule{Name: "drafts", Queries: []string{"news#*"}, Pre: "false"}, invocation("page", "default"), true},
		{"match by view", app.InterceptorRule{Name: "short", Queries: []string{"*#short"}, Pre: "false"}, invocation("page", "short"), false},
		{"non-bool proceeds", app.InterceptorRule{Name: "odd", Pre: `tenant`}, invocation("page", "default"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ic, err := app.NewExpressionInterceptor(tt.rule, exprs, zerolog.Nop())
			if err != nil {
				t.Fatalf("NewExpressionInterceptor error: %v", err)
			}
			if got := ic.PreQuery(ctx, tt.inv); got != tt.want {
				t.Errorf("PreQuery = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExpressionInterceptor_PostQuery(t *testing.T) {
	exprs := app.NewExpressionService()
	ctx := context.Background()
	data := map[string]any{"content": map[string]any{"id": "home"}}

	wrap, err := app.NewExpressionInterceptor(app.InterceptorRule{
		Name: "wrap",
		Post: `{"site": tenant + "/" + site, "query": query, "data": data}`,
	}, exprs, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}

	got, ok := wrap.PostQuery(ctx, data, invocation("page", "default")).(map[string]any)
	if !ok {
		t.Fatalf("PostQuery returned %T", got)
	}
	if got["site"] != "acme/web" || got["query"] != "page" {
		t.Errorf("PostQuery = %v", got)
	}

	// a failing transform keeps the data
	failing, err := app.NewExpressionInterceptor(app.InterceptorRule{Name: "fail", Post: `data.content.id + 1`}, exprs, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if replaced := failing.PostQuery(ctx, data, invocation("page", "default")); replaced != nil {
		t.Errorf("failing PostQuery = %v, want nil", replaced)
	}

	// pre-only interceptors leave data alone
	pre, err := app.NewExpressionInterceptor(app.InterceptorRule{Name: "pre", Pre: "true"}, exprs, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if replaced := pre.PostQuery(ctx, data, invocation("page", "default")); replaced != nil {
		t.Errorf("PostQuery = %v, want nil", replaced)
	}
	if pre.Name() != "pre" {
		t.Errorf("Name = %s", pre.Name())
	}
}

func TestExpressionInterceptor_PostQueryReadsData(t *testing.T) {
	exprs := app.NewExpressionService()
	ctx := context.Background()
	data := map[string]any{"content": map[string]any{"id": "home", "title": "Home"}}

	tests := []struct {
		name  string
		post  string
		check func(t *testing.T, got any)
	}{
		{"member access", `data.content`, func(t *testing.T, got any) {
			c, ok := got.(map[string]any)
			if !ok || c["id"] != "home" {
				t.Errorf("PostQuery = %v", got)
			}
		}},
		{"index access", `data["content"].title`, func(t *testing.T, got any) {
			if got != "Home" {
				t.Errorf("PostQuery = %v, want Home", got)
			}
		}},
		{"set member", `set(data, "page", data.content)`, func(t *testing.T, got any) {
			m, ok := got.(map[string]any)
			if !ok || m["page"] == nil || m["content"] == nil {
				t.Errorf("PostQuery = %v", got)
			}
		}},
		{"field helper", `field(data, "content.id")`, func(t *testing.T, got any) {
			if got != "home" {
				t.Errorf("PostQuery = %v, want home", got)
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ic, err := app.NewExpressionInterceptor(app.InterceptorRule{Name: "read", Post: tt.post}, exprs, zerolog.Nop())
			if err != nil {
				t.Fatalf("NewExpressionInterceptor error: %v", err)
			}
			tt.check(t, ic.PostQuery(ctx, data, invocation("page", "default")))
		})
	}
}

func TestExpressionInterceptor_PostQueryWithoutData(t *testing.T) {
	ic, err := app.NewExpressionInterceptor(app.InterceptorRule{Name: "empty", Post: `data.content == nil ? {"empty": true} : nil`}, app.NewExpressionService(), zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	got, ok := ic.PostQuery(context.Background(), nil, invocation("page", "default")).(map[string]any)
	if !ok || got["empty"] != true {
		t.Errorf("PostQuery = %v", got)
	}
}

func TestExpressionInterceptor_ListTarget(t *testing.T) {
	ic, err := app.NewExpressionInterceptor(app.InterceptorRule{Name: "lists", Pre: `target.list && target.size > 1`}, app.NewExpressionService(), zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	inv := invocation("page", "default")
	inv.Root.Target = content.List{{ID: "a"}, {ID: "b"}}
	if !ic.PreQuery(context.Background(), inv) {
		t.Error("list guard should pass")
	}
}
