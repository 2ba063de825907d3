package app_test

import (
	"context"
	"testing"

	"github.com/artpar/caas/app"
	"github.com/artpar/caas/domain/content"
	"github.com/artpar/caas/domain/delivery"
)

func TestRootResolver(t *testing.T) {
	f := newFixture(t)
	roots := app.NewRootResolver(f.sites, f.repo)
	ctx := context.Background()

	root, err := roots.Resolve(ctx, "acme", "web", "")
	mustNoErr(t, err)
	if c, ok := root.TargetContent(); !ok || c.ID != "home" {
		t.Errorf("site root target = %v", root.Target)
	}
	if root.TenantID != "acme" || root.Site.Indicator != "acme-web" {
		t.Errorf("root = %+v", root)
	}

	root, err = roots.Resolve(ctx, "acme", "web", "news")
	mustNoErr(t, err)
	if c, _ := root.TargetContent(); c.ID != "news" {
		t.Errorf("explicit target = %v", root.Target)
	}

	root, err = roots.Resolve(ctx, "acme", "web", " news, ,missing,home ")
	mustNoErr(t, err)
	list, ok := root.Target.(content.List)
	if !ok || len(list) != 2 || list[0].ID != "news" || list[1].ID != "home" {
		t.Errorf("list target = %v", root.Target)
	}
}

func TestRootResolver_Errors(t *testing.T) {
	f := newFixture(t)
	roots := app.NewRootResolver(f.sites, f.repo)
	ctx := context.Background()

	tests := []struct {
		name   string
		site   string
		target string
		code   string
	}{
		{"unknown site", "nope", "", delivery.ErrSiteNotFound.Code},
		{"unknown target", "web", "missing", delivery.ErrTargetNotFound.Code},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := roots.Resolve(ctx, "acme", tt.site, tt.target)
			if errorCode(err) != tt.code {
				t.Errorf("err = %v, want %s", err, tt.code)
			}
		})
	}
}
