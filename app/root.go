package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/artpar/caas/domain/content"
	"github.com/artpar/caas/domain/delivery"
	"github.com/artpar/caas/domain/execution"
	"github.com/artpar/caas/domain/site"
	"github.com/artpar/caas/ports"
)

// RootResolver resolves tenant, site and target into a root context.
type RootResolver struct {
	sites ports.SiteStore
	repo  ports.ContentRepository
}

// NewRootResolver creates a root resolver.
func NewRootResolver(sites ports.SiteStore, repo ports.ContentRepository) *RootResolver {
	return &RootResolver{sites: sites, repo: repo}
}

// Resolve builds the root context. An empty targetID selects the site root;
// a comma separated targetID selects a list target.
func (r *RootResolver) Resolve(ctx context.Context, tenantID, siteID, targetID string) (execution.RootContext, error) {
	s, err := r.sites.Get(ctx, tenantID, siteID)
	if err != nil {
		if errors.Is(err, site.ErrNotFound) {
			return execution.RootContext{}, delivery.ErrSiteNotFound.WithMessage(fmt.Sprintf("Site %s/%s not found", tenantID, siteID))
		}
		return execution.RootContext{}, fmt.Errorf("get site %s/%s: %w", tenantID, siteID, err)
	}

	root := execution.RootContext{TenantID: tenantID, Site: s}

	if targetID == "" {
		targetID = s.RootID
	}
	if targetID == "" {
		return root, delivery.ErrTargetNotFound.WithMessage("Site has no root content")
	}

	if strings.Contains(targetID, ",") {
		ids := splitIDs(targetID)
		items, err := r.repo.GetMany(ctx, ids)
		if err != nil {
			return root, fmt.Errorf("get targets: %w", err)
		}
		root.Target = content.List(items)
		return root, nil
	}

	c, err := r.repo.Get(ctx, targetID)
	if err != nil {
		if errors.Is(err, content.ErrNotFound) {
			return root, delivery.ErrTargetNotFound.WithMessage(fmt.Sprintf("Content %s not found", targetID))
		}
		return root, fmt.Errorf("get target %s: %w", targetID, err)
	}
	root.Target = c
	return root, nil
}

func splitIDs(s string) []string {
	parts := strings.Split(s, ",")
	ids := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			ids = append(ids, p)
		}
	}
	return ids
}
