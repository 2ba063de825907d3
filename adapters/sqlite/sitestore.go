package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/artpar/caas/domain/site"
	"github.com/artpar/caas/ports"
)

// SiteStore implements ports.SiteStore using SQLite.
type SiteStore struct {
	db *DB
}

// NewSiteStore creates a new SQLite site store.
func NewSiteStore(db *DB) *SiteStore {
	return &SiteStore{db: db}
}

const siteColumns = `tenant_id, site_id, indicator, name, root_id, max_age, created_at`

// Get retrieves a site of a tenant.
func (s *SiteStore) Get(ctx context.Context, tenantID, siteID string) (site.Site, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+siteColumns+` FROM sites WHERE tenant_id = ? AND site_id = ?
	`, tenantID, siteID)
	st, err := scanSite(row)
	if errors.Is(err, sql.ErrNoRows) {
		return site.Site{}, site.ErrNotFound
	}
	return st, err
}

// List returns all sites.
func (s *SiteStore) List(ctx context.Context) ([]site.Site, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+siteColumns+` FROM sites ORDER BY tenant_id, site_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sites []site.Site
	for rows.Next() {
		st, err := scanSite(rows)
		if err != nil {
			return nil, err
		}
		sites = append(sites, st)
	}
	return sites, rows.Err()
}

// Create stores a new site.
func (s *SiteStore) Create(ctx context.Context, st site.Site) error {
	if st.Indicator == "" {
		st.Indicator = site.DefaultIndicator(st.TenantID, st.ID)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sites (`+siteColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, st.TenantID, st.ID, st.Indicator, st.Name, st.RootID, st.MaxAge, st.CreatedAt)
	return err
}

// Update modifies an existing site.
func (s *SiteStore) Update(ctx context.Context, st site.Site) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE sites SET indicator = ?, name = ?, root_id = ?, max_age = ?
		WHERE tenant_id = ? AND site_id = ?
	`, st.Indicator, st.Name, st.RootID, st.MaxAge, st.TenantID, st.ID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return site.ErrNotFound
	}
	return nil
}

// Delete removes a site.
func (s *SiteStore) Delete(ctx context.Context, tenantID, siteID string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM sites WHERE tenant_id = ? AND site_id = ?
	`, tenantID, siteID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return site.ErrNotFound
	}
	return nil
}

func scanSite(row scanner) (site.Site, error) {
	var st site.Site
	var createdAt sql.NullTime
	err := row.Scan(&st.TenantID, &st.ID, &st.Indicator, &st.Name, &st.RootID, &st.MaxAge, &createdAt)
	if err != nil {
		return site.Site{}, err
	}
	st.CreatedAt = createdAt.Time
	return st, nil
}

var _ ports.SiteStore = (*SiteStore)(nil)
