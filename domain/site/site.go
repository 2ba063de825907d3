// Package site provides the site value type.
// This package has NO dependencies on I/O or external packages.
package site

import (
	"errors"
	"time"
)

// ErrNotFound is returned by stores when a site does not exist.
var ErrNotFound = errors.New("site not found")

// Site is a delivery site of a tenant (immutable value type).
type Site struct {
	TenantID  string
	ID        string
	Indicator string // settings scope and definition cache key
	Name      string
	RootID    string // content id used when a request names no target
	MaxAge    int64  // seconds, 0 = no site cap
	CreatedAt time.Time
}

// Key returns the "tenant/site" form used in client site grants.
func (s Site) Key() string {
	return s.TenantID + "/" + s.ID
}

// DefaultIndicator derives an indicator for sites created without one.
func DefaultIndicator(tenantID, siteID string) string {
	return tenantID + "-" + siteID
}
