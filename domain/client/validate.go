package client

import (
	"strings"
	"time"
)

// Validate checks if a client is usable at the given time.
// This is a PURE function - no side effects, deterministic.
func Validate(c Client, now time.Time) ValidationResult {
	if c.RevokedAt != nil {
		return ValidationResult{Reason: ReasonRevoked}
	}
	if c.ExpiresAt != nil && now.After(*c.ExpiresAt) {
		return ValidationResult{Reason: ReasonExpired}
	}
	return ValidationResult{Valid: true, Client: c}
}

// ValidateFormat checks if a raw API key has valid format.
// Returns (prefix, valid). Prefix is used for store lookup.
func ValidateFormat(rawKey string, expectedPrefix string) (prefix string, valid bool) {
	if !strings.HasPrefix(rawKey, expectedPrefix) {
		return "", false
	}
	if len(rawKey) < len(expectedPrefix)+64 || len(rawKey) < PrefixLen {
		return "", false
	}
	return rawKey[:PrefixLen], true
}

// Allows reports whether the client may query the given site.
// An empty site list means no restriction.
func (c Client) Allows(tenantID, siteID string) bool {
	if len(c.Sites) == 0 {
		return true
	}
	want := tenantID + "/" + siteID
	for _, s := range c.Sites {
		if s == AnySite || s == want || s == tenantID+"/"+AnySite {
			return true
		}
	}
	return false
}
