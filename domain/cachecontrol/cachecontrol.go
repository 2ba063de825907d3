// Package cachecontrol computes Cache-Control directives for query results.
// This package has NO dependencies on I/O or external packages.
package cachecontrol

import (
	"strconv"
	"time"
)

// Directive is a computed Cache-Control value (immutable value type).
type Directive struct {
	NoCache        bool
	MaxAge         int64 // seconds
	MustRevalidate bool
}

// NoCache is the directive used in preview mode.
var NoCache = Directive{NoCache: true}

// MaxAge returns a revalidating max-age directive.
func MaxAge(seconds int64) Directive {
	if seconds < 0 {
		seconds = 0
	}
	return Directive{MaxAge: seconds, MustRevalidate: true}
}

// String renders the header value.
func (d Directive) String() string {
	if d.NoCache {
		return "no-cache"
	}
	s := "max-age=" + strconv.FormatInt(d.MaxAge, 10)
	if d.MustRevalidate {
		s += ", must-revalidate"
	}
	return s
}

// Policy holds the service-wide cache settings.
type Policy struct {
	Preview       bool
	DefaultMaxAge int64
	MinMaxAge     int64 // 0 = no lower bound
	MaxMaxAge     int64 // 0 = no upper bound
}

// Limits are the per-request bounds applied by the max-age rule.
type Limits struct {
	SiteMaxAge int64     // 0 = no site cap
	ValidTo    time.Time // zero = target never expires
}

// Compute applies the max-age rule to a requested max-age:
// preview yields no-cache; otherwise the value is clamped to the policy
// bounds, then capped by the site and by the seconds left until the target
// expires. The request's caps always win over the policy minimum.
func (p Policy) Compute(requested int64, limits Limits, now time.Time) Directive {
	if p.Preview {
		return NoCache
	}

	maxAge := requested
	if p.MaxMaxAge > 0 && maxAge > p.MaxMaxAge {
		maxAge = p.MaxMaxAge
	}
	if maxAge < p.MinMaxAge {
		maxAge = p.MinMaxAge
	}
	if limits.SiteMaxAge > 0 && maxAge > limits.SiteMaxAge {
		maxAge = limits.SiteMaxAge
	}
	if !limits.ValidTo.IsZero() {
		left := max(int64(limits.ValidTo.Sub(now)/time.Second), 0)
		maxAge = min(maxAge, left)
	}
	return MaxAge(maxAge)
}
