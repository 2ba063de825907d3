// Package settings provides value types for versioned runtime settings.
// Settings are stored in the database and loaded at runtime. Keys under a
// site scope carry that site's processing definitions; every write bumps the
// revision of the key's scope.
package settings

import (
	"encoding/json"
	"strings"
	"time"
)

// Setting represents a single configuration setting (immutable value type).
type Setting struct {
	Key       string
	Value     string
	Encrypted bool
	UpdatedAt time.Time
}

// Settings is a collection of settings with helper methods.
type Settings map[string]string

// Get returns a setting value or empty string if not found.
func (s Settings) Get(key string) string {
	return s[key]
}

// GetOrDefault returns a setting value or the default if not found.
func (s Settings) GetOrDefault(key, defaultValue string) string {
	if v, ok := s[key]; ok && v != "" {
		return v
	}
	return defaultValue
}

// GetBool returns a setting as bool (true if "true", "1", "yes", "on").
func (s Settings) GetBool(key string) bool {
	v := s[key]
	return v == "true" || v == "1" || v == "yes" || v == "on"
}

// GetInt returns a setting as int or default if not found/invalid.
func (s Settings) GetInt(key string, defaultValue int) int {
	v := s[key]
	if v == "" {
		return defaultValue
	}
	var i int
	if err := json.Unmarshal([]byte(v), &i); err != nil {
		return defaultValue
	}
	return i
}

// GetDuration returns a setting as duration or default if not found/invalid.
func (s Settings) GetDuration(key string, defaultValue time.Duration) time.Duration {
	v := s[key]
	if v == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultValue
	}
	return d
}

// Known setting keys (namespaced by category).
const (
	// Service settings override the config file at runtime
	KeyServicePreview   = "service.preview"
	KeyServiceCacheTime = "service.cache_time" // seconds
	KeyServiceMinMaxAge = "service.min_max_age"
	KeyServiceMaxMaxAge = "service.max_max_age"

	// Client settings
	KeyClientsDefaultDefinition = "clients.default_definition"

	// Admin settings
	KeyAdminToken = "admin.token"
)

// GlobalScope is the revision scope of keys outside any site.
const GlobalScope = "global"

const (
	sitePrefix    = "site."
	definitionSeg = ".definition."
)

// SitePrefix returns the key prefix of a site's settings.
func SitePrefix(indicator string) string {
	return sitePrefix + indicator + "."
}

// DefinitionPrefix returns the key prefix of a site's definition documents.
func DefinitionPrefix(indicator string) string {
	return sitePrefix + indicator + definitionSeg
}

// DefinitionKey returns the key holding one definition document of a site.
func DefinitionKey(indicator, name string) string {
	return DefinitionPrefix(indicator) + name
}

// ParseDefinitionKey splits a definition key into site indicator and name.
func ParseDefinitionKey(key string) (indicator, name string, ok bool) {
	if !strings.HasPrefix(key, sitePrefix) {
		return "", "", false
	}
	rest := strings.TrimPrefix(key, sitePrefix)
	i := strings.Index(rest, definitionSeg)
	if i <= 0 {
		return "", "", false
	}
	indicator, name = rest[:i], rest[i+len(definitionSeg):]
	if name == "" {
		return "", "", false
	}
	return indicator, name, true
}

// SiteScope returns the revision scope of a site.
func SiteScope(indicator string) string {
	return strings.TrimSuffix(SitePrefix(indicator), ".")
}

// ScopeOf returns the revision scope a key belongs to.
func ScopeOf(key string) string {
	if !strings.HasPrefix(key, sitePrefix) {
		return GlobalScope
	}
	rest := strings.TrimPrefix(key, sitePrefix)
	i := strings.Index(rest, ".")
	if i <= 0 {
		return GlobalScope
	}
	return SiteScope(rest[:i])
}

// ValidIndicator reports whether s can be used as a site indicator in keys.
func ValidIndicator(s string) bool {
	return s != "" && !strings.ContainsAny(s, ". \t\n")
}

// SensitiveKeys returns keys that contain secrets and should be encrypted.
func SensitiveKeys() []string {
	return []string{KeyAdminToken}
}

// IsSensitive returns true if the key contains sensitive data.
func IsSensitive(key string) bool {
	for _, k := range SensitiveKeys() {
		if k == key {
			return true
		}
	}
	return false
}

// Defaults returns default values for settings.
// Service keys have no defaults here: unset keys keep the config file values.
func Defaults() Settings {
	return Settings{}
}

// Merge merges defaults with loaded settings, preferring loaded values.
func Merge(loaded Settings) Settings {
	result := Defaults()
	for k, v := range loaded {
		result[k] = v
	}
	return result
}
