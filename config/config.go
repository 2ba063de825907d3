// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"github.com/artpar/caas/domain/cachecontrol"
)

// Config is the root configuration structure.
type Config struct {
	Server       ServerConfig        `yaml:"server"`
	Database     DatabaseConfig      `yaml:"database"`
	Logging      LoggingConfig       `yaml:"logging"`
	Metrics      MetricsConfig       `yaml:"metrics"`
	Service      ServiceConfig       `yaml:"service"`
	Definitions  DefinitionsConfig   `yaml:"definitions"`
	Clients      ClientsConfig       `yaml:"clients"`
	Admin        AdminConfig         `yaml:"admin"`
	Interceptors []InterceptorConfig `yaml:"interceptors"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	BaseURL        string        `yaml:"base_url"` // prefix of generated content URIs
}

// DatabaseConfig configures the database.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // only "sqlite"
	DSN    string `yaml:"dsn"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "console"
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // Enable /metrics endpoint
	Path    string `yaml:"path"`    // Custom path (default: /metrics)
}

// ServiceConfig configures response caching. Values are in seconds.
type ServiceConfig struct {
	Preview   bool  `yaml:"preview"`    // every response is no-cache
	CacheTime int64 `yaml:"cache_time"` // max-age when a query sets no cacheFor
	MinMaxAge int64 `yaml:"min_max_age"`
	MaxMaxAge int64 `yaml:"max_max_age"`
}

// DefinitionsConfig configures static processing definitions.
type DefinitionsConfig struct {
	Paths    []string      `yaml:"paths"` // doublestar globs
	Watch    bool          `yaml:"watch"`
	Debounce time.Duration `yaml:"debounce"`
}

// ClientsConfig configures client identification.
type ClientsConfig struct {
	DefaultDefinition string `yaml:"default_definition"` // used by anonymous callers
	KeyPrefix         string `yaml:"key_prefix"`
}

// AdminConfig configures the admin API. An empty token disables it.
type AdminConfig struct {
	Token string `yaml:"token"`
}

// InterceptorConfig configures one expression interceptor.
type InterceptorConfig struct {
	Name    string   `yaml:"name"`
	Queries []string `yaml:"queries"` // globs on "name#view"
	Pre     string   `yaml:"pre"`
	Post    string   `yaml:"post"`
}

// Policy returns the cache policy described by the service section.
func (c *Config) Policy() cachecontrol.Policy {
	return cachecontrol.Policy{
		Preview:       c.Service.Preview,
		DefaultMaxAge: c.Service.CacheTime,
		MinMaxAge:     c.Service.MinMaxAge,
		MaxMaxAge:     c.Service.MaxMaxAge,
	}
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(&cfg)

	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadFromEnv creates configuration entirely from environment variables.
//
// Environment variables:
//
//	CAAS_SERVER_HOST          - Server host (default: 0.0.0.0)
//	CAAS_SERVER_PORT          - Server port (default: 8080)
//	CAAS_SERVER_BASE_URL      - Prefix of generated content URIs
//	CAAS_DATABASE_DSN         - Database path (default: caas.db)
//	CAAS_LOG_LEVEL            - Log level: debug, info, warn, error (default: info)
//	CAAS_LOG_FORMAT           - Log format: json or console (default: json)
//	CAAS_METRICS_ENABLED      - Enable /metrics endpoint
//	CAAS_PREVIEW              - Disable response caching
//	CAAS_CACHE_TIME           - Default max-age in seconds (default: 300)
//	CAAS_DEFINITIONS_PATHS    - Comma-separated definition globs
//	CAAS_DEFINITIONS_WATCH    - Reload definitions on file change
//	CAAS_DEFAULT_DEFINITION   - Definition for anonymous callers
//	CAAS_ADMIN_TOKEN          - Admin API bearer token
func LoadFromEnv() (*Config, error) {
	var cfg Config

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadWithFallback loads the file when it exists and falls back to the
// environment otherwise.
func LoadWithFallback(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	return LoadFromEnv()
}

// applyEnvOverrides applies CAAS_* environment variables to the config.
// Environment variables always override file-based configuration.
func applyEnvOverrides(cfg *Config) {
	// Server configuration
	if v := os.Getenv("CAAS_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("CAAS_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("CAAS_SERVER_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ReadTimeout = d
		}
	}
	if v := os.Getenv("CAAS_SERVER_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.WriteTimeout = d
		}
	}
	if v := os.Getenv("CAAS_SERVER_BASE_URL"); v != "" {
		cfg.Server.BaseURL = v
	}

	// Database configuration
	if v := os.Getenv("CAAS_DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("CAAS_DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}

	// Logging configuration
	if v := os.Getenv("CAAS_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("CAAS_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	// Metrics configuration
	if v := os.Getenv("CAAS_METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = parseBool(v)
	}
	if v := os.Getenv("CAAS_METRICS_PATH"); v != "" {
		cfg.Metrics.Path = v
	}

	// Service configuration
	if v := os.Getenv("CAAS_PREVIEW"); v != "" {
		cfg.Service.Preview = parseBool(v)
	}
	if v := os.Getenv("CAAS_CACHE_TIME"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Service.CacheTime = n
		}
	}

	// Definitions configuration
	if v := os.Getenv("CAAS_DEFINITIONS_PATHS"); v != "" {
		cfg.Definitions.Paths = splitList(v)
	}
	if v := os.Getenv("CAAS_DEFINITIONS_WATCH"); v != "" {
		cfg.Definitions.Watch = parseBool(v)
	}

	// Clients and admin
	if v := os.Getenv("CAAS_DEFAULT_DEFINITION"); v != "" {
		cfg.Clients.DefaultDefinition = v
	}
	if v := os.Getenv("CAAS_CLIENTS_KEY_PREFIX"); v != "" {
		cfg.Clients.KeyPrefix = v
	}
	if v := os.Getenv("CAAS_ADMIN_TOKEN"); v != "" {
		cfg.Admin.Token = v
	}
}

// parseBool parses a boolean from common string values.
func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1" || v == "yes" || v == "on"
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func setDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 60 * time.Second
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 30 * time.Second
	}
	cfg.Server.BaseURL = strings.TrimSuffix(cfg.Server.BaseURL, "/")

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.DSN == "" {
		cfg.Database.DSN = "caas.db"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}

	if cfg.Service.CacheTime == 0 {
		cfg.Service.CacheTime = 300
	}

	if cfg.Definitions.Debounce == 0 {
		cfg.Definitions.Debounce = 250 * time.Millisecond
	}

	if cfg.Clients.KeyPrefix == "" {
		cfg.Clients.KeyPrefix = "caas_"
	}
}

func validate(cfg *Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", cfg.Server.Port)
	}

	if cfg.Database.Driver != "sqlite" {
		return fmt.Errorf("database.driver must be 'sqlite', got %q", cfg.Database.Driver)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	if cfg.Logging.Format != "json" && cfg.Logging.Format != "console" {
		return fmt.Errorf("logging.format must be 'json' or 'console', got %q", cfg.Logging.Format)
	}

	if !strings.HasPrefix(cfg.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with '/'")
	}

	if cfg.Service.CacheTime < 0 || cfg.Service.MinMaxAge < 0 || cfg.Service.MaxMaxAge < 0 {
		return fmt.Errorf("service cache times must not be negative")
	}
	if cfg.Service.MaxMaxAge > 0 && cfg.Service.MinMaxAge > cfg.Service.MaxMaxAge {
		return fmt.Errorf("service.min_max_age (%d) exceeds service.max_max_age (%d)", cfg.Service.MinMaxAge, cfg.Service.MaxMaxAge)
	}

	for i, p := range cfg.Definitions.Paths {
		if !doublestar.ValidatePathPattern(filepath.ToSlash(p)) {
			return fmt.Errorf("definitions.paths[%d]: invalid pattern %q", i, p)
		}
	}
	if cfg.Definitions.Watch && len(cfg.Definitions.Paths) == 0 {
		return fmt.Errorf("definitions.watch requires definitions.paths")
	}

	seen := make(map[string]bool)
	for i, ic := range cfg.Interceptors {
		if ic.Name == "" {
			return fmt.Errorf("interceptors[%d].name is required", i)
		}
		if seen[ic.Name] {
			return fmt.Errorf("interceptors[%d]: duplicate name %q", i, ic.Name)
		}
		seen[ic.Name] = true
		if ic.Pre == "" && ic.Post == "" {
			return fmt.Errorf("interceptor %s: pre or post is required", ic.Name)
		}
	}

	return nil
}
