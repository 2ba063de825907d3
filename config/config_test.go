package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/artpar/caas/config"
	"github.com/artpar/caas/domain/cachecontrol"
)

func TestLoad_ValidConfig(t *testing.T) {
	content := `
server:
  host: "127.0.0.1"
  port: 9090
  base_url: "https://cdn.example.com/"

database:
  driver: "sqlite"
  dsn: ":memory:"

service:
  cache_time: 120
  min_max_age: 10
  max_max_age: 3600

definitions:
  paths: ["defs/**/*.yaml", "defs/**/*.toml"]
  watch: true

clients:
  default_definition: "web"

admin:
  token: "s3cret"

interceptors:
  - name: "drafts"
    queries: ["page#*"]
    pre: 'params.draft != "true"'
`

	cfg := writeAndLoad(t, content)

	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Host = %s, want 127.0.0.1", cfg.Server.Host)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Server.BaseURL != "https://cdn.example.com" {
		t.Errorf("BaseURL = %s, want trailing slash trimmed", cfg.Server.BaseURL)
	}
	if cfg.Addr() != "127.0.0.1:9090" {
		t.Errorf("Addr = %s", cfg.Addr())
	}
	if len(cfg.Definitions.Paths) != 2 || !cfg.Definitions.Watch {
		t.Errorf("Definitions = %+v", cfg.Definitions)
	}
	if cfg.Clients.DefaultDefinition != "web" {
		t.Errorf("DefaultDefinition = %s, want web", cfg.Clients.DefaultDefinition)
	}
	if cfg.Admin.Token != "s3cret" {
		t.Errorf("Admin.Token = %s", cfg.Admin.Token)
	}
	if len(cfg.Interceptors) != 1 || cfg.Interceptors[0].Queries[0] != "page#*" {
		t.Fatalf("Interceptors = %+v", cfg.Interceptors)
	}

	want := cachecontrol.Policy{DefaultMaxAge: 120, MinMaxAge: 10, MaxMaxAge: 3600}
	if cfg.Policy() != want {
		t.Errorf("Policy = %+v, want %+v", cfg.Policy(), want)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg := writeAndLoad(t, "{}\n")

	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("default Host = %s, want 0.0.0.0", cfg.Server.Host)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("default Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Server.RequestTimeout != 30*time.Second {
		t.Errorf("default RequestTimeout = %v, want 30s", cfg.Server.RequestTimeout)
	}
	if cfg.Database.Driver != "sqlite" || cfg.Database.DSN != "caas.db" {
		t.Errorf("default Database = %+v", cfg.Database)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("default Logging = %+v", cfg.Logging)
	}
	if cfg.Metrics.Path != "/metrics" {
		t.Errorf("default Metrics.Path = %s", cfg.Metrics.Path)
	}
	if cfg.Service.CacheTime != 300 {
		t.Errorf("default CacheTime = %d, want 300", cfg.Service.CacheTime)
	}
	if cfg.Clients.KeyPrefix != "caas_" {
		t.Errorf("default KeyPrefix = %s, want caas_", cfg.Clients.KeyPrefix)
	}
	if cfg.Admin.Token != "" {
		t.Error("admin API must be disabled by default")
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("TEST_ADMIN_TOKEN", "from-env")

	cfg := writeAndLoad(t, `
admin:
  token: "${TEST_ADMIN_TOKEN}"
`)

	if cfg.Admin.Token != "from-env" {
		t.Errorf("Admin.Token = %s, want from-env", cfg.Admin.Token)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errPart string
	}{
		{"port", "server:\n  port: 70000\n", "server.port"},
		{"driver", "database:\n  driver: postgres\n", "database.driver"},
		{"log level", "logging:\n  level: verbose\n", "logging.level"},
		{"log format", "logging:\n  format: xml\n", "logging.format"},
		{"metrics path", "metrics:\n  path: metrics\n", "metrics.path"},
		{"negative cache time", "service:\n  cache_time: -1\n", "negative"},
		{"min above max", "service:\n  min_max_age: 100\n  max_max_age: 10\n", "min_max_age"},
		{"bad glob", "definitions:\n  paths: [\"defs/[*.yaml\"]\n", "invalid pattern"},
		{"watch without paths", "definitions:\n  watch: true\n", "definitions.watch"},
		{"nameless interceptor", "interceptors:\n  - pre: \"true\"\n", "name is required"},
		{"duplicate interceptor", "interceptors:\n  - {name: a, pre: \"true\"}\n  - {name: a, pre: \"true\"}\n", "duplicate"},
		{"empty interceptor", "interceptors:\n  - {name: a}\n", "pre or post"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := writeAndLoadErr(t, tt.content)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.errPart) {
				t.Errorf("error = %v, want it to mention %q", err, tt.errPart)
			}
		})
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CAAS_SERVER_PORT", "9999")
	t.Setenv("CAAS_DATABASE_DSN", "/tmp/env-test.db")
	t.Setenv("CAAS_LOG_LEVEL", "debug")
	t.Setenv("CAAS_METRICS_ENABLED", "true")
	t.Setenv("CAAS_PREVIEW", "yes")
	t.Setenv("CAAS_CACHE_TIME", "60")
	t.Setenv("CAAS_DEFINITIONS_PATHS", "a/*.yaml, b/**/*.toml")
	t.Setenv("CAAS_DEFAULT_DEFINITION", "web")
	t.Setenv("CAAS_ADMIN_TOKEN", "tok")

	cfg, err := config.LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv error: %v", err)
	}

	if cfg.Server.Port != 9999 {
		t.Errorf("Server.Port = %d, want 9999", cfg.Server.Port)
	}
	if cfg.Database.DSN != "/tmp/env-test.db" {
		t.Errorf("Database.DSN = %s, want /tmp/env-test.db", cfg.Database.DSN)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %s, want debug", cfg.Logging.Level)
	}
	if !cfg.Metrics.Enabled {
		t.Error("Metrics.Enabled = false, want true")
	}
	if !cfg.Service.Preview || cfg.Service.CacheTime != 60 {
		t.Errorf("Service = %+v", cfg.Service)
	}
	if len(cfg.Definitions.Paths) != 2 || cfg.Definitions.Paths[1] != "b/**/*.toml" {
		t.Errorf("Definitions.Paths = %v", cfg.Definitions.Paths)
	}
	if cfg.Clients.DefaultDefinition != "web" || cfg.Admin.Token != "tok" {
		t.Errorf("Clients = %+v, Admin = %+v", cfg.Clients, cfg.Admin)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("CAAS_SERVER_PORT", "7777")
	t.Setenv("CAAS_LOG_LEVEL", "error")

	cfg := writeAndLoad(t, `
server:
  port: 8080
  host: "127.0.0.1"
logging:
  level: "info"
`)

	if cfg.Server.Port != 7777 {
		t.Errorf("Server.Port = %d, want 7777 (env override)", cfg.Server.Port)
	}
	if cfg.Logging.Level != "error" {
		t.Errorf("Logging.Level = %s, want error (env override)", cfg.Logging.Level)
	}
	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Server.Host = %s, want file value", cfg.Server.Host)
	}
}

func TestLoadWithFallback(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "caas.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 9191\n"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := config.LoadWithFallback(path)
	if err != nil {
		t.Fatalf("LoadWithFallback error: %v", err)
	}
	if cfg.Server.Port != 9191 {
		t.Errorf("Server.Port = %d, want 9191 from file", cfg.Server.Port)
	}

	t.Setenv("CAAS_SERVER_PORT", "9292")
	cfg, err = config.LoadWithFallback(filepath.Join(dir, "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadWithFallback error: %v", err)
	}
	if cfg.Server.Port != 9292 {
		t.Errorf("Server.Port = %d, want 9292 from env", cfg.Server.Port)
	}
}

func TestParseBoolValues(t *testing.T) {
	tests := []struct {
		value    string
		expected bool
	}{
		{"true", true},
		{"TRUE", true},
		{"1", true},
		{"yes", true},
		{"on", true},
		{"false", false},
		{"0", false},
		{"no", false},
		{"off", false},
		{"invalid", false},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("CAAS_METRICS_ENABLED", tt.value)

			cfg, err := config.LoadFromEnv()
			if err != nil {
				t.Fatalf("LoadFromEnv error: %v", err)
			}
			if cfg.Metrics.Enabled != tt.expected {
				t.Errorf("Metrics.Enabled = %v, want %v", cfg.Metrics.Enabled, tt.expected)
			}
		})
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := writeAndLoadErr(t, "server:\n  port: [\n")
	if err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := config.Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Fatal("expected error for nonexistent file")
	}
}

// Helpers

func writeAndLoad(t *testing.T, content string) *config.Config {
	t.Helper()
	cfg, err := writeAndLoadErr(t, content)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	return cfg
}

func writeAndLoadErr(t *testing.T, content string) (*config.Config, error) {
	t.Helper()
	return config.Load(writeConfig(t, content))
}
