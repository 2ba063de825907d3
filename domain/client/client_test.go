package client_test

import (
	"strings"
	"testing"
	"time"

	"github.com/artpar/caas/domain/client"
)

var (
	baseTime   = time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	pastTime   = baseTime.Add(-24 * time.Hour)
	futureTime = baseTime.Add(24 * time.Hour)
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name       string
		client     client.Client
		wantValid  bool
		wantReason string
	}{
		{
			name:      "valid client",
			client:    client.Client{ID: "cli-1", CreatedAt: pastTime},
			wantValid: true,
		},
		{
			name:      "valid client with future expiry",
			client:    client.Client{ID: "cli-2", ExpiresAt: &futureTime},
			wantValid: true,
		},
		{
			name:       "expired client",
			client:     client.Client{ID: "cli-3", ExpiresAt: &pastTime},
			wantReason: client.ReasonExpired,
		},
		{
			name:       "revoked takes precedence over expired",
			client:     client.Client{ID: "cli-4", ExpiresAt: &pastTime, RevokedAt: &pastTime},
			wantReason: client.ReasonRevoked,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := client.Validate(tt.client, baseTime)
			if result.Valid != tt.wantValid {
				t.Errorf("Valid = %v, want %v", result.Valid, tt.wantValid)
			}
			if result.Reason != tt.wantReason {
				t.Errorf("Reason = %q, want %q", result.Reason, tt.wantReason)
			}
			if tt.wantValid && result.Client.ID != tt.client.ID {
				t.Errorf("Client.ID = %s, want %s", result.Client.ID, tt.client.ID)
			}
		})
	}
}

func TestGenerate(t *testing.T) {
	raw, c := client.Generate(client.DefaultPrefix)

	if !strings.HasPrefix(raw, client.DefaultPrefix) {
		t.Errorf("raw key %q missing prefix", raw)
	}
	if len(raw) != len(client.DefaultPrefix)+64 {
		t.Errorf("len(raw) = %d, want %d", len(raw), len(client.DefaultPrefix)+64)
	}
	if c.Prefix != raw[:client.PrefixLen] {
		t.Errorf("Prefix = %s, want %s", c.Prefix, raw[:client.PrefixLen])
	}
	if !strings.HasPrefix(c.ID, "cli_") {
		t.Errorf("ID = %s, want cli_ prefix", c.ID)
	}
	if c.Hash != nil {
		t.Error("Generate must leave hashing to the caller")
	}
}

func TestValidateFormat(t *testing.T) {
	valid := client.DefaultPrefix + strings.Repeat("a", 64)

	prefix, ok := client.ValidateFormat(valid, client.DefaultPrefix)
	if !ok {
		t.Fatal("ValidateFormat(valid) = false")
	}
	if prefix != valid[:client.PrefixLen] {
		t.Errorf("prefix = %s, want %s", prefix, valid[:client.PrefixLen])
	}

	if _, ok := client.ValidateFormat("other_"+strings.Repeat("a", 64), client.DefaultPrefix); ok {
		t.Error("wrong prefix accepted")
	}
	if _, ok := client.ValidateFormat(client.DefaultPrefix+"short", client.DefaultPrefix); ok {
		t.Error("short key accepted")
	}
}

func TestAllows(t *testing.T) {
	tests := []struct {
		sites  []string
		tenant string
		site   string
		want   bool
	}{
		{nil, "acme", "web", true},
		{[]string{"*"}, "acme", "web", true},
		{[]string{"acme/web"}, "acme", "web", true},
		{[]string{"acme/web"}, "acme", "shop", false},
		{[]string{"acme/*"}, "acme", "shop", true},
		{[]string{"other/*"}, "acme", "shop", false},
	}

	for _, tt := range tests {
		c := client.Client{ID: "cli"}.WithSites(tt.sites)
		if got := c.Allows(tt.tenant, tt.site); got != tt.want {
			t.Errorf("Allows(%v, %s/%s) = %v, want %v", tt.sites, tt.tenant, tt.site, got, tt.want)
		}
	}
}

func TestIdentify(t *testing.T) {
	c := client.Client{ID: "cli-1"}.WithName("web app").WithDefinition("web")
	id := c.Identify()
	if id.ClientID != "cli-1" || id.DefinitionName != "web" || id.Anonymous {
		t.Errorf("Identify() = %+v", id)
	}
}
