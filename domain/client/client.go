// Package client provides API client value types and pure validation functions.
// This package has NO dependencies on I/O or external packages.
package client

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned by stores for unknown client ids.
var ErrNotFound = errors.New("client not found")

// DefaultPrefix is prepended to generated API keys.
const DefaultPrefix = "caas_"

// PrefixLen is the number of leading key characters stored for lookup.
const PrefixLen = 12

// AnySite grants access to every site.
const AnySite = "*"

// Client is a registered API consumer (immutable value type).
type Client struct {
	ID             string
	Name           string
	Hash           []byte   // bcrypt hash of the full key
	Prefix         string   // first PrefixLen chars for lookup
	DefinitionName string   // processing definition this client is entitled to
	Sites          []string // "tenant/site" entries or AnySite; empty = all
	ExpiresAt      *time.Time
	RevokedAt      *time.Time
	CreatedAt      time.Time
}

// Identification is the per-request result of client resolution.
type Identification struct {
	ClientID       string
	DefinitionName string
	Anonymous      bool
}

// ValidationResult represents the outcome of key validation (value type).
type ValidationResult struct {
	Valid  bool
	Client Client // populated only if Valid=true
	Reason string // populated only if Valid=false
}

// Reasons for validation failure.
const (
	ReasonValid     = ""
	ReasonNotFound  = "client_not_found"
	ReasonExpired   = "client_expired"
	ReasonRevoked   = "client_revoked"
	ReasonBadFormat = "invalid_format"
	ReasonBadKey    = "invalid_key"
	ReasonSite      = "site_not_allowed"
)

// Generate creates a new API key with the given prefix.
// Returns the raw key (handed to the client once) and the Client to store.
// The raw key is prefix + 64 hex chars. Hash is left for the caller's hasher.
func Generate(prefix string) (rawKey string, c Client) {
	randomBytes := make([]byte, 32)
	if _, err := rand.Read(randomBytes); err != nil {
		panic(fmt.Sprintf("crypto/rand failed: %v", err))
	}
	rawKey = prefix + hex.EncodeToString(randomBytes)

	idBytes := make([]byte, 8)
	if _, err := rand.Read(idBytes); err != nil {
		panic(fmt.Sprintf("crypto/rand failed: %v", err))
	}

	c = Client{
		ID:        "cli_" + hex.EncodeToString(idBytes),
		Prefix:    rawKey[:PrefixLen],
		CreatedAt: time.Now().UTC(),
	}
	return rawKey, c
}

// WithName returns a copy of the client with the Name set.
func (c Client) WithName(name string) Client {
	c.Name = name
	return c
}

// WithDefinition returns a copy of the client entitled to the named definition.
func (c Client) WithDefinition(name string) Client {
	c.DefinitionName = name
	return c
}

// WithSites returns a copy of the client restricted to the given sites.
func (c Client) WithSites(sites []string) Client {
	c.Sites = append([]string(nil), sites...)
	return c
}

// Identify returns the identification carried into the pipeline.
func (c Client) Identify() Identification {
	return Identification{ClientID: c.ID, DefinitionName: c.DefinitionName}
}
