// Package admin provides HTTP handlers for the Admin API.
package admin

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/artpar/caas/adapters/definitions"
	"github.com/artpar/caas/app"
	"github.com/artpar/caas/domain/client"
	"github.com/artpar/caas/domain/definition"
	"github.com/artpar/caas/domain/settings"
	"github.com/artpar/caas/pkg/jsonapi"
	"github.com/artpar/caas/ports"
)

// JSON:API resource types.
const (
	TypeDefinition = "definitions"
	TypeClient     = "clients"
)

// maxDocumentSize bounds uploaded definition documents.
const maxDocumentSize = 1 << 20

// Handler provides admin API endpoints.
type Handler struct {
	definitions *app.DefinitionCache
	settings    *app.SettingsService
	clients     *app.ClientService
	loader      ports.DefinitionLoader
	logger      zerolog.Logger
	token       atomic.Pointer[string]
}

// Deps contains dependencies for the admin handler.
type Deps struct {
	Definitions *app.DefinitionCache
	Settings    *app.SettingsService
	Clients     *app.ClientService
	Loader      ports.DefinitionLoader // static definitions, optional
	Token       string
	Logger      zerolog.Logger
}

// NewHandler creates a new admin API handler.
func NewHandler(deps Deps) *Handler {
	h := &Handler{
		definitions: deps.Definitions,
		settings:    deps.Settings,
		clients:     deps.Clients,
		loader:      deps.Loader,
		logger:      deps.Logger.With().Str("component", "admin").Logger(),
	}
	h.SetToken(deps.Token)
	return h
}

// SetToken replaces the bearer token. An empty token disables the API.
func (h *Handler) SetToken(token string) {
	h.token.Store(&token)
}

// Router returns the admin API router.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(h.AuthMiddleware)

	// Definition cache
	r.Post("/invalidate", h.InvalidateAll)
	r.Post("/sites/{indicator}/invalidate", h.InvalidateSite)
	r.Post("/definitions/reload", h.ReloadStatic)

	// Site definitions
	r.Get("/sites/{indicator}/definitions", h.ListDefinitions)
	r.Put("/sites/{indicator}/definitions/{name}", h.PutDefinition)
	r.Delete("/sites/{indicator}/definitions/{name}", h.DeleteDefinition)

	// Clients
	r.Get("/clients", h.ListClients)
	r.Post("/clients", h.CreateClient)
	r.Delete("/clients/{id}", h.RevokeClient)

	return r
}

// AuthMiddleware requires the configured bearer token.
func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		want := *h.token.Load()
		if want == "" {
			jsonapi.WriteForbidden(w, "Admin API is disabled")
			return
		}

		got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
			jsonapi.WriteUnauthorized(w, "Valid admin token required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// -----------------------------------------------------------------------------
// Definition cache
// -----------------------------------------------------------------------------

// InvalidateAll drops every cached site.
func (h *Handler) InvalidateAll(w http.ResponseWriter, r *http.Request) {
	h.definitions.InvalidateAll()
	jsonapi.WriteMeta(w, http.StatusOK, jsonapi.Meta{"invalidated": "*"})
}

// InvalidateSite drops the cached definitions of one site.
func (h *Handler) InvalidateSite(w http.ResponseWriter, r *http.Request) {
	indicator := chi.URLParam(r, "indicator")
	h.definitions.Invalidate(indicator)
	jsonapi.WriteMeta(w, http.StatusOK, jsonapi.Meta{"invalidated": indicator})
}

// ReloadStatic reloads the file-based fallback definitions.
func (h *Handler) ReloadStatic(w http.ResponseWriter, r *http.Request) {
	if h.loader == nil {
		jsonapi.WriteError(w, jsonapi.ErrNotImplemented("static definitions"))
		return
	}
	if err := h.definitions.LoadStatic(r.Context(), h.loader); err != nil {
		h.logger.Error().Err(err).Msg("static definition reload failed")
		jsonapi.WriteError(w, jsonapi.ErrUnprocessable("invalid_definition", err.Error()))
		return
	}
	jsonapi.WriteMeta(w, http.StatusOK, jsonapi.Meta{"definitions": h.definitions.Static().Names()})
}

// -----------------------------------------------------------------------------
// Site definitions
// -----------------------------------------------------------------------------

// ListDefinitions returns the definitions a site resolves, its own first,
// then static fallbacks it does not override.
func (h *Handler) ListDefinitions(w http.ResponseWriter, r *http.Request) {
	indicator := chi.URLParam(r, "indicator")

	defs, err := h.definitions.Get(r.Context(), indicator)
	if err != nil {
		h.logger.Error().Err(err).Str("site", indicator).Msg("failed to load site definitions")
		jsonapi.WriteInternalError(w, "failed to load site definitions")
		return
	}

	resources := make([]jsonapi.Resource, 0, len(defs))
	for _, name := range defs.Names() {
		resources = append(resources, definitionResource(name, "site", defs[name]))
	}
	static := h.definitions.Static()
	for _, name := range static.Names() {
		if _, overridden := defs[name]; overridden {
			continue
		}
		resources = append(resources, definitionResource(name, "static", static[name]))
	}

	jsonapi.WriteCollection(w, http.StatusOK, resources)
}

func definitionResource(name, source string, pd *definition.ProcessingDefinition) jsonapi.Resource {
	b := jsonapi.NewResource(TypeDefinition, name).
		Attr("source", source).
		Attr("valid", pd.IsValid())
	if pd.IsValid() {
		b.Attr("description", pd.Description).
			Attr("queries", pd.Queries.Keys())
		types := make([]string, 0)
		for _, td := range pd.Schema.Types() {
			types = append(types, td.Name)
		}
		b.Attr("types", types)
	}
	return b.Build()
}

// PutDefinition stores a site definition document. The document is built
// against the current content types first and rejected if it is invalid.
func (h *Handler) PutDefinition(w http.ResponseWriter, r *http.Request) {
	indicator := chi.URLParam(r, "indicator")
	name := chi.URLParam(r, "name")
	if !settings.ValidIndicator(indicator) {
		jsonapi.WriteValidationError(w, "indicator", "invalid site indicator")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxDocumentSize))
	if err != nil {
		jsonapi.WriteBadRequest(w, "failed to read body")
		return
	}

	doc, err := definitions.DecodeSetting(string(body))
	if err != nil {
		jsonapi.WriteBadRequest(w, err.Error())
		return
	}
	doc.Name = name
	if _, err := h.definitions.Validate(r.Context(), doc); err != nil {
		jsonapi.WriteError(w, jsonapi.ErrUnprocessable("invalid_definition", err.Error()))
		return
	}

	if err := h.settings.PutDefinition(r.Context(), indicator, name, string(body)); err != nil {
		h.logger.Error().Err(err).Str("site", indicator).Str("definition", name).Msg("failed to store definition")
		jsonapi.WriteInternalError(w, "failed to store definition")
		return
	}

	h.logger.Info().Str("site", indicator).Str("definition", name).Msg("site definition stored")
	jsonapi.WriteNoContent(w)
}

// DeleteDefinition removes a site definition document.
func (h *Handler) DeleteDefinition(w http.ResponseWriter, r *http.Request) {
	indicator := chi.URLParam(r, "indicator")
	name := chi.URLParam(r, "name")

	if err := h.settings.DeleteDefinition(r.Context(), indicator, name); err != nil {
		h.logger.Error().Err(err).Str("site", indicator).Str("definition", name).Msg("failed to delete definition")
		jsonapi.WriteInternalError(w, "failed to delete definition")
		return
	}
	jsonapi.WriteNoContent(w)
}

// -----------------------------------------------------------------------------
// Clients
// -----------------------------------------------------------------------------

// CreateClientRequest represents a request to create a client.
type CreateClientRequest struct {
	Name       string     `json:"name"`
	Definition string     `json:"definition,omitempty"`
	Sites      []string   `json:"sites,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

// ListClients returns all clients. Hashes are never exposed.
func (h *Handler) ListClients(w http.ResponseWriter, r *http.Request) {
	list, err := h.clients.List(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list clients")
		jsonapi.WriteInternalError(w, "failed to list clients")
		return
	}

	resources := make([]jsonapi.Resource, 0, len(list))
	for _, c := range list {
		resources = append(resources, clientResource(c).Build())
	}
	jsonapi.WriteCollection(w, http.StatusOK, resources)
}

// CreateClient registers a client. The raw key is returned once.
func (h *Handler) CreateClient(w http.ResponseWriter, r *http.Request) {
	var req CreateClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonapi.WriteBadRequest(w, "invalid JSON body")
		return
	}
	if req.Name == "" {
		jsonapi.WriteError(w, jsonapi.ErrValidationRequired("name"))
		return
	}

	raw, c, err := h.clients.Create(r.Context(), app.CreateParams{
		Name:       req.Name,
		Definition: req.Definition,
		Sites:      req.Sites,
		ExpiresAt:  req.ExpiresAt,
	})
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to create client")
		jsonapi.WriteInternalError(w, "failed to create client")
		return
	}

	jsonapi.WriteCreated(w, clientResource(c).Attr("key", raw).Build(), "/admin/clients/"+c.ID)
}

// RevokeClient revokes a client immediately.
func (h *Handler) RevokeClient(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.clients.Revoke(r.Context(), id); err != nil {
		if errors.Is(err, client.ErrNotFound) {
			jsonapi.WriteNotFound(w, TypeClient)
			return
		}
		h.logger.Error().Err(err).Str("client", id).Msg("failed to revoke client")
		jsonapi.WriteInternalError(w, "failed to revoke client")
		return
	}
	jsonapi.WriteNoContent(w)
}

func clientResource(c client.Client) *jsonapi.ResourceBuilder {
	b := jsonapi.NewResource(TypeClient, c.ID).
		Attr("name", c.Name).
		Attr("prefix", c.Prefix).
		Attr("definition", c.DefinitionName).
		Attr("sites", c.Sites).
		Attr("created_at", c.CreatedAt.Format(time.RFC3339))
	if c.ExpiresAt != nil {
		b.Attr("expires_at", c.ExpiresAt.Format(time.RFC3339))
	}
	if c.RevokedAt != nil {
		b.Attr("revoked_at", c.RevokedAt.Format(time.RFC3339))
	}
	return b
}
