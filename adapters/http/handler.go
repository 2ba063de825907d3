// Package http provides the HTTP transport of the delivery server.
package http

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/artpar/caas/adapters/metrics"
	"github.com/artpar/caas/domain/delivery"
	"github.com/artpar/caas/pkg/jsonapi"
	"github.com/artpar/caas/ports"
)

// Reserved request parameters. Every other query parameter is passed to the
// query as a variable.
const (
	ParamView   = "view"
	ParamAPIKey = "api_key"
)

// QueryRunner executes delivery requests.
type QueryRunner interface {
	Execute(ctx context.Context, req delivery.Request) delivery.Result
}

// QueryHandler serves named queries.
type QueryHandler struct {
	queries QueryRunner
	logger  zerolog.Logger
}

// NewQueryHandler creates a new query handler.
func NewQueryHandler(queries QueryRunner, logger zerolog.Logger) *QueryHandler {
	return &QueryHandler{
		queries: queries,
		logger:  logger,
	}
}

// ServeHTTP handles GET /caas/v1/{tenantID}/sites/{siteID}/{query}[/{targetID}].
func (h *QueryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	req := delivery.Request{
		APIKey:   extractAPIKey(r),
		TenantID: chi.URLParam(r, "tenantID"),
		SiteID:   chi.URLParam(r, "siteID"),
		Query:    chi.URLParam(r, "query"),
		View:     r.URL.Query().Get(ParamView),
		TargetID: chi.URLParam(r, "targetID"),
		Params:   extractParams(r),
		Headers:  extractHeaders(r),
		RemoteIP: extractIP(r),
		TraceID:  middleware.GetReqID(r.Context()),
	}

	res := h.queries.Execute(r.Context(), req)

	if res.Error != nil {
		writeError(w, res.Error)
		return
	}
	if res.Skipped {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	contentType := res.ContentType
	if contentType == "" {
		contentType = delivery.ContentTypeJSON
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", res.CacheControl.String())
	if res.Definition != "" {
		w.Header().Set("X-Processing-Definition", res.Definition)
	}

	status := res.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(res.Data); err != nil {
		h.logger.Error().Err(err).Str("request_id", req.TraceID).Msg("failed to write response")
	}
}

// extractAPIKey gets the API key from the request.
func extractAPIKey(r *http.Request) string {
	// Try Authorization header first (Bearer token)
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}

	// Try X-API-Key header
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}

	// Try query parameter (less secure, but sometimes needed)
	return r.URL.Query().Get(ParamAPIKey)
}

// extractParams collects query variables. Repeated parameters keep the
// first value.
func extractParams(r *http.Request) map[string]string {
	params := make(map[string]string)
	for k, v := range r.URL.Query() {
		if k == ParamView || k == ParamAPIKey || len(v) == 0 {
			continue
		}
		params[k] = v[0]
	}
	return params
}

// extractHeaders converts http.Header to map.
func extractHeaders(r *http.Request) map[string]string {
	headers := make(map[string]string)
	for k, v := range r.Header {
		if len(v) == 0 || k == "Authorization" || k == "X-Api-Key" {
			continue
		}
		headers[k] = v[0]
	}
	return headers
}

// extractIP gets the client IP address.
func extractIP(r *http.Request) string {
	// RealIP middleware already rewrote RemoteAddr from X-Forwarded-For / X-Real-IP
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// writeError writes a JSON:API error response.
func writeError(w http.ResponseWriter, err *delivery.ErrorResponse) {
	jsonapi.WriteError(w, jsonapi.Problem(err.Status, err.Code, err.Message))
}

// HealthHandler provides health check endpoints.
type HealthHandler struct {
	checker HealthChecker
}

// HealthChecker reports whether a backing service is usable.
type HealthChecker interface {
	Check(ctx context.Context) error
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(checker HealthChecker) *HealthHandler {
	return &HealthHandler{checker: checker}
}

// Liveness returns a simple liveness check.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// Readiness checks if the service is ready to handle traffic.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if h.checker != nil {
		if err := h.checker.Check(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"status": "unhealthy",
				"error":  err.Error(),
			})
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// VersionResponse describes the running build.
type VersionResponse struct {
	Version string `json:"version"`
	Service string `json:"service"`
}

// BuildVersion is reported by /version. Set by the binary at startup.
var BuildVersion = "dev"

// Version returns the service version.
func Version(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(VersionResponse{
		Version: BuildVersion,
		Service: "caas",
	})
}

// RouterConfig holds optional configuration for the router.
type RouterConfig struct {
	Metrics        *metrics.Collector
	MetricsHandler http.Handler // exporter, defaults to promhttp.Handler()
	MetricsPath    string       // defaults to /metrics
	AdminHandler   http.Handler // mounted at /admin when set
	RequestTimeout time.Duration
	IDs            ports.IDGenerator // request ids, defaults to chi's generator
}

// NewRouter creates the main HTTP router.
func NewRouter(queryHandler *QueryHandler, healthHandler *HealthHandler, logger zerolog.Logger) chi.Router {
	return NewRouterWithConfig(queryHandler, healthHandler, logger, RouterConfig{})
}

// NewRouterWithConfig creates the main HTTP router with optional config.
func NewRouterWithConfig(queryHandler *QueryHandler, healthHandler *HealthHandler, logger zerolog.Logger, cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	// Middleware
	if cfg.IDs != nil {
		r.Use(NewRequestIDMiddleware(cfg.IDs))
	} else {
		r.Use(middleware.RequestID)
	}
	r.Use(middleware.RealIP)
	r.Use(NewLoggingMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))

	metricsPath := cfg.MetricsPath
	if metricsPath == "" {
		metricsPath = "/metrics"
	}

	// Metrics middleware (if enabled)
	if cfg.Metrics != nil {
		r.Use(NewMetricsMiddleware(cfg.Metrics, metricsPath))
	}

	// Health endpoints
	r.Get("/health", healthHandler.Liveness)
	r.Get("/health/live", healthHandler.Liveness)
	r.Get("/health/ready", healthHandler.Readiness)

	// Metrics endpoint
	if cfg.Metrics != nil {
		handler := cfg.MetricsHandler
		if handler == nil {
			handler = promhttp.Handler()
		}
		r.Handle(metricsPath, handler)
	}

	r.Get("/version", Version)

	// Delivery API
	r.Route("/caas/v1/{tenantID}/sites/{siteID}", func(r chi.Router) {
		r.Method(http.MethodGet, "/{query}", queryHandler)
		r.Method(http.MethodGet, "/{query}/{targetID}", queryHandler)
	})

	if cfg.AdminHandler != nil {
		r.Mount("/admin", cfg.AdminHandler)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		jsonapi.WriteNotFound(w, "route")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		jsonapi.WriteMethodNotAllowed(w, r.Method, []string{http.MethodGet})
	})

	return r
}

// NewRequestIDMiddleware tags each request with an id, keeping an incoming
// X-Request-Id. The id is readable through middleware.GetReqID.
func NewRequestIDMiddleware(ids ports.IDGenerator) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(middleware.RequestIDHeader)
			if id == "" {
				id = ids.New()
			}
			w.Header().Set(middleware.RequestIDHeader, id)
			ctx := context.WithValue(r.Context(), middleware.RequestIDKey, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// NewMetricsMiddleware creates middleware that records request metrics.
func NewMetricsMiddleware(m *metrics.Collector, metricsPath string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Skip metrics for internal endpoints
			if strings.HasPrefix(r.URL.Path, "/health") || r.URL.Path == metricsPath {
				next.ServeHTTP(w, r)
				return
			}

			m.RequestsInFlight.Inc()
			defer m.RequestsInFlight.Dec()

			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			duration := time.Since(start).Seconds()
			status := statusLabel(ww.Status())
			route := routePattern(r)

			m.RequestsTotal.WithLabelValues(r.Method, route, status).Inc()
			m.RequestDuration.WithLabelValues(r.Method, route, status).Observe(duration)
		})
	}
}

// routePattern returns the matched chi pattern, keeping label cardinality
// independent of tenants, sites and content ids.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

// statusLabel returns a string label for the status code.
func statusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "other"
	}
}

// NewLoggingMiddleware creates a new logging middleware.
func NewLoggingMiddleware(logger zerolog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			// Skip logging for health checks and metrics
			if strings.HasPrefix(r.URL.Path, "/health") || r.URL.Path == "/metrics" {
				return
			}

			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("http request")
		})
	}
}
