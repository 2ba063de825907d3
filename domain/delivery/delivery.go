// Package delivery provides request/response value types for the delivery layer.
package delivery

import (
	"time"

	"github.com/artpar/caas/domain/cachecontrol"
)

// Request is an incoming query request (value type).
// It is extracted from HTTP and passed to the pipeline.
type Request struct {
	// Authentication
	APIKey string

	// Addressing
	TenantID string
	SiteID   string
	Query    string
	View     string
	TargetID string // empty = site root; comma separated = list target

	// Query variables and request context
	Params  map[string]string
	Headers map[string]string

	// Metadata
	RemoteIP string
	TraceID  string
}

// Result is the outcome of one pipeline run (value type).
type Result struct {
	Status       int
	CacheControl cachecontrol.Directive
	ContentType  string
	Data         any

	// Skipped is set when a pre-query interceptor declined the request.
	// It is not an error and carries no body.
	Skipped bool

	Error *ErrorResponse

	// Metadata (for logging)
	Definition string
	Client     string
	Latency    time.Duration
	EngineErrs int
}

// ErrorResponse represents an error to return to client (value type).
type ErrorResponse struct {
	Status  int
	Code    string
	Message string
}

func (e *ErrorResponse) Error() string {
	return e.Code + ": " + e.Message
}

// WithMessage returns a copy with a more specific message.
func (e ErrorResponse) WithMessage(msg string) *ErrorResponse {
	e.Message = msg
	return &e
}

// ContentTypeJSON is the content type of successful results.
const ContentTypeJSON = "application/json"

// Common error responses
var (
	ErrDefinitionNotFound = ErrorResponse{
		Status:  404,
		Code:    "definition_not_found",
		Message: "Processing definition not found",
	}
	ErrQueryNotFound = ErrorResponse{
		Status:  404,
		Code:    "query_not_found",
		Message: "Query not found",
	}
	ErrSiteNotFound = ErrorResponse{
		Status:  404,
		Code:    "site_not_found",
		Message: "Site not found",
	}
	ErrTargetNotFound = ErrorResponse{
		Status:  404,
		Code:    "target_not_found",
		Message: "Target content not found",
	}
	ErrAccessDenied = ErrorResponse{
		Status:  403,
		Code:    "access_denied",
		Message: "Client is not entitled to this site or definition",
	}
	ErrInvalidClient = ErrorResponse{
		Status:  401,
		Code:    "invalid_client",
		Message: "Invalid or expired API key",
	}
	ErrInternal = ErrorResponse{
		Status:  500,
		Code:    "internal_error",
		Message: "Internal server error",
	}
)
