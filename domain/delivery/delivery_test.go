package delivery_test

import (
	"errors"
	"testing"

	"github.com/artpar/caas/domain/delivery"
)

func TestErrorResponses(t *testing.T) {
	tests := []struct {
		name   string
		err    delivery.ErrorResponse
		status int
		code   string
	}{
		{"definition", delivery.ErrDefinitionNotFound, 404, "definition_not_found"},
		{"query", delivery.ErrQueryNotFound, 404, "query_not_found"},
		{"site", delivery.ErrSiteNotFound, 404, "site_not_found"},
		{"target", delivery.ErrTargetNotFound, 404, "target_not_found"},
		{"access", delivery.ErrAccessDenied, 403, "access_denied"},
		{"client", delivery.ErrInvalidClient, 401, "invalid_client"},
		{"internal", delivery.ErrInternal, 500, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Status != tt.status {
				t.Errorf("Status = %d, want %d", tt.err.Status, tt.status)
			}
			if tt.err.Code != tt.code {
				t.Errorf("Code = %s, want %s", tt.err.Code, tt.code)
			}
			if tt.err.Message == "" {
				t.Error("Message should not be empty")
			}
		})
	}
}

func TestErrorResponse_WithMessage(t *testing.T) {
	e := delivery.ErrQueryNotFound.WithMessage("query page#teaser not found")

	if e.Message != "query page#teaser not found" {
		t.Errorf("Message = %s", e.Message)
	}
	if delivery.ErrQueryNotFound.Message != "Query not found" {
		t.Error("WithMessage must not modify the shared value")
	}

	var err error = e
	var target *delivery.ErrorResponse
	if !errors.As(err, &target) || target.Status != 404 {
		t.Errorf("errors.As = %+v", target)
	}
}
