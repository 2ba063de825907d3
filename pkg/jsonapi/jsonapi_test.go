package jsonapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestProblem(t *testing.T) {
	e := Problem(http.StatusNotFound, "site_not_found", "no site acme-web")
	if e.Status != "404" || e.Title != "Not Found" || e.StatusCode() != 404 {
		t.Errorf("problem = %+v", e)
	}

	w := httptest.NewRecorder()
	WriteError(w, e)
	if w.Header().Get("Content-Type") != ContentType {
		t.Errorf("Content-Type = %v, want %v", w.Header().Get("Content-Type"), ContentType)
	}
	if w.Code != http.StatusNotFound {
		t.Errorf("Status = %d, want 404", w.Code)
	}
}

func TestWriteCollection(t *testing.T) {
	t.Run("with resources", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteCollection(w, http.StatusOK, []Resource{
			NewResource("definitions", "web").Build(),
			NewResource("definitions", "mobile").Build(),
		})

		var doc Document
		if err := json.Unmarshal(w.Body.Bytes(), &doc); err != nil {
			t.Fatalf("Invalid JSON: %v", err)
		}
		if data, ok := doc.Data.([]any); !ok || len(data) != 2 {
			t.Errorf("data = %v, want 2 resources", doc.Data)
		}
		if doc.Meta["total"] != float64(2) {
			t.Errorf("meta.total = %v, want 2", doc.Meta["total"])
		}
	})

	t.Run("empty collection is an array", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteCollection(w, http.StatusOK, nil)

		var raw map[string]json.RawMessage
		if err := json.Unmarshal(w.Body.Bytes(), &raw); err != nil {
			t.Fatalf("Invalid JSON: %v", err)
		}
		if string(raw["data"]) != "[]" {
			t.Errorf("data = %s, want []", raw["data"])
		}
	})
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name   string
		write  func(w http.ResponseWriter)
		status int
		code   string
	}{
		{"bad request", func(w http.ResponseWriter) { WriteBadRequest(w, "bad") }, 400, "bad_request"},
		{"unauthorized", func(w http.ResponseWriter) { WriteUnauthorized(w, "") }, 401, "unauthorized"},
		{"forbidden", func(w http.ResponseWriter) { WriteForbidden(w, "") }, 403, "forbidden"},
		{"not found", func(w http.ResponseWriter) { WriteNotFound(w, "client") }, 404, "not_found"},
		{"validation", func(w http.ResponseWriter) { WriteValidationError(w, "name", "name is required") }, 422, "validation_error"},
		{"unprocessable", func(w http.ResponseWriter) { WriteError(w, ErrUnprocessable("invalid_definition", "no queries")) }, 422, "invalid_definition"},
		{"internal", func(w http.ResponseWriter) { WriteInternalError(w, "") }, 500, "internal_error"},
		{"not implemented", func(w http.ResponseWriter) { WriteError(w, ErrNotImplemented("static definitions")) }, 501, "not_implemented"},
		{"no errors", func(w http.ResponseWriter) { WriteError(w) }, 500, "internal_error"},
		{"custom status", func(w http.ResponseWriter) {
			WriteError(w, Error{Status: "404", Code: "site_not_found", Title: "site_not_found"})
		}, 404, "site_not_found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.write(w)

			if w.Code != tt.status {
				t.Errorf("Status = %d, want %d", w.Code, tt.status)
			}
			var doc Document
			if err := json.Unmarshal(w.Body.Bytes(), &doc); err != nil {
				t.Fatalf("Invalid JSON: %v", err)
			}
			if len(doc.Errors) != 1 || doc.Errors[0].Code != tt.code {
				t.Errorf("errors = %+v, want code %s", doc.Errors, tt.code)
			}
		})
	}
}

func TestErrValidation_Pointer(t *testing.T) {
	e := ErrValidationRequired("name")
	if e.Source == nil || e.Source.Pointer != "/data/attributes/name" {
		t.Errorf("source = %+v", e.Source)
	}
	if e.Detail != "name is required" {
		t.Errorf("detail = %q", e.Detail)
	}
}

func TestWriteMethodNotAllowed(t *testing.T) {
	w := httptest.NewRecorder()
	WriteMethodNotAllowed(w, "POST", []string{"GET", "HEAD"})

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Status = %d, want 405", w.Code)
	}
	if got := w.Header().Get("Allow"); got != "GET, HEAD" {
		t.Errorf("Allow = %q", got)
	}
}

func TestWriteMetaAndNoContent(t *testing.T) {
	w := httptest.NewRecorder()
	WriteMeta(w, http.StatusOK, Meta{"invalidated": "acme-web"})

	var doc Document
	if err := json.Unmarshal(w.Body.Bytes(), &doc); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if doc.Meta["invalidated"] != "acme-web" {
		t.Errorf("meta = %v", doc.Meta)
	}

	w = httptest.NewRecorder()
	WriteNoContent(w)
	if w.Code != http.StatusNoContent || w.Body.Len() != 0 {
		t.Errorf("no content = %d %q", w.Code, w.Body.String())
	}
}

func TestWriteCreated(t *testing.T) {
	w := httptest.NewRecorder()
	WriteCreated(w, NewResource("clients", "cli_1").Attr("name", "mobile").Meta("once", true).Build(), "/admin/clients/cli_1")

	if w.Code != http.StatusCreated {
		t.Errorf("Status = %d, want 201", w.Code)
	}
	var doc struct {
		Data Resource `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &doc); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if doc.Data.Type != "clients" || doc.Data.Attributes["name"] != "mobile" || doc.Data.Meta["once"] != true {
		t.Errorf("data = %+v", doc.Data)
	}
	if got := w.Header().Get("Location"); got != "/admin/clients/cli_1" {
		t.Errorf("Location = %q", got)
	}
}
