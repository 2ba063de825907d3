package jsonapi

import (
	"encoding/json"
	"net/http"
	"strings"
)

// WriteDocument encodes doc with the JSON:API content type.
func WriteDocument(w http.ResponseWriter, status int, doc Document) {
	w.Header().Set("Content-Type", ContentType)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(doc)
}

// WriteCollection writes resources as primary data with meta.total.
func WriteCollection(w http.ResponseWriter, status int, resources []Resource) {
	if resources == nil {
		resources = []Resource{}
	}
	WriteDocument(w, status, Document{Data: resources, Meta: Meta{"total": len(resources)}})
}

// WriteCreated writes a 201 with a Location header when one is given.
func WriteCreated(w http.ResponseWriter, r Resource, location string) {
	if location != "" {
		w.Header().Set("Location", location)
	}
	WriteDocument(w, http.StatusCreated, Document{Data: r})
}

// WriteMeta writes a meta-only document.
func WriteMeta(w http.ResponseWriter, status int, meta Meta) {
	WriteDocument(w, status, Document{Meta: meta})
}

// WriteNoContent writes a bare 204.
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// WriteError writes an error document. The response status is taken from
// the first error.
func WriteError(w http.ResponseWriter, errs ...Error) {
	if len(errs) == 0 {
		errs = []Error{Problem(http.StatusInternalServerError, "internal_error", "")}
	}
	status := errs[0].StatusCode()
	if status == 0 {
		status = http.StatusInternalServerError
	}
	WriteDocument(w, status, Document{Errors: errs})
}

func WriteBadRequest(w http.ResponseWriter, detail string) {
	WriteError(w, Problem(http.StatusBadRequest, "bad_request", detail))
}

func WriteUnauthorized(w http.ResponseWriter, detail string) {
	WriteError(w, Problem(http.StatusUnauthorized, "unauthorized", detail))
}

func WriteForbidden(w http.ResponseWriter, detail string) {
	WriteError(w, Problem(http.StatusForbidden, "forbidden", detail))
}

func WriteNotFound(w http.ResponseWriter, resourceType string) {
	WriteError(w, Problem(http.StatusNotFound, "not_found", resourceType+" not found"))
}

// WriteMethodNotAllowed also sets the Allow header.
func WriteMethodNotAllowed(w http.ResponseWriter, method string, allowed []string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	WriteError(w, Problem(http.StatusMethodNotAllowed, "method_not_allowed", method+" is not allowed"))
}

func WriteValidationError(w http.ResponseWriter, field, message string) {
	e := Problem(http.StatusUnprocessableEntity, "validation_error", message)
	e.Source = &ErrorSource{Pointer: "/data/attributes/" + field}
	WriteError(w, e)
}

func WriteInternalError(w http.ResponseWriter, detail string) {
	WriteError(w, Problem(http.StatusInternalServerError, "internal_error", detail))
}
