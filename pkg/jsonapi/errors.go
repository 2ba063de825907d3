package jsonapi

import (
	"fmt"
	"net/http"
	"strconv"
)

// Error is an error object.
type Error struct {
	Status string       `json:"status"`
	Code   string       `json:"code"`
	Title  string       `json:"title"`
	Detail string       `json:"detail,omitempty"`
	Source *ErrorSource `json:"source,omitempty"`
}

// ErrorSource points at the request member that caused an error.
type ErrorSource struct {
	Pointer string `json:"pointer,omitempty"`
}

// Problem builds an error object. The title is the status text.
func Problem(status int, code, detail string) Error {
	return Error{
		Status: strconv.Itoa(status),
		Code:   code,
		Title:  http.StatusText(status),
		Detail: detail,
	}
}

// StatusCode returns the HTTP status, 0 if unparsable.
func (e Error) StatusCode() int {
	n, _ := strconv.Atoi(e.Status)
	return n
}

// ErrValidationRequired reports a missing body attribute.
func ErrValidationRequired(field string) Error {
	e := Problem(http.StatusUnprocessableEntity, "validation_error", field+" is required")
	e.Source = &ErrorSource{Pointer: "/data/attributes/" + field}
	return e
}

// ErrUnprocessable reports a body that parsed but was rejected.
func ErrUnprocessable(code, detail string) Error {
	return Problem(http.StatusUnprocessableEntity, code, detail)
}

// ErrNotImplemented reports an optional feature that is not configured.
func ErrNotImplemented(feature string) Error {
	return Problem(http.StatusNotImplemented, "not_implemented", fmt.Sprintf("%s is not configured", feature))
}
