// Package apperr defines the error classes shared across the application.
package apperr

import (
	"errors"
	"strings"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	// ErrUnavailable covers every transport-class failure: network errors,
	// timeouts, 5xx responses, and malformed response bodies. Callers use it
	// to decide between tier fallthrough and the explicit offline path.
	ErrUnavailable = errors.New("backend unavailable")
)

// ValidationErrors is the full list of human-readable reasons a payload was
// rejected. It is collected before any network call is attempted.
type ValidationErrors []string

func (v ValidationErrors) Error() string {
	return "validation failed: " + strings.Join(v, "; ")
}

// AsValidation extracts a ValidationErrors from err, if present.
func AsValidation(err error) (ValidationErrors, bool) {
	var v ValidationErrors
	if errors.As(err, &v) {
		return v, true
	}
	return nil, false
}
