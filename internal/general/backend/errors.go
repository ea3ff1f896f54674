package backend

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrTransport wraps failures that never produced an HTTP response.
var ErrTransport = errors.New("backend unreachable")

// APIError is a non-2xx response. Message is the server's own wording, taken
// from the "error" or "message" field of the body.
type APIError struct {
	Status  int
	Message string
	Method  string
	Path    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend: %s %s: %d %s", e.Method, e.Path, e.Status, http.StatusText(e.Status))
	}
	return e.Message
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// IsUnauthorized reports a 401 from any endpoint.
func IsUnauthorized(err error) bool { return StatusOf(err) == http.StatusUnauthorized }

// IsForbidden reports a 403 from any endpoint.
func IsForbidden(err error) bool { return StatusOf(err) == http.StatusForbidden }

// Message returns the text to show the driver for err, falling back to fallback
// when the server sent nothing usable.
func Message(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}
