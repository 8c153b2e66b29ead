package sdk

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is a client-facing failure reported by the server. Error returns
// the server's description unchanged so forms can display it directly.
type APIError struct {
	Status      int    `json:"-"`
	Code        string `json:"error"`
	Description string `json:"error_description"`
}

func (e *APIError) Error() string {
	if e.Description != "" {
		return e.Description
	}
	if e.Code != "" {
		return e.Code
	}
	return fmt.Sprintf("request failed: %s", http.StatusText(e.Status))
}

// IsUnauthorized reports whether err is an APIError carrying 401.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}

// isClientError reports whether the server rejected the request itself, as
// opposed to being unreachable or failing internally.
func isClientError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500
}
