package middleware

import (
	"encoding/json"
	"net/http"
)

// ErrorBody is the JSON error envelope shared by every endpoint.
type ErrorBody struct {
	Code        string `json:"error"`
	Description string `json:"error_description"`
}

// WriteError writes a JSON error envelope with the given status.
func WriteError(w http.ResponseWriter, status int, code, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorBody{Code: code, Description: description})
}

func unauthenticated(w http.ResponseWriter, description string) {
	WriteError(w, http.StatusUnauthorized, "unauthorized", description)
}
