// Package errors renders JSON responses and the error envelope shared by all
// handlers and middleware.
package errors

import (
	"encoding/json"
	"net/http"
)

// APIError is the body of every non-2xx response. Code is a stable
// machine-readable identifier; Message is for humans.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e APIError) Error() string {
	return e.Code + ": " + e.Message
}

func Write(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// WriteError writes an APIError envelope with the given status.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	Write(w, status, APIError{Code: code, Message: message})
}

// WriteNoStore is Write for bodies carrying credentials, which caches and
// proxies must not keep.
func WriteNoStore(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	Write(w, status, payload)
}
