package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"
)

// ErrorResponse is the JSON body every failed request carries.
type ErrorResponse struct {
	Error   string `json:"error"`             // stable machine-readable code
	Message string `json:"message"`           // human-readable description
	Details string `json:"details,omitempty"` // optional extra context
}

// WriteError writes a JSON error response with the given status code.
func WriteError(w http.ResponseWriter, statusCode int, errorCode, message string) {
	WriteErrorWithDetails(w, statusCode, errorCode, message, "")
}

// WriteErrorWithDetails writes a JSON error response with additional details.
func WriteErrorWithDetails(w http.ResponseWriter, statusCode int, errorCode, message, details string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	// Encoding failures at this point leave the status line intact; nothing
	// useful can be sent to the client anymore.
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:   errorCode,
		Message: message,
		Details: details,
	})
}

// Convenience writers keep handler code to one line per failure mode.

func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, "bad_request", message)
}

func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, "unauthorized", message)
}

func WriteForbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, "forbidden", message)
}

func WriteNotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, "not_found", message)
}

func WriteConflict(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, "conflict", message)
}

func WriteInternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, "internal_error", message)
}

// WriteRateLimited sets Retry-After from the wait duration, rounded up so a
// client that honors it never retries inside the window.
func WriteRateLimited(w http.ResponseWriter, retryAfter time.Duration, message string) {
	w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())+1))
	WriteError(w, http.StatusTooManyRequests, "rate_limit_exceeded", message)
}

// WriteLocked reports a temporarily locked account, with Retry-After pointing
// at the unlock time.
func WriteLocked(w http.ResponseWriter, unlockAt time.Time, message string) {
	w.Header().Set("Retry-After", strconv.Itoa(int(time.Until(unlockAt).Seconds())+1))
	WriteError(w, http.StatusLocked, "account_locked", message)
}
