package models

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// ErrKeyMismatch signals that stored ciphertext was produced under a
	// different master key than the one currently configured.
	ErrKeyMismatch = errors.New("encryption key mismatch")
)

// LockedError is returned when an account is temporarily locked after
// repeated failed logins. It carries the time at which the lock elapses.
type LockedError struct {
	UnlockAt time.Time
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("account is temporarily locked until %s", e.UnlockAt.UTC().Format(time.RFC3339))
}

// RateLimitedError is returned when a request exceeds the configured
// threshold for its (identifier, endpoint) pair.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry after %s", e.RetryAfter)
}

// ValidationError wraps a field-level input problem. Its message is safe to
// return verbatim to the caller.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}
