package models

import "time"

// RateLimit is the counter row for one (identifier, endpoint) pair. Once
// BlockedUntil is set it dominates window logic until it elapses; a request
// after that opens a fresh window.
type RateLimit struct {
	Identifier   string
	Endpoint     string
	Count        int
	WindowStart  time.Time
	BlockedUntil *time.Time
}

// Decision is the outcome of a rate limit check.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration // meaningful only when Allowed is false
}
