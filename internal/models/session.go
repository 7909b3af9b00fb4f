package models

import "time"

// Session is a server-issued access/refresh token pair bound to one client
// device. Refresh rotates both tokens in place on the same record; expiry is
// enforced lazily at validation time, never by a background sweep.
type Session struct {
	ID               string
	OwnerID          string
	SessionToken     string
	RefreshToken     string
	DeviceInfo       string
	IPAddress        string
	UserAgent        string
	ExpiresAt        time.Time // access expiry
	RefreshExpiresAt time.Time // always strictly after ExpiresAt
	LastUsed         time.Time
	Active           bool
	CreatedAt        time.Time
}

// SessionContext is the owner context returned by a successful validation.
type SessionContext struct {
	SessionID string
	OwnerID   string
	ExpiresAt time.Time
}

// TokenPair is what callers receive from issue and refresh.
type TokenPair struct {
	SessionToken     string    `json:"session_token"`
	RefreshToken     string    `json:"refresh_token"`
	ExpiresAt        time.Time `json:"expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}
