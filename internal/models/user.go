package models

import (
	"time"
)

// User is the credential record for one identity. FailedAttempts and
// LockedUntil are owned by the lockout guard; LastLogin is stamped on
// successful authentication.
type User struct {
	ID             string
	Email          string
	PasswordHash   string
	FailedAttempts int
	LockedUntil    *time.Time // Temporary account lock expiration
	LastLogin      *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsLocked reports whether the account is inside an active lockout window.
func (u *User) IsLocked(now time.Time) bool {
	return u.LockedUntil != nil && u.LockedUntil.After(now)
}
