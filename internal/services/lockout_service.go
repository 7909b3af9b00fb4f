package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/palisade-auth/palisade/internal/models"
)

// LockoutStore defines the credential-record operations the guard needs
type LockoutStore interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	RecordFailure(ctx context.Context, id string, threshold int, lockout time.Duration) (*models.User, error)
	RecordSuccess(ctx context.Context, id string) error
	ClearLockout(ctx context.Context, id string) error
}

// LockoutService counts failed attempts per account and opens a temporary
// lockout window once the threshold is reached. Elapsed locks are cleared
// lazily during checks; no sweeper exists.
type LockoutService struct {
	store     LockoutStore
	threshold int
	duration  time.Duration
	logger    *slog.Logger
}

// NewLockoutService creates a new LockoutService
func NewLockoutService(store LockoutStore, threshold int, duration time.Duration, logger *slog.Logger) *LockoutService {
	return &LockoutService{
		store:     store,
		threshold: threshold,
		duration:  duration,
		logger:    logger,
	}
}

// IsLocked reports whether the account is inside an active lockout window.
// An elapsed window is cleared as a side effect, so the counter restarts
// from zero on the next failure.
func (s *LockoutService) IsLocked(ctx context.Context, user *models.User) (bool, *time.Time, error) {
	if user.LockedUntil == nil {
		return false, nil, nil
	}

	now := time.Now()
	if user.LockedUntil.After(now) {
		return true, user.LockedUntil, nil
	}

	// Lock has elapsed; clear it lazily.
	if err := s.store.ClearLockout(ctx, user.ID); err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			return false, nil, err
		}
	}
	user.FailedAttempts = 0
	user.LockedUntil = nil

	return false, nil, nil
}

// RecordFailure increments the failure counter; reaching the threshold
// opens the lockout window. Returns the lock expiry when the account is now
// locked.
func (s *LockoutService) RecordFailure(ctx context.Context, userID string) (*time.Time, error) {
	user, err := s.store.RecordFailure(ctx, userID, s.threshold, s.duration)
	if err != nil {
		return nil, err
	}

	if user.IsLocked(time.Now()) {
		s.logger.Warn("account locked after repeated failures",
			slog.String("user_id", userID),
			slog.Int("failed_attempts", user.FailedAttempts),
			slog.Time("locked_until", *user.LockedUntil))
		return user.LockedUntil, nil
	}

	return nil, nil
}

// RecordSuccess resets the failure counter, clears any lock, and stamps
// last_login.
func (s *LockoutService) RecordSuccess(ctx context.Context, userID string) error {
	return s.store.RecordSuccess(ctx, userID)
}
