package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/palisade-auth/palisade/internal/auth"
	"github.com/palisade-auth/palisade/internal/models"
)

// SessionStore defines the interface for session persistence
type SessionStore interface {
	Create(ctx context.Context, session *models.Session) (*models.Session, error)
	Touch(ctx context.Context, sessionToken string) (*models.Session, error)
	Rotate(ctx context.Context, refreshToken, newSessionToken, newRefreshToken string, accessTTL, refreshTTL time.Duration) (*models.Session, error)
	Revoke(ctx context.Context, sessionToken string) error
	RevokeAll(ctx context.Context, ownerID string) (int64, error)
}

// SessionService issues, validates, refreshes, and revokes opaque session
// tokens. Tokens carry no claims; all session state lives in storage, so a
// revocation takes effect on the very next validation.
type SessionService struct {
	store      SessionStore
	accessTTL  time.Duration
	refreshTTL time.Duration
	logger     *slog.Logger
}

// NewSessionService creates a new SessionService
func NewSessionService(store SessionStore, accessTTL, refreshTTL time.Duration, logger *slog.Logger) *SessionService {
	return &SessionService{
		store:      store,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		logger:     logger,
	}
}

// Issue creates a new session for an owner and returns the token pair. The
// tokens exist nowhere but this response and the session row.
func (s *SessionService) Issue(ctx context.Context, ownerID string, meta RequestMeta) (*models.TokenPair, error) {
	sessionToken, err := auth.GenerateToken()
	if err != nil {
		s.logger.Error("failed to generate session token", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	refreshToken, err := auth.GenerateToken()
	if err != nil {
		s.logger.Error("failed to generate refresh token", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	now := time.Now()
	session, err := s.store.Create(ctx, &models.Session{
		OwnerID:          ownerID,
		SessionToken:     sessionToken,
		RefreshToken:     refreshToken,
		DeviceInfo:       meta.DeviceInfo,
		IPAddress:        meta.IPAddress,
		UserAgent:        meta.UserAgent,
		ExpiresAt:        now.Add(s.accessTTL),
		RefreshExpiresAt: now.Add(s.refreshTTL),
	})
	if err != nil {
		s.logger.Error("failed to create session", slog.String("owner_id", ownerID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("session issued",
		slog.String("owner_id", ownerID),
		slog.String("session_id", session.ID))

	return &models.TokenPair{
		SessionToken:     session.SessionToken,
		RefreshToken:     session.RefreshToken,
		ExpiresAt:        session.ExpiresAt,
		RefreshExpiresAt: session.RefreshExpiresAt,
	}, nil
}

// Validate checks a session token and returns the owner context. Unknown,
// revoked, and expired tokens are indistinguishable to the caller; all three
// yield ErrUnauthorized.
func (s *SessionService) Validate(ctx context.Context, sessionToken string) (*models.SessionContext, error) {
	if sessionToken == "" {
		return nil, models.ErrUnauthorized
	}

	session, err := s.store.Touch(ctx, sessionToken)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrUnauthorized
		}
		s.logger.Error("session validation failed", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return &models.SessionContext{
		SessionID: session.ID,
		OwnerID:   session.OwnerID,
		ExpiresAt: session.ExpiresAt,
	}, nil
}

// Refresh exchanges a refresh token for a fresh token pair. Both tokens
// rotate on the same session record, so the presented pair is dead the
// moment this returns.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, string, error) {
	if refreshToken == "" {
		return nil, "", models.ErrUnauthorized
	}

	newSessionToken, err := auth.GenerateToken()
	if err != nil {
		s.logger.Error("failed to generate session token", slog.Any("error", err))
		return nil, "", models.ErrInternalServer
	}
	newRefreshToken, err := auth.GenerateToken()
	if err != nil {
		s.logger.Error("failed to generate refresh token", slog.Any("error", err))
		return nil, "", models.ErrInternalServer
	}

	session, err := s.store.Rotate(ctx, refreshToken, newSessionToken, newRefreshToken, s.accessTTL, s.refreshTTL)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Info("refresh with unknown or expired refresh token")
			return nil, "", models.ErrUnauthorized
		}
		s.logger.Error("failed to rotate session", slog.Any("error", err))
		return nil, "", models.ErrInternalServer
	}

	s.logger.Info("session refreshed",
		slog.String("owner_id", session.OwnerID),
		slog.String("session_id", session.ID))

	return &models.TokenPair{
		SessionToken:     session.SessionToken,
		RefreshToken:     session.RefreshToken,
		ExpiresAt:        session.ExpiresAt,
		RefreshExpiresAt: session.RefreshExpiresAt,
	}, session.OwnerID, nil
}

// Revoke terminates a single session.
func (s *SessionService) Revoke(ctx context.Context, sessionToken string) error {
	err := s.store.Revoke(ctx, sessionToken)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrUnauthorized
		}
		s.logger.Error("failed to revoke session", slog.Any("error", err))
		return models.ErrInternalServer
	}
	return nil
}

// RevokeAll terminates every session for an owner and reports how many were
// active.
func (s *SessionService) RevokeAll(ctx context.Context, ownerID string) (int64, error) {
	revoked, err := s.store.RevokeAll(ctx, ownerID)
	if err != nil {
		s.logger.Error("failed to revoke sessions", slog.String("owner_id", ownerID), slog.Any("error", err))
		return 0, models.ErrInternalServer
	}

	s.logger.Info("all sessions revoked",
		slog.String("owner_id", ownerID),
		slog.Int64("count", revoked))
	return revoked, nil
}
