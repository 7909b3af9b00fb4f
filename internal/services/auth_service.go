package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/palisade-auth/palisade/internal/auth"
	"github.com/palisade-auth/palisade/internal/models"
	pkgauth "github.com/palisade-auth/palisade/pkg/auth"
	pkglogger "github.com/palisade-auth/palisade/pkg/logger"
)

// UserStore defines the interface for credential record operations
type UserStore interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) (*models.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	ClearLockout(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

// RequestMeta carries per-request client context into the service layer for
// rate limiting and audit attribution.
type RequestMeta struct {
	IPAddress  string
	UserAgent  string
	DeviceInfo string
}

// dummyHash is a valid bcrypt digest compared against when the email does
// not resolve, so unknown and known accounts take the same verification
// time.
const dummyHash = "$2a$12$R9h/cIPz0gi.URNNX3kh2OPST9/PgBkqquzi.Ss7KIUgO2t0jWMUW"

// AuthService handles authentication business logic. Every authentication
// attempt records exactly one audit event, successful or not.
type AuthService struct {
	users    UserStore
	sessions *SessionService
	limiter  *RateLimitService
	lockout  *LockoutService
	audit    *AuditService
	reset    *auth.ResetTokenManager
	email    EmailSender
	logger   *slog.Logger
}

// NewAuthService creates a new AuthService
func NewAuthService(
	users UserStore,
	sessions *SessionService,
	limiter *RateLimitService,
	lockout *LockoutService,
	audit *AuditService,
	reset *auth.ResetTokenManager,
	email EmailSender,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:    users,
		sessions: sessions,
		limiter:  limiter,
		lockout:  lockout,
		audit:    audit,
		reset:    reset,
		email:    email,
		logger:   logger,
	}
}

// Register creates a new account and issues its first session.
func (s *AuthService) Register(ctx context.Context, email, password string, meta RequestMeta) (*models.User, *models.TokenPair, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, nil, &models.ValidationError{Field: "email", Message: "is required"}
	}

	if decision := s.limiter.Allow(ctx, meta.IPAddress, "register"); !decision.Allowed {
		s.recordRateLimited(ctx, models.AuditEventRegister, meta)
		return nil, nil, &models.RateLimitedError{RetryAfter: decision.RetryAfter}
	}

	if err := pkgauth.ValidatePassword(password); err != nil {
		return nil, nil, &models.ValidationError{Field: "password", Message: err.Error()}
	}

	hashed, err := pkgauth.HashPassword(password)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return nil, nil, models.ErrInternalServer
	}

	user, err := s.users.Create(ctx, &models.User{Email: email, PasswordHash: hashed})
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			s.logger.Info("registration failed: email already registered",
				slog.String("email", pkglogger.SanitizedEmail(email)))
			return nil, nil, models.ErrConflict
		}
		s.logger.Error("failed to create user", slog.Any("error", err))
		return nil, nil, models.ErrInternalServer
	}

	pair, err := s.sessions.Issue(ctx, user.ID, meta)
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("user registered", slog.String("user_id", user.ID))
	s.audit.Record(ctx, &models.AuditEvent{
		OwnerID:   ownerRef(user.ID),
		EventType: models.AuditEventRegister,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		Success:   true,
	})

	return user, pair, nil
}

// Login authenticates credentials and issues a session. Rate limits gate
// both the client IP and the presented email, so a distributed guessing run
// against one account is throttled even when each source IP stays under its
// own threshold.
func (s *AuthService) Login(ctx context.Context, email, password string, meta RequestMeta) (*models.User, *models.TokenPair, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, nil, models.ErrUnauthorized
	}

	if decision := s.limiter.Allow(ctx, meta.IPAddress, "login"); !decision.Allowed {
		s.recordRateLimited(ctx, models.AuditEventLogin, meta)
		return nil, nil, &models.RateLimitedError{RetryAfter: decision.RetryAfter}
	}
	if decision := s.limiter.Allow(ctx, email, "login"); !decision.Allowed {
		s.recordRateLimited(ctx, models.AuditEventLogin, meta)
		return nil, nil, &models.RateLimitedError{RetryAfter: decision.RetryAfter}
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			// Burn the same verification cost as a real account.
			_, _ = pkgauth.VerifyPassword(dummyHash, password)
			s.logger.Info("login failed: invalid credentials",
				slog.String("email", pkglogger.SanitizedEmail(email)))
			s.audit.Record(ctx, &models.AuditEvent{
				EventType: models.AuditEventLogin,
				IPAddress: meta.IPAddress,
				UserAgent: meta.UserAgent,
				Success:   false,
				Details:   models.AuditDetails{"reason": "invalid_credentials"},
			})
			return nil, nil, models.ErrUnauthorized
		}
		s.logger.Error("failed to get user by email", slog.Any("error", err))
		return nil, nil, models.ErrInternalServer
	}

	locked, unlockAt, err := s.lockout.IsLocked(ctx, user)
	if err != nil {
		s.logger.Error("failed to check lockout state", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, nil, models.ErrInternalServer
	}
	if locked {
		s.audit.Record(ctx, &models.AuditEvent{
			OwnerID:   ownerRef(user.ID),
			EventType: models.AuditEventLogin,
			IPAddress: meta.IPAddress,
			UserAgent: meta.UserAgent,
			Success:   false,
			Details:   models.AuditDetails{"reason": "account_locked"},
		})
		return nil, nil, &models.LockedError{UnlockAt: *unlockAt}
	}

	ok, err := pkgauth.VerifyPassword(user.PasswordHash, password)
	if err != nil {
		s.logger.Error("stored password digest is malformed", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, nil, models.ErrInternalServer
	}
	if !ok {
		return nil, nil, s.handleFailedLogin(ctx, user, meta)
	}

	if err := s.lockout.RecordSuccess(ctx, user.ID); err != nil {
		s.logger.Error("failed to record login success", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, nil, models.ErrInternalServer
	}

	pair, err := s.sessions.Issue(ctx, user.ID, meta)
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("user logged in", slog.String("user_id", user.ID))
	s.audit.Record(ctx, &models.AuditEvent{
		OwnerID:   ownerRef(user.ID),
		EventType: models.AuditEventLogin,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		Success:   true,
	})

	return user, pair, nil
}

// handleFailedLogin counts the failure and records the attempt's single
// audit event. The attempt that crosses the lockout threshold is recorded
// as an account_locked event instead of a plain failed login.
func (s *AuthService) handleFailedLogin(ctx context.Context, user *models.User, meta RequestMeta) error {
	lockedUntil, err := s.lockout.RecordFailure(ctx, user.ID)
	if err != nil {
		s.logger.Error("failed to record login failure", slog.String("user_id", user.ID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.logger.Info("login failed: invalid credentials", slog.String("user_id", user.ID))

	if lockedUntil != nil {
		s.audit.Record(ctx, &models.AuditEvent{
			OwnerID:   ownerRef(user.ID),
			EventType: models.AuditEventAccountLocked,
			IPAddress: meta.IPAddress,
			UserAgent: meta.UserAgent,
			Success:   false,
			Details:   models.AuditDetails{"locked_until": lockedUntil.UTC().Format("2006-01-02T15:04:05Z07:00")},
		})
		return &models.LockedError{UnlockAt: *lockedUntil}
	}

	s.audit.Record(ctx, &models.AuditEvent{
		OwnerID:   ownerRef(user.ID),
		EventType: models.AuditEventLogin,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		Success:   false,
		Details:   models.AuditDetails{"reason": "invalid_credentials"},
	})
	return models.ErrUnauthorized
}

// Refresh exchanges a refresh token for a new pair.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string, meta RequestMeta) (*models.TokenPair, error) {
	pair, ownerID, err := s.sessions.Refresh(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, &models.AuditEvent{
		OwnerID:   ownerRef(ownerID),
		EventType: models.AuditEventRefresh,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		Success:   true,
	})
	return pair, nil
}

// Logout revokes the presented session.
func (s *AuthService) Logout(ctx context.Context, sessionToken, ownerID string, meta RequestMeta) error {
	if err := s.sessions.Revoke(ctx, sessionToken); err != nil {
		return err
	}

	s.logger.Info("user logged out", slog.String("user_id", ownerID))
	s.audit.Record(ctx, &models.AuditEvent{
		OwnerID:   ownerRef(ownerID),
		EventType: models.AuditEventLogout,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		Success:   true,
	})
	return nil
}

// LogoutAll revokes every session the owner holds.
func (s *AuthService) LogoutAll(ctx context.Context, ownerID string, meta RequestMeta) (int64, error) {
	revoked, err := s.sessions.RevokeAll(ctx, ownerID)
	if err != nil {
		return 0, err
	}

	s.audit.Record(ctx, &models.AuditEvent{
		OwnerID:   ownerRef(ownerID),
		EventType: models.AuditEventLogoutAll,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		Success:   true,
		Details:   models.AuditDetails{"sessions_revoked": revoked},
	})
	return revoked, nil
}

// GetUser loads the credential record for an authenticated owner.
func (s *AuthService) GetUser(ctx context.Context, ownerID string) (*models.User, error) {
	user, err := s.users.GetByID(ctx, ownerID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrUnauthorized
		}
		s.logger.Error("failed to load user", slog.String("user_id", ownerID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return user, nil
}

// RequestPasswordReset mints a reset token and emails it. The response is
// identical whether or not the email resolves, so the endpoint cannot be
// used to enumerate accounts.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string, meta RequestMeta) error {
	email = normalizeEmail(email)
	if email == "" {
		return nil
	}

	if decision := s.limiter.Allow(ctx, meta.IPAddress, "password_reset"); !decision.Allowed {
		s.recordRateLimited(ctx, models.AuditEventPasswordReset, meta)
		return &models.RateLimitedError{RetryAfter: decision.RetryAfter}
	}
	if decision := s.limiter.Allow(ctx, email, "password_reset"); !decision.Allowed {
		s.recordRateLimited(ctx, models.AuditEventPasswordReset, meta)
		return &models.RateLimitedError{RetryAfter: decision.RetryAfter}
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Info("password reset requested for unknown email",
				slog.String("email", pkglogger.SanitizedEmail(email)))
			return nil
		}
		s.logger.Error("failed to get user for password reset", slog.Any("error", err))
		return models.ErrInternalServer
	}

	token, err := s.reset.Generate(user.ID, user.PasswordHash)
	if err != nil {
		s.logger.Error("failed to generate reset token", slog.String("user_id", user.ID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := s.email.SendPasswordReset(ctx, user.Email, token, s.reset.TTL()); err != nil {
		s.logger.Error("failed to send reset email", slog.String("user_id", user.ID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.audit.Record(ctx, &models.AuditEvent{
		OwnerID:   ownerRef(user.ID),
		EventType: models.AuditEventPasswordReset,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		Success:   true,
		Details:   models.AuditDetails{"stage": "requested"},
	})
	return nil
}

// CompletePasswordReset validates a reset token and installs a new password.
// The token is signed against the old password hash, so completing the reset
// invalidates every outstanding token for the account. All sessions are
// revoked and any lockout is cleared.
func (s *AuthService) CompletePasswordReset(ctx context.Context, token, newPassword string, meta RequestMeta) error {
	userID, err := s.reset.ParseUnverified(token)
	if err != nil {
		return models.ErrUnauthorized
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrUnauthorized
		}
		s.logger.Error("failed to load user for reset", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if _, err := s.reset.Verify(token, user.PasswordHash); err != nil {
		s.logger.Info("password reset with invalid token", slog.String("user_id", user.ID))
		s.audit.Record(ctx, &models.AuditEvent{
			OwnerID:   ownerRef(user.ID),
			EventType: models.AuditEventPasswordReset,
			IPAddress: meta.IPAddress,
			UserAgent: meta.UserAgent,
			Success:   false,
			Details:   models.AuditDetails{"reason": "invalid_token"},
		})
		return models.ErrUnauthorized
	}

	if err := s.installNewPassword(ctx, user, newPassword); err != nil {
		return err
	}

	s.logger.Info("password reset completed", slog.String("user_id", user.ID))
	s.audit.Record(ctx, &models.AuditEvent{
		OwnerID:   ownerRef(user.ID),
		EventType: models.AuditEventPasswordReset,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		Success:   true,
		Details:   models.AuditDetails{"stage": "completed"},
	})
	return nil
}

// ChangePassword verifies the current password and installs a new one. All
// sessions are revoked; the client must log in again.
func (s *AuthService) ChangePassword(ctx context.Context, ownerID, currentPassword, newPassword string, meta RequestMeta) error {
	user, err := s.users.GetByID(ctx, ownerID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrUnauthorized
		}
		s.logger.Error("failed to load user for password change", slog.Any("error", err))
		return models.ErrInternalServer
	}

	ok, err := pkgauth.VerifyPassword(user.PasswordHash, currentPassword)
	if err != nil {
		s.logger.Error("stored password digest is malformed", slog.String("user_id", user.ID), slog.Any("error", err))
		return models.ErrInternalServer
	}
	if !ok {
		s.audit.Record(ctx, &models.AuditEvent{
			OwnerID:   ownerRef(user.ID),
			EventType: models.AuditEventPasswordChange,
			IPAddress: meta.IPAddress,
			UserAgent: meta.UserAgent,
			Success:   false,
			Details:   models.AuditDetails{"reason": "invalid_current_password"},
		})
		return models.ErrUnauthorized
	}

	if err := s.installNewPassword(ctx, user, newPassword); err != nil {
		return err
	}

	s.logger.Info("password changed", slog.String("user_id", user.ID))
	s.audit.Record(ctx, &models.AuditEvent{
		OwnerID:   ownerRef(user.ID),
		EventType: models.AuditEventPasswordChange,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		Success:   true,
	})
	return nil
}

// DeleteAccount removes the owner's account after re-verifying the password.
// Sessions and secrets are removed by cascade; audit events survive with the
// owner reference intact.
func (s *AuthService) DeleteAccount(ctx context.Context, ownerID, password string, meta RequestMeta) error {
	user, err := s.users.GetByID(ctx, ownerID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrUnauthorized
		}
		s.logger.Error("failed to load user for deletion", slog.Any("error", err))
		return models.ErrInternalServer
	}

	ok, err := pkgauth.VerifyPassword(user.PasswordHash, password)
	if err != nil {
		s.logger.Error("stored password digest is malformed", slog.String("user_id", user.ID), slog.Any("error", err))
		return models.ErrInternalServer
	}
	if !ok {
		s.audit.Record(ctx, &models.AuditEvent{
			OwnerID:   ownerRef(user.ID),
			EventType: models.AuditEventAccountDeleted,
			IPAddress: meta.IPAddress,
			UserAgent: meta.UserAgent,
			Success:   false,
			Details:   models.AuditDetails{"reason": "invalid_password"},
		})
		return models.ErrUnauthorized
	}

	if err := s.users.Delete(ctx, user.ID); err != nil {
		s.logger.Error("failed to delete user", slog.String("user_id", user.ID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.logger.Info("account deleted", slog.String("user_id", user.ID))
	s.audit.Record(ctx, &models.AuditEvent{
		OwnerID:   ownerRef(user.ID),
		EventType: models.AuditEventAccountDeleted,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		Success:   true,
	})
	return nil
}

// installNewPassword validates, hashes, and stores a new password, then
// revokes all sessions and clears any lockout.
func (s *AuthService) installNewPassword(ctx context.Context, user *models.User, newPassword string) error {
	if err := pkgauth.ValidatePassword(newPassword); err != nil {
		return &models.ValidationError{Field: "password", Message: err.Error()}
	}

	hashed, err := pkgauth.HashPassword(newPassword)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := s.users.UpdatePassword(ctx, user.ID, hashed); err != nil {
		s.logger.Error("failed to update password", slog.String("user_id", user.ID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	if _, err := s.sessions.RevokeAll(ctx, user.ID); err != nil {
		return err
	}

	if err := s.users.ClearLockout(ctx, user.ID); err != nil {
		s.logger.Error("failed to clear lockout", slog.String("user_id", user.ID), slog.Any("error", err))
	}

	return nil
}

// recordRateLimited audits a throttled attempt. The owner is nil because the
// attempt was refused before any identity resolution happened.
func (s *AuthService) recordRateLimited(ctx context.Context, eventType string, meta RequestMeta) {
	s.audit.Record(ctx, &models.AuditEvent{
		EventType: eventType,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		Success:   false,
		Details:   models.AuditDetails{"reason": "rate_limited"},
	})
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
