package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/palisade-auth/palisade/internal/models"
)

// MockUserStore implements UserStore and LockoutStore for testing
type MockUserStore struct {
	GetByIDFunc        func(ctx context.Context, id string) (*models.User, error)
	GetByEmailFunc     func(ctx context.Context, email string) (*models.User, error)
	CreateFunc         func(ctx context.Context, user *models.User) (*models.User, error)
	UpdatePasswordFunc func(ctx context.Context, id, passwordHash string) error
	RecordFailureFunc  func(ctx context.Context, id string, threshold int, lockout time.Duration) (*models.User, error)
	RecordSuccessFunc  func(ctx context.Context, id string) error
	ClearLockoutFunc   func(ctx context.Context, id string) error
	DeleteFunc         func(ctx context.Context, id string) error
}

func (m *MockUserStore) GetByID(ctx context.Context, id string) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserStore) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, user)
	}
	created := *user
	created.ID = uuid.New().String()
	created.CreatedAt = time.Now()
	created.UpdatedAt = created.CreatedAt
	return &created, nil
}

func (m *MockUserStore) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	if m.UpdatePasswordFunc != nil {
		return m.UpdatePasswordFunc(ctx, id, passwordHash)
	}
	return nil
}

func (m *MockUserStore) RecordFailure(ctx context.Context, id string, threshold int, lockout time.Duration) (*models.User, error) {
	if m.RecordFailureFunc != nil {
		return m.RecordFailureFunc(ctx, id, threshold, lockout)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserStore) RecordSuccess(ctx context.Context, id string) error {
	if m.RecordSuccessFunc != nil {
		return m.RecordSuccessFunc(ctx, id)
	}
	return nil
}

func (m *MockUserStore) ClearLockout(ctx context.Context, id string) error {
	if m.ClearLockoutFunc != nil {
		return m.ClearLockoutFunc(ctx, id)
	}
	return nil
}

func (m *MockUserStore) Delete(ctx context.Context, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil
}

// MockSessionStore implements SessionStore for testing
type MockSessionStore struct {
	CreateFunc    func(ctx context.Context, session *models.Session) (*models.Session, error)
	TouchFunc     func(ctx context.Context, sessionToken string) (*models.Session, error)
	RotateFunc    func(ctx context.Context, refreshToken, newSessionToken, newRefreshToken string, accessTTL, refreshTTL time.Duration) (*models.Session, error)
	RevokeFunc    func(ctx context.Context, sessionToken string) error
	RevokeAllFunc func(ctx context.Context, ownerID string) (int64, error)
}

func (m *MockSessionStore) Create(ctx context.Context, session *models.Session) (*models.Session, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, session)
	}
	created := *session
	created.ID = uuid.New().String()
	created.Active = true
	created.LastUsed = time.Now()
	created.CreatedAt = created.LastUsed
	return &created, nil
}

func (m *MockSessionStore) Touch(ctx context.Context, sessionToken string) (*models.Session, error) {
	if m.TouchFunc != nil {
		return m.TouchFunc(ctx, sessionToken)
	}
	return nil, models.ErrNotFound
}

func (m *MockSessionStore) Rotate(ctx context.Context, refreshToken, newSessionToken, newRefreshToken string, accessTTL, refreshTTL time.Duration) (*models.Session, error) {
	if m.RotateFunc != nil {
		return m.RotateFunc(ctx, refreshToken, newSessionToken, newRefreshToken, accessTTL, refreshTTL)
	}
	return nil, models.ErrNotFound
}

func (m *MockSessionStore) Revoke(ctx context.Context, sessionToken string) error {
	if m.RevokeFunc != nil {
		return m.RevokeFunc(ctx, sessionToken)
	}
	return nil
}

func (m *MockSessionStore) RevokeAll(ctx context.Context, ownerID string) (int64, error) {
	if m.RevokeAllFunc != nil {
		return m.RevokeAllFunc(ctx, ownerID)
	}
	return 0, nil
}

// MockRateLimitStore implements RateLimitStore for testing
type MockRateLimitStore struct {
	HitFunc func(ctx context.Context, identifier, endpoint string, window time.Duration, threshold int) (*models.RateLimit, error)
}

func (m *MockRateLimitStore) Hit(ctx context.Context, identifier, endpoint string, window time.Duration, threshold int) (*models.RateLimit, error) {
	if m.HitFunc != nil {
		return m.HitFunc(ctx, identifier, endpoint, window, threshold)
	}
	return &models.RateLimit{
		Identifier:  identifier,
		Endpoint:    endpoint,
		Count:       1,
		WindowStart: time.Now(),
	}, nil
}

// MockAuditLogStore implements AuditLogStore for testing. Appended events
// are kept in order so tests can assert on what was recorded.
type MockAuditLogStore struct {
	AppendFunc func(ctx context.Context, event *models.AuditEvent) (*models.AuditEvent, error)
	Appended   []*models.AuditEvent
}

func (m *MockAuditLogStore) Append(ctx context.Context, event *models.AuditEvent) (*models.AuditEvent, error) {
	if m.AppendFunc != nil {
		return m.AppendFunc(ctx, event)
	}
	m.Appended = append(m.Appended, event)
	return event, nil
}

func (m *MockAuditLogStore) ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*models.AuditEvent, error) {
	return []*models.AuditEvent{}, nil
}

func (m *MockAuditLogStore) ListByOwnerAndType(ctx context.Context, ownerID uuid.UUID, eventType string, limit, offset int) ([]*models.AuditEvent, error) {
	return []*models.AuditEvent{}, nil
}

// MockSecretStore implements SecretStore for testing
type MockSecretStore struct {
	CreateFunc              func(ctx context.Context, secret *models.Secret) (*models.Secret, error)
	GetByIDFunc             func(ctx context.Context, id string) (*models.Secret, error)
	ListByOwnerFunc         func(ctx context.Context, ownerID string, limit, offset int) ([]*models.Secret, error)
	FindActiveByPreviewFunc func(ctx context.Context, preview string) ([]*models.Secret, error)
	RevokeFunc              func(ctx context.Context, id string) error
}

func (m *MockSecretStore) Create(ctx context.Context, secret *models.Secret) (*models.Secret, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, secret)
	}
	created := *secret
	created.ID = uuid.New().String()
	created.Active = true
	created.CreatedAt = time.Now()
	return &created, nil
}

func (m *MockSecretStore) GetByID(ctx context.Context, id string) (*models.Secret, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockSecretStore) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]*models.Secret, error) {
	if m.ListByOwnerFunc != nil {
		return m.ListByOwnerFunc(ctx, ownerID, limit, offset)
	}
	return []*models.Secret{}, nil
}

func (m *MockSecretStore) FindActiveByPreview(ctx context.Context, preview string) ([]*models.Secret, error) {
	if m.FindActiveByPreviewFunc != nil {
		return m.FindActiveByPreviewFunc(ctx, preview)
	}
	return []*models.Secret{}, nil
}

func (m *MockSecretStore) Revoke(ctx context.Context, id string) error {
	if m.RevokeFunc != nil {
		return m.RevokeFunc(ctx, id)
	}
	return nil
}

// MockEmailSender implements EmailSender for testing
type MockEmailSender struct {
	SendPasswordResetFunc func(ctx context.Context, email, token string, expiresIn time.Duration) error
	SentTo                []string
	SentTokens            []string
}

func (m *MockEmailSender) SendPasswordReset(ctx context.Context, email, token string, expiresIn time.Duration) error {
	if m.SendPasswordResetFunc != nil {
		return m.SendPasswordResetFunc(ctx, email, token, expiresIn)
	}
	m.SentTo = append(m.SentTo, email)
	m.SentTokens = append(m.SentTokens, token)
	return nil
}

// NewTestUser creates a user record for tests
func NewTestUser(id, email, passwordHash string) *models.User {
	now := time.Now()
	return &models.User{
		ID:           id,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// NewTestUserLocked creates a user inside an active lockout window
func NewTestUserLocked(id, email string, until time.Time) *models.User {
	user := NewTestUser(id, email, "$2a$12$hash")
	user.FailedAttempts = 5
	user.LockedUntil = &until
	return user
}
