package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/palisade-auth/palisade/internal/middleware"
	"github.com/palisade-auth/palisade/internal/models"
	"github.com/palisade-auth/palisade/internal/services"
	pkghttp "github.com/palisade-auth/palisade/pkg/http"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithAuthContext adds an owner context to the request, simulating a request
// that passed the session middleware.
func WithAuthContext(req *http.Request, ownerID, token string) *http.Request {
	sc := &models.SessionContext{
		SessionID: uuid.NewString(),
		OwnerID:   ownerID,
		ExpiresAt: time.Now().Add(15 * time.Minute),
	}
	return middleware.WithSessionContext(req, sc, token)
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	contentType := w.Header().Get("Content-Type")
	assert.Equal(t, "application/json", contentType, "Content-Type should be application/json")

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
}

// MockAuthService implements AuthServiceInterface for testing
type MockAuthService struct {
	RegisterFunc              func(ctx context.Context, email, password string, meta services.RequestMeta) (*models.User, *models.TokenPair, error)
	LoginFunc                 func(ctx context.Context, email, password string, meta services.RequestMeta) (*models.User, *models.TokenPair, error)
	RefreshFunc               func(ctx context.Context, refreshToken string, meta services.RequestMeta) (*models.TokenPair, error)
	LogoutFunc                func(ctx context.Context, sessionToken, ownerID string, meta services.RequestMeta) error
	LogoutAllFunc             func(ctx context.Context, ownerID string, meta services.RequestMeta) (int64, error)
	GetUserFunc               func(ctx context.Context, ownerID string) (*models.User, error)
	RequestPasswordResetFunc  func(ctx context.Context, email string, meta services.RequestMeta) error
	CompletePasswordResetFunc func(ctx context.Context, token, newPassword string, meta services.RequestMeta) error
	ChangePasswordFunc        func(ctx context.Context, ownerID, currentPassword, newPassword string, meta services.RequestMeta) error
	DeleteAccountFunc         func(ctx context.Context, ownerID, password string, meta services.RequestMeta) error
}

func (m *MockAuthService) Register(ctx context.Context, email, password string, meta services.RequestMeta) (*models.User, *models.TokenPair, error) {
	if m.RegisterFunc == nil {
		return nil, nil, models.ErrConflict
	}
	return m.RegisterFunc(ctx, email, password, meta)
}

func (m *MockAuthService) Login(ctx context.Context, email, password string, meta services.RequestMeta) (*models.User, *models.TokenPair, error) {
	if m.LoginFunc == nil {
		return nil, nil, models.ErrUnauthorized
	}
	return m.LoginFunc(ctx, email, password, meta)
}

func (m *MockAuthService) Refresh(ctx context.Context, refreshToken string, meta services.RequestMeta) (*models.TokenPair, error) {
	if m.RefreshFunc == nil {
		return nil, models.ErrUnauthorized
	}
	return m.RefreshFunc(ctx, refreshToken, meta)
}

func (m *MockAuthService) Logout(ctx context.Context, sessionToken, ownerID string, meta services.RequestMeta) error {
	if m.LogoutFunc == nil {
		return nil
	}
	return m.LogoutFunc(ctx, sessionToken, ownerID, meta)
}

func (m *MockAuthService) LogoutAll(ctx context.Context, ownerID string, meta services.RequestMeta) (int64, error) {
	if m.LogoutAllFunc == nil {
		return 0, nil
	}
	return m.LogoutAllFunc(ctx, ownerID, meta)
}

func (m *MockAuthService) GetUser(ctx context.Context, ownerID string) (*models.User, error) {
	if m.GetUserFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.GetUserFunc(ctx, ownerID)
}

func (m *MockAuthService) RequestPasswordReset(ctx context.Context, email string, meta services.RequestMeta) error {
	if m.RequestPasswordResetFunc == nil {
		return nil
	}
	return m.RequestPasswordResetFunc(ctx, email, meta)
}

func (m *MockAuthService) CompletePasswordReset(ctx context.Context, token, newPassword string, meta services.RequestMeta) error {
	if m.CompletePasswordResetFunc == nil {
		return models.ErrUnauthorized
	}
	return m.CompletePasswordResetFunc(ctx, token, newPassword, meta)
}

func (m *MockAuthService) ChangePassword(ctx context.Context, ownerID, currentPassword, newPassword string, meta services.RequestMeta) error {
	if m.ChangePasswordFunc == nil {
		return models.ErrUnauthorized
	}
	return m.ChangePasswordFunc(ctx, ownerID, currentPassword, newPassword, meta)
}

func (m *MockAuthService) DeleteAccount(ctx context.Context, ownerID, password string, meta services.RequestMeta) error {
	if m.DeleteAccountFunc == nil {
		return models.ErrUnauthorized
	}
	return m.DeleteAccountFunc(ctx, ownerID, password, meta)
}

// MockSecretService implements SecretServiceInterface for testing
type MockSecretService struct {
	IssueFunc  func(ctx context.Context, ownerID, name string, meta services.RequestMeta) (*models.IssuedSecret, error)
	ListFunc   func(ctx context.Context, ownerID string, limit, offset int) ([]*models.Secret, error)
	RevokeFunc func(ctx context.Context, ownerID, secretID string, meta services.RequestMeta) error
}

func (m *MockSecretService) Issue(ctx context.Context, ownerID, name string, meta services.RequestMeta) (*models.IssuedSecret, error) {
	if m.IssueFunc == nil {
		return nil, models.ErrInternalServer
	}
	return m.IssueFunc(ctx, ownerID, name, meta)
}

func (m *MockSecretService) List(ctx context.Context, ownerID string, limit, offset int) ([]*models.Secret, error) {
	if m.ListFunc == nil {
		return nil, nil
	}
	return m.ListFunc(ctx, ownerID, limit, offset)
}

func (m *MockSecretService) Revoke(ctx context.Context, ownerID, secretID string, meta services.RequestMeta) error {
	if m.RevokeFunc == nil {
		return models.ErrNotFound
	}
	return m.RevokeFunc(ctx, ownerID, secretID, meta)
}

// MockAuditService implements AuditServiceInterface for testing
type MockAuditService struct {
	ListByOwnerFunc        func(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*models.AuditEvent, error)
	ListByOwnerAndTypeFunc func(ctx context.Context, ownerID uuid.UUID, eventType string, limit, offset int) ([]*models.AuditEvent, error)
}

func (m *MockAuditService) ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*models.AuditEvent, error) {
	if m.ListByOwnerFunc == nil {
		return nil, nil
	}
	return m.ListByOwnerFunc(ctx, ownerID, limit, offset)
}

func (m *MockAuditService) ListByOwnerAndType(ctx context.Context, ownerID uuid.UUID, eventType string, limit, offset int) ([]*models.AuditEvent, error) {
	if m.ListByOwnerAndTypeFunc == nil {
		return nil, nil
	}
	return m.ListByOwnerAndTypeFunc(ctx, ownerID, eventType, limit, offset)
}
