package handlers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palisade-auth/palisade/internal/handlers"
	"github.com/palisade-auth/palisade/internal/models"
	"github.com/palisade-auth/palisade/internal/services"
)

func testUser() *models.User {
	return &models.User{
		ID:        "8f14e45f-ea3f-4c6e-b1c8-9a2d4d3c1e77",
		Email:     "user@example.com",
		CreatedAt: time.Now().Add(-24 * time.Hour),
	}
}

func testTokenPair() *models.TokenPair {
	return &models.TokenPair{
		SessionToken:     "session_token_123",
		RefreshToken:     "refresh_token_123",
		ExpiresAt:        time.Now().Add(15 * time.Minute),
		RefreshExpiresAt: time.Now().Add(7 * 24 * time.Hour),
	}
}

func TestLogin_Success(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		LoginFunc: func(ctx context.Context, email, password string, meta services.RequestMeta) (*models.User, *models.TokenPair, error) {
			assert.Equal(t, "user@example.com", email)
			return testUser(), testTokenPair(), nil
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/login", handlers.LoginRequest{
		Email:    "user@example.com",
		Password: "password123",
	})

	w := httptest.NewRecorder()
	handler.Login(w, req)

	var resp handlers.AuthResponse
	handlers.AssertJSONResponse(t, w, 200, &resp)
	require.NotNil(t, resp.Tokens)
	assert.Equal(t, "session_token_123", resp.Tokens.SessionToken)
	assert.Equal(t, "refresh_token_123", resp.Tokens.RefreshToken)
	require.NotNil(t, resp.User)
	assert.Equal(t, "user@example.com", resp.User.Email)
}

func TestLogin_AuthenticationFailed(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		LoginFunc: func(ctx context.Context, email, password string, meta services.RequestMeta) (*models.User, *models.TokenPair, error) {
			return nil, nil, models.ErrUnauthorized
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/login", handlers.LoginRequest{
		Email:    "user@example.com",
		Password: "wrongpassword",
	})

	w := httptest.NewRecorder()
	handler.Login(w, req)

	handlers.AssertErrorResponse(t, w, 401, "unauthorized")
}

func TestLogin_RateLimited(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		LoginFunc: func(ctx context.Context, email, password string, meta services.RequestMeta) (*models.User, *models.TokenPair, error) {
			return nil, nil, &models.RateLimitedError{RetryAfter: 10 * time.Minute}
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/login", handlers.LoginRequest{
		Email:    "user@example.com",
		Password: "password123",
	})

	w := httptest.NewRecorder()
	handler.Login(w, req)

	handlers.AssertErrorResponse(t, w, 429, "rate_limit_exceeded")
	assert.NotEmpty(t, w.Header().Get("Retry-After"), "429 should carry Retry-After")
}

func TestLogin_AccountLocked(t *testing.T) {
	unlockAt := time.Now().Add(30 * time.Minute)
	mockAuth := &handlers.MockAuthService{
		LoginFunc: func(ctx context.Context, email, password string, meta services.RequestMeta) (*models.User, *models.TokenPair, error) {
			return nil, nil, &models.LockedError{UnlockAt: unlockAt}
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/login", handlers.LoginRequest{
		Email:    "user@example.com",
		Password: "password123",
	})

	w := httptest.NewRecorder()
	handler.Login(w, req)

	handlers.AssertErrorResponse(t, w, http.StatusLocked, "account_locked")
	assert.NotEmpty(t, w.Header().Get("Retry-After"), "423 should carry Retry-After")
}

func TestLogin_InvalidEmail(t *testing.T) {
	handler := handlers.NewAuthHandler(&handlers.MockAuthService{}, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/login", handlers.LoginRequest{
		Email:    "not-an-email",
		Password: "password123",
	})

	w := httptest.NewRecorder()
	handler.Login(w, req)

	handlers.AssertErrorResponse(t, w, 400, "bad_request")
}

func TestRegister_Success(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		RegisterFunc: func(ctx context.Context, email, password string, meta services.RequestMeta) (*models.User, *models.TokenPair, error) {
			return testUser(), testTokenPair(), nil
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/register", handlers.RegisterRequest{
		Email:    "user@example.com",
		Password: "Sup3r$trongPass!",
	})

	w := httptest.NewRecorder()
	handler.Register(w, req)

	var resp handlers.AuthResponse
	handlers.AssertJSONResponse(t, w, 201, &resp)
	require.NotNil(t, resp.Tokens)
	assert.NotEmpty(t, resp.Tokens.SessionToken)
}

func TestRegister_EmailTaken(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		RegisterFunc: func(ctx context.Context, email, password string, meta services.RequestMeta) (*models.User, *models.TokenPair, error) {
			return nil, nil, models.ErrConflict
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/register", handlers.RegisterRequest{
		Email:    "user@example.com",
		Password: "Sup3r$trongPass!",
	})

	w := httptest.NewRecorder()
	handler.Register(w, req)

	handlers.AssertErrorResponse(t, w, 409, "conflict")
}

func TestRegister_WeakPassword(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		RegisterFunc: func(ctx context.Context, email, password string, meta services.RequestMeta) (*models.User, *models.TokenPair, error) {
			return nil, nil, &models.ValidationError{Field: "password", Message: "password must be at least 12 characters"}
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/register", handlers.RegisterRequest{
		Email:    "user@example.com",
		Password: "short",
	})

	w := httptest.NewRecorder()
	handler.Register(w, req)

	handlers.AssertErrorResponse(t, w, 400, "bad_request")
}

func TestRefresh_Success(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		RefreshFunc: func(ctx context.Context, refreshToken string, meta services.RequestMeta) (*models.TokenPair, error) {
			assert.Equal(t, "refresh_token_123", refreshToken)
			return testTokenPair(), nil
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/refresh", handlers.RefreshRequest{
		RefreshToken: "refresh_token_123",
	})

	w := httptest.NewRecorder()
	handler.Refresh(w, req)

	var resp handlers.AuthResponse
	handlers.AssertJSONResponse(t, w, 200, &resp)
	require.NotNil(t, resp.Tokens)
	assert.Nil(t, resp.User, "refresh response should not include a user")
}

func TestRefresh_InvalidToken(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		RefreshFunc: func(ctx context.Context, refreshToken string, meta services.RequestMeta) (*models.TokenPair, error) {
			return nil, models.ErrUnauthorized
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/refresh", handlers.RefreshRequest{
		RefreshToken: "stale_token",
	})

	w := httptest.NewRecorder()
	handler.Refresh(w, req)

	handlers.AssertErrorResponse(t, w, 401, "unauthorized")
}

func TestLogout_Success(t *testing.T) {
	var revokedToken string
	mockAuth := &handlers.MockAuthService{
		LogoutFunc: func(ctx context.Context, sessionToken, ownerID string, meta services.RequestMeta) error {
			revokedToken = sessionToken
			return nil
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/logout", nil)
	req = handlers.WithAuthContext(req, "owner-1", "session_token_123")

	w := httptest.NewRecorder()
	handler.Logout(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "session_token_123", revokedToken)
}

func TestLogout_Unauthenticated(t *testing.T) {
	handler := handlers.NewAuthHandler(&handlers.MockAuthService{}, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/logout", nil)

	w := httptest.NewRecorder()
	handler.Logout(w, req)

	handlers.AssertErrorResponse(t, w, 401, "unauthorized")
}

func TestLogoutAll_Success(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		LogoutAllFunc: func(ctx context.Context, ownerID string, meta services.RequestMeta) (int64, error) {
			assert.Equal(t, "owner-1", ownerID)
			return 3, nil
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/logout-all", nil)
	req = handlers.WithAuthContext(req, "owner-1", "session_token_123")

	w := httptest.NewRecorder()
	handler.LogoutAll(w, req)

	var resp map[string]int64
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.Equal(t, int64(3), resp["sessions_revoked"])
}

func TestMe_Success(t *testing.T) {
	user := testUser()
	mockAuth := &handlers.MockAuthService{
		GetUserFunc: func(ctx context.Context, ownerID string) (*models.User, error) {
			assert.Equal(t, user.ID, ownerID)
			return user, nil
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, nil)
	req := handlers.NewTestRequest(t, "GET", "/auth/me", nil)
	req = handlers.WithAuthContext(req, user.ID, "session_token_123")

	w := httptest.NewRecorder()
	handler.Me(w, req)

	var resp handlers.UserResponse
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.Equal(t, user.Email, resp.Email)
	assert.Nil(t, resp.LastLogin)
}

func TestRequestPasswordReset_AlwaysAccepted(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		RequestPasswordResetFunc: func(ctx context.Context, email string, meta services.RequestMeta) error {
			return nil
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/password-reset/request", handlers.PasswordResetRequest{
		Email: "nobody@example.com",
	})

	w := httptest.NewRecorder()
	handler.RequestPasswordReset(w, req)

	var resp map[string]string
	handlers.AssertJSONResponse(t, w, http.StatusAccepted, &resp)
	assert.NotEmpty(t, resp["message"])
}

func TestCompletePasswordReset_InvalidToken(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		CompletePasswordResetFunc: func(ctx context.Context, token, newPassword string, meta services.RequestMeta) error {
			return models.ErrUnauthorized
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/password-reset/complete", handlers.PasswordResetCompleteRequest{
		Token:       "tampered_token",
		NewPassword: "N3w$trongPass!!",
	})

	w := httptest.NewRecorder()
	handler.CompletePasswordReset(w, req)

	handlers.AssertErrorResponse(t, w, 401, "unauthorized")
}

func TestChangePassword_Success(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		ChangePasswordFunc: func(ctx context.Context, ownerID, currentPassword, newPassword string, meta services.RequestMeta) error {
			assert.Equal(t, "owner-1", ownerID)
			assert.Equal(t, "N3w$trongPass!!", newPassword)
			return nil
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/password/change", handlers.ChangePasswordRequest{
		CurrentPassword: "Sup3r$trongPass!",
		NewPassword:     "N3w$trongPass!!",
	})
	req = handlers.WithAuthContext(req, "owner-1", "session_token_123")

	w := httptest.NewRecorder()
	handler.ChangePassword(w, req)

	var resp map[string]string
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.NotEmpty(t, resp["message"])
}

func TestChangePassword_WrongCurrentPassword(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		ChangePasswordFunc: func(ctx context.Context, ownerID, currentPassword, newPassword string, meta services.RequestMeta) error {
			return models.ErrUnauthorized
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/password/change", handlers.ChangePasswordRequest{
		CurrentPassword: "wrong",
		NewPassword:     "N3w$trongPass!!",
	})
	req = handlers.WithAuthContext(req, "owner-1", "session_token_123")

	w := httptest.NewRecorder()
	handler.ChangePassword(w, req)

	handlers.AssertErrorResponse(t, w, 401, "unauthorized")
}

func TestDeleteAccount_Success(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		DeleteAccountFunc: func(ctx context.Context, ownerID, password string, meta services.RequestMeta) error {
			assert.Equal(t, "owner-1", ownerID)
			return nil
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, nil)
	req := handlers.NewTestRequest(t, "DELETE", "/auth/account", handlers.DeleteAccountRequest{
		Password: "Sup3r$trongPass!",
	})
	req = handlers.WithAuthContext(req, "owner-1", "session_token_123")

	w := httptest.NewRecorder()
	handler.DeleteAccount(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestDeleteAccount_WrongPassword(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		DeleteAccountFunc: func(ctx context.Context, ownerID, password string, meta services.RequestMeta) error {
			return models.ErrUnauthorized
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, nil)
	req := handlers.NewTestRequest(t, "DELETE", "/auth/account", handlers.DeleteAccountRequest{
		Password: "wrong",
	})
	req = handlers.WithAuthContext(req, "owner-1", "session_token_123")

	w := httptest.NewRecorder()
	handler.DeleteAccount(w, req)

	handlers.AssertErrorResponse(t, w, 401, "unauthorized")
}
