package integration

import (
	"context"
	"net/http"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palisade-auth/palisade/internal/handlers"
)

// These tests need Docker for the postgres testcontainer.
func setup(t *testing.T) (*TestDB, *TestServer) {
	t.Helper()
	if os.Getenv("INTEGRATION") == "" {
		t.Skip("set INTEGRATION=1 to run integration tests")
	}

	ctx := context.Background()
	db, err := SetupTestDatabase(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { db.Teardown(context.Background()) })

	ts, err := NewTestServer(db.DB)
	require.NoError(t, err)
	t.Cleanup(ts.Close)

	return db, ts
}

func TestFullAuthFlow(t *testing.T) {
	_, ts := setup(t)

	email, password := TestUser("flow")

	// Register
	resp, err := ts.Request("POST", "/auth/register", handlers.RegisterRequest{
		Email:    email,
		Password: password,
	}, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	sessionToken, refreshToken, err := ExtractTokensFromResponse(resp)
	require.NoError(t, err)
	require.NotEmpty(t, sessionToken)
	require.NotEmpty(t, refreshToken)

	// Authenticated request
	resp, err = ts.RequestWithAuth("GET", "/auth/me", sessionToken, nil)
	require.NoError(t, err)
	var me handlers.UserResponse
	require.NoError(t, ParseJSONResponse(resp, &me))
	assert.Equal(t, email, me.Email)

	// Refresh rotates both tokens and invalidates the old pair
	resp, err = ts.Request("POST", "/auth/refresh", handlers.RefreshRequest{RefreshToken: refreshToken}, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	newSessionToken, newRefreshToken, err := ExtractTokensFromResponse(resp)
	require.NoError(t, err)
	assert.NotEqual(t, sessionToken, newSessionToken)
	assert.NotEqual(t, refreshToken, newRefreshToken)

	resp, err = ts.RequestWithAuth("GET", "/auth/me", sessionToken, nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "pre-rotation token should be dead")

	// Logout kills the current session
	resp, err = ts.RequestWithAuth("POST", "/auth/logout", newSessionToken, nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err = ts.RequestWithAuth("GET", "/auth/me", newSessionToken, nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLogin_WrongPasswordThenLockout(t *testing.T) {
	db, ts := setup(t)

	ctx := context.Background()
	email, password := TestUser("lockout")
	_, err := SeedUser(ctx, db.Pool, email, password)
	require.NoError(t, err)

	for i := 0; i < ts.Config.Security.LockoutThreshold; i++ {
		resp, err := ts.Request("POST", "/auth/login", handlers.LoginRequest{
			Email:    email,
			Password: "wrong-password-123!",
		}, nil)
		require.NoError(t, err)
		resp.Body.Close()
	}

	// Even the correct password is refused while the lock is active
	resp, err := ts.Request("POST", "/auth/login", handlers.LoginRequest{
		Email:    email,
		Password: password,
	}, nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusLocked, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))
}

func TestAPIKeyFlow(t *testing.T) {
	_, ts := setup(t)

	email, password := TestUser("apikey")
	resp, err := ts.Request("POST", "/auth/register", handlers.RegisterRequest{
		Email:    email,
		Password: password,
	}, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	sessionToken, _, err := ExtractTokensFromResponse(resp)
	require.NoError(t, err)

	// Issue a key; the plaintext appears exactly once
	resp, err = ts.RequestWithAuth("POST", "/keys", sessionToken, handlers.CreateKeyRequest{Name: "ci"})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var issued struct {
		ID  string `json:"id"`
		Key string `json:"key"`
	}
	require.NoError(t, ParseJSONResponse(resp, &issued))
	require.NotEmpty(t, issued.Key)

	// The key authenticates programmatic requests
	resp, err = ts.RequestWithAPIKey("GET", "/api/me", issued.Key, nil)
	require.NoError(t, err)
	var me handlers.UserResponse
	require.NoError(t, ParseJSONResponse(resp, &me))
	assert.Equal(t, email, me.Email)

	// Revocation takes effect immediately
	resp, err = ts.RequestWithAuth("DELETE", "/keys/"+issued.ID, sessionToken, nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err = ts.RequestWithAPIKey("GET", "/api/me", issued.Key, nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestPasswordResetFlow(t *testing.T) {
	db, ts := setup(t)

	ctx := context.Background()
	email, password := TestUser("reset")
	_, err := SeedUser(ctx, db.Pool, email, password)
	require.NoError(t, err)

	resp, err := ts.Request("POST", "/auth/password-reset/request", handlers.PasswordResetRequest{Email: email}, nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	sent := ts.EmailService.GetLastEmail()
	require.NotNil(t, sent, "reset token should have been captured")
	assert.Equal(t, email, sent.To)

	newPassword := "BrandNewPassword456!"
	resp, err = ts.Request("POST", "/auth/password-reset/complete", handlers.PasswordResetCompleteRequest{
		Token:       sent.Token,
		NewPassword: newPassword,
	}, nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Old password no longer works, new one does
	resp, err = ts.Request("POST", "/auth/login", handlers.LoginRequest{Email: email, Password: password}, nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, err = ts.Request("POST", "/auth/login", handlers.LoginRequest{Email: email, Password: newPassword}, nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
