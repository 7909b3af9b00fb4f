package handlers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palisade-auth/palisade/internal/handlers"
	"github.com/palisade-auth/palisade/internal/models"
	"github.com/palisade-auth/palisade/internal/services"
)

func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestCreateKey_Success(t *testing.T) {
	mockSecrets := &handlers.MockSecretService{
		IssueFunc: func(ctx context.Context, ownerID, name string, meta services.RequestMeta) (*models.IssuedSecret, error) {
			assert.Equal(t, "owner-1", ownerID)
			assert.Equal(t, "ci-deploy", name)
			return &models.IssuedSecret{
				ID:       "key-1",
				Name:     name,
				Preview:  "plsd_a1b2c3d",
				PlainKey: "plsd_a1b2c3d4e5f6a7b8c9d0e1f2a3b4c5d6e7f8a9b0c1d2e3f4a5b6c7d8e9f0a1b2c3d4e5",
			}, nil
		},
	}

	handler := handlers.NewKeysHandler(mockSecrets, nil)
	req := handlers.NewTestRequest(t, "POST", "/keys", handlers.CreateKeyRequest{Name: "ci-deploy"})
	req = handlers.WithAuthContext(req, "owner-1", "session_token_123")

	w := httptest.NewRecorder()
	handler.Create(w, req)

	var resp models.IssuedSecret
	handlers.AssertJSONResponse(t, w, 201, &resp)
	assert.Equal(t, "ci-deploy", resp.Name)
	assert.NotEmpty(t, resp.PlainKey, "issuance response must include the plaintext key")
}

func TestCreateKey_MissingName(t *testing.T) {
	handler := handlers.NewKeysHandler(&handlers.MockSecretService{}, nil)
	req := handlers.NewTestRequest(t, "POST", "/keys", handlers.CreateKeyRequest{Name: ""})
	req = handlers.WithAuthContext(req, "owner-1", "session_token_123")

	w := httptest.NewRecorder()
	handler.Create(w, req)

	handlers.AssertErrorResponse(t, w, 400, "bad_request")
}

func TestCreateKey_Unauthenticated(t *testing.T) {
	handler := handlers.NewKeysHandler(&handlers.MockSecretService{}, nil)
	req := handlers.NewTestRequest(t, "POST", "/keys", handlers.CreateKeyRequest{Name: "ci-deploy"})

	w := httptest.NewRecorder()
	handler.Create(w, req)

	handlers.AssertErrorResponse(t, w, 401, "unauthorized")
}

func TestListKeys_PreviewsOnly(t *testing.T) {
	revokedAt := time.Now().Add(-time.Hour)
	mockSecrets := &handlers.MockSecretService{
		ListFunc: func(ctx context.Context, ownerID string, limit, offset int) ([]*models.Secret, error) {
			assert.Equal(t, 50, limit)
			assert.Equal(t, 0, offset)
			return []*models.Secret{
				{ID: "key-1", OwnerID: ownerID, Name: "ci-deploy", Preview: "plsd_a1b2c3d", Active: true, CreatedAt: time.Now()},
				{ID: "key-2", OwnerID: ownerID, Name: "old-key", Preview: "plsd_ffeeddc", Active: false, RevokedAt: &revokedAt, CreatedAt: time.Now().Add(-48 * time.Hour)},
			}, nil
		},
	}

	handler := handlers.NewKeysHandler(mockSecrets, nil)
	req := handlers.NewTestRequest(t, "GET", "/keys", nil)
	req = handlers.WithAuthContext(req, "owner-1", "session_token_123")

	w := httptest.NewRecorder()
	handler.List(w, req)

	var resp struct {
		Keys []*handlers.KeyResponse `json:"keys"`
	}
	handlers.AssertJSONResponse(t, w, 200, &resp)
	require.Len(t, resp.Keys, 2)
	assert.Equal(t, "plsd_a1b2c3d", resp.Keys[0].Preview)
	assert.True(t, resp.Keys[0].Active)
	assert.False(t, resp.Keys[1].Active)
	assert.NotNil(t, resp.Keys[1].RevokedAt)
	assert.NotContains(t, w.Body.String(), "ciphertext")
}

func TestRevokeKey_Success(t *testing.T) {
	var revokedID string
	mockSecrets := &handlers.MockSecretService{
		RevokeFunc: func(ctx context.Context, ownerID, secretID string, meta services.RequestMeta) error {
			revokedID = secretID
			return nil
		},
	}

	handler := handlers.NewKeysHandler(mockSecrets, nil)
	req := handlers.NewTestRequest(t, "DELETE", "/keys/key-1", nil)
	req = handlers.WithAuthContext(req, "owner-1", "session_token_123")
	req = withURLParam(req, "id", "key-1")

	w := httptest.NewRecorder()
	handler.Revoke(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "key-1", revokedID)
}

func TestRevokeKey_NotOwned(t *testing.T) {
	mockSecrets := &handlers.MockSecretService{
		RevokeFunc: func(ctx context.Context, ownerID, secretID string, meta services.RequestMeta) error {
			return models.ErrNotFound
		},
	}

	handler := handlers.NewKeysHandler(mockSecrets, nil)
	req := handlers.NewTestRequest(t, "DELETE", "/keys/key-2", nil)
	req = handlers.WithAuthContext(req, "owner-1", "session_token_123")
	req = withURLParam(req, "id", "key-2")

	w := httptest.NewRecorder()
	handler.Revoke(w, req)

	handlers.AssertErrorResponse(t, w, 404, "not_found")
}
