package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/palisade-auth/palisade/internal/middleware"
	"github.com/palisade-auth/palisade/internal/models"
	"github.com/palisade-auth/palisade/internal/services"
	pkghttp "github.com/palisade-auth/palisade/pkg/http"
)

// SecretServiceInterface defines the interface for API key business logic
type SecretServiceInterface interface {
	Issue(ctx context.Context, ownerID, name string, meta services.RequestMeta) (*models.IssuedSecret, error)
	List(ctx context.Context, ownerID string, limit, offset int) ([]*models.Secret, error)
	Revoke(ctx context.Context, ownerID, secretID string, meta services.RequestMeta) error
}

// KeysHandler handles API key management requests
type KeysHandler struct {
	service  SecretServiceInterface
	ipConfig *pkghttp.IPConfig
}

// NewKeysHandler creates a new KeysHandler
func NewKeysHandler(service SecretServiceInterface, ipConfig *pkghttp.IPConfig) *KeysHandler {
	return &KeysHandler{
		service:  service,
		ipConfig: ipConfig,
	}
}

// CreateKeyRequest represents the request body for issuing an API key
type CreateKeyRequest struct {
	Name string `json:"name" validate:"required,min=1,max=100"`
}

// KeyResponse represents an API key in list responses. The plaintext key is
// absent by construction; it exists only in the issuance response.
type KeyResponse struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Preview   string  `json:"preview"`
	Active    bool    `json:"active"`
	CreatedAt string  `json:"created_at"`
	RevokedAt *string `json:"revoked_at,omitempty"`
}

// Create issues a new API key and returns the plaintext exactly once
func (h *KeysHandler) Create(w http.ResponseWriter, r *http.Request) {
	sc := middleware.SessionFromContext(r)
	if sc == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req CreateKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	meta := services.RequestMeta{
		IPAddress: pkghttp.ExtractClientIP(r, h.ipConfig),
		UserAgent: r.Header.Get("User-Agent"),
	}

	issued, err := h.service.Issue(r.Context(), sc.OwnerID, req.Name, meta)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, issued)
}

// List returns the owner's API keys, previews only
func (h *KeysHandler) List(w http.ResponseWriter, r *http.Request) {
	sc := middleware.SessionFromContext(r)
	if sc == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	limit, offset := paginationParams(r, 50)

	secrets, err := h.service.List(r.Context(), sc.OwnerID, limit, offset)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	keys := make([]*KeyResponse, 0, len(secrets))
	for _, secret := range secrets {
		keys = append(keys, secretModelToResponse(secret))
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"keys": keys})
}

// Revoke soft-deletes one of the owner's API keys
func (h *KeysHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	sc := middleware.SessionFromContext(r)
	if sc == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	keyID := chi.URLParam(r, "id")
	if keyID == "" {
		pkghttp.WriteBadRequest(w, "Key ID is required")
		return
	}

	meta := services.RequestMeta{
		IPAddress: pkghttp.ExtractClientIP(r, h.ipConfig),
		UserAgent: r.Header.Get("User-Agent"),
	}

	if err := h.service.Revoke(r.Context(), sc.OwnerID, keyID, meta); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func secretModelToResponse(secret *models.Secret) *KeyResponse {
	resp := &KeyResponse{
		ID:        secret.ID,
		Name:      secret.Name,
		Preview:   secret.Preview,
		Active:    secret.Active,
		CreatedAt: secret.CreatedAt.Format(time.RFC3339),
	}
	if secret.RevokedAt != nil {
		revokedAt := secret.RevokedAt.Format(time.RFC3339)
		resp.RevokedAt = &revokedAt
	}
	return resp
}

// paginationParams parses limit/offset query parameters with bounds.
func paginationParams(r *http.Request, defaultLimit int) (int, int) {
	limit := defaultLimit
	offset := 0

	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 && parsed <= 200 {
			limit = parsed
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	return limit, offset
}
