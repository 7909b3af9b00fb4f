package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/palisade-auth/palisade/internal/middleware"
	"github.com/palisade-auth/palisade/internal/models"
	"github.com/palisade-auth/palisade/internal/services"
	pkghttp "github.com/palisade-auth/palisade/pkg/http"
)

// AuthServiceInterface defines the interface for auth business logic
type AuthServiceInterface interface {
	Register(ctx context.Context, email, password string, meta services.RequestMeta) (*models.User, *models.TokenPair, error)
	Login(ctx context.Context, email, password string, meta services.RequestMeta) (*models.User, *models.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string, meta services.RequestMeta) (*models.TokenPair, error)
	Logout(ctx context.Context, sessionToken, ownerID string, meta services.RequestMeta) error
	LogoutAll(ctx context.Context, ownerID string, meta services.RequestMeta) (int64, error)
	GetUser(ctx context.Context, ownerID string) (*models.User, error)
	RequestPasswordReset(ctx context.Context, email string, meta services.RequestMeta) error
	CompletePasswordReset(ctx context.Context, token, newPassword string, meta services.RequestMeta) error
	ChangePassword(ctx context.Context, ownerID, currentPassword, newPassword string, meta services.RequestMeta) error
	DeleteAccount(ctx context.Context, ownerID, password string, meta services.RequestMeta) error
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	service  AuthServiceInterface
	ipConfig *pkghttp.IPConfig
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service AuthServiceInterface, ipConfig *pkghttp.IPConfig) *AuthHandler {
	return &AuthHandler{
		service:  service,
		ipConfig: ipConfig,
	}
}

// Request DTOs

// RegisterRequest represents the request body for registration
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginRequest represents the request body for login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest represents the request body for token refresh
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// PasswordResetRequest represents the request body for requesting a reset
type PasswordResetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// PasswordResetCompleteRequest represents the request body for completing a reset
type PasswordResetCompleteRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required"`
}

// ChangePasswordRequest represents the request body for changing a password
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required"`
}

// DeleteAccountRequest represents the request body for account deletion
type DeleteAccountRequest struct {
	Password string `json:"password" validate:"required"`
}

// Response DTOs

// UserResponse represents a user in HTTP responses
type UserResponse struct {
	ID        string  `json:"id"`
	Email     string  `json:"email"`
	CreatedAt string  `json:"created_at"`
	LastLogin *string `json:"last_login,omitempty"`
}

// AuthResponse represents the response from login, register, and refresh
type AuthResponse struct {
	User   *UserResponse     `json:"user,omitempty"`
	Tokens *models.TokenPair `json:"tokens"`
}

func (h *AuthHandler) requestMeta(r *http.Request) services.RequestMeta {
	return services.RequestMeta{
		IPAddress:  pkghttp.ExtractClientIP(r, h.ipConfig),
		UserAgent:  r.Header.Get("User-Agent"),
		DeviceInfo: r.Header.Get("X-Device-Info"),
	}
}

// Register handles account creation
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	user, tokens, err := h.service.Register(r.Context(), req.Email, req.Password, h.requestMeta(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, &AuthResponse{
		User:   userModelToResponse(user),
		Tokens: tokens,
	})
}

// Login handles credential authentication
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	user, tokens, err := h.service.Login(r.Context(), req.Email, req.Password, h.requestMeta(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, &AuthResponse{
		User:   userModelToResponse(user),
		Tokens: tokens,
	})
}

// Refresh handles token rotation
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	tokens, err := h.service.Refresh(r.Context(), req.RefreshToken, h.requestMeta(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, &AuthResponse{Tokens: tokens})
}

// Logout revokes the presented session
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sc := middleware.SessionFromContext(r)
	token := middleware.TokenFromContext(r)
	if sc == nil || token == "" {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	if err := h.service.Logout(r.Context(), token, sc.OwnerID, h.requestMeta(r)); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// LogoutAll revokes every session for the authenticated owner
func (h *AuthHandler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	sc := middleware.SessionFromContext(r)
	if sc == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	revoked, err := h.service.LogoutAll(r.Context(), sc.OwnerID, h.requestMeta(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{"sessions_revoked": revoked})
}

// Me returns the authenticated owner's account
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	sc := middleware.SessionFromContext(r)
	if sc == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	user, err := h.service.GetUser(r.Context(), sc.OwnerID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, userModelToResponse(user))
}

// RequestPasswordReset starts the reset flow. Responds 202 regardless of
// whether the email resolves, to prevent account enumeration.
func (h *AuthHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req PasswordResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.service.RequestPasswordReset(r.Context(), req.Email, h.requestMeta(r)); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"message": "If that email is registered, a reset link has been sent",
	})
}

// CompletePasswordReset finishes the reset flow with a valid token
func (h *AuthHandler) CompletePasswordReset(w http.ResponseWriter, r *http.Request) {
	var req PasswordResetCompleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.service.CompletePasswordReset(r.Context(), req.Token, req.NewPassword, h.requestMeta(r)); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Password has been reset"})
}

// ChangePassword updates the authenticated owner's password
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	sc := middleware.SessionFromContext(r)
	if sc == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.service.ChangePassword(r.Context(), sc.OwnerID, req.CurrentPassword, req.NewPassword, h.requestMeta(r)); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Password changed. Please log in again."})
}

// DeleteAccount removes the authenticated owner's account. The password must
// be presented again; a live session alone is not enough.
func (h *AuthHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	sc := middleware.SessionFromContext(r)
	if sc == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req DeleteAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.service.DeleteAccount(r.Context(), sc.OwnerID, req.Password, h.requestMeta(r)); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func userModelToResponse(user *models.User) *UserResponse {
	resp := &UserResponse{
		ID:        user.ID,
		Email:     user.Email,
		CreatedAt: user.CreatedAt.Format(time.RFC3339),
	}
	if user.LastLogin != nil {
		lastLogin := user.LastLogin.Format(time.RFC3339)
		resp.LastLogin = &lastLogin
	}
	return resp
}

// writeServiceError maps service-layer errors to HTTP responses. Lockout and
// rate limit failures carry retry timing; everything else maps to a generic
// message so internals are never exposed.
func writeServiceError(w http.ResponseWriter, err error) {
	var rateLimited *models.RateLimitedError
	var locked *models.LockedError
	var validation *models.ValidationError

	switch {
	case errors.As(err, &rateLimited):
		pkghttp.WriteRateLimited(w, rateLimited.RetryAfter, "Too many requests. Please try again later.")
	case errors.As(err, &locked):
		pkghttp.WriteLocked(w, locked.UnlockAt,
			fmt.Sprintf("Account is temporarily locked until %s", locked.UnlockAt.UTC().Format(time.RFC3339)))
	case errors.As(err, &validation):
		pkghttp.WriteBadRequest(w, validation.Error())
	case errors.Is(err, models.ErrUnauthorized):
		pkghttp.WriteUnauthorized(w, "Authentication failed")
	case errors.Is(err, models.ErrConflict):
		pkghttp.WriteConflict(w, "Resource already exists")
	case errors.Is(err, models.ErrNotFound):
		pkghttp.WriteNotFound(w, "Resource not found")
	case errors.Is(err, models.ErrForbidden):
		pkghttp.WriteForbidden(w, "Access denied")
	default:
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}

func writeJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}
