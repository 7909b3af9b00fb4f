package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/palisade-auth/palisade/internal/models"
	"github.com/palisade-auth/palisade/internal/services"
	pkghttp "github.com/palisade-auth/palisade/pkg/http"
)

type contextKey string

const (
	sessionContextKey contextKey = "session"
	tokenContextKey   contextKey = "session_token"
)

// Authenticate validates the bearer session token on each request and
// injects the owner context. Revocation is immediate: the token is checked
// against storage on every request, never against cached claims.
func Authenticate(sessions *services.SessionService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractBearerToken(r)
			if token == "" {
				pkghttp.WriteUnauthorized(w, "Missing or invalid authorization header")
				return
			}

			sc, err := sessions.Validate(r.Context(), token)
			if err != nil {
				pkghttp.WriteUnauthorized(w, "Invalid or expired session")
				return
			}

			next.ServeHTTP(w, WithSessionContext(r, sc, token))
		})
	}
}

// AuthenticateAPIKey validates the X-API-Key header for programmatic
// clients and injects an owner context scoped to the key's owner.
func AuthenticateAPIKey(secrets *services.SecretService, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				pkghttp.WriteUnauthorized(w, "Missing API key")
				return
			}

			secret, err := secrets.VerifyKey(r.Context(), key)
			if err != nil {
				if err != models.ErrUnauthorized {
					logger.Error("api key verification failed", slog.Any("error", err))
				}
				pkghttp.WriteUnauthorized(w, "Invalid API key")
				return
			}

			sc := &models.SessionContext{OwnerID: secret.OwnerID}
			next.ServeHTTP(w, WithSessionContext(r, sc, ""))
		})
	}
}

// WithSessionContext returns a copy of the request carrying the given owner
// context and raw token.
func WithSessionContext(r *http.Request, sc *models.SessionContext, token string) *http.Request {
	ctx := context.WithValue(r.Context(), sessionContextKey, sc)
	if token != "" {
		ctx = context.WithValue(ctx, tokenContextKey, token)
	}
	return r.WithContext(ctx)
}

// SessionFromContext returns the owner context set by Authenticate or
// AuthenticateAPIKey, or nil when the request is unauthenticated.
func SessionFromContext(r *http.Request) *models.SessionContext {
	sc, _ := r.Context().Value(sessionContextKey).(*models.SessionContext)
	return sc
}

// TokenFromContext returns the raw session token the request presented.
// Empty for API key authenticated requests.
func TokenFromContext(r *http.Request) string {
	token, _ := r.Context().Value(tokenContextKey).(string)
	return token
}

func extractBearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
