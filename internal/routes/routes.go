package routes

import (
	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/palisade-auth/palisade/internal/handlers"
	"github.com/palisade-auth/palisade/internal/middleware"
	"github.com/palisade-auth/palisade/internal/services"
)

// RegisterRoutes registers all application routes. The outer httprate
// middleware caps raw request volume per IP; the storage-backed limiter in
// the service layer enforces the per-identifier policy.
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	keysHandler *handlers.KeysHandler,
	auditHandler *handlers.AuditHandler,
	sessionService *services.SessionService,
	secretService *services.SecretService,
	logger *slog.Logger,
) {
	rateLimitConfig := middleware.DefaultAuthRateLimit()
	ownerLimitConfig := middleware.DefaultOwnerRateLimit()

	// Public routes - no authentication required
	router.With(middleware.RateLimitByIP(rateLimitConfig)).Post("/auth/register", authHandler.Register)
	router.With(middleware.RateLimitByIP(rateLimitConfig)).Post("/auth/login", authHandler.Login)
	router.With(middleware.RateLimitByIP(rateLimitConfig)).Post("/auth/refresh", authHandler.Refresh)
	router.With(middleware.RateLimitByIP(rateLimitConfig)).Post("/auth/password-reset/request", authHandler.RequestPasswordReset)
	router.With(middleware.RateLimitByIP(rateLimitConfig)).Post("/auth/password-reset/complete", authHandler.CompletePasswordReset)

	// Protected routes - session authentication required
	router.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(sessionService))
		r.Use(middleware.RateLimitByOwner(ownerLimitConfig))

		r.Post("/auth/logout", authHandler.Logout)
		r.Post("/auth/logout-all", authHandler.LogoutAll)
		r.Post("/auth/password/change", authHandler.ChangePassword)
		r.Get("/auth/me", authHandler.Me)
		r.Delete("/auth/account", authHandler.DeleteAccount)

		r.Post("/keys", keysHandler.Create)
		r.Get("/keys", keysHandler.List)
		r.Delete("/keys/{id}", keysHandler.Revoke)

		r.Get("/audit", auditHandler.List)
	})

	// Programmatic routes - API key authentication
	router.Group(func(r chi.Router) {
		r.Use(middleware.AuthenticateAPIKey(secretService, logger))
		r.Use(middleware.RateLimitByOwner(ownerLimitConfig))

		r.Get("/api/me", authHandler.Me)
		r.Get("/api/audit", auditHandler.List)
	})
}
