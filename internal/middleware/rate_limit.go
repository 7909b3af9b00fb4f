package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"
)

// RateLimitConfig holds rate limiting configuration for the outer HTTP
// layer. This limiter is volume protection per process; the per-identifier
// policy limiter lives in the service layer and is storage backed.
type RateLimitConfig struct {
	RequestsPerMinute int
}

// DefaultAuthRateLimit returns default rate limit config for auth endpoints
func DefaultAuthRateLimit() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 30,
	}
}

// DefaultOwnerRateLimit returns the default budget for authenticated traffic.
// It is looser than the auth-endpoint budget since these requests already
// carry a valid session or API key.
func DefaultOwnerRateLimit() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 120,
	}
}

// RateLimitByIP creates a middleware that rate limits requests by client IP
func RateLimitByIP(config RateLimitConfig) func(next http.Handler) http.Handler {
	return httprate.Limit(
		config.RequestsPerMinute,
		1*time.Minute,
		httprate.WithKeyByRealIP(),
		httprate.WithLimitHandler(rateLimitExceeded),
	)
}

// RateLimitByOwner creates a middleware that rate limits authenticated
// requests by the session owner, falling back to client IP when the request
// carries no owner context.
func RateLimitByOwner(config RateLimitConfig) func(next http.Handler) http.Handler {
	return httprate.Limit(
		config.RequestsPerMinute,
		1*time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			if sc := SessionFromContext(r); sc != nil {
				return sc.OwnerID, nil
			}
			return httprate.KeyByRealIP(r)
		}),
		httprate.WithLimitHandler(rateLimitExceeded),
	)
}

func rateLimitExceeded(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	w.Write([]byte(`{"error":"rate_limit_exceeded","message":"Too many requests"}`))
}
