package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/palisade-auth/palisade/internal/config"
	"github.com/palisade-auth/palisade/internal/models"
)

// RateLimitStore defines the interface for rate limit counter operations
type RateLimitStore interface {
	Hit(ctx context.Context, identifier, endpoint string, window time.Duration, threshold int) (*models.RateLimit, error)
}

// RateLimitService implements sliding-window request throttling per
// (identifier, endpoint) pair.
type RateLimitService struct {
	store  RateLimitStore
	config config.RateLimitConfig
	logger *slog.Logger
}

// NewRateLimitService creates a new RateLimitService
func NewRateLimitService(store RateLimitStore, cfg config.RateLimitConfig, logger *slog.Logger) *RateLimitService {
	return &RateLimitService{
		store:  store,
		config: cfg,
		logger: logger,
	}
}

// Allow records one request against the pair and decides whether it may
// proceed. On storage failure the limiter fails open: a store outage must
// not deny legitimate traffic, an explicit availability-over-strictness
// tradeoff.
func (s *RateLimitService) Allow(ctx context.Context, identifier, endpoint string) models.Decision {
	rule := s.config.Rule(endpoint)

	rl, err := s.store.Hit(ctx, identifier, endpoint, rule.Window, rule.Max)
	if err != nil {
		s.logger.Error("rate limit store failure, failing open",
			slog.String("endpoint", endpoint),
			slog.Any("error", err))
		return models.Decision{Allowed: true}
	}

	now := time.Now()
	if rl.BlockedUntil != nil && rl.BlockedUntil.After(now) {
		retryAfter := rl.BlockedUntil.Sub(now)
		s.logger.Warn("request rate limited",
			slog.String("identifier", identifier),
			slog.String("endpoint", endpoint),
			slog.Int("count", rl.Count),
			slog.Duration("retry_after", retryAfter))
		return models.Decision{Allowed: false, RetryAfter: retryAfter}
	}

	return models.Decision{Allowed: true}
}
