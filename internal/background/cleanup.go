package background

import (
	"context"
	"log/slog"
	"time"

	"github.com/palisade-auth/palisade/internal/repositories"
)

// Expired sessions are deleted only after a grace period past their refresh
// expiry, so recently dead sessions remain inspectable.
const sessionDeleteGrace = 24 * time.Hour

// CleanupManager periodically removes aged-out rows: elapsed rate limit
// windows, long-expired sessions, and audit events past retention. None of
// this affects correctness; validation and limiting work off timestamps in
// WHERE clauses.
type CleanupManager struct {
	sessions      *repositories.SessionRepository
	rateLimits    *repositories.RateLimitRepository
	auditLog      *repositories.AuditLogRepository
	retentionDays int
	logger        *slog.Logger
	interval      time.Duration
	stopCh        chan struct{}
}

// NewCleanupManager creates a new cleanup manager
func NewCleanupManager(
	sessions *repositories.SessionRepository,
	rateLimits *repositories.RateLimitRepository,
	auditLog *repositories.AuditLogRepository,
	retentionDays int,
	logger *slog.Logger,
	interval time.Duration,
) *CleanupManager {
	return &CleanupManager{
		sessions:      sessions,
		rateLimits:    rateLimits,
		auditLog:      auditLog,
		retentionDays: retentionDays,
		logger:        logger,
		interval:      interval,
		stopCh:        make(chan struct{}),
	}
}

// Start begins the periodic cleanup task
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	// Run immediately on startup
	cm.runCleanup(ctx)

	for {
		select {
		case <-ticker.C:
			cm.runCleanup(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

func (cm *CleanupManager) runCleanup(ctx context.Context) {
	cm.logger.Info("starting retention cleanup")

	cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if deleted, err := cm.sessions.DeleteExpired(cleanupCtx, sessionDeleteGrace); err != nil {
		cm.logger.Error("failed to delete expired sessions", slog.Any("error", err))
	} else if deleted > 0 {
		cm.logger.Info("expired sessions deleted", slog.Int64("rows_deleted", deleted))
	}

	if deleted, err := cm.rateLimits.DeleteElapsed(cleanupCtx, cm.interval); err != nil {
		cm.logger.Error("failed to delete elapsed rate limit windows", slog.Any("error", err))
	} else if deleted > 0 {
		cm.logger.Info("elapsed rate limit windows deleted", slog.Int64("rows_deleted", deleted))
	}

	if cm.retentionDays > 0 {
		if deleted, err := cm.auditLog.DeleteOlderThan(cleanupCtx, cm.retentionDays); err != nil {
			cm.logger.Error("failed to delete old audit events", slog.Any("error", err))
		} else if deleted > 0 {
			cm.logger.Info("old audit events deleted", slog.Int64("rows_deleted", deleted))
		}
	}
}

// Stop signals the cleanup manager to stop
func (cm *CleanupManager) Stop() {
	close(cm.stopCh)
}
