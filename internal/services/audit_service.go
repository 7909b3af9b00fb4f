package services

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/palisade-auth/palisade/internal/models"
	pkglogger "github.com/palisade-auth/palisade/pkg/logger"
)

// AuditLogStore defines the interface for audit event persistence
type AuditLogStore interface {
	Append(ctx context.Context, event *models.AuditEvent) (*models.AuditEvent, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*models.AuditEvent, error)
	ListByOwnerAndType(ctx context.Context, ownerID uuid.UUID, eventType string, limit, offset int) ([]*models.AuditEvent, error)
}

// AuditService records security events best-effort. A failed append never
// fails the operation being audited; instead the event is written to the
// structured log as a fallback and a dropped counter is incremented so
// operators can detect a silent audit gap.
type AuditService struct {
	store    AuditLogStore
	fallback *pkglogger.AuditLogger
	logger   *slog.Logger
	dropped  atomic.Int64
}

// NewAuditService creates a new AuditService
func NewAuditService(store AuditLogStore, fallback *pkglogger.AuditLogger, logger *slog.Logger) *AuditService {
	return &AuditService{
		store:    store,
		fallback: fallback,
		logger:   logger,
	}
}

// Record appends one event. Returns nothing: auditing is observability, not
// control flow, and callers must not branch on its outcome.
func (s *AuditService) Record(ctx context.Context, event *models.AuditEvent) {
	if _, err := s.store.Append(ctx, event); err != nil {
		s.dropped.Add(1)
		s.logger.Error("audit append failed, falling back to log stream",
			slog.String("event_type", event.EventType),
			slog.Int64("dropped_total", s.dropped.Load()),
			slog.Any("error", err))

		fallbackEvent := pkglogger.AuditEvent{
			EventType: event.EventType,
			IPAddress: event.IPAddress,
			UserAgent: event.UserAgent,
			Success:   event.Success,
		}
		if event.OwnerID != nil {
			fallbackEvent.UserID = event.OwnerID.String()
		}
		s.fallback.LogEvent(fallbackEvent)
	}
}

// Dropped reports how many events could not be persisted since startup.
func (s *AuditService) Dropped() int64 {
	return s.dropped.Load()
}

// ListByOwner returns persisted events for one owner, newest first.
func (s *AuditService) ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*models.AuditEvent, error) {
	return s.store.ListByOwner(ctx, ownerID, limit, offset)
}

// ListByOwnerAndType returns one owner's events of one type, newest first.
func (s *AuditService) ListByOwnerAndType(ctx context.Context, ownerID uuid.UUID, eventType string, limit, offset int) ([]*models.AuditEvent, error) {
	return s.store.ListByOwnerAndType(ctx, ownerID, eventType, limit, offset)
}

// ownerRef converts a user ID string into the nullable owner reference used
// by audit events. Returns nil for IDs that are not valid UUIDs, such as the
// empty ID of an unresolved login attempt.
func ownerRef(userID string) *uuid.UUID {
	id, err := uuid.Parse(userID)
	if err != nil {
		return nil
	}
	return &id
}
