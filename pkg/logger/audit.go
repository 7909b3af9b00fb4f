package logger

import (
	"context"
	"log/slog"
	"time"
)

// AuditEvent is the log-stream form of a security event. It mirrors the
// persisted audit record closely enough that the stream can stand in for the
// store when the database is unavailable.
type AuditEvent struct {
	EventType string
	UserID    string
	IPAddress string
	UserAgent string
	Success   bool
	Details   string
}

// AuditLogger emits security events to the structured log. It is the
// fallback channel behind the database-backed audit trail.
type AuditLogger struct {
	logger *slog.Logger
}

func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return &AuditLogger{logger: logger}
}

// LogEvent writes one event. Failed events log at warn so log-based alerting
// can key on level alone.
func (al *AuditLogger) LogEvent(event AuditEvent) {
	attrs := []slog.Attr{
		slog.String("audit_type", "security"),
		slog.String("event_type", event.EventType),
		slog.Bool("success", event.Success),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	if event.UserID != "" {
		attrs = append(attrs, slog.String("user_id", event.UserID))
	}
	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}
	if event.UserAgent != "" {
		attrs = append(attrs, slog.String("user_agent", event.UserAgent))
	}
	if event.Details != "" {
		attrs = append(attrs, slog.String("details", event.Details))
	}

	level := slog.LevelInfo
	if !event.Success {
		level = slog.LevelWarn
	}
	al.logger.LogAttrs(context.Background(), level, "audit", attrs...)
}
