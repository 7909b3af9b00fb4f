package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/palisade-auth/palisade/internal/database"
	"github.com/palisade-auth/palisade/internal/models"
)

// AuditLogRepository appends and reads immutable security events. There are
// no update paths; events are only ever inserted, listed, and eventually
// aged out by retention cleanup.
type AuditLogRepository struct {
	db DBTX
}

func NewAuditLogRepository(db DBTX) *AuditLogRepository {
	return &AuditLogRepository{db: db}
}

const auditColumns = `id, owner_id, event_type, ip_address, user_agent, success, details, created_at`

func scanAuditRow(row rowScanner) (*models.AuditEvent, error) {
	var event models.AuditEvent

	err := row.Scan(
		&event.ID, &event.OwnerID, &event.EventType, &event.IPAddress,
		&event.UserAgent, &event.Success, &event.Details, &event.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &event, nil
}

func scanAuditRows(rows pgx.Rows) ([]*models.AuditEvent, error) {
	defer rows.Close()

	events := make([]*models.AuditEvent, 0)

	for rows.Next() {
		event, err := scanAuditRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit rows: %w", err)
	}

	return events, nil
}

// Append inserts one audit event.
func (r *AuditLogRepository) Append(ctx context.Context, event *models.AuditEvent) (*models.AuditEvent, error) {
	query := `
		INSERT INTO audit_log (owner_id, event_type, ip_address, user_agent, success, details)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + auditColumns

	result, err := scanAuditRow(r.db.QueryRow(ctx, query,
		event.OwnerID, event.EventType, event.IPAddress, event.UserAgent,
		event.Success, event.Details,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to append audit event: %w", err)
	}

	return result, nil
}

// ListByOwner retrieves events for one owner, newest first.
func (r *AuditLogRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*models.AuditEvent, error) {
	query := `
		SELECT ` + auditColumns + `
		FROM audit_log
		WHERE owner_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Query(ctx, query, ownerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}

	return scanAuditRows(rows)
}

// ListByOwnerAndType retrieves one owner's events of one type, newest first.
func (r *AuditLogRepository) ListByOwnerAndType(ctx context.Context, ownerID uuid.UUID, eventType string, limit, offset int) ([]*models.AuditEvent, error) {
	query := `
		SELECT ` + auditColumns + `
		FROM audit_log
		WHERE owner_id = $1 AND event_type = $2
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`

	rows, err := r.db.Query(ctx, query, ownerID, eventType, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}

	return scanAuditRows(rows)
}

// DeleteOlderThan ages out events past the retention horizon.
func (r *AuditLogRepository) DeleteOlderThan(ctx context.Context, days int) (int64, error) {
	query := `DELETE FROM audit_log WHERE created_at < now() - INTERVAL '1 day' * $1`

	result, err := r.db.Exec(ctx, query, days)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old audit events: %w", err)
	}

	return result.RowsAffected(), nil
}
