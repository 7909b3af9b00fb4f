package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/palisade-auth/palisade/internal/database"
	"github.com/palisade-auth/palisade/internal/models"
)

// SessionRepository handles session token storage. Validation, refresh, and
// revocation are each a single statement; expiry is checked in the WHERE
// clause so stale rows simply stop matching instead of needing a sweeper.
type SessionRepository struct {
	db DBTX
}

func NewSessionRepository(db DBTX) *SessionRepository {
	return &SessionRepository{db: db}
}

const sessionColumns = `id, owner_id, session_token, refresh_token, device_info, ip_address, user_agent,
		expires_at, refresh_expires_at, last_used, active, created_at`

func scanSessionRow(scanner rowScanner) (*models.Session, error) {
	var s models.Session

	err := scanner.Scan(
		&s.ID, &s.OwnerID, &s.SessionToken, &s.RefreshToken, &s.DeviceInfo,
		&s.IPAddress, &s.UserAgent, &s.ExpiresAt, &s.RefreshExpiresAt,
		&s.LastUsed, &s.Active, &s.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &s, nil
}

// Create inserts a new active session record.
func (r *SessionRepository) Create(ctx context.Context, session *models.Session) (*models.Session, error) {
	session.ID = uuid.New().String()

	query := `
		INSERT INTO sessions (id, owner_id, session_token, refresh_token, device_info, ip_address,
			user_agent, expires_at, refresh_expires_at, last_used, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), true, now())
		RETURNING ` + sessionColumns

	return scanSessionRow(r.db.QueryRow(ctx, query,
		session.ID, session.OwnerID, session.SessionToken, session.RefreshToken,
		session.DeviceInfo, session.IPAddress, session.UserAgent,
		session.ExpiresAt, session.RefreshExpiresAt,
	))
}

// Touch validates a session token and stamps last_used in one statement.
// Returns ErrNotFound for unknown, revoked, or access-expired tokens.
func (r *SessionRepository) Touch(ctx context.Context, sessionToken string) (*models.Session, error) {
	query := `
		UPDATE sessions SET last_used = now()
		WHERE session_token = $1 AND active AND expires_at > now()
		RETURNING ` + sessionColumns

	return scanSessionRow(r.db.QueryRow(ctx, query, sessionToken))
}

// Rotate swaps both tokens in place on the record addressed by the presented
// refresh token and extends both expiries from now. The old access and
// refresh tokens stop matching the moment the statement commits. Returns
// ErrNotFound when the refresh token is unknown, revoked, or past its own
// expiry.
func (r *SessionRepository) Rotate(ctx context.Context, refreshToken, newSessionToken, newRefreshToken string, accessTTL, refreshTTL time.Duration) (*models.Session, error) {
	query := `
		UPDATE sessions SET
			session_token = $2,
			refresh_token = $3,
			expires_at = now() + make_interval(secs => $4),
			refresh_expires_at = now() + make_interval(secs => $5),
			last_used = now()
		WHERE refresh_token = $1 AND active AND refresh_expires_at > now()
		RETURNING ` + sessionColumns

	return scanSessionRow(r.db.QueryRow(ctx, query,
		refreshToken, newSessionToken, newRefreshToken,
		accessTTL.Seconds(), refreshTTL.Seconds(),
	))
}

// Revoke marks a single session inactive. Revocation is terminal.
func (r *SessionRepository) Revoke(ctx context.Context, sessionToken string) error {
	query := `UPDATE sessions SET active = false WHERE session_token = $1 AND active`

	result, err := r.db.Exec(ctx, query, sessionToken)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// RevokeAll marks every session for an owner inactive in one bulk update.
func (r *SessionRepository) RevokeAll(ctx context.Context, ownerID string) (int64, error) {
	query := `UPDATE sessions SET active = false WHERE owner_id = $1 AND active`

	result, err := r.db.Exec(ctx, query, ownerID)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return result.RowsAffected(), nil
}

// DeleteExpired removes rows whose refresh expiry passed more than the grace
// period ago. Retention hygiene only; validation never depends on it.
func (r *SessionRepository) DeleteExpired(ctx context.Context, grace time.Duration) (int64, error) {
	query := `DELETE FROM sessions WHERE refresh_expires_at < now() - make_interval(secs => $1)`

	result, err := r.db.Exec(ctx, query, grace.Seconds())
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return result.RowsAffected(), nil
}
