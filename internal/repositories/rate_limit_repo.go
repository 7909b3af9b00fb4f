package repositories

import (
	"context"
	"time"

	"github.com/palisade-auth/palisade/internal/database"
	"github.com/palisade-auth/palisade/internal/models"
)

// RateLimitRepository maintains one counter row per (identifier, endpoint)
// pair. The whole window state machine runs inside a single upsert so
// concurrent requests cannot race the threshold check.
type RateLimitRepository struct {
	db DBTX
}

func NewRateLimitRepository(db DBTX) *RateLimitRepository {
	return &RateLimitRepository{db: db}
}

// Hit records one request against the pair and returns the resulting row
// state. The statement handles three cases without a read-modify-write gap:
//
//   - an active block: count and window are left untouched
//   - an elapsed window or elapsed block: the row resets to a fresh window
//   - an active window: count increments, and crossing the threshold sets
//     blocked_until = now + window, denying the triggering request too
func (r *RateLimitRepository) Hit(ctx context.Context, identifier, endpoint string, window time.Duration, threshold int) (*models.RateLimit, error) {
	query := `
		INSERT INTO rate_limits (identifier, endpoint, count, window_start, blocked_until)
		VALUES ($1, $2, 1, now(), NULL)
		ON CONFLICT (identifier, endpoint) DO UPDATE SET
			count = CASE
				WHEN rate_limits.blocked_until IS NOT NULL AND rate_limits.blocked_until > now()
					THEN rate_limits.count
				WHEN (rate_limits.blocked_until IS NOT NULL AND rate_limits.blocked_until <= now())
					OR rate_limits.window_start <= now() - make_interval(secs => $3)
					THEN 1
				ELSE rate_limits.count + 1
			END,
			window_start = CASE
				WHEN rate_limits.blocked_until IS NOT NULL AND rate_limits.blocked_until > now()
					THEN rate_limits.window_start
				WHEN (rate_limits.blocked_until IS NOT NULL AND rate_limits.blocked_until <= now())
					OR rate_limits.window_start <= now() - make_interval(secs => $3)
					THEN now()
				ELSE rate_limits.window_start
			END,
			blocked_until = CASE
				WHEN rate_limits.blocked_until IS NOT NULL AND rate_limits.blocked_until > now()
					THEN rate_limits.blocked_until
				WHEN (rate_limits.blocked_until IS NOT NULL AND rate_limits.blocked_until <= now())
					OR rate_limits.window_start <= now() - make_interval(secs => $3)
					THEN NULL
				WHEN rate_limits.count + 1 > $4
					THEN now() + make_interval(secs => $3)
				ELSE NULL
			END
		RETURNING identifier, endpoint, count, window_start, blocked_until
	`

	var rl models.RateLimit
	err := r.db.QueryRow(ctx, query, identifier, endpoint, window.Seconds(), threshold).Scan(
		&rl.Identifier, &rl.Endpoint, &rl.Count, &rl.WindowStart, &rl.BlockedUntil,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &rl, nil
}

// DeleteElapsed removes rows whose window and block both elapsed more than
// the grace period ago.
func (r *RateLimitRepository) DeleteElapsed(ctx context.Context, grace time.Duration) (int64, error) {
	query := `
		DELETE FROM rate_limits
		WHERE window_start < now() - make_interval(secs => $1)
		  AND (blocked_until IS NULL OR blocked_until < now() - make_interval(secs => $1))
	`

	result, err := r.db.Exec(ctx, query, grace.Seconds())
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return result.RowsAffected(), nil
}
