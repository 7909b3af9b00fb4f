package repositories_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palisade-auth/palisade/internal/models"
	"github.com/palisade-auth/palisade/internal/repositories"
)

var sessionColumns = []string{
	"id", "owner_id", "session_token", "refresh_token", "device_info",
	"ip_address", "user_agent", "expires_at", "refresh_expires_at",
	"last_used", "active", "created_at",
}

func sessionRow(token, refresh string) *pgxmock.Rows {
	now := time.Now()
	return pgxmock.NewRows(sessionColumns).AddRow(
		"sess-1", "owner-1", token, refresh, "cli",
		"10.0.0.1", "agent", now.Add(24*time.Hour), now.Add(7*24*time.Hour),
		now, true, now,
	)
}

func TestSessionTouch(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	r := repositories.NewSessionRepository(mock)
	ctx := context.Background()

	t.Run("valid token stamps last_used", func(t *testing.T) {
		mock.ExpectQuery("UPDATE sessions SET last_used").
			WithArgs("tok-1").
			WillReturnRows(sessionRow("tok-1", "ref-1"))

		session, err := r.Touch(ctx, "tok-1")
		require.NoError(t, err)
		assert.Equal(t, "owner-1", session.OwnerID)
	})

	t.Run("expired or revoked token yields not found", func(t *testing.T) {
		mock.ExpectQuery("UPDATE sessions SET last_used").
			WithArgs("stale-tok").
			WillReturnError(pgx.ErrNoRows)

		_, err := r.Touch(ctx, "stale-tok")
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRotate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	r := repositories.NewSessionRepository(mock)
	ctx := context.Background()

	t.Run("rotates both tokens on the same record", func(t *testing.T) {
		mock.ExpectQuery("UPDATE sessions SET").
			WithArgs("old-ref", "new-tok", "new-ref", float64(86400), float64(604800)).
			WillReturnRows(sessionRow("new-tok", "new-ref"))

		session, err := r.Rotate(ctx, "old-ref", "new-tok", "new-ref", 24*time.Hour, 7*24*time.Hour)
		require.NoError(t, err)
		assert.Equal(t, "new-tok", session.SessionToken)
		assert.Equal(t, "new-ref", session.RefreshToken)
	})

	t.Run("unknown refresh token yields not found", func(t *testing.T) {
		mock.ExpectQuery("UPDATE sessions SET").
			WithArgs("bad-ref", "new-tok", "new-ref", float64(86400), float64(604800)).
			WillReturnError(pgx.ErrNoRows)

		_, err := r.Rotate(ctx, "bad-ref", "new-tok", "new-ref", 24*time.Hour, 7*24*time.Hour)
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRevokeAll(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	r := repositories.NewSessionRepository(mock)

	mock.ExpectExec("UPDATE sessions SET active = false WHERE owner_id").
		WithArgs("owner-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 3))

	revoked, err := r.RevokeAll(context.Background(), "owner-1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), revoked)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRevokeUnknownToken(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	r := repositories.NewSessionRepository(mock)

	mock.ExpectExec("UPDATE sessions SET active = false WHERE session_token").
		WithArgs("unknown").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err = r.Revoke(context.Background(), "unknown")
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
