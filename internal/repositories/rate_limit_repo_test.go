package repositories_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palisade-auth/palisade/internal/repositories"
)

func TestRateLimitHit(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	r := repositories.NewRateLimitRepository(mock)
	ctx := context.Background()
	columns := []string{"identifier", "endpoint", "count", "window_start", "blocked_until"}

	t.Run("first request opens a window", func(t *testing.T) {
		mock.ExpectQuery("INSERT INTO rate_limits").
			WithArgs("10.0.0.1", "login", float64(900), 10).
			WillReturnRows(pgxmock.NewRows(columns).
				AddRow("10.0.0.1", "login", 1, time.Now(), nil))

		rl, err := r.Hit(ctx, "10.0.0.1", "login", 15*time.Minute, 10)
		require.NoError(t, err)
		assert.Equal(t, 1, rl.Count)
		assert.Nil(t, rl.BlockedUntil)
	})

	t.Run("threshold crossing returns blocked_until", func(t *testing.T) {
		blockedUntil := time.Now().Add(15 * time.Minute)
		mock.ExpectQuery("INSERT INTO rate_limits").
			WithArgs("10.0.0.1", "login", float64(900), 10).
			WillReturnRows(pgxmock.NewRows(columns).
				AddRow("10.0.0.1", "login", 11, time.Now(), &blockedUntil))

		rl, err := r.Hit(ctx, "10.0.0.1", "login", 15*time.Minute, 10)
		require.NoError(t, err)
		require.NotNil(t, rl.BlockedUntil)
		assert.True(t, rl.BlockedUntil.After(time.Now()))
	})

	t.Run("database error propagates", func(t *testing.T) {
		mock.ExpectQuery("INSERT INTO rate_limits").
			WithArgs("10.0.0.1", "login", float64(900), 10).
			WillReturnError(errors.New("connection refused"))

		_, err := r.Hit(ctx, "10.0.0.1", "login", 15*time.Minute, 10)
		assert.Error(t, err)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRateLimitDeleteElapsed(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	r := repositories.NewRateLimitRepository(mock)

	mock.ExpectExec("DELETE FROM rate_limits").
		WithArgs(float64(3600)).
		WillReturnResult(pgxmock.NewResult("DELETE", 4))

	deleted, err := r.DeleteElapsed(context.Background(), time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(4), deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}
