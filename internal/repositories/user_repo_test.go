package repositories_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palisade-auth/palisade/internal/models"
	"github.com/palisade-auth/palisade/internal/repositories"
)

var userColumns = []string{
	"id", "email", "password_hash", "failed_attempts",
	"locked_until", "last_login", "created_at", "updated_at",
}

func TestUserGetByEmail(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	r := repositories.NewUserRepository(mock)
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		now := time.Now()
		mock.ExpectQuery("SELECT (.+) FROM users WHERE email").
			WithArgs("test@example.com").
			WillReturnRows(pgxmock.NewRows(userColumns).
				AddRow("user-1", "test@example.com", "$2a$12$hash", 0, nil, nil, now, now))

		user, err := r.GetByEmail(ctx, "test@example.com")
		require.NoError(t, err)
		assert.Equal(t, "user-1", user.ID)
		assert.False(t, user.IsLocked(time.Now()))
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM users WHERE email").
			WithArgs("missing@example.com").
			WillReturnError(pgx.ErrNoRows)

		_, err := r.GetByEmail(ctx, "missing@example.com")
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRecordFailureLocksAtThreshold(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	r := repositories.NewUserRepository(mock)
	ctx := context.Background()

	lockedUntil := time.Now().Add(30 * time.Minute)
	now := time.Now()
	mock.ExpectQuery("UPDATE users SET").
		WithArgs("user-1", 5, float64(1800)).
		WillReturnRows(pgxmock.NewRows(userColumns).
			AddRow("user-1", "test@example.com", "$2a$12$hash", 5, &lockedUntil, nil, now, now))

	user, err := r.RecordFailure(ctx, "user-1", 5, 30*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 5, user.FailedAttempts)
	assert.True(t, user.IsLocked(time.Now()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRecordSuccess(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	r := repositories.NewUserRepository(mock)

	mock.ExpectExec("UPDATE users SET").
		WithArgs("user-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err = r.RecordSuccess(context.Background(), "user-1")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserCreateConflict(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	r := repositories.NewUserRepository(mock)

	mock.ExpectQuery("INSERT INTO users").
		WithArgs(pgxmock.AnyArg(), "dup@example.com", "$2a$12$hash", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err = r.Create(context.Background(), &models.User{
		Email:        "dup@example.com",
		PasswordHash: "$2a$12$hash",
	})
	assert.ErrorIs(t, err, models.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}
