package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/palisade-auth/palisade/internal/database"
	"github.com/palisade-auth/palisade/internal/models"
)

type UserRepository struct {
	db DBTX
}

func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, email, password_hash, failed_attempts, locked_until, last_login, created_at, updated_at`

// scanUserRow handles nullable fields and populates a User model from a database row
func scanUserRow(scanner rowScanner) (*models.User, error) {
	var user models.User
	var lockedUntil, lastLogin *time.Time

	err := scanner.Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.FailedAttempts,
		&lockedUntil, &lastLogin,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	user.LockedUntil = lockedUntil
	user.LastLogin = lastLogin

	return &user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUserRow(r.db.QueryRow(ctx, query, id))
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUserRow(r.db.QueryRow(ctx, query, email))
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	user.ID = uuid.New().String()

	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	query := `
		INSERT INTO users (id, email, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + userColumns

	return scanUserRow(r.db.QueryRow(ctx, query,
		user.ID, user.Email, user.PasswordHash, user.CreatedAt, user.UpdatedAt,
	))
}

// UpdatePassword stores a new password hash and stamps updated_at.
func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	query := `UPDATE users SET password_hash = $1, updated_at = now() WHERE id = $2`

	result, err := r.db.Exec(ctx, query, passwordHash, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// RecordFailure increments the failed-attempt counter and, when the new
// count reaches the threshold, opens a lockout window. Increment, compare,
// and lock happen in one statement so concurrent failures cannot race past
// the threshold.
func (r *UserRepository) RecordFailure(ctx context.Context, id string, threshold int, lockout time.Duration) (*models.User, error) {
	query := `
		UPDATE users SET
			failed_attempts = failed_attempts + 1,
			locked_until = CASE
				WHEN failed_attempts + 1 >= $2 THEN now() + make_interval(secs => $3)
				ELSE locked_until
			END,
			updated_at = now()
		WHERE id = $1
		RETURNING ` + userColumns

	return scanUserRow(r.db.QueryRow(ctx, query, id, threshold, lockout.Seconds()))
}

// RecordSuccess resets the failure counter, clears any lockout, and stamps
// last_login.
func (r *UserRepository) RecordSuccess(ctx context.Context, id string) error {
	query := `
		UPDATE users SET
			failed_attempts = 0,
			locked_until = NULL,
			last_login = now(),
			updated_at = now()
		WHERE id = $1
	`

	result, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// ClearLockout zeroes the failure counter and lockout window. Called lazily
// when a check observes an elapsed lock.
func (r *UserRepository) ClearLockout(ctx context.Context, id string) error {
	query := `
		UPDATE users SET failed_attempts = 0, locked_until = NULL, updated_at = now()
		WHERE id = $1
	`

	_, err := r.db.Exec(ctx, query, id)
	return database.MapPostgresError(err)
}

// Delete removes a credential record and, through the schema's cascades, its
// sessions and secrets.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM users WHERE id = $1`

	result, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}
