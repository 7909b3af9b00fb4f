package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/palisade-auth/palisade/internal/database"
	"github.com/palisade-auth/palisade/internal/models"
)

// SecretRepository stores encrypted long-lived secrets. Revocation is a soft
// delete; ciphertext is never purged so the forensic trail stays intact.
type SecretRepository struct {
	db DBTX
}

func NewSecretRepository(db DBTX) *SecretRepository {
	return &SecretRepository{db: db}
}

const secretColumns = `id, owner_id, name, secret_type, ciphertext, salt, iv, auth_tag,
		key_fingerprint, preview, active, revoked_at, created_at`

func scanSecretRow(scanner rowScanner) (*models.Secret, error) {
	var s models.Secret
	var revokedAt *time.Time

	err := scanner.Scan(
		&s.ID, &s.OwnerID, &s.Name, &s.SecretType, &s.Ciphertext, &s.Salt,
		&s.IV, &s.AuthTag, &s.KeyFingerprint, &s.Preview, &s.Active,
		&revokedAt, &s.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	s.RevokedAt = revokedAt
	return &s, nil
}

func scanSecretRows(rows pgx.Rows) ([]*models.Secret, error) {
	defer rows.Close()

	secrets := make([]*models.Secret, 0)
	for rows.Next() {
		secret, err := scanSecretRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan secret: %w", err)
		}
		secrets = append(secrets, secret)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating secret rows: %w", err)
	}

	return secrets, nil
}

// Create persists a new encrypted secret.
func (r *SecretRepository) Create(ctx context.Context, secret *models.Secret) (*models.Secret, error) {
	secret.ID = uuid.New().String()

	query := `
		INSERT INTO secrets (id, owner_id, name, secret_type, ciphertext, salt, iv, auth_tag,
			key_fingerprint, preview, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, true, now())
		RETURNING ` + secretColumns

	return scanSecretRow(r.db.QueryRow(ctx, query,
		secret.ID, secret.OwnerID, secret.Name, secret.SecretType,
		secret.Ciphertext, secret.Salt, secret.IV, secret.AuthTag,
		secret.KeyFingerprint, secret.Preview,
	))
}

// GetByID retrieves one secret regardless of active state.
func (r *SecretRepository) GetByID(ctx context.Context, id string) (*models.Secret, error) {
	query := `SELECT ` + secretColumns + ` FROM secrets WHERE id = $1`
	return scanSecretRow(r.db.QueryRow(ctx, query, id))
}

// ListByOwner returns all secrets for an owner, newest first.
func (r *SecretRepository) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]*models.Secret, error) {
	query := `
		SELECT ` + secretColumns + `
		FROM secrets
		WHERE owner_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Query(ctx, query, ownerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query secrets: %w", err)
	}

	return scanSecretRows(rows)
}

// FindActiveByPreview returns active secrets sharing a preview. The preview
// narrows the candidate set for key verification; the caller decrypts and
// compares in constant time.
func (r *SecretRepository) FindActiveByPreview(ctx context.Context, preview string) ([]*models.Secret, error) {
	query := `SELECT ` + secretColumns + ` FROM secrets WHERE preview = $1 AND active`

	rows, err := r.db.Query(ctx, query, preview)
	if err != nil {
		return nil, fmt.Errorf("failed to query secrets by preview: %w", err)
	}

	return scanSecretRows(rows)
}

// Revoke soft-deletes a secret. The encrypted record is retained.
func (r *SecretRepository) Revoke(ctx context.Context, id string) error {
	query := `UPDATE secrets SET active = false, revoked_at = now() WHERE id = $1 AND active`

	result, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}
