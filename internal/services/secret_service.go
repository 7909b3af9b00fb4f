package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/palisade-auth/palisade/internal/auth"
	"github.com/palisade-auth/palisade/internal/crypto"
	"github.com/palisade-auth/palisade/internal/models"
)

// SecretStore defines the interface for encrypted secret persistence
type SecretStore interface {
	Create(ctx context.Context, secret *models.Secret) (*models.Secret, error)
	GetByID(ctx context.Context, id string) (*models.Secret, error)
	ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]*models.Secret, error)
	FindActiveByPreview(ctx context.Context, preview string) ([]*models.Secret, error)
	Revoke(ctx context.Context, id string) error
}

// SecretService issues and verifies API keys. The plaintext key is returned
// exactly once at issuance; afterwards only the preview and the encrypted
// record exist. Verification looks up candidates by preview, decrypts, and
// compares in constant time.
type SecretService struct {
	store  SecretStore
	crypto *crypto.Manager
	audit  *AuditService
	logger *slog.Logger
}

// NewSecretService creates a new SecretService
func NewSecretService(store SecretStore, cryptoManager *crypto.Manager, audit *AuditService, logger *slog.Logger) *SecretService {
	return &SecretService{
		store:  store,
		crypto: cryptoManager,
		audit:  audit,
		logger: logger,
	}
}

// Issue generates a new API key for an owner, encrypts it under the active
// master key, and returns the plaintext once.
func (s *SecretService) Issue(ctx context.Context, ownerID, name string, meta RequestMeta) (*models.IssuedSecret, error) {
	if name == "" {
		return nil, &models.ValidationError{Field: "name", Message: "is required"}
	}

	plainKey, err := auth.GenerateAPIKey()
	if err != nil {
		s.logger.Error("failed to generate api key", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	record, err := s.crypto.Encrypt([]byte(plainKey))
	if err != nil {
		s.logger.Error("failed to encrypt api key", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	secret, err := s.store.Create(ctx, &models.Secret{
		OwnerID:        ownerID,
		Name:           name,
		SecretType:     models.SecretTypeAPIKey,
		Ciphertext:     record.Ciphertext,
		Salt:           record.Salt,
		IV:             record.IV,
		AuthTag:        record.AuthTag,
		KeyFingerprint: record.KeyFingerprint,
		Preview:        auth.KeyPreview(plainKey),
	})
	if err != nil {
		s.logger.Error("failed to store api key", slog.String("owner_id", ownerID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("api key issued",
		slog.String("owner_id", ownerID),
		slog.String("secret_id", secret.ID))
	s.audit.Record(ctx, &models.AuditEvent{
		OwnerID:   ownerRef(ownerID),
		EventType: models.AuditEventSecretIssued,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		Success:   true,
		Details:   models.AuditDetails{"secret_id": secret.ID, "name": name},
	})

	return &models.IssuedSecret{
		ID:       secret.ID,
		Name:     secret.Name,
		Preview:  secret.Preview,
		PlainKey: plainKey,
	}, nil
}

// List returns an owner's secrets. Plaintext is never recoverable here; the
// response carries previews only.
func (s *SecretService) List(ctx context.Context, ownerID string, limit, offset int) ([]*models.Secret, error) {
	secrets, err := s.store.ListByOwner(ctx, ownerID, limit, offset)
	if err != nil {
		s.logger.Error("failed to list secrets", slog.String("owner_id", ownerID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return secrets, nil
}

// Revoke soft-deletes one of the owner's secrets. Revoking someone else's
// secret fails with ErrNotFound rather than ErrForbidden so secret IDs are
// not enumerable across owners.
func (s *SecretService) Revoke(ctx context.Context, ownerID, secretID string, meta RequestMeta) error {
	secret, err := s.store.GetByID(ctx, secretID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.Error("failed to load secret", slog.String("secret_id", secretID), slog.Any("error", err))
		return models.ErrInternalServer
	}
	if secret.OwnerID != ownerID {
		return models.ErrNotFound
	}

	if err := s.store.Revoke(ctx, secretID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			// Already revoked.
			return models.ErrNotFound
		}
		s.logger.Error("failed to revoke secret", slog.String("secret_id", secretID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.logger.Info("api key revoked",
		slog.String("owner_id", ownerID),
		slog.String("secret_id", secretID))
	s.audit.Record(ctx, &models.AuditEvent{
		OwnerID:   ownerRef(ownerID),
		EventType: models.AuditEventSecretRevoked,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		Success:   true,
		Details:   models.AuditDetails{"secret_id": secretID},
	})
	return nil
}

// VerifyKey authenticates a presented API key. The preview narrows the
// candidate set before any KDF work happens; the final comparison is
// constant-time against the decrypted plaintext. Records written under a
// rotated master key are skipped with a warning rather than failing the
// whole lookup.
func (s *SecretService) VerifyKey(ctx context.Context, plainKey string) (*models.Secret, error) {
	if err := auth.ValidateAPIKeyFormat(plainKey); err != nil {
		return nil, models.ErrUnauthorized
	}

	candidates, err := s.store.FindActiveByPreview(ctx, auth.KeyPreview(plainKey))
	if err != nil {
		s.logger.Error("failed to look up api key candidates", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	for _, candidate := range candidates {
		plaintext, err := s.crypto.Decrypt(&crypto.EncryptedRecord{
			Ciphertext:     candidate.Ciphertext,
			Salt:           candidate.Salt,
			IV:             candidate.IV,
			AuthTag:        candidate.AuthTag,
			KeyFingerprint: candidate.KeyFingerprint,
		})
		if err != nil {
			if errors.Is(err, models.ErrKeyMismatch) {
				s.logger.Warn("api key encrypted under rotated master key",
					slog.String("secret_id", candidate.ID),
					slog.String("record_fingerprint", candidate.KeyFingerprint))
				continue
			}
			s.logger.Error("failed to decrypt api key candidate",
				slog.String("secret_id", candidate.ID),
				slog.Any("error", err))
			continue
		}

		if auth.ConstantTimeCompare(string(plaintext), plainKey) {
			return candidate, nil
		}
	}

	return nil, models.ErrUnauthorized
}
