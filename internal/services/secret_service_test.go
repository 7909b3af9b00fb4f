package services_test

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palisade-auth/palisade/internal/crypto"
	"github.com/palisade-auth/palisade/internal/models"
	"github.com/palisade-auth/palisade/internal/services"
	pkglogger "github.com/palisade-auth/palisade/pkg/logger"
)

// Low KDF cost keeps the tests fast; the iteration count is behavior under
// test only in the crypto package.
const secretTestIterations = 1000

func newSecretService(t *testing.T, store *services.MockSecretStore) *services.SecretService {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	manager, err := crypto.NewManager("secret-service-test-master-key", secretTestIterations)
	require.NoError(t, err)
	audit := services.NewAuditService(&services.MockAuditLogStore{}, pkglogger.NewAuditLogger(logger), logger)
	return services.NewSecretService(store, manager, audit, logger)
}

func TestSecretServiceIssue(t *testing.T) {
	var stored *models.Secret
	store := &services.MockSecretStore{
		CreateFunc: func(ctx context.Context, secret *models.Secret) (*models.Secret, error) {
			created := *secret
			created.ID = "secret-1"
			created.Active = true
			stored = &created
			return &created, nil
		},
	}
	service := newSecretService(t, store)

	issued, err := service.Issue(context.Background(), "owner-1", "deploy key", services.RequestMeta{IPAddress: "10.0.0.1"})

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(issued.PlainKey, "plsd_"))
	assert.Equal(t, issued.PlainKey[:12], issued.Preview)

	// Only ciphertext and preview reach storage, never the plaintext.
	require.NotNil(t, stored)
	assert.NotContains(t, stored.Ciphertext, issued.PlainKey)
	assert.NotEmpty(t, stored.Salt)
	assert.NotEmpty(t, stored.AuthTag)
	assert.Equal(t, issued.Preview, stored.Preview)
}

func TestSecretServiceIssue_RequiresName(t *testing.T) {
	service := newSecretService(t, &services.MockSecretStore{})

	_, err := service.Issue(context.Background(), "owner-1", "", services.RequestMeta{})

	var verr *models.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestSecretServiceVerifyKey(t *testing.T) {
	ctx := context.Background()

	// Issue through one service instance, verify through another sharing the
	// same store, as separate processes would.
	var stored *models.Secret
	store := &services.MockSecretStore{
		CreateFunc: func(ctx context.Context, secret *models.Secret) (*models.Secret, error) {
			created := *secret
			created.ID = "secret-1"
			created.Active = true
			stored = &created
			return &created, nil
		},
		FindActiveByPreviewFunc: func(ctx context.Context, preview string) ([]*models.Secret, error) {
			if stored != nil && stored.Preview == preview {
				return []*models.Secret{stored}, nil
			}
			return []*models.Secret{}, nil
		},
	}
	service := newSecretService(t, store)

	issued, err := service.Issue(ctx, "owner-1", "deploy key", services.RequestMeta{})
	require.NoError(t, err)

	t.Run("correct key verifies", func(t *testing.T) {
		secret, err := service.VerifyKey(ctx, issued.PlainKey)
		require.NoError(t, err)
		assert.Equal(t, "secret-1", secret.ID)
		assert.Equal(t, "owner-1", secret.OwnerID)
	})

	t.Run("wrong key with same shape is unauthorized", func(t *testing.T) {
		wrong := "plsd_" + strings.Repeat("0", 64)
		_, err := service.VerifyKey(ctx, wrong)
		assert.ErrorIs(t, err, models.ErrUnauthorized)
	})

	t.Run("malformed key is unauthorized", func(t *testing.T) {
		_, err := service.VerifyKey(ctx, "not-an-api-key")
		assert.ErrorIs(t, err, models.ErrUnauthorized)
	})
}

func TestSecretServiceRevoke(t *testing.T) {
	ctx := context.Background()

	t.Run("owner can revoke", func(t *testing.T) {
		revoked := false
		store := &services.MockSecretStore{
			GetByIDFunc: func(ctx context.Context, id string) (*models.Secret, error) {
				return &models.Secret{ID: id, OwnerID: "owner-1", Active: true}, nil
			},
			RevokeFunc: func(ctx context.Context, id string) error {
				revoked = true
				return nil
			},
		}
		service := newSecretService(t, store)

		err := service.Revoke(ctx, "owner-1", "secret-1", services.RequestMeta{})
		require.NoError(t, err)
		assert.True(t, revoked)
	})

	t.Run("another owner's secret looks nonexistent", func(t *testing.T) {
		store := &services.MockSecretStore{
			GetByIDFunc: func(ctx context.Context, id string) (*models.Secret, error) {
				return &models.Secret{ID: id, OwnerID: "owner-2", Active: true}, nil
			},
		}
		service := newSecretService(t, store)

		err := service.Revoke(ctx, "owner-1", "secret-1", services.RequestMeta{})
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("unknown secret is not found", func(t *testing.T) {
		service := newSecretService(t, &services.MockSecretStore{})

		err := service.Revoke(ctx, "owner-1", "missing", services.RequestMeta{})
		assert.ErrorIs(t, err, models.ErrNotFound)
	})
}
