package services_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palisade-auth/palisade/internal/models"
	"github.com/palisade-auth/palisade/internal/services"
	pkglogger "github.com/palisade-auth/palisade/pkg/logger"
)

func newAuditService(store *services.MockAuditLogStore) *services.AuditService {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	return services.NewAuditService(store, pkglogger.NewAuditLogger(logger), logger)
}

func TestAuditServiceRecord_Appends(t *testing.T) {
	store := &services.MockAuditLogStore{}
	service := newAuditService(store)

	service.Record(context.Background(), &models.AuditEvent{
		EventType: models.AuditEventLogin,
		IPAddress: "10.0.0.1",
		Success:   true,
	})

	require.Len(t, store.Appended, 1)
	assert.Equal(t, models.AuditEventLogin, store.Appended[0].EventType)
	assert.Zero(t, service.Dropped())
}

func TestAuditServiceRecord_StoreFailureNeverPropagates(t *testing.T) {
	store := &services.MockAuditLogStore{
		AppendFunc: func(ctx context.Context, event *models.AuditEvent) (*models.AuditEvent, error) {
			return nil, errors.New("disk full")
		},
	}
	service := newAuditService(store)

	// Record returns nothing; the only observable effects are the fallback
	// log line and the dropped counter.
	service.Record(context.Background(), &models.AuditEvent{
		EventType: models.AuditEventLogin,
		Success:   false,
	})
	service.Record(context.Background(), &models.AuditEvent{
		EventType: models.AuditEventLogout,
		Success:   true,
	})

	assert.Equal(t, int64(2), service.Dropped())
}
