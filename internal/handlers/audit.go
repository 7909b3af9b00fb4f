package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/palisade-auth/palisade/internal/middleware"
	"github.com/palisade-auth/palisade/internal/models"
	pkghttp "github.com/palisade-auth/palisade/pkg/http"
)

// AuditServiceInterface defines the interface for reading audit events
type AuditServiceInterface interface {
	ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*models.AuditEvent, error)
	ListByOwnerAndType(ctx context.Context, ownerID uuid.UUID, eventType string, limit, offset int) ([]*models.AuditEvent, error)
}

// AuditHandler exposes an owner's own security event history
type AuditHandler struct {
	service AuditServiceInterface
}

// NewAuditHandler creates a new AuditHandler
func NewAuditHandler(service AuditServiceInterface) *AuditHandler {
	return &AuditHandler{service: service}
}

// AuditEventResponse represents one audit event in HTTP responses
type AuditEventResponse struct {
	ID        string              `json:"id"`
	EventType string              `json:"event_type"`
	IPAddress string              `json:"ip_address,omitempty"`
	UserAgent string              `json:"user_agent,omitempty"`
	Success   bool                `json:"success"`
	Details   models.AuditDetails `json:"details,omitempty"`
	CreatedAt string              `json:"created_at"`
}

// List returns the authenticated owner's audit trail, newest first. An
// optional type query parameter narrows the trail to one event type.
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	sc := middleware.SessionFromContext(r)
	if sc == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	ownerID, err := uuid.Parse(sc.OwnerID)
	if err != nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	limit, offset := paginationParams(r, 50)

	var events []*models.AuditEvent
	if eventType := r.URL.Query().Get("type"); eventType != "" {
		events, err = h.service.ListByOwnerAndType(r.Context(), ownerID, eventType, limit, offset)
	} else {
		events, err = h.service.ListByOwner(r.Context(), ownerID, limit, offset)
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := make([]*AuditEventResponse, 0, len(events))
	for _, event := range events {
		resp = append(resp, &AuditEventResponse{
			ID:        event.ID.String(),
			EventType: event.EventType,
			IPAddress: event.IPAddress,
			UserAgent: event.UserAgent,
			Success:   event.Success,
			Details:   event.Details,
			CreatedAt: event.CreatedAt.Format(time.RFC3339),
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"events": resp})
}
