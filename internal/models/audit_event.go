package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types for audit logging
const (
	AuditEventLogin          = "login"
	AuditEventLogout         = "logout"
	AuditEventLogoutAll      = "logout_all"
	AuditEventRegister       = "register"
	AuditEventRefresh        = "token_refresh"
	AuditEventPasswordChange = "password_change"
	AuditEventPasswordReset  = "password_reset"
	AuditEventAccountLocked  = "account_locked"
	AuditEventAccountDeleted = "account_deleted"
	AuditEventSecretIssued   = "secret_issued"
	AuditEventSecretRevoked  = "secret_revoked"
)

// AuditEvent is one immutable security event. OwnerID is nil for events that
// precede identity resolution (e.g. a login attempt against an unknown email).
type AuditEvent struct {
	ID        uuid.UUID
	OwnerID   *uuid.UUID
	EventType string
	IPAddress string
	UserAgent string
	Success   bool
	Details   AuditDetails
	CreatedAt time.Time
}

// AuditDetails holds additional structured context for audit events.
type AuditDetails map[string]interface{}

// Scan implements sql.Scanner for JSONB
func (d *AuditDetails) Scan(value interface{}) error {
	if value == nil {
		*d = make(AuditDetails)
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return ErrBadRequest
	}

	var m map[string]interface{}
	if err := json.Unmarshal(bytes, &m); err != nil {
		return err
	}
	*d = AuditDetails(m)
	return nil
}

// Value implements driver.Valuer for JSONB
func (d AuditDetails) Value() (driver.Value, error) {
	if d == nil {
		return nil, nil
	}
	return json.Marshal(d)
}

// MarshalJSON implements json.Marshaler
func (d AuditDetails) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]interface{}(d))
}

// UnmarshalJSON implements json.Unmarshaler
func (d *AuditDetails) UnmarshalJSON(data []byte) error {
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*d = AuditDetails(m)
	return nil
}
