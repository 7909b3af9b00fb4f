package models

import "time"

// Secret types
const (
	SecretTypeAPIKey = "api_key"
)

// Secret is an encrypted long-lived credential (e.g. an API key). Only the
// preview and ciphertext are persisted; the plaintext is returned exactly once
// at issuance. Revoked secrets are soft-deleted and kept for audit purposes.
type Secret struct {
	ID             string
	OwnerID        string
	Name           string
	SecretType     string
	Ciphertext     string // hex
	Salt           string // hex
	IV             string // hex
	AuthTag        string // hex
	KeyFingerprint string
	Preview        string // first characters of the plaintext, non-reversible
	Active         bool
	RevokedAt      *time.Time
	CreatedAt      time.Time
}

// IssuedSecret is the response when creating a new secret (includes plaintext).
type IssuedSecret struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Preview  string `json:"preview"`
	PlainKey string `json:"key"` // Shown ONLY once at creation
}
