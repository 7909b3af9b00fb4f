package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

const (
	// TokenBytes is the entropy of session and refresh tokens (256 bits).
	TokenBytes = 32

	// APIKeyPrefix marks issued API keys: plsd_<64 hex chars>
	APIKeyPrefix = "plsd_"

	// APIKeyPreviewLen is the number of leading characters persisted for display.
	APIKeyPreviewLen = 12
)

// GenerateToken returns a high-entropy opaque token as 64 hex characters.
// Used for session and refresh tokens.
func GenerateToken() (string, error) {
	bytes := make([]byte, TokenBytes)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}

// GenerateAPIKey generates a new API key in the format plsd_<64 hex chars>.
// The plaintext is shown once to the caller; only a preview and the
// encrypted form are persisted.
func GenerateAPIKey() (string, error) {
	bytes := make([]byte, TokenBytes)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate api key: %w", err)
	}
	return APIKeyPrefix + hex.EncodeToString(bytes), nil
}

// ValidateAPIKeyFormat checks the structural shape of a presented key before
// any storage lookup happens.
func ValidateAPIKeyFormat(plainKey string) error {
	if !strings.HasPrefix(plainKey, APIKeyPrefix) {
		return errors.New("invalid API key format: missing prefix")
	}
	if len(plainKey) != len(APIKeyPrefix)+2*TokenBytes {
		return fmt.Errorf("invalid API key format: expected %d chars, got %d", len(APIKeyPrefix)+2*TokenBytes, len(plainKey))
	}
	return nil
}

// KeyPreview returns the leading characters of a key for display.
func KeyPreview(plainKey string) string {
	if len(plainKey) < APIKeyPreviewLen {
		return plainKey
	}
	return plainKey[:APIKeyPreviewLen]
}

// ConstantTimeCompare compares two equal-purpose strings without leaking
// position information through timing.
func ConstantTimeCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
