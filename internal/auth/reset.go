package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ResetClaims are the claims carried by a password-reset token.
type ResetClaims struct {
	Type   string `json:"type"`
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// ResetTokenManager mints and validates short-lived password-reset tokens.
// Tokens are signed with the master secret combined with the user's current
// password hash, so completing a reset invalidates any outstanding token for
// that account without server-side state.
type ResetTokenManager struct {
	secret string
	ttl    time.Duration
}

// NewResetTokenManager creates a new ResetTokenManager.
func NewResetTokenManager(secret string, ttl time.Duration) *ResetTokenManager {
	return &ResetTokenManager{secret: secret, ttl: ttl}
}

// TTL returns the configured token lifetime.
func (m *ResetTokenManager) TTL() time.Duration {
	return m.ttl
}

func (m *ResetTokenManager) signingKey(passwordHash string) []byte {
	return []byte(m.secret + passwordHash)
}

// Generate creates a reset token bound to the user's current password hash.
func (m *ResetTokenManager) Generate(userID, passwordHash string) (string, error) {
	now := time.Now()
	claims := &ResetClaims{
		Type:   "password_reset",
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.signingKey(passwordHash))
	if err != nil {
		return "", fmt.Errorf("failed to sign reset token: %w", err)
	}
	return signed, nil
}

// ParseUnverified extracts the user ID from a reset token without verifying
// the signature. The caller must load that user's password hash and then call
// Verify; the two-step dance exists because the signing key depends on the
// hash the token was minted against.
func (m *ResetTokenManager) ParseUnverified(tokenString string) (string, error) {
	claims := &ResetClaims{}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{"HS256"}))
	_, _, err := parser.ParseUnverified(tokenString, claims)
	if err != nil {
		return "", fmt.Errorf("failed to parse reset token: %w", err)
	}
	if claims.Type != "password_reset" || claims.UserID == "" {
		return "", fmt.Errorf("invalid reset token claims")
	}
	return claims.UserID, nil
}

// Verify checks the token signature and expiry against the user's current
// password hash.
func (m *ResetTokenManager) Verify(tokenString, passwordHash string) (*ResetClaims, error) {
	claims := &ResetClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.signingKey(passwordHash), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to verify reset token: %w", err)
	}
	if !token.Valid || claims.Type != "password_reset" {
		return nil, fmt.Errorf("invalid reset token")
	}
	return claims, nil
}
