// Package crypto provides authenticated encryption for secrets at rest.
//
// Each encrypt call derives a fresh AES-256 key from the master key and a
// per-record salt via PBKDF2-SHA-256, then seals the plaintext with AES-GCM.
// The derivation cost is deliberate defense in depth: a leaked record salt
// plus ciphertext still forces an attacker through the full KDF per record.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"

	"github.com/palisade-auth/palisade/internal/models"
)

const (
	// KeySize is the size of the derived AES-256 key (32 bytes).
	KeySize = 32

	// SaltSize is the per-record salt length for key derivation.
	SaltSize = 32

	// NonceSize is the AES-GCM nonce/IV length (12 bytes / 96 bits).
	NonceSize = 12

	// TagSize is the GCM authentication tag length.
	TagSize = 16

	// DefaultIterations is the PBKDF2-SHA-256 iteration count.
	// OWASP recommends 600,000+ for adequate brute-force resistance.
	DefaultIterations = 600_000

	// FingerprintLen is the number of hex characters of SHA-256(master key)
	// stored alongside each record so rotated keys are detected on decrypt.
	FingerprintLen = 16
)

var (
	// ErrDecryptionFailed indicates a wrong key or tampered ciphertext.
	ErrDecryptionFailed = errors.New("decryption failed: authentication tag mismatch")

	// ErrMalformedRecord indicates a record with invalid hex fields or sizes.
	ErrMalformedRecord = errors.New("malformed encrypted record")
)

// EncryptedRecord is the persisted form of one encrypted value. All fields
// are hex-encoded.
type EncryptedRecord struct {
	Ciphertext     string
	Salt           string
	IV             string
	AuthTag        string
	KeyFingerprint string
}

// Manager performs authenticated encryption under one injected master key.
// The key is mandatory startup configuration; a Manager is never constructed
// with a synthesized fallback key.
type Manager struct {
	masterKey   []byte
	iterations  int
	fingerprint string
}

// NewManager creates a Manager for the given master key.
func NewManager(masterKey string, iterations int) (*Manager, error) {
	if masterKey == "" {
		return nil, errors.New("master key is required")
	}
	if iterations <= 0 {
		iterations = DefaultIterations
	}

	sum := sha256.Sum256([]byte(masterKey))
	return &Manager{
		masterKey:   []byte(masterKey),
		iterations:  iterations,
		fingerprint: hex.EncodeToString(sum[:])[:FingerprintLen],
	}, nil
}

// Fingerprint returns the identifier of the active master key.
func (m *Manager) Fingerprint() string {
	return m.fingerprint
}

func (m *Manager) deriveKey(salt []byte) []byte {
	return pbkdf2.Key(m.masterKey, salt, m.iterations, KeySize, sha256.New)
}

// Encrypt seals data under a key derived from the master key and a fresh
// random salt. The returned record carries everything needed for a later
// decrypt except the master key itself.
func (m *Manager) Encrypt(plaintext []byte) (*EncryptedRecord, error) {
	salt := make([]byte, SaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	key := m.deriveKey(salt)
	defer zeroBytes(key)

	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	sealed := aead.Seal(nil, nonce, plaintext, nil)
	// Seal appends the tag to the ciphertext; split them for storage.
	ciphertext := sealed[:len(sealed)-TagSize]
	tag := sealed[len(sealed)-TagSize:]

	return &EncryptedRecord{
		Ciphertext:     hex.EncodeToString(ciphertext),
		Salt:           hex.EncodeToString(salt),
		IV:             hex.EncodeToString(nonce),
		AuthTag:        hex.EncodeToString(tag),
		KeyFingerprint: m.fingerprint,
	}, nil
}

// Decrypt opens a record produced by Encrypt. A record written under a
// different master key fails with models.ErrKeyMismatch before any
// cryptographic work happens; tampering or a corrupted record fails with
// ErrDecryptionFailed, never with silently corrupted plaintext.
func (m *Manager) Decrypt(record *EncryptedRecord) ([]byte, error) {
	if record.KeyFingerprint != m.fingerprint {
		return nil, models.ErrKeyMismatch
	}

	salt, err := hex.DecodeString(record.Salt)
	if err != nil || len(salt) != SaltSize {
		return nil, ErrMalformedRecord
	}
	nonce, err := hex.DecodeString(record.IV)
	if err != nil || len(nonce) != NonceSize {
		return nil, ErrMalformedRecord
	}
	ciphertext, err := hex.DecodeString(record.Ciphertext)
	if err != nil {
		return nil, ErrMalformedRecord
	}
	tag, err := hex.DecodeString(record.AuthTag)
	if err != nil || len(tag) != TagSize {
		return nil, ErrMalformedRecord
	}

	key := m.deriveKey(salt)
	defer zeroBytes(key)

	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	plaintext, err := aead.Open(nil, nonce, append(ciphertext, tag...), nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}

	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM cipher: %w", err)
	}
	return aead, nil
}

// zeroBytes clears derived key material to limit exposure in crash dumps.
func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
