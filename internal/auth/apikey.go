package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Key format: fdc_{64 hex chars}
// Example: fdc_4f8d2e1b9c7a5f3d2e1b9c7a5f3d2e1b4f8d2e1b9c7a5f3d2e1b9c7a5f3d2e1b
const (
	// APIKeyPrefix marks a bearer credential as an API key.
	APIKeyPrefix = "fdc_"
	// apiKeySecretBytes is the random part length before hex encoding.
	apiKeySecretBytes = 32
	// displayPrefixLen is how much of the key is kept for listing.
	displayPrefixLen = len(APIKeyPrefix) + 8
)

var (
	// ErrInvalidKeyFormat indicates the key format is invalid.
	ErrInvalidKeyFormat = errors.New("invalid API key format")

	keyFormatRegex = regexp.MustCompile(`^fdc_[a-f0-9]{64}$`)
)

// GeneratedKey contains the parts of a newly generated API key.
type GeneratedKey struct {
	Plaintext string // Full key (show once only)
	Hash      string // SHA-256 hex digest for lookup
	Prefix    string // Visible prefix for listings
}

// GenerateAPIKey creates a new random API key.
func GenerateAPIKey() (*GeneratedKey, error) {
	secret := make([]byte, apiKeySecretBytes)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("generate secret: %w", err)
	}

	plaintext := APIKeyPrefix + hex.EncodeToString(secret)

	return &GeneratedKey{
		Plaintext: plaintext,
		Hash:      HashAPIKey(plaintext),
		Prefix:    plaintext[:displayPrefixLen],
	}, nil
}

// HashAPIKey returns the lookup digest of a plaintext key.
// Keys carry 256 bits of entropy, so an unsalted digest is sufficient and
// keeps lookups to a single indexed equality match.
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// HasAPIKeyPrefix reports whether a bearer credential claims to be an API key.
func HasAPIKeyPrefix(credential string) bool {
	return strings.HasPrefix(credential, APIKeyPrefix)
}

// ValidateKeyFormat checks if the key matches the expected format.
func ValidateKeyFormat(key string) error {
	if !keyFormatRegex.MatchString(key) {
		return ErrInvalidKeyFormat
	}
	return nil
}
