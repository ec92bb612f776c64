package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/nacl/secretbox"
)

const sealerNonceLen = 24

// ErrUnsealFailed indicates a sealed value was tampered with or was sealed
// under another key.
var ErrUnsealFailed = errors.New("unseal failed")

// Sealer encrypts secrets the server must read back later: connector keys
// used for outbound bulk sync and WordPress application passwords.
type Sealer struct {
	key [32]byte
}

// NewSealer creates a Sealer from a base64 encoded 32-byte key.
func NewSealer(encodedKey string) (*Sealer, error) {
	raw, err := base64.StdEncoding.DecodeString(encodedKey)
	if err != nil {
		return nil, fmt.Errorf("decode credentials key: %w", err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("credentials key must be 32 bytes, got %d", len(raw))
	}

	s := &Sealer{}
	copy(s.key[:], raw)
	return s, nil
}

// Seal encrypts plaintext. The nonce is prepended to the output.
func (s *Sealer) Seal(plaintext []byte) ([]byte, error) {
	var nonce [sealerNonceLen]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return secretbox.Seal(nonce[:], plaintext, &nonce, &s.key), nil
}

// Open decrypts a value produced by Seal.
func (s *Sealer) Open(sealed []byte) ([]byte, error) {
	if len(sealed) < sealerNonceLen+secretbox.Overhead {
		return nil, ErrUnsealFailed
	}

	var nonce [sealerNonceLen]byte
	copy(nonce[:], sealed[:sealerNonceLen])

	plaintext, ok := secretbox.Open(nil, sealed[sealerNonceLen:], &nonce, &s.key)
	if !ok {
		return nil, ErrUnsealFailed
	}
	return plaintext, nil
}
