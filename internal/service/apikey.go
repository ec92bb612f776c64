package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fdcollector/fdc/internal/auth"
	"github.com/fdcollector/fdc/internal/model"
	"github.com/fdcollector/fdc/internal/repository"
)

// APIKeyService manages user-owned API keys.
type APIKeyService struct {
	keys   APIKeyStore
	sealer *auth.Sealer
	now    func() time.Time
}

// NewAPIKeyService creates a new APIKeyService.
func NewAPIKeyService(keys APIKeyStore, sealer *auth.Sealer) *APIKeyService {
	return &APIKeyService{keys: keys, sealer: sealer, now: time.Now}
}

// Generate issues a key for the user that is not scoped to any client.
// The plaintext is returned once and never again.
func (s *APIKeyService) Generate(ctx context.Context, userID, name string) (*model.APIKeyCreateResponse, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrKeyNameRequired
	}

	key, plaintext, err := newKeyRecord(s.sealer, userID, nil, name, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.keys.CreateAPIKey(ctx, key); err != nil {
		return nil, fmt.Errorf("create API key: %w", err)
	}

	return &model.APIKeyCreateResponse{
		ID:        key.ID,
		Name:      key.Name,
		Key:       plaintext,
		KeyPrefix: key.KeyPrefix,
		CreatedAt: key.CreatedAt,
	}, nil
}

// List returns the user's keys without secrets.
func (s *APIKeyService) List(ctx context.Context, userID string) ([]model.APIKeyResponse, error) {
	keys, err := s.keys.ListAPIKeysByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list API keys: %w", err)
	}

	out := make([]model.APIKeyResponse, 0, len(keys))
	for _, k := range keys {
		out = append(out, k.ToResponse())
	}
	return out, nil
}

// Deactivate disables one of the user's keys. Deactivation is immediate:
// the next request using the key is rejected.
func (s *APIKeyService) Deactivate(ctx context.Context, userID, keyID string) error {
	if err := s.keys.DeactivateAPIKey(ctx, keyID, userID); err != nil {
		if errors.Is(err, repository.ErrAPIKeyNotFound) {
			return ErrAPIKeyNotFound
		}
		return fmt.Errorf("deactivate API key: %w", err)
	}
	return nil
}

// newKeyRecord generates a key and builds its stored form: digest for
// lookup, sealed plaintext for outbound calls.
func newKeyRecord(sealer *auth.Sealer, userID string, clientID *string, name string, now time.Time) (*model.APIKey, string, error) {
	generated, err := auth.GenerateAPIKey()
	if err != nil {
		return nil, "", fmt.Errorf("generate API key: %w", err)
	}

	sealed, err := sealer.Seal([]byte(generated.Plaintext))
	if err != nil {
		return nil, "", fmt.Errorf("seal API key: %w", err)
	}

	return &model.APIKey{
		ID:        newID(),
		UserID:    userID,
		ClientID:  clientID,
		Name:      name,
		KeyPrefix: generated.Prefix,
		KeyHash:   generated.Hash,
		KeySealed: sealed,
		IsActive:  true,
		CreatedAt: now.UTC(),
	}, generated.Plaintext, nil
}
