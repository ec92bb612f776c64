package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/fdcollector/fdc/internal/auth"
	"github.com/fdcollector/fdc/internal/metrics"
	"github.com/fdcollector/fdc/internal/model"
	"github.com/fdcollector/fdc/internal/repository"
)

// APIKeyLookup finds keys by digest.
type APIKeyLookup interface {
	GetAPIKeyByHash(ctx context.Context, hash string) (*model.APIKey, error)
}

// Resolver turns a bearer credential into the acting identity. It has no
// side effects: last-used timestamps are not touched.
type Resolver struct {
	keys     APIKeyLookup
	sessions *auth.SessionManager
	metrics  metrics.Recorder
}

// NewResolver creates a Resolver.
func NewResolver(keys APIKeyLookup, sessions *auth.SessionManager, recorder metrics.Recorder) *Resolver {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Resolver{keys: keys, sessions: sessions, metrics: recorder}
}

// Resolve dispatches on the credential kind.
//
// API keys must be well formed, known and active, else ErrInvalidAPIKey
// (401). Session tokens that fail verification yield ErrInvalidSession
// (403). A nil credential yields ErrMissingCredentials (401).
func (r *Resolver) Resolve(ctx context.Context, cred auth.Credential) (*model.AuthContext, error) {
	switch c := cred.(type) {
	case auth.APIKeyCredential:
		return r.resolveAPIKey(ctx, c.Key)
	case auth.SessionCredential:
		return r.resolveSession(c.Token)
	default:
		r.metrics.IncAuthFailure("missing")
		return nil, ErrMissingCredentials
	}
}

func (r *Resolver) resolveAPIKey(ctx context.Context, key string) (*model.AuthContext, error) {
	if err := auth.ValidateKeyFormat(key); err != nil {
		r.metrics.IncAuthFailure("api_key")
		return nil, ErrInvalidAPIKey
	}

	stored, err := r.keys.GetAPIKeyByHash(ctx, auth.HashAPIKey(key))
	if err != nil {
		if errors.Is(err, repository.ErrAPIKeyNotFound) {
			r.metrics.IncAuthFailure("api_key")
			return nil, ErrInvalidAPIKey
		}
		return nil, fmt.Errorf("lookup API key: %w", err)
	}
	if !stored.IsActive {
		r.metrics.IncAuthFailure("api_key")
		return nil, ErrInvalidAPIKey
	}

	authCtx := &model.AuthContext{
		Kind:   model.CredentialAPIKey,
		UserID: stored.UserID,
		KeyID:  stored.ID,
	}
	if stored.ClientID != nil {
		authCtx.ClientID = *stored.ClientID
	}
	return authCtx, nil
}

func (r *Resolver) resolveSession(token string) (*model.AuthContext, error) {
	claims, err := r.sessions.Verify(token)
	if err != nil {
		r.metrics.IncAuthFailure("session")
		return nil, ErrInvalidSession
	}

	return &model.AuthContext{
		Kind:   model.CredentialSession,
		UserID: claims.UserID(),
		Email:  claims.Email,
	}, nil
}
