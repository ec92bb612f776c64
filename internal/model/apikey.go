package model

import "time"

// CredentialKind tags how a caller authenticated.
type CredentialKind string

// Credential kinds.
const (
	CredentialAPIKey  CredentialKind = "api_key"
	CredentialSession CredentialKind = "session"
)

// APIKey represents an API key entity.
type APIKey struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	ClientID   *string    `json:"client_id,omitempty"`
	Name       string     `json:"key_name"`
	KeyPrefix  string     `json:"key_prefix"`
	KeyHash    string     `json:"-"` // Never serialize
	KeySealed  []byte     `json:"-"`
	IsActive   bool       `json:"is_active"`
	LastUsedAt *time.Time `json:"last_used,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// AuthContext holds the acting identity of an authenticated request.
// This is injected into the request context by auth middleware.
type AuthContext struct {
	Kind     CredentialKind
	UserID   string
	ClientID string // Empty for sessions and unscoped keys
	Email    string // Set for sessions only
	KeyID    string // Set for API keys only
}

// HasClient reports whether the identity is scoped to a client.
func (a *AuthContext) HasClient() bool {
	return a != nil && a.ClientID != ""
}

// IsSession reports whether the identity came from a session token.
func (a *AuthContext) IsSession() bool {
	return a != nil && a.Kind == CredentialSession
}

// APIKeyResponse represents an API key without secrets.
type APIKeyResponse struct {
	ID         string     `json:"id"`
	Name       string     `json:"key_name"`
	KeyPrefix  string     `json:"key_prefix"`
	ClientID   *string    `json:"client_id,omitempty"`
	IsActive   bool       `json:"is_active"`
	LastUsedAt *time.Time `json:"last_used,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// ToResponse converts an APIKey to APIKeyResponse.
func (k *APIKey) ToResponse() APIKeyResponse {
	return APIKeyResponse{
		ID:         k.ID,
		Name:       k.Name,
		KeyPrefix:  k.KeyPrefix,
		ClientID:   k.ClientID,
		IsActive:   k.IsActive,
		LastUsedAt: k.LastUsedAt,
		CreatedAt:  k.CreatedAt,
	}
}

// APIKeyCreateResponse includes the plaintext key (shown only once).
type APIKeyCreateResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"key_name"`
	Key       string    `json:"api_key"` // Plaintext - display once only!
	KeyPrefix string    `json:"key_prefix"`
	CreatedAt time.Time `json:"created_at"`
}
