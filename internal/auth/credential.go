package auth

import "strings"

// Credential is a bearer credential classified by kind.
// It is either APIKeyCredential or SessionCredential.
type Credential interface {
	credential()
}

// APIKeyCredential is a bearer value carrying the API key prefix.
type APIKeyCredential struct {
	Key string
}

// SessionCredential is any other bearer value, treated as a session token.
type SessionCredential struct {
	Token string
}

func (APIKeyCredential) credential()  {}
func (SessionCredential) credential() {}

// ParseCredential classifies a raw bearer value. It returns nil for an
// empty value.
func ParseCredential(raw string) Credential {
	raw = strings.TrimSpace(raw)
	switch {
	case raw == "":
		return nil
	case HasAPIKeyPrefix(raw):
		return APIKeyCredential{Key: raw}
	default:
		return SessionCredential{Token: raw}
	}
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) string {
	const scheme = "Bearer "
	if len(header) < len(scheme) || !strings.EqualFold(header[:len(scheme)], scheme) {
		return ""
	}
	return strings.TrimSpace(header[len(scheme):])
}
