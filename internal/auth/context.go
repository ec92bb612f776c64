package auth

import (
	"context"

	"github.com/fdcollector/fdc/internal/model"
)

type identityKey struct{}

// ContextWithAuth attaches the acting identity to ctx.
func ContextWithAuth(ctx context.Context, identity *model.AuthContext) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// AuthFromContext returns the acting identity, or nil for anonymous
// requests.
func AuthFromContext(ctx context.Context) *model.AuthContext {
	identity, _ := ctx.Value(identityKey{}).(*model.AuthContext)
	return identity
}

// UserIDFromContext returns the acting user. Sessions and API keys both
// resolve to the user that owns them.
func UserIDFromContext(ctx context.Context) string {
	if identity := AuthFromContext(ctx); identity != nil {
		return identity.UserID
	}
	return ""
}
