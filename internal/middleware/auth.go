package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/fdcollector/fdc/internal/auth"
	"github.com/fdcollector/fdc/internal/model"
	"github.com/fdcollector/fdc/internal/service"
)

// Resolver turns a bearer credential into the acting identity.
type Resolver interface {
	Resolve(ctx context.Context, cred auth.Credential) (*model.AuthContext, error)
}

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	Logger   *slog.Logger
	Resolver Resolver
}

// Auth authenticates the bearer credential of every request and injects
// the identity into the request context. Failed API keys and missing
// credentials get 401; invalid sessions get 403.
func Auth(cfg AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cred := auth.ParseCredential(auth.BearerToken(r.Header.Get("Authorization")))

			identity, err := cfg.Resolver.Resolve(r.Context(), cred)
			if err != nil {
				status, code, message := authFailure(err)
				attrs := []any{
					slog.String("reason", message),
					slog.String("ip", r.RemoteAddr),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				}
				if status == http.StatusInternalServerError {
					cfg.Logger.Error("authentication error", append(attrs, slog.String("error", err.Error()))...)
				} else {
					cfg.Logger.Warn("authentication failed", attrs...)
				}
				writeError(w, status, code, message)
				return
			}

			recordIdentity(r, identity)
			ctx := auth.ContextWithAuth(r.Context(), identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func authFailure(err error) (status int, code, message string) {
	var svcErr *service.Error
	if !errors.As(err, &svcErr) {
		return http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error"
	}
	if errors.Is(err, service.ErrForbidden) {
		return http.StatusForbidden, "FORBIDDEN", svcErr.Message
	}
	return http.StatusUnauthorized, "UNAUTHORIZED", svcErr.Message
}
