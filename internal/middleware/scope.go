package middleware

import (
	"net/http"

	"github.com/fdcollector/fdc/internal/auth"
	"github.com/fdcollector/fdc/internal/service"
)

// RequireSession admits only dashboard users. Must be applied after Auth.
func RequireSession() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := auth.AuthFromContext(r.Context())
			if identity == nil {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", service.ErrMissingCredentials.Message)
				return
			}
			if !identity.IsSession() {
				writeError(w, http.StatusForbidden, "FORBIDDEN", service.ErrSessionRequired.Message)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireClient admits only identities scoped to a client, which in
// practice means a client's connector key. Must be applied after Auth.
func RequireClient() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !auth.AuthFromContext(r.Context()).HasClient() {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", service.ErrMissingClientContext.Message)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
