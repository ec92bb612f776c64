package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"
)

// ValidateIDs rejects requests whose named URL parameters are not ULIDs.
// Every entity id is a ULID, so a malformed id cannot exist and gets the
// same 404 as an unknown one, with the message given per parameter.
func ValidateIDs(notFound map[string]string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for param, message := range notFound {
				value := chi.URLParam(r, param)
				if value == "" {
					continue
				}
				if !IsID(value) {
					writeError(w, http.StatusNotFound, "NOT_FOUND", message)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// IsID reports whether s is a canonical ULID.
func IsID(s string) bool {
	if len(s) != ulid.EncodedSize {
		return false
	}
	_, err := ulid.ParseStrict(s)
	return err == nil
}
