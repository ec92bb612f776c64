package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/fdcollector/fdc/internal/model"
)

// statusRecorder captures the status code written by the handler.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (rw *statusRecorder) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}
	rw.status = code
	rw.wroteHeader = true
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

// identityHolder lets Logger see the identity that Auth resolves further
// down the chain.
type identityHolder struct {
	identity *model.AuthContext
}

const identityHolderKey contextKey = "identity_holder"

func withIdentityHolder(ctx context.Context, holder *identityHolder) context.Context {
	return context.WithValue(ctx, identityHolderKey, holder)
}

// Logger logs one line per request. Credentials are never logged; the
// resolved identity is logged by id.
func Logger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			holder := &identityHolder{}

			next.ServeHTTP(rec, r.WithContext(withIdentityHolder(r.Context(), holder)))

			attrs := []slog.Attr{
				slog.String("request_id", GetRequestID(r.Context())),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status_code", rec.status),
				slog.Float64("duration_ms", float64(time.Since(start).Microseconds())/1000),
				slog.String("remote_addr", r.RemoteAddr),
				slog.String("user_agent", r.UserAgent()),
			}
			if id := holder.identity; id != nil {
				attrs = append(attrs,
					slog.String("auth_kind", string(id.Kind)),
					slog.String("user_id", id.UserID),
				)
				if id.ClientID != "" {
					attrs = append(attrs, slog.String("client_id", id.ClientID))
				}
			}

			level := slog.LevelInfo
			switch {
			case rec.status >= 500:
				level = slog.LevelError
			case rec.status >= 400:
				level = slog.LevelWarn
			}
			logger.LogAttrs(r.Context(), level, "http request", attrs...)
		})
	}
}

// recordIdentity stores the identity for the request log line, if Logger
// is in the chain.
func recordIdentity(r *http.Request, identity *model.AuthContext) {
	if holder, ok := r.Context().Value(identityHolderKey).(*identityHolder); ok {
		holder.identity = identity
	}
}
