package handler

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fdcollector/fdc/internal/auth"
	"github.com/fdcollector/fdc/internal/metrics"
	"github.com/fdcollector/fdc/internal/model"
	"github.com/fdcollector/fdc/internal/service"
	"github.com/fdcollector/fdc/internal/testutil"
	"github.com/fdcollector/fdc/internal/wordpress"
)

const testSignupCode = "let-me-in"

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newBufferLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, nil))
}

// fixture wires every handler over one in-memory store.
type fixture struct {
	store    *testutil.MemoryStore
	recorder *metrics.InMemoryRecorder

	accounts *AccountHandler
	clients  *ClientHandler
	keys     *APIKeyHandler
	forms    *FormHandler
	sync     *SyncHandler
	stats    *StatsHandler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(2 * i)
	}
	sealer, err := auth.NewSealer(base64.StdEncoding.EncodeToString(key))
	if err != nil {
		t.Fatalf("NewSealer: %v", err)
	}
	sessions, err := auth.NewSessionManager("handler-test-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewSessionManager: %v", err)
	}

	store := testutil.NewMemoryStore()
	recorder := metrics.NewInMemory()
	logger := quietLogger()

	syncSvc := service.NewSyncService(service.SyncServiceConfig{
		Store:     store,
		WordPress: wordpress.NewClient(time.Second),
		Sealer:    sealer,
		Logger:    logger,
		Metrics:   recorder,
	})

	return &fixture{
		store:    store,
		recorder: recorder,
		accounts: NewAccountHandler(service.NewAccountService(store, sessions, testSignupCode), logger),
		clients:  NewClientHandler(service.NewClientService(store, sealer), logger),
		keys:     NewAPIKeyHandler(service.NewAPIKeyService(store, sealer), logger),
		forms:    NewFormHandler(service.NewFormService(store, store, logger, recorder), logger),
		sync:     NewSyncHandler(syncSvc, logger),
		stats:    NewStatsHandler(service.NewStatsService(store, store), logger),
	}
}

// createClient creates a client as user-1 and returns the create response.
func (fx *fixture) createClient(t *testing.T, name, siteURL string) model.ClientCreateResponse {
	t.Helper()
	req := newRequest(t, http.MethodPost, "/api/clients", map[string]string{
		"name":          name,
		"wordpress_url": siteURL,
	})
	rec := httptest.NewRecorder()
	fx.clients.Create(rec, withIdentity(req, sessionIdentity()))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create client: status %d body %s", rec.Code, rec.Body.String())
	}
	var created model.ClientCreateResponse
	decodeBody(t, rec, &created)
	return created
}

func newRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func withIdentity(r *http.Request, identity *model.AuthContext) *http.Request {
	return r.WithContext(auth.ContextWithAuth(r.Context(), identity))
}

func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		rctx = chi.NewRouteContext()
		r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
	}
	rctx.URLParams.Add(key, value)
	return r
}

func sessionIdentity() *model.AuthContext {
	return &model.AuthContext{Kind: model.CredentialSession, UserID: "user-1", Email: "ops@agency.test"}
}

func connectorIdentity(clientID string) *model.AuthContext {
	return &model.AuthContext{Kind: model.CredentialAPIKey, UserID: "user-1", ClientID: clientID, KeyID: "key-1"}
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(dst); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var body errorResponse
	decodeBody(t, rec, &body)
	return body
}

type errorResponse struct {
	Error    string   `json:"error"`
	Code     string   `json:"code"`
	Hint     string   `json:"hint"`
	Required []string `json:"required"`
}
