package server

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/fdcollector/fdc/internal/auth"
	"github.com/fdcollector/fdc/internal/cache"
	"github.com/fdcollector/fdc/internal/metrics"
	"github.com/fdcollector/fdc/internal/middleware"
	"github.com/fdcollector/fdc/internal/service"
	"github.com/fdcollector/fdc/internal/testutil"
	"github.com/fdcollector/fdc/internal/wordpress"
)

const signupCode = "e2e-invite"

type apiFixture struct {
	server   *httptest.Server
	store    *testutil.MemoryStore
	recorder *metrics.InMemoryRecorder
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = redisClient.Close() })
	cacheClient := cache.NewWithClient(redisClient)

	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(255 - i)
	}
	sealer, err := auth.NewSealer(base64.StdEncoding.EncodeToString(key))
	if err != nil {
		t.Fatalf("NewSealer: %v", err)
	}
	sessions, err := auth.NewSessionManager("e2e-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewSessionManager: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := testutil.NewMemoryStore()
	recorder := metrics.NewInMemory()

	router := NewRouter(RouterConfig{
		Logger: logger,
		Services: Services{
			Resolver: service.NewResolver(store, sessions, recorder),
			Accounts: service.NewAccountService(store, sessions, signupCode),
			Clients:  service.NewClientService(store, sealer),
			APIKeys:  service.NewAPIKeyService(store, sealer),
			Forms:    service.NewFormService(store, store, logger, recorder),
			Sync: service.NewSyncService(service.SyncServiceConfig{
				Store:     store,
				WordPress: wordpress.NewClient(time.Second),
				Sealer:    sealer,
				Logger:    logger,
				Metrics:   recorder,
			}),
			Stats: service.NewStatsService(store, store),
		},
		Cache:              cacheClient,
		Metrics:            recorder,
		DB:                 store,
		Redis:              cacheClient,
		IsDevelopment:      true,
		CORSAllowedOrigins: []string{"https://dashboard.agency.test"},
		MaxRequestBodySize: 64 << 10,
		RateLimit: middleware.RateLimitConfig{
			APIEnabled:  true,
			APIRPM:      600,
			APIBurst:    100,
			LoginLimit:  3,
			LoginWindow: 15 * time.Minute,
		},
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &apiFixture{server: srv, store: store, recorder: recorder}
}

// call sends a JSON request with an optional bearer token and decodes the
// response body into out when out is non-nil.
func (fx *apiFixture) call(t *testing.T, method, path, token string, body any, out any) int {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, fx.server.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := fx.server.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("%s %s: decode: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func (fx *apiFixture) signup(t *testing.T) string {
	t.Helper()
	var session struct {
		Token string `json:"token"`
	}
	status := fx.call(t, http.MethodPost, "/api/auth/signup", "", map[string]string{
		"email":       "ops@agency.test",
		"password":    "correct horse",
		"invite_code": signupCode,
	}, &session)
	if status != http.StatusOK || session.Token == "" {
		t.Fatalf("signup: status %d", status)
	}
	return session.Token
}

func TestRouter_EndToEndIngestion(t *testing.T) {
	fx := newAPIFixture(t)
	token := fx.signup(t)

	var client struct {
		ClientID string `json:"client_id"`
		APIKey   string `json:"api_key"`
	}
	if status := fx.call(t, http.MethodPost, "/api/clients", token, map[string]string{
		"name":          "Acme",
		"wordpress_url": "https://acme.example",
	}, &client); status != http.StatusCreated {
		t.Fatalf("create client: status %d", status)
	}

	var synced struct {
		Success bool `json:"success"`
		Synced  int  `json:"synced"`
	}
	if status := fx.call(t, http.MethodPost, "/api/forms/sync", client.APIKey,
		`[{"form_id": "7", "form_name": "Contact", "form_plugin": "gravity-forms"}]`, &synced); status != http.StatusOK {
		t.Fatalf("sync forms: status %d", status)
	}
	if !synced.Success || synced.Synced != 1 {
		t.Fatalf("sync forms = %+v", synced)
	}

	if status := fx.call(t, http.MethodPost, "/api/forms/submissions", client.APIKey, map[string]any{
		"form_id":         "7",
		"form_plugin":     "gravity-forms",
		"submission_data": map[string]string{"Name": "Jane Doe", "Email": "j@x.com"},
	}, nil); status != http.StatusCreated {
		t.Fatalf("ingest: status %d", status)
	}

	var forms []struct {
		ID string `json:"id"`
	}
	if status := fx.call(t, http.MethodGet, "/api/forms/client/"+client.ClientID, token, nil, &forms); status != http.StatusOK {
		t.Fatalf("list forms: status %d", status)
	}
	if len(forms) != 1 {
		t.Fatalf("expected 1 form, got %d", len(forms))
	}

	var subs []struct {
		Data map[string]string `json:"submission_data"`
	}
	if status := fx.call(t, http.MethodGet, "/api/forms/"+forms[0].ID+"/submissions", token, nil, &subs); status != http.StatusOK {
		t.Fatalf("list submissions: status %d", status)
	}
	if len(subs) != 1 || subs[0].Data["Name"] != "Jane Doe" || subs[0].Data["Email"] != "j@x.com" {
		t.Fatalf("unexpected submissions: %+v", subs)
	}

	var stats struct {
		TotalSubmissions int64 `json:"totalSubmissions"`
	}
	fx.call(t, http.MethodGet, "/api/stats", token, nil, &stats)
	if stats.TotalSubmissions != 1 {
		t.Errorf("totalSubmissions = %d, want 1", stats.TotalSubmissions)
	}

	if snap := fx.recorder.Snapshot(); snap.FormsSynced != 1 || snap.SubmissionsIngestedSingle != 1 {
		t.Errorf("metrics snapshot = %+v", snap)
	}
}

func TestRouter_AccessControl(t *testing.T) {
	fx := newAPIFixture(t)
	token := fx.signup(t)

	var client struct {
		ClientID string `json:"client_id"`
		APIKey   string `json:"api_key"`
	}
	fx.call(t, http.MethodPost, "/api/clients", token, map[string]string{
		"name":          "Acme",
		"wordpress_url": "https://acme.example",
	}, &client)

	var unscoped struct {
		Key string `json:"api_key"`
	}
	fx.call(t, http.MethodPost, "/api/api-keys/generate", token, map[string]string{"key_name": "reports"}, &unscoped)

	badKey := "fdc_" + strings.Repeat("0", 64)
	formsBody := `[{"form_id": "1", "form_name": "A", "form_plugin": "gf"}]`

	testCases := []struct {
		name       string
		method     string
		path       string
		token      string
		body       any
		wantStatus int
	}{
		{"no credentials", http.MethodGet, "/api/clients", "", nil, http.StatusUnauthorized},
		{"unknown API key", http.MethodGet, "/api/clients", badKey, nil, http.StatusUnauthorized},
		{"forged session", http.MethodGet, "/api/clients", "not.a.jwt", nil, http.StatusForbidden},
		{"API key on dashboard route", http.MethodGet, "/api/clients", client.APIKey, nil, http.StatusForbidden},
		{"session on connector route", http.MethodPost, "/api/forms/sync", token, formsBody, http.StatusUnauthorized},
		{"unscoped key on connector route", http.MethodPost, "/api/forms/sync", unscoped.Key, formsBody, http.StatusUnauthorized},
		{"malformed client id", http.MethodGet, "/api/clients/not-a-ulid", token, nil, http.StatusNotFound},
		{"malformed form id", http.MethodDelete, "/api/forms/1234", token, nil, http.StatusNotFound},
		{"unknown route", http.MethodGet, "/api/nope", token, nil, http.StatusNotFound},
		{"session on dashboard route", http.MethodGet, "/api/clients/" + client.ClientID, token, nil, http.StatusOK},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if status := fx.call(t, tc.method, tc.path, tc.token, tc.body, nil); status != tc.wantStatus {
				t.Errorf("status = %d, want %d", status, tc.wantStatus)
			}
		})
	}
}

func TestRouter_DeactivatedKeyIsRejectedImmediately(t *testing.T) {
	fx := newAPIFixture(t)
	token := fx.signup(t)

	var client struct {
		ClientID string `json:"client_id"`
		APIKey   string `json:"api_key"`
	}
	fx.call(t, http.MethodPost, "/api/clients", token, map[string]string{
		"name":          "Acme",
		"wordpress_url": "https://acme.example",
	}, &client)

	formsBody := `[{"form_id": "1", "form_name": "A", "form_plugin": "gf"}]`
	if status := fx.call(t, http.MethodPost, "/api/forms/sync", client.APIKey, formsBody, nil); status != http.StatusOK {
		t.Fatalf("sync before deactivation: status %d", status)
	}

	var keys []struct {
		ID       string  `json:"id"`
		ClientID *string `json:"client_id"`
	}
	fx.call(t, http.MethodGet, "/api/api-keys", token, nil, &keys)
	if len(keys) != 1 {
		t.Fatalf("expected the connector key in the listing, got %d keys", len(keys))
	}
	if status := fx.call(t, http.MethodDelete, "/api/api-keys/"+keys[0].ID, token, nil, nil); status != http.StatusOK {
		t.Fatalf("deactivate: status %d", status)
	}

	if status := fx.call(t, http.MethodPost, "/api/forms/sync", client.APIKey, formsBody, nil); status != http.StatusUnauthorized {
		t.Errorf("sync after deactivation: status = %d, want 401", status)
	}
}

func TestRouter_LoginRateLimit(t *testing.T) {
	fx := newAPIFixture(t)
	fx.signup(t)

	creds := map[string]string{"email": "ops@agency.test", "password": "wrong"}
	for i := 0; i < 3; i++ {
		if status := fx.call(t, http.MethodPost, "/api/auth/login", "", creds, nil); status != http.StatusUnauthorized {
			t.Fatalf("attempt %d: status %d", i+1, status)
		}
	}

	var body struct {
		Code string `json:"code"`
	}
	if status := fx.call(t, http.MethodPost, "/api/auth/login", "", creds, &body); status != http.StatusTooManyRequests {
		t.Fatalf("fourth attempt: status = %d, want 429", status)
	}
	if body.Code != "RATE_LIMITED" {
		t.Errorf("code = %q", body.Code)
	}
	if fx.recorder.Snapshot().LoginRateLimited != 1 {
		t.Error("rejection not counted")
	}
}

func TestRouter_LoginRateLimitIgnoresForwardingHeaders(t *testing.T) {
	fx := newAPIFixture(t)
	fx.signup(t)

	var statuses []int
	for i := 0; i < 5; i++ {
		req, err := http.NewRequest(http.MethodPost, fx.server.URL+"/api/auth/login",
			strings.NewReader(`{"email":"ops@agency.test","password":"wrong"}`))
		if err != nil {
			t.Fatalf("new request: %v", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("198.51.100.%d", i+1))
		req.Header.Set("X-Real-IP", fmt.Sprintf("198.51.100.%d", i+1))

		resp, err := fx.server.Client().Do(req)
		if err != nil {
			t.Fatalf("attempt %d: %v", i+1, err)
		}
		resp.Body.Close()
		statuses = append(statuses, resp.StatusCode)
	}

	want := []int{401, 401, 401, 429, 429}
	for i := range want {
		if statuses[i] != want[i] {
			t.Fatalf("statuses = %v, want %v", statuses, want)
		}
	}
}

func TestRouter_ProbesAndMetrics(t *testing.T) {
	fx := newAPIFixture(t)

	if status := fx.call(t, http.MethodGet, "/healthz", "", nil, nil); status != http.StatusOK {
		t.Errorf("healthz: status %d", status)
	}

	var ready struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	if status := fx.call(t, http.MethodGet, "/readyz", "", nil, &ready); status != http.StatusOK {
		t.Errorf("readyz: status %d (%+v)", status, ready)
	}
	if ready.Checks["postgres"] != "ok" || ready.Checks["redis"] != "ok" {
		t.Errorf("readyz checks = %v", ready.Checks)
	}

	resp, err := fx.server.Client().Get(fx.server.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(raw), "fdc_forms_synced_total 0") {
		t.Errorf("unexpected metrics body:\n%s", raw)
	}
}

func TestRouter_CORSPreflight(t *testing.T) {
	fx := newAPIFixture(t)

	req, _ := http.NewRequest(http.MethodOptions, fx.server.URL+"/api/clients", nil)
	req.Header.Set("Origin", "https://dashboard.agency.test")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	resp, err := fx.server.Client().Do(req)
	if err != nil {
		t.Fatalf("preflight: %v", err)
	}
	defer resp.Body.Close()

	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "https://dashboard.agency.test" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
	if resp.Header.Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers missing")
	}
}
