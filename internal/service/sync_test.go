package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fdcollector/fdc/internal/metrics"
	"github.com/fdcollector/fdc/internal/model"
	"github.com/fdcollector/fdc/internal/testutil"
	"github.com/fdcollector/fdc/internal/wordpress"
)

const bulkPayload = `[
	{"form_id": 7, "form_name": "Contact", "form_plugin": "gravity-forms", "external_id": 101,
	 "submission_data": {"Name": "Jane"}, "submitted_at": "2024-03-01 10:00:00"},
	{"form_id": "7", "form_name": "Contact", "form_plugin": "gravity-forms", "external_id": "102",
	 "submission_data": {"Name": "John"}},
	{"form_id": "9", "form_plugin": "contact-form-7"},
	"not an object"
]`

type syncFixture struct {
	store    *testutil.MemoryStore
	svc      *SyncService
	recorder *metrics.InMemoryRecorder
	clientID string
	key      string
}

func newSyncFixture(t *testing.T, handler http.Handler, timeout time.Duration) *syncFixture {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	store := testutil.NewMemoryStore()
	sealer := testSealer(t)
	clientID, key := seedClient(t, store, sealer, server.URL)
	recorder := metrics.NewInMemory()

	svc := NewSyncService(SyncServiceConfig{
		Store:     store,
		WordPress: wordpress.NewClient(timeout),
		Sealer:    sealer,
		Logger:    quietLogger(),
		Metrics:   recorder,
	})
	return &syncFixture{store: store, svc: svc, recorder: recorder, clientID: clientID, key: key}
}

func TestSyncService_SyncClientIsIdempotent(t *testing.T) {
	var gotAuth string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != wordpress.BulkSyncPath {
			http.NotFound(w, r)
			return
		}
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(bulkPayload))
	})
	fx := newSyncFixture(t, handler, time.Second)
	ctx := context.Background()

	first, err := fx.svc.SyncClient(ctx, fx.clientID)
	if err != nil {
		t.Fatalf("SyncClient: %v", err)
	}
	if gotAuth != "Bearer "+fx.key {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if first.Total != 4 || first.Succeeded != 2 || first.Skipped != 2 || first.Refreshed != 0 {
		t.Fatalf("first run = %+v", first)
	}
	if len(first.Errors) != 2 || first.Errors[0].Index != 2 || first.Errors[1].Index != 3 {
		t.Errorf("first run errors = %+v", first.Errors)
	}

	second, err := fx.svc.SyncClient(ctx, fx.clientID)
	if err != nil {
		t.Fatalf("second SyncClient: %v", err)
	}
	if second.Succeeded != 0 || second.Skipped != 4 || second.Refreshed != 2 {
		t.Fatalf("second run = %+v", second)
	}

	if got := fx.store.SubmissionCount(); got != 2 {
		t.Errorf("submissions = %d, want 2", got)
	}

	form, err := fx.store.GetFormByKey(ctx, model.FormKey{ClientID: fx.clientID, ExternalFormID: "7", Plugin: "gravity-forms"})
	if err != nil {
		t.Fatalf("form not registered: %v", err)
	}
	subs, _ := fx.store.ListSubmissionsByForm(ctx, form.ID, model.SubmissionFilter{})
	for _, sub := range subs {
		if sub.ExternalID != nil && *sub.ExternalID == "101" {
			want := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
			if !sub.SubmittedAt.Equal(want) {
				t.Errorf("submitted_at = %v, want %v", sub.SubmittedAt, want)
			}
		}
	}

	snap := fx.recorder.Snapshot()
	if snap.BulkSyncSuccess != 2 || snap.SubmissionsIngestedBulk != 2 || snap.SubmissionsRefreshed != 2 {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestSyncService_UpstreamFailures(t *testing.T) {
	tests := []struct {
		name     string
		handler  http.HandlerFunc
		wantKind error
		wantMsg  string
	}{
		{
			name: "error status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
			},
			wantKind: ErrUpstreamFailure,
			wantMsg:  "WordPress returned 401 Unauthorized",
		},
		{
			name: "timeout",
			handler: func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-r.Context().Done():
				case <-time.After(2 * time.Second):
				}
			},
			wantKind: ErrUpstreamTimeout,
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("<html>"))
			},
			wantKind: ErrUpstreamFailure,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			fx := newSyncFixture(t, test.handler, 100*time.Millisecond)

			_, err := fx.svc.SyncClient(context.Background(), fx.clientID)
			if !errors.Is(err, test.wantKind) {
				t.Fatalf("err = %v, want kind %v", err, test.wantKind)
			}
			if test.wantMsg != "" && err.Error() != test.wantMsg {
				t.Errorf("message = %q, want %q", err.Error(), test.wantMsg)
			}
			if fx.recorder.Snapshot().BulkSyncFailed != 1 {
				t.Error("failed run not recorded")
			}
		})
	}
}

func TestSyncService_SyncClientPreconditions(t *testing.T) {
	ctx := context.Background()
	fx := newSyncFixture(t, http.NotFoundHandler(), time.Second)

	if _, err := fx.svc.SyncClient(ctx, "missing"); !errors.Is(err, ErrClientNotFound) {
		t.Errorf("unknown client err = %v, want ErrClientNotFound", err)
	}

	key, err := fx.store.GetActiveClientKey(ctx, fx.clientID)
	if err != nil {
		t.Fatalf("GetActiveClientKey: %v", err)
	}
	if err := fx.store.DeactivateAPIKey(ctx, key.ID, key.UserID); err != nil {
		t.Fatalf("DeactivateAPIKey: %v", err)
	}
	if _, err := fx.svc.SyncClient(ctx, fx.clientID); !errors.Is(err, ErrNoActiveClientKey) {
		t.Errorf("no key err = %v, want ErrNoActiveClientKey", err)
	}
}

func TestSyncService_EntryFailureKeepsEarlierEntries(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[
			{"form_id": "1", "form_plugin": "gf", "external_id": "a", "submission_data": {}},
			{"form_id": "1", "form_plugin": "gf", "external_id": "b", "submitted_at": "garbage"}
		]`))
	})
	fx := newSyncFixture(t, handler, time.Second)

	result, err := fx.svc.SyncClient(context.Background(), fx.clientID)
	if err != nil {
		t.Fatalf("SyncClient: %v", err)
	}
	if result.Succeeded != 1 || result.Skipped != 1 || result.Errors[0].Reason != "invalid submitted_at" {
		t.Fatalf("result = %+v", result)
	}
	if fx.store.SubmissionCount() != 1 {
		t.Errorf("submissions = %d, want 1", fx.store.SubmissionCount())
	}
}

func TestSyncService_EpochTimestampsAndUndecodableEntries(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[
			{"form_id": "1", "form_plugin": "gf", "external_id": "a", "submitted_at": 1709287200000},
			{"form_id": "1", "form_plugin": "gf", "external_id": {"id": "b"}}
		]`))
	})
	fx := newSyncFixture(t, handler, time.Second)
	ctx := context.Background()

	result, err := fx.svc.SyncClient(ctx, fx.clientID)
	if err != nil {
		t.Fatalf("SyncClient: %v", err)
	}
	if result.Succeeded != 1 || result.Skipped != 1 {
		t.Fatalf("result = %+v", result)
	}
	if reason := result.Errors[0].Reason; !strings.HasPrefix(reason, "invalid entry: ") {
		t.Errorf("skip reason = %q, want the decode error", reason)
	}

	form, err := fx.store.GetFormByKey(ctx, model.FormKey{ClientID: fx.clientID, ExternalFormID: "1", Plugin: "gf"})
	if err != nil {
		t.Fatalf("form not registered: %v", err)
	}
	subs, _ := fx.store.ListSubmissionsByForm(ctx, form.ID, model.SubmissionFilter{})
	want := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	if len(subs) != 1 || !subs[0].SubmittedAt.Equal(want) {
		t.Errorf("submissions = %+v, want one submitted at %v", subs, want)
	}
}

func TestSyncService_Discover(t *testing.T) {
	var gfAuthUser string
	mux := http.NewServeMux()
	mux.HandleFunc(wordpress.GravityFormsPath, func(w http.ResponseWriter, r *http.Request) {
		gfAuthUser, _, _ = r.BasicAuth()
		_, _ = w.Write([]byte(`[{"id": 3, "title": "Newsletter", "fields": [{"id": 1, "label": "Email"}]}]`))
	})
	mux.HandleFunc(wordpress.ContactForm7FormPath, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	ctx := context.Background()
	store := testutil.NewMemoryStore()
	sealer := testSealer(t)
	created, err := NewClientService(store, sealer).Create(ctx, CreateClientInput{
		Name:              "Acme",
		WordPressURL:      server.URL,
		WordPressUsername: "admin",
		WordPressPassword: "secret",
		CreatedBy:         "user-1",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	forms := NewFormService(store, store, quietLogger(), nil)
	if _, err := forms.Sync(ctx, clientIdentity(created.ClientID), []FormInput{{ExternalFormID: "3", Name: "Pushed name", Plugin: model.PluginGravityForms}}); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	svc := NewSyncService(SyncServiceConfig{
		Store:     store,
		WordPress: wordpress.NewClient(time.Second),
		Sealer:    sealer,
		Logger:    quietLogger(),
	})
	result, err := svc.Discover(ctx, created.ClientID)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if gfAuthUser != "admin" {
		t.Errorf("basic auth user = %q", gfAuthUser)
	}
	if result.Discovered != 1 || len(result.Forms) != 1 {
		t.Fatalf("result = %+v", result)
	}

	form := result.Forms[0]
	if form.Name != "Pushed name" {
		t.Errorf("Name = %q, discovery must not overwrite the pushed name", form.Name)
	}
	if string(form.Schema) != `[{"id": 1, "label": "Email"}]` {
		t.Errorf("Schema = %s", form.Schema)
	}

	if _, err := svc.Discover(ctx, "missing"); !errors.Is(err, ErrClientNotFound) {
		t.Errorf("unknown client err = %v", err)
	}
}
