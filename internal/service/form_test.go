package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/fdcollector/fdc/internal/metrics"
	"github.com/fdcollector/fdc/internal/model"
	"github.com/fdcollector/fdc/internal/testutil"
)

func TestFormService_SyncIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewMemoryStore()
	clientID, _ := seedClient(t, store, testSealer(t), "https://acme.example")
	recorder := metrics.NewInMemory()
	svc := NewFormService(store, store, quietLogger(), recorder)
	identity := clientIdentity(clientID)

	input := []FormInput{
		{ExternalFormID: "7", Name: "Contact", Plugin: "gravity-forms", Schema: json.RawMessage(`[{"id":1}]`)},
		{ExternalFormID: "12", Name: "Quote", Plugin: "contact-form-7"},
	}

	for run := 1; run <= 2; run++ {
		result, err := svc.Sync(ctx, identity, input)
		if err != nil {
			t.Fatalf("run %d: Sync: %v", run, err)
		}
		if result.ClientID != clientID || result.Processed != 2 || result.Succeeded != 2 || result.Skipped != 0 {
			t.Fatalf("run %d: result = %+v", run, result)
		}
	}

	forms, err := svc.ListByClient(ctx, clientID)
	if err != nil {
		t.Fatalf("ListByClient: %v", err)
	}
	if len(forms) != 2 {
		t.Fatalf("forms = %d, want 2", len(forms))
	}

	input[0].Name = "Contact us"
	if _, err := svc.Sync(ctx, identity, input[:1]); err != nil {
		t.Fatalf("rename Sync: %v", err)
	}
	form, err := store.GetFormByKey(ctx, model.FormKey{ClientID: clientID, ExternalFormID: "7", Plugin: "gravity-forms"})
	if err != nil {
		t.Fatalf("GetFormByKey: %v", err)
	}
	if form.Name != "Contact us" {
		t.Errorf("Name = %q, want refreshed", form.Name)
	}
	if string(form.Schema) != `[{"id":1}]` {
		t.Errorf("Schema = %s", form.Schema)
	}

	if got := recorder.Snapshot().FormsSynced; got != 5 {
		t.Errorf("FormsSynced = %d, want 5", got)
	}
}

func TestFormService_SyncSkipsInvalidItems(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewMemoryStore()
	clientID, _ := seedClient(t, store, testSealer(t), "https://acme.example")
	svc := NewFormService(store, store, quietLogger(), nil)

	result, err := svc.Sync(ctx, clientIdentity(clientID), []FormInput{
		{ExternalFormID: "1", Name: "Ok", Plugin: "gravity-forms"},
		{ExternalFormID: "", Name: "No id", Plugin: "gravity-forms"},
		{ExternalFormID: "3", Name: "", Plugin: "gravity-forms"},
	})
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if result.Succeeded != 1 || result.Skipped != 2 || len(result.Errors) != 2 {
		t.Fatalf("result = %+v", result)
	}
	if result.Errors[0].Index != 1 || result.Errors[1].Index != 2 {
		t.Errorf("error indexes = %+v", result.Errors)
	}
}

func TestFormService_SyncStoreFailureIsPerItem(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewMemoryStore()
	clientID, _ := seedClient(t, store, testSealer(t), "https://acme.example")
	store.FailOn("UpsertForm", errors.New("connection reset"))
	svc := NewFormService(store, store, quietLogger(), nil)

	result, err := svc.Sync(ctx, clientIdentity(clientID), []FormInput{{ExternalFormID: "1", Name: "A", Plugin: "p"}})
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if result.Skipped != 1 || result.Errors[0].Reason != "failed to store form" {
		t.Fatalf("result = %+v", result)
	}
}

func TestFormService_SyncRequiresClient(t *testing.T) {
	svc := NewFormService(testutil.NewMemoryStore(), testutil.NewMemoryStore(), quietLogger(), nil)

	session := &model.AuthContext{Kind: model.CredentialSession, UserID: "u"}
	if _, err := svc.Sync(context.Background(), session, []FormInput{{ExternalFormID: "1", Name: "A", Plugin: "p"}}); !errors.Is(err, ErrMissingClientContext) {
		t.Errorf("session err = %v, want ErrMissingClientContext", err)
	}
	if _, err := svc.Sync(context.Background(), clientIdentity("c"), nil); !errors.Is(err, ErrNoForms) {
		t.Errorf("empty err = %v, want ErrNoForms", err)
	}
}

func TestFormService_Ingest(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewMemoryStore()
	clientID, _ := seedClient(t, store, testSealer(t), "https://acme.example")
	svc := NewFormService(store, store, quietLogger(), nil)
	identity := clientIdentity(clientID)

	if _, err := svc.Sync(ctx, identity, []FormInput{{ExternalFormID: "7", Name: "Contact", Plugin: "gravity-forms"}}); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	data := json.RawMessage(`{"Name":"Jane Doe","Email":"j@x.com"}`)
	input := IngestInput{ExternalFormID: "7", Plugin: "gravity-forms", Data: data, SubmittedAt: "2024-03-01 10:00:00"}

	first, err := svc.Ingest(ctx, identity, input)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	want := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	if !first.SubmittedAt.Equal(want) {
		t.Errorf("SubmittedAt = %v, want %v", first.SubmittedAt, want)
	}
	if _, err := svc.Ingest(ctx, identity, input); err != nil {
		t.Fatalf("second Ingest: %v", err)
	}

	subs, err := svc.ListSubmissions(ctx, first.FormID, model.SubmissionFilter{})
	if err != nil {
		t.Fatalf("ListSubmissions: %v", err)
	}
	if len(subs) != 2 {
		t.Fatalf("submissions = %d, want 2 (single ingestion does not dedup)", len(subs))
	}
	if string(subs[0].Data) != string(data) {
		t.Errorf("Data = %s", subs[0].Data)
	}
}

func TestFormService_IngestErrors(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewMemoryStore()
	clientID, _ := seedClient(t, store, testSealer(t), "https://acme.example")
	svc := NewFormService(store, store, quietLogger(), nil)
	identity := clientIdentity(clientID)

	if _, err := svc.Sync(ctx, identity, []FormInput{{ExternalFormID: "7", Name: "Contact", Plugin: "gravity-forms"}}); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	obj := json.RawMessage(`{"a":1}`)
	tests := []struct {
		name    string
		input   IngestInput
		wantErr error
	}{
		{"missing form id", IngestInput{Plugin: "gravity-forms", Data: obj}, ErrMissingSubmissionFields},
		{"missing data", IngestInput{ExternalFormID: "7", Plugin: "gravity-forms"}, ErrMissingSubmissionFields},
		{"null data", IngestInput{ExternalFormID: "7", Plugin: "gravity-forms", Data: json.RawMessage(`null`)}, ErrMissingSubmissionFields},
		{"array data", IngestInput{ExternalFormID: "7", Plugin: "gravity-forms", Data: json.RawMessage(`[1]`)}, ErrInvalidSubmission},
		{"bad timestamp", IngestInput{ExternalFormID: "7", Plugin: "gravity-forms", Data: obj, SubmittedAt: "yesterday"}, ErrInvalidSubmittedAt},
		{"unsynced form", IngestInput{ExternalFormID: "8", Plugin: "gravity-forms", Data: obj}, ErrFormNotSynced},
		{"plugin mismatch", IngestInput{ExternalFormID: "7", Plugin: "contact-form-7", Data: obj}, ErrFormNotSynced},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := svc.Ingest(ctx, identity, test.input)
			if !errors.Is(err, test.wantErr) {
				t.Fatalf("err = %v, want %v", err, test.wantErr)
			}
		})
	}

	var svcErr *Error
	_, err := svc.Ingest(ctx, identity, IngestInput{ExternalFormID: "8", Plugin: "gravity-forms", Data: obj})
	if !errors.As(err, &svcErr) || svcErr.Hint == "" || !errors.Is(err, ErrNotFound) {
		t.Errorf("unsynced form error = %#v, want NotFound with hint", err)
	}

	if _, err := svc.Ingest(ctx, &model.AuthContext{Kind: model.CredentialAPIKey, UserID: "u"}, IngestInput{ExternalFormID: "7", Plugin: "gravity-forms", Data: obj}); !errors.Is(err, ErrMissingClientContext) {
		t.Errorf("unscoped key err = %v, want ErrMissingClientContext", err)
	}
}

func TestFormService_ListSubmissionsFilter(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewMemoryStore()
	clientID, _ := seedClient(t, store, testSealer(t), "https://acme.example")
	svc := NewFormService(store, store, quietLogger(), nil)
	identity := clientIdentity(clientID)

	if _, err := svc.Sync(ctx, identity, []FormInput{{ExternalFormID: "7", Name: "Contact", Plugin: "gf"}}); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	var formID string
	for _, day := range []string{"2024-01-01", "2024-01-15", "2024-02-01"} {
		sub, err := svc.Ingest(ctx, identity, IngestInput{ExternalFormID: "7", Plugin: "gf", Data: json.RawMessage(`{}`), SubmittedAt: day})
		if err != nil {
			t.Fatalf("Ingest %s: %v", day, err)
		}
		formID = sub.FormID
	}

	from := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	subs, err := svc.ListSubmissions(ctx, formID, model.SubmissionFilter{From: &from, To: &to})
	if err != nil {
		t.Fatalf("ListSubmissions: %v", err)
	}
	if len(subs) != 1 {
		t.Fatalf("filtered submissions = %d, want 1", len(subs))
	}

	if _, err := svc.ListSubmissions(ctx, formID, model.SubmissionFilter{From: &to, To: &from}); !errors.Is(err, ErrInvalidDateRange) {
		t.Errorf("inverted range err = %v, want ErrInvalidDateRange", err)
	}
	if _, err := svc.ListSubmissions(ctx, "missing", model.SubmissionFilter{}); !errors.Is(err, ErrFormNotFound) {
		t.Errorf("missing form err = %v, want ErrFormNotFound", err)
	}
}

func TestFormService_RecentAndDeletes(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewMemoryStore()
	clientID, _ := seedClient(t, store, testSealer(t), "https://acme.example")
	svc := NewFormService(store, store, quietLogger(), nil)
	identity := clientIdentity(clientID)

	if _, err := svc.Sync(ctx, identity, []FormInput{{ExternalFormID: "7", Name: "Contact", Plugin: "gf"}}); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	fresh, err := svc.Ingest(ctx, identity, IngestInput{ExternalFormID: "7", Plugin: "gf", Data: json.RawMessage(`{"n":1}`)})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	old := time.Now().UTC().AddDate(0, 0, -30).Format(time.RFC3339)
	if _, err := svc.Ingest(ctx, identity, IngestInput{ExternalFormID: "7", Plugin: "gf", Data: json.RawMessage(`{"n":2}`), SubmittedAt: old}); err != nil {
		t.Fatalf("Ingest old: %v", err)
	}

	recent, err := svc.Recent(ctx, 0)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 1 || recent[0].ID != fresh.ID || recent[0].ClientName != "Acme" || recent[0].FormName != "Contact" {
		t.Fatalf("recent = %+v", recent)
	}
	if _, err := svc.Recent(ctx, MaxStatsDays+1); !errors.Is(err, ErrInvalidDays) {
		t.Errorf("Recent(366) err = %v, want ErrInvalidDays", err)
	}

	if err := svc.DeleteSubmission(ctx, fresh.ID); err != nil {
		t.Fatalf("DeleteSubmission: %v", err)
	}
	if err := svc.DeleteSubmission(ctx, fresh.ID); !errors.Is(err, ErrSubmissionNotFound) {
		t.Errorf("second DeleteSubmission err = %v", err)
	}
	if err := svc.DeleteForm(ctx, fresh.FormID); err != nil {
		t.Fatalf("DeleteForm: %v", err)
	}
	if store.SubmissionCount() != 0 {
		t.Errorf("submissions survived form delete")
	}
	if err := svc.DeleteForm(ctx, fresh.FormID); !errors.Is(err, ErrFormNotFound) {
		t.Errorf("second DeleteForm err = %v", err)
	}
}

func TestParseSubmittedAt(t *testing.T) {
	tests := []struct {
		raw     string
		want    time.Time
		wantErr bool
	}{
		{"2024-03-01T10:00:00Z", time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), false},
		{"2024-03-01T12:00:00+02:00", time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), false},
		{"2024-03-01T10:00:00.5Z", time.Date(2024, 3, 1, 10, 0, 0, 500000000, time.UTC), false},
		{"2024-03-01 10:00:00", time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), false},
		{"2024-03-01T10:00:00", time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), false},
		{" 2024-03-01 ", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), false},
		{"1709287200000", time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), false},
		{"03/01/2024", time.Time{}, true},
		{"", time.Time{}, true},
	}

	for _, test := range tests {
		t.Run(test.raw, func(t *testing.T) {
			got, err := ParseSubmittedAt(test.raw)
			if test.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseSubmittedAt: %v", err)
			}
			if !got.Equal(test.want) || got.Location() != time.UTC {
				t.Errorf("got %v, want %v", got, test.want)
			}
		})
	}
}
