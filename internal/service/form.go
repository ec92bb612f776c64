package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/fdcollector/fdc/internal/metrics"
	"github.com/fdcollector/fdc/internal/model"
	"github.com/fdcollector/fdc/internal/repository"
)

// Column limits of the forms and submissions tables.
const (
	maxExternalIDLength = 255
	maxFormNameLength   = 500
	maxPluginLength     = 50

	// recentSubmissionsLimit caps the recent feed.
	recentSubmissionsLimit = 50
	// DefaultRecentDays is the recent feed window when none is given.
	DefaultRecentDays = 7
)

// FormService handles the form registry and single-submission ingestion.
type FormService struct {
	forms       FormStore
	submissions SubmissionStore
	logger      *slog.Logger
	metrics     metrics.Recorder
	now         func() time.Time
}

// NewFormService creates a new FormService.
func NewFormService(forms FormStore, submissions SubmissionStore, logger *slog.Logger, recorder metrics.Recorder) *FormService {
	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &FormService{
		forms:       forms,
		submissions: submissions,
		logger:      logger,
		metrics:     recorder,
		now:         time.Now,
	}
}

// FormInput is one form definition pushed by the connector plugin.
type FormInput struct {
	ExternalFormID string
	Name           string
	Plugin         string
	// Schema is the "fields" document, or "form_schema" when fields is absent.
	Schema json.RawMessage
}

// SyncResult summarizes a registry sync.
type SyncResult struct {
	ClientID string
	model.BatchResult
}

// Sync upserts the given forms into the caller's client registry. Items
// missing an id, name or plugin are skipped; the rest are applied one by
// one so a failing item does not undo earlier ones.
func (s *FormService) Sync(ctx context.Context, identity *model.AuthContext, forms []FormInput) (*SyncResult, error) {
	if !identity.HasClient() {
		return nil, ErrMissingClientContext
	}
	if len(forms) == 0 {
		return nil, ErrNoForms
	}

	result := &SyncResult{ClientID: identity.ClientID}
	for i, in := range forms {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		if reason := validateFormInput(in); reason != "" {
			result.Skip(i, reason)
			continue
		}

		now := s.now().UTC()
		form := &model.Form{
			ID:             newID(),
			ClientID:       identity.ClientID,
			ExternalFormID: in.ExternalFormID,
			Name:           in.Name,
			Plugin:         in.Plugin,
			Schema:         normalizeSchema(in.Schema),
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if _, err := s.forms.UpsertForm(ctx, form, model.OverwriteName|model.OverwriteSchema); err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			s.logger.Error("form sync item failed",
				slog.String("client_id", identity.ClientID),
				slog.String("form_id", in.ExternalFormID),
				slog.String("error", err.Error()),
			)
			result.Skip(i, "failed to store form")
			continue
		}
		result.Succeed()
	}

	s.metrics.AddFormsSynced(result.Succeeded)
	return result, nil
}

func validateFormInput(in FormInput) string {
	switch {
	case in.ExternalFormID == "" || in.Name == "" || in.Plugin == "":
		return "form_id, form_name and form_plugin are required"
	case len(in.ExternalFormID) > maxExternalIDLength:
		return "form_id is too long"
	case len(in.Name) > maxFormNameLength:
		return "form_name is too long"
	case len(in.Plugin) > maxPluginLength:
		return "form_plugin is too long"
	}
	return ""
}

// IngestInput is one submission pushed by the connector plugin.
type IngestInput struct {
	ExternalFormID string
	Plugin         string
	Data           json.RawMessage
	// SubmittedAt is the raw timestamp; empty means now.
	SubmittedAt string
}

// Ingest stores a submission for a registered form of the caller's client.
// Every call inserts a new row; there is no dedup on this path.
func (s *FormService) Ingest(ctx context.Context, identity *model.AuthContext, input IngestInput) (*model.Submission, error) {
	if !identity.HasClient() {
		return nil, ErrMissingClientContext
	}
	if input.ExternalFormID == "" || input.Plugin == "" || isEmptyJSON(input.Data) {
		return nil, ErrMissingSubmissionFields
	}
	if !isJSONObject(input.Data) {
		return nil, ErrInvalidSubmission
	}

	submittedAt := s.now().UTC()
	if strings.TrimSpace(input.SubmittedAt) != "" {
		t, err := ParseSubmittedAt(input.SubmittedAt)
		if err != nil {
			return nil, ErrInvalidSubmittedAt
		}
		submittedAt = t
	}

	form, err := s.forms.GetFormByKey(ctx, model.FormKey{
		ClientID:       identity.ClientID,
		ExternalFormID: input.ExternalFormID,
		Plugin:         input.Plugin,
	})
	if err != nil {
		if errors.Is(err, repository.ErrFormNotFound) {
			return nil, ErrFormNotSynced
		}
		return nil, fmt.Errorf("lookup form: %w", err)
	}

	sub := &model.Submission{
		ID:          newID(),
		FormID:      form.ID,
		Data:        input.Data,
		SubmittedAt: submittedAt,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.submissions.CreateSubmission(ctx, sub); err != nil {
		return nil, fmt.Errorf("store submission: %w", err)
	}

	s.metrics.AddSubmissionsIngested(metrics.SourceSingle, 1)
	return sub, nil
}

// ListByClient returns a client's registered forms.
func (s *FormService) ListByClient(ctx context.Context, clientID string) ([]*model.Form, error) {
	forms, err := s.forms.ListFormsByClient(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("list forms: %w", err)
	}
	return forms, nil
}

// ListSubmissions returns a form's submissions, newest first, optionally
// limited to [from, to].
func (s *FormService) ListSubmissions(ctx context.Context, formID string, filter model.SubmissionFilter) ([]*model.Submission, error) {
	if filter.From != nil && filter.To != nil && filter.From.After(*filter.To) {
		return nil, ErrInvalidDateRange
	}

	if _, err := s.forms.GetFormByID(ctx, formID); err != nil {
		if errors.Is(err, repository.ErrFormNotFound) {
			return nil, ErrFormNotFound
		}
		return nil, fmt.Errorf("get form: %w", err)
	}

	subs, err := s.submissions.ListSubmissionsByForm(ctx, formID, filter)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	return subs, nil
}

// Recent returns the latest submissions across clients from the last days.
func (s *FormService) Recent(ctx context.Context, days int) ([]*model.RecentSubmission, error) {
	if days <= 0 {
		days = DefaultRecentDays
	}
	if days > MaxStatsDays {
		return nil, ErrInvalidDays
	}

	since := s.now().UTC().AddDate(0, 0, -days)
	subs, err := s.submissions.ListRecentSubmissions(ctx, since, recentSubmissionsLimit)
	if err != nil {
		return nil, fmt.Errorf("list recent submissions: %w", err)
	}
	return subs, nil
}

// DeleteForm removes a form and its submissions.
func (s *FormService) DeleteForm(ctx context.Context, formID string) error {
	if err := s.forms.DeleteForm(ctx, formID); err != nil {
		if errors.Is(err, repository.ErrFormNotFound) {
			return ErrFormNotFound
		}
		return fmt.Errorf("delete form: %w", err)
	}
	return nil
}

// DeleteSubmission removes one submission.
func (s *FormService) DeleteSubmission(ctx context.Context, id string) error {
	if err := s.submissions.DeleteSubmission(ctx, id); err != nil {
		if errors.Is(err, repository.ErrSubmissionNotFound) {
			return ErrSubmissionNotFound
		}
		return fmt.Errorf("delete submission: %w", err)
	}
	return nil
}

// submittedAtLayouts are the timestamp shapes WordPress plugins emit.
var submittedAtLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseSubmittedAt parses a submission timestamp. Values without a zone
// are taken as UTC. A bare integer is milliseconds since the Unix epoch.
func ParseSubmittedAt(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	for _, layout := range submittedAtLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", raw)
}

func isEmptyJSON(doc json.RawMessage) bool {
	trimmed := bytes.TrimSpace(doc)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func isJSONObject(doc json.RawMessage) bool {
	trimmed := bytes.TrimSpace(doc)
	return len(trimmed) > 0 && trimmed[0] == '{' && json.Valid(trimmed)
}

// normalizeSchema maps an absent or null schema to nil.
func normalizeSchema(doc json.RawMessage) json.RawMessage {
	if isEmptyJSON(doc) {
		return nil
	}
	return doc
}
