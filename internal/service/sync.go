package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fdcollector/fdc/internal/auth"
	"github.com/fdcollector/fdc/internal/metrics"
	"github.com/fdcollector/fdc/internal/model"
	"github.com/fdcollector/fdc/internal/repository"
	"github.com/fdcollector/fdc/internal/wordpress"
)

// WordPressAPI is the outbound surface used against client sites.
type WordPressAPI interface {
	FetchBulkEntries(ctx context.Context, siteURL, apiKey string) ([]*wordpress.BulkEntry, error)
	DiscoverGravityForms(ctx context.Context, siteURL string, creds *wordpress.BasicAuth) ([]wordpress.DiscoveredForm, error)
	DiscoverContactForm7(ctx context.Context, siteURL string, creds *wordpress.BasicAuth) ([]wordpress.DiscoveredForm, error)
}

// SyncService pulls data from client WordPress sites: bulk submission
// export and form discovery.
type SyncService struct {
	clients     ClientStore
	keys        APIKeyStore
	forms       FormStore
	submissions SubmissionStore
	wp          WordPressAPI
	sealer      *auth.Sealer
	logger      *slog.Logger
	metrics     metrics.Recorder
	now         func() time.Time
}

// SyncServiceConfig holds SyncService dependencies.
type SyncServiceConfig struct {
	Store     Store
	WordPress WordPressAPI
	Sealer    *auth.Sealer
	Logger    *slog.Logger
	Metrics   metrics.Recorder
}

// NewSyncService creates a new SyncService.
func NewSyncService(cfg SyncServiceConfig) *SyncService {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewNoop()
	}
	return &SyncService{
		clients:     cfg.Store,
		keys:        cfg.Store,
		forms:       cfg.Store,
		submissions: cfg.Store,
		wp:          cfg.WordPress,
		sealer:      cfg.Sealer,
		logger:      cfg.Logger,
		metrics:     cfg.Metrics,
		now:         time.Now,
	}
}

// BulkSyncResult summarizes a bulk sync. Succeeded counts newly inserted
// submissions; Skipped counts invalid entries, failed entries and entries
// that refreshed an existing submission. Refreshed breaks out the latter.
type BulkSyncResult struct {
	model.BatchResult
	Total     int
	Refreshed int
}

// SyncClient downloads every entry the client's connector plugin exports
// and upserts it. Entries are independent: one failing entry is reported
// in Errors and earlier entries stay committed. If ctx is cancelled the
// partial result is returned with the context error.
func (s *SyncService) SyncClient(ctx context.Context, clientID string) (*BulkSyncResult, error) {
	start := s.now()

	client, apiKey, err := s.clientAndKey(ctx, clientID)
	if err != nil {
		return nil, err
	}

	entries, err := s.wp.FetchBulkEntries(ctx, client.WordPressURL, apiKey)
	if err != nil {
		s.metrics.IncBulkSyncRun("failed")
		return nil, s.upstreamError(clientID, err)
	}

	result := &BulkSyncResult{Total: len(entries)}
	for i, entry := range entries {
		if err := ctx.Err(); err != nil {
			s.metrics.IncBulkSyncRun("failed")
			return result, err
		}
		if err := s.applyEntry(ctx, client.ID, i, entry, result); err != nil {
			s.metrics.IncBulkSyncRun("failed")
			return result, err
		}
	}

	s.metrics.IncBulkSyncRun("success")
	s.metrics.ObserveBulkSyncDuration(s.now().Sub(start))
	s.metrics.AddSubmissionsIngested(metrics.SourceBulk, result.Succeeded)
	s.metrics.AddSubmissionsRefreshed(result.Refreshed)

	s.logger.Info("bulk sync completed",
		slog.String("client_id", client.ID),
		slog.Int("total", result.Total),
		slog.Int("synced", result.Succeeded),
		slog.Int("skipped", result.Skipped),
		slog.Int("refreshed", result.Refreshed),
	)
	return result, nil
}

// applyEntry folds one entry into result. It returns an error only when
// the sync must stop.
func (s *SyncService) applyEntry(ctx context.Context, clientID string, index int, entry *wordpress.BulkEntry, result *BulkSyncResult) error {
	if entry == nil {
		result.Skip(index, "entry is not an object")
		return nil
	}
	if entry.Err != nil {
		result.Skip(index, "invalid entry: "+entry.Err.Error())
		return nil
	}
	if entry.FormID == "" || entry.FormPlugin == "" || entry.ExternalID == "" {
		result.Skip(index, "form_id, form_plugin and external_id are required")
		return nil
	}
	if len(entry.FormID) > maxExternalIDLength || len(entry.ExternalID) > maxExternalIDLength ||
		len(entry.FormPlugin) > maxPluginLength || len(entry.FormName) > maxFormNameLength {
		result.Skip(index, "field too long")
		return nil
	}

	submittedAt := s.now().UTC()
	if entry.SubmittedAt != "" {
		t, err := ParseSubmittedAt(entry.SubmittedAt.String())
		if err != nil {
			result.Skip(index, "invalid submitted_at")
			return nil
		}
		submittedAt = t
	}

	data := entry.Data
	if isEmptyJSON(data) {
		data = json.RawMessage(`{}`)
	} else if !json.Valid(data) {
		result.Skip(index, "invalid submission_data")
		return nil
	}

	now := s.now().UTC()
	form, err := s.forms.UpsertForm(ctx, &model.Form{
		ID:             newID(),
		ClientID:       clientID,
		ExternalFormID: entry.FormID.String(),
		Name:           entry.FormName.String(),
		Plugin:         entry.FormPlugin.String(),
		CreatedAt:      now,
		UpdatedAt:      now,
	}, model.OverwriteName)
	if err != nil {
		return s.entryFailed(ctx, clientID, index, "failed to store form", err, result)
	}
	if form == nil || form.ID == "" {
		result.Skip(index, "form could not be resolved")
		return nil
	}

	externalID := entry.ExternalID.String()
	inserted, err := s.submissions.UpsertSubmission(ctx, &model.Submission{
		ID:          newID(),
		FormID:      form.ID,
		Data:        data,
		SubmittedAt: submittedAt,
		ExternalID:  &externalID,
		CreatedAt:   now,
	})
	if err != nil {
		return s.entryFailed(ctx, clientID, index, "failed to store submission", err, result)
	}

	if inserted {
		result.Succeed()
	} else {
		result.Refreshed++
		result.Skip(index, "")
	}
	return nil
}

func (s *SyncService) entryFailed(ctx context.Context, clientID string, index int, reason string, err error, result *BulkSyncResult) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	s.logger.Error("bulk sync entry failed",
		slog.String("client_id", clientID),
		slog.Int("index", index),
		slog.String("error", err.Error()),
	)
	result.Skip(index, reason)
	return nil
}

// clientAndKey loads the client and the plaintext of its newest active
// connector key.
func (s *SyncService) clientAndKey(ctx context.Context, clientID string) (*model.Client, string, error) {
	client, err := s.clients.GetClientByID(ctx, clientID)
	if err != nil {
		return nil, "", s.clientLookupError(err)
	}

	key, err := s.keys.GetActiveClientKey(ctx, clientID)
	if err != nil {
		if errors.Is(err, repository.ErrAPIKeyNotFound) {
			return nil, "", ErrNoActiveClientKey
		}
		return nil, "", fmt.Errorf("get client key: %w", err)
	}

	plaintext, err := s.sealer.Open(key.KeySealed)
	if err != nil {
		return nil, "", fmt.Errorf("unseal client key %s: %w", key.ID, err)
	}
	return client, string(plaintext), nil
}

// upstreamError maps a WordPress client failure to a service error.
func (s *SyncService) upstreamError(clientID string, err error) error {
	var statusErr *wordpress.StatusError
	var transportErr *wordpress.TransportError

	switch {
	case errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, wordpress.ErrTimeout):
		s.metrics.IncUpstreamFailure("timeout")
		s.logger.Warn("wordpress timeout", slog.String("client_id", clientID))
		return &Error{Kind: ErrUpstreamTimeout, Message: "WordPress did not respond in time"}
	case errors.As(err, &statusErr):
		s.metrics.IncUpstreamFailure("status")
		s.logger.Warn("wordpress returned error status",
			slog.String("client_id", clientID),
			slog.Int("status", statusErr.StatusCode),
		)
		return &Error{Kind: ErrUpstreamFailure, Message: statusErr.Error()}
	case errors.As(err, &transportErr), errors.Is(err, wordpress.ErrInvalidSiteURL):
		s.metrics.IncUpstreamFailure("transport")
		s.logger.Warn("wordpress unreachable",
			slog.String("client_id", clientID),
			slog.String("error", err.Error()),
		)
		return &Error{Kind: ErrUpstreamFailure, Message: "Could not reach WordPress site"}
	default:
		s.metrics.IncUpstreamFailure("transport")
		s.logger.Warn("wordpress response rejected",
			slog.String("client_id", clientID),
			slog.String("error", err.Error()),
		)
		return &Error{Kind: ErrUpstreamFailure, Message: "WordPress returned an invalid response"}
	}
}
