package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fdcollector/fdc/internal/auth"
	"github.com/fdcollector/fdc/internal/handler/dto"
	"github.com/fdcollector/fdc/internal/model"
	"github.com/fdcollector/fdc/internal/service"
)

// dateOnlyLength is the length of a YYYY-MM-DD range bound.
const dateOnlyLength = len("2006-01-02")

// FormHandler handles the form registry and submission endpoints.
type FormHandler struct {
	svc    *service.FormService
	logger *slog.Logger
}

// NewFormHandler creates a new FormHandler.
func NewFormHandler(svc *service.FormService, logger *slog.Logger) *FormHandler {
	return &FormHandler{
		svc:    svc,
		logger: logger,
	}
}

// Sync handles POST /api/forms/sync. The body is a JSON array of forms or
// {"forms": [...]}. Invalid items are skipped and reported in errors.
func (h *FormHandler) Sync(w http.ResponseWriter, r *http.Request) {
	var req dto.FormSyncRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	inputs := make([]service.FormInput, len(req.Forms))
	for i, item := range req.Forms {
		if item == nil {
			continue
		}
		inputs[i] = service.FormInput{
			ExternalFormID: strings.TrimSpace(item.FormID.String()),
			Name:           strings.TrimSpace(item.FormName.String()),
			Plugin:         strings.TrimSpace(item.FormPlugin),
			Schema:         item.Schema(),
		}
	}

	identity := auth.AuthFromContext(r.Context())
	result, err := h.svc.Sync(r.Context(), identity, inputs)
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}

	h.logger.Info("forms_synced",
		"client_id", result.ClientID,
		"received", len(inputs),
		"synced", result.Succeeded,
		"skipped", result.Skipped,
	)
	writeJSON(w, http.StatusOK, dto.ToFormSyncResponse(result.ClientID, len(inputs), result.BatchResult))
}

// Ingest handles POST /api/forms/submissions.
func (h *FormHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	var req dto.SubmissionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	identity := auth.AuthFromContext(r.Context())
	sub, err := h.svc.Ingest(r.Context(), identity, service.IngestInput{
		ExternalFormID: strings.TrimSpace(req.FormID.String()),
		Plugin:         strings.TrimSpace(req.FormPlugin),
		Data:           req.SubmissionData,
		SubmittedAt:    req.SubmittedAt,
	})
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}

	h.logger.Debug("submission_ingested",
		"submission_id", sub.ID,
		"form_id", sub.FormID,
		"client_id", identity.ClientID,
	)
	writeJSON(w, http.StatusCreated, dto.SubmissionResponse{
		Success:     true,
		ID:          sub.ID,
		SubmittedAt: sub.SubmittedAt,
	})
}

// ListByClient handles GET /api/forms/client/{clientId}.
func (h *FormHandler) ListByClient(w http.ResponseWriter, r *http.Request) {
	forms, err := h.svc.ListByClient(r.Context(), chi.URLParam(r, "clientId"))
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, forms)
}

// ListSubmissions handles GET /api/forms/{formId}/submissions with
// optional from/to bounds (RFC 3339 or YYYY-MM-DD; a date-only "to"
// includes that whole day).
func (h *FormHandler) ListSubmissions(w http.ResponseWriter, r *http.Request) {
	filter, ok := parseSubmissionFilter(r)
	if !ok {
		writeServiceError(h.logger, w, r, service.ErrInvalidDateRange)
		return
	}

	subs, err := h.svc.ListSubmissions(r.Context(), chi.URLParam(r, "formId"), filter)
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, subs)
}

// DeleteForm handles DELETE /api/forms/{formId}.
func (h *FormHandler) DeleteForm(w http.ResponseWriter, r *http.Request) {
	formID := chi.URLParam(r, "formId")
	if err := h.svc.DeleteForm(r.Context(), formID); err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}

	h.logger.Info("form_deleted", "form_id", formID)
	writeJSON(w, http.StatusOK, dto.SuccessResponse{Success: true})
}

// DeleteSubmission handles DELETE /api/forms/submissions/{id}.
func (h *FormHandler) DeleteSubmission(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.DeleteSubmission(r.Context(), id); err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}

	h.logger.Info("submission_deleted", "submission_id", id)
	writeJSON(w, http.StatusOK, dto.SuccessResponse{Success: true})
}

// Recent handles GET /api/submissions/recent?days=N.
func (h *FormHandler) Recent(w http.ResponseWriter, r *http.Request) {
	days, ok := queryDays(r)
	if !ok {
		writeServiceError(h.logger, w, r, service.ErrInvalidDays)
		return
	}

	subs, err := h.svc.Recent(r.Context(), days)
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, subs)
}

func parseSubmissionFilter(r *http.Request) (model.SubmissionFilter, bool) {
	var filter model.SubmissionFilter
	q := r.URL.Query()

	if raw := q.Get("from"); raw != "" {
		from, err := service.ParseSubmittedAt(raw)
		if err != nil {
			return filter, false
		}
		filter.From = &from
	}
	if raw := q.Get("to"); raw != "" {
		to, err := service.ParseSubmittedAt(raw)
		if err != nil {
			return filter, false
		}
		if len(strings.TrimSpace(raw)) == dateOnlyLength {
			to = to.Add(24*time.Hour - time.Nanosecond)
		}
		filter.To = &to
	}
	return filter, true
}
