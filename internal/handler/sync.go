package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fdcollector/fdc/internal/handler/dto"
	"github.com/fdcollector/fdc/internal/service"
)

// SyncHandler handles operator-triggered pulls from client sites.
type SyncHandler struct {
	svc    *service.SyncService
	logger *slog.Logger
}

// NewSyncHandler creates a new SyncHandler.
func NewSyncHandler(svc *service.SyncService, logger *slog.Logger) *SyncHandler {
	return &SyncHandler{
		svc:    svc,
		logger: logger,
	}
}

// SyncClient handles POST /api/sync/client/{clientId}.
func (h *SyncHandler) SyncClient(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "clientId")
	result, err := h.svc.SyncClient(r.Context(), clientID)
	if err != nil {
		var svcErr *service.Error
		if result != nil && !errors.As(err, &svcErr) {
			h.logger.Warn("bulk_sync_interrupted",
				"client_id", clientID,
				"processed", result.Processed,
				"error", err.Error(),
			)
		}
		writeServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToBulkSyncResponse(result.BatchResult, result.Total, result.Refreshed))
}

// Discover handles POST /api/forms/discover/{clientId}.
func (h *SyncHandler) Discover(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "clientId")
	result, err := h.svc.Discover(r.Context(), clientID)
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}

	h.logger.Info("forms_discovered", "client_id", clientID, "discovered", result.Discovered)
	writeJSON(w, http.StatusOK, result)
}
