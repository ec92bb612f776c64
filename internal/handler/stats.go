package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fdcollector/fdc/internal/service"
)

// StatsHandler serves dashboard aggregates.
type StatsHandler struct {
	svc    *service.StatsService
	logger *slog.Logger
}

// NewStatsHandler creates a new StatsHandler.
func NewStatsHandler(svc *service.StatsService, logger *slog.Logger) *StatsHandler {
	return &StatsHandler{
		svc:    svc,
		logger: logger,
	}
}

// Global handles GET /api/stats?days=N.
func (h *StatsHandler) Global(w http.ResponseWriter, r *http.Request) {
	days, ok := queryDays(r)
	if !ok {
		writeServiceError(h.logger, w, r, service.ErrInvalidDays)
		return
	}

	stats, err := h.svc.Global(r.Context(), days)
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// Client handles GET /api/stats/client/{clientId}?days=N.
func (h *StatsHandler) Client(w http.ResponseWriter, r *http.Request) {
	days, ok := queryDays(r)
	if !ok {
		writeServiceError(h.logger, w, r, service.ErrInvalidDays)
		return
	}

	stats, err := h.svc.Client(r.Context(), chi.URLParam(r, "clientId"), days)
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
