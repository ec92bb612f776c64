package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fdcollector/fdc/internal/auth"
	"github.com/fdcollector/fdc/internal/handler/dto"
	"github.com/fdcollector/fdc/internal/service"
)

// APIKeyHandler handles API key management endpoints.
type APIKeyHandler struct {
	svc    *service.APIKeyService
	logger *slog.Logger
}

// NewAPIKeyHandler creates a new APIKeyHandler.
func NewAPIKeyHandler(svc *service.APIKeyService, logger *slog.Logger) *APIKeyHandler {
	return &APIKeyHandler{
		svc:    svc,
		logger: logger,
	}
}

// Generate handles POST /api/api-keys/generate.
func (h *APIKeyHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateAPIKeyRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	userID := auth.UserIDFromContext(r.Context())
	created, err := h.svc.Generate(r.Context(), userID, req.Name)
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}

	h.logger.Info("API key created",
		slog.String("key_id", created.ID),
		slog.String("key_prefix", created.KeyPrefix),
		slog.String("user_id", userID),
	)

	// Plaintext key is shown once only.
	writeJSON(w, http.StatusCreated, created)
}

// List handles GET /api/api-keys.
func (h *APIKeyHandler) List(w http.ResponseWriter, r *http.Request) {
	keys, err := h.svc.List(r.Context(), auth.UserIDFromContext(r.Context()))
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, keys)
}

// Deactivate handles DELETE /api/api-keys/{id}. Keys of other users are
// reported as not found.
func (h *APIKeyHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	keyID := chi.URLParam(r, "id")
	userID := auth.UserIDFromContext(r.Context())
	if err := h.svc.Deactivate(r.Context(), userID, keyID); err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}

	h.logger.Info("API key deactivated",
		slog.String("key_id", keyID),
		slog.String("user_id", userID),
	)
	writeJSON(w, http.StatusOK, dto.SuccessResponse{Success: true})
}
