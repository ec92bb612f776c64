package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fdcollector/fdc/internal/auth"
	"github.com/fdcollector/fdc/internal/handler/dto"
	"github.com/fdcollector/fdc/internal/service"
)

// ClientHandler handles tenant management.
type ClientHandler struct {
	svc    *service.ClientService
	logger *slog.Logger
}

// NewClientHandler creates a new ClientHandler.
func NewClientHandler(svc *service.ClientService, logger *slog.Logger) *ClientHandler {
	return &ClientHandler{
		svc:    svc,
		logger: logger,
	}
}

// Create handles POST /api/clients. The connector key is in the response
// and is never shown again.
func (h *ClientHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateClientRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	created, err := h.svc.Create(r.Context(), service.CreateClientInput{
		Name:              req.Name,
		WordPressURL:      req.WordPressURL,
		WordPressUsername: req.WordPressUsername,
		WordPressPassword: req.WordPressPassword,
		CreatedBy:         auth.UserIDFromContext(r.Context()),
	})
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}

	h.logger.Info("client_created",
		"client_id", created.ClientID,
		"user_id", auth.UserIDFromContext(r.Context()),
	)
	writeJSON(w, http.StatusCreated, created)
}

// List handles GET /api/clients.
func (h *ClientHandler) List(w http.ResponseWriter, r *http.Request) {
	clients, err := h.svc.List(r.Context())
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, clients)
}

// Get handles GET /api/clients/{id}.
func (h *ClientHandler) Get(w http.ResponseWriter, r *http.Request) {
	client, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, client)
}

// Delete handles DELETE /api/clients/{id}. Forms, submissions and keys of
// the client go with it.
func (h *ClientHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.Delete(r.Context(), id); err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}

	h.logger.Info("client_deleted", "client_id", id)
	writeJSON(w, http.StatusOK, dto.SuccessResponse{Success: true})
}
