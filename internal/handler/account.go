package handler

import (
	"log/slog"
	"net/http"

	"github.com/fdcollector/fdc/internal/auth"
	"github.com/fdcollector/fdc/internal/handler/dto"
	"github.com/fdcollector/fdc/internal/model"
	"github.com/fdcollector/fdc/internal/service"
)

// AccountHandler handles signup, login and the current user profile.
type AccountHandler struct {
	svc    *service.AccountService
	logger *slog.Logger
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(svc *service.AccountService, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{
		svc:    svc,
		logger: logger,
	}
}

// Signup handles POST /api/auth/signup.
func (h *AccountHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req dto.SignupRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	session, err := h.svc.Signup(r.Context(), service.SignupInput{
		Email:      req.Email,
		Password:   req.Password,
		Name:       req.Name,
		InviteCode: req.InviteCode,
	})
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}

	h.logger.Info("user_signed_up", "user_id", session.User.ID)
	writeJSON(w, http.StatusOK, session)
}

// Login handles POST /api/auth/login.
func (h *AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	session, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// Me handles GET /api/auth/me.
func (h *AccountHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.svc.Me(r.Context(), auth.UserIDFromContext(r.Context()))
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.UserResponse{User: user})
}

// UpdateMe handles PATCH /api/auth/me.
func (h *AccountHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var req dto.UpdateMeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.svc.UpdateMe(r.Context(), auth.UserIDFromContext(r.Context()), model.UserUpdate{
		Name:  req.Name,
		Email: req.Email,
	})
	if err != nil {
		writeServiceError(h.logger, w, r, err)
		return
	}

	h.logger.Info("user_updated", "user_id", user.ID)
	writeJSON(w, http.StatusOK, dto.UserResponse{User: user})
}
