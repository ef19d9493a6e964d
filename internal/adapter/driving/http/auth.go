package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/insa-iiot/platform-core/internal/core/port"
	"github.com/insa-iiot/platform-core/pkg/apperror"
)

// AuthHandler exposes login and token refresh. Both routes are mounted
// outside the Authenticate gate.
type AuthHandler struct {
	errorHandler
	service port.AuthService
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(service port.AuthService, errors *apperror.Handler) *AuthHandler {
	return &AuthHandler{errorHandler{errors}, service}
}

// Routes registers auth routes.
func (h *AuthHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/login", h.Login)
	r.Post("/refresh", h.Refresh)
	return r
}

type loginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	TenantSlug string `json:"tenant_slug"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type loginResponse struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	ExpiresIn    int         `json:"expires_in"`
	User         interface{} `json:"user"`
}

// Login authenticates a user and issues a token pair.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Handle(w, r, apperror.BadRequest("invalid request body"))
		return
	}
	if req.Email == "" || req.Password == "" {
		h.Handle(w, r, apperror.Validation("email and password are required"))
		return
	}

	result, err := h.service.Login(r.Context(), req.Email, req.Password, req.TenantSlug)
	if err != nil {
		h.Handle(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, loginResponse{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		ExpiresIn:    result.ExpiresIn,
		User:         result.User,
	})
}

// Refresh exchanges a refresh token for a new access/refresh pair.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Handle(w, r, apperror.BadRequest("invalid request body"))
		return
	}
	if req.RefreshToken == "" {
		h.Handle(w, r, apperror.Validation("refresh_token is required"))
		return
	}

	result, err := h.service.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		h.Handle(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, loginResponse{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		ExpiresIn:    result.ExpiresIn,
		User:         result.User,
	})
}
