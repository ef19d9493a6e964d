package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/insa-iiot/platform-core/internal/auth"
	"github.com/insa-iiot/platform-core/internal/core/domain"
	"github.com/insa-iiot/platform-core/internal/core/port"
	"github.com/insa-iiot/platform-core/pkg/apperror"
)

// EscalationPolicyHandler exposes tenant-admin escalation policy CRUD.
type EscalationPolicyHandler struct {
	errorHandler
	service port.EscalationPolicyService
}

// NewEscalationPolicyHandler creates a new escalation policy handler.
func NewEscalationPolicyHandler(service port.EscalationPolicyService, errors *apperror.Handler) *EscalationPolicyHandler {
	return &EscalationPolicyHandler{errorHandler{errors}, service}
}

// Routes registers escalation policy routes.
func (h *EscalationPolicyHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.GetByID)
	r.Patch("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
	return r
}

type createEscalationPolicyRequest struct {
	Name  string                   `json:"name"`
	Tiers []domain.EscalationTier  `json:"tiers"`
}

type updateEscalationPolicyRequest struct {
	Name  *string                  `json:"name"`
	Tiers []domain.EscalationTier  `json:"tiers"`
}

// List returns the tenant's escalation policies.
func (h *EscalationPolicyHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	u := auth.FromContext(ctx)
	page, limit := parsePagination(r)

	result, err := h.service.List(ctx, u.TenantID, page, limit)
	if err != nil {
		h.Handle(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, PaginatedResponse{
		Data:  result.Policies,
		Total: result.Total,
		Page:  int32(result.Page),
		Limit: int32(result.Limit),
	})
}

// Create creates a new escalation policy.
func (h *EscalationPolicyHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	u := auth.FromContext(ctx)

	var req createEscalationPolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Handle(w, r, apperror.BadRequest("invalid request body"))
		return
	}
	if req.Name == "" {
		h.Handle(w, r, apperror.Validation("name is required"))
		return
	}

	policy, err := h.service.Create(ctx, port.CreateEscalationPolicyInput{
		TenantID: u.TenantID,
		Name:     req.Name,
		Tiers:    req.Tiers,
	})
	if err != nil {
		h.Handle(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, DataResponse{Data: policy})
}

// GetByID returns a single escalation policy.
func (h *EscalationPolicyHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	u := auth.FromContext(ctx)

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.Handle(w, r, apperror.BadRequest("invalid id"))
		return
	}

	policy, err := h.service.GetByID(ctx, u.TenantID, id)
	if err != nil {
		h.Handle(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, DataResponse{Data: policy})
}

// Update updates an escalation policy's name and/or tiers.
func (h *EscalationPolicyHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	u := auth.FromContext(ctx)

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.Handle(w, r, apperror.BadRequest("invalid id"))
		return
	}

	var req updateEscalationPolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Handle(w, r, apperror.BadRequest("invalid request body"))
		return
	}

	policy, err := h.service.Update(ctx, u.TenantID, id, port.UpdateEscalationPolicyInput{
		Name:  req.Name,
		Tiers: req.Tiers,
	})
	if err != nil {
		h.Handle(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, DataResponse{Data: policy})
}

// Delete removes an escalation policy.
func (h *EscalationPolicyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	u := auth.FromContext(ctx)

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.Handle(w, r, apperror.BadRequest("invalid id"))
		return
	}

	if err := h.service.Delete(ctx, u.TenantID, id); err != nil {
		h.Handle(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
