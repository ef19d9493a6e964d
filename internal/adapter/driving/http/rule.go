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
	"github.com/insa-iiot/platform-core/pkg/validation"
)

// RuleHandler exposes tenant-scoped rule CRUD.
type RuleHandler struct {
	errorHandler
	service port.RuleService
}

// NewRuleHandler creates a new rule handler.
func NewRuleHandler(service port.RuleService, errors *apperror.Handler) *RuleHandler {
	return &RuleHandler{errorHandler{errors}, service}
}

// Routes registers rule routes.
func (h *RuleHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.GetByID)
	r.Patch("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
	return r
}

type createRuleRequest struct {
	Name              string                      `json:"name"`
	Type              domain.RuleType             `json:"type"`
	ConditionConfig   json.RawMessage             `json:"condition_config"`
	Actions           []domain.NotificationAction `json:"actions"`
	Priority          int32                       `json:"priority"`
	CooldownSeconds   int32                       `json:"cooldown_seconds"`
	Scope             domain.RuleScope            `json:"scope"`
	TriggerWorkflowID *uuid.UUID                  `json:"trigger_workflow_id"`
}

type updateRuleRequest struct {
	Name              *string                     `json:"name"`
	Enabled           *bool                       `json:"enabled"`
	ConditionConfig   json.RawMessage             `json:"condition_config"`
	Actions           []domain.NotificationAction `json:"actions"`
	Priority          *int32                      `json:"priority"`
	CooldownSeconds   *int32                      `json:"cooldown_seconds"`
	Scope             *domain.RuleScope           `json:"scope"`
	TriggerWorkflowID *uuid.UUID                  `json:"trigger_workflow_id"`
}

// List returns the tenant's rules.
func (h *RuleHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	u := auth.FromContext(ctx)
	page, limit := parsePagination(r)

	result, err := h.service.List(ctx, u.TenantID, page, limit)
	if err != nil {
		h.Handle(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, PaginatedResponse{
		Data:  result.Rules,
		Total: result.Total,
		Page:  int32(result.Page),
		Limit: int32(result.Limit),
	})
}

// Create creates a new rule.
func (h *RuleHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	u := auth.FromContext(ctx)

	var req createRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Handle(w, r, apperror.BadRequest("invalid request body"))
		return
	}
	v := validation.New()
	v.Required("name", req.Name).MaxLength("name", req.Name, 255)
	v.Min("priority", int(req.Priority), 0)
	v.Min("cooldown_seconds", int(req.CooldownSeconds), 0)
	if v.HasErrors() {
		h.Handle(w, r, v.Error())
		return
	}
	if !req.Type.IsValid() {
		h.Handle(w, r, domain.ErrInvalidRuleType)
		return
	}

	rule, err := h.service.Create(ctx, port.CreateRuleInput{
		TenantID:          u.TenantID,
		Name:              req.Name,
		Type:              req.Type,
		ConditionConfig:   req.ConditionConfig,
		Actions:           req.Actions,
		Priority:          req.Priority,
		CooldownSeconds:   req.CooldownSeconds,
		Scope:             req.Scope,
		TriggerWorkflowID: req.TriggerWorkflowID,
		CreatedBy:         u.ID,
	})
	if err != nil {
		h.Handle(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, DataResponse{Data: rule})
}

// GetByID returns a single rule.
func (h *RuleHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	u := auth.FromContext(ctx)

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.Handle(w, r, apperror.BadRequest("invalid id"))
		return
	}

	rule, err := h.service.GetByID(ctx, u.TenantID, id)
	if err != nil {
		h.Handle(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, DataResponse{Data: rule})
}

// Update updates mutable rule fields.
func (h *RuleHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	u := auth.FromContext(ctx)

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.Handle(w, r, apperror.BadRequest("invalid id"))
		return
	}

	var req updateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Handle(w, r, apperror.BadRequest("invalid request body"))
		return
	}

	rule, err := h.service.Update(ctx, u.TenantID, id, port.UpdateRuleInput{
		Name:              req.Name,
		Enabled:           req.Enabled,
		ConditionConfig:   req.ConditionConfig,
		Actions:           req.Actions,
		Priority:          req.Priority,
		CooldownSeconds:   req.CooldownSeconds,
		Scope:             req.Scope,
		TriggerWorkflowID: req.TriggerWorkflowID,
	})
	if err != nil {
		h.Handle(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, DataResponse{Data: rule})
}

// Delete removes a rule.
func (h *RuleHandler) Delete(w http.ResponseWriter, r *http.Request) {
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
