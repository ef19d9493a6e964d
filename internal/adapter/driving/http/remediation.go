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

// RemediationHandler exposes CRUD and execution of auto-remediation
// workflow definitions. GetByID/Update/Delete/Trigger take a bare workflow
// id at the service layer, so ownership is checked here against the
// workflow's own TenantID rather than pushed into the query.
type RemediationHandler struct {
	errorHandler
	service port.RemediationService
}

// NewRemediationHandler creates a new remediation handler.
func NewRemediationHandler(service port.RemediationService, errors *apperror.Handler) *RemediationHandler {
	return &RemediationHandler{errorHandler{errors}, service}
}

// Routes registers remediation workflow routes.
func (h *RemediationHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.GetByID)
	r.Patch("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
	r.Post("/{id}/trigger", h.Trigger)
	r.Get("/{id}/executions", h.ListExecutions)
	r.Post("/executions/{executionID}/cancel", h.CancelExecution)
	return r
}

type createRemediationWorkflowRequest struct {
	Name        string          `json:"name"`
	Description *string         `json:"description"`
	Definition  json.RawMessage `json:"definition"`
}

type updateRemediationWorkflowRequest struct {
	Name        *string                          `json:"name"`
	Description *string                          `json:"description"`
	Definition  json.RawMessage                  `json:"definition"`
	Status      *domain.RemediationWorkflowStatus `json:"status"`
}

type triggerRemediationRequest struct {
	AlertID     *uuid.UUID             `json:"alert_id"`
	TriggeredBy string                 `json:"triggered_by"`
	Input       map[string]interface{} `json:"input"`
}

// List returns the tenant's remediation workflow definitions.
func (h *RemediationHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	u := auth.FromContext(ctx)
	page, limit := parsePagination(r)

	result, err := h.service.List(ctx, u.TenantID, page, limit)
	if err != nil {
		h.Handle(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, PaginatedResponse{
		Data:  result.Workflows,
		Total: result.Total,
		Page:  int32(result.Page),
		Limit: int32(result.Limit),
	})
}

// Create defines a new remediation workflow.
func (h *RemediationHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	u := auth.FromContext(ctx)

	var req createRemediationWorkflowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Handle(w, r, apperror.BadRequest("invalid request body"))
		return
	}
	if req.Name == "" {
		h.Handle(w, r, apperror.Validation("name is required"))
		return
	}
	if len(req.Definition) == 0 {
		h.Handle(w, r, domain.ErrInvalidDefinition)
		return
	}

	workflow, err := h.service.Create(ctx, port.CreateRemediationWorkflowInput{
		TenantID:    u.TenantID,
		Name:        req.Name,
		Description: req.Description,
		Definition:  req.Definition,
		CreatedBy:   &u.ID,
	})
	if err != nil {
		h.Handle(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, DataResponse{Data: workflow})
}

// checkOwnership loads the workflow and verifies the caller's tenant owns it.
func (h *RemediationHandler) checkOwnership(w http.ResponseWriter, r *http.Request, id uuid.UUID) (*domain.RemediationWorkflow, bool) {
	ctx := r.Context()
	u := auth.FromContext(ctx)

	workflow, err := h.service.GetByID(ctx, id)
	if err != nil {
		h.Handle(w, r, err)
		return nil, false
	}
	if !u.SystemAdmin && workflow.TenantID != u.TenantID {
		h.Handle(w, r, domain.ErrWorkflowNotFound)
		return nil, false
	}
	return workflow, true
}

// GetByID returns a single remediation workflow.
func (h *RemediationHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.Handle(w, r, apperror.BadRequest("invalid id"))
		return
	}

	workflow, ok := h.checkOwnership(w, r, id)
	if !ok {
		return
	}

	respondJSON(w, http.StatusOK, DataResponse{Data: workflow})
}

// Update updates a remediation workflow's definition or lifecycle status.
func (h *RemediationHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.Handle(w, r, apperror.BadRequest("invalid id"))
		return
	}
	if _, ok := h.checkOwnership(w, r, id); !ok {
		return
	}

	var req updateRemediationWorkflowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Handle(w, r, apperror.BadRequest("invalid request body"))
		return
	}

	workflow, err := h.service.Update(r.Context(), id, port.UpdateRemediationWorkflowInput{
		Name:        req.Name,
		Description: req.Description,
		Definition:  req.Definition,
		Status:      req.Status,
	})
	if err != nil {
		h.Handle(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, DataResponse{Data: workflow})
}

// Delete removes a remediation workflow definition.
func (h *RemediationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.Handle(w, r, apperror.BadRequest("invalid id"))
		return
	}
	if _, ok := h.checkOwnership(w, r, id); !ok {
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		h.Handle(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Trigger manually starts a remediation execution, bypassing the rule engine.
func (h *RemediationHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	u := auth.FromContext(ctx)

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.Handle(w, r, apperror.BadRequest("invalid id"))
		return
	}
	if _, ok := h.checkOwnership(w, r, id); !ok {
		return
	}

	var req triggerRemediationRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.Handle(w, r, apperror.BadRequest("invalid request body"))
			return
		}
	}
	if req.TriggeredBy == "" {
		req.TriggeredBy = "user:" + u.ID.String()
	}

	execution, err := h.service.Trigger(ctx, id, req.AlertID, req.TriggeredBy, req.Input)
	if err != nil {
		h.Handle(w, r, err)
		return
	}

	respondJSON(w, http.StatusAccepted, DataResponse{Data: execution})
}

// ListExecutions returns execution history for a remediation workflow.
func (h *RemediationHandler) ListExecutions(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.Handle(w, r, apperror.BadRequest("invalid id"))
		return
	}
	if _, ok := h.checkOwnership(w, r, id); !ok {
		return
	}

	page, limit := parsePagination(r)
	result, err := h.service.ListExecutions(r.Context(), id, page, limit)
	if err != nil {
		h.Handle(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, PaginatedResponse{
		Data:  result.Executions,
		Total: result.Total,
		Page:  int32(result.Page),
		Limit: int32(result.Limit),
	})
}

// CancelExecution requests cancellation of a running remediation execution.
func (h *RemediationHandler) CancelExecution(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "executionID"))
	if err != nil {
		h.Handle(w, r, apperror.BadRequest("invalid execution id"))
		return
	}

	u := auth.FromContext(r.Context())
	tenantID := u.TenantID
	if u.SystemAdmin {
		tenantID = uuid.Nil
	}

	if err := h.service.CancelExecution(r.Context(), tenantID, id); err != nil {
		h.Handle(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
