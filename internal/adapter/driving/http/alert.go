package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/insa-iiot/platform-core/internal/auth"
	"github.com/insa-iiot/platform-core/internal/core/domain"
	"github.com/insa-iiot/platform-core/internal/core/port"
	"github.com/insa-iiot/platform-core/pkg/apperror"
)

// AlertHandler exposes tenant-scoped alert CRUD and lifecycle transitions.
type AlertHandler struct {
	errorHandler
	service port.AlertService
}

// NewAlertHandler creates a new alert handler.
func NewAlertHandler(service port.AlertService, errors *apperror.Handler) *AlertHandler {
	return &AlertHandler{errorHandler{errors}, service}
}

// Routes registers alert routes.
func (h *AlertHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.GetByID)
	r.Get("/{id}/history", h.History)
	r.Post("/{id}/acknowledge", h.Acknowledge)
	r.Post("/{id}/investigate", h.Investigate)
	r.Post("/{id}/resolve", h.Resolve)
	r.Post("/{id}/reopen", h.Reopen)
	r.Post("/{id}/notes", h.AddNote)
	return r
}

type createAlertRequest struct {
	DeviceID          uuid.UUID            `json:"device_id"`
	RuleID            *uuid.UUID           `json:"rule_id"`
	Severity          domain.AlertSeverity `json:"severity"`
	Message           string               `json:"message"`
	Metadata          json.RawMessage      `json:"metadata"`
	ExternalSourceKey *string              `json:"external_source_key"`
}

type alertNoteRequest struct {
	Note string `json:"note"`
}

// List returns the tenant's alerts.
func (h *AlertHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	u := auth.FromContext(ctx)
	page, limit := parsePagination(r)

	result, err := h.service.List(ctx, u.TenantID, page, limit)
	if err != nil {
		h.Handle(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, PaginatedResponse{
		Data:  result.Alerts,
		Total: result.Total,
		Page:  int32(result.Page),
		Limit: int32(result.Limit),
	})
}

// Create files a new alert, typically used by external systems or manual
// incident entry rather than the rule engine, which goes through the
// service layer directly.
func (h *AlertHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	u := auth.FromContext(ctx)

	var req createAlertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Handle(w, r, apperror.BadRequest("invalid request body"))
		return
	}
	if req.DeviceID == uuid.Nil {
		h.Handle(w, r, apperror.Validation("device_id is required"))
		return
	}
	if !req.Severity.IsValid() {
		h.Handle(w, r, apperror.Validation("invalid severity"))
		return
	}

	alert, err := h.service.Create(ctx, port.CreateAlertInput{
		TenantID:          u.TenantID,
		DeviceID:          req.DeviceID,
		RuleID:            req.RuleID,
		Severity:          req.Severity,
		Message:           req.Message,
		Metadata:          req.Metadata,
		ExternalSourceKey: req.ExternalSourceKey,
	})
	if err != nil {
		h.Handle(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, DataResponse{Data: alert})
}

// GetByID returns a single alert.
func (h *AlertHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	u := auth.FromContext(ctx)

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.Handle(w, r, apperror.BadRequest("invalid id"))
		return
	}

	alert, err := h.service.GetByID(ctx, u.TenantID, id)
	if err != nil {
		h.Handle(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, DataResponse{Data: alert})
}

// History returns an alert's state history and SLA record.
func (h *AlertHandler) History(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	u := auth.FromContext(ctx)

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.Handle(w, r, apperror.BadRequest("invalid id"))
		return
	}

	result, err := h.service.History(ctx, u.TenantID, id)
	if err != nil {
		h.Handle(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, DataResponse{Data: result})
}

// transitionFn is the shape shared by Acknowledge/Investigate/Resolve/Reopen.
type transitionFn func(ctx context.Context, tenantID, id, userID uuid.UUID, note *string) (*domain.Alert, error)

func (h *AlertHandler) runTransition(w http.ResponseWriter, r *http.Request, fn transitionFn) {
	ctx := r.Context()
	u := auth.FromContext(ctx)

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.Handle(w, r, apperror.BadRequest("invalid id"))
		return
	}

	var body alertNoteRequest
	var note *string
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil && body.Note != "" {
			note = &body.Note
		}
	}

	alert, err := fn(ctx, u.TenantID, id, u.ID, note)
	if err != nil {
		h.Handle(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, DataResponse{Data: alert})
}

// Acknowledge transitions an alert to acknowledged.
func (h *AlertHandler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	h.runTransition(w, r, h.service.Acknowledge)
}

// Investigate transitions an alert to investigating.
func (h *AlertHandler) Investigate(w http.ResponseWriter, r *http.Request) {
	h.runTransition(w, r, h.service.Investigate)
}

// Resolve transitions an alert to resolved.
func (h *AlertHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	h.runTransition(w, r, h.service.Resolve)
}

// Reopen transitions a resolved alert back to open. Only system admins may
// reopen.
func (h *AlertHandler) Reopen(w http.ResponseWriter, r *http.Request) {
	if !auth.FromContext(r.Context()).SystemAdmin {
		h.Handle(w, r, apperror.Forbidden("system admin required"))
		return
	}
	h.runTransition(w, r, h.service.Reopen)
}

// AddNote appends a note to an alert without changing its state.
func (h *AlertHandler) AddNote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	u := auth.FromContext(ctx)

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.Handle(w, r, apperror.BadRequest("invalid id"))
		return
	}

	var req alertNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Handle(w, r, apperror.BadRequest("invalid request body"))
		return
	}
	if req.Note == "" {
		h.Handle(w, r, apperror.Validation("note is required"))
		return
	}

	if err := h.service.AddNote(ctx, u.TenantID, id, u.ID, req.Note); err != nil {
		h.Handle(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
