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

// OnCallHandler exposes tenant-admin on-call schedule CRUD plus the
// current-on-call resolution used by the escalation executor's dry-run
// endpoint and by on-call dashboards.
type OnCallHandler struct {
	errorHandler
	service port.OnCallService
}

// NewOnCallHandler creates a new on-call schedule handler.
func NewOnCallHandler(service port.OnCallService, errors *apperror.Handler) *OnCallHandler {
	return &OnCallHandler{errorHandler{errors}, service}
}

// Routes registers on-call schedule routes.
func (h *OnCallHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.GetByID)
	r.Patch("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
	r.Get("/{id}/current", h.Current)
	return r
}

type createOnCallScheduleRequest struct {
	Name      string                    `json:"name"`
	Rotation  domain.RotationSpec       `json:"rotation"`
	Overrides []domain.ScheduleOverride `json:"overrides"`
	Timezone  string                    `json:"timezone"`
}

type updateOnCallScheduleRequest struct {
	Name      *string                   `json:"name"`
	Rotation  *domain.RotationSpec      `json:"rotation"`
	Overrides []domain.ScheduleOverride `json:"overrides"`
	Timezone  *string                   `json:"timezone"`
}

// List returns the tenant's on-call schedules.
func (h *OnCallHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	u := auth.FromContext(ctx)
	page, limit := parsePagination(r)

	result, err := h.service.List(ctx, u.TenantID, page, limit)
	if err != nil {
		h.Handle(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, PaginatedResponse{
		Data:  result.Schedules,
		Total: result.Total,
		Page:  int32(result.Page),
		Limit: int32(result.Limit),
	})
}

// Create creates a new on-call schedule.
func (h *OnCallHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	u := auth.FromContext(ctx)

	var req createOnCallScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Handle(w, r, apperror.BadRequest("invalid request body"))
		return
	}
	if req.Name == "" {
		h.Handle(w, r, apperror.Validation("name is required"))
		return
	}
	if !req.Rotation.Kind.IsValid() {
		h.Handle(w, r, domain.ErrInvalidRotationSpec)
		return
	}

	schedule, err := h.service.Create(ctx, port.CreateOnCallScheduleInput{
		TenantID:  u.TenantID,
		Name:      req.Name,
		Rotation:  req.Rotation,
		Overrides: req.Overrides,
		Timezone:  req.Timezone,
	})
	if err != nil {
		h.Handle(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, DataResponse{Data: schedule})
}

// GetByID returns a single on-call schedule.
func (h *OnCallHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	u := auth.FromContext(ctx)

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.Handle(w, r, apperror.BadRequest("invalid id"))
		return
	}

	schedule, err := h.service.GetByID(ctx, u.TenantID, id)
	if err != nil {
		h.Handle(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, DataResponse{Data: schedule})
}

// Update updates a schedule's rotation, overrides, timezone, or name.
func (h *OnCallHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	u := auth.FromContext(ctx)

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.Handle(w, r, apperror.BadRequest("invalid id"))
		return
	}

	var req updateOnCallScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Handle(w, r, apperror.BadRequest("invalid request body"))
		return
	}

	schedule, err := h.service.Update(ctx, u.TenantID, id, port.UpdateOnCallScheduleInput{
		Name:      req.Name,
		Rotation:  req.Rotation,
		Overrides: req.Overrides,
		Timezone:  req.Timezone,
	})
	if err != nil {
		h.Handle(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, DataResponse{Data: schedule})
}

// Delete removes an on-call schedule.
func (h *OnCallHandler) Delete(w http.ResponseWriter, r *http.Request) {
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

// Current resolves the user currently on call for the schedule.
func (h *OnCallHandler) Current(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	u := auth.FromContext(ctx)

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.Handle(w, r, apperror.BadRequest("invalid id"))
		return
	}

	userID, err := h.service.Current(ctx, u.TenantID, id)
	if err != nil {
		h.Handle(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"user_id": userID})
}
