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
	"github.com/insa-iiot/platform-core/pkg/util"
	"github.com/insa-iiot/platform-core/pkg/validation"
)

// DeviceHandler exposes tenant-scoped device CRUD.
type DeviceHandler struct {
	errorHandler
	service port.DeviceService
}

// NewDeviceHandler creates a new device handler.
func NewDeviceHandler(service port.DeviceService, errors *apperror.Handler) *DeviceHandler {
	return &DeviceHandler{errorHandler{errors}, service}
}

// Routes registers device routes.
func (h *DeviceHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.GetByID)
	r.Patch("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
	return r
}

type createDeviceRequest struct {
	Name     string                `json:"name"`
	Type     string                `json:"type"`
	Protocol domain.DeviceProtocol `json:"protocol"`
	Metadata map[string]string     `json:"metadata"`
}

type updateDeviceRequest struct {
	Name     *string              `json:"name"`
	Type     *string              `json:"type"`
	Status   *domain.DeviceStatus `json:"status"`
	Metadata map[string]string    `json:"metadata"`
}

// List returns the tenant's devices.
func (h *DeviceHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	u := auth.FromContext(ctx)
	page, limit := parsePagination(r)

	result, err := h.service.List(ctx, u.TenantID, page, limit)
	if err != nil {
		h.Handle(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, PaginatedResponse{
		Data:  result.Devices,
		Total: result.Total,
		Page:  int32(result.Page),
		Limit: int32(result.Limit),
	})
}

// Create registers a new device.
func (h *DeviceHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	u := auth.FromContext(ctx)

	var req createDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Handle(w, r, apperror.BadRequest("invalid request body"))
		return
	}
	v := validation.New()
	v.Required("name", req.Name).MaxLength("name", req.Name, 255)
	v.Required("type", req.Type).MaxLength("type", req.Type, 100)
	if v.HasErrors() {
		h.Handle(w, r, v.Error())
		return
	}
	if !req.Protocol.IsValid() {
		h.Handle(w, r, domain.ErrInvalidProtocolTag)
		return
	}

	device, err := h.service.Create(ctx, port.CreateDeviceInput{
		TenantID: u.TenantID,
		Name:     req.Name,
		Type:     req.Type,
		Protocol: req.Protocol,
		Metadata: req.Metadata,
	})
	if err != nil {
		h.Handle(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, DataResponse{Data: device})
}

// GetByID returns a single device.
func (h *DeviceHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	u := auth.FromContext(ctx)

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.Handle(w, r, apperror.BadRequest("invalid id"))
		return
	}

	device, err := h.service.GetByID(ctx, u.TenantID, id)
	if err != nil {
		h.Handle(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, DataResponse{Data: device})
}

// Update updates mutable device fields.
func (h *DeviceHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	u := auth.FromContext(ctx)

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.Handle(w, r, apperror.BadRequest("invalid id"))
		return
	}

	var req updateDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Handle(w, r, apperror.BadRequest("invalid request body"))
		return
	}
	if req.Status != nil && !req.Status.IsValid() {
		h.Handle(w, r, domain.ErrInvalidDeviceStatus)
		return
	}
	// A client sending "" for name/type means "clear the field" is not
	// supported; treat it the same as omission rather than persisting blanks.
	if req.Name != nil {
		req.Name = util.StringPtr(*req.Name)
	}
	if req.Type != nil {
		req.Type = util.StringPtr(*req.Type)
	}

	device, err := h.service.Update(ctx, u.TenantID, id, port.UpdateDeviceInput{
		Name:     req.Name,
		Type:     req.Type,
		Status:   req.Status,
		Metadata: req.Metadata,
	})
	if err != nil {
		h.Handle(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, DataResponse{Data: device})
}

// Delete removes a device.
func (h *DeviceHandler) Delete(w http.ResponseWriter, r *http.Request) {
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
