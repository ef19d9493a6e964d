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

// TenantHandler exposes tenant CRUD and the member-management surface. List
// and Create are mounted system-admin-only. GetByID, Stats, Quotas and
// ListUsers accept a system admin or any member of the tenant; Update and
// the member-management routes accept either a system admin or the tenant's
// own tenant admin. Both checks are enforced per-route below since
// port.TenantService takes a bare tenant id rather than a tenant-scoped one.
type TenantHandler struct {
	errorHandler
	service port.TenantService
}

// NewTenantHandler creates a new tenant handler.
func NewTenantHandler(service port.TenantService, errors *apperror.Handler) *TenantHandler {
	return &TenantHandler{errorHandler{errors}, service}
}

// Routes registers tenant routes.
func (h *TenantHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.GetByID)
	r.Patch("/{id}", h.Update)
	r.Get("/{id}/stats", h.Stats)
	r.Get("/{id}/quotas", h.Quotas)
	r.Get("/{id}/users", h.ListUsers)
	r.Post("/{id}/users", h.InviteUser)
	r.Delete("/{id}/users/{userID}", h.RemoveUser)
	r.Patch("/{id}/users/{userID}", h.ChangeUserRole)
	return r
}

// canAccess reports whether the caller may operate on tenant id: system
// admins can reach any tenant, everyone else only their own.
func canAccess(u *auth.User, id uuid.UUID) bool {
	return u.SystemAdmin || u.TenantID == id
}

type createTenantRequest struct {
	Slug        string            `json:"slug"`
	DisplayName string            `json:"display_name"`
	Tier        domain.TenantTier `json:"tier"`
}

type updateTenantRequest struct {
	DisplayName *string               `json:"display_name"`
	Tier        *domain.TenantTier    `json:"tier"`
	Caps        *domain.ResourceCaps  `json:"caps"`
}

type inviteUserRequest struct {
	Email       string `json:"email"`
	Role        string `json:"role"`
	TenantAdmin bool   `json:"tenant_admin"`
}

type changeRoleRequest struct {
	Role        string `json:"role"`
	TenantAdmin bool   `json:"tenant_admin"`
}

// List returns every tenant in the platform. System-admin only.
func (h *TenantHandler) List(w http.ResponseWriter, r *http.Request) {
	page, limit := parsePagination(r)

	var filter port.TenantFilter
	if slug := r.URL.Query().Get("slug"); slug != "" {
		filter.Slug = &slug
	}
	if tier := r.URL.Query().Get("tier"); tier != "" {
		t := domain.TenantTier(tier)
		filter.Tier = &t
	}

	result, err := h.service.List(r.Context(), page, limit, filter)
	if err != nil {
		h.Handle(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, PaginatedResponse{
		Data:  result.Tenants,
		Total: result.Total,
		Page:  int32(result.Page),
		Limit: int32(result.Limit),
	})
}

// Create provisions a new tenant. System-admin only.
func (h *TenantHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createTenantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Handle(w, r, apperror.BadRequest("invalid request body"))
		return
	}
	v := validation.New()
	v.Required("slug", req.Slug).Pattern("slug", req.Slug, `^[a-z0-9]([a-z0-9-]*[a-z0-9])?$`, "slug must be URL-safe (lowercase letters, digits, hyphens)")
	v.Required("display_name", req.DisplayName).MaxLength("display_name", req.DisplayName, 255)
	if req.Tier != "" {
		v.Custom("tier", req.Tier.IsValid(), "tier must be one of free, startup, professional, enterprise")
	}
	if v.HasErrors() {
		h.Handle(w, r, v.Error())
		return
	}
	if req.Tier == "" {
		req.Tier = domain.TenantTierFree
	}

	tenant, err := h.service.Create(r.Context(), port.CreateTenantInput{
		Slug:        req.Slug,
		DisplayName: req.DisplayName,
		Tier:        req.Tier,
	})
	if err != nil {
		h.Handle(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, DataResponse{Data: tenant})
}

// GetByID returns a single tenant.
func (h *TenantHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	u := auth.FromContext(ctx)

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.Handle(w, r, apperror.BadRequest("invalid id"))
		return
	}
	if !canAccess(u, id) {
		h.Handle(w, r, apperror.Forbidden(""))
		return
	}

	tenant, err := h.service.GetByID(ctx, id)
	if err != nil {
		h.Handle(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, DataResponse{Data: tenant})
}

// Update updates mutable tenant fields.
func (h *TenantHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	u := auth.FromContext(ctx)

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.Handle(w, r, apperror.BadRequest("invalid id"))
		return
	}
	if !u.SystemAdmin && !(u.TenantAdmin && u.TenantID == id) {
		h.Handle(w, r, apperror.Forbidden("tenant admin required"))
		return
	}

	var req updateTenantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Handle(w, r, apperror.BadRequest("invalid request body"))
		return
	}
	// Only a system admin may change tier or caps; a tenant admin may only
	// change the display name.
	if !u.SystemAdmin {
		req.Tier = nil
		req.Caps = nil
	}
	v := validation.New()
	if req.DisplayName != nil {
		v.Required("display_name", *req.DisplayName).MaxLength("display_name", *req.DisplayName, 255)
	}
	if req.Tier != nil {
		v.Custom("tier", req.Tier.IsValid(), "tier must be one of free, startup, professional, enterprise")
	}
	if v.HasErrors() {
		h.Handle(w, r, v.Error())
		return
	}

	tenant, err := h.service.Update(ctx, id, port.UpdateTenantInput{
		DisplayName: req.DisplayName,
		Tier:        req.Tier,
		Caps:        req.Caps,
	})
	if err != nil {
		h.Handle(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, DataResponse{Data: tenant})
}

// Stats returns device/user/telemetry counts for the tenant.
func (h *TenantHandler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	u := auth.FromContext(ctx)

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.Handle(w, r, apperror.BadRequest("invalid id"))
		return
	}
	if !canAccess(u, id) {
		h.Handle(w, r, apperror.Forbidden(""))
		return
	}

	stats, err := h.service.Stats(ctx, id)
	if err != nil {
		h.Handle(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, DataResponse{Data: stats})
}

// Quotas returns the tenant's current resource usage against its caps.
func (h *TenantHandler) Quotas(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	u := auth.FromContext(ctx)

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.Handle(w, r, apperror.BadRequest("invalid id"))
		return
	}
	if !canAccess(u, id) {
		h.Handle(w, r, apperror.Forbidden(""))
		return
	}

	quotas, err := h.service.Quotas(ctx, id)
	if err != nil {
		h.Handle(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, DataResponse{Data: quotas})
}

// ListUsers lists members of the tenant.
func (h *TenantHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	u := auth.FromContext(ctx)

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.Handle(w, r, apperror.BadRequest("invalid id"))
		return
	}
	if !canAccess(u, id) {
		h.Handle(w, r, apperror.Forbidden(""))
		return
	}

	page, limit := parsePagination(r)
	result, err := h.service.ListUsers(ctx, id, page, limit)
	if err != nil {
		h.Handle(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, PaginatedResponse{
		Data:  result.Members,
		Total: result.Total,
		Page:  int32(result.Page),
		Limit: int32(result.Limit),
	})
}

// InviteUser adds a user to the tenant.
func (h *TenantHandler) InviteUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	u := auth.FromContext(ctx)

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.Handle(w, r, apperror.BadRequest("invalid id"))
		return
	}
	if !u.SystemAdmin && !(u.TenantAdmin && u.TenantID == id) {
		h.Handle(w, r, apperror.Forbidden("tenant admin required"))
		return
	}

	var req inviteUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Handle(w, r, apperror.BadRequest("invalid request body"))
		return
	}
	v := validation.New()
	v.Required("email", req.Email).Email("email", req.Email)
	if v.HasErrors() {
		h.Handle(w, r, v.Error())
		return
	}
	if req.Role == "" {
		req.Role = domain.RoleMember
	}

	member, err := h.service.InviteUser(ctx, id, port.InviteUserInput{
		Email:       req.Email,
		Role:        req.Role,
		TenantAdmin: req.TenantAdmin,
	})
	if err != nil {
		h.Handle(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, DataResponse{Data: member})
}

// RemoveUser removes a member from the tenant.
func (h *TenantHandler) RemoveUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	u := auth.FromContext(ctx)

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.Handle(w, r, apperror.BadRequest("invalid id"))
		return
	}
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		h.Handle(w, r, apperror.BadRequest("invalid user id"))
		return
	}
	if !u.SystemAdmin && !(u.TenantAdmin && u.TenantID == id) {
		h.Handle(w, r, apperror.Forbidden("tenant admin required"))
		return
	}

	if err := h.service.RemoveUser(ctx, id, userID); err != nil {
		h.Handle(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ChangeUserRole updates a member's role and tenant-admin flag.
func (h *TenantHandler) ChangeUserRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	u := auth.FromContext(ctx)

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.Handle(w, r, apperror.BadRequest("invalid id"))
		return
	}
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		h.Handle(w, r, apperror.BadRequest("invalid user id"))
		return
	}
	if !u.SystemAdmin && !(u.TenantAdmin && u.TenantID == id) {
		h.Handle(w, r, apperror.Forbidden("tenant admin required"))
		return
	}

	var req changeRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Handle(w, r, apperror.BadRequest("invalid request body"))
		return
	}

	if err := h.service.ChangeUserRole(ctx, id, userID, req.Role, req.TenantAdmin); err != nil {
		h.Handle(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
