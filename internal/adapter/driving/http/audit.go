package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/insa-iiot/platform-core/internal/auth"
	"github.com/insa-iiot/platform-core/internal/core/port"
	"github.com/insa-iiot/platform-core/pkg/apperror"
)

// AuditHandler exposes read-only audit log retrieval. Writing an audit entry
// is never a public HTTP operation; it happens inline in the services that
// mutate tenant-scoped resources.
type AuditHandler struct {
	errorHandler
	service port.AuditService
}

// NewAuditHandler creates a new audit handler.
func NewAuditHandler(service port.AuditService, errors *apperror.Handler) *AuditHandler {
	return &AuditHandler{errorHandler{errors}, service}
}

// Routes registers audit routes.
func (h *AuditHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Get("/{id}", h.GetByID)
	return r
}

// List returns the tenant's audit log.
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	u := auth.FromContext(ctx)
	page, limit := parsePagination(r)

	result, err := h.service.List(ctx, u.TenantID, page, limit)
	if err != nil {
		h.Handle(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, PaginatedResponse{
		Data:  result.Logs,
		Total: result.Total,
		Page:  int32(result.Page),
		Limit: int32(result.Limit),
	})
}

// GetByID returns a single audit log entry.
func (h *AuditHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.Handle(w, r, apperror.BadRequest("invalid id"))
		return
	}

	log, err := h.service.GetByID(ctx, id)
	if err != nil {
		h.Handle(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, DataResponse{Data: log})
}
