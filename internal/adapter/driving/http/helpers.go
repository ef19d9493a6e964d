package http

import (
	"net/http"
	"strconv"

	"github.com/insa-iiot/platform-core/pkg/apperror"
)

const (
	defaultPage  = 1
	defaultLimit = 20
	maxLimit     = 200
)

// parsePagination reads page/limit query params, defaulting and clamping
// them the same way across every list endpoint.
func parsePagination(r *http.Request) (page, limit int) {
	page = defaultPage
	limit = defaultLimit

	if v := r.URL.Query().Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			page = n
		}
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	return page, limit
}

// errorHandler is embedded in every resource handler so service errors are
// mapped to the right HTTP status and 5xx errors are logged with request
// context, the way apperror.Handler already does it for the rest of the
// stack.
type errorHandler struct {
	*apperror.Handler
}
