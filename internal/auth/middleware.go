package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/insa-iiot/platform-core/internal/core/domain"
	"github.com/insa-iiot/platform-core/pkg/apperror"
)

type contextKey string

const userContextKey contextKey = "user"

// User holds the authenticated caller's identity for the lifetime of a
// request. TenantID is the only tenant handle on the request: TenantMiddleware
// (internal/auth/tenant.go) binds the transaction's RLS tenant from it, and
// no second handle exists to compare it against.
type User struct {
	ID          uuid.UUID
	TenantID    uuid.UUID
	TenantSlug  string
	Email       string
	Role        string
	Permissions []string
	TenantAdmin bool
	SystemAdmin bool
}

// HasPermission reports whether the user carries perm.
func (u *User) HasPermission(perm domain.Permission) bool {
	for _, p := range u.Permissions {
		if p == string(perm) {
			return true
		}
	}
	return false
}

// MarshalJSON implements json.Marshaler, mirroring the teacher's info-only
// projection of the authenticated principal.
func (u *User) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		"id":           u.ID.String(),
		"tenant_id":    u.TenantID.String(),
		"email":        u.Email,
		"role":         u.Role,
		"tenant_admin": u.TenantAdmin,
		"system_admin": u.SystemAdmin,
	})
}

// Middleware is gate 1 of the guard chain: Authenticate. It validates the
// bearer token's signature and expiry and sets the request-scoped current
// user.
type Middleware struct {
	signer    *Signer
	skipPaths []string
}

// Config configures the Authenticate gate.
type Config struct {
	SkipPaths []string // paths that don't require auth (e.g., /health)
}

// NewMiddleware creates the Authenticate gate.
func NewMiddleware(signer *Signer, config Config) *Middleware {
	return &Middleware{signer: signer, skipPaths: config.SkipPaths}
}

// Handler returns the HTTP middleware handler for gate 1.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, path := range m.skipPaths {
			if strings.HasPrefix(r.URL.Path, path) {
				next.ServeHTTP(w, r)
				return
			}
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			apperror.WriteError(w, apperror.Unauthorized("authorization required"))
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			apperror.WriteError(w, apperror.Unauthorized("invalid authorization header"))
			return
		}

		claims, err := m.signer.Verify(parts[1])
		if err != nil {
			apperror.WriteError(w, apperror.Unauthorized("invalid or expired token"))
			return
		}
		if claims.Refresh {
			// Refresh tokens authenticate only /auth/refresh, never a
			// resource operation.
			apperror.WriteError(w, apperror.Unauthorized("refresh token not valid here"))
			return
		}

		user := &User{
			ID:          claims.UserID,
			TenantID:    claims.TenantID,
			TenantSlug:  claims.TenantSlug,
			Role:        claims.Role,
			Permissions: claims.Permissions,
			TenantAdmin: claims.TenantAdmin,
			SystemAdmin: claims.SystemAdmin,
		}

		ctx := context.WithValue(r.Context(), userContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// FromContext extracts the authenticated user from the request context.
func FromContext(ctx context.Context) *User {
	if u, ok := ctx.Value(userContextKey).(*User); ok {
		return u
	}
	return nil
}

// RequireSystemAdmin is gate 3 for system-admin-only routes.
func RequireSystemAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u := FromContext(r.Context())
		if u == nil || !u.SystemAdmin {
			apperror.WriteError(w, apperror.Forbidden("system admin required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireTenantAdmin is gate 3 for tenant-admin routes; system admins also pass.
func RequireTenantAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u := FromContext(r.Context())
		if u == nil || (!u.TenantAdmin && !u.SystemAdmin) {
			apperror.WriteError(w, apperror.Forbidden("tenant admin required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetTenantID extracts the tenant id bound to the current user, or uuid.Nil.
func GetTenantID(ctx context.Context) uuid.UUID {
	user := FromContext(ctx)
	if user == nil {
		return uuid.Nil
	}
	return user.TenantID
}
