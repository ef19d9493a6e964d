package auth

import (
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/google/uuid"
	"github.com/insa-iiot/platform-core/internal/adapter/driven/postgres"
	"github.com/insa-iiot/platform-core/pkg/apperror"
)

// TenantMiddleware is gate 2 of the guard chain: RequireTenant. It rejects
// requests with no tenant bound to the authenticated user and, for the rest,
// sets the RLS session variable every tenant-scoped query depends on. System
// admins hitting cross-tenant routes (tenant list, tenant provisioning) carry
// no tenant and must not reach a handler that requires one, so this gate
// still runs ahead of them; routes meant to be cross-tenant are mounted
// outside it entirely rather than special-cased here.
type TenantMiddleware struct {
	pool *pgxpool.Pool
}

// NewTenantMiddleware creates the RequireTenant gate.
func NewTenantMiddleware(pool *pgxpool.Pool) *TenantMiddleware {
	return &TenantMiddleware{pool: pool}
}

// Handler returns the HTTP middleware handler for gate 2.
func (m *TenantMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := FromContext(r.Context())
		if user == nil || user.TenantID == uuid.Nil {
			apperror.WriteError(w, apperror.Forbidden("tenant context required"))
			return
		}

		ctx := r.Context()
		tx, err := m.pool.Begin(ctx)
		if err != nil {
			apperror.WriteError(w, apperror.Internal(err))
			return
		}
		committed := false
		defer func() {
			if !committed {
				tx.Rollback(ctx)
			}
		}()

		// is_local=true scopes the setting to the transaction it runs in, so
		// that transaction must stay open through every query the handler
		// issues. WithTx carries it on the request context; repositories read
		// it back instead of querying the bare pool, so RLS sees the tenant
		// id it was set for.
		if _, err := tx.Exec(ctx, "SELECT set_config('app.current_tenant_id', $1, true)", user.TenantID.String()); err != nil {
			apperror.WriteError(w, apperror.Internal(err))
			return
		}

		next.ServeHTTP(w, r.WithContext(postgres.WithTx(ctx, tx)))

		if err := tx.Commit(ctx); err != nil {
			apperror.WriteError(w, apperror.Internal(err))
			return
		}
		committed = true
	})
}
