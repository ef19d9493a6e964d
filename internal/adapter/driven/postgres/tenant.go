package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TenantContextSetter implements port.TenantContextSetter.
type TenantContextSetter struct {
	pool *pgxpool.Pool
}

// NewTenantContextSetter creates a new tenant context setter
func NewTenantContextSetter(pool *pgxpool.Pool) *TenantContextSetter {
	return &TenantContextSetter{pool: pool}
}

// SetTenantContext sets the tenant context for RLS. Called directly by
// service methods outside an HTTP request's transaction (see
// TenantMiddleware for the request-scoped path), so is_local=true reverts
// before this returns; callers still rely on each repository's own
// tenant_id filter for isolation.
func (s *TenantContextSetter) SetTenantContext(ctx context.Context, tenantID uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		"SELECT set_config('app.current_tenant_id', $1, true)",
		tenantID.String())
	return err
}
