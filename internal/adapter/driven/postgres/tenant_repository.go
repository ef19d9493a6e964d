package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/insa-iiot/platform-core/internal/core/domain"
)

// TenantRepository implements port.TenantRepository.
type TenantRepository struct {
	pool *pgxpool.Pool
}

// NewTenantRepository creates a new tenant repository.
func NewTenantRepository(pool *pgxpool.Pool) *TenantRepository {
	return &TenantRepository{pool: pool}
}

func (r *TenantRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Tenant, error) {
	row := dbFromContext(ctx, r.pool).QueryRow(ctx, `
		SELECT id, slug, display_name, tier, max_devices, max_users, max_telemetry_per_day, max_retention_days, created_at, updated_at
		FROM tenants WHERE id = $1`, id)
	return scanTenant(row)
}

func (r *TenantRepository) FindBySlug(ctx context.Context, slug string) (*domain.Tenant, error) {
	row := dbFromContext(ctx, r.pool).QueryRow(ctx, `
		SELECT id, slug, display_name, tier, max_devices, max_users, max_telemetry_per_day, max_retention_days, created_at, updated_at
		FROM tenants WHERE slug = $1`, slug)
	return scanTenant(row)
}

func (r *TenantRepository) List(ctx context.Context, limit, offset int) ([]*domain.Tenant, error) {
	rows, err := dbFromContext(ctx, r.pool).Query(ctx, `
		SELECT id, slug, display_name, tier, max_devices, max_users, max_telemetry_per_day, max_retention_days, created_at, updated_at
		FROM tenants ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tenants []*domain.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		tenants = append(tenants, t)
	}
	return tenants, rows.Err()
}

func (r *TenantRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := dbFromContext(ctx, r.pool).QueryRow(ctx, `SELECT count(*) FROM tenants`).Scan(&count)
	return count, err
}

func (r *TenantRepository) Save(ctx context.Context, tenant *domain.Tenant) error {
	_, err := dbFromContext(ctx, r.pool).Exec(ctx, `
		INSERT INTO tenants (id, slug, display_name, tier, max_devices, max_users, max_telemetry_per_day, max_retention_days)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		tenant.ID, tenant.Slug, tenant.DisplayName, string(tenant.Tier),
		nullInt4(tenant.Caps.MaxDevices), nullInt4(tenant.Caps.MaxUsers),
		nullInt8(tenant.Caps.MaxTelemetryPerDay), nullInt4(tenant.Caps.MaxRetentionDays))
	return err
}

func (r *TenantRepository) Update(ctx context.Context, tenant *domain.Tenant) error {
	_, err := dbFromContext(ctx, r.pool).Exec(ctx, `
		UPDATE tenants SET display_name = $2, tier = $3, max_devices = $4, max_users = $5,
			max_telemetry_per_day = $6, max_retention_days = $7, updated_at = now()
		WHERE id = $1`,
		tenant.ID, tenant.DisplayName, string(tenant.Tier),
		nullInt4(tenant.Caps.MaxDevices), nullInt4(tenant.Caps.MaxUsers),
		nullInt8(tenant.Caps.MaxTelemetryPerDay), nullInt4(tenant.Caps.MaxRetentionDays))
	return err
}

func (r *TenantRepository) Stats(ctx context.Context, tenantID uuid.UUID) (*domain.TenantStats, error) {
	stats := &domain.TenantStats{TenantID: tenantID}
	err := dbFromContext(ctx, r.pool).QueryRow(ctx, `
		SELECT
			(SELECT count(*) FROM devices WHERE tenant_id = $1),
			(SELECT count(*) FROM tenant_users WHERE tenant_id = $1),
			(SELECT count(*) FROM telemetry_points WHERE tenant_id = $1 AND timestamp >= date_trunc('day', now())),
			(SELECT count(*) FROM telemetry_points WHERE tenant_id = $1)`,
		tenantID).Scan(&stats.DeviceCount, &stats.UserCount, &stats.TelemetryToday, &stats.TelemetryAllTime)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTenant(row rowScanner) (*domain.Tenant, error) {
	var t domain.Tenant
	var tier string
	var md, mu, mr pgtype.Int4
	var mt pgtype.Int8
	err := row.Scan(&t.ID, &t.Slug, &t.DisplayName, &tier, &md, &mu, &mt, &mr, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTenantNotFound
		}
		return nil, err
	}
	t.Tier = domain.TenantTier(tier)
	t.Caps = domain.ResourceCaps{
		MaxDevices:         int4Ptr(md),
		MaxUsers:           int4Ptr(mu),
		MaxTelemetryPerDay: int8Ptr(mt),
		MaxRetentionDays:   int4Ptr(mr),
	}
	return &t, nil
}
