package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/insa-iiot/platform-core/internal/core/domain"
)

// TenantUserRepository implements port.TenantUserRepository.
type TenantUserRepository struct {
	pool *pgxpool.Pool
}

// NewTenantUserRepository creates a new tenant membership repository.
func NewTenantUserRepository(pool *pgxpool.Pool) *TenantUserRepository {
	return &TenantUserRepository{pool: pool}
}

func (r *TenantUserRepository) Find(ctx context.Context, tenantID, userID uuid.UUID) (*domain.TenantUser, error) {
	row := dbFromContext(ctx, r.pool).QueryRow(ctx, `
		SELECT tenant_id, user_id, role, tenant_admin, joined_at
		FROM tenant_users WHERE tenant_id = $1 AND user_id = $2`, tenantID, userID)
	return scanTenantUser(row)
}

func (r *TenantUserRepository) ListByTenant(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*domain.TenantUser, error) {
	rows, err := dbFromContext(ctx, r.pool).Query(ctx, `
		SELECT tenant_id, user_id, role, tenant_admin, joined_at
		FROM tenant_users WHERE tenant_id = $1 ORDER BY joined_at ASC LIMIT $2 OFFSET $3`,
		tenantID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTenantUsers(rows)
}

func (r *TenantUserRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.TenantUser, error) {
	rows, err := dbFromContext(ctx, r.pool).Query(ctx, `
		SELECT tenant_id, user_id, role, tenant_admin, joined_at
		FROM tenant_users WHERE user_id = $1 ORDER BY joined_at ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTenantUsers(rows)
}

func (r *TenantUserRepository) CountByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	var count int64
	err := dbFromContext(ctx, r.pool).QueryRow(ctx, `SELECT count(*) FROM tenant_users WHERE tenant_id = $1`, tenantID).Scan(&count)
	return count, err
}

func (r *TenantUserRepository) CountTenantAdmins(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	var count int64
	err := dbFromContext(ctx, r.pool).QueryRow(ctx, `
		SELECT count(*) FROM tenant_users WHERE tenant_id = $1 AND tenant_admin = true`,
		tenantID).Scan(&count)
	return count, err
}

func (r *TenantUserRepository) Save(ctx context.Context, tu *domain.TenantUser) error {
	_, err := dbFromContext(ctx, r.pool).Exec(ctx, `
		INSERT INTO tenant_users (tenant_id, user_id, role, tenant_admin)
		VALUES ($1, $2, $3, $4)`,
		tu.TenantID, tu.UserID, tu.Role, tu.TenantAdmin)
	return err
}

func (r *TenantUserRepository) UpdateRole(ctx context.Context, tenantID, userID uuid.UUID, role string, tenantAdmin bool) error {
	_, err := dbFromContext(ctx, r.pool).Exec(ctx, `
		UPDATE tenant_users SET role = $3, tenant_admin = $4
		WHERE tenant_id = $1 AND user_id = $2`,
		tenantID, userID, role, tenantAdmin)
	return err
}

func (r *TenantUserRepository) Delete(ctx context.Context, tenantID, userID uuid.UUID) error {
	_, err := dbFromContext(ctx, r.pool).Exec(ctx, `
		DELETE FROM tenant_users WHERE tenant_id = $1 AND user_id = $2`, tenantID, userID)
	return err
}

func scanTenantUser(row rowScanner) (*domain.TenantUser, error) {
	var tu domain.TenantUser
	err := row.Scan(&tu.TenantID, &tu.UserID, &tu.Role, &tu.TenantAdmin, &tu.JoinedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTenantContextRequired
		}
		return nil, err
	}
	return &tu, nil
}

func collectTenantUsers(rows pgx.Rows) ([]*domain.TenantUser, error) {
	var users []*domain.TenantUser
	for rows.Next() {
		tu, err := scanTenantUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, tu)
	}
	return users, rows.Err()
}
