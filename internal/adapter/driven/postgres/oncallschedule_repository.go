package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/insa-iiot/platform-core/internal/core/domain"
)

// OnCallScheduleRepository implements port.OnCallScheduleRepository. Rotation
// and overrides are stored as jsonb; schedules are small, infrequently
// written, and always read in full by the resolver.
type OnCallScheduleRepository struct {
	pool *pgxpool.Pool
}

// NewOnCallScheduleRepository creates a new on-call schedule repository.
func NewOnCallScheduleRepository(pool *pgxpool.Pool) *OnCallScheduleRepository {
	return &OnCallScheduleRepository{pool: pool}
}

func (r *OnCallScheduleRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*domain.OnCallSchedule, error) {
	row := dbFromContext(ctx, r.pool).QueryRow(ctx, `
		SELECT id, tenant_id, name, rotation, overrides, timezone
		FROM oncall_schedules WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	return scanOnCallSchedule(row)
}

func (r *OnCallScheduleRepository) FindByTenant(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*domain.OnCallSchedule, error) {
	rows, err := dbFromContext(ctx, r.pool).Query(ctx, `
		SELECT id, tenant_id, name, rotation, overrides, timezone
		FROM oncall_schedules WHERE tenant_id = $1 ORDER BY name ASC LIMIT $2 OFFSET $3`,
		tenantID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var schedules []*domain.OnCallSchedule
	for rows.Next() {
		s, err := scanOnCallSchedule(rows)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, s)
	}
	return schedules, rows.Err()
}

func (r *OnCallScheduleRepository) Save(ctx context.Context, s *domain.OnCallSchedule) error {
	rotation, err := json.Marshal(s.Rotation)
	if err != nil {
		return err
	}
	overrides, err := json.Marshal(s.Overrides)
	if err != nil {
		return err
	}
	_, err = dbFromContext(ctx, r.pool).Exec(ctx, `
		INSERT INTO oncall_schedules (id, tenant_id, name, rotation, overrides, timezone)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		s.ID, s.TenantID, s.Name, rotation, overrides, s.Timezone)
	return err
}

func (r *OnCallScheduleRepository) Update(ctx context.Context, s *domain.OnCallSchedule) error {
	rotation, err := json.Marshal(s.Rotation)
	if err != nil {
		return err
	}
	overrides, err := json.Marshal(s.Overrides)
	if err != nil {
		return err
	}
	_, err = dbFromContext(ctx, r.pool).Exec(ctx, `
		UPDATE oncall_schedules SET name = $3, rotation = $4, overrides = $5, timezone = $6
		WHERE tenant_id = $1 AND id = $2`,
		s.TenantID, s.ID, s.Name, rotation, overrides, s.Timezone)
	return err
}

func (r *OnCallScheduleRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	_, err := dbFromContext(ctx, r.pool).Exec(ctx, `DELETE FROM oncall_schedules WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	return err
}

func scanOnCallSchedule(row rowScanner) (*domain.OnCallSchedule, error) {
	var s domain.OnCallSchedule
	var rotationRaw, overridesRaw []byte
	err := row.Scan(&s.ID, &s.TenantID, &s.Name, &rotationRaw, &overridesRaw, &s.Timezone)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrOnCallScheduleNotFound
		}
		return nil, err
	}
	if len(rotationRaw) > 0 {
		if err := json.Unmarshal(rotationRaw, &s.Rotation); err != nil {
			return nil, err
		}
	}
	if len(overridesRaw) > 0 {
		if err := json.Unmarshal(overridesRaw, &s.Overrides); err != nil {
			return nil, err
		}
	}
	return &s, nil
}
