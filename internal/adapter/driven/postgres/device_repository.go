package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/insa-iiot/platform-core/internal/core/domain"
)

// DeviceRepository implements port.DeviceRepository.
type DeviceRepository struct {
	pool *pgxpool.Pool
}

// NewDeviceRepository creates a new device repository.
func NewDeviceRepository(pool *pgxpool.Pool) *DeviceRepository {
	return &DeviceRepository{pool: pool}
}

func (r *DeviceRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*domain.Device, error) {
	row := dbFromContext(ctx, r.pool).QueryRow(ctx, `
		SELECT id, tenant_id, name, type, protocol, status, metadata, created_at, updated_at, last_seen_at
		FROM devices WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	return scanDevice(row)
}

func (r *DeviceRepository) FindByIDAnyTenant(ctx context.Context, id uuid.UUID) (*domain.Device, error) {
	row := dbFromContext(ctx, r.pool).QueryRow(ctx, `
		SELECT id, tenant_id, name, type, protocol, status, metadata, created_at, updated_at, last_seen_at
		FROM devices WHERE id = $1`, id)
	return scanDevice(row)
}

func (r *DeviceRepository) FindByTenant(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*domain.Device, error) {
	rows, err := dbFromContext(ctx, r.pool).Query(ctx, `
		SELECT id, tenant_id, name, type, protocol, status, metadata, created_at, updated_at, last_seen_at
		FROM devices WHERE tenant_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		tenantID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var devices []*domain.Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		devices = append(devices, d)
	}
	return devices, rows.Err()
}

func (r *DeviceRepository) CountByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	var count int64
	err := dbFromContext(ctx, r.pool).QueryRow(ctx, `SELECT count(*) FROM devices WHERE tenant_id = $1`, tenantID).Scan(&count)
	return count, err
}

func (r *DeviceRepository) Save(ctx context.Context, device *domain.Device) error {
	_, err := dbFromContext(ctx, r.pool).Exec(ctx, `
		INSERT INTO devices (id, tenant_id, name, type, protocol, status, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		device.ID, device.TenantID, device.Name, device.Type, string(device.Protocol),
		string(device.Status), device.Metadata)
	return err
}

func (r *DeviceRepository) Update(ctx context.Context, device *domain.Device) error {
	_, err := dbFromContext(ctx, r.pool).Exec(ctx, `
		UPDATE devices SET name = $3, type = $4, protocol = $5, status = $6, metadata = $7, updated_at = now()
		WHERE tenant_id = $1 AND id = $2`,
		device.TenantID, device.ID, device.Name, device.Type, string(device.Protocol),
		string(device.Status), device.Metadata)
	return err
}

func (r *DeviceRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	_, err := dbFromContext(ctx, r.pool).Exec(ctx, `DELETE FROM devices WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	return err
}

func (r *DeviceRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.DeviceStatus, seenAt time.Time) error {
	_, err := dbFromContext(ctx, r.pool).Exec(ctx, `
		UPDATE devices SET status = $2, last_seen_at = $3, updated_at = now() WHERE id = $1`,
		id, string(status), seenAt)
	return err
}

func scanDevice(row rowScanner) (*domain.Device, error) {
	var d domain.Device
	var protocol, status string
	var lastSeenAt *time.Time
	err := row.Scan(&d.ID, &d.TenantID, &d.Name, &d.Type, &protocol, &status, &d.Metadata,
		&d.CreatedAt, &d.UpdatedAt, &lastSeenAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDeviceNotFound
		}
		return nil, err
	}
	d.Protocol = domain.DeviceProtocol(protocol)
	d.Status = domain.DeviceStatus(status)
	d.LastSeenAt = lastSeenAt
	return &d, nil
}
