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

// AuditRepository implements port.AuditRepository.
type AuditRepository struct {
	pool *pgxpool.Pool
}

// NewAuditRepository creates a new audit log repository.
func NewAuditRepository(pool *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{pool: pool}
}

const auditColumns = `id, tenant_id, user_id, event_type, resource_type, resource_id, action,
	old_value, new_value, ip_address, user_agent, created_at`

func (r *AuditRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.AuditLog, error) {
	row := dbFromContext(ctx, r.pool).QueryRow(ctx, `SELECT `+auditColumns+` FROM audit_logs WHERE id = $1`, id)
	return scanAuditLog(row)
}

func (r *AuditRepository) FindByTenant(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*domain.AuditLog, error) {
	rows, err := dbFromContext(ctx, r.pool).Query(ctx, `SELECT `+auditColumns+` FROM audit_logs WHERE tenant_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`, tenantID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []*domain.AuditLog
	for rows.Next() {
		l, err := scanAuditLog(rows)
		if err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

func (r *AuditRepository) CountByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	var count int64
	err := dbFromContext(ctx, r.pool).QueryRow(ctx, `SELECT count(*) FROM audit_logs WHERE tenant_id = $1`, tenantID).Scan(&count)
	return count, err
}

func (r *AuditRepository) Save(ctx context.Context, log *domain.AuditLog) error {
	_, err := dbFromContext(ctx, r.pool).Exec(ctx, `
		INSERT INTO audit_logs (id, tenant_id, user_id, event_type, resource_type, resource_id, action,
			old_value, new_value, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		log.ID, log.TenantID, uuidToPgtype(log.UserID), log.EventType, log.ResourceType,
		uuidToPgtype(log.ResourceID), log.Action, log.OldValue, log.NewValue,
		netipToText(log.IPAddress), nullString(log.UserAgent), log.CreatedAt)
	return err
}

func scanAuditLog(row rowScanner) (*domain.AuditLog, error) {
	var l domain.AuditLog
	var userID, resourceID pgtype.UUID
	var ipAddress, userAgent pgtype.Text

	err := row.Scan(&l.ID, &l.TenantID, &userID, &l.EventType, &l.ResourceType, &resourceID, &l.Action,
		&l.OldValue, &l.NewValue, &ipAddress, &userAgent, &l.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAuditLogNotFound
		}
		return nil, err
	}
	l.UserID = pgtypeToUUIDPtr(userID)
	l.ResourceID = pgtypeToUUIDPtr(resourceID)
	l.IPAddress = textToNetip(ipAddress)
	l.UserAgent = textPtr(userAgent)
	return &l, nil
}
