package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/insa-iiot/platform-core/internal/core/domain"
)

// AlertGroupRepository implements port.AlertGroupRepository.
//
// A partial unique index on (tenant_id, group_key) WHERE status = 'active'
// makes the upsert below race-free: two concurrent first-occurrences of the
// same key both attempt the INSERT, Postgres serializes them against the
// unique index, and the loser's ON CONFLICT DO NOTHING leaves it with zero
// rows affected. UpsertOccurrence checks that and re-reads the winner's row
// rather than trusting its own fabricated group as the result — otherwise
// the loser would report a phantom group that was never actually inserted.
type AlertGroupRepository struct {
	pool *pgxpool.Pool
}

// NewAlertGroupRepository creates a new alert group repository.
func NewAlertGroupRepository(pool *pgxpool.Pool) *AlertGroupRepository {
	return &AlertGroupRepository{pool: pool}
}

func (r *AlertGroupRepository) UpsertOccurrence(ctx context.Context, tenantID uuid.UUID, key domain.GroupKey, representativeAlertID uuid.UUID, now time.Time, window time.Duration) (*domain.AlertGroup, bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback(ctx)

	existing, err := findActiveGroupForUpdate(ctx, tx, tenantID, key)
	if err != nil && !errors.Is(err, domain.ErrAlertGroupNotFound) {
		return nil, false, err
	}

	if existing != nil && existing.WithinGroupingWindow(now, window) {
		existing.RecordOccurrence(now)
		if _, err := tx.Exec(ctx, `
			UPDATE alert_groups SET occurrence_count = $2, last_occurrence_at = $3
			WHERE id = $1`, existing.ID, existing.OccurrenceCount, existing.LastOccurrenceAt); err != nil {
			return nil, false, err
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}

	if existing != nil {
		if _, err := tx.Exec(ctx, `UPDATE alert_groups SET status = 'closed' WHERE id = $1`, existing.ID); err != nil {
			return nil, false, err
		}
	}

	group := &domain.AlertGroup{
		ID:                    uuid.New(),
		TenantID:              tenantID,
		DeviceID:              key.DeviceID,
		RuleID:                key.RuleID,
		ExternalSourceKey:     key.ExternalSourceKey,
		Severity:              key.Severity,
		FirstOccurrenceAt:     now,
		LastOccurrenceAt:      now,
		OccurrenceCount:       1,
		Status:                domain.AlertGroupStatusActive,
		RepresentativeAlertID: representativeAlertID,
	}
	tag, err := tx.Exec(ctx, `
		INSERT INTO alert_groups (id, tenant_id, device_id, rule_id, external_source_key, severity,
			first_occurrence_at, last_occurrence_at, occurrence_count, status, representative_alert_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (tenant_id, device_id, severity, (coalesce(rule_id::text, '')), (coalesce(external_source_key, '')))
		WHERE status = 'active' DO NOTHING`,
		group.ID, group.TenantID, group.DeviceID, uuidToPgtype(group.RuleID), nullString(group.ExternalSourceKey),
		string(group.Severity), group.FirstOccurrenceAt, group.LastOccurrenceAt, group.OccurrenceCount,
		string(group.Status), group.RepresentativeAlertID)
	if err != nil {
		return nil, false, err
	}

	if tag.RowsAffected() == 0 {
		// Lost the race: another transaction inserted the active row for this
		// key between our findActiveGroupForUpdate miss and this INSERT. The
		// unique index serialized us behind it, so it has definitely
		// committed by now and FOR UPDATE will find it.
		winner, err := findActiveGroupForUpdate(ctx, tx, tenantID, key)
		if err != nil {
			return nil, false, err
		}
		winner.RecordOccurrence(now)
		if _, err := tx.Exec(ctx, `
			UPDATE alert_groups SET occurrence_count = $2, last_occurrence_at = $3
			WHERE id = $1`, winner.ID, winner.OccurrenceCount, winner.LastOccurrenceAt); err != nil {
			return nil, false, err
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, false, err
		}
		return winner, false, nil
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, err
	}
	return group, true, nil
}

func (r *AlertGroupRepository) FindActiveByKey(ctx context.Context, tenantID uuid.UUID, key domain.GroupKey) (*domain.AlertGroup, error) {
	row := dbFromContext(ctx, r.pool).QueryRow(ctx, `
		SELECT id, tenant_id, device_id, rule_id, external_source_key, severity,
			first_occurrence_at, last_occurrence_at, occurrence_count, status, representative_alert_id
		FROM alert_groups
		WHERE tenant_id = $1 AND device_id = $2 AND severity = $3 AND status = 'active'
		AND rule_id IS NOT DISTINCT FROM $4 AND external_source_key IS NOT DISTINCT FROM $5`,
		tenantID, key.DeviceID, string(key.Severity), uuidToPgtype(key.RuleID), nullString(key.ExternalSourceKey))
	return scanAlertGroup(row)
}

func findActiveGroupForUpdate(ctx context.Context, tx pgx.Tx, tenantID uuid.UUID, key domain.GroupKey) (*domain.AlertGroup, error) {
	row := tx.QueryRow(ctx, `
		SELECT id, tenant_id, device_id, rule_id, external_source_key, severity,
			first_occurrence_at, last_occurrence_at, occurrence_count, status, representative_alert_id
		FROM alert_groups
		WHERE tenant_id = $1 AND device_id = $2 AND severity = $3 AND status = 'active'
		AND rule_id IS NOT DISTINCT FROM $4 AND external_source_key IS NOT DISTINCT FROM $5
		FOR UPDATE`,
		tenantID, key.DeviceID, string(key.Severity), uuidToPgtype(key.RuleID), nullString(key.ExternalSourceKey))
	return scanAlertGroup(row)
}

func scanAlertGroup(row rowScanner) (*domain.AlertGroup, error) {
	var g domain.AlertGroup
	var severity, status string
	var ruleID pgtype.UUID
	var externalSourceKey pgtype.Text

	err := row.Scan(&g.ID, &g.TenantID, &g.DeviceID, &ruleID, &externalSourceKey, &severity,
		&g.FirstOccurrenceAt, &g.LastOccurrenceAt, &g.OccurrenceCount, &status, &g.RepresentativeAlertID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAlertGroupNotFound
		}
		return nil, err
	}
	g.Severity = domain.AlertSeverity(severity)
	g.Status = domain.AlertGroupStatus(status)
	g.RuleID = pgtypeToUUIDPtr(ruleID)
	g.ExternalSourceKey = textPtr(externalSourceKey)
	return &g, nil
}
