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

// AlertRepository implements port.AlertRepository.
type AlertRepository struct {
	pool *pgxpool.Pool
}

// NewAlertRepository creates a new alert repository.
func NewAlertRepository(pool *pgxpool.Pool) *AlertRepository {
	return &AlertRepository{pool: pool}
}

const alertColumns = `id, tenant_id, device_id, rule_id, severity, message, metadata, created_at,
	escalation_policy_id, current_escalation_tier, last_escalation_at, grouped_alert_id,
	duplicate_count, external_source_key, remediation_execution_id`

func (r *AlertRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*domain.Alert, error) {
	row := dbFromContext(ctx, r.pool).QueryRow(ctx, `SELECT `+alertColumns+` FROM alerts WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	return scanAlert(row)
}

func (r *AlertRepository) FindByTenant(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*domain.Alert, error) {
	rows, err := dbFromContext(ctx, r.pool).Query(ctx, `SELECT `+alertColumns+` FROM alerts WHERE tenant_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`, tenantID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAlerts(rows)
}

func (r *AlertRepository) FindActiveByRuleAndDevice(ctx context.Context, tenantID, deviceID, ruleID uuid.UUID) (*domain.Alert, error) {
	row := dbFromContext(ctx, r.pool).QueryRow(ctx, `
		SELECT `+alertColumns+` FROM alerts a
		WHERE a.tenant_id = $1 AND a.device_id = $2 AND a.rule_id = $3
		AND a.grouped_alert_id IS NULL
		AND (
			SELECT s.state FROM alert_states s WHERE s.alert_id = a.id
			ORDER BY s.changed_at DESC LIMIT 1
		) != 'resolved'
		ORDER BY a.created_at DESC LIMIT 1`, tenantID, deviceID, ruleID)
	return scanAlert(row)
}

func (r *AlertRepository) FindEscalationCandidates(ctx context.Context) ([]*domain.Alert, error) {
	rows, err := dbFromContext(ctx, r.pool).Query(ctx, `
		SELECT `+alertColumns+` FROM alerts a
		WHERE a.escalation_policy_id IS NOT NULL
		AND a.grouped_alert_id IS NULL
		AND NOT EXISTS (
			SELECT 1 FROM alert_states s WHERE s.alert_id = a.id AND s.state = 'resolved'
		)`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAlerts(rows)
}

func (r *AlertRepository) FindOpenForSLA(ctx context.Context) ([]*domain.Alert, error) {
	rows, err := dbFromContext(ctx, r.pool).Query(ctx, `
		SELECT `+alertColumns+` FROM alerts a
		JOIN alert_slas sla ON sla.alert_id = a.id
		WHERE a.grouped_alert_id IS NULL
		AND (NOT sla.tta_breached OR NOT sla.ttr_breached)
		AND (
			SELECT s.state FROM alert_states s WHERE s.alert_id = a.id
			ORDER BY s.changed_at DESC LIMIT 1
		) != 'resolved'`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAlerts(rows)
}

func (r *AlertRepository) CountByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	var count int64
	err := dbFromContext(ctx, r.pool).QueryRow(ctx, `SELECT count(*) FROM alerts WHERE tenant_id = $1`, tenantID).Scan(&count)
	return count, err
}

func (r *AlertRepository) Save(ctx context.Context, alert *domain.Alert) error {
	_, err := dbFromContext(ctx, r.pool).Exec(ctx, `
		INSERT INTO alerts (id, tenant_id, device_id, rule_id, severity, message, metadata, created_at,
			escalation_policy_id, current_escalation_tier, last_escalation_at, grouped_alert_id,
			duplicate_count, external_source_key, remediation_execution_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		alert.ID, alert.TenantID, alert.DeviceID, uuidToPgtype(alert.RuleID), string(alert.Severity),
		alert.Message, alert.Metadata, alert.CreatedAt, uuidToPgtype(alert.EscalationPolicyID),
		alert.CurrentEscalationTier, alert.LastEscalationAt, uuidToPgtype(alert.GroupedAlertID),
		alert.DuplicateCount, nullString(alert.ExternalSourceKey), uuidToPgtype(alert.RemediationExecutionID))
	return err
}

func (r *AlertRepository) Update(ctx context.Context, alert *domain.Alert) error {
	_, err := dbFromContext(ctx, r.pool).Exec(ctx, `
		UPDATE alerts SET severity = $3, message = $4, metadata = $5, escalation_policy_id = $6,
			current_escalation_tier = $7, last_escalation_at = $8, grouped_alert_id = $9,
			duplicate_count = $10, remediation_execution_id = $11
		WHERE tenant_id = $1 AND id = $2`,
		alert.TenantID, alert.ID, string(alert.Severity), alert.Message, alert.Metadata,
		uuidToPgtype(alert.EscalationPolicyID), alert.CurrentEscalationTier, alert.LastEscalationAt,
		uuidToPgtype(alert.GroupedAlertID), alert.DuplicateCount, uuidToPgtype(alert.RemediationExecutionID))
	return err
}

func (r *AlertRepository) CurrentState(ctx context.Context, alertID uuid.UUID) (*domain.AlertState, error) {
	row := dbFromContext(ctx, r.pool).QueryRow(ctx, `
		SELECT id, alert_id, state, changed_by, changed_at, note
		FROM alert_states WHERE alert_id = $1 ORDER BY changed_at DESC LIMIT 1`, alertID)
	return scanAlertState(row)
}

func (r *AlertRepository) History(ctx context.Context, alertID uuid.UUID) ([]*domain.AlertState, error) {
	rows, err := dbFromContext(ctx, r.pool).Query(ctx, `
		SELECT id, alert_id, state, changed_by, changed_at, note
		FROM alert_states WHERE alert_id = $1 ORDER BY changed_at ASC`, alertID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var states []*domain.AlertState
	for rows.Next() {
		st, err := scanAlertState(rows)
		if err != nil {
			return nil, err
		}
		states = append(states, st)
	}
	return states, rows.Err()
}

// AppendState inserts a state row transactionally. When update is non-nil,
// the alert row is locked with SELECT ... FOR UPDATE first so the in-memory
// mutation `update` applies and a subsequent Update call lands on a
// consistent view; a nil update skips the lock entirely and just inserts.
func (r *AlertRepository) AppendState(ctx context.Context, alertID uuid.UUID, state *domain.AlertState, update func(a *domain.Alert) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if update != nil {
		row := tx.QueryRow(ctx, `SELECT `+alertColumns+` FROM alerts WHERE id = $1 FOR UPDATE`, alertID)
		alert, err := scanAlert(row)
		if err != nil {
			return err
		}
		if err := update(alert); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			UPDATE alerts SET severity = $2, message = $3, metadata = $4, escalation_policy_id = $5,
				current_escalation_tier = $6, last_escalation_at = $7, grouped_alert_id = $8,
				duplicate_count = $9, remediation_execution_id = $10
			WHERE id = $1`,
			alert.ID, string(alert.Severity), alert.Message, alert.Metadata,
			uuidToPgtype(alert.EscalationPolicyID), alert.CurrentEscalationTier, alert.LastEscalationAt,
			uuidToPgtype(alert.GroupedAlertID), alert.DuplicateCount, uuidToPgtype(alert.RemediationExecutionID)); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO alert_states (id, alert_id, state, changed_by, changed_at, note)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		state.ID, alertID, string(state.State), state.ChangedBy, state.ChangedAt, nullString(state.Note)); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *AlertRepository) SLA(ctx context.Context, alertID uuid.UUID) (*domain.AlertSLA, error) {
	row := dbFromContext(ctx, r.pool).QueryRow(ctx, `
		SELECT alert_id, severity, tta_target_minutes, ttr_target_minutes, tta_actual_minutes,
			ttr_actual_minutes, tta_breached, ttr_breached, breach_notified_at, created_at
		FROM alert_slas WHERE alert_id = $1`, alertID)
	return scanAlertSLA(row)
}

func (r *AlertRepository) SaveSLA(ctx context.Context, sla *domain.AlertSLA) error {
	_, err := dbFromContext(ctx, r.pool).Exec(ctx, `
		INSERT INTO alert_slas (alert_id, severity, tta_target_minutes, ttr_target_minutes, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		sla.AlertID, string(sla.Severity), sla.TTATargetMinutes, sla.TTRTargetMinutes, sla.CreatedAt)
	return err
}

func (r *AlertRepository) UpdateSLA(ctx context.Context, sla *domain.AlertSLA) error {
	_, err := dbFromContext(ctx, r.pool).Exec(ctx, `
		UPDATE alert_slas SET tta_actual_minutes = $2, ttr_actual_minutes = $3, tta_breached = $4,
			ttr_breached = $5, breach_notified_at = $6
		WHERE alert_id = $1`,
		sla.AlertID, nullInt4(sla.TTAActualMinutes), nullInt4(sla.TTRActualMinutes),
		sla.TTABreached, sla.TTRBreached, sla.BreachNotifiedAt)
	return err
}

func scanAlert(row rowScanner) (*domain.Alert, error) {
	var a domain.Alert
	var severity string
	var ruleID, escalationPolicyID, groupedAlertID, remediationExecutionID pgtype.UUID
	var externalSourceKey pgtype.Text

	err := row.Scan(&a.ID, &a.TenantID, &a.DeviceID, &ruleID, &severity, &a.Message, &a.Metadata,
		&a.CreatedAt, &escalationPolicyID, &a.CurrentEscalationTier, &a.LastEscalationAt,
		&groupedAlertID, &a.DuplicateCount, &externalSourceKey, &remediationExecutionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAlertNotFound
		}
		return nil, err
	}
	a.Severity = domain.AlertSeverity(severity)
	a.RuleID = pgtypeToUUIDPtr(ruleID)
	a.EscalationPolicyID = pgtypeToUUIDPtr(escalationPolicyID)
	a.GroupedAlertID = pgtypeToUUIDPtr(groupedAlertID)
	a.RemediationExecutionID = pgtypeToUUIDPtr(remediationExecutionID)
	a.ExternalSourceKey = textPtr(externalSourceKey)
	return &a, nil
}

func collectAlerts(rows pgx.Rows) ([]*domain.Alert, error) {
	var alerts []*domain.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

func scanAlertState(row rowScanner) (*domain.AlertState, error) {
	var st domain.AlertState
	var state string
	var note pgtype.Text
	err := row.Scan(&st.ID, &st.AlertID, &state, &st.ChangedBy, &st.ChangedAt, &note)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	st.State = domain.LifecycleState(state)
	st.Note = textPtr(note)
	return &st, nil
}

func scanAlertSLA(row rowScanner) (*domain.AlertSLA, error) {
	var sla domain.AlertSLA
	var severity string
	var ttaActual, ttrActual pgtype.Int4
	err := row.Scan(&sla.AlertID, &severity, &sla.TTATargetMinutes, &sla.TTRTargetMinutes,
		&ttaActual, &ttrActual, &sla.TTABreached, &sla.TTRBreached, &sla.BreachNotifiedAt, &sla.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	sla.Severity = domain.AlertSeverity(severity)
	sla.TTAActualMinutes = int4Ptr(ttaActual)
	sla.TTRActualMinutes = int4Ptr(ttrActual)
	return &sla, nil
}
