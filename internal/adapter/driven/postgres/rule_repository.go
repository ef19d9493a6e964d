package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/insa-iiot/platform-core/internal/core/domain"
)

// RuleRepository implements port.RuleRepository.
type RuleRepository struct {
	pool *pgxpool.Pool
}

// NewRuleRepository creates a new rule repository.
func NewRuleRepository(pool *pgxpool.Pool) *RuleRepository {
	return &RuleRepository{pool: pool}
}

const ruleColumns = `id, tenant_id, name, type, condition_config, actions, priority, enabled,
	cooldown_seconds, scope, trigger_workflow_id, last_evaluated_at, last_triggered_at,
	created_by, created_at, updated_at`

func (r *RuleRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*domain.Rule, error) {
	row := dbFromContext(ctx, r.pool).QueryRow(ctx, `SELECT `+ruleColumns+` FROM rules WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	return scanRule(row)
}

func (r *RuleRepository) FindByTenant(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*domain.Rule, error) {
	rows, err := dbFromContext(ctx, r.pool).Query(ctx, `SELECT `+ruleColumns+` FROM rules WHERE tenant_id = $1 ORDER BY priority DESC LIMIT $2 OFFSET $3`,
		tenantID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRules(rows)
}

func (r *RuleRepository) FindEnabledByTenant(ctx context.Context, tenantID uuid.UUID) ([]*domain.Rule, error) {
	rows, err := dbFromContext(ctx, r.pool).Query(ctx, `SELECT `+ruleColumns+` FROM rules WHERE tenant_id = $1 AND enabled = true ORDER BY priority DESC`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRules(rows)
}

func (r *RuleRepository) FindAllEnabled(ctx context.Context) ([]*domain.Rule, error) {
	rows, err := dbFromContext(ctx, r.pool).Query(ctx, `SELECT `+ruleColumns+` FROM rules WHERE enabled = true`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRules(rows)
}

func (r *RuleRepository) CountByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	var count int64
	err := dbFromContext(ctx, r.pool).QueryRow(ctx, `SELECT count(*) FROM rules WHERE tenant_id = $1`, tenantID).Scan(&count)
	return count, err
}

func (r *RuleRepository) Save(ctx context.Context, rule *domain.Rule) error {
	actions, err := json.Marshal(rule.Actions)
	if err != nil {
		return err
	}
	scope, err := json.Marshal(rule.Scope)
	if err != nil {
		return err
	}
	_, err = dbFromContext(ctx, r.pool).Exec(ctx, `
		INSERT INTO rules (id, tenant_id, name, type, condition_config, actions, priority, enabled,
			cooldown_seconds, scope, trigger_workflow_id, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		rule.ID, rule.TenantID, rule.Name, string(rule.Type), rule.ConditionConfig, actions,
		rule.Priority, rule.Enabled, rule.CooldownSeconds, scope,
		uuidToPgtype(rule.TriggerWorkflowID), uuidToPgtype(rule.CreatedBy))
	return err
}

func (r *RuleRepository) Update(ctx context.Context, rule *domain.Rule) error {
	actions, err := json.Marshal(rule.Actions)
	if err != nil {
		return err
	}
	scope, err := json.Marshal(rule.Scope)
	if err != nil {
		return err
	}
	_, err = dbFromContext(ctx, r.pool).Exec(ctx, `
		UPDATE rules SET name = $3, type = $4, condition_config = $5, actions = $6, priority = $7,
			enabled = $8, cooldown_seconds = $9, scope = $10, trigger_workflow_id = $11, updated_at = now()
		WHERE tenant_id = $1 AND id = $2`,
		rule.TenantID, rule.ID, rule.Name, string(rule.Type), rule.ConditionConfig, actions,
		rule.Priority, rule.Enabled, rule.CooldownSeconds, scope, uuidToPgtype(rule.TriggerWorkflowID))
	return err
}

func (r *RuleRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	_, err := dbFromContext(ctx, r.pool).Exec(ctx, `DELETE FROM rules WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	return err
}

func (r *RuleRepository) MarkTriggered(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := dbFromContext(ctx, r.pool).Exec(ctx, `UPDATE rules SET last_triggered_at = $2 WHERE id = $1`, id, at)
	return err
}

func (r *RuleRepository) MarkEvaluated(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := dbFromContext(ctx, r.pool).Exec(ctx, `UPDATE rules SET last_evaluated_at = $2 WHERE id = $1`, id, at)
	return err
}

func scanRule(row rowScanner) (*domain.Rule, error) {
	var rule domain.Rule
	var ruleType string
	var actionsRaw, scopeRaw []byte
	var triggerWorkflowID, createdBy pgtype.UUID

	err := row.Scan(&rule.ID, &rule.TenantID, &rule.Name, &ruleType, &rule.ConditionConfig,
		&actionsRaw, &rule.Priority, &rule.Enabled, &rule.CooldownSeconds, &scopeRaw,
		&triggerWorkflowID, &rule.LastEvaluatedAt, &rule.LastTriggeredAt,
		&createdBy, &rule.CreatedAt, &rule.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRuleNotFound
		}
		return nil, err
	}
	rule.Type = domain.RuleType(ruleType)
	rule.TriggerWorkflowID = pgtypeToUUIDPtr(triggerWorkflowID)
	rule.CreatedBy = pgtypeToUUIDPtr(createdBy)
	if len(actionsRaw) > 0 {
		if err := json.Unmarshal(actionsRaw, &rule.Actions); err != nil {
			return nil, err
		}
	}
	if len(scopeRaw) > 0 {
		if err := json.Unmarshal(scopeRaw, &rule.Scope); err != nil {
			return nil, err
		}
	}
	return &rule, nil
}

func collectRules(rows pgx.Rows) ([]*domain.Rule, error) {
	var rules []*domain.Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}
