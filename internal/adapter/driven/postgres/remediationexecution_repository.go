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

// RemediationExecutionRepository implements port.RemediationExecutionRepository.
type RemediationExecutionRepository struct {
	pool *pgxpool.Pool
}

// NewRemediationExecutionRepository creates a new remediation execution repository.
func NewRemediationExecutionRepository(pool *pgxpool.Pool) *RemediationExecutionRepository {
	return &RemediationExecutionRepository{pool: pool}
}

const remediationExecutionColumns = `id, tenant_id, workflow_id, alert_id, temporal_workflow_id,
	temporal_run_id, status, input, output, error, started_at, completed_at, created_at, triggered_by`

func (r *RemediationExecutionRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.RemediationExecution, error) {
	row := dbFromContext(ctx, r.pool).QueryRow(ctx, `SELECT `+remediationExecutionColumns+` FROM remediation_executions WHERE id = $1`, id)
	return scanRemediationExecution(row)
}

func (r *RemediationExecutionRepository) FindByTenant(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*domain.RemediationExecution, error) {
	rows, err := dbFromContext(ctx, r.pool).Query(ctx, `SELECT `+remediationExecutionColumns+` FROM remediation_executions
		WHERE tenant_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, tenantID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRemediationExecutions(rows)
}

func (r *RemediationExecutionRepository) FindByWorkflow(ctx context.Context, workflowID uuid.UUID, limit, offset int) ([]*domain.RemediationExecution, error) {
	rows, err := dbFromContext(ctx, r.pool).Query(ctx, `SELECT `+remediationExecutionColumns+` FROM remediation_executions
		WHERE workflow_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, workflowID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRemediationExecutions(rows)
}

func (r *RemediationExecutionRepository) CountByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	var count int64
	err := dbFromContext(ctx, r.pool).QueryRow(ctx, `SELECT count(*) FROM remediation_executions WHERE tenant_id = $1`, tenantID).Scan(&count)
	return count, err
}

func (r *RemediationExecutionRepository) Save(ctx context.Context, execution *domain.RemediationExecution) error {
	_, err := dbFromContext(ctx, r.pool).Exec(ctx, `
		INSERT INTO remediation_executions (id, tenant_id, workflow_id, alert_id, status, input,
			created_at, triggered_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		execution.ID, execution.TenantID, execution.WorkflowID, uuidToPgtype(execution.AlertID),
		string(execution.Status), execution.Input, execution.CreatedAt, nullString(execution.TriggeredBy))
	return err
}

func (r *RemediationExecutionRepository) Update(ctx context.Context, execution *domain.RemediationExecution) error {
	_, err := dbFromContext(ctx, r.pool).Exec(ctx, `
		UPDATE remediation_executions SET temporal_workflow_id = $2, temporal_run_id = $3, status = $4,
			output = $5, error = $6, started_at = $7, completed_at = $8
		WHERE id = $1`,
		execution.ID, nullString(execution.TemporalWorkflowID), nullString(execution.TemporalRunID),
		string(execution.Status), execution.Output, nullString(execution.Error),
		execution.StartedAt, execution.CompletedAt)
	return err
}

func (r *RemediationExecutionRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.RemediationExecutionStatus, errMsg *string) error {
	_, err := dbFromContext(ctx, r.pool).Exec(ctx, `
		UPDATE remediation_executions SET status = $2, error = $3 WHERE id = $1`,
		id, string(status), nullString(errMsg))
	return err
}

func (r *RemediationExecutionRepository) UpdateTemporalIDs(ctx context.Context, id uuid.UUID, temporalWorkflowID, temporalRunID string) error {
	_, err := dbFromContext(ctx, r.pool).Exec(ctx, `
		UPDATE remediation_executions SET temporal_workflow_id = $2, temporal_run_id = $3 WHERE id = $1`,
		id, temporalWorkflowID, temporalRunID)
	return err
}

func scanRemediationExecution(row rowScanner) (*domain.RemediationExecution, error) {
	var e domain.RemediationExecution
	var status string
	var alertID pgtype.UUID
	var temporalWorkflowID, temporalRunID, errMsg, triggeredBy pgtype.Text

	err := row.Scan(&e.ID, &e.TenantID, &e.WorkflowID, &alertID, &temporalWorkflowID, &temporalRunID,
		&status, &e.Input, &e.Output, &errMsg, &e.StartedAt, &e.CompletedAt, &e.CreatedAt, &triggeredBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrExecutionNotFound
		}
		return nil, err
	}
	e.Status = domain.RemediationExecutionStatus(status)
	e.AlertID = pgtypeToUUIDPtr(alertID)
	e.TemporalWorkflowID = textPtr(temporalWorkflowID)
	e.TemporalRunID = textPtr(temporalRunID)
	e.Error = textPtr(errMsg)
	e.TriggeredBy = textPtr(triggeredBy)
	return &e, nil
}

func collectRemediationExecutions(rows pgx.Rows) ([]*domain.RemediationExecution, error) {
	var executions []*domain.RemediationExecution
	for rows.Next() {
		e, err := scanRemediationExecution(rows)
		if err != nil {
			return nil, err
		}
		executions = append(executions, e)
	}
	return executions, rows.Err()
}
