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

// RemediationWorkflowRepository implements port.RemediationWorkflowRepository.
type RemediationWorkflowRepository struct {
	pool *pgxpool.Pool
}

// NewRemediationWorkflowRepository creates a new remediation workflow repository.
func NewRemediationWorkflowRepository(pool *pgxpool.Pool) *RemediationWorkflowRepository {
	return &RemediationWorkflowRepository{pool: pool}
}

const remediationWorkflowColumns = `id, tenant_id, name, description, definition, status, version,
	created_by, created_at, updated_at`

func (r *RemediationWorkflowRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.RemediationWorkflow, error) {
	row := dbFromContext(ctx, r.pool).QueryRow(ctx, `SELECT `+remediationWorkflowColumns+` FROM remediation_workflows WHERE id = $1`, id)
	return scanRemediationWorkflow(row)
}

func (r *RemediationWorkflowRepository) FindByTenant(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*domain.RemediationWorkflow, error) {
	rows, err := dbFromContext(ctx, r.pool).Query(ctx, `SELECT `+remediationWorkflowColumns+` FROM remediation_workflows
		WHERE tenant_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, tenantID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var workflows []*domain.RemediationWorkflow
	for rows.Next() {
		w, err := scanRemediationWorkflow(rows)
		if err != nil {
			return nil, err
		}
		workflows = append(workflows, w)
	}
	return workflows, rows.Err()
}

func (r *RemediationWorkflowRepository) CountByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	var count int64
	err := dbFromContext(ctx, r.pool).QueryRow(ctx, `SELECT count(*) FROM remediation_workflows WHERE tenant_id = $1`, tenantID).Scan(&count)
	return count, err
}

func (r *RemediationWorkflowRepository) Save(ctx context.Context, workflow *domain.RemediationWorkflow) error {
	_, err := dbFromContext(ctx, r.pool).Exec(ctx, `
		INSERT INTO remediation_workflows (id, tenant_id, name, description, definition, status, version, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		workflow.ID, workflow.TenantID, workflow.Name, nullString(workflow.Description),
		workflow.Definition, string(workflow.Status), workflow.Version, uuidToPgtype(workflow.CreatedBy))
	return err
}

func (r *RemediationWorkflowRepository) Update(ctx context.Context, workflow *domain.RemediationWorkflow) error {
	_, err := dbFromContext(ctx, r.pool).Exec(ctx, `
		UPDATE remediation_workflows SET name = $2, description = $3, definition = $4, status = $5,
			version = $6, updated_at = now()
		WHERE id = $1`,
		workflow.ID, workflow.Name, nullString(workflow.Description), workflow.Definition,
		string(workflow.Status), workflow.Version)
	return err
}

func (r *RemediationWorkflowRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := dbFromContext(ctx, r.pool).Exec(ctx, `DELETE FROM remediation_workflows WHERE id = $1`, id)
	return err
}

func scanRemediationWorkflow(row rowScanner) (*domain.RemediationWorkflow, error) {
	var w domain.RemediationWorkflow
	var status string
	var description pgtype.Text
	var createdBy pgtype.UUID

	err := row.Scan(&w.ID, &w.TenantID, &w.Name, &description, &w.Definition, &status, &w.Version,
		&createdBy, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrWorkflowNotFound
		}
		return nil, err
	}
	w.Status = domain.RemediationWorkflowStatus(status)
	w.Description = textPtr(description)
	w.CreatedBy = pgtypeToUUIDPtr(createdBy)
	return &w, nil
}
