package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/insa-iiot/platform-core/internal/core/domain"
	"github.com/insa-iiot/platform-core/internal/core/port"
)

// RemediationService implements port.RemediationService: CRUD over
// remediation workflow definitions and triggering/cancelling executions via
// the Temporal-backed WorkflowExecutor.
type RemediationService struct {
	workflows  port.RemediationWorkflowRepository
	executions port.RemediationExecutionRepository
	executor   port.WorkflowExecutor
}

// NewRemediationService creates a new remediation service.
func NewRemediationService(workflows port.RemediationWorkflowRepository, executions port.RemediationExecutionRepository, executor port.WorkflowExecutor) *RemediationService {
	return &RemediationService{workflows: workflows, executions: executions, executor: executor}
}

// List returns a page of a tenant's remediation workflows.
func (s *RemediationService) List(ctx context.Context, tenantID uuid.UUID, page, limit int) (*port.RemediationWorkflowListResult, error) {
	offset := (page - 1) * limit
	workflows, err := s.workflows.FindByTenant(ctx, tenantID, limit, offset)
	if err != nil {
		return nil, err
	}
	total, err := s.workflows.CountByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return &port.RemediationWorkflowListResult{Workflows: workflows, Total: total, Page: page, Limit: limit}, nil
}

// GetByID returns a remediation workflow by id.
func (s *RemediationService) GetByID(ctx context.Context, id uuid.UUID) (*domain.RemediationWorkflow, error) {
	return s.workflows.FindByID(ctx, id)
}

// Create validates the definition and persists a new draft workflow.
func (s *RemediationService) Create(ctx context.Context, input port.CreateRemediationWorkflowInput) (*domain.RemediationWorkflow, error) {
	workflow := &domain.RemediationWorkflow{
		ID:          uuid.New(),
		TenantID:    input.TenantID,
		Name:        input.Name,
		Description: input.Description,
		Definition:  input.Definition,
		Status:      domain.RemediationWorkflowStatusDraft,
		Version:     1,
		CreatedBy:   input.CreatedBy,
	}
	if _, err := workflow.ParseDefinition(); err != nil {
		return nil, err
	}
	if err := s.workflows.Save(ctx, workflow); err != nil {
		return nil, err
	}
	return workflow, nil
}

// Update applies a partial update, bumping the definition version when the
// definition itself changes.
func (s *RemediationService) Update(ctx context.Context, id uuid.UUID, input port.UpdateRemediationWorkflowInput) (*domain.RemediationWorkflow, error) {
	workflow, err := s.workflows.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if input.Name != nil {
		workflow.Name = *input.Name
	}
	if input.Description != nil {
		workflow.Description = input.Description
	}
	if len(input.Definition) > 0 {
		workflow.Definition = input.Definition
		workflow.Version++
		if _, err := workflow.ParseDefinition(); err != nil {
			return nil, err
		}
	}
	if input.Status != nil {
		switch *input.Status {
		case domain.RemediationWorkflowStatusActive:
			if err := workflow.Activate(); err != nil {
				return nil, err
			}
		case domain.RemediationWorkflowStatusInactive:
			workflow.Deactivate()
		default:
			workflow.Status = *input.Status
		}
	}
	workflow.UpdatedAt = time.Now()
	if err := s.workflows.Update(ctx, workflow); err != nil {
		return nil, err
	}
	return workflow, nil
}

// Delete removes a remediation workflow definition.
func (s *RemediationService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.workflows.Delete(ctx, id)
}

// Trigger starts a new execution of an active workflow.
func (s *RemediationService) Trigger(ctx context.Context, workflowID uuid.UUID, alertID *uuid.UUID, triggeredBy string, input map[string]interface{}) (*domain.RemediationExecution, error) {
	workflow, err := s.workflows.FindByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	if !workflow.CanExecute() {
		return nil, domain.ErrWorkflowCannotExecute
	}

	inputJSON, err := json.Marshal(input)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	execution := &domain.RemediationExecution{
		ID:          uuid.New(),
		TenantID:    workflow.TenantID,
		WorkflowID:  workflowID,
		AlertID:     alertID,
		Status:      domain.RemediationExecutionStatusPending,
		Input:       inputJSON,
		CreatedAt:   now,
		TriggeredBy: &triggeredBy,
	}
	if err := s.executions.Save(ctx, execution); err != nil {
		return nil, err
	}

	result, err := s.executor.Execute(ctx, workflow, input)
	if err != nil {
		errMsg := err.Error()
		execution.MarkAsFailed(errMsg, time.Now())
		_ = s.executions.UpdateStatus(ctx, execution.ID, execution.Status, &errMsg)
		return execution, err
	}

	if err := s.executions.UpdateTemporalIDs(ctx, execution.ID, result.TemporalWorkflowID, result.TemporalRunID); err != nil {
		return nil, err
	}
	execution.MarkAsRunning(time.Now())
	execution.TemporalWorkflowID = &result.TemporalWorkflowID
	execution.TemporalRunID = &result.TemporalRunID
	if err := s.executions.UpdateStatus(ctx, execution.ID, execution.Status, nil); err != nil {
		return nil, err
	}

	return execution, nil
}

// ListExecutions returns a page of a workflow's executions.
func (s *RemediationService) ListExecutions(ctx context.Context, workflowID uuid.UUID, page, limit int) (*port.RemediationExecutionListResult, error) {
	offset := (page - 1) * limit
	executions, err := s.executions.FindByWorkflow(ctx, workflowID, limit, offset)
	if err != nil {
		return nil, err
	}
	return &port.RemediationExecutionListResult{Executions: executions, Total: int64(len(executions)), Page: page, Limit: limit}, nil
}

// CancelExecution cancels a still-running execution both in our ledger and
// in Temporal. tenantID is the zero UUID for system-admin callers, who may
// cancel across tenants; any other caller is rejected unless the execution
// belongs to their tenant.
func (s *RemediationService) CancelExecution(ctx context.Context, tenantID, id uuid.UUID) error {
	execution, err := s.executions.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if tenantID != uuid.Nil && execution.TenantID != tenantID {
		return domain.ErrExecutionNotFound
	}
	if !execution.CanCancel() {
		return domain.ErrExecutionCannotCancel
	}
	if execution.TemporalWorkflowID != nil {
		if err := s.executor.Cancel(ctx, *execution.TemporalWorkflowID); err != nil {
			return err
		}
	}
	return s.executions.UpdateStatus(ctx, id, domain.RemediationExecutionStatusCancelled, nil)
}
