package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insa-iiot/platform-core/internal/core/domain"
	"github.com/insa-iiot/platform-core/internal/core/port"
	"github.com/insa-iiot/platform-core/internal/core/service/mocks"
)

func TestRemediationService_Create(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()

	t.Run("persists a draft workflow with a valid definition", func(t *testing.T) {
		workflows := mocks.NewMockRemediationWorkflowRepository()
		svc := NewRemediationService(workflows, mocks.NewMockRemediationExecutionRepository(), mocks.NewMockWorkflowExecutor())

		result, err := svc.Create(ctx, port.CreateRemediationWorkflowInput{
			TenantID:   tenantID,
			Name:       "restart-gateway",
			Definition: []byte(`{"steps":[{"name":"restart","type":"restart-gateway"}]}`),
		})

		require.NoError(t, err)
		assert.Equal(t, domain.RemediationWorkflowStatusDraft, result.Status)
		assert.True(t, workflows.SaveCalled)
	})

	t.Run("rejects a malformed definition", func(t *testing.T) {
		svc := NewRemediationService(mocks.NewMockRemediationWorkflowRepository(), mocks.NewMockRemediationExecutionRepository(), mocks.NewMockWorkflowExecutor())

		_, err := svc.Create(ctx, port.CreateRemediationWorkflowInput{TenantID: tenantID, Name: "bad", Definition: []byte(`not-json`)})

		assert.ErrorIs(t, err, domain.ErrInvalidDefinition)
	})
}

func TestRemediationService_Update(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()

	t.Run("activates a workflow with at least one step", func(t *testing.T) {
		workflowID := uuid.New()
		workflows := mocks.NewMockRemediationWorkflowRepository()
		workflows.AddWorkflow(&domain.RemediationWorkflow{
			ID: workflowID, TenantID: tenantID, Status: domain.RemediationWorkflowStatusDraft,
			Definition: []byte(`{"steps":[{"name":"restart","type":"restart-gateway"}]}`),
		})
		svc := NewRemediationService(workflows, mocks.NewMockRemediationExecutionRepository(), mocks.NewMockWorkflowExecutor())

		active := domain.RemediationWorkflowStatusActive
		result, err := svc.Update(ctx, workflowID, port.UpdateRemediationWorkflowInput{Status: &active})

		require.NoError(t, err)
		assert.Equal(t, domain.RemediationWorkflowStatusActive, result.Status)
	})

	t.Run("refuses to activate a workflow with no steps", func(t *testing.T) {
		workflowID := uuid.New()
		workflows := mocks.NewMockRemediationWorkflowRepository()
		workflows.AddWorkflow(&domain.RemediationWorkflow{ID: workflowID, TenantID: tenantID, Status: domain.RemediationWorkflowStatusDraft})
		svc := NewRemediationService(workflows, mocks.NewMockRemediationExecutionRepository(), mocks.NewMockWorkflowExecutor())

		active := domain.RemediationWorkflowStatusActive
		_, err := svc.Update(ctx, workflowID, port.UpdateRemediationWorkflowInput{Status: &active})

		assert.ErrorIs(t, err, domain.ErrNoSteps)
	})

	t.Run("bumps the version when the definition changes", func(t *testing.T) {
		workflowID := uuid.New()
		workflows := mocks.NewMockRemediationWorkflowRepository()
		workflows.AddWorkflow(&domain.RemediationWorkflow{ID: workflowID, TenantID: tenantID, Version: 1})
		svc := NewRemediationService(workflows, mocks.NewMockRemediationExecutionRepository(), mocks.NewMockWorkflowExecutor())

		result, err := svc.Update(ctx, workflowID, port.UpdateRemediationWorkflowInput{Definition: []byte(`{"steps":[]}`)})

		require.NoError(t, err)
		assert.EqualValues(t, 2, result.Version)
	})
}

func TestRemediationService_Trigger(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()

	t.Run("starts an execution for an active workflow", func(t *testing.T) {
		workflowID := uuid.New()
		workflows := mocks.NewMockRemediationWorkflowRepository()
		workflows.AddWorkflow(&domain.RemediationWorkflow{ID: workflowID, TenantID: tenantID, Status: domain.RemediationWorkflowStatusActive})
		executions := mocks.NewMockRemediationExecutionRepository()
		executor := mocks.NewMockWorkflowExecutor()
		svc := NewRemediationService(workflows, executions, executor)

		result, err := svc.Trigger(ctx, workflowID, nil, "rule:high-pressure", map[string]interface{}{"deviceId": "pump-01"})

		require.NoError(t, err)
		assert.Equal(t, domain.RemediationExecutionStatusRunning, result.Status)
		assert.Equal(t, 1, executor.ExecuteCalls)
		assert.True(t, executions.SaveCalled)
	})

	t.Run("refuses to trigger an inactive workflow", func(t *testing.T) {
		workflowID := uuid.New()
		workflows := mocks.NewMockRemediationWorkflowRepository()
		workflows.AddWorkflow(&domain.RemediationWorkflow{ID: workflowID, TenantID: tenantID, Status: domain.RemediationWorkflowStatusDraft})
		svc := NewRemediationService(workflows, mocks.NewMockRemediationExecutionRepository(), mocks.NewMockWorkflowExecutor())

		_, err := svc.Trigger(ctx, workflowID, nil, "rule:x", nil)

		assert.ErrorIs(t, err, domain.ErrWorkflowCannotExecute)
	})

	t.Run("marks the execution failed when the executor errors", func(t *testing.T) {
		workflowID := uuid.New()
		workflows := mocks.NewMockRemediationWorkflowRepository()
		workflows.AddWorkflow(&domain.RemediationWorkflow{ID: workflowID, TenantID: tenantID, Status: domain.RemediationWorkflowStatusActive})
		executions := mocks.NewMockRemediationExecutionRepository()
		executor := mocks.NewMockWorkflowExecutor()
		executor.ExecuteErr = assert.AnError
		svc := NewRemediationService(workflows, executions, executor)

		result, err := svc.Trigger(ctx, workflowID, nil, "rule:x", nil)

		require.Error(t, err)
		require.NotNil(t, result)
		assert.Equal(t, domain.RemediationExecutionStatusFailed, result.Status)
	})
}

func TestRemediationService_CancelExecution(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()

	t.Run("cancels a running execution", func(t *testing.T) {
		executionID := uuid.New()
		temporalID := "wf-1"
		executions := mocks.NewMockRemediationExecutionRepository()
		executions.AddExecution(&domain.RemediationExecution{ID: executionID, TenantID: tenantID, Status: domain.RemediationExecutionStatusRunning, TemporalWorkflowID: &temporalID})
		executor := mocks.NewMockWorkflowExecutor()
		svc := NewRemediationService(mocks.NewMockRemediationWorkflowRepository(), executions, executor)

		err := svc.CancelExecution(ctx, tenantID, executionID)

		require.NoError(t, err)
		assert.Equal(t, 1, executor.CancelCalls)
	})

	t.Run("refuses to cancel a terminal execution", func(t *testing.T) {
		executionID := uuid.New()
		executions := mocks.NewMockRemediationExecutionRepository()
		executions.AddExecution(&domain.RemediationExecution{ID: executionID, TenantID: tenantID, Status: domain.RemediationExecutionStatusCompleted})
		svc := NewRemediationService(mocks.NewMockRemediationWorkflowRepository(), executions, mocks.NewMockWorkflowExecutor())

		err := svc.CancelExecution(ctx, tenantID, executionID)

		assert.ErrorIs(t, err, domain.ErrExecutionCannotCancel)
	})

	t.Run("refuses to cancel another tenant's execution", func(t *testing.T) {
		executionID := uuid.New()
		executions := mocks.NewMockRemediationExecutionRepository()
		executions.AddExecution(&domain.RemediationExecution{ID: executionID, TenantID: uuid.New(), Status: domain.RemediationExecutionStatusRunning})
		svc := NewRemediationService(mocks.NewMockRemediationWorkflowRepository(), executions, mocks.NewMockWorkflowExecutor())

		err := svc.CancelExecution(ctx, tenantID, executionID)

		assert.ErrorIs(t, err, domain.ErrExecutionNotFound)
	})

	t.Run("a system admin cancels across tenants", func(t *testing.T) {
		executionID := uuid.New()
		executions := mocks.NewMockRemediationExecutionRepository()
		executions.AddExecution(&domain.RemediationExecution{ID: executionID, TenantID: uuid.New(), Status: domain.RemediationExecutionStatusRunning})
		svc := NewRemediationService(mocks.NewMockRemediationWorkflowRepository(), executions, mocks.NewMockWorkflowExecutor())

		err := svc.CancelExecution(ctx, uuid.Nil, executionID)

		require.NoError(t, err)
	})
}
