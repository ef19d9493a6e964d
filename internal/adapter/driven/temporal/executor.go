package temporal

import (
	"context"
	"fmt"
	"os"

	"go.temporal.io/sdk/client"

	"github.com/insa-iiot/platform-core/internal/core/domain"
	"github.com/insa-iiot/platform-core/internal/core/port"
)

// WorkflowExecutor implements port.WorkflowExecutor using Temporal.
type WorkflowExecutor struct {
	client    client.Client
	taskQueue string
}

// NewWorkflowExecutor creates a new workflow executor.
func NewWorkflowExecutor(c client.Client) *WorkflowExecutor {
	taskQueue := os.Getenv("TEMPORAL_TASK_QUEUE")
	if taskQueue == "" {
		taskQueue = "platform-remediation-queue"
	}

	return &WorkflowExecutor{
		client:    c,
		taskQueue: taskQueue,
	}
}

// Execute starts a remediation workflow execution in Temporal.
func (e *WorkflowExecutor) Execute(ctx context.Context, workflow *domain.RemediationWorkflow, input map[string]interface{}) (*port.ExecuteResult, error) {
	if !workflow.CanExecute() {
		return nil, domain.ErrWorkflowCannotExecute
	}

	workflowID := fmt.Sprintf("remediation-%s-%d", workflow.ID.String(), workflow.Version)

	options := client.StartWorkflowOptions{
		ID:        workflowID,
		TaskQueue: e.taskQueue,
	}

	def, err := workflow.ParseDefinition()
	if err != nil {
		return nil, fmt.Errorf("failed to parse workflow definition: %w", err)
	}

	run, err := e.client.ExecuteWorkflow(ctx, options, "DynamicRemediationWorkflow", def, input)
	if err != nil {
		return nil, fmt.Errorf("failed to start workflow: %w", err)
	}

	return &port.ExecuteResult{
		TemporalWorkflowID: run.GetID(),
		TemporalRunID:      run.GetRunID(),
	}, nil
}

// Cancel requests cancellation of a running workflow execution.
func (e *WorkflowExecutor) Cancel(ctx context.Context, temporalWorkflowID string) error {
	return e.client.CancelWorkflow(ctx, temporalWorkflowID, "")
}

// GetStatus returns the current status of a workflow execution.
func (e *WorkflowExecutor) GetStatus(ctx context.Context, temporalWorkflowID string) (string, error) {
	resp, err := e.client.DescribeWorkflowExecution(ctx, temporalWorkflowID, "")
	if err != nil {
		return "", fmt.Errorf("failed to describe workflow: %w", err)
	}
	return resp.WorkflowExecutionInfo.Status.String(), nil
}
