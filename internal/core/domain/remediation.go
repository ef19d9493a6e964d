package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// RemediationWorkflow is an optional remediation action, in addition to
// (not instead of) the native escalation pipeline. A Rule may name one in
// TriggerWorkflowID, but the rule engine does not start it; runs are
// started through RemediationService.Trigger. Executed by Temporal (internal/workflow,
// internal/adapter/driven/temporal).
type RemediationWorkflow struct {
	ID          uuid.UUID
	TenantID    uuid.UUID
	Name        string
	Description *string
	Definition  json.RawMessage
	Status      RemediationWorkflowStatus
	Version     int32
	CreatedBy   *uuid.UUID
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// RemediationWorkflowStatus is the lifecycle state of a remediation workflow definition.
type RemediationWorkflowStatus string

const (
	RemediationWorkflowStatusDraft    RemediationWorkflowStatus = "draft"
	RemediationWorkflowStatusActive   RemediationWorkflowStatus = "active"
	RemediationWorkflowStatusInactive RemediationWorkflowStatus = "inactive"
)

// RemediationStep is a single step of a dynamic remediation definition, e.g.
// "restart-gateway" or "isolate-device".
type RemediationStep struct {
	Name   string                 `json:"name"`
	Type   string                 `json:"type"`
	Config map[string]interface{} `json:"config"`
}

// RemediationDefinition is the parsed shape of RemediationWorkflow.Definition.
type RemediationDefinition struct {
	Steps []RemediationStep `json:"steps"`
}

// CanExecute reports whether the workflow definition is active.
func (w *RemediationWorkflow) CanExecute() bool {
	return w.Status == RemediationWorkflowStatusActive
}

// Activate activates the workflow if it has a valid, non-empty definition.
func (w *RemediationWorkflow) Activate() error {
	def, err := w.ParseDefinition()
	if err != nil {
		return ErrInvalidDefinition
	}
	if len(def.Steps) == 0 {
		return ErrNoSteps
	}
	w.Status = RemediationWorkflowStatusActive
	return nil
}

// Deactivate deactivates the workflow.
func (w *RemediationWorkflow) Deactivate() {
	w.Status = RemediationWorkflowStatusInactive
}

// ParseDefinition parses the workflow definition JSON.
func (w *RemediationWorkflow) ParseDefinition() (*RemediationDefinition, error) {
	if len(w.Definition) == 0 {
		return &RemediationDefinition{}, nil
	}
	var def RemediationDefinition
	if err := json.Unmarshal(w.Definition, &def); err != nil {
		return nil, ErrInvalidDefinition
	}
	return &def, nil
}

// HasDynamicDefinition reports whether the definition parses and has at
// least one step.
func (w *RemediationWorkflow) HasDynamicDefinition() bool {
	def, err := w.ParseDefinition()
	return err == nil && len(def.Steps) > 0
}

// RemediationExecution is one run of a RemediationWorkflow, started through
// RemediationService.Trigger and optionally linked to an alert. The rule
// engine starts no runs.
type RemediationExecution struct {
	ID                 uuid.UUID
	TenantID           uuid.UUID
	WorkflowID         uuid.UUID
	AlertID            *uuid.UUID
	TemporalWorkflowID *string
	TemporalRunID      *string
	Status             RemediationExecutionStatus
	Input              json.RawMessage
	Output             json.RawMessage
	Error              *string
	StartedAt          *time.Time
	CompletedAt        *time.Time
	CreatedAt          time.Time
	TriggeredBy        *string // rule id (string) or user id
}

// RemediationExecutionStatus is the lifecycle state of an execution.
type RemediationExecutionStatus string

const (
	RemediationExecutionStatusPending   RemediationExecutionStatus = "pending"
	RemediationExecutionStatusRunning   RemediationExecutionStatus = "running"
	RemediationExecutionStatusCompleted RemediationExecutionStatus = "completed"
	RemediationExecutionStatusFailed    RemediationExecutionStatus = "failed"
	RemediationExecutionStatusCancelled RemediationExecutionStatus = "cancelled"
)

// IsTerminal reports whether the execution has reached a final state.
func (e *RemediationExecution) IsTerminal() bool {
	return e.Status == RemediationExecutionStatusCompleted ||
		e.Status == RemediationExecutionStatusFailed ||
		e.Status == RemediationExecutionStatusCancelled
}

// CanCancel reports whether the execution can still be cancelled.
func (e *RemediationExecution) CanCancel() bool {
	return e.Status == RemediationExecutionStatusPending || e.Status == RemediationExecutionStatusRunning
}

// MarkAsRunning marks the execution as running.
func (e *RemediationExecution) MarkAsRunning(now time.Time) {
	e.Status = RemediationExecutionStatusRunning
	e.StartedAt = &now
}

// MarkAsCompleted marks the execution as completed with output.
func (e *RemediationExecution) MarkAsCompleted(output json.RawMessage, now time.Time) {
	e.Status = RemediationExecutionStatusCompleted
	e.Output = output
	e.CompletedAt = &now
}

// MarkAsFailed marks the execution as failed with an error message.
func (e *RemediationExecution) MarkAsFailed(errorMsg string, now time.Time) {
	e.Status = RemediationExecutionStatusFailed
	e.Error = &errorMsg
	e.CompletedAt = &now
}

// MarkAsCancelled marks the execution as cancelled.
func (e *RemediationExecution) MarkAsCancelled(now time.Time) {
	e.Status = RemediationExecutionStatusCancelled
	e.CompletedAt = &now
}
