package workflow

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/insa-iiot/platform-core/internal/activity"
	"github.com/insa-iiot/platform-core/internal/core/domain"
)

// DynamicRemediationWorkflowInput is the Temporal input for a remediation run.
type DynamicRemediationWorkflowInput struct {
	ExecutionID string                 `json:"execution_id"`
	WorkflowID  string                 `json:"workflow_id"`
	Name        string                 `json:"name"`
	Definition  json.RawMessage        `json:"definition"`
	Input       map[string]interface{} `json:"input,omitempty"`
}

// DynamicRemediationWorkflowOutput is the Temporal output of a remediation run.
type DynamicRemediationWorkflowOutput struct {
	ExecutionID string                 `json:"execution_id"`
	Status      string                 `json:"status"`
	StepResults []StepResult           `json:"step_results"`
	Output      map[string]interface{} `json:"output,omitempty"`
	Error       string                 `json:"error,omitempty"`
	DurationMs  int64                  `json:"duration_ms"`
	Timestamp   int64                  `json:"timestamp"`
}

// StepResult is the outcome of one remediation step execution.
type StepResult struct {
	StepName   string      `json:"step_name"`
	StepType   string      `json:"step_type"`
	Success    bool        `json:"success"`
	Output     interface{} `json:"output,omitempty"`
	Error      string      `json:"error,omitempty"`
	DurationMs int64       `json:"duration_ms"`
}

// DynamicRemediationWorkflow runs a RemediationWorkflow's steps against the
// device and alert that triggered it. Steps execute in order; a failing step
// halts the remaining ones, and every step's outcome is reported in the
// output so the execution record can be inspected after the fact.
func DynamicRemediationWorkflow(ctx workflow.Context, input DynamicRemediationWorkflowInput) (*DynamicRemediationWorkflowOutput, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("remediation workflow started",
		"execution_id", input.ExecutionID,
		"workflow_id", input.WorkflowID,
		"name", input.Name)

	startTime := workflow.Now(ctx)
	output := &DynamicRemediationWorkflowOutput{
		ExecutionID: input.ExecutionID,
		StepResults: []StepResult{},
	}

	var def domain.RemediationDefinition
	if err := json.Unmarshal(input.Definition, &def); err != nil {
		output.Status = "failed"
		output.Error = fmt.Sprintf("failed to parse definition: %v", err)
		return output, nil
	}
	if len(def.Steps) == 0 {
		output.Status = "failed"
		output.Error = "workflow definition has no steps"
		return output, nil
	}

	stepOutputs := make(map[string]interface{})
	stepOutputs["input"] = input.Input

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    3,
		},
	}
	actCtx := workflow.WithActivityOptions(ctx, ao)

	for _, step := range def.Steps {
		stepStart := workflow.Now(ctx)
		logger.Info("executing remediation step", "name", step.Name, "type", step.Type)

		result, err := executeStep(actCtx, step, stepOutputs)
		duration := workflow.Now(ctx).Sub(stepStart).Milliseconds()

		sr := StepResult{StepName: step.Name, StepType: step.Type, DurationMs: duration}
		if err != nil {
			sr.Success = false
			sr.Error = err.Error()
			output.StepResults = append(output.StepResults, sr)
			logger.Error("remediation step failed", "name", step.Name, "error", err)
			output.Status = "failed"
			output.Error = fmt.Sprintf("step %q failed: %v", step.Name, err)
			break
		}

		sr.Success = true
		sr.Output = result
		output.StepResults = append(output.StepResults, sr)
		stepOutputs[step.Name] = result
	}

	if output.Status == "" {
		output.Status = "completed"
	}

	endTime := workflow.Now(ctx)
	output.DurationMs = endTime.Sub(startTime).Milliseconds()
	output.Timestamp = endTime.Unix()
	output.Output = stepOutputs

	logger.Info("remediation workflow completed",
		"execution_id", input.ExecutionID,
		"status", output.Status,
		"duration_ms", output.DurationMs)

	return output, nil
}

func executeStep(ctx workflow.Context, step domain.RemediationStep, stepOutputs map[string]interface{}) (interface{}, error) {
	switch step.Type {
	case "http":
		return executeHTTPStep(ctx, step.Config)
	case "webhook":
		return executeWebhookStep(ctx, step.Config)
	case "delay":
		return executeDelayStep(ctx, step.Config)
	case "log":
		return executeLogStep(ctx, step.Config)
	case "notify":
		return executeNotifyStep(ctx, step.Config, stepOutputs)
	case "device-command":
		return executeDeviceCommandStep(ctx, step.Config, stepOutputs)
	case "validate":
		return executeValidateStep(ctx, step.Config, stepOutputs)
	default:
		return nil, fmt.Errorf("unknown remediation step type: %s", step.Type)
	}
}

func executeHTTPStep(ctx workflow.Context, config map[string]interface{}) (*activity.HTTPResult, error) {
	cfg, err := ParseHTTPConfig(config)
	if err != nil {
		return nil, fmt.Errorf("invalid http config: %w", err)
	}

	input := activity.HTTPInput{
		URL:          cfg.URL,
		Method:       cfg.Method,
		Headers:      cfg.Headers,
		Body:         cfg.Body,
		SuccessCodes: cfg.SuccessCodes,
	}

	var result activity.HTTPResult
	err = workflow.ExecuteActivity(ctx, "HTTP", input).Get(ctx, &result)
	return &result, err
}

func executeWebhookStep(ctx workflow.Context, config map[string]interface{}) (*activity.WebhookResult, error) {
	cfg, err := ParseWebhookConfig(config)
	if err != nil {
		return nil, fmt.Errorf("invalid webhook config: %w", err)
	}

	input := activity.WebhookInput{URL: cfg.URL, Payload: cfg.Payload}

	var result activity.WebhookResult
	err = workflow.ExecuteActivity(ctx, "Webhook", input).Get(ctx, &result)
	return &result, err
}

func executeDelayStep(ctx workflow.Context, config map[string]interface{}) (*activity.DelayResult, error) {
	cfg, err := ParseDelayConfig(config)
	if err != nil {
		return nil, fmt.Errorf("invalid delay config: %w", err)
	}

	input := activity.DelayInput{Duration: cfg.Duration}

	var result activity.DelayResult
	err = workflow.ExecuteActivity(ctx, "Delay", input).Get(ctx, &result)
	return &result, err
}

func executeLogStep(ctx workflow.Context, config map[string]interface{}) (*activity.LogResult, error) {
	cfg, err := ParseLogConfig(config)
	if err != nil {
		return nil, fmt.Errorf("invalid log config: %w", err)
	}

	input := activity.LogInput{Level: cfg.Level, Message: cfg.Message}

	var result activity.LogResult
	err = workflow.ExecuteActivity(ctx, "Log", input).Get(ctx, &result)
	return &result, err
}

func executeNotifyStep(ctx workflow.Context, config map[string]interface{}, stepOutputs map[string]interface{}) (*activity.NotifyResult, error) {
	cfg, err := ParseNotifyConfig(config)
	if err != nil {
		return nil, fmt.Errorf("invalid notify config: %w", err)
	}

	executionID := ""
	if in, ok := stepOutputs["input"].(map[string]interface{}); ok {
		if id, ok := in["execution_id"].(string); ok {
			executionID = id
		}
	}

	input := activity.NotifyInput{ExecutionID: executionID, Status: "completed", Message: cfg.Message}

	var result activity.NotifyResult
	err = workflow.ExecuteActivity(ctx, "Notify", input).Get(ctx, &result)
	return &result, err
}

func executeDeviceCommandStep(ctx workflow.Context, config map[string]interface{}, stepOutputs map[string]interface{}) (*activity.DeviceCommandResult, error) {
	cfg, err := ParseDeviceCommandConfig(config)
	if err != nil {
		return nil, fmt.Errorf("invalid device command config: %w", err)
	}

	if cfg.DeviceID == "" {
		if in, ok := stepOutputs["input"].(map[string]interface{}); ok {
			if id, ok := in["device_id"].(string); ok {
				cfg.DeviceID = id
			}
		}
	}

	deviceID, err := uuid.Parse(cfg.DeviceID)
	if err != nil {
		return nil, fmt.Errorf("device-command step requires a valid device_id: %w", err)
	}

	input := activity.DeviceCommandInput{DeviceID: deviceID, Command: cfg.Command, Params: cfg.Params}

	var result activity.DeviceCommandResult
	err = workflow.ExecuteActivity(ctx, "DeviceCommand", input).Get(ctx, &result)
	return &result, err
}

func executeValidateStep(ctx workflow.Context, config map[string]interface{}, stepOutputs map[string]interface{}) (*activity.ValidateResult, error) {
	input := activity.ValidateInput{}

	if id, ok := config["device_id"].(string); ok {
		input.DeviceID = id
	} else if in, ok := stepOutputs["input"].(map[string]interface{}); ok {
		if id, ok := in["device_id"].(string); ok {
			input.DeviceID = id
		}
	}

	var result activity.ValidateResult
	err := workflow.ExecuteActivity(ctx, "Validate", input).Get(ctx, &result)
	return &result, err
}
