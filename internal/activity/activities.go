// Package activity implements the Temporal activities invoked by remediation
// workflow steps (internal/workflow). Each activity is a single side effect:
// an outbound HTTP call, a device command, a delay, a log line, or a
// notification. Keeping them one-effect-per-activity lets Temporal retry a
// failed step without replaying the whole remediation.
package activity

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// CommandPublisher delivers a command to a device over whatever transport the
// device is reachable on (MQTT publish to its command topic, CoAP PUT, a
// vendor gateway API). Implemented by internal/adapter/protocol/mqtt in
// production; nil in tests and in deployments with no command channel wired.
type CommandPublisher interface {
	PublishCommand(ctx context.Context, deviceID uuid.UUID, command string, params map[string]interface{}) error
}

// Activities holds the dependencies every remediation activity needs.
type Activities struct {
	HTTPClient *http.Client
	Commands   CommandPublisher
}

// NewActivities creates a new Activities instance. commands may be nil if no
// device command channel is configured; the DeviceCommand activity then
// fails cleanly instead of panicking.
func NewActivities(commands CommandPublisher) *Activities {
	return &Activities{
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		Commands:   commands,
	}
}

// ValidateInput is the input for the Validate activity.
type ValidateInput struct {
	DeviceID string `json:"device_id"`
}

// ValidateResult is the result of the Validate activity.
type ValidateResult struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message"`
}

// Validate checks that a precondition holds before a remediation continues,
// e.g. that the triggering device ID is actually present in the execution
// input. Remediation definitions use this to bail out early rather than run
// a device command against an unresolved target.
func (a *Activities) Validate(ctx context.Context, input ValidateInput) (*ValidateResult, error) {
	slog.Info("remediation validate activity", "device_id", input.DeviceID)

	if input.DeviceID == "" {
		return &ValidateResult{Valid: false, Message: "device_id is required"}, nil
	}
	if _, err := uuid.Parse(input.DeviceID); err != nil {
		return &ValidateResult{Valid: false, Message: "device_id is not a valid UUID"}, nil
	}

	return &ValidateResult{Valid: true, Message: "validation passed"}, nil
}

// DeviceCommandInput is the input for the DeviceCommand activity.
type DeviceCommandInput struct {
	DeviceID uuid.UUID              `json:"device_id"`
	Command  string                 `json:"command"` // e.g. "restart", "isolate", "reset-config"
	Params   map[string]interface{} `json:"params,omitempty"`
}

// DeviceCommandResult is the result of the DeviceCommand activity.
type DeviceCommandResult struct {
	Sent  bool   `json:"sent"`
	Error string `json:"error,omitempty"`
}

// DeviceCommand publishes a command to the target device, e.g. restarting a
// misbehaving gateway or isolating a device suspected of flooding telemetry.
func (a *Activities) DeviceCommand(ctx context.Context, input DeviceCommandInput) (*DeviceCommandResult, error) {
	slog.Info("remediation device command activity", "device_id", input.DeviceID, "command", input.Command)

	if a.Commands == nil {
		return &DeviceCommandResult{Sent: false, Error: "no command publisher configured"}, nil
	}
	if err := a.Commands.PublishCommand(ctx, input.DeviceID, input.Command, input.Params); err != nil {
		return &DeviceCommandResult{Sent: false, Error: err.Error()}, nil
	}
	return &DeviceCommandResult{Sent: true}, nil
}

// NotifyInput is the input for the Notify activity.
type NotifyInput struct {
	ExecutionID string `json:"execution_id"`
	Status      string `json:"status"`
	Message     string `json:"message"`
}

// NotifyResult is the result of the Notify activity.
type NotifyResult struct {
	Sent bool `json:"sent"`
}

// Notify records a remediation milestone. Wiring this to the outbound
// notification dispatcher (internal/notification) is left to the worker's
// activity registration; by itself this activity only logs.
func (a *Activities) Notify(ctx context.Context, input NotifyInput) (*NotifyResult, error) {
	slog.Info("remediation notify activity", "execution_id", input.ExecutionID, "status", input.Status, "message", input.Message)
	return &NotifyResult{Sent: true}, nil
}

// HTTPInput is the input for the HTTP activity.
type HTTPInput struct {
	URL          string            `json:"url"`
	Method       string            `json:"method"`
	Headers      map[string]string `json:"headers,omitempty"`
	Body         interface{}       `json:"body,omitempty"`
	TimeoutSecs  int               `json:"timeout_seconds,omitempty"`
	SuccessCodes []int             `json:"success_codes,omitempty"`
}

// HTTPResult is the result of the HTTP activity.
type HTTPResult struct {
	StatusCode int               `json:"status_code"`
	Body       string            `json:"body"`
	Headers    map[string]string `json:"headers"`
	Success    bool              `json:"success"`
	Error      string            `json:"error,omitempty"`
}

// HTTP performs an arbitrary HTTP call, used by remediation steps that need
// to hit a vendor API (e.g. a gateway's REST management plane) that isn't
// covered by a dedicated activity.
func (a *Activities) HTTP(ctx context.Context, input HTTPInput) (*HTTPResult, error) {
	slog.Info("remediation http activity", "url", input.URL, "method", input.Method)

	if input.Method == "" {
		input.Method = "GET"
	}
	if len(input.SuccessCodes) == 0 {
		input.SuccessCodes = []int{200, 201, 202, 204}
	}

	var bodyReader io.Reader
	if input.Body != nil {
		bodyBytes, err := json.Marshal(input.Body)
		if err != nil {
			return &HTTPResult{Success: false, Error: err.Error()}, nil
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, input.Method, input.URL, bodyReader)
	if err != nil {
		return &HTTPResult{Success: false, Error: err.Error()}, nil
	}
	for k, v := range input.Headers {
		req.Header.Set(k, v)
	}
	if req.Header.Get("Content-Type") == "" && input.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	client := a.HTTPClient
	if input.TimeoutSecs > 0 {
		client = &http.Client{Timeout: time.Duration(input.TimeoutSecs) * time.Second}
	}

	resp, err := client.Do(req)
	if err != nil {
		return &HTTPResult{Success: false, Error: err.Error()}, nil
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	headers := make(map[string]string, len(resp.Header))
	for k, v := range resp.Header {
		if len(v) > 0 {
			headers[k] = v[0]
		}
	}

	success := false
	for _, code := range input.SuccessCodes {
		if resp.StatusCode == code {
			success = true
			break
		}
	}

	slog.Info("remediation http activity completed", "url", input.URL, "status", resp.StatusCode, "success", success)
	return &HTTPResult{StatusCode: resp.StatusCode, Body: string(body), Headers: headers, Success: success}, nil
}

// WebhookInput is the input for the Webhook activity.
type WebhookInput struct {
	URL     string                 `json:"url"`
	Payload map[string]interface{} `json:"payload"`
}

// WebhookResult is the result of the Webhook activity.
type WebhookResult struct {
	StatusCode int    `json:"status_code"`
	Success    bool   `json:"success"`
	Error      string `json:"error,omitempty"`
}

// Webhook posts a JSON payload to an external system, e.g. opening a ticket
// in an incident tool as part of a remediation run.
func (a *Activities) Webhook(ctx context.Context, input WebhookInput) (*WebhookResult, error) {
	slog.Info("remediation webhook activity", "url", input.URL)

	payload, err := json.Marshal(input.Payload)
	if err != nil {
		return &WebhookResult{Success: false, Error: err.Error()}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, input.URL, bytes.NewReader(payload))
	if err != nil {
		return &WebhookResult{Success: false, Error: err.Error()}, nil
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.HTTPClient.Do(req)
	if err != nil {
		return &WebhookResult{Success: false, Error: err.Error()}, nil
	}
	defer resp.Body.Close()

	success := resp.StatusCode >= 200 && resp.StatusCode < 300
	return &WebhookResult{StatusCode: resp.StatusCode, Success: success}, nil
}

// DelayInput is the input for the Delay activity.
type DelayInput struct {
	Duration string `json:"duration"` // e.g. "5s", "1m"
}

// DelayResult is the result of the Delay activity.
type DelayResult struct {
	Delayed bool `json:"delayed"`
}

// Delay pauses the remediation, e.g. to give a restarted device time to
// rejoin before the next step checks its status.
func (a *Activities) Delay(ctx context.Context, input DelayInput) (*DelayResult, error) {
	duration, err := time.ParseDuration(input.Duration)
	if err != nil {
		duration = time.Second
	}

	slog.Info("remediation delay activity", "duration", duration)
	select {
	case <-time.After(duration):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	return &DelayResult{Delayed: true}, nil
}

// LogInput is the input for the Log activity.
type LogInput struct {
	Level   string                 `json:"level"` // info, warn, error
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data,omitempty"`
}

// LogResult is the result of the Log activity.
type LogResult struct {
	Logged bool `json:"logged"`
}

// Log writes a structured audit trail entry for the remediation run.
func (a *Activities) Log(ctx context.Context, input LogInput) (*LogResult, error) {
	attrs := make([]any, 0, 2+2*len(input.Data))
	attrs = append(attrs, "message", input.Message)
	for k, v := range input.Data {
		attrs = append(attrs, k, v)
	}

	switch input.Level {
	case "error":
		slog.Error("remediation log step", attrs...)
	case "warn":
		slog.Warn("remediation log step", attrs...)
	default:
		slog.Info("remediation log step", attrs...)
	}

	return &LogResult{Logged: true}, nil
}
