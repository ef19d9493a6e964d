package workflow

import "encoding/json"

// RetryPolicyDef overrides the default activity retry policy for a step.
type RetryPolicyDef struct {
	MaxAttempts     int     `json:"max_attempts"`
	InitialInterval string  `json:"initial_interval"` // e.g. "1s", "5s"
	MaxInterval     string  `json:"max_interval"`     // e.g. "1m", "5m"
	Multiplier      float64 `json:"multiplier"`
}

// HTTPConfig is the parsed config for an "http" step.
type HTTPConfig struct {
	URL          string            `json:"url"`
	Method       string            `json:"method"`
	Headers      map[string]string `json:"headers,omitempty"`
	Body         interface{}       `json:"body,omitempty"`
	SuccessCodes []int             `json:"success_codes,omitempty"`
}

// WebhookConfig is the parsed config for a "webhook" step.
type WebhookConfig struct {
	URL     string                 `json:"url"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// DelayConfig is the parsed config for a "delay" step.
type DelayConfig struct {
	Duration string `json:"duration"` // e.g. "5s", "1m", "1h"
}

// LogConfig is the parsed config for a "log" step.
type LogConfig struct {
	Level   string `json:"level"` // info, warn, error
	Message string `json:"message"`
}

// NotifyConfig is the parsed config for a "notify" step.
type NotifyConfig struct {
	Message string `json:"message"`
}

// DeviceCommandConfig is the parsed config for a "device-command" step.
type DeviceCommandConfig struct {
	DeviceID string                 `json:"device_id"`
	Command  string                 `json:"command"`
	Params   map[string]interface{} `json:"params,omitempty"`
}

func parseConfig(config map[string]interface{}, dest interface{}) error {
	data, err := json.Marshal(config)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

// ParseHTTPConfig parses a step's config map into an HTTPConfig.
func ParseHTTPConfig(config map[string]interface{}) (*HTTPConfig, error) {
	var cfg HTTPConfig
	if err := parseConfig(config, &cfg); err != nil {
		return nil, err
	}
	if cfg.Method == "" {
		cfg.Method = "GET"
	}
	if len(cfg.SuccessCodes) == 0 {
		cfg.SuccessCodes = []int{200, 201, 202, 204}
	}
	return &cfg, nil
}

// ParseWebhookConfig parses a step's config map into a WebhookConfig.
func ParseWebhookConfig(config map[string]interface{}) (*WebhookConfig, error) {
	var cfg WebhookConfig
	if err := parseConfig(config, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ParseDelayConfig parses a step's config map into a DelayConfig.
func ParseDelayConfig(config map[string]interface{}) (*DelayConfig, error) {
	var cfg DelayConfig
	if err := parseConfig(config, &cfg); err != nil {
		return nil, err
	}
	if cfg.Duration == "" {
		cfg.Duration = "1s"
	}
	return &cfg, nil
}

// ParseLogConfig parses a step's config map into a LogConfig.
func ParseLogConfig(config map[string]interface{}) (*LogConfig, error) {
	var cfg LogConfig
	if err := parseConfig(config, &cfg); err != nil {
		return nil, err
	}
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	return &cfg, nil
}

// ParseNotifyConfig parses a step's config map into a NotifyConfig.
func ParseNotifyConfig(config map[string]interface{}) (*NotifyConfig, error) {
	var cfg NotifyConfig
	if err := parseConfig(config, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ParseDeviceCommandConfig parses a step's config map into a DeviceCommandConfig.
func ParseDeviceCommandConfig(config map[string]interface{}) (*DeviceCommandConfig, error) {
	var cfg DeviceCommandConfig
	if err := parseConfig(config, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
