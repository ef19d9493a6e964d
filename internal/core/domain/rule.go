package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Rule is a user-defined condition over telemetry that emits alerts.
type Rule struct {
	ID                uuid.UUID
	TenantID          uuid.UUID
	Name              string
	Type              RuleType
	ConditionConfig   json.RawMessage
	Actions           []NotificationAction
	Priority          int32
	Enabled           bool
	CooldownSeconds   int32
	Scope             RuleScope
	TriggerWorkflowID *uuid.UUID
	LastEvaluatedAt   *time.Time
	LastTriggeredAt   *time.Time
	CreatedBy         *uuid.UUID
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// RuleType is the condition DSL variant a Rule's ConditionConfig decodes into.
type RuleType string

const (
	RuleTypeThreshold   RuleType = "threshold"
	RuleTypeComparison  RuleType = "comparison"
	RuleTypeStatistical RuleType = "statistical"
	RuleTypeTimeWindow  RuleType = "time_window"
)

// IsValid reports whether t is one of the four supported rule types.
func (t RuleType) IsValid() bool {
	switch t {
	case RuleTypeThreshold, RuleTypeComparison, RuleTypeStatistical, RuleTypeTimeWindow:
		return true
	default:
		return false
	}
}

// RuleScope restricts which devices a rule is evaluated against.
type RuleScope struct {
	DeviceID  *uuid.UUID // single device
	DeviceIDs []uuid.UUID // device set
	// Neither field set means tenant-wide.
}

// IsTenantWide reports whether the scope covers every device in the tenant.
func (s RuleScope) IsTenantWide() bool {
	return s.DeviceID == nil && len(s.DeviceIDs) == 0
}

// Includes reports whether the scope covers deviceID.
func (s RuleScope) Includes(deviceID uuid.UUID) bool {
	if s.IsTenantWide() {
		return true
	}
	if s.DeviceID != nil && *s.DeviceID == deviceID {
		return true
	}
	for _, id := range s.DeviceIDs {
		if id == deviceID {
			return true
		}
	}
	return false
}

// NotificationAction names one channel a matched rule dispatches to.
type NotificationAction struct {
	Channel string // "email", "sms", or "webhook:<name>"
	Target  string
}

// CanTrigger reports whether the rule may emit another alert as of now.
// Cooldown only suppresses emission while the prior alert from this rule is
// still active (spec.md Testable Property #6): once that prior alert has
// resolved, a new one may fire immediately regardless of elapsed time.
func (r *Rule) CanTrigger(now time.Time, priorAlertActive bool) bool {
	if !r.Enabled {
		return false
	}
	if r.LastTriggeredAt == nil {
		return true
	}
	cooldown := time.Duration(r.CooldownSeconds) * time.Second
	if now.Sub(*r.LastTriggeredAt) >= cooldown {
		return true
	}
	return !priorAlertActive
}

// MarkTriggered records that the rule just fired.
func (r *Rule) MarkTriggered(now time.Time) {
	r.LastTriggeredAt = &now
}

// MarkEvaluated records the scheduler's last pass over this rule, used by the
// periodic evaluator to space evaluations by its interval.
func (r *Rule) MarkEvaluated(now time.Time) {
	r.LastEvaluatedAt = &now
}

// DueForEvaluation reports whether the periodic scheduler should evaluate the
// rule again, given the scheduler's interval. Rules carry no interval of
// their own; every rule is checked against the same value.
func (r *Rule) DueForEvaluation(now time.Time, interval time.Duration) bool {
	if r.LastEvaluatedAt == nil {
		return true
	}
	return now.Sub(*r.LastEvaluatedAt) >= interval
}

// SeverityForPriority maps a rule's priority to the severity stamped on
// alerts it emits. Higher priority maps to higher severity.
func SeverityForPriority(priority int32) AlertSeverity {
	switch {
	case priority >= 90:
		return AlertSeverityCritical
	case priority >= 70:
		return AlertSeverityHigh
	case priority >= 40:
		return AlertSeverityMedium
	case priority >= 10:
		return AlertSeverityLow
	default:
		return AlertSeverityInfo
	}
}
