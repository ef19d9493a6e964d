package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Alert is a user-visible event instance; carries state, SLA, and optional
// escalation. Current lifecycle state lives in the AlertState history, not on
// this struct (see alertstate.go).
type Alert struct {
	ID                    uuid.UUID
	TenantID              uuid.UUID
	DeviceID              uuid.UUID
	RuleID                *uuid.UUID // nullable for externally-created alerts
	Severity              AlertSeverity
	Message               string
	Metadata              json.RawMessage
	CreatedAt             time.Time
	EscalationPolicyID    *uuid.UUID
	CurrentEscalationTier int32
	LastEscalationAt      *time.Time
	GroupedAlertID        *uuid.UUID // non-nil: this row is a shadow of a representative alert
	DuplicateCount        int32
	ExternalSourceKey     *string // used for grouping of rule-less alerts, see §9 Open Questions

	// RemediationExecutionID links to a remediation workflow run. The rule
	// engine does not start runs or set this field, whatever the triggering
	// Rule's TriggerWorkflowID. Additive to the native escalation pipeline.
	RemediationExecutionID *uuid.UUID
}

// AlertSeverity represents the severity of an alert.
type AlertSeverity string

const (
	AlertSeverityCritical AlertSeverity = "critical"
	AlertSeverityHigh     AlertSeverity = "high"
	AlertSeverityMedium   AlertSeverity = "medium"
	AlertSeverityLow      AlertSeverity = "low"
	AlertSeverityInfo     AlertSeverity = "info"
)

// IsValid reports whether s is a recognized severity.
func (s AlertSeverity) IsValid() bool {
	switch s {
	case AlertSeverityCritical, AlertSeverityHigh, AlertSeverityMedium, AlertSeverityLow, AlertSeverityInfo:
		return true
	default:
		return false
	}
}

// EscalationEligible reports whether alerts of this severity are associated
// with an escalation policy at all (critical, high, medium per §4.6).
func (s AlertSeverity) EscalationEligible() bool {
	return s == AlertSeverityCritical || s == AlertSeverityHigh || s == AlertSeverityMedium
}

// GroupKey identifies the dedup envelope an alert belongs to.
type GroupKey struct {
	DeviceID uuid.UUID
	RuleID   *uuid.UUID
	Severity AlertSeverity
	// ExternalSourceKey substitutes for RuleID when grouping externally
	// created (rule-less) alerts, per §9 Open Questions resolution.
	ExternalSourceKey *string
}

// GroupKeyFor computes the grouping key for an alert, applying the
// externally-created-alert resolution from §9: rule-less alerts group using
// (device_id, external_source_key) when that key is present; otherwise they
// stand alone (no grouping).
func GroupKeyFor(a *Alert) (GroupKey, bool) {
	if a.RuleID != nil {
		return GroupKey{DeviceID: a.DeviceID, RuleID: a.RuleID, Severity: a.Severity}, true
	}
	if a.ExternalSourceKey != nil {
		return GroupKey{DeviceID: a.DeviceID, Severity: a.Severity, ExternalSourceKey: a.ExternalSourceKey}, true
	}
	return GroupKey{}, false
}

// EscalationTierTargetReached reports whether the tier at 0-based index idx
// has come due given delayMinutes and the alert's age, and that it is a
// forward advance (CurrentEscalationTier counts fired tiers from 1).
func (a *Alert) EscalationTierTargetReached(idx int, delayMinutes int, now time.Time) bool {
	if int32(idx) < a.CurrentEscalationTier {
		return false
	}
	return now.Sub(a.CreatedAt) >= time.Duration(delayMinutes)*time.Minute
}

// AdvanceEscalationTier records idx, a 1-based tier number (0 means no tier
// has fired), as the alert's tier. Monotonic: callers must only call this
// with idx > CurrentEscalationTier (the escalation executor derives it from
// HighestDueTier).
func (a *Alert) AdvanceEscalationTier(idx int, now time.Time) {
	a.CurrentEscalationTier = int32(idx)
	a.LastEscalationAt = &now
}
