package domain

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// AlertSLA tracks time-to-acknowledge and time-to-resolve targets for an
// alert, created atomically with the alert row.
type AlertSLA struct {
	AlertID           uuid.UUID
	Severity          AlertSeverity
	TTATargetMinutes  int
	TTRTargetMinutes  int
	TTAActualMinutes  *int
	TTRActualMinutes  *int
	TTABreached       bool
	TTRBreached       bool
	BreachNotifiedAt  *time.Time
	CreatedAt         time.Time
}

// slaTargets is the severity -> (TTA, TTR) target table from §4.6.
var slaTargets = map[AlertSeverity][2]int{
	AlertSeverityCritical: {5, 30},
	AlertSeverityHigh:     {15, 120},
	AlertSeverityMedium:   {60, 480},
	AlertSeverityLow:      {240, 1440},
	AlertSeverityInfo:     {1440, 10080},
}

// NewAlertSLA creates the SLA row for a freshly-created alert, with targets
// derived from its severity.
func NewAlertSLA(alertID uuid.UUID, severity AlertSeverity, createdAt time.Time) *AlertSLA {
	targets, ok := slaTargets[severity]
	if !ok {
		targets = slaTargets[AlertSeverityInfo]
	}
	return &AlertSLA{
		AlertID:          alertID,
		Severity:         severity,
		TTATargetMinutes: targets[0],
		TTRTargetMinutes: targets[1],
		CreatedAt:        createdAt,
	}
}

// minutesBetween computes ceil((to - from) / 60s) in whole minutes, matching
// the §8.5 SLA correctness property.
func minutesBetween(from, to time.Time) int {
	return int(math.Ceil(to.Sub(from).Seconds() / 60))
}

// RecordAcknowledged sets tta_actual/tta_breached on the transition to
// acknowledged.
func (s *AlertSLA) RecordAcknowledged(createdAt, ackedAt time.Time) {
	actual := minutesBetween(createdAt, ackedAt)
	s.TTAActualMinutes = &actual
	s.TTABreached = actual > s.TTATargetMinutes
}

// RecordResolved sets ttr_actual/ttr_breached on the transition to resolved.
func (s *AlertSLA) RecordResolved(createdAt, resolvedAt time.Time) {
	actual := minutesBetween(createdAt, resolvedAt)
	s.TTRActualMinutes = &actual
	s.TTRBreached = actual > s.TTRTargetMinutes
}

// CheckTTABreach is used by the periodic SLA monitor for still-open alerts:
// it flips TTABreached if the target has passed without an acknowledgement,
// returning true exactly once (the first time it flips) so the caller knows
// to emit a breach notification.
func (s *AlertSLA) CheckTTABreach(createdAt, now time.Time) bool {
	if s.TTABreached || s.TTAActualMinutes != nil {
		return false
	}
	if minutesBetween(createdAt, now) > s.TTATargetMinutes {
		s.TTABreached = true
		return true
	}
	return false
}

// CheckTTRBreach mirrors CheckTTABreach for the resolve-side target.
func (s *AlertSLA) CheckTTRBreach(createdAt, now time.Time) bool {
	if s.TTRBreached || s.TTRActualMinutes != nil {
		return false
	}
	if minutesBetween(createdAt, now) > s.TTRTargetMinutes {
		s.TTRBreached = true
		return true
	}
	return false
}

// ShouldNotifyBreach reports whether a breach notification is still owed for
// this SLA row (a breach flipped but no notification recorded yet).
func (s *AlertSLA) ShouldNotifyBreach() bool {
	return (s.TTABreached || s.TTRBreached) && s.BreachNotifiedAt == nil
}

// MarkBreachNotified records that the alert's breach notification has been
// sent. One timestamp covers both targets: once it is set ShouldNotifyBreach
// stays false, so a TTR breach that follows a notified TTA breach is not
// notified.
func (s *AlertSLA) MarkBreachNotified(now time.Time) {
	s.BreachNotifiedAt = &now
}
