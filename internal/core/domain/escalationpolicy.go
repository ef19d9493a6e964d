package domain

import (
	"strings"

	"github.com/google/uuid"
)

// EscalationPolicy is an ordered tier list specifying when and how to notify
// whom as an alert ages without acknowledgement.
type EscalationPolicy struct {
	ID       uuid.UUID
	TenantID uuid.UUID
	Name     string
	Tiers    []EscalationTier
}

// EscalationTier is one rung of a policy's ladder.
type EscalationTier struct {
	DelayMinutes   int
	Targets        []EscalationTarget
	Channels       []string // "email", "sms", "webhook:<name>"
	SeverityFilter []AlertSeverity
}

// EscalationTarget names a notification recipient, either a direct user or
// an on-call schedule to resolve at dispatch time.
type EscalationTarget struct {
	UserID     *uuid.UUID // "user:<id>"
	ScheduleID *uuid.UUID // "oncall:<schedule_id>"
}

// SplitNotificationChannel parses a channel string in the "email"/"sms"/
// "webhook:<name>" vocabulary shared by NotificationAction and
// EscalationTier.Channels, returning the dispatcher channel key and, for
// webhooks, the name/URL suffix.
func SplitNotificationChannel(channel string) (kind, name string) {
	if rest, ok := strings.CutPrefix(channel, "webhook:"); ok {
		return "webhook", rest
	}
	return channel, ""
}

// AppliesTo reports whether this tier's severity filter matches sev. An empty
// filter matches every severity.
func (t EscalationTier) AppliesTo(sev AlertSeverity) bool {
	if len(t.SeverityFilter) == 0 {
		return true
	}
	for _, s := range t.SeverityFilter {
		if s == sev {
			return true
		}
	}
	return false
}

// HighestDueTier returns the index of the highest tier whose delay has
// elapsed and whose index exceeds currentTier, or -1 if none qualifies.
// Tiers are assumed ordered by ascending DelayMinutes, matching how they are
// authored and persisted.
func (p *EscalationPolicy) HighestDueTier(sev AlertSeverity, ageMinutes float64, currentTier int32) int {
	found := -1
	for idx, tier := range p.Tiers {
		if int32(idx) <= currentTier {
			continue
		}
		if !tier.AppliesTo(sev) {
			continue
		}
		if float64(tier.DelayMinutes) <= ageMinutes {
			found = idx
		}
	}
	return found
}
