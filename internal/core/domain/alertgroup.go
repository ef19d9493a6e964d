package domain

import (
	"time"

	"github.com/google/uuid"
)

// AlertGroup is a deduplication envelope over repeat alerts with the same
// (device, rule, severity) within a short window. At most one `active` group
// exists per group_key at any instant.
type AlertGroup struct {
	ID                  uuid.UUID
	TenantID            uuid.UUID
	DeviceID            uuid.UUID
	RuleID              *uuid.UUID
	ExternalSourceKey   *string
	Severity            AlertSeverity
	FirstOccurrenceAt   time.Time
	LastOccurrenceAt    time.Time
	OccurrenceCount     int32
	Status              AlertGroupStatus
	RepresentativeAlertID uuid.UUID
}

// AlertGroupStatus is the lifecycle state of a group envelope.
type AlertGroupStatus string

const (
	AlertGroupStatusActive AlertGroupStatus = "active"
	AlertGroupStatusClosed AlertGroupStatus = "closed"
)

// DefaultGroupingWindow is the default interval within which a repeated
// occurrence is folded into the existing active group rather than starting a
// new one.
const DefaultGroupingWindow = 5 * time.Minute

// WithinGroupingWindow reports whether `now` still falls inside the grouping
// window measured from the group's last occurrence.
func (g *AlertGroup) WithinGroupingWindow(now time.Time, window time.Duration) bool {
	return now.Sub(g.LastOccurrenceAt) <= window
}

// RecordOccurrence folds one more matching alert into the group.
func (g *AlertGroup) RecordOccurrence(now time.Time) {
	g.OccurrenceCount++
	g.LastOccurrenceAt = now
}
