package domain

import (
	"time"

	"github.com/google/uuid"
)

// OnCallSchedule deterministically maps any instant to at most one
// responsible user.
type OnCallSchedule struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	Name      string
	Rotation  RotationSpec
	Overrides []ScheduleOverride
	Timezone  string // IANA timezone name
}

// RotationKind selects how a schedule's rotation is interpreted.
type RotationKind string

const (
	RotationWeekly RotationKind = "weekly"
	RotationDaily  RotationKind = "daily"
	RotationCustom RotationKind = "custom"
)

// RotationSpec describes the recurring assignment pattern of a schedule.
type RotationSpec struct {
	Kind RotationKind
	// Users is the ordered rotation roster for weekly rotation (indexed by
	// ISO-week offset mod len(Users)).
	Users []uuid.UUID
	// WeekdayUsers maps time.Weekday (0=Sunday) to a user for daily rotation.
	WeekdayUsers map[time.Weekday]uuid.UUID
	// Ranges holds explicit date ranges for custom rotation.
	Ranges []CustomRange
}

// CustomRange assigns a user to an explicit, inclusive date range.
type CustomRange struct {
	Start  time.Time
	End    time.Time
	UserID uuid.UUID
}

// ScheduleOverride pins a specific local date to a specific user, taking
// precedence over the rotation.
type ScheduleOverride struct {
	Date   time.Time // local calendar date, time-of-day ignored
	UserID uuid.UUID
}

// IsValid reports whether the rotation kind is recognized.
func (k RotationKind) IsValid() bool {
	switch k {
	case RotationWeekly, RotationDaily, RotationCustom:
		return true
	default:
		return false
	}
}
