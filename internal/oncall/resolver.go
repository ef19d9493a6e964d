// Package oncall resolves an OnCallSchedule to the single user responsible
// at a given instant, honoring per-date overrides ahead of the rotation.
package oncall

import (
	"time"

	"github.com/google/uuid"

	"github.com/insa-iiot/platform-core/internal/core/domain"
)

// Resolve returns the user on call for schedule at instant at, evaluated in
// the schedule's own timezone. Returns nil with no error if the rotation
// defines no coverage for that instant (e.g. a custom rotation with gaps).
func Resolve(schedule *domain.OnCallSchedule, at time.Time) (*uuid.UUID, error) {
	loc, err := time.LoadLocation(schedule.Timezone)
	if err != nil {
		return nil, domain.ErrInvalidTimezone
	}
	local := at.In(loc)

	if user := matchOverride(schedule.Overrides, local); user != nil {
		return user, nil
	}

	switch schedule.Rotation.Kind {
	case domain.RotationWeekly:
		return resolveWeekly(schedule.Rotation, local), nil
	case domain.RotationDaily:
		return resolveDaily(schedule.Rotation, local), nil
	case domain.RotationCustom:
		return resolveCustom(schedule.Rotation, local), nil
	default:
		return nil, domain.ErrInvalidRotationSpec
	}
}

func matchOverride(overrides []domain.ScheduleOverride, local time.Time) *uuid.UUID {
	y, m, d := local.Date()
	for _, o := range overrides {
		oy, om, od := o.Date.Date()
		if y == oy && m == om && d == od {
			u := o.UserID
			return &u
		}
	}
	return nil
}

func resolveWeekly(spec domain.RotationSpec, local time.Time) *uuid.UUID {
	if len(spec.Users) == 0 {
		return nil
	}
	_, week := local.ISOWeek()
	u := spec.Users[week%len(spec.Users)]
	return &u
}

func resolveDaily(spec domain.RotationSpec, local time.Time) *uuid.UUID {
	if spec.WeekdayUsers == nil {
		return nil
	}
	if u, ok := spec.WeekdayUsers[local.Weekday()]; ok {
		return &u
	}
	return nil
}

func resolveCustom(spec domain.RotationSpec, local time.Time) *uuid.UUID {
	for _, r := range spec.Ranges {
		if !local.Before(r.Start) && !local.After(r.End) {
			u := r.UserID
			return &u
		}
	}
	return nil
}
