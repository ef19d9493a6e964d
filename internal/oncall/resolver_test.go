package oncall

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insa-iiot/platform-core/internal/core/domain"
)

func TestResolve_Weekly(t *testing.T) {
	alice, bob := uuid.New(), uuid.New()
	schedule := &domain.OnCallSchedule{
		Timezone: "UTC",
		Rotation: domain.RotationSpec{Kind: domain.RotationWeekly, Users: []uuid.UUID{alice, bob}},
	}

	at := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC) // ISO week 10
	_, week := at.ISOWeek()

	got, err := Resolve(schedule, at)
	require.NoError(t, err)
	require.NotNil(t, got)
	want := schedule.Rotation.Users[week%2]
	assert.Equal(t, want, *got)
}

func TestResolve_Weekly_EmptyRosterReturnsNil(t *testing.T) {
	schedule := &domain.OnCallSchedule{
		Timezone: "UTC",
		Rotation: domain.RotationSpec{Kind: domain.RotationWeekly},
	}
	got, err := Resolve(schedule, time.Now().UTC())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestResolve_Daily(t *testing.T) {
	alice := uuid.New()
	schedule := &domain.OnCallSchedule{
		Timezone: "UTC",
		Rotation: domain.RotationSpec{
			Kind:         domain.RotationDaily,
			WeekdayUsers: map[time.Weekday]uuid.UUID{time.Monday: alice},
		},
	}

	monday := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	require.Equal(t, time.Monday, monday.Weekday())

	got, err := Resolve(schedule, monday)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, alice, *got)
}

func TestResolve_Daily_UnassignedWeekdayReturnsNil(t *testing.T) {
	schedule := &domain.OnCallSchedule{
		Timezone: "UTC",
		Rotation: domain.RotationSpec{Kind: domain.RotationDaily, WeekdayUsers: map[time.Weekday]uuid.UUID{}},
	}
	got, err := Resolve(schedule, time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestResolve_Custom(t *testing.T) {
	alice := uuid.New()
	schedule := &domain.OnCallSchedule{
		Timezone: "UTC",
		Rotation: domain.RotationSpec{
			Kind: domain.RotationCustom,
			Ranges: []domain.CustomRange{
				{Start: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), End: time.Date(2026, 3, 7, 23, 59, 59, 0, time.UTC), UserID: alice},
			},
		},
	}

	t.Run("within range", func(t *testing.T) {
		got, err := Resolve(schedule, time.Date(2026, 3, 3, 12, 0, 0, 0, time.UTC))
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, alice, *got)
	})

	t.Run("outside range", func(t *testing.T) {
		got, err := Resolve(schedule, time.Date(2026, 3, 8, 12, 0, 0, 0, time.UTC))
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestResolve_OverrideTakesPrecedenceOverRotation(t *testing.T) {
	rotationUser, overrideUser := uuid.New(), uuid.New()
	overrideDate := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	schedule := &domain.OnCallSchedule{
		Timezone:  "UTC",
		Rotation:  domain.RotationSpec{Kind: domain.RotationWeekly, Users: []uuid.UUID{rotationUser}},
		Overrides: []domain.ScheduleOverride{{Date: overrideDate, UserID: overrideUser}},
	}

	got, err := Resolve(schedule, time.Date(2026, 3, 2, 15, 30, 0, 0, time.UTC))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, overrideUser, *got)
}

func TestResolve_InvalidTimezone(t *testing.T) {
	schedule := &domain.OnCallSchedule{Timezone: "Not/A_Zone"}
	_, err := Resolve(schedule, time.Now())
	assert.ErrorIs(t, err, domain.ErrInvalidTimezone)
}

func TestResolve_InvalidRotationKind(t *testing.T) {
	schedule := &domain.OnCallSchedule{Timezone: "UTC", Rotation: domain.RotationSpec{Kind: "unknown"}}
	_, err := Resolve(schedule, time.Now())
	assert.ErrorIs(t, err, domain.ErrInvalidRotationSpec)
}
