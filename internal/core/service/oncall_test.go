package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insa-iiot/platform-core/internal/core/domain"
	"github.com/insa-iiot/platform-core/internal/core/port"
	"github.com/insa-iiot/platform-core/internal/core/service/mocks"
)

func TestOnCallService_Create(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()

	t.Run("persists a schedule with a valid rotation and timezone", func(t *testing.T) {
		schedules := mocks.NewMockOnCallScheduleRepository()
		svc := NewOnCallService(schedules, mocks.NewMockTenantContextSetter(), nil)

		result, err := svc.Create(ctx, port.CreateOnCallScheduleInput{
			TenantID: tenantID,
			Name:     "primary",
			Rotation: domain.RotationSpec{Kind: domain.RotationWeekly, Users: []uuid.UUID{uuid.New()}},
			Timezone: "UTC",
		})

		require.NoError(t, err)
		assert.Equal(t, "primary", result.Name)
		assert.True(t, schedules.SaveCalled)
	})

	t.Run("rejects an invalid rotation kind", func(t *testing.T) {
		svc := NewOnCallService(mocks.NewMockOnCallScheduleRepository(), mocks.NewMockTenantContextSetter(), nil)

		_, err := svc.Create(ctx, port.CreateOnCallScheduleInput{
			TenantID: tenantID,
			Rotation: domain.RotationSpec{Kind: "bogus"},
			Timezone: "UTC",
		})

		assert.ErrorIs(t, err, domain.ErrInvalidRotationSpec)
	})

	t.Run("rejects an invalid IANA timezone", func(t *testing.T) {
		svc := NewOnCallService(mocks.NewMockOnCallScheduleRepository(), mocks.NewMockTenantContextSetter(), nil)

		_, err := svc.Create(ctx, port.CreateOnCallScheduleInput{
			TenantID: tenantID,
			Rotation: domain.RotationSpec{Kind: domain.RotationWeekly, Users: []uuid.UUID{uuid.New()}},
			Timezone: "not/a/zone",
		})

		assert.ErrorIs(t, err, domain.ErrInvalidTimezone)
	})
}

func TestOnCallService_Update(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()

	t.Run("updates fields and invalidates the cache", func(t *testing.T) {
		scheduleID := uuid.New()
		schedules := mocks.NewMockOnCallScheduleRepository()
		schedules.AddSchedule(&domain.OnCallSchedule{
			ID:       scheduleID,
			TenantID: tenantID,
			Name:     "primary",
			Rotation: domain.RotationSpec{Kind: domain.RotationWeekly, Users: []uuid.UUID{uuid.New()}},
			Timezone: "UTC",
		})
		invalidator := mocks.NewMockCacheInvalidator()
		svc := NewOnCallService(schedules, mocks.NewMockTenantContextSetter(), invalidator)

		newName := "secondary"
		result, err := svc.Update(ctx, tenantID, scheduleID, port.UpdateOnCallScheduleInput{Name: &newName})

		require.NoError(t, err)
		assert.Equal(t, "secondary", result.Name)
		assert.True(t, schedules.UpdateCalled)
		require.Len(t, invalidator.InvalidateIDs, 1)
		assert.Equal(t, scheduleID, invalidator.InvalidateIDs[0])
	})

	t.Run("tolerates a nil invalidator", func(t *testing.T) {
		scheduleID := uuid.New()
		schedules := mocks.NewMockOnCallScheduleRepository()
		schedules.AddSchedule(&domain.OnCallSchedule{ID: scheduleID, TenantID: tenantID, Timezone: "UTC", Rotation: domain.RotationSpec{Kind: domain.RotationWeekly, Users: []uuid.UUID{uuid.New()}}})
		svc := NewOnCallService(schedules, mocks.NewMockTenantContextSetter(), nil)

		newName := "secondary"
		_, err := svc.Update(ctx, tenantID, scheduleID, port.UpdateOnCallScheduleInput{Name: &newName})

		require.NoError(t, err)
	})

	t.Run("rejects an invalid rotation kind on update", func(t *testing.T) {
		scheduleID := uuid.New()
		schedules := mocks.NewMockOnCallScheduleRepository()
		schedules.AddSchedule(&domain.OnCallSchedule{ID: scheduleID, TenantID: tenantID, Timezone: "UTC", Rotation: domain.RotationSpec{Kind: domain.RotationWeekly, Users: []uuid.UUID{uuid.New()}}})
		svc := NewOnCallService(schedules, mocks.NewMockTenantContextSetter(), nil)

		bad := domain.RotationSpec{Kind: "bogus"}
		_, err := svc.Update(ctx, tenantID, scheduleID, port.UpdateOnCallScheduleInput{Rotation: &bad})

		assert.ErrorIs(t, err, domain.ErrInvalidRotationSpec)
	})
}

func TestOnCallService_Delete(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()

	t.Run("deletes a schedule and invalidates the cache", func(t *testing.T) {
		scheduleID := uuid.New()
		schedules := mocks.NewMockOnCallScheduleRepository()
		schedules.AddSchedule(&domain.OnCallSchedule{ID: scheduleID, TenantID: tenantID})
		invalidator := mocks.NewMockCacheInvalidator()
		svc := NewOnCallService(schedules, mocks.NewMockTenantContextSetter(), invalidator)

		err := svc.Delete(ctx, tenantID, scheduleID)

		require.NoError(t, err)
		assert.True(t, schedules.DeleteCalled)
		assert.True(t, invalidator.InvalidateCalled())
	})
}

func TestOnCallService_Current(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()

	t.Run("resolves the schedule to the current on-call user", func(t *testing.T) {
		scheduleID, userID := uuid.New(), uuid.New()
		schedules := mocks.NewMockOnCallScheduleRepository()
		schedules.AddSchedule(&domain.OnCallSchedule{
			ID:       scheduleID,
			TenantID: tenantID,
			Timezone: "UTC",
			Rotation: domain.RotationSpec{Kind: domain.RotationWeekly, Users: []uuid.UUID{userID}},
		})
		svc := NewOnCallService(schedules, mocks.NewMockTenantContextSetter(), nil)

		result, err := svc.Current(ctx, tenantID, scheduleID)

		require.NoError(t, err)
		require.NotNil(t, result)
		assert.Equal(t, userID, *result)
	})

	t.Run("returns an error for an unknown schedule", func(t *testing.T) {
		svc := NewOnCallService(mocks.NewMockOnCallScheduleRepository(), mocks.NewMockTenantContextSetter(), nil)

		_, err := svc.Current(ctx, tenantID, uuid.New())

		require.Error(t, err)
	})
}
