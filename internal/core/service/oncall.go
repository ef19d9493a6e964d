package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/insa-iiot/platform-core/internal/core/domain"
	"github.com/insa-iiot/platform-core/internal/core/port"
	"github.com/insa-iiot/platform-core/internal/oncall"
)

// CacheInvalidator evicts cached on-call resolutions for a schedule,
// satisfied by oncall.CachedResolver. Optional: with a nil invalidator a
// schedule edit evicts nothing, and resolvers keep serving their cached
// answer until its TTL lapses.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, scheduleID uuid.UUID)
}

// OnCallService implements port.OnCallService.
type OnCallService struct {
	schedules    port.OnCallScheduleRepository
	tenantSetter port.TenantContextSetter
	invalidator  CacheInvalidator
}

// NewOnCallService creates a new on-call service. invalidator may be nil.
func NewOnCallService(schedules port.OnCallScheduleRepository, tenantSetter port.TenantContextSetter, invalidator CacheInvalidator) *OnCallService {
	return &OnCallService{schedules: schedules, tenantSetter: tenantSetter, invalidator: invalidator}
}

// List returns a page of a tenant's on-call schedules.
func (s *OnCallService) List(ctx context.Context, tenantID uuid.UUID, page, limit int) (*port.OnCallScheduleListResult, error) {
	if err := s.tenantSetter.SetTenantContext(ctx, tenantID); err != nil {
		return nil, err
	}
	offset := (page - 1) * limit
	schedules, err := s.schedules.FindByTenant(ctx, tenantID, limit, offset)
	if err != nil {
		return nil, err
	}
	return &port.OnCallScheduleListResult{Schedules: schedules, Total: int64(len(schedules)), Page: page, Limit: limit}, nil
}

// GetByID returns a single schedule, scoped to tenantID.
func (s *OnCallService) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*domain.OnCallSchedule, error) {
	if err := s.tenantSetter.SetTenantContext(ctx, tenantID); err != nil {
		return nil, err
	}
	return s.schedules.FindByID(ctx, tenantID, id)
}

// Create validates the rotation spec and timezone and persists a new schedule.
func (s *OnCallService) Create(ctx context.Context, input port.CreateOnCallScheduleInput) (*domain.OnCallSchedule, error) {
	if err := s.tenantSetter.SetTenantContext(ctx, input.TenantID); err != nil {
		return nil, err
	}
	if !input.Rotation.Kind.IsValid() {
		return nil, domain.ErrInvalidRotationSpec
	}
	if _, err := time.LoadLocation(input.Timezone); err != nil {
		return nil, domain.ErrInvalidTimezone
	}

	schedule := &domain.OnCallSchedule{
		ID:        uuid.New(),
		TenantID:  input.TenantID,
		Name:      input.Name,
		Rotation:  input.Rotation,
		Overrides: input.Overrides,
		Timezone:  input.Timezone,
	}
	if err := s.schedules.Save(ctx, schedule); err != nil {
		return nil, err
	}
	return schedule, nil
}

// Update applies a partial update to a schedule.
func (s *OnCallService) Update(ctx context.Context, tenantID, id uuid.UUID, input port.UpdateOnCallScheduleInput) (*domain.OnCallSchedule, error) {
	if err := s.tenantSetter.SetTenantContext(ctx, tenantID); err != nil {
		return nil, err
	}
	schedule, err := s.schedules.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if input.Name != nil {
		schedule.Name = *input.Name
	}
	if input.Rotation != nil {
		if !input.Rotation.Kind.IsValid() {
			return nil, domain.ErrInvalidRotationSpec
		}
		schedule.Rotation = *input.Rotation
	}
	if input.Overrides != nil {
		schedule.Overrides = input.Overrides
	}
	if input.Timezone != nil {
		if _, err := time.LoadLocation(*input.Timezone); err != nil {
			return nil, domain.ErrInvalidTimezone
		}
		schedule.Timezone = *input.Timezone
	}
	if err := s.schedules.Update(ctx, schedule); err != nil {
		return nil, err
	}
	if s.invalidator != nil {
		s.invalidator.Invalidate(ctx, schedule.ID)
	}
	return schedule, nil
}

// Delete removes an on-call schedule.
func (s *OnCallService) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	if err := s.tenantSetter.SetTenantContext(ctx, tenantID); err != nil {
		return err
	}
	if err := s.schedules.Delete(ctx, tenantID, id); err != nil {
		return err
	}
	if s.invalidator != nil {
		s.invalidator.Invalidate(ctx, id)
	}
	return nil
}

// Current resolves the schedule to the user on call right now.
func (s *OnCallService) Current(ctx context.Context, tenantID, scheduleID uuid.UUID) (*uuid.UUID, error) {
	if err := s.tenantSetter.SetTenantContext(ctx, tenantID); err != nil {
		return nil, err
	}
	schedule, err := s.schedules.FindByID(ctx, tenantID, scheduleID)
	if err != nil {
		return nil, err
	}
	return oncall.Resolve(schedule, time.Now())
}
