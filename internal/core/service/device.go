package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/insa-iiot/platform-core/internal/core/domain"
	"github.com/insa-iiot/platform-core/internal/core/port"
)

// DeviceService implements port.DeviceService.
type DeviceService struct {
	devices      port.DeviceRepository
	tenants      port.TenantRepository
	tenantSetter port.TenantContextSetter
}

// NewDeviceService creates a new device service.
func NewDeviceService(devices port.DeviceRepository, tenants port.TenantRepository, tenantSetter port.TenantContextSetter) *DeviceService {
	return &DeviceService{devices: devices, tenants: tenants, tenantSetter: tenantSetter}
}

// List returns a page of a tenant's devices.
func (s *DeviceService) List(ctx context.Context, tenantID uuid.UUID, page, limit int) (*port.DeviceListResult, error) {
	if err := s.tenantSetter.SetTenantContext(ctx, tenantID); err != nil {
		return nil, err
	}
	offset := (page - 1) * limit
	devices, err := s.devices.FindByTenant(ctx, tenantID, limit, offset)
	if err != nil {
		return nil, err
	}
	total, err := s.devices.CountByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return &port.DeviceListResult{Devices: devices, Total: total, Page: page, Limit: limit}, nil
}

// GetByID returns a single device, scoped to tenantID.
func (s *DeviceService) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*domain.Device, error) {
	if err := s.tenantSetter.SetTenantContext(ctx, tenantID); err != nil {
		return nil, err
	}
	return s.devices.FindByID(ctx, tenantID, id)
}

// Create registers a new device after checking the tenant's device quota.
func (s *DeviceService) Create(ctx context.Context, input port.CreateDeviceInput) (*domain.Device, error) {
	if err := s.tenantSetter.SetTenantContext(ctx, input.TenantID); err != nil {
		return nil, err
	}
	if !input.Protocol.IsValid() {
		return nil, domain.ErrInvalidProtocolTag
	}

	tenant, err := s.tenants.FindByID(ctx, input.TenantID)
	if err != nil {
		return nil, err
	}
	count, err := s.devices.CountByTenant(ctx, input.TenantID)
	if err != nil {
		return nil, err
	}
	if tenant.Caps.ExceedsDeviceCap(int(count)) {
		return nil, domain.ErrQuotaExceeded
	}

	device := &domain.Device{
		ID:       uuid.New(),
		TenantID: input.TenantID,
		Name:     input.Name,
		Type:     input.Type,
		Protocol: input.Protocol,
		Status:   domain.DeviceStatusOffline,
		Metadata: input.Metadata,
	}
	if err := s.devices.Save(ctx, device); err != nil {
		return nil, err
	}
	return device, nil
}

// Update applies a partial update to a device's name, type, status, or metadata.
func (s *DeviceService) Update(ctx context.Context, tenantID, id uuid.UUID, input port.UpdateDeviceInput) (*domain.Device, error) {
	if err := s.tenantSetter.SetTenantContext(ctx, tenantID); err != nil {
		return nil, err
	}
	device, err := s.devices.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if input.Name != nil {
		device.Name = *input.Name
	}
	if input.Type != nil {
		device.Type = *input.Type
	}
	if input.Status != nil {
		if !input.Status.IsValid() {
			return nil, domain.ErrInvalidDeviceStatus
		}
		device.Status = *input.Status
	}
	if input.Metadata != nil {
		device.Metadata = input.Metadata
	}
	device.UpdatedAt = time.Now()
	if err := s.devices.Update(ctx, device); err != nil {
		return nil, err
	}
	return device, nil
}

// Delete removes a device and its telemetry ownership chain (enforced by the
// schema's ON DELETE CASCADE from devices to telemetry_points).
func (s *DeviceService) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	if err := s.tenantSetter.SetTenantContext(ctx, tenantID); err != nil {
		return err
	}
	return s.devices.Delete(ctx, tenantID, id)
}
