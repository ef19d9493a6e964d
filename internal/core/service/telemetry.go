package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/insa-iiot/platform-core/internal/core/domain"
	"github.com/insa-iiot/platform-core/internal/core/port"
)

// TelemetryService implements port.TelemetryService.
type TelemetryService struct {
	telemetry    port.TelemetryRepository
	tenants      port.TenantRepository
	tenantSetter port.TenantContextSetter
}

// NewTelemetryService creates a new telemetry service.
func NewTelemetryService(telemetry port.TelemetryRepository, tenants port.TenantRepository, tenantSetter port.TenantContextSetter) *TelemetryService {
	return &TelemetryService{telemetry: telemetry, tenants: tenants, tenantSetter: tenantSetter}
}

// IngestBatch validates and quota-checks a batch before writing it. Quota
// reservation happens before the write so two concurrent batches cannot both
// observe headroom for the same last slot (§4.1).
func (s *TelemetryService) IngestBatch(ctx context.Context, tenantID uuid.UUID, points []*domain.TelemetryPoint) (int, error) {
	if len(points) == 0 {
		return 0, nil
	}
	if err := s.tenantSetter.SetTenantContext(ctx, tenantID); err != nil {
		return 0, err
	}

	for _, p := range points {
		if err := p.Validate(); err != nil {
			return 0, err
		}
	}

	tenant, err := s.tenants.FindByID(ctx, tenantID)
	if err != nil {
		return 0, err
	}
	if err := s.telemetry.ReserveQuota(ctx, tenantID, int64(len(points)), tenant.Caps.MaxTelemetryPerDay); err != nil {
		return 0, err
	}

	return s.telemetry.InsertBatch(ctx, points)
}

// Fetch returns a page of raw telemetry points for a device/key/window.
func (s *TelemetryService) Fetch(ctx context.Context, query domain.TelemetryQuery) (*port.TelemetryFetchResult, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}
	if err := s.tenantSetter.SetTenantContext(ctx, query.TenantID); err != nil {
		return nil, err
	}
	points, cursor, err := s.telemetry.Fetch(ctx, query)
	if err != nil {
		return nil, err
	}
	return &port.TelemetryFetchResult{Points: points, NextCursor: cursor}, nil
}

// Aggregate computes avg/min/max/count/stddev over a device/key/window.
func (s *TelemetryService) Aggregate(ctx context.Context, query domain.TelemetryQuery, agg domain.AggregationType) (*domain.AggregateResult, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}
	if !agg.IsValid() {
		return nil, domain.ErrInvalidAggregate
	}
	if err := s.tenantSetter.SetTenantContext(ctx, query.TenantID); err != nil {
		return nil, err
	}
	return s.telemetry.Aggregate(ctx, query, agg)
}
