package opcua

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/insa-iiot/platform-core/internal/core/domain"
)

type fakeTenantSource struct {
	tenants []*domain.Tenant
}

func (f *fakeTenantSource) List(ctx context.Context, limit, offset int) ([]*domain.Tenant, error) {
	if offset >= len(f.tenants) {
		return nil, nil
	}
	end := offset + limit
	if end > len(f.tenants) {
		end = len(f.tenants)
	}
	return f.tenants[offset:end], nil
}

type fakeDeviceSource struct {
	byTenant map[uuid.UUID][]*domain.Device
}

func (f *fakeDeviceSource) FindByTenant(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*domain.Device, error) {
	if offset > 0 {
		return nil, nil
	}
	return f.byTenant[tenantID], nil
}

type fakeTelemetrySource struct {
	latest map[string]*domain.TelemetryPoint
}

func (f *fakeTelemetrySource) Latest(ctx context.Context, tenantID, deviceID uuid.UUID, key string) (*domain.TelemetryPoint, error) {
	p, ok := f.latest[deviceID.String()+":"+key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

func TestSyncWorker_RunOnce(t *testing.T) {
	tenantID, deviceID := uuid.New(), uuid.New()
	temp := 55.0

	space := NewAddressSpace()
	tenants := &fakeTenantSource{tenants: []*domain.Tenant{{ID: tenantID}}}
	devices := &fakeDeviceSource{byTenant: map[uuid.UUID][]*domain.Device{tenantID: {{ID: deviceID, Type: "sensor"}}}}
	telemetry := &fakeTelemetrySource{latest: map[string]*domain.TelemetryPoint{
		deviceID.String() + ":temperature": {NumericValue: &temp},
	}}

	w := NewSyncWorker(space, tenants, devices, telemetry, []string{"temperature", "humidity"}, nil, testLogger())
	w.runOnce(context.Background())

	node, ok := space.Read(deviceID)
	assertReadOk(t, ok)
	assert.Equal(t, 55.0, node.Telemetry["temperature"])
	_, hasHumidity := node.Telemetry["humidity"]
	assert.False(t, hasHumidity)
}

func TestSyncWorker_RunOnce_SkipsWhenPipelineSaturated(t *testing.T) {
	tenantID, deviceID := uuid.New(), uuid.New()
	space := NewAddressSpace()
	tenants := &fakeTenantSource{tenants: []*domain.Tenant{{ID: tenantID}}}
	devices := &fakeDeviceSource{byTenant: map[uuid.UUID][]*domain.Device{tenantID: {{ID: deviceID}}}}
	telemetry := &fakeTelemetrySource{latest: map[string]*domain.TelemetryPoint{}}

	full := make(chan domain.NormalizedTelemetryEvent, 1)
	full <- domain.NormalizedTelemetryEvent{}

	w := NewSyncWorker(space, tenants, devices, telemetry, nil, full, testLogger())
	w.runOnce(context.Background())

	_, ok := space.Read(deviceID)
	assert.False(t, ok) // never reached the upsert because the tick was skipped
}

func assertReadOk(t *testing.T, ok bool) {
	t.Helper()
	if !ok {
		t.Fatal("expected device node to be present")
	}
}
