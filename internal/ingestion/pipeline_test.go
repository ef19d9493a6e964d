package ingestion

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insa-iiot/platform-core/internal/core/domain"
)

type fakeBindingResolver struct {
	tenantID uuid.UUID
	err      error
}

func (f *fakeBindingResolver) Resolve(ctx context.Context, deviceID uuid.UUID) (uuid.UUID, error) {
	if f.err != nil {
		return uuid.Nil, f.err
	}
	return f.tenantID, nil
}

type fakeDeviceRepository struct {
	statusUpdates int
}

func (f *fakeDeviceRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*domain.Device, error) {
	return nil, domain.ErrNotFound
}
func (f *fakeDeviceRepository) FindByIDAnyTenant(ctx context.Context, id uuid.UUID) (*domain.Device, error) {
	return nil, domain.ErrNotFound
}
func (f *fakeDeviceRepository) FindByTenant(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*domain.Device, error) {
	return nil, nil
}
func (f *fakeDeviceRepository) CountByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	return 0, nil
}
func (f *fakeDeviceRepository) Save(ctx context.Context, device *domain.Device) error   { return nil }
func (f *fakeDeviceRepository) Update(ctx context.Context, device *domain.Device) error { return nil }
func (f *fakeDeviceRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	return nil
}
func (f *fakeDeviceRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.DeviceStatus, seenAt time.Time) error {
	f.statusUpdates++
	return nil
}

type fakeTenantRepository struct {
	tenant *domain.Tenant
}

func (f *fakeTenantRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Tenant, error) {
	if f.tenant == nil {
		return nil, domain.ErrNotFound
	}
	return f.tenant, nil
}
func (f *fakeTenantRepository) FindBySlug(ctx context.Context, slug string) (*domain.Tenant, error) {
	return nil, domain.ErrNotFound
}
func (f *fakeTenantRepository) List(ctx context.Context, limit, offset int) ([]*domain.Tenant, error) {
	return nil, nil
}
func (f *fakeTenantRepository) Count(ctx context.Context) (int64, error)           { return 0, nil }
func (f *fakeTenantRepository) Save(ctx context.Context, tenant *domain.Tenant) error   { return nil }
func (f *fakeTenantRepository) Update(ctx context.Context, tenant *domain.Tenant) error { return nil }
func (f *fakeTenantRepository) Stats(ctx context.Context, tenantID uuid.UUID) (*domain.TenantStats, error) {
	return nil, nil
}

type fakeTelemetryRepository struct {
	insertedBatches [][]*domain.TelemetryPoint
	quotaErr        error
	insertErr       error
}

func (f *fakeTelemetryRepository) InsertBatch(ctx context.Context, points []*domain.TelemetryPoint) (int, error) {
	if f.insertErr != nil {
		return 0, f.insertErr
	}
	f.insertedBatches = append(f.insertedBatches, points)
	return len(points), nil
}
func (f *fakeTelemetryRepository) Fetch(ctx context.Context, query domain.TelemetryQuery) ([]*domain.TelemetryPoint, string, error) {
	return nil, "", nil
}
func (f *fakeTelemetryRepository) Latest(ctx context.Context, tenantID, deviceID uuid.UUID, key string) (*domain.TelemetryPoint, error) {
	return nil, domain.ErrNotFound
}
func (f *fakeTelemetryRepository) Aggregate(ctx context.Context, query domain.TelemetryQuery, agg domain.AggregationType) (*domain.AggregateResult, error) {
	return &domain.AggregateResult{}, nil
}
func (f *fakeTelemetryRepository) CountToday(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	return 0, nil
}
func (f *fakeTelemetryRepository) ReserveQuota(ctx context.Context, tenantID uuid.UUID, n int64, cap *int64) error {
	return f.quotaErr
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func numericReading(v float64) domain.Reading {
	return domain.Reading{NumericValue: &v}
}

func TestPipeline_Process(t *testing.T) {
	tenantID, deviceID := uuid.New(), uuid.New()
	tenant := &domain.Tenant{ID: tenantID, Caps: domain.ResourceCaps{}}

	t.Run("resolves tenant, validates, persists, updates device, and republishes", func(t *testing.T) {
		devices := &fakeDeviceRepository{}
		telemetry := &fakeTelemetryRepository{}
		p := NewPipeline(&fakeBindingResolver{tenantID: tenantID}, devices, &fakeTenantRepository{tenant: tenant}, telemetry, nil, testLogger())

		evt := domain.NormalizedTelemetryEvent{
			DeviceID:       deviceID,
			Readings:       map[string]domain.Reading{"temperature": numericReading(42)},
			Timestamp:      time.Now(),
			SourceProtocol: domain.ProtocolMQTT,
		}

		p.process(context.Background(), evt)

		require.Len(t, telemetry.insertedBatches, 1)
		assert.Equal(t, tenantID, telemetry.insertedBatches[0][0].TenantID)
		assert.Equal(t, 1, devices.statusUpdates)

		select {
		case out := <-p.Out():
			assert.Equal(t, tenantID, out.TenantID)
		default:
			t.Fatal("expected an event on the output channel")
		}
	})

	t.Run("unresolvable device drops the event without touching telemetry", func(t *testing.T) {
		telemetry := &fakeTelemetryRepository{}
		p := NewPipeline(&fakeBindingResolver{err: domain.ErrNotFound}, &fakeDeviceRepository{}, &fakeTenantRepository{tenant: tenant}, telemetry, nil, testLogger())

		p.process(context.Background(), domain.NormalizedTelemetryEvent{DeviceID: deviceID})

		assert.Empty(t, telemetry.insertedBatches)
	})

	t.Run("quota exceeded drops the batch without inserting", func(t *testing.T) {
		telemetry := &fakeTelemetryRepository{quotaErr: domain.ErrQuotaExceeded}
		p := NewPipeline(&fakeBindingResolver{tenantID: tenantID}, &fakeDeviceRepository{}, &fakeTenantRepository{tenant: tenant}, telemetry, nil, testLogger())

		evt := domain.NormalizedTelemetryEvent{
			DeviceID:  deviceID,
			Readings:  map[string]domain.Reading{"temperature": numericReading(42)},
			Timestamp: time.Now(),
		}
		p.process(context.Background(), evt)

		assert.Empty(t, telemetry.insertedBatches)
	})

	t.Run("invalid readings are dropped before the quota check, valid ones still flow through", func(t *testing.T) {
		telemetry := &fakeTelemetryRepository{}
		p := NewPipeline(&fakeBindingResolver{tenantID: tenantID}, &fakeDeviceRepository{}, &fakeTenantRepository{tenant: tenant}, telemetry, nil, testLogger())

		evt := domain.NormalizedTelemetryEvent{
			DeviceID: deviceID,
			Readings: map[string]domain.Reading{
				"temperature": numericReading(42),
				"bad":         {}, // neither numeric nor string value set
			},
			Timestamp: time.Now(),
		}
		p.process(context.Background(), evt)

		require.Len(t, telemetry.insertedBatches, 1)
		assert.Len(t, telemetry.insertedBatches[0], 1)
	})

	t.Run("all-invalid batch never reaches the quota check", func(t *testing.T) {
		telemetry := &fakeTelemetryRepository{}
		p := NewPipeline(&fakeBindingResolver{tenantID: tenantID}, &fakeDeviceRepository{}, &fakeTenantRepository{tenant: tenant}, telemetry, nil, testLogger())

		evt := domain.NormalizedTelemetryEvent{
			DeviceID:  deviceID,
			Readings:  map[string]domain.Reading{"bad": {}},
			Timestamp: time.Now(),
		}
		p.process(context.Background(), evt)

		assert.Empty(t, telemetry.insertedBatches)
	})
}

func TestPipeline_StartStop(t *testing.T) {
	tenantID, deviceID := uuid.New(), uuid.New()
	tenant := &domain.Tenant{ID: tenantID}
	telemetry := &fakeTelemetryRepository{}
	p := NewPipeline(&fakeBindingResolver{tenantID: tenantID}, &fakeDeviceRepository{}, &fakeTenantRepository{tenant: tenant}, telemetry, nil, testLogger())

	ctx := context.Background()
	p.Start(ctx)
	defer p.Stop()

	p.In() <- domain.NormalizedTelemetryEvent{
		DeviceID:  deviceID,
		Readings:  map[string]domain.Reading{"temperature": numericReading(10)},
		Timestamp: time.Now(),
	}

	require.Eventually(t, func() bool {
		return len(telemetry.insertedBatches) == 1
	}, time.Second, 5*time.Millisecond)
}
