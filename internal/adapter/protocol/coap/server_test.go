package coap

import (
	"context"
	"io"
	"log/slog"
	"testing"

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
	return f.tenantID, f.err
}

type fakeDeviceLister struct {
	byID      map[uuid.UUID]*domain.Device
	byTenant  map[uuid.UUID][]*domain.Device
}

func (f *fakeDeviceLister) FindByIDAnyTenant(ctx context.Context, id uuid.UUID) (*domain.Device, error) {
	d, ok := f.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return d, nil
}

func (f *fakeDeviceLister) FindByTenant(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*domain.Device, error) {
	return f.byTenant[tenantID], nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestServer_HandleTelemetry(t *testing.T) {
	deviceID, tenantID := uuid.New(), uuid.New()

	t.Run("tenant id in payload is accepted directly", func(t *testing.T) {
		in := make(chan domain.NormalizedTelemetryEvent, 1)
		s := New(Config{}, in, nil, nil, testLogger())

		body := []byte(`{"device_id":"` + deviceID.String() + `","tenant_id":"` + tenantID.String() + `","readings":{"temperature":{"value":20}}}`)
		req := buildRequest(t, CodePOST, "/telemetry", nil, ContentFormatJSON, body)

		resp := s.handleTelemetry(context.Background(), req)
		require.Equal(t, CodeCreated, resp.Code)

		evt := <-in
		assert.Equal(t, tenantID, evt.TenantID)
		assert.Equal(t, deviceID, evt.DeviceID)
	})

	t.Run("missing tenant id falls back to binding resolution", func(t *testing.T) {
		in := make(chan domain.NormalizedTelemetryEvent, 1)
		s := New(Config{}, in, &fakeBindingResolver{tenantID: tenantID}, nil, testLogger())

		body := []byte(`{"device_id":"` + deviceID.String() + `","readings":{"temperature":{"value":20}}}`)
		req := buildRequest(t, CodePOST, "/telemetry", nil, ContentFormatJSON, body)

		resp := s.handleTelemetry(context.Background(), req)
		require.Equal(t, CodeCreated, resp.Code)
		evt := <-in
		assert.Equal(t, tenantID, evt.TenantID)
	})

	t.Run("unresolvable tenant returns 4.03 forbidden", func(t *testing.T) {
		in := make(chan domain.NormalizedTelemetryEvent, 1)
		s := New(Config{}, in, &fakeBindingResolver{err: domain.ErrNotFound}, nil, testLogger())

		body := []byte(`{"device_id":"` + deviceID.String() + `","readings":{"temperature":{"value":20}}}`)
		req := buildRequest(t, CodePOST, "/telemetry", nil, ContentFormatJSON, body)

		resp := s.handleTelemetry(context.Background(), req)
		assert.Equal(t, CodeForbidden, resp.Code)
	})

	t.Run("malformed payload returns 4.00 bad request", func(t *testing.T) {
		in := make(chan domain.NormalizedTelemetryEvent, 1)
		s := New(Config{}, in, nil, nil, testLogger())

		req := buildRequest(t, CodePOST, "/telemetry", nil, ContentFormatJSON, []byte("not json"))
		resp := s.handleTelemetry(context.Background(), req)
		assert.Equal(t, CodeBadRequest, resp.Code)
	})

	t.Run("full pipeline channel returns 5.03 service unavailable", func(t *testing.T) {
		in := make(chan domain.NormalizedTelemetryEvent, 1)
		in <- domain.NormalizedTelemetryEvent{}
		s := New(Config{}, in, nil, nil, testLogger())

		body := []byte(`{"device_id":"` + deviceID.String() + `","tenant_id":"` + tenantID.String() + `","readings":{"temperature":{"value":20}}}`)
		req := buildRequest(t, CodePOST, "/telemetry", nil, ContentFormatJSON, body)

		resp := s.handleTelemetry(context.Background(), req)
		assert.Equal(t, CodeServiceUnavailable, resp.Code)
	})
}

func TestServer_HandleDevices(t *testing.T) {
	deviceID, tenantID := uuid.New(), uuid.New()
	device := &domain.Device{ID: deviceID, TenantID: tenantID, Name: "sensor-1"}
	lister := &fakeDeviceLister{
		byID:     map[uuid.UUID]*domain.Device{deviceID: device},
		byTenant: map[uuid.UUID][]*domain.Device{tenantID: {device}},
	}

	t.Run("lookup by id", func(t *testing.T) {
		s := New(Config{}, nil, nil, lister, testLogger())
		req := buildRequest(t, CodeGET, "/devices", map[string]string{"id": deviceID.String()}, -1, nil)
		resp := s.handleDevices(context.Background(), req)
		assert.Equal(t, CodeContent, resp.Code)
		assert.Contains(t, string(resp.Payload), "sensor-1")
	})

	t.Run("lookup by tenant id", func(t *testing.T) {
		s := New(Config{}, nil, nil, lister, testLogger())
		req := buildRequest(t, CodeGET, "/devices", map[string]string{"tenant_id": tenantID.String()}, -1, nil)
		resp := s.handleDevices(context.Background(), req)
		assert.Equal(t, CodeContent, resp.Code)
	})

	t.Run("unknown device id returns 4.04", func(t *testing.T) {
		s := New(Config{}, nil, nil, lister, testLogger())
		req := buildRequest(t, CodeGET, "/devices", map[string]string{"id": uuid.New().String()}, -1, nil)
		resp := s.handleDevices(context.Background(), req)
		assert.Equal(t, CodeNotFound, resp.Code)
	})

	t.Run("no query parameters returns 4.00", func(t *testing.T) {
		s := New(Config{}, nil, nil, lister, testLogger())
		req := buildRequest(t, CodeGET, "/devices", nil, -1, nil)
		resp := s.handleDevices(context.Background(), req)
		assert.Equal(t, CodeBadRequest, resp.Code)
	})
}

func TestServer_HandleDiscovery(t *testing.T) {
	s := New(Config{}, nil, nil, nil, testLogger())
	req := buildRequest(t, CodeGET, "/.well-known/core", nil, -1, nil)
	resp := s.handleDiscovery(req)
	assert.Equal(t, CodeContent, resp.Code)
	assert.Contains(t, string(resp.Payload), "/telemetry")
}
