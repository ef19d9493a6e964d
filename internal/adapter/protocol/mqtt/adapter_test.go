package mqtt

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insa-iiot/platform-core/internal/core/domain"
	"github.com/insa-iiot/platform-core/internal/core/port"
)

type fakeMessage struct {
	topic   string
	payload []byte
	acked   bool
}

func (m *fakeMessage) Duplicate() bool   { return false }
func (m *fakeMessage) Qos() byte         { return 1 }
func (m *fakeMessage) Retained() bool    { return false }
func (m *fakeMessage) Topic() string     { return m.topic }
func (m *fakeMessage) MessageID() uint16 { return 1 }
func (m *fakeMessage) Payload() []byte   { return m.payload }
func (m *fakeMessage) Ack()              { m.acked = true }

type fakeStatusUpdater struct {
	calls []domain.DeviceStatus
}

func (f *fakeStatusUpdater) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.DeviceStatus, seenAt time.Time) error {
	f.calls = append(f.calls, status)
	return nil
}

type fakeAlertCreator struct {
	calls []port.CreateAlertInput
}

func (f *fakeAlertCreator) Create(ctx context.Context, input port.CreateAlertInput) (*domain.Alert, error) {
	f.calls = append(f.calls, input)
	return &domain.Alert{}, nil
}

type fakeBindingResolver struct {
	tenantID uuid.UUID
	err      error
}

func (f *fakeBindingResolver) Resolve(ctx context.Context, deviceID uuid.UUID) (uuid.UUID, error) {
	return f.tenantID, f.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDeviceIDFromTopic(t *testing.T) {
	deviceID := uuid.New()

	t.Run("extracts id between devices and leaf segment", func(t *testing.T) {
		id, ok := deviceIDFromTopic("iiot/devices/" + deviceID.String() + "/telemetry")
		require.True(t, ok)
		assert.Equal(t, deviceID, id)
	})

	t.Run("rejects a non-uuid segment", func(t *testing.T) {
		_, ok := deviceIDFromTopic("iiot/devices/not-a-uuid/telemetry")
		assert.False(t, ok)
	})

	t.Run("rejects a topic with no devices segment", func(t *testing.T) {
		_, ok := deviceIDFromTopic("iiot/alerts/something")
		assert.False(t, ok)
	})
}

func TestAdapter_HandleTelemetry(t *testing.T) {
	deviceID := uuid.New()

	t.Run("valid payload is pushed and acked", func(t *testing.T) {
		in := make(chan domain.NormalizedTelemetryEvent, 1)
		a := New(Config{Prefix: "iiot"}, in, nil, nil, nil, testLogger())

		msg := &fakeMessage{
			topic:   "iiot/devices/" + deviceID.String() + "/telemetry",
			payload: []byte(`{"readings":{"temperature":{"value":42.5,"unit":"C"}}}`),
		}
		a.handleTelemetry(nil, msg)

		require.True(t, msg.acked)
		select {
		case evt := <-in:
			assert.Equal(t, deviceID, evt.DeviceID)
			require.Contains(t, evt.Readings, "temperature")
			require.NotNil(t, evt.Readings["temperature"].NumericValue)
			assert.Equal(t, 42.5, *evt.Readings["temperature"].NumericValue)
		default:
			t.Fatal("expected an event on the input channel")
		}
	})

	t.Run("malformed payload is dropped and acked", func(t *testing.T) {
		in := make(chan domain.NormalizedTelemetryEvent, 1)
		a := New(Config{Prefix: "iiot"}, in, nil, nil, nil, testLogger())

		msg := &fakeMessage{topic: "iiot/devices/" + deviceID.String() + "/telemetry", payload: []byte("not json")}
		a.handleTelemetry(nil, msg)

		assert.True(t, msg.acked)
		assert.Empty(t, in)
	})

	t.Run("full pipeline channel is left unacked", func(t *testing.T) {
		in := make(chan domain.NormalizedTelemetryEvent, 1)
		in <- domain.NormalizedTelemetryEvent{} // fill capacity
		a := New(Config{Prefix: "iiot"}, in, nil, nil, nil, testLogger())

		msg := &fakeMessage{
			topic:   "iiot/devices/" + deviceID.String() + "/telemetry",
			payload: []byte(`{"readings":{"temperature":{"value":1}}}`),
		}
		a.handleTelemetry(nil, msg)

		assert.False(t, msg.acked)
	})
}

func TestAdapter_HandleStatus(t *testing.T) {
	deviceID := uuid.New()

	t.Run("valid status updates and acks", func(t *testing.T) {
		status := &fakeStatusUpdater{}
		a := New(Config{Prefix: "iiot"}, nil, status, nil, nil, testLogger())

		msg := &fakeMessage{topic: "iiot/devices/" + deviceID.String() + "/status", payload: []byte(`{"status":"offline"}`)}
		a.handleStatus(nil, msg)

		require.True(t, msg.acked)
		require.Len(t, status.calls, 1)
		assert.Equal(t, domain.DeviceStatusOffline, status.calls[0])
	})

	t.Run("unrecognized status is dropped without updating", func(t *testing.T) {
		status := &fakeStatusUpdater{}
		a := New(Config{Prefix: "iiot"}, nil, status, nil, nil, testLogger())

		msg := &fakeMessage{topic: "iiot/devices/" + deviceID.String() + "/status", payload: []byte(`{"status":"on_fire"}`)}
		a.handleStatus(nil, msg)

		assert.True(t, msg.acked)
		assert.Empty(t, status.calls)
	})
}

func TestAdapter_HandleAlert(t *testing.T) {
	deviceID, tenantID := uuid.New(), uuid.New()

	t.Run("resolves tenant and records the alert", func(t *testing.T) {
		alerts := &fakeAlertCreator{}
		a := New(Config{Prefix: "iiot"}, nil, nil, alerts, &fakeBindingResolver{tenantID: tenantID}, testLogger())

		msg := &fakeMessage{
			topic:   "iiot/alerts/" + deviceID.String(),
			payload: []byte(`{"severity":"critical","message":"overheat","source_key":"dev-temp-1"}`),
		}
		a.handleAlert(nil, msg)

		require.True(t, msg.acked)
		require.Len(t, alerts.calls, 1)
		assert.Equal(t, tenantID, alerts.calls[0].TenantID)
		assert.Equal(t, "dev-temp-1", *alerts.calls[0].ExternalSourceKey)
	})

	t.Run("unbound device drops the alert", func(t *testing.T) {
		alerts := &fakeAlertCreator{}
		a := New(Config{Prefix: "iiot"}, nil, nil, alerts, &fakeBindingResolver{err: domain.ErrNotFound}, testLogger())

		msg := &fakeMessage{topic: "iiot/alerts/" + deviceID.String(), payload: []byte(`{"severity":"critical","message":"x"}`)}
		a.handleAlert(nil, msg)

		assert.True(t, msg.acked)
		assert.Empty(t, alerts.calls)
	})
}

var _ mqtt.Message = (*fakeMessage)(nil)
