// Package mqtt implements the MQTT protocol adapter: a long-lived
// subscriber over four topic patterns feeding the ingestion pipeline, and a
// command publisher used by the remediation activities' DeviceCommand step.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/insa-iiot/platform-core/internal/core/domain"
	"github.com/insa-iiot/platform-core/internal/core/port"
)

// AlertCreator records an alert. Satisfied by internal/core/service's
// AlertService.
type AlertCreator interface {
	Create(ctx context.Context, input port.CreateAlertInput) (*domain.Alert, error)
}

// BindingResolver resolves a device id to its owning tenant id, needed
// because an externally-sourced alert payload carries a device id but not
// necessarily a tenant id.
type BindingResolver interface {
	Resolve(ctx context.Context, deviceID uuid.UUID) (uuid.UUID, error)
}

type StatusUpdater interface {
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.DeviceStatus, seenAt time.Time) error
}

// Config configures the MQTT adapter's broker connection and topic prefix.
type Config struct {
	Brokers  []string
	ClientID string
	Username string
	Password string
	// Prefix namespaces every topic, e.g. "iiot" yields "iiot/devices/+/telemetry".
	Prefix string
}

// Adapter subscribes to <prefix>/devices/+/telemetry, .../status,
// .../commands, and <prefix>/alerts/# at QoS 1. Telemetry payloads are
// normalized into a domain.NormalizedTelemetryEvent pushed onto the
// ingestion pipeline's input channel; status messages update the device's
// status, alert messages are recorded as alerts, and command acks are only
// logged.
type Adapter struct {
	cfg      Config
	client   mqtt.Client
	in       chan<- domain.NormalizedTelemetryEvent
	status   StatusUpdater
	alerts   AlertCreator
	bindings BindingResolver
	logger   *slog.Logger
}

// telemetryPayload is the wire shape devices publish on the telemetry topic.
type telemetryPayload struct {
	TenantID  *string                    `json:"tenant_id,omitempty"`
	Timestamp *time.Time                 `json:"timestamp,omitempty"`
	Readings  map[string]readingPayload  `json:"readings"`
}

type readingPayload struct {
	Value   json.Number `json:"value"`
	Unit    *string     `json:"unit,omitempty"`
	Quality *float64    `json:"quality,omitempty"`
}

type statusPayload struct {
	Status string `json:"status"`
}

type alertPayload struct {
	Severity  string          `json:"severity"`
	Message   string          `json:"message"`
	SourceKey string          `json:"source_key"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
}

func New(cfg Config, in chan<- domain.NormalizedTelemetryEvent, status StatusUpdater, alerts AlertCreator, bindings BindingResolver, logger *slog.Logger) *Adapter {
	return &Adapter{
		cfg: cfg, in: in, status: status, alerts: alerts, bindings: bindings,
		logger: logger.With("component", "mqtt_adapter"),
	}
}

// Start connects to the broker and subscribes to every topic pattern. Reconnects
// are handled by the paho client's own AutoReconnect with a capped backoff;
// onConnectionLost only logs, since resubscription on reconnect is handled by
// OnConnect below.
func (a *Adapter) Start(ctx context.Context) error {
	opts := mqtt.NewClientOptions()
	for _, b := range a.cfg.Brokers {
		opts.AddBroker(b)
	}
	opts.SetClientID(a.cfg.ClientID)
	if a.cfg.Username != "" {
		opts.SetUsername(a.cfg.Username)
		opts.SetPassword(a.cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.SetAutoAckDisabled(true)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		a.logger.Warn("mqtt connection lost", "error", err)
	})
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		a.logger.Info("mqtt connected, subscribing")
		for topic, handler := range a.subscriptions() {
			if token := c.Subscribe(topic, 1, handler); token.Wait() && token.Error() != nil {
				a.logger.Error("failed to subscribe", "topic", topic, "error", token.Error())
			}
		}
	})

	a.client = mqtt.NewClient(opts)
	token := a.client.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("connect to mqtt broker: %w", err)
	}

	go func() {
		<-ctx.Done()
		a.Stop()
	}()
	return nil
}

func (a *Adapter) Stop() {
	if a.client != nil && a.client.IsConnected() {
		a.client.Disconnect(250)
	}
}

func (a *Adapter) subscriptions() map[string]mqtt.MessageHandler {
	prefix := strings.TrimSuffix(a.cfg.Prefix, "/")
	return map[string]mqtt.MessageHandler{
		prefix + "/devices/+/telemetry": a.handleTelemetry,
		prefix + "/devices/+/status":    a.handleStatus,
		prefix + "/devices/+/commands":  a.handleCommandAck,
		prefix + "/alerts/#":            a.handleAlert,
	}
}

// deviceIDFromTopic extracts the device id segment from
// "<prefix>/devices/<id>/<leaf>".
func deviceIDFromTopic(topic string) (uuid.UUID, bool) {
	return deviceIDAfter(topic, "devices")
}

// deviceIDFromAlertTopic extracts the device id segment from
// "<prefix>/alerts/<id>".
func deviceIDFromAlertTopic(topic string) (uuid.UUID, bool) {
	return deviceIDAfter(topic, "alerts")
}

func deviceIDAfter(topic, marker string) (uuid.UUID, bool) {
	parts := strings.Split(topic, "/")
	for i, p := range parts {
		if p == marker && i+1 < len(parts) {
			id, err := uuid.Parse(parts[i+1])
			if err != nil {
				return uuid.Nil, false
			}
			return id, true
		}
	}
	return uuid.Nil, false
}

func (a *Adapter) handleTelemetry(client mqtt.Client, msg mqtt.Message) {
	deviceID, ok := deviceIDFromTopic(msg.Topic())
	if !ok {
		a.logger.Warn("telemetry message on malformed topic, dropping", "topic", msg.Topic())
		msg.Ack()
		return
	}

	var payload telemetryPayload
	if err := json.Unmarshal(msg.Payload(), &payload); err != nil {
		a.logger.Warn("malformed telemetry payload, dropping", "device_id", deviceID, "error", err)
		msg.Ack()
		return
	}

	evt := domain.NormalizedTelemetryEvent{
		DeviceID:       deviceID,
		Readings:       make(map[string]domain.Reading, len(payload.Readings)),
		SourceProtocol: domain.ProtocolMQTT,
		Raw:            msg.Payload(),
	}
	if payload.Timestamp != nil {
		evt.Timestamp = *payload.Timestamp
	} else {
		evt.Timestamp = time.Now()
	}
	for key, r := range payload.Readings {
		reading := domain.Reading{Unit: r.Unit, Quality: r.Quality}
		if f, err := r.Value.Float64(); err == nil {
			reading.NumericValue = &f
		} else {
			s := r.Value.String()
			reading.StringValue = &s
		}
		evt.Readings[key] = reading
	}

	select {
	case a.in <- evt:
		msg.Ack()
	default:
		// Back-pressure: leave the message unacked so the broker redelivers
		// it once the pipeline drains. Never block the MQTT client loop.
		a.logger.Warn("ingestion pipeline full, not acking telemetry message", "device_id", deviceID)
	}
}

func (a *Adapter) handleStatus(client mqtt.Client, msg mqtt.Message) {
	deviceID, ok := deviceIDFromTopic(msg.Topic())
	if !ok || a.status == nil {
		msg.Ack()
		return
	}
	var payload statusPayload
	if err := json.Unmarshal(msg.Payload(), &payload); err != nil {
		a.logger.Warn("malformed status payload, dropping", "device_id", deviceID, "error", err)
		msg.Ack()
		return
	}
	status := domain.DeviceStatus(payload.Status)
	if !status.IsValid() {
		a.logger.Warn("unrecognized device status, dropping", "device_id", deviceID, "status", payload.Status)
		msg.Ack()
		return
	}
	if err := a.status.UpdateStatus(context.Background(), deviceID, status, time.Now()); err != nil {
		a.logger.Error("failed to apply status update", "device_id", deviceID, "error", err)
	}
	msg.Ack()
}

func (a *Adapter) handleCommandAck(client mqtt.Client, msg mqtt.Message) {
	deviceID, _ := deviceIDFromTopic(msg.Topic())
	a.logger.Debug("device command ack", "device_id", deviceID, "payload", string(msg.Payload()))
	msg.Ack()
}

func (a *Adapter) handleAlert(client mqtt.Client, msg mqtt.Message) {
	deviceID, ok := deviceIDFromAlertTopic(msg.Topic())
	if !ok || a.alerts == nil || a.bindings == nil {
		msg.Ack()
		return
	}
	var payload alertPayload
	if err := json.Unmarshal(msg.Payload(), &payload); err != nil {
		a.logger.Warn("malformed alert payload, dropping", "device_id", deviceID, "error", err)
		msg.Ack()
		return
	}
	ctx := context.Background()
	tenantID, err := a.bindings.Resolve(ctx, deviceID)
	if err != nil {
		a.logger.Warn("unbound device published an alert, dropping", "device_id", deviceID, "error", err)
		msg.Ack()
		return
	}
	var sourceKey *string
	if payload.SourceKey != "" {
		sourceKey = &payload.SourceKey
	}
	input := port.CreateAlertInput{
		TenantID: tenantID, DeviceID: deviceID,
		Severity: domain.AlertSeverity(payload.Severity), Message: payload.Message,
		Metadata: payload.Metadata, ExternalSourceKey: sourceKey,
	}
	if _, err := a.alerts.Create(ctx, input); err != nil {
		a.logger.Error("failed to record externally sourced alert", "device_id", deviceID, "error", err)
	}
	msg.Ack()
}

// PublishCommand implements activity.CommandPublisher, delivering a command
// to a device's command topic at QoS 1.
func (a *Adapter) PublishCommand(ctx context.Context, deviceID uuid.UUID, command string, params map[string]interface{}) error {
	topic := fmt.Sprintf("%s/devices/%s/commands", strings.TrimSuffix(a.cfg.Prefix, "/"), deviceID)
	payload, err := json.Marshal(map[string]interface{}{"command": command, "params": params})
	if err != nil {
		return fmt.Errorf("marshal command payload: %w", err)
	}
	token := a.client.Publish(topic, 1, false, payload)
	token.Wait()
	return token.Error()
}
