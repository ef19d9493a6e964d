// Package amqp implements the AMQP protocol adapter: a consumer on the
// durable "telemetry" queue bound to the "iiot" topic exchange, and a
// publisher for downstream alert and command messages.
package amqp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/insa-iiot/platform-core/internal/core/domain"
)

func parseDeviceID(raw string) (uuid.UUID, error) {
	return uuid.Parse(raw)
}

const (
	exchangeName = "iiot"
	queueName    = "telemetry"
	bindingKey   = "telemetry.*"
)

// Config configures the AMQP adapter's broker connection.
type Config struct {
	URL string
}

// telemetryMessage is the wire shape published under routing key telemetry.*.
type telemetryMessage struct {
	DeviceID  string                         `json:"device_id"`
	TenantID  *string                        `json:"tenant_id,omitempty"`
	Timestamp *time.Time                     `json:"timestamp,omitempty"`
	Readings  map[string]telemetryReadingDTO `json:"readings"`
}

type telemetryReadingDTO struct {
	Value   json.Number `json:"value"`
	Unit    *string     `json:"unit,omitempty"`
	Quality *float64    `json:"quality,omitempty"`
}

// Adapter consumes telemetry messages with prefetch 1 and manual ack,
// nacking with requeue when the ingestion pipeline is full and without
// requeue when a message is malformed, and publishes persistent
// alert/command messages back onto the same exchange.
type Adapter struct {
	cfg    Config
	conn   *amqp.Connection
	ch     *amqp.Channel
	in     chan<- domain.NormalizedTelemetryEvent
	logger *slog.Logger
	done   chan struct{}
}

func New(cfg Config, in chan<- domain.NormalizedTelemetryEvent, logger *slog.Logger) *Adapter {
	return &Adapter{cfg: cfg, in: in, logger: logger.With("component", "amqp_adapter"), done: make(chan struct{})}
}

func (a *Adapter) Start(ctx context.Context) error {
	conn, err := amqp.Dial(a.cfg.URL)
	if err != nil {
		return fmt.Errorf("dial amqp broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open amqp channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchangeName, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("declare exchange: %w", err)
	}
	queue, err := ch.QueueDeclare(queueName, true, false, false, false, nil)
	if err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.QueueBind(queue.Name, bindingKey, exchangeName, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("bind queue: %w", err)
	}
	if err := ch.Qos(1, 0, false); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("set qos: %w", err)
	}

	deliveries, err := ch.Consume(queue.Name, "", false, false, false, false, nil)
	if err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("consume queue: %w", err)
	}

	a.conn, a.ch = conn, ch
	go a.run(ctx, deliveries)
	return nil
}

func (a *Adapter) Stop() {
	close(a.done)
	if a.ch != nil {
		a.ch.Close()
	}
	if a.conn != nil {
		a.conn.Close()
	}
}

func (a *Adapter) run(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-a.done:
			return
		case d, ok := <-deliveries:
			if !ok {
				a.logger.Warn("amqp delivery channel closed")
				return
			}
			a.handleDelivery(d)
		}
	}
}

func (a *Adapter) handleDelivery(d amqp.Delivery) {
	var msg telemetryMessage
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		a.logger.Warn("malformed telemetry message, dropping", "error", err)
		_ = d.Nack(false, false) // malformed payloads are dropped, never retried
		return
	}

	evt, err := toEvent(msg)
	if err != nil {
		a.logger.Warn("malformed telemetry message, dropping", "error", err)
		_ = d.Nack(false, false)
		return
	}

	select {
	case a.in <- evt:
		_ = d.Ack(false)
	default:
		// Back-pressure: nack with requeue so the broker redelivers once the
		// pipeline drains, matching MQTT's no-ack behavior.
		a.logger.Warn("ingestion pipeline full, requeueing telemetry message", "device_id", evt.DeviceID)
		_ = d.Nack(false, true)
	}
}

func toEvent(msg telemetryMessage) (domain.NormalizedTelemetryEvent, error) {
	deviceID, err := parseDeviceID(msg.DeviceID)
	if err != nil {
		return domain.NormalizedTelemetryEvent{}, err
	}
	evt := domain.NormalizedTelemetryEvent{
		DeviceID:       deviceID,
		Readings:       make(map[string]domain.Reading, len(msg.Readings)),
		SourceProtocol: domain.ProtocolAMQP,
	}
	if msg.Timestamp != nil {
		evt.Timestamp = *msg.Timestamp
	} else {
		evt.Timestamp = time.Now()
	}
	for key, r := range msg.Readings {
		reading := domain.Reading{Unit: r.Unit, Quality: r.Quality}
		if f, err := r.Value.Float64(); err == nil {
			reading.NumericValue = &f
		} else {
			s := r.Value.String()
			reading.StringValue = &s
		}
		evt.Readings[key] = reading
	}
	return evt, nil
}

// Publisher publishes persistent alert/command messages on the iiot exchange.
type Publisher struct {
	ch *amqp.Channel
}

func NewPublisher(a *Adapter) *Publisher {
	return &Publisher{ch: a.ch}
}

func (p *Publisher) PublishAlert(ctx context.Context, routingKeySuffix string, body []byte) error {
	return p.publish(ctx, "alerts."+routingKeySuffix, body)
}

func (p *Publisher) PublishCommand(ctx context.Context, routingKeySuffix string, body []byte) error {
	return p.publish(ctx, "commands."+routingKeySuffix, body)
}

func (p *Publisher) publish(ctx context.Context, routingKey string, body []byte) error {
	return p.ch.PublishWithContext(ctx, exchangeName, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
}
