// Package ingestion implements the six-step telemetry ingestion pipeline:
// resolve tenant, validate reading shapes, enforce the tenant's daily quota,
// batch-persist, update device status, and publish for the rule engine.
package ingestion

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/insa-iiot/platform-core/internal/core/domain"
	"github.com/insa-iiot/platform-core/internal/core/port"
	"github.com/insa-iiot/platform-core/pkg/observability"
)

// DefaultQueueCapacity bounds both the inbound channel every protocol
// adapter publishes onto and the outbound channel the rule engine's
// reactive trigger subscribes to.
const DefaultQueueCapacity = 1024

// BindingResolver resolves a device id to its owning tenant id, the
// pipeline's first step. Satisfied by
// internal/adapter/driven/cache.DeviceBindingCache.
type BindingResolver interface {
	Resolve(ctx context.Context, deviceID uuid.UUID) (uuid.UUID, error)
}

// Pipeline drains raw, tenant-less NormalizedTelemetryEvents pushed by
// protocol adapters, and on success republishes the same event - now
// carrying a resolved TenantID - for the rule engine's reactive trigger.
type Pipeline struct {
	in  chan domain.NormalizedTelemetryEvent
	out chan domain.NormalizedTelemetryEvent

	bindings  BindingResolver
	devices   port.DeviceRepository
	tenants   port.TenantRepository
	telemetry port.TelemetryRepository

	metrics *observability.Metrics
	logger  *slog.Logger
	stopCh  chan struct{}
}

func NewPipeline(bindings BindingResolver, devices port.DeviceRepository, tenants port.TenantRepository, telemetry port.TelemetryRepository, metrics *observability.Metrics, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		in:        make(chan domain.NormalizedTelemetryEvent, DefaultQueueCapacity),
		out:       make(chan domain.NormalizedTelemetryEvent, DefaultQueueCapacity),
		bindings:  bindings,
		devices:   devices,
		tenants:   tenants,
		telemetry: telemetry,
		metrics:   metrics,
		logger:    logger.With("component", "ingestion_pipeline"),
		stopCh:    make(chan struct{}),
	}
}

// In is the channel every protocol adapter publishes onto. Back-pressure
// when this channel is full is handled per-protocol (MQTT: no ack, relying
// on broker redelivery; AMQP: nack with requeue; CoAP: respond 5.03; OPC UA: pause the sync
// goroutine), never by blocking here indefinitely.
func (p *Pipeline) In() chan<- domain.NormalizedTelemetryEvent {
	return p.in
}

// Out is the channel the rule engine's reactive trigger subscribes to.
func (p *Pipeline) Out() <-chan domain.NormalizedTelemetryEvent {
	return p.out
}

func (p *Pipeline) Start(ctx context.Context) {
	go p.run(ctx)
}

func (p *Pipeline) Stop() {
	close(p.stopCh)
}

func (p *Pipeline) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("ingestion pipeline stopping: context cancelled")
			return
		case <-p.stopCh:
			p.logger.Info("ingestion pipeline stopping")
			return
		case evt, ok := <-p.in:
			if !ok {
				p.logger.Info("ingestion pipeline stopping: input channel closed")
				return
			}
			p.process(ctx, evt)
			if p.metrics != nil {
				p.metrics.IngestionQueueDepth.Set(float64(len(p.in)))
			}
		}
	}
}

func (p *Pipeline) process(ctx context.Context, evt domain.NormalizedTelemetryEvent) {
	// Step 1: resolve tenant.
	tenantID, err := p.bindings.Resolve(ctx, evt.DeviceID)
	if err != nil {
		p.drop("device_not_bound")
		p.logger.Warn("failed to resolve device binding", "device_id", evt.DeviceID, "error", err)
		return
	}
	evt.TenantID = tenantID

	// Step 2: validate reading shapes.
	points := p.toValidPoints(evt)
	if len(points) == 0 {
		return
	}

	// Step 3: per-tenant quota check.
	tenant, err := p.tenants.FindByID(ctx, tenantID)
	if err != nil {
		p.drop("tenant_lookup_failed")
		p.logger.Error("failed to load tenant for quota check", "tenant_id", tenantID, "error", err)
		return
	}
	if err := p.telemetry.ReserveQuota(ctx, tenantID, int64(len(points)), tenant.Caps.MaxTelemetryPerDay); err != nil {
		p.drop("quota_exceeded")
		p.logger.Warn("telemetry quota exceeded, dropping batch", "tenant_id", tenantID, "device_id", evt.DeviceID, "points", len(points))
		return
	}

	// Step 4: batch insert.
	inserted, err := p.telemetry.InsertBatch(ctx, points)
	if err != nil {
		p.drop("insert_failed")
		p.logger.Error("failed to persist telemetry batch", "tenant_id", tenantID, "device_id", evt.DeviceID, "error", err)
		return
	}
	if p.metrics != nil {
		p.metrics.TelemetryPointsIngested.WithLabelValues(string(evt.SourceProtocol)).Add(float64(inserted))
	}

	// Step 5: device status/last-seen.
	if err := p.devices.UpdateStatus(ctx, evt.DeviceID, domain.DeviceStatusActive, evt.Timestamp); err != nil {
		p.logger.Error("failed to update device status", "device_id", evt.DeviceID, "error", err)
	}

	// Step 6: publish for the rule engine. A full Out channel means the
	// rule engine is behind; the telemetry itself is already durably
	// persisted by step 4, so a dropped publish only delays reactive
	// evaluation, never loses data.
	select {
	case p.out <- evt:
	default:
		p.logger.Warn("rule engine event channel full, dropping reactive trigger", "tenant_id", tenantID, "device_id", evt.DeviceID)
	}
}

func (p *Pipeline) toValidPoints(evt domain.NormalizedTelemetryEvent) []*domain.TelemetryPoint {
	now := time.Now()
	points := make([]*domain.TelemetryPoint, 0, len(evt.Readings))
	for key, reading := range evt.Readings {
		quality := 1.0
		if reading.Quality != nil {
			quality = *reading.Quality
		}
		point := &domain.TelemetryPoint{
			TenantID:           evt.TenantID,
			DeviceID:           evt.DeviceID,
			Key:                key,
			NumericValue:       reading.NumericValue,
			StringValue:        reading.StringValue,
			Unit:               reading.Unit,
			Timestamp:          evt.Timestamp,
			IngestionTimestamp: now,
			QualityScore:       quality,
			SourceProtocol:     evt.SourceProtocol,
		}
		if err := point.Validate(); err != nil {
			p.drop("invalid_reading")
			continue
		}
		points = append(points, point)
	}
	return points
}

func (p *Pipeline) drop(reason string) {
	if p.metrics != nil {
		p.metrics.TelemetryPointsDropped.WithLabelValues(reason).Inc()
	}
}
