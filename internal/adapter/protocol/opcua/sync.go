package opcua

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/insa-iiot/platform-core/internal/core/domain"
)

const syncInterval = 5 * time.Second
const syncPageSize = 200

type DeviceSource interface {
	FindByTenant(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*domain.Device, error)
}

type TelemetrySource interface {
	Latest(ctx context.Context, tenantID, deviceID uuid.UUID, key string) (*domain.TelemetryPoint, error)
}

type TenantSource interface {
	List(ctx context.Context, limit, offset int) ([]*domain.Tenant, error)
}

// SyncWorker mirrors each known device's latest telemetry values into the
// address space every five seconds, following the AssignmentWorker ticker
// shape. It never pushes onto the ingestion pipeline itself, but shares the
// same bounded-channel back-pressure contract: when the pipeline's input
// channel is saturated the whole platform is falling behind, so this tick
// is skipped rather than piling more reads onto an already-loaded system.
type SyncWorker struct {
	space     *AddressSpace
	tenants   TenantSource
	devices   DeviceSource
	telemetry TelemetrySource
	keys      []string
	pipelineIn chan<- domain.NormalizedTelemetryEvent

	logger *slog.Logger
	stopCh chan struct{}
}

func NewSyncWorker(space *AddressSpace, tenants TenantSource, devices DeviceSource, telemetry TelemetrySource, keys []string, pipelineIn chan<- domain.NormalizedTelemetryEvent, logger *slog.Logger) *SyncWorker {
	return &SyncWorker{
		space: space, tenants: tenants, devices: devices, telemetry: telemetry, keys: keys, pipelineIn: pipelineIn,
		logger: logger.With("component", "opcua_sync"), stopCh: make(chan struct{}),
	}
}

func (w *SyncWorker) Start(ctx context.Context) {
	go w.run(ctx)
}

func (w *SyncWorker) Stop() {
	close(w.stopCh)
}

func (w *SyncWorker) run(ctx context.Context) {
	w.runOnce(ctx)
	ticker := time.NewTicker(syncInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *SyncWorker) runOnce(ctx context.Context) {
	if w.pipelineIn != nil && len(w.pipelineIn) == cap(w.pipelineIn) {
		w.logger.Warn("ingestion pipeline saturated, pausing opcua mirror sync this tick")
		return
	}

	offset := 0
	for {
		tenants, err := w.tenants.List(ctx, syncPageSize, offset)
		if err != nil {
			w.logger.Error("failed to list tenants for opcua mirror sync", "error", err)
			return
		}
		if len(tenants) == 0 {
			return
		}
		for _, tenant := range tenants {
			w.syncTenant(ctx, tenant.ID)
		}
		if len(tenants) < syncPageSize {
			return
		}
		offset += syncPageSize
	}
}

func (w *SyncWorker) syncTenant(ctx context.Context, tenantID uuid.UUID) {
	offset := 0
	for {
		devices, err := w.devices.FindByTenant(ctx, tenantID, syncPageSize, offset)
		if err != nil {
			w.logger.Error("failed to list devices for opcua mirror sync", "tenant_id", tenantID, "error", err)
			return
		}
		for _, device := range devices {
			w.space.Upsert(device)
			for _, key := range w.keys {
				point, err := w.telemetry.Latest(ctx, tenantID, device.ID, key)
				if err != nil {
					if !errors.Is(err, domain.ErrNotFound) {
						w.logger.Error("failed to read latest telemetry for opcua mirror sync", "device_id", device.ID, "key", key, "error", err)
					}
					continue
				}
				if point.NumericValue != nil {
					w.space.SetTelemetry(device.ID, key, *point.NumericValue)
				}
			}
		}
		if len(devices) < syncPageSize {
			return
		}
		offset += syncPageSize
	}
}
