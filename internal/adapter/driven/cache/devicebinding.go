package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/insa-iiot/platform-core/internal/core/port"
)

const deviceBindingTTL = 10 * time.Minute
const deviceInvalidationChannel = "devices:invalidate"

type deviceBindingEntry struct {
	tenantID  uuid.UUID
	expiresAt time.Time
}

// DeviceBindingCache resolves a device id to its owning tenant id, the
// first step of the ingestion pipeline for every inbound reading. A local
// sync.Map fast path avoids a database round trip for a device this
// process has already seen; a Redis-backed slow path shares that
// resolution across every ingestion-worker process before falling back to
// the device repository itself on a full miss.
type DeviceBindingCache struct {
	local     sync.Map // uuid.UUID -> deviceBindingEntry
	remote    port.Cache
	devices   port.DeviceRepository
	logger    *slog.Logger
	watchOnce sync.Once
}

func NewDeviceBindingCache(remote port.Cache, devices port.DeviceRepository, logger *slog.Logger) *DeviceBindingCache {
	return &DeviceBindingCache{remote: remote, devices: devices, logger: logger.With("component", "device_binding_cache")}
}

// Resolve returns deviceID's owning tenant id, populating both cache tiers
// on a miss.
func (c *DeviceBindingCache) Resolve(ctx context.Context, deviceID uuid.UUID) (uuid.UUID, error) {
	c.watch(ctx)

	if v, ok := c.local.Load(deviceID); ok {
		entry := v.(deviceBindingEntry)
		if time.Now().Before(entry.expiresAt) {
			return entry.tenantID, nil
		}
	}

	if c.remote != nil {
		if raw, err := c.remote.Get(ctx, remoteKey(deviceID)); err == nil && raw != "" {
			if tenantID, err := uuid.Parse(raw); err == nil {
				c.storeLocal(deviceID, tenantID)
				return tenantID, nil
			}
		}
	}

	device, err := c.devices.FindByIDAnyTenant(ctx, deviceID)
	if err != nil {
		return uuid.Nil, err
	}

	c.storeLocal(deviceID, device.TenantID)
	if c.remote != nil {
		if err := c.remote.Set(ctx, remoteKey(deviceID), device.TenantID.String(), deviceBindingTTL); err != nil {
			c.logger.Warn("failed to populate remote device binding cache", "device_id", deviceID, "error", err)
		}
	}
	return device.TenantID, nil
}

func (c *DeviceBindingCache) storeLocal(deviceID, tenantID uuid.UUID) {
	c.local.Store(deviceID, deviceBindingEntry{tenantID: tenantID, expiresAt: time.Now().Add(deviceBindingTTL)})
}

// Invalidate evicts deviceID from the local fast path and the remote cache.
func (c *DeviceBindingCache) Invalidate(ctx context.Context, deviceID uuid.UUID) {
	c.local.Delete(deviceID)
	if c.remote != nil {
		if err := c.remote.Delete(ctx, remoteKey(deviceID)); err != nil {
			c.logger.Warn("failed to evict remote device binding cache entry", "device_id", deviceID, "error", err)
		}
	}
}

func remoteKey(deviceID uuid.UUID) string {
	return fmt.Sprintf("device_binding:%s", deviceID)
}

// watch subscribes once per process to the shared device-invalidation
// channel. A single channel carrying the device id as its message (rather
// than one subscription per device) keeps the subscription count constant
// regardless of fleet size.
func (c *DeviceBindingCache) watch(ctx context.Context) {
	if c.remote == nil {
		return
	}
	c.watchOnce.Do(func() {
		msgs, cancel := c.remote.Subscribe(ctx, deviceInvalidationChannel)
		go func() {
			defer cancel()
			for {
				select {
				case <-ctx.Done():
					return
				case msg, ok := <-msgs:
					if !ok {
						return
					}
					if deviceID, err := uuid.Parse(msg); err == nil {
						c.local.Delete(deviceID)
					}
				}
			}
		}()
	})
}

// PublishDeviceInvalidation notifies every ingestion-worker process holding
// a cached binding for deviceID to drop it. No code in this module calls it:
// deleting a device publishes nothing, so a binding already cached in
// another process stays until deviceBindingTTL expires.
func PublishDeviceInvalidation(ctx context.Context, remote port.Cache, deviceID uuid.UUID) error {
	if remote == nil {
		return nil
	}
	return remote.Publish(ctx, deviceInvalidationChannel, deviceID.String())
}
