package oncall

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/insa-iiot/platform-core/internal/core/port"
)

const cacheTTL = time.Hour
const invalidationChannel = "oncall:invalidate"

type cacheEntry struct {
	userID    *uuid.UUID
	expiresAt time.Time
}

type cachedValue struct {
	UserID *uuid.UUID `json:"user_id"`
}

// CachedResolver wraps Resolve with a 1h cache: a local sync.Map fast path
// plus a Redis-backed tier shared across ingestion-worker processes, the
// same two-tier shape as cache.DeviceBindingCache. The cache key buckets on
// the hour, so a rotation boundary crossed mid-bucket is only observed once
// the bucket rolls over — acceptable since the escalation executor and SLA
// monitor both re-sweep well inside a single bucket, not once per bucket.
type CachedResolver struct {
	local     sync.Map // string -> cacheEntry
	remote    port.Cache
	schedules port.OnCallScheduleRepository
	logger    *slog.Logger
	watchOnce sync.Once
}

func NewCachedResolver(remote port.Cache, schedules port.OnCallScheduleRepository, logger *slog.Logger) *CachedResolver {
	return &CachedResolver{remote: remote, schedules: schedules, logger: logger.With("component", "oncall_cache")}
}

// Resolve returns the user on call for scheduleID at instant at, tenantID
// scoping the schedule lookup on a cache miss.
func (c *CachedResolver) Resolve(ctx context.Context, tenantID, scheduleID uuid.UUID, at time.Time) (*uuid.UUID, error) {
	c.watch(ctx)
	key := cacheKey(scheduleID, at)

	if v, ok := c.local.Load(key); ok {
		entry := v.(cacheEntry)
		if time.Now().Before(entry.expiresAt) {
			return entry.userID, nil
		}
	}

	if c.remote != nil {
		if raw, err := c.remote.Get(ctx, key); err == nil && raw != "" {
			var cached cachedValue
			if err := json.Unmarshal([]byte(raw), &cached); err == nil {
				c.storeLocal(key, cached.UserID)
				return cached.UserID, nil
			}
		}
	}

	schedule, err := c.schedules.FindByID(ctx, tenantID, scheduleID)
	if err != nil {
		return nil, err
	}
	userID, err := Resolve(schedule, at)
	if err != nil {
		return nil, err
	}

	c.storeLocal(key, userID)
	if c.remote != nil {
		if err := c.remote.SetJSON(ctx, key, cachedValue{UserID: userID}, cacheTTL); err != nil {
			c.logger.Warn("failed to populate remote on-call cache", "schedule_id", scheduleID, "error", err)
		}
	}
	return userID, nil
}

func (c *CachedResolver) storeLocal(key string, userID *uuid.UUID) {
	c.local.Store(key, cacheEntry{userID: userID, expiresAt: time.Now().Add(cacheTTL)})
}

// Invalidate evicts scheduleID's local entries in this process and, through
// the invalidation channel, in every other process, and deletes the remote
// entry for the current hour bucket. Called whenever a schedule is updated
// or deleted.
func (c *CachedResolver) Invalidate(ctx context.Context, scheduleID uuid.UUID) {
	c.evictLocal(scheduleID)
	if c.remote != nil {
		if err := c.remote.Delete(ctx, cacheKey(scheduleID, time.Now())); err != nil {
			c.logger.Warn("failed to evict remote on-call cache entry", "schedule_id", scheduleID, "error", err)
		}
		if err := c.remote.Publish(ctx, invalidationChannel, scheduleID.String()); err != nil {
			c.logger.Warn("failed to publish on-call cache invalidation", "schedule_id", scheduleID, "error", err)
		}
	}
}

func (c *CachedResolver) evictLocal(scheduleID uuid.UUID) {
	prefix := schedulePrefix(scheduleID)
	c.local.Range(func(k, _ interface{}) bool {
		if ks, ok := k.(string); ok && len(ks) >= len(prefix) && ks[:len(prefix)] == prefix {
			c.local.Delete(k)
		}
		return true
	})
}

// watch subscribes once per process to the shared invalidation channel so a
// schedule edit on one ingestion-worker process evicts every other
// process's fast-path entries, not just the remote tier.
func (c *CachedResolver) watch(ctx context.Context) {
	if c.remote == nil {
		return
	}
	c.watchOnce.Do(func() {
		msgs, cancel := c.remote.Subscribe(ctx, invalidationChannel)
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
					if scheduleID, err := uuid.Parse(msg); err == nil {
						c.evictLocal(scheduleID)
					}
				}
			}
		}()
	})
}

func cacheKey(scheduleID uuid.UUID, at time.Time) string {
	return fmt.Sprintf("oncall:%s:%d", scheduleID, at.Truncate(cacheTTL).Unix())
}

func schedulePrefix(scheduleID uuid.UUID) string {
	return fmt.Sprintf("oncall:%s:", scheduleID)
}
