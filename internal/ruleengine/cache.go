package ruleengine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/insa-iiot/platform-core/internal/core/domain"
	"github.com/insa-iiot/platform-core/internal/core/port"
)

// compiledEntry is one parsed Condition plus the bookkeeping needed to decide
// whether it is still fresh.
type compiledEntry struct {
	condition *Condition
	updatedAt time.Time
	expiresAt time.Time
}

const ruleCacheTTL = 600 * time.Second

// RuleCache memoizes the parsed Condition for each rule, avoiding a
// json.Unmarshal on every evaluation. Entries are invalidated either by TTL
// or by a message on the tenant's Redis invalidation channel
// "rules:invalidate:<tenant_id>", whose payload is the rule id. (The
// device-binding cache instead uses one "devices:invalidate" channel for
// every tenant.)
type RuleCache struct {
	entries sync.Map // uuid.UUID -> compiledEntry
	cache   port.Cache
	watched sync.Map // uuid.UUID -> struct{} (tenants already subscribed)
	logger  *slog.Logger
}

func NewRuleCache(cache port.Cache, logger *slog.Logger) *RuleCache {
	return &RuleCache{cache: cache, logger: logger.With("component", "rule_cache")}
}

// Get returns the compiled Condition for rule, parsing and caching it if
// absent, stale, or if the rule row has changed since it was cached.
func (c *RuleCache) Get(rule *domain.Rule) (*Condition, error) {
	if v, ok := c.entries.Load(rule.ID); ok {
		entry := v.(compiledEntry)
		if time.Now().Before(entry.expiresAt) && entry.updatedAt.Equal(rule.UpdatedAt) {
			return entry.condition, nil
		}
	}

	cond, err := ParseCondition(rule.Type, rule.ConditionConfig)
	if err != nil {
		return nil, err
	}
	c.entries.Store(rule.ID, compiledEntry{
		condition: cond,
		updatedAt: rule.UpdatedAt,
		expiresAt: time.Now().Add(ruleCacheTTL),
	})
	return cond, nil
}

// Invalidate evicts a single rule's compiled condition.
func (c *RuleCache) Invalidate(ruleID uuid.UUID) {
	c.entries.Delete(ruleID)
}

// WatchTenant subscribes to tenantID's invalidation channel the first time
// it is asked to; subsequent calls for the same tenant are no-ops. Safe to
// call from every evaluation path since it only does work once per tenant.
func (c *RuleCache) WatchTenant(ctx context.Context, tenantID uuid.UUID) {
	if c.cache == nil {
		return
	}
	if _, loaded := c.watched.LoadOrStore(tenantID, struct{}{}); loaded {
		return
	}

	channel := fmt.Sprintf("rules:invalidate:%s", tenantID)
	msgs, cancel := c.cache.Subscribe(ctx, channel)

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
				ruleID, err := uuid.Parse(msg)
				if err != nil {
					c.logger.Warn("malformed rule invalidation message", "channel", channel, "message", msg)
					continue
				}
				c.Invalidate(ruleID)
			}
		}
	}()
}

// PublishInvalidation notifies every subscribed process that ruleID's
// condition changed, so callers holding a stale cached copy evict it ahead
// of the TTL. Safe to call even when no process has a cached copy yet.
func PublishInvalidation(ctx context.Context, cache port.Cache, tenantID, ruleID uuid.UUID) error {
	if cache == nil {
		return nil
	}
	return cache.Publish(ctx, fmt.Sprintf("rules:invalidate:%s", tenantID), ruleID.String())
}
