package ruleengine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/insa-iiot/platform-core/internal/core/domain"
)

// DefaultDebounce coalesces bursts of telemetry for the same (rule, device)
// into a single evaluation.
const DefaultDebounce = 2 * time.Second

// ReactiveRuleSource is the read surface the reactive trigger needs to find
// the rules a tenant has enabled.
type ReactiveRuleSource interface {
	FindEnabledByTenant(ctx context.Context, tenantID uuid.UUID) ([]*domain.Rule, error)
}

type debounceKey struct {
	ruleID   uuid.UUID
	deviceID uuid.UUID
}

// Reactive subscribes to the ingestion pipeline's normalized-event channel
// and queues an evaluation for every enabled rule whose scope includes the
// event's device and whose condition reads one of the event's keys,
// coalescing repeats within Debounce into a single evaluation.
type Reactive struct {
	events   <-chan domain.NormalizedTelemetryEvent
	rules    ReactiveRuleSource
	cache    *RuleCache
	engine   *Engine
	debounce time.Duration
	logger   *slog.Logger
	stopCh   chan struct{}

	mu      sync.Mutex
	pending map[debounceKey]*time.Timer
}

func NewReactive(events <-chan domain.NormalizedTelemetryEvent, rules ReactiveRuleSource, cache *RuleCache, engine *Engine, debounce time.Duration, logger *slog.Logger) *Reactive {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Reactive{
		events:   events,
		rules:    rules,
		cache:    cache,
		engine:   engine,
		debounce: debounce,
		logger:   logger.With("component", "reactive_rule_trigger"),
		stopCh:   make(chan struct{}),
		pending:  make(map[debounceKey]*time.Timer),
	}
}

func (r *Reactive) Start(ctx context.Context) {
	go r.run(ctx)
}

func (r *Reactive) Stop() {
	close(r.stopCh)
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, t := range r.pending {
		t.Stop()
		delete(r.pending, k)
	}
}

func (r *Reactive) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reactive rule trigger stopping: context cancelled")
			return
		case <-r.stopCh:
			r.logger.Info("reactive rule trigger stopping")
			return
		case evt, ok := <-r.events:
			if !ok {
				r.logger.Info("reactive rule trigger stopping: event channel closed")
				return
			}
			r.handleEvent(ctx, evt)
		}
	}
}

func (r *Reactive) handleEvent(ctx context.Context, evt domain.NormalizedTelemetryEvent) {
	rules, err := r.rules.FindEnabledByTenant(ctx, evt.TenantID)
	if err != nil {
		r.logger.Error("failed to load tenant rules for reactive trigger", "tenant_id", evt.TenantID, "error", err)
		return
	}

	for _, rule := range rules {
		if !rule.Scope.Includes(evt.DeviceID) {
			continue
		}
		if !r.referencesAnyKey(rule, evt) {
			continue
		}
		r.schedule(ctx, rule, evt.DeviceID)
	}
}

func (r *Reactive) referencesAnyKey(rule *domain.Rule, evt domain.NormalizedTelemetryEvent) bool {
	cond, err := r.cache.Get(rule)
	if err != nil {
		r.logger.Warn("failed to compile rule for reactive match", "rule_id", rule.ID, "error", err)
		return false
	}
	for _, key := range cond.Keys() {
		if _, ok := evt.Readings[key]; ok {
			return true
		}
	}
	return false
}

// schedule resets any outstanding timer for (rule, device) rather than
// stacking a second one, so a burst of readings produces exactly one
// evaluation per debounce window.
func (r *Reactive) schedule(ctx context.Context, rule *domain.Rule, deviceID uuid.UUID) {
	key := debounceKey{ruleID: rule.ID, deviceID: deviceID}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.pending[key]; ok {
		existing.Stop()
	}

	r.pending[key] = time.AfterFunc(r.debounce, func() {
		r.mu.Lock()
		delete(r.pending, key)
		r.mu.Unlock()

		if err := r.engine.Evaluate(ctx, rule, deviceID, time.Now(), ModeReactive); err != nil {
			r.logger.Error("reactive rule evaluation failed", "rule_id", rule.ID, "device_id", deviceID, "error", err)
		}
	})
}
