package ruleengine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/insa-iiot/platform-core/internal/core/domain"
	"github.com/insa-iiot/platform-core/internal/core/port"
	"github.com/insa-iiot/platform-core/pkg/observability"
)

// TriggerMode distinguishes the periodic scheduler from the reactive
// debounce path in metrics and logs; the evaluation and emission logic is
// identical either way.
type TriggerMode string

const (
	ModePeriodic TriggerMode = "periodic"
	ModeReactive TriggerMode = "reactive"
)

// ActiveAlertFinder is the read surface the engine needs to avoid emitting a
// duplicate alert while one already covers the same (tenant, device, rule).
type ActiveAlertFinder interface {
	FindActiveByRuleAndDevice(ctx context.Context, tenantID, deviceID, ruleID uuid.UUID) (*domain.Alert, error)
}

// AlertEmitter is the write surface the engine uses to turn a match into an
// alert. Satisfied by port.AlertService, which additionally handles
// grouping and SLA bookkeeping on the way in.
type AlertEmitter interface {
	Create(ctx context.Context, input port.CreateAlertInput) (*domain.Alert, error)
}

// RuleTrigger persists that a rule just fired, so CanTrigger's cooldown
// check survives process restarts.
type RuleTrigger interface {
	MarkTriggered(ctx context.Context, id uuid.UUID, at time.Time) error
}

// Engine evaluates a single rule against a single device and, on a match
// outside cooldown, emits an alert. Both Scheduler and Reactive call this;
// neither duplicates its logic.
type Engine struct {
	reader  TelemetryReader
	cache   *RuleCache
	alerts  ActiveAlertFinder
	emitter AlertEmitter
	rules   RuleTrigger
	metrics *observability.Metrics
	logger  *slog.Logger
}

func NewEngine(reader TelemetryReader, cache *RuleCache, alerts ActiveAlertFinder, emitter AlertEmitter, rules RuleTrigger, metrics *observability.Metrics, logger *slog.Logger) *Engine {
	return &Engine{
		reader:  reader,
		cache:   cache,
		alerts:  alerts,
		emitter: emitter,
		rules:   rules,
		metrics: metrics,
		logger:  logger.With("component", "rule_engine"),
	}
}

// Evaluate runs rule's condition against deviceID and emits an alert on a
// match. A nil error covers both outcomes, including a condition that did
// not fire for "missing data" or "type mismatch" per the DSL's contract;
// only unexpected failures return a non-nil error.
func (e *Engine) Evaluate(ctx context.Context, rule *domain.Rule, deviceID uuid.UUID, now time.Time, mode TriggerMode) error {
	if !rule.Enabled || !rule.Scope.Includes(deviceID) {
		return nil
	}

	e.cache.WatchTenant(ctx, rule.TenantID)

	cond, err := e.cache.Get(rule)
	if err != nil {
		return fmt.Errorf("parse condition for rule %s: %w", rule.ID, err)
	}

	start := time.Now()
	matched, err := cond.Evaluate(ctx, e.reader, rule.TenantID, deviceID, now)
	if e.metrics != nil {
		e.metrics.RuleEvaluationDuration.WithLabelValues(string(rule.Type)).Observe(time.Since(start).Seconds())
	}

	if err != nil {
		if errors.Is(err, ErrMalformedData) {
			if e.metrics != nil {
				e.metrics.RuleMalformedDataTotal.WithLabelValues(rule.ID.String()).Inc()
				e.metrics.RuleEvaluationsTotal.WithLabelValues(string(mode), "false").Inc()
			}
			return nil
		}
		if e.metrics != nil {
			e.metrics.RuleEvaluationsTotal.WithLabelValues(string(mode), "error").Inc()
		}
		return fmt.Errorf("evaluate rule %s against device %s: %w", rule.ID, deviceID, err)
	}

	if e.metrics != nil {
		e.metrics.RuleEvaluationsTotal.WithLabelValues(string(mode), strconv.FormatBool(matched)).Inc()
	}
	if !matched {
		return nil
	}

	active, err := e.alerts.FindActiveByRuleAndDevice(ctx, rule.TenantID, deviceID, rule.ID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("check active alert for rule %s: %w", rule.ID, err)
	}

	if !rule.CanTrigger(now, active != nil) {
		e.logger.Debug("rule matched but is in cooldown with an active prior alert", "rule_id", rule.ID, "device_id", deviceID)
		return nil
	}
	if active != nil {
		e.logger.Debug("rule matched but an active alert already covers this dedup key", "rule_id", rule.ID, "device_id", deviceID, "alert_id", active.ID)
		return nil
	}

	if err := e.emit(ctx, rule, deviceID, now); err != nil {
		return err
	}

	e.logger.Info("rule triggered", "rule_id", rule.ID, "tenant_id", rule.TenantID, "device_id", deviceID, "mode", mode)
	return nil
}

func (e *Engine) emit(ctx context.Context, rule *domain.Rule, deviceID uuid.UUID, now time.Time) error {
	metadata, err := json.Marshal(map[string]any{
		"rule_name": rule.Name,
		"rule_type": rule.Type,
		"priority":  rule.Priority,
		"actions":   rule.Actions,
	})
	if err != nil {
		return fmt.Errorf("marshal alert metadata for rule %s: %w", rule.ID, err)
	}

	ruleID := rule.ID
	_, err = e.emitter.Create(ctx, port.CreateAlertInput{
		TenantID: rule.TenantID,
		DeviceID: deviceID,
		RuleID:   &ruleID,
		Severity: domain.SeverityForPriority(rule.Priority),
		Message:  fmt.Sprintf("rule %q matched on device %s", rule.Name, deviceID),
		Metadata: metadata,
	})
	if err != nil {
		return fmt.Errorf("emit alert for rule %s: %w", rule.ID, err)
	}

	rule.MarkTriggered(now)
	if err := e.rules.MarkTriggered(ctx, rule.ID, now); err != nil {
		e.logger.Error("failed to persist rule trigger timestamp", "rule_id", rule.ID, "error", err)
	}
	return nil
}
