package ruleengine

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/insa-iiot/platform-core/internal/core/domain"
)

// DefaultEvaluationInterval is how often the periodic scheduler re-checks a
// rule when NewScheduler is given no interval. Rules carry no interval of
// their own; the scheduler's one interval applies to every rule.
const DefaultEvaluationInterval = 30 * time.Second

const schedulerPageSize = 200

// RuleSource is the read surface the scheduler needs to find rules due for
// re-evaluation and to record that it evaluated them.
type RuleSource interface {
	FindAllEnabled(ctx context.Context) ([]*domain.Rule, error)
	MarkEvaluated(ctx context.Context, id uuid.UUID, at time.Time) error
}

// DeviceSource resolves a tenant-wide rule's scope to concrete device ids.
type DeviceSource interface {
	FindByTenant(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*domain.Device, error)
}

// Scheduler periodically evaluates every enabled rule whose last evaluation
// is older than the scheduler's interval. Lifecycle follows the same
// Start/Stop/run-with-ticker shape used by the protocol adapters and the
// escalation executor.
type Scheduler struct {
	rules    RuleSource
	devices  DeviceSource
	engine   *Engine
	interval time.Duration
	logger   *slog.Logger
	stopCh   chan struct{}
}

func NewScheduler(rules RuleSource, devices DeviceSource, engine *Engine, interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultEvaluationInterval
	}
	return &Scheduler{
		rules:    rules,
		devices:  devices,
		engine:   engine,
		interval: interval,
		logger:   logger.With("component", "rule_scheduler"),
		stopCh:   make(chan struct{}),
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	go s.run(ctx)
}

func (s *Scheduler) Stop() {
	close(s.stopCh)
}

func (s *Scheduler) run(ctx context.Context) {
	s.runOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("rule scheduler stopping: context cancelled")
			return
		case <-s.stopCh:
			s.logger.Info("rule scheduler stopping")
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	now := time.Now()

	rules, err := s.rules.FindAllEnabled(ctx)
	if err != nil {
		s.logger.Error("failed to load enabled rules", "error", err)
		return
	}

	for _, rule := range rules {
		if !rule.DueForEvaluation(now, s.interval) {
			continue
		}

		deviceIDs, err := s.resolveDevices(ctx, rule)
		if err != nil {
			s.logger.Error("failed to resolve rule scope", "rule_id", rule.ID, "error", err)
			continue
		}

		for _, deviceID := range deviceIDs {
			if err := s.engine.Evaluate(ctx, rule, deviceID, now, ModePeriodic); err != nil {
				s.logger.Error("rule evaluation failed", "rule_id", rule.ID, "device_id", deviceID, "error", err)
			}
		}

		rule.MarkEvaluated(now)
		if err := s.rules.MarkEvaluated(ctx, rule.ID, now); err != nil {
			s.logger.Error("failed to persist rule evaluation timestamp", "rule_id", rule.ID, "error", err)
		}
	}
}

func (s *Scheduler) resolveDevices(ctx context.Context, rule *domain.Rule) ([]uuid.UUID, error) {
	if !rule.Scope.IsTenantWide() {
		ids := make([]uuid.UUID, 0, 1+len(rule.Scope.DeviceIDs))
		if rule.Scope.DeviceID != nil {
			ids = append(ids, *rule.Scope.DeviceID)
		}
		ids = append(ids, rule.Scope.DeviceIDs...)
		return ids, nil
	}

	var ids []uuid.UUID
	for offset := 0; ; offset += schedulerPageSize {
		page, err := s.devices.FindByTenant(ctx, rule.TenantID, schedulerPageSize, offset)
		if err != nil {
			return nil, err
		}
		for _, d := range page {
			ids = append(ids, d.ID)
		}
		if len(page) < schedulerPageSize {
			break
		}
	}
	return ids, nil
}
