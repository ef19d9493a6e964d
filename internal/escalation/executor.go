// Package escalation implements the 60s ticker-based escalation executor:
// the primary mechanism by which an unacknowledged alert climbs its policy's
// tier ladder and pages progressively wider audiences.
package escalation

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/insa-iiot/platform-core/internal/core/domain"
	"github.com/insa-iiot/platform-core/internal/notification"
)

// DefaultInterval is how often the executor sweeps for alerts due to
// advance a tier.
const DefaultInterval = 60 * time.Second

// AlertSource is the read/write surface the executor needs against alerts
// eligible for escalation.
type AlertSource interface {
	FindEscalationCandidates(ctx context.Context) ([]*domain.Alert, error)
	CurrentState(ctx context.Context, alertID uuid.UUID) (*domain.AlertState, error)
	Update(ctx context.Context, alert *domain.Alert) error
}

// PolicyStore resolves the policy attached to an alert.
type PolicyStore interface {
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*domain.EscalationPolicy, error)
}

// Resolver turns an escalation target plus channel into a concrete send
// address. Implemented by *TargetResolver.
type Resolver interface {
	Resolve(ctx context.Context, tenantID uuid.UUID, target domain.EscalationTarget, channel string, at time.Time) (string, error)
}

// openStates are the lifecycle states an alert may still escalate from; an
// acknowledged or resolved alert is skipped even if the row is still
// returned by a stale index.
var openStates = map[domain.LifecycleState]bool{
	domain.StateNew:           true,
	domain.StateInvestigating: true,
}

// Executor is the background worker advancing escalation tiers. Lifecycle
// follows the same Start/Stop/run-with-ticker shape as ruleengine.Scheduler
// and the protocol adapters.
type Executor struct {
	alerts     AlertSource
	policies   PolicyStore
	resolver   Resolver
	dispatcher *notification.Dispatcher
	interval   time.Duration
	logger     *slog.Logger
	stopCh     chan struct{}
}

func NewExecutor(alerts AlertSource, policies PolicyStore, resolver Resolver, dispatcher *notification.Dispatcher, interval time.Duration, logger *slog.Logger) *Executor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Executor{
		alerts:     alerts,
		policies:   policies,
		resolver:   resolver,
		dispatcher: dispatcher,
		interval:   interval,
		logger:     logger.With("component", "escalation_executor"),
		stopCh:     make(chan struct{}),
	}
}

func (e *Executor) Start(ctx context.Context) {
	go e.run(ctx)
}

func (e *Executor) Stop() {
	close(e.stopCh)
}

func (e *Executor) run(ctx context.Context) {
	e.runOnce(ctx)

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("escalation executor stopping: context cancelled")
			return
		case <-e.stopCh:
			e.logger.Info("escalation executor stopping")
			return
		case <-ticker.C:
			e.runOnce(ctx)
		}
	}
}

func (e *Executor) runOnce(ctx context.Context) {
	now := time.Now()

	candidates, err := e.alerts.FindEscalationCandidates(ctx)
	if err != nil {
		e.logger.Error("failed to load escalation candidates", "error", err)
		return
	}

	for _, alert := range candidates {
		if err := e.evaluate(ctx, alert, now); err != nil {
			e.logger.Error("failed to evaluate escalation", "alert_id", alert.ID, "error", err)
		}
	}
}

func (e *Executor) evaluate(ctx context.Context, alert *domain.Alert, now time.Time) error {
	state, err := e.alerts.CurrentState(ctx, alert.ID)
	if err != nil {
		return err
	}
	if !openStates[state.State] {
		return nil
	}
	if alert.EscalationPolicyID == nil {
		return nil
	}

	policy, err := e.policies.FindByID(ctx, alert.TenantID, *alert.EscalationPolicyID)
	if err != nil {
		return err
	}

	ageMinutes := now.Sub(alert.CreatedAt).Minutes()
	// CurrentEscalationTier counts fired tiers from 1 (0: none yet), while
	// HighestDueTier works on 0-based slice indexes.
	tierIdx := policy.HighestDueTier(alert.Severity, ageMinutes, alert.CurrentEscalationTier-1)
	if tierIdx < 0 {
		return nil
	}

	tier := policy.Tiers[tierIdx]
	e.notifyTier(ctx, alert, tier, now)

	alert.AdvanceEscalationTier(tierIdx+1, now)
	return e.alerts.Update(ctx, alert)
}

func (e *Executor) notifyTier(ctx context.Context, alert *domain.Alert, tier domain.EscalationTier, now time.Time) {
	for _, target := range tier.Targets {
		for _, channel := range tier.Channels {
			sendChannel, webhookName := domain.SplitNotificationChannel(channel)

			addr := webhookName
			if sendChannel != "webhook" {
				resolved, err := e.resolver.Resolve(ctx, alert.TenantID, target, sendChannel, now)
				if err != nil || resolved == "" {
					e.logger.Error("failed to resolve escalation target", "alert_id", alert.ID, "channel", sendChannel, "error", err)
					continue
				}
				addr = resolved
			}

			if err := e.dispatcher.Enqueue(notification.Notification{
				TenantID: alert.TenantID,
				AlertID:  alert.ID,
				Channel:  sendChannel,
				Target:   addr,
				Severity: alert.Severity,
				Subject:  "Alert escalation",
				Body:     "Alert " + alert.ID.String() + " was not resolved in time: " + alert.Message,
			}); err != nil {
				e.logger.Error("failed to enqueue escalation notification", "alert_id", alert.ID, "channel", sendChannel, "error", err)
			}
		}
	}
}
