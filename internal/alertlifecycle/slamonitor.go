// Package alertlifecycle hosts the periodic SLA monitor. The lifecycle state
// machine, grouping, and per-transition SLA bookkeeping it shares data with
// live in internal/core/domain and internal/core/service; this package only
// adds the background sweep for alerts that breach their SLA without ever
// transitioning.
package alertlifecycle

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/insa-iiot/platform-core/internal/core/domain"
	"github.com/insa-iiot/platform-core/internal/notification"
)

// DefaultCheckInterval is how often the monitor sweeps open alerts for SLA
// breaches.
const DefaultCheckInterval = 5 * time.Minute

// AlertSource is the read/write surface the monitor needs against open
// alerts and their SLA rows.
type AlertSource interface {
	FindOpenForSLA(ctx context.Context) ([]*domain.Alert, error)
	SLA(ctx context.Context, alertID uuid.UUID) (*domain.AlertSLA, error)
	UpdateSLA(ctx context.Context, sla *domain.AlertSLA) error
}

// PolicyStore resolves the escalation policy backing a breach notification's
// targets and channels. No dedicated "who hears about an SLA breach"
// configuration exists, so the monitor reuses the alert's own escalation
// policy (tier zero) when one is attached; alerts without a policy still
// have their breach flags flipped, just with no one to notify.
type PolicyStore interface {
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*domain.EscalationPolicy, error)
}

// Monitor periodically flips tta_breached/ttr_breached on open alerts whose
// SLA targets elapsed without an acknowledgement or resolution, and emits
// exactly one breach notification per alert (tracked via BreachNotifiedAt,
// not a separate table). Lifecycle follows the same Start/Stop/run-with-
// ticker shape as ruleengine.Scheduler and the protocol adapters.
type Monitor struct {
	alerts     AlertSource
	policies   PolicyStore
	dispatcher *notification.Dispatcher
	resolver   TargetResolver
	interval   time.Duration
	logger     *slog.Logger
	stopCh     chan struct{}
}

// TargetResolver turns an escalation target into a concrete notification
// address for a channel, mirroring the resolution the escalation executor
// performs for its own tiers. Implemented by escalation.TargetResolver.
type TargetResolver interface {
	Resolve(ctx context.Context, tenantID uuid.UUID, target domain.EscalationTarget, channel string, at time.Time) (string, error)
}

func NewMonitor(alerts AlertSource, policies PolicyStore, dispatcher *notification.Dispatcher, resolver TargetResolver, interval time.Duration, logger *slog.Logger) *Monitor {
	if interval <= 0 {
		interval = DefaultCheckInterval
	}
	return &Monitor{
		alerts:     alerts,
		policies:   policies,
		dispatcher: dispatcher,
		resolver:   resolver,
		interval:   interval,
		logger:     logger.With("component", "sla_monitor"),
		stopCh:     make(chan struct{}),
	}
}

func (m *Monitor) Start(ctx context.Context) {
	go m.run(ctx)
}

func (m *Monitor) Stop() {
	close(m.stopCh)
}

func (m *Monitor) run(ctx context.Context) {
	m.runOnce(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("sla monitor stopping: context cancelled")
			return
		case <-m.stopCh:
			m.logger.Info("sla monitor stopping")
			return
		case <-ticker.C:
			m.runOnce(ctx)
		}
	}
}

func (m *Monitor) runOnce(ctx context.Context) {
	now := time.Now()

	alerts, err := m.alerts.FindOpenForSLA(ctx)
	if err != nil {
		m.logger.Error("failed to load open alerts for sla check", "error", err)
		return
	}

	for _, alert := range alerts {
		sla, err := m.alerts.SLA(ctx, alert.ID)
		if err != nil {
			m.logger.Error("failed to load sla row", "alert_id", alert.ID, "error", err)
			continue
		}

		ttaFlipped := sla.CheckTTABreach(alert.CreatedAt, now)
		ttrFlipped := sla.CheckTTRBreach(alert.CreatedAt, now)
		if !ttaFlipped && !ttrFlipped && !sla.ShouldNotifyBreach() {
			continue
		}

		if sla.ShouldNotifyBreach() {
			m.notifyBreach(ctx, alert, sla, now)
		}

		if err := m.alerts.UpdateSLA(ctx, sla); err != nil {
			m.logger.Error("failed to persist sla breach", "alert_id", alert.ID, "error", err)
		}
	}
}

func (m *Monitor) notifyBreach(ctx context.Context, alert *domain.Alert, sla *domain.AlertSLA, now time.Time) {
	if alert.EscalationPolicyID == nil {
		// No policy attached: breach is recorded but there is no configured
		// recipient, consistent with EscalationEligible() gating who even
		// gets a policy in the first place.
		sla.MarkBreachNotified(now)
		return
	}

	policy, err := m.policies.FindByID(ctx, alert.TenantID, *alert.EscalationPolicyID)
	if err != nil || policy == nil || len(policy.Tiers) == 0 {
		sla.MarkBreachNotified(now)
		return
	}

	tier := policy.Tiers[0]
	kind := "breach"
	switch {
	case sla.TTABreached && sla.TTAActualMinutes == nil:
		kind = "time-to-acknowledge"
	case sla.TTRBreached && sla.TTRActualMinutes == nil:
		kind = "time-to-resolve"
	}

	for _, target := range tier.Targets {
		for _, channel := range tier.Channels {
			sendChannel, webhookName := domain.SplitNotificationChannel(channel)

			addr := webhookName
			if sendChannel != "webhook" {
				resolved, err := m.resolver.Resolve(ctx, alert.TenantID, target, sendChannel, now)
				if err != nil || resolved == "" {
					continue
				}
				addr = resolved
			}

			if err := m.dispatcher.Enqueue(notification.Notification{
				TenantID: alert.TenantID,
				AlertID:  alert.ID,
				Channel:  sendChannel,
				Target:   addr,
				Severity: alert.Severity,
				Subject:  "SLA breach: " + kind,
				Body:     "Alert " + alert.ID.String() + " breached its " + kind + " target: " + alert.Message,
			}); err != nil {
				m.logger.Error("failed to enqueue sla breach notification", "alert_id", alert.ID, "channel", sendChannel, "error", err)
			}
		}
	}

	sla.MarkBreachNotified(now)
}
