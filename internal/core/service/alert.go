package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/insa-iiot/platform-core/internal/core/domain"
	"github.com/insa-iiot/platform-core/internal/core/port"
)

// AlertService implements port.AlertService: creation with grouping,
// append-only lifecycle transitions, and SLA tracking.
type AlertService struct {
	alerts       port.AlertRepository
	groups       port.AlertGroupRepository
	policies     port.EscalationPolicyRepository
	tenantSetter port.TenantContextSetter
}

// NewAlertService creates a new alert service.
func NewAlertService(alerts port.AlertRepository, groups port.AlertGroupRepository, policies port.EscalationPolicyRepository, tenantSetter port.TenantContextSetter) *AlertService {
	return &AlertService{alerts: alerts, groups: groups, policies: policies, tenantSetter: tenantSetter}
}

// List returns a page of a tenant's alerts.
func (s *AlertService) List(ctx context.Context, tenantID uuid.UUID, page, limit int) (*port.AlertListResult, error) {
	if err := s.tenantSetter.SetTenantContext(ctx, tenantID); err != nil {
		return nil, err
	}
	offset := (page - 1) * limit
	alerts, err := s.alerts.FindByTenant(ctx, tenantID, limit, offset)
	if err != nil {
		return nil, err
	}
	total, err := s.alerts.CountByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return &port.AlertListResult{Alerts: alerts, Total: total, Page: page, Limit: limit}, nil
}

// GetByID returns a single alert, scoped to tenantID.
func (s *AlertService) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*domain.Alert, error) {
	if err := s.tenantSetter.SetTenantContext(ctx, tenantID); err != nil {
		return nil, err
	}
	return s.alerts.FindByID(ctx, tenantID, id)
}

// Create persists a new alert with its initial "new" state and SLA row, then
// folds it into its grouping envelope per §4.5/§9: a repeat occurrence within
// the grouping window increments the existing active group instead of
// creating a fresh visible alert.
func (s *AlertService) Create(ctx context.Context, input port.CreateAlertInput) (*domain.Alert, error) {
	if err := s.tenantSetter.SetTenantContext(ctx, input.TenantID); err != nil {
		return nil, err
	}
	if !input.Severity.IsValid() {
		return nil, domain.ErrValidation
	}

	now := time.Now()
	alert := &domain.Alert{
		ID:                uuid.New(),
		TenantID:          input.TenantID,
		DeviceID:          input.DeviceID,
		RuleID:            input.RuleID,
		Severity:          input.Severity,
		Message:           input.Message,
		Metadata:          input.Metadata,
		CreatedAt:         now,
		ExternalSourceKey: input.ExternalSourceKey,
	}

	if alert.Severity.EscalationEligible() {
		if policy, err := s.policies.FindMatchingSeverity(ctx, input.TenantID, alert.Severity); err == nil && policy != nil {
			alert.EscalationPolicyID = &policy.ID
		}
		// No matching policy (or lookup failure) leaves EscalationPolicyID nil:
		// the alert is created without escalation rather than blocking on a
		// policy that may simply not exist for this tenant/severity yet.
	}

	key, groupable := domain.GroupKeyFor(alert)
	if groupable {
		group, created, err := s.groups.UpsertOccurrence(ctx, input.TenantID, key, alert.ID, now, domain.DefaultGroupingWindow)
		if err != nil {
			return nil, err
		}
		if !created {
			// Folded into an existing group: mark this row as a shadow of the
			// representative alert rather than surfacing a duplicate.
			alert.GroupedAlertID = &group.RepresentativeAlertID
		}
	}

	if err := s.alerts.Save(ctx, alert); err != nil {
		return nil, err
	}
	if err := s.alerts.AppendState(ctx, alert.ID, &domain.AlertState{
		ID:        uuid.New(),
		AlertID:   alert.ID,
		State:     domain.StateNew,
		ChangedBy: domain.SystemActor,
		ChangedAt: now,
	}, nil); err != nil {
		return nil, err
	}

	sla := domain.NewAlertSLA(alert.ID, alert.Severity, now)
	if err := s.alerts.SaveSLA(ctx, sla); err != nil {
		return nil, err
	}

	return alert, nil
}

// Acknowledge transitions an alert from new to acknowledged.
func (s *AlertService) Acknowledge(ctx context.Context, tenantID, id, userID uuid.UUID, note *string) (*domain.Alert, error) {
	return s.transition(ctx, tenantID, id, userID.String(), domain.StateAcknowledged, note, false)
}

// Investigate transitions an alert from new or acknowledged to investigating.
func (s *AlertService) Investigate(ctx context.Context, tenantID, id, userID uuid.UUID, note *string) (*domain.Alert, error) {
	return s.transition(ctx, tenantID, id, userID.String(), domain.StateInvestigating, note, false)
}

// Resolve transitions an alert from any open state to resolved.
func (s *AlertService) Resolve(ctx context.Context, tenantID, id, userID uuid.UUID, note *string) (*domain.Alert, error) {
	return s.transition(ctx, tenantID, id, userID.String(), domain.StateResolved, note, false)
}

// Reopen transitions a resolved alert back to new; callers must have already
// verified the actor is a system admin (the HTTP handler does). The service
// does not check the role again: it passes isSystemAdmin=true to the
// transition check.
func (s *AlertService) Reopen(ctx context.Context, tenantID, id, userID uuid.UUID, note *string) (*domain.Alert, error) {
	return s.transition(ctx, tenantID, id, userID.String(), domain.StateNew, note, true)
}

func (s *AlertService) transition(ctx context.Context, tenantID, id uuid.UUID, changedBy string, to domain.LifecycleState, note *string, isSystemAdmin bool) (*domain.Alert, error) {
	if err := s.tenantSetter.SetTenantContext(ctx, tenantID); err != nil {
		return nil, err
	}

	alert, err := s.alerts.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	current, err := s.alerts.CurrentState(ctx, id)
	if err != nil {
		return nil, err
	}

	allowed := domain.CanTransition(current.State, to)
	if !allowed && to == domain.StateNew {
		allowed = domain.CanReopen(current.State, to, isSystemAdmin)
	}
	if !allowed {
		switch {
		case current.State == domain.StateAcknowledged && to == domain.StateAcknowledged:
			return nil, domain.ErrAlertAlreadyAcknowledged
		case current.State == domain.StateResolved && to == domain.StateResolved:
			return nil, domain.ErrAlertAlreadyResolved
		default:
			return nil, domain.ErrInvalidStateTransition
		}
	}

	now := time.Now()
	sla, err := s.alerts.SLA(ctx, id)
	if err != nil {
		return nil, err
	}
	switch to {
	case domain.StateAcknowledged:
		sla.RecordAcknowledged(alert.CreatedAt, now)
	case domain.StateResolved:
		sla.RecordResolved(alert.CreatedAt, now)
	}

	err = s.alerts.AppendState(ctx, id, &domain.AlertState{
		ID:        uuid.New(),
		AlertID:   id,
		State:     to,
		ChangedBy: changedBy,
		ChangedAt: now,
		Note:      note,
	}, func(a *domain.Alert) error { return nil })
	if err != nil {
		return nil, err
	}
	if err := s.alerts.UpdateSLA(ctx, sla); err != nil {
		return nil, err
	}

	return alert, nil
}

// AddNote appends an annotation state row without changing lifecycle state.
func (s *AlertService) AddNote(ctx context.Context, tenantID, id, userID uuid.UUID, note string) error {
	if err := s.tenantSetter.SetTenantContext(ctx, tenantID); err != nil {
		return err
	}
	current, err := s.alerts.CurrentState(ctx, id)
	if err != nil {
		return err
	}
	return s.alerts.AppendState(ctx, id, &domain.AlertState{
		ID:        uuid.New(),
		AlertID:   id,
		State:     current.State,
		ChangedBy: userID.String(),
		ChangedAt: time.Now(),
		Note:      &note,
	}, nil)
}

// History returns an alert's full lifecycle and SLA for the timeline view.
func (s *AlertService) History(ctx context.Context, tenantID, id uuid.UUID) (*port.AlertHistoryResult, error) {
	if err := s.tenantSetter.SetTenantContext(ctx, tenantID); err != nil {
		return nil, err
	}
	alert, err := s.alerts.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	states, err := s.alerts.History(ctx, id)
	if err != nil {
		return nil, err
	}
	sla, err := s.alerts.SLA(ctx, id)
	if err != nil {
		return nil, err
	}
	return &port.AlertHistoryResult{Alert: alert, States: states, SLA: sla}, nil
}
