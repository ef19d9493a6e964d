package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insa-iiot/platform-core/internal/core/domain"
	"github.com/insa-iiot/platform-core/internal/core/port"
	"github.com/insa-iiot/platform-core/internal/core/service/mocks"
)

func TestAlertService_List(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()

	t.Run("returns paginated alerts", func(t *testing.T) {
		alerts := mocks.NewMockAlertRepository()
		groups := mocks.NewMockAlertGroupRepository()
		policies := mocks.NewMockEscalationPolicyRepository()
		tenantSetter := mocks.NewMockTenantContextSetter()

		for i := 0; i < 3; i++ {
			alerts.AddAlert(&domain.Alert{ID: uuid.New(), TenantID: tenantID, DeviceID: uuid.New(), Severity: domain.AlertSeverityMedium, CreatedAt: time.Now()})
		}

		svc := NewAlertService(alerts, groups, policies, tenantSetter)

		result, err := svc.List(ctx, tenantID, 1, 10)

		require.NoError(t, err)
		assert.Equal(t, int64(3), result.Total)
		assert.Len(t, result.Alerts, 3)
		assert.True(t, tenantSetter.SetCalled)
	})

	t.Run("returns empty list when no alerts", func(t *testing.T) {
		alerts := mocks.NewMockAlertRepository()
		svc := NewAlertService(alerts, mocks.NewMockAlertGroupRepository(), mocks.NewMockEscalationPolicyRepository(), mocks.NewMockTenantContextSetter())

		result, err := svc.List(ctx, tenantID, 1, 10)

		require.NoError(t, err)
		assert.Equal(t, int64(0), result.Total)
	})
}

func TestAlertService_GetByID(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()

	t.Run("returns alert when found", func(t *testing.T) {
		alerts := mocks.NewMockAlertRepository()
		alertID := uuid.New()
		expected := &domain.Alert{ID: alertID, TenantID: tenantID, DeviceID: uuid.New(), Severity: domain.AlertSeverityCritical, CreatedAt: time.Now()}
		alerts.AddAlert(expected)

		svc := NewAlertService(alerts, mocks.NewMockAlertGroupRepository(), mocks.NewMockEscalationPolicyRepository(), mocks.NewMockTenantContextSetter())

		result, err := svc.GetByID(ctx, tenantID, alertID)

		require.NoError(t, err)
		assert.Equal(t, expected.ID, result.ID)
	})

	t.Run("returns error when not found", func(t *testing.T) {
		svc := NewAlertService(mocks.NewMockAlertRepository(), mocks.NewMockAlertGroupRepository(), mocks.NewMockEscalationPolicyRepository(), mocks.NewMockTenantContextSetter())

		result, err := svc.GetByID(ctx, tenantID, uuid.New())

		require.Error(t, err)
		assert.Nil(t, result)
	})
}

func TestAlertService_Create(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()

	t.Run("creates a new alert with a new state and an SLA row", func(t *testing.T) {
		alerts := mocks.NewMockAlertRepository()
		svc := NewAlertService(alerts, mocks.NewMockAlertGroupRepository(), mocks.NewMockEscalationPolicyRepository(), mocks.NewMockTenantContextSetter())

		input := port.CreateAlertInput{TenantID: tenantID, DeviceID: uuid.New(), Severity: domain.AlertSeverityMedium, Message: "pump pressure high"}

		result, err := svc.Create(ctx, input)

		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, result.ID)
		assert.True(t, alerts.SaveCalled)

		state, err := alerts.CurrentState(ctx, result.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StateNew, state.State)

		sla, err := alerts.SLA(ctx, result.ID)
		require.NoError(t, err)
		assert.NotNil(t, sla)
	})

	t.Run("rejects an unrecognized severity", func(t *testing.T) {
		svc := NewAlertService(mocks.NewMockAlertRepository(), mocks.NewMockAlertGroupRepository(), mocks.NewMockEscalationPolicyRepository(), mocks.NewMockTenantContextSetter())

		_, err := svc.Create(ctx, port.CreateAlertInput{TenantID: tenantID, DeviceID: uuid.New(), Severity: "bogus"})

		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("attaches the matching escalation policy for an eligible severity", func(t *testing.T) {
		policies := mocks.NewMockEscalationPolicyRepository()
		policy := &domain.EscalationPolicy{ID: uuid.New(), TenantID: tenantID, Tiers: []domain.EscalationTier{{SeverityFilter: []domain.AlertSeverity{domain.AlertSeverityCritical}}}}
		policies.AddPolicy(policy)
		alerts := mocks.NewMockAlertRepository()
		svc := NewAlertService(alerts, mocks.NewMockAlertGroupRepository(), policies, mocks.NewMockTenantContextSetter())

		result, err := svc.Create(ctx, port.CreateAlertInput{TenantID: tenantID, DeviceID: uuid.New(), Severity: domain.AlertSeverityCritical})

		require.NoError(t, err)
		require.NotNil(t, result.EscalationPolicyID)
		assert.Equal(t, policy.ID, *result.EscalationPolicyID)
	})

	t.Run("leaves escalation unset when no policy matches the severity", func(t *testing.T) {
		svc := NewAlertService(mocks.NewMockAlertRepository(), mocks.NewMockAlertGroupRepository(), mocks.NewMockEscalationPolicyRepository(), mocks.NewMockTenantContextSetter())

		result, err := svc.Create(ctx, port.CreateAlertInput{TenantID: tenantID, DeviceID: uuid.New(), Severity: domain.AlertSeverityCritical})

		require.NoError(t, err)
		assert.Nil(t, result.EscalationPolicyID)
	})

	t.Run("folds a repeat occurrence into the existing group instead of creating a second visible alert", func(t *testing.T) {
		alerts := mocks.NewMockAlertRepository()
		groups := mocks.NewMockAlertGroupRepository()
		svc := NewAlertService(alerts, groups, mocks.NewMockEscalationPolicyRepository(), mocks.NewMockTenantContextSetter())

		deviceID := uuid.New()
		ruleID := uuid.New()
		input := port.CreateAlertInput{TenantID: tenantID, DeviceID: deviceID, RuleID: &ruleID, Severity: domain.AlertSeverityLow}

		first, err := svc.Create(ctx, input)
		require.NoError(t, err)
		assert.Nil(t, first.GroupedAlertID)

		second, err := svc.Create(ctx, input)
		require.NoError(t, err)
		require.NotNil(t, second.GroupedAlertID)
		assert.Equal(t, first.ID, *second.GroupedAlertID)
	})

	t.Run("returns an error when save fails", func(t *testing.T) {
		alerts := mocks.NewMockAlertRepository()
		alerts.SaveErr = domain.ErrInternal
		svc := NewAlertService(alerts, mocks.NewMockAlertGroupRepository(), mocks.NewMockEscalationPolicyRepository(), mocks.NewMockTenantContextSetter())

		result, err := svc.Create(ctx, port.CreateAlertInput{TenantID: tenantID, DeviceID: uuid.New(), Severity: domain.AlertSeverityInfo})

		require.Error(t, err)
		assert.Nil(t, result)
	})
}

func TestAlertService_Acknowledge(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()
	userID := uuid.New()

	t.Run("acknowledges a new alert", func(t *testing.T) {
		alerts := mocks.NewMockAlertRepository()
		alertID := uuid.New()
		alerts.AddAlert(&domain.Alert{ID: alertID, TenantID: tenantID, DeviceID: uuid.New(), Severity: domain.AlertSeverityMedium, CreatedAt: time.Now()})

		svc := NewAlertService(alerts, mocks.NewMockAlertGroupRepository(), mocks.NewMockEscalationPolicyRepository(), mocks.NewMockTenantContextSetter())

		result, err := svc.Acknowledge(ctx, tenantID, alertID, userID, nil)

		require.NoError(t, err)
		assert.Equal(t, alertID, result.ID)

		state, err := alerts.CurrentState(ctx, alertID)
		require.NoError(t, err)
		assert.Equal(t, domain.StateAcknowledged, state.State)

		sla, err := alerts.SLA(ctx, alertID)
		require.NoError(t, err)
		assert.NotNil(t, sla.TTAActualMinutes)
	})

	t.Run("rejects acknowledging an already-acknowledged alert", func(t *testing.T) {
		alerts := mocks.NewMockAlertRepository()
		alertID := uuid.New()
		alerts.AddAlert(&domain.Alert{ID: alertID, TenantID: tenantID, DeviceID: uuid.New(), Severity: domain.AlertSeverityMedium, CreatedAt: time.Now()})
		require.NoError(t, alerts.AppendState(ctx, alertID, &domain.AlertState{ID: uuid.New(), AlertID: alertID, State: domain.StateAcknowledged, ChangedAt: time.Now()}, nil))

		svc := NewAlertService(alerts, mocks.NewMockAlertGroupRepository(), mocks.NewMockEscalationPolicyRepository(), mocks.NewMockTenantContextSetter())

		_, err := svc.Acknowledge(ctx, tenantID, alertID, userID, nil)

		assert.ErrorIs(t, err, domain.ErrAlertAlreadyAcknowledged)
	})

	t.Run("returns an error when the alert does not exist", func(t *testing.T) {
		svc := NewAlertService(mocks.NewMockAlertRepository(), mocks.NewMockAlertGroupRepository(), mocks.NewMockEscalationPolicyRepository(), mocks.NewMockTenantContextSetter())

		result, err := svc.Acknowledge(ctx, tenantID, uuid.New(), userID, nil)

		require.Error(t, err)
		assert.Nil(t, result)
	})
}

func TestAlertService_Resolve(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()
	userID := uuid.New()

	t.Run("resolves a new alert directly", func(t *testing.T) {
		alerts := mocks.NewMockAlertRepository()
		alertID := uuid.New()
		alerts.AddAlert(&domain.Alert{ID: alertID, TenantID: tenantID, DeviceID: uuid.New(), Severity: domain.AlertSeverityInfo, CreatedAt: time.Now()})

		svc := NewAlertService(alerts, mocks.NewMockAlertGroupRepository(), mocks.NewMockEscalationPolicyRepository(), mocks.NewMockTenantContextSetter())

		result, err := svc.Resolve(ctx, tenantID, alertID, userID, nil)

		require.NoError(t, err)
		assert.Equal(t, alertID, result.ID)

		state, err := alerts.CurrentState(ctx, alertID)
		require.NoError(t, err)
		assert.Equal(t, domain.StateResolved, state.State)

		sla, err := alerts.SLA(ctx, alertID)
		require.NoError(t, err)
		assert.NotNil(t, sla.TTRActualMinutes)
	})

	t.Run("rejects resolving an already-resolved alert", func(t *testing.T) {
		alerts := mocks.NewMockAlertRepository()
		alertID := uuid.New()
		alerts.AddAlert(&domain.Alert{ID: alertID, TenantID: tenantID, DeviceID: uuid.New(), Severity: domain.AlertSeverityInfo, CreatedAt: time.Now()})
		require.NoError(t, alerts.AppendState(ctx, alertID, &domain.AlertState{ID: uuid.New(), AlertID: alertID, State: domain.StateResolved, ChangedAt: time.Now()}, nil))

		svc := NewAlertService(alerts, mocks.NewMockAlertGroupRepository(), mocks.NewMockEscalationPolicyRepository(), mocks.NewMockTenantContextSetter())

		_, err := svc.Resolve(ctx, tenantID, alertID, userID, nil)

		assert.ErrorIs(t, err, domain.ErrAlertAlreadyResolved)
	})
}

func TestAlertService_Reopen(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()
	userID := uuid.New()

	t.Run("system admin can reopen a resolved alert", func(t *testing.T) {
		alerts := mocks.NewMockAlertRepository()
		alertID := uuid.New()
		alerts.AddAlert(&domain.Alert{ID: alertID, TenantID: tenantID, DeviceID: uuid.New(), Severity: domain.AlertSeverityInfo, CreatedAt: time.Now()})
		require.NoError(t, alerts.AppendState(ctx, alertID, &domain.AlertState{ID: uuid.New(), AlertID: alertID, State: domain.StateResolved, ChangedAt: time.Now()}, nil))

		svc := NewAlertService(alerts, mocks.NewMockAlertGroupRepository(), mocks.NewMockEscalationPolicyRepository(), mocks.NewMockTenantContextSetter())

		result, err := svc.Reopen(ctx, tenantID, alertID, userID, nil)

		require.NoError(t, err)
		assert.Equal(t, alertID, result.ID)

		state, err := alerts.CurrentState(ctx, alertID)
		require.NoError(t, err)
		assert.Equal(t, domain.StateNew, state.State)
	})
}

func TestAlertService_AddNote(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()
	userID := uuid.New()

	t.Run("appends an annotation without changing state", func(t *testing.T) {
		alerts := mocks.NewMockAlertRepository()
		alertID := uuid.New()
		alerts.AddAlert(&domain.Alert{ID: alertID, TenantID: tenantID, DeviceID: uuid.New(), Severity: domain.AlertSeverityInfo, CreatedAt: time.Now()})

		svc := NewAlertService(alerts, mocks.NewMockAlertGroupRepository(), mocks.NewMockEscalationPolicyRepository(), mocks.NewMockTenantContextSetter())

		err := svc.AddNote(ctx, tenantID, alertID, userID, "checked the gateway, looks fine")
		require.NoError(t, err)

		history, err := alerts.History(ctx, alertID)
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, domain.StateNew, history[1].State)
		require.NotNil(t, history[1].Note)
		assert.Equal(t, "checked the gateway, looks fine", *history[1].Note)
	})
}

func TestAlertService_History(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()

	t.Run("returns the alert, its states, and its sla", func(t *testing.T) {
		alerts := mocks.NewMockAlertRepository()
		alertID := uuid.New()
		alerts.AddAlert(&domain.Alert{ID: alertID, TenantID: tenantID, DeviceID: uuid.New(), Severity: domain.AlertSeverityMedium, CreatedAt: time.Now()})

		svc := NewAlertService(alerts, mocks.NewMockAlertGroupRepository(), mocks.NewMockEscalationPolicyRepository(), mocks.NewMockTenantContextSetter())

		result, err := svc.History(ctx, tenantID, alertID)

		require.NoError(t, err)
		assert.Equal(t, alertID, result.Alert.ID)
		assert.Len(t, result.States, 1)
		assert.NotNil(t, result.SLA)
	})
}
