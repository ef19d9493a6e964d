package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insa-iiot/platform-core/internal/core/domain"
	"github.com/insa-iiot/platform-core/internal/core/port"
	"github.com/insa-iiot/platform-core/internal/core/service/mocks"
)

func TestRuleService_Create(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()
	createdBy := uuid.New()

	t.Run("persists a valid threshold rule", func(t *testing.T) {
		rules := mocks.NewMockRuleRepository()
		svc := NewRuleService(rules, mocks.NewMockTenantContextSetter())

		result, err := svc.Create(ctx, port.CreateRuleInput{
			TenantID:        tenantID,
			Name:            "high pressure",
			Type:            domain.RuleTypeThreshold,
			ConditionConfig: []byte(`{"key":"pressure","gt":100}`),
			CreatedBy:       createdBy,
		})

		require.NoError(t, err)
		assert.True(t, result.Enabled)
		assert.True(t, rules.SaveCalled)
	})

	t.Run("rejects an unrecognized rule type", func(t *testing.T) {
		svc := NewRuleService(mocks.NewMockRuleRepository(), mocks.NewMockTenantContextSetter())

		_, err := svc.Create(ctx, port.CreateRuleInput{TenantID: tenantID, Type: "bogus", ConditionConfig: []byte(`{}`)})

		assert.ErrorIs(t, err, domain.ErrInvalidRuleType)
	})

	t.Run("rejects an empty condition config", func(t *testing.T) {
		svc := NewRuleService(mocks.NewMockRuleRepository(), mocks.NewMockTenantContextSetter())

		_, err := svc.Create(ctx, port.CreateRuleInput{TenantID: tenantID, Type: domain.RuleTypeThreshold})

		assert.ErrorIs(t, err, domain.ErrInvalidConditionConfig)
	})
}

func TestRuleService_Update(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()

	t.Run("disables a rule", func(t *testing.T) {
		ruleID := uuid.New()
		rules := mocks.NewMockRuleRepository()
		rules.AddRule(&domain.Rule{ID: ruleID, TenantID: tenantID, Enabled: true})
		svc := NewRuleService(rules, mocks.NewMockTenantContextSetter())

		disabled := false
		result, err := svc.Update(ctx, tenantID, ruleID, port.UpdateRuleInput{Enabled: &disabled})

		require.NoError(t, err)
		assert.False(t, result.Enabled)
	})

	t.Run("returns an error for an unknown rule", func(t *testing.T) {
		svc := NewRuleService(mocks.NewMockRuleRepository(), mocks.NewMockTenantContextSetter())

		_, err := svc.Update(ctx, tenantID, uuid.New(), port.UpdateRuleInput{})

		assert.ErrorIs(t, err, domain.ErrRuleNotFound)
	})
}

func TestRuleService_Delete(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()

	t.Run("removes a rule", func(t *testing.T) {
		ruleID := uuid.New()
		rules := mocks.NewMockRuleRepository()
		rules.AddRule(&domain.Rule{ID: ruleID, TenantID: tenantID})
		svc := NewRuleService(rules, mocks.NewMockTenantContextSetter())

		err := svc.Delete(ctx, tenantID, ruleID)

		require.NoError(t, err)
		assert.True(t, rules.DeleteCalled)
	})
}
