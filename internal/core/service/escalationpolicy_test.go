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

func TestEscalationPolicyService_Create(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()

	t.Run("persists a policy with ascending tier delays", func(t *testing.T) {
		policies := mocks.NewMockEscalationPolicyRepository()
		svc := NewEscalationPolicyService(policies, mocks.NewMockTenantContextSetter())

		result, err := svc.Create(ctx, port.CreateEscalationPolicyInput{
			TenantID: tenantID,
			Name:     "critical-ladder",
			Tiers: []domain.EscalationTier{
				{DelayMinutes: 0, Channels: []string{"email"}},
				{DelayMinutes: 15, Channels: []string{"sms"}},
			},
		})

		require.NoError(t, err)
		assert.Equal(t, "critical-ladder", result.Name)
	})

	t.Run("rejects an empty tier list", func(t *testing.T) {
		svc := NewEscalationPolicyService(mocks.NewMockEscalationPolicyRepository(), mocks.NewMockTenantContextSetter())

		_, err := svc.Create(ctx, port.CreateEscalationPolicyInput{TenantID: tenantID, Name: "empty"})

		assert.ErrorIs(t, err, domain.ErrInvalidEscalationTier)
	})

	t.Run("rejects tiers that are not strictly ascending by delay", func(t *testing.T) {
		svc := NewEscalationPolicyService(mocks.NewMockEscalationPolicyRepository(), mocks.NewMockTenantContextSetter())

		_, err := svc.Create(ctx, port.CreateEscalationPolicyInput{
			TenantID: tenantID,
			Name:     "out-of-order",
			Tiers: []domain.EscalationTier{
				{DelayMinutes: 15},
				{DelayMinutes: 10},
			},
		})

		assert.ErrorIs(t, err, domain.ErrInvalidEscalationTier)
	})

	t.Run("rejects two tiers sharing the same delay", func(t *testing.T) {
		svc := NewEscalationPolicyService(mocks.NewMockEscalationPolicyRepository(), mocks.NewMockTenantContextSetter())

		_, err := svc.Create(ctx, port.CreateEscalationPolicyInput{
			TenantID: tenantID,
			Name:     "duplicate-delay",
			Tiers: []domain.EscalationTier{
				{DelayMinutes: 10},
				{DelayMinutes: 10},
			},
		})

		assert.ErrorIs(t, err, domain.ErrInvalidEscalationTier)
	})
}

func TestEscalationPolicyService_Update(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()

	t.Run("replaces tiers when given a valid ordering", func(t *testing.T) {
		policyID := uuid.New()
		policies := mocks.NewMockEscalationPolicyRepository()
		policies.AddPolicy(&domain.EscalationPolicy{ID: policyID, TenantID: tenantID, Name: "original", Tiers: []domain.EscalationTier{{DelayMinutes: 0}}})
		svc := NewEscalationPolicyService(policies, mocks.NewMockTenantContextSetter())

		newTiers := []domain.EscalationTier{{DelayMinutes: 0}, {DelayMinutes: 30}}
		result, err := svc.Update(ctx, tenantID, policyID, port.UpdateEscalationPolicyInput{Tiers: newTiers})

		require.NoError(t, err)
		assert.Len(t, result.Tiers, 2)
	})

	t.Run("rejects an invalid tier ordering on update", func(t *testing.T) {
		policyID := uuid.New()
		policies := mocks.NewMockEscalationPolicyRepository()
		policies.AddPolicy(&domain.EscalationPolicy{ID: policyID, TenantID: tenantID, Tiers: []domain.EscalationTier{{DelayMinutes: 0}}})
		svc := NewEscalationPolicyService(policies, mocks.NewMockTenantContextSetter())

		_, err := svc.Update(ctx, tenantID, policyID, port.UpdateEscalationPolicyInput{Tiers: []domain.EscalationTier{{DelayMinutes: 10}, {DelayMinutes: 5}}})

		assert.ErrorIs(t, err, domain.ErrInvalidEscalationTier)
	})

	t.Run("returns an error for an unknown policy", func(t *testing.T) {
		svc := NewEscalationPolicyService(mocks.NewMockEscalationPolicyRepository(), mocks.NewMockTenantContextSetter())

		_, err := svc.Update(ctx, tenantID, uuid.New(), port.UpdateEscalationPolicyInput{})

		require.Error(t, err)
	})
}

func TestEscalationPolicyService_Delete(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()

	t.Run("removes a policy", func(t *testing.T) {
		policyID := uuid.New()
		policies := mocks.NewMockEscalationPolicyRepository()
		policies.AddPolicy(&domain.EscalationPolicy{ID: policyID, TenantID: tenantID})
		svc := NewEscalationPolicyService(policies, mocks.NewMockTenantContextSetter())

		err := svc.Delete(ctx, tenantID, policyID)

		require.NoError(t, err)
		_, err = policies.FindByID(ctx, tenantID, policyID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}
