package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/insa-iiot/platform-core/internal/core/domain"
	"github.com/insa-iiot/platform-core/internal/core/port"
)

// EscalationPolicyService implements port.EscalationPolicyService.
type EscalationPolicyService struct {
	policies     port.EscalationPolicyRepository
	tenantSetter port.TenantContextSetter
}

// NewEscalationPolicyService creates a new escalation policy service.
func NewEscalationPolicyService(policies port.EscalationPolicyRepository, tenantSetter port.TenantContextSetter) *EscalationPolicyService {
	return &EscalationPolicyService{policies: policies, tenantSetter: tenantSetter}
}

// List returns a page of a tenant's escalation policies.
func (s *EscalationPolicyService) List(ctx context.Context, tenantID uuid.UUID, page, limit int) (*port.EscalationPolicyListResult, error) {
	if err := s.tenantSetter.SetTenantContext(ctx, tenantID); err != nil {
		return nil, err
	}
	offset := (page - 1) * limit
	policies, err := s.policies.FindByTenant(ctx, tenantID, limit, offset)
	if err != nil {
		return nil, err
	}
	return &port.EscalationPolicyListResult{Policies: policies, Total: int64(len(policies)), Page: page, Limit: limit}, nil
}

// GetByID returns a single escalation policy, scoped to tenantID.
func (s *EscalationPolicyService) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*domain.EscalationPolicy, error) {
	if err := s.tenantSetter.SetTenantContext(ctx, tenantID); err != nil {
		return nil, err
	}
	return s.policies.FindByID(ctx, tenantID, id)
}

// Create validates tier ordering and persists a new escalation policy. Tiers
// must be sorted by ascending delay, matching HighestDueTier's assumption.
func (s *EscalationPolicyService) Create(ctx context.Context, input port.CreateEscalationPolicyInput) (*domain.EscalationPolicy, error) {
	if err := s.tenantSetter.SetTenantContext(ctx, input.TenantID); err != nil {
		return nil, err
	}
	if err := validateTierOrder(input.Tiers); err != nil {
		return nil, err
	}

	policy := &domain.EscalationPolicy{
		ID:       uuid.New(),
		TenantID: input.TenantID,
		Name:     input.Name,
		Tiers:    input.Tiers,
	}
	if err := s.policies.Save(ctx, policy); err != nil {
		return nil, err
	}
	return policy, nil
}

// Update applies a partial update to an escalation policy.
func (s *EscalationPolicyService) Update(ctx context.Context, tenantID, id uuid.UUID, input port.UpdateEscalationPolicyInput) (*domain.EscalationPolicy, error) {
	if err := s.tenantSetter.SetTenantContext(ctx, tenantID); err != nil {
		return nil, err
	}
	policy, err := s.policies.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if input.Name != nil {
		policy.Name = *input.Name
	}
	if input.Tiers != nil {
		if err := validateTierOrder(input.Tiers); err != nil {
			return nil, err
		}
		policy.Tiers = input.Tiers
	}
	if err := s.policies.Update(ctx, policy); err != nil {
		return nil, err
	}
	return policy, nil
}

// Delete removes an escalation policy.
func (s *EscalationPolicyService) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	if err := s.tenantSetter.SetTenantContext(ctx, tenantID); err != nil {
		return err
	}
	return s.policies.Delete(ctx, tenantID, id)
}

func validateTierOrder(tiers []domain.EscalationTier) error {
	if len(tiers) == 0 {
		return domain.ErrInvalidEscalationTier
	}
	last := -1
	for _, t := range tiers {
		if t.DelayMinutes <= last {
			return domain.ErrInvalidEscalationTier
		}
		last = t.DelayMinutes
	}
	return nil
}
