package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/insa-iiot/platform-core/internal/core/domain"
	"github.com/insa-iiot/platform-core/internal/core/port"
)

// RuleService implements port.RuleService.
type RuleService struct {
	rules        port.RuleRepository
	tenantSetter port.TenantContextSetter
}

// NewRuleService creates a new rule service.
func NewRuleService(rules port.RuleRepository, tenantSetter port.TenantContextSetter) *RuleService {
	return &RuleService{rules: rules, tenantSetter: tenantSetter}
}

// List returns a page of a tenant's rules.
func (s *RuleService) List(ctx context.Context, tenantID uuid.UUID, page, limit int) (*port.RuleListResult, error) {
	if err := s.tenantSetter.SetTenantContext(ctx, tenantID); err != nil {
		return nil, err
	}
	offset := (page - 1) * limit
	rules, err := s.rules.FindByTenant(ctx, tenantID, limit, offset)
	if err != nil {
		return nil, err
	}
	total, err := s.rules.CountByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return &port.RuleListResult{Rules: rules, Total: total, Page: page, Limit: limit}, nil
}

// GetByID returns a single rule, scoped to tenantID.
func (s *RuleService) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*domain.Rule, error) {
	if err := s.tenantSetter.SetTenantContext(ctx, tenantID); err != nil {
		return nil, err
	}
	return s.rules.FindByID(ctx, tenantID, id)
}

// Create validates and persists a new rule. Condition config shape
// validation is delegated to the rule engine's DSL decoder at evaluation
// time; here only the declared type and operator taxonomy are checked.
func (s *RuleService) Create(ctx context.Context, input port.CreateRuleInput) (*domain.Rule, error) {
	if err := s.tenantSetter.SetTenantContext(ctx, input.TenantID); err != nil {
		return nil, err
	}
	if !input.Type.IsValid() {
		return nil, domain.ErrInvalidRuleType
	}
	if len(input.ConditionConfig) == 0 {
		return nil, domain.ErrInvalidConditionConfig
	}

	rule := &domain.Rule{
		ID:                uuid.New(),
		TenantID:          input.TenantID,
		Name:              input.Name,
		Type:              input.Type,
		ConditionConfig:   input.ConditionConfig,
		Actions:           input.Actions,
		Priority:          input.Priority,
		Enabled:           true,
		CooldownSeconds:   input.CooldownSeconds,
		Scope:             input.Scope,
		TriggerWorkflowID: input.TriggerWorkflowID,
		CreatedBy:         &input.CreatedBy,
	}
	if err := s.rules.Save(ctx, rule); err != nil {
		return nil, err
	}
	return rule, nil
}

// Update applies a partial update to a rule.
func (s *RuleService) Update(ctx context.Context, tenantID, id uuid.UUID, input port.UpdateRuleInput) (*domain.Rule, error) {
	if err := s.tenantSetter.SetTenantContext(ctx, tenantID); err != nil {
		return nil, err
	}
	rule, err := s.rules.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if input.Name != nil {
		rule.Name = *input.Name
	}
	if input.Enabled != nil {
		rule.Enabled = *input.Enabled
	}
	if len(input.ConditionConfig) > 0 {
		rule.ConditionConfig = input.ConditionConfig
	}
	if input.Actions != nil {
		rule.Actions = input.Actions
	}
	if input.Priority != nil {
		rule.Priority = *input.Priority
	}
	if input.CooldownSeconds != nil {
		rule.CooldownSeconds = *input.CooldownSeconds
	}
	if input.Scope != nil {
		rule.Scope = *input.Scope
	}
	if input.TriggerWorkflowID != nil {
		rule.TriggerWorkflowID = input.TriggerWorkflowID
	}
	rule.UpdatedAt = time.Now()
	if err := s.rules.Update(ctx, rule); err != nil {
		return nil, err
	}
	return rule, nil
}

// Delete removes a rule.
func (s *RuleService) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	if err := s.tenantSetter.SetTenantContext(ctx, tenantID); err != nil {
		return err
	}
	return s.rules.Delete(ctx, tenantID, id)
}
