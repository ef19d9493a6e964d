package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/insa-iiot/platform-core/internal/core/domain"
	"github.com/insa-iiot/platform-core/internal/core/port"
)

// TenantService implements port.TenantService.
type TenantService struct {
	tenants     port.TenantRepository
	tenantUsers port.TenantUserRepository
	users       port.UserRepository
}

// NewTenantService creates a new tenant service.
func NewTenantService(tenants port.TenantRepository, tenantUsers port.TenantUserRepository, users port.UserRepository) *TenantService {
	return &TenantService{tenants: tenants, tenantUsers: tenantUsers, users: users}
}

// List returns the system-admin tenant listing. filter is not applied:
// TenantRepository.List takes only limit and offset, so every tenant is
// listed whatever the filter says.
func (s *TenantService) List(ctx context.Context, page, limit int, filter port.TenantFilter) (*port.TenantListResult, error) {
	offset := (page - 1) * limit
	tenants, err := s.tenants.List(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	total, err := s.tenants.Count(ctx)
	if err != nil {
		return nil, err
	}
	return &port.TenantListResult{Tenants: tenants, Total: total, Page: page, Limit: limit}, nil
}

// GetByID returns a tenant by id.
func (s *TenantService) GetByID(ctx context.Context, id uuid.UUID) (*domain.Tenant, error) {
	return s.tenants.FindByID(ctx, id)
}

// Create provisions a new tenant with tier-default resource caps.
func (s *TenantService) Create(ctx context.Context, input port.CreateTenantInput) (*domain.Tenant, error) {
	if existing, _ := s.tenants.FindBySlug(ctx, input.Slug); existing != nil {
		return nil, domain.ErrTenantSlugExists
	}
	if !input.Tier.IsValid() {
		input.Tier = domain.TenantTierFree
	}

	tenant := &domain.Tenant{
		ID:          uuid.New(),
		Slug:        input.Slug,
		DisplayName: input.DisplayName,
		Tier:        input.Tier,
		Caps:        domain.DefaultCapsForTier(input.Tier),
	}
	if err := s.tenants.Save(ctx, tenant); err != nil {
		return nil, err
	}
	return tenant, nil
}

// Update applies a partial update to a tenant's display name, tier, or caps.
func (s *TenantService) Update(ctx context.Context, id uuid.UUID, input port.UpdateTenantInput) (*domain.Tenant, error) {
	tenant, err := s.tenants.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if input.DisplayName != nil {
		tenant.DisplayName = *input.DisplayName
	}
	if input.Tier != nil {
		tenant.Tier = *input.Tier
	}
	if input.Caps != nil {
		tenant.Caps = *input.Caps
	}
	if err := s.tenants.Update(ctx, tenant); err != nil {
		return nil, err
	}
	return tenant, nil
}

// Stats returns live device/user/telemetry counts for a tenant.
func (s *TenantService) Stats(ctx context.Context, tenantID uuid.UUID) (*domain.TenantStats, error) {
	return s.tenants.Stats(ctx, tenantID)
}

// Quotas returns the tenant's current usage set against its resource caps.
func (s *TenantService) Quotas(ctx context.Context, tenantID uuid.UUID) (*port.QuotaUsage, error) {
	tenant, err := s.tenants.FindByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	stats, err := s.tenants.Stats(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return &port.QuotaUsage{Stats: *stats, Caps: tenant.Caps}, nil
}

// ListUsers returns the tenant's membership roster.
func (s *TenantService) ListUsers(ctx context.Context, tenantID uuid.UUID, page, limit int) (*port.TenantUserListResult, error) {
	offset := (page - 1) * limit
	members, err := s.tenantUsers.ListByTenant(ctx, tenantID, limit, offset)
	if err != nil {
		return nil, err
	}
	total, err := s.tenantUsers.CountByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return &port.TenantUserListResult{Members: members, Total: total, Page: page, Limit: limit}, nil
}

// InviteUser grants a user membership in a tenant, creating the User row if
// the email is not yet registered. The tenant's member cap is checked before
// the membership is written.
func (s *TenantService) InviteUser(ctx context.Context, tenantID uuid.UUID, input port.InviteUserInput) (*domain.TenantUser, error) {
	tenant, err := s.tenants.FindByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	memberCount, err := s.tenantUsers.CountByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if tenant.Caps.ExceedsUserCap(int(memberCount)) {
		return nil, domain.ErrQuotaExceeded
	}

	user, err := s.users.FindByEmail(ctx, input.Email)
	if err != nil {
		// Invitation of a not-yet-registered email provisions a placeholder
		// User row; the invitee sets their password on acceptance.
		user = &domain.User{ID: uuid.New(), Email: input.Email}
		if err := s.users.Save(ctx, user); err != nil {
			return nil, err
		}
	}

	tu := &domain.TenantUser{
		TenantID:    tenantID,
		UserID:      user.ID,
		Role:        input.Role,
		TenantAdmin: input.TenantAdmin,
	}
	if tu.Role == "" {
		tu.Role = domain.RoleMember
	}
	if err := s.tenantUsers.Save(ctx, tu); err != nil {
		return nil, err
	}
	return tu, nil
}

// RemoveUser revokes a user's membership, refusing to remove the tenant's
// last tenant admin.
func (s *TenantService) RemoveUser(ctx context.Context, tenantID, userID uuid.UUID) error {
	tu, err := s.tenantUsers.Find(ctx, tenantID, userID)
	if err != nil {
		return err
	}
	if tu.TenantAdmin {
		admins, err := s.tenantUsers.CountTenantAdmins(ctx, tenantID)
		if err != nil {
			return err
		}
		if admins <= 1 {
			return domain.ErrLastTenantAdmin
		}
	}
	return s.tenantUsers.Delete(ctx, tenantID, userID)
}

// ChangeUserRole updates a member's role tag and tenant-admin flag, refusing
// to demote the tenant's last tenant admin.
func (s *TenantService) ChangeUserRole(ctx context.Context, tenantID, userID uuid.UUID, role string, tenantAdmin bool) error {
	tu, err := s.tenantUsers.Find(ctx, tenantID, userID)
	if err != nil {
		return err
	}
	if tu.TenantAdmin && !tenantAdmin {
		admins, err := s.tenantUsers.CountTenantAdmins(ctx, tenantID)
		if err != nil {
			return err
		}
		if admins <= 1 {
			return domain.ErrLastTenantAdmin
		}
	}
	return s.tenantUsers.UpdateRole(ctx, tenantID, userID, role, tenantAdmin)
}
