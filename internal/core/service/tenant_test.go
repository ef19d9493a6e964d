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

func TestTenantService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("provisions a tenant with tier-default caps", func(t *testing.T) {
		tenants := mocks.NewMockTenantRepository()
		svc := NewTenantService(tenants, mocks.NewMockTenantUserRepository(), mocks.NewMockUserRepository())

		result, err := svc.Create(ctx, port.CreateTenantInput{Slug: "acme", DisplayName: "Acme Corp", Tier: domain.TenantTierStartup})

		require.NoError(t, err)
		require.NotNil(t, result.Caps.MaxDevices)
		assert.Equal(t, 50, *result.Caps.MaxDevices)
	})

	t.Run("falls back to the free tier for an unrecognized tier", func(t *testing.T) {
		tenants := mocks.NewMockTenantRepository()
		svc := NewTenantService(tenants, mocks.NewMockTenantUserRepository(), mocks.NewMockUserRepository())

		result, err := svc.Create(ctx, port.CreateTenantInput{Slug: "bogus-tier", Tier: "nonsense"})

		require.NoError(t, err)
		assert.Equal(t, domain.TenantTierFree, result.Tier)
	})

	t.Run("rejects a duplicate slug", func(t *testing.T) {
		tenants := mocks.NewMockTenantRepository()
		tenants.AddTenant(&domain.Tenant{ID: uuid.New(), Slug: "acme"})
		svc := NewTenantService(tenants, mocks.NewMockTenantUserRepository(), mocks.NewMockUserRepository())

		_, err := svc.Create(ctx, port.CreateTenantInput{Slug: "acme"})

		assert.ErrorIs(t, err, domain.ErrTenantSlugExists)
	})
}

func TestTenantService_InviteUser(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()

	t.Run("provisions a placeholder user for an unregistered email", func(t *testing.T) {
		tenants := mocks.NewMockTenantRepository()
		tenants.AddTenant(&domain.Tenant{ID: tenantID, Caps: domain.DefaultCapsForTier(domain.TenantTierStartup)})
		users := mocks.NewMockUserRepository()
		tenantUsers := mocks.NewMockTenantUserRepository()
		svc := NewTenantService(tenants, tenantUsers, users)

		result, err := svc.InviteUser(ctx, tenantID, port.InviteUserInput{Email: "new@acme.test"})

		require.NoError(t, err)
		assert.Equal(t, domain.RoleMember, result.Role)
		_, err = users.FindByEmail(ctx, "new@acme.test")
		require.NoError(t, err)
	})

	t.Run("reuses an existing user by email", func(t *testing.T) {
		tenants := mocks.NewMockTenantRepository()
		tenants.AddTenant(&domain.Tenant{ID: tenantID, Caps: domain.DefaultCapsForTier(domain.TenantTierStartup)})
		users := mocks.NewMockUserRepository()
		existing := &domain.User{ID: uuid.New(), Email: "existing@acme.test"}
		users.AddUser(existing)
		svc := NewTenantService(tenants, mocks.NewMockTenantUserRepository(), users)

		result, err := svc.InviteUser(ctx, tenantID, port.InviteUserInput{Email: "existing@acme.test"})

		require.NoError(t, err)
		assert.Equal(t, existing.ID, result.UserID)
	})

	t.Run("rejects an invite once the member cap is reached", func(t *testing.T) {
		maxUsers := 1
		tenants := mocks.NewMockTenantRepository()
		tenants.AddTenant(&domain.Tenant{ID: tenantID, Caps: domain.ResourceCaps{MaxUsers: &maxUsers}})
		tenantUsers := mocks.NewMockTenantUserRepository()
		tenantUsers.AddMember(&domain.TenantUser{TenantID: tenantID, UserID: uuid.New()})
		svc := NewTenantService(tenants, tenantUsers, mocks.NewMockUserRepository())

		_, err := svc.InviteUser(ctx, tenantID, port.InviteUserInput{Email: "overflow@acme.test"})

		assert.ErrorIs(t, err, domain.ErrQuotaExceeded)
	})
}

func TestTenantService_RemoveUser(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()

	t.Run("refuses to remove the last tenant admin", func(t *testing.T) {
		userID := uuid.New()
		tenantUsers := mocks.NewMockTenantUserRepository()
		tenantUsers.AddMember(&domain.TenantUser{TenantID: tenantID, UserID: userID, TenantAdmin: true})
		svc := NewTenantService(mocks.NewMockTenantRepository(), tenantUsers, mocks.NewMockUserRepository())

		err := svc.RemoveUser(ctx, tenantID, userID)

		assert.ErrorIs(t, err, domain.ErrLastTenantAdmin)
	})

	t.Run("removes a non-admin member", func(t *testing.T) {
		userID := uuid.New()
		tenantUsers := mocks.NewMockTenantUserRepository()
		tenantUsers.AddMember(&domain.TenantUser{TenantID: tenantID, UserID: userID})
		svc := NewTenantService(mocks.NewMockTenantRepository(), tenantUsers, mocks.NewMockUserRepository())

		err := svc.RemoveUser(ctx, tenantID, userID)

		require.NoError(t, err)
		_, err = tenantUsers.Find(ctx, tenantID, userID)
		assert.Error(t, err)
	})

	t.Run("removes an admin when another admin remains", func(t *testing.T) {
		userID := uuid.New()
		tenantUsers := mocks.NewMockTenantUserRepository()
		tenantUsers.AddMember(&domain.TenantUser{TenantID: tenantID, UserID: userID, TenantAdmin: true})
		tenantUsers.AddMember(&domain.TenantUser{TenantID: tenantID, UserID: uuid.New(), TenantAdmin: true})
		svc := NewTenantService(mocks.NewMockTenantRepository(), tenantUsers, mocks.NewMockUserRepository())

		err := svc.RemoveUser(ctx, tenantID, userID)

		require.NoError(t, err)
	})
}

func TestTenantService_ChangeUserRole(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()

	t.Run("refuses to demote the last tenant admin", func(t *testing.T) {
		userID := uuid.New()
		tenantUsers := mocks.NewMockTenantUserRepository()
		tenantUsers.AddMember(&domain.TenantUser{TenantID: tenantID, UserID: userID, TenantAdmin: true})
		svc := NewTenantService(mocks.NewMockTenantRepository(), tenantUsers, mocks.NewMockUserRepository())

		err := svc.ChangeUserRole(ctx, tenantID, userID, domain.RoleMember, false)

		assert.ErrorIs(t, err, domain.ErrLastTenantAdmin)
	})
}

func TestTenantService_Quotas(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()

	t.Run("returns usage set against caps", func(t *testing.T) {
		tenants := mocks.NewMockTenantRepository()
		tenants.AddTenant(&domain.Tenant{ID: tenantID, Caps: domain.DefaultCapsForTier(domain.TenantTierFree)})
		tenants.SetStats(tenantID, &domain.TenantStats{TenantID: tenantID, DeviceCount: 2})
		svc := NewTenantService(tenants, mocks.NewMockTenantUserRepository(), mocks.NewMockUserRepository())

		result, err := svc.Quotas(ctx, tenantID)

		require.NoError(t, err)
		assert.Equal(t, 2, result.Stats.DeviceCount)
	})
}
