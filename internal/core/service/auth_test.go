package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/insa-iiot/platform-core/internal/auth"
	"github.com/insa-iiot/platform-core/internal/core/domain"
	"github.com/insa-iiot/platform-core/internal/core/service/mocks"
)

func bcryptHash(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func TestAuthService_Login(t *testing.T) {
	ctx := context.Background()
	signer := auth.NewSigner("test-secret")

	t.Run("issues tokens for a single-tenant user", func(t *testing.T) {
		tenantID := uuid.New()
		userID := uuid.New()
		users := mocks.NewMockUserRepository()
		users.AddUser(&domain.User{ID: userID, Email: "ops@acme.test", PasswordVerifier: bcryptHash(t, "correct-horse")})
		tenantUsers := mocks.NewMockTenantUserRepository()
		tenantUsers.AddMember(&domain.TenantUser{TenantID: tenantID, UserID: userID, Role: "member"})
		tenants := mocks.NewMockTenantRepository()
		tenants.AddTenant(&domain.Tenant{ID: tenantID, Slug: "acme"})
		svc := NewAuthService(users, tenantUsers, tenants, signer)

		result, err := svc.Login(ctx, "ops@acme.test", "correct-horse", "")

		require.NoError(t, err)
		assert.NotEmpty(t, result.AccessToken)
		assert.NotEmpty(t, result.RefreshToken)
		assert.Equal(t, 900, result.ExpiresIn)

		claims, err := signer.Verify(result.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, tenantID, claims.TenantID)
		assert.False(t, claims.Refresh)
	})

	t.Run("rejects an unknown email", func(t *testing.T) {
		svc := NewAuthService(mocks.NewMockUserRepository(), mocks.NewMockTenantUserRepository(), mocks.NewMockTenantRepository(), signer)

		_, err := svc.Login(ctx, "nobody@acme.test", "whatever", "")

		assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	})

	t.Run("rejects a wrong password", func(t *testing.T) {
		users := mocks.NewMockUserRepository()
		users.AddUser(&domain.User{ID: uuid.New(), Email: "ops@acme.test", PasswordVerifier: bcryptHash(t, "correct-horse")})
		svc := NewAuthService(users, mocks.NewMockTenantUserRepository(), mocks.NewMockTenantRepository(), signer)

		_, err := svc.Login(ctx, "ops@acme.test", "wrong-password", "")

		assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	})

	t.Run("migrates a legacy sha256 verifier to bcrypt on successful login", func(t *testing.T) {
		userID := uuid.New()
		tenantID := uuid.New()
		legacyHash := "5e884898da28047151d0e56f8dc6292773603d0d6aabbdd62a11ef721d1542d8" // sha256("password")
		users := mocks.NewMockUserRepository()
		users.AddUser(&domain.User{ID: userID, Email: "legacy@acme.test", PasswordVerifier: legacyHash})
		tenantUsers := mocks.NewMockTenantUserRepository()
		tenantUsers.AddMember(&domain.TenantUser{TenantID: tenantID, UserID: userID})
		tenants := mocks.NewMockTenantRepository()
		tenants.AddTenant(&domain.Tenant{ID: tenantID, Slug: "acme"})
		svc := NewAuthService(users, tenantUsers, tenants, signer)

		_, err := svc.Login(ctx, "legacy@acme.test", "password", "")

		require.NoError(t, err)
		stored, err := users.FindByEmail(ctx, "legacy@acme.test")
		require.NoError(t, err)
		assert.NotEqual(t, legacyHash, stored.PasswordVerifier)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordVerifier), []byte("password")))
	})

	t.Run("requires a tenant slug when the user belongs to more than one tenant", func(t *testing.T) {
		userID := uuid.New()
		users := mocks.NewMockUserRepository()
		users.AddUser(&domain.User{ID: userID, Email: "multi@acme.test", PasswordVerifier: bcryptHash(t, "pw")})
		tenantUsers := mocks.NewMockTenantUserRepository()
		tenantUsers.AddMember(&domain.TenantUser{TenantID: uuid.New(), UserID: userID})
		tenantUsers.AddMember(&domain.TenantUser{TenantID: uuid.New(), UserID: userID})
		svc := NewAuthService(users, tenantUsers, mocks.NewMockTenantRepository(), signer)

		_, err := svc.Login(ctx, "multi@acme.test", "pw", "")

		assert.ErrorIs(t, err, domain.ErrTenantContextRequired)
	})

	t.Run("resolves the membership matching the requested tenant slug", func(t *testing.T) {
		userID := uuid.New()
		tenantA := uuid.New()
		tenantB := uuid.New()
		users := mocks.NewMockUserRepository()
		users.AddUser(&domain.User{ID: userID, Email: "multi@acme.test", PasswordVerifier: bcryptHash(t, "pw")})
		tenantUsers := mocks.NewMockTenantUserRepository()
		tenantUsers.AddMember(&domain.TenantUser{TenantID: tenantA, UserID: userID, Role: "member"})
		tenantUsers.AddMember(&domain.TenantUser{TenantID: tenantB, UserID: userID, Role: "admin", TenantAdmin: true})
		tenants := mocks.NewMockTenantRepository()
		tenants.AddTenant(&domain.Tenant{ID: tenantA, Slug: "acme-a"})
		tenants.AddTenant(&domain.Tenant{ID: tenantB, Slug: "acme-b"})
		svc := NewAuthService(users, tenantUsers, tenants, signer)

		result, err := svc.Login(ctx, "multi@acme.test", "pw", "acme-b")

		require.NoError(t, err)
		claims, err := signer.Verify(result.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, tenantB, claims.TenantID)
		assert.True(t, claims.TenantAdmin)
	})
}

func TestAuthService_Refresh(t *testing.T) {
	ctx := context.Background()
	signer := auth.NewSigner("test-secret")

	t.Run("issues a new pair from a valid refresh token", func(t *testing.T) {
		tenantID := uuid.New()
		userID := uuid.New()
		users := mocks.NewMockUserRepository()
		users.AddUser(&domain.User{ID: userID, Email: "ops@acme.test"})
		tenantUsers := mocks.NewMockTenantUserRepository()
		tenantUsers.AddMember(&domain.TenantUser{TenantID: tenantID, UserID: userID})
		tenants := mocks.NewMockTenantRepository()
		tenants.AddTenant(&domain.Tenant{ID: tenantID, Slug: "acme"})
		svc := NewAuthService(users, tenantUsers, tenants, signer)

		refreshToken, err := signer.Issue(auth.Claims{UserID: userID, TenantID: tenantID, Refresh: true, ExpiresAt: farFuture()})
		require.NoError(t, err)

		result, err := svc.Refresh(ctx, refreshToken)

		require.NoError(t, err)
		assert.NotEmpty(t, result.AccessToken)
	})

	t.Run("rejects a malformed token", func(t *testing.T) {
		svc := NewAuthService(mocks.NewMockUserRepository(), mocks.NewMockTenantUserRepository(), mocks.NewMockTenantRepository(), signer)

		_, err := svc.Refresh(ctx, "not-a-real-token")

		assert.ErrorIs(t, err, domain.ErrTokenMalformed)
	})

	t.Run("rejects an access token presented as a refresh token", func(t *testing.T) {
		userID := uuid.New()
		tenantID := uuid.New()
		svc := NewAuthService(mocks.NewMockUserRepository(), mocks.NewMockTenantUserRepository(), mocks.NewMockTenantRepository(), signer)

		accessToken, err := signer.Issue(auth.Claims{UserID: userID, TenantID: tenantID, Refresh: false, ExpiresAt: farFuture()})
		require.NoError(t, err)

		_, err = svc.Refresh(ctx, accessToken)

		assert.ErrorIs(t, err, domain.ErrTokenMalformed)
	})
}

func farFuture() time.Time {
	return time.Now().Add(24 * time.Hour)
}
