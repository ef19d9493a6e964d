package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/insa-iiot/platform-core/internal/auth"
	"github.com/insa-iiot/platform-core/internal/core/domain"
	"github.com/insa-iiot/platform-core/internal/core/port"
)

const bcryptCost = 12

// AuthService implements port.AuthService: credential verification, legacy
// hash migration, and bearer token issuance.
type AuthService struct {
	users       port.UserRepository
	tenantUsers port.TenantUserRepository
	tenants     port.TenantRepository
	signer      *auth.Signer
}

// NewAuthService creates a new auth service.
func NewAuthService(users port.UserRepository, tenantUsers port.TenantUserRepository, tenants port.TenantRepository, signer *auth.Signer) *AuthService {
	return &AuthService{users: users, tenantUsers: tenantUsers, tenants: tenants, signer: signer}
}

// Login verifies credentials and, on success, issues an access/refresh token
// pair bound to the resolved tenant membership.
func (s *AuthService) Login(ctx context.Context, email, password, tenantSlug string) (*port.LoginResult, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, domain.ErrInvalidCredentials
	}

	valid, needsRehash := verifyPassword(user.PasswordVerifier, password)
	if !valid {
		return nil, domain.ErrInvalidCredentials
	}
	if needsRehash {
		newHash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
		if err == nil {
			// Best-effort inline migration; a failure here does not fail the
			// login that just succeeded.
			_ = s.users.UpdatePasswordVerifier(ctx, user.ID, string(newHash))
			user.PasswordVerifier = string(newHash)
		}
	}

	memberships, err := s.tenantUsers.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	tu, err := resolveMembership(ctx, memberships, tenantSlug, s.tenants)
	if err != nil {
		return nil, err
	}

	return s.issueTokens(ctx, user, tu)
}

// resolveMembership picks the TenantUser to bind the token to: the single
// membership if there is exactly one, or the membership matching
// tenantSlug when the caller belongs to more than one tenant.
func resolveMembership(ctx context.Context, memberships []*domain.TenantUser, tenantSlug string, tenants port.TenantRepository) (*domain.TenantUser, error) {
	if len(memberships) == 0 {
		return nil, domain.ErrTenantContextRequired
	}
	if tenantSlug == "" {
		if len(memberships) == 1 {
			return memberships[0], nil
		}
		return nil, domain.ErrTenantContextRequired
	}
	for _, tu := range memberships {
		t, err := tenants.FindByID(ctx, tu.TenantID)
		if err != nil {
			continue
		}
		if t.Slug == tenantSlug {
			return tu, nil
		}
	}
	return nil, domain.ErrTenantNotFound
}

// Refresh exchanges a valid refresh token for a new access/refresh pair.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*port.LoginResult, error) {
	claims, err := s.signer.Verify(refreshToken)
	if err != nil {
		return nil, err
	}
	if !claims.Refresh {
		return nil, domain.ErrTokenMalformed
	}

	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		return nil, domain.ErrUserNotFound
	}
	tu, err := s.tenantUsers.Find(ctx, claims.TenantID, user.ID)
	if err != nil {
		return nil, domain.ErrTenantContextRequired
	}

	return s.issueTokens(ctx, user, tu)
}

func (s *AuthService) issueTokens(ctx context.Context, user *domain.User, tu *domain.TenantUser) (*port.LoginResult, error) {
	tenant, err := s.tenants.FindByID(ctx, tu.TenantID)
	if err != nil {
		return nil, domain.ErrTenantNotFound
	}

	perms := domain.PermissionsFor(*tu, user.SystemAdmin)
	permStrs := make([]string, len(perms))
	for i, p := range perms {
		permStrs[i] = string(p)
	}

	now := time.Now()
	base := auth.Claims{
		UserID:      user.ID,
		TenantID:    tenant.ID,
		TenantSlug:  tenant.Slug,
		Role:        tu.Role,
		Permissions: permStrs,
		TenantAdmin: tu.TenantAdmin,
		SystemAdmin: user.SystemAdmin,
	}

	access := base
	access.ExpiresAt = now.Add(auth.AccessTokenTTL)
	accessToken, err := s.signer.Issue(access)
	if err != nil {
		return nil, err
	}

	refresh := base
	refresh.Refresh = true
	refresh.ExpiresAt = now.Add(auth.RefreshTokenTTL)
	refreshToken, err := s.signer.Issue(refresh)
	if err != nil {
		return nil, err
	}

	return &port.LoginResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int(auth.AccessTokenTTL.Seconds()),
		User:         user,
	}, nil
}

// verifyPassword checks password against verifier, recognizing both the
// adaptive bcrypt form and the legacy bare 64-hex-character sha256 form. It
// returns needsRehash=true only when a legacy verifier validated, signaling
// the caller to upgrade the stored hash. Login does so with a separate,
// best-effort UpdatePasswordVerifier call; no transaction spans the login.
func verifyPassword(verifier, password string) (valid, needsRehash bool) {
	if isLegacySHA256Hex(verifier) {
		sum := sha256.Sum256([]byte(password))
		return hex.EncodeToString(sum[:]) == verifier, true
	}
	err := bcrypt.CompareHashAndPassword([]byte(verifier), []byte(password))
	return err == nil, false
}

func isLegacySHA256Hex(verifier string) bool {
	if len(verifier) != 64 {
		return false
	}
	for _, c := range verifier {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
			return false
		}
	}
	return true
}
