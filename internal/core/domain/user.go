package domain

import (
	"time"

	"github.com/google/uuid"
)

// User represents a platform account. Users do not belong to a tenant
// directly; membership is mediated by TenantUser.
type User struct {
	ID               uuid.UUID
	Email            string
	Phone            *string // E.164, optional; required for the SMS notification channel
	PasswordVerifier string
	SystemAdmin      bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// TenantUser represents membership of a User in a Tenant.
type TenantUser struct {
	TenantID    uuid.UUID
	UserID      uuid.UUID
	Role        string
	TenantAdmin bool
	JoinedAt    time.Time
}

// Role tags recognized by the authorization kernel. Tenants may define
// additional free-form role tags for display purposes; only the admin flag
// is load-bearing for access control.
const (
	RoleMember = "member"
	RoleAdmin  = "admin"
)

// Permission is a single fine-grained capability name carried on issued tokens.
type Permission string

const (
	PermissionDevicesReadWrite     Permission = "devices:readwrite"
	PermissionRulesReadWrite       Permission = "rules:readwrite"
	PermissionAlertsReadWrite      Permission = "alerts:readwrite"
	PermissionEscalationReadWrite  Permission = "escalation:readwrite"
	PermissionTenantAdmin          Permission = "tenant:admin"
	PermissionSystemAdmin          Permission = "system:admin"
)

// PermissionsFor derives the permission set implied by a membership.
func PermissionsFor(tu TenantUser, systemAdmin bool) []Permission {
	perms := []Permission{
		PermissionDevicesReadWrite,
		PermissionRulesReadWrite,
		PermissionAlertsReadWrite,
	}
	if tu.TenantAdmin {
		perms = append(perms, PermissionEscalationReadWrite, PermissionTenantAdmin)
	}
	if systemAdmin {
		perms = append(perms, PermissionSystemAdmin)
	}
	return perms
}
