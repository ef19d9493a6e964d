package domain

import (
	"time"

	"github.com/google/uuid"
)

// Tenant represents an isolated customer partition.
type Tenant struct {
	ID          uuid.UUID
	Slug        string
	DisplayName string
	Tier        TenantTier
	Caps        ResourceCaps
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TenantTier represents the subscription tier of a tenant.
type TenantTier string

const (
	TenantTierFree         TenantTier = "free"
	TenantTierStartup      TenantTier = "startup"
	TenantTierProfessional TenantTier = "professional"
	TenantTierEnterprise   TenantTier = "enterprise"
)

// IsValid reports whether t is one of the known tiers.
func (t TenantTier) IsValid() bool {
	switch t {
	case TenantTierFree, TenantTierStartup, TenantTierProfessional, TenantTierEnterprise:
		return true
	default:
		return false
	}
}

// ResourceCaps holds per-tenant resource limits. A nil pointer means unlimited.
type ResourceCaps struct {
	MaxDevices            *int
	MaxUsers              *int
	MaxTelemetryPerDay    *int64
	MaxRetentionDays      *int
}

// DefaultCapsForTier returns the baseline caps associated with a tier. Tenants
// may override individual fields after creation.
func DefaultCapsForTier(tier TenantTier) ResourceCaps {
	intp := func(v int) *int { return &v }
	i64p := func(v int64) *int64 { return &v }
	switch tier {
	case TenantTierFree:
		return ResourceCaps{MaxDevices: intp(5), MaxUsers: intp(3), MaxTelemetryPerDay: i64p(50_000), MaxRetentionDays: intp(7)}
	case TenantTierStartup:
		return ResourceCaps{MaxDevices: intp(50), MaxUsers: intp(15), MaxTelemetryPerDay: i64p(1_000_000), MaxRetentionDays: intp(30)}
	case TenantTierProfessional:
		return ResourceCaps{MaxDevices: intp(500), MaxUsers: intp(100), MaxTelemetryPerDay: i64p(25_000_000), MaxRetentionDays: intp(180)}
	case TenantTierEnterprise:
		return ResourceCaps{} // unlimited
	default:
		return ResourceCaps{MaxDevices: intp(5), MaxUsers: intp(3), MaxTelemetryPerDay: i64p(50_000), MaxRetentionDays: intp(7)}
	}
}

// ExceedsDeviceCap reports whether adding one more device would breach the cap.
func (c ResourceCaps) ExceedsDeviceCap(currentCount int) bool {
	return c.MaxDevices != nil && currentCount+1 > *c.MaxDevices
}

// ExceedsUserCap reports whether adding one more member would breach the cap.
func (c ResourceCaps) ExceedsUserCap(currentCount int) bool {
	return c.MaxUsers != nil && currentCount+1 > *c.MaxUsers
}

// ExceedsTelemetryCap reports whether writing n more points today would breach the cap.
func (c ResourceCaps) ExceedsTelemetryCap(todayCount int64, n int64) bool {
	return c.MaxTelemetryPerDay != nil && todayCount+n > *c.MaxTelemetryPerDay
}

// TenantStats is a read-model of device/user/telemetry counts for a tenant.
type TenantStats struct {
	TenantID          uuid.UUID
	DeviceCount       int
	UserCount         int
	TelemetryToday    int64
	TelemetryAllTime  int64
}
