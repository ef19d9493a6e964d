package port

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/insa-iiot/platform-core/internal/core/domain"
)

// ============================================================================
// SECONDARY PORTS (Driven)
// These interfaces define what the application NEEDS from the outside world.
// They are IMPLEMENTED by adapters (postgres, redis, temporal, ...)
// ============================================================================

// TenantRepository persists Tenant rows (global, not tenant-scoped).
type TenantRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Tenant, error)
	FindBySlug(ctx context.Context, slug string) (*domain.Tenant, error)
	List(ctx context.Context, limit, offset int) ([]*domain.Tenant, error)
	Count(ctx context.Context) (int64, error)
	Save(ctx context.Context, tenant *domain.Tenant) error
	Update(ctx context.Context, tenant *domain.Tenant) error
	Stats(ctx context.Context, tenantID uuid.UUID) (*domain.TenantStats, error)
}

// UserRepository persists User rows (global, not tenant-scoped).
type UserRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	Save(ctx context.Context, user *domain.User) error
	UpdatePasswordVerifier(ctx context.Context, id uuid.UUID, verifier string) error
}

// TenantUserRepository persists tenant membership rows.
type TenantUserRepository interface {
	Find(ctx context.Context, tenantID, userID uuid.UUID) (*domain.TenantUser, error)
	ListByTenant(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*domain.TenantUser, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.TenantUser, error)
	CountByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error)
	CountTenantAdmins(ctx context.Context, tenantID uuid.UUID) (int64, error)
	Save(ctx context.Context, tu *domain.TenantUser) error
	UpdateRole(ctx context.Context, tenantID, userID uuid.UUID, role string, tenantAdmin bool) error
	Delete(ctx context.Context, tenantID, userID uuid.UUID) error
}

// DeviceRepository persists tenant-scoped Device rows.
type DeviceRepository interface {
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*domain.Device, error)
	FindByIDAnyTenant(ctx context.Context, id uuid.UUID) (*domain.Device, error)
	FindByTenant(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*domain.Device, error)
	CountByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error)
	Save(ctx context.Context, device *domain.Device) error
	Update(ctx context.Context, device *domain.Device) error
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.DeviceStatus, seenAt time.Time) error
}

// TelemetryRepository persists append-only TelemetryPoint rows.
type TelemetryRepository interface {
	// InsertBatch idempotently writes points via pgx.CopyFrom into a staging
	// table, upserting with ON CONFLICT DO NOTHING on
	// (device_id, key, date_trunc('millisecond', timestamp)). Returns the
	// count actually inserted (excluding dropped duplicates).
	InsertBatch(ctx context.Context, points []*domain.TelemetryPoint) (int, error)
	Fetch(ctx context.Context, query domain.TelemetryQuery) ([]*domain.TelemetryPoint, string, error)
	Latest(ctx context.Context, tenantID, deviceID uuid.UUID, key string) (*domain.TelemetryPoint, error)
	Aggregate(ctx context.Context, query domain.TelemetryQuery, agg domain.AggregationType) (*domain.AggregateResult, error)
	// CountToday returns the tenant's telemetry point count for the current
	// day. The quota check does not use it; it goes through ReserveQuota.
	CountToday(ctx context.Context, tenantID uuid.UUID) (int64, error)
	// ReserveQuota atomically checks and increments the tenant's daily usage
	// counter under the row lock its INSERT ... ON CONFLICT DO UPDATE takes,
	// returning ErrQuotaExceeded if n more points would breach the cap.
	ReserveQuota(ctx context.Context, tenantID uuid.UUID, n int64, cap *int64) error
}

// RuleRepository persists tenant-scoped Rule rows.
type RuleRepository interface {
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*domain.Rule, error)
	FindByTenant(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*domain.Rule, error)
	FindEnabledByTenant(ctx context.Context, tenantID uuid.UUID) ([]*domain.Rule, error)
	FindAllEnabled(ctx context.Context) ([]*domain.Rule, error)
	CountByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error)
	Save(ctx context.Context, rule *domain.Rule) error
	Update(ctx context.Context, rule *domain.Rule) error
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
	MarkTriggered(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkEvaluated(ctx context.Context, id uuid.UUID, at time.Time) error
}

// AlertRepository persists tenant-scoped Alert rows.
type AlertRepository interface {
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*domain.Alert, error)
	FindByTenant(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*domain.Alert, error)
	FindActiveByRuleAndDevice(ctx context.Context, tenantID, deviceID, ruleID uuid.UUID) (*domain.Alert, error)
	FindEscalationCandidates(ctx context.Context) ([]*domain.Alert, error)
	FindOpenForSLA(ctx context.Context) ([]*domain.Alert, error)
	CountByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error)
	Save(ctx context.Context, alert *domain.Alert) error
	Update(ctx context.Context, alert *domain.Alert) error
	CurrentState(ctx context.Context, alertID uuid.UUID) (*domain.AlertState, error)
	History(ctx context.Context, alertID uuid.UUID) ([]*domain.AlertState, error)
	// AppendState inserts a new AlertState row inside the transition's
	// transaction, guarded by SELECT ... FOR UPDATE on the alert row.
	AppendState(ctx context.Context, alertID uuid.UUID, state *domain.AlertState, update func(a *domain.Alert) error) error
	SLA(ctx context.Context, alertID uuid.UUID) (*domain.AlertSLA, error)
	SaveSLA(ctx context.Context, sla *domain.AlertSLA) error
	UpdateSLA(ctx context.Context, sla *domain.AlertSLA) error
}

// AlertGroupRepository persists tenant-scoped AlertGroup rows.
type AlertGroupRepository interface {
	// UpsertOccurrence implements the atomic (a)/(b) grouping branch from
	// §4.5: finds the active group within the grouping window for key and
	// increments it, or creates a new group with representativeAlertID.
	// Returns the group and whether it was newly created.
	UpsertOccurrence(ctx context.Context, tenantID uuid.UUID, key domain.GroupKey, representativeAlertID uuid.UUID, now time.Time, window time.Duration) (*domain.AlertGroup, bool, error)
	FindActiveByKey(ctx context.Context, tenantID uuid.UUID, key domain.GroupKey) (*domain.AlertGroup, error)
}

// EscalationPolicyRepository persists tenant-scoped EscalationPolicy rows.
type EscalationPolicyRepository interface {
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*domain.EscalationPolicy, error)
	FindByTenant(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*domain.EscalationPolicy, error)
	FindMatchingSeverity(ctx context.Context, tenantID uuid.UUID, sev domain.AlertSeverity) (*domain.EscalationPolicy, error)
	Save(ctx context.Context, p *domain.EscalationPolicy) error
	Update(ctx context.Context, p *domain.EscalationPolicy) error
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
}

// OnCallScheduleRepository persists tenant-scoped OnCallSchedule rows.
type OnCallScheduleRepository interface {
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*domain.OnCallSchedule, error)
	FindByTenant(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*domain.OnCallSchedule, error)
	Save(ctx context.Context, s *domain.OnCallSchedule) error
	Update(ctx context.Context, s *domain.OnCallSchedule) error
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
}

// AuditRepository persists tenant-scoped AuditLog rows.
type AuditRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.AuditLog, error)
	FindByTenant(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*domain.AuditLog, error)
	CountByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error)
	Save(ctx context.Context, log *domain.AuditLog) error
}

// RemediationWorkflowRepository persists tenant-scoped RemediationWorkflow rows.
type RemediationWorkflowRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.RemediationWorkflow, error)
	FindByTenant(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*domain.RemediationWorkflow, error)
	CountByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error)
	Save(ctx context.Context, workflow *domain.RemediationWorkflow) error
	Update(ctx context.Context, workflow *domain.RemediationWorkflow) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// RemediationExecutionRepository persists tenant-scoped RemediationExecution rows.
type RemediationExecutionRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.RemediationExecution, error)
	FindByTenant(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*domain.RemediationExecution, error)
	FindByWorkflow(ctx context.Context, workflowID uuid.UUID, limit, offset int) ([]*domain.RemediationExecution, error)
	CountByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error)
	Save(ctx context.Context, execution *domain.RemediationExecution) error
	Update(ctx context.Context, execution *domain.RemediationExecution) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.RemediationExecutionStatus, errMsg *string) error
	UpdateTemporalIDs(ctx context.Context, id uuid.UUID, temporalWorkflowID, temporalRunID string) error
}

// WorkflowExecutor starts/cancels/inspects remediation workflow runs via Temporal.
type WorkflowExecutor interface {
	Execute(ctx context.Context, workflow *domain.RemediationWorkflow, input map[string]interface{}) (*ExecuteResult, error)
	Cancel(ctx context.Context, temporalWorkflowID string) error
	GetStatus(ctx context.Context, temporalWorkflowID string) (string, error)
}

// ExecuteResult represents the result of starting a workflow execution.
type ExecuteResult struct {
	TemporalWorkflowID string
	TemporalRunID      string
}

// TenantContextSetter sets the Postgres RLS session variable for the current
// connection/transaction ahead of a tenant-scoped query.
type TenantContextSetter interface {
	SetTenantContext(ctx context.Context, tenantID uuid.UUID) error
}

// Cache is the shared, TTL-backed cache used for the rule cache, device
// binding cache, tenant-context cache, and on-call resolution cache.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	GetJSON(ctx context.Context, key string, dest interface{}) error
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// Publish/Subscribe implement the cross-process cache invalidation bus.
	Publish(ctx context.Context, channel, message string) error
	Subscribe(ctx context.Context, channel string) (<-chan string, func() error)
}

// RateLimitCounter tracks per-(tenant,resource) quota counters needing
// cross-process serialization beyond a single Postgres row lock (reserved
// for future use by in-memory-first deployments; the Postgres-backed
// ReserveQuota above is the primary mechanism).
type RateLimitCounter interface {
	Increment(ctx context.Context, key string, window time.Duration) (int64, error)
}
