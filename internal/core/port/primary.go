package port

import (
	"context"

	"github.com/google/uuid"
	"github.com/insa-iiot/platform-core/internal/core/domain"
)

// ============================================================================
// PRIMARY PORTS (Driving)
// These interfaces define what the application OFFERS to the outside world.
// They are IMPLEMENTED by the core services.
// They are CALLED by adapters (http handlers, protocol adapters, tests, ...)
// ============================================================================

// AuthService verifies credentials and issues/refreshes bearer tokens.
//
// tenantSlug disambiguates which membership to bind the token to when the
// user belongs to more than one tenant; it may be empty when the user has
// exactly one membership.
type AuthService interface {
	Login(ctx context.Context, email, password, tenantSlug string) (*LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (*LoginResult, error)
}

// LoginResult carries the issued tokens after a successful login.
type LoginResult struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int
	User         *domain.User
}

// TenantService implements tenant CRUD and the admin/member surfaces in §6.
type TenantService interface {
	List(ctx context.Context, page, limit int, filter TenantFilter) (*TenantListResult, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Tenant, error)
	Create(ctx context.Context, input CreateTenantInput) (*domain.Tenant, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateTenantInput) (*domain.Tenant, error)
	Stats(ctx context.Context, tenantID uuid.UUID) (*domain.TenantStats, error)
	Quotas(ctx context.Context, tenantID uuid.UUID) (*QuotaUsage, error)

	ListUsers(ctx context.Context, tenantID uuid.UUID, page, limit int) (*TenantUserListResult, error)
	InviteUser(ctx context.Context, tenantID uuid.UUID, input InviteUserInput) (*domain.TenantUser, error)
	RemoveUser(ctx context.Context, tenantID, userID uuid.UUID) error
	ChangeUserRole(ctx context.Context, tenantID, userID uuid.UUID, role string, tenantAdmin bool) error
}

// TenantFilter narrows the system-admin tenant list.
type TenantFilter struct {
	Tier *domain.TenantTier
	Slug *string
}

// DeviceService implements tenant-scoped device CRUD.
type DeviceService interface {
	List(ctx context.Context, tenantID uuid.UUID, page, limit int) (*DeviceListResult, error)
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*domain.Device, error)
	Create(ctx context.Context, input CreateDeviceInput) (*domain.Device, error)
	Update(ctx context.Context, tenantID, id uuid.UUID, input UpdateDeviceInput) (*domain.Device, error)
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
}

// TelemetryService implements ingestion and query of TelemetryPoint rows.
type TelemetryService interface {
	IngestBatch(ctx context.Context, tenantID uuid.UUID, points []*domain.TelemetryPoint) (int, error)
	Fetch(ctx context.Context, query domain.TelemetryQuery) (*TelemetryFetchResult, error)
	Aggregate(ctx context.Context, query domain.TelemetryQuery, agg domain.AggregationType) (*domain.AggregateResult, error)
}

// RuleService implements tenant-scoped rule CRUD.
type RuleService interface {
	List(ctx context.Context, tenantID uuid.UUID, page, limit int) (*RuleListResult, error)
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*domain.Rule, error)
	Create(ctx context.Context, input CreateRuleInput) (*domain.Rule, error)
	Update(ctx context.Context, tenantID, id uuid.UUID, input UpdateRuleInput) (*domain.Rule, error)
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
}

// AlertService implements tenant-scoped alert CRUD and lifecycle transitions.
type AlertService interface {
	List(ctx context.Context, tenantID uuid.UUID, page, limit int) (*AlertListResult, error)
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*domain.Alert, error)
	Create(ctx context.Context, input CreateAlertInput) (*domain.Alert, error)
	Acknowledge(ctx context.Context, tenantID, id, userID uuid.UUID, note *string) (*domain.Alert, error)
	Investigate(ctx context.Context, tenantID, id, userID uuid.UUID, note *string) (*domain.Alert, error)
	Resolve(ctx context.Context, tenantID, id, userID uuid.UUID, note *string) (*domain.Alert, error)
	Reopen(ctx context.Context, tenantID, id, userID uuid.UUID, note *string) (*domain.Alert, error)
	AddNote(ctx context.Context, tenantID, id, userID uuid.UUID, note string) error
	History(ctx context.Context, tenantID, id uuid.UUID) (*AlertHistoryResult, error)
}

// EscalationPolicyService implements tenant-admin escalation policy CRUD.
type EscalationPolicyService interface {
	List(ctx context.Context, tenantID uuid.UUID, page, limit int) (*EscalationPolicyListResult, error)
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*domain.EscalationPolicy, error)
	Create(ctx context.Context, input CreateEscalationPolicyInput) (*domain.EscalationPolicy, error)
	Update(ctx context.Context, tenantID, id uuid.UUID, input UpdateEscalationPolicyInput) (*domain.EscalationPolicy, error)
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
}

// OnCallService implements tenant-admin on-call schedule CRUD plus the
// current-on-call resolution.
type OnCallService interface {
	List(ctx context.Context, tenantID uuid.UUID, page, limit int) (*OnCallScheduleListResult, error)
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*domain.OnCallSchedule, error)
	Create(ctx context.Context, input CreateOnCallScheduleInput) (*domain.OnCallSchedule, error)
	Update(ctx context.Context, tenantID, id uuid.UUID, input UpdateOnCallScheduleInput) (*domain.OnCallSchedule, error)
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
	Current(ctx context.Context, tenantID, scheduleID uuid.UUID) (*uuid.UUID, error)
}

// AuditService implements audit log retrieval and recording.
type AuditService interface {
	List(ctx context.Context, tenantID uuid.UUID, page, limit int) (*AuditListResult, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.AuditLog, error)
	Log(ctx context.Context, log *domain.AuditLog) error
}

// RemediationService implements CRUD and execution of auto-remediation workflows.
type RemediationService interface {
	List(ctx context.Context, tenantID uuid.UUID, page, limit int) (*RemediationWorkflowListResult, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.RemediationWorkflow, error)
	Create(ctx context.Context, input CreateRemediationWorkflowInput) (*domain.RemediationWorkflow, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateRemediationWorkflowInput) (*domain.RemediationWorkflow, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Trigger(ctx context.Context, workflowID uuid.UUID, alertID *uuid.UUID, triggeredBy string, input map[string]interface{}) (*domain.RemediationExecution, error)
	ListExecutions(ctx context.Context, workflowID uuid.UUID, page, limit int) (*RemediationExecutionListResult, error)
	CancelExecution(ctx context.Context, tenantID, id uuid.UUID) error
}

// ============================================================================
// DTOs
// ============================================================================

// Tenant DTOs

type CreateTenantInput struct {
	Slug        string
	DisplayName string
	Tier        domain.TenantTier
}

type UpdateTenantInput struct {
	DisplayName *string
	Tier        *domain.TenantTier
	Caps        *domain.ResourceCaps
}

type TenantListResult struct {
	Tenants []*domain.Tenant
	Total   int64
	Page    int
	Limit   int
}

type QuotaUsage struct {
	Stats domain.TenantStats
	Caps  domain.ResourceCaps
}

type InviteUserInput struct {
	Email       string
	Role        string
	TenantAdmin bool
}

type TenantUserListResult struct {
	Members []*domain.TenantUser
	Total   int64
	Page    int
	Limit   int
}

// Device DTOs

type CreateDeviceInput struct {
	TenantID uuid.UUID
	Name     string
	Type     string
	Protocol domain.DeviceProtocol
	Metadata map[string]string
}

type UpdateDeviceInput struct {
	Name     *string
	Type     *string
	Status   *domain.DeviceStatus
	Metadata map[string]string
}

type DeviceListResult struct {
	Devices []*domain.Device
	Total   int64
	Page    int
	Limit   int
}

// Telemetry DTOs

type TelemetryFetchResult struct {
	Points     []*domain.TelemetryPoint
	NextCursor string
}

// Rule DTOs

type CreateRuleInput struct {
	TenantID          uuid.UUID
	Name              string
	Type              domain.RuleType
	ConditionConfig   []byte
	Actions           []domain.NotificationAction
	Priority          int32
	CooldownSeconds   int32
	Scope             domain.RuleScope
	TriggerWorkflowID *uuid.UUID
	CreatedBy         uuid.UUID
}

type UpdateRuleInput struct {
	Name              *string
	Enabled           *bool
	ConditionConfig   []byte
	Actions           []domain.NotificationAction
	Priority          *int32
	CooldownSeconds   *int32
	Scope             *domain.RuleScope
	TriggerWorkflowID *uuid.UUID
}

type RuleListResult struct {
	Rules []*domain.Rule
	Total int64
	Page  int
	Limit int
}

// Alert DTOs

type CreateAlertInput struct {
	TenantID          uuid.UUID
	DeviceID          uuid.UUID
	RuleID            *uuid.UUID
	Severity          domain.AlertSeverity
	Message           string
	Metadata          []byte
	ExternalSourceKey *string
}

type AlertListResult struct {
	Alerts []*domain.Alert
	Total  int64
	Page   int
	Limit  int
}

type AlertHistoryResult struct {
	Alert  *domain.Alert
	States []*domain.AlertState
	SLA    *domain.AlertSLA
}

// EscalationPolicy DTOs

type CreateEscalationPolicyInput struct {
	TenantID uuid.UUID
	Name     string
	Tiers    []domain.EscalationTier
}

type UpdateEscalationPolicyInput struct {
	Name  *string
	Tiers []domain.EscalationTier
}

type EscalationPolicyListResult struct {
	Policies []*domain.EscalationPolicy
	Total    int64
	Page     int
	Limit    int
}

// OnCallSchedule DTOs

type CreateOnCallScheduleInput struct {
	TenantID  uuid.UUID
	Name      string
	Rotation  domain.RotationSpec
	Overrides []domain.ScheduleOverride
	Timezone  string
}

type UpdateOnCallScheduleInput struct {
	Name      *string
	Rotation  *domain.RotationSpec
	Overrides []domain.ScheduleOverride
	Timezone  *string
}

type OnCallScheduleListResult struct {
	Schedules []*domain.OnCallSchedule
	Total     int64
	Page      int
	Limit     int
}

// Audit DTOs

type AuditListResult struct {
	Logs  []*domain.AuditLog
	Total int64
	Page  int
	Limit int
}

// Remediation DTOs

type CreateRemediationWorkflowInput struct {
	TenantID    uuid.UUID
	Name        string
	Description *string
	Definition  []byte
	CreatedBy   *uuid.UUID
}

type UpdateRemediationWorkflowInput struct {
	Name        *string
	Description *string
	Definition  []byte
	Status      *domain.RemediationWorkflowStatus
}

type RemediationWorkflowListResult struct {
	Workflows []*domain.RemediationWorkflow
	Total     int64
	Page      int
	Limit     int
}

type RemediationExecutionListResult struct {
	Executions []*domain.RemediationExecution
	Total      int64
	Page       int
	Limit      int
}
