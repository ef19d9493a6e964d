package domain

import (
	"encoding/json"
	"net/netip"
	"time"

	"github.com/google/uuid"
)

// AuditLog represents an audit log entry in the domain
type AuditLog struct {
	ID           uuid.UUID
	TenantID     uuid.UUID
	UserID       *uuid.UUID
	EventType    string
	ResourceType string
	ResourceID   *uuid.UUID
	Action       string
	OldValue     json.RawMessage
	NewValue     json.RawMessage
	IPAddress    *netip.Addr
	UserAgent    *string
	CreatedAt    time.Time
}

// Common audit event types
const (
	AuditEventTenantCreated        = "tenant.created"
	AuditEventTenantUpdated        = "tenant.updated"
	AuditEventTenantUserInvited    = "tenant_user.invited"
	AuditEventTenantUserRemoved    = "tenant_user.removed"
	AuditEventTenantUserRoleChange = "tenant_user.role_changed"
	AuditEventUserLogin            = "user.login"
	AuditEventUserLoginFailed      = "user.login_failed"
	AuditEventDeviceCreated        = "device.created"
	AuditEventDeviceUpdated        = "device.updated"
	AuditEventDeviceDeleted        = "device.deleted"
	AuditEventRuleCreated          = "rule.created"
	AuditEventRuleUpdated          = "rule.updated"
	AuditEventRuleDeleted          = "rule.deleted"
	AuditEventAlertCreated         = "alert.created"
	AuditEventAlertAcknowledged    = "alert.acknowledged"
	AuditEventAlertInvestigating   = "alert.investigating"
	AuditEventAlertResolved        = "alert.resolved"
	AuditEventAlertReopened        = "alert.reopened"
	AuditEventEscalationPolicyCRUD = "escalation_policy.changed"
	AuditEventOnCallScheduleCRUD   = "oncall_schedule.changed"
	AuditEventWorkflowCreated      = "workflow.created"
	AuditEventWorkflowUpdated      = "workflow.updated"
	AuditEventWorkflowDeleted      = "workflow.deleted"
	AuditEventWorkflowExecuted     = "workflow.executed"
)

// Common resource types
const (
	ResourceTypeTenant           = "tenant"
	ResourceTypeTenantUser       = "tenant_user"
	ResourceTypeUser             = "user"
	ResourceTypeDevice           = "device"
	ResourceTypeRule             = "rule"
	ResourceTypeAlert            = "alert"
	ResourceTypeEscalationPolicy = "escalation_policy"
	ResourceTypeOnCallSchedule   = "oncall_schedule"
	ResourceTypeWorkflow         = "workflow"
	ResourceTypeExecution        = "execution"
)

// Common actions
const (
	ActionCreate        = "create"
	ActionUpdate        = "update"
	ActionDelete        = "delete"
	ActionExecute       = "execute"
	ActionAcknowledge   = "acknowledge"
	ActionInvestigate   = "investigate"
	ActionResolve       = "resolve"
	ActionReopen        = "reopen"
	ActionInvite        = "invite"
	ActionRemove        = "remove"
	ActionRoleChange    = "role_change"
	ActionLogin         = "login"
	ActionLoginFailed   = "login_failed"
)

// NewAuditLog creates a new audit log entry
func NewAuditLog(
	tenantID uuid.UUID,
	userID *uuid.UUID,
	eventType string,
	resourceType string,
	resourceID *uuid.UUID,
	action string,
) *AuditLog {
	return &AuditLog{
		ID:           uuid.New(),
		TenantID:     tenantID,
		UserID:       userID,
		EventType:    eventType,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Action:       action,
		CreatedAt:    time.Now(),
	}
}

// WithOldValue sets the old value for the audit log
func (a *AuditLog) WithOldValue(v interface{}) *AuditLog {
	if v != nil {
		a.OldValue, _ = json.Marshal(v)
	}
	return a
}

// WithNewValue sets the new value for the audit log
func (a *AuditLog) WithNewValue(v interface{}) *AuditLog {
	if v != nil {
		a.NewValue, _ = json.Marshal(v)
	}
	return a
}

// WithIPAddress sets the IP address for the audit log
func (a *AuditLog) WithIPAddress(ip *netip.Addr) *AuditLog {
	a.IPAddress = ip
	return a
}

// WithUserAgent sets the user agent for the audit log
func (a *AuditLog) WithUserAgent(ua *string) *AuditLog {
	a.UserAgent = ua
	return a
}
