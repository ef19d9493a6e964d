// Package mocks holds map-backed fakes for the core ports, used to unit
// test the services without a database.
package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/insa-iiot/platform-core/internal/core/domain"
	"github.com/insa-iiot/platform-core/internal/core/port"
)

// ============================================================================
// MOCK ALERT REPOSITORY
// ============================================================================

type MockAlertRepository struct {
	mu     sync.RWMutex
	alerts map[uuid.UUID]*domain.Alert
	states map[uuid.UUID][]*domain.AlertState // alertID -> history, newest last
	slas   map[uuid.UUID]*domain.AlertSLA

	SaveCalled   bool
	UpdateCalled bool
	SaveErr      error
	UpdateErr    error
	FindErr      error
	SaveSLAErr   error
	UpdateSLAErr error
}

func NewMockAlertRepository() *MockAlertRepository {
	return &MockAlertRepository{
		alerts: make(map[uuid.UUID]*domain.Alert),
		states: make(map[uuid.UUID][]*domain.AlertState),
		slas:   make(map[uuid.UUID]*domain.AlertSLA),
	}
}

// AddAlert seeds an alert (and a "new" state row) without going through Save.
func (m *MockAlertRepository) AddAlert(a *domain.Alert) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts[a.ID] = a
	if len(m.states[a.ID]) == 0 {
		m.states[a.ID] = []*domain.AlertState{{ID: uuid.New(), AlertID: a.ID, State: domain.StateNew, ChangedBy: domain.SystemActor, ChangedAt: a.CreatedAt}}
	}
	if _, ok := m.slas[a.ID]; !ok {
		m.slas[a.ID] = domain.NewAlertSLA(a.ID, a.Severity, a.CreatedAt)
	}
}

func (m *MockAlertRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*domain.Alert, error) {
	if m.FindErr != nil {
		return nil, m.FindErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.alerts[id]
	if !ok || a.TenantID != tenantID {
		return nil, domain.ErrNotFound
	}
	return a, nil
}

func (m *MockAlertRepository) FindByTenant(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*domain.Alert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.Alert
	for _, a := range m.alerts {
		if a.TenantID == tenantID {
			result = append(result, a)
		}
	}
	if offset >= len(result) {
		return []*domain.Alert{}, nil
	}
	end := offset + limit
	if end > len(result) {
		end = len(result)
	}
	return result[offset:end], nil
}

func (m *MockAlertRepository) FindActiveByRuleAndDevice(ctx context.Context, tenantID, deviceID, ruleID uuid.UUID) (*domain.Alert, error) {
	return nil, domain.ErrNotFound
}

func (m *MockAlertRepository) FindEscalationCandidates(ctx context.Context) ([]*domain.Alert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.Alert
	for _, a := range m.alerts {
		if a.EscalationPolicyID != nil && a.GroupedAlertID == nil {
			result = append(result, a)
		}
	}
	return result, nil
}

func (m *MockAlertRepository) FindOpenForSLA(ctx context.Context) ([]*domain.Alert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.Alert
	for _, a := range m.alerts {
		sla := m.slas[a.ID]
		if a.GroupedAlertID == nil && sla != nil && (!sla.TTABreached || !sla.TTRBreached) {
			result = append(result, a)
		}
	}
	return result, nil
}

func (m *MockAlertRepository) CountByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var count int64
	for _, a := range m.alerts {
		if a.TenantID == tenantID {
			count++
		}
	}
	return count, nil
}

func (m *MockAlertRepository) Save(ctx context.Context, alert *domain.Alert) error {
	m.SaveCalled = true
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts[alert.ID] = alert
	return nil
}

func (m *MockAlertRepository) Update(ctx context.Context, alert *domain.Alert) error {
	m.UpdateCalled = true
	if m.UpdateErr != nil {
		return m.UpdateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts[alert.ID] = alert
	return nil
}

func (m *MockAlertRepository) CurrentState(ctx context.Context, alertID uuid.UUID) (*domain.AlertState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	history := m.states[alertID]
	if len(history) == 0 {
		return nil, domain.ErrNotFound
	}
	return history[len(history)-1], nil
}

func (m *MockAlertRepository) History(ctx context.Context, alertID uuid.UUID) ([]*domain.AlertState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.states[alertID], nil
}

func (m *MockAlertRepository) AppendState(ctx context.Context, alertID uuid.UUID, state *domain.AlertState, update func(a *domain.Alert) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if update != nil {
		if a, ok := m.alerts[alertID]; ok {
			if err := update(a); err != nil {
				return err
			}
		}
	}
	m.states[alertID] = append(m.states[alertID], state)
	return nil
}

func (m *MockAlertRepository) SLA(ctx context.Context, alertID uuid.UUID) (*domain.AlertSLA, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sla, ok := m.slas[alertID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return sla, nil
}

func (m *MockAlertRepository) SaveSLA(ctx context.Context, sla *domain.AlertSLA) error {
	if m.SaveSLAErr != nil {
		return m.SaveSLAErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slas[sla.AlertID] = sla
	return nil
}

func (m *MockAlertRepository) UpdateSLA(ctx context.Context, sla *domain.AlertSLA) error {
	if m.UpdateSLAErr != nil {
		return m.UpdateSLAErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slas[sla.AlertID] = sla
	return nil
}

// ============================================================================
// MOCK ALERT GROUP REPOSITORY
// ============================================================================

type MockAlertGroupRepository struct {
	mu     sync.Mutex
	groups map[string]*domain.AlertGroup // key.String() -> group

	UpsertErr error
}

func NewMockAlertGroupRepository() *MockAlertGroupRepository {
	return &MockAlertGroupRepository{groups: make(map[string]*domain.AlertGroup)}
}

func groupKeyString(tenantID uuid.UUID, key domain.GroupKey) string {
	s := tenantID.String() + "|" + key.DeviceID.String() + "|" + string(key.Severity)
	if key.RuleID != nil {
		s += "|rule:" + key.RuleID.String()
	}
	if key.ExternalSourceKey != nil {
		s += "|ext:" + *key.ExternalSourceKey
	}
	return s
}

func (m *MockAlertGroupRepository) UpsertOccurrence(ctx context.Context, tenantID uuid.UUID, key domain.GroupKey, representativeAlertID uuid.UUID, now time.Time, window time.Duration) (*domain.AlertGroup, bool, error) {
	if m.UpsertErr != nil {
		return nil, false, m.UpsertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	k := groupKeyString(tenantID, key)
	if g, ok := m.groups[k]; ok && now.Sub(g.LastOccurrenceAt) <= window {
		g.OccurrenceCount++
		g.LastOccurrenceAt = now
		return g, false, nil
	}
	g := &domain.AlertGroup{
		ID:                    uuid.New(),
		TenantID:              tenantID,
		DeviceID:              key.DeviceID,
		RuleID:                key.RuleID,
		ExternalSourceKey:     key.ExternalSourceKey,
		Severity:              key.Severity,
		RepresentativeAlertID: representativeAlertID,
		OccurrenceCount:       1,
		Status:                domain.AlertGroupStatusActive,
		FirstOccurrenceAt:     now,
		LastOccurrenceAt:      now,
	}
	m.groups[k] = g
	return g, true, nil
}

func (m *MockAlertGroupRepository) FindActiveByKey(ctx context.Context, tenantID uuid.UUID, key domain.GroupKey) (*domain.AlertGroup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.groups[groupKeyString(tenantID, key)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return g, nil
}

// ============================================================================
// MOCK ESCALATION POLICY REPOSITORY
// ============================================================================

type MockEscalationPolicyRepository struct {
	mu       sync.RWMutex
	policies map[uuid.UUID]*domain.EscalationPolicy

	SaveErr   error
	UpdateErr error
	FindErr   error
}

func NewMockEscalationPolicyRepository() *MockEscalationPolicyRepository {
	return &MockEscalationPolicyRepository{policies: make(map[uuid.UUID]*domain.EscalationPolicy)}
}

func (m *MockEscalationPolicyRepository) AddPolicy(p *domain.EscalationPolicy) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.policies[p.ID] = p
}

func (m *MockEscalationPolicyRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*domain.EscalationPolicy, error) {
	if m.FindErr != nil {
		return nil, m.FindErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.policies[id]
	if !ok || p.TenantID != tenantID {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

func (m *MockEscalationPolicyRepository) FindByTenant(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*domain.EscalationPolicy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.EscalationPolicy
	for _, p := range m.policies {
		if p.TenantID == tenantID {
			result = append(result, p)
		}
	}
	return result, nil
}

func (m *MockEscalationPolicyRepository) FindMatchingSeverity(ctx context.Context, tenantID uuid.UUID, sev domain.AlertSeverity) (*domain.EscalationPolicy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.policies {
		if p.TenantID != tenantID {
			continue
		}
		for _, tier := range p.Tiers {
			if tier.AppliesTo(sev) {
				return p, nil
			}
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockEscalationPolicyRepository) Save(ctx context.Context, p *domain.EscalationPolicy) error {
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.policies[p.ID] = p
	return nil
}

func (m *MockEscalationPolicyRepository) Update(ctx context.Context, p *domain.EscalationPolicy) error {
	if m.UpdateErr != nil {
		return m.UpdateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.policies[p.ID] = p
	return nil
}

func (m *MockEscalationPolicyRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.policies, id)
	return nil
}

// ============================================================================
// MOCK TENANT CONTEXT SETTER
// ============================================================================

type MockTenantContextSetter struct {
	SetCalled bool
	SetErr    error
}

func NewMockTenantContextSetter() *MockTenantContextSetter {
	return &MockTenantContextSetter{}
}

func (m *MockTenantContextSetter) SetTenantContext(ctx context.Context, tenantID uuid.UUID) error {
	m.SetCalled = true
	return m.SetErr
}

// ============================================================================
// MOCK ON-CALL SCHEDULE REPOSITORY
// ============================================================================

type MockOnCallScheduleRepository struct {
	mu        sync.RWMutex
	schedules map[uuid.UUID]*domain.OnCallSchedule

	SaveCalled   bool
	UpdateCalled bool
	DeleteCalled bool
	SaveErr      error
	UpdateErr    error
	DeleteErr    error
	FindErr      error
}

func NewMockOnCallScheduleRepository() *MockOnCallScheduleRepository {
	return &MockOnCallScheduleRepository{schedules: make(map[uuid.UUID]*domain.OnCallSchedule)}
}

func (m *MockOnCallScheduleRepository) AddSchedule(s *domain.OnCallSchedule) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schedules[s.ID] = s
}

func (m *MockOnCallScheduleRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*domain.OnCallSchedule, error) {
	if m.FindErr != nil {
		return nil, m.FindErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.schedules[id]
	if !ok || s.TenantID != tenantID {
		return nil, domain.ErrNotFound
	}
	return s, nil
}

func (m *MockOnCallScheduleRepository) FindByTenant(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*domain.OnCallSchedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.OnCallSchedule
	for _, s := range m.schedules {
		if s.TenantID == tenantID {
			result = append(result, s)
		}
	}
	return result, nil
}

func (m *MockOnCallScheduleRepository) Save(ctx context.Context, s *domain.OnCallSchedule) error {
	m.SaveCalled = true
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schedules[s.ID] = s
	return nil
}

func (m *MockOnCallScheduleRepository) Update(ctx context.Context, s *domain.OnCallSchedule) error {
	m.UpdateCalled = true
	if m.UpdateErr != nil {
		return m.UpdateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schedules[s.ID] = s
	return nil
}

func (m *MockOnCallScheduleRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	m.DeleteCalled = true
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.schedules, id)
	return nil
}

// ============================================================================
// MOCK CACHE INVALIDATOR
// ============================================================================

// MockCacheInvalidator stands in for oncall.CachedResolver's Invalidate hook.
type MockCacheInvalidator struct {
	mu            sync.Mutex
	InvalidateIDs []uuid.UUID
}

func NewMockCacheInvalidator() *MockCacheInvalidator {
	return &MockCacheInvalidator{}
}

func (m *MockCacheInvalidator) Invalidate(ctx context.Context, scheduleID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InvalidateIDs = append(m.InvalidateIDs, scheduleID)
}

func (m *MockCacheInvalidator) InvalidateCalled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.InvalidateIDs) > 0
}

// ============================================================================
// MOCK TENANT REPOSITORY
// ============================================================================

type MockTenantRepository struct {
	mu      sync.RWMutex
	tenants map[uuid.UUID]*domain.Tenant
	stats   map[uuid.UUID]*domain.TenantStats

	SaveCalled   bool
	UpdateCalled bool
	FindErr      error
}

func NewMockTenantRepository() *MockTenantRepository {
	return &MockTenantRepository{tenants: make(map[uuid.UUID]*domain.Tenant), stats: make(map[uuid.UUID]*domain.TenantStats)}
}

func (m *MockTenantRepository) AddTenant(t *domain.Tenant) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tenants[t.ID] = t
}

func (m *MockTenantRepository) SetStats(tenantID uuid.UUID, stats *domain.TenantStats) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats[tenantID] = stats
}

func (m *MockTenantRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Tenant, error) {
	if m.FindErr != nil {
		return nil, m.FindErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tenants[id]
	if !ok {
		return nil, domain.ErrTenantNotFound
	}
	return t, nil
}

func (m *MockTenantRepository) FindBySlug(ctx context.Context, slug string) (*domain.Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, t := range m.tenants {
		if t.Slug == slug {
			return t, nil
		}
	}
	return nil, domain.ErrTenantNotFound
}

func (m *MockTenantRepository) List(ctx context.Context, limit, offset int) ([]*domain.Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.Tenant
	for _, t := range m.tenants {
		result = append(result, t)
	}
	return result, nil
}

func (m *MockTenantRepository) Count(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.tenants)), nil
}

func (m *MockTenantRepository) Save(ctx context.Context, tenant *domain.Tenant) error {
	m.SaveCalled = true
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tenants[tenant.ID] = tenant
	return nil
}

func (m *MockTenantRepository) Update(ctx context.Context, tenant *domain.Tenant) error {
	m.UpdateCalled = true
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tenants[tenant.ID] = tenant
	return nil
}

func (m *MockTenantRepository) Stats(ctx context.Context, tenantID uuid.UUID) (*domain.TenantStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.stats[tenantID]
	if !ok {
		return &domain.TenantStats{}, nil
	}
	return s, nil
}

// ============================================================================
// MOCK DEVICE REPOSITORY
// ============================================================================

type MockDeviceRepository struct {
	mu      sync.RWMutex
	devices map[uuid.UUID]*domain.Device

	SaveCalled   bool
	UpdateCalled bool
	DeleteCalled bool
	FindErr      error
}

func NewMockDeviceRepository() *MockDeviceRepository {
	return &MockDeviceRepository{devices: make(map[uuid.UUID]*domain.Device)}
}

func (m *MockDeviceRepository) AddDevice(d *domain.Device) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.devices[d.ID] = d
}

func (m *MockDeviceRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*domain.Device, error) {
	if m.FindErr != nil {
		return nil, m.FindErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.devices[id]
	if !ok || d.TenantID != tenantID {
		return nil, domain.ErrDeviceNotFound
	}
	return d, nil
}

func (m *MockDeviceRepository) FindByIDAnyTenant(ctx context.Context, id uuid.UUID) (*domain.Device, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.devices[id]
	if !ok {
		return nil, domain.ErrDeviceNotFound
	}
	return d, nil
}

func (m *MockDeviceRepository) FindByTenant(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*domain.Device, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.Device
	for _, d := range m.devices {
		if d.TenantID == tenantID {
			result = append(result, d)
		}
	}
	return result, nil
}

func (m *MockDeviceRepository) CountByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var count int64
	for _, d := range m.devices {
		if d.TenantID == tenantID {
			count++
		}
	}
	return count, nil
}

func (m *MockDeviceRepository) Save(ctx context.Context, device *domain.Device) error {
	m.SaveCalled = true
	m.mu.Lock()
	defer m.mu.Unlock()
	m.devices[device.ID] = device
	return nil
}

func (m *MockDeviceRepository) Update(ctx context.Context, device *domain.Device) error {
	m.UpdateCalled = true
	m.mu.Lock()
	defer m.mu.Unlock()
	m.devices[device.ID] = device
	return nil
}

func (m *MockDeviceRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	m.DeleteCalled = true
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.devices, id)
	return nil
}

func (m *MockDeviceRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.DeviceStatus, seenAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.devices[id]; ok {
		d.MarkSeen(seenAt, status)
	}
	return nil
}

// ============================================================================
// MOCK TELEMETRY REPOSITORY
// ============================================================================

type MockTelemetryRepository struct {
	mu     sync.Mutex
	points []*domain.TelemetryPoint
	used   map[uuid.UUID]int64

	InsertErr error
	QuotaErr  error
}

func NewMockTelemetryRepository() *MockTelemetryRepository {
	return &MockTelemetryRepository{used: make(map[uuid.UUID]int64)}
}

func (m *MockTelemetryRepository) InsertBatch(ctx context.Context, points []*domain.TelemetryPoint) (int, error) {
	if m.InsertErr != nil {
		return 0, m.InsertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.points = append(m.points, points...)
	return len(points), nil
}

func (m *MockTelemetryRepository) Fetch(ctx context.Context, query domain.TelemetryQuery) ([]*domain.TelemetryPoint, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*domain.TelemetryPoint
	for _, p := range m.points {
		if p.TenantID == query.TenantID && p.DeviceID == query.DeviceID && p.Key == query.Key {
			result = append(result, p)
		}
	}
	return result, "", nil
}

func (m *MockTelemetryRepository) Latest(ctx context.Context, tenantID, deviceID uuid.UUID, key string) (*domain.TelemetryPoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *domain.TelemetryPoint
	for _, p := range m.points {
		if p.TenantID == tenantID && p.DeviceID == deviceID && p.Key == key {
			if latest == nil || p.Timestamp.After(latest.Timestamp) {
				latest = p
			}
		}
	}
	if latest == nil {
		return nil, domain.ErrNotFound
	}
	return latest, nil
}

func (m *MockTelemetryRepository) Aggregate(ctx context.Context, query domain.TelemetryQuery, agg domain.AggregationType) (*domain.AggregateResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	var sum, min, max float64
	first := true
	for _, p := range m.points {
		if p.TenantID != query.TenantID || p.DeviceID != query.DeviceID || p.Key != query.Key || p.NumericValue == nil {
			continue
		}
		v := *p.NumericValue
		count++
		sum += v
		if first || v < min {
			min = v
		}
		if first || v > max {
			max = v
		}
		first = false
	}
	result := &domain.AggregateResult{Count: count, Min: min, Max: max}
	if count > 0 {
		result.Average = sum / float64(count)
	}
	return result, nil
}

func (m *MockTelemetryRepository) CountToday(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.used[tenantID], nil
}

func (m *MockTelemetryRepository) ReserveQuota(ctx context.Context, tenantID uuid.UUID, n int64, cap *int64) error {
	if m.QuotaErr != nil {
		return m.QuotaErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if cap != nil && m.used[tenantID]+n > *cap {
		return domain.ErrQuotaExceeded
	}
	m.used[tenantID] += n
	return nil
}

// ============================================================================
// MOCK RULE REPOSITORY
// ============================================================================

type MockRuleRepository struct {
	mu    sync.RWMutex
	rules map[uuid.UUID]*domain.Rule

	SaveCalled   bool
	UpdateCalled bool
	DeleteCalled bool
	FindErr      error
}

func NewMockRuleRepository() *MockRuleRepository {
	return &MockRuleRepository{rules: make(map[uuid.UUID]*domain.Rule)}
}

func (m *MockRuleRepository) AddRule(r *domain.Rule) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules[r.ID] = r
}

func (m *MockRuleRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*domain.Rule, error) {
	if m.FindErr != nil {
		return nil, m.FindErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rules[id]
	if !ok || r.TenantID != tenantID {
		return nil, domain.ErrRuleNotFound
	}
	return r, nil
}

func (m *MockRuleRepository) FindByTenant(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*domain.Rule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.Rule
	for _, r := range m.rules {
		if r.TenantID == tenantID {
			result = append(result, r)
		}
	}
	return result, nil
}

func (m *MockRuleRepository) FindEnabledByTenant(ctx context.Context, tenantID uuid.UUID) ([]*domain.Rule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.Rule
	for _, r := range m.rules {
		if r.TenantID == tenantID && r.Enabled {
			result = append(result, r)
		}
	}
	return result, nil
}

func (m *MockRuleRepository) FindAllEnabled(ctx context.Context) ([]*domain.Rule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.Rule
	for _, r := range m.rules {
		if r.Enabled {
			result = append(result, r)
		}
	}
	return result, nil
}

func (m *MockRuleRepository) CountByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var count int64
	for _, r := range m.rules {
		if r.TenantID == tenantID {
			count++
		}
	}
	return count, nil
}

func (m *MockRuleRepository) Save(ctx context.Context, rule *domain.Rule) error {
	m.SaveCalled = true
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules[rule.ID] = rule
	return nil
}

func (m *MockRuleRepository) Update(ctx context.Context, rule *domain.Rule) error {
	m.UpdateCalled = true
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules[rule.ID] = rule
	return nil
}

func (m *MockRuleRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	m.DeleteCalled = true
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rules, id)
	return nil
}

func (m *MockRuleRepository) MarkTriggered(ctx context.Context, id uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rules[id]; ok {
		r.MarkTriggered(at)
	}
	return nil
}

func (m *MockRuleRepository) MarkEvaluated(ctx context.Context, id uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rules[id]; ok {
		r.MarkEvaluated(at)
	}
	return nil
}

// ============================================================================
// MOCK USER REPOSITORY
// ============================================================================

type MockUserRepository struct {
	mu    sync.RWMutex
	users map[uuid.UUID]*domain.User

	SaveCalled bool
	FindErr    error
}

func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{users: make(map[uuid.UUID]*domain.User)}
}

func (m *MockUserRepository) AddUser(u *domain.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
}

func (m *MockUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	if m.FindErr != nil {
		return nil, m.FindErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return u, nil
}

func (m *MockUserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (m *MockUserRepository) Save(ctx context.Context, user *domain.User) error {
	m.SaveCalled = true
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.ID] = user
	return nil
}

func (m *MockUserRepository) UpdatePasswordVerifier(ctx context.Context, id uuid.UUID, verifier string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		u.PasswordVerifier = verifier
	}
	return nil
}

// ============================================================================
// MOCK TENANT USER REPOSITORY
// ============================================================================

type MockTenantUserRepository struct {
	mu      sync.RWMutex
	members map[string]*domain.TenantUser // "tenantID|userID" -> membership

	SaveErr error
}

func NewMockTenantUserRepository() *MockTenantUserRepository {
	return &MockTenantUserRepository{members: make(map[string]*domain.TenantUser)}
}

func tenantUserKey(tenantID, userID uuid.UUID) string {
	return tenantID.String() + "|" + userID.String()
}

func (m *MockTenantUserRepository) AddMember(tu *domain.TenantUser) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.members[tenantUserKey(tu.TenantID, tu.UserID)] = tu
}

func (m *MockTenantUserRepository) Find(ctx context.Context, tenantID, userID uuid.UUID) (*domain.TenantUser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tu, ok := m.members[tenantUserKey(tenantID, userID)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return tu, nil
}

func (m *MockTenantUserRepository) ListByTenant(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*domain.TenantUser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.TenantUser
	for _, tu := range m.members {
		if tu.TenantID == tenantID {
			result = append(result, tu)
		}
	}
	return result, nil
}

func (m *MockTenantUserRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.TenantUser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.TenantUser
	for _, tu := range m.members {
		if tu.UserID == userID {
			result = append(result, tu)
		}
	}
	return result, nil
}

func (m *MockTenantUserRepository) CountByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var count int64
	for _, tu := range m.members {
		if tu.TenantID == tenantID {
			count++
		}
	}
	return count, nil
}

func (m *MockTenantUserRepository) CountTenantAdmins(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var count int64
	for _, tu := range m.members {
		if tu.TenantID == tenantID && tu.TenantAdmin {
			count++
		}
	}
	return count, nil
}

func (m *MockTenantUserRepository) Save(ctx context.Context, tu *domain.TenantUser) error {
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.members[tenantUserKey(tu.TenantID, tu.UserID)] = tu
	return nil
}

func (m *MockTenantUserRepository) UpdateRole(ctx context.Context, tenantID, userID uuid.UUID, role string, tenantAdmin bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tu, ok := m.members[tenantUserKey(tenantID, userID)]
	if !ok {
		return domain.ErrNotFound
	}
	tu.Role = role
	tu.TenantAdmin = tenantAdmin
	return nil
}

func (m *MockTenantUserRepository) Delete(ctx context.Context, tenantID, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.members, tenantUserKey(tenantID, userID))
	return nil
}

// MockAuditRepository is a map-backed fake of port.AuditRepository.
type MockAuditRepository struct {
	mu   sync.RWMutex
	logs []*domain.AuditLog

	SaveCalled bool
	SaveErr    error
	FindErr    error
}

func NewMockAuditRepository() *MockAuditRepository {
	return &MockAuditRepository{}
}

func (m *MockAuditRepository) AddLog(l *domain.AuditLog) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, l)
}

func (m *MockAuditRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.AuditLog, error) {
	if m.FindErr != nil {
		return nil, m.FindErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, l := range m.logs {
		if l.ID == id {
			return l, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockAuditRepository) FindByTenant(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*domain.AuditLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var matched []*domain.AuditLog
	for _, l := range m.logs {
		if l.TenantID == tenantID {
			matched = append(matched, l)
		}
	}
	if offset >= len(matched) {
		return nil, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], nil
}

func (m *MockAuditRepository) CountByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var n int64
	for _, l := range m.logs {
		if l.TenantID == tenantID {
			n++
		}
	}
	return n, nil
}

func (m *MockAuditRepository) Save(ctx context.Context, l *domain.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SaveCalled = true
	if m.SaveErr != nil {
		return m.SaveErr
	}
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	m.logs = append(m.logs, l)
	return nil
}

// MockRemediationWorkflowRepository is a map-backed fake of port.RemediationWorkflowRepository.
type MockRemediationWorkflowRepository struct {
	mu        sync.RWMutex
	workflows map[uuid.UUID]*domain.RemediationWorkflow

	SaveCalled   bool
	UpdateCalled bool
	DeleteCalled bool
	FindErr      error
}

func NewMockRemediationWorkflowRepository() *MockRemediationWorkflowRepository {
	return &MockRemediationWorkflowRepository{workflows: make(map[uuid.UUID]*domain.RemediationWorkflow)}
}

func (m *MockRemediationWorkflowRepository) AddWorkflow(w *domain.RemediationWorkflow) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.workflows[w.ID] = w
}

func (m *MockRemediationWorkflowRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.RemediationWorkflow, error) {
	if m.FindErr != nil {
		return nil, m.FindErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.workflows[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return w, nil
}

func (m *MockRemediationWorkflowRepository) FindByTenant(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*domain.RemediationWorkflow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.RemediationWorkflow
	for _, w := range m.workflows {
		if w.TenantID == tenantID {
			result = append(result, w)
		}
	}
	return result, nil
}

func (m *MockRemediationWorkflowRepository) CountByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var n int64
	for _, w := range m.workflows {
		if w.TenantID == tenantID {
			n++
		}
	}
	return n, nil
}

func (m *MockRemediationWorkflowRepository) Save(ctx context.Context, w *domain.RemediationWorkflow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SaveCalled = true
	m.workflows[w.ID] = w
	return nil
}

func (m *MockRemediationWorkflowRepository) Update(ctx context.Context, w *domain.RemediationWorkflow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpdateCalled = true
	m.workflows[w.ID] = w
	return nil
}

func (m *MockRemediationWorkflowRepository) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DeleteCalled = true
	delete(m.workflows, id)
	return nil
}

// MockRemediationExecutionRepository is a map-backed fake of port.RemediationExecutionRepository.
type MockRemediationExecutionRepository struct {
	mu         sync.RWMutex
	executions map[uuid.UUID]*domain.RemediationExecution

	SaveCalled         bool
	UpdateStatusCalled bool
	FindErr            error
}

func NewMockRemediationExecutionRepository() *MockRemediationExecutionRepository {
	return &MockRemediationExecutionRepository{executions: make(map[uuid.UUID]*domain.RemediationExecution)}
}

func (m *MockRemediationExecutionRepository) AddExecution(e *domain.RemediationExecution) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.executions[e.ID] = e
}

func (m *MockRemediationExecutionRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.RemediationExecution, error) {
	if m.FindErr != nil {
		return nil, m.FindErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.executions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return e, nil
}

func (m *MockRemediationExecutionRepository) FindByTenant(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*domain.RemediationExecution, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.RemediationExecution
	for _, e := range m.executions {
		if e.TenantID == tenantID {
			result = append(result, e)
		}
	}
	return result, nil
}

func (m *MockRemediationExecutionRepository) FindByWorkflow(ctx context.Context, workflowID uuid.UUID, limit, offset int) ([]*domain.RemediationExecution, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.RemediationExecution
	for _, e := range m.executions {
		if e.WorkflowID == workflowID {
			result = append(result, e)
		}
	}
	return result, nil
}

func (m *MockRemediationExecutionRepository) CountByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var n int64
	for _, e := range m.executions {
		if e.TenantID == tenantID {
			n++
		}
	}
	return n, nil
}

func (m *MockRemediationExecutionRepository) Save(ctx context.Context, e *domain.RemediationExecution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SaveCalled = true
	m.executions[e.ID] = e
	return nil
}

func (m *MockRemediationExecutionRepository) Update(ctx context.Context, e *domain.RemediationExecution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.executions[e.ID] = e
	return nil
}

func (m *MockRemediationExecutionRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.RemediationExecutionStatus, errMsg *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpdateStatusCalled = true
	e, ok := m.executions[id]
	if !ok {
		return domain.ErrNotFound
	}
	e.Status = status
	e.Error = errMsg
	return nil
}

func (m *MockRemediationExecutionRepository) UpdateTemporalIDs(ctx context.Context, id uuid.UUID, temporalWorkflowID, temporalRunID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.executions[id]
	if !ok {
		return domain.ErrNotFound
	}
	e.TemporalWorkflowID = &temporalWorkflowID
	e.TemporalRunID = &temporalRunID
	return nil
}

// MockWorkflowExecutor is a fake of port.WorkflowExecutor that simulates a
// Temporal-backed executor without touching a real Temporal cluster.
type MockWorkflowExecutor struct {
	mu           sync.Mutex
	ExecuteCalls int
	CancelCalls  int

	ExecuteErr error
	CancelErr  error
	Result     *port.ExecuteResult
}

func NewMockWorkflowExecutor() *MockWorkflowExecutor {
	return &MockWorkflowExecutor{Result: &port.ExecuteResult{TemporalWorkflowID: "wf-1", TemporalRunID: "run-1"}}
}

func (m *MockWorkflowExecutor) Execute(ctx context.Context, workflow *domain.RemediationWorkflow, input map[string]interface{}) (*port.ExecuteResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ExecuteCalls++
	if m.ExecuteErr != nil {
		return nil, m.ExecuteErr
	}
	return m.Result, nil
}

func (m *MockWorkflowExecutor) Cancel(ctx context.Context, temporalWorkflowID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CancelCalls++
	return m.CancelErr
}

func (m *MockWorkflowExecutor) GetStatus(ctx context.Context, temporalWorkflowID string) (string, error) {
	return "running", nil
}
