package alertlifecycle

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insa-iiot/platform-core/internal/core/domain"
	"github.com/insa-iiot/platform-core/internal/notification"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeAlertSource struct {
	mu      sync.Mutex
	open    []*domain.Alert
	slas    map[uuid.UUID]*domain.AlertSLA
	updated []*domain.AlertSLA
}

func (f *fakeAlertSource) FindOpenForSLA(ctx context.Context) ([]*domain.Alert, error) {
	return f.open, nil
}

func (f *fakeAlertSource) SLA(ctx context.Context, alertID uuid.UUID) (*domain.AlertSLA, error) {
	return f.slas[alertID], nil
}

func (f *fakeAlertSource) UpdateSLA(ctx context.Context, sla *domain.AlertSLA) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updated = append(f.updated, sla)
	return nil
}

type fakePolicyStore struct {
	byID map[uuid.UUID]*domain.EscalationPolicy
}

func (f *fakePolicyStore) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*domain.EscalationPolicy, error) {
	return f.byID[id], nil
}

type fakeResolver struct {
	addr string
}

func (f *fakeResolver) Resolve(ctx context.Context, tenantID uuid.UUID, target domain.EscalationTarget, channel string, at time.Time) (string, error) {
	return f.addr, nil
}

type recordingSender struct {
	mu   sync.Mutex
	sent []notification.Notification
}

func (r *recordingSender) Send(ctx context.Context, n notification.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return nil
}

func (r *recordingSender) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

func TestMonitor_FlipsTTABreachAndNotifiesOnce(t *testing.T) {
	tenantID := uuid.New()
	policyID := uuid.New()
	userID := uuid.New()
	alertID := uuid.New()

	alert := &domain.Alert{
		ID:                 alertID,
		TenantID:           tenantID,
		Severity:           domain.AlertSeverityCritical,
		CreatedAt:          time.Now().Add(-10 * time.Minute), // past the 5 min critical TTA target
		EscalationPolicyID: &policyID,
		Message:            "pump pressure high",
	}
	sla := domain.NewAlertSLA(alertID, domain.AlertSeverityCritical, alert.CreatedAt)

	policy := &domain.EscalationPolicy{
		ID: policyID,
		Tiers: []domain.EscalationTier{
			{Targets: []domain.EscalationTarget{{UserID: &userID}}, Channels: []string{"email"}},
		},
	}

	alerts := &fakeAlertSource{open: []*domain.Alert{alert}, slas: map[uuid.UUID]*domain.AlertSLA{alertID: sla}}
	policies := &fakePolicyStore{byID: map[uuid.UUID]*domain.EscalationPolicy{policyID: policy}}
	sender := &recordingSender{}
	dispatcher := notification.New(map[string]notification.Sender{"email": sender}, nil, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	dispatcher.Start(ctx)
	defer dispatcher.Stop()

	monitor := NewMonitor(alerts, policies, dispatcher, &fakeResolver{addr: "oncall@example.com"}, time.Hour, testLogger())
	monitor.runOnce(ctx)

	require.Len(t, alerts.updated, 1)
	assert.True(t, alerts.updated[0].TTABreached)
	assert.NotNil(t, alerts.updated[0].BreachNotifiedAt)
	require.Eventually(t, func() bool { return sender.count() == 1 }, time.Second, 10*time.Millisecond)
}

func TestMonitor_SkipsAlertNotYetBreaching(t *testing.T) {
	alertID := uuid.New()
	alert := &domain.Alert{
		ID:        alertID,
		Severity:  domain.AlertSeverityCritical,
		CreatedAt: time.Now(), // fresh, within target
	}
	sla := domain.NewAlertSLA(alertID, domain.AlertSeverityCritical, alert.CreatedAt)

	alerts := &fakeAlertSource{open: []*domain.Alert{alert}, slas: map[uuid.UUID]*domain.AlertSLA{alertID: sla}}
	dispatcher := notification.New(map[string]notification.Sender{}, nil, testLogger())

	monitor := NewMonitor(alerts, &fakePolicyStore{}, dispatcher, &fakeResolver{}, time.Hour, testLogger())
	monitor.runOnce(context.Background())

	assert.Empty(t, alerts.updated)
}

func TestMonitor_NoEscalationPolicyStillMarksNotified(t *testing.T) {
	alertID := uuid.New()
	alert := &domain.Alert{
		ID:        alertID,
		Severity:  domain.AlertSeverityCritical,
		CreatedAt: time.Now().Add(-10 * time.Minute),
	}
	sla := domain.NewAlertSLA(alertID, domain.AlertSeverityCritical, alert.CreatedAt)

	alerts := &fakeAlertSource{open: []*domain.Alert{alert}, slas: map[uuid.UUID]*domain.AlertSLA{alertID: sla}}
	dispatcher := notification.New(map[string]notification.Sender{}, nil, testLogger())

	monitor := NewMonitor(alerts, &fakePolicyStore{}, dispatcher, &fakeResolver{}, time.Hour, testLogger())
	monitor.runOnce(context.Background())

	require.Len(t, alerts.updated, 1)
	assert.True(t, alerts.updated[0].TTABreached)
	assert.NotNil(t, alerts.updated[0].BreachNotifiedAt)
}
