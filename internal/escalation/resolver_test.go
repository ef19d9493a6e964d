package escalation

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insa-iiot/platform-core/internal/core/domain"
	"github.com/insa-iiot/platform-core/internal/oncall"
)

type fakeUserSource struct {
	byID map[uuid.UUID]*domain.User
}

func (f *fakeUserSource) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return u, nil
}

// fakeOnCallResolver resolves uncached, straight through oncall.Resolve,
// standing in for oncall.CachedResolver in tests that don't exercise caching.
type fakeOnCallResolver struct {
	byID map[uuid.UUID]*domain.OnCallSchedule
}

func (f *fakeOnCallResolver) Resolve(ctx context.Context, tenantID, scheduleID uuid.UUID, at time.Time) (*uuid.UUID, error) {
	s, ok := f.byID[scheduleID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return oncall.Resolve(s, at)
}

func TestTargetResolver_DirectUserEmail(t *testing.T) {
	userID := uuid.New()
	phone := "+15551234567"
	users := &fakeUserSource{byID: map[uuid.UUID]*domain.User{
		userID: {ID: userID, Email: "oncall@example.com", Phone: &phone},
	}}
	resolver := NewTargetResolver(users, &fakeOnCallResolver{})

	email, err := resolver.Resolve(context.Background(), uuid.New(), domain.EscalationTarget{UserID: &userID}, "email", time.Now())
	require.NoError(t, err)
	assert.Equal(t, "oncall@example.com", email)

	sms, err := resolver.Resolve(context.Background(), uuid.New(), domain.EscalationTarget{UserID: &userID}, "sms", time.Now())
	require.NoError(t, err)
	assert.Equal(t, phone, sms)
}

func TestTargetResolver_UserWithoutPhoneErrorsOnSMS(t *testing.T) {
	userID := uuid.New()
	users := &fakeUserSource{byID: map[uuid.UUID]*domain.User{
		userID: {ID: userID, Email: "oncall@example.com"},
	}}
	resolver := NewTargetResolver(users, &fakeOnCallResolver{})

	_, err := resolver.Resolve(context.Background(), uuid.New(), domain.EscalationTarget{UserID: &userID}, "sms", time.Now())
	assert.Error(t, err)
}

func TestTargetResolver_ScheduleResolvesToOnCallUser(t *testing.T) {
	tenantID := uuid.New()
	scheduleID := uuid.New()
	userID := uuid.New()

	schedule := &domain.OnCallSchedule{
		ID:       scheduleID,
		TenantID: tenantID,
		Timezone: "UTC",
		Rotation: domain.RotationSpec{Kind: domain.RotationWeekly, Users: []uuid.UUID{userID}},
	}
	users := &fakeUserSource{byID: map[uuid.UUID]*domain.User{
		userID: {ID: userID, Email: "weekly@example.com"},
	}}
	schedules := &fakeOnCallResolver{byID: map[uuid.UUID]*domain.OnCallSchedule{scheduleID: schedule}}
	resolver := NewTargetResolver(users, schedules)

	email, err := resolver.Resolve(context.Background(), tenantID, domain.EscalationTarget{ScheduleID: &scheduleID}, "email", time.Now())
	require.NoError(t, err)
	assert.Equal(t, "weekly@example.com", email)
}

func TestTargetResolver_UnsupportedChannelErrors(t *testing.T) {
	userID := uuid.New()
	users := &fakeUserSource{byID: map[uuid.UUID]*domain.User{userID: {ID: userID, Email: "x@example.com"}}}
	resolver := NewTargetResolver(users, &fakeOnCallResolver{})

	_, err := resolver.Resolve(context.Background(), uuid.New(), domain.EscalationTarget{UserID: &userID}, "webhook", time.Now())
	assert.Error(t, err)
}
