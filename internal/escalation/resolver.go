package escalation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/insa-iiot/platform-core/internal/core/domain"
)

// UserSource looks up the concrete contact address for a user.
type UserSource interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

// OnCallResolver resolves an on-call schedule to its current user, cached
// per oncall.CachedResolver so a 60s escalation tick and a 5-minute SLA
// sweep don't each re-walk the rotation from scratch.
type OnCallResolver interface {
	Resolve(ctx context.Context, tenantID, scheduleID uuid.UUID, at time.Time) (*uuid.UUID, error)
}

// TargetResolver turns an EscalationTarget (direct user or on-call
// schedule) plus a channel ("email" or "sms") into a concrete send address,
// shared by the escalation executor and the SLA monitor's breach
// notifications so both resolve targets identically.
type TargetResolver struct {
	users  UserSource
	oncall OnCallResolver
}

func NewTargetResolver(users UserSource, oncall OnCallResolver) *TargetResolver {
	return &TargetResolver{users: users, oncall: oncall}
}

// Resolve returns the email address or phone number to notify for target on
// channel, as of at (used for on-call rotation resolution). tenantID scopes
// the schedule lookup when target names a schedule. channel must be "email"
// or "sms"; webhook targets carry their own address and never reach this
// resolver.
func (r *TargetResolver) Resolve(ctx context.Context, tenantID uuid.UUID, target domain.EscalationTarget, channel string, at time.Time) (string, error) {
	userID, err := r.resolveUserID(ctx, tenantID, target, at)
	if err != nil {
		return "", err
	}

	user, err := r.users.FindByID(ctx, userID)
	if err != nil {
		return "", err
	}

	switch channel {
	case "email":
		return user.Email, nil
	case "sms":
		if user.Phone == nil {
			return "", fmt.Errorf("user %s has no phone number on file", user.ID)
		}
		return *user.Phone, nil
	default:
		return "", fmt.Errorf("unsupported escalation channel %q", channel)
	}
}

func (r *TargetResolver) resolveUserID(ctx context.Context, tenantID uuid.UUID, target domain.EscalationTarget, at time.Time) (uuid.UUID, error) {
	if target.UserID != nil {
		return *target.UserID, nil
	}
	if target.ScheduleID == nil {
		return uuid.Nil, fmt.Errorf("escalation target has neither a user nor a schedule")
	}

	userID, err := r.oncall.Resolve(ctx, tenantID, *target.ScheduleID, at)
	if err != nil {
		return uuid.Nil, err
	}
	if userID == nil {
		return uuid.Nil, fmt.Errorf("on-call schedule %s has no one on call at %s", *target.ScheduleID, at)
	}
	return *userID, nil
}
