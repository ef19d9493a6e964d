package domain

import (
	"time"

	"github.com/google/uuid"
)

// AlertState is one row in an alert's append-only lifecycle history. The
// current state of an alert is the latest row by ChangedAt. Every alert has
// at least one AlertState row (a "new" row) created atomically with the alert.
type AlertState struct {
	ID        uuid.UUID
	AlertID   uuid.UUID
	State     LifecycleState
	ChangedBy string // user id (string form) or "system"
	ChangedAt time.Time
	Note      *string
}

// LifecycleState is a node in the alert state machine.
type LifecycleState string

const (
	StateNew           LifecycleState = "new"
	StateAcknowledged  LifecycleState = "acknowledged"
	StateInvestigating LifecycleState = "investigating"
	StateResolved      LifecycleState = "resolved"
)

// SystemActor is the ChangedBy value used for system-driven transitions
// (escalation executor, SLA monitor) that are not attributable to a user.
const SystemActor = "system"

// transitionGraph enumerates every edge allowed by §4.5's state machine.
// resolved -> new (reopen) is handled separately since it additionally
// requires a system-admin actor, checked by the caller.
var transitionGraph = map[LifecycleState]map[LifecycleState]bool{
	StateNew: {
		StateAcknowledged:  true,
		StateInvestigating: true,
		StateResolved:      true,
	},
	StateAcknowledged: {
		StateInvestigating: true,
		StateResolved:      true,
	},
	StateInvestigating: {
		StateResolved: true,
	},
	StateResolved: {}, // reopen handled separately
}

// CanTransition reports whether moving from `from` to `to` is a legal edge in
// the state machine, not accounting for the system-admin-only reopen case.
func CanTransition(from, to LifecycleState) bool {
	edges, ok := transitionGraph[from]
	if !ok {
		return false
	}
	return edges[to]
}

// CanReopen reports whether a resolved->new transition is legal; only
// system admins may reopen a resolved alert, and it is intentionally rare.
func CanReopen(from, to LifecycleState, actorIsSystemAdmin bool) bool {
	return from == StateResolved && to == StateNew && actorIsSystemAdmin
}
