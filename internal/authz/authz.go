package authz

import "github.com/google/uuid"

// Kind tags the resource a permission check is made against.
type Kind string

const (
	KindPool           Kind = "pool"
	KindPayout         Kind = "payout"
	KindVotingSettings Kind = "voting_settings"
)

// Operation names the mutation being attempted.
type Operation string

const (
	OpCreatePayout   Operation = "payout.create"
	OpProcessExpired Operation = "payout.process_expired"
	OpStartVoting    Operation = "payout.start_voting"
	OpUpdateStatus   Operation = "payout.update_status"
	OpCancelPayout   Operation = "payout.cancel"
	OpUpdateSettings Operation = "voting_settings.update"
)

// Authorizable describes a resource by the users that own it.
// OwnerID is the resource's own owner (the creator for a payout, the pool
// owner for pools and settings). PoolOwnerID is always the owning pool's owner.
type Authorizable struct {
	Kind          Kind
	OwnerID       uuid.UUID
	PoolOwnerID   uuid.UUID
	ActorIsMember bool
}

// Authorizer is the predicate the payout engine consults before mutating.
type Authorizer interface {
	Authorize(actor uuid.UUID, op Operation, resource Authorizable) bool
}

// Policy is the default Authorizer.
type Policy struct{}

// NewPolicy returns the default pool ownership policy.
func NewPolicy() Policy {
	return Policy{}
}

func (Policy) Authorize(actor uuid.UUID, op Operation, resource Authorizable) bool {
	return Authorize(actor, op, resource)
}

// Authorize reports whether actor may perform op on resource.
func Authorize(actor uuid.UUID, op Operation, resource Authorizable) bool {
	if actor == uuid.Nil {
		return false
	}
	switch resource.Kind {
	case KindPool:
		switch op {
		case OpCreatePayout, OpProcessExpired:
			return actor == resource.OwnerID || resource.ActorIsMember
		}
		return actor == resource.OwnerID
	case KindPayout:
		switch op {
		case OpStartVoting, OpUpdateStatus, OpCancelPayout:
			return actor == resource.OwnerID || actor == resource.PoolOwnerID
		}
		return false
	case KindVotingSettings:
		return op == OpUpdateSettings && actor == resource.PoolOwnerID
	default:
		return false
	}
}
