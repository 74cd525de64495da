package authz

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestAuthorize(t *testing.T) {
	owner := uuid.New()
	creator := uuid.New()
	stranger := uuid.New()

	payout := Authorizable{Kind: KindPayout, OwnerID: creator, PoolOwnerID: owner}
	settings := Authorizable{Kind: KindVotingSettings, OwnerID: owner, PoolOwnerID: owner}

	tests := []struct {
		name     string
		actor    uuid.UUID
		op       Operation
		resource Authorizable
		want     bool
	}{
		{"creator cancels", creator, OpCancelPayout, payout, true},
		{"pool owner completes", owner, OpUpdateStatus, payout, true},
		{"stranger starts voting", stranger, OpStartVoting, payout, false},
		{"creator updates settings", creator, OpUpdateSettings, settings, false},
		{"owner updates settings", owner, OpUpdateSettings, settings, true},
		{"member creates payout", stranger, OpCreatePayout, Authorizable{Kind: KindPool, OwnerID: owner, ActorIsMember: true}, true},
		{"outsider creates payout", stranger, OpCreatePayout, Authorizable{Kind: KindPool, OwnerID: owner}, false},
		{"member processes expired", stranger, OpProcessExpired, Authorizable{Kind: KindPool, OwnerID: owner, ActorIsMember: true}, true},
		{"owner processes expired", owner, OpProcessExpired, Authorizable{Kind: KindPool, OwnerID: owner}, true},
		{"outsider processes expired", stranger, OpProcessExpired, Authorizable{Kind: KindPool, OwnerID: owner}, false},
		{"nil actor", uuid.Nil, OpCancelPayout, payout, false},
		{"unknown kind", owner, OpCancelPayout, Authorizable{Kind: "ledger", OwnerID: owner}, false},
		{"payout op on settings", owner, OpCancelPayout, settings, false},
	}

	policy := NewPolicy()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, policy.Authorize(tt.actor, tt.op, tt.resource))
		})
	}
}
