package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/poolfund-backend/pkg/enums"
)

// PoolVotingSettings holds the per-pool payout voting rules. At most one row
// exists per pool.
type PoolVotingSettings struct {
	ID                  uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	PoolID              uuid.UUID        `gorm:"column:pool_id;type:uuid;not null;uniqueIndex" json:"poolId"`
	VotingEnabled       bool             `gorm:"column:voting_enabled;not null;default:false" json:"votingEnabled"`
	VotingThresholdPct  int              `gorm:"column:voting_threshold_pct;not null;default:51" json:"votingThresholdPct"`
	VotingDurationHours int              `gorm:"column:voting_duration_hours;not null;default:72" json:"votingDurationHours"`
	MinVoters           int              `gorm:"column:min_voters;not null;default:1" json:"minVoters"`
	VotingType          enums.VotingType `gorm:"column:voting_type;type:voting_type_enum;not null;default:one_member_one_vote" json:"votingType"`
	AutoApprove         bool             `gorm:"column:auto_approve;not null;default:false" json:"autoApprove"`
	AllowAbstain        bool             `gorm:"column:allow_abstain;not null" json:"allowAbstain"`
	RequireQuorum       bool             `gorm:"column:require_quorum;not null;default:false" json:"requireQuorum"`
	QuorumPct           int              `gorm:"column:quorum_pct;not null;default:50" json:"quorumPct"`
	CreatedAt           time.Time        `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt           time.Time        `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (PoolVotingSettings) TableName() string { return "pool_voting_settings" }

func (s *PoolVotingSettings) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
