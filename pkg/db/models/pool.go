package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/poolfund-backend/pkg/enums"
)

// Pool is a shared fund owned by one user. TotalContributed is the running
// balance that payouts reserve against.
type Pool struct {
	ID               uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OwnerUserID      uuid.UUID       `gorm:"column:owner_user_id;type:uuid;not null" json:"ownerUserId"`
	Name             string          `gorm:"column:name;not null" json:"name"`
	TotalContributed decimal.Decimal `gorm:"column:total_contributed;type:numeric(14,2);not null;default:0" json:"totalContributed"`
	CreatedAt        time.Time       `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt        time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (Pool) TableName() string { return "pools" }

func (p *Pool) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// PoolMember links a user to a pool together with their contributed balance.
type PoolMember struct {
	ID               uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	PoolID           uuid.UUID              `gorm:"column:pool_id;type:uuid;not null" json:"poolId"`
	UserID           uuid.UUID              `gorm:"column:user_id;type:uuid;not null" json:"userId"`
	TotalContributed decimal.Decimal        `gorm:"column:total_contributed;type:numeric(14,2);not null;default:0" json:"totalContributed"`
	ShareCount       int                    `gorm:"column:share_count;not null;default:0" json:"shareCount"`
	Tier             enums.MemberTier       `gorm:"column:tier;not null;default:basic" json:"tier"`
	Status           enums.PoolMemberStatus `gorm:"column:status;type:pool_member_status_enum;not null;default:active" json:"status"`
	JoinedAt         time.Time              `gorm:"column:joined_at;not null" json:"joinedAt"`
	CreatedAt        time.Time              `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt        time.Time              `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (PoolMember) TableName() string { return "pool_members" }

func (m *PoolMember) BeforeCreate(*gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.JoinedAt.IsZero() {
		m.JoinedAt = time.Now().UTC()
	}
	return nil
}
