package enums

// PayoutTransactionType maps to the payout_transaction_type_enum enum in Postgres.
type PayoutTransactionType string

const (
	PayoutTransactionDebit  PayoutTransactionType = "debit"
	PayoutTransactionCredit PayoutTransactionType = "credit"
)

func (t PayoutTransactionType) IsValid() bool {
	return t == PayoutTransactionDebit || t == PayoutTransactionCredit
}

// MemberTier is the membership level used by tier based voting.
type MemberTier string

const (
	MemberTierBasic    MemberTier = "basic"
	MemberTierSilver   MemberTier = "silver"
	MemberTierGold     MemberTier = "gold"
	MemberTierPlatinum MemberTier = "platinum"
	MemberTierAdmin    MemberTier = "admin"
)

// PoolMemberStatus maps to the pool_member_status_enum enum in Postgres.
type PoolMemberStatus string

const (
	PoolMemberStatusActive PoolMemberStatus = "active"
	PoolMemberStatusLeft   PoolMemberStatus = "left"
)

func (s PoolMemberStatus) IsValid() bool {
	return s == PoolMemberStatusActive || s == PoolMemberStatusLeft
}
