package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	probability "github.com/duniafantasy/fantasybox/internal/probability/domain"
)

// Status is the lifecycle state of a box transaction.
type Status string

const (
	StatusPurchased Status = "PURCHASED"
	StatusOpened    Status = "OPENED"
	StatusExpired   Status = "EXPIRED"
)

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusOpened || s == StatusExpired
}

// CanTransition reports whether the state machine allows from -> to.
// The only legal transitions are PURCHASED -> OPENED and
// PURCHASED -> EXPIRED.
func CanTransition(from, to Status) bool {
	if from != StatusPurchased {
		return false
	}
	return to == StatusOpened || to == StatusExpired
}

// BoxTTL is how long a purchased box stays openable.
const BoxTTL = 7 * 24 * time.Hour

// BoxTransaction is one purchased box. The rarity is bound at purchase
// time, the reward at open time. Expired reports against ExpiresAt with
// the boundary itself counting as expired.
type BoxTransaction struct {
	ID          snowflake.ID      `gorm:"primaryKey" json:"id"`
	TenantID    snowflake.ID      `gorm:"not null;index" json:"tenant_id"`
	MemberID    snowflake.ID      `gorm:"not null;index" json:"member_id"`
	CreditTier  int               `gorm:"not null" json:"credit_tier"`
	CreditSpent int64             `gorm:"not null" json:"credit_spent"`
	Track       probability.Track `gorm:"type:text;not null;default:'real'" json:"track"`
	Status      Status            `gorm:"type:text;not null;index" json:"status"`
	RarityID    snowflake.ID      `gorm:"not null" json:"rarity_id"`
	RewardID    *snowflake.ID     `json:"reward_id,omitempty"`
	ExpiresAt   time.Time         `gorm:"not null;index" json:"expires_at"`
	OpenedAt    *time.Time        `json:"opened_at,omitempty"`
	Processed   bool              `gorm:"not null;default:false" json:"processed"`
	ProcessedBy *snowflake.ID     `json:"processed_by,omitempty"`
	ProcessedAt *time.Time        `json:"processed_at,omitempty"`
	CreatedAt   time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (BoxTransaction) TableName() string { return "box_transactions" }

// Expired reports whether the box can no longer be opened at now.
func (t BoxTransaction) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// HistoryRow is a box transaction joined with its display labels.
type HistoryRow struct {
	ID          snowflake.ID  `json:"id"`
	MemberID    snowflake.ID  `json:"member_id"`
	Username    string        `json:"username"`
	CreditTier  int           `json:"credit_tier"`
	CreditSpent int64         `json:"credit_spent"`
	Track       string        `json:"track"`
	Status      Status        `json:"status"`
	RarityCode  string        `json:"rarity_code"`
	RarityName  string        `json:"rarity_name"`
	RewardLabel *string       `json:"reward_label,omitempty"`
	RewardType  *string       `json:"reward_type,omitempty"`
	Amount      *int64        `json:"reward_amount,omitempty"`
	ExpiresAt   time.Time     `json:"expires_at"`
	OpenedAt    *time.Time    `json:"opened_at,omitempty"`
	Processed   bool          `json:"processed"`
	ProcessedBy *snowflake.ID `json:"processed_by,omitempty"`
	ProcessedAt *time.Time    `json:"processed_at,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
}

// InventoryItem is an unopened, unexpired box of one member.
type InventoryItem struct {
	ID         snowflake.ID `json:"id"`
	CreditTier int          `json:"credit_tier"`
	Track      string       `json:"track"`
	RarityID   snowflake.ID `json:"rarity_id"`
	RarityCode string       `json:"rarity_code"`
	RarityName string       `json:"rarity_name"`
	ExpiresAt  time.Time    `json:"expires_at"`
	CreatedAt  time.Time    `json:"created_at"`
}
