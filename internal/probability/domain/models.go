package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Track selects one of the two independently configured probability
// tables. Neither track is derived from the other.
type Track string

const (
	TrackReal    Track = "real"
	TrackGimmick Track = "gimmick"
)

// ParseTrack normalizes a track name, defaulting empty input to real.
func ParseTrack(raw string) (Track, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", string(TrackReal):
		return TrackReal, nil
	case string(TrackGimmick):
		return TrackGimmick, nil
	default:
		return "", ErrInvalidTrack
	}
}

// RarityCode identifies an entry of the global rarity catalog.
type RarityCode string

const (
	RarityCommon           RarityCode = "COMMON"
	RarityRare             RarityCode = "RARE"
	RarityEpic             RarityCode = "EPIC"
	RaritySupreme          RarityCode = "SUPREME"
	RarityLegendary        RarityCode = "LEGENDARY"
	RaritySpecialLegendary RarityCode = "SPECIAL_LEGENDARY"
)

// Rarity is a global catalog entry. SortOrder defines the total order
// used for credit tier eligibility.
type Rarity struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	Code      RarityCode   `gorm:"type:text;not null;uniqueIndex" json:"code"`
	Name      string       `gorm:"not null" json:"name"`
	SortOrder int          `gorm:"not null" json:"sort_order"`
}

// TableName sets the database table name.
func (Rarity) TableName() string { return "rarities" }

// RewardType classifies the payout of a reward.
type RewardType string

const (
	RewardTypeCash RewardType = "CASH"
	RewardTypeItem RewardType = "ITEM"
)

// Reward is a tenant-defined payout bound to one rarity, carrying a
// weight per track.
type Reward struct {
	ID                 snowflake.ID `gorm:"primaryKey" json:"id"`
	TenantID           snowflake.ID `gorm:"not null;index" json:"tenant_id"`
	RarityID           snowflake.ID `gorm:"not null;index" json:"rarity_id"`
	Label              string       `gorm:"not null" json:"label"`
	RewardType         RewardType   `gorm:"type:text;not null" json:"reward_type"`
	Amount             int64        `gorm:"not null;default:0" json:"amount"`
	IsActive           bool         `gorm:"not null;default:true" json:"is_active"`
	RealProbability    int          `gorm:"not null;default:0" json:"real_probability"`
	GimmickProbability int          `gorm:"not null;default:0" json:"gimmick_probability"`
	CreatedAt          time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt          time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Reward) TableName() string { return "rewards" }

// Weight returns the reward weight on the given track.
func (r Reward) Weight(track Track) int {
	if track == TrackGimmick {
		return r.GimmickProbability
	}
	return r.RealProbability
}

// TierRarityWeight configures, per tenant and credit tier, the chance of
// each rarity on both tracks.
type TierRarityWeight struct {
	ID                 snowflake.ID `gorm:"primaryKey" json:"id"`
	TenantID           snowflake.ID `gorm:"not null;uniqueIndex:ux_tier_weights,priority:1" json:"tenant_id"`
	CreditTier         int          `gorm:"not null;uniqueIndex:ux_tier_weights,priority:2" json:"credit_tier"`
	RarityID           snowflake.ID `gorm:"not null;uniqueIndex:ux_tier_weights,priority:3" json:"rarity_id"`
	IsActive           bool         `gorm:"not null;default:true" json:"is_active"`
	RealProbability    int          `gorm:"not null;default:0" json:"real_probability"`
	GimmickProbability int          `gorm:"not null;default:0" json:"gimmick_probability"`
	UpdatedAt          time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (TierRarityWeight) TableName() string { return "tier_rarity_weights" }

// TierWeightView is a tier weight row joined with its rarity for draws
// and eligibility filtering.
type TierWeightView struct {
	RarityID           snowflake.ID `json:"rarity_id"`
	RarityCode         RarityCode   `json:"rarity_code"`
	RarityName         string       `json:"rarity_name"`
	SortOrder          int          `json:"sort_order"`
	IsActive           bool         `json:"is_active"`
	RealProbability    int          `json:"real_probability"`
	GimmickProbability int          `json:"gimmick_probability"`
}

// Weight returns the rarity weight on the given track.
func (v TierWeightView) Weight(track Track) int {
	if track == TrackGimmick {
		return v.GimmickProbability
	}
	return v.RealProbability
}
