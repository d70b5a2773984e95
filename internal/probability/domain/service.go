package domain

import (
	"context"
	"errors"
)

type WeightInput struct {
	ID       string `json:"id"`
	IsActive bool   `json:"is_active"`
	Real     int    `json:"real_probability"`
	Gimmick  int    `json:"gimmick_probability"`
}

type SaveTierWeightsRequest struct {
	CreditTier int
	Rows       []WeightInput // ID refers to the rarity
}

type SaveRewardWeightsRequest struct {
	RarityID string
	Rows     []WeightInput // ID refers to the reward
}

type CreateRewardRequest struct {
	RarityID   string
	Label      string
	RewardType RewardType
	Amount     int64
}

type UpdateRewardRequest struct {
	ID       string
	Label    *string
	Amount   *int64
	IsActive *bool
}

type ListRewardsRequest struct {
	RarityID string
}

// Service owns the versioned probability configuration. Reads are served
// from a short-lived cache; saves validate the sum-to-100 invariant on
// both tracks and invalidate the cache before returning.
type Service interface {
	ListRarities(ctx context.Context) ([]Rarity, error)
	TierWeights(ctx context.Context, creditTier int) ([]TierWeightView, error)
	ActiveRewards(ctx context.Context, rarityID string) ([]Reward, error)
	ListRewards(ctx context.Context, req ListRewardsRequest) ([]Reward, error)
	SaveTierWeights(ctx context.Context, req SaveTierWeightsRequest) error
	SaveRewardWeights(ctx context.Context, req SaveRewardWeightsRequest) error
	CreateReward(ctx context.Context, req CreateRewardRequest) (Reward, error)
	UpdateReward(ctx context.Context, req UpdateRewardRequest) (Reward, error)
}

var (
	ErrInvalidTenant          = errors.New("invalid_tenant")
	ErrInvalidTier            = errors.New("invalid_tier")
	ErrInvalidTrack           = errors.New("invalid_track")
	ErrInvalidWeight          = errors.New("invalid_weight")
	ErrInvalidLabel           = errors.New("invalid_label")
	ErrInvalidRewardType      = errors.New("invalid_reward_type")
	ErrInvalidAmount          = errors.New("invalid_amount")
	ErrInvalidID              = errors.New("invalid_id")
	ErrDuplicateRow           = errors.New("duplicate_row")
	ErrRarityNotFound         = errors.New("rarity_not_found")
	ErrRewardNotFound         = errors.New("reward_not_found")
	ErrConfigurationInvariant = errors.New("configuration_invariant_violated")
)
