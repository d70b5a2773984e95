package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	ListRarities(ctx context.Context, db *gorm.DB) ([]Rarity, error)
	FindRarityByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Rarity, error)

	TierWeights(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, creditTier int) ([]TierWeightView, error)
	UpsertTierWeight(ctx context.Context, tx *gorm.DB, row *TierRarityWeight) error
	// DeactivateTierWeightsExcept turns off every weight row of the tier
	// whose rarity is not in keep.
	DeactivateTierWeightsExcept(ctx context.Context, tx *gorm.DB, tenantID snowflake.ID, creditTier int, keep []snowflake.ID) error

	// ListRewards with rarityID zero returns all tenant rewards.
	ListRewards(ctx context.Context, db *gorm.DB, tenantID, rarityID snowflake.ID) ([]Reward, error)
	ActiveRewards(ctx context.Context, db *gorm.DB, tenantID, rarityID snowflake.ID) ([]Reward, error)
	FindRewardByID(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*Reward, error)
	InsertReward(ctx context.Context, tx *gorm.DB, reward *Reward) error
	UpdateReward(ctx context.Context, tx *gorm.DB, reward *Reward) error
	UpdateRewardWeights(ctx context.Context, tx *gorm.DB, tenantID, id snowflake.ID, isActive bool, real, gimmick int) error
	// DeactivateRewardsExcept turns off every reward of the rarity whose
	// id is not in keep.
	DeactivateRewardsExcept(ctx context.Context, tx *gorm.DB, tenantID, rarityID snowflake.ID, keep []snowflake.ID) error
}
