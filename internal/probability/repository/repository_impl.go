package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/duniafantasy/fantasybox/internal/probability/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) ListRarities(ctx context.Context, db *gorm.DB) ([]domain.Rarity, error) {
	var rarities []domain.Rarity
	err := db.WithContext(ctx).
		Order("sort_order asc").
		Find(&rarities).Error
	if err != nil {
		return nil, err
	}
	return rarities, nil
}

func (r *repo) FindRarityByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Rarity, error) {
	var rarity domain.Rarity
	err := db.WithContext(ctx).
		Where("id = ?", id).
		First(&rarity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rarity, nil
}

func (r *repo) TierWeights(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, creditTier int) ([]domain.TierWeightView, error) {
	var rows []domain.TierWeightView
	err := db.WithContext(ctx).Raw(
		`SELECT w.rarity_id, r.code AS rarity_code, r.name AS rarity_name, r.sort_order,
		        w.is_active, w.real_probability, w.gimmick_probability
		 FROM tier_rarity_weights w
		 JOIN rarities r ON r.id = w.rarity_id
		 WHERE w.tenant_id = ? AND w.credit_tier = ?
		 ORDER BY r.sort_order ASC`,
		tenantID,
		creditTier,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repo) UpsertTierWeight(ctx context.Context, tx *gorm.DB, row *domain.TierRarityWeight) error {
	return tx.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "tenant_id"}, {Name: "credit_tier"}, {Name: "rarity_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"is_active", "real_probability", "gimmick_probability", "updated_at",
			}),
		}).
		Create(row).Error
}

func (r *repo) DeactivateTierWeightsExcept(ctx context.Context, tx *gorm.DB, tenantID snowflake.ID, creditTier int, keep []snowflake.ID) error {
	stmt := tx.WithContext(ctx).
		Model(&domain.TierRarityWeight{}).
		Where("tenant_id = ? AND credit_tier = ? AND is_active = ?", tenantID, creditTier, true)
	if len(keep) > 0 {
		stmt = stmt.Where("rarity_id NOT IN ?", keep)
	}
	return stmt.Updates(map[string]any{
		"is_active":  false,
		"updated_at": gorm.Expr("CURRENT_TIMESTAMP"),
	}).Error
}

func (r *repo) ListRewards(ctx context.Context, db *gorm.DB, tenantID, rarityID snowflake.ID) ([]domain.Reward, error) {
	stmt := db.WithContext(ctx).
		Model(&domain.Reward{}).
		Where("tenant_id = ?", tenantID)
	if rarityID != 0 {
		stmt = stmt.Where("rarity_id = ?", rarityID)
	}
	var rewards []domain.Reward
	if err := stmt.Order("created_at asc, id asc").Find(&rewards).Error; err != nil {
		return nil, err
	}
	return rewards, nil
}

func (r *repo) ActiveRewards(ctx context.Context, db *gorm.DB, tenantID, rarityID snowflake.ID) ([]domain.Reward, error) {
	var rewards []domain.Reward
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND rarity_id = ? AND is_active = ?", tenantID, rarityID, true).
		Order("created_at asc, id asc").
		Find(&rewards).Error
	if err != nil {
		return nil, err
	}
	return rewards, nil
}

func (r *repo) FindRewardByID(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*domain.Reward, error) {
	var reward domain.Reward
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&reward).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &reward, nil
}

func (r *repo) InsertReward(ctx context.Context, tx *gorm.DB, reward *domain.Reward) error {
	return tx.WithContext(ctx).Create(reward).Error
}

func (r *repo) UpdateReward(ctx context.Context, tx *gorm.DB, reward *domain.Reward) error {
	return tx.WithContext(ctx).
		Model(&domain.Reward{}).
		Where("tenant_id = ? AND id = ?", reward.TenantID, reward.ID).
		Updates(map[string]any{
			"label":       reward.Label,
			"reward_type": reward.RewardType,
			"amount":      reward.Amount,
			"is_active":   reward.IsActive,
			"updated_at":  reward.UpdatedAt,
		}).Error
}

func (r *repo) UpdateRewardWeights(ctx context.Context, tx *gorm.DB, tenantID, id snowflake.ID, isActive bool, real, gimmick int) error {
	return tx.WithContext(ctx).
		Model(&domain.Reward{}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Updates(map[string]any{
			"is_active":           isActive,
			"real_probability":    real,
			"gimmick_probability": gimmick,
			"updated_at":          gorm.Expr("CURRENT_TIMESTAMP"),
		}).Error
}

func (r *repo) DeactivateRewardsExcept(ctx context.Context, tx *gorm.DB, tenantID, rarityID snowflake.ID, keep []snowflake.ID) error {
	stmt := tx.WithContext(ctx).
		Model(&domain.Reward{}).
		Where("tenant_id = ? AND rarity_id = ? AND is_active = ?", tenantID, rarityID, true)
	if len(keep) > 0 {
		stmt = stmt.Where("id NOT IN ?", keep)
	}
	return stmt.Updates(map[string]any{
		"is_active":  false,
		"updated_at": gorm.Expr("CURRENT_TIMESTAMP"),
	}).Error
}
