// Package seed bootstraps the default tenant, the global rarity
// catalog and, optionally, a demo probability configuration so a fresh
// deployment can sell boxes immediately.
package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	memberdomain "github.com/duniafantasy/fantasybox/internal/member/domain"
	probabilitydomain "github.com/duniafantasy/fantasybox/internal/probability/domain"
	"gorm.io/gorm"
)

const (
	defaultTenantName = "Main"
	defaultTenantSlug = "main"
)

// rarityCatalog is the fixed global catalog; sort_order drives tier
// eligibility, so the order here is load-bearing.
var rarityCatalog = []struct {
	Code      probabilitydomain.RarityCode
	Name      string
	SortOrder int
}{
	{probabilitydomain.RarityCommon, "Common", 1},
	{probabilitydomain.RarityRare, "Rare", 2},
	{probabilitydomain.RarityEpic, "Epic", 3},
	{probabilitydomain.RaritySupreme, "Supreme", 4},
	{probabilitydomain.RarityLegendary, "Legendary", 5},
	{probabilitydomain.RaritySpecialLegendary, "Special Legendary", 6},
}

// EnsureMainTenant seeds the default tenant and the rarity catalog.
func EnsureMainTenant(db *gorm.DB) error {
	return ensureMainTenant(db, 0)
}

// EnsureMainTenantWithID seeds the default tenant under a fixed ID so
// gateway configuration can reference it.
func EnsureMainTenantWithID(db *gorm.DB, tenantID int64) error {
	return ensureMainTenant(db, snowflake.ID(tenantID))
}

func ensureMainTenant(db *gorm.DB, tenantID snowflake.ID) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := ensureMainTenantTx(ctx, tx, node, tenantID); err != nil {
			return err
		}
		return ensureRarityCatalogTx(ctx, tx, node)
	})
}

func ensureMainTenantTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node, tenantID snowflake.ID) (memberdomain.Tenant, error) {
	var tenant memberdomain.Tenant
	err := tx.WithContext(ctx).
		Where("slug = ?", defaultTenantSlug).
		First(&tenant).Error
	if err == nil {
		return tenant, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return memberdomain.Tenant{}, err
	}

	if tenantID == 0 {
		tenantID = node.Generate()
	}
	tenant = memberdomain.Tenant{
		ID:        tenantID,
		Name:      defaultTenantName,
		Slug:      defaultTenantSlug,
		CreatedAt: time.Now().UTC(),
	}
	if err := tx.WithContext(ctx).Create(&tenant).Error; err != nil {
		return memberdomain.Tenant{}, err
	}
	return tenant, nil
}

func ensureRarityCatalogTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node) error {
	for _, entry := range rarityCatalog {
		var rarity probabilitydomain.Rarity
		err := tx.WithContext(ctx).
			Where("code = ?", entry.Code).
			First(&rarity).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		rarity = probabilitydomain.Rarity{
			ID:        node.Generate(),
			Code:      entry.Code,
			Name:      entry.Name,
			SortOrder: entry.SortOrder,
		}
		if err := tx.WithContext(ctx).Create(&rarity).Error; err != nil {
			return err
		}
	}
	return nil
}

// EnsureDemoConfiguration seeds tier weights and one cash reward per
// rarity for the default tenant, both tracks summing to 100. Intended
// for local development only.
func EnsureDemoConfiguration(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tenant, err := ensureMainTenantTx(ctx, tx, node, 0)
		if err != nil {
			return err
		}
		if err := ensureRarityCatalogTx(ctx, tx, node); err != nil {
			return err
		}

		var rarities []probabilitydomain.Rarity
		if err := tx.WithContext(ctx).Order("sort_order asc").Find(&rarities).Error; err != nil {
			return err
		}

		for tier := 1; tier <= 3; tier++ {
			if err := ensureDemoTierWeights(ctx, tx, node, tenant.ID, tier, rarities); err != nil {
				return err
			}
		}
		return ensureDemoRewards(ctx, tx, node, tenant.ID, rarities)
	})
}

// demoTierWeights are per-tier weights over the eligible rarities in
// sort order, each row summing to 100.
var demoTierWeights = map[int][]int{
	1: {55, 25, 10, 5, 4, 1},
	2: {50, 30, 12, 6, 2},
	3: {60, 25, 10, 5},
}

func ensureDemoTierWeights(ctx context.Context, tx *gorm.DB, node *snowflake.Node, tenantID snowflake.ID, tier int, rarities []probabilitydomain.Rarity) error {
	var count int64
	err := tx.WithContext(ctx).
		Model(&probabilitydomain.TierRarityWeight{}).
		Where("tenant_id = ? AND credit_tier = ?", tenantID, tier).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	weights := demoTierWeights[tier]
	idx := 0
	now := time.Now().UTC()
	for _, rarity := range rarities {
		if rarity.SortOrder < tier || idx >= len(weights) {
			continue
		}
		row := probabilitydomain.TierRarityWeight{
			ID:                 node.Generate(),
			TenantID:           tenantID,
			CreditTier:         tier,
			RarityID:           rarity.ID,
			IsActive:           true,
			RealProbability:    weights[idx],
			GimmickProbability: weights[idx],
			UpdatedAt:          now,
		}
		if err := tx.WithContext(ctx).Create(&row).Error; err != nil {
			return err
		}
		idx++
	}
	return nil
}

func ensureDemoRewards(ctx context.Context, tx *gorm.DB, node *snowflake.Node, tenantID snowflake.ID, rarities []probabilitydomain.Rarity) error {
	now := time.Now().UTC()
	for _, rarity := range rarities {
		var count int64
		err := tx.WithContext(ctx).
			Model(&probabilitydomain.Reward{}).
			Where("tenant_id = ? AND rarity_id = ?", tenantID, rarity.ID).
			Count(&count).Error
		if err != nil {
			return err
		}
		if count > 0 {
			continue
		}

		reward := probabilitydomain.Reward{
			ID:                 node.Generate(),
			TenantID:           tenantID,
			RarityID:           rarity.ID,
			Label:              rarity.Name + " Cash Prize",
			RewardType:         probabilitydomain.RewardTypeCash,
			Amount:             int64(rarity.SortOrder) * 1000,
			IsActive:           true,
			RealProbability:    100,
			GimmickProbability: 100,
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		if err := tx.WithContext(ctx).Create(&reward).Error; err != nil {
			return err
		}
	}
	return nil
}
