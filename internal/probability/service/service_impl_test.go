package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/duniafantasy/fantasybox/internal/config"
	"github.com/duniafantasy/fantasybox/internal/probability/domain"
	"github.com/duniafantasy/fantasybox/internal/probability/repository"
	"github.com/duniafantasy/fantasybox/internal/tenantcontext"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type probabilityFixture struct {
	db       *gorm.DB
	node     *snowflake.Node
	svc      domain.Service
	tenantID snowflake.ID
	ctx      context.Context
	rarities map[domain.RarityCode]domain.Rarity
}

func newProbabilityFixture(t *testing.T) *probabilityFixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&domain.Rarity{},
		&domain.Reward{},
		&domain.TierRarityWeight{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	// Long TTL on purpose: reads after a save only see fresh rows if the
	// save invalidates the cache.
	svc := New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		Cfg:   config.Config{WeightCacheTTL: time.Hour},
		GenID: node,
		Repo:  repository.Provide(),
	})

	f := &probabilityFixture{
		db:       db,
		node:     node,
		svc:      svc,
		tenantID: node.Generate(),
		rarities: map[domain.RarityCode]domain.Rarity{},
	}
	f.ctx = tenantcontext.WithTenantID(context.Background(), f.tenantID)

	catalog := []struct {
		code domain.RarityCode
		name string
		sort int
	}{
		{domain.RarityCommon, "Common", 1},
		{domain.RarityRare, "Rare", 2},
		{domain.RarityEpic, "Epic", 3},
	}
	for _, entry := range catalog {
		rarity := domain.Rarity{
			ID:        node.Generate(),
			Code:      entry.code,
			Name:      entry.name,
			SortOrder: entry.sort,
		}
		require.NoError(t, db.Create(&rarity).Error)
		f.rarities[entry.code] = rarity
	}
	return f
}

func (f *probabilityFixture) createReward(t *testing.T, code domain.RarityCode, label string) domain.Reward {
	t.Helper()
	reward, err := f.svc.CreateReward(f.ctx, domain.CreateRewardRequest{
		RarityID:   f.rarities[code].ID.String(),
		Label:      label,
		RewardType: domain.RewardTypeCash,
		Amount:     1000,
	})
	require.NoError(t, err)
	return reward
}

func TestSaveTierWeightsEnforcesSumInvariant(t *testing.T) {
	f := newProbabilityFixture(t)
	common := f.rarities[domain.RarityCommon]
	rare := f.rarities[domain.RarityRare]

	err := f.svc.SaveTierWeights(f.ctx, domain.SaveTierWeightsRequest{
		CreditTier: 1,
		Rows: []domain.WeightInput{
			{ID: common.ID.String(), IsActive: true, Real: 60, Gimmick: 100},
		},
	})
	require.ErrorIs(t, err, domain.ErrConfigurationInvariant)

	err = f.svc.SaveTierWeights(f.ctx, domain.SaveTierWeightsRequest{
		CreditTier: 1,
		Rows: []domain.WeightInput{
			{ID: common.ID.String(), IsActive: true, Real: 101, Gimmick: 100},
		},
	})
	require.ErrorIs(t, err, domain.ErrInvalidWeight)

	// inactive rows stay out of the sum on both tracks
	err = f.svc.SaveTierWeights(f.ctx, domain.SaveTierWeightsRequest{
		CreditTier: 1,
		Rows: []domain.WeightInput{
			{ID: common.ID.String(), IsActive: true, Real: 100, Gimmick: 100},
			{ID: rare.ID.String(), IsActive: false, Real: 40, Gimmick: 40},
		},
	})
	require.NoError(t, err)

	rows, err := f.svc.TierWeights(f.ctx, 1)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 100, rows[0].RealProbability)
	assert.False(t, rows[1].IsActive)
}

func TestSaveTierWeightsValidation(t *testing.T) {
	f := newProbabilityFixture(t)
	common := f.rarities[domain.RarityCommon]
	row := domain.WeightInput{ID: common.ID.String(), IsActive: true, Real: 100, Gimmick: 100}

	err := f.svc.SaveTierWeights(f.ctx, domain.SaveTierWeightsRequest{CreditTier: 4, Rows: []domain.WeightInput{row}})
	require.ErrorIs(t, err, domain.ErrInvalidTier)

	err = f.svc.SaveTierWeights(f.ctx, domain.SaveTierWeightsRequest{
		CreditTier: 1,
		Rows:       []domain.WeightInput{{ID: f.node.Generate().String(), IsActive: true, Real: 100, Gimmick: 100}},
	})
	require.ErrorIs(t, err, domain.ErrRarityNotFound)

	err = f.svc.SaveTierWeights(context.Background(), domain.SaveTierWeightsRequest{CreditTier: 1, Rows: []domain.WeightInput{row}})
	require.ErrorIs(t, err, domain.ErrInvalidTenant)
}

func TestSaveTierWeightsInvalidatesCache(t *testing.T) {
	f := newProbabilityFixture(t)
	common := f.rarities[domain.RarityCommon]

	require.NoError(t, f.svc.SaveTierWeights(f.ctx, domain.SaveTierWeightsRequest{
		CreditTier: 2,
		Rows: []domain.WeightInput{
			{ID: common.ID.String(), IsActive: true, Real: 100, Gimmick: 100},
		},
	}))
	rows, err := f.svc.TierWeights(f.ctx, 2)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	// second save upserts the same row and must bust the cached read
	require.NoError(t, f.svc.SaveTierWeights(f.ctx, domain.SaveTierWeightsRequest{
		CreditTier: 2,
		Rows: []domain.WeightInput{
			{ID: common.ID.String(), IsActive: false, Real: 0, Gimmick: 0},
			{ID: f.rarities[domain.RarityRare].ID.String(), IsActive: true, Real: 100, Gimmick: 100},
		},
	}))

	rows, err = f.svc.TierWeights(f.ctx, 2)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.False(t, rows[0].IsActive)
	assert.True(t, rows[1].IsActive)
}

func TestSaveTierWeightsReplacesStoredSet(t *testing.T) {
	f := newProbabilityFixture(t)
	common := f.rarities[domain.RarityCommon]
	rare := f.rarities[domain.RarityRare]
	epic := f.rarities[domain.RarityEpic]

	require.NoError(t, f.svc.SaveTierWeights(f.ctx, domain.SaveTierWeightsRequest{
		CreditTier: 1,
		Rows: []domain.WeightInput{
			{ID: common.ID.String(), IsActive: true, Real: 60, Gimmick: 50},
			{ID: rare.ID.String(), IsActive: true, Real: 40, Gimmick: 50},
		},
	}))

	// a save naming only EPIC must not leave the earlier rows active,
	// or the stored active set would sum to 200
	require.NoError(t, f.svc.SaveTierWeights(f.ctx, domain.SaveTierWeightsRequest{
		CreditTier: 1,
		Rows: []domain.WeightInput{
			{ID: epic.ID.String(), IsActive: true, Real: 100, Gimmick: 100},
		},
	}))

	rows, err := f.svc.TierWeights(f.ctx, 1)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	var real, gimmick int
	for _, row := range rows {
		if row.RarityID != epic.ID {
			assert.False(t, row.IsActive, "rarity %s must leave the active set", row.RarityCode)
		}
		if row.IsActive {
			real += row.RealProbability
			gimmick += row.GimmickProbability
		}
	}
	assert.Equal(t, 100, real)
	assert.Equal(t, 100, gimmick)
}

func TestSaveWeightsRejectDuplicateRows(t *testing.T) {
	f := newProbabilityFixture(t)
	common := f.rarities[domain.RarityCommon]

	// the duplicate pair validates as 50+50 but would collapse into a
	// single stored row holding 50
	err := f.svc.SaveTierWeights(f.ctx, domain.SaveTierWeightsRequest{
		CreditTier: 1,
		Rows: []domain.WeightInput{
			{ID: common.ID.String(), IsActive: true, Real: 50, Gimmick: 50},
			{ID: common.ID.String(), IsActive: true, Real: 50, Gimmick: 50},
		},
	})
	require.ErrorIs(t, err, domain.ErrDuplicateRow)

	var stored int64
	require.NoError(t, f.db.Model(&domain.TierRarityWeight{}).Count(&stored).Error)
	assert.Zero(t, stored)

	reward := f.createReward(t, domain.RarityEpic, "Gold")
	err = f.svc.SaveRewardWeights(f.ctx, domain.SaveRewardWeightsRequest{
		RarityID: f.rarities[domain.RarityEpic].ID.String(),
		Rows: []domain.WeightInput{
			{ID: reward.ID.String(), IsActive: true, Real: 50, Gimmick: 50},
			{ID: reward.ID.String(), IsActive: true, Real: 50, Gimmick: 50},
		},
	})
	require.ErrorIs(t, err, domain.ErrDuplicateRow)
}

func TestSaveRewardWeights(t *testing.T) {
	f := newProbabilityFixture(t)
	epic := f.rarities[domain.RarityEpic]
	first := f.createReward(t, domain.RarityEpic, "Gold")
	second := f.createReward(t, domain.RarityEpic, "Silver")

	require.NoError(t, f.svc.SaveRewardWeights(f.ctx, domain.SaveRewardWeightsRequest{
		RarityID: epic.ID.String(),
		Rows: []domain.WeightInput{
			{ID: first.ID.String(), IsActive: true, Real: 70, Gimmick: 30},
			{ID: second.ID.String(), IsActive: true, Real: 30, Gimmick: 70},
		},
	}))

	rewards, err := f.svc.ActiveRewards(f.ctx, epic.ID.String())
	require.NoError(t, err)
	require.Len(t, rewards, 2)
	assert.Equal(t, 70, rewards[0].RealProbability)
	assert.Equal(t, 30, rewards[0].GimmickProbability)

	// a save naming only one reward deactivates the other, keeping the
	// stored active set at exactly 100
	require.NoError(t, f.svc.SaveRewardWeights(f.ctx, domain.SaveRewardWeightsRequest{
		RarityID: epic.ID.String(),
		Rows: []domain.WeightInput{
			{ID: first.ID.String(), IsActive: true, Real: 100, Gimmick: 100},
		},
	}))
	rewards, err = f.svc.ActiveRewards(f.ctx, epic.ID.String())
	require.NoError(t, err)
	require.Len(t, rewards, 1)
	assert.Equal(t, first.ID, rewards[0].ID)
	assert.Equal(t, 100, rewards[0].RealProbability)

	// a reward of another rarity cannot be smuggled into the set
	foreign := f.createReward(t, domain.RarityCommon, "Bronze")
	err = f.svc.SaveRewardWeights(f.ctx, domain.SaveRewardWeightsRequest{
		RarityID: epic.ID.String(),
		Rows: []domain.WeightInput{
			{ID: foreign.ID.String(), IsActive: true, Real: 100, Gimmick: 100},
		},
	})
	require.ErrorIs(t, err, domain.ErrRewardNotFound)
}

func TestCreateRewardValidation(t *testing.T) {
	f := newProbabilityFixture(t)
	epic := f.rarities[domain.RarityEpic]

	_, err := f.svc.CreateReward(f.ctx, domain.CreateRewardRequest{
		RarityID:   epic.ID.String(),
		Label:      "Cash",
		RewardType: domain.RewardTypeCash,
		Amount:     0,
	})
	require.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = f.svc.CreateReward(f.ctx, domain.CreateRewardRequest{
		RarityID:   epic.ID.String(),
		Label:      " ",
		RewardType: domain.RewardTypeCash,
		Amount:     100,
	})
	require.ErrorIs(t, err, domain.ErrInvalidLabel)

	_, err = f.svc.CreateReward(f.ctx, domain.CreateRewardRequest{
		RarityID:   epic.ID.String(),
		Label:      "Mystery",
		RewardType: domain.RewardType("VOUCHER"),
		Amount:     100,
	})
	require.ErrorIs(t, err, domain.ErrInvalidRewardType)

	_, err = f.svc.CreateReward(f.ctx, domain.CreateRewardRequest{
		RarityID:   f.node.Generate().String(),
		Label:      "Cash",
		RewardType: domain.RewardTypeCash,
		Amount:     100,
	})
	require.ErrorIs(t, err, domain.ErrRarityNotFound)

	created, err := f.svc.CreateReward(f.ctx, domain.CreateRewardRequest{
		RarityID:   epic.ID.String(),
		Label:      "Sticker Pack",
		RewardType: domain.RewardTypeItem,
	})
	require.NoError(t, err)
	assert.True(t, created.IsActive)
	assert.Zero(t, created.RealProbability, "new rewards start unweighted")
	assert.Zero(t, created.GimmickProbability)
}

func TestUpdateRewardAndDeactivation(t *testing.T) {
	f := newProbabilityFixture(t)
	epic := f.rarities[domain.RarityEpic]
	reward := f.createReward(t, domain.RarityEpic, "Gold")

	require.NoError(t, f.svc.SaveRewardWeights(f.ctx, domain.SaveRewardWeightsRequest{
		RarityID: epic.ID.String(),
		Rows: []domain.WeightInput{
			{ID: reward.ID.String(), IsActive: true, Real: 100, Gimmick: 100},
		},
	}))

	empty := ""
	_, err := f.svc.UpdateReward(f.ctx, domain.UpdateRewardRequest{ID: reward.ID.String(), Label: &empty})
	require.ErrorIs(t, err, domain.ErrInvalidLabel)

	inactive := false
	updated, err := f.svc.UpdateReward(f.ctx, domain.UpdateRewardRequest{ID: reward.ID.String(), IsActive: &inactive})
	require.NoError(t, err)
	assert.False(t, updated.IsActive)

	active, err := f.svc.ActiveRewards(f.ctx, epic.ID.String())
	require.NoError(t, err)
	assert.Empty(t, active, "deactivation must invalidate the cached reward set")
}
