package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/duniafantasy/fantasybox/internal/cache"
	"github.com/duniafantasy/fantasybox/internal/config"
	"github.com/duniafantasy/fantasybox/internal/probability/domain"
	"github.com/duniafantasy/fantasybox/internal/tenantcontext"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Cfg   config.Config
	GenID *snowflake.Node
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  domain.Repository

	// weight reads are hot on the purchase/open path; the TTL bounds
	// cross-process staleness after a config save, in-process saves
	// invalidate synchronously.
	cacheTTL    time.Duration
	tierCache   cache.Cache[string, []domain.TierWeightView]
	rewardCache cache.Cache[string, []domain.Reward]
}

func New(p Params) domain.Service {
	ttl := p.Cfg.WeightCacheTTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("probability.service"),
		genID:       p.GenID,
		repo:        p.Repo,
		cacheTTL:    ttl,
		tierCache:   cache.NewTTLCache[string, []domain.TierWeightView](),
		rewardCache: cache.NewTTLCache[string, []domain.Reward](),
	}
}

func (s *Service) ListRarities(ctx context.Context) ([]domain.Rarity, error) {
	return s.repo.ListRarities(ctx, s.db)
}

func (s *Service) TierWeights(ctx context.Context, creditTier int) ([]domain.TierWeightView, error) {
	tenantID, ok := tenantcontext.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return nil, domain.ErrInvalidTenant
	}
	if creditTier < 1 || creditTier > 3 {
		return nil, domain.ErrInvalidTier
	}

	key := tierKey(tenantID, creditTier)
	if rows, ok := s.tierCache.Get(key); ok {
		return rows, nil
	}

	rows, err := s.repo.TierWeights(ctx, s.db, tenantID, creditTier)
	if err != nil {
		return nil, err
	}
	s.tierCache.Set(key, rows, s.cacheTTL)
	return rows, nil
}

func (s *Service) ActiveRewards(ctx context.Context, rarityID string) ([]domain.Reward, error) {
	tenantID, ok := tenantcontext.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return nil, domain.ErrInvalidTenant
	}
	id, err := parseID(rarityID)
	if err != nil {
		return nil, err
	}

	key := rewardKey(tenantID, id)
	if rewards, ok := s.rewardCache.Get(key); ok {
		return rewards, nil
	}

	rewards, err := s.repo.ActiveRewards(ctx, s.db, tenantID, id)
	if err != nil {
		return nil, err
	}
	s.rewardCache.Set(key, rewards, s.cacheTTL)
	return rewards, nil
}

func (s *Service) ListRewards(ctx context.Context, req domain.ListRewardsRequest) ([]domain.Reward, error) {
	tenantID, ok := tenantcontext.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return nil, domain.ErrInvalidTenant
	}

	var rarityID snowflake.ID
	if strings.TrimSpace(req.RarityID) != "" {
		id, err := parseID(req.RarityID)
		if err != nil {
			return nil, err
		}
		rarityID = id
	}
	return s.repo.ListRewards(ctx, s.db, tenantID, rarityID)
}

// SaveTierWeights replaces the weight rows for one credit tier: rows
// absent from the request are deactivated, so the stored active set is
// exactly the submitted one. Active rows must sum to exactly 100 on
// each track.
func (s *Service) SaveTierWeights(ctx context.Context, req domain.SaveTierWeightsRequest) error {
	tenantID, ok := tenantcontext.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return domain.ErrInvalidTenant
	}
	if req.CreditTier < 1 || req.CreditTier > 3 {
		return domain.ErrInvalidTier
	}
	if err := validateWeightSums(req.Rows); err != nil {
		return err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		keep := make([]snowflake.ID, 0, len(req.Rows))
		for _, row := range req.Rows {
			rarityID, err := parseID(row.ID)
			if err != nil {
				return err
			}
			rarity, err := s.repo.FindRarityByID(ctx, tx, rarityID)
			if err != nil {
				return err
			}
			if rarity == nil {
				return domain.ErrRarityNotFound
			}
			if err := s.repo.UpsertTierWeight(ctx, tx, &domain.TierRarityWeight{
				ID:                 s.genID.Generate(),
				TenantID:           tenantID,
				CreditTier:         req.CreditTier,
				RarityID:           rarityID,
				IsActive:           row.IsActive,
				RealProbability:    row.Real,
				GimmickProbability: row.Gimmick,
				UpdatedAt:          now,
			}); err != nil {
				return err
			}
			keep = append(keep, rarityID)
		}
		return s.repo.DeactivateTierWeightsExcept(ctx, tx, tenantID, req.CreditTier, keep)
	})
	if err != nil {
		return err
	}

	s.tierCache.Delete(tierKey(tenantID, req.CreditTier))
	s.log.Info("tier weights saved",
		zap.String("tenant_id", tenantID.String()),
		zap.Int("credit_tier", req.CreditTier),
		zap.Int("rows", len(req.Rows)),
	)
	return nil
}

// SaveRewardWeights replaces the weights of a rarity's rewards. Rewards
// absent from the request are deactivated, so the stored active set is
// exactly the submitted one. Active rows must sum to exactly 100 on
// each track.
func (s *Service) SaveRewardWeights(ctx context.Context, req domain.SaveRewardWeightsRequest) error {
	tenantID, ok := tenantcontext.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return domain.ErrInvalidTenant
	}
	rarityID, err := parseID(req.RarityID)
	if err != nil {
		return err
	}
	if err := validateWeightSums(req.Rows); err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		keep := make([]snowflake.ID, 0, len(req.Rows))
		for _, row := range req.Rows {
			rewardID, err := parseID(row.ID)
			if err != nil {
				return err
			}
			reward, err := s.repo.FindRewardByID(ctx, tx, tenantID, rewardID)
			if err != nil {
				return err
			}
			if reward == nil || reward.RarityID != rarityID {
				return domain.ErrRewardNotFound
			}
			if err := s.repo.UpdateRewardWeights(ctx, tx, tenantID, rewardID, row.IsActive, row.Real, row.Gimmick); err != nil {
				return err
			}
			keep = append(keep, rewardID)
		}
		return s.repo.DeactivateRewardsExcept(ctx, tx, tenantID, rarityID, keep)
	})
	if err != nil {
		return err
	}

	s.rewardCache.Delete(rewardKey(tenantID, rarityID))
	s.log.Info("reward weights saved",
		zap.String("tenant_id", tenantID.String()),
		zap.String("rarity_id", rarityID.String()),
		zap.Int("rows", len(req.Rows)),
	)
	return nil
}

// CreateReward adds a reward with zero weights on both tracks so the
// sum invariant of the existing rows keeps holding; operators assign
// weights afterwards via SaveRewardWeights.
func (s *Service) CreateReward(ctx context.Context, req domain.CreateRewardRequest) (domain.Reward, error) {
	tenantID, ok := tenantcontext.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return domain.Reward{}, domain.ErrInvalidTenant
	}

	rarityID, err := parseID(req.RarityID)
	if err != nil {
		return domain.Reward{}, err
	}
	label := strings.TrimSpace(req.Label)
	if label == "" {
		return domain.Reward{}, domain.ErrInvalidLabel
	}
	switch req.RewardType {
	case domain.RewardTypeCash:
		if req.Amount <= 0 {
			return domain.Reward{}, domain.ErrInvalidAmount
		}
	case domain.RewardTypeItem:
		if req.Amount < 0 {
			return domain.Reward{}, domain.ErrInvalidAmount
		}
	default:
		return domain.Reward{}, domain.ErrInvalidRewardType
	}

	rarity, err := s.repo.FindRarityByID(ctx, s.db, rarityID)
	if err != nil {
		return domain.Reward{}, err
	}
	if rarity == nil {
		return domain.Reward{}, domain.ErrRarityNotFound
	}

	now := time.Now().UTC()
	reward := domain.Reward{
		ID:         s.genID.Generate(),
		TenantID:   tenantID,
		RarityID:   rarityID,
		Label:      label,
		RewardType: req.RewardType,
		Amount:     req.Amount,
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.InsertReward(ctx, s.db, &reward); err != nil {
		return domain.Reward{}, err
	}

	s.rewardCache.Delete(rewardKey(tenantID, rarityID))
	return reward, nil
}

func (s *Service) UpdateReward(ctx context.Context, req domain.UpdateRewardRequest) (domain.Reward, error) {
	tenantID, ok := tenantcontext.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return domain.Reward{}, domain.ErrInvalidTenant
	}
	id, err := parseID(req.ID)
	if err != nil {
		return domain.Reward{}, err
	}

	reward, err := s.repo.FindRewardByID(ctx, s.db, tenantID, id)
	if err != nil {
		return domain.Reward{}, err
	}
	if reward == nil {
		return domain.Reward{}, domain.ErrRewardNotFound
	}

	if req.Label != nil {
		label := strings.TrimSpace(*req.Label)
		if label == "" {
			return domain.Reward{}, domain.ErrInvalidLabel
		}
		reward.Label = label
	}
	if req.Amount != nil {
		if reward.RewardType == domain.RewardTypeCash && *req.Amount <= 0 {
			return domain.Reward{}, domain.ErrInvalidAmount
		}
		if *req.Amount < 0 {
			return domain.Reward{}, domain.ErrInvalidAmount
		}
		reward.Amount = *req.Amount
	}
	if req.IsActive != nil {
		reward.IsActive = *req.IsActive
	}
	reward.UpdatedAt = time.Now().UTC()

	if err := s.repo.UpdateReward(ctx, s.db, reward); err != nil {
		return domain.Reward{}, err
	}

	s.rewardCache.Delete(rewardKey(tenantID, reward.RarityID))
	return *reward, nil
}

// validateWeightSums enforces the save-time invariant: per-row weights
// within 0..100, no id submitted twice (a repeated id would validate
// as two rows but collapse into one stored row) and active rows
// summing to exactly 100 on each track.
func validateWeightSums(rows []domain.WeightInput) error {
	var real, gimmick int
	seen := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		id := strings.TrimSpace(row.ID)
		if _, dup := seen[id]; dup {
			return domain.ErrDuplicateRow
		}
		seen[id] = struct{}{}
		if row.Real < 0 || row.Real > 100 || row.Gimmick < 0 || row.Gimmick > 100 {
			return domain.ErrInvalidWeight
		}
		if !row.IsActive {
			continue
		}
		real += row.Real
		gimmick += row.Gimmick
	}
	if real != 100 || gimmick != 100 {
		return domain.ErrConfigurationInvariant
	}
	return nil
}

func tierKey(tenantID snowflake.ID, creditTier int) string {
	return fmt.Sprintf("tw:%d:%d", tenantID, creditTier)
}

func rewardKey(tenantID, rarityID snowflake.ID) string {
	return fmt.Sprintf("rw:%d:%d", tenantID, rarityID)
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
