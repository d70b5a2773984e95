package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/duniafantasy/fantasybox/internal/box/domain"
	"github.com/duniafantasy/fantasybox/internal/clock"
	ledgerdomain "github.com/duniafantasy/fantasybox/internal/ledger/domain"
	obsmetrics "github.com/duniafantasy/fantasybox/internal/observability/metrics"
	probability "github.com/duniafantasy/fantasybox/internal/probability/domain"
	"github.com/duniafantasy/fantasybox/internal/probability/selector"
	"github.com/duniafantasy/fantasybox/internal/tenantcontext"
	"github.com/duniafantasy/fantasybox/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Repo        domain.Repository
	Ledger      ledgerdomain.Service
	Probability probability.Service
	Metrics     *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	repo        domain.Repository
	ledger      ledgerdomain.Service
	probability probability.Service
	metrics     *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("box.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		repo:        p.Repo,
		ledger:      p.Ledger,
		probability: p.Probability,
		metrics:     p.Metrics,
	}
}

// Purchase debits the member by the tier cost, draws a rarity on the
// requested track and creates a PURCHASED transaction, all in one
// database transaction. A failed draw rolls the debit back.
func (s *Service) Purchase(ctx context.Context, req domain.PurchaseRequest) (domain.PurchaseResult, error) {
	tenantID, ok := tenantcontext.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return domain.PurchaseResult{}, domain.ErrInvalidTenant
	}
	memberID, err := parseID(req.MemberID, domain.ErrInvalidMember)
	if err != nil {
		return domain.PurchaseResult{}, err
	}
	if req.CreditTier < 1 || req.CreditTier > 3 {
		return domain.PurchaseResult{}, domain.ErrInvalidTier
	}
	track, err := probability.ParseTrack(req.Track)
	if err != nil {
		return domain.PurchaseResult{}, err
	}

	weights, err := s.probability.TierWeights(ctx, req.CreditTier)
	if err != nil {
		return domain.PurchaseResult{}, err
	}

	// Tier eligibility: tier 1 offers every rarity, tier 2 drops COMMON,
	// tier 3 drops COMMON and RARE. Encoded by the rarity sort order.
	byRarity := make(map[snowflake.ID]probability.TierWeightView, len(weights))
	candidates := make([]selector.Candidate, 0, len(weights))
	for _, w := range weights {
		if !w.IsActive || w.SortOrder < req.CreditTier {
			continue
		}
		byRarity[w.RarityID] = w
		candidates = append(candidates, selector.Candidate{
			ID:     w.RarityID,
			Weight: int64(w.Weight(track)),
		})
	}

	now := s.clock.Now()
	cost := int64(req.CreditTier)

	var (
		boxTx domain.BoxTransaction
		entry ledgerdomain.CreditLedgerEntry
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		applied, err := s.ledger.ApplyDeltaTx(ctx, tx, ledgerdomain.ApplyDeltaRequest{
			MemberID:    memberID,
			Delta:       -cost,
			Kind:        ledgerdomain.KindBoxPurchase,
			Description: fmt.Sprintf("box purchase tier %d", req.CreditTier),
		})
		if err != nil {
			return err
		}
		entry = applied

		rarityID, err := selector.Draw(candidates)
		if err != nil {
			return err
		}

		boxTx = domain.BoxTransaction{
			ID:          s.genID.Generate(),
			TenantID:    tenantID,
			MemberID:    memberID,
			CreditTier:  req.CreditTier,
			CreditSpent: cost,
			Track:       track,
			Status:      domain.StatusPurchased,
			RarityID:    rarityID,
			ExpiresAt:   now.Add(domain.BoxTTL),
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		return s.repo.Insert(ctx, tx, &boxTx)
	})
	if err != nil {
		return domain.PurchaseResult{}, err
	}

	if s.metrics != nil {
		s.metrics.RecordPurchase(req.CreditTier)
	}

	rarity := byRarity[boxTx.RarityID]
	s.log.Info("box purchased",
		zap.String("transaction_id", boxTx.ID.String()),
		zap.String("member_id", memberID.String()),
		zap.Int("credit_tier", req.CreditTier),
		zap.String("rarity_code", string(rarity.RarityCode)),
	)
	return domain.PurchaseResult{
		TransactionID: boxTx.ID.String(),
		Status:        boxTx.Status,
		CreditTier:    boxTx.CreditTier,
		CreditSpent:   boxTx.CreditSpent,
		Track:         string(track),
		RarityID:      boxTx.RarityID.String(),
		RarityCode:    string(rarity.RarityCode),
		RarityName:    rarity.RarityName,
		CreditsBefore: entry.BalanceAfter - entry.Delta,
		CreditsAfter:  entry.BalanceAfter,
		ExpiresAt:     boxTx.ExpiresAt,
	}, nil
}

// Open binds a reward to a PURCHASED transaction at most once. An
// overdue box is moved to EXPIRED and reported as such; the expiry
// transition commits even though the call fails.
func (s *Service) Open(ctx context.Context, req domain.OpenRequest) (domain.OpenResult, error) {
	tenantID, ok := tenantcontext.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return domain.OpenResult{}, domain.ErrInvalidTenant
	}
	memberID, err := parseID(req.MemberID, domain.ErrInvalidMember)
	if err != nil {
		return domain.OpenResult{}, err
	}
	txID, err := parseID(req.TransactionID, domain.ErrInvalidID)
	if err != nil {
		return domain.OpenResult{}, err
	}

	now := s.clock.Now()

	peek, err := s.repo.FindByID(ctx, s.db, tenantID, txID)
	if err != nil {
		return domain.OpenResult{}, err
	}
	if peek == nil {
		return domain.OpenResult{}, domain.ErrNotFound
	}
	if peek.MemberID != memberID {
		return domain.OpenResult{}, domain.ErrWrongOwner
	}
	if peek.Status != domain.StatusPurchased {
		return domain.OpenResult{}, domain.ErrAlreadyFinalized
	}

	// Reward candidates are loaded before the transaction starts: the
	// rarity binding is immutable after purchase, and a cache miss while
	// the row lock is held would pin a second pool connection.
	var (
		byID       map[snowflake.ID]probability.Reward
		candidates []selector.Candidate
		rarityCode string
		rarityName string
	)
	if !peek.Expired(now) {
		rewards, err := s.probability.ActiveRewards(ctx, peek.RarityID.String())
		if err != nil {
			return domain.OpenResult{}, err
		}
		byID = make(map[snowflake.ID]probability.Reward, len(rewards))
		candidates = make([]selector.Candidate, 0, len(rewards))
		for _, reward := range rewards {
			byID[reward.ID] = reward
			candidates = append(candidates, selector.Candidate{
				ID:     reward.ID,
				Weight: int64(reward.Weight(peek.Track)),
			})
		}
		rarities, err := s.probability.ListRarities(ctx)
		if err != nil {
			return domain.OpenResult{}, err
		}
		for _, r := range rarities {
			if r.ID == peek.RarityID {
				rarityCode, rarityName = string(r.Code), r.Name
				break
			}
		}
	}

	var (
		rewardID    snowflake.ID
		lazyExpired bool
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		boxTx, err := s.repo.FindByIDForUpdate(ctx, tx, tenantID, txID)
		if err != nil {
			return err
		}
		if boxTx == nil {
			return domain.ErrNotFound
		}
		if boxTx.MemberID != memberID {
			return domain.ErrWrongOwner
		}
		if boxTx.Status != domain.StatusPurchased {
			return domain.ErrAlreadyFinalized
		}
		if boxTx.Expired(now) {
			// commit the expiry even though the open fails
			if _, err := s.repo.MarkExpired(ctx, tx, tenantID, txID, now); err != nil {
				return err
			}
			lazyExpired = true
			return nil
		}

		drawn, err := selector.Draw(candidates)
		if err != nil {
			return err
		}
		updated, err := s.repo.MarkOpened(ctx, tx, tenantID, txID, drawn, now)
		if err != nil {
			return err
		}
		if !updated {
			return domain.ErrAlreadyFinalized
		}
		rewardID = drawn
		return nil
	})
	if err != nil {
		return domain.OpenResult{}, err
	}
	if lazyExpired {
		if s.metrics != nil {
			s.metrics.RecordExpired(1)
		}
		s.log.Info("box expired on open",
			zap.String("transaction_id", txID.String()),
			zap.String("member_id", memberID.String()),
		)
		return domain.OpenResult{}, domain.ErrExpired
	}

	if s.metrics != nil {
		s.metrics.RecordOpen()
	}
	reward := byID[rewardID]
	s.log.Info("box opened",
		zap.String("transaction_id", txID.String()),
		zap.String("member_id", memberID.String()),
		zap.String("reward_id", reward.ID.String()),
	)
	return domain.OpenResult{
		TransactionID: peek.ID.String(),
		Status:        domain.StatusOpened,
		RarityID:      peek.RarityID.String(),
		RarityCode:    rarityCode,
		RarityName:    rarityName,
		RewardID:      reward.ID.String(),
		RewardLabel:   reward.Label,
		RewardType:    string(reward.RewardType),
		RewardAmount:  reward.Amount,
		OpenedAt:      now,
		ExpiresAt:     peek.ExpiresAt,
	}, nil
}

func (s *Service) ListInventory(ctx context.Context, memberID string) ([]domain.InventoryItem, error) {
	tenantID, ok := tenantcontext.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return nil, domain.ErrInvalidTenant
	}
	id, err := parseID(memberID, domain.ErrInvalidMember)
	if err != nil {
		return nil, err
	}
	return s.repo.ListInventory(ctx, s.db, tenantID, id, s.clock.Now())
}

func (s *Service) ListTransactions(ctx context.Context, req domain.ListTransactionsRequest) (domain.ListTransactionsResponse, error) {
	tenantID, ok := tenantcontext.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return domain.ListTransactionsResponse{}, domain.ErrInvalidTenant
	}

	var filter domain.ListHistoryFilter
	if memberID := strings.TrimSpace(req.MemberID); memberID != "" {
		id, err := parseID(memberID, domain.ErrInvalidMember)
		if err != nil {
			return domain.ListTransactionsResponse{}, err
		}
		filter.MemberID = id
	}
	if status := strings.TrimSpace(req.Status); status != "" {
		switch domain.Status(status) {
		case domain.StatusPurchased, domain.StatusOpened, domain.StatusExpired:
			filter.Status = domain.Status(status)
		default:
			return domain.ListTransactionsResponse{}, domain.ErrInvalidID
		}
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	rows, err := s.repo.ListHistory(ctx, s.db, tenantID, filter, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  pageSize,
	})
	if err != nil {
		return domain.ListTransactionsResponse{}, err
	}

	ptrs := make([]*domain.HistoryRow, len(rows))
	for i := range rows {
		ptrs[i] = &rows[i]
	}
	pageInfo := pagination.BuildCursorPageInfo(ptrs, pageSize, func(row *domain.HistoryRow) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        row.ID.String(),
			CreatedAt: row.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(rows) > pageSize {
		rows = rows[:pageSize]
	}

	resp := domain.ListTransactionsResponse{Transactions: rows}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

// SetProcessed toggles the staff annotation on an OPENED transaction.
// It is not a state transition and may be flipped repeatedly.
func (s *Service) SetProcessed(ctx context.Context, req domain.SetProcessedRequest) (domain.HistoryRow, error) {
	tenantID, ok := tenantcontext.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return domain.HistoryRow{}, domain.ErrInvalidTenant
	}
	txID, err := parseID(req.TransactionID, domain.ErrInvalidID)
	if err != nil {
		return domain.HistoryRow{}, err
	}

	boxTx, err := s.repo.FindByID(ctx, s.db, tenantID, txID)
	if err != nil {
		return domain.HistoryRow{}, err
	}
	if boxTx == nil {
		return domain.HistoryRow{}, domain.ErrNotFound
	}
	if boxTx.Status != domain.StatusOpened || boxTx.RewardID == nil {
		return domain.HistoryRow{}, domain.ErrNotOpened
	}

	var (
		by *snowflake.ID
		at *time.Time
	)
	if req.Processed {
		if actorID, ok := tenantcontext.ActorIDFromContext(ctx); ok && actorID != 0 {
			by = &actorID
		}
		now := s.clock.Now()
		at = &now
	}
	if err := s.repo.SetProcessed(ctx, s.db, tenantID, txID, req.Processed, by, at); err != nil {
		return domain.HistoryRow{}, err
	}

	row, err := s.repo.FindHistoryRow(ctx, s.db, tenantID, txID)
	if err != nil {
		return domain.HistoryRow{}, err
	}
	if row == nil {
		return domain.HistoryRow{}, domain.ErrNotFound
	}
	return *row, nil
}

// ExpireDue sweeps overdue PURCHASED transactions. Each row is flipped
// in its own guarded update, so a concurrent open losing the race is
// the only way a candidate is skipped.
func (s *Service) ExpireDue(ctx context.Context, now time.Time, limit int) (int, error) {
	if limit <= 0 {
		limit = 100
	}
	due, err := s.repo.DueForExpiry(ctx, s.db, now, limit)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, candidate := range due {
		changed, err := s.repo.MarkExpired(ctx, s.db, candidate.TenantID, candidate.ID, now)
		if err != nil {
			return expired, err
		}
		if changed {
			expired++
		}
	}
	if expired > 0 && s.metrics != nil {
		s.metrics.RecordExpired(expired)
	}
	return expired, nil
}

func parseID(value string, invalid error) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, invalid
	}
	return id, nil
}
