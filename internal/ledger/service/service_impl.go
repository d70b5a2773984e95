package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/duniafantasy/fantasybox/internal/ledger/domain"
	memberdomain "github.com/duniafantasy/fantasybox/internal/member/domain"
	obsmetrics "github.com/duniafantasy/fantasybox/internal/observability/metrics"
	"github.com/duniafantasy/fantasybox/internal/tenantcontext"
	"github.com/duniafantasy/fantasybox/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	MemberRepo memberdomain.Repository
	Metrics    *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	memberRepo memberdomain.Repository
	metrics    *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("ledger.service"),
		genID:      p.GenID,
		memberRepo: p.MemberRepo,
		metrics:    p.Metrics,
	}
}

// ApplyDelta mutates a member balance in its own transaction.
func (s *Service) ApplyDelta(ctx context.Context, req domain.ApplyDeltaRequest) (domain.CreditLedgerEntry, error) {
	var entry domain.CreditLedgerEntry
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		applied, err := s.ApplyDeltaTx(ctx, tx, req)
		if err != nil {
			return err
		}
		entry = applied
		return nil
	})
	if err != nil {
		return domain.CreditLedgerEntry{}, err
	}
	return entry, nil
}

// ApplyDeltaTx mutates a member balance inside the caller's transaction.
// The member row lock serializes concurrent mutations for the same member;
// different members never contend.
func (s *Service) ApplyDeltaTx(ctx context.Context, tx *gorm.DB, req domain.ApplyDeltaRequest) (domain.CreditLedgerEntry, error) {
	tenantID, ok := tenantcontext.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return domain.CreditLedgerEntry{}, domain.ErrInvalidTenant
	}
	if req.MemberID == 0 {
		return domain.CreditLedgerEntry{}, domain.ErrInvalidMember
	}
	if !req.Kind.Valid() {
		return domain.CreditLedgerEntry{}, domain.ErrInvalidKind
	}

	member, err := s.memberRepo.FindByIDForUpdate(ctx, tx, tenantID, req.MemberID)
	if err != nil {
		return domain.CreditLedgerEntry{}, err
	}
	if member == nil {
		return domain.CreditLedgerEntry{}, domain.ErrMemberNotFound
	}

	newBalance := member.CreditBalance + req.Delta
	if newBalance < 0 {
		return domain.CreditLedgerEntry{}, domain.ErrInsufficientBalance
	}

	entry := domain.CreditLedgerEntry{
		ID:           s.genID.Generate(),
		TenantID:     tenantID,
		MemberID:     member.ID,
		Delta:        req.Delta,
		BalanceAfter: newBalance,
		Kind:         req.Kind,
		Description:  strings.TrimSpace(req.Description),
		CreatedBy:    req.CreatedBy,
		CreatedAt:    time.Now().UTC(),
	}
	if err := tx.WithContext(ctx).Create(&entry).Error; err != nil {
		return domain.CreditLedgerEntry{}, err
	}

	if err := s.memberRepo.UpdateBalance(ctx, tx, member.ID, newBalance); err != nil {
		return domain.CreditLedgerEntry{}, err
	}

	if s.metrics != nil {
		s.metrics.RecordLedgerEntry(string(req.Kind))
	}
	return entry, nil
}

// Topup credits a member balance. Amount must be positive; the sign is
// fixed by the operation.
func (s *Service) Topup(ctx context.Context, req domain.TopupRequest) (domain.AdjustResult, error) {
	memberID, err := parseMemberID(req.MemberID)
	if err != nil {
		return domain.AdjustResult{}, err
	}
	if req.Amount <= 0 {
		return domain.AdjustResult{}, domain.ErrInvalidAmount
	}

	entry, err := s.ApplyDelta(ctx, domain.ApplyDeltaRequest{
		MemberID:    memberID,
		Delta:       req.Amount,
		Kind:        domain.KindTopup,
		Description: req.Description,
		CreatedBy:   actorFrom(ctx),
	})
	if err != nil {
		return domain.AdjustResult{}, err
	}

	s.log.Info("credit topup applied",
		zap.String("member_id", memberID.String()),
		zap.Int64("amount", req.Amount),
		zap.Int64("balance_after", entry.BalanceAfter),
	)
	return domain.AdjustResult{NewBalance: entry.BalanceAfter, Entry: entry}, nil
}

// AdjustDown debits a member balance. Propagates ErrInsufficientBalance
// rather than allowing a negative result.
func (s *Service) AdjustDown(ctx context.Context, req domain.AdjustDownRequest) (domain.AdjustResult, error) {
	memberID, err := parseMemberID(req.MemberID)
	if err != nil {
		return domain.AdjustResult{}, err
	}
	if req.Amount <= 0 {
		return domain.AdjustResult{}, domain.ErrInvalidAmount
	}

	entry, err := s.ApplyDelta(ctx, domain.ApplyDeltaRequest{
		MemberID:    memberID,
		Delta:       -req.Amount,
		Kind:        domain.KindAdjustment,
		Description: req.Description,
		CreatedBy:   actorFrom(ctx),
	})
	if err != nil {
		return domain.AdjustResult{}, err
	}

	s.log.Info("credit adjustment applied",
		zap.String("member_id", memberID.String()),
		zap.Int64("amount", req.Amount),
		zap.Int64("balance_after", entry.BalanceAfter),
	)
	return domain.AdjustResult{NewBalance: entry.BalanceAfter, Entry: entry}, nil
}

func (s *Service) List(ctx context.Context, req domain.ListEntriesRequest) (domain.ListEntriesResponse, error) {
	tenantID, ok := tenantcontext.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return domain.ListEntriesResponse{}, domain.ErrInvalidTenant
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	stmt := s.db.WithContext(ctx).
		Model(&domain.CreditLedgerEntry{}).
		Where("tenant_id = ?", tenantID)
	if memberID := strings.TrimSpace(req.MemberID); memberID != "" {
		id, err := snowflake.ParseString(memberID)
		if err != nil {
			return domain.ListEntriesResponse{}, domain.ErrInvalidMember
		}
		stmt = stmt.Where("member_id = ?", id)
	}
	if kind := strings.TrimSpace(req.Kind); kind != "" {
		if !domain.EntryKind(kind).Valid() {
			return domain.ListEntriesResponse{}, domain.ErrInvalidKind
		}
		stmt = stmt.Where("kind = ?", kind)
	}
	if req.PageToken != "" {
		cursor, err := pagination.DecodeCursor(req.PageToken)
		if err == nil && cursor.ID != "" {
			stmt = stmt.Where("id < ?", cursor.ID)
		}
	}

	var items []*domain.CreditLedgerEntry
	if err := stmt.
		Order("created_at desc, id desc").
		Limit(pageSize + 1).
		Find(&items).Error; err != nil {
		return domain.ListEntriesResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(entry *domain.CreditLedgerEntry) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        entry.ID.String(),
			CreatedAt: entry.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > pageSize {
		items = items[:pageSize]
	}

	entries := make([]domain.CreditLedgerEntry, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		entries = append(entries, *item)
	}

	resp := domain.ListEntriesResponse{Entries: entries}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func parseMemberID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidMember
	}
	return id, nil
}

func actorFrom(ctx context.Context) *snowflake.ID {
	actorID, ok := tenantcontext.ActorIDFromContext(ctx)
	if !ok || actorID == 0 {
		return nil
	}
	return &actorID
}
