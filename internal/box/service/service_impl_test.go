package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/duniafantasy/fantasybox/internal/box/domain"
	boxrepository "github.com/duniafantasy/fantasybox/internal/box/repository"
	"github.com/duniafantasy/fantasybox/internal/clock"
	"github.com/duniafantasy/fantasybox/internal/config"
	ledgerdomain "github.com/duniafantasy/fantasybox/internal/ledger/domain"
	ledgerservice "github.com/duniafantasy/fantasybox/internal/ledger/service"
	memberdomain "github.com/duniafantasy/fantasybox/internal/member/domain"
	memberrepository "github.com/duniafantasy/fantasybox/internal/member/repository"
	probabilitydomain "github.com/duniafantasy/fantasybox/internal/probability/domain"
	probabilityrepository "github.com/duniafantasy/fantasybox/internal/probability/repository"
	probabilityservice "github.com/duniafantasy/fantasybox/internal/probability/service"
	"github.com/duniafantasy/fantasybox/internal/probability/selector"
	"github.com/duniafantasy/fantasybox/internal/tenantcontext"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type boxFixture struct {
	db       *gorm.DB
	node     *snowflake.Node
	clock    *clock.FakeClock
	svc      domain.Service
	tenantID snowflake.ID
	ctx      context.Context
	epic     probabilitydomain.Rarity
	reward   probabilitydomain.Reward
}

func newBoxFixture(t *testing.T) *boxFixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&memberdomain.Member{},
		&ledgerdomain.CreditLedgerEntry{},
		&probabilitydomain.Rarity{},
		&probabilitydomain.Reward{},
		&probabilitydomain.TierRarityWeight{},
		&domain.BoxTransaction{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fakeClock := clock.NewFakeClock(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))

	ledgerSvc := ledgerservice.New(ledgerservice.Params{
		DB:         db,
		Log:        zap.NewNop(),
		GenID:      node,
		MemberRepo: memberrepository.Provide(),
	})
	probabilitySvc := probabilityservice.New(probabilityservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		Cfg:   config.Config{WeightCacheTTL: time.Millisecond},
		GenID: node,
		Repo:  probabilityrepository.Provide(),
	})
	svc := New(Params{
		DB:          db,
		Log:         zap.NewNop(),
		GenID:       node,
		Clock:       fakeClock,
		Repo:        boxrepository.Provide(),
		Ledger:      ledgerSvc,
		Probability: probabilitySvc,
	})

	tenantID := node.Generate()
	f := &boxFixture{
		db:       db,
		node:     node,
		clock:    fakeClock,
		svc:      svc,
		tenantID: tenantID,
		ctx:      tenantcontext.WithTenantID(context.Background(), tenantID),
	}

	// One eligible rarity with one active reward keeps draws deterministic.
	f.epic = probabilitydomain.Rarity{
		ID:        node.Generate(),
		Code:      probabilitydomain.RarityEpic,
		Name:      "Epic",
		SortOrder: 3,
	}
	require.NoError(t, db.Create(&f.epic).Error)
	f.reward = probabilitydomain.Reward{
		ID:                 node.Generate(),
		TenantID:           tenantID,
		RarityID:           f.epic.ID,
		Label:              "Epic Cash Prize",
		RewardType:         probabilitydomain.RewardTypeCash,
		Amount:             50000,
		IsActive:           true,
		RealProbability:    100,
		GimmickProbability: 100,
	}
	require.NoError(t, db.Create(&f.reward).Error)
	return f
}

func (f *boxFixture) configureTier(t *testing.T, tier int) {
	t.Helper()
	require.NoError(t, f.db.Create(&probabilitydomain.TierRarityWeight{
		ID:                 f.node.Generate(),
		TenantID:           f.tenantID,
		CreditTier:         tier,
		RarityID:           f.epic.ID,
		IsActive:           true,
		RealProbability:    100,
		GimmickProbability: 100,
	}).Error)
}

func (f *boxFixture) seedMember(t *testing.T, username string, balance int64) memberdomain.Member {
	t.Helper()
	member := memberdomain.Member{
		ID:            f.node.Generate(),
		TenantID:      f.tenantID,
		Username:      username,
		Role:          memberdomain.RoleMember,
		CreditBalance: balance,
	}
	require.NoError(t, f.db.Create(&member).Error)
	return member
}

func (f *boxFixture) balance(t *testing.T, id snowflake.ID) int64 {
	t.Helper()
	var member memberdomain.Member
	require.NoError(t, f.db.First(&member, "id = ?", id).Error)
	return member.CreditBalance
}

func TestPurchaseDebitsAndDraws(t *testing.T) {
	f := newBoxFixture(t)
	f.configureTier(t, 3)
	member := f.seedMember(t, "andi", 5)

	result, err := f.svc.Purchase(f.ctx, domain.PurchaseRequest{
		MemberID:   member.ID.String(),
		CreditTier: 3,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusPurchased, result.Status)
	assert.Equal(t, int64(3), result.CreditSpent)
	assert.Equal(t, int64(5), result.CreditsBefore)
	assert.Equal(t, int64(2), result.CreditsAfter)
	assert.Equal(t, string(probabilitydomain.RarityEpic), result.RarityCode)
	assert.Equal(t, "real", result.Track)
	assert.Equal(t, f.clock.Now().Add(domain.BoxTTL), result.ExpiresAt)

	assert.Equal(t, int64(2), f.balance(t, member.ID))

	var entry ledgerdomain.CreditLedgerEntry
	require.NoError(t, f.db.First(&entry, "member_id = ?", member.ID).Error)
	assert.Equal(t, ledgerdomain.KindBoxPurchase, entry.Kind)
	assert.Equal(t, int64(-3), entry.Delta)
	assert.Equal(t, int64(2), entry.BalanceAfter)
}

func TestPurchaseTierValidation(t *testing.T) {
	f := newBoxFixture(t)
	member := f.seedMember(t, "budi", 10)

	for _, tier := range []int{0, 4, -1} {
		_, err := f.svc.Purchase(f.ctx, domain.PurchaseRequest{
			MemberID:   member.ID.String(),
			CreditTier: tier,
		})
		require.ErrorIs(t, err, domain.ErrInvalidTier, "tier %d", tier)
	}

	_, err := f.svc.Purchase(f.ctx, domain.PurchaseRequest{
		MemberID:   member.ID.String(),
		CreditTier: 1,
		Track:      "imaginary",
	})
	require.ErrorIs(t, err, probabilitydomain.ErrInvalidTrack)
}

func TestPurchaseInsufficientBalance(t *testing.T) {
	f := newBoxFixture(t)
	f.configureTier(t, 2)
	member := f.seedMember(t, "cici", 1)

	_, err := f.svc.Purchase(f.ctx, domain.PurchaseRequest{
		MemberID:   member.ID.String(),
		CreditTier: 2,
	})
	require.ErrorIs(t, err, ledgerdomain.ErrInsufficientBalance)

	assert.Equal(t, int64(1), f.balance(t, member.ID))
	var count int64
	require.NoError(t, f.db.Model(&domain.BoxTransaction{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestPurchaseWithoutCandidatesRollsBackDebit(t *testing.T) {
	f := newBoxFixture(t)
	// no tier weights configured at all
	member := f.seedMember(t, "dedi", 5)

	_, err := f.svc.Purchase(f.ctx, domain.PurchaseRequest{
		MemberID:   member.ID.String(),
		CreditTier: 1,
	})
	require.ErrorIs(t, err, selector.ErrNoEligibleCandidates)

	assert.Equal(t, int64(5), f.balance(t, member.ID), "debit must roll back with the failed draw")
	var entries int64
	require.NoError(t, f.db.Model(&ledgerdomain.CreditLedgerEntry{}).Count(&entries).Error)
	assert.Zero(t, entries)
}

func TestOpenBindsRewardExactlyOnce(t *testing.T) {
	f := newBoxFixture(t)
	f.configureTier(t, 1)
	member := f.seedMember(t, "eka", 3)

	purchased, err := f.svc.Purchase(f.ctx, domain.PurchaseRequest{
		MemberID:   member.ID.String(),
		CreditTier: 1,
	})
	require.NoError(t, err)

	opened, err := f.svc.Open(f.ctx, domain.OpenRequest{
		MemberID:      member.ID.String(),
		TransactionID: purchased.TransactionID,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOpened, opened.Status)
	assert.Equal(t, f.reward.ID.String(), opened.RewardID)
	assert.Equal(t, "Epic Cash Prize", opened.RewardLabel)
	assert.Equal(t, int64(50000), opened.RewardAmount)
	assert.Equal(t, f.clock.Now(), opened.OpenedAt)

	_, err = f.svc.Open(f.ctx, domain.OpenRequest{
		MemberID:      member.ID.String(),
		TransactionID: purchased.TransactionID,
	})
	require.ErrorIs(t, err, domain.ErrAlreadyFinalized)
}

func TestOpenForeignTransaction(t *testing.T) {
	f := newBoxFixture(t)
	f.configureTier(t, 1)
	owner := f.seedMember(t, "owner", 3)
	intruder := f.seedMember(t, "intruder", 0)

	purchased, err := f.svc.Purchase(f.ctx, domain.PurchaseRequest{
		MemberID:   owner.ID.String(),
		CreditTier: 1,
	})
	require.NoError(t, err)

	_, err = f.svc.Open(f.ctx, domain.OpenRequest{
		MemberID:      intruder.ID.String(),
		TransactionID: purchased.TransactionID,
	})
	require.ErrorIs(t, err, domain.ErrWrongOwner)

	_, err = f.svc.Open(f.ctx, domain.OpenRequest{
		MemberID:      owner.ID.String(),
		TransactionID: f.node.Generate().String(),
	})
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestOpenAtExactExpiryIsExpired(t *testing.T) {
	f := newBoxFixture(t)
	f.configureTier(t, 1)
	member := f.seedMember(t, "fani", 3)

	purchased, err := f.svc.Purchase(f.ctx, domain.PurchaseRequest{
		MemberID:   member.ID.String(),
		CreditTier: 1,
	})
	require.NoError(t, err)

	// now == expires_at counts as expired
	f.clock.Advance(domain.BoxTTL)
	_, err = f.svc.Open(f.ctx, domain.OpenRequest{
		MemberID:      member.ID.String(),
		TransactionID: purchased.TransactionID,
	})
	require.ErrorIs(t, err, domain.ErrExpired)

	var boxTx domain.BoxTransaction
	require.NoError(t, f.db.First(&boxTx, "id = ?", mustID(t, purchased.TransactionID)).Error)
	assert.Equal(t, domain.StatusExpired, boxTx.Status, "lazy expiry must commit")

	_, err = f.svc.Open(f.ctx, domain.OpenRequest{
		MemberID:      member.ID.String(),
		TransactionID: purchased.TransactionID,
	})
	require.ErrorIs(t, err, domain.ErrAlreadyFinalized)
}

func TestExpireDueSweepsInBatches(t *testing.T) {
	f := newBoxFixture(t)
	f.configureTier(t, 1)
	member := f.seedMember(t, "gita", 3)

	for i := 0; i < 3; i++ {
		_, err := f.svc.Purchase(f.ctx, domain.PurchaseRequest{
			MemberID:   member.ID.String(),
			CreditTier: 1,
		})
		require.NoError(t, err)
	}

	f.clock.Advance(domain.BoxTTL + time.Second)

	expired, err := f.svc.ExpireDue(context.Background(), f.clock.Now(), 2)
	require.NoError(t, err)
	assert.Equal(t, 2, expired)

	expired, err = f.svc.ExpireDue(context.Background(), f.clock.Now(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	expired, err = f.svc.ExpireDue(context.Background(), f.clock.Now(), 10)
	require.NoError(t, err)
	assert.Zero(t, expired, "sweep must be idempotent")
}

func TestSetProcessedRequiresOpenedBox(t *testing.T) {
	f := newBoxFixture(t)
	f.configureTier(t, 1)
	member := f.seedMember(t, "hana", 3)
	staff := f.seedMember(t, "staff", 0)

	purchased, err := f.svc.Purchase(f.ctx, domain.PurchaseRequest{
		MemberID:   member.ID.String(),
		CreditTier: 1,
	})
	require.NoError(t, err)

	_, err = f.svc.SetProcessed(f.ctx, domain.SetProcessedRequest{
		TransactionID: purchased.TransactionID,
		Processed:     true,
	})
	require.ErrorIs(t, err, domain.ErrNotOpened)

	_, err = f.svc.Open(f.ctx, domain.OpenRequest{
		MemberID:      member.ID.String(),
		TransactionID: purchased.TransactionID,
	})
	require.NoError(t, err)

	staffCtx := tenantcontext.WithActorID(f.ctx, staff.ID)
	row, err := f.svc.SetProcessed(staffCtx, domain.SetProcessedRequest{
		TransactionID: purchased.TransactionID,
		Processed:     true,
	})
	require.NoError(t, err)
	assert.True(t, row.Processed)
	require.NotNil(t, row.ProcessedBy)
	assert.Equal(t, staff.ID, *row.ProcessedBy)
	require.NotNil(t, row.ProcessedAt)

	// the annotation is not a state transition and may be cleared
	row, err = f.svc.SetProcessed(staffCtx, domain.SetProcessedRequest{
		TransactionID: purchased.TransactionID,
		Processed:     false,
	})
	require.NoError(t, err)
	assert.False(t, row.Processed)
	assert.Nil(t, row.ProcessedBy)
}

func TestListTransactionsFilters(t *testing.T) {
	f := newBoxFixture(t)
	f.configureTier(t, 1)
	member := f.seedMember(t, "indra", 3)

	for i := 0; i < 2; i++ {
		_, err := f.svc.Purchase(f.ctx, domain.PurchaseRequest{
			MemberID:   member.ID.String(),
			CreditTier: 1,
		})
		require.NoError(t, err)
	}

	resp, err := f.svc.ListTransactions(f.ctx, domain.ListTransactionsRequest{
		MemberID: member.ID.String(),
		Status:   string(domain.StatusPurchased),
	})
	require.NoError(t, err)
	assert.Len(t, resp.Transactions, 2)
	for _, row := range resp.Transactions {
		assert.Equal(t, "indra", row.Username)
		assert.Equal(t, domain.StatusPurchased, row.Status)
	}

	_, err = f.svc.ListTransactions(f.ctx, domain.ListTransactionsRequest{Status: "SHIPPED"})
	require.Error(t, err)
}

func TestListInventorySkipsFinalizedAndOverdue(t *testing.T) {
	f := newBoxFixture(t)
	f.configureTier(t, 1)
	member := f.seedMember(t, "joko", 3)

	first, err := f.svc.Purchase(f.ctx, domain.PurchaseRequest{
		MemberID:   member.ID.String(),
		CreditTier: 1,
	})
	require.NoError(t, err)
	_, err = f.svc.Purchase(f.ctx, domain.PurchaseRequest{
		MemberID:   member.ID.String(),
		CreditTier: 1,
	})
	require.NoError(t, err)

	_, err = f.svc.Open(f.ctx, domain.OpenRequest{
		MemberID:      member.ID.String(),
		TransactionID: first.TransactionID,
	})
	require.NoError(t, err)

	items, err := f.svc.ListInventory(f.ctx, member.ID.String())
	require.NoError(t, err)
	assert.Len(t, items, 1)

	f.clock.Advance(domain.BoxTTL)
	items, err = f.svc.ListInventory(f.ctx, member.ID.String())
	require.NoError(t, err)
	assert.Empty(t, items, "overdue boxes leave the inventory even before the sweep")
}

func TestConcurrentPurchasesStopAtZeroBalance(t *testing.T) {
	f := newBoxFixture(t)
	f.configureTier(t, 1)
	member := f.seedMember(t, "karin", 3)

	// a single connection serializes the in-memory database the way row
	// locks do on postgres
	sqlDB, err := f.db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	const attempts = 4
	errs := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Purchase(f.ctx, domain.PurchaseRequest{
				MemberID:   member.ID.String(),
				CreditTier: 1,
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var succeeded, rejected int
	for err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ledgerdomain.ErrInsufficientBalance):
			rejected++
		default:
			t.Fatalf("unexpected purchase error: %v", err)
		}
	}
	assert.Equal(t, 3, succeeded)
	assert.Equal(t, 1, rejected)
	assert.Zero(t, f.balance(t, member.ID))

	var boxes int64
	require.NoError(t, f.db.Model(&domain.BoxTransaction{}).Count(&boxes).Error)
	assert.EqualValues(t, 3, boxes)
}

func TestConcurrentOpensFinalizeOnce(t *testing.T) {
	f := newBoxFixture(t)
	f.configureTier(t, 1)
	member := f.seedMember(t, "laras", 1)

	purchased, err := f.svc.Purchase(f.ctx, domain.PurchaseRequest{
		MemberID:   member.ID.String(),
		CreditTier: 1,
	})
	require.NoError(t, err)

	sqlDB, err := f.db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	const attempts = 4
	errs := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Open(f.ctx, domain.OpenRequest{
				MemberID:      member.ID.String(),
				TransactionID: purchased.TransactionID,
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var succeeded, finalized int
	for err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, domain.ErrAlreadyFinalized):
			finalized++
		default:
			t.Fatalf("unexpected open error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded, "exactly one open may bind a reward")
	assert.Equal(t, attempts-1, finalized)

	var boxTx domain.BoxTransaction
	require.NoError(t, f.db.First(&boxTx, "id = ?", mustID(t, purchased.TransactionID)).Error)
	assert.Equal(t, domain.StatusOpened, boxTx.Status)
	require.NotNil(t, boxTx.RewardID)
	assert.Equal(t, f.reward.ID, *boxTx.RewardID)
}

func mustID(t *testing.T, raw string) snowflake.ID {
	t.Helper()
	id, err := snowflake.ParseString(raw)
	require.NoError(t, err)
	return id
}
