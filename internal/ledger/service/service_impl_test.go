package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/duniafantasy/fantasybox/internal/ledger/domain"
	memberdomain "github.com/duniafantasy/fantasybox/internal/member/domain"
	memberrepository "github.com/duniafantasy/fantasybox/internal/member/repository"
	"github.com/duniafantasy/fantasybox/internal/tenantcontext"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ledgerFixture struct {
	db       *gorm.DB
	node     *snowflake.Node
	svc      domain.Service
	tenantID snowflake.ID
	ctx      context.Context
}

func newLedgerFixture(t *testing.T) *ledgerFixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&memberdomain.Member{},
		&domain.CreditLedgerEntry{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := New(Params{
		DB:         db,
		Log:        zap.NewNop(),
		GenID:      node,
		MemberRepo: memberrepository.Provide(),
	})

	tenantID := node.Generate()
	return &ledgerFixture{
		db:       db,
		node:     node,
		svc:      svc,
		tenantID: tenantID,
		ctx:      tenantcontext.WithTenantID(context.Background(), tenantID),
	}
}

func (f *ledgerFixture) seedMember(t *testing.T, username string, balance int64) memberdomain.Member {
	t.Helper()
	member := memberdomain.Member{
		ID:            f.node.Generate(),
		TenantID:      f.tenantID,
		Username:      username,
		Role:          memberdomain.RoleMember,
		CreditBalance: balance,
		CreatedAt:     time.Now().UTC(),
		UpdatedAt:     time.Now().UTC(),
	}
	require.NoError(t, f.db.Create(&member).Error)
	return member
}

func TestTopupThenAdjustDownKeepsBalanceChain(t *testing.T) {
	f := newLedgerFixture(t)
	member := f.seedMember(t, "andi", 0)

	topup, err := f.svc.Topup(f.ctx, domain.TopupRequest{
		MemberID: member.ID.String(),
		Amount:   5,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(5), topup.NewBalance)
	assert.Equal(t, int64(5), topup.Entry.Delta)
	assert.Equal(t, int64(5), topup.Entry.BalanceAfter)
	assert.Equal(t, domain.KindTopup, topup.Entry.Kind)

	down, err := f.svc.AdjustDown(f.ctx, domain.AdjustDownRequest{
		MemberID: member.ID.String(),
		Amount:   2,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), down.NewBalance)
	assert.Equal(t, int64(-2), down.Entry.Delta)
	assert.Equal(t, int64(3), down.Entry.BalanceAfter)
	assert.Equal(t, domain.KindAdjustment, down.Entry.Kind)

	var stored memberdomain.Member
	require.NoError(t, f.db.First(&stored, "id = ?", member.ID).Error)
	assert.Equal(t, int64(3), stored.CreditBalance)

	list, err := f.svc.List(f.ctx, domain.ListEntriesRequest{MemberID: member.ID.String()})
	require.NoError(t, err)
	require.Len(t, list.Entries, 2)
	// Newest first; every balance_after equals the previous plus delta.
	assert.Equal(t, int64(3), list.Entries[0].BalanceAfter)
	assert.Equal(t, int64(5), list.Entries[1].BalanceAfter)
	assert.Equal(t, list.Entries[1].BalanceAfter+list.Entries[0].Delta, list.Entries[0].BalanceAfter)
}

func TestAdjustDownBelowZeroIsRejected(t *testing.T) {
	f := newLedgerFixture(t)
	member := f.seedMember(t, "budi", 1)

	_, err := f.svc.AdjustDown(f.ctx, domain.AdjustDownRequest{
		MemberID: member.ID.String(),
		Amount:   2,
	})
	require.ErrorIs(t, err, domain.ErrInsufficientBalance)

	var stored memberdomain.Member
	require.NoError(t, f.db.First(&stored, "id = ?", member.ID).Error)
	assert.Equal(t, int64(1), stored.CreditBalance)

	var count int64
	require.NoError(t, f.db.Model(&domain.CreditLedgerEntry{}).Count(&count).Error)
	assert.Zero(t, count, "rejected adjustment must not leave a ledger row")
}

func TestApplyDeltaValidation(t *testing.T) {
	f := newLedgerFixture(t)
	member := f.seedMember(t, "cici", 0)

	_, err := f.svc.Topup(f.ctx, domain.TopupRequest{MemberID: member.ID.String(), Amount: 0})
	require.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = f.svc.Topup(f.ctx, domain.TopupRequest{MemberID: "not-a-number", Amount: 5})
	require.ErrorIs(t, err, domain.ErrInvalidMember)

	_, err = f.svc.Topup(f.ctx, domain.TopupRequest{MemberID: f.node.Generate().String(), Amount: 5})
	require.ErrorIs(t, err, domain.ErrMemberNotFound)

	_, err = f.svc.Topup(context.Background(), domain.TopupRequest{MemberID: member.ID.String(), Amount: 5})
	require.ErrorIs(t, err, domain.ErrInvalidTenant)

	_, err = f.svc.ApplyDelta(f.ctx, domain.ApplyDeltaRequest{
		MemberID: member.ID,
		Delta:    1,
		Kind:     domain.EntryKind("BOGUS"),
	})
	require.ErrorIs(t, err, domain.ErrInvalidKind)
}

func TestTopupRecordsActor(t *testing.T) {
	f := newLedgerFixture(t)
	member := f.seedMember(t, "dedi", 0)
	staff := f.seedMember(t, "staff", 0)

	ctx := tenantcontext.WithActorID(f.ctx, staff.ID)
	result, err := f.svc.Topup(ctx, domain.TopupRequest{
		MemberID:    member.ID.String(),
		Amount:      10,
		Description: "promo credit",
	})
	require.NoError(t, err)
	require.NotNil(t, result.Entry.CreatedBy)
	assert.Equal(t, staff.ID, *result.Entry.CreatedBy)
	assert.Equal(t, "promo credit", result.Entry.Description)
}

func TestListEntriesPagination(t *testing.T) {
	f := newLedgerFixture(t)
	member := f.seedMember(t, "eka", 0)

	for i := 0; i < 5; i++ {
		_, err := f.svc.Topup(f.ctx, domain.TopupRequest{MemberID: member.ID.String(), Amount: 1})
		require.NoError(t, err)
	}

	first, err := f.svc.List(f.ctx, domain.ListEntriesRequest{MemberID: member.ID.String(), PageSize: 3})
	require.NoError(t, err)
	require.Len(t, first.Entries, 3)
	require.True(t, first.HasMore)
	require.NotEmpty(t, first.NextPageToken)

	rest, err := f.svc.List(f.ctx, domain.ListEntriesRequest{
		MemberID:  member.ID.String(),
		PageSize:  3,
		PageToken: first.NextPageToken,
	})
	require.NoError(t, err)
	require.Len(t, rest.Entries, 2)
	assert.False(t, rest.HasMore)

	seen := map[snowflake.ID]bool{}
	for _, entry := range append(first.Entries, rest.Entries...) {
		assert.False(t, seen[entry.ID], "entry %s returned twice", entry.ID)
		seen[entry.ID] = true
	}
}
