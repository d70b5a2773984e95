package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/duniafantasy/fantasybox/pkg/db/pagination"
	"gorm.io/gorm"
)

// ApplyDeltaRequest describes one atomic balance mutation.
type ApplyDeltaRequest struct {
	MemberID    snowflake.ID
	Delta       int64
	Kind        EntryKind
	Description string
	CreatedBy   *snowflake.ID
}

type TopupRequest struct {
	MemberID    string
	Amount      int64
	Description string
}

type AdjustDownRequest struct {
	MemberID    string
	Amount      int64
	Description string
}

type AdjustResult struct {
	NewBalance int64             `json:"new_balance"`
	Entry      CreditLedgerEntry `json:"entry"`
}

type ListEntriesRequest struct {
	PageToken string
	PageSize  int
	MemberID  string
	Kind      string
}

type ListEntriesResponse struct {
	pagination.PageInfo
	Entries []CreditLedgerEntry `json:"entries"`
}

// Service is the only legal writer of member balances. ApplyDelta runs in
// its own transaction; ApplyDeltaTx joins the caller's transaction so a
// purchase can roll its debit back when a later step fails.
type Service interface {
	ApplyDelta(ctx context.Context, req ApplyDeltaRequest) (CreditLedgerEntry, error)
	ApplyDeltaTx(ctx context.Context, tx *gorm.DB, req ApplyDeltaRequest) (CreditLedgerEntry, error)
	Topup(ctx context.Context, req TopupRequest) (AdjustResult, error)
	AdjustDown(ctx context.Context, req AdjustDownRequest) (AdjustResult, error)
	List(ctx context.Context, req ListEntriesRequest) (ListEntriesResponse, error)
}

var (
	ErrInvalidTenant       = errors.New("invalid_tenant")
	ErrInvalidMember       = errors.New("invalid_member")
	ErrInvalidAmount       = errors.New("invalid_amount")
	ErrInvalidKind         = errors.New("invalid_kind")
	ErrMemberNotFound      = errors.New("member_not_found")
	ErrInsufficientBalance = errors.New("insufficient_balance")
)
