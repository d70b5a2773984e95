package domain

import (
	"context"
	"errors"
	"time"

	"github.com/duniafantasy/fantasybox/pkg/db/pagination"
)

type PurchaseRequest struct {
	MemberID   string
	CreditTier int
	Track      string
}

type PurchaseResult struct {
	TransactionID string    `json:"transaction_id"`
	Status        Status    `json:"status"`
	CreditTier    int       `json:"credit_tier"`
	CreditSpent   int64     `json:"credit_spent"`
	Track         string    `json:"track"`
	RarityID      string    `json:"rarity_id"`
	RarityCode    string    `json:"rarity_code"`
	RarityName    string    `json:"rarity_name"`
	CreditsBefore int64     `json:"credits_before"`
	CreditsAfter  int64     `json:"credits_after"`
	ExpiresAt     time.Time `json:"expires_at"`
}

type OpenRequest struct {
	MemberID      string
	TransactionID string
}

type OpenResult struct {
	TransactionID string    `json:"transaction_id"`
	Status        Status    `json:"status"`
	RarityID      string    `json:"rarity_id"`
	RarityCode    string    `json:"rarity_code"`
	RarityName    string    `json:"rarity_name"`
	RewardID      string    `json:"reward_id"`
	RewardLabel   string    `json:"reward_label"`
	RewardType    string    `json:"reward_type"`
	RewardAmount  int64     `json:"reward_amount"`
	OpenedAt      time.Time `json:"opened_at"`
	ExpiresAt     time.Time `json:"expires_at"`
}

type ListTransactionsRequest struct {
	PageToken string
	PageSize  int
	MemberID  string
	Status    string
}

type ListTransactionsResponse struct {
	pagination.PageInfo
	Transactions []HistoryRow `json:"transactions"`
}

type SetProcessedRequest struct {
	TransactionID string
	Processed     bool
}

// Service drives the box lifecycle. Purchase debits the ledger, draws a
// rarity and creates a PURCHASED transaction in one database
// transaction; a failed draw rolls the debit back. Open binds a reward
// at most once per transaction.
type Service interface {
	Purchase(ctx context.Context, req PurchaseRequest) (PurchaseResult, error)
	Open(ctx context.Context, req OpenRequest) (OpenResult, error)
	ListInventory(ctx context.Context, memberID string) ([]InventoryItem, error)
	ListTransactions(ctx context.Context, req ListTransactionsRequest) (ListTransactionsResponse, error)
	SetProcessed(ctx context.Context, req SetProcessedRequest) (HistoryRow, error)

	// ExpireDue sweeps up to limit overdue PURCHASED transactions into
	// EXPIRED and returns how many rows changed state. Safe to re-run.
	ExpireDue(ctx context.Context, now time.Time, limit int) (int, error)
}

var (
	ErrInvalidTenant    = errors.New("invalid_tenant")
	ErrInvalidMember    = errors.New("invalid_member")
	ErrInvalidTier      = errors.New("invalid_tier")
	ErrInvalidID        = errors.New("invalid_id")
	ErrNotFound         = errors.New("transaction_not_found")
	ErrWrongOwner       = errors.New("wrong_owner")
	ErrAlreadyFinalized = errors.New("already_finalized")
	ErrExpired          = errors.New("transaction_expired")
	ErrNotOpened        = errors.New("transaction_not_opened")
)
