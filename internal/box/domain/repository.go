package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/duniafantasy/fantasybox/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListHistoryFilter struct {
	MemberID snowflake.ID
	Status   Status
}

type Repository interface {
	Insert(ctx context.Context, tx *gorm.DB, boxTx *BoxTransaction) error
	FindByID(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*BoxTransaction, error)
	// FindByIDForUpdate locks the transaction row until the surrounding
	// transaction commits.
	FindByIDForUpdate(ctx context.Context, tx *gorm.DB, tenantID, id snowflake.ID) (*BoxTransaction, error)

	// MarkOpened flips PURCHASED -> OPENED and binds the reward. The
	// update is guarded on the current status; false means the row was
	// already finalized by a concurrent writer.
	MarkOpened(ctx context.Context, tx *gorm.DB, tenantID, id, rewardID snowflake.ID, openedAt time.Time) (bool, error)
	// MarkExpired flips PURCHASED -> EXPIRED with the same guard.
	MarkExpired(ctx context.Context, tx *gorm.DB, tenantID, id snowflake.ID, at time.Time) (bool, error)

	// DueForExpiry returns ids of PURCHASED transactions whose expiry
	// has passed, oldest first, across all tenants.
	DueForExpiry(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]ExpiryCandidate, error)

	SetProcessed(ctx context.Context, tx *gorm.DB, tenantID, id snowflake.ID, processed bool, by *snowflake.ID, at *time.Time) error

	ListInventory(ctx context.Context, db *gorm.DB, tenantID, memberID snowflake.ID, now time.Time) ([]InventoryItem, error)
	ListHistory(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, filter ListHistoryFilter, page pagination.Pagination) ([]HistoryRow, error)
	FindHistoryRow(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*HistoryRow, error)
}

type ExpiryCandidate struct {
	ID       snowflake.ID
	TenantID snowflake.ID
}
