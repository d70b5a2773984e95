package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/duniafantasy/fantasybox/internal/box/domain"
	pkgdb "github.com/duniafantasy/fantasybox/pkg/db"
	"github.com/duniafantasy/fantasybox/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, tx *gorm.DB, boxTx *domain.BoxTransaction) error {
	return tx.WithContext(ctx).Create(boxTx).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*domain.BoxTransaction, error) {
	var boxTx domain.BoxTransaction
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&boxTx).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &boxTx, nil
}

func (r *repo) FindByIDForUpdate(ctx context.Context, tx *gorm.DB, tenantID, id snowflake.ID) (*domain.BoxTransaction, error) {
	var boxTx domain.BoxTransaction
	err := pkgdb.LockForUpdate(tx.WithContext(ctx)).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&boxTx).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &boxTx, nil
}

func (r *repo) MarkOpened(ctx context.Context, tx *gorm.DB, tenantID, id, rewardID snowflake.ID, openedAt time.Time) (bool, error) {
	res := tx.WithContext(ctx).
		Model(&domain.BoxTransaction{}).
		Where("tenant_id = ? AND id = ? AND status = ?", tenantID, id, domain.StatusPurchased).
		Updates(map[string]any{
			"status":     domain.StatusOpened,
			"reward_id":  rewardID,
			"opened_at":  openedAt,
			"updated_at": openedAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) MarkExpired(ctx context.Context, tx *gorm.DB, tenantID, id snowflake.ID, at time.Time) (bool, error) {
	res := tx.WithContext(ctx).
		Model(&domain.BoxTransaction{}).
		Where("tenant_id = ? AND id = ? AND status = ?", tenantID, id, domain.StatusPurchased).
		Updates(map[string]any{
			"status":     domain.StatusExpired,
			"updated_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) DueForExpiry(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]domain.ExpiryCandidate, error) {
	var rows []domain.ExpiryCandidate
	err := db.WithContext(ctx).
		Model(&domain.BoxTransaction{}).
		Select("id", "tenant_id").
		Where("status = ? AND expires_at <= ?", domain.StatusPurchased, now).
		Order("expires_at asc").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repo) SetProcessed(ctx context.Context, tx *gorm.DB, tenantID, id snowflake.ID, processed bool, by *snowflake.ID, at *time.Time) error {
	return tx.WithContext(ctx).
		Model(&domain.BoxTransaction{}).
		Where("tenant_id = ? AND id = ? AND status = ?", tenantID, id, domain.StatusOpened).
		Updates(map[string]any{
			"processed":    processed,
			"processed_by": by,
			"processed_at": at,
			"updated_at":   gorm.Expr("CURRENT_TIMESTAMP"),
		}).Error
}

func (r *repo) ListInventory(ctx context.Context, db *gorm.DB, tenantID, memberID snowflake.ID, now time.Time) ([]domain.InventoryItem, error) {
	var items []domain.InventoryItem
	err := db.WithContext(ctx).Raw(
		`SELECT t.id, t.credit_tier, t.track, t.rarity_id, r.code AS rarity_code, r.name AS rarity_name,
		        t.expires_at, t.created_at
		 FROM box_transactions t
		 JOIN rarities r ON r.id = t.rarity_id
		 WHERE t.tenant_id = ? AND t.member_id = ? AND t.status = ? AND t.expires_at > ?
		 ORDER BY t.created_at DESC, t.id DESC`,
		tenantID,
		memberID,
		domain.StatusPurchased,
		now,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

const historySelect = `SELECT t.id, t.member_id, m.username, t.credit_tier, t.credit_spent, t.track,
       t.status, r.code AS rarity_code, r.name AS rarity_name,
       w.label AS reward_label, w.reward_type, w.amount,
       t.expires_at, t.opened_at, t.processed, t.processed_by, t.processed_at, t.created_at
 FROM box_transactions t
 JOIN members m ON m.id = t.member_id
 JOIN rarities r ON r.id = t.rarity_id
 LEFT JOIN rewards w ON w.id = t.reward_id`

func (r *repo) ListHistory(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, filter domain.ListHistoryFilter, page pagination.Pagination) ([]domain.HistoryRow, error) {
	query := historySelect + " WHERE t.tenant_id = ?"
	args := []any{tenantID}

	if filter.MemberID != 0 {
		query += " AND t.member_id = ?"
		args = append(args, filter.MemberID)
	}
	if filter.Status != "" {
		query += " AND t.status = ?"
		args = append(args, filter.Status)
	}
	if page.PageToken != "" {
		cursor, err := pagination.DecodeCursor(page.PageToken)
		if err == nil && cursor.ID != "" {
			query += " AND t.id < ?"
			args = append(args, cursor.ID)
		}
	}

	limit := page.PageSize
	if limit <= 0 {
		limit = 50
	}
	query += " ORDER BY t.created_at DESC, t.id DESC LIMIT ?"
	args = append(args, limit+1)

	var rows []domain.HistoryRow
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repo) FindHistoryRow(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*domain.HistoryRow, error) {
	var rows []domain.HistoryRow
	err := db.WithContext(ctx).
		Raw(historySelect+" WHERE t.tenant_id = ? AND t.id = ?", tenantID, id).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}
