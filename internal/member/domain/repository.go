package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/duniafantasy/fantasybox/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListMemberFilter struct {
	Username string
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, member *Member) error
	FindByID(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*Member, error)
	// FindByIDForUpdate locks the member row until the surrounding
	// transaction commits. It is the serialization point for every
	// balance mutation.
	FindByIDForUpdate(ctx context.Context, tx *gorm.DB, tenantID, id snowflake.ID) (*Member, error)
	UpdateBalance(ctx context.Context, tx *gorm.DB, id snowflake.ID, balance int64) error
	List(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, filter ListMemberFilter, page pagination.Pagination) ([]*Member, error)
}
