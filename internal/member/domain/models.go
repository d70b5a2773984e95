package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Role labels a profile within a tenant.
type Role string

const (
	RoleMember Role = "MEMBER"
	RoleAdmin  Role = "ADMIN"
	RoleCS     Role = "CS"
)

// Tenant is the isolation boundary grouping members, configuration and transactions.
type Tenant struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	Name      string       `gorm:"not null" json:"name"`
	Slug      string       `gorm:"not null;uniqueIndex" json:"slug"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Tenant) TableName() string { return "tenants" }

// Member is a tenant-scoped profile holding the denormalized credit balance.
// The balance is a materialized view of the credit ledger: it is only ever
// written transactionally alongside a new ledger row.
type Member struct {
	ID            snowflake.ID `gorm:"primaryKey" json:"id"`
	TenantID      snowflake.ID `gorm:"not null;index;uniqueIndex:ux_members_tenant_username,priority:1" json:"tenant_id"`
	Username      string       `gorm:"not null;uniqueIndex:ux_members_tenant_username,priority:2" json:"username"`
	Role          Role         `gorm:"type:text;not null;default:'MEMBER'" json:"role"`
	CreditBalance int64        `gorm:"not null;default:0" json:"credit_balance"`
	CreatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Member) TableName() string { return "members" }
