package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// EntryKind classifies a balance mutation.
type EntryKind string

const (
	KindTopup       EntryKind = "TOPUP"
	KindAdjustment  EntryKind = "ADJUSTMENT"
	KindBoxPurchase EntryKind = "BOX_PURCHASE"
)

// Valid reports whether the kind is one of the known ledger kinds.
func (k EntryKind) Valid() bool {
	switch k {
	case KindTopup, KindAdjustment, KindBoxPurchase:
		return true
	default:
		return false
	}
}

// CreditLedgerEntry is an immutable record of one balance mutation.
// Entries are append-only: for a member ordered by creation, each
// balance_after equals the previous balance_after plus this delta.
type CreditLedgerEntry struct {
	ID           snowflake.ID  `gorm:"primaryKey" json:"id"`
	TenantID     snowflake.ID  `gorm:"not null;index" json:"tenant_id"`
	MemberID     snowflake.ID  `gorm:"not null;index" json:"member_id"`
	Delta        int64         `gorm:"not null" json:"delta"`
	BalanceAfter int64         `gorm:"not null" json:"balance_after"`
	Kind         EntryKind     `gorm:"type:text;not null;index" json:"kind"`
	Description  string        `gorm:"type:text" json:"description,omitempty"`
	CreatedBy    *snowflake.ID `gorm:"index" json:"created_by,omitempty"`
	CreatedAt    time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (CreditLedgerEntry) TableName() string { return "credit_ledger_entries" }
