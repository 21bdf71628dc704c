package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agriconnect/agriconnect-backend/pkg/enums"
)

// LedgerEntry is an immutable wallet movement. Rows are never updated or deleted.
type LedgerEntry struct {
	ID          uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	UserID      uuid.UUID             `gorm:"column:user_id;type:uuid;not null;index:idx_ledger_entries_user_created,priority:1"`
	Type        enums.LedgerEntryType `gorm:"column:type;type:text;not null"`
	AmountCents int64                 `gorm:"column:amount_cents;not null"`
	Description string                `gorm:"column:description;not null"`
	OrderID     *uuid.UUID            `gorm:"column:order_id;type:uuid"`
	CreatedAt   time.Time             `gorm:"column:created_at;autoCreateTime;index:idx_ledger_entries_user_created,priority:2"`
}

func (e *LedgerEntry) BeforeCreate(*gorm.DB) error {
	ensureID(&e.ID)
	return nil
}

// SignedAmount returns the amount with credits positive and debits negative.
func (e LedgerEntry) SignedAmount() int64 {
	return e.Type.Sign() * e.AmountCents
}
