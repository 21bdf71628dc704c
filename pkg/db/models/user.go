package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agriconnect/agriconnect-backend/pkg/enums"
)

// User is a marketplace account. WalletBalanceCents is maintained by the
// ledger alongside every ledger entry append.
type User struct {
	ID                 uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	Name               string     `gorm:"column:name;not null"`
	Email              string     `gorm:"column:email;not null;uniqueIndex"`
	Phone              string     `gorm:"column:phone;not null;default:''"`
	Role               enums.Role `gorm:"column:role;type:text;not null"`
	Address            string     `gorm:"column:address;not null;default:''"`
	WalletBalanceCents int64      `gorm:"column:wallet_balance_cents;not null;default:0"`
	CreatedAt          time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	ensureID(&u.ID)
	return nil
}
