package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agriconnect/agriconnect-backend/pkg/enums"
)

// PaymentTransaction is the immutable audit record of a verified gateway payment.
type PaymentTransaction struct {
	ID               uuid.UUID                      `gorm:"column:id;type:uuid;primaryKey"`
	OrderID          uuid.UUID                      `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	BuyerID          uuid.UUID                      `gorm:"column:buyer_id;type:uuid;not null"`
	GatewayOrderID   string                         `gorm:"column:gateway_order_id;not null"`
	GatewayPaymentID string                         `gorm:"column:gateway_payment_id;not null;uniqueIndex"`
	Signature        string                         `gorm:"column:signature;not null"`
	AmountCents      int64                          `gorm:"column:amount_cents;not null"`
	Currency         enums.Currency                 `gorm:"column:currency;type:text;not null"`
	Status           enums.PaymentTransactionStatus `gorm:"column:status;type:text;not null"`
	CreatedAt        time.Time                      `gorm:"column:created_at;autoCreateTime"`
}

func (p *PaymentTransaction) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}
