package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agriconnect/agriconnect-backend/pkg/enums"
)

// Order is created once per accepted offer and moved through the order state
// machine. Rows are never deleted.
type Order struct {
	ID                 uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	OfferID            uuid.UUID         `gorm:"column:offer_id;type:uuid;not null;uniqueIndex"`
	ListingID          uuid.UUID         `gorm:"column:listing_id;type:uuid;not null;index"`
	FarmerID           uuid.UUID         `gorm:"column:farmer_id;type:uuid;not null;index"`
	BuyerID            uuid.UUID         `gorm:"column:buyer_id;type:uuid;not null;index"`
	DriverID           *uuid.UUID        `gorm:"column:driver_id;type:uuid;index"`
	Quantity           int               `gorm:"column:quantity;not null"`
	FinalPriceCents    int64             `gorm:"column:final_price_cents;not null"`
	DeliveryFeeCents   int64             `gorm:"column:delivery_fee_cents;not null;default:0"`
	Status             enums.OrderStatus `gorm:"column:status;type:text;not null;index"`
	InvitationRound    int               `gorm:"column:invitation_round;not null;default:0"`
	GatewayOrderID     *string           `gorm:"column:gateway_order_id"`
	PaymentMethod      *string           `gorm:"column:payment_method"`
	PaymentReference   *string           `gorm:"column:payment_reference"`
	PaidAt             *time.Time        `gorm:"column:paid_at"`
	AmountPaidCents    int64             `gorm:"column:amount_paid_cents;not null;default:0"`
	FarmerEarningCents int64             `gorm:"column:farmer_earning_cents;not null;default:0"`
	DriverAcceptedAt   *time.Time        `gorm:"column:driver_accepted_at"`
	OTPRequestedAt     *time.Time        `gorm:"column:otp_requested_at"`
	IsDelivered        bool              `gorm:"column:is_delivered;not null;default:false"`
	DeliveredAt        *time.Time        `gorm:"column:delivered_at"`
	CompletedAt        *time.Time        `gorm:"column:completed_at"`
	CancellationReason *string           `gorm:"column:cancellation_reason"`
	CancelledAt        *time.Time        `gorm:"column:cancelled_at"`
	CreatedAt          time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}

// GoodsTotalCents is quantity times the agreed per-unit price.
func (o Order) GoodsTotalCents() int64 {
	return int64(o.Quantity) * o.FinalPriceCents
}

// PayableCents is what the buyer is charged at the gateway.
func (o Order) PayableCents() int64 {
	return o.GoodsTotalCents() + o.DeliveryFeeCents
}

// DriverInvitation is one driver's invitation within an invitation round.
type DriverInvitation struct {
	ID        uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	OrderID   uuid.UUID              `gorm:"column:order_id;type:uuid;not null;uniqueIndex:idx_driver_invitations_round,priority:1"`
	Round     int                    `gorm:"column:round;not null;uniqueIndex:idx_driver_invitations_round,priority:2"`
	DriverID  uuid.UUID              `gorm:"column:driver_id;type:uuid;not null;uniqueIndex:idx_driver_invitations_round,priority:3;index"`
	Status    enums.InvitationStatus `gorm:"column:status;type:text;not null"`
	CreatedAt time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

func (DriverInvitation) TableName() string {
	return "order_driver_invitations"
}

func (d *DriverInvitation) BeforeCreate(*gorm.DB) error {
	ensureID(&d.ID)
	return nil
}
