package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/agriconnect/agriconnect-backend/pkg/db/models"
	"github.com/agriconnect/agriconnect-backend/pkg/enums"
	"github.com/agriconnect/agriconnect-backend/pkg/money"
	"github.com/agriconnect/agriconnect-backend/pkg/pagination"
)

// PaymentInput is the verified gateway payment recorded by Pay.
type PaymentInput struct {
	OrderID   uuid.UUID
	Method    enums.PaymentMethod
	Reference string
}

// CancelInput carries an optional cancellation reason.
type CancelInput struct {
	Reason string
}

// ListParams is the cursor page request for order listings.
type ListParams struct {
	Limit  int
	Cursor string
	Scope  Scope
}

// Window clamps the limit and decodes the cursor.
func (p ListParams) Window() (pagination.Window, error) {
	return pagination.Params{Limit: p.Limit, Cursor: p.Cursor}.Window()
}

// OrderDTO is the party-facing projection of an order.
type OrderDTO struct {
	ID                 uuid.UUID         `json:"id"`
	OfferID            uuid.UUID         `json:"offer_id"`
	ListingID          uuid.UUID         `json:"listing_id"`
	FarmerID           uuid.UUID         `json:"farmer_id"`
	BuyerID            uuid.UUID         `json:"buyer_id"`
	DriverID           *uuid.UUID        `json:"driver_id,omitempty"`
	Status             enums.OrderStatus `json:"status"`
	Quantity           int               `json:"quantity"`
	FinalPriceCents    int64             `json:"final_price_cents"`
	DeliveryFeeCents   int64             `json:"delivery_fee_cents"`
	GoodsTotalCents    int64             `json:"goods_total_cents"`
	PayableCents       int64             `json:"payable_cents"`
	AmountPaidCents    int64             `json:"amount_paid_cents"`
	FarmerEarningCents int64             `json:"farmer_earning_cents"`
	PaymentMethod      *string           `json:"payment_method,omitempty"`
	PaymentReference   *string           `json:"payment_reference,omitempty"`
	PaidAt             *time.Time        `json:"paid_at,omitempty"`
	DriverAcceptedAt   *time.Time        `json:"driver_accepted_at,omitempty"`
	IsDelivered        bool              `json:"is_delivered"`
	DeliveredAt        *time.Time        `json:"delivered_at,omitempty"`
	CompletedAt        *time.Time        `json:"completed_at,omitempty"`
	CancellationReason *string           `json:"cancellation_reason,omitempty"`
	CancelledAt        *time.Time        `json:"cancelled_at,omitempty"`
	InvitationRound    int               `json:"invitation_round"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

// OrderList is one page of orders.
type OrderList struct {
	Orders []OrderDTO `json:"orders"`
	Cursor string     `json:"cursor,omitempty"`
}

// InvitationDTO is one driver invitation in the current round.
type InvitationDTO struct {
	DriverID uuid.UUID              `json:"driver_id"`
	Round    int                    `json:"round"`
	Status   enums.InvitationStatus `json:"status"`
}

// OrderDetail is the order plus its current invitation round.
type OrderDetail struct {
	OrderDTO
	Invitations []InvitationDTO `json:"invitations,omitempty"`
}

// Receipt is the printable summary of a paid order.
type Receipt struct {
	OrderID          uuid.UUID         `json:"order_id"`
	Status           enums.OrderStatus `json:"status"`
	CropName         string            `json:"crop_name"`
	BuyerName        string            `json:"buyer_name"`
	FarmerName       string            `json:"farmer_name"`
	DriverName       string            `json:"driver_name,omitempty"`
	Quantity         int               `json:"quantity"`
	UnitPrice        string            `json:"unit_price"`
	GoodsTotal       string            `json:"goods_total"`
	DeliveryFee      string            `json:"delivery_fee"`
	AmountPaid       string            `json:"amount_paid"`
	PaymentMethod    string            `json:"payment_method,omitempty"`
	PaymentReference string            `json:"payment_reference,omitempty"`
	PaidAt           *time.Time        `json:"paid_at,omitempty"`
	DeliveredAt      *time.Time        `json:"delivered_at,omitempty"`
}

// FromModel maps an order model for transport.
func FromModel(o *models.Order) *OrderDTO {
	if o == nil {
		return nil
	}
	return &OrderDTO{
		ID:                 o.ID,
		OfferID:            o.OfferID,
		ListingID:          o.ListingID,
		FarmerID:           o.FarmerID,
		BuyerID:            o.BuyerID,
		DriverID:           o.DriverID,
		Status:             o.Status,
		Quantity:           o.Quantity,
		FinalPriceCents:    o.FinalPriceCents,
		DeliveryFeeCents:   o.DeliveryFeeCents,
		GoodsTotalCents:    o.GoodsTotalCents(),
		PayableCents:       o.PayableCents(),
		AmountPaidCents:    o.AmountPaidCents,
		FarmerEarningCents: o.FarmerEarningCents,
		PaymentMethod:      o.PaymentMethod,
		PaymentReference:   o.PaymentReference,
		PaidAt:             o.PaidAt,
		DriverAcceptedAt:   o.DriverAcceptedAt,
		IsDelivered:        o.IsDelivered,
		DeliveredAt:        o.DeliveredAt,
		CompletedAt:        o.CompletedAt,
		CancellationReason: o.CancellationReason,
		CancelledAt:        o.CancelledAt,
		InvitationRound:    o.InvitationRound,
		CreatedAt:          o.CreatedAt,
		UpdatedAt:          o.UpdatedAt,
	}
}

func buildReceipt(o *models.Order, crop string, names map[uuid.UUID]string) *Receipt {
	r := &Receipt{
		OrderID:     o.ID,
		Status:      o.Status,
		CropName:    crop,
		BuyerName:   names[o.BuyerID],
		FarmerName:  names[o.FarmerID],
		Quantity:    o.Quantity,
		UnitPrice:   money.Format(o.FinalPriceCents),
		GoodsTotal:  money.Format(o.GoodsTotalCents()),
		DeliveryFee: money.Format(o.DeliveryFeeCents),
		AmountPaid:  money.Format(o.AmountPaidCents),
		PaidAt:      o.PaidAt,
		DeliveredAt: o.DeliveredAt,
	}
	if o.DriverID != nil {
		r.DriverName = names[*o.DriverID]
	}
	if o.PaymentMethod != nil {
		r.PaymentMethod = *o.PaymentMethod
	}
	if o.PaymentReference != nil {
		r.PaymentReference = *o.PaymentReference
	}
	return r
}
