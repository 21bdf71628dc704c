package payloads

import (
	"github.com/google/uuid"

	"github.com/agriconnect/agriconnect-backend/pkg/enums"
)

// OfferEvent is emitted on every offer negotiation step.
type OfferEvent struct {
	OfferID    uuid.UUID         `json:"offer_id"`
	ListingID  uuid.UUID         `json:"listing_id"`
	BuyerID    uuid.UUID         `json:"buyer_id"`
	FarmerID   uuid.UUID         `json:"farmer_id"`
	Status     enums.OfferStatus `json:"status"`
	Quantity   int               `json:"quantity"`
	PriceCents int64             `json:"price_cents"`
	ActorRole  enums.Role        `json:"actor_role"`
}

// ListingCreatedEvent announces a new listing.
type ListingCreatedEvent struct {
	ListingID       uuid.UUID `json:"listing_id"`
	FarmerID        uuid.UUID `json:"farmer_id"`
	CropName        string    `json:"crop_name"`
	Quantity        int       `json:"quantity"`
	PricePerKgCents int64     `json:"price_per_kg_cents"`
}

// OrderCreatedEvent is emitted once per accepted offer.
type OrderCreatedEvent struct {
	OrderID          uuid.UUID `json:"order_id"`
	OfferID          uuid.UUID `json:"offer_id"`
	ListingID        uuid.UUID `json:"listing_id"`
	BuyerID          uuid.UUID `json:"buyer_id"`
	FarmerID         uuid.UUID `json:"farmer_id"`
	Quantity         int       `json:"quantity"`
	FinalPriceCents  int64     `json:"final_price_cents"`
	DeliveryFeeCents int64     `json:"delivery_fee_cents"`
}

// OrderTransitionEvent describes a single state machine edge.
type OrderTransitionEvent struct {
	OrderID     uuid.UUID         `json:"order_id"`
	From        enums.OrderStatus `json:"from"`
	To          enums.OrderStatus `json:"to"`
	DriverID    *uuid.UUID        `json:"driver_id,omitempty"`
	Reason      *string           `json:"reason,omitempty"`
	AmountCents int64             `json:"amount_cents,omitempty"`
}

// OrderDriversInvitedEvent lists the drivers broadcast to in one round.
type OrderDriversInvitedEvent struct {
	OrderID   uuid.UUID   `json:"order_id"`
	Round     int         `json:"round"`
	DriverIDs []uuid.UUID `json:"driver_ids"`
}

// WalletEvent mirrors one ledger append.
type WalletEvent struct {
	UserID       uuid.UUID             `json:"user_id"`
	EntryID      uuid.UUID             `json:"entry_id"`
	Type         enums.LedgerEntryType `json:"type"`
	AmountCents  int64                 `json:"amount_cents"`
	BalanceCents int64                 `json:"balance_cents"`
	OrderID      *uuid.UUID            `json:"order_id,omitempty"`
}

// Subject returns the aggregate id each payload is about. The publisher
// rejects rows whose aggregate_id disagrees with it.
func (e OfferEvent) Subject() uuid.UUID               { return e.OfferID }
func (e ListingCreatedEvent) Subject() uuid.UUID      { return e.ListingID }
func (e OrderCreatedEvent) Subject() uuid.UUID        { return e.OrderID }
func (e OrderTransitionEvent) Subject() uuid.UUID     { return e.OrderID }
func (e OrderDriversInvitedEvent) Subject() uuid.UUID { return e.OrderID }
func (e WalletEvent) Subject() uuid.UUID              { return e.UserID }
