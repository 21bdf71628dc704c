package offers

import (
	"time"

	"github.com/google/uuid"

	"github.com/agriconnect/agriconnect-backend/internal/orders"
	"github.com/agriconnect/agriconnect-backend/pkg/db/models"
	"github.com/agriconnect/agriconnect-backend/pkg/enums"
	"github.com/agriconnect/agriconnect-backend/pkg/money"
	"github.com/agriconnect/agriconnect-backend/pkg/pagination"
)

// CreateOfferInput is a buyer's opening proposal.
type CreateOfferInput struct {
	ListingID        uuid.UUID
	Quantity         int
	PriceCents       int64
	DeliveryFeeCents int64
}

// CounterInput is one negotiation step.
type CounterInput struct {
	PriceCents int64
	Notes      *string
}

// ListParams pages through an actor's offers. Without statuses, buyers see
// their open and rejected offers and farmers see everything.
type ListParams struct {
	Limit    int
	Cursor   string
	Statuses []enums.OfferStatus
}

// Window clamps the limit and decodes the cursor.
func (p ListParams) Window() (pagination.Window, error) {
	return pagination.Params{Limit: p.Limit, Cursor: p.Cursor}.Window()
}

// CounterDTO is one entry of the negotiation log.
type CounterDTO struct {
	Seq        int        `json:"seq"`
	PriceCents int64      `json:"price_cents"`
	Price      string     `json:"price"`
	AuthorRole enums.Role `json:"author_role"`
	Notes      *string    `json:"notes,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// OfferDTO is the transport shape of an offer.
type OfferDTO struct {
	ID                  uuid.UUID         `json:"id"`
	ListingID           uuid.UUID         `json:"listing_id"`
	BuyerID             uuid.UUID         `json:"buyer_id"`
	FarmerID            uuid.UUID         `json:"farmer_id"`
	Quantity            int               `json:"quantity"`
	OfferedPriceCents   int64             `json:"offered_price_cents"`
	EffectivePriceCents int64             `json:"effective_price_cents"`
	DeliveryFeeCents    int64             `json:"delivery_fee_cents"`
	Status              enums.OfferStatus `json:"status"`
	LastActionBy        enums.Role        `json:"last_action_by,omitempty"`
	CounterOffers       []CounterDTO      `json:"counter_offers"`
	CreatedAt           time.Time         `json:"created_at"`
	UpdatedAt           time.Time         `json:"updated_at"`
}

// OfferList is one page of offers.
type OfferList struct {
	Offers []OfferDTO `json:"offers"`
	Cursor string     `json:"cursor,omitempty"`
}

// AcceptResult is the accepted offer and the order it produced.
type AcceptResult struct {
	Offer *OfferDTO        `json:"offer"`
	Order *orders.OrderDTO `json:"order"`
}

// FromModel maps an offer with its counter log.
func FromModel(o *models.Offer) *OfferDTO {
	if o == nil {
		return nil
	}
	out := &OfferDTO{
		ID:                  o.ID,
		ListingID:           o.ListingID,
		BuyerID:             o.BuyerID,
		FarmerID:            o.FarmerID,
		Quantity:            o.Quantity,
		OfferedPriceCents:   o.OfferedPriceCents,
		EffectivePriceCents: currentPrice(o),
		DeliveryFeeCents:    o.DeliveryFeeCents,
		Status:              o.Status,
		LastActionBy:        o.LastActionBy,
		CounterOffers:       make([]CounterDTO, len(o.CounterOffers)),
		CreatedAt:           o.CreatedAt,
		UpdatedAt:           o.UpdatedAt,
	}
	for i, c := range o.CounterOffers {
		out.CounterOffers[i] = CounterDTO{
			Seq:        c.Seq,
			PriceCents: c.PriceCents,
			Price:      money.Format(c.PriceCents),
			AuthorRole: c.AuthorRole,
			Notes:      c.Notes,
			CreatedAt:  c.CreatedAt,
		}
	}
	return out
}

// currentPrice is the price on the table: the frozen acceptance price, the
// last counter, or the opening price, in that order.
func currentPrice(o *models.Offer) int64 {
	if o.AcceptedPriceCents != nil {
		return *o.AcceptedPriceCents
	}
	if n := len(o.CounterOffers); n > 0 {
		return o.CounterOffers[n-1].PriceCents
	}
	return o.OfferedPriceCents
}
