package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agriconnect/agriconnect-backend/pkg/enums"
)

// Offer is a buyer's proposal against a listing. FarmerID is copied from the
// listing at creation so ownership checks do not need a join.
type Offer struct {
	ID                uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ListingID         uuid.UUID `gorm:"column:listing_id;type:uuid;not null;index"`
	BuyerID           uuid.UUID `gorm:"column:buyer_id;type:uuid;not null;index"`
	FarmerID          uuid.UUID `gorm:"column:farmer_id;type:uuid;not null;index"`
	Quantity          int       `gorm:"column:quantity;not null"`
	OfferedPriceCents int64     `gorm:"column:offered_price_cents;not null"`
	DeliveryFeeCents  int64     `gorm:"column:delivery_fee_cents;not null;default:0"`
	// AcceptedPriceCents is the effective per-unit price frozen at acceptance.
	AcceptedPriceCents *int64            `gorm:"column:accepted_price_cents"`
	Status             enums.OfferStatus `gorm:"column:status;type:text;not null"`
	LastActionBy       enums.Role        `gorm:"column:last_action_by;type:text;not null;default:''"`
	CounterOffers      []CounterOffer    `gorm:"foreignKey:OfferID"`
	CreatedAt          time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Offer) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}

// CounterOffer is one append-only entry of the negotiation log. Seq is unique
// per offer so concurrent counters cannot both claim the same position.
type CounterOffer struct {
	ID         uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	OfferID    uuid.UUID  `gorm:"column:offer_id;type:uuid;not null;uniqueIndex:idx_counter_offers_offer_seq,priority:1"`
	Seq        int        `gorm:"column:seq;not null;uniqueIndex:idx_counter_offers_offer_seq,priority:2"`
	PriceCents int64      `gorm:"column:price_cents;not null"`
	AuthorRole enums.Role `gorm:"column:author_role;type:text;not null"`
	Notes      *string    `gorm:"column:notes"`
	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime"`
}

func (c *CounterOffer) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}

// EffectivePriceCents is the frozen acceptance price, falling back to the
// offered price for offers accepted without one.
func (o Offer) EffectivePriceCents() int64 {
	if o.AcceptedPriceCents != nil {
		return *o.AcceptedPriceCents
	}
	return o.OfferedPriceCents
}
