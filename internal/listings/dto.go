package listings

import (
	"time"

	"github.com/google/uuid"

	"github.com/agriconnect/agriconnect-backend/pkg/db/models"
	"github.com/agriconnect/agriconnect-backend/pkg/money"
	"github.com/agriconnect/agriconnect-backend/pkg/pagination"
	"github.com/agriconnect/agriconnect-backend/pkg/types"
)

// CreateListingInput is the farmer-supplied listing.
type CreateListingInput struct {
	CropName        string
	Category        string
	Quantity        int
	PricePerKgCents int64
	Location        string
	Description     *string
	ImageURL        *string
}

// UpdateListingInput is a partial update. Nil pointers and invalid nullables
// leave the column untouched; a valid nullable with a nil value clears it.
// Stock counters are never updated here.
type UpdateListingInput struct {
	CropName        *string
	Category        *string
	PricePerKgCents *int64
	Location        *string
	Description     types.NullableString
	ImageURL        types.NullableString
}

// IsEmpty reports whether the update carries no field at all.
func (in UpdateListingInput) IsEmpty() bool {
	return in.CropName == nil && in.Category == nil && in.PricePerKgCents == nil &&
		in.Location == nil && !in.Description.Valid && !in.ImageURL.Valid
}

// ListParams filters the public listing feed.
type ListParams struct {
	Limit         int
	Cursor        string
	FarmerID      *uuid.UUID
	Crop          string
	AvailableOnly bool
}

// Window clamps the limit and decodes the cursor.
func (p ListParams) Window() (pagination.Window, error) {
	return pagination.Params{Limit: p.Limit, Cursor: p.Cursor}.Window()
}

// ListingDTO is the transport shape of a listing.
type ListingDTO struct {
	ID              uuid.UUID `json:"id"`
	FarmerID        uuid.UUID `json:"farmer_id"`
	CropName        string    `json:"crop_name"`
	Category        string    `json:"category"`
	Quantity        int       `json:"quantity"`
	ActualQuantity  int       `json:"actual_quantity"`
	PricePerKgCents int64     `json:"price_per_kg_cents"`
	PricePerKg      string    `json:"price_per_kg"`
	Location        string    `json:"location"`
	Description     *string   `json:"description,omitempty"`
	ImageURL        *string   `json:"image_url,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// ListResult is one page of listings.
type ListResult struct {
	Listings []ListingDTO `json:"listings"`
	Cursor   string       `json:"cursor,omitempty"`
}

// FromModel maps a listing model for transport.
func FromModel(l *models.Listing) *ListingDTO {
	if l == nil {
		return nil
	}
	return &ListingDTO{
		ID:              l.ID,
		FarmerID:        l.FarmerID,
		CropName:        l.CropName,
		Category:        l.Category,
		Quantity:        l.Quantity,
		ActualQuantity:  l.ActualQuantity,
		PricePerKgCents: l.PricePerKgCents,
		PricePerKg:      money.Format(l.PricePerKgCents),
		Location:        l.Location,
		Description:     l.Description,
		ImageURL:        l.ImageURL,
		CreatedAt:       l.CreatedAt,
		UpdatedAt:       l.UpdatedAt,
	}
}
