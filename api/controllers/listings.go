package controllers

import (
	"net/http"

	"github.com/agriconnect/agriconnect-backend/api/responses"
	"github.com/agriconnect/agriconnect-backend/api/validators"
	"github.com/agriconnect/agriconnect-backend/internal/listings"
	"github.com/agriconnect/agriconnect-backend/pkg/logger"
	"github.com/agriconnect/agriconnect-backend/pkg/types"
)

type createListingRequest struct {
	CropName    string  `json:"crop_name" validate:"required,max=120"`
	Category    string  `json:"category" validate:"required,max=60"`
	Quantity    int     `json:"quantity" validate:"gt=0"`
	PricePerKg  string  `json:"price_per_kg" validate:"required,rupees"`
	Location    string  `json:"location" validate:"required,max=255"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	ImageURL    *string `json:"image_url" validate:"omitempty,url"`
}

// updateListingRequest distinguishes omitted fields from explicit nulls on
// the clearable columns.
type updateListingRequest struct {
	CropName    *string              `json:"crop_name" validate:"omitempty,max=120"`
	Category    *string              `json:"category" validate:"omitempty,max=60"`
	PricePerKg  *string              `json:"price_per_kg" validate:"omitempty,rupees"`
	Location    *string              `json:"location" validate:"omitempty,max=255"`
	Description types.NullableString `json:"description"`
	ImageURL    types.NullableString `json:"image_url"`
}

func ListingCreate(svc listings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "listings")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}

		var req createListingRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		price, err := parseAmount("price_per_kg", req.PricePerKg)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		listing, err := svc.Create(r.Context(), actor, listings.CreateListingInput{
			CropName:        validators.SanitizeString(req.CropName, 120),
			Category:        validators.SanitizeString(req.Category, 60),
			Quantity:        req.Quantity,
			PricePerKgCents: price,
			Location:        validators.SanitizeString(req.Location, 255),
			Description:     req.Description,
			ImageURL:        req.ImageURL,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, listing)
	}
}

func ListingUpdate(svc listings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "listings")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		id, err := validators.URLParamUUID(r, "listingId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req updateListingRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input := listings.UpdateListingInput{
			CropName:    req.CropName,
			Category:    req.Category,
			Location:    req.Location,
			Description: req.Description,
			ImageURL:    req.ImageURL,
		}
		if req.PricePerKg != nil {
			price, err := parseAmount("price_per_kg", *req.PricePerKg)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			input.PricePerKgCents = &price
		}

		listing, err := svc.Update(r.Context(), actor, id, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, listing)
	}
}

func ListingGet(svc listings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "listings")
			return
		}
		id, err := validators.URLParamUUID(r, "listingId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		listing, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, listing)
	}
}

// ListingList serves the public feed. Filters: farmer_id, crop, available.
func ListingList(svc listings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "listings")
			return
		}
		page, err := pageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		farmerID, err := validators.ParseQueryUUID(r, "farmer_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		availableOnly, err := validators.ParseQueryBool(r, "available", true)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params := listings.ListParams{
			Limit:         page.Limit,
			Cursor:        page.Cursor,
			FarmerID:      farmerID,
			Crop:          validators.SanitizeString(r.URL.Query().Get("crop"), 120),
			AvailableOnly: availableOnly,
		}

		result, err := svc.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
