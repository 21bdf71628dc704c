package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/agriconnect/agriconnect-backend/api/responses"
	"github.com/agriconnect/agriconnect-backend/api/validators"
	"github.com/agriconnect/agriconnect-backend/internal/offers"
	"github.com/agriconnect/agriconnect-backend/pkg/auth"
	"github.com/agriconnect/agriconnect-backend/pkg/enums"
	pkgerrors "github.com/agriconnect/agriconnect-backend/pkg/errors"
	"github.com/agriconnect/agriconnect-backend/pkg/logger"
)

type createOfferRequest struct {
	ListingID   string  `json:"listing_id" validate:"required,uuid"`
	Quantity    int     `json:"quantity" validate:"gt=0"`
	Price       string  `json:"price" validate:"required,rupees"`
	DeliveryFee *string `json:"delivery_fee"`
}

type counterOfferRequest struct {
	Price string  `json:"price" validate:"required,rupees"`
	Notes *string `json:"notes" validate:"omitempty,max=500"`
}

func OfferCreate(svc offers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "offers")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}

		var req createOfferRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		price, err := parseAmount("price", req.Price)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		fee, err := parseOptionalAmount("delivery_fee", req.DeliveryFee)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		offer, err := svc.CreateOffer(r.Context(), actor, offers.CreateOfferInput{
			ListingID:        uuid.MustParse(req.ListingID),
			Quantity:         req.Quantity,
			PriceCents:       price,
			DeliveryFeeCents: fee,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, offer)
	}
}

func OfferCounter(svc offers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "offers")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		offerID, err := validators.URLParamUUID(r, "offerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req counterOfferRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		price, err := parseAmount("price", req.Price)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		offer, err := svc.Counter(r.Context(), actor, offerID, offers.CounterInput{PriceCents: price, Notes: req.Notes})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, offer)
	}
}

// OfferAccept settles the negotiation and returns the offer with its new order.
func OfferAccept(svc offers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "offers")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		offerID, err := validators.URLParamUUID(r, "offerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Accept(r.Context(), actor, offerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

func OfferReject(svc offers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "offers")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		offerID, err := validators.URLParamUUID(r, "offerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		offer, err := svc.Reject(r.Context(), actor, offerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, offer)
	}
}

func OfferDelete(svc offers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "offers")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		offerID, err := validators.URLParamUUID(r, "offerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Delete(r.Context(), actor, offerID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"id": offerID, "deleted": true})
	}
}

func OfferGet(svc offers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "offers")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		offerID, err := validators.URLParamUUID(r, "offerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		offer, err := svc.Get(r.Context(), actor, offerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, offer)
	}
}

// OfferListMine lists the buyer's offers; OfferListIncoming the farmer's.
func OfferListMine(svc offers.Service, logg *logger.Logger) http.HandlerFunc {
	return offerList(svc, logg, func(s offers.Service) offerLister { return s.ListForBuyer })
}

func OfferListIncoming(svc offers.Service, logg *logger.Logger) http.HandlerFunc {
	return offerList(svc, logg, func(s offers.Service) offerLister { return s.ListForFarmer })
}

type offerLister func(context.Context, auth.Actor, offers.ListParams) (*offers.OfferList, error)

func offerList(svc offers.Service, logg *logger.Logger, pick func(offers.Service) offerLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "offers")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		page, err := pageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		statuses, err := parseOfferStatuses(r.URL.Query().Get("status"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := pick(svc)(r.Context(), actor, offers.ListParams{Limit: page.Limit, Cursor: page.Cursor, Statuses: statuses})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func parseOfferStatuses(raw string) ([]enums.OfferStatus, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var out []enums.OfferStatus
	for _, part := range strings.Split(raw, ",") {
		status, err := enums.ParseOfferStatus(strings.TrimSpace(part))
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter").
				WithDetails(map[string]any{"field": "status"})
		}
		out = append(out, status)
	}
	return out, nil
}
