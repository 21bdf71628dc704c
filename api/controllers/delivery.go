package controllers

import (
	"net/http"

	"github.com/agriconnect/agriconnect-backend/api/responses"
	"github.com/agriconnect/agriconnect-backend/api/validators"
	"github.com/agriconnect/agriconnect-backend/internal/delivery"
	pkgerrors "github.com/agriconnect/agriconnect-backend/pkg/errors"
	"github.com/agriconnect/agriconnect-backend/pkg/logger"
)

const maxAddressLen = 255

// DeliveryFee quotes the delivery fee between the pickup and drop addresses.
func DeliveryFee(svc delivery.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "delivery")
			return
		}
		pickup := validators.SanitizeString(r.URL.Query().Get("pickup"), maxAddressLen)
		drop := validators.SanitizeString(r.URL.Query().Get("drop"), maxAddressLen)
		if pickup == "" || drop == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "pickup and drop are required").
				WithDetails(map[string]any{"fields": []string{"pickup", "drop"}}))
			return
		}
		quote, err := svc.QuoteFee(r.Context(), pickup, drop)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, quote)
	}
}
