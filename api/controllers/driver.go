package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/agriconnect/agriconnect-backend/api/responses"
	"github.com/agriconnect/agriconnect-backend/internal/orders"
	"github.com/agriconnect/agriconnect-backend/pkg/auth"
	"github.com/agriconnect/agriconnect-backend/pkg/logger"
)

// DriverAvailable lists orders awaiting the caller's acceptance.
func DriverAvailable(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return driverList(svc, logg, false)
}

// DriverDeliveries lists the caller's ongoing and completed deliveries.
func DriverDeliveries(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return driverList(svc, logg, true)
}

func driverList(svc orders.Service, logg *logger.Logger, assigned bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "orders")
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
		params := orders.ListParams{Limit: page.Limit, Cursor: page.Cursor}
		if assigned {
			scope, err := orders.ParseScope(r.URL.Query().Get("scope"))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			params.Scope = scope
		}

		var list *orders.OrderList
		if assigned {
			list, err = svc.ListDriverDeliveries(r.Context(), actor, params)
		} else {
			list, err = svc.ListAvailableForDriver(r.Context(), actor, params)
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func DriverAccept(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return orderHandler(svc, logg, http.StatusOK, func(r *http.Request, actor auth.Actor, id uuid.UUID) (any, error) {
		return svc.DriverAccept(r.Context(), actor, id)
	})
}

func DriverDecline(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return orderHandler(svc, logg, http.StatusOK, func(r *http.Request, actor auth.Actor, id uuid.UUID) (any, error) {
		return svc.DriverDecline(r.Context(), actor, id)
	})
}

// DriverComplete marks the drop-off done; for OTP-verified orders this settles.
func DriverComplete(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return orderHandler(svc, logg, http.StatusOK, func(r *http.Request, actor auth.Actor, id uuid.UUID) (any, error) {
		return svc.CompleteDelivery(r.Context(), actor, id)
	})
}
