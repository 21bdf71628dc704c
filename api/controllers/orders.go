package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/agriconnect/agriconnect-backend/api/responses"
	"github.com/agriconnect/agriconnect-backend/api/validators"
	"github.com/agriconnect/agriconnect-backend/internal/orders"
	"github.com/agriconnect/agriconnect-backend/pkg/auth"
	"github.com/agriconnect/agriconnect-backend/pkg/enums"
	pkgerrors "github.com/agriconnect/agriconnect-backend/pkg/errors"
	"github.com/agriconnect/agriconnect-backend/pkg/logger"
)

type cancelOrderRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

type assignDriversRequest struct {
	DriverIDs []string `json:"driver_ids" validate:"required,min=1,max=20,dive,uuid"`
}

type verifyOTPRequest struct {
	Code string `json:"code" validate:"required,numeric,max=10"`
}

// orderAction is a single-order operation keyed by the orderId path param.
type orderAction func(r *http.Request, actor auth.Actor, orderID uuid.UUID) (any, error)

func orderHandler(svc orders.Service, logg *logger.Logger, status int, act orderAction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "orders")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		orderID, err := validators.URLParamUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if logg != nil {
			r = r.WithContext(logg.WithOrderID(r.Context(), orderID.String()))
		}
		result, err := act(r, actor, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, status, result)
	}
}

// OrderFromOffer returns the order for an accepted offer, creating it when missing.
func OrderFromOffer(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "orders")
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
		order, err := svc.CreateFromOffer(r.Context(), actor, offerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}

// OrderListMine returns the caller's orders as buyer or farmer. Optional
// scope=ongoing|finished narrows the status set.
func OrderListMine(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
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
		scope, err := orders.ParseScope(r.URL.Query().Get("scope"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params := orders.ListParams{Limit: page.Limit, Cursor: page.Cursor, Scope: scope}

		var list *orders.OrderList
		switch actor.Role {
		case enums.RoleBuyer:
			list, err = svc.ListForBuyer(r.Context(), actor, params)
		case enums.RoleFarmer:
			list, err = svc.ListForFarmer(r.Context(), actor, params)
		default:
			err = pkgerrors.New(pkgerrors.CodeForbidden, "drivers list deliveries under /driver/orders")
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func OrderDetail(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return orderHandler(svc, logg, http.StatusOK, func(r *http.Request, actor auth.Actor, id uuid.UUID) (any, error) {
		return svc.Get(r.Context(), actor, id)
	})
}

func OrderReceipt(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return orderHandler(svc, logg, http.StatusOK, func(r *http.Request, actor auth.Actor, id uuid.UUID) (any, error) {
		return svc.Receipt(r.Context(), actor, id)
	})
}

func OrderCancel(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return orderHandler(svc, logg, http.StatusOK, func(r *http.Request, actor auth.Actor, id uuid.UUID) (any, error) {
		var req cancelOrderRequest
		if err := validators.DecodeOptionalJSONBody(r, &req); err != nil {
			return nil, err
		}
		return svc.Cancel(r.Context(), actor, id, orders.CancelInput{Reason: validators.SanitizeString(req.Reason, 500)})
	})
}

// OrderAssignDrivers opens a new invitation round for the listed drivers.
func OrderAssignDrivers(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return orderHandler(svc, logg, http.StatusOK, func(r *http.Request, actor auth.Actor, id uuid.UUID) (any, error) {
		var req assignDriversRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			return nil, err
		}
		driverIDs := make([]uuid.UUID, 0, len(req.DriverIDs))
		for _, raw := range req.DriverIDs {
			driverIDs = append(driverIDs, uuid.MustParse(raw))
		}
		return svc.AssignDriver(r.Context(), actor, id, driverIDs)
	})
}

func OrderVerifyOTP(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return orderHandler(svc, logg, http.StatusOK, func(r *http.Request, actor auth.Actor, id uuid.UUID) (any, error) {
		var req verifyOTPRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			return nil, err
		}
		return svc.VerifyOTP(r.Context(), actor, id, req.Code)
	})
}

func OrderResendOTP(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return orderHandler(svc, logg, http.StatusAccepted, func(r *http.Request, actor auth.Actor, id uuid.UUID) (any, error) {
		if err := svc.ResendOTP(r.Context(), actor, id); err != nil {
			return nil, err
		}
		return map[string]any{"order_id": id, "sent": true}, nil
	})
}

func OrderRelease(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return orderHandler(svc, logg, http.StatusOK, func(r *http.Request, actor auth.Actor, id uuid.UUID) (any, error) {
		return svc.ReleasePayment(r.Context(), actor, id)
	})
}
