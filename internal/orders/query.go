package orders

import (
	"context"

	"github.com/google/uuid"

	"github.com/agriconnect/agriconnect-backend/pkg/auth"
	"github.com/agriconnect/agriconnect-backend/pkg/db"
	"github.com/agriconnect/agriconnect-backend/pkg/db/models"
	"github.com/agriconnect/agriconnect-backend/pkg/enums"
	pkgerrors "github.com/agriconnect/agriconnect-backend/pkg/errors"
	"github.com/agriconnect/agriconnect-backend/pkg/pagination"
)

// Get returns the order to any of its parties, including drivers invited
// to the current round.
func (s *service) Get(ctx context.Context, actor auth.Actor, orderID uuid.UUID) (*OrderDetail, error) {
	order, err := s.load(ctx, s.repo, orderID)
	if err != nil {
		return nil, err
	}
	invs, err := s.repo.ListInvitations(ctx, order.ID, order.InvitationRound)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list invitations")
	}
	if !canView(actor, order, invs) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "not a party to this order")
	}
	if actor.ID != order.FarmerID {
		invs = nil
	}
	return detail(order, invs), nil
}

// Receipt assembles the printable summary of a paid order.
func (s *service) Receipt(ctx context.Context, actor auth.Actor, orderID uuid.UUID) (*Receipt, error) {
	order, err := s.load(ctx, s.repo, orderID)
	if err != nil {
		return nil, err
	}
	if !isParty(actor, order) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "not a party to this order")
	}
	if !HasReceipt(order.Status) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "receipt is available once the order is paid").
			WithDetails(map[string]any{"status": order.Status})
	}

	crop := ""
	listing, err := s.repo.FindListing(ctx, order.ListingID)
	switch {
	case err == nil:
		crop = listing.CropName
	case !db.IsNotFound(err):
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load listing")
	}

	ids := []uuid.UUID{order.BuyerID, order.FarmerID}
	if order.DriverID != nil {
		ids = append(ids, *order.DriverID)
	}
	users, err := s.repo.FindUsers(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load parties")
	}
	names := make(map[uuid.UUID]string, len(users))
	for _, u := range users {
		names[u.ID] = u.Name
	}
	return buildReceipt(order, crop, names), nil
}

func (s *service) ListForBuyer(ctx context.Context, actor auth.Actor, params ListParams) (*OrderList, error) {
	if !actor.Is(enums.RoleBuyer) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "buyer role required")
	}
	return s.list(ctx, params, func(page pagination.Window) ([]models.Order, error) {
		return s.repo.List(ctx, listQuery{buyerID: &actor.ID, statuses: params.Scope.Statuses(), page: page})
	})
}

func (s *service) ListForFarmer(ctx context.Context, actor auth.Actor, params ListParams) (*OrderList, error) {
	if !actor.Is(enums.RoleFarmer) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "farmer role required")
	}
	return s.list(ctx, params, func(page pagination.Window) ([]models.Order, error) {
		return s.repo.List(ctx, listQuery{farmerID: &actor.ID, statuses: params.Scope.Statuses(), page: page})
	})
}

// ListAvailableForDriver lists orders the driver may still accept.
func (s *service) ListAvailableForDriver(ctx context.Context, actor auth.Actor, params ListParams) (*OrderList, error) {
	if !actor.Is(enums.RoleDriver) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "driver role required")
	}
	return s.list(ctx, params, func(page pagination.Window) ([]models.Order, error) {
		return s.repo.ListInvitedForDriver(ctx, actor.ID, page)
	})
}

// ListDriverDeliveries lists orders assigned to the driver, ongoing and completed.
func (s *service) ListDriverDeliveries(ctx context.Context, actor auth.Actor, params ListParams) (*OrderList, error) {
	if !actor.Is(enums.RoleDriver) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "driver role required")
	}
	statuses := DriverDeliveryStatuses()
	if params.Scope == ScopeOngoing {
		statuses = driverOngoingStatuses
	}
	return s.list(ctx, params, func(page pagination.Window) ([]models.Order, error) {
		return s.repo.List(ctx, listQuery{driverID: &actor.ID, statuses: statuses, page: page})
	})
}

func (s *service) list(ctx context.Context, params ListParams, fetch func(page pagination.Window) ([]models.Order, error)) (*OrderList, error) {
	page, err := params.Window()
	if err != nil {
		return nil, err
	}
	rows, err := fetch(page)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	rows, next := pagination.Trim(page, rows, func(m models.Order) pagination.Cursor {
		return pagination.Cursor{CreatedAt: m.CreatedAt, ID: m.ID}
	})
	out := &OrderList{Orders: make([]OrderDTO, len(rows)), Cursor: next}
	for i := range rows {
		out.Orders[i] = *FromModel(&rows[i])
	}
	return out, nil
}

func isParty(actor auth.Actor, order *models.Order) bool {
	if actor.ID == order.BuyerID || actor.ID == order.FarmerID {
		return true
	}
	return order.DriverID != nil && *order.DriverID == actor.ID
}

func canView(actor auth.Actor, order *models.Order, invs []models.DriverInvitation) bool {
	if isParty(actor, order) {
		return true
	}
	for _, inv := range invs {
		if inv.DriverID == actor.ID && inv.Status == enums.InvitationStatusInvited {
			return true
		}
	}
	return false
}
