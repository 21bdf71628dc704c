package orders

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agriconnect/agriconnect-backend/internal/ledger"
	"github.com/agriconnect/agriconnect-backend/pkg/auth"
	"github.com/agriconnect/agriconnect-backend/pkg/db/models"
	"github.com/agriconnect/agriconnect-backend/pkg/enums"
	pkgerrors "github.com/agriconnect/agriconnect-backend/pkg/errors"
	"github.com/agriconnect/agriconnect-backend/pkg/outbox/payloads"
)

// CompleteDelivery is the driver's settlement entry point.
func (s *service) CompleteDelivery(ctx context.Context, actor auth.Actor, orderID uuid.UUID) (*OrderDTO, error) {
	if !actor.Is(enums.RoleDriver) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the assigned driver can complete delivery")
	}
	return s.settle(ctx, actor, orderID, func(o *models.Order) error {
		if o.DriverID == nil || *o.DriverID != actor.ID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order is not assigned to this driver")
		}
		return nil
	}, s.settlement.ReconcileListing)
}

// ReleasePayment is the farmer's settlement entry point.
func (s *service) ReleasePayment(ctx context.Context, actor auth.Actor, orderID uuid.UUID) (*OrderDTO, error) {
	return s.settle(ctx, actor, orderID, func(o *models.Order) error {
		if o.FarmerID != actor.ID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only the farmer can release payment")
		}
		return nil
	}, false)
}

// settle is the one routine that pays out a delivered order. The status
// compare-and-set to completed runs before any credit, so a second call
// fails without touching a wallet.
func (s *service) settle(ctx context.Context, actor auth.Actor, orderID uuid.UUID, authorize func(*models.Order) error, reconcile bool) (*OrderDTO, error) {
	var (
		order *models.Order
		from  enums.OrderStatus
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		order, err = s.load(ctx, repo, orderID)
		if err != nil {
			return err
		}
		if err := authorize(order); err != nil {
			return err
		}
		if err := guard(TransitionSettle, order.Status); err != nil {
			return err
		}

		from = order.Status
		earning := order.GoodsTotalCents()
		at := s.now()
		if err := s.apply(ctx, repo, order, TransitionSettle, map[string]any{
			"farmer_earning_cents": earning,
			"completed_at":         at,
		}); err != nil {
			return err
		}
		order.FarmerEarningCents = earning
		order.CompletedAt = &at

		if _, err := s.wallet.Credit(ctx, tx, ledger.EntryInput{
			UserID:      order.FarmerID,
			AmountCents: earning,
			Description: fmt.Sprintf("Payment for order %s", order.ID),
			OrderID:     &order.ID,
			Actor:       actor.Ref(),
		}); err != nil {
			return err
		}
		if order.DeliveryFeeCents > 0 && order.DriverID != nil {
			if _, err := s.wallet.Credit(ctx, tx, ledger.EntryInput{
				UserID:      *order.DriverID,
				AmountCents: order.DeliveryFeeCents,
				Description: fmt.Sprintf("Delivery fee for order %s", order.ID),
				OrderID:     &order.ID,
				Actor:       actor.Ref(),
			}); err != nil {
				return err
			}
		}
		if reconcile {
			if err := s.inventory.Reconcile(ctx, tx, order.ListingID, order.Quantity); err != nil {
				return err
			}
		}
		return s.emitTransition(ctx, tx, order, from, enums.EventOrderCompleted, actor, payloads.OrderTransitionEvent{AmountCents: earning})
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncTransition(string(from), string(order.Status))
	s.metrics.IncSettled()
	s.logg.Info(s.logg.WithOrderID(ctx, orderID.String()), "order settled")
	return FromModel(order), nil
}
