package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/agriconnect/agriconnect-backend/internal/ledger"
	"github.com/agriconnect/agriconnect-backend/pkg/auth"
	"github.com/agriconnect/agriconnect-backend/pkg/config"
	"github.com/agriconnect/agriconnect-backend/pkg/db"
	"github.com/agriconnect/agriconnect-backend/pkg/db/models"
	"github.com/agriconnect/agriconnect-backend/pkg/enums"
	pkgerrors "github.com/agriconnect/agriconnect-backend/pkg/errors"
	"github.com/agriconnect/agriconnect-backend/pkg/logger"
	"github.com/agriconnect/agriconnect-backend/pkg/metrics"
	"github.com/agriconnect/agriconnect-backend/pkg/outbox"
	"github.com/agriconnect/agriconnect-backend/pkg/outbox/payloads"
	"github.com/agriconnect/agriconnect-backend/pkg/redis"
	"github.com/agriconnect/agriconnect-backend/pkg/verify"
)

// ExpiredReason is recorded on orders cancelled by the payment expiry job.
const ExpiredReason = "payment window expired"

// Inventory returns or reconciles listing stock inside the order transaction.
type Inventory interface {
	Restore(ctx context.Context, tx *gorm.DB, listingID uuid.UUID, qty int) error
	Reconcile(ctx context.Context, tx *gorm.DB, listingID uuid.UUID, qty int) error
}

// Wallet credits settlement proceeds inside the order transaction.
type Wallet interface {
	Credit(ctx context.Context, tx *gorm.DB, input ledger.EntryInput) (*models.LedgerEntry, error)
}

// Service drives orders through the state machine in statemachine.go.
type Service interface {
	CreateFromOffer(ctx context.Context, actor auth.Actor, offerID uuid.UUID) (*OrderDTO, error)
	CreateForAcceptedOffer(ctx context.Context, tx *gorm.DB, offer *models.Offer, actor auth.Actor) (*models.Order, error)
	Pay(ctx context.Context, tx *gorm.DB, actor auth.Actor, input PaymentInput) (*models.Order, error)
	Cancel(ctx context.Context, actor auth.Actor, orderID uuid.UUID, input CancelInput) (*OrderDTO, error)
	ExpireUnpaid(ctx context.Context, cutoff time.Time, limit int) (int, error)

	AssignDriver(ctx context.Context, actor auth.Actor, orderID uuid.UUID, driverIDs []uuid.UUID) (*OrderDetail, error)
	DriverAccept(ctx context.Context, actor auth.Actor, orderID uuid.UUID) (*OrderDTO, error)
	DriverDecline(ctx context.Context, actor auth.Actor, orderID uuid.UUID) (*OrderDetail, error)

	VerifyOTP(ctx context.Context, actor auth.Actor, orderID uuid.UUID, code string) (*OrderDTO, error)
	ResendOTP(ctx context.Context, actor auth.Actor, orderID uuid.UUID) error

	CompleteDelivery(ctx context.Context, actor auth.Actor, orderID uuid.UUID) (*OrderDTO, error)
	ReleasePayment(ctx context.Context, actor auth.Actor, orderID uuid.UUID) (*OrderDTO, error)

	Get(ctx context.Context, actor auth.Actor, orderID uuid.UUID) (*OrderDetail, error)
	Receipt(ctx context.Context, actor auth.Actor, orderID uuid.UUID) (*Receipt, error)
	ListForBuyer(ctx context.Context, actor auth.Actor, params ListParams) (*OrderList, error)
	ListForFarmer(ctx context.Context, actor auth.Actor, params ListParams) (*OrderList, error)
	ListAvailableForDriver(ctx context.Context, actor auth.Actor, params ListParams) (*OrderList, error)
	ListDriverDeliveries(ctx context.Context, actor auth.Actor, params ListParams) (*OrderList, error)
}

// ServiceParams bundles the collaborators of the order service.
type ServiceParams struct {
	Repo       Repository
	Tx         db.TxRunner
	Outbox     outbox.Emitter
	Inventory  Inventory
	Wallet     Wallet
	Verifier   verify.CodeSender
	Cooldowns  redis.CooldownStore
	Metrics    *metrics.OrderMetrics
	Logger     *logger.Logger
	Orders     config.OrdersConfig
	Settlement config.SettlementConfig
	Now        func() time.Time
}

type service struct {
	repo       Repository
	tx         db.TxRunner
	outbox     outbox.Emitter
	inventory  Inventory
	wallet     Wallet
	verifier   verify.CodeSender
	cooldowns  redis.CooldownStore
	metrics    *metrics.OrderMetrics
	logg       *logger.Logger
	cfg        config.OrdersConfig
	settlement config.SettlementConfig
	now        func() time.Time
}

// NewService validates the collaborators and builds the order service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.Inventory == nil {
		return nil, fmt.Errorf("inventory required")
	}
	if params.Wallet == nil {
		return nil, fmt.Errorf("wallet required")
	}
	if params.Verifier == nil {
		return nil, fmt.Errorf("otp verifier required")
	}
	if params.Cooldowns == nil {
		return nil, fmt.Errorf("cooldown store required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		repo:       params.Repo,
		tx:         params.Tx,
		outbox:     params.Outbox,
		inventory:  params.Inventory,
		wallet:     params.Wallet,
		verifier:   params.Verifier,
		cooldowns:  params.Cooldowns,
		metrics:    params.Metrics,
		logg:       logg,
		cfg:        params.Orders,
		settlement: params.Settlement,
		now:        now,
	}, nil
}

// CreateFromOffer returns the order of an accepted offer, creating it when
// acceptance did not get that far.
func (s *service) CreateFromOffer(ctx context.Context, actor auth.Actor, offerID uuid.UUID) (*OrderDTO, error) {
	offer, err := s.loadOffer(ctx, s.repo, offerID)
	if err != nil {
		return nil, err
	}
	if actor.ID != offer.BuyerID && actor.ID != offer.FarmerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "not a party to this offer")
	}
	if offer.Status != enums.OfferStatusAccepted {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "offer has not been accepted").
			WithDetails(map[string]any{"status": offer.Status})
	}

	var order *models.Order
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		order, err = s.CreateForAcceptedOffer(ctx, tx, offer, actor)
		return err
	})
	if err != nil {
		if !db.IsUniqueViolation(err, "offer_id") {
			return nil, err
		}
		order, err = s.repo.FindByOfferID(ctx, offerID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
	}
	return FromModel(order), nil
}

// CreateForAcceptedOffer creates the single order of offer on tx, or returns
// the one already referencing it.
func (s *service) CreateForAcceptedOffer(ctx context.Context, tx *gorm.DB, offer *models.Offer, actor auth.Actor) (*models.Order, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	if offer == nil || offer.Status != enums.OfferStatusAccepted {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "offer has not been accepted")
	}
	repo := s.repo.WithTx(tx)
	existing, err := repo.FindByOfferID(ctx, offer.ID)
	if err == nil {
		return existing, nil
	}
	if !db.IsNotFound(err) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing order")
	}

	order := &models.Order{
		OfferID:          offer.ID,
		ListingID:        offer.ListingID,
		FarmerID:         offer.FarmerID,
		BuyerID:          offer.BuyerID,
		Quantity:         offer.Quantity,
		FinalPriceCents:  offer.EffectivePriceCents(),
		DeliveryFeeCents: offer.DeliveryFeeCents,
		Status:           enums.OrderStatusPendingPayment,
	}
	if err := repo.Create(ctx, order); err != nil {
		return nil, err
	}
	err = s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         actor.Ref(),
		Data: payloads.OrderCreatedEvent{
			OrderID:          order.ID,
			OfferID:          order.OfferID,
			ListingID:        order.ListingID,
			BuyerID:          order.BuyerID,
			FarmerID:         order.FarmerID,
			Quantity:         order.Quantity,
			FinalPriceCents:  order.FinalPriceCents,
			DeliveryFeeCents: order.DeliveryFeeCents,
		},
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// Pay records a verified payment on tx. It is the only transition that
// marks money as received.
func (s *service) Pay(ctx context.Context, tx *gorm.DB, actor auth.Actor, input PaymentInput) (*models.Order, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	if strings.TrimSpace(input.Reference) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment reference is required")
	}
	repo := s.repo.WithTx(tx)
	order, err := s.load(ctx, repo, input.OrderID)
	if err != nil {
		return nil, err
	}
	if order.BuyerID != actor.ID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the buyer can pay for this order")
	}
	if err := guard(TransitionPay, order.Status); err != nil {
		return nil, err
	}

	paidAt := s.now()
	method := string(input.Method)
	reference := input.Reference
	amount := order.PayableCents()
	if err := s.apply(ctx, repo, order, TransitionPay, map[string]any{
		"payment_method":    method,
		"payment_reference": reference,
		"paid_at":           paidAt,
		"amount_paid_cents": amount,
	}); err != nil {
		return nil, err
	}
	if err := s.emitTransition(ctx, tx, order, enums.OrderStatusPendingPayment, enums.EventOrderPaid, actor, payloads.OrderTransitionEvent{AmountCents: amount}); err != nil {
		return nil, err
	}

	order.PaymentMethod = &method
	order.PaymentReference = &reference
	order.PaidAt = &paidAt
	order.AmountPaidCents = amount
	s.metrics.IncTransition(string(enums.OrderStatusPendingPayment), string(order.Status))
	return order, nil
}

// Cancel moves an unpaid order to cancelled and returns its stock.
func (s *service) Cancel(ctx context.Context, actor auth.Actor, orderID uuid.UUID, input CancelInput) (*OrderDTO, error) {
	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		order, err = s.load(ctx, repo, orderID)
		if err != nil {
			return err
		}
		if actor.ID != order.BuyerID && actor.ID != order.FarmerID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "not a party to this order")
		}
		return s.cancel(ctx, tx, order, strings.TrimSpace(input.Reason), actor.Ref())
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncTransition(string(enums.OrderStatusPendingPayment), string(enums.OrderStatusCancelled))
	s.logg.Info(s.logg.WithOrderID(ctx, orderID.String()), "order cancelled")
	return FromModel(order), nil
}

// ExpireUnpaid cancels orders left in pending_payment since before cutoff.
// Orders paid or cancelled concurrently are skipped.
func (s *service) ExpireUnpaid(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	stale, err := s.repo.ListPendingBefore(ctx, cutoff, limit)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list unpaid orders")
	}
	expired := 0
	var errs error
	for i := range stale {
		id := stale[i].ID
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			order, err := s.load(ctx, s.repo.WithTx(tx), id)
			if err != nil {
				return err
			}
			return s.cancel(ctx, tx, order, ExpiredReason, nil)
		})
		switch {
		case err == nil:
			expired++
			s.metrics.IncTransition(string(enums.OrderStatusPendingPayment), string(enums.OrderStatusCancelled))
		case pkgerrors.IsCode(err, pkgerrors.CodeStateConflict):
		default:
			errs = multierr.Append(errs, fmt.Errorf("expire order %s: %w", id, err))
		}
	}
	return expired, errs
}

func (s *service) cancel(ctx context.Context, tx *gorm.DB, order *models.Order, reason string, actor *outbox.ActorRef) error {
	if err := guard(TransitionCancel, order.Status); err != nil {
		return err
	}
	at := s.now()
	updates := map[string]any{"cancelled_at": at}
	var reasonPtr *string
	if reason != "" {
		reasonPtr = &reason
		updates["cancellation_reason"] = reason
	}
	if err := s.apply(ctx, s.repo.WithTx(tx), order, TransitionCancel, updates); err != nil {
		return err
	}
	if err := s.inventory.Restore(ctx, tx, order.ListingID, order.Quantity); err != nil {
		return err
	}
	order.CancelledAt = &at
	order.CancellationReason = reasonPtr
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderCancelled,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         actor,
		Data: payloads.OrderTransitionEvent{
			OrderID: order.ID,
			From:    enums.OrderStatusPendingPayment,
			To:      enums.OrderStatusCancelled,
			Reason:  reasonPtr,
		},
	})
}

// apply runs the compare-and-set for t and updates order in memory. A lost
// race surfaces as a state conflict against the status now stored.
func (s *service) apply(ctx context.Context, repo Repository, order *models.Order, t Transition, updates map[string]any) error {
	ok, err := repo.Transition(ctx, transitionParams{
		orderID: order.ID,
		from:    SourceStatuses(t),
		to:      TargetStatus(t),
		updates: updates,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
	}
	if !ok {
		current, err := s.load(ctx, repo, order.ID)
		if err != nil {
			return err
		}
		return stateConflict(t, current.Status)
	}
	order.Status = TargetStatus(t)
	return nil
}

func (s *service) emitTransition(ctx context.Context, tx *gorm.DB, order *models.Order, from enums.OrderStatus, eventType enums.OutboxEventType, actor auth.Actor, data payloads.OrderTransitionEvent) error {
	data.OrderID = order.ID
	data.From = from
	data.To = order.Status
	if data.DriverID == nil {
		data.DriverID = order.DriverID
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         actor.Ref(),
		Data:          data,
	})
}

func (s *service) load(ctx context.Context, repo Repository, id uuid.UUID) (*models.Order, error) {
	order, err := repo.FindByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) loadOffer(ctx context.Context, repo Repository, id uuid.UUID) (*models.Offer, error) {
	offer, err := repo.FindOffer(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "offer not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load offer")
	}
	return offer, nil
}
