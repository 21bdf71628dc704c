package offers

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agriconnect/agriconnect-backend/internal/orders"
	"github.com/agriconnect/agriconnect-backend/pkg/auth"
	"github.com/agriconnect/agriconnect-backend/pkg/db"
	"github.com/agriconnect/agriconnect-backend/pkg/db/models"
	"github.com/agriconnect/agriconnect-backend/pkg/enums"
	pkgerrors "github.com/agriconnect/agriconnect-backend/pkg/errors"
	"github.com/agriconnect/agriconnect-backend/pkg/logger"
	"github.com/agriconnect/agriconnect-backend/pkg/outbox"
	"github.com/agriconnect/agriconnect-backend/pkg/outbox/payloads"
	"github.com/agriconnect/agriconnect-backend/pkg/pagination"
)

const acceptedUniqueIndex = "idx_offers_buyer_listing_accepted"

var openStatuses = []enums.OfferStatus{enums.OfferStatusPending, enums.OfferStatusCountered}

// Stock takes accepted quantity out of a listing on the caller's transaction.
type Stock interface {
	Decrement(ctx context.Context, tx *gorm.DB, listingID uuid.UUID, qty int) error
}

// OrderCreator creates the single order of an accepted offer.
type OrderCreator interface {
	CreateForAcceptedOffer(ctx context.Context, tx *gorm.DB, offer *models.Offer, actor auth.Actor) (*models.Order, error)
}

// Service runs offer negotiation.
type Service interface {
	CreateOffer(ctx context.Context, actor auth.Actor, input CreateOfferInput) (*OfferDTO, error)
	Counter(ctx context.Context, actor auth.Actor, offerID uuid.UUID, input CounterInput) (*OfferDTO, error)
	Accept(ctx context.Context, actor auth.Actor, offerID uuid.UUID) (*AcceptResult, error)
	Reject(ctx context.Context, actor auth.Actor, offerID uuid.UUID) (*OfferDTO, error)
	Delete(ctx context.Context, actor auth.Actor, offerID uuid.UUID) error
	Get(ctx context.Context, actor auth.Actor, offerID uuid.UUID) (*OfferDTO, error)
	ListForBuyer(ctx context.Context, actor auth.Actor, params ListParams) (*OfferList, error)
	ListForFarmer(ctx context.Context, actor auth.Actor, params ListParams) (*OfferList, error)
}

// ServiceParams bundles the collaborators of the offers service.
type ServiceParams struct {
	Repo   Repository
	Tx     db.TxRunner
	Outbox outbox.Emitter
	Stock  Stock
	Orders OrderCreator
	Logger *logger.Logger
}

type service struct {
	repo   Repository
	tx     db.TxRunner
	outbox outbox.Emitter
	stock  Stock
	orders OrderCreator
	logg   *logger.Logger
}

// NewService validates the collaborators and builds the offers service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("offers repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.Stock == nil {
		return nil, fmt.Errorf("stock required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order creator required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		repo:   params.Repo,
		tx:     params.Tx,
		outbox: params.Outbox,
		stock:  params.Stock,
		orders: params.Orders,
		logg:   logg,
	}, nil
}

func (s *service) CreateOffer(ctx context.Context, actor auth.Actor, input CreateOfferInput) (*OfferDTO, error) {
	if !actor.Is(enums.RoleBuyer) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only buyers can make offers")
	}
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	if input.PriceCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must be positive")
	}
	if input.DeliveryFeeCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery fee cannot be negative")
	}

	var offer *models.Offer
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		listing, err := repo.FindListing(ctx, input.ListingID)
		if err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load listing")
		}
		offer = &models.Offer{
			ListingID:         listing.ID,
			BuyerID:           actor.ID,
			FarmerID:          listing.FarmerID,
			Quantity:          input.Quantity,
			OfferedPriceCents: input.PriceCents,
			DeliveryFeeCents:  input.DeliveryFeeCents,
			Status:            enums.OfferStatusPending,
			LastActionBy:      enums.RoleBuyer,
		}
		if err := repo.Create(ctx, offer); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create offer")
		}
		return s.emit(ctx, tx, enums.EventOfferCreated, offer, actor, offer.OfferedPriceCents)
	})
	if err != nil {
		return nil, err
	}
	return FromModel(offer), nil
}

// Counter appends a price to the negotiation log. The log is append-only;
// its last entry is the price on the table.
func (s *service) Counter(ctx context.Context, actor auth.Actor, offerID uuid.UUID, input CounterInput) (*OfferDTO, error) {
	if input.PriceCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must be positive")
	}
	var offer *models.Offer
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		offer, err = s.load(ctx, repo, offerID)
		if err != nil {
			return err
		}
		if err := authorizeNegotiator(actor, offer); err != nil {
			return err
		}
		if !offer.Status.IsOpen() {
			return closedOffer(offer.Status)
		}

		counter := models.CounterOffer{
			OfferID:    offer.ID,
			Seq:        len(offer.CounterOffers) + 1,
			PriceCents: input.PriceCents,
			AuthorRole: actor.Role,
			Notes:      trimmedOrNil(input.Notes),
		}
		if err := repo.AppendCounter(ctx, &counter); err != nil {
			if db.IsUniqueViolation(err, "idx_counter_offers_offer_seq") {
				return pkgerrors.New(pkgerrors.CodeConflict, "offer changed while countering, reload and retry")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append counter offer")
		}
		ok, err := repo.UpdateStatus(ctx, offer.ID, openStatuses, map[string]any{
			"status":         enums.OfferStatusCountered,
			"last_action_by": actor.Role,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update offer")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeConflict, "offer changed while countering, reload and retry")
		}
		offer.CounterOffers = append(offer.CounterOffers, counter)
		offer.Status = enums.OfferStatusCountered
		offer.LastActionBy = actor.Role
		return s.emit(ctx, tx, enums.EventOfferCountered, offer, actor, counter.PriceCents)
	})
	if err != nil {
		return nil, err
	}
	return FromModel(offer), nil
}

// Accept closes the negotiation at the price on the table, takes the stock
// and creates the order, all in one transaction.
func (s *service) Accept(ctx context.Context, actor auth.Actor, offerID uuid.UUID) (*AcceptResult, error) {
	var (
		offer *models.Offer
		order *models.Order
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		offer, err = s.load(ctx, repo, offerID)
		if err != nil {
			return err
		}
		if err := authorizeNegotiator(actor, offer); err != nil {
			return err
		}
		if !offer.Status.IsOpen() {
			return closedOffer(offer.Status)
		}
		price, err := acceptablePrice(offer, actor.Role)
		if err != nil {
			return err
		}
		taken, err := repo.HasOtherAccepted(ctx, offer.BuyerID, offer.ListingID, offer.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check accepted offers")
		}
		if taken {
			return pkgerrors.New(pkgerrors.CodeConflict, "buyer already has an accepted offer on this listing")
		}

		if err := s.stock.Decrement(ctx, tx, offer.ListingID, offer.Quantity); err != nil {
			return err
		}
		ok, err := repo.UpdateStatus(ctx, offer.ID, openStatuses, map[string]any{
			"status":               enums.OfferStatusAccepted,
			"accepted_price_cents": price,
			"last_action_by":       actor.Role,
		})
		if err != nil {
			if db.IsUniqueViolation(err, acceptedUniqueIndex) {
				return pkgerrors.New(pkgerrors.CodeConflict, "buyer already has an accepted offer on this listing")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "accept offer")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "offer was closed concurrently")
		}
		offer.Status = enums.OfferStatusAccepted
		offer.AcceptedPriceCents = &price
		offer.LastActionBy = actor.Role
		if err := s.emit(ctx, tx, enums.EventOfferAccepted, offer, actor, price); err != nil {
			return err
		}
		order, err = s.orders.CreateForAcceptedOffer(ctx, tx, offer, actor)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithOrderID(ctx, order.ID.String()), "offer accepted")
	return &AcceptResult{Offer: FromModel(offer), Order: orders.FromModel(order)}, nil
}

func (s *service) Reject(ctx context.Context, actor auth.Actor, offerID uuid.UUID) (*OfferDTO, error) {
	var offer *models.Offer
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		offer, err = s.load(ctx, repo, offerID)
		if err != nil {
			return err
		}
		if err := authorizeNegotiator(actor, offer); err != nil {
			return err
		}
		if !offer.Status.IsOpen() {
			return closedOffer(offer.Status)
		}
		ok, err := repo.UpdateStatus(ctx, offer.ID, openStatuses, map[string]any{
			"status":         enums.OfferStatusRejected,
			"last_action_by": actor.Role,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reject offer")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "offer was closed concurrently")
		}
		offer.Status = enums.OfferStatusRejected
		offer.LastActionBy = actor.Role
		return s.emit(ctx, tx, enums.EventOfferRejected, offer, actor, currentPrice(offer))
	})
	if err != nil {
		return nil, err
	}
	return FromModel(offer), nil
}

// Delete lets the buyer withdraw an offer that was never accepted.
func (s *service) Delete(ctx context.Context, actor auth.Actor, offerID uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		offer, err := s.load(ctx, repo, offerID)
		if err != nil {
			return err
		}
		if !actor.Is(enums.RoleBuyer) || offer.BuyerID != actor.ID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only the buyer can withdraw this offer")
		}
		if offer.Status == enums.OfferStatusAccepted {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "accepted offers cannot be withdrawn")
		}
		if err := repo.Delete(ctx, offer.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete offer")
		}
		return s.emit(ctx, tx, enums.EventOfferWithdrawn, offer, actor, currentPrice(offer))
	})
}

func (s *service) Get(ctx context.Context, actor auth.Actor, offerID uuid.UUID) (*OfferDTO, error) {
	offer, err := s.load(ctx, s.repo, offerID)
	if err != nil {
		return nil, err
	}
	if actor.ID != offer.BuyerID && actor.ID != offer.FarmerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "not a party to this offer")
	}
	return FromModel(offer), nil
}

func (s *service) ListForBuyer(ctx context.Context, actor auth.Actor, params ListParams) (*OfferList, error) {
	if !actor.Is(enums.RoleBuyer) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "buyer role required")
	}
	statuses := params.Statuses
	if len(statuses) == 0 {
		statuses = []enums.OfferStatus{enums.OfferStatusPending, enums.OfferStatusCountered, enums.OfferStatusRejected}
	}
	return s.list(ctx, params, listQuery{buyerID: &actor.ID, statuses: statuses})
}

func (s *service) ListForFarmer(ctx context.Context, actor auth.Actor, params ListParams) (*OfferList, error) {
	if !actor.Is(enums.RoleFarmer) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "farmer role required")
	}
	return s.list(ctx, params, listQuery{farmerID: &actor.ID, statuses: params.Statuses})
}

func (s *service) list(ctx context.Context, params ListParams, q listQuery) (*OfferList, error) {
	page, err := params.Window()
	if err != nil {
		return nil, err
	}
	q.page = page
	rows, err := s.repo.List(ctx, q)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list offers")
	}
	rows, next := pagination.Trim(page, rows, func(m models.Offer) pagination.Cursor {
		return pagination.Cursor{CreatedAt: m.CreatedAt, ID: m.ID}
	})
	out := &OfferList{Offers: make([]OfferDTO, len(rows)), Cursor: next}
	for i := range rows {
		out.Offers[i] = *FromModel(&rows[i])
	}
	return out, nil
}

// acceptablePrice applies the alternation rule: a party may only accept a
// price last set by the other side. The opening price counts as the buyer's.
func acceptablePrice(offer *models.Offer, role enums.Role) (int64, error) {
	n := len(offer.CounterOffers)
	if n == 0 {
		if role != enums.RoleFarmer {
			return 0, pkgerrors.New(pkgerrors.CodeStateConflict, "only the farmer can accept the opening offer")
		}
		return offer.OfferedPriceCents, nil
	}
	last := offer.CounterOffers[n-1]
	if last.AuthorRole == role {
		return 0, pkgerrors.New(pkgerrors.CodeStateConflict, "cannot accept your own counter-offer").
			WithDetails(map[string]any{"last_counter_by": last.AuthorRole})
	}
	return last.PriceCents, nil
}

func authorizeNegotiator(actor auth.Actor, offer *models.Offer) error {
	switch actor.Role {
	case enums.RoleFarmer:
		if offer.FarmerID == actor.ID {
			return nil
		}
	case enums.RoleBuyer:
		if offer.BuyerID == actor.ID {
			return nil
		}
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "not a party to this offer")
}

func closedOffer(status enums.OfferStatus) error {
	return pkgerrors.Newf(pkgerrors.CodeStateConflict, "offer is already %s", status).
		WithDetails(map[string]any{"status": status})
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, offer *models.Offer, actor auth.Actor, price int64) error {
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateOffer,
		AggregateID:   offer.ID,
		Actor:         actor.Ref(),
		Data: payloads.OfferEvent{
			OfferID:    offer.ID,
			ListingID:  offer.ListingID,
			BuyerID:    offer.BuyerID,
			FarmerID:   offer.FarmerID,
			Status:     offer.Status,
			Quantity:   offer.Quantity,
			PriceCents: price,
			ActorRole:  actor.Role,
		},
	})
}

func (s *service) load(ctx context.Context, repo Repository, id uuid.UUID) (*models.Offer, error) {
	offer, err := repo.FindByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "offer not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load offer")
	}
	return offer, nil
}

func trimmedOrNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
