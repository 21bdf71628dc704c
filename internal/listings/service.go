package listings

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agriconnect/agriconnect-backend/pkg/auth"
	"github.com/agriconnect/agriconnect-backend/pkg/db"
	"github.com/agriconnect/agriconnect-backend/pkg/db/models"
	"github.com/agriconnect/agriconnect-backend/pkg/enums"
	pkgerrors "github.com/agriconnect/agriconnect-backend/pkg/errors"
	"github.com/agriconnect/agriconnect-backend/pkg/outbox"
	"github.com/agriconnect/agriconnect-backend/pkg/outbox/payloads"
	"github.com/agriconnect/agriconnect-backend/pkg/pagination"
)

// Service manages listings and their stock counters.
type Service interface {
	Create(ctx context.Context, actor auth.Actor, input CreateListingInput) (*ListingDTO, error)
	Get(ctx context.Context, id uuid.UUID) (*ListingDTO, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
	Update(ctx context.Context, actor auth.Actor, id uuid.UUID, input UpdateListingInput) (*ListingDTO, error)
	Inventory
}

// Inventory is the stock surface used by offer acceptance, cancellation and
// settlement. Every method runs on the caller's transaction.
type Inventory interface {
	Decrement(ctx context.Context, tx *gorm.DB, listingID uuid.UUID, qty int) error
	Restore(ctx context.Context, tx *gorm.DB, listingID uuid.UUID, qty int) error
	Reconcile(ctx context.Context, tx *gorm.DB, listingID uuid.UUID, qty int) error
}

type service struct {
	repo   Repository
	tx     db.TxRunner
	outbox outbox.Emitter
}

// NewService wires the listings service.
func NewService(repo Repository, tx db.TxRunner, emitter outbox.Emitter) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("listings repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	return &service{repo: repo, tx: tx, outbox: emitter}, nil
}

func (s *service) Create(ctx context.Context, actor auth.Actor, input CreateListingInput) (*ListingDTO, error) {
	if !actor.Is(enums.RoleFarmer) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only farmers can create listings")
	}
	crop := strings.TrimSpace(input.CropName)
	if crop == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "crop name is required")
	}
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	if input.PricePerKgCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price per kg must be positive")
	}

	listing := &models.Listing{
		FarmerID:        actor.ID,
		CropName:        crop,
		Category:        strings.TrimSpace(input.Category),
		Quantity:        input.Quantity,
		ActualQuantity:  input.Quantity,
		PricePerKgCents: input.PricePerKgCents,
		Location:        strings.TrimSpace(input.Location),
		Description:     trimmedOrNil(input.Description),
		ImageURL:        trimmedOrNil(input.ImageURL),
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, listing); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create listing")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventListingCreated,
			AggregateType: enums.AggregateListing,
			AggregateID:   listing.ID,
			Actor:         actor.Ref(),
			Data: payloads.ListingCreatedEvent{
				ListingID:       listing.ID,
				FarmerID:        listing.FarmerID,
				CropName:        listing.CropName,
				Quantity:        listing.Quantity,
				PricePerKgCents: listing.PricePerKgCents,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return FromModel(listing), nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*ListingDTO, error) {
	listing, err := s.load(ctx, s.repo, id)
	if err != nil {
		return nil, err
	}
	return FromModel(listing), nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	page, err := params.Window()
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.List(ctx, listQuery{
		farmerID:      params.FarmerID,
		crop:          strings.ToLower(strings.TrimSpace(params.Crop)),
		availableOnly: params.AvailableOnly,
		page:          page,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list listings")
	}

	rows, next := pagination.Trim(page, rows, func(m models.Listing) pagination.Cursor {
		return pagination.Cursor{CreatedAt: m.CreatedAt, ID: m.ID}
	})
	out := &ListResult{Listings: make([]ListingDTO, len(rows)), Cursor: next}
	for i := range rows {
		out.Listings[i] = *FromModel(&rows[i])
	}
	return out, nil
}

func (s *service) Update(ctx context.Context, actor auth.Actor, id uuid.UUID, input UpdateListingInput) (*ListingDTO, error) {
	if !actor.Is(enums.RoleFarmer) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only farmers can update listings")
	}
	if input.IsEmpty() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no fields to update")
	}
	updates, err := buildUpdates(input)
	if err != nil {
		return nil, err
	}

	var updated *models.Listing
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		listing, err := s.load(ctx, repo, id)
		if err != nil {
			return err
		}
		if listing.FarmerID != actor.ID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "listing belongs to another farmer")
		}
		if err := repo.Update(ctx, id, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update listing")
		}
		updated, err = s.load(ctx, repo, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return FromModel(updated), nil
}

func buildUpdates(input UpdateListingInput) (map[string]any, error) {
	updates := map[string]any{}
	if input.CropName != nil {
		crop := strings.TrimSpace(*input.CropName)
		if crop == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "crop name cannot be blank")
		}
		updates["crop_name"] = crop
	}
	if input.Category != nil {
		updates["category"] = strings.TrimSpace(*input.Category)
	}
	if input.PricePerKgCents != nil {
		if *input.PricePerKgCents <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "price per kg must be positive")
		}
		updates["price_per_kg_cents"] = *input.PricePerKgCents
	}
	if input.Location != nil {
		updates["location"] = strings.TrimSpace(*input.Location)
	}
	if input.Description.Valid {
		updates["description"] = trimmedOrNil(input.Description.Value)
	}
	if input.ImageURL.Valid {
		updates["image_url"] = trimmedOrNil(input.ImageURL.Value)
	}
	return updates, nil
}

func (s *service) Decrement(ctx context.Context, tx *gorm.DB, listingID uuid.UUID, qty int) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	repo := s.repo.WithTx(tx)
	ok, err := repo.DecrementQuantity(ctx, listingID, qty)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decrement listing quantity")
	}
	if ok {
		return nil
	}
	listing, err := s.load(ctx, repo, listingID)
	if err != nil {
		return err
	}
	return pkgerrors.Newf(pkgerrors.CodeInsufficientStock, "only %d units available", listing.Quantity).
		WithDetails(map[string]any{"available": listing.Quantity, "requested": qty})
}

func (s *service) Restore(ctx context.Context, tx *gorm.DB, listingID uuid.UUID, qty int) error {
	ok, err := s.repo.WithTx(tx).RestoreQuantity(ctx, listingID, qty)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "restore listing quantity")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")
	}
	return nil
}

func (s *service) Reconcile(ctx context.Context, tx *gorm.DB, listingID uuid.UUID, qty int) error {
	ok, err := s.repo.WithTx(tx).ReconcileQuantity(ctx, listingID, qty)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reconcile listing quantity")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")
	}
	return nil
}

func (s *service) load(ctx context.Context, repo Repository, id uuid.UUID) (*models.Listing, error) {
	listing, err := repo.FindByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load listing")
	}
	return listing, nil
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
