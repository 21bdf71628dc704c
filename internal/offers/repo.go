package offers

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agriconnect/agriconnect-backend/pkg/db/models"
	"github.com/agriconnect/agriconnect-backend/pkg/enums"
	"github.com/agriconnect/agriconnect-backend/pkg/pagination"
)

// Repository persists offers and their counter-offer log.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, offer *models.Offer) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Offer, error)
	FindListing(ctx context.Context, id uuid.UUID) (*models.Listing, error)
	AppendCounter(ctx context.Context, counter *models.CounterOffer) error
	UpdateStatus(ctx context.Context, id uuid.UUID, from []enums.OfferStatus, updates map[string]any) (bool, error)
	HasOtherAccepted(ctx context.Context, buyerID, listingID, exceptOfferID uuid.UUID) (bool, error)
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, q listQuery) ([]models.Offer, error)
}

type listQuery struct {
	buyerID  *uuid.UUID
	farmerID *uuid.UUID
	statuses []enums.OfferStatus
	page     pagination.Window
}

type repository struct {
	db *gorm.DB
}

// NewRepository binds an offers repository to db.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, offer *models.Offer) error {
	return r.db.WithContext(ctx).Omit("CounterOffers").Create(offer).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Offer, error) {
	var offer models.Offer
	err := r.db.WithContext(ctx).
		Preload("CounterOffers", func(db *gorm.DB) *gorm.DB { return db.Order("seq ASC") }).
		First(&offer, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &offer, nil
}

func (r *repository) FindListing(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	var listing models.Listing
	if err := r.db.WithContext(ctx).First(&listing, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &listing, nil
}

// AppendCounter inserts the next log entry. The (offer_id, seq) unique index
// rejects a concurrent writer that claimed the same position.
func (r *repository) AppendCounter(ctx context.Context, counter *models.CounterOffer) error {
	return r.db.WithContext(ctx).Create(counter).Error
}

// UpdateStatus applies updates only while the offer is in one of from.
func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, from []enums.OfferStatus, updates map[string]any) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Offer{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) HasOtherAccepted(ctx context.Context, buyerID, listingID, exceptOfferID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Offer{}).
		Where("buyer_id = ? AND listing_id = ? AND status = ? AND id <> ?", buyerID, listingID, enums.OfferStatusAccepted, exceptOfferID).
		Count(&count).Error
	return count > 0, err
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	if err := r.db.WithContext(ctx).Where("offer_id = ?", id).Delete(&models.CounterOffer{}).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Offer{}).Error
}

func (r *repository) List(ctx context.Context, q listQuery) ([]models.Offer, error) {
	query := r.db.WithContext(ctx).Model(&models.Offer{})
	if q.buyerID != nil {
		query = query.Where("buyer_id = ?", *q.buyerID)
	}
	if q.farmerID != nil {
		query = query.Where("farmer_id = ?", *q.farmerID)
	}
	if len(q.statuses) > 0 {
		query = query.Where("status IN ?", q.statuses)
	}
	var rows []models.Offer
	err := query.
		Preload("CounterOffers", func(db *gorm.DB) *gorm.DB { return db.Order("seq ASC") }).
		Scopes(q.page.Scope("")).
		Find(&rows).Error
	return rows, err
}
