package listings

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agriconnect/agriconnect-backend/pkg/db/models"
	"github.com/agriconnect/agriconnect-backend/pkg/pagination"
)

// Repository persists listings and guards their stock counters.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, listing *models.Listing) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Listing, error)
	List(ctx context.Context, query listQuery) ([]models.Listing, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	DecrementQuantity(ctx context.Context, id uuid.UUID, qty int) (bool, error)
	RestoreQuantity(ctx context.Context, id uuid.UUID, qty int) (bool, error)
	ReconcileQuantity(ctx context.Context, id uuid.UUID, qty int) (bool, error)
}

type listQuery struct {
	farmerID      *uuid.UUID
	crop          string
	availableOnly bool
	page          pagination.Window
}

type repository struct {
	db *gorm.DB
}

// NewRepository binds a listings repository to db.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, listing *models.Listing) error {
	return r.db.WithContext(ctx).Create(listing).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	var listing models.Listing
	if err := r.db.WithContext(ctx).First(&listing, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &listing, nil
}

func (r *repository) List(ctx context.Context, q listQuery) ([]models.Listing, error) {
	query := r.db.WithContext(ctx).Model(&models.Listing{})
	if q.farmerID != nil {
		query = query.Where("farmer_id = ?", *q.farmerID)
	}
	if q.crop != "" {
		query = query.Where("LOWER(crop_name) LIKE ?", "%"+q.crop+"%")
	}
	if q.availableOnly {
		query = query.Where("quantity > 0")
	}
	var rows []models.Listing
	err := query.Scopes(q.page.Scope("")).Find(&rows).Error
	return rows, err
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).Model(&models.Listing{}).Where("id = ?", id).Updates(updates).Error
}

// DecrementQuantity takes qty from the available stock only when enough is
// left; it reports false otherwise.
func (r *repository) DecrementQuantity(ctx context.Context, id uuid.UUID, qty int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Listing{}).
		Where("id = ? AND quantity >= ?", id, qty).
		Updates(map[string]any{"quantity": gorm.Expr("quantity - ?", qty)})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// RestoreQuantity returns qty to the available stock, never exceeding the
// originally posted quantity.
func (r *repository) RestoreQuantity(ctx context.Context, id uuid.UUID, qty int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Listing{}).
		Where("id = ?", id).
		Updates(map[string]any{"quantity": gorm.Expr("CASE WHEN quantity + ? > actual_quantity THEN actual_quantity ELSE quantity + ? END", qty, qty)})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ReconcileQuantity subtracts qty with a floor of zero.
func (r *repository) ReconcileQuantity(ctx context.Context, id uuid.UUID, qty int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Listing{}).
		Where("id = ?", id).
		Updates(map[string]any{"quantity": gorm.Expr("CASE WHEN quantity - ? < 0 THEN 0 ELSE quantity - ? END", qty, qty)})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
