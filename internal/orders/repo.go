package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agriconnect/agriconnect-backend/pkg/db/models"
	"github.com/agriconnect/agriconnect-backend/pkg/enums"
	"github.com/agriconnect/agriconnect-backend/pkg/pagination"
)

// Repository persists orders, their driver invitations and the minimal
// related rows the state machine reads.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByOfferID(ctx context.Context, offerID uuid.UUID) (*models.Order, error)
	FindOffer(ctx context.Context, offerID uuid.UUID) (*models.Offer, error)
	FindUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindUsers(ctx context.Context, ids []uuid.UUID) ([]models.User, error)
	FindListing(ctx context.Context, id uuid.UUID) (*models.Listing, error)
	CountDrivers(ctx context.Context, ids []uuid.UUID) (int64, error)

	Transition(ctx context.Context, params transitionParams) (bool, error)
	ClaimDriver(ctx context.Context, orderID, driverID uuid.UUID, at time.Time) (bool, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error

	CreateInvitations(ctx context.Context, invitations []models.DriverInvitation) error
	FindInvitation(ctx context.Context, orderID, driverID uuid.UUID, round int) (*models.DriverInvitation, error)
	ListInvitations(ctx context.Context, orderID uuid.UUID, round int) ([]models.DriverInvitation, error)
	SetInvitationStatus(ctx context.Context, orderID, driverID uuid.UUID, round int, from, to enums.InvitationStatus) (bool, error)
	VoidOpenInvitations(ctx context.Context, orderID uuid.UUID, exceptDriver *uuid.UUID) error

	List(ctx context.Context, q listQuery) ([]models.Order, error)
	ListInvitedForDriver(ctx context.Context, driverID uuid.UUID, page pagination.Window) ([]models.Order, error)
	ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
}

// transitionParams describes one compare-and-set status move.
type transitionParams struct {
	orderID         uuid.UUID
	from            []enums.OrderStatus
	to              enums.OrderStatus
	requireNoDriver bool
	updates         map[string]any
}

type listQuery struct {
	buyerID  *uuid.UUID
	farmerID *uuid.UUID
	driverID *uuid.UUID
	statuses []enums.OrderStatus
	page     pagination.Window
}

type repository struct {
	db *gorm.DB
}

// NewRepository binds an orders repository to db.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).First(&order, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByOfferID(ctx context.Context, offerID uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).First(&order, "offer_id = ?", offerID).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindOffer(ctx context.Context, offerID uuid.UUID) (*models.Offer, error) {
	var offer models.Offer
	if err := r.db.WithContext(ctx).First(&offer, "id = ?", offerID).Error; err != nil {
		return nil, err
	}
	return &offer, nil
}

func (r *repository) FindUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *repository) FindUsers(ctx context.Context, ids []uuid.UUID) ([]models.User, error) {
	var users []models.User
	if len(ids) == 0 {
		return users, nil
	}
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (r *repository) FindListing(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	var listing models.Listing
	if err := r.db.WithContext(ctx).First(&listing, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &listing, nil
}

func (r *repository) CountDrivers(ctx context.Context, ids []uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id IN ? AND role = ?", ids, enums.RoleDriver).
		Count(&count).Error
	return count, err
}

// Transition moves the order only when its status is still one of from.
func (r *repository) Transition(ctx context.Context, p transitionParams) (bool, error) {
	updates := map[string]any{"status": p.to}
	for k, v := range p.updates {
		updates[k] = v
	}
	query := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status IN ?", p.orderID, p.from)
	if p.requireNoDriver {
		query = query.Where("driver_id IS NULL")
	}
	res := query.Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ClaimDriver records driverID as the winner in one statement. It succeeds
// only while the order awaits acceptance, has no driver, and driverID holds
// an open invitation in the current round.
func (r *repository) ClaimDriver(ctx context.Context, orderID, driverID uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ? AND driver_id IS NULL", orderID, enums.OrderStatusAwaitingDriverAccept).
		Where(`EXISTS (SELECT 1 FROM order_driver_invitations i
			WHERE i.order_id = orders.id AND i.driver_id = ? AND i.status = ? AND i.round = orders.invitation_round)`,
			driverID, enums.InvitationStatusInvited).
		Updates(map[string]any{
			"driver_id":          driverID,
			"status":             enums.OrderStatusDriverAssigned,
			"driver_accepted_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", id).Updates(updates).Error
}

func (r *repository) CreateInvitations(ctx context.Context, invitations []models.DriverInvitation) error {
	if len(invitations) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&invitations).Error
}

func (r *repository) FindInvitation(ctx context.Context, orderID, driverID uuid.UUID, round int) (*models.DriverInvitation, error) {
	var inv models.DriverInvitation
	err := r.db.WithContext(ctx).
		First(&inv, "order_id = ? AND driver_id = ? AND round = ?", orderID, driverID, round).Error
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *repository) ListInvitations(ctx context.Context, orderID uuid.UUID, round int) ([]models.DriverInvitation, error) {
	var rows []models.DriverInvitation
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND round = ?", orderID, round).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) SetInvitationStatus(ctx context.Context, orderID, driverID uuid.UUID, round int, from, to enums.InvitationStatus) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.DriverInvitation{}).
		Where("order_id = ? AND driver_id = ? AND round = ? AND status = ?", orderID, driverID, round, from).
		Updates(map[string]any{"status": to})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// VoidOpenInvitations closes every still-open invitation of the order,
// optionally sparing one driver.
func (r *repository) VoidOpenInvitations(ctx context.Context, orderID uuid.UUID, exceptDriver *uuid.UUID) error {
	query := r.db.WithContext(ctx).
		Model(&models.DriverInvitation{}).
		Where("order_id = ? AND status = ?", orderID, enums.InvitationStatusInvited)
	if exceptDriver != nil {
		query = query.Where("driver_id <> ?", *exceptDriver)
	}
	return query.Updates(map[string]any{"status": enums.InvitationStatusVoided}).Error
}

func (r *repository) List(ctx context.Context, q listQuery) ([]models.Order, error) {
	query := r.db.WithContext(ctx).Model(&models.Order{})
	if q.buyerID != nil {
		query = query.Where("buyer_id = ?", *q.buyerID)
	}
	if q.farmerID != nil {
		query = query.Where("farmer_id = ?", *q.farmerID)
	}
	if q.driverID != nil {
		query = query.Where("driver_id = ?", *q.driverID)
	}
	if len(q.statuses) > 0 {
		query = query.Where("status IN ?", q.statuses)
	}
	var rows []models.Order
	err := query.Scopes(q.page.Scope("")).Find(&rows).Error
	return rows, err
}

// ListInvitedForDriver returns orders still open to the driver in their
// current invitation round.
func (r *repository) ListInvitedForDriver(ctx context.Context, driverID uuid.UUID, page pagination.Window) ([]models.Order, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Select("orders.*").
		Joins("JOIN order_driver_invitations i ON i.order_id = orders.id AND i.round = orders.invitation_round").
		Where("i.driver_id = ? AND i.status = ?", driverID, enums.InvitationStatusInvited).
		Where("orders.status = ? AND orders.driver_id IS NULL", enums.OrderStatusAwaitingDriverAccept)
	var rows []models.Order
	err := query.Scopes(page.Scope("orders.")).Find(&rows).Error
	return rows, err
}

func (r *repository) ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error) {
	var rows []models.Order
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", enums.OrderStatusPendingPayment, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
