package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Listing is a farmer's posted crop. Quantity is what remains available for
// new offers; ActualQuantity is what was originally posted.
type Listing struct {
	ID              uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	FarmerID        uuid.UUID `gorm:"column:farmer_id;type:uuid;not null;index"`
	CropName        string    `gorm:"column:crop_name;not null"`
	Category        string    `gorm:"column:category;not null;default:''"`
	Quantity        int       `gorm:"column:quantity;not null"`
	ActualQuantity  int       `gorm:"column:actual_quantity;not null"`
	PricePerKgCents int64     `gorm:"column:price_per_kg_cents;not null"`
	Location        string    `gorm:"column:location;not null;default:''"`
	Description     *string   `gorm:"column:description"`
	ImageURL        *string   `gorm:"column:image_url"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (l *Listing) BeforeCreate(*gorm.DB) error {
	ensureID(&l.ID)
	return nil
}
