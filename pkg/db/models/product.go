package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Product is the stock-bearing slice of a catalog listing. The catalog
// service owns every other column; this core only moves current_quantity.
type Product struct {
	ID              uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	FarmerID        uuid.UUID      `gorm:"column:farmer_id;type:uuid;not null"`
	Name            string         `gorm:"column:name;not null"`
	Unit            string         `gorm:"column:unit;not null"`
	PricePaise      int64          `gorm:"column:price_paise;not null"`
	CurrentQuantity int            `gorm:"column:current_quantity;not null"`
	CreatedAt       time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time      `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt       gorm.DeletedAt `gorm:"column:deleted_at;index"`
}
