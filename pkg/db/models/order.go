package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/harvestlink-backend/pkg/enums"
	"github.com/angelmondragon/harvestlink-backend/pkg/types"
)

// Order is one buyer/farmer slice of a checkout.
type Order struct {
	ID               uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CheckoutID       uuid.UUID             `gorm:"column:checkout_id;type:uuid;not null"`
	BuyerID          uuid.UUID             `gorm:"column:buyer_id;type:uuid;not null"`
	FarmerID         uuid.UUID             `gorm:"column:farmer_id;type:uuid;not null"`
	BuyerSnapshot    types.ContactSnapshot `gorm:"column:buyer_snapshot;type:jsonb;not null"`
	FarmerSnapshot   types.ContactSnapshot `gorm:"column:farmer_snapshot;type:jsonb;not null"`
	TotalPaise       int64                 `gorm:"column:total_paise;not null"`
	OTPHash          string                `gorm:"column:otp_hash;not null"`
	OTPVerifiedAt    *time.Time            `gorm:"column:otp_verified_at"`
	Status           enums.OrderStatus     `gorm:"column:status;type:order_status;not null"`
	PaymentMethod    enums.PaymentMethod   `gorm:"column:payment_method;type:payment_method;not null"`
	PaymentStatus    enums.PaymentStatus   `gorm:"column:payment_status;type:payment_status;not null"`
	StockReserved    bool                  `gorm:"column:stock_reserved;not null"`
	CancelReason     *string               `gorm:"column:cancel_reason"`
	CancelledBy      *uuid.UUID            `gorm:"column:cancelled_by;type:uuid"`
	CancelledAt      *time.Time            `gorm:"column:cancelled_at"`
	ShippedAt        *time.Time            `gorm:"column:shipped_at"`
	DeliveredAt      *time.Time            `gorm:"column:delivered_at"`
	DeliverySequence *int                  `gorm:"column:delivery_sequence"`
	Items            []OrderItem           `gorm:"foreignKey:OrderID"`
	CreatedAt        time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

// OrderItem is an immutable snapshot of a product line at order creation.
type OrderItem struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID        uuid.UUID `gorm:"column:order_id;type:uuid;not null"`
	ProductID      uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	Name           string    `gorm:"column:name;not null"`
	Unit           string    `gorm:"column:unit;not null"`
	UnitPricePaise int64     `gorm:"column:unit_price_paise;not null"`
	Quantity       int       `gorm:"column:quantity;not null"`
	Reviewed       bool      `gorm:"column:reviewed;not null;default:false"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
}

// LineTotalPaise returns unit price times quantity.
func (i OrderItem) LineTotalPaise() int64 {
	return i.UnitPricePaise * int64(i.Quantity)
}
