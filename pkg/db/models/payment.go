package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/harvestlink-backend/pkg/enums"
	"github.com/angelmondragon/harvestlink-backend/pkg/types"
)

// Payment is the single settlement record for an order.
type Payment struct {
	ID               uuid.UUID                  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID          uuid.UUID                  `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	BuyerID          uuid.UUID                  `gorm:"column:buyer_id;type:uuid;not null"`
	FarmerID         uuid.UUID                  `gorm:"column:farmer_id;type:uuid;not null"`
	AmountPaise      int64                      `gorm:"column:amount_paise;not null"`
	PaymentMethod    enums.PaymentMethod        `gorm:"column:payment_method;type:payment_method;not null"`
	Channel          enums.PaymentChannel       `gorm:"column:channel;type:payment_channel;not null"`
	Status           enums.PaymentStatus        `gorm:"column:status;type:payment_status;not null"`
	GatewayOrderID   *string                    `gorm:"column:gateway_order_id"`
	GatewayPaymentID *string                    `gorm:"column:gateway_payment_id"`
	GatewaySignature *string                    `gorm:"column:gateway_signature"`
	QRImageURL       *string                    `gorm:"column:qr_image_url"`
	Proof            *types.PaymentProof        `gorm:"column:proof;type:jsonb"`
	Verification     *types.PaymentVerification `gorm:"column:verification;type:jsonb"`
	FailureReason    *string                    `gorm:"column:failure_reason"`
	CreditedAt       *time.Time                 `gorm:"column:credited_at"`
	CreatedAt        time.Time                  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time                  `gorm:"column:updated_at;autoUpdateTime"`
}
