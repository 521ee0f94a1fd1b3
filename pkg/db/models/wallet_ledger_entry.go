package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/harvestlink-backend/pkg/enums"
)

// WalletLedgerEntry records an immutable wallet movement tied to a payment.
type WalletLedgerEntry struct {
	ID          uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProfileID   uuid.UUID             `gorm:"column:profile_id;type:uuid;not null"`
	PaymentID   uuid.UUID             `gorm:"column:payment_id;type:uuid;not null"`
	OrderID     uuid.UUID             `gorm:"column:order_id;type:uuid;not null"`
	EntryType   enums.WalletEntryType `gorm:"column:entry_type;type:wallet_entry_type;not null"`
	AmountPaise int64                 `gorm:"column:amount_paise;not null"`
	Channel     enums.PaymentChannel  `gorm:"column:channel;type:payment_channel;not null"`
	CreatedAt   time.Time             `gorm:"column:created_at;autoCreateTime"`
}
