package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/harvestlink-backend/pkg/enums"
)

// Profile is the shared user profile row. Only wallet_balance_paise is written here.
type Profile struct {
	ID                 uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Role               enums.ActorRole `gorm:"column:role;type:actor_role;not null"`
	Name               string          `gorm:"column:name;not null"`
	Email              string          `gorm:"column:email"`
	Phone              string          `gorm:"column:phone"`
	Address            string          `gorm:"column:address"`
	UpiID              *string         `gorm:"column:upi_id"`
	WalletBalancePaise int64           `gorm:"column:wallet_balance_paise;not null;default:0"`
	CreatedAt          time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
