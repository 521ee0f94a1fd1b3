package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/harvestlink-backend/pkg/enums"
)

// Notification stores in-app notices addressed to a profile.
type Notification struct {
	ID          uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	RecipientID uuid.UUID               `gorm:"column:recipient_id;type:uuid;not null"`
	Type        enums.NotificationType  `gorm:"column:type;type:notification_type;not null"`
	Event       enums.NotificationEvent `gorm:"column:event;not null"`
	Title       string                  `gorm:"column:title;not null"`
	Message     string                  `gorm:"column:message;not null"`
	OrderID     *uuid.UUID              `gorm:"column:order_id;type:uuid"`
	ReadAt      *time.Time              `gorm:"column:read_at"`
	CreatedAt   time.Time               `gorm:"column:created_at;autoCreateTime"`
}
