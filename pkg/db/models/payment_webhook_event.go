package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// PaymentWebhookEvent is the audit row for a signature-verified gateway callback.
type PaymentWebhookEvent struct {
	ID         uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	EventID    string          `gorm:"column:event_id;not null;uniqueIndex"`
	EventType  string          `gorm:"column:event_type;not null"`
	PaymentID  *uuid.UUID      `gorm:"column:payment_id;type:uuid"`
	Payload    json.RawMessage `gorm:"column:payload;type:jsonb;not null"`
	Outcome    string          `gorm:"column:outcome;not null"`
	ReceivedAt time.Time       `gorm:"column:received_at;autoCreateTime"`
}
