// Package notifications delivers best-effort email and in-app notices for
// order and payment events. Delivery never feeds back into the caller.
package notifications

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/harvestlink-backend/pkg/db/models"
	"github.com/angelmondragon/harvestlink-backend/pkg/enums"
)

// Target identifies who receives a notice.
type Target struct {
	ProfileID uuid.UUID
	Name      string
	Email     string
}

// BuyerOf addresses the buyer on an order using its creation snapshot.
func BuyerOf(order models.Order) Target {
	return Target{
		ProfileID: order.BuyerID,
		Name:      order.BuyerSnapshot.Name,
		Email:     order.BuyerSnapshot.Email,
	}
}

func FarmerOf(order models.Order) Target {
	return Target{
		ProfileID: order.FarmerID,
		Name:      order.FarmerSnapshot.Name,
		Email:     order.FarmerSnapshot.Email,
	}
}

// Payload carries the event facts used to render a notice.
type Payload struct {
	OrderID     uuid.UUID
	OTP         string
	Status      string
	Reason      string
	AmountPaise int64
	Counterpart string
}

// Notifier is the port order and payment services depend on. Notify must
// return promptly and never report delivery failures to the caller.
type Notifier interface {
	Notify(ctx context.Context, target Target, event enums.NotificationEvent, payload Payload)
}

// Nop discards every notice.
type Nop struct{}

func (Nop) Notify(context.Context, Target, enums.NotificationEvent, Payload) {}
