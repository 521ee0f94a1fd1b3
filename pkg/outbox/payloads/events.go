package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/harvestlink-backend/pkg/enums"
)

// OrderCreatedEvent signals a new per-farmer order from a checkout.
type OrderCreatedEvent struct {
	OrderID       uuid.UUID           `json:"order_id"`
	CheckoutID    uuid.UUID           `json:"checkout_id"`
	BuyerID       uuid.UUID           `json:"buyer_id"`
	FarmerID      uuid.UUID           `json:"farmer_id"`
	TotalPaise    int64               `json:"total_paise"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	ItemCount     int                 `json:"item_count"`
}

// OrderVerifiedEvent is emitted once the buyer confirms the order code.
type OrderVerifiedEvent struct {
	OrderID    uuid.UUID `json:"order_id"`
	BuyerID    uuid.UUID `json:"buyer_id"`
	FarmerID   uuid.UUID `json:"farmer_id"`
	VerifiedAt time.Time `json:"verified_at"`
}

// OrderStatusChangedEvent tracks farmer-driven fulfilment progress.
type OrderStatusChangedEvent struct {
	OrderID       uuid.UUID           `json:"order_id"`
	BuyerID       uuid.UUID           `json:"buyer_id"`
	FarmerID      uuid.UUID           `json:"farmer_id"`
	From          enums.OrderStatus   `json:"from"`
	To            enums.OrderStatus   `json:"to"`
	PaymentStatus enums.PaymentStatus `json:"payment_status"`
	ChangedAt     time.Time           `json:"changed_at"`
}

// OrderCanceledEvent carries what the counterpart needs to be told.
type OrderCanceledEvent struct {
	OrderID       uuid.UUID       `json:"order_id"`
	BuyerID       uuid.UUID       `json:"buyer_id"`
	FarmerID      uuid.UUID       `json:"farmer_id"`
	CancelledBy   uuid.UUID       `json:"cancelled_by"`
	CancelledRole enums.ActorRole `json:"cancelled_role"`
	CounterpartID uuid.UUID       `json:"counterpart_id"`
	Reason        string          `json:"reason,omitempty"`
	TotalPaise    int64           `json:"total_paise"`
	StockRestored bool            `json:"stock_restored"`
	CanceledAt    time.Time       `json:"canceled_at"`
}

// OrderExpiredEvent is emitted when an unverified order times out.
type OrderExpiredEvent struct {
	OrderID    uuid.UUID `json:"order_id"`
	BuyerID    uuid.UUID `json:"buyer_id"`
	FarmerID   uuid.UUID `json:"farmer_id"`
	TotalPaise int64     `json:"total_paise"`
	ExpiredAt  time.Time `json:"expired_at"`
}

// PaymentStatusEvent is shared by every payment transition event.
type PaymentStatusEvent struct {
	PaymentID   uuid.UUID            `json:"payment_id"`
	OrderID     uuid.UUID            `json:"order_id"`
	BuyerID     uuid.UUID            `json:"buyer_id"`
	FarmerID    uuid.UUID            `json:"farmer_id"`
	Channel     enums.PaymentChannel `json:"channel"`
	From        enums.PaymentStatus  `json:"from"`
	Status      enums.PaymentStatus  `json:"status"`
	AmountPaise int64                `json:"amount_paise"`
	Reason      string               `json:"reason,omitempty"`
	OccurredAt  time.Time            `json:"occurred_at"`
}
