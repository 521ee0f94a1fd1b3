package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/harvestlink-backend/pkg/db/models"
	"github.com/angelmondragon/harvestlink-backend/pkg/enums"
	"github.com/angelmondragon/harvestlink-backend/pkg/types"
)

// ItemInput is one requested product line at checkout.
type ItemInput struct {
	ProductID uuid.UUID
	Quantity  int
}

// CreateOrdersInput is a buyer checkout.
type CreateOrdersInput struct {
	Items         []ItemInput
	PaymentMethod enums.PaymentMethod
}

// ListParams configures the participant order list.
type ListParams struct {
	Limit  int
	Cursor string
	Status *enums.OrderStatus
}

// ItemView is the API shape of an order line.
type ItemView struct {
	ProductID      uuid.UUID `json:"productId"`
	Name           string    `json:"name"`
	Unit           string    `json:"unit"`
	UnitPricePaise int64     `json:"unitPricePaise"`
	Price          string    `json:"price"`
	Quantity       int       `json:"quantity"`
	Reviewed       bool      `json:"reviewed"`
}

// OrderView is the API shape of an order. The OTP hash never leaves the service.
type OrderView struct {
	ID               uuid.UUID             `json:"id"`
	CheckoutID       uuid.UUID             `json:"checkoutId"`
	BuyerID          uuid.UUID             `json:"buyerId"`
	FarmerID         uuid.UUID             `json:"farmerId"`
	Buyer            types.ContactSnapshot `json:"buyer"`
	Farmer           types.ContactSnapshot `json:"farmer"`
	Items            []ItemView            `json:"items"`
	TotalPaise       int64                 `json:"totalPaise"`
	TotalPrice       string                `json:"totalPrice"`
	Status           enums.OrderStatus     `json:"status"`
	PaymentMethod    enums.PaymentMethod   `json:"paymentMethod"`
	PaymentStatus    enums.PaymentStatus   `json:"paymentStatus"`
	OTPVerifiedAt    *time.Time            `json:"otpVerifiedAt,omitempty"`
	CancelReason     *string               `json:"cancelReason,omitempty"`
	CancelledAt      *time.Time            `json:"cancelledAt,omitempty"`
	ShippedAt        *time.Time            `json:"shippedAt,omitempty"`
	DeliveredAt      *time.Time            `json:"deliveredAt,omitempty"`
	DeliverySequence *int                  `json:"deliverySequence,omitempty"`
	CreatedAt        time.Time             `json:"createdAt"`
}

// OrderList wraps a page of orders plus the next page cursor.
type OrderList struct {
	Orders     []OrderView `json:"orders"`
	NextCursor string      `json:"nextCursor,omitempty"`
}

// NewOrderView converts a stored order into its API shape.
func NewOrderView(o models.Order) OrderView {
	items := make([]ItemView, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, ItemView{
			ProductID:      item.ProductID,
			Name:           item.Name,
			Unit:           item.Unit,
			UnitPricePaise: item.UnitPricePaise,
			Price:          types.Paise(item.UnitPricePaise).Rupees(),
			Quantity:       item.Quantity,
			Reviewed:       item.Reviewed,
		})
	}
	return OrderView{
		ID:               o.ID,
		CheckoutID:       o.CheckoutID,
		BuyerID:          o.BuyerID,
		FarmerID:         o.FarmerID,
		Buyer:            o.BuyerSnapshot,
		Farmer:           o.FarmerSnapshot,
		Items:            items,
		TotalPaise:       o.TotalPaise,
		TotalPrice:       types.Paise(o.TotalPaise).Rupees(),
		Status:           o.Status,
		PaymentMethod:    o.PaymentMethod,
		PaymentStatus:    o.PaymentStatus,
		OTPVerifiedAt:    o.OTPVerifiedAt,
		CancelReason:     o.CancelReason,
		CancelledAt:      o.CancelledAt,
		ShippedAt:        o.ShippedAt,
		DeliveredAt:      o.DeliveredAt,
		DeliverySequence: o.DeliverySequence,
		CreatedAt:        o.CreatedAt,
	}
}

// NewOrderViews converts a slice of orders.
func NewOrderViews(orders []models.Order) []OrderView {
	out := make([]OrderView, 0, len(orders))
	for _, o := range orders {
		out = append(out, NewOrderView(o))
	}
	return out
}
