package payments

import (
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/harvestlink-backend/pkg/db/models"
	"github.com/angelmondragon/harvestlink-backend/pkg/enums"
	"github.com/angelmondragon/harvestlink-backend/pkg/types"
)

// CheckoutInput opens a payment for an order.
type CheckoutInput struct {
	OrderID       uuid.UUID
	PaymentMethod enums.PaymentMethod
}

// VerifyInput is what the hosted checkout hands back to the buyer's client.
type VerifyInput struct {
	GatewayOrderID   string
	GatewayPaymentID string
	Signature        string
}

// ProofInput is a buyer's manual UPI transfer evidence.
type ProofInput struct {
	TransactionID string
	Notes         string
	Filename      string
	ContentType   string
	Screenshot    io.Reader
}

// CheckoutSession is returned from CreatePaymentOrder.
type CheckoutSession struct {
	PaymentID      uuid.UUID            `json:"paymentId"`
	OrderID        uuid.UUID            `json:"orderId"`
	Method         enums.PaymentMethod  `json:"paymentMethod"`
	Channel        enums.PaymentChannel `json:"channel"`
	Status         enums.PaymentStatus  `json:"status"`
	Amount         types.Money          `json:"amount"`
	GatewayOrderID string               `json:"gatewayOrderId,omitempty"`
	KeyID          string               `json:"keyId,omitempty"`
	Currency       string               `json:"currency,omitempty"`
}

// QRCode is the rendered UPI payment request.
type QRCode struct {
	ImageURL string      `json:"imageUrl"`
	Amount   types.Money `json:"amount"`
	PayeeID  string      `json:"payeeId"`
	UPILink  string      `json:"upiLink"`
}

// PaymentView is the API shape of a payment.
type PaymentView struct {
	ID             uuid.UUID                  `json:"id"`
	OrderID        uuid.UUID                  `json:"orderId"`
	Amount         types.Money                `json:"amount"`
	Method         enums.PaymentMethod        `json:"paymentMethod"`
	Channel        enums.PaymentChannel       `json:"channel"`
	Status         enums.PaymentStatus        `json:"status"`
	GatewayOrderID *string                    `json:"gatewayOrderId,omitempty"`
	QRImageURL     *string                    `json:"qrImageUrl,omitempty"`
	Proof          *types.PaymentProof        `json:"proof,omitempty"`
	Verification   *types.PaymentVerification `json:"verification,omitempty"`
	FailureReason  *string                    `json:"failureReason,omitempty"`
	CreditedAt     *time.Time                 `json:"creditedAt,omitempty"`
	CreatedAt      time.Time                  `json:"createdAt"`
	UpdatedAt      time.Time                  `json:"updatedAt"`
}

// NewPaymentView converts a stored payment into its API shape.
func NewPaymentView(p models.Payment) PaymentView {
	return PaymentView{
		ID:             p.ID,
		OrderID:        p.OrderID,
		Amount:         types.NewMoney(types.Paise(p.AmountPaise)),
		Method:         p.PaymentMethod,
		Channel:        p.Channel,
		Status:         p.Status,
		GatewayOrderID: p.GatewayOrderID,
		QRImageURL:     p.QRImageURL,
		Proof:          p.Proof,
		Verification:   p.Verification,
		FailureReason:  p.FailureReason,
		CreditedAt:     p.CreditedAt,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

// ReconcileResult counts the repairs made by one reconciliation pass.
type ReconcileResult struct {
	StatusRepaired int
	Credited       int
}
