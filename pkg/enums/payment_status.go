package enums

import "fmt"

// PaymentStatus tracks the settlement lifecycle of an order's payment.
type PaymentStatus string

const (
	PaymentStatusPending              PaymentStatus = "pending"
	PaymentStatusAwaitingConfirmation PaymentStatus = "awaiting_confirmation"
	PaymentStatusPaid                 PaymentStatus = "paid"
	PaymentStatusFailed               PaymentStatus = "failed"
	PaymentStatusRejected             PaymentStatus = "rejected"
	PaymentStatusRefunded             PaymentStatus = "refunded"
	PaymentStatusCancelled            PaymentStatus = "cancelled"
)

var validPaymentStatuses = []PaymentStatus{
	PaymentStatusPending,
	PaymentStatusAwaitingConfirmation,
	PaymentStatusPaid,
	PaymentStatusFailed,
	PaymentStatusRejected,
	PaymentStatusRefunded,
	PaymentStatusCancelled,
}

// paymentTransitions lists, per target status, the statuses it may be reached from.
var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusAwaitingConfirmation: {PaymentStatusPending, PaymentStatusFailed},
	PaymentStatusPaid:                 {PaymentStatusPending, PaymentStatusAwaitingConfirmation, PaymentStatusFailed},
	PaymentStatusFailed:               {PaymentStatusPending},
	PaymentStatusRejected:             {PaymentStatusAwaitingConfirmation},
	PaymentStatusRefunded:             {PaymentStatusPaid},
	PaymentStatusCancelled:            {PaymentStatusPending, PaymentStatusAwaitingConfirmation, PaymentStatusFailed},
}

// String implements fmt.Stringer.
func (p PaymentStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentStatus.
func (p PaymentStatus) IsValid() bool {
	for _, candidate := range validPaymentStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// IsSettled reports whether money has moved (or been returned) for the payment.
func (p PaymentStatus) IsSettled() bool {
	return p == PaymentStatusPaid || p == PaymentStatusRefunded
}

// AllowedPriorStatuses returns the statuses from which target may be entered.
func AllowedPriorStatuses(target PaymentStatus) []PaymentStatus {
	prior := paymentTransitions[target]
	out := make([]PaymentStatus, len(prior))
	copy(out, prior)
	return out
}

// CanTransitionPayment reports whether from -> to is an edge of the payment graph.
func CanTransitionPayment(from, to PaymentStatus) bool {
	for _, candidate := range paymentTransitions[to] {
		if candidate == from {
			return true
		}
	}
	return false
}

// ParsePaymentStatus converts raw input into a PaymentStatus.
func ParsePaymentStatus(value string) (PaymentStatus, error) {
	for _, candidate := range validPaymentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment status %q", value)
}
