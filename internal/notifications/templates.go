package notifications

import (
	"fmt"
	"strings"

	"github.com/angelmondragon/harvestlink-backend/pkg/enums"
	"github.com/angelmondragon/harvestlink-backend/pkg/types"
)

type rendered struct {
	Title string
	Body  string
}

func shortID(p Payload) string {
	id := p.OrderID.String()
	if len(id) > 8 {
		return strings.ToUpper(id[:8])
	}
	return id
}

func render(event enums.NotificationEvent, target Target, p Payload) rendered {
	order := shortID(p)
	amount := types.Paise(p.AmountPaise).Rupees()
	switch event {
	case enums.NotifyOrderOTP:
		return rendered{
			Title: fmt.Sprintf("Your order code for #%s", order),
			Body:  fmt.Sprintf("Hi %s, share code %s with %s to confirm order #%s (Rs %s).", target.Name, p.OTP, p.Counterpart, order, amount),
		}
	case enums.NotifyOrderReceived:
		return rendered{
			Title: fmt.Sprintf("New order #%s", order),
			Body:  fmt.Sprintf("%s placed an order worth Rs %s. It is waiting for the buyer's code.", p.Counterpart, amount),
		}
	case enums.NotifyOrderConfirmed:
		return rendered{
			Title: fmt.Sprintf("Order #%s confirmed", order),
			Body:  fmt.Sprintf("Order #%s has been confirmed and is now processing.", order),
		}
	case enums.NotifyOrderStatusChanged:
		return rendered{
			Title: fmt.Sprintf("Order #%s is %s", order, p.Status),
			Body:  fmt.Sprintf("%s updated order #%s to %s.", p.Counterpart, order, p.Status),
		}
	case enums.NotifyOrderCancelled:
		return rendered{
			Title: fmt.Sprintf("Order #%s cancelled", order),
			Body:  fmt.Sprintf("%s cancelled order #%s. Reason: %s", p.Counterpart, order, p.Reason),
		}
	case enums.NotifyPaymentReceived:
		return rendered{
			Title: fmt.Sprintf("Payment received for #%s", order),
			Body:  fmt.Sprintf("Rs %s for order #%s has been credited to your wallet.", amount, order),
		}
	case enums.NotifyPaymentFailed:
		return rendered{
			Title: fmt.Sprintf("Payment failed for #%s", order),
			Body:  fmt.Sprintf("The payment for order #%s did not go through. %s", order, p.Reason),
		}
	case enums.NotifyPaymentProofSubmitted:
		return rendered{
			Title: fmt.Sprintf("Payment proof for #%s", order),
			Body:  fmt.Sprintf("%s marked order #%s as paid (Rs %s). Review the proof to confirm.", p.Counterpart, order, amount),
		}
	case enums.NotifyPaymentRejected:
		return rendered{
			Title: fmt.Sprintf("Payment rejected for #%s", order),
			Body:  fmt.Sprintf("%s rejected your payment for order #%s. Reason: %s", p.Counterpart, order, p.Reason),
		}
	default:
		return rendered{
			Title: fmt.Sprintf("Update on order #%s", order),
			Body:  fmt.Sprintf("Order #%s has a new update.", order),
		}
	}
}
