package enums

import "fmt"

// NotificationType maps to the notification_type enum in Postgres.
type NotificationType string

const (
	NotificationTypeOrderAlert    NotificationType = "order_alert"
	NotificationTypePaymentAlert  NotificationType = "payment_alert"
	NotificationTypeSecurityAlert NotificationType = "security_alert"
)

var validNotificationTypes = []NotificationType{
	NotificationTypeOrderAlert,
	NotificationTypePaymentAlert,
	NotificationTypeSecurityAlert,
}

// IsValid checks whether the given type matches the canonical enum.
func (n NotificationType) IsValid() bool {
	for _, candidate := range validNotificationTypes {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationType converts raw strings into NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	for _, candidate := range validNotificationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification type %q", value)
}

// NotificationEvent names what happened, used to pick templates.
type NotificationEvent string

const (
	NotifyOrderOTP              NotificationEvent = "order_otp"
	NotifyOrderReceived         NotificationEvent = "order_received"
	NotifyOrderConfirmed        NotificationEvent = "order_confirmed"
	NotifyOrderStatusChanged    NotificationEvent = "order_status_changed"
	NotifyOrderCancelled        NotificationEvent = "order_cancelled"
	NotifyPaymentReceived       NotificationEvent = "payment_received"
	NotifyPaymentFailed         NotificationEvent = "payment_failed"
	NotifyPaymentProofSubmitted NotificationEvent = "payment_proof_submitted"
	NotifyPaymentRejected       NotificationEvent = "payment_rejected"
)

// NotificationType returns the in-app category for the event.
func (e NotificationEvent) NotificationType() NotificationType {
	switch e {
	case NotifyPaymentReceived, NotifyPaymentFailed, NotifyPaymentProofSubmitted, NotifyPaymentRejected:
		return NotificationTypePaymentAlert
	case NotifyOrderOTP:
		return NotificationTypeSecurityAlert
	default:
		return NotificationTypeOrderAlert
	}
}
