package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// PaymentSignature is hex(HMAC_SHA256(keySecret, orderID + "|" + paymentID)).
func PaymentSignature(keySecret, gatewayOrderID, paymentID string) string {
	return sign(keySecret, []byte(gatewayOrderID+"|"+paymentID))
}

// WebhookSignature is hex(HMAC_SHA256(webhookSecret, rawBody)).
func WebhookSignature(webhookSecret string, rawBody []byte) string {
	return sign(webhookSecret, rawBody)
}

// VerifyPaymentSignature compares the checkout callback signature in constant time.
func VerifyPaymentSignature(keySecret, gatewayOrderID, paymentID, signature string) bool {
	if keySecret == "" || gatewayOrderID == "" || paymentID == "" {
		return false
	}
	return equalHex(PaymentSignature(keySecret, gatewayOrderID, paymentID), signature)
}

// VerifyWebhookSignature compares the webhook header signature in constant time.
func VerifyWebhookSignature(webhookSecret string, rawBody []byte, signature string) bool {
	if webhookSecret == "" || len(rawBody) == 0 {
		return false
	}
	return equalHex(WebhookSignature(webhookSecret, rawBody), signature)
}

func sign(secret string, message []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(message)
	return hex.EncodeToString(mac.Sum(nil))
}

func equalHex(expected, provided string) bool {
	provided = strings.ToLower(strings.TrimSpace(provided))
	if provided == "" {
		return false
	}
	return hmac.Equal([]byte(expected), []byte(provided))
}
