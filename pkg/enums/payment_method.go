package enums

import "fmt"

// PaymentMethod describes how a buyer intends to settle an order.
type PaymentMethod string

const (
	PaymentMethodOnline PaymentMethod = "online"
	PaymentMethodCash   PaymentMethod = "cash"
)

var validPaymentMethods = []PaymentMethod{
	PaymentMethodOnline,
	PaymentMethodCash,
}

// String implements fmt.Stringer.
func (p PaymentMethod) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentMethod.
func (p PaymentMethod) IsValid() bool {
	for _, candidate := range validPaymentMethods {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePaymentMethod converts raw input into a PaymentMethod.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	for _, candidate := range validPaymentMethods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment method %q", value)
}

// PaymentChannel is the concrete rail used to settle a payment.
type PaymentChannel string

const (
	PaymentChannelCash    PaymentChannel = "cash"
	PaymentChannelGateway PaymentChannel = "gateway"
	PaymentChannelUPIQR   PaymentChannel = "upi_qr"
)

var validPaymentChannels = []PaymentChannel{
	PaymentChannelCash,
	PaymentChannelGateway,
	PaymentChannelUPIQR,
}

func (c PaymentChannel) String() string {
	return string(c)
}

func (c PaymentChannel) IsValid() bool {
	for _, candidate := range validPaymentChannels {
		if candidate == c {
			return true
		}
	}
	return false
}

// Method returns the buyer-facing method the channel belongs to.
func (c PaymentChannel) Method() PaymentMethod {
	if c == PaymentChannelCash {
		return PaymentMethodCash
	}
	return PaymentMethodOnline
}
