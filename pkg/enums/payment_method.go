package enums

import "fmt"

// PaymentMethod describes how the customer pays for an order.
type PaymentMethod string

const (
	PaymentMethodPayNow PaymentMethod = "paynow"
	PaymentMethodCard   PaymentMethod = "card"
	PaymentMethodCash   PaymentMethod = "cash"
)

var validPaymentMethods = []PaymentMethod{
	PaymentMethodPayNow,
	PaymentMethodCard,
	PaymentMethodCash,
}

// IsValid reports whether the value matches the canonical payment method enum.
func (p PaymentMethod) IsValid() bool {
	for _, candidate := range validPaymentMethods {
		if candidate == p {
			return true
		}
	}
	return false
}

// RequiresCaptureProof reports whether checkout must see a successful gateway
// capture before accepting the order.
func (p PaymentMethod) RequiresCaptureProof() bool {
	switch p {
	case PaymentMethodPayNow, PaymentMethodCard:
		return true
	}
	return false
}

// ParsePaymentMethod converts the raw string to PaymentMethod.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	for _, candidate := range validPaymentMethods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment method %q", value)
}
