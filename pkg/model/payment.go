package model

type PaymentOutcome string

const (
	PaymentSucceeded PaymentOutcome = "succeeded"
	PaymentDeclined  PaymentOutcome = "declined"
	PaymentError     PaymentOutcome = "error"
)

// AuthorizationResult is the terminal answer of the payment gateway for one booking.
type AuthorizationResult struct {
	Outcome     PaymentOutcome `json:"outcome" validate:"required,oneof=succeeded declined error"`
	Reference   string         `json:"reference" validate:"required_if=Outcome succeeded,max=255"`
	AmountMinor int64          `json:"amount_minor" validate:"gte=0"`
	Currency    string         `json:"currency" validate:"omitempty,len=3"`
	Message     string         `json:"message,omitempty" validate:"max=500"`
}

// PaymentIntent is what the storefront needs to collect a card payment.
type PaymentIntent struct {
	ID           string `json:"id"`
	BookingID    string `json:"booking_id"`
	ClientSecret string `json:"client_secret"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
}
