// Package gateway adapts Stripe PaymentIntents to the booking finalizer.
package gateway

import (
	"context"
	"encoding/json"
	"errors"

	apperrors "zivara/pkg/errors"
	"zivara/pkg/logger"
	"zivara/pkg/model"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

const (
	MetadataBookingID = "booking_id"
	MetadataGuestID   = "guest_id"

	SignatureHeader = "Stripe-Signature"
)

// WebhookResult is a verified gateway event. Handled is false for event
// types that carry no payment decision.
type WebhookResult struct {
	EventID   string
	EventType string
	BookingID string
	Result    model.AuthorizationResult
	Handled   bool
}

type Gateway interface {
	CreatePaymentIntent(ctx context.Context, booking *model.Booking) (*model.PaymentIntent, error)
	ParseWebhook(payload []byte, signature string) (*WebhookResult, error)
}

// intentCreator is the slice of the Stripe client this package calls.
type intentCreator interface {
	Create(ctx context.Context, params *stripe.PaymentIntentCreateParams) (*stripe.PaymentIntent, error)
}

type stripeGateway struct {
	intents       intentCreator
	webhookSecret string
	log           *logger.Logger
}

func NewStripeGateway(secretKey, webhookSecret string, log *logger.Logger) Gateway {
	sc := stripe.NewClient(secretKey)
	return &stripeGateway{
		intents:       sc.V1PaymentIntents,
		webhookSecret: webhookSecret,
		log:           log,
	}
}

func (g *stripeGateway) CreatePaymentIntent(ctx context.Context, booking *model.Booking) (*model.PaymentIntent, error) {
	params := &stripe.PaymentIntentCreateParams{
		Amount:   stripe.Int64(booking.TotalPrice),
		Currency: stripe.String(booking.Currency),
		Metadata: map[string]string{
			MetadataBookingID: booking.ID,
			MetadataGuestID:   booking.GuestID,
		},
		AutomaticPaymentMethods: &stripe.PaymentIntentCreateAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	// One intent per booking no matter how often the guest reloads checkout.
	params.SetIdempotencyKey("booking-" + booking.ID)

	pi, err := g.intents.Create(ctx, params)
	if err != nil {
		g.log.Warn("Failed to create payment intent", "booking_id", booking.ID, "error", err)
		return nil, translateStripeError(err)
	}

	g.log.Info("Payment intent created", "booking_id", booking.ID, "intent_id", pi.ID, "amount", pi.Amount)
	return &model.PaymentIntent{
		ID:           pi.ID,
		BookingID:    booking.ID,
		ClientSecret: pi.ClientSecret,
		Amount:       pi.Amount,
		Currency:     string(pi.Currency),
	}, nil
}

func (g *stripeGateway) ParseWebhook(payload []byte, signature string) (*WebhookResult, error) {
	event, err := webhook.ConstructEvent(payload, signature, g.webhookSecret)
	if err != nil {
		g.log.Warn("Error verifying webhook signature", "error", err)
		return nil, apperrors.Unauthorized("Invalid webhook signature")
	}

	res := &WebhookResult{EventID: event.ID, EventType: string(event.Type)}

	var outcome model.PaymentOutcome
	switch event.Type {
	case "payment_intent.succeeded":
		outcome = model.PaymentSucceeded
	case "payment_intent.payment_failed", "payment_intent.canceled":
		outcome = model.PaymentDeclined
	default:
		g.log.Debug("Ignoring webhook event", "type", event.Type, "id", event.ID)
		return res, nil
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return nil, apperrors.InvalidInput("Malformed payment intent payload")
	}

	bookingID := pi.Metadata[MetadataBookingID]
	if bookingID == "" {
		g.log.Warn("Payment intent without booking metadata", "intent_id", pi.ID, "type", event.Type)
		return res, nil
	}

	res.BookingID = bookingID
	res.Handled = true
	res.Result = model.AuthorizationResult{
		Outcome:     outcome,
		Reference:   pi.ID,
		AmountMinor: pi.AmountReceived,
		Currency:    string(pi.Currency),
		Message:     declineMessage(&pi, event.Type),
	}
	if outcome == model.PaymentSucceeded && res.Result.AmountMinor == 0 {
		res.Result.AmountMinor = pi.Amount
	}
	return res, nil
}

func declineMessage(pi *stripe.PaymentIntent, eventType stripe.EventType) string {
	if pi.LastPaymentError != nil {
		if pi.LastPaymentError.DeclineCode != "" {
			return string(pi.LastPaymentError.DeclineCode)
		}
		return pi.LastPaymentError.Msg
	}
	if eventType == "payment_intent.canceled" {
		return string(pi.CancellationReason)
	}
	return ""
}

func translateStripeError(err error) error {
	var serr *stripe.Error
	if errors.As(err, &serr) {
		if serr.Type == stripe.ErrorTypeCard {
			return apperrors.PaymentDeclined(serr.Msg)
		}
		return apperrors.PaymentGateway("Payment gateway rejected the request", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.Timeout("Payment gateway timed out")
	}
	return apperrors.PaymentGateway("Payment gateway unavailable", err)
}
