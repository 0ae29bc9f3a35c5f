package service

import (
	"context"
	"errors"

	reservationerrors "zivara/internal/reservations/errors"
	"zivara/internal/reservations/repository"
	"zivara/pkg/config"
	apperrors "zivara/pkg/errors"
	"zivara/pkg/model"
)

// IntentCreator opens a payment with the gateway for one booking.
type IntentCreator interface {
	CreatePaymentIntent(ctx context.Context, booking *model.Booking) (*model.PaymentIntent, error)
}

type CheckoutService interface {
	// StartPayment opens a payment for the guest's own pending booking.
	StartPayment(ctx context.Context, bookingID, guestID string) (*model.PaymentIntent, error)
}

type checkoutService struct {
	bookings repository.BookingRepository
	gateway  IntentCreator
	cfg      *config.Config
}

func NewCheckoutService(bookings repository.BookingRepository, gateway IntentCreator, cfg *config.Config) CheckoutService {
	return &checkoutService{bookings: bookings, gateway: gateway, cfg: cfg}
}

func (s *checkoutService) StartPayment(ctx context.Context, bookingID, guestID string) (*model.PaymentIntent, error) {
	if guestID == "" {
		return nil, apperrors.Unauthorized("Guest ID is required")
	}

	booking, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, reservationerrors.ErrNotFound) || errors.Is(err, reservationerrors.ErrInvalidID) {
			return nil, apperrors.NotFoundWithID("Booking", bookingID)
		}
		return nil, apperrors.Storage("Failed to retrieve booking", err)
	}
	// Someone else's booking looks exactly like a missing one.
	if booking.GuestID != guestID {
		return nil, apperrors.NotFoundWithID("Booking", bookingID)
	}
	if booking.State() != model.StatePending {
		return nil, apperrors.InvalidBookingState(booking.ID, string(booking.Status), string(booking.PaymentStatus))
	}

	return s.gateway.CreatePaymentIntent(ctx, booking)
}
