package service

import (
	"context"
	"errors"
	"time"

	"zivara/internal/events"
	inventoryrepo "zivara/internal/inventory/repository"
	reservationerrors "zivara/internal/reservations/errors"
	"zivara/internal/reservations/repository"
	"zivara/pkg/config"
	mongotx "zivara/pkg/db/mongo"
	apperrors "zivara/pkg/errors"
	"zivara/pkg/model"
)

// Finalizer applies the gateway's verdict to a pending booking.
type Finalizer interface {
	Finalize(ctx context.Context, bookingID string, result model.AuthorizationResult) (*model.Booking, error)
}

type FinalizerDependencies struct {
	Tx        mongotx.TransactionManager
	Bookings  repository.BookingRepository
	Rooms     inventoryrepo.RoomRepository
	Publisher events.Publisher
}

type finalizer struct {
	FinalizerDependencies
	cfg *config.Config
	now func() time.Time
}

func NewFinalizer(deps FinalizerDependencies, cfg *config.Config) Finalizer {
	if deps.Publisher == nil {
		deps.Publisher = events.NewLogPublisher(cfg.Log)
	}
	return &finalizer{
		FinalizerDependencies: deps,
		cfg:                   cfg,
		now:                   func() time.Time { return time.Now().UTC() },
	}
}

func (f *finalizer) Finalize(ctx context.Context, bookingID string, result model.AuthorizationResult) (*model.Booking, error) {
	if bookingID == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}

	booking, err := f.Bookings.FindByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, reservationerrors.ErrNotFound) || errors.Is(err, reservationerrors.ErrInvalidID) {
			return nil, apperrors.NotFoundWithID("Booking", bookingID)
		}
		return nil, apperrors.Storage("Failed to retrieve booking", err)
	}

	if booking.State() != model.StatePending {
		if result.Outcome == model.PaymentSucceeded && booking.Status == model.BookingCancelled {
			// The guest was charged for a booking that already expired.
			f.reconcile(ctx, booking, result, "payment captured for a cancelled booking", nil)
		}
		return nil, apperrors.InvalidBookingState(booking.ID, string(booking.Status), string(booking.PaymentStatus))
	}

	switch result.Outcome {
	case model.PaymentSucceeded:
	case model.PaymentDeclined:
		f.cfg.Log.Info("Payment declined", "booking_id", booking.ID, "message", result.Message)
		return nil, apperrors.PaymentDeclined(result.Message)
	case model.PaymentError:
		f.cfg.Log.Warn("Payment gateway error", "booking_id", booking.ID, "message", result.Message)
		return nil, apperrors.PaymentGateway("Payment gateway error: "+result.Message, nil)
	default:
		return nil, apperrors.Validation("Unknown payment outcome", map[string]any{"outcome": string(result.Outcome)})
	}

	if result.Reference == "" {
		return nil, apperrors.Validation("Payment reference is required", map[string]any{"reference": "required"})
	}
	if mismatch := f.amountMismatch(booking, result); mismatch != "" {
		err := apperrors.Consistency("Captured amount does not match the booking", nil).
			WithDetails(map[string]any{"booking_id": booking.ID, "mismatch": mismatch})
		f.reconcile(ctx, booking, result, mismatch, err)
		return nil, err
	}

	change := model.StateChange{
		From:             model.StatePending,
		To:               model.StateConfirmed,
		PaymentReference: result.Reference,
		At:               f.now(),
	}

	var roomIDs []string
	err = f.Tx.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		links, err := f.Bookings.FindLinksByBooking(txCtx, booking.ID)
		if err != nil {
			return err
		}
		roomIDs = make([]string, 0, len(links))
		for _, l := range links {
			roomIDs = append(roomIDs, l.RoomID)
		}

		if err := f.Bookings.Transition(txCtx, booking.ID, change); err != nil {
			return err
		}
		return f.Rooms.UpdateStatus(txCtx, roomIDs, model.RoomOccupied)
	})
	if err != nil {
		if errors.Is(err, reservationerrors.ErrStateChanged) {
			// Lost a race with another finalize or with expiry; read back what won.
			return nil, f.lostRace(ctx, booking, result)
		}
		cerr := apperrors.Consistency("Payment captured but booking could not be confirmed", err).
			WithDetails(map[string]any{"booking_id": booking.ID, "payment_reference": result.Reference})
		f.reconcile(ctx, booking, result, "confirmation write failed", err)
		return nil, cerr
	}

	booking.Status = change.To.Status
	booking.PaymentStatus = change.To.PaymentStatus
	booking.PaymentReference = result.Reference
	booking.UpdatedAt = change.At
	booking.RoomIDs = roomIDs

	f.cfg.Log.Info("Booking confirmed", "id", booking.ID, "payment_reference", result.Reference, "rooms", roomIDs)
	f.Publisher.Publish(ctx, events.NewBookingEvent(events.BookingConfirmed, booking))
	return booking, nil
}

func (f *finalizer) lostRace(ctx context.Context, booking *model.Booking, result model.AuthorizationResult) error {
	current, err := f.Bookings.FindByID(ctx, booking.ID)
	if err != nil {
		return apperrors.Storage("Failed to retrieve booking", err)
	}
	if current.Status == model.BookingCancelled {
		f.reconcile(ctx, current, result, "payment captured for a cancelled booking", nil)
	}
	return apperrors.InvalidBookingState(current.ID, string(current.Status), string(current.PaymentStatus))
}

func (f *finalizer) amountMismatch(booking *model.Booking, result model.AuthorizationResult) string {
	if result.AmountMinor != 0 && result.AmountMinor != booking.TotalPrice {
		return "amount"
	}
	if result.Currency != "" && result.Currency != booking.Currency {
		return "currency"
	}
	return ""
}

// reconcile flags a booking whose money and inventory disagree. An operator
// has to settle it by hand; nothing here retries.
func (f *finalizer) reconcile(ctx context.Context, booking *model.Booking, result model.AuthorizationResult, reason string, err error) {
	f.cfg.Log.Error("Booking requires reconciliation",
		"reconciliation_required", true,
		"booking_id", booking.ID,
		"payment_reference", result.Reference,
		"amount", result.AmountMinor,
		"reason", reason,
		"error", err,
	)

	event := events.NewBookingEvent(events.BookingReconciliationRequired, booking)
	event.Reference = result.Reference
	event.Reason = reason
	f.Publisher.Publish(ctx, event)
}
