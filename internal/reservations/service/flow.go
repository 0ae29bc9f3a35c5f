package service

import (
	"context"
	"fmt"
	"time"

	"zivara/internal/availability"
	"zivara/internal/interval"
	"zivara/internal/pricing"
	apperrors "zivara/pkg/errors"
	"zivara/pkg/model"
	"zivara/pkg/sanitizer"
)

type FlowState string

const (
	StateDateSelection FlowState = "DATE_SELECTION"
	StateRoomSelection FlowState = "ROOM_SELECTION"
	StateReview        FlowState = "REVIEW"
	StateFinalized     FlowState = "FINALIZED"
	StateAborted       FlowState = "ABORTED"
)

// Flow walks one guest from picking dates to a committed booking.
// It is not safe for concurrent use.
type Flow struct {
	guestID      string
	resolver     availability.Resolver
	reservations ReservationService
	now          func() time.Time

	state      FlowState
	categoryID string
	stay       interval.Interval
	rate       int64
	taxRate    float64
	currency   string
	candidates map[string]*model.Room
	available  []*model.Room
	selection  []string
	quote      *pricing.Quote
	booking    *model.Booking
}

// NewFlow starts in DATE_SELECTION. now supplies "today" for the past-date check.
func NewFlow(guestID string, resolver availability.Resolver, reservations ReservationService, now func() time.Time) *Flow {
	if now == nil {
		now = time.Now
	}
	return &Flow{
		guestID:      guestID,
		resolver:     resolver,
		reservations: reservations,
		now:          now,
		state:        StateDateSelection,
	}
}

func (f *Flow) State() FlowState { return f.state }

// AvailableRooms returns the candidates found by the last SelectDates.
func (f *Flow) AvailableRooms() []*model.Room { return f.available }

func (f *Flow) Quote() *pricing.Quote { return f.quote }

func (f *Flow) Currency() string { return f.currency }

func (f *Flow) Booking() *model.Booking { return f.booking }

func (f *Flow) SelectDates(ctx context.Context, categoryID, checkIn, checkOut string) error {
	if err := f.expect("select dates", StateDateSelection); err != nil {
		return err
	}

	stay, err := interval.Parse(checkIn, checkOut)
	if err != nil {
		return err
	}
	if stay.Start.Before(interval.Date(f.now())) {
		return apperrors.InvalidInterval("check-in cannot be in the past").
			WithDetails(map[string]any{"check_in": checkIn})
	}

	// A one-room quote carries the category's current rate and tax rate.
	quote, err := f.reservations.Quote(ctx, &model.QuoteRequest{
		CategoryID: categoryID,
		CheckIn:    checkIn,
		CheckOut:   checkOut,
		RoomCount:  1,
	})
	if err != nil {
		return err
	}

	rooms, err := f.resolver.FindAvailableRooms(ctx, quote.CategoryID, stay)
	if err != nil {
		return err
	}
	if len(rooms) == 0 {
		return apperrors.NoAvailability(quote.CategoryID)
	}

	f.categoryID = quote.CategoryID
	f.stay = stay
	f.rate = quote.Rate
	f.taxRate = quote.TaxRate
	f.currency = quote.Currency
	f.available = rooms
	f.candidates = make(map[string]*model.Room, len(rooms))
	for _, room := range rooms {
		f.candidates[room.ID] = room
	}
	f.state = StateRoomSelection
	return nil
}

func (f *Flow) SelectRooms(roomIDs []string) error {
	if err := f.expect("select rooms", StateRoomSelection); err != nil {
		return err
	}

	roomIDs = sanitizer.NormalizeIDs(roomIDs)
	if len(roomIDs) == 0 {
		return apperrors.EmptySelection()
	}

	seen := make(map[string]bool, len(roomIDs))
	for _, id := range roomIDs {
		if seen[id] {
			return apperrors.Validation("A room was selected more than once", map[string]any{"room_id": id})
		}
		seen[id] = true
		if _, ok := f.candidates[id]; !ok {
			return apperrors.Validation("Selected room is not available for these dates", map[string]any{"room_id": id})
		}
	}

	quote, err := pricing.Price(f.stay, f.rate, len(roomIDs), f.taxRate)
	if err != nil {
		return err
	}

	f.selection = roomIDs
	f.quote = &quote
	f.state = StateReview
	return nil
}

// Back returns from REVIEW to ROOM_SELECTION and drops the quote.
func (f *Flow) Back() error {
	if err := f.expect("go back", StateReview); err != nil {
		return err
	}
	f.selection = nil
	f.quote = nil
	f.state = StateRoomSelection
	return nil
}

// Commit persists the reviewed selection as a pending booking.
func (f *Flow) Commit(ctx context.Context, contact model.GuestContact) (*model.Booking, error) {
	if err := f.expect("commit", StateReview); err != nil {
		return nil, err
	}

	booking, err := f.reservations.Commit(ctx, &model.Reservation{
		GuestID:       f.guestID,
		CategoryID:    f.categoryID,
		CheckIn:       f.stay.Start.Format(interval.DateLayout),
		CheckOut:      f.stay.End.Format(interval.DateLayout),
		RoomIDs:       f.selection,
		ExpectedTotal: f.quote.Total,
		Contact:       contact,
	})
	if err != nil {
		return nil, err
	}

	f.booking = booking
	f.state = StateFinalized
	return booking, nil
}

// Restart discards every selection and returns to DATE_SELECTION. The id of
// a committed booking is returned so the caller can cancel it if payment
// was never made.
func (f *Flow) Restart() (string, error) {
	if f.state == StateAborted {
		return "", f.invalid("restart")
	}

	var pending string
	if f.booking != nil && f.booking.State() == model.StatePending {
		pending = f.booking.ID
	}
	f.reset()
	f.state = StateDateSelection
	return pending, nil
}

// Abort ends the flow. After a commit it cancels the pending booking.
func (f *Flow) Abort(ctx context.Context) error {
	if f.state == StateAborted {
		return f.invalid("abort")
	}

	if f.booking != nil && f.booking.State() == model.StatePending {
		cancelled, err := f.reservations.Cancel(ctx, f.booking.ID, "aborted_by_guest")
		if err != nil {
			return err
		}
		f.booking = cancelled
	}
	f.state = StateAborted
	return nil
}

func (f *Flow) reset() {
	f.categoryID = ""
	f.stay = interval.Interval{}
	f.rate = 0
	f.taxRate = 0
	f.currency = ""
	f.candidates = nil
	f.available = nil
	f.selection = nil
	f.quote = nil
	f.booking = nil
}

func (f *Flow) expect(action string, want FlowState) error {
	if f.state != want {
		return f.invalid(action)
	}
	return nil
}

func (f *Flow) invalid(action string) error {
	return apperrors.InvalidState(fmt.Sprintf("cannot %s in state %s", action, f.state)).
		WithDetails(map[string]any{"state": string(f.state)})
}
