package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"zivara/internal/availability"
	"zivara/internal/events"
	"zivara/internal/interval"
	inventoryerrors "zivara/internal/inventory/errors"
	inventoryrepo "zivara/internal/inventory/repository"
	"zivara/internal/pricing"
	reservationerrors "zivara/internal/reservations/errors"
	"zivara/internal/reservations/repository"
	"zivara/internal/reservations/validator"
	"zivara/pkg/config"
	mongotx "zivara/pkg/db/mongo"
	apperrors "zivara/pkg/errors"
	"zivara/pkg/model"
	"zivara/pkg/sanitizer"
)

const DefaultCancelReason = "cancelled_by_guest"

type ReservationService interface {
	Quote(ctx context.Context, req *model.QuoteRequest) (*Quote, error)
	Commit(ctx context.Context, r *model.Reservation) (*model.Booking, error)
	// Cancel releases a pending, unpaid booking. It is the compensating
	// action for a commit whose payment never completes.
	Cancel(ctx context.Context, bookingID, reason string) (*model.Booking, error)
	GetByID(ctx context.Context, id string) (*model.Booking, error)
	ListByGuest(ctx context.Context, guestID string, limit int, offset int64) ([]*model.Booking, int64, error)
}

type Quote struct {
	CategoryID string `json:"category_id"`
	CheckIn    string `json:"check_in"`
	CheckOut   string `json:"check_out"`
	Currency   string `json:"currency"`
	pricing.Quote
}

type Dependencies struct {
	Tx         mongotx.TransactionManager
	Categories inventoryrepo.CategoryRepository
	Rooms      inventoryrepo.RoomRepository
	Bookings   repository.BookingRepository
	Nights     repository.RoomNightRepository
	Resolver   availability.Resolver
	Validator  *validator.ReservationValidator
	Publisher  events.Publisher
	// Clock supplies "today" for the past check-in rule. Defaults to time.Now.
	Clock func() time.Time
}

type reservationService struct {
	Dependencies
	cfg *config.Config
}

func NewReservationService(deps Dependencies, cfg *config.Config) ReservationService {
	if deps.Publisher == nil {
		deps.Publisher = events.NewLogPublisher(cfg.Log)
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	return &reservationService{
		Dependencies: deps,
		cfg:          cfg,
	}
}

func (s *reservationService) Quote(ctx context.Context, req *model.QuoteRequest) (*Quote, error) {
	req.CategoryID = sanitizer.TrimAndNormalize(req.CategoryID)
	if err := s.Validator.ValidateQuote(req); err != nil {
		return nil, validationError("Invalid quote input", err)
	}

	iv, err := s.stay(req.CheckIn, req.CheckOut)
	if err != nil {
		return nil, err
	}

	category, err := s.loadCategory(ctx, req.CategoryID)
	if err != nil {
		return nil, err
	}

	q, err := pricing.Price(iv, category.NightlyRate, req.RoomCount, s.cfg.TaxRate)
	if err != nil {
		return nil, err
	}

	return &Quote{
		CategoryID: category.ID,
		CheckIn:    iv.Start.Format(interval.DateLayout),
		CheckOut:   iv.End.Format(interval.DateLayout),
		Currency:   s.cfg.Currency,
		Quote:      q,
	}, nil
}

func (s *reservationService) Commit(ctx context.Context, r *model.Reservation) (*model.Booking, error) {
	s.sanitize(r)
	if len(r.RoomIDs) == 0 {
		return nil, apperrors.EmptySelection()
	}
	if err := s.Validator.ValidateReservation(r); err != nil {
		s.cfg.Log.Warn("Reservation validation failed", "guest_id", r.GuestID, "error", err)
		return nil, validationError("Invalid reservation input", err)
	}

	iv, err := s.stay(r.CheckIn, r.CheckOut)
	if err != nil {
		return nil, err
	}

	var booking *model.Booking
	err = s.Tx.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		// The store may re-run this function on a transient conflict, so it
		// builds everything from scratch each time.
		b, err := s.commitInTx(txCtx, r, iv)
		if err != nil {
			return err
		}
		booking = b
		return nil
	})
	if err != nil {
		if apperrors.IsRetriable(err) {
			s.cfg.Log.Info("Reservation rejected", "guest_id", r.GuestID, "category_id", r.CategoryID, "error", err)
		} else {
			s.cfg.Log.Error("Failed to commit reservation", "guest_id", r.GuestID, "category_id", r.CategoryID, "error", err)
		}
		return nil, apperrors.Storage("Failed to commit reservation", err)
	}

	s.cfg.Log.Info("Booking committed",
		"id", booking.ID,
		"guest_id", booking.GuestID,
		"category_id", booking.CategoryID,
		"stay", iv.String(),
		"rooms", booking.RoomIDs,
		"total", booking.TotalPrice,
	)
	s.Publisher.Publish(ctx, events.NewBookingEvent(events.BookingCreated, booking))
	return booking, nil
}

// stay parses a requested stay and bounds it: no check-in before today and
// no more than MaxStayNights nights.
func (s *reservationService) stay(checkIn, checkOut string) (interval.Interval, error) {
	iv, err := interval.Parse(checkIn, checkOut)
	if err != nil {
		return interval.Interval{}, err
	}
	if iv.Start.Before(interval.Date(s.Clock().UTC())) {
		return interval.Interval{}, apperrors.InvalidInterval("check-in cannot be in the past").
			WithDetails(map[string]any{"check_in": checkIn})
	}
	if err := iv.Within(s.cfg.MaxStayNights); err != nil {
		return interval.Interval{}, err
	}
	return iv, nil
}

func (s *reservationService) commitInTx(ctx context.Context, r *model.Reservation, iv interval.Interval) (*model.Booking, error) {
	category, err := s.loadCategory(ctx, r.CategoryID)
	if err != nil {
		return nil, err
	}

	quote, err := pricing.Price(iv, category.NightlyRate, len(r.RoomIDs), s.cfg.TaxRate)
	if err != nil {
		return nil, err
	}
	if quote.Total != r.ExpectedTotal {
		return nil, apperrors.PriceChanged(r.ExpectedTotal, quote.Total)
	}

	if err := s.checkRooms(ctx, category.ID, r.RoomIDs); err != nil {
		return nil, err
	}

	conflicts, err := s.Resolver.Conflicts(ctx, r.RoomIDs, iv)
	if err != nil {
		return nil, err
	}
	if len(conflicts) > 0 {
		return nil, apperrors.AvailabilityConflict(conflicts...)
	}

	booking := &model.Booking{
		GuestID:       r.GuestID,
		Contact:       r.Contact,
		CategoryID:    category.ID,
		CheckIn:       iv.Start,
		CheckOut:      iv.End,
		Nights:        quote.Nights,
		RoomCount:     quote.RoomCount,
		Subtotal:      quote.Subtotal,
		Tax:           quote.Tax,
		TotalPrice:    quote.Total,
		Currency:      s.cfg.Currency,
		Status:        model.BookingPending,
		PaymentStatus: model.PaymentUnpaid,
	}
	if err := s.Bookings.Create(ctx, booking); err != nil {
		return nil, apperrors.Storage("Failed to create booking", err)
	}

	links := make([]*model.BookingRoom, 0, len(r.RoomIDs))
	claims := make([]*model.RoomNight, 0, len(r.RoomIDs)*quote.Nights)
	for _, roomID := range r.RoomIDs {
		links = append(links, &model.BookingRoom{BookingID: booking.ID, RoomID: roomID})
		for _, night := range iv.Dates() {
			claims = append(claims, &model.RoomNight{RoomID: roomID, BookingID: booking.ID, Night: night})
		}
	}

	if err := s.Bookings.CreateLinks(ctx, links); err != nil {
		return nil, apperrors.Storage("Failed to link rooms to booking", err)
	}
	if err := s.Nights.Claim(ctx, claims); err != nil {
		if errors.Is(err, reservationerrors.ErrNightTaken) {
			return nil, apperrors.AvailabilityConflict(r.RoomIDs...)
		}
		return nil, apperrors.Storage("Failed to claim room nights", err)
	}

	booking.RoomIDs = append([]string(nil), r.RoomIDs...)
	return booking, nil
}

func (s *reservationService) checkRooms(ctx context.Context, categoryID string, roomIDs []string) error {
	rooms, err := s.Rooms.FindByIDs(ctx, roomIDs)
	if err != nil {
		if errors.Is(err, inventoryerrors.ErrInvalidID) {
			return apperrors.Validation("Invalid room selection", map[string]any{"room_ids": roomIDs})
		}
		return apperrors.Storage("Failed to load rooms", err)
	}

	byID := make(map[string]*model.Room, len(rooms))
	for _, room := range rooms {
		byID[room.ID] = room
	}

	var unknown, unavailable []string
	for _, id := range roomIDs {
		room, ok := byID[id]
		switch {
		case !ok || room.CategoryID != categoryID:
			unknown = append(unknown, id)
		case !room.Bookable():
			unavailable = append(unavailable, id)
		}
	}
	if len(unknown) > 0 {
		return apperrors.Validation("Selected rooms do not belong to the category", map[string]any{"room_ids": unknown})
	}
	if len(unavailable) > 0 {
		return apperrors.AvailabilityConflict(unavailable...)
	}
	return nil
}

func (s *reservationService) Cancel(ctx context.Context, bookingID, reason string) (*model.Booking, error) {
	if bookingID == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}
	reason = sanitizer.NormalizeReason(reason)
	if reason == "" {
		reason = DefaultCancelReason
	}

	var booking *model.Booking
	err := s.Tx.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		b, err := s.findBooking(txCtx, bookingID)
		if err != nil {
			return err
		}
		if b.State() != model.StatePending {
			return apperrors.InvalidBookingState(b.ID, string(b.Status), string(b.PaymentStatus))
		}

		change := model.StateChange{
			From:         model.StatePending,
			To:           model.StateCancelled,
			CancelReason: reason,
			At:           s.Clock().UTC(),
		}
		if err := s.Bookings.Transition(txCtx, b.ID, change); err != nil {
			if errors.Is(err, reservationerrors.ErrStateChanged) {
				return apperrors.InvalidBookingState(b.ID, string(b.Status), string(b.PaymentStatus))
			}
			return apperrors.Storage("Failed to cancel booking", err)
		}
		if err := s.Nights.ReleaseByBooking(txCtx, b.ID); err != nil {
			return apperrors.Storage("Failed to release room nights", err)
		}

		b.Status = change.To.Status
		b.PaymentStatus = change.To.PaymentStatus
		b.CancelReason = reason
		b.UpdatedAt = change.At
		booking = b
		return nil
	})
	if err != nil {
		s.cfg.Log.Warn("Failed to cancel booking", "id", bookingID, "error", err)
		return nil, apperrors.Storage("Failed to cancel booking", err)
	}

	if err := s.attachRooms(ctx, booking); err != nil {
		s.cfg.Log.Warn("Failed to load rooms of cancelled booking", "id", booking.ID, "error", err)
	}

	s.cfg.Log.Info("Booking cancelled", "id", booking.ID, "reason", reason)
	s.Publisher.Publish(ctx, events.NewBookingEvent(events.BookingCancelled, booking))
	return booking, nil
}

func (s *reservationService) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}

	booking, err := s.findBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.attachRooms(ctx, booking); err != nil {
		return nil, err
	}
	return booking, nil
}

func (s *reservationService) ListByGuest(ctx context.Context, guestID string, limit int, offset int64) ([]*model.Booking, int64, error) {
	if guestID == "" {
		return nil, 0, apperrors.Unauthorized("Guest ID is required")
	}

	var count int64
	var bookings []*model.Booking
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.Bookings.CountByGuest(ctx, guestID)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count bookings", "guest_id", guestID, "error", errCount)
			errCount = apperrors.Storage("Failed to count bookings", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		bookings, errFind = s.Bookings.FindByGuest(ctx, guestID, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list bookings", "guest_id", guestID, "error", errFind)
			errFind = apperrors.Storage("Failed to retrieve bookings", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	for _, b := range bookings {
		if err := s.attachRooms(ctx, b); err != nil {
			return nil, 0, err
		}
	}
	if bookings == nil {
		bookings = []*model.Booking{}
	}
	return bookings, count, nil
}

func (s *reservationService) findBooking(ctx context.Context, id string) (*model.Booking, error) {
	booking, err := s.Bookings.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, reservationerrors.ErrNotFound) || errors.Is(err, reservationerrors.ErrInvalidID) {
			return nil, apperrors.NotFoundWithID("Booking", id)
		}
		return nil, apperrors.Storage("Failed to retrieve booking", err)
	}
	return booking, nil
}

func (s *reservationService) attachRooms(ctx context.Context, booking *model.Booking) error {
	links, err := s.Bookings.FindLinksByBooking(ctx, booking.ID)
	if err != nil {
		return apperrors.Storage("Failed to load booked rooms", err)
	}
	booking.RoomIDs = make([]string, 0, len(links))
	for _, l := range links {
		booking.RoomIDs = append(booking.RoomIDs, l.RoomID)
	}
	return nil
}

func (s *reservationService) loadCategory(ctx context.Context, id string) (*model.RoomCategory, error) {
	category, err := s.Categories.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, inventoryerrors.ErrCategoryNotFound) || errors.Is(err, inventoryerrors.ErrInvalidID) {
			return nil, apperrors.NotFoundWithID("Room category", id)
		}
		return nil, apperrors.Storage("Failed to load room category", err)
	}
	return category, nil
}

func (s *reservationService) sanitize(r *model.Reservation) {
	r.GuestID = sanitizer.TrimAndNormalize(r.GuestID)
	r.CategoryID = sanitizer.TrimAndNormalize(r.CategoryID)
	r.RoomIDs = sanitizer.NormalizeIDs(r.RoomIDs)
	r.Contact.FullName = sanitizer.NormalizeName(r.Contact.FullName)
	r.Contact.Email = sanitizer.NormalizeEmail(r.Contact.Email)
	r.Contact.Phone = sanitizer.NormalizePhone(r.Contact.Phone)
}

func validationError(message string, err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return apperrors.Validation(message, verrs.Details())
	}
	return apperrors.Validation(message, map[string]any{"error": err.Error()})
}
