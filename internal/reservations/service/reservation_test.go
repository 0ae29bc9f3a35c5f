package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"zivara/internal/availability"
	"zivara/internal/events"
	"zivara/internal/interval"
	"zivara/internal/reservations/validator"
	"zivara/internal/testutil"
	"zivara/internal/testutil/memstore"
	apperrors "zivara/pkg/errors"
	"zivara/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store     *memstore.Store
	events    *events.Recorder
	resolver  availability.Resolver
	svc       ReservationService
	category  *model.RoomCategory
	rooms     []*model.Room
	validator *validator.ReservationValidator
}

// newFixture seeds one category at 15000 per night with rooms 101 and 102.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := testutil.Config()
	store := memstore.New()
	category, rooms := store.AddCategory("Deluxe", 15000, "101", "102")
	recorder := &events.Recorder{}
	resolver := availability.NewResolver(store.Categories(), store.Rooms(), store.Bookings(), cfg)
	v := validator.NewReservationValidator(cfg.Log)

	svc := NewReservationService(Dependencies{
		Tx:         store,
		Categories: store.Categories(),
		Rooms:      store.Rooms(),
		Bookings:   store.Bookings(),
		Nights:     store.RoomNights(),
		Resolver:   resolver,
		Validator:  v,
		Publisher:  recorder,
		Clock:      testutil.Now,
	}, cfg)

	return &fixture{
		store:     store,
		events:    recorder,
		resolver:  resolver,
		svc:       svc,
		category:  category,
		rooms:     rooms,
		validator: v,
	}
}

func stayOf(t *testing.T, checkIn, checkOut string) interval.Interval {
	t.Helper()
	iv, err := interval.Parse(checkIn, checkOut)
	require.NoError(t, err)
	return iv
}

func contact() model.GuestContact {
	return model.GuestContact{FullName: "Ada Guest", Email: "ada@example.com", Phone: "5550102030"}
}

// reservation for 2024-07-10 -> 2024-07-12: 2 nights x 15000 = 30000, tax 5400.
func (f *fixture) reservation(roomIDs ...string) *model.Reservation {
	return &model.Reservation{
		GuestID:       "guest-1",
		CategoryID:    f.category.ID,
		CheckIn:       "2024-07-10",
		CheckOut:      "2024-07-12",
		RoomIDs:       roomIDs,
		ExpectedTotal: 35400 * int64(len(roomIDs)),
		Contact:       contact(),
	}
}

func TestCommit_EndToEndSingleRoom(t *testing.T) {
	f := newFixture(t)
	room := f.rooms[0]

	booking, err := f.svc.Commit(context.Background(), f.reservation(room.ID))
	require.NoError(t, err)

	assert.Equal(t, model.BookingPending, booking.Status)
	assert.Equal(t, model.PaymentUnpaid, booking.PaymentStatus)
	assert.Equal(t, 2, booking.Nights)
	assert.Equal(t, int64(30000), booking.Subtotal)
	assert.Equal(t, int64(5400), booking.Tax)
	assert.Equal(t, int64(35400), booking.TotalPrice)
	assert.Equal(t, "usd", booking.Currency)
	assert.Equal(t, []string{room.ID}, booking.RoomIDs)
	assert.Equal(t, time.Date(2024, 7, 10, 0, 0, 0, 0, time.UTC), booking.CheckIn)

	assert.Len(t, f.store.AllLinks(), 1)
	assert.Equal(t, 2, f.store.NightCount(), "one claim per night")
	assert.Equal(t, []string{events.BookingCreated}, f.events.Types())

	iv := stayOf(t, "2024-07-10", "2024-07-12")
	free, err := f.resolver.FindAvailableRooms(context.Background(), f.category.ID, iv)
	require.NoError(t, err)
	require.Len(t, free, 1)
	assert.Equal(t, "102", free[0].Number)

	stored, err := f.svc.GetByID(context.Background(), booking.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{room.ID}, stored.RoomIDs)
	assert.Equal(t, "ada@example.com", stored.Contact.Email)
}

func TestCommit_SanitizesContact(t *testing.T) {
	f := newFixture(t)
	r := f.reservation(f.rooms[0].ID)
	r.Contact = model.GuestContact{FullName: "  Ada   Guest ", Email: " ADA@Example.com", Phone: "(555) 010-2030"}

	booking, err := f.svc.Commit(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, model.GuestContact{FullName: "Ada Guest", Email: "ada@example.com", Phone: "5550102030"}, booking.Contact)
}

func TestCommit_EmptySelection(t *testing.T) {
	f := newFixture(t)
	r := f.reservation()
	r.ExpectedTotal = 1

	_, err := f.svc.Commit(context.Background(), r)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeEmptySelection))
	assert.Equal(t, 0, len(f.store.AllBookings()))
}

func TestCommit_InvalidInterval(t *testing.T) {
	f := newFixture(t)
	r := f.reservation(f.rooms[0].ID)
	r.CheckOut = r.CheckIn

	_, err := f.svc.Commit(context.Background(), r)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidInterval))
}

func TestCommit_PastCheckInIsRejected(t *testing.T) {
	f := newFixture(t)
	r := f.reservation(f.rooms[0].ID)
	r.CheckIn, r.CheckOut = "2001-01-01", "2001-01-03"

	_, err := f.svc.Commit(context.Background(), r)
	require.True(t, apperrors.HasCode(err, apperrors.CodeInvalidInterval))
	assert.Equal(t, 0, f.store.NightCount())
	assert.Empty(t, f.events.Types())

	// A stay starting on the current day is still bookable.
	r = f.reservation(f.rooms[0].ID)
	r.CheckIn, r.CheckOut = "2024-07-01", "2024-07-03"
	_, err = f.svc.Commit(context.Background(), r)
	require.NoError(t, err)
}

func TestCommit_StayLongerThanLimitIsRejected(t *testing.T) {
	f := newFixture(t)
	r := f.reservation(f.rooms[0].ID, f.rooms[1].ID)
	r.CheckIn, r.CheckOut = "2026-11-01", "9999-12-31"

	_, err := f.svc.Commit(context.Background(), r)
	require.True(t, apperrors.HasCode(err, apperrors.CodeInvalidInterval))
	assert.Equal(t, 0, f.store.NightCount())

	// 31 nights is one past the default limit of 30.
	r.CheckIn, r.CheckOut = "2024-07-10", "2024-08-10"
	_, err = f.svc.Commit(context.Background(), r)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidInterval))
}

func TestCommit_MaxLengthStayClaimsEveryNight(t *testing.T) {
	f := newFixture(t)
	r := f.reservation(f.rooms[0].ID)
	r.CheckIn, r.CheckOut = "2024-07-10", "2024-08-09"
	r.ExpectedTotal = 30*15000 + 81000

	booking, err := f.svc.Commit(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, 30, booking.Nights)
	assert.Equal(t, booking.Nights*len(booking.RoomIDs), f.store.NightCount())
	assert.Equal(t, int64(booking.Nights)*15000*int64(len(booking.RoomIDs)), booking.Subtotal)
}

func TestCommit_ValidationDetails(t *testing.T) {
	f := newFixture(t)
	r := f.reservation(f.rooms[0].ID)
	r.Contact.Email = "nope"

	_, err := f.svc.Commit(context.Background(), r)
	require.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
	assert.Contains(t, apperrors.AsAppError(err).Details, "email")
}

func TestCommit_PriceChanged(t *testing.T) {
	f := newFixture(t)
	r := f.reservation(f.rooms[0].ID)
	r.ExpectedTotal = 30000

	_, err := f.svc.Commit(context.Background(), r)
	require.True(t, apperrors.HasCode(err, apperrors.CodePriceChanged))
	assert.Equal(t, int64(35400), apperrors.AsAppError(err).Details["current_total"])
	assert.Empty(t, f.store.AllBookings())
}

func TestCommit_UnknownCategory(t *testing.T) {
	f := newFixture(t)
	r := f.reservation(f.rooms[0].ID)
	r.CategoryID = "missing"

	_, err := f.svc.Commit(context.Background(), r)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestCommit_RoomFromAnotherCategory(t *testing.T) {
	f := newFixture(t)
	_, other := f.store.AddCategory("Standard", 9000, "201")

	_, err := f.svc.Commit(context.Background(), f.reservation(other[0].ID))
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
}

func TestCommit_MaintenanceRoom(t *testing.T) {
	f := newFixture(t)
	f.store.SetRoomStatus(f.rooms[0].ID, model.RoomMaintenance)

	_, err := f.svc.Commit(context.Background(), f.reservation(f.rooms[0].ID))
	assert.True(t, apperrors.HasCode(err, apperrors.CodeAvailabilityConflict))
}

func TestCommit_OverlapIsRejected(t *testing.T) {
	f := newFixture(t)
	room := f.rooms[0]
	_, err := f.svc.Commit(context.Background(), f.reservation(room.ID))
	require.NoError(t, err)

	r := f.reservation(room.ID)
	r.CheckIn, r.CheckOut = "2024-07-11", "2024-07-13"
	_, err = f.svc.Commit(context.Background(), r)

	require.True(t, apperrors.HasCode(err, apperrors.CodeAvailabilityConflict))
	assert.True(t, apperrors.IsRetriable(err))
	assert.Equal(t, []string{room.ID}, apperrors.AsAppError(err).Details["room_ids"])
	assert.Len(t, f.store.AllBookings(), 1)
}

func TestCommit_AdjacentStaysShareRoom(t *testing.T) {
	f := newFixture(t)
	room := f.rooms[0]
	_, err := f.svc.Commit(context.Background(), f.reservation(room.ID))
	require.NoError(t, err)

	r := f.reservation(room.ID)
	r.CheckIn, r.CheckOut = "2024-07-12", "2024-07-14"
	_, err = f.svc.Commit(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, 4, f.store.NightCount())
}

func TestCommit_RoomNightClaimRejectsLoser(t *testing.T) {
	f := newFixture(t)
	room := f.rooms[0]
	// A claim without a linked booking is invisible to the overlap re-check,
	// so only the unique night id can stop this commit.
	require.NoError(t, f.store.RoomNights().Claim(context.Background(), []*model.RoomNight{
		{RoomID: room.ID, BookingID: "other", Night: time.Date(2024, 7, 11, 0, 0, 0, 0, time.UTC)},
	}))

	_, err := f.svc.Commit(context.Background(), f.reservation(room.ID))
	require.True(t, apperrors.HasCode(err, apperrors.CodeAvailabilityConflict))
	assert.Empty(t, f.store.AllBookings())
	assert.Empty(t, f.store.AllLinks())
	assert.Equal(t, 1, f.store.NightCount())
}

func TestCommit_AtomicOnLinkFailure(t *testing.T) {
	f := newFixture(t)
	f.store.FailOn(memstore.OpCreateLinks, errors.New("write concern timeout"))

	_, err := f.svc.Commit(context.Background(), f.reservation(f.rooms[0].ID, f.rooms[1].ID))
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInternal))

	assert.Empty(t, f.store.AllBookings(), "no orphan booking")
	assert.Empty(t, f.store.AllLinks())
	assert.Equal(t, 0, f.store.NightCount())
	assert.Empty(t, f.events.Types())

	f.store.FailOn(memstore.OpCreateLinks, nil)
	_, err = f.svc.Commit(context.Background(), f.reservation(f.rooms[0].ID, f.rooms[1].ID))
	require.NoError(t, err, "both rooms stay available after the rollback")
}

func TestCommit_StorageTimeout(t *testing.T) {
	f := newFixture(t)
	f.store.FailOn(memstore.OpClaimNights, context.DeadlineExceeded)

	_, err := f.svc.Commit(context.Background(), f.reservation(f.rooms[0].ID))
	assert.True(t, apperrors.HasCode(err, apperrors.CodeTimeout))
	assert.True(t, apperrors.IsRetriable(err))
	assert.Empty(t, f.store.AllBookings())
}

func TestCommit_ConcurrentSameRoomExactlyOneWins(t *testing.T) {
	f := newFixture(t)
	room := f.rooms[0]

	const guests = 8
	var wg sync.WaitGroup
	errs := make([]error, guests)
	for i := 0; i < guests; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r := f.reservation(room.ID)
			r.GuestID = "guest-" + string(rune('a'+i))
			_, errs[i] = f.svc.Commit(context.Background(), r)
		}(i)
	}
	wg.Wait()

	wins, conflicts := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case apperrors.HasCode(err, apperrors.CodeAvailabilityConflict):
			conflicts++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, guests-1, conflicts)
	assert.Len(t, f.store.AllBookings(), 1)
	assert.Equal(t, 2, f.store.NightCount())
}

func TestNoOverlappingActiveBookingsShareARoom(t *testing.T) {
	f := newFixture(t)
	stays := [][2]string{
		{"2024-07-01", "2024-07-05"},
		{"2024-07-03", "2024-07-06"},
		{"2024-07-05", "2024-07-07"},
		{"2024-07-06", "2024-07-09"},
		{"2024-07-02", "2024-07-03"},
		{"2024-07-08", "2024-07-10"},
	}

	var wg sync.WaitGroup
	for _, s := range stays {
		for _, room := range f.rooms {
			wg.Add(1)
			go func(checkIn, checkOut, roomID string) {
				defer wg.Done()
				iv := stayOf(t, checkIn, checkOut)
				nights, _ := iv.Nights()
				_, _ = f.svc.Commit(context.Background(), &model.Reservation{
					GuestID:       "guest",
					CategoryID:    f.category.ID,
					CheckIn:       checkIn,
					CheckOut:      checkOut,
					RoomIDs:       []string{roomID},
					ExpectedTotal: int64(nights) * 15000 * 118 / 100,
					Contact:       contact(),
				})
			}(s[0], s[1], room.ID)
		}
	}
	wg.Wait()

	byRoom := map[string][]*model.Booking{}
	for _, link := range f.store.AllLinks() {
		b, err := f.store.Bookings().FindByID(context.Background(), link.BookingID)
		require.NoError(t, err)
		byRoom[link.RoomID] = append(byRoom[link.RoomID], b)
	}
	for roomID, bookings := range byRoom {
		for i := range bookings {
			for j := i + 1; j < len(bookings); j++ {
				a, b := bookings[i], bookings[j]
				overlap := a.CheckIn.Before(b.CheckOut) && b.CheckIn.Before(a.CheckOut)
				assert.False(t, overlap, "room %s double-booked: %s and %s", roomID, a.ID, b.ID)
			}
		}
	}
	assert.NotEmpty(t, byRoom)
}

func TestCancel_ReleasesRooms(t *testing.T) {
	f := newFixture(t)
	room := f.rooms[0]
	booking, err := f.svc.Commit(context.Background(), f.reservation(room.ID))
	require.NoError(t, err)

	cancelled, err := f.svc.Cancel(context.Background(), booking.ID, "  changed plans ")
	require.NoError(t, err)
	assert.Equal(t, model.BookingCancelled, cancelled.Status)
	assert.Equal(t, model.PaymentUnpaid, cancelled.PaymentStatus)
	assert.Equal(t, "changed plans", cancelled.CancelReason)
	assert.Equal(t, []string{room.ID}, cancelled.RoomIDs)
	assert.Equal(t, 0, f.store.NightCount())
	assert.Len(t, f.store.AllLinks(), 1, "links are never removed")
	assert.Equal(t, []string{events.BookingCreated, events.BookingCancelled}, f.events.Types())

	_, err = f.svc.Commit(context.Background(), f.reservation(room.ID))
	require.NoError(t, err, "room is bookable again")
}

func TestCancel_DefaultReason(t *testing.T) {
	f := newFixture(t)
	booking, err := f.svc.Commit(context.Background(), f.reservation(f.rooms[0].ID))
	require.NoError(t, err)

	cancelled, err := f.svc.Cancel(context.Background(), booking.ID, "")
	require.NoError(t, err)
	assert.Equal(t, DefaultCancelReason, cancelled.CancelReason)
}

func TestCancel_OnlyPendingBookings(t *testing.T) {
	f := newFixture(t)
	booking, err := f.svc.Commit(context.Background(), f.reservation(f.rooms[0].ID))
	require.NoError(t, err)
	_, err = f.svc.Cancel(context.Background(), booking.ID, "")
	require.NoError(t, err)
	writes := f.store.Writes()

	_, err = f.svc.Cancel(context.Background(), booking.ID, "")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidBookingState))
	assert.Equal(t, writes, f.store.Writes())
}

func TestCancel_RollsBackWhenReleaseFails(t *testing.T) {
	f := newFixture(t)
	booking, err := f.svc.Commit(context.Background(), f.reservation(f.rooms[0].ID))
	require.NoError(t, err)
	f.store.FailOn(memstore.OpReleaseNights, errors.New("network"))

	_, err = f.svc.Cancel(context.Background(), booking.ID, "")
	require.Error(t, err)

	stored, err := f.svc.GetByID(context.Background(), booking.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingPending, stored.Status)
	assert.Equal(t, 2, f.store.NightCount())
}

func TestCancel_UnknownBooking(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Cancel(context.Background(), "missing", "")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestGetByID_NotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.GetByID(context.Background(), "missing")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))

	_, err = f.svc.GetByID(context.Background(), "")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidInput))
}

func TestListByGuest_NewestFirstWithCount(t *testing.T) {
	f := newFixture(t)
	base := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	f.store.Now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	first, err := f.svc.Commit(context.Background(), f.reservation(f.rooms[0].ID))
	require.NoError(t, err)
	second, err := f.svc.Commit(context.Background(), f.reservation(f.rooms[1].ID))
	require.NoError(t, err)
	other := f.reservation(f.rooms[0].ID)
	other.GuestID = "someone-else"
	other.CheckIn, other.CheckOut = "2024-08-01", "2024-08-03"
	_, err = f.svc.Commit(context.Background(), other)
	require.NoError(t, err)

	bookings, total, err := f.svc.ListByGuest(context.Background(), "guest-1", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, bookings, 2)
	assert.Equal(t, second.ID, bookings[0].ID)
	assert.Equal(t, first.ID, bookings[1].ID)
	assert.Equal(t, []string{f.rooms[1].ID}, bookings[0].RoomIDs)

	page, total, err := f.svc.ListByGuest(context.Background(), "guest-1", 1, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, page, 1)
	assert.Equal(t, first.ID, page[0].ID)
}

func TestListByGuest_EmptyIsNotNil(t *testing.T) {
	f := newFixture(t)
	bookings, total, err := f.svc.ListByGuest(context.Background(), "nobody", 10, 0)
	require.NoError(t, err)
	assert.NotNil(t, bookings)
	assert.Zero(t, total)

	_, _, err = f.svc.ListByGuest(context.Background(), "", 10, 0)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized))
}

func TestQuote(t *testing.T) {
	f := newFixture(t)

	q, err := f.svc.Quote(context.Background(), &model.QuoteRequest{
		CategoryID: f.category.ID,
		CheckIn:    "2024-07-10",
		CheckOut:   "2024-07-13",
		RoomCount:  2,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, q.Nights)
	assert.Equal(t, int64(90000), q.Subtotal)
	assert.Equal(t, int64(16200), q.Tax)
	assert.Equal(t, int64(106200), q.Total)
	assert.Equal(t, "usd", q.Currency)
}

func TestQuote_BoundsTheStay(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name              string
		checkIn, checkOut string
	}{
		{"check-in yesterday", "2024-06-30", "2024-07-02"},
		{"far past", "2001-01-01", "2001-01-03"},
		{"beyond max stay", "2024-07-10", "2024-08-10"},
		{"beyond duration range", "2026-11-01", "9999-12-31"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Quote(context.Background(), &model.QuoteRequest{
				CategoryID: f.category.ID,
				CheckIn:    tt.checkIn,
				CheckOut:   tt.checkOut,
				RoomCount:  20,
			})
			assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidInterval))
		})
	}
}

func TestQuote_Validation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Quote(context.Background(), &model.QuoteRequest{CategoryID: f.category.ID, CheckIn: "2024-07-10", CheckOut: "2024-07-13"})
	require.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
	assert.Contains(t, apperrors.AsAppError(err).Details, "room_count")
}
