// Package memstore is an in-memory, transactional stand-in for the Mongo
// repositories. Transactions are serialized and roll back on error, which is
// enough to exercise atomicity and the room-night uniqueness claim in tests.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	inventoryerrors "zivara/internal/inventory/errors"
	inventoryrepo "zivara/internal/inventory/repository"
	reservationerrors "zivara/internal/reservations/errors"
	reservationrepo "zivara/internal/reservations/repository"
	mongotx "zivara/pkg/db/mongo"
	"zivara/pkg/model"

	"github.com/google/uuid"
)

// Operation names accepted by FailOn.
const (
	OpCreateBooking    = "bookings.Create"
	OpTransition       = "bookings.Transition"
	OpCreateLinks      = "bookings.CreateLinks"
	OpFindActiveByRoom = "bookings.FindActiveByRooms"
	OpClaimNights      = "nights.Claim"
	OpReleaseNights    = "nights.Release"
	OpUpdateRoomStatus = "rooms.UpdateStatus"
)

type txKey struct{}

type storedBooking struct {
	booking model.Booking
	seq     int
}

type state struct {
	categories map[string]model.RoomCategory
	rooms      map[string]model.Room
	bookings   map[string]storedBooking
	links      []model.BookingRoom
	nights     map[string]model.RoomNight
}

func (s state) clone() state {
	c := state{
		categories: make(map[string]model.RoomCategory, len(s.categories)),
		rooms:      make(map[string]model.Room, len(s.rooms)),
		bookings:   make(map[string]storedBooking, len(s.bookings)),
		links:      append([]model.BookingRoom(nil), s.links...),
		nights:     make(map[string]model.RoomNight, len(s.nights)),
	}
	for k, v := range s.categories {
		c.categories[k] = v
	}
	for k, v := range s.rooms {
		c.rooms[k] = v
	}
	for k, v := range s.bookings {
		c.bookings[k] = v
	}
	for k, v := range s.nights {
		c.nights[k] = v
	}
	return c
}

type Store struct {
	mu     sync.Mutex
	state  state
	seq    int
	writes int
	fail   map[string]error

	// Now stamps created_at and updated_at. Tests may replace it before use.
	Now func() time.Time
}

func New() *Store {
	return &Store{
		state: state{
			categories: map[string]model.RoomCategory{},
			rooms:      map[string]model.Room{},
			bookings:   map[string]storedBooking{},
			nights:     map[string]model.RoomNight{},
		},
		fail: map[string]error{},
		Now:  func() time.Time { return time.Now().UTC() },
	}
}

var _ mongotx.TransactionManager = (*Store)(nil)

func (s *Store) Categories() inventoryrepo.CategoryRepository { return categoryRepo{s} }
func (s *Store) Rooms() inventoryrepo.RoomRepository { return roomRepo{s} }
func (s *Store) Bookings() reservationrepo.BookingRepository { return bookingRepo{s} }
func (s *Store) RoomNights() reservationrepo.RoomNightRepository { return nightRepo{s} }

// FailOn makes every later call of op return err until cleared with a nil err.
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.fail, op)
		return
	}
	s.fail[op] = err
}

// Writes counts committed write operations.
func (s *Store) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// ExecuteTransaction serializes fn against every other caller and restores
// the previous state if fn fails.
func (s *Store) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	if s.inTx(ctx) {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.state.clone()
	writes := s.writes
	if err := fn(context.WithValue(ctx, txKey{}, s)); err != nil {
		s.state = snapshot
		s.writes = writes
		return err
	}
	return nil
}

func (s *Store) inTx(ctx context.Context) bool {
	owner, _ := ctx.Value(txKey{}).(*Store)
	return owner == s
}

func (s *Store) lock(ctx context.Context) func() {
	if s.inTx(ctx) {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) injected(op string) error {
	if err, ok := s.fail[op]; ok {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Snapshot accessors for assertions.

func (s *Store) AllBookings() []*model.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.Booking, 0, len(s.state.bookings))
	for _, sb := range s.state.bookings {
		b := sb.booking
		out = append(out, &b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (s *Store) AllLinks() []model.BookingRoom {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.BookingRoom(nil), s.state.links...)
}

func (s *Store) NightCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.state.nights)
}

func (s *Store) Room(id string) (model.Room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.state.rooms[id]
	return r, ok
}

// SetBookingCreatedAt backdates a booking so expiry can be exercised without waiting.
func (s *Store) SetBookingCreatedAt(id string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sb := s.state.bookings[id]
	sb.booking.CreatedAt = at
	s.state.bookings[id] = sb
}

type categoryRepo struct{ s *Store }

func (r categoryRepo) Create(ctx context.Context, c *model.RoomCategory) error {
	defer r.s.lock(ctx)()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.CreatedAt = r.s.Now()
	r.s.state.categories[c.ID] = *c
	r.s.writes++
	return nil
}

func (r categoryRepo) FindByID(ctx context.Context, id string) (*model.RoomCategory, error) {
	defer r.s.lock(ctx)()
	c, ok := r.s.state.categories[id]
	if !ok {
		return nil, inventoryerrors.ErrCategoryNotFound
	}
	return &c, nil
}

func (r categoryRepo) FindAll(ctx context.Context) ([]*model.RoomCategory, error) {
	defer r.s.lock(ctx)()
	out := make([]*model.RoomCategory, 0, len(r.s.state.categories))
	for _, c := range r.s.state.categories {
		c := c
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].NightlyRate != out[j].NightlyRate {
			return out[i].NightlyRate < out[j].NightlyRate
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

type roomRepo struct{ s *Store }

func (r roomRepo) Create(ctx context.Context, room *model.Room) error {
	defer r.s.lock(ctx)()
	if room.ID == "" {
		room.ID = uuid.NewString()
	}
	if room.Status == "" {
		room.Status = model.RoomAvailable
	}
	now := r.s.Now()
	room.CreatedAt, room.UpdatedAt = now, now
	r.s.state.rooms[room.ID] = *room
	r.s.writes++
	return nil
}

func (r roomRepo) FindByCategory(ctx context.Context, categoryID string) ([]*model.Room, error) {
	defer r.s.lock(ctx)()
	return r.filter(func(room model.Room) bool { return room.CategoryID == categoryID }), nil
}

func (r roomRepo) FindByIDs(ctx context.Context, ids []string) ([]*model.Room, error) {
	defer r.s.lock(ctx)()
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	return r.filter(func(room model.Room) bool { return want[room.ID] }), nil
}

func (r roomRepo) FindAll(ctx context.Context) ([]*model.Room, error) {
	defer r.s.lock(ctx)()
	return r.filter(func(model.Room) bool { return true }), nil
}

func (r roomRepo) filter(keep func(model.Room) bool) []*model.Room {
	var out []*model.Room
	for _, room := range r.s.state.rooms {
		if keep(room) {
			room := room
			out = append(out, &room)
		}
	}
	model.SortRooms(out)
	return out
}

func (r roomRepo) UpdateStatus(ctx context.Context, ids []string, status model.RoomStatus) error {
	defer r.s.lock(ctx)()
	if err := r.s.injected(OpUpdateRoomStatus); err != nil {
		return err
	}
	for _, id := range ids {
		if _, ok := r.s.state.rooms[id]; !ok {
			return fmt.Errorf("%w: %s", inventoryerrors.ErrRoomNotFound, id)
		}
	}
	for _, id := range ids {
		room := r.s.state.rooms[id]
		room.Status = status
		room.UpdatedAt = r.s.Now()
		r.s.state.rooms[id] = room
	}
	r.s.writes++
	return nil
}

type bookingRepo struct{ s *Store }

func (r bookingRepo) Create(ctx context.Context, b *model.Booking) error {
	defer r.s.lock(ctx)()
	if err := r.s.injected(OpCreateBooking); err != nil {
		return err
	}
	b.ID = uuid.NewString()
	now := r.s.Now()
	b.CreatedAt, b.UpdatedAt = now, now
	r.s.seq++
	stored := *b
	stored.RoomIDs = nil
	r.s.state.bookings[b.ID] = storedBooking{booking: stored, seq: r.s.seq}
	r.s.writes++
	return nil
}

func (r bookingRepo) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	defer r.s.lock(ctx)()
	sb, ok := r.s.state.bookings[id]
	if !ok {
		return nil, reservationerrors.ErrNotFound
	}
	b := sb.booking
	return &b, nil
}

func (r bookingRepo) FindByGuest(ctx context.Context, guestID string, limit int, offset int64) ([]*model.Booking, error) {
	defer r.s.lock(ctx)()
	var matched []storedBooking
	for _, sb := range r.s.state.bookings {
		if sb.booking.GuestID == guestID {
			matched = append(matched, sb)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].booking.CreatedAt.Equal(matched[j].booking.CreatedAt) {
			return matched[i].booking.CreatedAt.After(matched[j].booking.CreatedAt)
		}
		return matched[i].seq > matched[j].seq
	})

	var out []*model.Booking
	for i := int(offset); i < len(matched) && len(out) < limit; i++ {
		b := matched[i].booking
		out = append(out, &b)
	}
	return out, nil
}

func (r bookingRepo) CountByGuest(ctx context.Context, guestID string) (int64, error) {
	defer r.s.lock(ctx)()
	var n int64
	for _, sb := range r.s.state.bookings {
		if sb.booking.GuestID == guestID {
			n++
		}
	}
	return n, nil
}

func (r bookingRepo) FindStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]*model.Booking, error) {
	defer r.s.lock(ctx)()
	var out []*model.Booking
	for _, sb := range r.s.state.bookings {
		b := sb.booking
		if b.State() == model.StatePending && b.CreatedAt.Before(createdBefore) {
			out = append(out, &b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r bookingRepo) Transition(ctx context.Context, id string, change model.StateChange) error {
	defer r.s.lock(ctx)()
	if err := r.s.injected(OpTransition); err != nil {
		return err
	}
	sb, ok := r.s.state.bookings[id]
	if !ok || sb.booking.State() != change.From {
		return reservationerrors.ErrStateChanged
	}
	sb.booking.Status = change.To.Status
	sb.booking.PaymentStatus = change.To.PaymentStatus
	sb.booking.UpdatedAt = change.At
	if change.PaymentReference != "" {
		sb.booking.PaymentReference = change.PaymentReference
	}
	if change.CancelReason != "" {
		sb.booking.CancelReason = change.CancelReason
	}
	r.s.state.bookings[id] = sb
	r.s.writes++
	return nil
}

func (r bookingRepo) CreateLinks(ctx context.Context, links []*model.BookingRoom) error {
	defer r.s.lock(ctx)()
	if err := r.s.injected(OpCreateLinks); err != nil {
		return err
	}
	now := r.s.Now()
	for _, l := range links {
		l.CreatedAt = now
		r.s.state.links = append(r.s.state.links, *l)
	}
	r.s.writes++
	return nil
}

func (r bookingRepo) FindLinksByBooking(ctx context.Context, bookingID string) ([]*model.BookingRoom, error) {
	defer r.s.lock(ctx)()
	var out []*model.BookingRoom
	for _, l := range r.s.state.links {
		if l.BookingID == bookingID {
			l := l
			out = append(out, &l)
		}
	}
	return out, nil
}

func (r bookingRepo) FindActiveByRooms(ctx context.Context, roomIDs []string) (map[string][]*model.Booking, error) {
	defer r.s.lock(ctx)()
	if err := r.s.injected(OpFindActiveByRoom); err != nil {
		return nil, err
	}
	want := make(map[string]bool, len(roomIDs))
	for _, id := range roomIDs {
		want[id] = true
	}
	active := make(map[string][]*model.Booking, len(roomIDs))
	for _, l := range r.s.state.links {
		if !want[l.RoomID] {
			continue
		}
		sb, ok := r.s.state.bookings[l.BookingID]
		if !ok || !sb.booking.IsActive() {
			continue
		}
		b := sb.booking
		active[l.RoomID] = append(active[l.RoomID], &b)
	}
	return active, nil
}

type nightRepo struct{ s *Store }

func (r nightRepo) Claim(ctx context.Context, nights []*model.RoomNight) error {
	defer r.s.lock(ctx)()
	if err := r.s.injected(OpClaimNights); err != nil {
		return err
	}
	for _, n := range nights {
		n.ID = model.RoomNightID(n.RoomID, n.Night)
		if _, taken := r.s.state.nights[n.ID]; taken {
			return fmt.Errorf("%w: %s", reservationerrors.ErrNightTaken, n.ID)
		}
	}
	now := r.s.Now()
	for _, n := range nights {
		n.CreatedAt = now
		r.s.state.nights[n.ID] = *n
	}
	r.s.writes++
	return nil
}

func (r nightRepo) ReleaseByBooking(ctx context.Context, bookingID string) error {
	defer r.s.lock(ctx)()
	if err := r.s.injected(OpReleaseNights); err != nil {
		return err
	}
	for id, n := range r.s.state.nights {
		if n.BookingID == bookingID {
			delete(r.s.state.nights, id)
		}
	}
	r.s.writes++
	return nil
}

// AddCategory seeds a category with one room per number and returns both.
func (s *Store) AddCategory(name string, nightlyRate int64, numbers ...string) (*model.RoomCategory, []*model.Room) {
	ctx := context.Background()
	category := &model.RoomCategory{Name: name, NightlyRate: nightlyRate, MaxOccupancy: 2}
	_ = s.Categories().Create(ctx, category)

	rooms := make([]*model.Room, 0, len(numbers))
	for _, n := range numbers {
		room := &model.Room{CategoryID: category.ID, Number: n, Status: model.RoomAvailable}
		_ = s.Rooms().Create(ctx, room)
		rooms = append(rooms, room)
	}
	return category, rooms
}

// SetRoomStatus overwrites a room status without counting as a write.
func (s *Store) SetRoomStatus(id string, status model.RoomStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room := s.state.rooms[id]
	room.Status = status
	s.state.rooms[id] = room
}
