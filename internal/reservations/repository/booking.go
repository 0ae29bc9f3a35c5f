package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	reservationerrors "zivara/internal/reservations/errors"
	"zivara/pkg/config"
	mongotx "zivara/pkg/db/mongo"
	"zivara/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	BookingCollectionName     = "Bookings"
	BookingRoomCollectionName = "Booking_rooms"
)

type BookingRepository interface {
	Create(ctx context.Context, booking *model.Booking) error
	FindByID(ctx context.Context, id string) (*model.Booking, error)
	FindByGuest(ctx context.Context, guestID string, limit int, offset int64) ([]*model.Booking, error)
	CountByGuest(ctx context.Context, guestID string) (int64, error)
	FindStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]*model.Booking, error)
	// Transition moves the booking from change.From to change.To, failing with
	// ErrStateChanged when the stored state is no longer change.From.
	Transition(ctx context.Context, id string, change model.StateChange) error

	CreateLinks(ctx context.Context, links []*model.BookingRoom) error
	FindLinksByBooking(ctx context.Context, bookingID string) ([]*model.BookingRoom, error)
	// FindActiveByRooms returns, per room id, the pending or confirmed bookings linked to it.
	FindActiveByRooms(ctx context.Context, roomIDs []string) (map[string][]*model.Booking, error)
}

type mongoBookingRepository struct {
	cfg      *config.Config
	bookings *mongo.Collection
	links    *mongo.Collection
}

func NewMongoBookingRepository(cfg *config.Config) BookingRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoBookingRepository{
		cfg:      cfg,
		bookings: db.Collection(BookingCollectionName),
		links:    db.Collection(BookingRoomCollectionName),
	}
}

func (r *mongoBookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	booking.CreatedAt = now
	booking.UpdatedAt = now

	result, err := r.bookings.InsertOne(ctx, booking)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		booking.ID = oid.Hex()
	}
	return nil
}

func (r *mongoBookingRepository) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", reservationerrors.ErrInvalidID, id)
	}

	var booking model.Booking
	err = r.bookings.FindOne(ctx, bson.M{"_id": objectID}).Decode(&booking)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, reservationerrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find booking: %w", err)
	}

	return &booking, nil
}

func (r *mongoBookingRepository) FindByGuest(ctx context.Context, guestID string, limit int, offset int64) ([]*model.Booking, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	return r.findBookings(ctx, bson.M{"guest_id": guestID}, opts)
}

func (r *mongoBookingRepository) CountByGuest(ctx context.Context, guestID string) (int64, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.bookings.CountDocuments(ctx, bson.M{"guest_id": guestID})
	if err != nil {
		return 0, fmt.Errorf("failed to count bookings: %w", err)
	}
	return count, nil
}

func (r *mongoBookingRepository) FindStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]*model.Booking, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"status":         model.BookingPending,
		"payment_status": model.PaymentUnpaid,
		"created_at":     bson.M{"$lt": createdBefore},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}}).
		SetLimit(int64(limit))

	return r.findBookings(ctx, filter, opts)
}

func (r *mongoBookingRepository) Transition(ctx context.Context, id string, change model.StateChange) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", reservationerrors.ErrInvalidID, id)
	}

	filter := bson.M{
		"_id":            objectID,
		"status":         change.From.Status,
		"payment_status": change.From.PaymentStatus,
	}
	set := bson.M{
		"status":         change.To.Status,
		"payment_status": change.To.PaymentStatus,
		"updated_at":     change.At.UTC().Truncate(time.Millisecond),
	}
	if change.PaymentReference != "" {
		set["payment_reference"] = change.PaymentReference
	}
	if change.CancelReason != "" {
		set["cancel_reason"] = change.CancelReason
	}

	result, err := r.bookings.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to transition booking: %w", err)
	}
	if result.MatchedCount == 0 {
		return reservationerrors.ErrStateChanged
	}
	return nil
}

func (r *mongoBookingRepository) CreateLinks(ctx context.Context, links []*model.BookingRoom) error {
	if len(links) == 0 {
		return nil
	}

	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	docs := make([]any, 0, len(links))
	for _, link := range links {
		link.CreatedAt = now
		docs = append(docs, link)
	}

	if _, err := r.links.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("failed to create booking rooms: %w", err)
	}
	return nil
}

func (r *mongoBookingRepository) FindLinksByBooking(ctx context.Context, bookingID string) ([]*model.BookingRoom, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	return r.findLinks(ctx, bson.M{"booking_id": bookingID})
}

func (r *mongoBookingRepository) FindActiveByRooms(ctx context.Context, roomIDs []string) (map[string][]*model.Booking, error) {
	active := make(map[string][]*model.Booking, len(roomIDs))
	if len(roomIDs) == 0 {
		return active, nil
	}

	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	links, err := r.findLinks(ctx, bson.M{"room_id": bson.M{"$in": roomIDs}})
	if err != nil {
		return nil, err
	}
	if len(links) == 0 {
		return active, nil
	}

	seen := make(map[string]bool, len(links))
	bookingIDs := make([]primitive.ObjectID, 0, len(links))
	for _, link := range links {
		if seen[link.BookingID] {
			continue
		}
		seen[link.BookingID] = true
		oid, err := primitive.ObjectIDFromHex(link.BookingID)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", reservationerrors.ErrInvalidID, link.BookingID)
		}
		bookingIDs = append(bookingIDs, oid)
	}

	bookings, err := r.findBookings(ctx, bson.M{
		"_id":    bson.M{"$in": bookingIDs},
		"status": bson.M{"$in": model.ActiveBookingStatuses},
	}, options.Find())
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*model.Booking, len(bookings))
	for _, b := range bookings {
		byID[b.ID] = b
	}
	for _, link := range links {
		if b, ok := byID[link.BookingID]; ok {
			active[link.RoomID] = append(active[link.RoomID], b)
		}
	}
	return active, nil
}

func (r *mongoBookingRepository) findBookings(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*model.Booking, error) {
	cursor, err := r.bookings.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find bookings: %w", err)
	}
	defer cursor.Close(ctx)

	var bookings []*model.Booking
	if err = cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("failed to decode bookings: %w", err)
	}
	return bookings, nil
}

func (r *mongoBookingRepository) findLinks(ctx context.Context, filter bson.M) ([]*model.BookingRoom, error) {
	cursor, err := r.links.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to find booking rooms: %w", err)
	}
	defer cursor.Close(ctx)

	var links []*model.BookingRoom
	if err = cursor.All(ctx, &links); err != nil {
		return nil, fmt.Errorf("failed to decode booking rooms: %w", err)
	}
	return links, nil
}
