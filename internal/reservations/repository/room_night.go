package repository

import (
	"context"
	"fmt"
	"time"

	reservationerrors "zivara/internal/reservations/errors"
	"zivara/pkg/config"
	mongotx "zivara/pkg/db/mongo"
	"zivara/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const RoomNightCollectionName = "Room_nights"

// RoomNightRepository stores one claim per (room, night) held by an active booking.
type RoomNightRepository interface {
	Claim(ctx context.Context, nights []*model.RoomNight) error
	ReleaseByBooking(ctx context.Context, bookingID string) error
}

type mongoRoomNightRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewRoomNightRepository(cfg *config.Config) RoomNightRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoRoomNightRepository{
		cfg:        cfg,
		collection: db.Collection(RoomNightCollectionName),
	}
}

// Claim inserts every night or fails with ErrNightTaken when any _id already exists.
// Callers run it inside a transaction so a partial insert is rolled back.
func (r *mongoRoomNightRepository) Claim(ctx context.Context, nights []*model.RoomNight) error {
	if len(nights) == 0 {
		return nil
	}

	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	docs := make([]any, 0, len(nights))
	for _, n := range nights {
		n.ID = model.RoomNightID(n.RoomID, n.Night)
		n.CreatedAt = now
		docs = append(docs, n)
	}

	if _, err := r.collection.InsertMany(ctx, docs); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %v", reservationerrors.ErrNightTaken, err)
		}
		return fmt.Errorf("failed to claim room nights: %w", err)
	}
	return nil
}

func (r *mongoRoomNightRepository) ReleaseByBooking(ctx context.Context, bookingID string) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if _, err := r.collection.DeleteMany(ctx, bson.M{"booking_id": bookingID}); err != nil {
		return fmt.Errorf("failed to release room nights: %w", err)
	}
	return nil
}
