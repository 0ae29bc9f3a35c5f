package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	inventoryerrors "zivara/internal/inventory/errors"
	"zivara/pkg/config"
	mongotx "zivara/pkg/db/mongo"
	"zivara/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CategoryCollectionName = "Room_categories"
	RoomCollectionName     = "Rooms"
)

type CategoryRepository interface {
	Create(ctx context.Context, category *model.RoomCategory) error
	FindByID(ctx context.Context, id string) (*model.RoomCategory, error)
	FindAll(ctx context.Context) ([]*model.RoomCategory, error)
}

type RoomRepository interface {
	Create(ctx context.Context, room *model.Room) error
	FindByCategory(ctx context.Context, categoryID string) ([]*model.Room, error)
	FindByIDs(ctx context.Context, ids []string) ([]*model.Room, error)
	FindAll(ctx context.Context) ([]*model.Room, error)
	UpdateStatus(ctx context.Context, ids []string, status model.RoomStatus) error
}

type mongoCategoryRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

type mongoRoomRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoCategoryRepository(cfg *config.Config) CategoryRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoCategoryRepository{
		cfg:        cfg,
		collection: db.Collection(CategoryCollectionName),
	}
}

func NewMongoRoomRepository(cfg *config.Config) RoomRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoRoomRepository{
		cfg:        cfg,
		collection: db.Collection(RoomCollectionName),
	}
}

func (r *mongoCategoryRepository) Create(ctx context.Context, category *model.RoomCategory) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	category.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	result, err := r.collection.InsertOne(ctx, category)
	if err != nil {
		return fmt.Errorf("failed to create room category: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		category.ID = oid.Hex()
	}
	return nil
}

func (r *mongoCategoryRepository) FindByID(ctx context.Context, id string) (*model.RoomCategory, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", inventoryerrors.ErrInvalidID, id)
	}

	var category model.RoomCategory
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&category)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, inventoryerrors.ErrCategoryNotFound
		}
		return nil, fmt.Errorf("failed to find room category: %w", err)
	}

	return &category, nil
}

func (r *mongoCategoryRepository) FindAll(ctx context.Context) ([]*model.RoomCategory, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "nightly_rate", Value: 1}, {Key: "name", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find room categories: %w", err)
	}
	defer cursor.Close(ctx)

	var categories []*model.RoomCategory
	if err = cursor.All(ctx, &categories); err != nil {
		return nil, fmt.Errorf("failed to decode room categories: %w", err)
	}
	return categories, nil
}

func (r *mongoRoomRepository) Create(ctx context.Context, room *model.Room) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	room.CreatedAt = now
	room.UpdatedAt = now
	if room.Status == "" {
		room.Status = model.RoomAvailable
	}

	result, err := r.collection.InsertOne(ctx, room)
	if err != nil {
		return fmt.Errorf("failed to create room: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		room.ID = oid.Hex()
	}
	return nil
}

func (r *mongoRoomRepository) FindByCategory(ctx context.Context, categoryID string) ([]*model.Room, error) {
	return r.find(ctx, bson.M{"category_id": categoryID})
}

func (r *mongoRoomRepository) FindByIDs(ctx context.Context, ids []string) ([]*model.Room, error) {
	objectIDs, err := toObjectIDs(ids)
	if err != nil {
		return nil, err
	}
	return r.find(ctx, bson.M{"_id": bson.M{"$in": objectIDs}})
}

func (r *mongoRoomRepository) FindAll(ctx context.Context) ([]*model.Room, error) {
	return r.find(ctx, bson.M{})
}

func (r *mongoRoomRepository) find(ctx context.Context, filter bson.M) ([]*model.Room, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	// Numeric collation sorts room "9" before "10".
	opts := options.Find().
		SetSort(bson.D{{Key: "number", Value: 1}}).
		SetCollation(&options.Collation{Locale: "en", NumericOrdering: true})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find rooms: %w", err)
	}
	defer cursor.Close(ctx)

	var rooms []*model.Room
	if err = cursor.All(ctx, &rooms); err != nil {
		return nil, fmt.Errorf("failed to decode rooms: %w", err)
	}
	return rooms, nil
}

func (r *mongoRoomRepository) UpdateStatus(ctx context.Context, ids []string, status model.RoomStatus) error {
	if len(ids) == 0 {
		return nil
	}

	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectIDs, err := toObjectIDs(ids)
	if err != nil {
		return err
	}

	update := bson.M{"$set": bson.M{
		"status":     status,
		"updated_at": time.Now().UTC().Truncate(time.Millisecond),
	}}
	result, err := r.collection.UpdateMany(ctx, bson.M{"_id": bson.M{"$in": objectIDs}}, update)
	if err != nil {
		return fmt.Errorf("failed to update room status: %w", err)
	}
	if result.MatchedCount != int64(len(objectIDs)) {
		return fmt.Errorf("%w: matched %d of %d rooms", inventoryerrors.ErrRoomNotFound, result.MatchedCount, len(objectIDs))
	}
	return nil
}

func toObjectIDs(ids []string) ([]primitive.ObjectID, error) {
	objectIDs := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		oid, err := primitive.ObjectIDFromHex(id)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", inventoryerrors.ErrInvalidID, id)
		}
		objectIDs = append(objectIDs, oid)
	}
	return objectIDs, nil
}
