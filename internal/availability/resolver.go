// Package availability answers which physical rooms are free for a stay.
// Answers are read-time snapshots: nothing is locked and nothing is cached,
// so a later commit must re-check under its own transaction.
package availability

import (
	"context"
	"errors"

	"zivara/internal/interval"
	inventoryerrors "zivara/internal/inventory/errors"
	inventoryrepo "zivara/internal/inventory/repository"
	reservationrepo "zivara/internal/reservations/repository"
	"zivara/pkg/config"
	apperrors "zivara/pkg/errors"
	"zivara/pkg/model"
)

type Resolver interface {
	FindAvailableRooms(ctx context.Context, categoryID string, iv interval.Interval) ([]*model.Room, error)
	// Conflicts returns the ids among roomIDs that already hold an active
	// booking overlapping iv. It runs in whatever transaction ctx carries.
	Conflicts(ctx context.Context, roomIDs []string, iv interval.Interval) ([]string, error)
	Summarize(ctx context.Context, iv interval.Interval) ([]CategoryAvailability, error)
}

type CategoryAvailability struct {
	Category       *model.RoomCategory `json:"category"`
	AvailableRooms int                 `json:"available_rooms"`
}

type resolver struct {
	categories inventoryrepo.CategoryRepository
	rooms      inventoryrepo.RoomRepository
	bookings   reservationrepo.BookingRepository
	cfg        *config.Config
}

func NewResolver(
	categories inventoryrepo.CategoryRepository,
	rooms inventoryrepo.RoomRepository,
	bookings reservationrepo.BookingRepository,
	cfg *config.Config,
) Resolver {
	return &resolver{
		categories: categories,
		rooms:      rooms,
		bookings:   bookings,
		cfg:        cfg,
	}
}

func (r *resolver) FindAvailableRooms(ctx context.Context, categoryID string, iv interval.Interval) ([]*model.Room, error) {
	if _, err := iv.Nights(); err != nil {
		return nil, err
	}
	if err := r.ensureCategory(ctx, categoryID); err != nil {
		return nil, err
	}

	rooms, err := r.rooms.FindByCategory(ctx, categoryID)
	if err != nil {
		r.cfg.Log.Error("Failed to load rooms", "category_id", categoryID, "error", err)
		return nil, apperrors.Storage("Failed to load rooms", err)
	}

	return r.freeRooms(ctx, rooms, iv)
}

func (r *resolver) Conflicts(ctx context.Context, roomIDs []string, iv interval.Interval) ([]string, error) {
	active, err := r.bookings.FindActiveByRooms(ctx, roomIDs)
	if err != nil {
		return nil, apperrors.Storage("Failed to load active bookings", err)
	}

	var conflicting []string
	for _, id := range roomIDs {
		if overlapsAny(active[id], iv) {
			conflicting = append(conflicting, id)
		}
	}
	return conflicting, nil
}

func (r *resolver) Summarize(ctx context.Context, iv interval.Interval) ([]CategoryAvailability, error) {
	if _, err := iv.Nights(); err != nil {
		return nil, err
	}

	categories, err := r.categories.FindAll(ctx)
	if err != nil {
		return nil, apperrors.Storage("Failed to load room categories", err)
	}
	rooms, err := r.rooms.FindAll(ctx)
	if err != nil {
		return nil, apperrors.Storage("Failed to load rooms", err)
	}

	free, err := r.freeRooms(ctx, rooms, iv)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int, len(categories))
	for _, room := range free {
		counts[room.CategoryID]++
	}

	summary := make([]CategoryAvailability, 0, len(categories))
	for _, c := range categories {
		summary = append(summary, CategoryAvailability{Category: c, AvailableRooms: counts[c.ID]})
	}
	return summary, nil
}

// freeRooms drops rooms under maintenance and rooms with an overlapping active booking.
func (r *resolver) freeRooms(ctx context.Context, rooms []*model.Room, iv interval.Interval) ([]*model.Room, error) {
	candidates := make([]*model.Room, 0, len(rooms))
	ids := make([]string, 0, len(rooms))
	for _, room := range rooms {
		if room.Bookable() {
			candidates = append(candidates, room)
			ids = append(ids, room.ID)
		}
	}
	if len(candidates) == 0 {
		return []*model.Room{}, nil
	}

	active, err := r.bookings.FindActiveByRooms(ctx, ids)
	if err != nil {
		r.cfg.Log.Error("Failed to load active bookings", "error", err)
		return nil, apperrors.Storage("Failed to load active bookings", err)
	}

	free := make([]*model.Room, 0, len(candidates))
	for _, room := range candidates {
		if !overlapsAny(active[room.ID], iv) {
			free = append(free, room)
		}
	}
	model.SortRooms(free)
	return free, nil
}

func (r *resolver) ensureCategory(ctx context.Context, categoryID string) error {
	if categoryID == "" {
		return apperrors.InvalidInput("Category ID cannot be empty")
	}
	if _, err := r.categories.FindByID(ctx, categoryID); err != nil {
		if errors.Is(err, inventoryerrors.ErrCategoryNotFound) || errors.Is(err, inventoryerrors.ErrInvalidID) {
			return apperrors.NotFoundWithID("Room category", categoryID)
		}
		return apperrors.Storage("Failed to load room category", err)
	}
	return nil
}

func overlapsAny(bookings []*model.Booking, iv interval.Interval) bool {
	for _, b := range bookings {
		if !b.IsActive() {
			continue
		}
		if interval.Overlaps(interval.Interval{Start: b.CheckIn, End: b.CheckOut}, iv) {
			return true
		}
	}
	return false
}
