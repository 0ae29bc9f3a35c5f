package service

import (
	"context"
	"testing"

	"zivara/internal/availability"
	"zivara/internal/testutil"
	"zivara/internal/testutil/memstore"
	apperrors "zivara/pkg/errors"
	"zivara/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(store *memstore.Store) InventoryService {
	cfg := testutil.Config()
	resolver := availability.NewResolver(store.Categories(), store.Rooms(), store.Bookings(), cfg)
	return NewInventoryService(store, store.Categories(), store.Rooms(), resolver, cfg)
}

func catalogue() *Catalogue {
	return &Catalogue{Categories: []CatalogueCategory{
		{Name: "Single Room", NightlyRate: 514700, MaxOccupancy: 1, Rooms: []string{"101", "102"}},
		{Name: "Deluxe Suite", NightlyRate: 899900, MaxOccupancy: 3, Rooms: []string{"401"}},
	}}
}

func TestSeed_IsIdempotent(t *testing.T) {
	store := memstore.New()
	svc := newService(store)

	res, err := svc.Seed(context.Background(), catalogue())
	require.NoError(t, err)
	assert.Equal(t, &SeedResult{CategoriesCreated: 2, RoomsCreated: 3}, res)

	grown := catalogue()
	grown.Categories[0].Rooms = append(grown.Categories[0].Rooms, "103")
	res, err = svc.Seed(context.Background(), grown)
	require.NoError(t, err)
	assert.Equal(t, &SeedResult{CategoriesCreated: 0, RoomsCreated: 1}, res)
}

func TestSeed_RejectsInvalidCatalogue(t *testing.T) {
	store := memstore.New()
	svc := newService(store)

	bad := catalogue()
	bad.Categories[1].NightlyRate = 0
	_, err := svc.Seed(context.Background(), bad)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	dup := catalogue()
	dup.Categories[0].Rooms = []string{"101", " 101 "}
	_, err = svc.Seed(context.Background(), dup)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
	assert.Zero(t, store.Writes())
}

func TestListCategories(t *testing.T) {
	store := memstore.New()
	_, rooms := store.AddCategory("Deluxe", 15000, "201", "202")
	store.AddCategory("Single", 5000, "101")
	store.SetRoomStatus(rooms[1].ID, model.RoomMaintenance)

	views, err := newService(store).ListCategories(context.Background())
	require.NoError(t, err)
	require.Len(t, views, 2)

	assert.Equal(t, "Single", views[0].Name, "cheapest first")
	assert.Equal(t, 2, views[1].TotalRooms)
	assert.Equal(t, 1, views[1].BookableRooms)
}

func TestCategoryAvailability(t *testing.T) {
	store := memstore.New()
	category, _ := store.AddCategory("Deluxe", 15000, "201", "202")
	svc := newService(store)

	view, err := svc.CategoryAvailability(context.Background(), category.ID, "2024-07-10", "2024-07-12")
	require.NoError(t, err)
	assert.Len(t, view.Rooms, 2)
	assert.Equal(t, "2024-07-10", view.CheckIn)

	_, err = svc.CategoryAvailability(context.Background(), category.ID, "2024-07-12", "2024-07-10")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidInterval))

	_, err = svc.CategoryAvailability(context.Background(), " ", "2024-07-10", "2024-07-12")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidInput))
}

func TestSummary(t *testing.T) {
	store := memstore.New()
	store.AddCategory("Deluxe", 15000, "201", "202")
	store.AddCategory("Single", 5000, "101")

	summary, err := newService(store).Summary(context.Background(), "2024-07-10", "2024-07-12")
	require.NoError(t, err)
	require.Len(t, summary, 2)
	total := 0
	for _, c := range summary {
		total += c.AvailableRooms
	}
	assert.Equal(t, 3, total)
}
