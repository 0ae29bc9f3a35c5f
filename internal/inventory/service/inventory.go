package service

import (
	"context"
	"fmt"
	"strings"

	"zivara/internal/availability"
	"zivara/internal/interval"
	inventoryrepo "zivara/internal/inventory/repository"
	"zivara/pkg/config"
	mongotx "zivara/pkg/db/mongo"
	apperrors "zivara/pkg/errors"
	"zivara/pkg/model"
	"zivara/pkg/sanitizer"

	"github.com/go-playground/validator/v10"
)

// Catalogue is the seed document for room categories and their rooms.
type Catalogue struct {
	Categories []CatalogueCategory `json:"categories" validate:"required,min=1,dive"`
}

type CatalogueCategory struct {
	Name         string   `json:"name" validate:"required,min=2,max=100"`
	Description  string   `json:"description" validate:"max=2000"`
	NightlyRate  int64    `json:"nightly_rate" validate:"gt=0"`
	MaxOccupancy int      `json:"max_occupancy" validate:"gte=1,lte=20"`
	Rooms        []string `json:"rooms" validate:"required,min=1,unique,dive,required,max=20"`
}

type SeedResult struct {
	CategoriesCreated int `json:"categories_created"`
	RoomsCreated      int `json:"rooms_created"`
}

type CategoryView struct {
	*model.RoomCategory
	TotalRooms    int `json:"total_rooms"`
	BookableRooms int `json:"bookable_rooms"`
}

type AvailabilityView struct {
	CategoryID string        `json:"category_id"`
	CheckIn    string        `json:"check_in"`
	CheckOut   string        `json:"check_out"`
	Rooms      []*model.Room `json:"rooms"`
}

type InventoryService interface {
	ListCategories(ctx context.Context) ([]*CategoryView, error)
	CategoryAvailability(ctx context.Context, categoryID, checkIn, checkOut string) (*AvailabilityView, error)
	Summary(ctx context.Context, checkIn, checkOut string) ([]availability.CategoryAvailability, error)
	// Seed creates the categories and rooms of c that do not exist yet,
	// matching categories by name and rooms by number.
	Seed(ctx context.Context, c *Catalogue) (*SeedResult, error)
}

type inventoryService struct {
	tx         mongotx.TransactionManager
	categories inventoryrepo.CategoryRepository
	rooms      inventoryrepo.RoomRepository
	resolver   availability.Resolver
	validate   *validator.Validate
	cfg        *config.Config
}

func NewInventoryService(
	tx mongotx.TransactionManager,
	categories inventoryrepo.CategoryRepository,
	rooms inventoryrepo.RoomRepository,
	resolver availability.Resolver,
	cfg *config.Config,
) InventoryService {
	return &inventoryService{
		tx:         tx,
		categories: categories,
		rooms:      rooms,
		resolver:   resolver,
		validate:   validator.New(),
		cfg:        cfg,
	}
}

func (s *inventoryService) ListCategories(ctx context.Context) ([]*CategoryView, error) {
	categories, err := s.categories.FindAll(ctx)
	if err != nil {
		s.cfg.Log.Error("Failed to list room categories", "error", err)
		return nil, apperrors.Storage("Failed to list room categories", err)
	}
	rooms, err := s.rooms.FindAll(ctx)
	if err != nil {
		s.cfg.Log.Error("Failed to list rooms", "error", err)
		return nil, apperrors.Storage("Failed to list rooms", err)
	}

	views := make([]*CategoryView, 0, len(categories))
	byID := make(map[string]*CategoryView, len(categories))
	for _, c := range categories {
		v := &CategoryView{RoomCategory: c}
		views = append(views, v)
		byID[c.ID] = v
	}
	for _, room := range rooms {
		v, ok := byID[room.CategoryID]
		if !ok {
			continue
		}
		v.TotalRooms++
		if room.Bookable() {
			v.BookableRooms++
		}
	}
	return views, nil
}

func (s *inventoryService) CategoryAvailability(ctx context.Context, categoryID, checkIn, checkOut string) (*AvailabilityView, error) {
	categoryID = sanitizer.TrimAndNormalize(categoryID)
	if categoryID == "" {
		return nil, apperrors.InvalidInput("Category ID cannot be empty")
	}
	iv, err := interval.Parse(checkIn, checkOut)
	if err != nil {
		return nil, err
	}

	rooms, err := s.resolver.FindAvailableRooms(ctx, categoryID, iv)
	if err != nil {
		return nil, err
	}
	if rooms == nil {
		rooms = []*model.Room{}
	}
	return &AvailabilityView{
		CategoryID: categoryID,
		CheckIn:    iv.Start.Format(interval.DateLayout),
		CheckOut:   iv.End.Format(interval.DateLayout),
		Rooms:      rooms,
	}, nil
}

func (s *inventoryService) Summary(ctx context.Context, checkIn, checkOut string) ([]availability.CategoryAvailability, error) {
	iv, err := interval.Parse(checkIn, checkOut)
	if err != nil {
		return nil, err
	}
	return s.resolver.Summarize(ctx, iv)
}

func (s *inventoryService) Seed(ctx context.Context, c *Catalogue) (*SeedResult, error) {
	for i := range c.Categories {
		cat := &c.Categories[i]
		cat.Name = sanitizer.NormalizeName(cat.Name)
		cat.Description = sanitizer.TrimAndNormalize(cat.Description)
		cat.Rooms = sanitizer.NormalizeIDs(cat.Rooms)
	}
	if err := s.validate.Struct(c); err != nil {
		return nil, apperrors.Validation("Invalid catalogue", map[string]any{"error": err.Error()})
	}

	var result SeedResult
	err := s.tx.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		result = SeedResult{}
		existing, err := s.categories.FindAll(txCtx)
		if err != nil {
			return err
		}
		byName := make(map[string]*model.RoomCategory, len(existing))
		for _, e := range existing {
			byName[strings.ToLower(e.Name)] = e
		}

		for _, entry := range c.Categories {
			category, ok := byName[strings.ToLower(entry.Name)]
			if !ok {
				category = &model.RoomCategory{
					Name:         entry.Name,
					Description:  entry.Description,
					NightlyRate:  entry.NightlyRate,
					MaxOccupancy: entry.MaxOccupancy,
				}
				if err := s.categories.Create(txCtx, category); err != nil {
					return err
				}
				byName[strings.ToLower(entry.Name)] = category
				result.CategoriesCreated++
			}

			rooms, err := s.rooms.FindByCategory(txCtx, category.ID)
			if err != nil {
				return err
			}
			have := make(map[string]bool, len(rooms))
			for _, r := range rooms {
				have[r.Number] = true
			}
			for _, number := range entry.Rooms {
				if have[number] {
					continue
				}
				room := &model.Room{CategoryID: category.ID, Number: number, Status: model.RoomAvailable}
				if err := s.rooms.Create(txCtx, room); err != nil {
					return fmt.Errorf("room %s: %w", number, err)
				}
				result.RoomsCreated++
			}
		}
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to seed catalogue", "error", err)
		return nil, apperrors.Storage("Failed to seed catalogue", err)
	}

	s.cfg.Log.Info("Catalogue seeded", "categories_created", result.CategoriesCreated, "rooms_created", result.RoomsCreated)
	return &result, nil
}
