package main

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"zivara/internal/availability"
	inventoryrepo "zivara/internal/inventory/repository"
	inventoryservice "zivara/internal/inventory/service"
	reservationrepo "zivara/internal/reservations/repository"
	"zivara/pkg/config"
	mongotx "zivara/pkg/db/mongo"
)

const JobName = "inventory-seed"

//go:embed catalogue.json
var defaultCatalogue []byte

func main() {
	file := flag.String("file", "", "catalogue JSON to seed instead of the built-in one")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	cfg := config.Load(JobName)

	catalogue, err := loadCatalogue(*file)
	if err != nil {
		cfg.Log.Fatal("Failed to load catalogue", "error", err)
	}

	cfg.SetMongo()
	defer cfg.GracefulShutdown()

	categories := inventoryrepo.NewMongoCategoryRepository(cfg)
	rooms := inventoryrepo.NewMongoRoomRepository(cfg)
	resolver := availability.NewResolver(categories, rooms, reservationrepo.NewMongoBookingRepository(cfg), cfg)
	svc := inventoryservice.NewInventoryService(mongotx.NewTransactionManager(cfg.Client.Mongo), categories, rooms, resolver, cfg)

	result, err := svc.Seed(ctx, catalogue)
	if err != nil {
		cfg.Log.Error("Seeding failed", "error", err)
		return
	}
	cfg.Log.Info("Inventory seeded",
		"categories_created", result.CategoriesCreated,
		"rooms_created", result.RoomsCreated,
	)
}

func loadCatalogue(path string) (*inventoryservice.Catalogue, error) {
	data := defaultCatalogue
	if path != "" {
		var err error
		if data, err = os.ReadFile(path); err != nil {
			return nil, err
		}
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var c inventoryservice.Catalogue
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("invalid catalogue: %w", err)
	}
	return &c, nil
}
