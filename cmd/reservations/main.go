package main

import (
	"context"

	"zivara/internal/availability"
	"zivara/internal/events"
	"zivara/internal/expiry"
	inventoryhandler "zivara/internal/inventory/handler"
	inventoryrepo "zivara/internal/inventory/repository"
	inventoryservice "zivara/internal/inventory/service"
	"zivara/internal/payments/gateway"
	paymenthandler "zivara/internal/payments/handler"
	paymentservice "zivara/internal/payments/service"
	"zivara/internal/reservations/handler"
	"zivara/internal/reservations/repository"
	"zivara/internal/reservations/service"
	"zivara/internal/reservations/validator"
	"zivara/pkg/app"
	"zivara/pkg/config"
	"zivara/pkg/contracts"
	mongotx "zivara/pkg/db/mongo"
	"zivara/pkg/kafka"
	kafka_config "zivara/pkg/kafka/config"
	kafka_middleware "zivara/pkg/kafka/middleware"

	"github.com/julienschmidt/httprouter"
)

const ServiceName = "reservations"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	cfg.SetRedis()
	defer cfg.GracefulShutdown()

	cfg.Log.Info("Starting Reservations service")

	publisher, producer := initPublisher(cfg)
	if producer != nil {
		defer func() {
			if err := producer.Close(); err != nil {
				cfg.Log.Error("Failed to close Kafka producer", "error", err)
			}
		}()
	}

	routes, sweeper := initServices(cfg, publisher)

	serverApp := app.NewApplication(cfg)
	serverApp.SetApp(routes)
	serverApp.AddWorker(sweeper)
	serverApp.Run()
}

func initPublisher(cfg *config.Config) (events.Publisher, *kafka.Producer) {
	if !cfg.KafkaEnabled {
		cfg.Log.Info("Kafka disabled, booking events are logged only")
		return events.NewLogPublisher(cfg.Log), nil
	}

	kafkaCfg, err := kafka_config.Load()
	if err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}
	kafkaCfg.LogConfiguration(cfg.Log.Info)

	producer, err := kafka.NewProducer(kafkaCfg, cfg.Log, cfg.KafkaBookingTopic, cfg.KafkaBookingDLQ)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka producer", "error", err)
	}
	producer.Use(kafka_middleware.LoggingProducerMiddleware(cfg.Log))

	return events.NewKafkaPublisher(producer, ServiceName, cfg.Log), producer
}

func initServices(cfg *config.Config, publisher events.Publisher) (app.Routes, *expiry.Sweeper) {
	tx := mongotx.NewTransactionManager(cfg.Client.Mongo)
	categoryRepo := inventoryrepo.NewMongoCategoryRepository(cfg)
	roomRepo := inventoryrepo.NewMongoRoomRepository(cfg)
	bookingRepo := repository.NewMongoBookingRepository(cfg)
	nightRepo := repository.NewRoomNightRepository(cfg)

	resolver := availability.NewResolver(categoryRepo, roomRepo, bookingRepo, cfg)
	reservationValidator := validator.NewReservationValidator(cfg.Log)

	reservationService := service.NewReservationService(service.Dependencies{
		Tx:         tx,
		Categories: categoryRepo,
		Rooms:      roomRepo,
		Bookings:   bookingRepo,
		Nights:     nightRepo,
		Resolver:   resolver,
		Validator:  reservationValidator,
		Publisher:  publisher,
	}, cfg)
	inventoryService := inventoryservice.NewInventoryService(tx, categoryRepo, roomRepo, resolver, cfg)

	stripeGateway := gateway.NewStripeGateway(cfg.StripeSecretKey, cfg.StripeWebhookSecret, cfg.Log)
	checkout := paymentservice.NewCheckoutService(bookingRepo, stripeGateway, cfg)
	finalizer := paymentservice.NewFinalizer(paymentservice.FinalizerDependencies{
		Tx:        tx,
		Bookings:  bookingRepo,
		Rooms:     roomRepo,
		Publisher: publisher,
	}, cfg)

	sweeper := expiry.NewSweeper(expiry.Dependencies{
		Tx:           tx,
		Reservations: reservationService,
		Bookings:     bookingRepo,
		Rooms:        roomRepo,
	}, cfg)

	paymentHandler := paymenthandler.NewPaymentHandler(checkout, finalizer, stripeGateway, cfg.Log)
	healthHandler := handler.NewHealthHandler(healthChecks(cfg), cfg.Log)

	cfg.Log.Info("Reservation services initialized", "database", cfg.MongoDatabaseName)
	return app.Routes{
		Health: healthHandler,
		API: []contracts.Handler{
			inventoryhandler.NewInventoryHandler(inventoryService, cfg.Log),
			handler.NewReservationHandler(reservationService, reservationValidator, cfg.Log),
			paymentHandler,
		},
		Webhooks: []contracts.Handler{webhookRoutes{paymentHandler}},
	}, sweeper
}

type webhookRoutes struct {
	*paymenthandler.PaymentHandler
}

func (w webhookRoutes) RegisterRoutes(router *httprouter.Router) {
	w.RegisterWebhookRoutes(router)
}

func healthChecks(cfg *config.Config) map[string]handler.Check {
	checks := map[string]handler.Check{
		"mongodb": func(ctx context.Context) error {
			return cfg.Client.Mongo.Ping(ctx, nil)
		},
	}
	if cfg.Client.Redis != nil {
		checks["redis"] = func(ctx context.Context) error {
			return cfg.Client.Redis.Ping(ctx).Err()
		}
	}
	return checks
}
