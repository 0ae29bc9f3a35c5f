package app

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"zivara/pkg/config"
	"zivara/pkg/contracts"
	"zivara/pkg/middleware"

	"github.com/julienschmidt/httprouter"
)

const webhookPrefix = "/api/v1/webhooks/"

// Routes groups handlers by the middleware stack they are served behind.
type Routes struct {
	Health   contracts.Handler
	API      []contracts.Handler
	Webhooks []contracts.Handler
}

type Application struct {
	cfg              *config.Config
	server           *http.Server
	handler          http.Handler
	idempotencyStore middleware.IdempotencyStore
	rateLimiter      *middleware.RateLimiter
	workers          []contracts.Worker
}

func NewApplication(cfg *config.Config) *Application {
	return &Application{cfg: cfg}
}

func (a *Application) SetApp(routes Routes) {
	mux := http.NewServeMux()

	health := a.healthHandler(routes.Health)
	mux.Handle("/health", health)
	mux.Handle("/ready", health)
	mux.Handle(webhookPrefix, a.webhookHandler(routes.Webhooks))
	mux.Handle("/", a.apiHandler(routes.API))

	a.handler = mux
	a.setAppServer()
}

// AddWorker registers a job started by Run and stopped on shutdown.
func (a *Application) AddWorker(w contracts.Worker) {
	a.workers = append(a.workers, w)
}

// Handler returns the composed HTTP handler. It is nil until SetApp runs.
func (a *Application) Handler() http.Handler {
	return a.handler
}

func (a *Application) healthHandler(h contracts.Handler) http.Handler {
	router := httprouter.New()
	if h != nil {
		h.RegisterRoutes(router)
	}

	var handler http.Handler = router
	handler = middleware.RequestLogging(a.cfg.Log)(handler)
	handler = middleware.Recovery(a.cfg.Log)(handler)
	a.cfg.Log.Info("Health endpoints configured with minimal middleware (Recovery + Logging only)")
	return handler
}

// webhookHandler skips guest rate limiting and idempotency. The gateway
// retries on its own schedule and every event is signed.
func (a *Application) webhookHandler(handlers []contracts.Handler) http.Handler {
	router := httprouter.New()
	for _, h := range handlers {
		h.RegisterRoutes(router)
	}

	var handler http.Handler = router
	handler = middleware.RequestTimeout(a.cfg.RequestTimeout)(handler)
	handler = middleware.MaxBodySize(int64(a.cfg.MaxRequestSize))(handler)
	handler = middleware.RequestLogging(a.cfg.Log)(handler)
	handler = middleware.Recovery(a.cfg.Log)(handler)
	return handler
}

func (a *Application) apiHandler(handlers []contracts.Handler) http.Handler {
	router := httprouter.New()
	for _, h := range handlers {
		h.RegisterRoutes(router)
	}

	if a.cfg.Client != nil && a.cfg.Client.Redis != nil {
		a.idempotencyStore = middleware.NewRedisIdempotencyStore(a.cfg.Client.Redis, a.cfg.IdempotencyTTL, a.cfg.RequestTimeout)
		a.cfg.Log.Info("Idempotency responses stored in Redis")
	} else {
		a.idempotencyStore = middleware.NewInMemoryIdempotencyStore(a.cfg.IdempotencyTTL)
	}
	a.rateLimiter = middleware.NewRateLimiter(
		a.cfg.RateLimitRequests,
		a.cfg.RateLimitWindow,
		middleware.GuestOrIPKey,
		a.cfg.Log,
	)

	var handler http.Handler = router
	handler = middleware.Idempotency(a.idempotencyStore, a.cfg.Log)(handler)
	handler = middleware.RequestTimeout(a.cfg.RequestTimeout)(handler)
	handler = middleware.RateLimit(a.rateLimiter)(handler)
	handler = middleware.ContentTypeValidation(a.cfg.Log)(handler)
	handler = middleware.MaxBodySize(int64(a.cfg.MaxRequestSize))(handler)
	handler = middleware.RequestLogging(a.cfg.Log)(handler)
	handler = middleware.Recovery(a.cfg.Log)(handler)
	a.cfg.Log.Info("Application endpoints configured with full middleware stack")
	return handler
}

func (a *Application) setAppServer() {
	a.server = &http.Server{
		Addr:         ":" + a.cfg.Port,
		Handler:      a.handler,
		ReadTimeout:  a.cfg.ReadTimeout,
		WriteTimeout: a.cfg.WriteTimeout,
		IdleTimeout:  a.cfg.IdleTimeout,
	}

	a.cfg.Log.Info("HTTP server configured", "port", a.cfg.Port)
}

func (a *Application) Run() {
	for _, w := range a.workers {
		if err := w.Start(); err != nil {
			a.cfg.Log.Fatal("Failed to start background worker", "error", err)
		}
	}

	serverErrors := make(chan error, 1)

	go func() {
		a.cfg.Log.Info("Starting HTTP server", "address", a.server.Addr)
		serverErrors <- a.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		a.cfg.Log.Fatal("HTTP server failed", "error", err)

	case sig := <-shutdown:
		a.cfg.Log.Info("Shutdown signal received", "signal", sig)
		a.gracefulShutdown()
	}
}

func (a *Application) gracefulShutdown() {
	a.cfg.Log.Info("Starting graceful shutdown...")

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil {
		a.cfg.Log.Error("Server shutdown failed", "error", err)
		if err := a.server.Close(); err != nil {
			a.cfg.Log.Error("Could not stop server gracefully", "error", err)
		}
	}

	a.cfg.Log.Info("Stopping background workers...")
	a.Stop()
	a.cfg.Log.Info("Server stopped gracefully")
}

// Stop releases the middleware stores and stops every worker.
func (a *Application) Stop() {
	for _, w := range a.workers {
		if err := w.Stop(); err != nil {
			a.cfg.Log.Error("Failed to stop background worker", "error", err)
		}
	}
	if a.idempotencyStore != nil {
		a.idempotencyStore.Stop()
	}
	if a.rateLimiter != nil {
		a.rateLimiter.Stop()
	}
}
