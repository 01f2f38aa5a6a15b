package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	httpapi "github.com/UTSC-CSCC01-Software-Engineering-I/GLOW-WebApp-sub000/internal/api/http"
	"github.com/UTSC-CSCC01-Software-Engineering-I/GLOW-WebApp-sub000/internal/config"
	"github.com/UTSC-CSCC01-Software-Engineering-I/GLOW-WebApp-sub000/internal/locate"
	"github.com/UTSC-CSCC01-Software-Engineering-I/GLOW-WebApp-sub000/internal/logging"
	"github.com/UTSC-CSCC01-Software-Engineering-I/GLOW-WebApp-sub000/internal/metrics"
	"github.com/UTSC-CSCC01-Software-Engineering-I/GLOW-WebApp-sub000/internal/notify"
	"github.com/UTSC-CSCC01-Software-Engineering-I/GLOW-WebApp-sub000/internal/readings"
	"github.com/UTSC-CSCC01-Software-Engineering-I/GLOW-WebApp-sub000/internal/scheduler"
	"github.com/UTSC-CSCC01-Software-Engineering-I/GLOW-WebApp-sub000/internal/sources"
	"github.com/UTSC-CSCC01-Software-Engineering-I/GLOW-WebApp-sub000/internal/store"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load config")
	}
	logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	log := logging.With("main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Snapshot cache on the configured backend.
	kv, err := openKV(cfg)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.CacheBackend).Msg("failed to open cache backend")
	}
	defer kv.Close()
	cache := store.NewSnapshotCache(kv, cfg.CacheKeyPrefix)

	// Shared HTTP client for the feeds; each feed has its own circuit breaker.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}
	stations := sources.NewStationFeed(cfg.StationsURL, httpClient)
	users := sources.NewUserPointFeed(cfg.UserPointsURL, httpClient)

	// Cold start publishes the cached snapshot, if any.
	engine, err := readings.NewEngine(ctx, cache, stations, users, readings.EngineConfig{
		RadiusKm:    cfg.ClusterRadiusKm,
		CacheTTL:    cfg.CacheTTL,
		Diagnostics: metrics.NewRecorder(readings.LogDiagnostics{}),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create engine")
	}
	log.Info().Stringer("state", engine.State()).Int("markers", len(engine.Current().Markers)).Msg("engine started")

	// Fan-out of publications.
	hub := notify.NewHub()
	cancelHub := engine.Subscribe(hub.Broadcast)
	defer cancelHub()

	if cfg.NATSURL != "" {
		pub, err := notify.NewNATSPublisher(cfg.NATSURL, notify.DefaultSubject)
		if err != nil {
			log.Error().Err(err).Msg("nats publisher disabled")
		} else {
			cancelNATS := engine.Subscribe(pub.Observe)
			defer pub.Close()
			defer cancelNATS()
		}
	}

	// Scheduler that periodically refreshes the marker set.
	sched := scheduler.New(engine, cfg.RefreshInterval, cfg.HTTPTimeout*4)
	if err := sched.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start scheduler")
	}
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		AppName:               "glow-markers",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		ErrorHandler:          httpapi.ErrorHandler,
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())
	app.Use(metrics.Middleware())

	// Basic health endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		pub := engine.Current()
		return c.JSON(fiber.Map{
			"status":     "ok",
			"service":    "glow-markers",
			"state":      engine.State(),
			"dataStatus": pub.Status,
		})
	})

	// API routes.
	httpapi.RegisterRoutes(app, httpapi.Deps{
		Engine:  engine,
		Locator: locate.NewGeocodeLocator(cfg.GeocoderAPIKey),
		Hub:     hub,
	})

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Error().Err(err).Msg("fiber server stopped")
		}
	}()
	log.Info().Str("port", cfg.Port).Msg("listening")

	// Wait for termination signal
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during shutdown")
	}
}

func openKV(cfg *config.AppConfig) (store.KV, error) {
	switch cfg.CacheBackend {
	case config.BackendMemory:
		return store.NewMemoryKV(), nil
	case config.BackendBadger:
		return store.OpenBadger(cfg.BadgerDir)
	case config.BackendValkey:
		return store.NewValkeyKV(cfg.ValkeyAddr)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.CacheBackend)
	}
}
