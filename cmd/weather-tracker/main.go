package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"

	httpapi "github.com/i474232898/weather-tracker/internal/api/http"
	"github.com/i474232898/weather-tracker/internal/config"
	"github.com/i474232898/weather-tracker/internal/geocode"
	"github.com/i474232898/weather-tracker/internal/locations"
	"github.com/i474232898/weather-tracker/internal/scheduler"
	"github.com/i474232898/weather-tracker/internal/store"
	"github.com/i474232898/weather-tracker/internal/weather"
	"github.com/i474232898/weather-tracker/internal/weather/providers"
)

// backend is implemented by every store.
type backend interface {
	weather.Store
	weather.LocationStore
}

func main() {
	log := zerolog.New(os.Stderr).With().Timestamp().Logger()

	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	log = log.Level(cfg.LogLevel)

	if cfg.OpenWeatherAPIKey == "" {
		log.Warn().Msg("OPENWEATHER_API_KEY is not set; downloads will fail until it is configured")
	}

	ctx := context.Background()

	var db backend
	switch cfg.StoreDriver {
	case "sqlite":
		sqlStore, err := store.NewSQLiteStore(ctx, cfg.SQLitePath)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.SQLitePath).Msg("failed to open sqlite store")
		}
		defer sqlStore.Close()
		db = sqlStore
	default:
		db = store.NewMemoryStore()
	}

	regOpts := []locations.Option{locations.WithLogger(log)}
	if cfg.GeocoderAPIKey != "" {
		regOpts = append(regOpts, locations.WithNamer(geocode.New(cfg.GeocoderAPIKey, log)))
	}
	registry := locations.NewRegistry(db, regOpts...)

	for _, seed := range cfg.Locations {
		loc, added, err := registry.AddIfMissing(ctx, locations.NewLocation{
			Name:    seed.Name,
			Coord:   seed.Coord(),
			Default: seed.Default,
		})
		if err != nil {
			log.Fatal().Err(err).Str("name", seed.Name).Msg("failed to seed location")
		}
		if added {
			log.Info().Str("location", loc.ID).Str("name", loc.Name).Msg("seeded location")
		}
	}

	urls, err := providers.NewOpenWeatherURLs(cfg.OpenWeatherBaseURL, cfg.OpenWeatherAPIKey, cfg.OpenWeatherLang)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid provider configuration")
	}

	// Shared HTTP client for outbound provider calls; timeouts live here.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}
	transport := providers.NewTransport(providers.TransportConfig{
		Name:          "openweather",
		Client:        httpClient,
		RatePerSecond: cfg.RateLimitRPS,
		Burst:         cfg.RateLimitBurst,
		Logger:        log,
	})
	downloader := providers.NewDownloader(transport, log)

	service := weather.NewService(db, db, urls, downloader,
		weather.WithLogger(log),
		weather.WithUnits(cfg.Units),
		weather.WithPolicy(weather.CachePolicy{StaleAfter: cfg.CacheStaleAfter}),
	)

	// Scheduler that periodically refreshes stale payloads.
	sched := scheduler.New(registry, service, cfg.RefreshInterval, log)
	if err := sched.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start scheduler")
	}
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		AppName:               "weather-tracker",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          cfg.HTTPTimeout + 5*time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "weather-tracker",
		})
	})

	httpapi.RegisterRoutes(app, service, registry)

	go func() {
		log.Info().Str("port", cfg.Port).Str("units", cfg.Units.Name).Msg("listening")
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Error().Err(err).Msg("fiber server stopped")
		}
	}()

	// Wait for termination signal
	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-sigCtx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during shutdown")
	}
}
