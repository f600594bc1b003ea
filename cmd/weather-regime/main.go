package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/i474232898/weather-regime/internal/anomaly"
	httpapi "github.com/i474232898/weather-regime/internal/api/http"
	"github.com/i474232898/weather-regime/internal/config"
	"github.com/i474232898/weather-regime/internal/modelset"
	"github.com/i474232898/weather-regime/internal/scheduler"
	"github.com/i474232898/weather-regime/internal/store"
	"github.com/i474232898/weather-regime/internal/weather"
	"github.com/i474232898/weather-regime/internal/weather/providers"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Models are loaded once, before the listener starts. A missing model
	// disables its routes; it never stops the server.
	models := modelset.Load(cfg.ModelPaths())
	for _, st := range models.Status() {
		log.Printf("INFO: model %s loaded=%v version=%s", st.Name, st.Loaded, st.Version)
	}

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	// Observation store backing the history fallback.
	obsStore, closeStore, err := store.Open(cfg.StoreDriver, cfg.StoreDSN, cfg.StoreMaxDays)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer closeStore()

	// Providers with resilience (backoff + circuit breaker). Keyed providers
	// are only used when their key is set.
	provs := providers.Configured(httpClient, cfg.OpenMeteoArchiveURL, cfg.WeatherAPIKey, cfg.OpenWeatherAPIKey)
	service := weather.NewService(obsStore, provs)

	locations := cfg.Locations
	if len(cfg.GeocodeCities) > 0 {
		resolved, err := providers.GeocodeCities(cfg.GeocoderAPIKey, cfg.GeocodeCities)
		if err != nil {
			log.Printf("ERROR: %v", err)
		}
		locations = append(locations, resolved...)
	}

	// Scheduler that keeps tracked locations' history fresh in the store.
	sched := scheduler.New(locations, cfg.FetchInterval, cfg.HistoryDays, service)
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		AppName:               "weather-regime",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          30 * time.Second,
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
			"status":    "ok",
			"service":   "weather-regime",
			"providers": service.Providers(),
		})
	})

	anomalyCfg := anomaly.DefaultConfig()
	anomalyCfg.Contamination = cfg.AnomalyContamination
	httpapi.RegisterRoutes(app, models, service, httpapi.Options{
		HistoryDays: cfg.HistoryDays,
		Anomaly:     anomalyCfg,
	})

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()
	log.Printf("INFO: listening on :%s", cfg.Port)

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
}
