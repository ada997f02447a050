package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpapi "github.com/i474232898/weather-gdd/internal/api/http"
	"github.com/i474232898/weather-gdd/internal/config"
	"github.com/i474232898/weather-gdd/internal/logging"
	"github.com/i474232898/weather-gdd/internal/observability"
	"github.com/i474232898/weather-gdd/internal/scheduler"
	"github.com/i474232898/weather-gdd/internal/store"
	"github.com/i474232898/weather-gdd/internal/weather"
	"github.com/i474232898/weather-gdd/internal/weather/providers"
)

const appName = "weather-gdd"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := logging.New(cfg, appName)
	slog.SetDefault(logger)

	realtime, climate, closeStores, err := openStores(cfg)
	if err != nil {
		logger.Error("failed to open stores", "error", err)
		os.Exit(1)
	}
	defer closeStores()

	// Shared HTTP client for outbound station API calls.
	httpClient := &http.Client{
		Timeout: cfg.FetchTimeout,
	}

	cwa := providers.NewCWAProvider(httpClient, providers.CWAConfig{
		APIKey:  cfg.CWAAPIKey,
		BaseURL: cfg.CWABaseURL,
		Limit:   cfg.FetchLimit,
	})
	if cfg.CWAAPIKey == "" {
		logger.Warn("CWA_API_KEY is not set; scheduled fetches will fail")
	}

	metrics := observability.NewMetrics()
	service := weather.NewService(realtime, climate, cwa, weather.NewUpdateStatus(nil), metrics, logger,
		weather.ServiceConfig{
			StationID:    cfg.StationID,
			FetchTimeout: cfg.FetchTimeout,
			DayFallback:  cfg.CSVDayFallback,
		})

	sched := scheduler.New(scheduler.Config{
		Cron:       cfg.FetchSchedule,
		Location:   cfg.Timezone,
		RunOnStart: cfg.FetchOnStart,
	}, service, logger)
	if err := sched.Start(); err != nil {
		logger.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}
	defer sched.Stop()
	if next, ok := sched.NextRun(); ok {
		logger.Info("next scheduled ingestion", "at", next)
	}

	app := fiber.New(fiber.Config{
		AppName:               appName,
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		// A manual fetch may wait out the full upstream timeout.
		WriteTimeout: cfg.FetchTimeout + 10*time.Second,
		BodyLimit:    cfg.UploadMaxBytes * 4,
		ErrorHandler: httpapi.ErrorHandler,
	})

	app.Use(fiberlogger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": appName,
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	httpapi.RegisterRoutes(app, service, httpapi.Options{
		RecentWindow:   cfg.RecentWindow,
		MaxUploadBytes: cfg.UploadMaxBytes,
	})

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			logger.Error("fiber server stopped", "error", err)
		}
	}()
	logger.Info("listening", "port", cfg.Port, "station_id", cfg.StationID)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("error during shutdown", "error", err)
	}
}

func openStores(cfg *config.AppConfig) (realtime, climate weather.Store, closeFn func(), err error) {
	if cfg.StoreDriver == config.DriverMemory {
		return store.NewMemoryStore(), store.NewMemoryStore(), func() {}, nil
	}

	rt, err := store.Open(cfg.RealtimeDBPath, store.LayoutRealtime)
	if err != nil {
		return nil, nil, nil, err
	}
	cl, err := store.Open(cfg.ClimateDBPath, store.LayoutClimate)
	if err != nil {
		_ = rt.Close()
		return nil, nil, nil, err
	}

	ctx := context.Background()
	for _, s := range []weather.Store{rt, cl} {
		if err := s.Init(ctx); err != nil {
			_ = rt.Close()
			_ = cl.Close()
			return nil, nil, nil, err
		}
	}

	return rt, cl, func() {
		_ = rt.Close()
		_ = cl.Close()
	}, nil
}
