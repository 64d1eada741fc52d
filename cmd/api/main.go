package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/samirrijal/nightmap/internal/adapters/cluster"
	"github.com/samirrijal/nightmap/internal/adapters/geostore"
	"github.com/samirrijal/nightmap/internal/adapters/http"
	natsadapter "github.com/samirrijal/nightmap/internal/adapters/nats"
	"github.com/samirrijal/nightmap/internal/adapters/naver"
	"github.com/samirrijal/nightmap/internal/adapters/postgres"
	"github.com/samirrijal/nightmap/internal/adapters/valkey"
	"github.com/samirrijal/nightmap/internal/core/ports"
	"github.com/samirrijal/nightmap/internal/core/usecases"
	"github.com/samirrijal/nightmap/internal/pkg/config"
	"github.com/samirrijal/nightmap/internal/pkg/logging"
	"github.com/samirrijal/nightmap/internal/pkg/metrics"
	"github.com/samirrijal/nightmap/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("nightmap-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format, "service", cfg.Telemetry.ServiceName)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	loc, err := cfg.Hours.Location()
	if err != nil {
		log.Fatalf("hours timezone: %v", err)
	}

	// Database
	db, err := postgres.New(ctx, cfg.Database.DSN(), postgres.Options{MaxConns: cfg.Database.MaxConns, AppName: cfg.Telemetry.ServiceName})
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()
	go reportPoolStats(ctx, db)

	// Cache
	var responseCache ports.CacheService
	cache, err := valkey.New(cfg.Valkey.Addr)
	if err != nil {
		slog.Warn("valkey unavailable", "error", err)
	} else {
		defer cache.Close()
		responseCache = cache
	}

	// NATS
	var publisher ports.EventPublisher
	nc, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable", "error", err)
	} else {
		defer nc.Close()
		publisher = nc
	}

	// Raw NATS connection for WebSocket relay
	natsConn, err := natsadapter.RawConn(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats ws conn unavailable", "error", err)
	} else {
		defer natsConn.Close()
	}

	// Geocoding
	geo := geostore.Open(ctx, cfg.Geocache, cache)
	geocoder := naver.NewGeocoder(naver.Config{
		URL:     cfg.Geocoder.URL,
		KeyID:   cfg.Geocoder.KeyID,
		Key:     cfg.Geocoder.Key,
		Timeout: cfg.Geocoder.TimeoutDuration(),
	}, nil)

	// Use cases
	venueRepo := postgres.NewVenueRepo(db)
	venueSvc := usecases.NewVenueService(venueRepo, responseCache, loc)
	mapSvc := usecases.NewMapService(venueRepo, geo, geocoder, publisher,
		func() ports.ClusterLayer { return cluster.NewGrid(cfg.Markers.GridSize) },
		usecases.MapOptions{
			MaxConcurrent: int64(cfg.Markers.MaxConcurrent),
			Timeout:       time.Duration(cfg.Markers.WaitTimeout) * time.Millisecond,
			MaxVenues:     cfg.Markers.MaxVenues,
		})

	deps := &http.Dependencies{
		Venues:   venueSvc,
		Map:      mapSvc,
		GridSize: cfg.Markers.GridSize,
		NATS:     natsConn,
		DB:       db,
		Cache:    cache,
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    1024 * 1024, // 1 MB max request body
		AppName:      "Nightmap API",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "http://localhost:3000, http://localhost:5173",
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	// Give in-flight requests up to 10s to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}

func reportPoolStats(ctx context.Context, db *postgres.DB) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.UpdateDBPoolMetrics(db.Stat())
		}
	}
}
