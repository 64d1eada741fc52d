package main

import (
	"context"
	"log"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/samirrijal/nightmap/internal/adapters/geostore"
	natsadapter "github.com/samirrijal/nightmap/internal/adapters/nats"
	"github.com/samirrijal/nightmap/internal/adapters/postgres"
	"github.com/samirrijal/nightmap/internal/adapters/valkey"
	"github.com/samirrijal/nightmap/internal/core/domain"
	"github.com/samirrijal/nightmap/internal/core/usecases"
	"github.com/samirrijal/nightmap/internal/pkg/config"
	"github.com/samirrijal/nightmap/internal/pkg/logging"
	"github.com/samirrijal/nightmap/internal/pkg/telemetry"
)

// realtime publishes venue hours transitions every tick and folds geocode
// results announced by API instances into the persisted geocode cache.
func main() {
	cfg, err := config.Load("nightmap-realtime")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format, "service", cfg.Telemetry.ServiceName)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

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
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	// NATS
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats: %v", err)
	}
	defer pub.Close()

	sub, err := natsadapter.NewSubscriber(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats subscriber: %v", err)
	}
	defer sub.Close()

	// Geocode cache
	cache, err := valkey.New(cfg.Valkey.Addr)
	if err != nil {
		slog.Warn("valkey unavailable", "error", err)
	} else {
		defer cache.Close()
	}
	geo := geostore.Open(ctx, cfg.Geocache, cache)

	err = sub.SubscribeGeocoded(ctx, func(ctx context.Context, address string, p domain.GeoPoint) error {
		if existing, ok := geo.Get(address); ok && existing == p {
			return nil
		}
		geo.Set(ctx, address, p)
		slog.Debug("geocode folded into cache", "address", address, "entries", geo.Len())
		return nil
	})
	if err != nil {
		log.Fatalf("subscribe geocoded: %v", err)
	}

	err = sub.SubscribeStatusChanges(ctx, func(ctx context.Context, c *domain.StatusChange) error {
		slog.Info("venue status", "venue_id", c.VenueID, "from", c.Previous, "to", c.Current, "label", c.Label.Label)
		return nil
	})
	if err != nil {
		log.Fatalf("subscribe status: %v", err)
	}

	interval := time.Duration(cfg.Hours.TickInterval) * time.Second
	status := usecases.NewStatusService(postgres.NewVenueRepo(db), pub, loc)

	slog.Info("Nightmap realtime started", "interval", interval.String(), "timezone", loc.String())
	status.Run(ctx, interval)

	slog.Info("realtime stopped")
}
