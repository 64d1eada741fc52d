package main

import (
	"context"
	"flag"
	"log"
	"log/slog"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/samirrijal/nightmap/internal/adapters/geostore"
	natsadapter "github.com/samirrijal/nightmap/internal/adapters/nats"
	"github.com/samirrijal/nightmap/internal/adapters/naver"
	"github.com/samirrijal/nightmap/internal/adapters/postgres"
	"github.com/samirrijal/nightmap/internal/adapters/valkey"
	"github.com/samirrijal/nightmap/internal/core/ports"
	"github.com/samirrijal/nightmap/internal/pkg/config"
	"github.com/samirrijal/nightmap/internal/pkg/logging"
	"github.com/samirrijal/nightmap/internal/workflows"
)

func main() {
	start := flag.Bool("start", false, "start one warm-up run instead of serving the worker")
	limit := flag.Int("limit", 0, "venues per run (0 = all pending)")
	batch := flag.Int("batch", 8, "parallel geocodes per batch")
	flag.Parse()

	cfg, err := config.Load("nightmap-warmer")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format, "service", cfg.Telemetry.ServiceName)

	ctx := context.Background()

	// Connect to Temporal
	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	taskQueue := cfg.Temporal.TaskQueue
	if taskQueue == "" {
		taskQueue = workflows.TaskQueue
	}

	if *start {
		run, err := c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{TaskQueue: taskQueue},
			workflows.GeocodeWarmupWorkflow, workflows.WarmupInput{Limit: *limit, BatchSize: *batch})
		if err != nil {
			log.Fatalf("start workflow: %v", err)
		}
		var res workflows.WarmupResult
		if err := run.Get(ctx, &res); err != nil {
			log.Fatalf("workflow %s: %v", run.GetID(), err)
		}
		slog.Info("warm-up finished", "workflow_id", run.GetID(),
			"pending", res.Pending, "resolved", res.Resolved, "cached", res.Cached,
			"missing", res.Missing, "failed", res.Failed)
		return
	}

	db, err := postgres.New(ctx, cfg.Database.DSN(), postgres.Options{MaxConns: cfg.Database.MaxConns, AppName: cfg.Telemetry.ServiceName})
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	cache, err := valkey.New(cfg.Valkey.Addr)
	if err != nil {
		slog.Warn("valkey unavailable", "error", err)
	} else {
		defer cache.Close()
	}

	var publisher ports.EventPublisher
	if pub, err := natsadapter.NewPublisher(cfg.NATS.URL); err != nil {
		slog.Warn("nats unavailable", "error", err)
	} else {
		defer pub.Close()
		publisher = pub
	}

	w := worker.New(c, taskQueue, worker.Options{
		// Same geocode bound as map sessions.
		MaxConcurrentActivityExecutionSize: cfg.Markers.MaxConcurrent,
	})

	// Register workflow & activities
	w.RegisterWorkflow(workflows.GeocodeWarmupWorkflow)
	w.RegisterActivity(&workflows.WarmupActivities{
		Venues: postgres.NewVenueRepo(db),
		Cache:  geostore.Open(ctx, cfg.Geocache, cache),
		Geocoder: naver.NewGeocoder(naver.Config{
			URL:     cfg.Geocoder.URL,
			KeyID:   cfg.Geocoder.KeyID,
			Key:     cfg.Geocoder.Key,
			Timeout: cfg.Geocoder.TimeoutDuration(),
		}, nil),
		Publisher: publisher,
	})

	slog.Info("warmer worker started", "task_queue", taskQueue)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}
