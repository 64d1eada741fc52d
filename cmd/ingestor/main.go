package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/samirrijal/nightmap/internal/adapters/postgres"
	"github.com/samirrijal/nightmap/internal/pkg/config"
	"github.com/samirrijal/nightmap/internal/pkg/logging"
)

const batchSize = 500

func main() {
	cfg, err := config.Load("nightmap-ingestor")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format, "service", cfg.Telemetry.ServiceName)

	ctx := context.Background()

	db, err := postgres.New(ctx, cfg.Database.DSN(), postgres.Options{MaxConns: cfg.Database.MaxConns, AppName: cfg.Telemetry.ServiceName})
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	// Load manifest: a local path or an http(s) URL
	source := "venues.json"
	if len(os.Args) > 1 {
		source = os.Args[1]
	}
	data, err := readSource(source)
	if err != nil {
		log.Fatalf("read manifest: %v", err)
	}

	manifest, err := parseManifest(data)
	if err != nil {
		log.Fatalf("parse manifest: %v", err)
	}
	slog.Info("Nightmap venue ingestor", "venues", len(manifest.Venues), "source", manifest.Source)

	// Optional CLI arg: category list
	categories := map[string]bool{}
	if len(os.Args) > 2 {
		for _, c := range strings.Split(os.Args[2], ",") {
			categories[strings.TrimSpace(c)] = true
		}
	}

	venues, skipped := manifest.toVenues(categories)
	for _, s := range skipped {
		slog.Warn("skipping entry", "reason", s)
	}

	repo := postgres.NewVenueRepo(db)
	for start := 0; start < len(venues); start += batchSize {
		end := min(start+batchSize, len(venues))
		if err := repo.UpsertBatch(ctx, venues[start:end]); err != nil {
			log.Fatalf("upsert venues %d-%d: %v", start, end, err)
		}
		slog.Info("upserted batch", "from", start, "to", end)
	}

	slog.Info("ingestion complete", "upserted", len(venues), "skipped", len(skipped))
}

func readSource(source string) ([]byte, error) {
	if !strings.HasPrefix(source, "http://") && !strings.HasPrefix(source, "https://") {
		return os.ReadFile(source)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(source)
	if err := fasthttp.DoTimeout(req, resp, 2*time.Minute); err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, fmt.Errorf("HTTP %d for %s", resp.StatusCode(), source)
	}
	return append([]byte(nil), resp.Body()...), nil
}
