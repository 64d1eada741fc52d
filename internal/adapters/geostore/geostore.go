// Package geostore opens the geocode cache on the configured backend.
package geostore

import (
	"context"
	"log/slog"

	"github.com/samirrijal/nightmap/internal/adapters/filestore"
	"github.com/samirrijal/nightmap/internal/adapters/valkey"
	"github.com/samirrijal/nightmap/internal/core/geocache"
	"github.com/samirrijal/nightmap/internal/core/ports"
	"github.com/samirrijal/nightmap/internal/pkg/config"
)

// Store picks the persisted store for resolved addresses. The valkey
// backend falls back to memory when cache is nil.
func Store(cfg config.GeocacheConfig, cache *valkey.Cache) ports.BlobStore {
	switch cfg.Backend {
	case "file":
		return filestore.New(cfg.FilePath)
	case "valkey":
		if cache != nil {
			return cache.BlobStore(cfg.StorageKey)
		}
		slog.Warn("geocache: valkey backend unavailable, using memory")
	}
	return geocache.NewMemoryStore(nil)
}

// Open loads the geocode cache from the configured backend.
func Open(ctx context.Context, cfg config.GeocacheConfig, cache *valkey.Cache) *geocache.Cache {
	c := geocache.New(ctx, Store(cfg, cache), geocache.Options{
		MaxEntries: cfg.MaxEntries,
		Normalize:  cfg.Normalize,
	})
	slog.Info("geocode cache loaded", "backend", cfg.Backend, "entries", c.Len())
	return c
}
