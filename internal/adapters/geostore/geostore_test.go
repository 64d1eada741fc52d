package geostore_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/samirrijal/nightmap/internal/adapters/filestore"
	"github.com/samirrijal/nightmap/internal/adapters/geostore"
	"github.com/samirrijal/nightmap/internal/core/domain"
	"github.com/samirrijal/nightmap/internal/core/geocache"
	"github.com/samirrijal/nightmap/internal/pkg/config"
)

func TestStore_Backends(t *testing.T) {
	file := geostore.Store(config.GeocacheConfig{Backend: "file", FilePath: "x.json"}, nil)
	if _, ok := file.(*filestore.Store); !ok {
		t.Errorf("expected file store, got %T", file)
	}
	mem := geostore.Store(config.GeocacheConfig{Backend: "memory"}, nil)
	if _, ok := mem.(*geocache.MemoryStore); !ok {
		t.Errorf("expected memory store, got %T", mem)
	}
	fallback := geostore.Store(config.GeocacheConfig{Backend: "valkey", StorageKey: "geocodeCache"}, nil)
	if _, ok := fallback.(*geocache.MemoryStore); !ok {
		t.Errorf("expected memory fallback without valkey, got %T", fallback)
	}
}

func TestOpen_FileBackendSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	cfg := config.GeocacheConfig{Backend: "file", FilePath: filepath.Join(t.TempDir(), "geo.json"), Normalize: true}
	p := domain.GeoPoint{Lat: 37.5, Lng: 127.0}

	geostore.Open(ctx, cfg, nil).Set(ctx, "서울  중구", p)

	got, ok := geostore.Open(ctx, cfg, nil).Get("서울 중구")
	if !ok || got != p {
		t.Errorf("expected %v after reopen, got %v %v", p, got, ok)
	}
}
