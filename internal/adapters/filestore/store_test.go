package filestore_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/samirrijal/nightmap/internal/adapters/filestore"
	"github.com/samirrijal/nightmap/internal/core/domain"
	"github.com/samirrijal/nightmap/internal/core/geocache"
)

func TestStore_MissingFileIsEmpty(t *testing.T) {
	s := filestore.New(filepath.Join(t.TempDir(), "nope.json"))
	data, err := s.Load(context.Background())
	if err != nil || data != nil {
		t.Fatalf("expected nil, nil for a missing file, got %q, %v", data, err)
	}
}

func TestStore_SaveReplacesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "geocode.json")
	s := filestore.New(path)
	ctx := context.Background()

	for _, doc := range []string{`{"a":1}`, `{"b":2}`} {
		if err := s.Save(ctx, []byte(doc)); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if string(got) != `{"b":2}` {
		t.Errorf("expected last document, got %s", got)
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("expected no leftover temp files, got %d entries", len(entries))
	}
}

func TestStore_BacksGeocodeCache(t *testing.T) {
	path := filepath.Join(t.TempDir(), "geocode.json")
	ctx := context.Background()

	c := geocache.New(ctx, filestore.New(path), geocache.Options{})
	c.Set(ctx, "서울 마포구 와우산로 94", domain.GeoPoint{Lat: 37.5502, Lng: 126.9236})

	reloaded := geocache.New(ctx, filestore.New(path), geocache.Options{})
	if _, ok := reloaded.Get("서울 마포구 와우산로 94"); !ok {
		t.Error("expected entry to survive a restart")
	}
}
