// Package geocache memoizes address geocoding results and persists them
// through a ports.BlobStore so they survive restarts.
package geocache

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/samirrijal/nightmap/internal/core/domain"
	"github.com/samirrijal/nightmap/internal/core/ports"
	"github.com/samirrijal/nightmap/internal/pkg/metrics"
)

// StorageKey is the fixed key the serialized cache lives under.
const StorageKey = "geocodeCache"

// Options tunes a Cache.
type Options struct {
	// MaxEntries bounds the cache with LRU eviction. Zero means unbounded.
	MaxEntries int
	// Normalize folds whitespace and case in addresses before keying.
	Normalize bool
}

// Cache maps addresses to coordinates. It is safe for concurrent use.
type Cache struct {
	store ports.BlobStore
	opts  Options

	mu      sync.RWMutex
	entries map[string]domain.GeoPoint
	recent  *lru.Cache[string, struct{}] // nil when unbounded
	version uint64

	saveMu sync.Mutex
	saved  uint64
}

// New builds a cache and loads whatever store holds. Load failures are
// logged and leave the cache empty.
func New(ctx context.Context, store ports.BlobStore, opts Options) *Cache {
	c := &Cache{
		store:   store,
		opts:    opts,
		entries: make(map[string]domain.GeoPoint),
	}
	if opts.MaxEntries > 0 {
		recent, err := lru.NewWithEvict[string, struct{}](opts.MaxEntries, func(key string, _ struct{}) {
			delete(c.entries, key)
		})
		if err != nil {
			slog.Warn("geocache: lru disabled", "error", err)
		} else {
			c.recent = recent
		}
	}
	c.load(ctx)
	return c
}

func (c *Cache) load(ctx context.Context) {
	if c.store == nil {
		return
	}
	data, err := c.store.Load(ctx)
	if err != nil {
		slog.Warn("geocache: load failed, starting empty", "error", err)
		return
	}
	if len(data) == 0 {
		return
	}
	var persisted map[string]domain.GeoPoint
	if err := json.Unmarshal(data, &persisted); err != nil {
		slog.Warn("geocache: malformed persisted cache, starting empty", "error", err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for addr, p := range persisted {
		key := c.Key(addr)
		c.entries[key] = p
		if c.recent != nil {
			c.recent.Add(key, struct{}{})
		}
	}
	slog.Debug("geocache: loaded", "entries", len(c.entries))
}

// Get returns the cached coordinate for address.
func (c *Cache) Get(address string) (domain.GeoPoint, bool) {
	key := c.Key(address)
	c.mu.RLock()
	p, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		metrics.CacheMisses.WithLabelValues("geocode").Inc()
		return domain.GeoPoint{}, false
	}
	if c.recent != nil {
		c.recent.Get(key)
	}
	metrics.CacheHits.WithLabelValues("geocode").Inc()
	return p, true
}

// Set stores a coordinate and writes the whole cache through to the store.
// Store errors are logged, never returned.
func (c *Cache) Set(ctx context.Context, address string, p domain.GeoPoint) {
	key := c.Key(address)

	c.mu.Lock()
	c.entries[key] = p
	if c.recent != nil {
		c.recent.Add(key, struct{}{})
	}
	c.version++
	version := c.version
	data, err := json.Marshal(c.entries)
	c.mu.Unlock()

	if err != nil {
		slog.Warn("geocache: serialize failed", "error", err)
		return
	}
	c.persist(ctx, version, data)
}

// persist saves data unless a newer snapshot already reached the store.
func (c *Cache) persist(ctx context.Context, version uint64, data []byte) {
	if c.store == nil {
		return
	}
	c.saveMu.Lock()
	defer c.saveMu.Unlock()
	if version <= c.saved {
		return
	}
	if err := c.store.Save(ctx, data); err != nil {
		slog.Warn("geocache: save failed", "error", err, "bytes", len(data))
		return
	}
	c.saved = version
}

// Len returns the number of cached addresses.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Snapshot returns a copy of every entry.
func (c *Cache) Snapshot() map[string]domain.GeoPoint {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]domain.GeoPoint, len(c.entries))
	for k, v := range c.entries {
		out[k] = v
	}
	return out
}

// Key returns the entry key address is stored under.
func (c *Cache) Key(address string) string {
	if !c.opts.Normalize {
		return address
	}
	return NormalizeAddress(address)
}

// NormalizeAddress trims, collapses inner whitespace and lowercases.
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.Join(strings.Fields(address), " "))
}
