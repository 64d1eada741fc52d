// Package markers keeps a map's marker layer in step with the venue list
// being displayed.
package markers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/samirrijal/nightmap/internal/core/domain"
	"github.com/samirrijal/nightmap/internal/core/geocache"
	"github.com/samirrijal/nightmap/internal/core/ports"
	"github.com/samirrijal/nightmap/internal/pkg/metrics"
)

// Options tunes a Refresher.
type Options struct {
	// MaxConcurrent caps in-flight geocode requests. Zero means no cap.
	MaxConcurrent int64
	// OnSelect runs after a marker is selected.
	OnSelect func(m domain.Marker)
	// OnGeocoded runs after a cache miss resolves, whether or not the
	// result is still current.
	OnGeocoded func(ctx context.Context, v domain.Venue, p domain.GeoPoint)
}

// Refresher rebuilds the marker layer each time the venue list changes.
// Cache hits are drawn synchronously; misses are geocoded in the
// background and appended one by one while their generation is current.
type Refresher struct {
	cache     *geocache.Cache
	geocoder  ports.Geocoder
	clusterer ports.Clusterer
	opts      Options
	sem       *semaphore.Weighted
	flight    singleflight.Group

	mu         sync.Mutex
	generation uint64
	cancel     context.CancelFunc
	tracked    map[string]domain.Marker
	selected   string

	wg sync.WaitGroup
}

// NewRefresher wires a refresher to its cache, geocoder and marker layer.
func NewRefresher(cache *geocache.Cache, geocoder ports.Geocoder, clusterer ports.Clusterer, opts Options) *Refresher {
	r := &Refresher{
		cache:     cache,
		geocoder:  geocoder,
		clusterer: clusterer,
		opts:      opts,
		tracked:   make(map[string]domain.Marker),
	}
	if opts.MaxConcurrent > 0 {
		r.sem = semaphore.NewWeighted(opts.MaxConcurrent)
	}
	return r
}

// Refresh replaces the displayed venues and returns the new generation.
// Every cache hit is on the clusterer, and the viewport fitted to them,
// before Refresh returns.
func (r *Refresher) Refresh(ctx context.Context, venues []domain.Venue) uint64 {
	r.mu.Lock()

	if r.cancel != nil {
		r.cancel()
	}
	r.generation++
	gen := r.generation
	genCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	if len(r.tracked) > 0 {
		stale := make([]string, 0, len(r.tracked))
		for id := range r.tracked {
			stale = append(stale, id)
		}
		sort.Strings(stale)
		r.clusterer.RemoveMarkers(stale)
	}
	r.tracked = make(map[string]domain.Marker, len(venues))
	r.selected = ""

	var hits []domain.Marker
	var misses []domain.Venue
	queued := make(map[string]bool, len(venues))
	for _, v := range venues {
		if v.Address == "" || queued[v.ID] {
			continue
		}
		queued[v.ID] = true

		if v.Location != nil {
			hits = append(hits, markerFor(v, *v.Location))
			continue
		}
		if p, ok := r.cache.Get(v.Address); ok {
			hits = append(hits, markerFor(v, p))
			continue
		}
		misses = append(misses, v)
	}

	if len(hits) > 0 {
		points := make([]domain.GeoPoint, len(hits))
		for i, m := range hits {
			r.tracked[m.VenueID] = m
			points[i] = m.Position
		}
		r.clusterer.AddMarkers(hits)
		if b, ok := domain.BoundsOf(points); ok {
			r.clusterer.FitBounds(b)
		}
	}
	r.wg.Add(len(misses))
	r.mu.Unlock()

	slog.Debug("markers: refresh", "generation", gen, "hits", len(hits), "misses", len(misses))

	for _, v := range misses {
		go r.resolve(genCtx, gen, v)
	}
	return gen
}

func (r *Refresher) resolve(ctx context.Context, gen uint64, v domain.Venue) {
	defer r.wg.Done()

	if r.sem != nil {
		if err := r.sem.Acquire(ctx, 1); err != nil {
			return
		}
		defer r.sem.Release(1)
	}

	key := fmt.Sprintf("%d|%s", gen, r.cache.Key(v.Address))
	res, err, _ := r.flight.Do(key, func() (any, error) {
		if p, ok := r.cache.Get(v.Address); ok {
			return p, nil
		}
		p, err := r.geocoder.Geocode(ctx, v.Address)
		if err != nil {
			return nil, err
		}
		r.cache.Set(context.WithoutCancel(ctx), v.Address, p)
		return p, nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			slog.Debug("markers: geocode abandoned", "venue_id", v.ID, "generation", gen)
			return
		}
		slog.Warn("markers: geocode failed", "venue_id", v.ID, "address", v.Address, "error", err)
		return
	}
	p := res.(domain.GeoPoint)

	if r.opts.OnGeocoded != nil {
		r.opts.OnGeocoded(context.WithoutCancel(ctx), v, p)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if gen != r.generation {
		metrics.StaleGeocodeResults.Inc()
		return
	}
	if _, ok := r.tracked[v.ID]; ok {
		return
	}
	m := markerFor(v, p)
	r.tracked[v.ID] = m
	r.clusterer.AddMarker(m)
}

// Wait blocks until every outstanding geocode has settled.
func (r *Refresher) Wait() {
	r.wg.Wait()
}

// Close abandons in-flight geocodes and waits for them to return.
func (r *Refresher) Close() {
	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
	}
	r.mu.Unlock()
	r.wg.Wait()
}

// Generation returns the current refresh generation.
func (r *Refresher) Generation() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.generation
}

// Has reports whether venueID currently has a marker.
func (r *Refresher) Has(venueID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.tracked[venueID]
	return ok
}

// Markers returns every tracked marker ordered by venue ID.
func (r *Refresher) Markers() []domain.Marker {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.collect(func(domain.Marker) bool { return true })
}

// Visible returns the tracked markers inside b, ordered by venue ID.
func (r *Refresher) Visible(b domain.Bounds) []domain.Marker {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.collect(func(m domain.Marker) bool { return b.Contains(m.Position) })
}

func (r *Refresher) collect(keep func(domain.Marker) bool) []domain.Marker {
	out := make([]domain.Marker, 0, len(r.tracked))
	for _, m := range r.tracked {
		if keep(m) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VenueID < out[j].VenueID })
	return out
}

// Select marks a tracked venue as selected, as a marker click does.
func (r *Refresher) Select(venueID string) (domain.Marker, bool) {
	r.mu.Lock()
	m, ok := r.tracked[venueID]
	if ok {
		r.selected = venueID
	}
	r.mu.Unlock()

	if ok && r.opts.OnSelect != nil {
		r.opts.OnSelect(m)
	}
	return m, ok
}

// Selected returns the selected venue ID, or "" when none is.
func (r *Refresher) Selected() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.selected
}

func markerFor(v domain.Venue, p domain.GeoPoint) domain.Marker {
	return domain.Marker{VenueID: v.ID, Name: v.Name, Category: v.Category, Position: p}
}
