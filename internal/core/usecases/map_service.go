package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/samirrijal/nightmap/internal/core/domain"
	"github.com/samirrijal/nightmap/internal/core/geocache"
	"github.com/samirrijal/nightmap/internal/core/markers"
	"github.com/samirrijal/nightmap/internal/core/ports"
	"github.com/samirrijal/nightmap/internal/pkg/geospatial"
)

// ErrTooManyVenues rejects marker requests over MapOptions.MaxVenues.
var ErrTooManyVenues = errors.New("too many venues requested")

// MapOptions tunes MapService.
type MapOptions struct {
	MaxConcurrent int64
	// Timeout bounds how long Markers waits for cache misses.
	Timeout time.Duration
	// MaxVenues caps how many venues one request may place.
	MaxVenues int
}

// MarkersRequest selects the venues to place on a map.
type MarkersRequest struct {
	VenueIDs []string       `json:"venue_ids,omitempty"`
	Category string         `json:"category,omitempty"`
	Query    string         `json:"query,omitempty"`
	Zoom     int            `json:"zoom,omitempty"`
	Bounds   *domain.Bounds `json:"bounds,omitempty"`
	// Center and RadiusM describe the search area when Bounds is unset.
	Center  *domain.GeoPoint `json:"center,omitempty"`
	RadiusM float64          `json:"radius_m,omitempty"`
}

// Area returns the "search this area" box, or nil when none was given.
func (r MarkersRequest) Area() *domain.Bounds {
	if r.Bounds != nil && !r.Bounds.IsZero() {
		return r.Bounds
	}
	if r.Center == nil || r.RadiusM <= 0 {
		return nil
	}
	minLat, minLng, maxLat, maxLng := geospatial.BoundingBox(r.Center.Lat, r.Center.Lng, r.RadiusM)
	return &domain.Bounds{MinLat: minLat, MinLng: minLng, MaxLat: maxLat, MaxLng: maxLng}
}

// MarkersResult is a settled marker layer.
type MarkersResult struct {
	Generation uint64           `json:"generation"`
	Markers    []domain.Marker  `json:"markers"`
	Clusters   []domain.Cluster `json:"clusters"`
	Visible    []domain.Marker  `json:"visible,omitempty"`
	Viewport   domain.Bounds    `json:"viewport"`
	Zoom       int              `json:"zoom"`
	// Pending is true when some geocodes were still running at the deadline.
	Pending bool `json:"pending"`
}

// MapService places venues on a map for clients without a map SDK, and
// exposes the shared geocode cache.
type MapService struct {
	venues    ports.VenueRepository
	cache     *geocache.Cache
	geocoder  ports.Geocoder
	publisher ports.EventPublisher
	newLayer  func() ports.ClusterLayer
	opts      MapOptions
}

// NewMapService wires a map service. publisher may be nil.
func NewMapService(
	venues ports.VenueRepository,
	cache *geocache.Cache,
	geocoder ports.Geocoder,
	publisher ports.EventPublisher,
	newLayer func() ports.ClusterLayer,
	opts MapOptions,
) *MapService {
	if opts.Timeout <= 0 {
		opts.Timeout = 3 * time.Second
	}
	if opts.MaxVenues <= 0 {
		opts.MaxVenues = 500
	}
	return &MapService{
		venues:    venues,
		cache:     cache,
		geocoder:  geocoder,
		publisher: publisher,
		newLayer:  newLayer,
		opts:      opts,
	}
}

// NewRefresher builds a refresher over layer sharing this service's cache
// and geocoder; long-lived map sessions own one each.
func (s *MapService) NewRefresher(layer ports.Clusterer, onSelect func(domain.Marker)) *markers.Refresher {
	return markers.NewRefresher(s.cache, s.geocoder, layer, markers.Options{
		MaxConcurrent: s.opts.MaxConcurrent,
		OnSelect:      onSelect,
		OnGeocoded:    s.recordLocation,
	})
}

// LoadVenues resolves a request to the venue list it names.
func (s *MapService) LoadVenues(ctx context.Context, req MarkersRequest) ([]domain.Venue, error) {
	if len(req.VenueIDs) > 0 {
		if len(req.VenueIDs) > s.opts.MaxVenues {
			return nil, fmt.Errorf("%w: at most %d", ErrTooManyVenues, s.opts.MaxVenues)
		}
		return s.venues.GetByIDs(ctx, req.VenueIDs)
	}
	venues, _, err := s.venues.List(ctx, domain.VenueFilter{
		Query:    req.Query,
		Category: req.Category,
		Limit:    s.opts.MaxVenues,
	})
	return venues, err
}

// Markers places the requested venues and waits, up to the configured
// timeout, for cache misses to geocode.
func (s *MapService) Markers(ctx context.Context, req MarkersRequest) (*MarkersResult, error) {
	venues, err := s.LoadVenues(ctx, req)
	if err != nil {
		return nil, err
	}

	// Geocodes share the wait deadline, so none outlives the response.
	waitCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	layer := s.newLayer()
	r := s.NewRefresher(layer, nil)
	gen := r.Refresh(waitCtx, venues)

	done := make(chan struct{})
	go func() {
		r.Wait()
		close(done)
	}()

	pending := false
	select {
	case <-done:
		pending = waitCtx.Err() != nil
	case <-waitCtx.Done():
		pending = true
	}
	r.Close()
	<-done

	res := &MarkersResult{
		Generation: gen,
		Markers:    r.Markers(),
		Viewport:   layer.Viewport(),
		Pending:    pending,
	}
	if pts := pointsOf(res.Markers); len(pts) > 0 {
		// Late arrivals widen the layer beyond the fitted hits.
		res.Viewport, _ = domain.BoundsOf(pts)
	}

	res.Zoom = req.Zoom
	if res.Zoom <= 0 {
		vp := res.Viewport
		res.Zoom = geospatial.ZoomForBounds(vp.MinLat, vp.MinLng, vp.MaxLat, vp.MaxLng, 1024, 768, 18)
	}
	res.Clusters = layer.Clusters(res.Zoom)

	if area := req.Area(); area != nil {
		origin := area.Center()
		if req.Bounds == nil && req.Center != nil {
			origin = *req.Center
		}
		res.Visible = NearestFirst(r.Visible(*area), origin)
	}
	return res, nil
}

// CachedAddresses reports how many addresses the geocode cache holds.
func (s *MapService) CachedAddresses() int {
	return s.cache.Len()
}

// NearestFirst orders markers by great-circle distance from origin.
func NearestFirst(ms []domain.Marker, origin domain.GeoPoint) []domain.Marker {
	sort.SliceStable(ms, func(i, j int) bool {
		di := geospatial.Haversine(origin.Lat, origin.Lng, ms[i].Position.Lat, ms[i].Position.Lng)
		dj := geospatial.Haversine(origin.Lat, origin.Lng, ms[j].Position.Lat, ms[j].Position.Lng)
		return di < dj
	})
	return ms
}

// Geocode resolves one address, consulting the shared cache first.
func (s *MapService) Geocode(ctx context.Context, address string) (domain.GeoPoint, bool, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return domain.GeoPoint{}, false, fmt.Errorf("address must not be empty")
	}
	if p, ok := s.cache.Get(address); ok {
		return p, true, nil
	}
	p, err := s.geocoder.Geocode(ctx, address)
	if err != nil {
		return domain.GeoPoint{}, false, err
	}
	s.cache.Set(ctx, address, p)
	if s.publisher != nil {
		if err := s.publisher.PublishGeocoded(ctx, address, p); err != nil {
			slog.Warn("publish geocoded", "address", address, "error", err)
		}
	}
	return p, false, nil
}

// recordLocation stores a fresh geocode on the venue row and announces it.
// Failures are logged; the marker layer does not depend on them.
func (s *MapService) recordLocation(ctx context.Context, v domain.Venue, p domain.GeoPoint) {
	if s.venues != nil {
		if err := s.venues.SetLocation(ctx, v.ID, p); err != nil {
			slog.Warn("store venue location", "venue_id", v.ID, "error", err)
		}
	}
	if s.publisher != nil {
		if err := s.publisher.PublishGeocoded(ctx, v.Address, p); err != nil {
			slog.Warn("publish geocoded", "venue_id", v.ID, "error", err)
		}
	}
}

func pointsOf(ms []domain.Marker) []domain.GeoPoint {
	pts := make([]domain.GeoPoint, len(ms))
	for i, m := range ms {
		pts[i] = m.Position
	}
	return pts
}
