package cluster

import (
	"math"
	"sort"
	"sync"

	"github.com/samirrijal/nightmap/internal/core/domain"
	"github.com/samirrijal/nightmap/internal/pkg/geospatial"
)

// DefaultGridSize is the cluster cell width in screen pixels.
const DefaultGridSize = 60

// EventKind names a marker layer mutation.
type EventKind string

const (
	EventAdd    EventKind = "add"
	EventRemove EventKind = "remove"
	EventFit    EventKind = "fit"
)

// Event describes one mutation, for clients mirroring the layer.
type Event struct {
	Kind     EventKind       `json:"kind"`
	Markers  []domain.Marker `json:"markers,omitempty"`
	VenueIDs []string        `json:"venue_ids,omitempty"`
	Bounds   *domain.Bounds  `json:"bounds,omitempty"`
}

// Grid implements ports.Clusterer with grid-based clustering in Web
// Mercator pixel space.
type Grid struct {
	gridSize float64

	mu       sync.RWMutex
	markers  map[string]domain.Marker
	viewport domain.Bounds
	onChange func(Event)
}

// NewGrid creates an empty layer. gridSizePx <= 0 uses DefaultGridSize.
func NewGrid(gridSizePx int) *Grid {
	if gridSizePx <= 0 {
		gridSizePx = DefaultGridSize
	}
	return &Grid{gridSize: float64(gridSizePx), markers: make(map[string]domain.Marker)}
}

// OnChange registers fn to receive every mutation. fn runs on the
// mutating goroutine and must not call back into the Grid.
func (g *Grid) OnChange(fn func(Event)) {
	g.mu.Lock()
	g.onChange = fn
	g.mu.Unlock()
}

func (g *Grid) AddMarkers(ms []domain.Marker) {
	g.mu.Lock()
	for _, m := range ms {
		g.markers[m.VenueID] = m
	}
	fn := g.onChange
	g.mu.Unlock()

	if fn != nil {
		fn(Event{Kind: EventAdd, Markers: ms})
	}
}

func (g *Grid) AddMarker(m domain.Marker) {
	g.AddMarkers([]domain.Marker{m})
}

func (g *Grid) RemoveMarkers(venueIDs []string) {
	g.mu.Lock()
	for _, id := range venueIDs {
		delete(g.markers, id)
	}
	fn := g.onChange
	g.mu.Unlock()

	if fn != nil {
		fn(Event{Kind: EventRemove, VenueIDs: venueIDs})
	}
}

func (g *Grid) FitBounds(b domain.Bounds) {
	g.mu.Lock()
	g.viewport = b
	fn := g.onChange
	g.mu.Unlock()

	if fn != nil {
		fn(Event{Kind: EventFit, Bounds: &b})
	}
}

// Clear removes every marker from the layer.
func (g *Grid) Clear() {
	g.mu.Lock()
	ids := make([]string, 0, len(g.markers))
	for id := range g.markers {
		ids = append(ids, id)
	}
	g.markers = make(map[string]domain.Marker)
	fn := g.onChange
	g.mu.Unlock()

	if fn != nil && len(ids) > 0 {
		sort.Strings(ids)
		fn(Event{Kind: EventRemove, VenueIDs: ids})
	}
}

// Viewport returns the last fitted bounds.
func (g *Grid) Viewport() domain.Bounds {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.viewport
}

// Len returns the number of markers on the layer.
func (g *Grid) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.markers)
}

type bucket struct {
	cx, cy  float64 // pixel center
	sumLat  float64
	sumLng  float64
	bounds  domain.Bounds
	members []string
}

// Clusters groups the layer's markers at zoom. Markers are visited in
// venue ID order so the result is deterministic.
func (g *Grid) Clusters(zoom int) []domain.Cluster {
	g.mu.RLock()
	ms := make([]domain.Marker, 0, len(g.markers))
	for _, m := range g.markers {
		ms = append(ms, m)
	}
	g.mu.RUnlock()
	sort.Slice(ms, func(i, j int) bool { return ms[i].VenueID < ms[j].VenueID })

	var buckets []*bucket
	for _, m := range ms {
		x, y := geospatial.Project(m.Position.Lat, m.Position.Lng, zoom)

		var home *bucket
		best := math.MaxFloat64
		for _, b := range buckets {
			dx, dy := math.Abs(x-b.cx), math.Abs(y-b.cy)
			if dx > g.gridSize || dy > g.gridSize {
				continue
			}
			if d := dx*dx + dy*dy; d < best {
				home, best = b, d
			}
		}
		if home == nil {
			buckets = append(buckets, &bucket{
				cx: x, cy: y,
				sumLat: m.Position.Lat, sumLng: m.Position.Lng,
				bounds:  domain.Bounds{MinLat: m.Position.Lat, MaxLat: m.Position.Lat, MinLng: m.Position.Lng, MaxLng: m.Position.Lng},
				members: []string{m.VenueID},
			})
			continue
		}
		home.sumLat += m.Position.Lat
		home.sumLng += m.Position.Lng
		home.bounds, _ = domain.BoundsOf([]domain.GeoPoint{
			{Lat: home.bounds.MinLat, Lng: home.bounds.MinLng},
			{Lat: home.bounds.MaxLat, Lng: home.bounds.MaxLng},
			m.Position,
		})
		home.members = append(home.members, m.VenueID)
	}

	out := make([]domain.Cluster, len(buckets))
	for i, b := range buckets {
		n := float64(len(b.members))
		out[i] = domain.Cluster{
			Center:  domain.GeoPoint{Lat: b.sumLat / n, Lng: b.sumLng / n},
			Count:   len(b.members),
			Bounds:  b.bounds,
			Markers: b.members,
		}
	}
	return out
}
