package ports

import (
	"context"
	"errors"

	"github.com/samirrijal/nightmap/internal/core/domain"
)

// ErrGeocodeNoResult is returned when the provider knows no coordinate for an address.
var ErrGeocodeNoResult = errors.New("geocode: no result")

// EventPublisher publishes domain events to a message broker.
type EventPublisher interface {
	PublishStatusChange(ctx context.Context, change *domain.StatusChange) error
	PublishGeocoded(ctx context.Context, address string, p domain.GeoPoint) error
}

// EventSubscriber subscribes to domain events from a message broker.
type EventSubscriber interface {
	SubscribeStatusChanges(ctx context.Context, handler func(ctx context.Context, change *domain.StatusChange) error) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}

// BlobStore persists a single serialized document, the way the browser
// client keeps one localStorage entry.
type BlobStore interface {
	// Load returns nil, nil when nothing was stored yet.
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
}

// Geocoder converts a free-text address into coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (domain.GeoPoint, error)
}

// Clusterer is the marker layer of a map: it groups dense markers and
// follows the viewport.
type Clusterer interface {
	AddMarkers(markers []domain.Marker)
	AddMarker(marker domain.Marker)
	RemoveMarkers(venueIDs []string)
	FitBounds(b domain.Bounds)
}

// ClusterLayer is a Clusterer that can also report its grouping, used by
// server-side renderers that have no map SDK to draw the clusters.
type ClusterLayer interface {
	Clusterer
	Clusters(zoom int) []domain.Cluster
	Viewport() domain.Bounds
}
