package ports

import (
	"context"
	"errors"

	"github.com/samirrijal/nightmap/internal/core/domain"
)

// ErrNotFound is returned by repositories when a row does not exist.
var ErrNotFound = errors.New("not found")

// VenueRepository persists venues.
type VenueRepository interface {
	Upsert(ctx context.Context, venue *domain.Venue) error
	UpsertBatch(ctx context.Context, venues []domain.Venue) error
	GetByID(ctx context.Context, id string) (*domain.Venue, error)
	GetByIDs(ctx context.Context, ids []string) ([]domain.Venue, error)
	List(ctx context.Context, filter domain.VenueFilter) ([]domain.Venue, int, error)
	// ListAll streams every venue; used by background jobs.
	ListAll(ctx context.Context) ([]domain.Venue, error)
	SetLocation(ctx context.Context, id string, p domain.GeoPoint) error
}
