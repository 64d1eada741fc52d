package usecases_test

import (
	"context"
	"errors"
	"sync"

	"github.com/samirrijal/nightmap/internal/core/domain"
	"github.com/samirrijal/nightmap/internal/core/ports"
)

// --- Mock VenueRepository ---

type mockVenueRepo struct {
	getByIDFn     func(ctx context.Context, id string) (*domain.Venue, error)
	getByIDsFn    func(ctx context.Context, ids []string) ([]domain.Venue, error)
	listFn        func(ctx context.Context, f domain.VenueFilter) ([]domain.Venue, int, error)
	listAllFn     func(ctx context.Context) ([]domain.Venue, error)
	setLocationFn func(ctx context.Context, id string, p domain.GeoPoint) error
}

func (m *mockVenueRepo) Upsert(ctx context.Context, v *domain.Venue) error        { return nil }
func (m *mockVenueRepo) UpsertBatch(ctx context.Context, vs []domain.Venue) error { return nil }

func (m *mockVenueRepo) GetByID(ctx context.Context, id string) (*domain.Venue, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, ports.ErrNotFound
}

func (m *mockVenueRepo) GetByIDs(ctx context.Context, ids []string) ([]domain.Venue, error) {
	if m.getByIDsFn != nil {
		return m.getByIDsFn(ctx, ids)
	}
	return nil, nil
}

func (m *mockVenueRepo) List(ctx context.Context, f domain.VenueFilter) ([]domain.Venue, int, error) {
	if m.listFn != nil {
		return m.listFn(ctx, f)
	}
	return nil, 0, nil
}

func (m *mockVenueRepo) ListAll(ctx context.Context) ([]domain.Venue, error) {
	if m.listAllFn != nil {
		return m.listAllFn(ctx)
	}
	return nil, nil
}

func (m *mockVenueRepo) SetLocation(ctx context.Context, id string, p domain.GeoPoint) error {
	if m.setLocationFn != nil {
		return m.setLocationFn(ctx, id, p)
	}
	return nil
}

// --- Mock CacheService ---

type mockCache struct {
	mu   sync.Mutex
	data map[string][]byte
	sets int
}

func newMockCache() *mockCache { return &mockCache{data: make(map[string][]byte)} }

func (c *mockCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.data[key]; ok {
		return v, nil
	}
	return nil, errors.New("miss")
}

func (c *mockCache) Set(ctx context.Context, key string, value []byte, ttl int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	c.sets++
	return nil
}

func (c *mockCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

// --- Mock Geocoder ---

type mockGeocoder struct {
	mu     sync.Mutex
	points map[string]domain.GeoPoint
	calls  []string
	// block, when set, holds every request until ctx is done.
	block bool
}

func (g *mockGeocoder) Geocode(ctx context.Context, address string) (domain.GeoPoint, error) {
	g.mu.Lock()
	g.calls = append(g.calls, address)
	g.mu.Unlock()
	if g.block {
		<-ctx.Done()
		return domain.GeoPoint{}, ctx.Err()
	}
	if p, ok := g.points[address]; ok {
		return p, nil
	}
	return domain.GeoPoint{}, ports.ErrGeocodeNoResult
}

func (g *mockGeocoder) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

// --- Mock EventPublisher ---

type mockPublisher struct {
	mu       sync.Mutex
	changes  []domain.StatusChange
	geocoded []string
	err      error
}

func (p *mockPublisher) PublishStatusChange(ctx context.Context, c *domain.StatusChange) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.changes = append(p.changes, *c)
	return p.err
}

func (p *mockPublisher) PublishGeocoded(ctx context.Context, address string, pt domain.GeoPoint) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.geocoded = append(p.geocoded, address)
	return p.err
}
