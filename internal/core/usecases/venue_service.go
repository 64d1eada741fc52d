package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/samirrijal/nightmap/internal/core/domain"
	"github.com/samirrijal/nightmap/internal/core/hours"
	"github.com/samirrijal/nightmap/internal/core/ports"
)

// VenueService handles venue lookups and hours reporting.
type VenueService struct {
	venues ports.VenueRepository
	cache  ports.CacheService
	loc    *time.Location
	now    func() time.Time
}

// NewVenueService creates a new VenueService. Hours are evaluated in loc;
// nil means UTC.
func NewVenueService(venues ports.VenueRepository, cache ports.CacheService, loc *time.Location) *VenueService {
	if loc == nil {
		loc = time.UTC
	}
	return &VenueService{venues: venues, cache: cache, loc: loc, now: time.Now}
}

// WithClock replaces the wall clock, for tests.
func (s *VenueService) WithClock(now func() time.Time) *VenueService {
	s.now = now
	return s
}

// Now returns the current instant in the venue timezone.
func (s *VenueService) Now() time.Time {
	return s.now().In(s.loc)
}

// List returns one page of venues and the total match count.
func (s *VenueService) List(ctx context.Context, f domain.VenueFilter) ([]domain.Venue, int, error) {
	if f.Limit <= 0 {
		f.Limit = 20
	}
	if f.Limit > 100 {
		f.Limit = 100
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return s.venues.List(ctx, f)
}

// Search matches venue names and addresses.
func (s *VenueService) Search(ctx context.Context, query string, limit int) ([]domain.Venue, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("search query must not be empty")
	}
	if limit <= 0 || limit > 50 {
		limit = 20
	}

	cacheKey := fmt.Sprintf("venues:search:%s:%d", query, limit)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var venues []domain.Venue
			if err := json.Unmarshal(data, &venues); err == nil {
				return venues, nil
			}
		}
	}

	venues, _, err := s.venues.List(ctx, domain.VenueFilter{Query: query, Limit: limit})
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if data, err := json.Marshal(venues); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, 120)
		}
	}
	return venues, nil
}

// GetByID returns a single venue, or ports.ErrNotFound.
func (s *VenueService) GetByID(ctx context.Context, id string) (*domain.Venue, error) {
	cacheKey := "venues:id:" + id
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var v domain.Venue
			if err := json.Unmarshal(data, &v); err == nil {
				return &v, nil
			}
		}
	}

	v, err := s.venues.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if data, err := json.Marshal(v); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, 300)
		}
	}
	return v, nil
}

// GetByIDs returns the venues that exist among ids. Duplicates are ignored.
func (s *VenueService) GetByIDs(ctx context.Context, ids []string) ([]domain.Venue, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	seen := make(map[string]bool, len(ids))
	uniq := ids[:0:0]
	for _, id := range ids {
		if id != "" && !seen[id] {
			seen[id] = true
			uniq = append(uniq, id)
		}
	}
	return s.venues.GetByIDs(ctx, uniq)
}

// Invalidate drops the cached copy of a venue after it changes.
func (s *VenueService) Invalidate(ctx context.Context, id string) {
	if s.cache != nil {
		_ = s.cache.Delete(ctx, "venues:id:"+id)
	}
}

// Hours reports where a venue stands in its opening hours right now.
// Reports are time-dependent and never cached.
func (s *VenueService) Hours(ctx context.Context, id string) (domain.HoursLabel, domain.HoursReport, error) {
	v, err := s.GetByID(ctx, id)
	if err != nil {
		return domain.HoursLabel{}, domain.HoursReport{}, err
	}
	r := hours.Resolve(v.OperationHours, s.Now())
	return hours.Format(r), r, nil
}
