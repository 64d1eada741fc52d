package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/samirrijal/nightmap/internal/core/domain"
	"github.com/samirrijal/nightmap/internal/core/hours"
	"github.com/samirrijal/nightmap/internal/core/ports"
	"github.com/samirrijal/nightmap/internal/pkg/metrics"
)

// StatusService tracks the hours status of every venue and publishes
// transitions.
type StatusService struct {
	venues    ports.VenueRepository
	publisher ports.EventPublisher
	loc       *time.Location

	mu     sync.Mutex
	primed bool
	last   map[string]domain.HoursStatus
}

func NewStatusService(venues ports.VenueRepository, publisher ports.EventPublisher, loc *time.Location) *StatusService {
	if loc == nil {
		loc = time.UTC
	}
	return &StatusService{
		venues:    venues,
		publisher: publisher,
		loc:       loc,
		last:      make(map[string]domain.HoursStatus),
	}
}

// Tick evaluates every venue at now and publishes the ones whose status
// differs from the previous tick. The first tick only records a baseline.
// Publish failures are logged; the change still counts as seen.
func (s *StatusService) Tick(ctx context.Context, now time.Time) ([]domain.StatusChange, error) {
	venues, err := s.venues.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list venues: %w", err)
	}
	now = now.In(s.loc)

	s.mu.Lock()
	baseline := !s.primed
	current := make(map[string]domain.HoursStatus, len(venues))
	var changes []domain.StatusChange
	for _, v := range venues {
		r := hours.Resolve(v.OperationHours, now)
		current[v.ID] = r.Status

		prev, seen := s.last[v.ID]
		if baseline || (seen && prev == r.Status) {
			continue
		}
		changes = append(changes, domain.StatusChange{
			VenueID:  v.ID,
			Previous: prev,
			Current:  r.Status,
			Label:    hours.Format(r),
			Time:     now,
		})
	}
	s.last = current
	s.primed = true
	s.mu.Unlock()

	sort.Slice(changes, func(i, j int) bool { return changes[i].VenueID < changes[j].VenueID })
	for i := range changes {
		c := &changes[i]
		metrics.StatusChanges.WithLabelValues(string(c.Current)).Inc()
		if s.publisher == nil {
			continue
		}
		if err := s.publisher.PublishStatusChange(ctx, c); err != nil {
			slog.Warn("publish status change", "venue_id", c.VenueID, "status", c.Current, "error", err)
		}
	}
	return changes, nil
}

// Run ticks every interval until ctx is done. Errors are logged and the
// next tick retries.
func (s *StatusService) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if changes, err := s.Tick(ctx, time.Now()); err != nil {
			slog.Error("status tick failed", "error", err)
		} else if len(changes) > 0 {
			slog.Info("venue status changes published", "count", len(changes))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
