package workflows

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/samirrijal/nightmap/internal/core/domain"
	"github.com/samirrijal/nightmap/internal/core/geocache"
	"github.com/samirrijal/nightmap/internal/core/ports"
)

// PendingVenue is a venue with an address but no stored coordinate.
type PendingVenue struct {
	ID      string
	Address string
}

// GeocodeOutcome is the result of resolving one pending venue.
type GeocodeOutcome struct {
	VenueID  string
	Found    bool
	Cached   bool
	Location domain.GeoPoint
}

// WarmupActivities holds the activity implementations for the geocode
// warm-up workflow.
type WarmupActivities struct {
	Venues    ports.VenueRepository
	Cache     *geocache.Cache
	Geocoder  ports.Geocoder
	Publisher ports.EventPublisher // optional
}

// ListPendingVenues returns up to limit venues that still need a
// coordinate, in id order. limit <= 0 returns all of them.
func (a *WarmupActivities) ListPendingVenues(ctx context.Context, limit int) ([]PendingVenue, error) {
	venues, err := a.Venues.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list venues: %w", err)
	}
	var pending []PendingVenue
	for _, v := range venues {
		if v.Location != nil || v.Address == "" {
			continue
		}
		pending = append(pending, PendingVenue{ID: v.ID, Address: v.Address})
		if limit > 0 && len(pending) == limit {
			break
		}
	}
	return pending, nil
}

// GeocodeVenue resolves one address, cache first. An address the provider
// does not know is reported as not found rather than failed, so the
// workflow does not retry it.
func (a *WarmupActivities) GeocodeVenue(ctx context.Context, v PendingVenue) (GeocodeOutcome, error) {
	out := GeocodeOutcome{VenueID: v.ID}
	if p, ok := a.Cache.Get(v.Address); ok {
		out.Found, out.Cached, out.Location = true, true, p
		return out, nil
	}
	p, err := a.Geocoder.Geocode(ctx, v.Address)
	if errors.Is(err, ports.ErrGeocodeNoResult) {
		slog.Info("warmup: no coordinate for address", "venue_id", v.ID, "address", v.Address)
		return out, nil
	}
	if err != nil {
		return out, fmt.Errorf("geocode %s: %w", v.ID, err)
	}
	a.Cache.Set(ctx, v.Address, p)
	out.Found, out.Location = true, p
	return out, nil
}

// StoreLocation writes a resolved coordinate onto the venue row and
// announces it.
func (a *WarmupActivities) StoreLocation(ctx context.Context, venueID, address string, p domain.GeoPoint) error {
	if err := a.Venues.SetLocation(ctx, venueID, p); err != nil {
		return fmt.Errorf("set location %s: %w", venueID, err)
	}
	if a.Publisher != nil {
		if err := a.Publisher.PublishGeocoded(ctx, address, p); err != nil {
			slog.Warn("warmup: publish geocoded", "venue_id", venueID, "error", err)
		}
	}
	return nil
}
