package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/samirrijal/nightmap/internal/core/domain"
	"github.com/samirrijal/nightmap/internal/core/hours"
)

// Manifest is the venue export the ingestor loads.
type Manifest struct {
	Source string       `json:"source"`
	Venues []VenueEntry `json:"venues"`
}

// VenueEntry is one venue as exported by the listing service.
type VenueEntry struct {
	ID             string             `json:"id"`
	Name           string             `json:"name"`
	Category       string             `json:"category"`
	Address        string             `json:"address"`
	Lat            *float64           `json:"lat,omitempty"`
	Lng            *float64           `json:"lng,omitempty"`
	OperationHours domain.WeeklyHours `json:"operation_hours"`
	ImageURL       string             `json:"image_url"`
	Tags           []string           `json:"tags"`
	Metadata       map[string]any     `json:"metadata"`
}

func parseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// toVenues converts entries, keeping only the listed categories when any
// are given. Entries without an id or name are skipped. Unparseable hours
// are dropped from the entry so the venue shows as a holiday that day.
func (m *Manifest) toVenues(categories map[string]bool) (venues []domain.Venue, skipped []string) {
	seen := make(map[string]bool, len(m.Venues))
	for i, e := range m.Venues {
		id := strings.TrimSpace(e.ID)
		switch {
		case id == "" || strings.TrimSpace(e.Name) == "":
			skipped = append(skipped, fmt.Sprintf("entry %d: missing id or name", i))
			continue
		case seen[id]:
			skipped = append(skipped, fmt.Sprintf("entry %d: duplicate id %s", i, id))
			continue
		case len(categories) > 0 && !categories[e.Category]:
			continue
		}
		seen[id] = true

		v := domain.Venue{
			ID:             id,
			Name:           strings.TrimSpace(e.Name),
			Category:       e.Category,
			Address:        strings.TrimSpace(e.Address),
			OperationHours: domain.WeeklyHours{},
			ImageURL:       e.ImageURL,
			Tags:           e.Tags,
			Metadata:       e.Metadata,
		}
		if e.Lat != nil && e.Lng != nil {
			v.Location = &domain.GeoPoint{Lat: *e.Lat, Lng: *e.Lng}
		}
		for day, raw := range e.OperationHours {
			if strings.TrimSpace(raw) == hours.HolidaySentinel {
				v.OperationHours[day] = hours.HolidaySentinel
				continue
			}
			if _, _, _, ok := hours.ParseRange(raw); !ok {
				skipped = append(skipped, fmt.Sprintf("venue %s: bad hours %q for %s", id, raw, day))
				continue
			}
			v.OperationHours[day] = raw
		}
		venues = append(venues, v)
	}
	return venues, skipped
}
