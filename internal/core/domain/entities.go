package domain

import (
	"time"
)

// Venue is a club, bar or lounge listed on the map.
type Venue struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Category       string         `json:"category"`
	Address        string         `json:"address,omitempty"`
	Location       *GeoPoint      `json:"location,omitempty"` // nil until geocoded
	OperationHours WeeklyHours    `json:"operation_hours,omitempty"`
	ImageURL       string         `json:"image_url,omitempty"`
	Tags           []string       `json:"tags,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// VenueFilter narrows venue listings.
type VenueFilter struct {
	Query    string
	Category string
	Offset   int
	Limit    int
}

// Marker pairs a venue with its position on the map.
type Marker struct {
	VenueID  string   `json:"venue_id"`
	Name     string   `json:"name"`
	Category string   `json:"category,omitempty"`
	Position GeoPoint `json:"position"`
}

// Cluster groups nearby markers at a zoom level.
type Cluster struct {
	Center  GeoPoint `json:"center"`
	Count   int      `json:"count"`
	Bounds  Bounds   `json:"bounds"`
	Markers []string `json:"venue_ids"`
}

// StatusChange records a venue moving between hours statuses.
type StatusChange struct {
	VenueID  string      `json:"venue_id"`
	Previous HoursStatus `json:"previous,omitempty"`
	Current  HoursStatus `json:"current"`
	Label    HoursLabel  `json:"label"`
	Time     time.Time   `json:"time"`
}
