package domain

import "time"

// WeeklyHours maps a Korean day token ("월요일", ...) to "HH:MM~HH:MM",
// "HH:MM~late" or the holiday sentinel "휴무".
type WeeklyHours map[string]string

// HoursStatus is the operating state of a venue at a given instant.
type HoursStatus string

const (
	StatusOpen        HoursStatus = "OPEN"
	StatusAlmostClose HoursStatus = "ALMOST_CLOSE"
	StatusCloseRecent HoursStatus = "CLOSE_RECENT"
	StatusBeforeOpen  HoursStatus = "BEFORE_OPEN"
	StatusHoliday     HoursStatus = "HOLIDAY"
	// StatusClosed covers the rest of the day once the venue has been closed
	// for more than an hour.
	StatusClosed HoursStatus = "CLOSED"
)

// HoursReport is the resolver output for one venue.
type HoursReport struct {
	Status     HoursStatus `json:"status"`
	TodayOpen  string      `json:"today_open,omitempty"`
	TodayClose string      `json:"today_close,omitempty"`
	LateClose  bool        `json:"late_close,omitempty"`
	Now        time.Time   `json:"now"`
}

// HoursLabel is the display form of a HoursReport.
type HoursLabel struct {
	Status HoursStatus `json:"status"`
	Label  string      `json:"label"`
	Detail string      `json:"detail"`
	Color  string      `json:"color"`
}
