// Package hours classifies a venue's weekly operating hours against the
// current time and renders the result for display.
package hours

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/samirrijal/nightmap/internal/core/domain"
)

// HolidaySentinel marks a day the venue does not open.
const HolidaySentinel = "휴무"

// LateToken is the close value for venues that stay open past midnight.
const LateToken = "late"

const (
	dayMinutes       = 24 * 60
	lateCloseMinutes = 5 * 60 // "late" always means 05:00
	thresholdMinutes = 60
)

var dayKeys = [7]string{"일요일", "월요일", "화요일", "수요일", "목요일", "금요일", "토요일"}

// DayKey maps a weekday (Sunday=0) to its WeeklyHours key.
func DayKey(d time.Weekday) string {
	return dayKeys[int(d)%7]
}

// Resolve determines the venue status at now from today's entry only.
// Missing, holiday and malformed entries all resolve to HOLIDAY.
func Resolve(h domain.WeeklyHours, now time.Time) domain.HoursReport {
	report := domain.HoursReport{Status: domain.StatusHoliday, Now: now}

	raw, ok := h[DayKey(now.Weekday())]
	if !ok || strings.TrimSpace(raw) == HolidaySentinel {
		return report
	}
	open, closing, late, ok := ParseRange(raw)
	if !ok {
		return report
	}

	report.TodayOpen = clock(open)
	report.TodayClose = clock(closing)
	report.LateClose = late
	report.Status = classify(open, closing, now.Hour()*60+now.Minute())
	return report
}

// ParseRange parses "HH:MM~HH:MM" or "HH:MM~late" into minutes of the day.
func ParseRange(raw string) (open, closing int, late, ok bool) {
	left, right, found := strings.Cut(raw, "~")
	if !found {
		return 0, 0, false, false
	}
	open, ok = parseClock(left)
	if !ok {
		return 0, 0, false, false
	}
	if strings.EqualFold(strings.TrimSpace(right), LateToken) {
		return open, lateCloseMinutes, true, true
	}
	closing, ok = parseClock(right)
	if !ok {
		return 0, 0, false, false
	}
	return open, closing, false, true
}

func classify(open, closing, now int) domain.HoursStatus {
	if closing < open {
		// spans midnight
		if now >= open || now <= closing {
			if wrap(closing-now) <= thresholdMinutes {
				return domain.StatusAlmostClose
			}
			return domain.StatusOpen
		}
		if wrap(now-closing) <= thresholdMinutes {
			return domain.StatusCloseRecent
		}
		return domain.StatusBeforeOpen
	}

	switch {
	case now >= open && now <= closing:
		if closing-now <= thresholdMinutes {
			return domain.StatusAlmostClose
		}
		return domain.StatusOpen
	case now > closing:
		if now-closing <= thresholdMinutes {
			return domain.StatusCloseRecent
		}
		return domain.StatusClosed
	default:
		return domain.StatusBeforeOpen
	}
}

func wrap(minutes int) int {
	return ((minutes % dayMinutes) + dayMinutes) % dayMinutes
}

func parseClock(s string) (int, bool) {
	hh, mm, found := strings.Cut(strings.TrimSpace(s), ":")
	if !found {
		return 0, false
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 24 {
		return 0, false
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 || (h == 24 && m > 0) {
		return 0, false
	}
	return h*60 + m, true
}

func clock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
