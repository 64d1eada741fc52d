package hours

import (
	"fmt"
	"time"

	"github.com/samirrijal/nightmap/internal/core/domain"
)

// Color hints understood by the client badge component.
const (
	ColorGreen  = "green"
	ColorOrange = "orange"
	ColorRed    = "red"
	ColorGray   = "gray"
)

// Format renders a report as a badge label, a detail line and a color hint.
func Format(r domain.HoursReport) domain.HoursLabel {
	l := domain.HoursLabel{Status: r.Status}
	switch r.Status {
	case domain.StatusOpen:
		l.Label, l.Color = "영업중", ColorGreen
		l.Detail = fmt.Sprintf("%s에 영업 종료", r.TodayClose)
	case domain.StatusAlmostClose:
		l.Label, l.Color = "곧 영업종료", ColorOrange
		l.Detail = fmt.Sprintf("%s에 영업 종료", r.TodayClose)
	case domain.StatusCloseRecent:
		l.Label, l.Color = "영업종료", ColorRed
		l.Detail = fmt.Sprintf("%s에 영업 종료됨", r.TodayClose)
	case domain.StatusClosed:
		l.Label, l.Color = "영업종료", ColorGray
		l.Detail = fmt.Sprintf("%s에 영업 종료됨", r.TodayClose)
	case domain.StatusBeforeOpen:
		l.Label, l.Color = "영업 전", ColorGray
		l.Detail = fmt.Sprintf("%s에 영업 시작", r.TodayOpen)
	default:
		l.Status = domain.StatusHoliday
		l.Label, l.Color = "휴무", ColorGray
		l.Detail = fmt.Sprintf("오늘 휴무 (%d/%d)", int(r.Now.Month()), r.Now.Day())
	}
	return l
}

// Label resolves and formats in one step.
func Label(h domain.WeeklyHours, now time.Time) domain.HoursLabel {
	return Format(Resolve(h, now))
}
