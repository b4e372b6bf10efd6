// Package availability turns a lawyer's recurring weekly schedule into concrete
// bookable hourly slots over a rolling window of calendar dates.
package availability

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aldoetobex/legal-aid-backend/pkg/models"
)

// DefaultWindowDays is how far ahead slots are generated.
const DefaultWindowDays = 30

const (
	slotMinutes = 60
	dayMinutes  = 24 * 60
)

// Weekdays maps day-of-week indexes (0=Monday) to the names used by the schedule payload.
var Weekdays = [7]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// WeekdayIndex resolves a weekday name case-insensitively.
func WeekdayIndex(name string) (int, bool) {
	name = strings.TrimSpace(name)
	for i, d := range Weekdays {
		if strings.EqualFold(d, name) {
			return i, true
		}
	}
	return 0, false
}

// DayOfWeek returns the 0=Monday index of t's calendar date.
func DayOfWeek(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

/* ================================ Clock ================================= */

// Clock is a wall-clock time as minutes after midnight.
type Clock int

// ParseClock accepts "HH:MM" or "HH:MM:SS" (seconds are dropped).
func ParseClock(s string) (Clock, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 || len(parts[1]) != 2 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return Clock(h*60 + m), nil
}

// String renders "HH:MM".
func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// Label renders the 12-hour form shown to citizens, e.g. "09:00 AM", "12:00 PM".
func (c Clock) Label() string {
	h, m := int(c)/60, int(c)%60
	suffix := "AM"
	if h >= 12 {
		suffix = "PM"
	}
	h12 := h % 12
	if h12 == 0 {
		h12 = 12
	}
	return fmt.Sprintf("%02d:%02d %s", h12, m, suffix)
}

/* ================================ Rules ================================= */

// Rule is one parsed weekly availability block.
type Rule struct {
	Weekday     int
	Start       Clock
	End         Clock
	BookingType models.BookingType
	Active      bool
}

// Slots lists the hour-quantized slot starts of r. A slot is emitted only when
// its start is strictly before End; a trailing partial hour is dropped.
func (r Rule) Slots() []Clock {
	var out []Clock
	for c := r.Start; c < r.End && c < dayMinutes; c += slotMinutes {
		out = append(out, c)
	}
	return out
}

// FromModel parses a persisted rule.
func FromModel(m models.AvailabilityRule) (Rule, error) {
	start, err := ParseClock(m.StartTime)
	if err != nil {
		return Rule{}, err
	}
	end, err := ParseClock(m.EndTime)
	if err != nil {
		return Rule{}, err
	}
	if m.DayOfWeek < 0 || m.DayOfWeek > 6 {
		return Rule{}, fmt.Errorf("invalid day_of_week %d", m.DayOfWeek)
	}
	return Rule{
		Weekday:     m.DayOfWeek,
		Start:       start,
		End:         end,
		BookingType: m.BookingType,
		Active:      m.IsActive,
	}, nil
}

/* =============================== Compute ================================ */

// Compute expands rules over windowDays calendar dates starting at asOf's date
// (in asOf's location). Keys are ISO dates; values are sorted, de-duplicated
// labels. Dates without a slot are omitted, and the map is never nil.
func Compute(rules []Rule, asOf time.Time, windowDays int) map[string][]string {
	out := map[string][]string{}

	byDay := map[int][]Rule{}
	for _, r := range rules {
		if r.Active {
			byDay[r.Weekday] = append(byDay[r.Weekday], r)
		}
	}
	if len(byDay) == 0 {
		return out
	}

	y, m, d := asOf.Date()
	first := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	for i := 0; i < windowDays; i++ {
		date := first.AddDate(0, 0, i)
		dayRules := byDay[DayOfWeek(date)]
		if len(dayRules) == 0 {
			continue
		}

		seen := map[Clock]struct{}{}
		for _, r := range dayRules {
			for _, c := range r.Slots() {
				seen[c] = struct{}{}
			}
		}
		if len(seen) == 0 {
			continue
		}

		clocks := make([]Clock, 0, len(seen))
		for c := range seen {
			clocks = append(clocks, c)
		}
		sort.Slice(clocks, func(i, j int) bool { return clocks[i] < clocks[j] })

		labels := make([]string, len(clocks))
		for j, c := range clocks {
			labels[j] = c.Label()
		}
		out[date.Format("2006-01-02")] = labels
	}
	return out
}

// YearsOfExperience counts whole years since the license was issued, never negative.
func YearsOfExperience(issue, today time.Time) int {
	years := today.Year() - issue.Year()
	if today.Month() < issue.Month() || (today.Month() == issue.Month() && today.Day() < issue.Day()) {
		years--
	}
	if years < 0 {
		return 0
	}
	return years
}
