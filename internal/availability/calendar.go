package availability

import (
	"log/slog"
	"time"

	"github.com/aldoetobex/legal-aid-backend/pkg/models"
)

// Calendar fixes "today" for a request: an injected clock read in the platform
// time zone, plus the forward window.
type Calendar struct {
	Now        func() time.Time
	Location   *time.Location
	WindowDays int
}

// NewCalendar returns a Calendar on the wall clock.
func NewCalendar(loc *time.Location, windowDays int) Calendar {
	if loc == nil {
		loc = time.UTC
	}
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}
	return Calendar{Now: time.Now, Location: loc, WindowDays: windowDays}
}

// Today is the current calendar date in the platform time zone.
func (c Calendar) Today() time.Time {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	loc := c.Location
	if loc == nil {
		loc = time.UTC
	}
	return now().In(loc)
}

// Availability expands persisted rules from today. Unparsable rows are skipped.
func (c Calendar) Availability(rows []models.AvailabilityRule) map[string][]string {
	return c.AvailabilityFrom(rows, c.Today(), c.WindowDays)
}

// AvailabilityFrom expands persisted rules from an explicit date.
func (c Calendar) AvailabilityFrom(rows []models.AvailabilityRule, from time.Time, days int) map[string][]string {
	rules := make([]Rule, 0, len(rows))
	for _, row := range rows {
		r, err := FromModel(row)
		if err != nil {
			slog.Warn("skipping malformed availability rule", "rule_id", row.ID, "lawyer_id", row.LawyerID, "err", err)
			continue
		}
		rules = append(rules, r)
	}
	if days <= 0 {
		days = c.WindowDays
	}
	return Compute(rules, from, days)
}

// Experience is YearsOfExperience as of today.
func (c Calendar) Experience(issue time.Time) int {
	if issue.IsZero() {
		return 0
	}
	return YearsOfExperience(issue, c.Today())
}
