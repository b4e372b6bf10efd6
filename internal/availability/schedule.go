package availability

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/aldoetobex/legal-aid-backend/pkg/models"
)

// DayInput is one weekday entry of the schedule payload.
type DayInput struct {
	Active      bool   `json:"active"`
	Start       string `json:"start" example:"09:00"`
	End         string `json:"end" example:"17:00"`
	BookingType string `json:"booking_type,omitempty" example:"ONLINE"`
}

// ParseSchedule converts a weekday-name keyed payload into rules. Inactive days
// and unknown day names are skipped. Errors are keyed by the submitted day name.
// The result is ordered by weekday so identical payloads produce identical rule sets.
func ParseSchedule(in map[string]DayInput) ([]Rule, map[string][]string) {
	errs := map[string][]string{}
	rules := make([]Rule, 0, len(in))

	for name, day := range in {
		if !day.Active {
			continue
		}
		idx, ok := WeekdayIndex(name)
		if !ok {
			continue
		}
		if strings.TrimSpace(day.Start) == "" || strings.TrimSpace(day.End) == "" {
			errs[name] = append(errs[name], "start and end are required for an active day")
			continue
		}
		start, err := ParseClock(day.Start)
		if err != nil {
			errs[name] = append(errs[name], "Invalid start time (use HH:MM)")
			continue
		}
		end, err := ParseClock(day.End)
		if err != nil {
			errs[name] = append(errs[name], "Invalid end time (use HH:MM)")
			continue
		}
		if start >= end {
			errs[name] = append(errs[name], "start must be before end")
			continue
		}

		bt := models.BookingOnline
		if raw := strings.ToUpper(strings.TrimSpace(day.BookingType)); raw != "" {
			switch models.BookingType(raw) {
			case models.BookingOnline, models.BookingInPerson, models.BookingBoth:
				bt = models.BookingType(raw)
			default:
				errs[name] = append(errs[name], "booking_type must be ONLINE, IN_PERSON or BOTH")
				continue
			}
		}

		rules = append(rules, Rule{Weekday: idx, Start: start, End: end, BookingType: bt, Active: true})
	}

	if len(errs) > 0 {
		return nil, errs
	}
	sort.Slice(rules, func(i, j int) bool {
		if rules[i].Weekday != rules[j].Weekday {
			return rules[i].Weekday < rules[j].Weekday
		}
		return rules[i].Start < rules[j].Start
	})
	return rules, nil
}

// ReplaceSchedule swaps the lawyer's whole rule set in one transaction. The
// profile row is locked first so concurrent replacements serialise, and readers
// see either the old set or the new one.
func ReplaceSchedule(ctx context.Context, db *gorm.DB, lawyerID uuid.UUID, rules []Rule) ([]models.AvailabilityRule, error) {
	rows := make([]models.AvailabilityRule, 0, len(rules))
	for _, r := range rules {
		rows = append(rows, models.AvailabilityRule{
			LawyerID:    lawyerID,
			DayOfWeek:   r.Weekday,
			StartTime:   r.Start.String(),
			EndTime:     r.End.String(),
			BookingType: r.BookingType,
			IsActive:    true,
		})
	}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var lp models.LawyerProfile
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			First(&lp, "id = ?", lawyerID).Error; err != nil {
			return fmt.Errorf("lock lawyer profile: %w", err)
		}
		if err := tx.Where("lawyer_id = ?", lawyerID).Delete(&models.AvailabilityRule{}).Error; err != nil {
			return fmt.Errorf("delete rules: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}
		if err := tx.Create(&rows).Error; err != nil {
			return fmt.Errorf("insert rules: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ActiveRules loads the lawyer's active rules.
func ActiveRules(ctx context.Context, db *gorm.DB, lawyerID uuid.UUID) ([]models.AvailabilityRule, error) {
	var rows []models.AvailabilityRule
	err := db.WithContext(ctx).
		Where("lawyer_id = ? AND is_active = ?", lawyerID, true).
		Order("day_of_week ASC, start_time ASC").
		Find(&rows).Error
	return rows, err
}
