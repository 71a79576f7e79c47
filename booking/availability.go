package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/mentorbook/booking-app/models"
)

// AvailabilitySource supplies the recurring weekly template rows.
type AvailabilitySource interface {
	DayTemplate(ctx context.Context, mentorID uint, day time.Weekday) (*models.MentorAvailability, error)
	ListAvailability(ctx context.Context, mentorID uint) ([]models.MentorAvailability, error)
	ReplaceAvailability(ctx context.Context, mentorID uint, week []models.MentorAvailability) error
}

// Calculator resolves a mentor's weekly template to concrete slots for a
// calendar date. It deliberately ignores existing appointments: what the
// mentor generally offers and what is currently free are separate
// questions, and the conflict detector answers the second one.
type Calculator struct {
	source AvailabilitySource
}

func NewCalculator(source AvailabilitySource) *Calculator {
	return &Calculator{source: source}
}

// SlotsFor returns the ordered slot starts the mentor offers on date.
// An unconfigured mentor or an inactive weekday yields an empty list, not
// an error. Recomputed from scratch on every call; there is no memoized
// state to invalidate.
func (c *Calculator) SlotsFor(ctx context.Context, mentorID uint, date string) ([]string, error) {
	day, err := time.Parse(dateLayout, date)
	if err != nil {
		return nil, &ValidationError{Field: "date", Message: "expected YYYY-MM-DD"}
	}

	tmpl, err := c.source.DayTemplate(ctx, mentorID, day.Weekday())
	if err != nil {
		return nil, err
	}
	if tmpl == nil || !tmpl.IsActive {
		return []string{}, nil
	}
	return tmpl.SlotList(), nil
}

// ValidateWeek checks a wholesale template replacement: every slot must
// parse as "HH:MM", sit on the slot grid, and each day's list must be
// strictly increasing.
func ValidateWeek(week []models.MentorAvailability, slotMinutes int) error {
	seen := make(map[time.Weekday]bool, len(week))
	for _, d := range week {
		if d.DayOfWeek < time.Sunday || d.DayOfWeek > time.Saturday {
			return &ValidationError{Field: "day_of_week", Message: fmt.Sprintf("unknown weekday %d", d.DayOfWeek)}
		}
		if seen[d.DayOfWeek] {
			return &ValidationError{Field: "day_of_week", Message: fmt.Sprintf("duplicate entry for %s", d.DayOfWeek)}
		}
		seen[d.DayOfWeek] = true

		prev := time.Time{}
		for _, s := range d.SlotList() {
			t, err := time.Parse(slotLayout, s)
			if err != nil {
				return &ValidationError{Field: "slots", Message: fmt.Sprintf("malformed slot %q", s)}
			}
			if t.Minute()%slotMinutes != 0 {
				return &ValidationError{Field: "slots", Message: fmt.Sprintf("slot %q is not on the %d-minute grid", s, slotMinutes)}
			}
			if !t.After(prev) {
				return &ValidationError{Field: "slots", Message: fmt.Sprintf("slots out of order at %q", s)}
			}
			prev = t
		}
	}
	return nil
}

// DefaultWeek is the template seeded on first mentor setup: weekdays
// active, half-hour slots from 10:00 through 17:30.
func DefaultWeek() []models.MentorAvailability {
	var slots []string
	for h := 10; h < 18; h++ {
		slots = append(slots, fmt.Sprintf("%02d:00", h), fmt.Sprintf("%02d:30", h))
	}
	week := make([]models.MentorAvailability, 0, 7)
	for day := time.Sunday; day <= time.Saturday; day++ {
		d := models.MentorAvailability{DayOfWeek: day, IsActive: day >= time.Monday && day <= time.Friday}
		if d.IsActive {
			d.SetSlots(slots)
		}
		week = append(week, d)
	}
	return week
}
