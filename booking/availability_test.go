package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mentorbook/booking-app/models"
)

func TestSlotsForActiveDay(t *testing.T) {
	store := newFakeStorage()
	store.seedAvailability(1, time.Monday, []string{"09:00", "09:30"})
	calc := NewCalculator(store)

	// 2025-03-17 is a Monday.
	slots, err := calc.SlotsFor(context.Background(), 1, "2025-03-17")
	require.NoError(t, err)
	require.Equal(t, []string{"09:00", "09:30"}, slots)
}

func TestSlotsForInactiveDay(t *testing.T) {
	store := newFakeStorage()
	row := models.MentorAvailability{MentorID: 1, DayOfWeek: time.Tuesday, IsActive: false}
	row.SetSlots([]string{"09:00"})
	require.NoError(t, store.ReplaceAvailability(context.Background(), 1, []models.MentorAvailability{row}))
	calc := NewCalculator(store)

	// 2025-03-18 is a Tuesday.
	slots, err := calc.SlotsFor(context.Background(), 1, "2025-03-18")
	require.NoError(t, err)
	require.Empty(t, slots)
}

func TestSlotsForUnconfiguredMentorYieldsNoSlots(t *testing.T) {
	calc := NewCalculator(newFakeStorage())

	slots, err := calc.SlotsFor(context.Background(), 42, "2025-03-17")
	require.NoError(t, err)
	require.Empty(t, slots)
}

func TestSlotsForMalformedDate(t *testing.T) {
	calc := NewCalculator(newFakeStorage())

	_, err := calc.SlotsFor(context.Background(), 1, "17/03/2025")
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
}

func TestValidateWeek(t *testing.T) {
	day := func(d time.Weekday, slots ...string) models.MentorAvailability {
		row := models.MentorAvailability{DayOfWeek: d, IsActive: true}
		row.SetSlots(slots)
		return row
	}

	tests := []struct {
		name    string
		week    []models.MentorAvailability
		wantErr bool
	}{
		{"valid", []models.MentorAvailability{day(time.Monday, "09:00", "09:30")}, false},
		{"empty day", []models.MentorAvailability{day(time.Monday)}, false},
		{"off grid", []models.MentorAvailability{day(time.Monday, "09:15")}, true},
		{"malformed slot", []models.MentorAvailability{day(time.Monday, "9am")}, true},
		{"out of order", []models.MentorAvailability{day(time.Monday, "10:00", "09:30")}, true},
		{"duplicate slot", []models.MentorAvailability{day(time.Monday, "09:00", "09:00")}, true},
		{"duplicate weekday", []models.MentorAvailability{day(time.Monday, "09:00"), day(time.Monday, "10:00")}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateWeek(tt.week, 30)
			if tt.wantErr {
				var ve *ValidationError
				require.True(t, errors.As(err, &ve))
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestDefaultWeek(t *testing.T) {
	week := DefaultWeek()
	require.Len(t, week, 7)
	require.NoError(t, ValidateWeek(week, 30))

	for _, d := range week {
		active := d.DayOfWeek >= time.Monday && d.DayOfWeek <= time.Friday
		require.Equal(t, active, d.IsActive, "weekday %s", d.DayOfWeek)
		if active {
			slots := d.SlotList()
			require.Equal(t, "10:00", slots[0])
			require.Equal(t, "17:30", slots[len(slots)-1])
		}
	}
}
