package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// MentorAvailability is one row per (mentor, weekday): whether the mentor
// takes calls that day and at which slot starts. Rows are replaced
// wholesale on each save, never patched field by field.
type MentorAvailability struct {
	gorm.Model
	MentorID  uint         `json:"mentor_id" gorm:"index:idx_mentor_day,unique"`
	DayOfWeek time.Weekday `json:"day_of_week" gorm:"index:idx_mentor_day,unique"`
	IsActive  bool         `json:"is_active"`
	// Slots holds the ordered "HH:MM" starts, comma separated.
	Slots string `json:"slots"`
}

// SlotList returns the ordered slot starts for the day.
func (m *MentorAvailability) SlotList() []string {
	if m.Slots == "" {
		return nil
	}
	parts := strings.Split(m.Slots, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// SetSlots stores the given slot starts in order.
func (m *MentorAvailability) SetSlots(slots []string) {
	m.Slots = strings.Join(slots, ",")
}
