package booking

import "time"

const (
	dateLayout = "2006-01-02"
	slotLayout = "15:04"
)

// combine joins a calendar date and a slot start into one instant in loc.
func combine(date, slot string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(dateLayout+" "+slotLayout, date+" "+slot, loc)
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}

// HasElapsed reports whether the slot's start instant is in the past.
// Confirmed appointments are bucketed into "upcoming" vs "completed" with
// this alone; no status write is required for an appointment to show up
// as a completed call.
//
// A malformed date or slot reports false together with a ValidationError,
// so a bad row can never be mistaken for an elapsed one.
func HasElapsed(date, slot string, now time.Time) (bool, error) {
	start, err := combine(date, slot, now.Location())
	if err != nil {
		return false, &ValidationError{Field: "time_slot", Message: "malformed date or slot: " + err.Error()}
	}
	return now.After(start), nil
}
