package booking

import "github.com/mentorbook/booking-app/models"

type Classification string

const (
	Free              Classification = "free"
	BlockedConfirmed  Classification = "blocked_confirmed"
	BlockedOwnPending Classification = "blocked_own_pending"
)

// Detector classifies a (mentor, date, slot) against the last-published
// cache snapshot. This is the advisory fast path; the authoritative store
// re-validates confirmed-slot uniqueness at commit time, so two students
// racing here still resolve correctly.
type Detector struct {
	cache *Cache
}

func NewDetector(cache *Cache) *Detector {
	return &Detector{cache: cache}
}

// Classify checks the exact (mentorID, date, slot) key. Slots are
// fixed-width and non-overlapping by construction, so matching is literal
// equality on date and slot, never fuzzy overlap.
//
// A confirmed appointment blocks everyone. A pending one blocks only the
// student who submitted it, to stop duplicate double-submission; other
// students may still compete for a slot that is merely requested. Refused
// and cancelled appointments never block: a vacated slot is immediately
// available again.
func (d *Detector) Classify(mentorID, studentID uint, date, slot string) Classification {
	return d.ClassifyExcluding(mentorID, studentID, date, slot, "")
}

// ClassifyExcluding is Classify with one appointment skipped. Used before
// approving or reactivating an existing appointment, which itself sits in
// the cache and must not block its own move.
func (d *Detector) ClassifyExcluding(mentorID, studentID uint, date, slot, excludeID string) Classification {
	for _, a := range d.cache.Snapshot() {
		if a.ID == excludeID {
			continue
		}
		if a.MentorID != mentorID || a.Date != date || a.TimeSlot != slot {
			continue
		}
		switch a.Status {
		case models.StatusConfirmed:
			return BlockedConfirmed
		case models.StatusPending:
			if a.StudentID == studentID {
				return BlockedOwnPending
			}
		}
	}
	return Free
}
