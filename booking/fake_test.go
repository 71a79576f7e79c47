package booking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mentorbook/booking-app/models"
)

// fakeStorage is an in-memory stand-in for the authoritative store. It
// enforces the same invariants the real one does: confirmed-slot
// uniqueness, duplicate-pending rejection, and stale-write detection.
type fakeStorage struct {
	mu    sync.Mutex
	appts map[string]models.Appointment
	avail map[uint]map[time.Weekday]models.MentorAvailability

	// failWrites makes the next N operations fail as unreachable.
	failWrites int
	// rejectNext is returned by the next write, once.
	rejectNext error

	nextEventID uint
	nextID      int
	writes      int
	clock       func() time.Time
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{
		appts: make(map[string]models.Appointment),
		avail: make(map[uint]map[time.Weekday]models.MentorAvailability),
		clock: time.Now,
	}
}

func (f *fakeStorage) gate() error {
	if f.failWrites > 0 {
		f.failWrites--
		return unreachable(errors.New("connection refused"))
	}
	if f.rejectNext != nil {
		err := f.rejectNext
		f.rejectNext = nil
		return err
	}
	return nil
}

func (f *fakeStorage) ListAppointments(ctx context.Context) ([]models.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	// rejectNext targets writes only; reads share the unreachable gate.
	if f.failWrites > 0 {
		f.failWrites--
		return nil, unreachable(errors.New("connection refused"))
	}
	out := make([]models.Appointment, 0, len(f.appts))
	for _, a := range f.appts {
		out = append(out, a.Clone())
	}
	return out, nil
}

func (f *fakeStorage) CreateAppointment(ctx context.Context, a models.Appointment) (models.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes++
	if err := f.gate(); err != nil {
		return models.Appointment{}, err
	}

	for _, other := range f.appts {
		if other.MentorID != a.MentorID || other.Date != a.Date || other.TimeSlot != a.TimeSlot {
			continue
		}
		if other.Status == models.StatusConfirmed {
			return models.Appointment{}, remoteRejected("slot already has a confirmed appointment")
		}
		if other.Status == models.StatusPending && other.StudentID == a.StudentID {
			return models.Appointment{}, remoteRejected("duplicate pending request for this slot")
		}
	}

	if a.ID == "" {
		f.nextID++
		a.ID = fmt.Sprintf("appt-%d", f.nextID)
	}
	now := f.clock()
	a.CreatedAt = now
	a.UpdatedAt = now
	f.assignEventIDs(&a)
	f.appts[a.ID] = a.Clone()
	return a, nil
}

func (f *fakeStorage) UpdateAppointment(ctx context.Context, a models.Appointment, observed time.Time) (models.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes++
	if err := f.gate(); err != nil {
		return models.Appointment{}, err
	}

	current, ok := f.appts[a.ID]
	if !ok {
		return models.Appointment{}, remoteRejected("appointment no longer exists")
	}
	if current.UpdatedAt.After(observed) {
		return models.Appointment{}, staleWrite("appointment changed since it was last read")
	}

	if a.Status == models.StatusConfirmed || a.Status == models.StatusPending {
		for id, other := range f.appts {
			if id == a.ID || other.MentorID != a.MentorID || other.Date != a.Date || other.TimeSlot != a.TimeSlot {
				continue
			}
			if other.Status == models.StatusConfirmed {
				return models.Appointment{}, remoteRejected("slot already has a confirmed appointment")
			}
			if a.Status == models.StatusPending && other.Status == models.StatusPending && other.StudentID == a.StudentID {
				return models.Appointment{}, remoteRejected("duplicate pending request for this slot")
			}
		}
	}

	a.UpdatedAt = f.clock()
	f.assignEventIDs(&a)
	f.appts[a.ID] = a.Clone()
	return a, nil
}

func (f *fakeStorage) assignEventIDs(a *models.Appointment) {
	for i := range a.History {
		if a.History[i].ID == 0 {
			f.nextEventID++
			a.History[i].ID = f.nextEventID
			a.History[i].AppointmentID = a.ID
		}
	}
}

func (f *fakeStorage) DayTemplate(ctx context.Context, mentorID uint, day time.Weekday) (*models.MentorAvailability, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	week, ok := f.avail[mentorID]
	if !ok {
		return nil, nil
	}
	row, ok := week[day]
	if !ok {
		return nil, nil
	}
	return &row, nil
}

func (f *fakeStorage) ListAvailability(ctx context.Context, mentorID uint) ([]models.MentorAvailability, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.MentorAvailability
	for _, row := range f.avail[mentorID] {
		out = append(out, row)
	}
	return out, nil
}

func (f *fakeStorage) ReplaceAvailability(ctx context.Context, mentorID uint, week []models.MentorAvailability) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	byDay := make(map[time.Weekday]models.MentorAvailability, len(week))
	for _, row := range week {
		row.MentorID = mentorID
		byDay[row.DayOfWeek] = row
	}
	f.avail[mentorID] = byDay
	return nil
}

// touch bumps a stored row's UpdatedAt, simulating a concurrent writer
// landing on the authoritative store behind the local cache's back.
func (f *fakeStorage) touch(id string, to time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a := f.appts[id]
	a.UpdatedAt = to
	f.appts[id] = a
}

// seedAvailability installs an active day with the given slots.
func (f *fakeStorage) seedAvailability(mentorID uint, day time.Weekday, slots []string) {
	row := models.MentorAvailability{MentorID: mentorID, DayOfWeek: day, IsActive: true}
	row.SetSlots(slots)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.avail[mentorID] == nil {
		f.avail[mentorID] = make(map[time.Weekday]models.MentorAvailability)
	}
	f.avail[mentorID][day] = row
}
