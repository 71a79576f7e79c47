package booking

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mentorbook/booking-app/models"
)

// Engine is the booking engine's public face. Slot resolution and
// conflict classification read the cache snapshot synchronously; every
// mutation goes through the state machine and then the sync coordinator.
type Engine struct {
	machine  *StateMachine
	calc     *Calculator
	detector *Detector
	coord    *Coordinator
	cache    *Cache
	storage  Storage
	logger   *zap.Logger

	nowFn func() time.Time
}

func NewEngine(storage Storage, cache *Cache, coord *Coordinator, logger *zap.Logger, leadTime time.Duration) *Engine {
	return &Engine{
		machine:  NewStateMachine(leadTime),
		calc:     NewCalculator(storage),
		detector: NewDetector(cache),
		coord:    coord,
		cache:    cache,
		storage:  storage,
		logger:   logger,
		nowFn:    time.Now,
	}
}

// GetSlots lists what the mentor generally offers on date, regardless of
// what is currently booked.
func (e *Engine) GetSlots(ctx context.Context, mentorID uint, date string) ([]string, error) {
	return e.calc.SlotsFor(ctx, mentorID, date)
}

// ClassifySlot is the advisory availability check. It reads the local
// snapshot only; the authoritative store re-validates at commit time.
func (e *Engine) ClassifySlot(mentorID, studentID uint, date, slot string) (Classification, error) {
	if _, err := combine(date, slot, time.UTC); err != nil {
		return "", &ValidationError{Field: "time_slot", Message: "malformed date or slot"}
	}
	return e.detector.Classify(mentorID, studentID, date, slot), nil
}

// CreateAppointment runs the full request path: validation, advisory
// conflict check, optimistic write, authoritative confirm.
func (e *Engine) CreateAppointment(ctx context.Context, in CreateInput) (*models.Appointment, error) {
	appt, err := e.machine.NewRequest(in, e.nowFn())
	if err != nil {
		return nil, err
	}

	if cls := e.detector.Classify(in.MentorID, in.StudentID, in.Date, in.TimeSlot); cls != Free {
		return nil, &ConflictError{Classification: cls}
	}

	appt.ID = uuid.NewString()
	return e.coord.Write(ctx, Mutation{Appointment: *appt, Create: true})
}

// Transition applies a mentor action to an appointment.
func (e *Engine) Transition(ctx context.Context, id string, in TransitionInput) (*models.Appointment, error) {
	appt, err := e.load(ctx, id)
	if err != nil {
		return nil, err
	}
	observed := appt.UpdatedAt

	if err := e.machine.Apply(&appt, in, e.nowFn()); err != nil {
		return nil, err
	}

	// Anything landing on (or moving within) a slot gets the full advisory
	// check against the rest of the set before commit: a confirmed row
	// blocks the move outright, and a reactivation must not duplicate the
	// student's own pending request.
	if appt.Status == models.StatusConfirmed || in.Action == ActionReactivate {
		cls := e.detector.ClassifyExcluding(appt.MentorID, appt.StudentID, appt.Date, appt.TimeSlot, appt.ID)
		if cls != Free {
			return nil, &ConflictError{Classification: cls}
		}
	}

	return e.coord.Write(ctx, Mutation{Appointment: appt, Observed: observed})
}

func (e *Engine) AttachCallLink(ctx context.Context, id, url string) (*models.Appointment, error) {
	return e.update(ctx, id, func(a *models.Appointment, now time.Time) error {
		return e.machine.AttachCallLink(a, url, now)
	})
}

func (e *Engine) RemoveCallLink(ctx context.Context, id string) (*models.Appointment, error) {
	return e.update(ctx, id, e.machine.RemoveCallLink)
}

func (e *Engine) AttachRecording(ctx context.Context, id string, in RecordingInput) (*models.Appointment, error) {
	return e.update(ctx, id, func(a *models.Appointment, now time.Time) error {
		return e.machine.AttachRecording(a, in, now)
	})
}

func (e *Engine) RemoveRecording(ctx context.Context, id string) (*models.Appointment, error) {
	return e.update(ctx, id, e.machine.RemoveRecording)
}

func (e *Engine) update(ctx context.Context, id string, mutate func(*models.Appointment, time.Time) error) (*models.Appointment, error) {
	appt, err := e.load(ctx, id)
	if err != nil {
		return nil, err
	}
	observed := appt.UpdatedAt
	if err := mutate(&appt, e.nowFn()); err != nil {
		return nil, err
	}
	return e.coord.Write(ctx, Mutation{Appointment: appt, Observed: observed})
}

// Get returns one appointment, refreshing from the store on a cache miss.
func (e *Engine) Get(ctx context.Context, id string) (models.Appointment, error) {
	return e.load(ctx, id)
}

// Snapshot returns the last-published local appointment set.
func (e *Engine) Snapshot() []models.Appointment {
	return e.cache.Snapshot()
}

func (e *Engine) Subscribe(fn func([]models.Appointment)) Subscription {
	return e.coord.Subscribe(fn)
}

func (e *Engine) Unsubscribe(handle Subscription) {
	e.coord.Unsubscribe(handle)
}

// Refresh forces a reconciliation pull outside the periodic schedule.
func (e *Engine) Refresh(ctx context.Context) error {
	return e.coord.Refresh(ctx)
}

// GetAvailability returns the mentor's weekly template, or the default
// one when nothing has been saved yet.
func (e *Engine) GetAvailability(ctx context.Context, mentorID uint) ([]models.MentorAvailability, error) {
	week, err := e.storage.ListAvailability(ctx, mentorID)
	if err != nil {
		return nil, err
	}
	if len(week) == 0 {
		week = DefaultWeek()
		for i := range week {
			week[i].MentorID = mentorID
		}
	}
	return week, nil
}

// SaveAvailability replaces the mentor's weekly template wholesale.
func (e *Engine) SaveAvailability(ctx context.Context, mentorID uint, week []models.MentorAvailability, slotMinutes int) error {
	if err := ValidateWeek(week, slotMinutes); err != nil {
		return err
	}
	return e.storage.ReplaceAvailability(ctx, mentorID, week)
}

func (e *Engine) load(ctx context.Context, id string) (models.Appointment, error) {
	if appt, ok := e.cache.Get(id); ok {
		return appt, nil
	}
	// Cache miss: the row may exist remotely but predate our last pull.
	if err := e.coord.Refresh(ctx); err != nil {
		return models.Appointment{}, err
	}
	if appt, ok := e.cache.Get(id); ok {
		return appt, nil
	}
	return models.Appointment{}, ErrNotFound
}
