package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mentorbook/booking-app/models"
)

// FeedChannel is the redis channel the store publishes row-change events
// on. Payload is the appointment id; consumers react by re-pulling.
const FeedChannel = "bookings:feed"

// Storage is the authoritative store collaborator. The engine treats it
// as the sole source of truth; the cache is only ever a fast local copy.
type Storage interface {
	AvailabilitySource

	ListAppointments(ctx context.Context) ([]models.Appointment, error)
	// CreateAppointment persists a new appointment, assigns its id, and
	// re-validates slot conflicts inside the commit transaction.
	CreateAppointment(ctx context.Context, a models.Appointment) (models.Appointment, error)
	// UpdateAppointment persists a mutation. observed is the UpdatedAt
	// the caller last saw; a newer stored row means SyncError{StaleWrite}.
	UpdateAppointment(ctx context.Context, a models.Appointment, observed time.Time) (models.Appointment, error)
}

// GormStorage backs Storage with Postgres and publishes change-feed
// events to redis after successful writes.
type GormStorage struct {
	db     *gorm.DB
	feed   *redis.Client
	logger *zap.Logger
}

func NewGormStorage(db *gorm.DB, feed *redis.Client, logger *zap.Logger) *GormStorage {
	return &GormStorage{db: db, feed: feed, logger: logger}
}

func (s *GormStorage) ListAppointments(ctx context.Context) ([]models.Appointment, error) {
	var appts []models.Appointment
	err := s.db.WithContext(ctx).
		Preload("History", func(db *gorm.DB) *gorm.DB { return db.Order("id asc") }).
		Find(&appts).Error
	if err != nil {
		return nil, unreachable(err)
	}
	return appts, nil
}

func (s *GormStorage) CreateAppointment(ctx context.Context, a models.Appointment) (models.Appointment, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	for i := range a.History {
		a.History[i].AppointmentID = a.ID
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Commit-time re-validation: the advisory classify ran against a
		// possibly stale cache, so the losing side of a race must be
		// rejected here, with the confirmed rows locked.
		var blocking models.Appointment
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("mentor_id = ? AND date = ? AND time_slot = ? AND status = ?",
				a.MentorID, a.Date, a.TimeSlot, models.StatusConfirmed).
			First(&blocking).Error
		if err == nil {
			return remoteRejected("slot already has a confirmed appointment")
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return unreachable(err)
		}

		var dup int64
		err = tx.Model(&models.Appointment{}).
			Where("mentor_id = ? AND student_id = ? AND date = ? AND time_slot = ? AND status = ?",
				a.MentorID, a.StudentID, a.Date, a.TimeSlot, models.StatusPending).
			Count(&dup).Error
		if err != nil {
			return unreachable(err)
		}
		if dup > 0 {
			return remoteRejected("duplicate pending request for this slot")
		}

		if err := tx.Create(&a).Error; err != nil {
			return s.writeError(err)
		}
		return nil
	})
	if err != nil {
		return models.Appointment{}, err
	}

	stored, err := s.reload(ctx, a.ID)
	if err != nil {
		return models.Appointment{}, err
	}
	s.publish(ctx, stored.ID)
	return stored, nil
}

func (s *GormStorage) UpdateAppointment(ctx context.Context, a models.Appointment, observed time.Time) (models.Appointment, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current models.Appointment
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&current, "id = ?", a.ID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return remoteRejected("appointment no longer exists")
		}
		if err != nil {
			return unreachable(err)
		}
		if current.UpdatedAt.After(observed) {
			return staleWrite("appointment changed since it was last read")
		}

		if err := s.checkSlotConflicts(tx, &a); err != nil {
			return err
		}

		if err := tx.Omit("History").Save(&a).Error; err != nil {
			return s.writeError(err)
		}
		// History is append-only: persist only the entries the machine
		// just produced, never touch existing rows.
		for i := range a.History {
			if a.History[i].ID != 0 {
				continue
			}
			a.History[i].AppointmentID = a.ID
			if err := tx.Create(&a.History[i]).Error; err != nil {
				return s.writeError(err)
			}
		}
		return nil
	})
	if err != nil {
		return models.Appointment{}, err
	}

	stored, err := s.reload(ctx, a.ID)
	if err != nil {
		return models.Appointment{}, err
	}
	s.publish(ctx, stored.ID)
	return stored, nil
}

// checkSlotConflicts is the authoritative tier of the conflict check for
// updates: an appointment landing on a slot as confirmed must be the only
// confirmed one there, and one landing as pending must not duplicate the
// same student's pending request.
func (s *GormStorage) checkSlotConflicts(tx *gorm.DB, a *models.Appointment) error {
	if a.Status != models.StatusConfirmed && a.Status != models.StatusPending {
		return nil
	}

	var confirmed int64
	err := tx.Model(&models.Appointment{}).
		Where("mentor_id = ? AND date = ? AND time_slot = ? AND status = ? AND id <> ?",
			a.MentorID, a.Date, a.TimeSlot, models.StatusConfirmed, a.ID).
		Count(&confirmed).Error
	if err != nil {
		return unreachable(err)
	}
	if confirmed > 0 {
		return remoteRejected("slot already has a confirmed appointment")
	}

	if a.Status == models.StatusPending {
		var dup int64
		err := tx.Model(&models.Appointment{}).
			Where("mentor_id = ? AND student_id = ? AND date = ? AND time_slot = ? AND status = ? AND id <> ?",
				a.MentorID, a.StudentID, a.Date, a.TimeSlot, models.StatusPending, a.ID).
			Count(&dup).Error
		if err != nil {
			return unreachable(err)
		}
		if dup > 0 {
			return remoteRejected("duplicate pending request for this slot")
		}
	}
	return nil
}

func (s *GormStorage) DayTemplate(ctx context.Context, mentorID uint, day time.Weekday) (*models.MentorAvailability, error) {
	var row models.MentorAvailability
	err := s.db.WithContext(ctx).
		Where("mentor_id = ? AND day_of_week = ?", mentorID, day).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, unreachable(err)
	}
	return &row, nil
}

func (s *GormStorage) ListAvailability(ctx context.Context, mentorID uint) ([]models.MentorAvailability, error) {
	var rows []models.MentorAvailability
	err := s.db.WithContext(ctx).
		Where("mentor_id = ?", mentorID).
		Order("day_of_week asc").
		Find(&rows).Error
	if err != nil {
		return nil, unreachable(err)
	}
	return rows, nil
}

// ReplaceAvailability swaps the mentor's whole weekly template. There are
// no partial patch semantics by design.
func (s *GormStorage) ReplaceAvailability(ctx context.Context, mentorID uint, week []models.MentorAvailability) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().
			Where("mentor_id = ?", mentorID).
			Delete(&models.MentorAvailability{}).Error; err != nil {
			return unreachable(err)
		}
		for i := range week {
			week[i].ID = 0
			week[i].MentorID = mentorID
			if err := tx.Create(&week[i]).Error; err != nil {
				return s.writeError(err)
			}
		}
		return nil
	})
}

func (s *GormStorage) reload(ctx context.Context, id string) (models.Appointment, error) {
	var stored models.Appointment
	err := s.db.WithContext(ctx).
		Preload("History", func(db *gorm.DB) *gorm.DB { return db.Order("id asc") }).
		First(&stored, "id = ?", id).Error
	if err != nil {
		return models.Appointment{}, unreachable(err)
	}
	return stored, nil
}

func (s *GormStorage) writeError(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return remoteRejected("slot already has a confirmed appointment")
	}
	return unreachable(err)
}

func (s *GormStorage) publish(ctx context.Context, id string) {
	if s.feed == nil {
		return
	}
	if err := s.feed.Publish(ctx, FeedChannel, id).Err(); err != nil {
		s.logger.Warn("change feed publish failed", zap.String("appointment_id", id), zap.Error(err))
	}
}
