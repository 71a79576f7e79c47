package cron

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mentorbook/booking-app/booking"
	"github.com/mentorbook/booking-app/db"
	"github.com/mentorbook/booking-app/models"
	"github.com/mentorbook/booking-app/utils"
)

// Jobs runs the per-minute sweep: a cache refresh against the
// authoritative store and reminder emails for sessions starting soon.
type Jobs struct {
	engine *booking.Engine
	mailer *utils.Mailer
	logger *zap.Logger

	mu       sync.Mutex
	reminded map[string]bool
}

func New(engine *booking.Engine, mailer *utils.Mailer, logger *zap.Logger) *Jobs {
	return &Jobs{
		engine:   engine,
		mailer:   mailer,
		logger:   logger,
		reminded: make(map[string]bool),
	}
}

// Start registers the sweep and returns the running scheduler.
func (j *Jobs) Start() (*cron.Cron, error) {
	c := cron.New()
	if _, err := c.AddFunc("* * * * *", j.sweep); err != nil {
		return nil, err
	}
	c.Start()
	j.logger.Info("cron scheduler started")
	return c, nil
}

func (j *Jobs) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := j.engine.Refresh(ctx); err != nil {
		j.logger.Warn("scheduled refresh failed", zap.Error(err))
	}
	j.sendReminders(time.Now())
}

// sendReminders emails students whose confirmed session starts within
// the next hour. Each appointment is reminded at most once.
func (j *Jobs) sendReminders(now time.Time) {
	if !j.mailer.Enabled() {
		return
	}

	startWindow := now.Add(55 * time.Minute)
	endWindow := now.Add(65 * time.Minute)

	for _, appt := range j.engine.Snapshot() {
		if appt.Status != models.StatusConfirmed {
			continue
		}
		start, err := time.ParseInLocation("2006-01-02 15:04", appt.Date+" "+appt.TimeSlot, now.Location())
		if err != nil {
			continue
		}
		if start.Before(startWindow) || start.After(endWindow) {
			continue
		}

		j.mu.Lock()
		already := j.reminded[appt.ID]
		j.reminded[appt.ID] = true
		j.mu.Unlock()
		if already {
			continue
		}

		var student models.User
		if err := db.DB.First(&student, appt.StudentID).Error; err != nil {
			j.logger.Warn("reminder skipped, student lookup failed",
				zap.String("appointment_id", appt.ID), zap.Error(err))
			continue
		}

		body := fmt.Sprintf(`
			<p>Dear %s,</p>
			<p>This is a reminder for your mentoring session starting in one hour.</p>
			<ul>
				<li><strong>Date:</strong> %s</li>
				<li><strong>Time:</strong> %s</li>
				<li><strong>Subject:</strong> %s</li>
			</ul>
		`, student.Name, appt.Date, appt.TimeSlot, appt.Subject)

		if err := j.mailer.Send(student.Email, "Reminder: Upcoming Mentoring Session", body); err != nil {
			j.logger.Warn("reminder email failed",
				zap.String("appointment_id", appt.ID), zap.Error(err))
			continue
		}
		j.logger.Info("reminder sent", zap.String("appointment_id", appt.ID))
	}
}
