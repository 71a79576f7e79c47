package controllers

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/mentorbook/booking-app/booking"
	"github.com/mentorbook/booking-app/db"
	"github.com/mentorbook/booking-app/models"
)

// CreateAppointment lets a student request a slot with a mentor.
func CreateAppointment(c *fiber.Ctx) error {
	var in booking.CreateInput
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Failed to parse request body",
		})
	}
	in.StudentID = callerID(c)

	appt, err := engine.CreateAppointment(c.Context(), in)
	if err != nil {
		return renderError(c, err)
	}

	notifyMentor(appt, "New session request",
		fmt.Sprintf("You have a new session request for %s %s: %s", appt.Date, appt.TimeSlot, appt.Subject))

	return c.Status(fiber.StatusCreated).JSON(appt)
}

// GetAppointments lists the caller's appointments, bucketed on request.
// Buckets: requests (pending), upcoming (confirmed, not yet started),
// completed (finalized, or confirmed with an elapsed slot), refused,
// cancelled. No bucket returns everything.
func GetAppointments(c *fiber.Ctx) error {
	userID := callerID(c)
	role := callerRole(c)
	bucket := c.Query("bucket")
	now := time.Now()

	var out []models.Appointment
	for _, a := range engine.Snapshot() {
		if role == models.RoleMentor && a.MentorID != userID {
			continue
		}
		if role == models.RoleStudent && a.StudentID != userID {
			continue
		}
		if bucket != "" && !inBucket(a, bucket, now) {
			continue
		}
		out = append(out, a)
	}
	if out == nil {
		out = []models.Appointment{}
	}

	return c.JSON(fiber.Map{
		"appointments": out,
		"count":        len(out),
		"bucket":       bucket,
	})
}

func inBucket(a models.Appointment, bucket string, now time.Time) bool {
	elapsed, err := booking.HasElapsed(a.Date, a.TimeSlot, now)
	if err != nil {
		// A malformed row reports not-elapsed; it must never be silently
		// bucketed as a completed call.
		logger.Warn("appointment has malformed schedule",
			zap.String("appointment_id", a.ID), zap.Error(err))
	}
	switch bucket {
	case "requests":
		return a.Status == models.StatusPending
	case "upcoming":
		return a.Status == models.StatusConfirmed && !elapsed
	case "completed":
		return a.Status == models.StatusFinalized ||
			(a.Status == models.StatusConfirmed && elapsed)
	case "refused":
		return a.Status == models.StatusRefused
	case "cancelled":
		return a.Status == models.StatusCancelled
	}
	return true
}

// GetAppointment returns one appointment the caller is a party to.
func GetAppointment(c *fiber.Ctx) error {
	appt, err := loadOwned(c)
	if err != nil {
		return renderError(c, err)
	}
	return c.JSON(appt)
}

// Transition applies a mentor action: approve, refuse, reactivate,
// cancel or finalize. The action comes from the URL, the payload from
// the body.
func Transition(c *fiber.Ctx) error {
	appt, err := loadOwnedMentor(c)
	if err != nil {
		return renderError(c, err)
	}

	var in booking.TransitionInput
	if err := c.BodyParser(&in); err != nil && len(c.Body()) > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Failed to parse request body",
		})
	}
	in.Action = booking.Action(c.Params("action"))

	updated, err := engine.Transition(c.Context(), appt.ID, in)
	if err != nil {
		return renderError(c, err)
	}

	notifyStudentOfAction(updated, in)
	return c.JSON(updated)
}

// AttachCallLink sets the meeting link on a confirmed appointment.
func AttachCallLink(c *fiber.Ctx) error {
	appt, err := loadOwnedMentor(c)
	if err != nil {
		return renderError(c, err)
	}

	var body struct {
		URL string `json:"url"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Failed to parse request body",
		})
	}

	updated, uerr := engine.AttachCallLink(c.Context(), appt.ID, body.URL)
	if uerr != nil {
		return renderError(c, uerr)
	}
	notifyStudent(updated, "Meeting link added",
		fmt.Sprintf("A meeting link was added for your session on %s %s: %s", updated.Date, updated.TimeSlot, updated.CallLink))
	return c.JSON(updated)
}

func RemoveCallLink(c *fiber.Ctx) error {
	appt, err := loadOwnedMentor(c)
	if err != nil {
		return renderError(c, err)
	}
	updated, uerr := engine.RemoveCallLink(c.Context(), appt.ID)
	if uerr != nil {
		return renderError(c, uerr)
	}
	return c.JSON(updated)
}

// AttachRecording sets the recording fields once a session is finalized
// or its slot has elapsed.
func AttachRecording(c *fiber.Ctx) error {
	appt, err := loadOwnedMentor(c)
	if err != nil {
		return renderError(c, err)
	}

	var in booking.RecordingInput
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Failed to parse request body",
		})
	}

	updated, uerr := engine.AttachRecording(c.Context(), appt.ID, in)
	if uerr != nil {
		return renderError(c, uerr)
	}
	notifyStudent(updated, "Session recording available",
		fmt.Sprintf("The recording of your session on %s %s is available: %s", updated.Date, updated.TimeSlot, updated.RecordingLink))
	return c.JSON(updated)
}

func RemoveRecording(c *fiber.Ctx) error {
	appt, err := loadOwnedMentor(c)
	if err != nil {
		return renderError(c, err)
	}
	updated, uerr := engine.RemoveRecording(c.Context(), appt.ID)
	if uerr != nil {
		return renderError(c, uerr)
	}
	return c.JSON(updated)
}

func loadOwned(c *fiber.Ctx) (models.Appointment, error) {
	appt, err := engine.Get(c.Context(), c.Params("id"))
	if err != nil {
		return models.Appointment{}, err
	}
	userID := callerID(c)
	if appt.MentorID != userID && appt.StudentID != userID {
		return models.Appointment{}, booking.ErrNotFound
	}
	return appt, nil
}

func loadOwnedMentor(c *fiber.Ctx) (models.Appointment, error) {
	appt, err := loadOwned(c)
	if err != nil {
		return models.Appointment{}, err
	}
	if appt.MentorID != callerID(c) {
		return models.Appointment{}, errMentorOnly
	}
	return appt, nil
}

func notifyStudentOfAction(appt *models.Appointment, in booking.TransitionInput) {
	switch in.Action {
	case booking.ActionApprove:
		notifyStudent(appt, "Session approved",
			fmt.Sprintf("Your session on %s %s has been approved.", appt.Date, appt.TimeSlot))
	case booking.ActionRefuse:
		notifyStudent(appt, "Session refused",
			fmt.Sprintf("Your session request for %s %s was refused. Reason: %s", appt.Date, appt.TimeSlot, appt.RefusalReason))
	case booking.ActionCancel:
		notifyStudent(appt, "Session cancelled",
			fmt.Sprintf("Your session on %s %s was cancelled.", appt.Date, appt.TimeSlot))
	case booking.ActionReactivate:
		notifyStudent(appt, "Session reactivated",
			fmt.Sprintf("Your session request for %s %s is active again (status: %s).", appt.Date, appt.TimeSlot, appt.Status))
	}
}

func notifyStudent(appt *models.Appointment, subject, body string) {
	notifyUser(appt.StudentID, subject, body)
}

func notifyMentor(appt *models.Appointment, subject, body string) {
	notifyUser(appt.MentorID, subject, body)
}

// notifyUser emails best-effort: a delivery failure is logged and never
// fails the mutation that triggered it.
func notifyUser(userID uint, subject, body string) {
	if !mailer.Enabled() {
		return
	}
	var user models.User
	if err := db.DB.First(&user, userID).Error; err != nil {
		logger.Warn("notification skipped, user lookup failed", zap.Uint("user_id", userID), zap.Error(err))
		return
	}
	if err := mailer.Send(user.Email, subject, fmt.Sprintf("<p>Dear %s,</p><p>%s</p>", user.Name, body)); err != nil {
		logger.Warn("notification email failed", zap.Uint("user_id", userID), zap.Error(err))
	}
}
