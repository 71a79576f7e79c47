package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/mentorbook/booking-app/booking"
	"github.com/mentorbook/booking-app/config"
	"github.com/mentorbook/booking-app/utils"
)

var (
	engine *booking.Engine
	mailer *utils.Mailer
	cfg    *config.Config
	logger *zap.Logger
)

// errMentorOnly marks an action attempted by someone other than the
// appointment's mentor.
var errMentorOnly = errors.New("only the mentor can act on this appointment")

// Setup hands the controllers their collaborators. Call once at startup,
// before routes are registered.
func Setup(e *booking.Engine, m *utils.Mailer, c *config.Config, l *zap.Logger) {
	engine = e
	mailer = m
	cfg = c
	logger = l
}

// renderError maps the engine's error taxonomy onto HTTP. Every surfaced
// error carries its stable kind; nothing is swallowed.
func renderError(c *fiber.Ctx, err error) error {
	var (
		ve *booking.ValidationError
		ce *booking.ConflictError
		te *booking.InvalidTransitionError
		se *booking.SyncError
	)
	switch {
	case errors.As(err, &ve):
		return c.Status(fiber.StatusBadRequest).JSON(utils.ErrorResponse{
			Kind: ve.Kind(), Message: ve.Error(),
		})
	case errors.As(err, &ce):
		return c.Status(fiber.StatusConflict).JSON(utils.ErrorResponse{
			Kind: ce.Kind(), Message: ce.Error(),
		})
	case errors.As(err, &te):
		return c.Status(fiber.StatusConflict).JSON(utils.ErrorResponse{
			Kind: te.Kind(), Message: te.Error(),
		})
	case errors.As(err, &se):
		status := fiber.StatusConflict
		if se.Reason == booking.SyncUnreachable {
			status = fiber.StatusServiceUnavailable
		}
		return c.Status(status).JSON(utils.ErrorResponse{
			Kind: se.Kind(), Message: se.Error(),
		})
	case errors.Is(err, booking.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(utils.ErrorResponse{
			Kind: "not_found", Message: "Appointment not found",
		})
	case errors.Is(err, errMentorOnly):
		return c.Status(fiber.StatusForbidden).JSON(utils.ErrorResponse{
			Kind: "forbidden", Message: errMentorOnly.Error(),
		})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(utils.ErrorResponse{
		Kind: "internal", Message: "Unexpected error", Error: err.Error(),
	})
}

func callerID(c *fiber.Ctx) uint {
	id, _ := c.Locals("userID").(uint)
	return id
}

func callerRole(c *fiber.Ctx) string {
	role, _ := c.Locals("role").(string)
	return role
}
