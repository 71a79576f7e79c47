package controllers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/mentorbook/booking-app/models"
)

// GetAvailability returns the logged-in mentor's weekly template.
func GetAvailability(c *fiber.Ctx) error {
	week, err := engine.GetAvailability(c.Context(), callerID(c))
	if err != nil {
		return renderError(c, err)
	}
	return c.JSON(week)
}

// SaveAvailability replaces the logged-in mentor's weekly template
// wholesale.
func SaveAvailability(c *fiber.Ctx) error {
	var week []models.MentorAvailability
	if err := c.BodyParser(&week); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Failed to parse request body",
		})
	}

	if err := engine.SaveAvailability(c.Context(), callerID(c), week, cfg.SlotMinutes); err != nil {
		return renderError(c, err)
	}

	saved, err := engine.GetAvailability(c.Context(), callerID(c))
	if err != nil {
		return renderError(c, err)
	}
	return c.JSON(saved)
}

// GetMentorSlots lists the slots a mentor offers on a given date.
func GetMentorSlots(c *fiber.Ctx) error {
	mentorID, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid mentor id",
		})
	}

	slots, err := engine.GetSlots(c.Context(), uint(mentorID), c.Query("date"))
	if err != nil {
		return renderError(c, err)
	}
	return c.JSON(fiber.Map{
		"mentor_id": mentorID,
		"date":      c.Query("date"),
		"slots":     slots,
	})
}

// ClassifySlot is the advisory availability check a student runs before
// submitting a request.
func ClassifySlot(c *fiber.Ctx) error {
	mentorID, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid mentor id",
		})
	}

	cls, err := engine.ClassifySlot(uint(mentorID), callerID(c), c.Query("date"), c.Query("slot"))
	if err != nil {
		return renderError(c, err)
	}
	return c.JSON(fiber.Map{
		"classification": cls,
	})
}
