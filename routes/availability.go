package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/mentorbook/booking-app/controllers"
	"github.com/mentorbook/booking-app/middleware"
	"github.com/mentorbook/booking-app/models"
)

// SetupAvailabilityRoutes configures the weekly template and slot lookup
// routes
func SetupAvailabilityRoutes(app *fiber.App, jwtSecret string) {
	availability := app.Group("/availability", middleware.Protected(jwtSecret))
	availability.Get("/", middleware.RequireRole(models.RoleMentor), controllers.GetAvailability)
	availability.Put("/", middleware.RequireRole(models.RoleMentor), controllers.SaveAvailability)

	mentors := app.Group("/mentors", middleware.Protected(jwtSecret))
	mentors.Get("/:id/slots", controllers.GetMentorSlots)
	mentors.Get("/:id/classify", controllers.ClassifySlot)
}
