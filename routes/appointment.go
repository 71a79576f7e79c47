package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/mentorbook/booking-app/controllers"
	"github.com/mentorbook/booking-app/middleware"
	"github.com/mentorbook/booking-app/models"
)

// SetupAppointmentRoutes configures all appointment related routes
func SetupAppointmentRoutes(app *fiber.App, jwtSecret string) {
	appointment := app.Group("/appointments", middleware.Protected(jwtSecret))
	appointment.Get("/", controllers.GetAppointments)
	appointment.Get("/:id", controllers.GetAppointment)
	appointment.Post("/", middleware.RequireRole(models.RoleStudent), controllers.CreateAppointment)

	// Mentor actions against the status machine.
	appointment.Post("/:id/:action<regex(approve|refuse|reactivate|cancel|finalize)>",
		middleware.RequireRole(models.RoleMentor), controllers.Transition)

	appointment.Put("/:id/call-link", middleware.RequireRole(models.RoleMentor), controllers.AttachCallLink)
	appointment.Delete("/:id/call-link", middleware.RequireRole(models.RoleMentor), controllers.RemoveCallLink)
	appointment.Put("/:id/recording", middleware.RequireRole(models.RoleMentor), controllers.AttachRecording)
	appointment.Delete("/:id/recording", middleware.RequireRole(models.RoleMentor), controllers.RemoveRecording)
}
