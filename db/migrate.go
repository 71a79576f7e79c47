package db

import (
	"log"

	"github.com/mentorbook/booking-app/models"
)

// Migrate applies the schema. The partial unique index on confirmed
// (mentor_id, date, time_slot) comes from the Appointment model tags and
// is what ultimately enforces slot uniqueness across competing writers.
func Migrate() {
	err := DB.AutoMigrate(
		&models.User{},
		&models.Appointment{},
		&models.AppointmentEvent{},
		&models.MentorAvailability{},
	)
	if err != nil {
		log.Fatal("Failed to run migrations: ", err)
	}

	log.Println("✅ Migrations applied successfully!")
}
