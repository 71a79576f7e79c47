package models

import "time"

const (
	RoleMentor  = "mentor"
	RoleStudent = "student"
)

// User exists here only so appointments have something to reference; the
// booking engine itself never reads more than the id and role.
type User struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name"`
	Email     string    `json:"email" gorm:"unique"`
	Password  string    `json:"password,omitempty"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
