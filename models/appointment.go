package models

import (
	"time"

	"gorm.io/gorm"
)

type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusRefused   AppointmentStatus = "refused"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusFinalized AppointmentStatus = "finalized"
)

// Valid reports whether s is one of the five known statuses.
func (s AppointmentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusRefused, StatusCancelled, StatusFinalized:
		return true
	}
	return false
}

// AppointmentEvent is one append-only audit entry. Rows are never updated
// or deleted, only inserted.
type AppointmentEvent struct {
	ID            uint      `json:"id" gorm:"primaryKey"`
	AppointmentID string    `json:"appointment_id" gorm:"index"`
	Timestamp     time.Time `json:"timestamp"`
	Action        string    `json:"action"`
	Details       string    `json:"details"`
}

type Appointment struct {
	ID        string `json:"id" gorm:"primaryKey"`
	MentorID  uint   `json:"mentor_id" gorm:"index:idx_confirmed_slot,unique,where:status = 'confirmed'"`
	StudentID uint   `json:"student_id" gorm:"index"`

	// Date is the calendar day ("2006-01-02"); TimeSlot the slot start
	// ("15:04"). Both are compared as literal strings everywhere.
	Date     string `json:"date" gorm:"index:idx_confirmed_slot,unique,where:status = 'confirmed'"`
	TimeSlot string `json:"time_slot" gorm:"index:idx_confirmed_slot,unique,where:status = 'confirmed'"`

	Subject string `json:"subject"`
	Phone   string `json:"phone,omitempty"`

	Status        AppointmentStatus `json:"status"`
	RefusalReason string            `json:"refusal_reason,omitempty"`

	CallLink       string     `json:"call_link,omitempty"`
	CallAttachedAt *time.Time `json:"call_attached_at,omitempty"`

	RecordingLink       string     `json:"recording_link,omitempty"`
	RecordingPassword   string     `json:"recording_password,omitempty"`
	RecordingNotes      string     `json:"recording_notes,omitempty"`
	RecordingAttachedAt *time.Time `json:"recording_attached_at,omitempty"`

	FinalizedAt *time.Time `json:"finalized_at,omitempty"`
	MentorNotes string     `json:"mentor_notes,omitempty"`

	History []AppointmentEvent `json:"edit_history" gorm:"foreignKey:AppointmentID"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (a *Appointment) BeforeCreate(tx *gorm.DB) error {
	if a.Status == "" {
		a.Status = StatusPending
	}
	return nil
}

// AddEvent appends an audit entry. History is append-only; nothing in the
// codebase may reorder or rewrite it.
func (a *Appointment) AddEvent(at time.Time, action, details string) {
	a.History = append(a.History, AppointmentEvent{
		AppointmentID: a.ID,
		Timestamp:     at,
		Action:        action,
		Details:       details,
	})
}

// Clone returns a deep copy, so cache snapshots cannot alias the history
// slice of the stored entry.
func (a Appointment) Clone() Appointment {
	c := a
	if a.History != nil {
		c.History = make([]AppointmentEvent, len(a.History))
		copy(c.History, a.History)
	}
	if a.CallAttachedAt != nil {
		t := *a.CallAttachedAt
		c.CallAttachedAt = &t
	}
	if a.RecordingAttachedAt != nil {
		t := *a.RecordingAttachedAt
		c.RecordingAttachedAt = &t
	}
	if a.FinalizedAt != nil {
		t := *a.FinalizedAt
		c.FinalizedAt = &t
	}
	return c
}
