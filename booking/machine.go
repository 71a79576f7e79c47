package booking

import (
	"fmt"
	"strings"
	"time"

	"github.com/mentorbook/booking-app/models"
)

type Action string

const (
	ActionApprove    Action = "approve"
	ActionRefuse     Action = "refuse"
	ActionReactivate Action = "reactivate"
	ActionCancel     Action = "cancel"
	ActionFinalize   Action = "finalize"

	// Side-effect-only updates; they never change status but still go
	// through the machine so the gate and the audit entry live here.
	actionAttachCall      Action = "attach_call_link"
	actionRemoveCall      Action = "remove_call_link"
	actionAttachRecording Action = "attach_recording"
	actionRemoveRecording Action = "remove_recording"
)

// transitions is the single source of truth for which action applies in
// which status. Call sites never set Status directly.
var transitions = map[models.AppointmentStatus]map[Action]bool{
	models.StatusPending:   {ActionApprove: true, ActionRefuse: true},
	models.StatusRefused:   {ActionReactivate: true},
	models.StatusConfirmed: {ActionCancel: true, ActionFinalize: true},
}

// CreateInput is a student's slot request.
type CreateInput struct {
	MentorID  uint   `json:"mentor_id"`
	StudentID uint   `json:"student_id"`
	Date      string `json:"date"`
	TimeSlot  string `json:"time_slot"`
	Subject   string `json:"subject"`
	Phone     string `json:"phone"`
}

// TransitionInput carries a mentor action against an existing appointment.
type TransitionInput struct {
	Action Action `json:"action"`
	// Reason accompanies refuse (optional) and cancel (required).
	Reason string `json:"reason"`
	// Target picks where a reactivation lands: pending (default) or
	// confirmed.
	Target models.AppointmentStatus `json:"target"`
	// Notes are kept on finalize.
	Notes string `json:"notes"`
	// Optional schedule/content edits, honoured on reactivate only.
	NewDate     string `json:"new_date"`
	NewTimeSlot string `json:"new_time_slot"`
	NewSubject  string `json:"new_subject"`
	NewPhone    string `json:"new_phone"`
}

// RecordingInput is the attachment payload for a finalized (or elapsed
// confirmed) appointment.
type RecordingInput struct {
	URL      string `json:"url"`
	Password string `json:"password"`
	Notes    string `json:"notes"`
}

// StateMachine owns every appointment status change and the audit entries
// they produce. It mutates the appointment passed to it; callers hand it a
// copy and persist through the sync coordinator afterwards.
type StateMachine struct {
	leadTime time.Duration
}

func NewStateMachine(leadTime time.Duration) *StateMachine {
	return &StateMachine{leadTime: leadTime}
}

// NewRequest validates a create and returns the pending appointment with
// its initial history entry. Conflict classification happens outside: the
// detector advises before this runs, and the store re-validates at commit.
func (m *StateMachine) NewRequest(in CreateInput, now time.Time) (*models.Appointment, error) {
	if strings.TrimSpace(in.Subject) == "" {
		return nil, &ValidationError{Field: "subject", Message: "subject is required"}
	}
	if err := m.checkLeadTime(in.Date, in.TimeSlot, now); err != nil {
		return nil, err
	}

	appt := &models.Appointment{
		MentorID:  in.MentorID,
		StudentID: in.StudentID,
		Date:      in.Date,
		TimeSlot:  in.TimeSlot,
		Subject:   strings.TrimSpace(in.Subject),
		Phone:     in.Phone,
		Status:    models.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	appt.AddEvent(now, "created", fmt.Sprintf("requested %s %s", in.Date, in.TimeSlot))
	return appt, nil
}

// Apply runs one transition on appt in place.
func (m *StateMachine) Apply(appt *models.Appointment, in TransitionInput, now time.Time) error {
	if !transitions[appt.Status][in.Action] {
		return &InvalidTransitionError{From: appt.Status, Action: in.Action}
	}

	switch in.Action {
	case ActionApprove:
		appt.Status = models.StatusConfirmed
		appt.AddEvent(now, "approved", "")

	case ActionRefuse:
		appt.Status = models.StatusRefused
		appt.RefusalReason = in.Reason
		appt.AddEvent(now, "refused", in.Reason)

	case ActionReactivate:
		return m.reactivate(appt, in, now)

	case ActionCancel:
		if strings.TrimSpace(in.Reason) == "" {
			return &ValidationError{Field: "reason", Message: "cancellation reason is required"}
		}
		appt.Status = models.StatusCancelled
		appt.AddEvent(now, "cancelled", in.Reason)

	case ActionFinalize:
		appt.Status = models.StatusFinalized
		appt.FinalizedAt = &now
		appt.MentorNotes = in.Notes
		appt.AddEvent(now, "finalized", in.Notes)
	}

	appt.UpdatedAt = now
	return nil
}

func (m *StateMachine) reactivate(appt *models.Appointment, in TransitionInput, now time.Time) error {
	target := in.Target
	if target == "" {
		target = models.StatusPending
	}
	if target != models.StatusPending && target != models.StatusConfirmed {
		return &ValidationError{Field: "target", Message: fmt.Sprintf("reactivation target must be pending or confirmed, got %q", target)}
	}

	if in.NewDate != "" || in.NewTimeSlot != "" {
		date, slot := appt.Date, appt.TimeSlot
		if in.NewDate != "" {
			date = in.NewDate
		}
		if in.NewTimeSlot != "" {
			slot = in.NewTimeSlot
		}
		if err := m.checkLeadTime(date, slot, now); err != nil {
			return err
		}
		appt.Date, appt.TimeSlot = date, slot
	}
	if in.NewSubject != "" {
		appt.Subject = in.NewSubject
	}
	if in.NewPhone != "" {
		appt.Phone = in.NewPhone
	}

	previous := appt.RefusalReason
	appt.RefusalReason = ""
	appt.Status = target
	appt.AddEvent(now, "reactivated", fmt.Sprintf("to %s, reason: %s", target, previous))
	appt.UpdatedAt = now
	return nil
}

// AttachCallLink sets the meeting link. Permitted only while confirmed.
func (m *StateMachine) AttachCallLink(appt *models.Appointment, url string, now time.Time) error {
	if appt.Status != models.StatusConfirmed {
		return &InvalidTransitionError{From: appt.Status, Action: actionAttachCall}
	}
	if strings.TrimSpace(url) == "" {
		return &ValidationError{Field: "url", Message: "call link is required"}
	}
	appt.CallLink = url
	appt.CallAttachedAt = &now
	appt.AddEvent(now, "call_link_attached", url)
	appt.UpdatedAt = now
	return nil
}

func (m *StateMachine) RemoveCallLink(appt *models.Appointment, now time.Time) error {
	if appt.Status != models.StatusConfirmed {
		return &InvalidTransitionError{From: appt.Status, Action: actionRemoveCall}
	}
	appt.CallLink = ""
	appt.CallAttachedAt = nil
	appt.AddEvent(now, "call_link_removed", "")
	appt.UpdatedAt = now
	return nil
}

// AttachRecording sets the recording fields. Permitted while finalized,
// or while confirmed once the slot has elapsed, so a mentor who finalizes
// late can still upload the recording first.
func (m *StateMachine) AttachRecording(appt *models.Appointment, in RecordingInput, now time.Time) error {
	if err := m.recordingGate(appt, actionAttachRecording, now); err != nil {
		return err
	}
	if strings.TrimSpace(in.URL) == "" {
		return &ValidationError{Field: "url", Message: "recording link is required"}
	}
	appt.RecordingLink = in.URL
	appt.RecordingPassword = in.Password
	appt.RecordingNotes = in.Notes
	appt.RecordingAttachedAt = &now
	appt.AddEvent(now, "recording_attached", in.URL)
	appt.UpdatedAt = now
	return nil
}

func (m *StateMachine) RemoveRecording(appt *models.Appointment, now time.Time) error {
	if err := m.recordingGate(appt, actionRemoveRecording, now); err != nil {
		return err
	}
	appt.RecordingLink = ""
	appt.RecordingPassword = ""
	appt.RecordingNotes = ""
	appt.RecordingAttachedAt = nil
	appt.AddEvent(now, "recording_removed", "")
	appt.UpdatedAt = now
	return nil
}

func (m *StateMachine) recordingGate(appt *models.Appointment, action Action, now time.Time) error {
	if appt.Status == models.StatusFinalized {
		return nil
	}
	if appt.Status == models.StatusConfirmed {
		elapsed, err := HasElapsed(appt.Date, appt.TimeSlot, now)
		if err != nil {
			return err
		}
		if elapsed {
			return nil
		}
	}
	return &InvalidTransitionError{From: appt.Status, Action: action}
}

func (m *StateMachine) checkLeadTime(date, slot string, now time.Time) error {
	start, err := combine(date, slot, now.Location())
	if err != nil {
		return &ValidationError{Field: "time_slot", Message: "malformed date or slot"}
	}
	if start.Before(now.Add(m.leadTime)) {
		return &ValidationError{
			Field:   "time_slot",
			Message: fmt.Sprintf("slot must start at least %s from now", m.leadTime),
		}
	}
	return nil
}
