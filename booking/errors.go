package booking

import (
	"errors"
	"fmt"

	"github.com/mentorbook/booking-app/models"
)

// ErrNotFound is returned when an appointment id is unknown to both the
// cache and the authoritative store.
var ErrNotFound = errors.New("appointment not found")

// ValidationError means the caller's input was bad: empty subject,
// lead-time violation, malformed date or slot. Never retried.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Kind() string { return "validation" }

// ConflictError means the requested slot was not free at classification
// time. The caller should re-fetch slots and retry with a fresh choice.
type ConflictError struct {
	Classification Classification
}

func (e *ConflictError) Error() string {
	switch e.Classification {
	case BlockedConfirmed:
		return "slot already has a confirmed appointment"
	case BlockedOwnPending:
		return "you already have a pending request for this slot"
	}
	return "slot unavailable"
}

func (e *ConflictError) Kind() string { return "conflict" }

// InvalidTransitionError names the rejected (current status, attempted
// action) pair.
type InvalidTransitionError struct {
	From   models.AppointmentStatus
	Action Action
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s an appointment in status %q", e.Action, e.From)
}

func (e *InvalidTransitionError) Kind() string { return "invalid_transition" }

type SyncErrorKind string

const (
	// SyncUnreachable: the authoritative store could not be reached.
	// Retried internally with bounded backoff before surfacing.
	SyncUnreachable SyncErrorKind = "unreachable"
	// SyncRemoteRejected: the store refused the write, e.g. the losing
	// side of a confirmed-slot race. Never retried automatically.
	SyncRemoteRejected SyncErrorKind = "remote_rejected"
	// SyncStaleWrite: the store holds a newer version than the caller
	// last observed. Caller must re-fetch and retry.
	SyncStaleWrite SyncErrorKind = "stale_write"
)

type SyncError struct {
	Reason  SyncErrorKind
	Message string
	Err     error
}

func (e *SyncError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Reason)
	}
	if e.Err != nil {
		return fmt.Sprintf("sync %s: %s: %v", e.Reason, msg, e.Err)
	}
	return fmt.Sprintf("sync %s: %s", e.Reason, msg)
}

func (e *SyncError) Unwrap() error { return e.Err }

func (e *SyncError) Kind() string { return "sync_" + string(e.Reason) }

func unreachable(err error) *SyncError {
	return &SyncError{Reason: SyncUnreachable, Message: "authoritative store unreachable", Err: err}
}

func remoteRejected(msg string) *SyncError {
	return &SyncError{Reason: SyncRemoteRejected, Message: msg}
}

func staleWrite(msg string) *SyncError {
	return &SyncError{Reason: SyncStaleWrite, Message: msg}
}
