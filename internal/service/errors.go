package service

import (
	"errors"
	"fmt"
)

// Kind classifies a caller-visible failure.
type Kind string

const (
	KindNotFound               Kind = "not_found"
	KindAlreadyRegistered      Kind = "already_registered"
	KindCapacityExceeded       Kind = "capacity_exceeded"
	KindTeamTooLarge           Kind = "team_too_large"
	KindMemberConflict         Kind = "member_conflict"
	KindRegistrationClosed     Kind = "registration_closed"
	KindCancellationNotAllowed Kind = "cancellation_not_allowed"
	KindSubmissionClosed       Kind = "submission_closed"
	KindUnauthorized           Kind = "unauthorized"
	KindForbidden              Kind = "forbidden"
	KindValidation             Kind = "validation"
	KindConflict               Kind = "conflict"
)

// Error is a domain failure with a message safe to show to users.
type Error struct {
	Kind    Kind
	Message string
	// Fields holds per-field messages for validation failures.
	Fields map[string]string
}

func (e *Error) Error() string { return e.Message }

// Is matches another *Error of the same kind, so errors.Is(err,
// &Error{Kind: KindNotFound}) works without comparing messages.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the Kind of err, or "" for errors that are not domain failures.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Messages shown to users.
const (
	msgCompetitionNotFound   = "Competition not found"
	msgRegistrationNotFound  = "Registration not found"
	msgUserNotFound          = "User not found"
	msgCompetitionInactive   = "Competition is not active"
	msgRegistrationEnded     = "Competition registration has ended"
	msgAlreadyRegistered     = "You are already registered for this competition"
	msgNoSeats               = "No seats remaining for this competition"
	msgTeamTooLarge          = "Team size cannot exceed %d members"
	msgMembersUnavailable    = "Some team members not found or inactive"
	msgMemberIsLeader        = "You cannot add yourself as a team member"
	msgMemberRegistered      = "Team member %s is already registered for this competition"
	msgMembersTaken          = "A team member is already registered for this competition"
	msgOnlyLeaderCancels     = "Only team leader can cancel registration"
	msgCancelAfterStart      = "Cannot cancel registration after competition has started"
	msgCancelAfterSubmission = "Cannot cancel registration after submitting project"
)
