package domain

import "errors"

var (
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrRoleConflict      = errors.New("role already taken")
	ErrRoleRestricted    = errors.New("interviewer role not allowed twice in a row")
	ErrFeedbackRequired  = errors.New("feedback for the previous session is required")
	ErrNotParticipant    = errors.New("user is not a session participant")
	ErrDuplicateFeedback = errors.New("feedback already submitted")
	ErrInvalidLink       = errors.New("invalid video link")
	ErrJoinDenied        = errors.New("join denied")
	ErrNotInterviewer    = errors.New("only the interviewer may do this")
	ErrInvalidRole       = errors.New("invalid role")

	ErrSessionNotFound      = errors.New("session not found")
	ErrEntryNotFound        = errors.New("queue entry not found")
	ErrNotificationNotFound = errors.New("notification not found")
	ErrDuplicateEntry       = errors.New("waiting entry already exists")

	// ErrTxConflict marks a store transaction aborted by a concurrent writer.
	ErrTxConflict = errors.New("transaction conflict")
)
