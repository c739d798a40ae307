package app

import "errors"

var (
	// ErrValidation marks client input rejected before any write.
	ErrValidation = errors.New("validation failed")

	ErrForbidden            = errors.New("forbidden")
	ErrMemberNotFound       = errors.New("member not found")
	ErrVehicleNotFound      = errors.New("vehicle not found")
	ErrReceiptNotFound      = errors.New("receipt not found")
	ErrEmailTaken           = errors.New("email already registered")
	ErrInviteCodeTaken      = errors.New("invitation code already in use")
	ErrBadCredentials       = errors.New("invalid email or password")
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrScheduleUninitialized means no maintenance table exists yet for
	// the vehicle; callers must sync from a manual first.
	ErrScheduleUninitialized = errors.New("maintenance schedule not initialized")

	// ErrScheduleStale means the AI response could not be parsed and the
	// previously persisted schedule was kept. Distinct from transport
	// failures: prior data is intact, only the refresh was skipped.
	ErrScheduleStale = errors.New("stale schedule retained: ai response unparsable")
)
