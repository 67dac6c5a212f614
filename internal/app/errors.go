package app

import "errors"

// ErrUnknownTask and related errors describe request and runtime failures.
var (
	ErrUnknownTask         = errors.New("unknown task")
	ErrNoFocusedTask       = errors.New("no focused task")
	ErrDuplicateComponent  = errors.New("duplicate component")
	ErrTimeout             = errors.New("timed out waiting for settled state")
	ErrJournalUnavailable  = errors.New("lifecycle journal unavailable")
	ErrInvalidLaunchTarget = errors.New("invalid launch target")
)
