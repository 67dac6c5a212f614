package domain

import "errors"

var (
	ErrInvalidID          = errors.New("invalid id")
	ErrInvalidComponent   = errors.New("invalid component")
	ErrInvalidLaunchMode  = errors.New("invalid launch mode")
	ErrInvalidAffinity    = errors.New("invalid task affinity")
	ErrInvalidIntentFlag  = errors.New("invalid intent flag")
	ErrInvalidDescriptor  = errors.New("invalid activity descriptor")
	ErrInvalidTransition  = errors.New("invalid lifecycle transition")
	ErrUnknownComponent   = errors.New("unknown component")
	ErrInvariantViolation = errors.New("invariant violation")
)
