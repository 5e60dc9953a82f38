package domain

import "errors"

var (
	// ErrUnknownRule is returned when a rule id is not registered.
	ErrUnknownRule = errors.New("unknown alert rule")
	// ErrAlertNotFound is returned for ids absent from the active set.
	ErrAlertNotFound = errors.New("alert not found")
	// ErrInvalidTransition is returned when the state machine forbids the change.
	ErrInvalidTransition = errors.New("invalid alert transition")
	// ErrInvalidSuppression is returned for empty patterns or non-positive durations.
	ErrInvalidSuppression = errors.New("invalid suppression")
)
