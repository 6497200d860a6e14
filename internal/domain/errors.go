package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidFieldAction signals an unknown action suffix in a query or filter key.
	ErrInvalidFieldAction = errors.New("invalid field action")
	// ErrUnsupportedStep signals a step the compiler does not know how to handle.
	ErrUnsupportedStep = errors.New("unsupported step")
	// ErrIndexOutOfRange signals an element access past the end of the results.
	ErrIndexOutOfRange = errors.New("index out of range")
	// ErrNoObjectLookup signals an object result set without a lookup to resolve ids.
	ErrNoObjectLookup = errors.New("no object lookup configured")
	// ErrNoBackend signals that no backend could be resolved for a search.
	ErrNoBackend = errors.New("no search backend configured")
)

// InvalidFieldActionError wraps ErrInvalidFieldAction with the offending suffix.
type InvalidFieldActionError struct {
	Key    string
	Action string
}

func (e *InvalidFieldActionError) Error() string {
	return fmt.Sprintf("%s is not a valid field action", e.Action)
}

func (e *InvalidFieldActionError) Unwrap() error { return ErrInvalidFieldAction }

// NewInvalidFieldAction creates an invalid field action error.
func NewInvalidFieldAction(key, action string) error {
	return &InvalidFieldActionError{Key: key, Action: action}
}

// UnsupportedStepError wraps ErrUnsupportedStep with the step action name.
type UnsupportedStepError struct {
	Action string
}

func (e *UnsupportedStepError) Error() string {
	return fmt.Sprintf("%s: %q", ErrUnsupportedStep.Error(), e.Action)
}

func (e *UnsupportedStepError) Unwrap() error { return ErrUnsupportedStep }
