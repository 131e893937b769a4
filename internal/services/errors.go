// Package services defines the business logic for the bot lifecycle. This
// file centralizes common service-level error values so that they can be
// consistently returned by service methods and checked by callers.
//
// These errors are intended for internal use by the service layer and
// translation into user-facing messages or HTTP status codes should be
// performed at the handler/controller layer.
package services

import (
	"errors"
	"fmt"
)

var (
	// ErrBotNotFound indicates that the requested bot does not exist or is
	// not accessible to the current project.
	ErrBotNotFound = errors.New("bot not found")

	// ErrProjectNotFound indicates that the creation request referenced a
	// project that does not exist.
	ErrProjectNotFound = errors.New("project not found")

	// ErrInsufficientCredits is returned when the project's credit balance
	// has dropped below the -1 grace threshold.
	ErrInsufficientCredits = errors.New("project has run out of credits")

	// ErrMissingCredentials is returned when the meeting platform requires a
	// stored credential (Zoom OAuth) that the project does not have.
	ErrMissingCredentials = errors.New("zoom oauth credentials are required to create a zoom bot")

	// ErrIllegalTransition is returned by the event manager when the bot's
	// current state is not a legal source for the requested event. Callers
	// must surface it as a conflict, never retry it silently.
	ErrIllegalTransition = errors.New("illegal lifecycle transition")
)

// ValidationError reports a request-level problem with a specific field.
// It is returned synchronously before any side effect takes place.
type ValidationError struct {
	Field string
	Msg   string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

// invalidField is a small constructor used across the creation workflow.
func invalidField(field, msg string) *ValidationError {
	return &ValidationError{Field: field, Msg: msg}
}
