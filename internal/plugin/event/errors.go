package event

import (
	"errors"
	"strconv"
)

// Sentinel errors for the event protocol.
var (
	// ErrInvalidPayload is returned when a payload is not valid JSON.
	ErrInvalidPayload = errors.New("invalid event payload")

	// ErrNotObject is returned when a payload is valid JSON but not an object.
	ErrNotObject = errors.New("event payload is not a JSON object")

	// ErrInvalidChannel is returned when a channel value is not a small integer.
	ErrInvalidChannel = errors.New("invalid channel")

	// ErrInvalidDetails is returned when handler-mutated details cannot be read back.
	ErrInvalidDetails = errors.New("invalid event details")
)

// DecodeError reports which field of the details failed to decode.
type DecodeError struct {
	// Field is the details field, e.g. "target" or "needs_update".
	Field string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	return "decoding event details field " + e.Field + ": " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Is allows errors.Is to match DecodeError with ErrInvalidDetails.
func (e *DecodeError) Is(target error) bool {
	return target == ErrInvalidDetails
}

// HandlerError wraps the error of the handler that aborted a dispatch.
type HandlerError struct {
	// Event is the event name being dispatched.
	Event string

	// Index is the zero-based registration index of the failing handler.
	Index int

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *HandlerError) Error() string {
	return "handler " + strconv.Itoa(e.Index) + " for event " + strconv.Quote(e.Event) + ": " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *HandlerError) Unwrap() error {
	return e.Err
}
