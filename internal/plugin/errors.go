package plugin

import (
	"errors"
	"strconv"

	"github.com/dshills/setonix/internal/plugin/api"
	"github.com/dshills/setonix/internal/plugin/event"
	plua "github.com/dshills/setonix/internal/plugin/lua"
)

// Error kinds. Every error returned by a Plugin matches exactly one of
// these with errors.Is.
var (
	// ErrEngine reports malformed script code, a runtime error raised by
	// the script, or a call the sandbox does not permit.
	ErrEngine = errors.New("engine error")

	// ErrProtocol reports a payload that is not a JSON object or event
	// state that cannot cross the Go/Lua boundary.
	ErrProtocol = errors.New("protocol error")

	// ErrCapability reports a host capability that failed or panicked
	// while a script was calling it.
	ErrCapability = errors.New("capability error")

	// ErrRegistration reports a subscription with an empty event name or
	// a handler that is not a function.
	ErrRegistration = errors.New("registration error")

	// ErrClosed is returned when using a plugin after Close.
	ErrClosed = errors.New("plugin is closed")
)

// Error describes a failed plugin operation.
type Error struct {
	// Kind is one of the error kind sentinels above.
	Kind error

	// Op is the operation that failed: "new", "run", "run_event" or "dispatch".
	Op string

	// Event is the event type being dispatched, if any.
	Event string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := "plugin: " + e.Op
	if e.Event != "" {
		msg += " " + strconv.Quote(e.Event)
	}
	msg += ": " + e.Kind.Error()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the error kind.
func (e *Error) Is(target error) bool {
	return target == e.Kind
}

// classify wraps err from the engine in an *Error of the matching kind.
// Errors raised by API modules are unpacked from the Lua error object so
// callers can reach them with errors.As.
func classify(op, eventName string, err error) error {
	if err == nil {
		return nil
	}

	var perr *Error
	if errors.As(err, &perr) {
		return err
	}

	if errors.Is(err, plua.ErrStateClosed) {
		return &Error{Kind: ErrClosed, Op: op, Event: eventName, Err: err}
	}

	kind := ErrEngine
	if cause, ok := api.Cause(err); ok {
		switch {
		case errors.Is(cause, api.ErrOutputFailed):
			kind = ErrCapability
		case errors.Is(cause, api.ErrInvalidRegistration):
			kind = ErrRegistration
		}
		err = replaceCause(err, cause)
	}

	return &Error{Kind: kind, Op: op, Event: eventName, Err: err}
}

// replaceCause swaps the engine error inside a handler failure for the Go
// error it carried, keeping the handler position.
func replaceCause(err, cause error) error {
	var herr *event.HandlerError
	if errors.As(err, &herr) {
		return &event.HandlerError{Event: herr.Event, Index: herr.Index, Err: cause}
	}
	return cause
}
