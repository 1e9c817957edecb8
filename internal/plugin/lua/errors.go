package lua

import "errors"

// Errors for Lua state operations.
var (
	// ErrStateClosed is returned when operating on a closed state.
	ErrStateClosed = errors.New("lua state is closed")

	// ErrForbidden is wrapped by errors raised when a sandboxed script calls
	// a function outside its allow-list.
	ErrForbidden = errors.New("sandbox: operation not permitted")

	// ErrCycle is returned when decoding a table that references itself.
	ErrCycle = errors.New("lua value contains a reference cycle")
)

// ConversionError describes a value that cannot cross the Go/Lua boundary.
type ConversionError struct {
	// Path locates the offending value, e.g. "payload.items[2]".
	Path string

	// Type is the Lua or Go type name that could not be converted.
	Type string

	// Err is an optional underlying cause.
	Err error
}

// Error implements the error interface.
func (e *ConversionError) Error() string {
	msg := "cannot convert " + e.Type
	if e.Path != "" {
		msg += " at " + e.Path
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *ConversionError) Unwrap() error {
	return e.Err
}
