package api

import (
	"errors"
	"strconv"

	lua "github.com/yuin/gopher-lua"
)

// Sentinel errors raised into Lua by API modules.
var (
	// ErrOutputFailed is matched by every OutputError.
	ErrOutputFailed = errors.New("output capability failed")

	// ErrInvalidRegistration is matched by every RegistrationError.
	ErrInvalidRegistration = errors.New("invalid event registration")
)

// errorTypeName keys the metatable of error objects in the Lua registry.
const errorTypeName = "setonix.error"

// OutputError reports a failed host output call made from a script.
type OutputError struct {
	// Line is the text the script tried to output.
	Line string

	// Panicked is true when the host callback panicked instead of failing.
	Panicked bool

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *OutputError) Error() string {
	if e.Panicked {
		return "output callback panicked: " + e.Err.Error()
	}
	return "output callback failed: " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *OutputError) Unwrap() error {
	return e.Err
}

// Is allows errors.Is to match OutputError with ErrOutputFailed.
func (e *OutputError) Is(target error) bool {
	return target == ErrOutputFailed
}

// RegistrationError reports a subscription call with bad arguments.
type RegistrationError struct {
	// Event is the event name given, possibly empty.
	Event string

	// Reason describes what was wrong.
	Reason string
}

// Error implements the error interface.
func (e *RegistrationError) Error() string {
	return "registering handler for event " + strconv.Quote(e.Event) + ": " + e.Reason
}

// Is allows errors.Is to match RegistrationError with ErrInvalidRegistration.
func (e *RegistrationError) Is(target error) bool {
	return target == ErrInvalidRegistration
}

// raise throws err into Lua as an error object. Scripts can catch it with
// pcall and print it with tostring; if it escapes, Cause recovers the Go
// error from the resulting *lua.ApiError.
func raise(L *lua.LState, err error) {
	mt := L.NewTypeMetatable(errorTypeName)
	if mt.RawGetString("__tostring") == lua.LNil {
		mt.RawSetString("__tostring", L.NewFunction(func(L *lua.LState) int {
			ud := L.CheckUserData(1)
			if e, ok := ud.Value.(error); ok {
				L.Push(lua.LString(e.Error()))
				return 1
			}
			L.Push(lua.LString("error"))
			return 1
		}))
		mt.RawSetString("__metatable", lua.LString("error"))
	}

	ud := L.NewUserData()
	ud.Value = err
	L.SetMetatable(ud, mt)
	L.Error(ud, 1)
}

// Cause returns the Go error carried by a Lua error object raised from an
// API module, if err is (or wraps) such an error.
func Cause(err error) (error, bool) {
	var apiErr *lua.ApiError
	if !errors.As(err, &apiErr) {
		return nil, false
	}
	ud, ok := apiErr.Object.(*lua.LUserData)
	if !ok {
		return nil, false
	}
	cause, ok := ud.Value.(error)
	return cause, ok
}
