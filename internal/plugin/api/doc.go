// Package api provides the Lua API modules exposed to plugin scripts.
//
// A script sees exactly three globals beyond the sandboxed standard
// libraries:
//
//   - print: write one line through the host's output capability
//   - onEvent: subscribe a handler to a named event
//   - event: the same subscription through field assignment or method calls
//
// # Architecture
//
// Each API module implements the Module interface:
//
//	type Module interface {
//	    Name() string
//	    Globals() []string
//	    Register(L *lua.LState) error
//	}
//
// Modules are collected in a Registry, which rejects two modules reserving
// the same global and installs them into a Lua state in registration order.
//
// # Capabilities
//
// The host grants capabilities through Callbacks. Output is asynchronous on
// the host side: OutputFunc returns a one-shot completion channel. The print
// global blocks the calling script until that channel fires, so scripts keep
// straight-line control flow.
//
// # Errors
//
// Failures inside a module are raised into Lua as error objects wrapping a
// Go error (OutputError, RegistrationError). Scripts can catch them with
// pcall; when they escape, Cause recovers the Go error from the engine's
// *lua.ApiError.
//
// # Usage
//
//	handlers := event.NewRegistry[*lua.LFunction]()
//	registry, err := api.DefaultRegistry(api.DefaultCallbacks(), handlers)
//	if err != nil {
//	    return err
//	}
//	err = registry.InjectAll(L)
//
// From Lua:
//
//	onEvent("join", function(ev)
//	    print("joined: " .. ev.payload.name)
//	end)
//
//	event.chat = function(ev)
//	    ev:cancel()
//	end
package api
