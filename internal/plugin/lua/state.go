// Package lua provides the Lua runtime integration for the plugin system.
package lua

import (
	"fmt"
	"sync"

	lua "github.com/yuin/gopher-lua"
)

// State wraps gopher-lua with the sandbox and value bridge used by plugins.
//
// IMPORTANT: gopher-lua's LState is not goroutine-safe and not reentrant.
// Every entry into the VM goes through the State mutex. Callbacks invoked
// from Lua (Go functions registered as globals) already run under that
// mutex and must use the *lua.LState they receive instead of calling back
// into State methods, which would deadlock.
type State struct {
	L *lua.LState

	mu sync.Mutex

	// Configuration
	freezeLibraries bool
	coroutines      bool

	sandbox *Sandbox
	bridge  *Bridge

	closed bool
}

// StateOption configures a State.
type StateOption func(*State)

// WithFrozenLibraries makes the standard library tables read-only to scripts.
func WithFrozenLibraries(freeze bool) StateOption {
	return func(s *State) {
		s.freezeLibraries = freeze
	}
}

// WithCoroutines controls whether the coroutine library is opened.
func WithCoroutines(enabled bool) StateOption {
	return func(s *State) {
		s.coroutines = enabled
	}
}

// NewState creates a new sandboxed Lua state.
func NewState(opts ...StateOption) (*State, error) {
	state := &State{
		freezeLibraries: true,
		coroutines:      true,
	}

	for _, opt := range opts {
		opt(state)
	}

	// Create Lua state with limited libraries
	L := lua.NewState(lua.Options{
		SkipOpenLibs: true, // We'll open selectively
	})

	state.L = L
	if err := state.doWithRecovery(func() error {
		openSafeLibraries(L, state.coroutines)
		return nil
	}); err != nil {
		L.Close()
		return nil, fmt.Errorf("opening lua libraries: %w", err)
	}

	state.sandbox = NewSandbox(L, state.freezeLibraries)
	if err := state.doWithRecovery(state.sandbox.Install); err != nil {
		L.Close()
		return nil, fmt.Errorf("installing sandbox: %w", err)
	}
	state.bridge = NewBridge(L)

	return state, nil
}

// openSafeLibraries opens the data-manipulation subset of the standard library.
func openSafeLibraries(L *lua.LState, coroutines bool) {
	// Open base library (print, type, pairs, ipairs, etc.)
	openLibrary(L, lua.BaseLibName, lua.OpenBase)

	openLibrary(L, lua.TabLibName, lua.OpenTable)
	openLibrary(L, lua.StringLibName, lua.OpenString)
	openLibrary(L, lua.MathLibName, lua.OpenMath)
	if coroutines {
		openLibrary(L, lua.CoroutineLibName, lua.OpenCoroutine)
	}

	// os is opened only so the sandbox can keep its clock functions.
	// Note: These are intentionally NOT opened:
	// - io (file system access)
	// - debug (can bypass sandbox)
	// - package (can load arbitrary modules)
	// - channel (goroutine handoff)
	openLibrary(L, lua.OsLibName, lua.OpenOs)
}

func openLibrary(L *lua.LState, name string, fn lua.LGFunction) {
	L.Push(L.NewFunction(fn))
	L.Push(lua.LString(name))
	L.Call(1, 0)
}

// Execute runs top-level Lua source.
// Execution is synchronous - the call blocks until completion or error.
func (s *State) Execute(source string) error {
	return s.Do(func(L *lua.LState) error {
		return L.DoString(source)
	})
}

// Do runs fn with exclusive access to the underlying LState.
// Panics raised inside fn are recovered and returned as errors.
func (s *State) Do(fn func(L *lua.LState) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStateClosed
	}

	top := s.L.GetTop()
	defer func() {
		// Discard anything a failed call left on the stack.
		if s.L.GetTop() > top {
			s.L.SetTop(top)
		}
	}()

	return s.doWithRecovery(func() error {
		return fn(s.L)
	})
}

// doWithRecovery executes a function with panic recovery.
func (s *State) doWithRecovery(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = fmt.Errorf("lua panic: %w", e)
				return
			}
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()
	return fn()
}

// DefineGlobal registers a Go function as a global Lua function.
func (s *State) DefineGlobal(name string, fn lua.LGFunction) error {
	return s.Do(func(L *lua.LState) error {
		L.SetGlobal(name, L.NewFunction(fn))
		return nil
	})
}

// SetGlobal sets a global variable.
func (s *State) SetGlobal(name string, value lua.LValue) error {
	return s.Do(func(L *lua.LState) error {
		L.SetGlobal(name, value)
		return nil
	})
}

// GetGlobal returns a global variable value, or LNil once the state is closed.
func (s *State) GetGlobal(name string) lua.LValue {
	value := lua.LValue(lua.LNil)
	_ = s.Do(func(L *lua.LState) error {
		value = L.GetGlobal(name)
		return nil
	})
	return value
}

// Encode converts a Go value into a Lua value owned by this state.
func (s *State) Encode(v any) (lua.LValue, error) {
	var out lua.LValue
	err := s.Do(func(*lua.LState) error {
		var err error
		out, err = s.bridge.Encode(v)
		return err
	})
	return out, err
}

// Decode converts a Lua value owned by this state into a JSON-shaped Go value.
func (s *State) Decode(lv lua.LValue) (any, error) {
	var out any
	err := s.Do(func(*lua.LState) error {
		var err error
		out, err = s.bridge.Decode(lv)
		return err
	})
	return out, err
}

// LuaState returns the underlying gopher-lua state.
//
// WARNING: Direct access to LState bypasses the mutex. Only use it from
// inside Do or from Go functions Lua is currently calling.
func (s *State) LuaState() *lua.LState {
	return s.L
}

// Sandbox returns the sandbox installed on this state.
func (s *State) Sandbox() *Sandbox {
	return s.sandbox
}

// Bridge returns the value bridge bound to this state.
// Like LuaState, it must only be used while holding the state (inside Do).
func (s *State) Bridge() *Bridge {
	return s.bridge
}

// IsClosed returns true if the state has been closed.
func (s *State) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close releases all resources associated with the Lua state.
// After Close is called, all other methods will return ErrStateClosed.
func (s *State) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.L.Close()
	s.closed = true
	return nil
}
