// Package lua provides the Lua runtime integration for the plugin system.
//
// This package wraps the gopher-lua library to provide:
//   - Sandboxed Lua state management
//   - JSON-shaped Go-Lua value conversion
//   - Serialized access to a single, non-reentrant VM
//
// # State
//
// The State type manages a Lua runtime with sandboxing:
//
//	state, err := lua.NewState(lua.WithFrozenLibraries(true))
//	if err != nil {
//	    return err
//	}
//	defer state.Close()
//
//	if err := state.Execute(source); err != nil {
//	    return err
//	}
//
// All VM access goes through the State mutex. Work that must happen
// atomically (encode, call handlers, decode) runs inside Do:
//
//	err := state.Do(func(L *lua.LState) error {
//	    return L.CallByParam(lua.P{Fn: fn, Protect: true}, arg)
//	})
//
// # Sandbox
//
// The Sandbox restricts Lua code to data manipulation:
//   - base, table, string, math and coroutine are available
//   - dofile, loadfile, load, loadstring and module raise when called
//   - io is a stub whose members raise; os keeps only its clock functions
//   - require resolves only the libraries above
//   - library tables are read-only unless WithFrozenLibraries(false)
//
// Violations surface at the call site as ordinary Lua runtime errors.
//
// # Bridge
//
// The Bridge provides bidirectional type conversion:
//
//	bridge := state.Bridge()
//
//	// Go to Lua
//	luaVal, err := bridge.Encode(map[string]any{
//	    "name":  "test",
//	    "count": 42,
//	})
//
//	// Lua to Go
//	goVal, err := bridge.Decode(luaVal)
//
// Decoded numbers are always float64 and tables become []any or
// map[string]any, matching what encoding/json produces.
package lua
