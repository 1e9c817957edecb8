package lua

import (
	"sort"

	lua "github.com/yuin/gopher-lua"
)

// Sandbox restricts Lua execution to data manipulation.
//
// Nothing is rejected at load time. Forbidden globals are replaced by stubs
// that raise an error when called, so a script only fails once it actually
// reaches for something outside the allow-list.
type Sandbox struct {
	L *lua.LState

	freeze bool

	// forbidden records every stub installed, for introspection and tests.
	forbidden map[string]bool
}

// Globals removed from the base library. Each is replaced by a raising stub.
var forbiddenGlobals = []string{
	"dofile",     // Load and execute file
	"loadfile",   // Load file as function
	"load",       // Load chunk from a reader function
	"loadstring", // Compile arbitrary source
	"module",     // Package-based module definition
	"collectgarbage",
	"_printregs", // Writes VM registers to stdout
}

// os members a sandboxed script may call. Everything else raises.
var allowedOsFuncs = map[string]bool{
	"time":     true,
	"clock":    true,
	"date":     true,
	"difftime": true,
}

// Members the io stub reports as forbidden when indexed.
var ioFuncs = []string{
	"close", "flush", "input", "lines", "open", "output",
	"popen", "read", "tmpfile", "type", "write",
}

// Modules require resolves; they are the already-open library tables.
var requireableModules = map[string]bool{
	"string":    true,
	"table":     true,
	"math":      true,
	"coroutine": true,
}

// Library tables made read-only when freezing is enabled.
var frozenLibraries = []string{"string", "table", "math", "os", "coroutine"}

// NewSandbox creates a new sandbox for the Lua state.
func NewSandbox(L *lua.LState, freeze bool) *Sandbox {
	return &Sandbox{
		L:         L,
		freeze:    freeze,
		forbidden: make(map[string]bool),
	}
}

// Install sets up the sandbox restrictions.
func (s *Sandbox) Install() error {
	for _, name := range forbiddenGlobals {
		s.L.SetGlobal(name, s.forbid(name))
	}

	s.installRestrictedOs()
	s.installIoStub()
	s.installSafeRequire()

	if s.freeze {
		for _, name := range frozenLibraries {
			s.freezeLibrary(name)
		}
	}
	return nil
}

// forbid returns a function that raises a sandbox violation for name.
func (s *Sandbox) forbid(name string) *lua.LFunction {
	s.forbidden[name] = true
	return s.L.NewFunction(func(L *lua.LState) int {
		L.RaiseError("%s: %s", ErrForbidden.Error(), name)
		return 0
	})
}

// installRestrictedOs keeps the clock functions of os and stubs the rest.
func (s *Sandbox) installRestrictedOs() {
	restricted := s.L.NewTable()
	if full, ok := s.L.GetGlobal("os").(*lua.LTable); ok {
		full.ForEach(func(k, v lua.LValue) {
			name, ok := k.(lua.LString)
			if !ok {
				return
			}
			if allowedOsFuncs[string(name)] {
				restricted.RawSetString(string(name), v)
				return
			}
			restricted.RawSetString(string(name), s.forbid("os."+string(name)))
		})
	}
	s.L.SetGlobal("os", restricted)
}

// installIoStub installs an io table whose members all raise when called.
func (s *Sandbox) installIoStub() {
	stub := s.L.NewTable()
	for _, name := range ioFuncs {
		stub.RawSetString(name, s.forbid("io."+name))
	}
	s.L.SetGlobal("io", stub)
}

// installSafeRequire replaces require with a version that only returns the
// library tables already opened in this state.
func (s *Sandbox) installSafeRequire() {
	s.L.SetGlobal("require", s.L.NewFunction(func(L *lua.LState) int {
		modName := L.CheckString(1)
		if !requireableModules[modName] {
			L.RaiseError("%s: module %q is not available", ErrForbidden.Error(), modName)
			return 0 // unreachable, but required for Go compiler
		}
		L.Push(L.GetGlobal(modName))
		return 1
	}))
}

// freezeLibrary swaps a global library table for a read-only proxy.
func (s *Sandbox) freezeLibrary(name string) {
	lib, ok := s.L.GetGlobal(name).(*lua.LTable)
	if !ok {
		return
	}

	proxy := s.L.NewTable()
	mt := s.L.NewTable()
	mt.RawSetString("__index", lib)
	mt.RawSetString("__newindex", s.L.NewFunction(func(L *lua.LState) int {
		L.RaiseError("%s: library table %q is read-only", ErrForbidden.Error(), name)
		return 0
	}))
	mt.RawSetString("__metatable", lua.LString("locked"))
	s.L.SetMetatable(proxy, mt)
	s.L.SetGlobal(name, proxy)

	if name == "string" {
		s.lockStringMetatable(lib, proxy)
	}
}

// lockStringMetatable routes method calls on string values through the
// read-only proxy. The builtin string metatable is the library table itself,
// so getmetatable("").__index would otherwise hand out the writable original.
func (s *Sandbox) lockStringMetatable(lib, proxy *lua.LTable) {
	lib.RawSetString("__index", lua.LNil)

	mt := s.L.NewTable()
	mt.RawSetString("__index", proxy)
	mt.RawSetString("__metatable", lua.LString("locked"))
	s.L.SetMetatable(lua.LString(""), mt)
}

// IsForbidden reports whether name (e.g. "loadstring" or "os.execute") was
// replaced by a raising stub.
func (s *Sandbox) IsForbidden(name string) bool {
	return s.forbidden[name]
}

// Forbidden returns the sorted names of every stubbed function.
func (s *Sandbox) Forbidden() []string {
	names := make([]string, 0, len(s.forbidden))
	for name := range s.forbidden {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Frozen reports whether library tables are read-only.
func (s *Sandbox) Frozen() bool {
	return s.freeze
}
