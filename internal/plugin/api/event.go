package api

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/setonix/internal/plugin/event"
)

// Reserved globals installed by EventModule.
const (
	GlobalOnEvent = "onEvent"
	GlobalEvent   = "event"
)

// Handlers is the registry type shared by the event module and the
// dispatcher that invokes the subscribed Lua functions.
type Handlers = event.Registry[*lua.LFunction]

// EventModule installs the subscription surfaces:
//
//	onEvent("join", function(ev) ... end)
//	event.join = function(ev) ... end
//	event["join"] = function(ev) ... end
//	event:join(function(ev) ... end)
//	event.join(function(ev) ... end)
//
// All forms append to the same per-name handler list. The event object is a
// userdata, so it cannot be enumerated and reading a name never exposes the
// handlers already subscribed.
type EventModule struct {
	handlers *Handlers
}

// NewEventModule creates the module over handlers.
func NewEventModule(handlers *Handlers) *EventModule {
	return &EventModule{handlers: handlers}
}

// Name returns the module name.
func (m *EventModule) Name() string {
	return "event"
}

// Globals returns the reserved globals this module installs.
func (m *EventModule) Globals() []string {
	return []string{GlobalOnEvent, GlobalEvent}
}

// Register registers the module into the Lua state.
func (m *EventModule) Register(L *lua.LState) error {
	L.SetGlobal(GlobalOnEvent, L.NewFunction(m.onEvent))

	obj := L.NewUserData()
	mt := L.NewTable()
	mt.RawSetString("__index", L.NewFunction(m.index))
	mt.RawSetString("__newindex", L.NewFunction(m.newIndex))
	mt.RawSetString("__tostring", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LString(GlobalEvent))
		return 1
	}))
	mt.RawSetString("__metatable", lua.LString(GlobalEvent))
	L.SetMetatable(obj, mt)
	L.SetGlobal(GlobalEvent, obj)

	return nil
}

// onEvent(name, handler) -> nil
func (m *EventModule) onEvent(L *lua.LState) int {
	m.subscribe(L, eventName(L, L.Get(1)), L.Get(2))
	return 0
}

// event[name] -> function(handler) | function(self, handler)
func (m *EventModule) index(L *lua.LState) int {
	self := L.Get(1)
	name := eventName(L, L.Get(2))

	L.Push(L.NewFunction(func(L *lua.LState) int {
		handler := L.Get(1)
		if handler == self {
			handler = L.Get(2)
		}
		m.subscribe(L, name, handler)
		return 0
	}))
	return 1
}

// event[name] = handler
func (m *EventModule) newIndex(L *lua.LState) int {
	m.subscribe(L, eventName(L, L.Get(2)), L.Get(3))
	return 0
}

func (m *EventModule) subscribe(L *lua.LState, name string, handler lua.LValue) {
	if name == "" {
		raise(L, &RegistrationError{Reason: "event name must not be empty"})
	}
	fn, ok := handler.(*lua.LFunction)
	if !ok {
		raise(L, &RegistrationError{
			Event:  name,
			Reason: "handler must be a function, got " + handler.Type().String(),
		})
	}
	m.handlers.Subscribe(name, fn)
}

func eventName(L *lua.LState, lv lua.LValue) string {
	s, ok := lv.(lua.LString)
	if !ok {
		raise(L, &RegistrationError{Reason: "event name must be a string, got " + lv.Type().String()})
	}
	return string(s)
}
