package plugin

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/setonix/internal/config"
	"github.com/dshills/setonix/internal/plugin/api"
	"github.com/dshills/setonix/internal/plugin/event"
	plua "github.com/dshills/setonix/internal/plugin/lua"
)

// Plugin is a loaded script backend the host can drive with events.
//
// Implementations must be safe for concurrent use: calls from different
// goroutines are serialised, never interleaved inside the script engine.
type Plugin interface {
	// Run executes the plugin's top-level source. Handlers are usually
	// registered here. Running twice re-executes the source and may
	// register handlers twice.
	Run() error

	// RunEvent dispatches eventType with (eventName, details) to every
	// handler and returns the projected result.
	RunEvent(eventType, eventName, payload string, target event.Channel) (event.Result, error)

	// DispatchNamed dispatches eventType with plain arguments.
	DispatchNamed(eventType string, args ...any) error

	// Close tears down the engine and handler registry.
	Close() error
}

var _ Plugin = (*LuaPlugin)(nil)

// LuaPlugin runs a plugin script in a sandboxed gopher-lua state.
type LuaPlugin struct {
	mu sync.RWMutex

	// Identity
	id   uuid.UUID
	name string

	source string

	// Lua runtime
	state    *plua.State
	handlers *api.Handlers
	modules  *api.Registry
	codec    *event.Codec

	callbacks     *api.Callbacks
	alwaysPayload bool
	logger        *slog.Logger

	lifecycle State
}

// New builds a plugin for source. The sandbox is created and the print,
// onEvent and event globals are installed, but no script code runs until
// Run. A nil callbacks uses DefaultCallbacks.
func New(source string, callbacks *api.Callbacks, opts ...Option) (*LuaPlugin, error) {
	o := options{config: config.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.alwaysPayload != nil {
		o.config.Events.AlwaysReturnPayload = *o.alwaysPayload
	}

	if callbacks == nil {
		callbacks = api.DefaultCallbacks()
	}

	id := uuid.New()
	if o.name == "" {
		o.name = "plugin-" + id.String()[:8]
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}

	state, err := plua.NewState(
		plua.WithFrozenLibraries(o.config.Sandbox.FreezeLibraries),
		plua.WithCoroutines(o.config.Sandbox.AllowCoroutines),
	)
	if err != nil {
		return nil, &Error{Kind: ErrEngine, Op: "new", Err: err}
	}

	handlers := event.NewRegistry[*lua.LFunction]()
	modules, err := api.DefaultRegistry(callbacks, handlers)
	if err != nil {
		state.Close()
		return nil, &Error{Kind: ErrEngine, Op: "new", Err: err}
	}

	p := &LuaPlugin{
		id:            id,
		name:          o.name,
		source:        source,
		state:         state,
		handlers:      handlers,
		modules:       modules,
		callbacks:     callbacks,
		alwaysPayload: o.config.Events.AlwaysReturnPayload,
		logger:        o.logger.With("plugin", o.name, "id", id.String()),
		lifecycle:     StateCreated,
	}

	err = state.Do(func(L *lua.LState) error {
		if err := modules.InjectAll(L); err != nil {
			return err
		}
		p.codec = event.NewCodec(state.Bridge())
		return nil
	})
	if err != nil {
		state.Close()
		return nil, classify("new", "", err)
	}

	p.logger.Debug("plugin created",
		"globals", modules.Reserved(),
		"frozen", o.config.Sandbox.FreezeLibraries,
		"always_payload", p.alwaysPayload,
	)
	return p, nil
}

// ID returns the instance identifier.
func (p *LuaPlugin) ID() uuid.UUID {
	return p.id
}

// Name returns the plugin name.
func (p *LuaPlugin) Name() string {
	return p.name
}

// State returns the current lifecycle state.
func (p *LuaPlugin) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lifecycle
}

// Globals returns the reserved global names installed into the sandbox.
func (p *LuaPlugin) Globals() []string {
	return p.modules.Reserved()
}

// Callbacks returns the capability set, so the host can swap the output
// function while the plugin is live.
func (p *LuaPlugin) Callbacks() *api.Callbacks {
	return p.callbacks
}

// Run executes the top-level source.
func (p *LuaPlugin) Run() error {
	const op = "run"

	if !p.State().IsUsable() {
		return &Error{Kind: ErrClosed, Op: op}
	}

	p.logger.Debug("running plugin source")
	if err := p.state.Execute(p.source); err != nil {
		err = classify(op, "", err)
		p.logger.Warn("plugin source failed", "error", err)
		return err
	}

	p.mu.Lock()
	if p.lifecycle == StateCreated {
		p.lifecycle = StateRan
	}
	p.mu.Unlock()

	p.logger.Debug("plugin source finished", "events", p.handlers.Names())
	return nil
}

// Dispatcher returns the accessor used to deliver events. It borrows the
// plugin's engine and registry; it is invalid after Close.
func (p *LuaPlugin) Dispatcher() *Dispatcher {
	return &Dispatcher{
		state:         p.state,
		handlers:      p.handlers,
		codec:         p.codec,
		alwaysPayload: p.alwaysPayload,
		logger:        p.logger,
	}
}

// RunEvent dispatches a structured event. See Dispatcher.RunEvent.
func (p *LuaPlugin) RunEvent(eventType, eventName, payload string, target event.Channel) (event.Result, error) {
	return p.Dispatcher().RunEvent(eventType, eventName, payload, target)
}

// DispatchNamed dispatches an event with plain arguments. See Dispatcher.DispatchNamed.
func (p *LuaPlugin) DispatchNamed(eventType string, args ...any) error {
	return p.Dispatcher().DispatchNamed(eventType, args...)
}

// Close tears down the engine and the handler registry.
// It is safe to call more than once.
func (p *LuaPlugin) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.lifecycle == StateClosed {
		return nil
	}

	err := p.state.Close()
	p.handlers.Clear()
	p.lifecycle = StateClosed

	p.logger.Debug("plugin closed")
	return err
}
