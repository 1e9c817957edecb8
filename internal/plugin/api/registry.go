package api

import (
	"fmt"
	"sort"
	"sync"

	lua "github.com/yuin/gopher-lua"
)

// Module represents a Lua API module that can be installed into a plugin.
type Module interface {
	// Name returns the module name (e.g., "output", "event").
	Name() string

	// Globals returns the global names the module reserves.
	// No two modules in a Registry may reserve the same global.
	Globals() []string

	// Register installs the module's globals into the Lua state.
	Register(L *lua.LState) error
}

// Registry manages API modules and their installation.
type Registry struct {
	mu      sync.RWMutex
	modules map[string]Module
	order   []string
	owners  map[string]string // global -> module name
}

// NewRegistry creates a new API registry.
func NewRegistry() *Registry {
	return &Registry{
		modules: make(map[string]Module),
		owners:  make(map[string]string),
	}
}

// Register adds a module to the registry.
func (r *Registry) Register(mod Module) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.modules[mod.Name()]; exists {
		return fmt.Errorf("module %q already registered", mod.Name())
	}
	for _, g := range mod.Globals() {
		if owner, taken := r.owners[g]; taken {
			return fmt.Errorf("module %q: global %q already reserved by module %q", mod.Name(), g, owner)
		}
	}

	r.modules[mod.Name()] = mod
	r.order = append(r.order, mod.Name())
	for _, g := range mod.Globals() {
		r.owners[g] = mod.Name()
	}
	return nil
}

// Get returns a module by name.
func (r *Registry) Get(name string) (Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	mod, ok := r.modules[name]
	return mod, ok
}

// List returns registered module names in registration order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Reserved returns every global reserved by registered modules, sorted.
func (r *Registry) Reserved() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	globals := make([]string, 0, len(r.owners))
	for g := range r.owners {
		globals = append(globals, g)
	}
	sort.Strings(globals)
	return globals
}

// InjectAll installs all modules into the Lua state in registration order.
func (r *Registry) InjectAll(L *lua.LState) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, name := range r.order {
		if err := r.modules[name].Register(L); err != nil {
			return fmt.Errorf("failed to register module %q: %w", name, err)
		}
	}
	return nil
}

// DefaultRegistry creates a registry with the output and event modules.
func DefaultRegistry(callbacks *Callbacks, handlers *Handlers) (*Registry, error) {
	r := NewRegistry()

	modules := []Module{
		NewOutputModule(callbacks),
		NewEventModule(handlers),
	}

	for _, mod := range modules {
		if err := r.Register(mod); err != nil {
			return nil, fmt.Errorf("failed to register module %q: %w", mod.Name(), err)
		}
	}

	return r, nil
}
