package event

import (
	"sort"
	"sync"
)

// Registry maps event names to handlers in registration order.
// It is thread-safe for concurrent access.
//
// Names are matched exactly (case-sensitive, no wildcards) and duplicate
// handlers are kept. The lock is held only while the handler list is read
// or appended, never while a handler runs, so a handler may Subscribe
// during a dispatch. Handlers added that way are picked up by the next
// dispatch, not the current one.
type Registry[H any] struct {
	mu       sync.Mutex
	handlers map[string][]H
}

// NewRegistry creates an empty registry.
func NewRegistry[H any]() *Registry[H] {
	return &Registry[H]{
		handlers: make(map[string][]H),
	}
}

// Subscribe appends h to the handlers for name.
func (r *Registry[H]) Subscribe(name string, h H) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = append(r.handlers[name], h)
}

// Handlers returns a snapshot of the handlers for name.
func (r *Registry[H]) Handlers(name string) []H {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.handlers[name]
	if len(list) == 0 {
		return nil
	}
	snapshot := make([]H, len(list))
	copy(snapshot, list)
	return snapshot
}

// Len returns the number of handlers registered for name.
func (r *Registry[H]) Len(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handlers[name])
}

// Names returns the sorted event names that have at least one handler.
func (r *Registry[H]) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clear removes every handler.
func (r *Registry[H]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers = make(map[string][]H)
}

// Dispatch calls invoke for each handler registered for name, in order,
// on the calling goroutine. The first error stops the dispatch: later
// handlers are not invoked and the error is returned as a *HandlerError.
// An unknown name is a no-op.
func (r *Registry[H]) Dispatch(name string, invoke func(H) error) error {
	for i, h := range r.Handlers(name) {
		if err := invoke(h); err != nil {
			return &HandlerError{Event: name, Index: i, Err: err}
		}
	}
	return nil
}
