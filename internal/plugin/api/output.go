package api

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"

	lua "github.com/yuin/gopher-lua"
)

// GlobalPrint is the reserved global through which scripts write output.
const GlobalPrint = "print"

// OutputFunc is the host's asynchronous output operation. The returned
// channel is a one-shot completion signal: the first value received (or
// the channel closing) marks completion, and a non-nil value is a failure.
// A nil channel means the call completed synchronously and succeeded.
type OutputFunc func(ctx context.Context, line string) <-chan error

// Completed returns an already-completed signal carrying err.
func Completed(err error) <-chan error {
	ch := make(chan error, 1)
	ch <- err
	close(ch)
	return ch
}

// Async adapts a blocking function into an OutputFunc. fn runs on its own
// goroutine; a panic in fn is reported as a failure.
func Async(fn func(ctx context.Context, line string) error) OutputFunc {
	return func(ctx context.Context, line string) <-chan error {
		ch := make(chan error, 1)
		go func() {
			defer close(ch)
			defer func() {
				if r := recover(); r != nil {
					ch <- &OutputError{Line: line, Panicked: true, Err: fmt.Errorf("%v", r)}
				}
			}()
			ch <- fn(ctx, line)
		}()
		return ch
	}
}

// WriterOutput returns a synchronous OutputFunc writing one line per call to w.
func WriterOutput(w io.Writer) OutputFunc {
	return func(_ context.Context, line string) <-chan error {
		_, err := fmt.Fprintln(w, line)
		return Completed(err)
	}
}

// StdoutOutput is the local fallback used when the host supplies no output.
func StdoutOutput() OutputFunc {
	return WriterOutput(os.Stdout)
}

// Callbacks is the capability set a host grants a plugin.
// Only output is recognised today.
type Callbacks struct {
	onOutput atomic.Pointer[OutputFunc]
}

// DefaultCallbacks returns callbacks that print to stdout.
func DefaultCallbacks() *Callbacks {
	return NewCallbacks(nil)
}

// NewCallbacks returns callbacks using onOutput, or stdout when nil.
func NewCallbacks(onOutput OutputFunc) *Callbacks {
	c := &Callbacks{}
	c.SetOutput(onOutput)
	return c
}

// SetOutput replaces the output function. It is safe to call while a
// plugin is running; calls already in flight keep the old function.
func (c *Callbacks) SetOutput(fn OutputFunc) {
	if fn == nil {
		fn = StdoutOutput()
	}
	c.onOutput.Store(&fn)
}

// Output returns the current output function.
func (c *Callbacks) Output() OutputFunc {
	return *c.onOutput.Load()
}

// Emit calls the output function and blocks the calling goroutine until it
// signals completion. It never returns early: a host function that never
// completes blocks Emit forever.
func (c *Callbacks) Emit(ctx context.Context, line string) (err error) {
	fn := c.Output()

	var done <-chan error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = &OutputError{Line: line, Panicked: true, Err: fmt.Errorf("%v", r)}
			}
		}()
		done = fn(ctx, line)
	}()
	if err != nil || done == nil {
		return err
	}

	if e, ok := <-done; ok && e != nil {
		if _, isOutput := e.(*OutputError); isOutput {
			return e
		}
		return &OutputError{Line: line, Err: e}
	}
	return nil
}

// OutputModule exposes Callbacks to Lua as the print global.
//
// print keeps Lua's calling convention: every argument is converted with
// tostring and the results are joined by tabs into one line. The call does
// not return to the script until the host has finished with the line.
//
// Usage constraint: the output function runs while the plugin's engine lock
// is held, so it must not call back into the same plugin.
type OutputModule struct {
	callbacks *Callbacks
}

// NewOutputModule creates the module for the given callbacks.
func NewOutputModule(callbacks *Callbacks) *OutputModule {
	if callbacks == nil {
		callbacks = DefaultCallbacks()
	}
	return &OutputModule{callbacks: callbacks}
}

// Name returns the module name.
func (m *OutputModule) Name() string {
	return "output"
}

// Globals returns the reserved globals this module installs.
func (m *OutputModule) Globals() []string {
	return []string{GlobalPrint}
}

// Register registers the module into the Lua state.
func (m *OutputModule) Register(L *lua.LState) error {
	L.SetGlobal(GlobalPrint, L.NewFunction(m.print))
	return nil
}

// print(...) -> nil
func (m *OutputModule) print(L *lua.LState) int {
	n := L.GetTop()
	parts := make([]string, n)
	for i := 1; i <= n; i++ {
		parts[i-1] = L.ToStringMeta(L.Get(i)).String()
	}

	ctx := L.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := m.callbacks.Emit(ctx, strings.Join(parts, "\t")); err != nil {
		raise(L, err)
	}
	return 0
}
