// Package plugin hosts sandboxed Lua plugins and relays application events
// to them.
//
// A plugin is a single Lua source text. It can:
//   - Write lines through the host's output capability (print)
//   - Subscribe handlers to named events (onEvent, event)
//   - Inspect and rewrite event payloads, cancel events, and mark other
//     channels for re-sync
//
// It cannot reach the filesystem, processes, the network or the loader
// functions; calling any of them fails at the call with an engine error.
//
// # Quick Start
//
//	cb := api.NewCallbacks(api.Async(func(ctx context.Context, line string) error {
//	    return chat.Send(ctx, line)
//	}))
//
//	p, err := plugin.New(source, cb, plugin.WithName("greeter"))
//	if err != nil {
//	    return err
//	}
//	defer p.Close()
//
//	if err := p.Run(); err != nil {
//	    return err
//	}
//
//	// Plain notification
//	err = p.DispatchNamed("join", "alice")
//
//	// Structured event
//	res, err := p.RunEvent("chat", "message", `{"text":"hi"}`, 3)
//
// # Script Surface
//
//	onEvent("join", function(name)
//	    print(string.upper(name))
//	end)
//
//	event.chat = function(name, ev)
//	    if ev.payload.text == "spam" then
//	        ev:cancel()
//	    else
//	        ev:notify(4, 7)
//	    end
//	end
//
// Handlers for RunEvent receive the event name and a details table with the
// fields source, payload, target, cancelled and needs_update.
//
// # Results
//
// RunEvent returns an event.Result. The payload is included only when a
// handler cancelled the event, unless WithAlwaysReturnPayload is set.
// A cancelled event never carries needs_update.
//
// # Errors
//
// Every returned error is an *Error whose kind matches one of ErrEngine,
// ErrProtocol, ErrCapability, ErrRegistration or ErrClosed:
//
//	if errors.Is(err, plugin.ErrCapability) { ... }
//
// A failing handler stops the remaining handlers of that dispatch. The
// plugin stays usable; the next dispatch runs normally.
//
// # Concurrency
//
// All entry into the Lua engine is serialised by one lock per plugin.
// The handler registry has its own lock, so handlers may subscribe more
// handlers while a dispatch is running; those run from the next dispatch.
// The output capability is called with the engine lock held: an output
// function must not call back into the same plugin.
package plugin
