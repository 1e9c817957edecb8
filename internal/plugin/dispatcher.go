package plugin

import (
	"log/slog"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/setonix/internal/plugin/api"
	"github.com/dshills/setonix/internal/plugin/event"
	plua "github.com/dshills/setonix/internal/plugin/lua"
)

// Dispatcher delivers events to a plugin's handlers. It couples the
// plugin's engine and handler registry without owning either.
type Dispatcher struct {
	state         *plua.State
	handlers      *api.Handlers
	codec         *event.Codec
	alwaysPayload bool
	logger        *slog.Logger
}

// HandlerCount returns the number of handlers subscribed to eventType.
func (d *Dispatcher) HandlerCount(eventType string) int {
	return d.handlers.Len(eventType)
}

// RunEvent runs a structured event through the handlers of eventType.
//
// The payload must be a JSON object. Each handler is called as
// handler(eventName, details) and may mutate details in place; the final
// details are projected into the Result. The target in the result is
// always the target given here, whatever handlers assign to it.
//
// An unknown event type is not an error: the result reflects unmodified
// details.
func (d *Dispatcher) RunEvent(eventType, eventName, payload string, target event.Channel) (event.Result, error) {
	const op = "run_event"

	doc, err := event.ParsePayload(payload)
	if err != nil {
		return event.Result{}, d.fail(&Error{Kind: ErrProtocol, Op: op, Event: eventType, Err: err})
	}

	var final event.Details
	err = d.state.Do(func(L *lua.LState) error {
		details, err := d.codec.Encode(event.NewDetails(doc, target))
		if err != nil {
			return &Error{Kind: ErrProtocol, Op: op, Event: eventType, Err: err}
		}

		if err := d.dispatch(L, eventType, lua.LString(eventName), details); err != nil {
			return classify(op, eventType, err)
		}

		final, err = d.codec.Decode(details)
		if err != nil {
			return &Error{Kind: ErrProtocol, Op: op, Event: eventType, Err: err}
		}
		return nil
	})
	if err != nil {
		return event.Result{}, d.fail(classify(op, eventType, err))
	}

	final.Target = target
	res, err := event.ResultFrom(final, d.alwaysPayload)
	if err != nil {
		return event.Result{}, d.fail(&Error{Kind: ErrProtocol, Op: op, Event: eventType, Err: err})
	}

	d.logger.Debug("event dispatched",
		"event", eventType,
		"name", eventName,
		"target", target,
		"cancelled", final.Cancelled,
	)
	return res, nil
}

// DispatchNamed runs the handlers of eventType with args converted to Lua
// values. It is the form for events without structured state, such as a
// bare "join" carrying a user name.
func (d *Dispatcher) DispatchNamed(eventType string, args ...any) error {
	const op = "dispatch"

	err := d.state.Do(func(L *lua.LState) error {
		values := make([]lua.LValue, len(args))
		for i, arg := range args {
			lv, err := d.state.Bridge().Encode(arg)
			if err != nil {
				return &Error{Kind: ErrProtocol, Op: op, Event: eventType, Err: err}
			}
			values[i] = lv
		}

		return d.dispatch(L, eventType, values...)
	})
	if err != nil {
		return d.fail(classify(op, eventType, err))
	}

	d.logger.Debug("event dispatched", "event", eventType, "args", len(args))
	return nil
}

// dispatch calls each handler in registration order with args.
// The caller must hold the engine lock.
func (d *Dispatcher) dispatch(L *lua.LState, eventType string, args ...lua.LValue) error {
	return d.handlers.Dispatch(eventType, func(fn *lua.LFunction) error {
		return L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}, args...)
	})
}

func (d *Dispatcher) fail(err error) error {
	d.logger.Warn("event dispatch failed", "error", err)
	return err
}
