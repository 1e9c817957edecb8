// Package event defines the data carried between a host and its plugins
// during event dispatch, and the registry that maps event names to the
// handlers plugins subscribe.
//
// A dispatch starts from a host payload (a JSON object) and a target
// channel. The payload is wrapped in Details, handed to every handler
// registered for the event type, and the possibly mutated Details is
// projected into a Result for the host:
//
//	payload, err := event.ParsePayload(`{"text":"hi"}`)
//	details := event.NewDetails(payload, 3)
//	// ... handlers run, possibly calling details.Cancel() ...
//	result, err := event.ResultFrom(details, false)
//
// Result.Payload is only filled in when a handler cancelled the event,
// unless the caller asks for it on every dispatch. Cancelling also clears
// NeedsUpdate: a vetoed event never propagates to other channels.
//
// Registry is engine-agnostic; it stores whatever handler type a script
// backend uses and only guarantees ordering and locking.
package event
