package event

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// Details is the mutable event state handlers see during a dispatch.
type Details struct {
	// Source is the channel that raised the event, NoChannel if unknown.
	Source Channel

	// Payload is the application event document; handlers may rewrite it.
	Payload map[string]any

	// Target is the destination channel, fixed when the dispatch starts.
	Target Channel

	// Cancelled marks the event as vetoed or altered by a handler.
	Cancelled bool

	// NeedsUpdate lists other channels that must be re-synced. Nil means absent.
	NeedsUpdate ChannelSet
}

// NewDetails returns the initial state for a dispatch.
func NewDetails(payload map[string]any, target Channel) Details {
	if payload == nil {
		payload = make(map[string]any)
	}
	return Details{
		Source:  NoChannel,
		Payload: payload,
		Target:  target,
	}
}

// Cancel vetoes the event. Cancellation supersedes pending propagation,
// so NeedsUpdate is cleared.
func (d *Details) Cancel() {
	d.Cancelled = true
	d.NeedsUpdate = nil
}

// Notify adds channels to NeedsUpdate. It is a no-op on a cancelled event.
func (d *Details) Notify(channels ...Channel) {
	if d.Cancelled {
		return
	}
	if d.NeedsUpdate == nil {
		d.NeedsUpdate = NewChannelSet()
	}
	for _, ch := range channels {
		d.NeedsUpdate.Add(ch)
	}
}

// ParsePayload parses a host event document. It must be a JSON object.
func ParsePayload(raw string) (map[string]any, error) {
	if !gjson.Valid(raw) {
		return nil, ErrInvalidPayload
	}
	doc := gjson.Parse(raw)
	if !doc.IsObject() {
		return nil, fmt.Errorf("%w: got %s", ErrNotObject, doc.Type)
	}
	payload, ok := doc.Value().(map[string]any)
	if !ok {
		return nil, ErrNotObject
	}
	return payload, nil
}

// Result is the summary of a dispatch returned to the host.
type Result struct {
	// Target is copied through from the details.
	Target Channel `json:"target"`

	// Payload is the re-encoded document. It is set only when the event was
	// cancelled, unless the dispatch asked for it unconditionally.
	Payload *string `json:"payload"`

	// NeedsUpdate is copied through; always nil for a cancelled event.
	NeedsUpdate ChannelSet `json:"needs_update"`
}

// ResultFrom projects the final details of a dispatch into a Result.
func ResultFrom(d Details, alwaysPayload bool) (Result, error) {
	res := Result{Target: d.Target}

	if d.Cancelled || alwaysPayload {
		data, err := json.Marshal(d.Payload)
		if err != nil {
			return Result{}, fmt.Errorf("encoding payload: %w", err)
		}
		text := string(data)
		res.Payload = &text
	}

	if !d.Cancelled {
		res.NeedsUpdate = d.NeedsUpdate.Clone()
	}
	return res, nil
}

// PayloadText returns the result payload or "" when absent.
func (r Result) PayloadText() string {
	if r.Payload == nil {
		return ""
	}
	return *r.Payload
}
