package event

import (
	"errors"
	"reflect"
	"testing"

	lua "github.com/yuin/gopher-lua"

	plua "github.com/dshills/setonix/internal/plugin/lua"
)

func newTestCodec(t *testing.T) (*lua.LState, *Codec) {
	t.Helper()
	L := lua.NewState()
	t.Cleanup(L.Close)
	return L, NewCodec(plua.NewBridge(L))
}

// runHandler executes src as the body of function(ev) against tbl.
func runHandler(t *testing.T, L *lua.LState, tbl *lua.LTable, src string) error {
	t.Helper()
	fn, err := L.LoadString("local ev = ...\n" + src)
	if err != nil {
		t.Fatalf("LoadString() error = %v", err)
	}
	return L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}, tbl)
}

func TestCodecRoundTrip(t *testing.T) {
	_, codec := newTestCodec(t)

	tests := []struct {
		name string
		in   Details
	}{
		{"fresh", NewDetails(map[string]any{"text": "hi"}, 3)},
		{"all fields", Details{
			Source:      -2,
			Payload:     map[string]any{"list": []any{float64(1), "x"}, "nested": map[string]any{"empty": []any{}}},
			Target:      42,
			NeedsUpdate: NewChannelSet(1, 5),
		}},
		{"empty needs update", Details{Payload: map[string]any{}, Target: 1, NeedsUpdate: NewChannelSet()}},
		{"cancelled", Details{Payload: map[string]any{"a": true}, Target: 1, Cancelled: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl, err := codec.Encode(tt.in)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			out, err := codec.Decode(tbl)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if out.Source != tt.in.Source || out.Target != tt.in.Target || out.Cancelled != tt.in.Cancelled {
				t.Errorf("Decode() = %+v, want %+v", out, tt.in)
			}
			if !reflect.DeepEqual(out.Payload, tt.in.Payload) {
				t.Errorf("Payload = %#v, want %#v", out.Payload, tt.in.Payload)
			}
			if !out.NeedsUpdate.Equal(tt.in.NeedsUpdate) {
				t.Errorf("NeedsUpdate = %v, want %v", out.NeedsUpdate, tt.in.NeedsUpdate)
			}
		})
	}
}

func TestCodecHandlerMutations(t *testing.T) {
	L, codec := newTestCodec(t)

	tbl, err := codec.Encode(NewDetails(map[string]any{"text": "hi"}, 3))
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	err = runHandler(t, L, tbl, `
		assert(ev.source == 0)
		assert(ev.target == 3)
		assert(ev.cancelled == false)
		assert(ev.needs_update == nil)
		ev.payload.text = ev.payload.text .. "!"
		ev.payload.extra = { 1, 2 }
		ev.target = 99
	`)
	if err != nil {
		t.Fatalf("handler error = %v", err)
	}

	d, err := codec.Decode(tbl)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if d.Payload["text"] != "hi!" {
		t.Errorf("text = %v, want hi!", d.Payload["text"])
	}
	if !reflect.DeepEqual(d.Payload["extra"], []any{float64(1), float64(2)}) {
		t.Errorf("extra = %v", d.Payload["extra"])
	}
	if d.Target != 99 {
		t.Errorf("Target = %d, want 99", d.Target)
	}
}

func TestCodecCancelMethod(t *testing.T) {
	L, codec := newTestCodec(t)

	tbl, _ := codec.Encode(NewDetails(nil, 1))
	err := runHandler(t, L, tbl, `
		ev:notify(2, 3, 2)
		assert(#ev.needs_update == 2)
		ev:cancel()
		assert(ev.cancelled == true)
		assert(ev.needs_update == nil)
		ev:notify(4)
		assert(ev.needs_update == nil)
	`)
	if err != nil {
		t.Fatalf("handler error = %v", err)
	}

	d, err := codec.Decode(tbl)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if !d.Cancelled || d.NeedsUpdate != nil {
		t.Errorf("Decode() = %+v, want cancelled without needs_update", d)
	}
}

func TestCodecDirectCancelClearsNeedsUpdate(t *testing.T) {
	L, codec := newTestCodec(t)

	tbl, _ := codec.Encode(NewDetails(nil, 1))
	err := runHandler(t, L, tbl, `
		ev.needs_update = { 4, 5 }
		ev.cancelled = true
	`)
	if err != nil {
		t.Fatalf("handler error = %v", err)
	}

	d, err := codec.Decode(tbl)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if d.NeedsUpdate != nil {
		t.Errorf("NeedsUpdate = %v, want nil after cancel", d.NeedsUpdate)
	}
}

func TestCodecNeedsUpdateSetForm(t *testing.T) {
	L, codec := newTestCodec(t)

	tbl, _ := codec.Encode(NewDetails(nil, 1))
	if err := runHandler(t, L, tbl, `ev.needs_update = { [7] = true, [8] = false, [9] = true }`); err != nil {
		t.Fatalf("handler error = %v", err)
	}

	d, err := codec.Decode(tbl)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if !d.NeedsUpdate.Equal(NewChannelSet(7, 9)) {
		t.Errorf("NeedsUpdate = %v, want {7 9}", d.NeedsUpdate.Sorted())
	}
}

func TestCodecNotifyKeepsSetForm(t *testing.T) {
	L, codec := newTestCodec(t)

	tbl, _ := codec.Encode(NewDetails(nil, 1))
	if err := runHandler(t, L, tbl, `
		ev.needs_update = { [7] = true }
		ev:notify(2, 7)
	`); err != nil {
		t.Fatalf("handler error = %v", err)
	}

	d, err := codec.Decode(tbl)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if !d.NeedsUpdate.Equal(NewChannelSet(2, 7)) {
		t.Errorf("NeedsUpdate = %v, want {2 7}", d.NeedsUpdate.Sorted())
	}
}

func TestCodecDecodeErrors(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		field string
	}{
		{"target removed", `ev.target = nil`, FieldTarget},
		{"fractional target", `ev.target = 1.5`, FieldTarget},
		{"source string", `ev.source = "me"`, FieldSource},
		{"cancelled string", `ev.cancelled = "yes"`, FieldCancelled},
		{"payload string", `ev.payload = "text"`, FieldPayload},
		{"payload function", `ev.payload.cb = function() end`, FieldPayload},
		{"needs update number", `ev.needs_update = 3`, FieldNeedsUpdate},
		{"needs update out of range", `ev.needs_update = { 70000 }`, FieldNeedsUpdate},
		{"boolean appended to notify array", `ev:notify(2); table.insert(ev.needs_update, true)`, FieldNeedsUpdate},
		{"needs update mixed forms", `ev.needs_update = { 2, [5] = true }`, FieldNeedsUpdate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			L, codec := newTestCodec(t)
			tbl, _ := codec.Encode(NewDetails(map[string]any{"text": "hi"}, 1))
			if err := runHandler(t, L, tbl, tt.src); err != nil {
				t.Fatalf("handler error = %v", err)
			}

			_, err := codec.Decode(tbl)
			var decErr *DecodeError
			if !errors.As(err, &decErr) {
				t.Fatalf("Decode() error = %v, want *DecodeError", err)
			}
			if decErr.Field != tt.field {
				t.Errorf("Field = %q, want %q", decErr.Field, tt.field)
			}
			if !errors.Is(err, ErrInvalidDetails) {
				t.Error("DecodeError should match ErrInvalidDetails")
			}
		})
	}
}

func TestCodecDecodeNonTable(t *testing.T) {
	_, codec := newTestCodec(t)

	if _, err := codec.Decode(lua.LString("nope")); !errors.Is(err, ErrInvalidDetails) {
		t.Errorf("Decode(string) error = %v, want ErrInvalidDetails", err)
	}
}
