package event

import (
	"errors"
	"fmt"

	lua "github.com/yuin/gopher-lua"

	plua "github.com/dshills/setonix/internal/plugin/lua"
)

// Field names of the details table seen by Lua handlers.
const (
	FieldSource      = "source"
	FieldPayload     = "payload"
	FieldTarget      = "target"
	FieldCancelled   = "cancelled"
	FieldNeedsUpdate = "needs_update"
)

// Codec converts Details to and from Lua tables on one state.
//
// Encoded tables carry a metatable with two helper methods:
//
//	ev:cancel()          -- cancelled = true, needs_update = nil
//	ev:notify(2, 5, ...) -- add channels to needs_update
//
// Handlers may also assign the fields directly; Decode enforces the same
// invariants either way.
type Codec struct {
	bridge *plua.Bridge
	meta   *lua.LTable
}

// NewCodec creates a codec bound to the bridge's Lua state.
func NewCodec(bridge *plua.Bridge) *Codec {
	c := &Codec{bridge: bridge}
	c.meta = c.newMetatable()
	return c
}

func (c *Codec) newMetatable() *lua.LTable {
	L := c.bridge.L
	methods := L.NewTable()
	methods.RawSetString("cancel", L.NewFunction(c.luaCancel))
	methods.RawSetString("notify", L.NewFunction(c.luaNotify))

	mt := L.NewTable()
	mt.RawSetString("__index", methods)
	mt.RawSetString("__metatable", lua.LString("event"))
	return mt
}

// cancel(self)
func (c *Codec) luaCancel(L *lua.LState) int {
	self := L.CheckTable(1)
	self.RawSetString(FieldCancelled, lua.LTrue)
	self.RawSetString(FieldNeedsUpdate, lua.LNil)
	return 0
}

// notify(self, channel...)
func (c *Codec) luaNotify(L *lua.LState) int {
	self := L.CheckTable(1)
	if lua.LVAsBool(self.RawGetString(FieldCancelled)) {
		return 0
	}

	set, ok := self.RawGetString(FieldNeedsUpdate).(*lua.LTable)
	if !ok {
		set = c.bridge.NewArray()
		self.RawSetString(FieldNeedsUpdate, set)
	}

	// A set-style table assigned by the handler keeps its form.
	setForm, _ := c.channelSetForm(set)

	present := make(map[Channel]bool)
	set.ForEach(func(k, v lua.LValue) {
		if setForm {
			if n, ok := k.(lua.LNumber); ok && v == lua.LTrue {
				present[Channel(n)] = true
			}
			return
		}
		if n, ok := v.(lua.LNumber); ok {
			present[Channel(n)] = true
		}
	})

	for i := 2; i <= L.GetTop(); i++ {
		ch, err := ChannelFromFloat(float64(L.CheckNumber(i)))
		if err != nil {
			L.ArgError(i, err.Error())
			return 0
		}
		if present[ch] {
			continue
		}
		present[ch] = true
		if setForm {
			set.RawSetInt(int(ch), lua.LTrue)
			continue
		}
		set.Append(lua.LNumber(ch))
	}
	return 0
}

// Encode builds the Lua table handed to handlers.
func (c *Codec) Encode(d Details) (*lua.LTable, error) {
	L := c.bridge.L

	payload, err := c.bridge.Encode(d.Payload)
	if err != nil {
		return nil, fmt.Errorf("encoding payload: %w", err)
	}
	if payload == lua.LNil {
		payload = L.NewTable()
	}

	t := L.NewTable()
	t.RawSetString(FieldSource, lua.LNumber(d.Source))
	t.RawSetString(FieldPayload, payload)
	t.RawSetString(FieldTarget, lua.LNumber(d.Target))
	t.RawSetString(FieldCancelled, lua.LBool(d.Cancelled))
	if d.NeedsUpdate != nil {
		set := c.bridge.NewArray()
		for _, ch := range d.NeedsUpdate.Sorted() {
			set.Append(lua.LNumber(ch))
		}
		t.RawSetString(FieldNeedsUpdate, set)
	}
	L.SetMetatable(t, c.meta)
	return t, nil
}

// Decode reads details back from a (possibly handler-mutated) table.
func (c *Codec) Decode(lv lua.LValue) (Details, error) {
	t, ok := lv.(*lua.LTable)
	if !ok {
		return Details{}, &DecodeError{Field: "details", Err: fmt.Errorf("expected table, got %s", lv.Type())}
	}

	var d Details
	var err error

	if d.Source, err = decodeChannel(t.RawGetString(FieldSource), true); err != nil {
		return Details{}, &DecodeError{Field: FieldSource, Err: err}
	}
	if d.Target, err = decodeChannel(t.RawGetString(FieldTarget), false); err != nil {
		return Details{}, &DecodeError{Field: FieldTarget, Err: err}
	}

	switch v := t.RawGetString(FieldCancelled).(type) {
	case lua.LBool:
		d.Cancelled = bool(v)
	case *lua.LNilType:
	default:
		return Details{}, &DecodeError{Field: FieldCancelled, Err: fmt.Errorf("expected boolean, got %s", v.Type())}
	}

	payload, err := c.bridge.Decode(t.RawGetString(FieldPayload))
	if err != nil {
		return Details{}, &DecodeError{Field: FieldPayload, Err: err}
	}
	switch p := payload.(type) {
	case map[string]any:
		d.Payload = p
	case []any:
		// An emptied table that started out as an array is still an empty object.
		if len(p) != 0 {
			return Details{}, &DecodeError{Field: FieldPayload, Err: ErrNotObject}
		}
		d.Payload = make(map[string]any)
	default:
		return Details{}, &DecodeError{Field: FieldPayload, Err: ErrNotObject}
	}

	if d.NeedsUpdate, err = c.decodeChannelSet(t.RawGetString(FieldNeedsUpdate)); err != nil {
		return Details{}, &DecodeError{Field: FieldNeedsUpdate, Err: err}
	}

	if d.Cancelled {
		d.NeedsUpdate = nil
	}
	return d, nil
}

func decodeChannel(lv lua.LValue, optional bool) (Channel, error) {
	switch v := lv.(type) {
	case lua.LNumber:
		return ChannelFromFloat(float64(v))
	case *lua.LNilType:
		if optional {
			return NoChannel, nil
		}
		return 0, fmt.Errorf("%w: missing", ErrInvalidChannel)
	default:
		return 0, fmt.Errorf("%w: expected number, got %s", ErrInvalidChannel, lv.Type())
	}
}

// decodeChannelSet accepts an array of channels ({2, 5}) or a set-style
// table ({[2] = true, [5] = true}); entries mapped to false are skipped.
// Tables built by the host (ev:notify or an encoded needs_update) are arrays
// and must hold numbers only. An unmarked table must be one form or the
// other; {true} and {[1] = true} are the same table and read as a set.
func (c *Codec) decodeChannelSet(lv lua.LValue) (ChannelSet, error) {
	switch v := lv.(type) {
	case *lua.LNilType:
		return nil, nil
	case *lua.LTable:
		setForm, err := c.channelSetForm(v)
		if err != nil {
			return nil, err
		}
		set := NewChannelSet()
		v.ForEach(func(k, item lua.LValue) {
			if err != nil {
				return
			}
			var ch Channel
			if setForm {
				if item != lua.LTrue {
					return
				}
				ch, err = decodeChannel(k, false)
			} else {
				ch, err = decodeChannel(item, false)
			}
			if err == nil {
				set.Add(ch)
			}
		})
		if err != nil {
			return nil, err
		}
		return set, nil
	default:
		return nil, errors.New("expected table of channels, got " + lv.Type().String())
	}
}

// channelSetForm reports whether t is a set-style table, failing when its
// values mix booleans with channel numbers.
func (c *Codec) channelSetForm(t *lua.LTable) (bool, error) {
	bools, others := 0, 0
	t.ForEach(func(_, item lua.LValue) {
		if _, ok := item.(lua.LBool); ok {
			bools++
		} else {
			others++
		}
	})
	switch {
	case bools > 0 && c.bridge.IsArray(t):
		return false, errors.New("channel array contains a boolean")
	case bools > 0 && others > 0:
		return false, errors.New("channel table mixes booleans and channels")
	}
	return bools > 0, nil
}
