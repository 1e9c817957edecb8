package lua

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	lua "github.com/yuin/gopher-lua"
)

// Bridge converts between Go values and Lua values.
//
// The Go side is JSON-shaped: Decode yields nil, bool, float64, string,
// []any and map[string]any only, so a decoded value marshals straight back
// to the document it was encoded from. Tables produced from Go slices carry
// a marker metatable so that empty arrays stay arrays on the way back.
type Bridge struct {
	L *lua.LState

	arrayMeta *lua.LTable
}

// NewBridge creates a new Bridge for the given Lua state.
func NewBridge(L *lua.LState) *Bridge {
	mt := L.NewTable()
	mt.RawSetString("__name", lua.LString("array"))
	return &Bridge{L: L, arrayMeta: mt}
}

// NewArray returns an empty table that decodes as an array.
func (b *Bridge) NewArray() *lua.LTable {
	t := b.L.NewTable()
	b.L.SetMetatable(t, b.arrayMeta)
	return t
}

// IsArray reports whether t was created as an array by this bridge.
func (b *Bridge) IsArray(t *lua.LTable) bool {
	return t.Metatable == b.arrayMeta
}

// Encode converts a Go value to a Lua value.
func (b *Bridge) Encode(v any) (lua.LValue, error) {
	return b.encode(v, "")
}

func (b *Bridge) encode(v any, path string) (lua.LValue, error) {
	if v == nil {
		return lua.LNil, nil
	}

	switch val := v.(type) {
	case bool:
		return lua.LBool(val), nil
	case int:
		return lua.LNumber(val), nil
	case int8:
		return lua.LNumber(val), nil
	case int16:
		return lua.LNumber(val), nil
	case int32:
		return lua.LNumber(val), nil
	case int64:
		return lua.LNumber(val), nil
	case uint:
		return lua.LNumber(val), nil
	case uint8:
		return lua.LNumber(val), nil
	case uint16:
		return lua.LNumber(val), nil
	case uint32:
		return lua.LNumber(val), nil
	case uint64:
		return lua.LNumber(val), nil
	case float32:
		return lua.LNumber(val), nil
	case float64:
		return lua.LNumber(val), nil
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return nil, &ConversionError{Path: path, Type: "json.Number", Err: err}
		}
		return lua.LNumber(f), nil
	case string:
		return lua.LString(val), nil
	case []byte:
		return lua.LString(val), nil
	case []any:
		t := b.NewArray()
		for i, item := range val {
			lv, err := b.encode(item, indexPath(path, i))
			if err != nil {
				return nil, err
			}
			t.RawSetInt(i+1, lv)
		}
		return t, nil
	case map[string]any:
		t := b.L.NewTable()
		for k, item := range val {
			lv, err := b.encode(item, keyPath(path, k))
			if err != nil {
				return nil, err
			}
			t.RawSetString(k, lv)
		}
		return t, nil
	case lua.LValue:
		return val, nil
	default:
		// Try reflection for other types
		return b.reflectToLua(reflect.ValueOf(v), path)
	}
}

// reflectToLua uses reflection to convert typed slices, maps and structs.
// Values with no data representation (funcs, channels) are rejected rather
// than smuggled into the sandbox as userdata.
func (b *Bridge) reflectToLua(rv reflect.Value, path string) (lua.LValue, error) {
	if !rv.IsValid() {
		return lua.LNil, nil
	}

	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return lua.LNil, nil
		}
		return b.encode(rv.Elem().Interface(), path)

	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return lua.LNil, nil
		}
		t := b.NewArray()
		for i := 0; i < rv.Len(); i++ {
			lv, err := b.encode(rv.Index(i).Interface(), indexPath(path, i))
			if err != nil {
				return nil, err
			}
			t.RawSetInt(i+1, lv)
		}
		return t, nil

	case reflect.Map:
		if rv.IsNil() {
			return lua.LNil, nil
		}
		t := b.L.NewTable()
		iter := rv.MapRange()
		for iter.Next() {
			k, err := b.encode(iter.Key().Interface(), path)
			if err != nil {
				return nil, err
			}
			v, err := b.encode(iter.Value().Interface(), keyPath(path, fmt.Sprint(iter.Key().Interface())))
			if err != nil {
				return nil, err
			}
			t.RawSet(k, v)
		}
		return t, nil

	case reflect.Struct:
		return b.structToTable(rv, path)

	case reflect.Bool:
		return lua.LBool(rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return lua.LNumber(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return lua.LNumber(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return lua.LNumber(rv.Float()), nil
	case reflect.String:
		return lua.LString(rv.String()), nil

	default:
		return nil, &ConversionError{Path: path, Type: rv.Type().String()}
	}
}

// structToTable converts a Go struct to a Lua table keyed by json tag.
func (b *Bridge) structToTable(rv reflect.Value, path string) (*lua.LTable, error) {
	t := b.L.NewTable()
	rt := rv.Type()

	for i := 0; i < rv.NumField(); i++ {
		field := rt.Field(i)
		if field.PkgPath != "" {
			continue // Skip unexported fields
		}

		name := field.Name
		if tag := field.Tag.Get("json"); tag != "" {
			if tag == "-" {
				continue
			}
			tag, _, _ = strings.Cut(tag, ",")
			if tag != "" {
				name = tag
			}
		}

		lv, err := b.encode(rv.Field(i).Interface(), keyPath(path, name))
		if err != nil {
			return nil, err
		}
		t.RawSetString(name, lv)
	}

	return t, nil
}

// Decode converts a Lua value to a JSON-shaped Go value.
func (b *Bridge) Decode(lv lua.LValue) (any, error) {
	return b.decode(lv, "", make(map[*lua.LTable]bool))
}

// decode tracks the tables on the current path; a table may appear twice
// in a value as long as it does not contain itself.
func (b *Bridge) decode(lv lua.LValue, path string, active map[*lua.LTable]bool) (any, error) {
	if lv == nil {
		return nil, nil
	}

	switch v := lv.(type) {
	case *lua.LNilType:
		return nil, nil
	case lua.LBool:
		return bool(v), nil
	case lua.LNumber:
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, &ConversionError{Path: path, Type: "non-finite number"}
		}
		return f, nil
	case lua.LString:
		return string(v), nil
	case *lua.LTable:
		if active[v] {
			return nil, &ConversionError{Path: path, Type: "table", Err: ErrCycle}
		}
		active[v] = true
		defer delete(active, v)
		return b.decodeTable(v, path, active)
	default:
		return nil, &ConversionError{Path: path, Type: lv.Type().String()}
	}
}

// decodeTable converts a Lua table to either a Go slice or map.
func (b *Bridge) decodeTable(t *lua.LTable, path string, active map[*lua.LTable]bool) (any, error) {
	n, isArray, err := b.arrayLength(t, path)
	if err != nil {
		return nil, err
	}
	if isArray {
		arr := make([]any, n)
		for i := 1; i <= n; i++ {
			v, err := b.decode(t.RawGetInt(i), indexPath(path, i-1), active)
			if err != nil {
				return nil, err
			}
			arr[i-1] = v
		}
		return arr, nil
	}

	m := make(map[string]any)
	t.ForEach(func(k, v lua.LValue) {
		if err != nil {
			return
		}
		var key string
		switch kv := k.(type) {
		case lua.LString:
			key = string(kv)
		case lua.LNumber:
			key = strconv.FormatFloat(float64(kv), 'f', -1, 64)
		default:
			err = &ConversionError{Path: path, Type: k.Type().String() + " key"}
			return
		}
		var gv any
		gv, err = b.decode(v, keyPath(path, key), active)
		m[key] = gv
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// maxArrayIndex bounds the integer keys considered array positions.
const maxArrayIndex = 1 << 31

// arrayLength reports whether t should decode as an array and its length.
// Unmarked tables do when their keys are exactly 1..n with n > 0. Marked
// tables do unless they hold non-positional keys. Holes decode as nil, but
// a marked array whose largest index exceeds twice its element count is
// rejected as sparse.
func (b *Bridge) arrayLength(t *lua.LTable, path string) (int, bool, error) {
	isArray := true
	tooLarge := false
	maxN := 0
	count := 0
	t.ForEach(func(k, _ lua.LValue) {
		count++
		if kn, ok := k.(lua.LNumber); ok {
			f := float64(kn)
			if f >= 1 && f == math.Trunc(f) {
				if f > maxArrayIndex {
					tooLarge = true
					return
				}
				if n := int(f); n > maxN {
					maxN = n
				}
				return
			}
		}
		isArray = false
	})

	if b.IsArray(t) {
		if !isArray && count > 0 {
			return 0, false, nil
		}
		if tooLarge || maxN > 2*count+1 {
			return 0, false, &ConversionError{Path: path, Type: "sparse array"}
		}
		return maxN, true, nil
	}
	return maxN, isArray && !tooLarge && maxN > 0 && count == maxN, nil
}

func indexPath(path string, i int) string {
	return path + "[" + strconv.Itoa(i) + "]"
}

func keyPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}
