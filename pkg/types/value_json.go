package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
)

// String renders compact JSON for diagnostics.
func (Null) String() string      { return "null" }
func (v Bool) String() string    { return strconv.FormatBool(bool(v)) }
func (v Number) String() string  { return string(appendNumber(nil, v)) }
func (v String) String() string  { return string(appendString(nil, v)) }
func (v Array) String() string   { return string(appendValue(nil, v)) }
func (v *Object) String() string { return string(appendValue(nil, v)) }

// MarshalJSON implementations keep encoding/json interoperable with the
// value model (ordered object keys, integral number rendering).
func (v Null) MarshalJSON() ([]byte, error)    { return []byte("null"), nil }
func (v Bool) MarshalJSON() ([]byte, error)    { return appendValue(nil, v), nil }
func (v Number) MarshalJSON() ([]byte, error)  { return appendNumber(nil, v), nil }
func (v String) MarshalJSON() ([]byte, error)  { return appendString(nil, v), nil }
func (v Array) MarshalJSON() ([]byte, error)   { return appendValue(nil, v), nil }
func (v *Object) MarshalJSON() ([]byte, error) { return appendValue(nil, v), nil }

// Encode writes v as compact JSON.
func Encode(w io.Writer, v Value) error {
	_, err := w.Write(appendValue(nil, v))
	return err
}

// EncodeIndent writes v as two-space indented JSON.
func EncodeIndent(w io.Writer, v Value) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, appendValue(nil, v), "", "  "); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

func appendValue(dst []byte, v Value) []byte {
	switch v := v.(type) {
	case Null:
		return append(dst, "null"...)
	case Bool:
		if v {
			return append(dst, "true"...)
		}
		return append(dst, "false"...)
	case Number:
		return appendNumber(dst, v)
	case String:
		return appendString(dst, v)
	case Array:
		dst = append(dst, '[')
		for i, item := range v {
			if i > 0 {
				dst = append(dst, ',')
			}
			dst = appendValue(dst, item)
		}
		return append(dst, ']')
	case *Object:
		dst = append(dst, '{')
		first := true
		v.Each(func(k string, item Value) bool {
			if !first {
				dst = append(dst, ',')
			}
			first = false
			dst = appendString(dst, String(k))
			dst = append(dst, ':')
			dst = appendValue(dst, item)
			return true
		})
		return append(dst, '}')
	default:
		return append(dst, "null"...)
	}
}

// appendNumber renders integral numbers without a fractional part, matching
// jq output ("1" rather than "1.0").
func appendNumber(dst []byte, n Number) []byte {
	f := float64(n)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		// Non-finite numbers cannot appear in JSON text; clamp like jq does.
		if math.IsInf(f, -1) {
			return append(dst, "-1.7976931348623157e+308"...)
		}
		if math.IsInf(f, 1) {
			return append(dst, "1.7976931348623157e+308"...)
		}
		return append(dst, "null"...)
	}
	if n.IsIntegral() && math.Abs(f) < 1e15 {
		return strconv.AppendInt(dst, int64(f), 10)
	}
	return strconv.AppendFloat(dst, f, 'g', -1, 64)
}

func appendString(dst []byte, s String) []byte {
	b, _ := json.Marshal(string(s))
	return append(dst, b...)
}

// Decode reads the next JSON value from dec, preserving object key insertion
// order. It returns io.EOF when the stream is exhausted. The decoder must
// have UseNumber enabled by the caller or be freshly created here; Decode
// works on the token stream and is unaffected either way.
func Decode(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	return fromToken(dec, tok)
}

func fromToken(dec *json.Decoder, tok json.Token) (Value, error) {
	switch t := tok.(type) {
	case nil:
		return NullValue, nil
	case bool:
		return Bool(t), nil
	case float64:
		return Number(t), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return nil, err
		}
		return Number(f), nil
	case string:
		return String(t), nil
	case json.Delim:
		switch t {
		case '[':
			arr := Array{}
			for dec.More() {
				item, err := Decode(dec)
				if err != nil {
					return nil, err
				}
				arr = append(arr, item)
			}
			if _, err := dec.Token(); err != nil { // consume ']'
				return nil, err
			}
			return arr, nil
		case '{':
			obj := NewObject()
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("unexpected object key token %v", keyTok)
				}
				item, err := Decode(dec)
				if err != nil {
					return nil, err
				}
				obj.set(key, item)
			}
			if _, err := dec.Token(); err != nil { // consume '}'
				return nil, err
			}
			return obj, nil
		default:
			return nil, fmt.Errorf("unexpected delimiter %v", t)
		}
	default:
		return nil, fmt.Errorf("unexpected token %v", tok)
	}
}

// FromGo converts decoded Go values (as produced by encoding/json or
// goccy/go-yaml) into the value model. Map iteration order is not defined
// for plain Go maps; ordered inputs should be decoded with Decode or an
// ordered map type instead.
func FromGo(v interface{}) (Value, error) {
	switch t := v.(type) {
	case nil:
		return NullValue, nil
	case bool:
		return Bool(t), nil
	case int:
		return Number(t), nil
	case int64:
		return Number(t), nil
	case uint64:
		return Number(t), nil
	case float64:
		return Number(t), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return nil, err
		}
		return Number(f), nil
	case string:
		return String(t), nil
	case []interface{}:
		arr := make(Array, 0, len(t))
		for _, item := range t {
			cv, err := FromGo(item)
			if err != nil {
				return nil, err
			}
			arr = append(arr, cv)
		}
		return arr, nil
	case map[string]interface{}:
		obj := NewObject()
		for _, k := range sortedMapKeys(t) {
			cv, err := FromGo(t[k])
			if err != nil {
				return nil, err
			}
			obj.set(k, cv)
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("cannot convert %T to a value", v)
	}
}

// ToGo converts a Value to plain Go data (objects become map[string]any,
// losing key order). Useful for interop with encoders that do not understand
// the value model.
func ToGo(v Value) interface{} {
	switch t := v.(type) {
	case Null:
		return nil
	case Bool:
		return bool(t)
	case Number:
		return float64(t)
	case String:
		return string(t)
	case Array:
		out := make([]interface{}, len(t))
		for i, item := range t {
			out[i] = ToGo(item)
		}
		return out
	case *Object:
		out := make(map[string]interface{}, t.Len())
		t.Each(func(k string, item Value) bool {
			out[k] = ToGo(item)
			return true
		})
		return out
	default:
		return nil
	}
}

func sortedMapKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
