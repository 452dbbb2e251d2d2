// Package types defines the core type system for xq.
//
// This package contains:
//   - Value: the immutable JSON value model (Null, Bool, Number, String,
//     Array, Object) shared structurally across evaluation scopes
//   - The polymorphic primitive operations every filter bottoms out in
//     (Index, Slice, Iterate, Negate, BinaryOp, ConstructObject)
//   - Node: the executable program tree produced by the parser
//   - Expression: a compiled query
//   - QueryError: the runtime error taxonomy
package types

import (
	"math"
	"sort"
	"strings"
)

// Kind identifies the concrete type of a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

// String returns the jq-style type name.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "boolean"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// Value is one immutable JSON value. Composite values (Array, Object) share
// their underlying storage across references; no operation mutates a Value
// after construction, so sharing is always safe.
type Value interface {
	Kind() Kind
	// String renders the value as compact JSON, primarily for diagnostics.
	String() string
}

// Null is the JSON null.
type Null struct{}

// Bool is a JSON boolean.
type Bool bool

// Number is a JSON number. It is kept as float64, which carries enough
// precision to decide integrality for indices, slice bounds and repeat
// counts.
type Number float64

// String is a JSON string (UTF-8).
type String string

// Array is an ordered sequence of Values.
type Array []Value

// Object is a JSON object whose keys keep insertion order, so encoding a
// decoded document round-trips deterministically.
//
// An Object must not be modified after it is first shared; builders use set
// before publishing the value.
type Object struct {
	keys    []string
	entries map[string]Value
}

func (Null) Kind() Kind    { return KindNull }
func (Bool) Kind() Kind    { return KindBool }
func (Number) Kind() Kind  { return KindNumber }
func (String) Kind() Kind  { return KindString }
func (Array) Kind() Kind   { return KindArray }
func (*Object) Kind() Kind { return KindObject }

// NullValue is the canonical null.
var NullValue = Null{}

// True and False are the canonical booleans.
var (
	True  = Bool(true)
	False = Bool(false)
)

// IsIntegral reports whether the number has a zero fractional part.
func (n Number) IsIntegral() bool {
	f := float64(n)
	return !math.IsNaN(f) && !math.IsInf(f, 0) && math.Trunc(f) == f
}

// NewObject returns an empty object.
func NewObject() *Object {
	return &Object{entries: map[string]Value{}}
}

// set binds key to value, keeping first-insertion key order. It is only
// called while the object is being built, before it escapes.
func (o *Object) set(key string, value Value) {
	if _, ok := o.entries[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.entries[key] = value
}

// Get returns the value bound to key.
func (o *Object) Get(key string) (Value, bool) {
	v, ok := o.entries[key]
	return v, ok
}

// Len returns the number of entries.
func (o *Object) Len() int { return len(o.keys) }

// Keys returns the keys in insertion order. The returned slice is shared and
// must not be modified.
func (o *Object) Keys() []string { return o.keys }

// Each walks the entries in insertion order until fn returns false.
func (o *Object) Each(fn func(key string, value Value) bool) {
	for _, k := range o.keys {
		if !fn(k, o.entries[k]) {
			return
		}
	}
}

// Truthy reports jq truthiness: everything except false and null.
func Truthy(v Value) bool {
	switch v := v.(type) {
	case Null:
		return false
	case Bool:
		return bool(v)
	default:
		return true
	}
}

// Equal reports deep structural equality. Numbers compare numerically.
func Equal(a, b Value) bool {
	if a.Kind() != b.Kind() {
		return false
	}
	switch av := a.(type) {
	case Null:
		return true
	case Bool:
		return av == b.(Bool)
	case Number:
		return av == b.(Number)
	case String:
		return av == b.(String)
	case Array:
		bv := b.(Array)
		if len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case *Object:
		bv := b.(*Object)
		if av.Len() != bv.Len() {
			return false
		}
		equal := true
		av.Each(func(k string, v Value) bool {
			ov, ok := bv.Get(k)
			if !ok || !Equal(v, ov) {
				equal = false
				return false
			}
			return true
		})
		return equal
	default:
		return false
	}
}

// Compare totally orders two values per jq convention:
// null < false < true < numbers < strings < arrays < objects.
// Objects compare by sorted key list first, then by value per key.
func Compare(a, b Value) int {
	if ra, rb := orderRank(a), orderRank(b); ra != rb {
		return sign(ra - rb)
	}
	switch av := a.(type) {
	case Null:
		return 0
	case Bool:
		bv := b.(Bool)
		switch {
		case av == bv:
			return 0
		case bool(bv):
			return -1
		default:
			return 1
		}
	case Number:
		bv := b.(Number)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		default:
			return 0
		}
	case String:
		return strings.Compare(string(av), string(b.(String)))
	case Array:
		bv := b.(Array)
		for i := 0; i < len(av) && i < len(bv); i++ {
			if c := Compare(av[i], bv[i]); c != 0 {
				return c
			}
		}
		return sign(len(av) - len(bv))
	case *Object:
		bv := b.(*Object)
		ak, bk := sortedKeys(av), sortedKeys(bv)
		for i := 0; i < len(ak) && i < len(bk); i++ {
			if c := strings.Compare(ak[i], bk[i]); c != 0 {
				return c
			}
		}
		if c := sign(len(ak) - len(bk)); c != 0 {
			return c
		}
		for _, k := range ak {
			x, _ := av.Get(k)
			y, _ := bv.Get(k)
			if c := Compare(x, y); c != 0 {
				return c
			}
		}
		return 0
	default:
		return 0
	}
}

func orderRank(v Value) int {
	switch v := v.(type) {
	case Null:
		return 0
	case Bool:
		if bool(v) {
			return 2
		}
		return 1
	case Number:
		return 3
	case String:
		return 4
	case Array:
		return 5
	default:
		return 6
	}
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	default:
		return 0
	}
}

func sortedKeys(o *Object) []string {
	keys := make([]string, len(o.keys))
	copy(keys, o.keys)
	sort.Strings(keys)
	return keys
}
