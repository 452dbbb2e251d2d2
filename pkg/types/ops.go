package types

import (
	"math"
	"strings"
)

// The primitive operations below are total functions from values to either a
// value or a *QueryError. Every filter construct bottoms out in one of them,
// so their preconditions define the whole runtime error taxonomy.

// RequireInt is the shared integrality gate used by indexing, slicing and
// string repetition.
func RequireInt(n Number) (int, *QueryError) {
	if !n.IsIntegral() {
		return 0, NewQueryError(ErrNonIntegralNumber, n)
	}
	return int(float64(n)), nil
}

// Index applies `base[key]`.
//
// Object bases require a string key and yield null for absent keys. Array
// bases require an integral key; negative indices count from the end and
// out-of-range access yields null. A null base yields null whatever the key.
func Index(base, key Value) (Value, *QueryError) {
	switch b := base.(type) {
	case Null:
		return NullValue, nil
	case *Object:
		k, ok := key.(String)
		if !ok {
			return nil, NewQueryError(ErrObjectIndexByNonString, key)
		}
		if v, ok := b.Get(string(k)); ok {
			return v, nil
		}
		return NullValue, nil
	case Array:
		n, ok := key.(Number)
		if !ok {
			return nil, NewQueryError(ErrArrayIndexByNonInt, key)
		}
		i, err := RequireInt(n)
		if err != nil {
			return nil, NewQueryError(ErrArrayIndexByNonInt, key)
		}
		if i < 0 {
			i += len(b)
		}
		if i < 0 || i >= len(b) {
			return NullValue, nil
		}
		return b[i], nil
	default:
		return nil, NewQueryError(ErrIndexOnNonIndexable, base)
	}
}

// Slice applies `base[start:end]` with jq clamping: a nil bound defaults to
// the corresponding end, negative bounds count from the end, both bounds are
// clamped into [0, len], and an empty window yields an empty result.
// Strings are sliced by rune.
func Slice(base Value, start, end Value) (Value, *QueryError) {
	switch b := base.(type) {
	case Array:
		lo, hi, err := sliceBounds(len(b), start, end)
		if err != nil {
			return nil, err
		}
		out := make(Array, hi-lo)
		copy(out, b[lo:hi])
		return out, nil
	case String:
		runes := []rune(string(b))
		lo, hi, err := sliceBounds(len(runes), start, end)
		if err != nil {
			return nil, err
		}
		return String(runes[lo:hi]), nil
	default:
		return nil, NewQueryError(ErrSliceOnNonArrayNorString, base)
	}
}

func sliceBounds(length int, start, end Value) (int, int, *QueryError) {
	lo, err := sliceBound(length, start, 0)
	if err != nil {
		return 0, 0, err
	}
	hi, err := sliceBound(length, end, length)
	if err != nil {
		return 0, 0, err
	}
	if hi < lo {
		hi = lo
	}
	return lo, hi, nil
}

func sliceBound(length int, bound Value, absent int) (int, *QueryError) {
	if bound == nil {
		return absent, nil
	}
	if _, ok := bound.(Null); ok {
		return absent, nil
	}
	n, ok := bound.(Number)
	if !ok {
		return 0, NewQueryError(ErrSliceByNonInt, bound)
	}
	i, err := RequireInt(n)
	if err != nil {
		return 0, NewQueryError(ErrSliceByNonInt, bound)
	}
	if i < 0 {
		i += length
	}
	if i < 0 {
		i = 0
	}
	if i > length {
		i = length
	}
	return i, nil
}

// Iterate walks the elements of an array, or the values of an object in key
// insertion order, calling fn for each until it returns an error. The walk
// is lazy: fn aborting stops the remaining traversal. Scalar bases fail.
func Iterate(base Value, fn func(Value) error) error {
	switch b := base.(type) {
	case Array:
		for _, item := range b {
			if err := fn(item); err != nil {
				return err
			}
		}
		return nil
	case *Object:
		var err error
		b.Each(func(_ string, item Value) bool {
			err = fn(item)
			return err == nil
		})
		return err
	default:
		return NewQueryError(ErrIterateOnNonIterable, base)
	}
}

// Negate applies unary minus. Defined for numbers only.
func Negate(v Value) (Value, *QueryError) {
	n, ok := v.(Number)
	if !ok {
		return nil, NewOpError(ErrUnaryOnNonNumeric, "-", v)
	}
	return -n, nil
}

// BinaryOp dispatches an operator over a type pair:
//
//	number ⊕ number   arithmetic (+ - * / %), division/modulo by zero fails
//	string + string   concatenation
//	array  + array    concatenation
//	object + object   shallow right-biased merge
//	string * number   repetition by a non-negative integral count
//
// Comparison operators are total over the jq value order and never fail.
// Every other combination fails with IncompatibleBinaryOperator.
func BinaryOp(op string, lhs, rhs Value) (Value, *QueryError) {
	switch op {
	case "==":
		return Bool(Equal(lhs, rhs)), nil
	case "!=":
		return Bool(!Equal(lhs, rhs)), nil
	case "<":
		return Bool(Compare(lhs, rhs) < 0), nil
	case "<=":
		return Bool(Compare(lhs, rhs) <= 0), nil
	case ">":
		return Bool(Compare(lhs, rhs) > 0), nil
	case ">=":
		return Bool(Compare(lhs, rhs) >= 0), nil
	}

	if ln, ok := lhs.(Number); ok {
		if rn, ok := rhs.(Number); ok {
			return numericOp(op, ln, rn)
		}
	}

	switch op {
	case "+":
		switch l := lhs.(type) {
		case String:
			if r, ok := rhs.(String); ok {
				return l + r, nil
			}
		case Array:
			if r, ok := rhs.(Array); ok {
				out := make(Array, 0, len(l)+len(r))
				out = append(out, l...)
				out = append(out, r...)
				return out, nil
			}
		case *Object:
			if r, ok := rhs.(*Object); ok {
				return mergeObjects(l, r), nil
			}
		}
	case "*":
		if l, ok := lhs.(String); ok {
			if r, ok := rhs.(Number); ok {
				return repeatString(l, r)
			}
		}
	}
	return nil, NewOpError(ErrIncompatibleBinaryOperator, op, lhs, rhs)
}

func numericOp(op string, l, r Number) (Value, *QueryError) {
	switch op {
	case "+":
		return l + r, nil
	case "-":
		return l - r, nil
	case "*":
		return l * r, nil
	case "/":
		if r == 0 {
			return nil, NewQueryError(ErrDivModByZero)
		}
		return l / r, nil
	case "%":
		if r == 0 {
			return nil, NewQueryError(ErrDivModByZero)
		}
		return Number(math.Mod(float64(l), float64(r))), nil
	default:
		return nil, NewOpError(ErrIncompatibleBinaryOperator, op, l, r)
	}
}

func mergeObjects(l, r *Object) *Object {
	out := NewObject()
	l.Each(func(k string, v Value) bool {
		out.set(k, v)
		return true
	})
	r.Each(func(k string, v Value) bool {
		out.set(k, v)
		return true
	})
	return out
}

func repeatString(s String, count Number) (Value, *QueryError) {
	n, err := RequireInt(count)
	if err != nil || n < 0 {
		return nil, NewQueryError(ErrStringRepeatByNonUSize, count)
	}
	return String(strings.Repeat(string(s), n)), nil
}

// ObjectEntryPair is one (key, value) pair for object construction.
type ObjectEntryPair struct {
	Key   Value
	Value Value
}

// ConstructObject builds an object from pairs, keeping pair order as key
// insertion order. Later duplicates overwrite earlier values in place.
// Non-string keys fail.
func ConstructObject(pairs []ObjectEntryPair) (Value, *QueryError) {
	obj := NewObject()
	for _, p := range pairs {
		k, ok := p.Key.(String)
		if !ok {
			return nil, NewQueryError(ErrObjectNonStringKey, p.Key)
		}
		obj.set(string(k), p.Value)
	}
	return obj, nil
}
