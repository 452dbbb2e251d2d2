package types

import "fmt"

// ErrorKind identifies one runtime failure class. Every kind is tied to the
// precondition of exactly one primitive operation.
type ErrorKind uint8

const (
	// ErrObjectIndexByNonString: an object was indexed with a non-string key.
	ErrObjectIndexByNonString ErrorKind = iota
	// ErrArrayIndexByNonInt: an array was indexed with a non-integral number.
	ErrArrayIndexByNonInt
	// ErrSliceByNonInt: a slice bound was not integral.
	ErrSliceByNonInt
	// ErrIterateOnNonIterable: `.[]` was applied to a scalar.
	ErrIterateOnNonIterable
	// ErrIndexOnNonIndexable: a scalar other than null was indexed.
	ErrIndexOnNonIndexable
	// ErrSliceOnNonArrayNorString: a slice was applied to a value that is
	// neither an array nor a string.
	ErrSliceOnNonArrayNorString
	// ErrNonIntegralNumber: an integer was required but the number has a
	// fractional part.
	ErrNonIntegralNumber
	// ErrUnaryOnNonNumeric: unary negation of a non-number.
	ErrUnaryOnNonNumeric
	// ErrIncompatibleBinaryOperator: a binary operator was applied to an
	// unsupported type pair.
	ErrIncompatibleBinaryOperator
	// ErrStringRepeatByNonUSize: a string repetition count was not a
	// non-negative integer.
	ErrStringRepeatByNonUSize
	// ErrDivModByZero: division or modulo by zero.
	ErrDivModByZero
	// ErrObjectNonStringKey: an object was constructed with a non-string key.
	ErrObjectNonStringKey
	// ErrUndefinedVariable: a variable reference has no binding in scope.
	ErrUndefinedVariable
	// ErrUndefinedFunction: a function call has no matching (name, arity)
	// definition in scope.
	ErrUndefinedFunction
	// ErrUserError: raised by the error builtin.
	ErrUserError
)

// QueryError is a recoverable runtime evaluation failure. It carries the
// offending value(s) and operator so diagnostics can name them. A QueryError
// aborts the remaining evaluation of the current document unless an
// enclosing try/catch or `?` catches it; it is never fatal to the process.
type QueryError struct {
	Kind   ErrorKind
	Op     string  // operator or identifier, where relevant
	Values []Value // offending values, in operand order
}

// Error implements the error interface. Message shapes follow the original
// diagnostics.
func (e *QueryError) Error() string {
	switch e.Kind {
	case ErrObjectIndexByNonString:
		return fmt.Sprintf("object was indexed by non-string value `%s`", e.value(0))
	case ErrArrayIndexByNonInt:
		return fmt.Sprintf("array was indexed by non-integer value `%s`", e.value(0))
	case ErrSliceByNonInt:
		return fmt.Sprintf("slice by non-integer value `%s`", e.value(0))
	case ErrIterateOnNonIterable:
		return fmt.Sprintf("cannot iterate over non-iterable value `%s`", e.value(0))
	case ErrIndexOnNonIndexable:
		return fmt.Sprintf("cannot index on non-indexable value `%s`", e.value(0))
	case ErrSliceOnNonArrayNorString:
		return fmt.Sprintf("slice on not an array nor a string `%s`", e.value(0))
	case ErrNonIntegralNumber:
		return fmt.Sprintf("expected an integer but got a non-integral value `%s`", e.value(0))
	case ErrUnaryOnNonNumeric:
		return fmt.Sprintf("unary %s was applied to non-numeric value `%s`", e.Op, e.value(0))
	case ErrIncompatibleBinaryOperator:
		return fmt.Sprintf("cannot %s `%s` and `%s`", e.Op, e.value(0), e.value(1))
	case ErrStringRepeatByNonUSize:
		return fmt.Sprintf("cannot repeat string `%s` times", e.value(0))
	case ErrDivModByZero:
		return "cannot divide/modulo by zero"
	case ErrObjectNonStringKey:
		return fmt.Sprintf("tried to construct an object with non-string key `%s`", e.value(0))
	case ErrUndefinedVariable:
		return fmt.Sprintf("variable $%s is not defined", e.Op)
	case ErrUndefinedFunction:
		return fmt.Sprintf("function %s is not defined", e.Op)
	case ErrUserError:
		return e.value(0)
	default:
		return "query execution error"
	}
}

func (e *QueryError) value(i int) string {
	if i >= len(e.Values) || e.Values[i] == nil {
		return "null"
	}
	if e.Kind == ErrUserError {
		if s, ok := e.Values[i].(String); ok {
			return string(s)
		}
	}
	return e.Values[i].String()
}

// Is matches QueryErrors by kind, so callers and tests can use errors.Is
// against a bare-kind target.
func (e *QueryError) Is(target error) bool {
	t, ok := target.(*QueryError)
	return ok && t.Kind == e.Kind
}

// Clone returns a copy safe to retain independently of the original.
func (e *QueryError) Clone() *QueryError {
	values := make([]Value, len(e.Values))
	copy(values, e.Values)
	return &QueryError{Kind: e.Kind, Op: e.Op, Values: values}
}

// NewQueryError creates an error of the given kind over the given values.
func NewQueryError(kind ErrorKind, values ...Value) *QueryError {
	return &QueryError{Kind: kind, Values: values}
}

// NewOpError creates an error that also names the operator or identifier
// involved.
func NewOpError(kind ErrorKind, op string, values ...Value) *QueryError {
	return &QueryError{Kind: kind, Op: op, Values: values}
}
