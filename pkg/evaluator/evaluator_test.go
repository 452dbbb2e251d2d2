package evaluator

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jayvdb/xq/pkg/parser"
	"github.com/jayvdb/xq/pkg/types"
)

func decode(t *testing.T, src string) types.Value {
	t.Helper()
	v, err := types.Decode(json.NewDecoder(strings.NewReader(src)))
	if err != nil {
		t.Fatalf("decode %q: %v", src, err)
	}
	return v
}

// run evaluates query against the JSON document in input and returns the
// output stream rendered as compact JSON.
func run(t *testing.T, query, input string) ([]string, error) {
	t.Helper()
	expr, err := parser.Parse(query)
	if err != nil {
		t.Fatalf("parse %q: %v", query, err)
	}
	var out []string
	runErr := New().Run(context.Background(), expr, decode(t, input), func(v types.Value) error {
		out = append(out, v.String())
		return nil
	})
	return out, runErr
}

func wantOutputs(t *testing.T, query, input string, want ...string) {
	t.Helper()
	got, err := run(t, query, input)
	if err != nil {
		t.Fatalf("%s: %v", query, err)
	}
	if len(got) != len(want) {
		t.Fatalf("%s: got %d outputs %v, want %d %v", query, len(got), got, len(want), want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("%s: output %d = %s, want %s", query, i, got[i], want[i])
		}
	}
}

func wantFailure(t *testing.T, query, input string, kind types.ErrorKind) {
	t.Helper()
	_, err := run(t, query, input)
	if err == nil {
		t.Fatalf("%s: succeeded, want error", query)
	}
	var qerr *types.QueryError
	if !errors.As(err, &qerr) {
		t.Fatalf("%s: got %T (%v), want *types.QueryError", query, err, err)
	}
	if qerr.Kind != kind {
		t.Errorf("%s: got kind %d (%v), want %d", query, qerr.Kind, qerr, kind)
	}
}

func TestIdentityAndAccess(t *testing.T) {
	wantOutputs(t, `.`, `{"a":1}`, `{"a":1}`)
	wantOutputs(t, `.a`, `{"a":1}`, `1`)
	wantOutputs(t, `.missing`, `{"a":1}`, `null`)
	wantOutputs(t, `.a.b`, `{"a":{"b":2}}`, `2`)
	wantOutputs(t, `.a.b`, `null`, `null`)
	wantOutputs(t, `.[1]`, `[10,20,30]`, `20`)
	wantOutputs(t, `.[-1]`, `[10,20,30]`, `30`)
	wantOutputs(t, `.[1:3]`, `[0,1,2,3]`, `[1,2]`)
	wantOutputs(t, `.[1:]`, `"hello"`, `"ello"`)
}

func TestAccessErrors(t *testing.T) {
	wantFailure(t, `.[0]`, `{"a":1}`, types.ErrObjectIndexByNonString)
	wantFailure(t, `.a`, `[1,2]`, types.ErrArrayIndexByNonInt)
	wantFailure(t, `.a`, `5`, types.ErrIndexOnNonIndexable)
	wantFailure(t, `.[]`, `5`, types.ErrIterateOnNonIterable)
	wantFailure(t, `.[1:2]`, `null`, types.ErrSliceOnNonArrayNorString)
}

func TestStreamComposition(t *testing.T) {
	wantOutputs(t, `.[]`, `[1,2,3]`, `1`, `2`, `3`)
	wantOutputs(t, `.[]`, `{"z":1,"a":2}`, `1`, `2`)
	wantOutputs(t, `.[] | . + 1`, `[1,2]`, `2`, `3`)
	wantOutputs(t, `1, 2, 3`, `null`, `1`, `2`, `3`)
	wantOutputs(t, `(1, 2), (3, 4)`, `null`, `1`, `2`, `3`, `4`)
	wantOutputs(t, `.[] | .[]`, `[[1,2],[3]]`, `1`, `2`, `3`)
	wantOutputs(t, `empty`, `null`)
	wantOutputs(t, `1, empty, 2`, `null`, `1`, `2`)
}

func TestCartesianOrder(t *testing.T) {
	// Left operand varies fastest.
	wantOutputs(t, `(1, 2) + (10, 20)`, `null`, `11`, `12`, `21`, `22`)
	wantOutputs(t, `.[(0, 1)]`, `[10,20]`, `10`, `20`)
}

func TestArithmetic(t *testing.T) {
	wantOutputs(t, `1 + 2 * 3`, `null`, `7`)
	wantOutputs(t, `10 / 4`, `null`, `2.5`)
	wantOutputs(t, `7 % 3`, `null`, `1`)
	wantOutputs(t, `-.`, `5`, `-5`)
	wantOutputs(t, `"a" + "b"`, `null`, `"ab"`)
	wantOutputs(t, `[1] + [2]`, `null`, `[1,2]`)
	wantOutputs(t, `{"a":1} + {"a":2,"b":3}`, `null`, `{"a":2,"b":3}`)
	wantOutputs(t, `"ab" * 2`, `null`, `"abab"`)
	wantFailure(t, `1 / 0`, `null`, types.ErrDivModByZero)
	wantFailure(t, `"a" + 1`, `null`, types.ErrIncompatibleBinaryOperator)
	wantFailure(t, `-"a"`, `null`, types.ErrUnaryOnNonNumeric)
}

func TestComparisonsAndLogic(t *testing.T) {
	wantOutputs(t, `1 < 2`, `null`, `true`)
	wantOutputs(t, `null < false`, `null`, `true`)
	wantOutputs(t, `[1,2] == [1,2]`, `null`, `true`)
	wantOutputs(t, `0 and ""`, `null`, `true`)
	wantOutputs(t, `null and true`, `null`, `false`)
	wantOutputs(t, `false or null`, `null`, `false`)
	// Logic operators stream per left value without full enumeration.
	wantOutputs(t, `(true, false) and true`, `null`, `true`, `false`)
}

func TestAlternative(t *testing.T) {
	wantOutputs(t, `null // 5`, `null`, `5`)
	wantOutputs(t, `false // 5`, `null`, `5`)
	wantOutputs(t, `1 // 5`, `null`, `1`)
	// Only truthy lhs values pass through.
	wantOutputs(t, `(null, 1, false, 2) // 9`, `null`, `1`, `2`)
	// An lhs failure falls back instead of propagating.
	wantOutputs(t, `(1 / 0) // "fallback"`, `null`, `"fallback"`)
	wantOutputs(t, `.a.b // "none"`, `{"a":null}`, `"none"`)
}

func TestConstruction(t *testing.T) {
	wantOutputs(t, `[.[] | . * 2]`, `[1,2,3]`, `[2,4,6]`)
	wantOutputs(t, `[]`, `null`, `[]`)
	wantOutputs(t, `[empty]`, `null`, `[]`)
	wantOutputs(t, `{}`, `null`, `{}`)
	wantOutputs(t, `{b: .a, a: 1}`, `{"a":9}`, `{"b":9,"a":1}`)
	wantOutputs(t, `{name}`, `{"name":"n","x":1}`, `{"name":"n"}`)
	wantOutputs(t, `{("k" + "ey"): 1}`, `null`, `{"key":1}`)
	wantFailure(t, `{(1): 2}`, `null`, types.ErrObjectNonStringKey)
}

func TestObjectCartesian(t *testing.T) {
	// Rightmost field varies fastest.
	wantOutputs(t, `{a: (1, 2), b: (3, 4)}`, `null`,
		`{"a":1,"b":3}`, `{"a":1,"b":4}`, `{"a":2,"b":3}`, `{"a":2,"b":4}`)
}

func TestConditionals(t *testing.T) {
	wantOutputs(t, `if . then "y" else "n" end`, `true`, `"y"`)
	wantOutputs(t, `if . then "y" else "n" end`, `null`, `"n"`)
	wantOutputs(t, `if . then "y" end`, `false`, `false`)
	wantOutputs(t, `if .a then 1 elif .b then 2 else 3 end`, `{"b":true}`, `2`)
	// A streaming condition runs the branches per condition value.
	wantOutputs(t, `if (true, false) then "t" else "f" end`, `null`, `"t"`, `"f"`)
}

func TestVariables(t *testing.T) {
	wantOutputs(t, `.a as $x | .b + $x`, `{"a":1,"b":2}`, `3`)
	wantOutputs(t, `(.[] | . as $x | $x * $x)`, `[2,3]`, `4`, `9`)
	// The binding body runs once per bound value.
	wantOutputs(t, `(1, 2) as $x | $x * 10`, `null`, `10`, `20`)
	wantFailure(t, `$nope`, `null`, types.ErrUndefinedVariable)
}

func TestFunctions(t *testing.T) {
	wantOutputs(t, `def double: . * 2; double`, `21`, `42`)
	wantOutputs(t, `def add(a; b): a + b; add(1; 2)`, `null`, `3`)
	// Arguments are filters: each invocation re-evaluates them.
	wantOutputs(t, `def twice(f): f, f; twice(. + 1)`, `1`, `2`, `2`)
	// Streaming arguments fan out.
	wantOutputs(t, `def id(f): f; id(1, 2)`, `null`, `1`, `2`)
	// Lexical scoping: the body sees its definition site, not the call site.
	wantOutputs(t, `1 as $x | def f: $x; 2 as $x | f`, `null`, `1`)
	// Recursion terminates through limit.
	wantOutputs(t, `def nat: 0, (nat + 1); limit(4; nat)`, `null`, `0`, `1`, `2`, `3`)
	wantFailure(t, `nosuch(1)`, `null`, types.ErrUndefinedFunction)
	// Same name, different arity, is a different function.
	wantFailure(t, `def f(a): a; f`, `null`, types.ErrUndefinedFunction)
}

func TestTryCatch(t *testing.T) {
	wantOutputs(t, `try (1 / 0) catch "caught"`, `null`, `"caught"`)
	wantOutputs(t, `(1 / 0)?`, `null`)
	wantOutputs(t, `try .a`, `5`)
	wantOutputs(t, `(.[] | .a?)`, `[{"a":1},5,{"a":2}]`, `1`, `2`)
	wantOutputs(t, `try error("boom") catch .`, `null`, `"boom"`)
	// error/1 carries any value; the handler sees the payload itself.
	wantOutputs(t, `try error({"code": 3}) catch .code`, `null`, `3`)
	wantOutputs(t, `try error catch .`, `"oops"`, `"oops"`)
	// Values emitted before the failure stay delivered.
	wantOutputs(t, `try (1, 2, error("x")) catch "c"`, `null`, `1`, `2`, `"c"`)
}

func TestTryDoesNotCatchDownstreamErrors(t *testing.T) {
	// The failure happens downstream of the try body, so it propagates.
	wantFailure(t, `(try . catch "c") | 1 / 0`, `null`, types.ErrDivModByZero)
	wantFailure(t, `(. ?) | error("later")`, `null`, types.ErrUserError)
}

func TestBuiltins(t *testing.T) {
	wantOutputs(t, `length`, `[1,2,3]`, `3`)
	wantOutputs(t, `length`, `"héllo"`, `5`)
	wantOutputs(t, `length`, `{"a":1}`, `1`)
	wantOutputs(t, `length`, `null`, `0`)
	wantOutputs(t, `length`, `-5`, `5`)
	wantFailure(t, `length`, `true`, types.ErrUserError)
	wantOutputs(t, `keys`, `{"z":1,"a":2}`, `["a","z"]`)
	wantOutputs(t, `keys_unsorted`, `{"z":1,"a":2}`, `["z","a"]`)
	wantOutputs(t, `type`, `[1]`, `"array"`)
	wantOutputs(t, `not`, `null`, `true`)
	wantOutputs(t, `range(3)`, `null`, `0`, `1`, `2`)
	wantOutputs(t, `range(2; 5)`, `null`, `2`, `3`, `4`)
	wantOutputs(t, `first(.[])`, `[7,8,9]`, `7`)
	wantOutputs(t, `limit(0; 1, 2)`, `null`)
	wantOutputs(t, `limit(-1; 1, 2)`, `null`, `1`, `2`)
}

func TestLimitAbandonsGenerator(t *testing.T) {
	// The inner generator is infinite; limit must stop it.
	wantOutputs(t, `def zeros: 0, zeros; limit(3; zeros)`, `null`, `0`, `0`, `0`)
}

func TestBuiltinsComposeThroughEvaluation(t *testing.T) {
	// Builtins that drive filter arguments resolve nested builtin calls
	// through the same dispatch table.
	wantOutputs(t, `limit(2; range(10))`, `null`, `0`, `1`)
	wantOutputs(t, `first(range(3; 100))`, `null`, `3`)
}

func TestLimitStaysLazyThroughPipe(t *testing.T) {
	// The generator is infinite and its output flows through a pipe before
	// reaching the limit; nothing past the third value may be produced.
	wantOutputs(t, `def nat: 0, (nat + 1); limit(3; nat | . * 2)`, `null`, `0`, `2`, `4`)
}

func TestEmissionsPrecedingFailureAreDelivered(t *testing.T) {
	expr, err := parser.Parse(`.[] | 10 / .`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	var got []string
	runErr := New().Run(context.Background(), expr, decode(t, `[5, 2, 0, 1]`), func(v types.Value) error {
		got = append(got, v.String())
		return nil
	})
	var qerr *types.QueryError
	if !errors.As(runErr, &qerr) || qerr.Kind != types.ErrDivModByZero {
		t.Fatalf("got %v, want DivModByZero", runErr)
	}
	if len(got) != 2 || got[0] != "2" || got[1] != "5" {
		t.Errorf("got %v, want the two emissions before the failure", got)
	}
}

func TestNestedLimits(t *testing.T) {
	wantOutputs(t, `limit(2; limit(3; 1, 2, 3, 4))`, `null`, `1`, `2`)
	wantOutputs(t, `limit(3; limit(1; 1, 2), 5, 6)`, `null`, `1`, `5`, `6`)
}

func TestEmitStopPropagatesVerbatim(t *testing.T) {
	expr, err := parser.Parse(`1, 2, 3`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	stop := errors.New("enough")
	var got []types.Value
	runErr := New().Run(context.Background(), expr, types.NullValue, func(v types.Value) error {
		got = append(got, v)
		if len(got) == 2 {
			return stop
		}
		return nil
	})
	if runErr != stop {
		t.Errorf("got %v, want the emit error verbatim", runErr)
	}
	if len(got) != 2 {
		t.Errorf("got %d values, want 2", len(got))
	}
}

func TestDepthLimitIsNotCatchable(t *testing.T) {
	expr, err := parser.Parse(`def f: f; try f catch "caught"`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	runErr := New(WithMaxDepth(100)).Run(context.Background(), expr, types.NullValue, func(types.Value) error {
		t.Error("no value should be emitted")
		return nil
	})
	if runErr == nil {
		t.Fatal("want depth error")
	}
	var qerr *types.QueryError
	if errors.As(runErr, &qerr) {
		t.Errorf("depth exhaustion must not be a query error, got %v", qerr)
	}
}

func TestContextCancellation(t *testing.T) {
	expr, err := parser.Parse(`range(1000000000)`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	count := 0
	runErr := New().Run(ctx, expr, types.NullValue, func(types.Value) error {
		count++
		if count == 10 {
			cancel()
		}
		return nil
	})
	if !errors.Is(runErr, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", runErr)
	}
}

func TestTimeout(t *testing.T) {
	expr, err := parser.Parse(`range(1000000000) | empty`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	ev := New(WithTimeout(10 * time.Millisecond))
	runErr := ev.Run(context.Background(), expr, types.NullValue, func(types.Value) error { return nil })
	if !errors.Is(runErr, context.DeadlineExceeded) {
		t.Errorf("got %v, want context.DeadlineExceeded", runErr)
	}
}

func TestCustomFunctions(t *testing.T) {
	ev := New(WithFunction("shout", 0, func(_ context.Context, subject types.Value, _ []types.Value) (types.Value, error) {
		s, ok := subject.(types.String)
		if !ok {
			return nil, types.NewQueryError(types.ErrUserError, types.String("shout needs a string"))
		}
		return types.String(strings.ToUpper(string(s))), nil
	}))
	expr, err := parser.Parse(`shout`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	out, err := ev.Eval(context.Background(), expr, types.String("hi"))
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if len(out) != 1 || out[0].String() != `"HI"` {
		t.Errorf("got %v, want [\"HI\"]", out)
	}
}

func TestEvalQueryUsesCache(t *testing.T) {
	ev := New(WithCaching(true))
	for i := 0; i < 3; i++ {
		err := ev.EvalQuery(context.Background(), `. + 1`, types.Number(1), func(v types.Value) error {
			if !types.Equal(v, types.Number(2)) {
				t.Errorf("got %s, want 2", v)
			}
			return nil
		})
		if err != nil {
			t.Fatalf("EvalQuery: %v", err)
		}
	}
	if ev.Cache().Len() != 1 {
		t.Errorf("cache holds %d entries, want 1", ev.Cache().Len())
	}
}

func TestErrorsUseErrorsIs(t *testing.T) {
	_, err := run(t, `1 / 0`, `null`)
	if !errors.Is(err, types.NewQueryError(types.ErrDivModByZero)) {
		t.Errorf("errors.Is should match on kind, got %v", err)
	}
}
