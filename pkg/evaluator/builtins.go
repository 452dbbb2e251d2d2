package evaluator

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jayvdb/xq/pkg/types"
)

// builtinFunc is a native function with full generator power: it may emit
// zero or more values and drives its argument filters itself.
type builtinFunc func(ctx context.Context, e *Evaluator, env *Env, args []*types.Node, emit EmitFunc) error

// builtins is populated in init: several builtins drive evalNode, which
// resolves calls through this map, so a composite literal would form an
// initialization cycle.
var builtins map[funcKey]builtinFunc

func init() {
	builtins = map[funcKey]builtinFunc{
		{name: "empty", arity: 0}:         builtinEmpty,
		{name: "error", arity: 0}:         builtinError0,
		{name: "error", arity: 1}:         builtinError1,
		{name: "not", arity: 0}:           builtinNot,
		{name: "length", arity: 0}:        builtinLength,
		{name: "keys", arity: 0}:          builtinKeys,
		{name: "keys_unsorted", arity: 0}: builtinKeysUnsorted,
		{name: "type", arity: 0}:          builtinType,
		{name: "range", arity: 1}:         builtinRange1,
		{name: "range", arity: 2}:         builtinRange2,
		{name: "limit", arity: 2}:         builtinLimit,
		{name: "first", arity: 1}:         builtinFirst,
		{name: "now", arity: 0}:           builtinNow,
		{name: "uuid", arity: 0}:          builtinUUID,
	}
}

func builtinEmpty(context.Context, *Evaluator, *Env, []*types.Node, EmitFunc) error {
	return nil
}

func builtinError0(_ context.Context, _ *Evaluator, env *Env, _ []*types.Node, _ EmitFunc) error {
	return types.NewQueryError(types.ErrUserError, env.Subject())
}

func builtinError1(ctx context.Context, e *Evaluator, env *Env, args []*types.Node, _ EmitFunc) error {
	return e.evalNode(ctx, args[0], env, func(v types.Value) error {
		return types.NewQueryError(types.ErrUserError, v)
	})
}

func builtinNot(_ context.Context, _ *Evaluator, env *Env, _ []*types.Node, emit EmitFunc) error {
	return emit(types.Bool(!types.Truthy(env.Subject())))
}

func builtinLength(_ context.Context, _ *Evaluator, env *Env, _ []*types.Node, emit EmitFunc) error {
	switch v := env.Subject().(type) {
	case types.Null:
		return emit(types.Number(0))
	case types.Number:
		return emit(types.Number(math.Abs(float64(v))))
	case types.String:
		return emit(types.Number(len([]rune(string(v)))))
	case types.Array:
		return emit(types.Number(len(v)))
	case *types.Object:
		return emit(types.Number(v.Len()))
	default:
		return types.NewQueryError(types.ErrUserError,
			types.String(fmt.Sprintf("%s (%s) has no length", v.Kind(), v)))
	}
}

func builtinKeys(_ context.Context, _ *Evaluator, env *Env, _ []*types.Node, emit EmitFunc) error {
	obj, ok := env.Subject().(*types.Object)
	if !ok {
		return types.NewQueryError(types.ErrUserError,
			types.String(fmt.Sprintf("%s (%s) has no keys", env.Subject().Kind(), env.Subject())))
	}
	keys := append([]string(nil), obj.Keys()...)
	sort.Strings(keys)
	return emit(keyArray(keys))
}

func builtinKeysUnsorted(_ context.Context, _ *Evaluator, env *Env, _ []*types.Node, emit EmitFunc) error {
	obj, ok := env.Subject().(*types.Object)
	if !ok {
		return types.NewQueryError(types.ErrUserError,
			types.String(fmt.Sprintf("%s (%s) has no keys", env.Subject().Kind(), env.Subject())))
	}
	return emit(keyArray(obj.Keys()))
}

func keyArray(keys []string) types.Array {
	arr := make(types.Array, len(keys))
	for i, k := range keys {
		arr[i] = types.String(k)
	}
	return arr
}

func builtinType(_ context.Context, _ *Evaluator, env *Env, _ []*types.Node, emit EmitFunc) error {
	return emit(types.String(env.Subject().Kind().String()))
}

func builtinRange1(ctx context.Context, e *Evaluator, env *Env, args []*types.Node, emit EmitFunc) error {
	return e.evalNode(ctx, args[0], env, func(to types.Value) error {
		return emitRange(ctx, types.Number(0), to, emit)
	})
}

func builtinRange2(ctx context.Context, e *Evaluator, env *Env, args []*types.Node, emit EmitFunc) error {
	return e.evalNode(ctx, args[0], env, func(from types.Value) error {
		return e.evalNode(ctx, args[1], env, func(to types.Value) error {
			return emitRange(ctx, from, to, emit)
		})
	})
}

// emitRange lazily emits from, from+1, ... while below to. The upper bound
// may be unbounded from the filter's point of view; only downstream
// consumption (a limit, an emit error) stops the walk early.
func emitRange(ctx context.Context, from, to types.Value, emit EmitFunc) error {
	f, ok := from.(types.Number)
	if !ok {
		return types.NewQueryError(types.ErrUserError,
			types.String(fmt.Sprintf("range bound must be a number, not %s", from.Kind())))
	}
	t, ok := to.(types.Number)
	if !ok {
		return types.NewQueryError(types.ErrUserError,
			types.String(fmt.Sprintf("range bound must be a number, not %s", to.Kind())))
	}
	for n := f; n < t; n++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := emit(n); err != nil {
			return err
		}
	}
	return nil
}

// builtinLimit emits at most n values of its second argument. A negative n
// lifts the limit; zero emits nothing. The generator is abandoned as soon as
// the limit is reached, so unbounded generators stay safe.
func builtinLimit(ctx context.Context, e *Evaluator, env *Env, args []*types.Node, emit EmitFunc) error {
	return e.evalNode(ctx, args[0], env, func(nv types.Value) error {
		num, ok := nv.(types.Number)
		if !ok {
			return types.NewQueryError(types.ErrUserError,
				types.String(fmt.Sprintf("limit count must be a number, not %s", nv.Kind())))
		}
		n, qerr := types.RequireInt(num)
		if qerr != nil {
			return qerr
		}
		switch {
		case n == 0:
			return nil
		case n < 0:
			return e.evalNode(ctx, args[1], env, emit)
		}
		return limitedEval(ctx, e, args[1], env, n, emit)
	})
}

func builtinFirst(ctx context.Context, e *Evaluator, env *Env, args []*types.Node, emit EmitFunc) error {
	return limitedEval(ctx, e, args[0], env, 1, emit)
}

// limitedEval forwards at most n emissions of node, stopping the generator
// in place with a call-local sentinel so an enclosing limit's own stop is
// never confused with ours.
func limitedEval(ctx context.Context, e *Evaluator, node *types.Node, env *Env, n int, emit EmitFunc) error {
	stop := fmt.Errorf("limit of %d reached", n)
	count := 0
	err := e.evalNode(ctx, node, env, func(v types.Value) error {
		if err := emit(v); err != nil {
			return err
		}
		count++
		if count >= n {
			return stop
		}
		return nil
	})
	if err == stop {
		return nil
	}
	return err
}

func builtinNow(_ context.Context, _ *Evaluator, _ *Env, _ []*types.Node, emit EmitFunc) error {
	return emit(types.Number(float64(time.Now().UnixNano()) / float64(time.Second)))
}

func builtinUUID(_ context.Context, _ *Evaluator, _ *Env, _ []*types.Node, emit EmitFunc) error {
	return emit(types.String(uuid.New().String()))
}
