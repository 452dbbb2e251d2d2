package evaluator

import (
	"context"
	"fmt"

	"github.com/jayvdb/xq/pkg/types"
)

// shieldedError wraps an error that crossed the boundary of a guarded
// subtree from the outside: an error returned by the downstream continuation
// while it was consuming a guarded emission. try/catch and `//` must let
// such errors pass through uncaught, because they belong to the surrounding
// evaluation, not to the guarded body.
type shieldedError struct {
	err error
}

func (s *shieldedError) Error() string { return s.err.Error() }
func (s *shieldedError) Unwrap() error { return s.err }

// shieldEmit wraps emit so that any error it returns is marked as foreign to
// the guarded subtree currently being evaluated.
func shieldEmit(emit EmitFunc) EmitFunc {
	return func(v types.Value) error {
		if err := emit(v); err != nil {
			return &shieldedError{err: err}
		}
		return nil
	}
}

// unshield strips one shield layer, restoring the error that the downstream
// continuation originally returned.
func unshield(err error) (error, bool) {
	if s, ok := err.(*shieldedError); ok {
		return s.err, true
	}
	return err, false
}

// evalNode evaluates one program node against env, streaming every produced
// value through emit. It returns nil once the node's output stream is
// exhausted, the continuation's error verbatim if emit stopped evaluation,
// or a *types.QueryError if a primitive operation failed. Values emitted
// before a failure remain delivered.
func (e *Evaluator) evalNode(ctx context.Context, node *types.Node, env *Env, emit EmitFunc) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if env.Depth() > e.opts.MaxDepth {
		return fmt.Errorf("maximum evaluation depth exceeded (%d)", e.opts.MaxDepth)
	}

	if e.opts.Debug {
		e.logger.Debug("evaluating node",
			"type", node.Type,
			"pos", node.Pos,
			"depth", env.Depth())
	}

	switch node.Type {
	case types.NodeIdentity:
		return emit(env.Subject())
	case types.NodeLiteral:
		return emit(node.Literal)
	case types.NodeIndex:
		return e.evalIndex(ctx, node, env, emit)
	case types.NodeSlice:
		return e.evalSlice(ctx, node, env, emit)
	case types.NodeIterate:
		return e.evalIterate(ctx, node, env, emit)
	case types.NodePipe:
		return e.evalPipe(ctx, node, env, emit)
	case types.NodeComma:
		return e.evalComma(ctx, node, env, emit)
	case types.NodeUnary:
		return e.evalUnary(ctx, node, env, emit)
	case types.NodeBinary:
		return e.evalBinary(ctx, node, env, emit)
	case types.NodeArray:
		return e.evalArray(ctx, node, env, emit)
	case types.NodeObject:
		return e.evalObject(ctx, node, env, emit)
	case types.NodeIf:
		return e.evalIf(ctx, node, env, emit)
	case types.NodeBind:
		return e.evalBind(ctx, node, env, emit)
	case types.NodeFuncDef:
		return e.evalNode(ctx, node.RHS, env.DefineFunction(node.Str, node.Params, node.Body), emit)
	case types.NodeCall:
		return e.evalCall(ctx, node, env, emit)
	case types.NodeVariable:
		v, ok := env.LookupVariable(node.Str)
		if !ok {
			return types.NewOpError(types.ErrUndefinedVariable, node.Str)
		}
		return emit(v)
	case types.NodeTry:
		return e.evalTry(ctx, node, env, emit)
	default:
		return fmt.Errorf("unsupported node type: %s", node.Type)
	}
}

// evalIndex evaluates the base, and for each base value every key value,
// applying the index primitive per combination (base stream outer, key
// stream inner).
func (e *Evaluator) evalIndex(ctx context.Context, node *types.Node, env *Env, emit EmitFunc) error {
	return e.evalNode(ctx, node.LHS, env, func(base types.Value) error {
		return e.evalNode(ctx, node.Key, env, func(key types.Value) error {
			v, qerr := types.Index(base, key)
			if qerr != nil {
				return qerr
			}
			return emit(v)
		})
	})
}

// evalSlice enumerates base, then start, then end streams (inner to outer in
// that order), slicing per combination. Absent bounds behave as null.
func (e *Evaluator) evalSlice(ctx context.Context, node *types.Node, env *Env, emit EmitFunc) error {
	return e.evalNode(ctx, node.LHS, env, func(base types.Value) error {
		return e.evalOptionalBound(ctx, node.Start, env, func(start types.Value) error {
			return e.evalOptionalBound(ctx, node.End, env, func(end types.Value) error {
				v, qerr := types.Slice(base, start, end)
				if qerr != nil {
					return qerr
				}
				return emit(v)
			})
		})
	})
}

// evalOptionalBound treats an absent slice bound as a single null.
func (e *Evaluator) evalOptionalBound(ctx context.Context, node *types.Node, env *Env, emit EmitFunc) error {
	if node == nil {
		return emit(types.NullValue)
	}
	return e.evalNode(ctx, node, env, emit)
}

func (e *Evaluator) evalIterate(ctx context.Context, node *types.Node, env *Env, emit EmitFunc) error {
	return e.evalNode(ctx, node.LHS, env, func(base types.Value) error {
		return types.Iterate(base, emit)
	})
}

// evalPipe feeds each value the left side emits into the right side as its
// subject, forwarding the right side's emissions. Depth-first: the right
// side's full output for the first left value precedes any output for the
// second.
func (e *Evaluator) evalPipe(ctx context.Context, node *types.Node, env *Env, emit EmitFunc) error {
	return e.evalNode(ctx, node.LHS, env, func(v types.Value) error {
		return e.evalNode(ctx, node.RHS, env.WithSubject(v), emit)
	})
}

// evalComma concatenates the two output streams, left first.
func (e *Evaluator) evalComma(ctx context.Context, node *types.Node, env *Env, emit EmitFunc) error {
	if err := e.evalNode(ctx, node.LHS, env, emit); err != nil {
		return err
	}
	return e.evalNode(ctx, node.RHS, env, emit)
}

func (e *Evaluator) evalUnary(ctx context.Context, node *types.Node, env *Env, emit EmitFunc) error {
	return e.evalNode(ctx, node.RHS, env, func(v types.Value) error {
		out, qerr := types.Negate(v)
		if qerr != nil {
			return qerr
		}
		return emit(out)
	})
}

// evalBinary applies an operator over the Cartesian product of its operand
// streams. The enumeration order is part of the language: the outer loop
// runs over the right operand's stream and the inner loop over the left
// operand's, so the left operand varies fastest.
func (e *Evaluator) evalBinary(ctx context.Context, node *types.Node, env *Env, emit EmitFunc) error {
	switch node.Str {
	case "and", "or":
		return e.evalAndOr(ctx, node, env, emit)
	case "//":
		return e.evalAlternative(ctx, node, env, emit)
	}
	return e.evalNode(ctx, node.RHS, env, func(r types.Value) error {
		return e.evalNode(ctx, node.LHS, env, func(l types.Value) error {
			v, qerr := types.BinaryOp(node.Str, l, r)
			if qerr != nil {
				return qerr
			}
			return emit(v)
		})
	})
}

// evalAndOr short-circuits per left value: a decided left value emits the
// result without touching the right side; otherwise the right side's
// truthiness is emitted per right value.
func (e *Evaluator) evalAndOr(ctx context.Context, node *types.Node, env *Env, emit EmitFunc) error {
	isAnd := node.Str == "and"
	return e.evalNode(ctx, node.LHS, env, func(l types.Value) error {
		if types.Truthy(l) != isAnd {
			return emit(types.Bool(!isAnd))
		}
		return e.evalNode(ctx, node.RHS, env, func(r types.Value) error {
			return emit(types.Bool(types.Truthy(r)))
		})
	})
}

// evalAlternative implements `a // b`: all truthy outputs of a, or the whole
// output of b when a produces none (errors in a count as producing none).
func (e *Evaluator) evalAlternative(ctx context.Context, node *types.Node, env *Env, emit EmitFunc) error {
	found := false
	shielded := shieldEmit(emit)
	err := e.evalNode(ctx, node.LHS, env, func(v types.Value) error {
		if !types.Truthy(v) {
			return nil
		}
		found = true
		return shielded(v)
	})
	if err != nil {
		if inner, ok := unshield(err); ok {
			return inner
		}
		if _, ok := err.(*types.QueryError); !ok {
			return err
		}
	}
	if found {
		return nil
	}
	return e.evalNode(ctx, node.RHS, env, emit)
}

// evalArray collects the child's entire output stream into one array.
func (e *Evaluator) evalArray(ctx context.Context, node *types.Node, env *Env, emit EmitFunc) error {
	elems := types.Array{}
	if node.LHS != nil {
		err := e.evalNode(ctx, node.LHS, env, func(v types.Value) error {
			elems = append(elems, v)
			return nil
		})
		if err != nil {
			return err
		}
	}
	return emit(elems)
}

// evalObject emits one object per combination of the fields' key and value
// streams. Fields are enumerated left to right with each field's key stream
// outside its value stream, so the rightmost field varies fastest.
func (e *Evaluator) evalObject(ctx context.Context, node *types.Node, env *Env, emit EmitFunc) error {
	pairs := make([]types.ObjectEntryPair, len(node.Entries))
	var build func(i int) error
	build = func(i int) error {
		if i == len(node.Entries) {
			obj, qerr := types.ConstructObject(pairs)
			if qerr != nil {
				return qerr
			}
			return emit(obj)
		}
		entry := node.Entries[i]
		return e.evalNode(ctx, entry.Key, env, func(k types.Value) error {
			pairs[i].Key = k
			return e.evalNode(ctx, entry.Value, env, func(v types.Value) error {
				pairs[i].Value = v
				return build(i + 1)
			})
		})
	}
	return build(0)
}

// evalIf evaluates the then-branch for each truthy condition value and the
// else-branch otherwise, always against the unmodified subject. A missing
// else behaves as identity.
func (e *Evaluator) evalIf(ctx context.Context, node *types.Node, env *Env, emit EmitFunc) error {
	return e.evalNode(ctx, node.Cond, env, func(c types.Value) error {
		branch := node.Then
		if !types.Truthy(c) {
			branch = node.Else
			if branch == nil {
				return emit(env.Subject())
			}
		}
		return e.evalNode(ctx, branch, env, emit)
	})
}

// evalBind evaluates the body once per source value with the variable bound
// to it; emissions across source values concatenate in source order.
func (e *Evaluator) evalBind(ctx context.Context, node *types.Node, env *Env, emit EmitFunc) error {
	return e.evalNode(ctx, node.LHS, env, func(v types.Value) error {
		return e.evalNode(ctx, node.RHS, env.BindVariable(node.Str, v), emit)
	})
}

// evalTry forwards the guarded body's emissions; if the body fails with a
// QueryError the catch branch runs instead with the error as its subject.
// Errors raised downstream while consuming forwarded emissions pass through
// uncaught.
func (e *Evaluator) evalTry(ctx context.Context, node *types.Node, env *Env, emit EmitFunc) error {
	err := e.evalNode(ctx, node.LHS, env, shieldEmit(emit))
	if err == nil {
		return nil
	}
	if inner, ok := unshield(err); ok {
		return inner
	}
	qerr, ok := err.(*types.QueryError)
	if !ok {
		return err
	}
	if node.RHS == nil {
		return nil
	}
	return e.evalNode(ctx, node.RHS, env.WithSubject(errorSubject(qerr)), emit)
}

// errorSubject is the value a catch branch sees: the payload of an
// error-builtin raise, or the diagnostic message otherwise.
func errorSubject(qerr *types.QueryError) types.Value {
	if qerr.Kind == types.ErrUserError && len(qerr.Values) == 1 {
		return qerr.Values[0]
	}
	return types.String(qerr.Error())
}

// evalCall resolves a function by (name, arity): lexically defined filters
// first, then native builtins, then registered custom functions.
func (e *Evaluator) evalCall(ctx context.Context, node *types.Node, env *Env, emit EmitFunc) error {
	name, arity := node.Str, len(node.Args)

	if cl, ok := env.lookupFunction(name, arity); ok {
		callEnv := cl.env.WithSubject(env.Subject())
		for i, param := range cl.params {
			callEnv = callEnv.bindArgument(param, node.Args[i], env)
		}
		return e.evalNode(ctx, cl.body, callEnv, emit)
	}

	if fn, ok := builtins[funcKey{name: name, arity: arity}]; ok {
		return fn(ctx, e, env, node.Args, emit)
	}

	if fn, ok := e.customFns[funcKey{name: name, arity: arity}]; ok {
		return e.callCustom(ctx, fn, env, node.Args, emit)
	}

	return types.NewOpError(types.ErrUndefinedFunction, fmt.Sprintf("%s/%d", name, arity))
}

// callCustom enumerates the Cartesian product of the argument streams
// (rightmost argument varying fastest) and applies the custom function per
// combination.
func (e *Evaluator) callCustom(ctx context.Context, fn CustomFunc, env *Env, args []*types.Node, emit EmitFunc) error {
	values := make([]types.Value, len(args))
	var apply func(i int) error
	apply = func(i int) error {
		if i == len(args) {
			// Hand the function its own copy; values is reused across
			// combinations.
			out, err := fn(ctx, env.Subject(), append([]types.Value(nil), values...))
			if err != nil {
				return err
			}
			return emit(out)
		}
		return e.evalNode(ctx, args[i], env, func(v types.Value) error {
			values[i] = v
			return apply(i + 1)
		})
	}
	return apply(0)
}
