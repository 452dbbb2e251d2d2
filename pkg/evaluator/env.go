package evaluator

import (
	"github.com/jayvdb/xq/pkg/types"
)

// funcKey identifies a function binding: jq-family functions are namespaced
// by name and arity together.
type funcKey struct {
	name  string
	arity int
}

// closure is a function body paired with the environment active at its
// definition, so bodies see definition-site bindings (lexical scoping).
// Formal parameters are themselves bound as zero-arity closures over the
// call-site environment, because arguments are filters, not values.
type closure struct {
	params []string
	body   *types.Node
	env    *Env
}

// Env is one immutable node of the chained evaluation context: the current
// subject, at most one variable binding, at most one function binding, and a
// parent used only for lookup. Creating a child is O(1) — nothing is copied,
// the parent is only referenced.
type Env struct {
	subject types.Value
	parent  *Env
	depth   int

	varName  string
	varValue types.Value

	fn    *closure
	fnKey funcKey
}

// NewEnv builds the root environment for one input document.
func NewEnv(subject types.Value) *Env {
	return &Env{subject: subject}
}

// Subject returns the value the filter is currently operating on.
func (e *Env) Subject() types.Value { return e.subject }

// Depth returns the length of the chain up to the root, used to bound
// runaway recursion.
func (e *Env) Depth() int { return e.depth }

// WithSubject derives a child environment with a new subject; all variable
// and function bindings stay visible.
func (e *Env) WithSubject(subject types.Value) *Env {
	return &Env{subject: subject, parent: e, depth: e.depth + 1}
}

// BindVariable derives a child in which name shadows any outer binding of
// the same name; lookups return the nearest (innermost) binding.
func (e *Env) BindVariable(name string, value types.Value) *Env {
	return &Env{
		subject:  e.subject,
		parent:   e,
		depth:    e.depth + 1,
		varName:  name,
		varValue: value,
	}
}

// LookupVariable walks the parent chain for the nearest binding of name.
func (e *Env) LookupVariable(name string) (types.Value, bool) {
	for env := e; env != nil; env = env.parent {
		if env.varName == name && env.varValue != nil {
			return env.varValue, true
		}
	}
	return nil, false
}

// DefineFunction derives a child carrying a (name, arity) closure. The
// closure captures the child itself, so the body can call the function
// recursively.
func (e *Env) DefineFunction(name string, params []string, body *types.Node) *Env {
	child := &Env{
		subject: e.subject,
		parent:  e,
		depth:   e.depth + 1,
		fnKey:   funcKey{name: name, arity: len(params)},
	}
	child.fn = &closure{params: params, body: body, env: child}
	return child
}

// bindArgument derives a child binding a formal parameter to a lazily
// evaluated filter argument closed over the call-site environment.
func (e *Env) bindArgument(param string, arg *types.Node, callSite *Env) *Env {
	child := &Env{
		subject: e.subject,
		parent:  e,
		depth:   e.depth + 1,
		fnKey:   funcKey{name: param, arity: 0},
	}
	child.fn = &closure{body: arg, env: callSite}
	return child
}

// lookupFunction walks the parent chain for the nearest (name, arity)
// closure.
func (e *Env) lookupFunction(name string, arity int) (*closure, bool) {
	key := funcKey{name: name, arity: arity}
	for env := e; env != nil; env = env.parent {
		if env.fn != nil && env.fnKey == key {
			return env.fn, true
		}
	}
	return nil, false
}
