// Package xq implements a jq-family filter-query language for transforming
// streams of JSON documents.
//
// A filter is compiled once and evaluated once per input document; each
// evaluation may produce zero, one or many output values, streamed through a
// continuation in the order the language defines.
//
// # Quick Start
//
//	// Compile once, evaluate many times
//	expr, err := xq.Compile(".items[] | .price")
//	results, _ := xq.Eval(ctx, expr, doc)
//
//	// Streaming consumption
//	err = xq.Run(ctx, expr, doc, func(v types.Value) error {
//	    fmt.Println(v)
//	    return nil
//	})
//
// # More Information
//
// For detailed documentation, see:
//   - Parser: github.com/jayvdb/xq/pkg/parser
//   - Evaluator: github.com/jayvdb/xq/pkg/evaluator
//   - Types: github.com/jayvdb/xq/pkg/types
package xq

import (
	"context"
	"fmt"

	"github.com/jayvdb/xq/pkg/evaluator"
	"github.com/jayvdb/xq/pkg/parser"
	"github.com/jayvdb/xq/pkg/types"
)

// Version returns the current version of xq.
func Version() string {
	return "v0.1.0-dev"
}

// Compile compiles a filter query for repeated evaluation. The returned
// Expression is immutable and safe for concurrent use.
func Compile(query string) (*types.Expression, error) {
	return parser.Parse(query)
}

// MustCompile is like Compile but panics when the query does not parse. It
// simplifies safe initialization of global variables.
func MustCompile(query string) *types.Expression {
	expr, err := Compile(query)
	if err != nil {
		panic(fmt.Sprintf("xq: Compile(%q): %v", query, err))
	}
	return expr
}

// Run evaluates expr against input, invoking emit once per produced value.
func Run(ctx context.Context, expr *types.Expression, input types.Value, emit evaluator.EmitFunc, opts ...evaluator.EvalOption) error {
	return evaluator.New(opts...).Run(ctx, expr, input, emit)
}

// Eval is a convenience that compiles and evaluates a query in one call,
// collecting the whole output stream. For repeated evaluations of the same
// query, use Compile with an Evaluator instead.
func Eval(ctx context.Context, query string, input types.Value, opts ...evaluator.EvalOption) ([]types.Value, error) {
	expr, err := Compile(query)
	if err != nil {
		return nil, err
	}
	return evaluator.New(opts...).Eval(ctx, expr, input)
}
