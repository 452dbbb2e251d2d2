// Package evaluator implements the xq query execution engine.
//
// The engine walks a compiled program tree against one JSON document and
// streams every produced value through a caller-supplied continuation. A
// filter may emit zero, one or many values per input; composition (pipe,
// comma, operators) is defined over these streams, and no stream is ever
// materialized — generators stay lazy by construction.
//
// # Example
//
//	expr, _ := parser.Parse(".items[] | .price")
//	ev := evaluator.New()
//	err := ev.Run(ctx, expr, doc, func(v types.Value) error {
//	    fmt.Println(v)
//	    return nil
//	})
package evaluator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jayvdb/xq/pkg/cache"
	"github.com/jayvdb/xq/pkg/parser"
	"github.com/jayvdb/xq/pkg/types"
)

// EmitFunc receives one produced value. Returning a non-nil error stops the
// remaining evaluation immediately and Run returns that error verbatim;
// values delivered before the stop stay valid.
type EmitFunc func(types.Value) error

// CustomFunc is a user-registered function. Arguments arrive fully
// evaluated, one combination at a time.
type CustomFunc func(ctx context.Context, subject types.Value, args []types.Value) (types.Value, error)

// CustomFunctionDef declares a custom function for registration.
type CustomFunctionDef struct {
	Name  string
	Arity int
	Fn    CustomFunc
}

// EvalOptions configures evaluator behavior.
type EvalOptions struct {
	// MaxDepth bounds the environment chain length, catching runaway
	// recursive filters before the native stack does. Defaults to 10000.
	MaxDepth int
	// Timeout bounds one Run call; zero means no limit.
	Timeout time.Duration
	// Caching enables compiled-query caching for EvalQuery.
	Caching bool
	// CacheSize sets the cache capacity when Caching is enabled.
	CacheSize int
	// Cache supplies an external cache; implies Caching.
	Cache *cache.Cache
	// Debug enables per-node trace logging.
	Debug bool
	// Logger receives structured logs; defaults to slog.Default().
	Logger *slog.Logger
	// CustomFunctions are registered alongside the builtins.
	CustomFunctions []CustomFunctionDef
}

// EvalOption configures an Evaluator.
type EvalOption func(*EvalOptions)

// WithMaxDepth bounds the evaluation environment chain.
func WithMaxDepth(depth int) EvalOption {
	return func(o *EvalOptions) { o.MaxDepth = depth }
}

// WithTimeout bounds each Run call.
func WithTimeout(d time.Duration) EvalOption {
	return func(o *EvalOptions) { o.Timeout = d }
}

// WithCaching enables compiled-query caching for EvalQuery.
func WithCaching(enabled bool) EvalOption {
	return func(o *EvalOptions) { o.Caching = enabled }
}

// WithCacheSize sets the query cache capacity; effective with WithCaching.
func WithCacheSize(size int) EvalOption {
	return func(o *EvalOptions) { o.CacheSize = size }
}

// WithCache attaches an external compiled-query cache.
func WithCache(c *cache.Cache) EvalOption {
	return func(o *EvalOptions) { o.Cache = c }
}

// WithDebug enables per-node trace logging.
func WithDebug(enabled bool) EvalOption {
	return func(o *EvalOptions) { o.Debug = enabled }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) EvalOption {
	return func(o *EvalOptions) { o.Logger = logger }
}

// WithFunction registers a custom zero-or-more-argument function callable
// from filters by name.
func WithFunction(name string, arity int, fn CustomFunc) EvalOption {
	return func(o *EvalOptions) {
		o.CustomFunctions = append(o.CustomFunctions, CustomFunctionDef{Name: name, Arity: arity, Fn: fn})
	}
}

// Evaluator runs compiled queries against documents. It is stateless across
// documents and safe for concurrent use.
type Evaluator struct {
	opts      EvalOptions
	logger    *slog.Logger
	cache     *cache.Cache
	customFns map[funcKey]CustomFunc
}

// New creates an Evaluator with the given options.
func New(opts ...EvalOption) *Evaluator {
	options := EvalOptions{
		MaxDepth: 10000,
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}

	var c *cache.Cache
	switch {
	case options.Cache != nil:
		c = options.Cache
	case options.Caching:
		c = cache.New(options.CacheSize)
	}

	customFns := make(map[funcKey]CustomFunc, len(options.CustomFunctions))
	for _, def := range options.CustomFunctions {
		customFns[funcKey{name: def.Name, arity: def.Arity}] = def.Fn
	}

	return &Evaluator{
		opts:      options,
		logger:    options.Logger,
		cache:     c,
		customFns: customFns,
	}
}

// Cache returns the compiled-query cache, or nil when caching is disabled.
func (e *Evaluator) Cache() *cache.Cache { return e.cache }

// Run evaluates expr against input, invoking emit once per produced value in
// the order the language defines. Run returns nil after the output stream is
// exhausted; it returns a *types.QueryError when evaluation fails, with any
// values already delivered to emit remaining valid.
func (e *Evaluator) Run(ctx context.Context, expr *types.Expression, input types.Value, emit EmitFunc) error {
	if expr == nil || expr.Root() == nil {
		return fmt.Errorf("invalid expression")
	}
	if input == nil {
		input = types.NullValue
	}
	if e.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.Timeout)
		defer cancel()
	}
	return e.evalNode(ctx, expr.Root(), NewEnv(input), emit)
}

// Eval evaluates expr against input and collects the whole output stream.
func (e *Evaluator) Eval(ctx context.Context, expr *types.Expression, input types.Value) ([]types.Value, error) {
	var out []types.Value
	err := e.Run(ctx, expr, input, func(v types.Value) error {
		out = append(out, v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// EvalQuery compiles query (through the cache when caching is enabled) and
// runs it against input.
func (e *Evaluator) EvalQuery(ctx context.Context, query string, input types.Value, emit EmitFunc) error {
	var expr *types.Expression
	var err error
	if e.cache != nil {
		expr, err = e.cache.GetOrCompile(query, parser.Parse)
	} else {
		expr, err = parser.Parse(query)
	}
	if err != nil {
		return err
	}
	return e.Run(ctx, expr, input, emit)
}
