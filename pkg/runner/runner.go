// Package runner is the per-document driver around the evaluator: it decodes
// a stream of input documents, runs the compiled query once per document,
// writes every emitted value, and decides what a failed document means for
// the rest of the stream (log and continue — a query failure is fatal to its
// document only, never to the process).
package runner

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"

	"github.com/jayvdb/xq/pkg/evaluator"
	"github.com/jayvdb/xq/pkg/types"
)

// Options configures a Runner.
type Options struct {
	// NullInput evaluates the query exactly once against null instead of
	// reading documents.
	NullInput bool
	// YAMLInput decodes the input stream as YAML documents.
	YAMLInput bool
	// YAMLOutput encodes emitted values as YAML documents.
	YAMLOutput bool
	// Compact writes single-line JSON instead of two-space indented.
	Compact bool
	// Logger receives per-document failure reports; defaults to
	// slog.Default().
	Logger *slog.Logger
}

// Runner applies one compiled query to a stream of documents.
type Runner struct {
	expr   *types.Expression
	eval   *evaluator.Evaluator
	opts   Options
	logger *slog.Logger
}

// New creates a Runner for expr.
func New(expr *types.Expression, eval *evaluator.Evaluator, opts Options) *Runner {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{expr: expr, eval: eval, opts: opts, logger: logger}
}

// Run decodes documents from in, evaluates the query against each, and
// writes every emission to out. A document whose evaluation fails is logged
// and the stream continues with the next document. Run returns the number of
// failed documents; err is non-nil only for input/output or decode failures
// that stop the stream itself.
func (r *Runner) Run(ctx context.Context, in io.Reader, out io.Writer) (failed int, err error) {
	w := &writer{out: out, compact: r.opts.Compact, yaml: r.opts.YAMLOutput}

	if r.opts.NullInput {
		ok, ferr := r.runDocument(ctx, types.NullValue, w)
		if !ok {
			failed++
		}
		return failed, ferr
	}

	next := r.documents(in)
	for {
		doc, derr := next()
		if derr != nil {
			if errors.Is(derr, io.EOF) {
				return failed, nil
			}
			return failed, derr
		}
		ok, ferr := r.runDocument(ctx, doc, w)
		if !ok {
			failed++
		}
		if ferr != nil {
			return failed, ferr
		}
	}
}

// documents returns an iterator over the decoded input stream.
func (r *Runner) documents(in io.Reader) func() (types.Value, error) {
	if r.opts.YAMLInput {
		return YAMLDocuments(in)
	}
	dec := json.NewDecoder(in)
	return func() (types.Value, error) {
		return types.Decode(dec)
	}
}

// runDocument evaluates the query against one document. ok reports whether
// the document succeeded; fatal is non-nil only when the output sink itself
// failed, which ends the whole stream. Emissions delivered before a query
// failure have already been written; only the remaining evaluation of that
// document is abandoned.
func (r *Runner) runDocument(ctx context.Context, doc types.Value, w *writer) (ok bool, fatal error) {
	err := r.eval.Run(ctx, r.expr, doc, w.write)
	if err == nil {
		return true, nil
	}
	var oerr *outputError
	if errors.As(err, &oerr) {
		return false, oerr.err
	}
	var qerr *types.QueryError
	if errors.As(err, &qerr) {
		r.logger.Error("query failed for document", "error", qerr.Error())
		return false, nil
	}
	r.logger.Error("evaluation aborted", "error", err.Error())
	return false, nil
}

// outputError marks a failure of the output sink, as opposed to a failure of
// the query.
type outputError struct {
	err error
}

func (e *outputError) Error() string { return e.err.Error() }
func (e *outputError) Unwrap() error { return e.err }

// writer renders emitted values.
type writer struct {
	out     io.Writer
	compact bool
	yaml    bool
	wrote   bool
}

func (w *writer) write(v types.Value) error {
	var err error
	if w.yaml {
		err = w.writeYAML(v)
	} else {
		err = w.writeJSON(v)
	}
	if err != nil {
		return &outputError{err: err}
	}
	return nil
}

func (w *writer) writeJSON(v types.Value) error {
	var err error
	if w.compact {
		err = types.Encode(w.out, v)
	} else {
		err = types.EncodeIndent(w.out, v)
	}
	if err != nil {
		return err
	}
	_, err = io.WriteString(w.out, "\n")
	return err
}

func (w *writer) writeYAML(v types.Value) error {
	if w.wrote {
		if _, err := io.WriteString(w.out, "---\n"); err != nil {
			return err
		}
	}
	w.wrote = true
	return encodeYAML(w.out, v)
}
