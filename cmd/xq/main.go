// Command xq runs a jq-family filter over a stream of JSON (or YAML)
// documents read from standard input.
//
// Usage:
//
//	xq [flags] [query]
//
// The query defaults to the identity filter. A failing document is reported
// on stderr and the stream continues with the next document.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/jayvdb/xq/pkg/evaluator"
	"github.com/jayvdb/xq/pkg/parser"
	"github.com/jayvdb/xq/pkg/runner"
)

const appName = "xq"

// Exit codes: 0 all documents succeeded, 1 some document failed, 2 usage
// error, 3 query parse error.
const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
	exitParse = 3
)

func main() {
	os.Exit(run(os.Args[1:]))
}

type config struct {
	query       string
	queryFile   string
	verbosity   int
	nullInput   bool
	compact     bool
	yamlInput   bool
	yamlOutput  bool
	interactive bool
}

// countFlag counts flag repetitions, so -v -v raises verbosity twice.
type countFlag int

func (c *countFlag) String() string { return strconv.Itoa(int(*c)) }
func (c *countFlag) Set(s string) error {
	if s == "true" {
		*c++
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	*c = countFlag(n)
	return nil
}
func (c *countFlag) IsBoolFlag() bool { return true }

func parseArgs(args []string) (config, error) {
	var cfg config
	var verbosity countFlag

	fs := flag.NewFlagSet(appName, flag.ContinueOnError)
	fs.StringVar(&cfg.queryFile, "f", "", "read the query from a file instead of the argument")
	fs.StringVar(&cfg.queryFile, "from-file", "", "read the query from a file instead of the argument")
	fs.BoolVar(&cfg.nullInput, "n", false, "run the query once with null input instead of reading documents")
	fs.BoolVar(&cfg.compact, "c", false, "compact single-line JSON output")
	fs.BoolVar(&cfg.yamlInput, "yaml-input", false, "decode input documents as YAML")
	fs.BoolVar(&cfg.yamlOutput, "yaml-output", false, "encode output values as YAML")
	fs.BoolVar(&cfg.interactive, "i", false, "interactive mode: load one document, prompt for queries")
	fs.Var(&verbosity, "v", "verbose logging; repeat for more detail")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: %s [flags] [query]\n", appName)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	cfg.verbosity = int(verbosity)

	rest := fs.Args()
	switch {
	case len(rest) > 1:
		return cfg, fmt.Errorf("at most one query argument expected, got %d", len(rest))
	case len(rest) == 1:
		cfg.query = rest[0]
	default:
		cfg.query = "."
	}
	if cfg.queryFile != "" && len(rest) == 1 {
		return cfg, fmt.Errorf("-f conflicts with a query argument")
	}
	return cfg, nil
}

// newLogger maps repeated -v flags onto slog levels: error by default, then
// warn, info, debug.
func newLogger(verbosity int) *slog.Logger {
	levels := []slog.Level{slog.LevelError, slog.LevelWarn, slog.LevelInfo, slog.LevelDebug}
	if verbosity >= len(levels) {
		verbosity = len(levels) - 1
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: levels[verbosity]}))
}

func run(args []string) int {
	cfg, err := parseArgs(args)
	if err != nil {
		if err == flag.ErrHelp {
			return exitOK
		}
		fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		return exitUsage
	}

	logger := newLogger(cfg.verbosity)
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.interactive {
		return runREPL(ctx, cfg, logger)
	}

	query := cfg.query
	if cfg.queryFile != "" {
		payload, err := os.ReadFile(cfg.queryFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: cannot read %s: %v\n", appName, cfg.queryFile, err)
			return exitUsage
		}
		query = string(payload)
	}

	expr, err := parser.Parse(query)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		return exitParse
	}
	logger.Debug("compiled query", "source", expr.Source())

	eval := evaluator.New(
		evaluator.WithLogger(logger),
		evaluator.WithDebug(cfg.verbosity >= 3),
	)
	r := runner.New(expr, eval, runner.Options{
		NullInput:  cfg.nullInput,
		YAMLInput:  cfg.yamlInput,
		YAMLOutput: cfg.yamlOutput,
		Compact:    cfg.compact,
		Logger:     logger,
	})

	failed, err := r.Run(ctx, os.Stdin, os.Stdout)
	if err != nil {
		logger.Error("input stream aborted", "error", err.Error())
		return exitError
	}
	if failed > 0 {
		logger.Info("documents failed", "count", failed)
		return exitError
	}
	return exitOK
}
