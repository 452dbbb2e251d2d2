package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"github.com/jayvdb/xq"
	"github.com/jayvdb/xq/pkg/evaluator"
	"github.com/jayvdb/xq/pkg/runner"
	"github.com/jayvdb/xq/pkg/types"
)

const (
	historyFile = ".xq_history"
	prompt      = "xq> "
)

// runREPL starts the interactive mode: one document is loaded (the
// positional argument names its file; without one the document is null) and
// every entered line is compiled and run against it. Compiled queries are
// cached, so re-running a query skips the parse.
func runREPL(ctx context.Context, cfg config, logger *slog.Logger) int {
	doc, err := loadDocument(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		return exitUsage
	}

	eval := evaluator.New(
		evaluator.WithLogger(logger),
		evaluator.WithCaching(true),
	)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	histPath := historyPath()
	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	fmt.Printf("xq %s interactive mode. Ctrl+D or :quit exits.\n", xq.Version())

	for {
		line, err := ln.Prompt(prompt)
		if errors.Is(err, io.EOF) {
			fmt.Println()
			return exitOK
		}
		if errors.Is(err, liner.ErrPromptAborted) {
			continue
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
			return exitError
		}

		query := strings.TrimSpace(line)
		switch query {
		case "":
			continue
		case ":quit", ":q":
			return exitOK
		}

		runErr := eval.EvalQuery(ctx, query, doc, func(v types.Value) error {
			if err := types.EncodeIndent(os.Stdout, v); err != nil {
				return err
			}
			_, err := fmt.Println()
			return err
		})
		if runErr != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", runErr)
		}
		ln.AppendHistory(query)
	}
}

func historyPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return historyFile
	}
	return filepath.Join(home, historyFile)
}

// loadDocument reads the document the interactive session operates on.
func loadDocument(cfg config) (types.Value, error) {
	if cfg.query == "." || cfg.query == "" {
		return types.NullValue, nil
	}
	f, err := os.Open(cfg.query)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if cfg.yamlInput {
		next := runner.YAMLDocuments(f)
		return next()
	}
	return types.Decode(json.NewDecoder(f))
}
