package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"

	"github.com/creack/pty"
	"github.com/spf13/cobra"

	"github.com/tracekit/itre/internal/classify"
	"github.com/tracekit/itre/internal/config"
	"github.com/tracekit/itre/internal/event"
	"github.com/tracekit/itre/internal/itrelog"
	"github.com/tracekit/itre/internal/resolver"
	"github.com/tracekit/itre/internal/trace"
)

// newDemoCmd wires a thin, explicitly out-of-core harness: it actually
// runs an already-built instrumented binary under a pty to obtain real,
// monotonically-ordered captured stdout, then feeds a synthetic
// single-function event stream plus that stdout through trace.Convert.
// It stands in for the compiler driver and session manager that
// produce a real event stream, well enough to exercise the pipeline
// end-to-end from the command line.
func newDemoCmd() *cobra.Command {
	var (
		sourcePath string
		binaryPath string
		binaryArgs []string
		format     string
	)

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run an instrumented binary and reconstruct a demo step sequence from its output",
		RunE: func(cmd *cobra.Command, args []string) error {
			chunks, err := runUnderPTY(binaryPath, binaryArgs)
			if err != nil {
				return err
			}

			doc := syntheticDocument(binaryPath)
			cfg := config.Default()
			res, err := resolver.New(cfg.ResolverCandidates, cfg.ResolverTimeout, 0)
			if err != nil {
				return err
			}

			steps, err := trace.Convert(context.Background(), trace.Request{
				Events:     doc,
				Executable: binaryPath,
				SourceFile: sourcePath,
				Stdout:     trace.CapturedStdout{Chunks: chunks},
				Resolver:   res,
				Classifier: classify.New(cfg),
			})
			if err != nil {
				return fmt.Errorf("converting demo trace: %w", err)
			}

			return writeSteps(cmd.OutOrStdout(), format, steps)
		},
	}

	cmd.Flags().StringVar(&sourcePath, "source", "", "path to the demo program's source file")
	cmd.Flags().StringVar(&binaryPath, "binary", "", "path to the already-built instrumented binary (required)")
	cmd.Flags().StringSliceVar(&binaryArgs, "args", nil, "arguments passed to the binary")
	cmd.Flags().StringVar(&format, "format", "text", "output format: text, json, dap")
	cmd.MarkFlagRequired("binary")

	return cmd
}

// runUnderPTY spawns path under a pseudo-terminal and returns its
// stdout split into the chunks it arrived in, preserving write order.
func runUnderPTY(path string, args []string) ([]string, error) {
	c := exec.Command(path, args...)
	f, err := pty.Start(c)
	if err != nil {
		return nil, fmt.Errorf("starting %s under pty: %w", path, err)
	}
	defer f.Close()

	var chunks []string
	reader := bufio.NewReader(f)
	buf := make([]byte, 4096)
	for {
		n, err := reader.Read(buf)
		if n > 0 {
			chunks = append(chunks, string(buf[:n]))
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}
	}

	if err := c.Wait(); err != nil {
		itrelog.CLI().WithError(err).Debug("demo binary exited non-zero")
	}
	return chunks, nil
}

// syntheticDocument stands in for a real instrumentation stream: one
// func_enter/func_exit pair for main, enough to exercise program_start,
// func_enter, output, func_exit and program_end end to end.
func syntheticDocument(binaryName string) event.Document {
	return event.Document{
		Events: []event.Raw{
			{Type: event.FuncEnter, Func: "main", File: binaryName, Line: 1},
			{Type: event.FuncExit, Func: "main", File: binaryName, Line: 1},
		},
		TrackedFunctions: []string{"main"},
	}
}
