package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tracekit/itre/internal/classify"
	"github.com/tracekit/itre/internal/config"
	"github.com/tracekit/itre/internal/event"
	"github.com/tracekit/itre/internal/resolver"
	"github.com/tracekit/itre/internal/trace"
)

func newConvertCmd() *cobra.Command {
	var (
		eventsPath string
		exePath    string
		sourcePath string
		stdoutPath string
		configPath string
		outPath    string
		format     string
	)

	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert a raw instrumentation event stream into a step sequence",
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := loadEvents(eventsPath)
			if err != nil {
				return err
			}

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			res, err := resolver.New(cfg.ResolverCandidates, cfg.ResolverTimeout, 0)
			if err != nil {
				return err
			}

			stdout, err := loadStdout(stdoutPath)
			if err != nil {
				return err
			}

			tracked := trace.NewTrackedFunctions()
			for _, fn := range doc.TrackedFunctions {
				tracked.Add(fn)
			}

			steps, convErr := trace.Convert(context.Background(), trace.Request{
				Events:           doc,
				Executable:       exePath,
				SourceFile:       sourcePath,
				Stdout:           stdout,
				TrackedFunctions: tracked,
				Resolver:         res,
				Classifier:       classify.New(cfg),
			})
			if convErr != nil && len(steps) == 0 {
				return fmt.Errorf("converting trace: %w", convErr)
			}

			out := os.Stdout
			if outPath != "" {
				f, err := os.Create(outPath)
				if err != nil {
					return err
				}
				defer f.Close()
				out = f
			}
			if err := writeSteps(out, format, steps); err != nil {
				return err
			}
			if convErr != nil {
				// The partial sequence above is the diagnostic artifact;
				// the failure itself still fails the command.
				return fmt.Errorf("converting trace (partial steps written): %w", convErr)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&eventsPath, "events", "", "path to the raw event JSON document (required)")
	cmd.Flags().StringVar(&exePath, "exe", "", "path to the instrumented executable (for symbol resolution)")
	cmd.Flags().StringVar(&sourcePath, "source", "", "path to the original source file")
	cmd.Flags().StringVar(&stdoutPath, "stdout", "", "path to the program's captured stdout")
	cmd.Flags().StringVar(&configPath, "config", "", "path to an optional YAML config override")
	cmd.Flags().StringVar(&outPath, "out", "", "write output here instead of stdout")
	cmd.Flags().StringVar(&format, "format", "text", "output format: text, json, dap")
	cmd.MarkFlagRequired("events")

	return cmd
}

func loadEvents(path string) (event.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return event.Document{}, fmt.Errorf("reading events %s: %w", path, err)
	}
	var doc event.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return event.Document{}, fmt.Errorf("parsing events %s: %w", path, err)
	}
	return doc, nil
}

func loadStdout(path string) (trace.CapturedStdout, error) {
	if path == "" {
		return trace.CapturedStdout{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return trace.CapturedStdout{}, fmt.Errorf("reading stdout capture %s: %w", path, err)
	}
	return trace.CapturedStdout{Combined: string(data)}, nil
}
