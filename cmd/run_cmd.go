package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/trace"

	"github.com/nextlevelbuilder/botsim/internal/config"
	"github.com/nextlevelbuilder/botsim/internal/scenario"
)

// runOptions are the run command's flags.
type runOptions struct {
	concurrency int
	format      string // "json" or "text"
	compact     bool
	tracer      trace.TracerProvider
}

func runCmd() *cobra.Command {
	var (
		watch bool
		opts  runOptions
	)
	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>...",
		Short: "Run scenarios and print a report",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.format != "json" && opts.format != "text" {
				return fmt.Errorf("--format must be json or text, got %q", opts.format)
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if exp := initOTelExporter(ctx, cfg); exp != nil {
				opts.tracer = exp.TracerProvider()
				defer func() {
					sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
					defer cancel()
					if err := exp.Shutdown(sctx); err != nil {
						slog.Warn("otel shutdown failed", "error", err)
					}
				}()
			}

			out := cmd.OutOrStdout()
			passed, err := runScenarios(ctx, out, cfg, args, opts)
			if !watch {
				if err != nil {
					return err
				}
				if !passed {
					return exitError{"scenario failed"}
				}
				return nil
			}
			if err != nil {
				slog.Error("scenario run failed", "error", err)
			}
			return watchScenarios(ctx, out, args, opts)
		},
	}
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "re-run when the config or a scenario file changes")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 4, "scenarios run in parallel")
	cmd.Flags().StringVar(&opts.format, "format", "json", "report format: json or text")
	cmd.Flags().BoolVar(&opts.compact, "compact", false, "print the JSON report on one line")
	return cmd
}

// runScenarios loads and runs every file and writes one report document.
func runScenarios(ctx context.Context, w io.Writer, cfg *config.Config, paths []string, opts runOptions) (bool, error) {
	scenarios := make([]*scenario.Scenario, 0, len(paths))
	for _, p := range paths {
		sc, err := scenario.Load(p)
		if err != nil {
			return false, err
		}
		scenarios = append(scenarios, sc)
	}
	runner := scenario.NewRunner(cfg,
		scenario.WithLogger(slog.Default()),
		scenario.WithConcurrency(opts.concurrency),
		scenario.WithTracerProvider(opts.tracer),
	)
	reports, err := runner.RunAll(ctx, scenarios)
	if err != nil {
		return false, err
	}

	passed := true
	for _, r := range reports {
		passed = passed && r.Passed
	}
	if opts.format == "text" {
		return passed, writeTextReport(w, reports)
	}
	doc := struct {
		Passed  bool               `json:"passed"`
		Reports []*scenario.Report `json:"reports"`
	}{passed, reports}

	enc := json.NewEncoder(w)
	if !opts.compact {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(doc); err != nil {
		return false, fmt.Errorf("write report: %w", err)
	}
	return passed, nil
}

func watchScenarios(ctx context.Context, w io.Writer, paths []string, opts runOptions) error {
	watcher, err := config.NewWatcher(resolveConfigPath(), paths...)
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	watcher.OnChange(func(cfg *config.Config) {
		if _, err := runScenarios(ctx, w, cfg, paths, opts); err != nil {
			slog.Error("scenario run failed", "error", err)
		}
	})
	watcher.Start()
	defer watcher.Stop()

	<-ctx.Done()
	return nil
}
