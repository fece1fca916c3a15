package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lenML/pflow"
	"github.com/lenML/pflow/internal/logging"
	"github.com/lenML/pflow/pkg/loader"
	"github.com/lenML/pflow/pkg/shared"
	"github.com/lenML/pflow/pkg/tracing"
)

var runCmd = &cobra.Command{
	Use:   "run <pipeline.yaml>",
	Short: "Run a pipeline definition",
	Long:  `Loads a YAML pipeline definition, builds its graph with the built-in node types, and runs it to completion.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		withTrace, _ := cmd.Flags().GetBool("trace")
		log := newLogger(cmd)

		f, err := loadPipeline(args[0])
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		sc := shared.New(shared.WithLogger(log), shared.WithContext(ctx))

		if !withTrace {
			if _, err := f.Run(ctx, sc); err != nil {
				return fmt.Errorf("run pipeline: %w", err)
			}
			return printResult(sc)
		}

		events, err := tracing.Collect(sc, f, func(n pflow.Node) error {
			_, runErr := n.Run(ctx, sc)
			return runErr
		})
		if err != nil {
			return fmt.Errorf("run pipeline: %w", err)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(events); err != nil {
			return err
		}
		return nil
	},
}

func init() {
	runCmd.Flags().Bool("trace", false, "Print captured trace events as JSON")
	rootCmd.AddCommand(runCmd)
}

func loadPipeline(path string) (pflow.Flow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pipeline: %w", err)
	}
	f, err := loader.Load(data, loader.Builtins())
	if err != nil {
		return nil, err
	}
	return f, nil
}

func printResult(sc *shared.Shared) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(tracing.SanitizeMap(sc.Snapshot()))
}

func newLogger(cmd *cobra.Command) *slog.Logger {
	name, _ := cmd.Flags().GetString("log-level")

	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		level = slog.LevelInfo
	}
	return logging.New(level)
}
