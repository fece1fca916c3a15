package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	httpAdapter "github.com/lenML/pflow/internal/adapters/http"
	"github.com/lenML/pflow/pkg/shared"
	"github.com/lenML/pflow/pkg/tracing"
)

var serveCmd = &cobra.Command{
	Use:   "serve <pipeline.yaml>",
	Short: "Run a pipeline and serve its introspection API",
	Long:  `Runs the pipeline once with tracing enabled, then serves the graph shape and the captured trace events over HTTP.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetString("port")
		log := newLogger(cmd)

		f, err := loadPipeline(args[0])
		if err != nil {
			return err
		}

		sink := httpAdapter.NewTraceSink()
		sc := shared.New(shared.WithLogger(log))
		sink.Attach(sc)

		traced := tracing.Instrument(f)
		if _, err := traced.Run(cmd.Context(), sc); err != nil {
			return fmt.Errorf("run pipeline: %w", err)
		}
		sink.Detach(sc)

		srv := &http.Server{
			Addr:    ":" + port,
			Handler: httpAdapter.NewHandler(traced, sink, log),
		}

		serverErrors := make(chan error, 1)
		go func() {
			log.Info("introspection server listening", "addr", srv.Addr)
			serverErrors <- srv.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			return fmt.Errorf("server error: %w", err)

		case sig := <-shutdown:
			log.Info("shutting down", "signal", sig.String())

			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				_ = srv.Close()
				return fmt.Errorf("graceful shutdown failed: %w", err)
			}
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().String("port", "8080", "Port for the introspection API")
	rootCmd.AddCommand(serveCmd)
}
