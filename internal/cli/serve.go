package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/albardn2/karma-sub001/internal/server"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	HTTPAddr string
	GRPCAddr string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON API, health checks and metrics",
		Long: `Start the karma HTTP API and the gRPC health service.

Routes:
  POST   /v1/events
  DELETE /v1/events/{uuid}
  GET    /v1/materials/{uuid}/fifo?quantity=N
  POST   /v1/workflows/{name}/executions
  GET    /v1/executions/{uuid}
  POST   /v1/executions/{uuid}/cancel
  POST   /v1/tasks/{uuid}/complete
  GET    /health
  GET    /metrics        (when metrics.enabled)

Example:
  karma serve --db ./karma.db --http :8080 --grpc :9090`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.HTTPAddr, "http", "", "HTTP listen address (overrides http.addr)")
	cmd.Flags().StringVar(&opts.GRPCAddr, "grpc", "", "gRPC listen address (overrides grpc.addr)")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}

	var reg *prometheus.Registry
	var registerer prometheus.Registerer
	var gatherer prometheus.Gatherer
	if cfg.Metrics.Enabled {
		reg = prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		registerer, gatherer = reg, reg
	}

	svc, cfg, err := opts.openService(cmd.Context(), registerer)
	if err != nil {
		return err
	}
	defer closeService(svc)

	if opts.HTTPAddr != "" {
		cfg.HTTP.Addr = opts.HTTPAddr
	}
	if opts.GRPCAddr != "" {
		cfg.GRPC.Addr = opts.GRPCAddr
	}

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	srv := server.New(svc, server.Options{
		HTTPAddr: cfg.HTTP.Addr,
		GRPCAddr: cfg.GRPC.Addr,
		Gatherer: gatherer,
	})

	slog.Info("server starting", "http", cfg.HTTP.Addr, "grpc", cfg.GRPC.Addr, "db", cfg.Database.Path, "metrics", cfg.Metrics.Enabled)
	fmt.Fprintf(cmd.OutOrStdout(), "Serving HTTP on %s and gRPC on %s\n", cfg.HTTP.Addr, cfg.GRPC.Addr)
	fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl-C to stop.")

	if err := srv.Start(ctx); err != nil {
		return WrapExitError(ExitFailure, "server error", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}
