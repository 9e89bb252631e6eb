// Package server serves the karma JSON API, health checks and Prometheus
// metrics over HTTP, and the standard gRPC health service.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the gRPC health service name reported for karma.
const ServiceName = "karma"

// ShutdownTimeout bounds how long Start waits for in-flight requests.
const ShutdownTimeout = 5 * time.Second

// Options configures a Server.
type Options struct {
	HTTPAddr string
	GRPCAddr string

	// Gatherer serves /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
}

type Server struct {
	http   *http.Server
	grpc   *grpc.Server
	health *health.Server
	opts   Options
}

// New builds the HTTP and gRPC servers without listening.
func New(api API, opts Options) *Server {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if opts.Gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}
	(&handler{api: api}).routes(mux)

	hs := health.NewServer()
	gs := grpc.NewServer()
	healthpb.RegisterHealthServer(gs, hs)

	return &Server{
		http:   &http.Server{Addr: opts.HTTPAddr, Handler: mux},
		grpc:   gs,
		health: hs,
		opts:   opts,
	}
}

// Handler returns the HTTP handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Start listens on both addresses and blocks until ctx is done or a
// listener fails. It then shuts both servers down.
func (s *Server) Start(ctx context.Context) error {
	httpLis, err := net.Listen("tcp", s.opts.HTTPAddr)
	if err != nil {
		return err
	}
	grpcLis, err := net.Listen("tcp", s.opts.GRPCAddr)
	if err != nil {
		httpLis.Close()
		return err
	}

	errc := make(chan error, 2)
	go func() {
		slog.Info("HTTP server listening", "addr", httpLis.Addr().String())
		if err := s.http.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()
	go func() {
		slog.Info("gRPC server listening", "addr", grpcLis.Addr().String())
		if err := s.grpc.Serve(grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errc <- err
		}
	}()
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	select {
	case <-ctx.Done():
	case err = <-errc:
		slog.Error("server error", "error", err)
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ShutdownTimeout)
	defer cancel()
	return errors.Join(err, s.Shutdown(shutdownCtx))
}

// Shutdown marks the service not serving and stops both servers.
func (s *Server) Shutdown(ctx context.Context) error {
	s.health.Shutdown()
	err := s.http.Shutdown(ctx)
	s.grpc.GracefulStop()
	slog.Info("servers stopped")
	return err
}
