package exporter

import (
	"context"
	"net"
	"net/http"
	"time"

	"codeberg.org/mutker/amdpower/internal/errors"
	"codeberg.org/mutker/amdpower/internal/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	metricsPath     = "/metrics"
	shutdownTimeout = 5 * time.Second
	readTimeout     = 10 * time.Second
)

// Server serves the registered collectors over HTTP
type Server struct {
	addr     string
	registry *prometheus.Registry
	server   *http.Server
	log      logger.Logger
}

// NewServer registers c together with the Go runtime collector
func NewServer(addr string, c prometheus.Collector, log logger.Logger) (*Server, error) {
	errFactory := errors.New()

	registry := prometheus.NewRegistry()
	if err := registry.Register(c); err != nil {
		return nil, errFactory.Wrap(errors.ErrServeExporter, err)
	}
	if err := registry.Register(collectors.NewGoCollector()); err != nil {
		return nil, errFactory.Wrap(errors.ErrServeExporter, err)
	}

	s := &Server{
		addr:     addr,
		registry: registry,
		log:      log,
	}

	mux := http.NewServeMux()
	mux.Handle(metricsPath, s.Handler())
	s.server = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: readTimeout,
	}

	return s, nil
}

// Handler returns the metrics handler without the surrounding server
func (s *Server) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}

// Run listens on the configured address until ctx is done
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return errors.New().Wrap(errors.ErrServeExporter, err)
	}

	return s.Serve(ctx, listener)
}

// Serve is Run on an existing listener
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.server.Serve(listener)
	}()

	s.log.Info().Str("address", listener.Addr().String()).Str("path", metricsPath).Msg("Serving Prometheus metrics")

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.New().Wrap(errors.ErrServeExporter, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return errors.New().Wrap(errors.ErrServeExporter, err)
	}

	s.log.Debug().Msg("Prometheus endpoint stopped")
	return nil
}
