// Package kvsrv provides the server's public API: wiring the event loop,
// metrics export, and graceful shutdown around internal/eventloop.
package kvsrv

import (
	"context"
	"fmt"
	"time"

	"github.com/behrlich/kvsrv/internal/config"
	"github.com/behrlich/kvsrv/internal/eventloop"
	"github.com/behrlich/kvsrv/internal/logging"
	"github.com/behrlich/kvsrv/internal/promexport"
)

// Options customizes a Server beyond what Config carries. All fields are
// optional; the zero value is a real, usable Options.
type Options struct {
	// Clock overrides the server's time source. Tests pass FakeClock.Now
	// here to drive blocking-command deadlines deterministically.
	Clock func() time.Time

	// Logger overrides the package-wide default logger for this server.
	Logger *logging.Logger
}

// Server owns one listening socket, its event loop, and (optionally) a
// metrics HTTP endpoint.
type Server struct {
	cfg     config.Config
	metrics *Metrics
	loop    *eventloop.Loop
	addr    string

	metricsSrv *promexport.Server

	runDone chan error
}

// New builds a Server bound to cfg.Bind:cfg.Port, ready for ListenAndServe.
// It does not start accepting connections until ListenAndServe is called.
func New(cfg config.Config, opts *Options) (*Server, error) {
	if opts == nil {
		opts = &Options{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}

	fd, err := eventloop.Listen(cfg.Bind, cfg.Port)
	if err != nil {
		return nil, fmt.Errorf("listen %s:%d: %w", cfg.Bind, cfg.Port, err)
	}
	addr, err := eventloop.Addr(fd)
	if err != nil {
		return nil, fmt.Errorf("resolve bound address: %w", err)
	}

	poller, err := eventloop.NewPoller()
	if err != nil {
		return nil, fmt.Errorf("create poller: %w", err)
	}

	metrics := NewMetrics()
	loop, err := eventloop.New(fd, poller, cfg.Dir, cfg.DBFilename, metrics, opts.Clock)
	if err != nil {
		return nil, fmt.Errorf("create event loop: %w", err)
	}

	s := &Server{
		cfg:     cfg,
		metrics: metrics,
		loop:    loop,
		addr:    addr,
	}

	if cfg.MetricsAddr != "" {
		s.metricsSrv = promexport.NewServer(cfg.MetricsAddr, metrics)
	}

	logger.Info("server ready", "addr", addr, "metrics_addr", cfg.MetricsAddr)
	return s, nil
}

// Addr returns the address the server is bound to, including the
// kernel-assigned port when cfg.Port was 0.
func (s *Server) Addr() string {
	return s.addr
}

// Metrics returns the server's counters, e.g. for an operator to log a
// periodic summary.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// ListenAndServe runs the event loop (and, if configured, the metrics HTTP
// server) until ctx is cancelled, then shuts both down and returns.
func (s *Server) ListenAndServe(ctx context.Context) error {
	stop := make(chan struct{})
	loopDone := make(chan error, 1)
	go func() { loopDone <- s.loop.Run(stop) }()

	var metricsDone chan error
	if s.metricsSrv != nil {
		metricsDone = make(chan error, 1)
		go func() { metricsDone <- s.metricsSrv.Serve() }()
	}

	<-ctx.Done()
	close(stop)

	if s.metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		s.metricsSrv.Shutdown(shutdownCtx)
		<-metricsDone
	}

	return <-loopDone
}
