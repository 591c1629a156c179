// Package promexport exposes the server's atomic counters (kvsrv.Metrics) as
// Prometheus collectors, served over HTTP by promhttp. It never sits on the
// command path: Register only reads from Metrics, it never writes to it.
package promexport

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SnapshotSource is the subset of kvsrv.Metrics this package needs. Declared
// here rather than imported directly to keep this package usable without
// pulling in the root package's full surface.
type SnapshotSource interface {
	PromSnapshot() Snapshot
}

// Snapshot mirrors kvsrv.Snapshot's fields that get exported as metrics.
type Snapshot struct {
	CommandsProcessed   uint64
	CommandErrors       uint64
	ConnectionsAccepted uint64
	ConnectionsActive   int64
	BytesRead           uint64
	BytesWritten        uint64
	ClientsBlocked      int64
	BlockingTimeouts    uint64
	MessagesPublished   uint64
	KeysExpired         uint64
}

// Register builds a prometheus.Registry wired with GaugeFunc/CounterFunc
// collectors reading from src on every scrape.
func Register(src SnapshotSource) *prometheus.Registry {
	reg := prometheus.NewRegistry()

	counter := func(name, help string, get func(Snapshot) float64) {
		reg.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: name,
			Help: help,
		}, func() float64 { return get(src.PromSnapshot()) }))
	}
	gauge := func(name, help string, get func(Snapshot) float64) {
		reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: name,
			Help: help,
		}, func() float64 { return get(src.PromSnapshot()) }))
	}

	counter("kvsrv_commands_processed_total", "Total commands dispatched.",
		func(s Snapshot) float64 { return float64(s.CommandsProcessed) })
	counter("kvsrv_command_errors_total", "Total commands that replied with an error.",
		func(s Snapshot) float64 { return float64(s.CommandErrors) })
	counter("kvsrv_connections_accepted_total", "Total TCP connections accepted.",
		func(s Snapshot) float64 { return float64(s.ConnectionsAccepted) })
	gauge("kvsrv_connections_active", "Currently open connections.",
		func(s Snapshot) float64 { return float64(s.ConnectionsActive) })
	counter("kvsrv_bytes_read_total", "Total bytes read from clients.",
		func(s Snapshot) float64 { return float64(s.BytesRead) })
	counter("kvsrv_bytes_written_total", "Total bytes written to clients.",
		func(s Snapshot) float64 { return float64(s.BytesWritten) })
	gauge("kvsrv_clients_blocked", "Clients currently suspended on a blocking command.",
		func(s Snapshot) float64 { return float64(s.ClientsBlocked) })
	counter("kvsrv_blocking_timeouts_total", "Blocking commands that timed out unsatisfied.",
		func(s Snapshot) float64 { return float64(s.BlockingTimeouts) })
	counter("kvsrv_messages_published_total", "Total pub/sub message deliveries.",
		func(s Snapshot) float64 { return float64(s.MessagesPublished) })
	counter("kvsrv_keys_expired_total", "Total keys evicted by lazy TTL expiry.",
		func(s Snapshot) float64 { return float64(s.KeysExpired) })

	return reg
}

// Server serves /metrics on addr using a dedicated http.Server so its
// lifecycle (and any future routes) stays independent of the event loop.
type Server struct {
	httpServer *http.Server
}

// NewServer builds a metrics HTTP server bound to addr; it does not start
// listening until Serve is called.
func NewServer(addr string, src SnapshotSource) *Server {
	reg := Register(src)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return &Server{httpServer: &http.Server{Addr: addr, Handler: mux}}
}

// Serve blocks until the listener fails or Shutdown is called.
func (s *Server) Serve() error {
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the metrics server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
