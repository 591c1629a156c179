package kvsrv

import (
	"sync/atomic"
	"time"

	"github.com/behrlich/kvsrv/internal/promexport"
)

// Metrics tracks server-wide operational counters. Every field is an atomic
// so the event loop's single goroutine and an HTTP metrics scrape running on
// a different goroutine never need a lock.
type Metrics struct {
	CommandsProcessed atomic.Uint64
	CommandErrors     atomic.Uint64

	ConnectionsAccepted atomic.Uint64
	ConnectionsActive   atomic.Int64

	BytesRead    atomic.Uint64
	BytesWritten atomic.Uint64

	ClientsBlocked     atomic.Int64
	BlockingTimeouts   atomic.Uint64
	MessagesPublished  atomic.Uint64
	KeysExpired        atomic.Uint64

	StartTime atomic.Int64 // UnixNano
}

// NewMetrics returns a fresh Metrics with StartTime set to now.
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

// RecordCommand records one dispatched command, successful or not.
func (m *Metrics) RecordCommand(success bool) {
	m.CommandsProcessed.Add(1)
	if !success {
		m.CommandErrors.Add(1)
	}
}

// RecordConnect records a newly accepted connection.
func (m *Metrics) RecordConnect() {
	m.ConnectionsAccepted.Add(1)
	m.ConnectionsActive.Add(1)
}

// RecordDisconnect records a connection's teardown.
func (m *Metrics) RecordDisconnect() {
	m.ConnectionsActive.Add(-1)
}

// RecordIO adds to the cumulative byte counters for one read/write pair; a
// zero value on either side is a no-op increment, which is fine.
func (m *Metrics) RecordIO(read, written int) {
	if read > 0 {
		m.BytesRead.Add(uint64(read))
	}
	if written > 0 {
		m.BytesWritten.Add(uint64(written))
	}
}

// RecordBlock/RecordUnblock track the number of clients currently suspended
// on BLPOP/XREAD.
func (m *Metrics) RecordBlock()          { m.ClientsBlocked.Add(1) }
func (m *Metrics) RecordUnblock()        { m.ClientsBlocked.Add(-1) }
func (m *Metrics) RecordBlockingTimeout() { m.BlockingTimeouts.Add(1) }

// RecordPublish records one PUBLISH's recipient count.
func (m *Metrics) RecordPublish(recipients int) {
	m.MessagesPublished.Add(uint64(recipients))
}

// RecordExpiry records one key's lazy-expiry eviction. Nothing in the
// server calls it: the engine's lazy expiry does not report to Metrics, so
// KeysExpired counts only what callers record here.
func (m *Metrics) RecordExpiry() {
	m.KeysExpired.Add(1)
}

// Snapshot is a point-in-time copy of every counter, safe to hold and print
// without further synchronization.
type Snapshot struct {
	CommandsProcessed uint64
	CommandErrors     uint64

	ConnectionsAccepted uint64
	ConnectionsActive   int64

	BytesRead    uint64
	BytesWritten uint64

	ClientsBlocked    int64
	BlockingTimeouts  uint64
	MessagesPublished uint64
	KeysExpired       uint64

	UptimeNs int64
}

// Snapshot copies every counter's current value.
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		CommandsProcessed:   m.CommandsProcessed.Load(),
		CommandErrors:       m.CommandErrors.Load(),
		ConnectionsAccepted: m.ConnectionsAccepted.Load(),
		ConnectionsActive:   m.ConnectionsActive.Load(),
		BytesRead:           m.BytesRead.Load(),
		BytesWritten:        m.BytesWritten.Load(),
		ClientsBlocked:      m.ClientsBlocked.Load(),
		BlockingTimeouts:    m.BlockingTimeouts.Load(),
		MessagesPublished:   m.MessagesPublished.Load(),
		KeysExpired:         m.KeysExpired.Load(),
		UptimeNs:            time.Now().UnixNano() - m.StartTime.Load(),
	}
}

// PromSnapshot adapts Snapshot to internal/promexport's collector shape, the
// only thing that package is allowed to read.
func (m *Metrics) PromSnapshot() promexport.Snapshot {
	s := m.Snapshot()
	return promexport.Snapshot{
		CommandsProcessed:   s.CommandsProcessed,
		CommandErrors:       s.CommandErrors,
		ConnectionsAccepted: s.ConnectionsAccepted,
		ConnectionsActive:   s.ConnectionsActive,
		BytesRead:           s.BytesRead,
		BytesWritten:        s.BytesWritten,
		ClientsBlocked:      s.ClientsBlocked,
		BlockingTimeouts:    s.BlockingTimeouts,
		MessagesPublished:   s.MessagesPublished,
		KeysExpired:         s.KeysExpired,
	}
}

// Reset zeroes every counter; used by tests that share a Metrics instance
// across cases.
func (m *Metrics) Reset() {
	m.CommandsProcessed.Store(0)
	m.CommandErrors.Store(0)
	m.ConnectionsAccepted.Store(0)
	m.ConnectionsActive.Store(0)
	m.BytesRead.Store(0)
	m.BytesWritten.Store(0)
	m.ClientsBlocked.Store(0)
	m.BlockingTimeouts.Store(0)
	m.MessagesPublished.Store(0)
	m.KeysExpired.Store(0)
	m.StartTime.Store(time.Now().UnixNano())
}
