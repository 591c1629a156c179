package constants

import "time"

// Network defaults
const (
	// DefaultPort is the TCP port the server listens on when unconfigured.
	DefaultPort = 6379

	// DefaultBindAddr is the loopback address the listener binds by default.
	DefaultBindAddr = "127.0.0.1"

	// ListenBacklog is the pending-connection backlog passed to listen(2).
	ListenBacklog = 16
)

// Event loop timing
const (
	// Tick is the maximum interval between event-loop iterations, bounding
	// how stale timers (TTLs, blocking deadlines) can become with no
	// network activity.
	Tick = 1 * time.Second

	// MaxEvents is the size of the readiness batch requested per poll.
	MaxEvents = 256
)

// Protocol limits
const (
	// MaxArrayDepth bounds recursive array nesting in the wire codec.
	MaxArrayDepth = 128

	// MaxInlineLength bounds a single bulk string/array length field,
	// guarding against a malicious peer claiming an absurd allocation.
	MaxInlineLength = 512 * 1024 * 1024
)

// Buffer sizing
const (
	// ParseBufferSize is the per-read chunk size fed into the wire codec.
	ParseBufferSize = 16 * 1024

	// OutgoingBufferSize is the default outgoing buffer allocation.
	OutgoingBufferSize = 4 * 1024
)
