// Package bufpool provides pooled byte buffers for connection parse and
// outgoing buffers, avoiding hot-path allocations on the event loop.
package bufpool

import "sync"

// Buffer size thresholds. Protocol frames are small relative to the block
// I/O buffers this scheme was originally sized for; 4KB covers the common
// case (a handful of bulk strings), 64KB covers large XADD/RPUSH batches.
const (
	size4k  = 4 * 1024
	size16k = 16 * 1024
	size64k = 64 * 1024
)

// globalPool is the shared buffer pool for all connections. Uses the
// pointer-to-slice pattern to avoid sync.Pool boxing a slice header on every
// Get/Put.
var globalPool = struct {
	pool4k  sync.Pool
	pool16k sync.Pool
	pool64k sync.Pool
}{
	pool4k:  sync.Pool{New: func() any { b := make([]byte, size4k); return &b }},
	pool16k: sync.Pool{New: func() any { b := make([]byte, size16k); return &b }},
	pool64k: sync.Pool{New: func() any { b := make([]byte, size64k); return &b }},
}

// Get returns a pooled buffer of at least the requested size. Requests
// larger than the biggest bucket fall back to a direct allocation that is
// never pooled. The caller must call Put when done.
func Get(size int) []byte {
	switch {
	case size <= size4k:
		return (*globalPool.pool4k.Get().(*[]byte))[:size]
	case size <= size16k:
		return (*globalPool.pool16k.Get().(*[]byte))[:size]
	case size <= size64k:
		return (*globalPool.pool64k.Get().(*[]byte))[:size]
	default:
		return make([]byte, size)
	}
}

// Put returns a buffer to the pool it was drawn from. The buffer's capacity
// determines the bucket; buffers with a non-standard capacity (oversized
// allocations from Get, or slices the caller grew itself) are simply
// dropped.
func Put(buf []byte) {
	c := cap(buf)
	buf = buf[:c]
	switch c {
	case size4k:
		globalPool.pool4k.Put(&buf)
	case size16k:
		globalPool.pool16k.Put(&buf)
	case size64k:
		globalPool.pool64k.Put(&buf)
	}
}
