// Package conn holds per-client connection state: the parse buffer feeding
// the wire codec, the outgoing byte queue, transaction and pub/sub state,
// and the single deferred command slot used while a client is blocked.
package conn

import (
	"github.com/behrlich/kvsrv/internal/bufpool"
	"github.com/behrlich/kvsrv/internal/constants"
	"github.com/behrlich/kvsrv/internal/proto"
)

// ID identifies a connection opaquely — in the real event loop, its file
// descriptor. It is the same underlying type used by internal/blocking and
// internal/pubsub so client identifiers pass between them without
// conversion.
type ID = int64

// Connection is everything the event loop and dispatch table need to know
// about one accepted client.
type Connection struct {
	ID ID

	parser *proto.Parser

	readBuf []byte // scratch buffer for a single non-blocking Read call
	out     []byte // bytes queued for writing, drained as the socket allows

	InMulti bool
	Queued  []proto.Frame

	Subscribed map[string]bool

	deferred    proto.Frame
	hasDeferred bool

	WantWrite bool // whether the loop currently requests write readiness
}

// New returns a freshly initialized Connection for an accepted socket.
func New(id ID) *Connection {
	return &Connection{
		ID:         id,
		parser:     proto.New(),
		readBuf:    bufpool.Get(constants.ParseBufferSize),
		out:        bufpool.Get(constants.OutgoingBufferSize)[:0],
		Subscribed: make(map[string]bool),
	}
}

// Close returns the connection's pooled buffers. Callers must not use the
// Connection afterward.
func (c *Connection) Close() {
	bufpool.Put(c.readBuf)
	bufpool.Put(c.out[:cap(c.out)])
	c.readBuf = nil
	c.out = nil
}

// ReadBuf returns the scratch buffer the event loop should pass to a
// non-blocking read syscall.
func (c *Connection) ReadBuf() []byte {
	return c.readBuf
}

// Feed hands newly read bytes to the parser.
func (c *Connection) Feed(data []byte) {
	c.parser.Feed(data)
}

// TryParseOne decodes the next buffered frame, if any.
func (c *Connection) TryParseOne() (proto.Frame, proto.Status) {
	return c.parser.TryParseOne()
}

// Enqueue serializes f and appends it to the outgoing buffer.
func (c *Connection) Enqueue(f proto.Frame) {
	c.out = append(c.out, proto.Serialize(f)...)
}

// OutgoingBuffer returns the bytes currently queued for writing. The caller
// must call ConsumeOutgoing with however many bytes it actually wrote.
func (c *Connection) OutgoingBuffer() []byte {
	return c.out
}

// ConsumeOutgoing drops the first n bytes of the outgoing buffer after a
// (possibly partial) write.
func (c *Connection) ConsumeOutgoing(n int) {
	c.out = c.out[:copy(c.out, c.out[n:])]
}

// HasOutgoing reports whether any bytes remain queued for writing.
func (c *Connection) HasOutgoing() bool {
	return len(c.out) > 0
}

// InPubSubMode reports whether the connection has at least one active
// channel subscription, which restricts the commands it may issue.
func (c *Connection) InPubSubMode() bool {
	return len(c.Subscribed) > 0
}

// SetDeferred stores resume as the command to re-dispatch once this
// client's blocking precondition is satisfied.
func (c *Connection) SetDeferred(resume proto.Frame) {
	c.deferred = resume
	c.hasDeferred = true
}

// ClearDeferred drops any stored deferred command, used on wake, timeout,
// or disconnect.
func (c *Connection) ClearDeferred() {
	c.deferred = proto.Frame{}
	c.hasDeferred = false
}

// TakeDeferred returns and clears the deferred command, if any.
func (c *Connection) TakeDeferred() (proto.Frame, bool) {
	if !c.hasDeferred {
		return proto.Frame{}, false
	}
	f := c.deferred
	c.ClearDeferred()
	return f, true
}

// EnqueueQueued appends f to the transaction's queued-frame list.
func (c *Connection) EnqueueQueued(f proto.Frame) {
	c.Queued = append(c.Queued, f)
}

// BeginMulti enters transaction-queuing mode. ok is false if a transaction
// is already open (MULTI calls can not be nested).
func (c *Connection) BeginMulti() (ok bool) {
	if c.InMulti {
		return false
	}
	c.InMulti = true
	c.Queued = nil
	return true
}

// EndMulti exits transaction-queuing mode and returns the queued frames,
// clearing them. ok is false if no transaction was open.
func (c *Connection) EndMulti() (frames []proto.Frame, ok bool) {
	if !c.InMulti {
		return nil, false
	}
	frames = c.Queued
	c.InMulti = false
	c.Queued = nil
	return frames, true
}
