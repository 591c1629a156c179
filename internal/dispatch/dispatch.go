// Package dispatch maps command names to handlers, validates their
// arguments, and orchestrates calls into the data engine, the blocking
// coordinator, and the pub/sub registry in the order spec.md §4.8 requires.
package dispatch

import (
	"strings"
	"time"

	"github.com/behrlich/kvsrv/internal/blocking"
	"github.com/behrlich/kvsrv/internal/conn"
	"github.com/behrlich/kvsrv/internal/kverr"
	"github.com/behrlich/kvsrv/internal/proto"
	"github.com/behrlich/kvsrv/internal/pubsub"
	"github.com/behrlich/kvsrv/internal/store"
)

// Context bundles the shared collaborators every handler may need.
type Context struct {
	Engine   *store.Engine
	Blocking *blocking.Coordinator
	PubSub   *pubsub.Registry

	// Conns is the live connection table, keyed by the same ID every
	// connection uses in Blocking and PubSub. Handlers that must reach a
	// connection other than the one that issued the command (PUBLISH,
	// reprocessing after a wake) use this.
	Conns map[conn.ID]*conn.Connection

	// Now is injected so blocking deadlines are testable without sleeping.
	Now func() time.Time

	// Dir and DBFilename back the CONFIG GET surface; see internal/config.
	Dir        string
	DBFilename string

	// Metrics receives per-command counters. Left nil in most tests; every
	// use below is nil-checked so the field stays optional.
	Metrics MetricsRecorder
}

// MetricsRecorder is the subset of the root package's *Metrics that dispatch
// needs. Declared here (rather than importing the root package) to avoid a
// cycle: the root package imports internal/dispatch to wire the server, so
// dispatch can't import back.
type MetricsRecorder interface {
	RecordCommand(success bool)
	RecordBlock()
	RecordUnblock()
	RecordPublish(recipients int)
}

// Result is a handler's outcome: either a reply frame, or a request to
// suspend the client with Resume stored as its deferred command. Handlers
// that enqueue their own output directly (SUBSCRIBE/UNSUBSCRIBE, which emit
// one confirmation frame per channel) set Handled instead of Reply so the
// caller does not enqueue anything further.
type Result struct {
	Block   bool
	Resume  proto.Frame
	Reply   proto.Frame
	Handled bool
}

func reply(f proto.Frame) Result   { return Result{Reply: f} }
func blockOn(f proto.Frame) Result { return Result{Block: true, Resume: f} }
func handled() Result              { return Result{Handled: true} }

func replyErr(err *kverr.Error) Result {
	return Result{Reply: proto.Err(err.WireMessage())}
}

// Handler validates its arguments and calls into the engine/coordinator/
// registry. args excludes the command name itself.
type Handler func(ctx *Context, c *conn.Connection, args [][]byte) Result

var table map[string]Handler

func init() {
	table = map[string]Handler{
		"PING":        handlePing,
		"ECHO":        handleEcho,
		"COMMAND":     handleCommand,
		"TYPE":        handleType,
		"SET":         handleSet,
		"GET":         handleGet,
		"INCR":        handleIncr,
		"DEL":         handleDel,
		"EXISTS":      handleExists,
		"KEYS":        handleKeys,
		"LLEN":        handleLLen,
		"RPUSH":       handleRPush,
		"LPUSH":       handleLPush,
		"LRANGE":      handleLRange,
		"LPOP":        handleLPop,
		"BLPOP":       handleBLPop,
		"XADD":        handleXAdd,
		"XRANGE":      handleXRange,
		"XREAD":       handleXRead,
		"MULTI":       handleMulti,
		"EXEC":        handleExec,
		"DISCARD":     handleDiscard,
		"CONFIG":      handleConfig,
		"SUBSCRIBE":   handleSubscribe,
		"UNSUBSCRIBE": handleUnsubscribe,
		"PUBLISH":     handlePublish,
		"QUIT":        handleQuit,
	}
}

// allowedInPubSubMode lists the commands a client may still issue once it
// has at least one active channel subscription.
var allowedInPubSubMode = map[string]bool{
	"SUBSCRIBE":    true,
	"UNSUBSCRIBE":  true,
	"PSUBSCRIBE":   true,
	"PUNSUBSCRIBE": true,
	"PING":         true,
	"QUIT":         true,
}

// ProcessInbound drains every complete frame currently buffered on c,
// dispatching or queuing each one per spec.md §4.6. It returns once the
// parser reports incomplete (stops for more input) or malformed (enqueues a
// protocol error). The parser never recovers from malformed input and the
// connection is not closed, so every later call on c enqueues the same
// protocol error again.
func ProcessInbound(ctx *Context, c *conn.Connection) {
	for {
		f, status := c.TryParseOne()
		switch status {
		case proto.StatusIncomplete:
			return
		case proto.StatusMalformed:
			c.Enqueue(proto.Err(kverr.Protocol("parse", "Protocol error").WireMessage()))
			return
		default:
			handleFrame(ctx, c, f)
		}
	}
}

func handleFrame(ctx *Context, c *conn.Connection, f proto.Frame) {
	name, args, err := extractCommand(f)
	if err != nil {
		c.Enqueue(proto.Err(err.WireMessage()))
		return
	}
	upper := strings.ToUpper(name)

	if c.InPubSubMode() && !allowedInPubSubMode[upper] {
		c.Enqueue(proto.Err(kverr.State("dispatch", "Can't execute '"+name+"' in subscribed mode").WireMessage()))
		return
	}
	if c.InMulti && upper != "EXEC" && upper != "DISCARD" {
		c.EnqueueQueued(f)
		c.Enqueue(proto.SimpleString("QUEUED"))
		return
	}

	result := dispatchOne(ctx, c, upper, args)
	switch {
	case result.Block:
		c.SetDeferred(result.Resume)
	case result.Handled:
		// handler already enqueued its own output
	default:
		c.Enqueue(result.Reply)
	}
}

// dispatchOne looks up and runs a single command's handler, producing the
// unknown-command error itself when the name isn't registered.
func dispatchOne(ctx *Context, c *conn.Connection, upperName string, args [][]byte) Result {
	h, ok := table[upperName]
	if !ok {
		result := replyErr(kverr.UnknownCommand("dispatch", upperName))
		recordCommand(ctx, result)
		return result
	}
	result := h(ctx, c, args)
	recordCommand(ctx, result)
	return result
}

func recordCommand(ctx *Context, result Result) {
	if ctx.Metrics == nil {
		return
	}
	if result.Block {
		ctx.Metrics.RecordBlock()
	}
	ctx.Metrics.RecordCommand(result.Reply.Kind != proto.KindError)
}

// Reprocess re-dispatches c's deferred command after its blocking
// precondition has been satisfied, per the event loop's ready-list drain
// (spec.md §4.7 step 3). A no-op if c has no deferred command.
func Reprocess(ctx *Context, c *conn.Connection) {
	f, ok := c.TakeDeferred()
	if !ok {
		return
	}
	name, args, err := extractCommand(f)
	if err != nil {
		c.Enqueue(proto.Err(err.WireMessage()))
		return
	}
	result := dispatchOne(ctx, c, strings.ToUpper(name), args)
	switch {
	case result.Block:
		c.SetDeferred(result.Resume)
	case result.Handled:
		// handler already enqueued its own output
	default:
		c.Enqueue(result.Reply)
	}
}

// extractCommand validates that f is a non-empty Array of BulkStrings and
// splits it into a command name and its argument list.
func extractCommand(f proto.Frame) (string, [][]byte, *kverr.Error) {
	if f.Kind != proto.KindArray || len(f.Array) == 0 {
		return "", nil, kverr.Protocol("parse", "Protocol error")
	}
	args := make([][]byte, 0, len(f.Array)-1)
	for i, item := range f.Array {
		if item.Kind != proto.KindBulkString {
			return "", nil, kverr.Protocol("parse", "Protocol error")
		}
		if i == 0 {
			continue
		}
		args = append(args, item.Bulk)
	}
	return string(f.Array[0].Bulk), args, nil
}
