package dispatch

import (
	"strings"

	"github.com/behrlich/kvsrv/internal/conn"
	"github.com/behrlich/kvsrv/internal/kverr"
	"github.com/behrlich/kvsrv/internal/proto"
)

func handleMulti(ctx *Context, c *conn.Connection, args [][]byte) Result {
	if len(args) != 0 {
		return replyErr(kverr.Arity("dispatch", "multi"))
	}
	if !c.BeginMulti() {
		return replyErr(kverr.State("dispatch", "MULTI calls can not be nested"))
	}
	return reply(proto.SimpleString("OK"))
}

func handleDiscard(ctx *Context, c *conn.Connection, args [][]byte) Result {
	if len(args) != 0 {
		return replyErr(kverr.Arity("dispatch", "discard"))
	}
	if _, ok := c.EndMulti(); !ok {
		return replyErr(kverr.State("dispatch", "DISCARD without MULTI"))
	}
	return reply(proto.SimpleString("OK"))
}

// handleExec replays the connection's queued frames in order, collecting
// each one's reply into a single array. Queued frames never block: any
// handler that would return Result.Block is treated as an immediate error,
// since a queued command has no client left to suspend mid-transaction.
func handleExec(ctx *Context, c *conn.Connection, args [][]byte) Result {
	if len(args) != 0 {
		return replyErr(kverr.Arity("dispatch", "exec"))
	}
	queued, ok := c.EndMulti()
	if !ok {
		return replyErr(kverr.State("dispatch", "EXEC without MULTI"))
	}
	replies := make([]proto.Frame, len(queued))
	for i, f := range queued {
		name, qargs, err := extractCommand(f)
		if err != nil {
			replies[i] = proto.Err(err.WireMessage())
			continue
		}
		result := dispatchOne(ctx, c, strings.ToUpper(name), qargs)
		if result.Block {
			ctx.Blocking.Unblock(c.ID)
			if ctx.Metrics != nil {
				ctx.Metrics.RecordUnblock()
			}
			replies[i] = proto.Err(kverr.State("dispatch", "command queued in MULTI may not block").WireMessage())
			continue
		}
		replies[i] = result.Reply
	}
	return reply(proto.Array(replies))
}
