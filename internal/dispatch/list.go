package dispatch

import (
	"strconv"
	"time"

	"github.com/behrlich/kvsrv/internal/conn"
	"github.com/behrlich/kvsrv/internal/kverr"
	"github.com/behrlich/kvsrv/internal/proto"
)

func handleLLen(ctx *Context, c *conn.Connection, args [][]byte) Result {
	if len(args) != 1 {
		return replyErr(kverr.Arity("dispatch", "llen"))
	}
	n, err := ctx.Engine.LLen(string(args[0]))
	if err != nil {
		return replyErr(asKVErr(err))
	}
	return reply(proto.Integer(n))
}

func handleRPush(ctx *Context, c *conn.Connection, args [][]byte) Result {
	return pushHandler(ctx, args, "rpush", ctx.Engine.RPush)
}

func handleLPush(ctx *Context, c *conn.Connection, args [][]byte) Result {
	return pushHandler(ctx, args, "lpush", ctx.Engine.LPush)
}

func pushHandler(ctx *Context, args [][]byte, cmdName string, push func(string, [][]byte) (int64, error)) Result {
	if len(args) < 2 {
		return replyErr(kverr.Arity("dispatch", cmdName))
	}
	key := string(args[0])
	n, err := push(key, args[1:])
	if err != nil {
		return replyErr(asKVErr(err))
	}
	ctx.Blocking.WakeOne(key)
	return reply(proto.Integer(n))
}

func handleLRange(ctx *Context, c *conn.Connection, args [][]byte) Result {
	if len(args) != 3 {
		return replyErr(kverr.Arity("dispatch", "lrange"))
	}
	start, ok1 := parseInt64(args[1])
	stop, ok2 := parseInt64(args[2])
	if !ok1 || !ok2 {
		return replyErr(kverr.Format("dispatch", "value is not an integer or out of range"))
	}
	vals, err := ctx.Engine.LRange(string(args[0]), start, stop)
	if err != nil {
		return replyErr(asKVErr(err))
	}
	return reply(bulkArray(vals))
}

func handleLPop(ctx *Context, c *conn.Connection, args [][]byte) Result {
	switch len(args) {
	case 1:
		val, ok, err := ctx.Engine.LPopOne(string(args[0]))
		if err != nil {
			return replyErr(asKVErr(err))
		}
		if !ok {
			return reply(proto.Null())
		}
		return reply(proto.BulkString(val))
	case 2:
		count, ok := parseInt64(args[1])
		if !ok || count < 0 {
			return replyErr(kverr.Format("dispatch", "value is out of range, must be positive"))
		}
		vals, err := ctx.Engine.LPopCount(string(args[0]), count)
		if err != nil {
			return replyErr(asKVErr(err))
		}
		return reply(bulkArray(vals))
	default:
		return replyErr(kverr.Arity("dispatch", "lpop"))
	}
}

func handleBLPop(ctx *Context, c *conn.Connection, args [][]byte) Result {
	if len(args) != 2 {
		return replyErr(kverr.Arity("dispatch", "blpop"))
	}
	key := string(args[0])
	timeoutSec, ok := parseFloat(args[1])
	if !ok {
		return replyErr(kverr.Format("dispatch", "timeout is not a float or out of range"))
	}
	if timeoutSec < 0 {
		return replyErr(kverr.Format("dispatch", "timeout is negative"))
	}

	val, found, err := ctx.Engine.LPopOne(key)
	if err != nil {
		return replyErr(asKVErr(err))
	}
	if found {
		return reply(proto.Array([]proto.Frame{proto.BulkStringFromText(key), proto.BulkString(val)}))
	}

	ctx.Blocking.Block(c.ID, []string{key}, ctx.Now(), secondsToDuration(timeoutSec))
	resume := proto.Array([]proto.Frame{proto.BulkStringFromText("LPOP"), proto.BulkStringFromText(key)})
	return blockOn(resume)
}

func bulkArray(vals [][]byte) proto.Frame {
	frames := make([]proto.Frame, len(vals))
	for i, v := range vals {
		frames[i] = proto.BulkString(v)
	}
	return proto.Array(frames)
}

func parseInt64(b []byte) (int64, bool) {
	n, err := strconv.ParseInt(string(b), 10, 64)
	return n, err == nil
}

func parseFloat(b []byte) (float64, bool) {
	f, err := strconv.ParseFloat(string(b), 64)
	return f, err == nil
}

// secondsToDuration converts a command's timeout-in-seconds argument to a
// Duration; 0 is passed through unchanged so the coordinator's own "<= 0
// means wait forever" rule applies.
func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}
