package dispatch

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/behrlich/kvsrv/internal/conn"
	"github.com/behrlich/kvsrv/internal/kverr"
	"github.com/behrlich/kvsrv/internal/proto"
)

func handleSet(ctx *Context, c *conn.Connection, args [][]byte) Result {
	if len(args) != 2 && len(args) != 4 {
		return replyErr(kverr.Arity("dispatch", "set"))
	}
	key, val := string(args[0]), args[1]

	hasTTL := false
	var ttl time.Duration
	if len(args) == 4 {
		if !strings.EqualFold(string(args[2]), "PX") {
			return replyErr(kverr.Format("dispatch", "syntax error"))
		}
		ms, err := strconv.ParseInt(string(args[3]), 10, 64)
		if err != nil {
			return replyErr(kverr.Format("dispatch", "value is not an integer or out of range"))
		}
		if ms <= 0 {
			return replyErr(kverr.Format("dispatch", "invalid expire time in 'set' command"))
		}
		hasTTL = true
		ttl = time.Duration(ms) * time.Millisecond
	}

	ctx.Engine.Set(key, val, hasTTL, ttl)
	return reply(proto.SimpleString("OK"))
}

func handleGet(ctx *Context, c *conn.Connection, args [][]byte) Result {
	if len(args) != 1 {
		return replyErr(kverr.Arity("dispatch", "get"))
	}
	val, ok, err := ctx.Engine.Get(string(args[0]))
	if err != nil {
		return replyErr(asKVErr(err))
	}
	if !ok {
		return reply(proto.Null())
	}
	return reply(proto.BulkString(val))
}

func handleIncr(ctx *Context, c *conn.Connection, args [][]byte) Result {
	if len(args) != 1 {
		return replyErr(kverr.Arity("dispatch", "incr"))
	}
	n, err := ctx.Engine.Incr(string(args[0]))
	if err != nil {
		return replyErr(asKVErr(err))
	}
	return reply(proto.Integer(n))
}

func handleDel(ctx *Context, c *conn.Connection, args [][]byte) Result {
	if len(args) < 1 {
		return replyErr(kverr.Arity("dispatch", "del"))
	}
	return reply(proto.Integer(ctx.Engine.Del(toStrings(args))))
}

func handleExists(ctx *Context, c *conn.Connection, args [][]byte) Result {
	if len(args) < 1 {
		return replyErr(kverr.Arity("dispatch", "exists"))
	}
	return reply(proto.Integer(ctx.Engine.Exists(toStrings(args))))
}

func handleKeys(ctx *Context, c *conn.Connection, args [][]byte) Result {
	if len(args) != 1 {
		return replyErr(kverr.Arity("dispatch", "keys"))
	}
	matches, err := ctx.Engine.Keys(string(args[0]))
	if err != nil {
		return replyErr(asKVErr(err))
	}
	frames := make([]proto.Frame, len(matches))
	for i, k := range matches {
		frames[i] = proto.BulkStringFromText(k)
	}
	return reply(proto.Array(frames))
}

func toStrings(args [][]byte) []string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = string(a)
	}
	return out
}

// asKVErr recovers the *kverr.Error carried by an engine error value.
func asKVErr(err error) *kverr.Error {
	var ke *kverr.Error
	errors.As(err, &ke)
	return ke
}
