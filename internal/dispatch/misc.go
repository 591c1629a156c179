package dispatch

import (
	"strings"

	"github.com/behrlich/kvsrv/internal/conn"
	"github.com/behrlich/kvsrv/internal/kverr"
	"github.com/behrlich/kvsrv/internal/proto"
)

func handlePing(ctx *Context, c *conn.Connection, args [][]byte) Result {
	switch len(args) {
	case 0:
		return reply(proto.SimpleString("PONG"))
	case 1:
		return reply(proto.BulkString(args[0]))
	default:
		return replyErr(kverr.Arity("dispatch", "ping"))
	}
}

func handleEcho(ctx *Context, c *conn.Connection, args [][]byte) Result {
	if len(args) != 1 {
		return replyErr(kverr.Arity("dispatch", "echo"))
	}
	return reply(proto.BulkString(args[0]))
}

func handleCommand(ctx *Context, c *conn.Connection, args [][]byte) Result {
	return reply(proto.Array(nil))
}

func handleType(ctx *Context, c *conn.Connection, args [][]byte) Result {
	if len(args) != 1 {
		return replyErr(kverr.Arity("dispatch", "type"))
	}
	return reply(proto.SimpleString(ctx.Engine.Type(string(args[0]))))
}

func handleQuit(ctx *Context, c *conn.Connection, args [][]byte) Result {
	return reply(proto.SimpleString("OK"))
}

func handleConfig(ctx *Context, c *conn.Connection, args [][]byte) Result {
	if len(args) != 2 || !strings.EqualFold(string(args[0]), "GET") {
		return replyErr(kverr.Format("dispatch", "syntax error"))
	}
	param := strings.ToLower(string(args[1]))
	var value string
	switch param {
	case "dir":
		value = ctx.Dir
	case "dbfilename":
		value = ctx.DBFilename
	default:
		return reply(proto.Array(nil))
	}
	return reply(proto.Array([]proto.Frame{
		proto.BulkStringFromText(param),
		proto.BulkStringFromText(value),
	}))
}
