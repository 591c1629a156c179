package dispatch

import (
	"github.com/behrlich/kvsrv/internal/conn"
	"github.com/behrlich/kvsrv/internal/kverr"
	"github.com/behrlich/kvsrv/internal/proto"
)

func handleSubscribe(ctx *Context, c *conn.Connection, args [][]byte) Result {
	if len(args) < 1 {
		return replyErr(kverr.Arity("dispatch", "subscribe"))
	}
	for _, ch := range args {
		channel := string(ch)
		ctx.PubSub.Subscribe(c.ID, channel)
		c.Subscribed[channel] = true
		c.Enqueue(proto.Array([]proto.Frame{
			proto.BulkStringFromText("subscribe"),
			proto.BulkStringFromText(channel),
			proto.Integer(int64(ctx.PubSub.Count(c.ID))),
		}))
	}
	return handled()
}

func handleUnsubscribe(ctx *Context, c *conn.Connection, args [][]byte) Result {
	channels := args
	if len(channels) == 0 {
		channels = subscribedChannelNames(c)
	}
	for _, ch := range channels {
		channel := string(ch)
		ctx.PubSub.Unsubscribe(c.ID, channel)
		delete(c.Subscribed, channel)
		c.Enqueue(proto.Array([]proto.Frame{
			proto.BulkStringFromText("unsubscribe"),
			proto.BulkStringFromText(channel),
			proto.Integer(int64(ctx.PubSub.Count(c.ID))),
		}))
	}
	return handled()
}

func handlePublish(ctx *Context, c *conn.Connection, args [][]byte) Result {
	if len(args) != 2 {
		return replyErr(kverr.Arity("dispatch", "publish"))
	}
	channel, payload := string(args[0]), args[1]
	subs := ctx.PubSub.Subscribers(channel)
	for clientID := range subs {
		target, ok := ctx.Conns[clientID]
		if !ok {
			continue
		}
		target.Enqueue(proto.Array([]proto.Frame{
			proto.BulkStringFromText("message"),
			proto.BulkStringFromText(channel),
			proto.BulkString(payload),
		}))
	}
	if ctx.Metrics != nil {
		ctx.Metrics.RecordPublish(len(subs))
	}
	return reply(proto.Integer(int64(len(subs))))
}

func subscribedChannelNames(c *conn.Connection) [][]byte {
	names := make([][]byte, 0, len(c.Subscribed))
	for ch := range c.Subscribed {
		names = append(names, []byte(ch))
	}
	return names
}
