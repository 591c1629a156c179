package dispatch

import (
	"strconv"
	"strings"
	"time"

	"github.com/behrlich/kvsrv/internal/conn"
	"github.com/behrlich/kvsrv/internal/kverr"
	"github.com/behrlich/kvsrv/internal/proto"
	"github.com/behrlich/kvsrv/internal/store"
)

func handleXAdd(ctx *Context, c *conn.Connection, args [][]byte) Result {
	if len(args) < 4 || (len(args)-2)%2 != 0 {
		return replyErr(kverr.Arity("dispatch", "xadd"))
	}
	key := string(args[0])
	expr, ok := store.ParseXAddID(string(args[1]))
	if !ok {
		return replyErr(kverr.StreamIDErr("dispatch", "Invalid stream ID specified as stream command argument"))
	}
	id, err := ctx.Engine.XAdd(key, expr, args[2:])
	if err != nil {
		return replyErr(asKVErr(err))
	}
	ctx.Blocking.WakeAll(key)
	return reply(proto.BulkStringFromText(id.String()))
}

func handleXRange(ctx *Context, c *conn.Connection, args [][]byte) Result {
	if len(args) != 3 && len(args) != 5 {
		return replyErr(kverr.Arity("dispatch", "xrange"))
	}
	key := string(args[0])
	start, ok := store.ParseRangeStart(string(args[1]))
	if !ok {
		return replyErr(kverr.StreamIDErr("dispatch", "Invalid stream ID specified as stream command argument"))
	}
	end, ok := store.ParseRangeEnd(string(args[2]))
	if !ok {
		return replyErr(kverr.StreamIDErr("dispatch", "Invalid stream ID specified as stream command argument"))
	}

	hasCount := false
	var count int64
	if len(args) == 5 {
		if !strings.EqualFold(string(args[3]), "COUNT") {
			return replyErr(kverr.Format("dispatch", "syntax error"))
		}
		n, err := strconv.ParseInt(string(args[4]), 10, 64)
		if err != nil || n < 0 {
			return replyErr(kverr.Format("dispatch", "value is not an integer or out of range"))
		}
		hasCount, count = true, n
	}

	entries, xerr := ctx.Engine.XRange(key, start, end, hasCount, count)
	if xerr != nil {
		return replyErr(asKVErr(xerr))
	}
	return reply(streamEntriesFrame(entries))
}

func handleXRead(ctx *Context, c *conn.Connection, args [][]byte) Result {
	i := 0
	hasCount := false
	var count int64
	hasBlock := false
	var blockMS int64

	for i < len(args) {
		tok := strings.ToUpper(string(args[i]))
		switch tok {
		case "COUNT":
			n, err := requireIntArg(args, i)
			if err != nil {
				return replyErr(err)
			}
			hasCount, count = true, n
			i += 2
		case "BLOCK":
			n, err := requireIntArg(args, i)
			if err != nil {
				return replyErr(err)
			}
			hasBlock, blockMS = true, n
			i += 2
		case "STREAMS":
			i++
			goto parsedOptions
		default:
			return replyErr(kverr.Format("dispatch", "syntax error"))
		}
	}
parsedOptions:
	rest := args[i:]
	if len(rest) == 0 || len(rest)%2 != 0 {
		return replyErr(kverr.Format("dispatch", "Unbalanced XREAD list of streams: for each stream key an ID or '$' must be specified"))
	}
	half := len(rest) / 2
	keys := rest[:half]
	idsRaw := rest[half:]

	resolvedIDs := make([]store.StreamID, half)
	for j, idText := range idsRaw {
		key := string(keys[j])
		if string(idText) == "$" {
			last, ok := ctx.Engine.LastStreamID(key)
			if !ok {
				last = store.MinStreamID
			}
			resolvedIDs[j] = last
			continue
		}
		id, ok := store.ParseExplicit(string(idText))
		if !ok {
			return replyErr(kverr.StreamIDErr("dispatch", "Invalid stream ID specified as stream command argument"))
		}
		resolvedIDs[j] = id
	}

	outer, xerr := xReadAll(ctx, keys, resolvedIDs, hasCount, count)
	if xerr != nil {
		return replyErr(asKVErr(xerr))
	}
	if len(outer) > 0 {
		return reply(proto.Array(outer))
	}

	if !hasBlock {
		return reply(proto.Null())
	}

	timeout := time.Duration(blockMS) * time.Millisecond
	ctx.Blocking.Block(c.ID, toStringSlice(keys), ctx.Now(), timeout)

	resumeArgs := make([]proto.Frame, 0, 2+2*half)
	resumeArgs = append(resumeArgs, proto.BulkStringFromText("XREAD"), proto.BulkStringFromText("STREAMS"))
	for _, k := range keys {
		resumeArgs = append(resumeArgs, proto.BulkString(k))
	}
	for _, id := range resolvedIDs {
		resumeArgs = append(resumeArgs, proto.BulkStringFromText(id.String()))
	}
	return blockOn(proto.Array(resumeArgs))
}

func xReadAll(ctx *Context, keys [][]byte, ids []store.StreamID, hasCount bool, count int64) ([]proto.Frame, error) {
	var outer []proto.Frame
	for j, k := range keys {
		entries, err := ctx.Engine.XReadKey(string(k), ids[j])
		if err != nil {
			return nil, err
		}
		if hasCount && int64(len(entries)) > count {
			entries = entries[:count]
		}
		if len(entries) == 0 {
			continue
		}
		outer = append(outer, proto.Array([]proto.Frame{
			proto.BulkString(k),
			streamEntriesFrame(entries),
		}))
	}
	return outer, nil
}

func streamEntriesFrame(entries []store.StreamEntry) proto.Frame {
	frames := make([]proto.Frame, len(entries))
	for i, se := range entries {
		fieldFrames := make([]proto.Frame, len(se.Fields))
		for j, f := range se.Fields {
			fieldFrames[j] = proto.BulkString(f)
		}
		frames[i] = proto.Array([]proto.Frame{
			proto.BulkStringFromText(se.ID.String()),
			proto.Array(fieldFrames),
		})
	}
	return proto.Array(frames)
}

func requireIntArg(args [][]byte, i int) (int64, *kverr.Error) {
	if i+1 >= len(args) {
		return 0, kverr.Format("dispatch", "syntax error")
	}
	n, err := strconv.ParseInt(string(args[i+1]), 10, 64)
	if err != nil {
		return 0, kverr.Format("dispatch", "value is not an integer or out of range")
	}
	return n, nil
}

func toStringSlice(bs [][]byte) []string {
	out := make([]string, len(bs))
	for i, b := range bs {
		out[i] = string(b)
	}
	return out
}
