package dispatch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/behrlich/kvsrv/internal/proto"
)

func TestSetWithPXExpiresViaDispatch(t *testing.T) {
	cur := time.Unix(1000, 0)
	ctx, c := newTestContext(t, func() time.Time { return cur })

	require.True(t, run(ctx, c, "SET", "k", "v", "PX", "100").Reply.Equal(proto.SimpleString("OK")))
	require.True(t, run(ctx, c, "GET", "k").Reply.Equal(proto.BulkStringFromText("v")))

	cur = cur.Add(200 * time.Millisecond)
	require.True(t, run(ctx, c, "GET", "k").Reply.Equal(proto.Null()))
}

func TestSetInvalidPXErrors(t *testing.T) {
	ctx, c := newTestContext(t, nil)
	require.Equal(t, proto.KindError, run(ctx, c, "SET", "k", "v", "PX", "0").Reply.Kind)
	require.Equal(t, proto.KindError, run(ctx, c, "SET", "k", "v", "XX", "100").Reply.Kind)
}

func TestDelExistsKeysViaDispatch(t *testing.T) {
	ctx, c := newTestContext(t, nil)
	run(ctx, c, "SET", "a", "1")
	run(ctx, c, "SET", "b", "2")

	require.True(t, run(ctx, c, "EXISTS", "a", "b", "c").Reply.Equal(proto.Integer(2)))
	require.True(t, run(ctx, c, "DEL", "a", "c").Reply.Equal(proto.Integer(1)))
	require.True(t, run(ctx, c, "EXISTS", "a").Reply.Equal(proto.Integer(0)))

	keysRes := run(ctx, c, "KEYS", "*")
	require.Equal(t, proto.KindArray, keysRes.Reply.Kind)
	require.Len(t, keysRes.Reply.Array, 1)
}

func TestGetOnWrongTypeErrors(t *testing.T) {
	ctx, c := newTestContext(t, nil)
	run(ctx, c, "RPUSH", "l", "a")
	res := run(ctx, c, "GET", "l")
	require.Equal(t, proto.KindError, res.Reply.Kind)
	require.Contains(t, res.Reply.Str, "WRONGTYPE")
}
