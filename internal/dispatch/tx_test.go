package dispatch

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/behrlich/kvsrv/internal/proto"
)

func TestMultiNestedErrors(t *testing.T) {
	ctx, c := newTestContext(t, nil)
	c.BeginMulti()
	res := run(ctx, c, "MULTI")
	require.Equal(t, proto.KindError, res.Reply.Kind)
	require.Contains(t, res.Reply.Str, "MULTI calls can not be nested")
}

func TestDiscardClearsQueueWithoutApplying(t *testing.T) {
	ctx, c := newTestContext(t, nil)
	c.BeginMulti()
	c.EnqueueQueued(cmd("INCR", "a"))

	res := run(ctx, c, "DISCARD")
	require.True(t, res.Reply.Equal(proto.SimpleString("OK")))
	require.False(t, c.InMulti)

	_, ok, err := ctx.Engine.Get("a")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDiscardWithoutMultiErrors(t *testing.T) {
	ctx, c := newTestContext(t, nil)
	res := run(ctx, c, "DISCARD")
	require.Equal(t, proto.KindError, res.Reply.Kind)
}

func TestExecQueuedErrorDoesNotAbortRemaining(t *testing.T) {
	ctx, c := newTestContext(t, nil)
	c.BeginMulti()
	c.EnqueueQueued(cmd("RPUSH", "l", "a"))
	c.EnqueueQueued(cmd("GET", "l"))
	c.EnqueueQueued(cmd("SET", "k", "v"))

	res := run(ctx, c, "EXEC")
	require.Equal(t, proto.KindArray, res.Reply.Kind)
	require.Len(t, res.Reply.Array, 3)
	require.Equal(t, proto.KindInteger, res.Reply.Array[0].Kind)
	require.Equal(t, proto.KindError, res.Reply.Array[1].Kind)
	require.Equal(t, proto.KindSimpleString, res.Reply.Array[2].Kind)
}
