package dispatch

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/behrlich/kvsrv/internal/conn"
	"github.com/behrlich/kvsrv/internal/proto"
)

func TestSubscribePublishDelivery(t *testing.T) {
	ctx, sub := newTestContext(t, nil)
	pub := conn.New(2)
	ctx.Conns[pub.ID] = pub

	res := run(ctx, sub, "SUBSCRIBE", "ch")
	require.True(t, res.Handled)
	require.Contains(t, string(sub.OutgoingBuffer()), "subscribe")
	require.True(t, sub.InPubSubMode())

	pubRes := run(ctx, pub, "PUBLISH", "ch", "hi")
	require.True(t, pubRes.Reply.Equal(proto.Integer(1)))

	require.Contains(t, string(sub.OutgoingBuffer()), "message")
	require.Contains(t, string(sub.OutgoingBuffer()), "hi")
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	ctx, sub := newTestContext(t, nil)
	pub := conn.New(2)
	ctx.Conns[pub.ID] = pub

	run(ctx, sub, "SUBSCRIBE", "ch")
	run(ctx, sub, "UNSUBSCRIBE", "ch")
	require.False(t, sub.InPubSubMode())

	pubRes := run(ctx, pub, "PUBLISH", "ch", "hi")
	require.True(t, pubRes.Reply.Equal(proto.Integer(0)))
}

func TestPublishWithNoSubscribersReturnsZero(t *testing.T) {
	ctx, c := newTestContext(t, nil)
	res := run(ctx, c, "PUBLISH", "ch", "hi")
	require.True(t, res.Reply.Equal(proto.Integer(0)))
}
