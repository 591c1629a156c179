package store

import (
	"errors"
	"testing"
	"time"

	"github.com/behrlich/kvsrv/internal/kverr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetGetRoundTrip(t *testing.T) {
	e := New()
	e.Set("k", []byte("v"), false, 0)

	val, ok, err := e.Get("k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v", string(val))
	assert.Equal(t, "string", e.Type("k"))
}

func TestGetMissingKeyIsNullNotError(t *testing.T) {
	e := New()
	val, ok, err := e.Get("missing")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, val)
	assert.Equal(t, "none", e.Type("missing"))
}

func TestGetWrongType(t *testing.T) {
	e := New()
	_, err := e.RPush("k", [][]byte{[]byte("a")})
	require.NoError(t, err)

	_, _, err = e.Get("k")
	require.Error(t, err)
	var kerr *kverr.Error
	require.True(t, errors.As(err, &kerr))
	assert.Equal(t, kverr.KindWrongType, kerr.Kind)
}

func TestTTLExpiry(t *testing.T) {
	now := time.Now()
	cur := now
	e := NewWithClock(func() time.Time { return cur }, func() uint64 { return 0 })

	e.Set("k", []byte("v"), true, 50*time.Millisecond)
	_, ok, err := e.Get("k")
	require.NoError(t, err)
	assert.True(t, ok)

	cur = now.Add(51 * time.Millisecond)
	_, ok, err = e.Get("k")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "none", e.Type("k"))
}

func TestIncr(t *testing.T) {
	e := New()
	n, err := e.Incr("n")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	e.Set("n", []byte("10"), false, 0)
	n, err = e.Incr("n")
	require.NoError(t, err)
	assert.Equal(t, int64(11), n)

	e.Set("n", []byte("x"), false, 0)
	_, err = e.Incr("n")
	require.Error(t, err)
}

func TestRPushLPushLRangeLPop(t *testing.T) {
	e := New()
	n, err := e.RPush("l", [][]byte{[]byte("a"), []byte("b"), []byte("c")})
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	vals, err := e.LRange("l", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, toStrings(vals))

	popped, err := e.LPopCount("l", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, toStrings(popped))

	llen, err := e.LLen("l")
	require.NoError(t, err)
	assert.Equal(t, int64(1), llen)
}

func TestLPushOrderingMatchesSpec(t *testing.T) {
	e := New()
	_, err := e.RPush("l", [][]byte{[]byte("old")})
	require.NoError(t, err)

	_, err = e.LPush("l", [][]byte{[]byte("a"), []byte("b"), []byte("c")})
	require.NoError(t, err)

	vals, err := e.LRange("l", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "old"}, toStrings(vals))
}

func TestLPopEmptiesKeyOnLastElement(t *testing.T) {
	e := New()
	_, err := e.RPush("l", [][]byte{[]byte("only")})
	require.NoError(t, err)

	val, ok, err := e.LPopOne("l")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "only", string(val))
	assert.Equal(t, "none", e.Type("l"))
}

func TestLPopOnAbsentKey(t *testing.T) {
	e := New()
	_, ok, err := e.LPopOne("missing")
	require.NoError(t, err)
	assert.False(t, ok)

	arr, err := e.LPopCount("missing", 3)
	require.NoError(t, err)
	assert.Empty(t, arr)
}

func TestXAddMonotonicAndRejectsZero(t *testing.T) {
	e := NewWithClock(time.Now, func() uint64 { return 5 })

	expr, ok := ParseXAddID("1-1")
	require.True(t, ok)
	id, err := e.XAdd("s", expr, [][]byte{[]byte("f"), []byte("v")})
	require.NoError(t, err)
	assert.Equal(t, StreamID{MS: 1, Seq: 1}, id)

	_, err = e.XAdd("s", expr, [][]byte{[]byte("f"), []byte("v")})
	require.Error(t, err)
	var kerr *kverr.Error
	require.True(t, errors.As(err, &kerr))
	assert.Equal(t, kverr.KindStreamID, kerr.Kind)

	zeroExpr, ok := ParseXAddID("0-0")
	require.True(t, ok)
	_, err = e.XAdd("s2", zeroExpr, [][]byte{[]byte("f"), []byte("v")})
	require.Error(t, err)
}

func TestXAddFullAutoUsesWallClock(t *testing.T) {
	e := NewWithClock(time.Now, func() uint64 { return 100 })
	expr, ok := ParseXAddID("*")
	require.True(t, ok)

	id, err := e.XAdd("s", expr, [][]byte{[]byte("f"), []byte("v")})
	require.NoError(t, err)
	assert.Equal(t, uint64(100), id.MS)
	assert.Equal(t, uint64(0), id.Seq)

	id2, err := e.XAdd("s", expr, [][]byte{[]byte("f"), []byte("v")})
	require.NoError(t, err)
	assert.Equal(t, uint64(100), id2.MS)
	assert.Equal(t, uint64(1), id2.Seq)
}

func TestXRangeOrderAndCount(t *testing.T) {
	e := NewWithClock(time.Now, func() uint64 { return 0 })
	for _, idText := range []string{"1-1", "1-2", "2-1"} {
		expr, ok := ParseXAddID(idText)
		require.True(t, ok)
		_, err := e.XAdd("s", expr, [][]byte{[]byte("f"), []byte("v")})
		require.NoError(t, err)
	}

	start, ok := ParseRangeStart("-")
	require.True(t, ok)
	end, ok := ParseRangeEnd("+")
	require.True(t, ok)

	all, err := e.XRange("s", start, end, false, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "1-1", all[0].ID.String())
	assert.Equal(t, "2-1", all[2].ID.String())

	limited, err := e.XRange("s", start, end, true, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestXReadKeyStrictlyGreater(t *testing.T) {
	e := NewWithClock(time.Now, func() uint64 { return 0 })
	for _, idText := range []string{"1-1", "1-2"} {
		expr, _ := ParseXAddID(idText)
		_, err := e.XAdd("s", expr, [][]byte{[]byte("f"), []byte("v")})
		require.NoError(t, err)
	}

	entries, err := e.XReadKey("s", StreamID{MS: 1, Seq: 1})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "1-2", entries[0].ID.String())
}

func TestDelExistsKeys(t *testing.T) {
	e := New()
	e.Set("a1", []byte("1"), false, 0)
	e.Set("a2", []byte("2"), false, 0)
	e.Set("b1", []byte("3"), false, 0)

	n := e.Del([]string{"a1", "nope"})
	assert.Equal(t, int64(1), n)

	assert.Equal(t, int64(1), e.Exists([]string{"a2", "a1"}))

	matches, err := e.Keys("a*")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a2"}, matches)
}

func toStrings(bs [][]byte) []string {
	out := make([]string, len(bs))
	for i, b := range bs {
		out[i] = string(b)
	}
	return out
}
