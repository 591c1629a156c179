package store

import (
	"math"
	"path"
	"strconv"
	"time"

	"github.com/behrlich/kvsrv/internal/kverr"
)

// Engine owns the key namespace. It is not safe for concurrent use: the
// single-threaded event loop is its only caller, by construction.
type Engine struct {
	entries map[string]*Entry

	// now and wallMS are injected so tests can control TTL expiry and
	// stream-ID auto-allocation without sleeping on a real clock.
	now    func() time.Time
	wallMS func() uint64
}

// New returns an Engine using the real steady and wall clocks.
func New() *Engine {
	return NewWithClock(time.Now, func() uint64 { return uint64(time.Now().UnixMilli()) })
}

// NewWithClock returns an Engine with injected clocks, for deterministic
// TTL and stream-ID tests.
func NewWithClock(now func() time.Time, wallMS func() uint64) *Engine {
	return &Engine{
		entries: make(map[string]*Entry),
		now:     now,
		wallMS:  wallMS,
	}
}

// Len reports the number of keys in the namespace, including expired keys
// that no access has removed yet. Calling it performs no eager expiry sweep;
// it is for tests and metrics only.
func (e *Engine) Len() int {
	return len(e.entries)
}

// lookup returns the entry for key if present and not expired, lazily
// deleting it otherwise.
func (e *Engine) lookup(key string) (*Entry, bool) {
	ent, ok := e.entries[key]
	if !ok {
		return nil, false
	}
	if ent.expired(e.now()) {
		delete(e.entries, key)
		return nil, false
	}
	return ent, true
}

// Type returns "string", "list", "stream" or "none".
func (e *Engine) Type(key string) string {
	ent, ok := e.lookup(key)
	if !ok {
		return "none"
	}
	return ent.val.kind.String()
}

// Set creates or replaces a String entry. hasTTL/ttl must already be
// validated by the caller (ttl <= 0 is rejected before reaching the engine).
func (e *Engine) Set(key string, val []byte, hasTTL bool, ttl time.Duration) {
	ent := &Entry{val: value{kind: KindString, str: append([]byte{}, val...)}}
	if hasTTL {
		ent.expireAt = e.now().Add(ttl)
	}
	e.entries[key] = ent
}

// Get returns the string value, or ok=false if absent/expired.
func (e *Engine) Get(key string) (val []byte, ok bool, err error) {
	ent, found := e.lookup(key)
	if !found {
		return nil, false, nil
	}
	if ent.val.kind != KindString {
		return nil, false, kverr.WrongType("GET")
	}
	return ent.val.str, true, nil
}

// Incr parses the string value as a signed 64-bit integer, adds one, and
// writes the result back as text.
func (e *Engine) Incr(key string) (int64, error) {
	ent, found := e.lookup(key)
	if !found {
		e.entries[key] = &Entry{val: value{kind: KindString, str: []byte("1")}}
		return 1, nil
	}
	if ent.val.kind != KindString {
		return 0, kverr.WrongType("INCR")
	}
	n, err := strconv.ParseInt(string(ent.val.str), 10, 64)
	if err != nil {
		return 0, kverr.Format("INCR", "value is not an integer or out of range")
	}
	if n == math.MaxInt64 {
		return 0, kverr.Format("INCR", "increment or decrement would overflow")
	}
	n++
	ent.val.str = []byte(strconv.FormatInt(n, 10))
	return n, nil
}

// RPush appends values at the tail, creating the list if absent/expired.
func (e *Engine) RPush(key string, values [][]byte) (int64, error) {
	ent, err := e.listEntryForWrite(key)
	if err != nil {
		return 0, err
	}
	ent.val.list = append(ent.val.list, cloneAll(values)...)
	return int64(len(ent.val.list)), nil
}

// LPush prepends values, preserving their argument order as the new head
// segment (equivalent to reversing values and pushing to head one at a
// time).
func (e *Engine) LPush(key string, values [][]byte) (int64, error) {
	ent, err := e.listEntryForWrite(key)
	if err != nil {
		return 0, err
	}
	newList := make([][]byte, 0, len(values)+len(ent.val.list))
	newList = append(newList, cloneAll(values)...)
	newList = append(newList, ent.val.list...)
	ent.val.list = newList
	return int64(len(ent.val.list)), nil
}

func (e *Engine) listEntryForWrite(key string) (*Entry, error) {
	ent, found := e.lookup(key)
	if !found {
		ent = &Entry{val: value{kind: KindList}}
		e.entries[key] = ent
		return ent, nil
	}
	if ent.val.kind != KindList {
		return nil, kverr.WrongType("PUSH")
	}
	return ent, nil
}

// LLen returns the list length, or 0 for an absent key.
func (e *Engine) LLen(key string) (int64, error) {
	ent, found := e.lookup(key)
	if !found {
		return 0, nil
	}
	if ent.val.kind != KindList {
		return 0, kverr.WrongType("LLEN")
	}
	return int64(len(ent.val.list)), nil
}

// LRange returns elements in [start, stop], inclusive, after clamping
// negative and out-of-range indices.
func (e *Engine) LRange(key string, start, stop int64) ([][]byte, error) {
	ent, found := e.lookup(key)
	if !found {
		return [][]byte{}, nil
	}
	if ent.val.kind != KindList {
		return nil, kverr.WrongType("LRANGE")
	}
	n := int64(len(ent.val.list))
	start = clampListIndex(start, n)
	stop = clampListIndex(stop, n)
	if n == 0 || start > stop || start >= n {
		return [][]byte{}, nil
	}
	if stop >= n {
		stop = n - 1
	}
	out := make([][]byte, 0, stop-start+1)
	for i := start; i <= stop; i++ {
		out = append(out, ent.val.list[i])
	}
	return out, nil
}

func clampListIndex(i, n int64) int64 {
	if i < 0 {
		i = n + i
	}
	if i < 0 {
		i = 0
	}
	return i
}

// LPopOne removes and returns the head element. ok is false when the key is
// absent/expired/empty.
func (e *Engine) LPopOne(key string) (val []byte, ok bool, err error) {
	ent, found := e.lookup(key)
	if !found {
		return nil, false, nil
	}
	if ent.val.kind != KindList {
		return nil, false, kverr.WrongType("LPOP")
	}
	if len(ent.val.list) == 0 {
		delete(e.entries, key)
		return nil, false, nil
	}
	val = ent.val.list[0]
	ent.val.list = ent.val.list[1:]
	if len(ent.val.list) == 0 {
		delete(e.entries, key)
	}
	return val, true, nil
}

// LPopCount removes and returns up to count elements from the head. Absent
// keys and count == 0 both return an empty, non-nil slice.
func (e *Engine) LPopCount(key string, count int64) ([][]byte, error) {
	ent, found := e.lookup(key)
	if !found || count == 0 {
		if found && ent.val.kind != KindList {
			return nil, kverr.WrongType("LPOP")
		}
		return [][]byte{}, nil
	}
	if ent.val.kind != KindList {
		return nil, kverr.WrongType("LPOP")
	}
	n := count
	if n > int64(len(ent.val.list)) {
		n = int64(len(ent.val.list))
	}
	out := append([][]byte{}, ent.val.list[:n]...)
	ent.val.list = ent.val.list[n:]
	if len(ent.val.list) == 0 {
		delete(e.entries, key)
	}
	return out, nil
}

// XAdd resolves expr against the stream's current last ID and appends a new
// entry, refusing 0-0 and any ID not strictly greater than the current max.
func (e *Engine) XAdd(key string, expr XAddID, fields [][]byte) (StreamID, error) {
	ent, found := e.lookup(key)
	if !found {
		ent = &Entry{val: value{kind: KindStream}}
		e.entries[key] = ent
	} else if ent.val.kind != KindStream {
		return StreamID{}, kverr.WrongType("XADD")
	}

	id, ok := ResolveXAddID(expr, ent.val.lastID, ent.val.hasLast, e.wallMS())
	if !ok {
		return StreamID{}, kverr.StreamIDErr("XADD", "Invalid stream ID specified as stream command argument")
	}
	if id.Compare(MinStreamID) <= 0 {
		return StreamID{}, kverr.StreamIDErr("XADD", "The ID specified in XADD must be greater than 0-0")
	}
	if ent.val.hasLast && id.Compare(ent.val.lastID) <= 0 {
		return StreamID{}, kverr.StreamIDErr("XADD", "The ID specified in XADD is equal or smaller than the target stream top item")
	}

	ent.val.stream = append(ent.val.stream, StreamEntry{ID: id, Fields: cloneAll(fields)})
	ent.val.lastID = id
	ent.val.hasLast = true
	return id, nil
}

// XRange returns entries with start <= ID <= end, in ID order, capped at
// count when hasCount is true.
func (e *Engine) XRange(key string, start, end StreamID, hasCount bool, count int64) ([]StreamEntry, error) {
	ent, found := e.lookup(key)
	if !found {
		return nil, nil
	}
	if ent.val.kind != KindStream {
		return nil, kverr.WrongType("XRANGE")
	}
	var out []StreamEntry
	for _, se := range ent.val.stream {
		if hasCount && int64(len(out)) >= count {
			break
		}
		if se.ID.Compare(start) < 0 || se.ID.Compare(end) > 0 {
			continue
		}
		out = append(out, se)
	}
	return out, nil
}

// XReadKey returns every entry strictly greater than afterID, in ID order.
func (e *Engine) XReadKey(key string, afterID StreamID) ([]StreamEntry, error) {
	ent, found := e.lookup(key)
	if !found {
		return nil, nil
	}
	if ent.val.kind != KindStream {
		return nil, kverr.WrongType("XREAD")
	}
	var out []StreamEntry
	for _, se := range ent.val.stream {
		if se.ID.Compare(afterID) > 0 {
			out = append(out, se)
		}
	}
	return out, nil
}

// LastStreamID returns the stream's most recent ID, if it exists, is
// unexpired, is actually a stream, and has at least one entry.
func (e *Engine) LastStreamID(key string) (StreamID, bool) {
	ent, found := e.lookup(key)
	if !found || ent.val.kind != KindStream || !ent.val.hasLast {
		return StreamID{}, false
	}
	return ent.val.lastID, true
}

// Del removes the given keys (after expiry checks) and returns how many
// were actually present.
func (e *Engine) Del(keys []string) int64 {
	var n int64
	for _, k := range keys {
		if _, found := e.lookup(k); found {
			delete(e.entries, k)
			n++
		}
	}
	return n
}

// Exists counts how many of the given keys are currently present, counting
// a repeated key once per occurrence.
func (e *Engine) Exists(keys []string) int64 {
	var n int64
	for _, k := range keys {
		if _, found := e.lookup(k); found {
			n++
		}
	}
	return n
}

// Keys returns every live key whose name glob-matches pattern.
func (e *Engine) Keys(pattern string) ([]string, error) {
	var out []string
	for k := range e.entries {
		if _, found := e.lookup(k); !found {
			continue
		}
		matched, err := path.Match(pattern, k)
		if err != nil {
			return nil, kverr.Format("KEYS", "invalid glob pattern")
		}
		if matched {
			out = append(out, k)
		}
	}
	return out, nil
}

func cloneAll(bs [][]byte) [][]byte {
	out := make([][]byte, len(bs))
	for i, b := range bs {
		out[i] = append([]byte{}, b...)
	}
	return out
}
