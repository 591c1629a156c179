// Package eventloop drives the single-threaded, non-blocking I/O loop that
// multiplexes the listening socket and every client connection onto one
// execution context, per spec.md §4.7: accept, read, write, and timer
// sweeps all happen from this one goroutine, with dispatch.ProcessInbound
// and dispatch.Reprocess doing the actual protocol work.
package eventloop

import (
	"errors"
	"net"
	"strconv"
	"time"

	"golang.org/x/sys/unix"

	"github.com/behrlich/kvsrv/internal/blocking"
	"github.com/behrlich/kvsrv/internal/conn"
	"github.com/behrlich/kvsrv/internal/constants"
	"github.com/behrlich/kvsrv/internal/dispatch"
	"github.com/behrlich/kvsrv/internal/logging"
	"github.com/behrlich/kvsrv/internal/proto"
	"github.com/behrlich/kvsrv/internal/pubsub"
	"github.com/behrlich/kvsrv/internal/store"
)

// Poller abstracts the OS readiness-notification primitive so Loop itself
// stays platform-independent. NewPoller (loop_linux.go / loop_stub.go)
// returns the implementation appropriate to the build.
type Poller interface {
	Add(fd int) error
	SetWriteInterest(fd int, want bool) error
	Remove(fd int) error
	Wait(timeout time.Duration) ([]Event, error)
	Close() error
}

// Event reports one fd's readiness state from a single Wait call.
type Event struct {
	FD       int
	Readable bool
	Writable bool
	HangUp   bool
}

// client pairs a connection's protocol state with its raw socket fd.
type client struct {
	id conn.ID
	fd int
	c  *conn.Connection
}

// Loop owns every piece of mutable server state: the poller, the listening
// socket, the live connection table, and the engine/coordinator/registry
// dispatch needs. None of this is touched from any other goroutine.
type Loop struct {
	poller   Poller
	listenFD int

	ctx     *dispatch.Context
	clients map[conn.ID]*client
	fdIndex map[int]conn.ID
	nextID  int64

	metrics kvMetrics

	log *logging.Logger
}

// kvMetrics is the subset of the root package's *Metrics the loop itself
// records against directly (connection/byte counters), kept as an interface
// so this package never imports the root package.
type kvMetrics interface {
	dispatch.MetricsRecorder
	RecordConnect()
	RecordDisconnect()
	RecordIO(read, written int)
	RecordBlockingTimeout()
}

// New wires a Loop around an already-bound, already-listening, non-blocking
// socket and a fresh set of dispatch collaborators. metrics and now may both
// be nil; now defaults to time.Now.
func New(listenFD int, poller Poller, dir, dbFilename string, metrics kvMetrics, now func() time.Time) (*Loop, error) {
	if err := poller.Add(listenFD); err != nil {
		return nil, err
	}
	if now == nil {
		now = time.Now
	}
	l := &Loop{
		poller:   poller,
		listenFD: listenFD,
		clients:  make(map[conn.ID]*client),
		fdIndex:  make(map[int]conn.ID),
		metrics:  metrics,
		log:      logging.Default().With("eventloop"),
	}
	var rec dispatch.MetricsRecorder
	if metrics != nil {
		rec = metrics
	}
	l.ctx = &dispatch.Context{
		Engine:     store.New(),
		Blocking:   blocking.New(),
		PubSub:     pubsub.New(),
		Conns:      make(map[conn.ID]*conn.Connection),
		Now:        now,
		Dir:        dir,
		DBFilename: dbFilename,
		Metrics:    rec,
	}
	return l, nil
}

// Listen creates a non-blocking, address-reuse-enabled TCP listening socket
// bound to addr:port, ready to be handed to New.
func Listen(addr string, port int) (int, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return -1, err
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return -1, err
	}
	sa := &unix.SockaddrInet4{Port: port, Addr: parseIPv4(addr)}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return -1, err
	}
	if err := unix.Listen(fd, constants.ListenBacklog); err != nil {
		unix.Close(fd)
		return -1, err
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return -1, err
	}
	return fd, nil
}

// parseIPv4 parses a dotted-quad address, defaulting to loopback on any
// malformed input.
func parseIPv4(addr string) [4]byte {
	var out [4]byte
	var octet, idx int
	started := false
	for i := 0; i < len(addr); i++ {
		ch := addr[i]
		switch {
		case ch >= '0' && ch <= '9':
			octet = octet*10 + int(ch-'0')
			if octet > 255 {
				return [4]byte{127, 0, 0, 1}
			}
			started = true
		case ch == '.':
			if !started || idx > 2 {
				return [4]byte{127, 0, 0, 1}
			}
			out[idx] = byte(octet)
			idx++
			octet = 0
			started = false
		default:
			return [4]byte{127, 0, 0, 1}
		}
	}
	if started && idx == 3 {
		out[3] = byte(octet)
		return out
	}
	return [4]byte{127, 0, 0, 1}
}

// Addr returns the "ip:port" a listening socket created by Listen is bound
// to, resolving the ephemeral port the kernel picked when port 0 was passed.
func Addr(fd int) (string, error) {
	sa, err := unix.Getsockname(fd)
	if err != nil {
		return "", err
	}
	in4, ok := sa.(*unix.SockaddrInet4)
	if !ok {
		return "", errors.New("eventloop: unexpected socket address type")
	}
	ip := net.IP(in4.Addr[:])
	return net.JoinHostPort(ip.String(), strconv.Itoa(in4.Port)), nil
}

// Run executes the loop until stop is closed or the poller reports a fatal
// error. Each iteration follows spec.md §4.7's five numbered steps.
func (l *Loop) Run(stop <-chan struct{}) error {
	for {
		select {
		case <-stop:
			return l.shutdown()
		default:
		}

		events, err := l.poller.Wait(constants.Tick)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return err
		}

		for _, ev := range events {
			l.handleEvent(ev)
		}

		l.drainReadyList()
		l.sweepTimeouts()
		l.sweepWriteInterest()
	}
}

func (l *Loop) handleEvent(ev Event) {
	if ev.FD == l.listenFD {
		l.acceptAll()
		return
	}
	id, ok := l.fdIndex[ev.FD]
	if !ok {
		return
	}
	cl := l.clients[id]
	if ev.HangUp {
		l.closeClient(id)
		return
	}
	if ev.Readable {
		l.readClient(cl)
	}
	// readClient may have closed cl on EOF/error; guard before writing.
	if ev.Writable {
		if _, stillOpen := l.clients[id]; stillOpen {
			l.writeClient(cl)
		}
	}
}

func (l *Loop) acceptAll() {
	for {
		fd, _, err := unix.Accept(l.listenFD)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				return
			}
			l.log.Warn("accept failed", "error", err)
			return
		}
		if err := unix.SetNonblock(fd, true); err != nil {
			unix.Close(fd)
			continue
		}
		l.nextID++
		id := l.nextID
		c := conn.New(id)
		l.clients[id] = &client{id: id, fd: fd, c: c}
		l.fdIndex[fd] = id
		l.ctx.Conns[id] = c
		if l.metrics != nil {
			l.metrics.RecordConnect()
		}
		if err := l.poller.Add(fd); err != nil {
			l.log.Warn("poller add failed", "error", err)
			l.closeClient(id)
		}
	}
}

func (l *Loop) readClient(cl *client) {
	buf := cl.c.ReadBuf()
	n, err := unix.Read(cl.fd, buf)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return
		}
		l.closeClient(cl.id)
		return
	}
	if n == 0 {
		l.closeClient(cl.id)
		return
	}
	if l.metrics != nil {
		l.metrics.RecordIO(n, 0)
	}
	cl.c.Feed(buf[:n])
	dispatch.ProcessInbound(l.ctx, cl.c)
	if cl.c.HasOutgoing() {
		l.writeClient(cl)
	}
}

func (l *Loop) writeClient(cl *client) {
	for cl.c.HasOutgoing() {
		n, err := unix.Write(cl.fd, cl.c.OutgoingBuffer())
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				break
			}
			l.closeClient(cl.id)
			return
		}
		if n == 0 {
			break
		}
		if l.metrics != nil {
			l.metrics.RecordIO(0, n)
		}
		cl.c.ConsumeOutgoing(n)
	}
	l.updateWriteInterest(cl)
}

func (l *Loop) updateWriteInterest(cl *client) {
	want := cl.c.HasOutgoing()
	if want == cl.c.WantWrite {
		return
	}
	if err := l.poller.SetWriteInterest(cl.fd, want); err == nil {
		cl.c.WantWrite = want
	}
}

func (l *Loop) closeClient(id conn.ID) {
	cl, ok := l.clients[id]
	if !ok {
		return
	}
	wasBlocked := l.ctx.Blocking.IsBlocked(id)
	delete(l.clients, id)
	delete(l.fdIndex, cl.fd)
	delete(l.ctx.Conns, id)
	l.ctx.PubSub.UnsubscribeAll(id)
	l.ctx.Blocking.Unblock(id)
	l.poller.Remove(cl.fd)
	unix.Close(cl.fd)
	cl.c.Close()
	if l.metrics != nil {
		l.metrics.RecordDisconnect()
		if wasBlocked {
			l.metrics.RecordUnblock()
		}
	}
}

// drainReadyList re-dispatches every client the blocking coordinator has
// woken since the last iteration (spec.md §4.7 step 3).
func (l *Loop) drainReadyList() {
	for _, id := range l.ctx.Blocking.DrainReady() {
		c, ok := l.ctx.Conns[id]
		if !ok {
			continue
		}
		if l.metrics != nil {
			l.metrics.RecordUnblock()
		}
		dispatch.Reprocess(l.ctx, c)
		if cl, ok := l.clients[id]; ok && c.HasOutgoing() {
			l.writeClient(cl)
		}
	}
}

// sweepTimeouts sends the fixed "*-1\r\n" reply to every client whose
// blocking deadline has elapsed (spec.md §4.7 step 4, literal wire bytes).
func (l *Loop) sweepTimeouts() {
	for _, id := range l.ctx.Blocking.CollectTimeouts(l.ctx.Now()) {
		c, ok := l.ctx.Conns[id]
		if !ok {
			continue
		}
		if l.metrics != nil {
			l.metrics.RecordUnblock()
			l.metrics.RecordBlockingTimeout()
		}
		c.ClearDeferred()
		c.Enqueue(proto.NullArray())
		if cl, ok := l.clients[id]; ok {
			l.writeClient(cl)
		}
	}
}

// sweepWriteInterest re-arms write readiness for any connection left with a
// non-empty outgoing buffer (spec.md §4.7 step 5).
func (l *Loop) sweepWriteInterest() {
	for _, cl := range l.clients {
		l.updateWriteInterest(cl)
	}
}

func (l *Loop) shutdown() error {
	for id := range l.clients {
		l.closeClient(id)
	}
	if err := l.poller.Remove(l.listenFD); err != nil {
		l.log.Warn("remove listener from poller failed", "error", err)
	}
	unix.Close(l.listenFD)
	return l.poller.Close()
}
