// Package blocking implements the wait/wake coordinator for commands like
// BLPOP and XREAD that suspend a client until a key changes or a deadline
// passes. The event loop is its only caller; it carries no internal
// locking.
package blocking

import "time"

// ClientID identifies a blocked connection opaquely (in practice, its file
// descriptor), mirroring how the data engine never holds a pointer to a
// connection. It is an alias for plain int64 so callers never need to
// convert between this package's, pubsub's, and conn's notion of a client.
type ClientID = int64

// waiter is one client's blocking registration.
type waiter struct {
	id          ClientID
	keys        []string
	hasDeadline bool
	deadline    time.Time
}

// Coordinator maps keys to FIFO waiter queues and tracks each waiter's
// blocking record so a wake or disconnect can deregister it everywhere at
// once.
type Coordinator struct {
	queues  map[string][]ClientID
	waiters map[ClientID]*waiter
	ready   []ClientID
}

// New returns an empty Coordinator.
func New() *Coordinator {
	return &Coordinator{
		queues:  make(map[string][]ClientID),
		waiters: make(map[ClientID]*waiter),
	}
}

// Block registers client at the tail of every key's queue. timeout <= 0
// means wait forever; the caller is responsible for translating a
// command-specific "0 means forever" timeout into that convention before
// calling Block.
func (c *Coordinator) Block(client ClientID, keys []string, now time.Time, timeout time.Duration) {
	w := &waiter{id: client, keys: append([]string{}, keys...)}
	if timeout > 0 {
		w.hasDeadline = true
		w.deadline = now.Add(timeout)
	}
	c.waiters[client] = w
	for _, k := range keys {
		c.queues[k] = append(c.queues[k], client)
	}
}

// WakeOne dequeues the head of key's queue, if any, deregisters it from
// every other key it was waiting on, and appends it to the ready list.
// Reports whether anyone was woken.
func (c *Coordinator) WakeOne(key string) (ClientID, bool) {
	q := c.queues[key]
	if len(q) == 0 {
		return 0, false
	}
	client := q[0]
	c.queues[key] = q[1:]
	if len(c.queues[key]) == 0 {
		delete(c.queues, key)
	}
	c.deregisterFromAllKeys(client)
	delete(c.waiters, client)
	c.ready = append(c.ready, client)
	return client, true
}

// WakeAll drains key's entire queue in FIFO order, deregistering each
// waiter globally and appending all of them to the ready list.
func (c *Coordinator) WakeAll(key string) []ClientID {
	q := c.queues[key]
	if len(q) == 0 {
		return nil
	}
	delete(c.queues, key)
	woken := make([]ClientID, 0, len(q))
	for _, client := range q {
		c.deregisterFromAllKeys(client)
		delete(c.waiters, client)
		woken = append(woken, client)
	}
	c.ready = append(c.ready, woken...)
	return woken
}

// Unblock removes client's registration from every queue and the ready
// list, for use on disconnect.
func (c *Coordinator) Unblock(client ClientID) {
	c.deregisterFromAllKeys(client)
	delete(c.waiters, client)
	for i, id := range c.ready {
		if id == client {
			c.ready = append(c.ready[:i], c.ready[i+1:]...)
			break
		}
	}
}

// deregisterFromAllKeys removes client from every per-key queue it is
// registered on, per the waiter's own key list (so WakeOne need not scan
// every queue in the coordinator).
func (c *Coordinator) deregisterFromAllKeys(client ClientID) {
	w, ok := c.waiters[client]
	if !ok {
		return
	}
	for _, k := range w.keys {
		q := c.queues[k]
		for i, id := range q {
			if id == client {
				c.queues[k] = append(q[:i], q[i+1:]...)
				break
			}
		}
		if len(c.queues[k]) == 0 {
			delete(c.queues, k)
		}
	}
}

// CollectTimeouts removes and returns every waiter whose deadline has
// passed as of now, via a single linear sweep of the waiter table.
func (c *Coordinator) CollectTimeouts(now time.Time) []ClientID {
	var timedOut []ClientID
	for client, w := range c.waiters {
		if w.hasDeadline && !now.Before(w.deadline) {
			timedOut = append(timedOut, client)
		}
	}
	for _, client := range timedOut {
		c.deregisterFromAllKeys(client)
		delete(c.waiters, client)
	}
	return timedOut
}

// DrainReady removes and returns every client currently on the ready list,
// for the event loop's once-per-iteration reprocess pass.
func (c *Coordinator) DrainReady() []ClientID {
	if len(c.ready) == 0 {
		return nil
	}
	ready := c.ready
	c.ready = nil
	return ready
}

// IsBlocked reports whether client currently has an active registration.
func (c *Coordinator) IsBlocked(client ClientID) bool {
	_, ok := c.waiters[client]
	return ok
}
