// Package pubsub implements channel-based publish/subscribe fan-out: a
// mapping from channel name to the set of subscribed connections.
package pubsub

// ClientID identifies a subscriber connection opaquely. It is an alias for
// plain int64 so callers never need to convert between this package's,
// blocking's, and conn's notion of a client.
type ClientID = int64

// Registry maps channel names to their current subscriber sets.
type Registry struct {
	channels map[string]map[ClientID]bool
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{channels: make(map[string]map[ClientID]bool)}
}

// Subscribe adds client to channel's subscriber set. Reports whether the
// set changed (false if client was already subscribed).
func (r *Registry) Subscribe(client ClientID, channel string) bool {
	subs, ok := r.channels[channel]
	if !ok {
		subs = make(map[ClientID]bool)
		r.channels[channel] = subs
	}
	if subs[client] {
		return false
	}
	subs[client] = true
	return true
}

// Unsubscribe removes client from channel's subscriber set, deleting the
// channel entirely once it empties. Reports whether the set changed.
func (r *Registry) Unsubscribe(client ClientID, channel string) bool {
	subs, ok := r.channels[channel]
	if !ok || !subs[client] {
		return false
	}
	delete(subs, client)
	if len(subs) == 0 {
		delete(r.channels, channel)
	}
	return true
}

// UnsubscribeAll removes client from every channel it is subscribed to, for
// use when a connection tears down. Returns the channels it was removed
// from.
func (r *Registry) UnsubscribeAll(client ClientID) []string {
	var removedFrom []string
	for channel, subs := range r.channels {
		if subs[client] {
			delete(subs, client)
			if len(subs) == 0 {
				delete(r.channels, channel)
			}
			removedFrom = append(removedFrom, channel)
		}
	}
	return removedFrom
}

// Subscribers returns the current subscriber set of channel, or nil if it
// has none. The caller must not mutate the returned map.
func (r *Registry) Subscribers(channel string) map[ClientID]bool {
	return r.channels[channel]
}

// Count returns the number of channels client is currently subscribed to,
// used to render the confirmation frame's subscription count.
func (r *Registry) Count(client ClientID) int {
	n := 0
	for _, subs := range r.channels {
		if subs[client] {
			n++
		}
	}
	return n
}

// ChannelCount returns the current number of distinct channels with at
// least one subscriber.
func (r *Registry) ChannelCount() int {
	return len(r.channels)
}
