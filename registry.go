package pusher

import "sync"

// registry maps channel name to the single Channel object for that name
// within a Client, per the invariant "exactly one Channel object per name
// at any time". It survives reconnects; only explicit unsubscribe or
// Client teardown removes an entry.
type registry struct {
	mu       sync.Mutex
	channels map[string]*Channel
}

func newRegistry() *registry {
	return &registry{channels: make(map[string]*Channel)}
}

// getOrCreate returns the existing channel for name, or creates a new
// Channel of the type derived from name (a presence-* name gets roster
// state, without member callbacks). Creation is idempotent: a repeated subscribe
// reuses the same object and its bindings.
func (r *registry) getOrCreate(name string) (*Channel, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ch, ok := r.channels[name]; ok {
		return ch, false
	}
	ch := newChannel(name)
	r.channels[name] = ch
	return ch, true
}

// getOrCreatePresence is getOrCreate specialized for presence-* channels,
// wiring the member-lifecycle observers on first creation only.
func (r *registry) getOrCreatePresence(name string, onAdded, onRemoved func(Member)) (*PresenceChannel, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ch, ok := r.channels[name]; ok {
		return &PresenceChannel{Channel: ch}, false
	}
	pc := newPresenceChannel(name, onAdded, onRemoved)
	r.channels[name] = pc.Channel
	return pc, true
}

func (r *registry) find(name string) (*Channel, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch, ok := r.channels[name]
	return ch, ok
}

func (r *registry) remove(name string) {
	r.mu.Lock()
	delete(r.channels, name)
	r.mu.Unlock()
}

// all returns a snapshot of every registered channel.
func (r *registry) all() []*Channel {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Channel, 0, len(r.channels))
	for _, ch := range r.channels {
		out = append(out, ch)
	}
	return out
}

// len reports the number of registered channels (testable property 1).
func (r *registry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.channels)
}
