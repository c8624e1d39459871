package pusher

import (
	"strings"
	"sync"

	"github.com/google/uuid"
)

// ChannelType is the discriminated variant derived once from a channel
// name's prefix, rather than checked repeatedly at each call site.
type ChannelType int

const (
	ChannelPublic ChannelType = iota
	ChannelPrivate
	ChannelPresence
)

func (t ChannelType) String() string {
	switch t {
	case ChannelPrivate:
		return "private"
	case ChannelPresence:
		return "presence"
	default:
		return "public"
	}
}

func channelTypeForName(name string) ChannelType {
	switch {
	case strings.HasPrefix(name, "presence-"):
		return ChannelPresence
	case strings.HasPrefix(name, "private-"):
		return ChannelPrivate
	default:
		return ChannelPublic
	}
}

// EventHandler receives the decoded data for an event bound on a specific
// channel.
type EventHandler func(data interface{})

type binding struct {
	id string
	cb EventHandler
}

type clientEvent struct {
	name string
	data interface{}
}

// Channel is a named message fanout. Public channels require no
// authorization; private and presence channels do, and presence channels
// additionally carry a membership roster (see PresenceChannel).
type Channel struct {
	mu sync.RWMutex

	name       string
	typ        ChannelType
	subscribed bool

	bindings map[string][]binding
	unsent   []clientEvent

	presence *presenceState // non-nil iff typ == ChannelPresence
}

func newChannel(name string) *Channel {
	ch := &Channel{
		name:     name,
		typ:      channelTypeForName(name),
		bindings: make(map[string][]binding),
	}
	if ch.typ == ChannelPresence {
		ch.presence = &presenceState{members: make(map[string]Member)}
	}
	return ch
}

// Name returns the channel's name.
func (c *Channel) Name() string { return c.name }

// Type returns the channel's discriminated variant.
func (c *Channel) Type() ChannelType { return c.typ }

// IsSubscribed reports whether a subscription_succeeded has been received
// for this channel since the last disconnect.
func (c *Channel) IsSubscribed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.subscribed
}

func (c *Channel) setSubscribed(v bool) {
	c.mu.Lock()
	c.subscribed = v
	c.mu.Unlock()
}

// Bind registers a handler for eventName on this channel and returns a
// stable binding ID suitable for Unbind.
func (c *Channel) Bind(eventName string, cb EventHandler) string {
	id := uuid.NewString()
	c.mu.Lock()
	c.bindings[eventName] = append(c.bindings[eventName], binding{id: id, cb: cb})
	c.mu.Unlock()
	return id
}

// Unbind removes exactly the binding with the given ID, across all event
// names (IDs are unique per channel).
func (c *Channel) Unbind(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for event, bs := range c.bindings {
		for i, b := range bs {
			if b.id == id {
				c.bindings[event] = append(bs[:i], bs[i+1:]...)
				return
			}
		}
	}
}

// UnbindAll clears every binding on this channel.
func (c *Channel) UnbindAll() {
	c.mu.Lock()
	c.bindings = make(map[string][]binding)
	c.mu.Unlock()
}

// fire delivers data to every handler bound to eventName, in registration
// order, without holding the channel lock across user callbacks.
func (c *Channel) fire(eventName string, data interface{}) {
	c.mu.RLock()
	bs := append([]binding(nil), c.bindings[eventName]...)
	c.mu.RUnlock()
	for _, b := range bs {
		b.cb(data)
	}
}

// queueClientEvent buffers a client event that arrived before subscription
// succeeded. Per the source's documented (if surprising) behavior, these are
// drained LIFO, not FIFO: see drainClientEvents.
func (c *Channel) queueClientEvent(name string, data interface{}) {
	c.mu.Lock()
	c.unsent = append(c.unsent, clientEvent{name: name, data: data})
	c.mu.Unlock()
}

// drainClientEvents returns and clears the buffered client events in the
// order they must be sent: popped from the tail, i.e. LIFO. This is an Open
// Question carried forward unchanged from the source rather than "fixed" to
// FIFO; see DESIGN.md.
func (c *Channel) drainClientEvents() []clientEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]clientEvent, 0, len(c.unsent))
	for i := len(c.unsent) - 1; i >= 0; i-- {
		out = append(out, c.unsent[i])
	}
	c.unsent = nil
	return out
}
