package pusher

import (
	"sync"

	"github.com/google/uuid"
)

// GlobalEventHandler receives inbound events regardless of channel (see
// GlobalChannel for the events that do not reach it).
type GlobalEventHandler func(channel, event string, data interface{})

type globalBinding struct {
	id string
	cb GlobalEventHandler
}

// GlobalChannel is the singleton sink that fires for inbound events,
// dispatched before any per-channel binding. connection_established,
// member_added and member_removed are handled by the connection itself and
// do not reach it.
type GlobalChannel struct {
	mu       sync.RWMutex
	bindings map[string][]globalBinding
}

func newGlobalChannel() *GlobalChannel {
	return &GlobalChannel{bindings: make(map[string][]globalBinding)}
}

// Bind registers a handler for eventName (or every event, if eventName is
// empty) and returns a stable binding ID.
func (g *GlobalChannel) Bind(eventName string, cb GlobalEventHandler) string {
	id := uuid.NewString()
	g.mu.Lock()
	g.bindings[eventName] = append(g.bindings[eventName], globalBinding{id: id, cb: cb})
	g.mu.Unlock()
	return id
}

// Unbind removes exactly the binding with the given ID.
func (g *GlobalChannel) Unbind(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for event, bs := range g.bindings {
		for i, b := range bs {
			if b.id == id {
				g.bindings[event] = append(bs[:i], bs[i+1:]...)
				return
			}
		}
	}
}

// UnbindAll clears every global binding.
func (g *GlobalChannel) UnbindAll() {
	g.mu.Lock()
	g.bindings = make(map[string][]globalBinding)
	g.mu.Unlock()
}

func (g *GlobalChannel) fire(channel, event string, data interface{}) {
	g.mu.RLock()
	bs := append([]globalBinding(nil), g.bindings[event]...)
	bs = append(bs, g.bindings[""]...)
	g.mu.RUnlock()
	for _, b := range bs {
		b.cb(channel, event, data)
	}
}
