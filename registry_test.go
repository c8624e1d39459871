package pusher

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistryGetOrCreateIdempotent(t *testing.T) {
	r := newRegistry()

	ch1, created1 := r.getOrCreate("news")
	assert.True(t, created1)

	ch2, created2 := r.getOrCreate("news")
	assert.False(t, created2)
	assert.Same(t, ch1, ch2)

	assert.Equal(t, 1, r.len())
}

func TestRegistryRemove(t *testing.T) {
	r := newRegistry()
	r.getOrCreate("news")
	r.getOrCreate("private-orders")
	assert.Equal(t, 2, r.len())

	r.remove("news")
	assert.Equal(t, 1, r.len())

	_, ok := r.find("news")
	assert.False(t, ok)
}

func TestRegistryGetOrCreatePresence(t *testing.T) {
	r := newRegistry()
	pc1, created1 := r.getOrCreatePresence("presence-room", nil, nil)
	assert.True(t, created1)
	assert.Equal(t, ChannelPresence, pc1.Type())

	pc2, created2 := r.getOrCreatePresence("presence-room", nil, nil)
	assert.False(t, created2)
	assert.Same(t, pc1.Channel, pc2.Channel)
}

// TestRegistryPresenceWrapAfterPlainSubscribe guards the case where a
// presence-prefixed name is first registered through getOrCreate (e.g. a
// plain Subscribe call) rather than getOrCreatePresence: the wrapped
// PresenceChannel must still have usable (non-nil) roster state.
func TestRegistryPresenceWrapAfterPlainSubscribe(t *testing.T) {
	r := newRegistry()
	r.getOrCreate("presence-room")

	pc, created := r.getOrCreatePresence("presence-room", nil, nil)
	assert.False(t, created)
	assert.NotPanics(t, func() { pc.Members() })
	assert.Empty(t, pc.Members())
}
