package pusher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelTypeForName(t *testing.T) {
	assert.Equal(t, ChannelPublic, channelTypeForName("news"))
	assert.Equal(t, ChannelPrivate, channelTypeForName("private-orders"))
	assert.Equal(t, ChannelPresence, channelTypeForName("presence-room"))
}

func TestChannelBindUnbind(t *testing.T) {
	ch := newChannel("news")

	var received []interface{}
	id := ch.Bind("update", func(data interface{}) { received = append(received, data) })

	ch.fire("update", "one")
	require.Len(t, received, 1)

	ch.Unbind(id)
	ch.fire("update", "two")
	assert.Len(t, received, 1, "unbound handler must not fire again")
}

func TestChannelUnbindAll(t *testing.T) {
	ch := newChannel("news")
	var calls int
	ch.Bind("a", func(interface{}) { calls++ })
	ch.Bind("b", func(interface{}) { calls++ })

	ch.UnbindAll()
	ch.fire("a", nil)
	ch.fire("b", nil)
	assert.Equal(t, 0, calls)
}

func TestChannelSubscribedFlag(t *testing.T) {
	ch := newChannel("news")
	assert.False(t, ch.IsSubscribed())
	ch.setSubscribed(true)
	assert.True(t, ch.IsSubscribed())
	ch.setSubscribed(false)
	assert.False(t, ch.IsSubscribed())
}

// TestDrainClientEventsLIFO locks in the source's documented-but-surprising
// LIFO drain order (spec §3 invariants, §9 Open Questions): events queued
// in order 1,2,3 must drain as 3,2,1.
func TestDrainClientEventsLIFO(t *testing.T) {
	ch := newChannel("private-x")
	ch.queueClientEvent("one", 1)
	ch.queueClientEvent("two", 2)
	ch.queueClientEvent("three", 3)

	drained := ch.drainClientEvents()
	require.Len(t, drained, 3)
	assert.Equal(t, "three", drained[0].name)
	assert.Equal(t, "two", drained[1].name)
	assert.Equal(t, "one", drained[2].name)

	assert.Empty(t, ch.drainClientEvents())
}
